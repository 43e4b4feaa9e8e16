package engine

import (
	"context"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/joestump/docmerge/internal/metrics"
	"github.com/joestump/docmerge/internal/store"
)

// DraftAnswer is one answer as the user gave it. For selectable elements
// Value is the chosen option label; it is resolved to the option's result
// before it is stored.
type DraftAnswer struct {
	ElementID string `json:"element_id" yaml:"element_id"`
	Value     string `json:"value" yaml:"value"`
}

// DraftAnswers is a caller-owned batch of answers collected before a save.
// Later entries for the same element win.
type DraftAnswers []DraftAnswer

// Answers validates drafts and writes them per element.
type Answers struct {
	stores *Stores
	log    *zap.Logger
}

func NewAnswers(stores *Stores, log *zap.Logger) *Answers {
	if log == nil {
		log = zap.NewNop()
	}
	return &Answers{stores: stores, log: log}
}

// Save resolves every draft entry and upserts the results for the instance
// owned by userID. Elements are read and answers written in one transaction,
// so labels are resolved against the options in force at write time. If any
// entry is invalid nothing is written. It returns the instance's answers
// after the write.
func (a *Answers) Save(ctx context.Context, instanceID, userID string, draft DraftAnswers) ([]*store.Answer, error) {
	inst, err := a.stores.Instances.GetOwned(ctx, instanceID, userID)
	if err != nil {
		return nil, err
	}

	var written int
	err = store.WithTx(ctx, a.stores.DB, func(tx *sqlx.Tx) error {
		elems, err := a.stores.Elements.LockByTemplateTx(ctx, tx, inst.TemplateID)
		if err != nil {
			return err
		}
		byID := make(map[string]*store.Element, len(elems))
		for _, e := range elems {
			byID[e.ID] = e
		}
		values, err := resolveDraft(byID, draft)
		if err != nil {
			return errRejected{err}
		}
		written = len(values)
		return a.stores.Answers.UpsertManyTx(ctx, tx, instanceID, userID, values)
	})
	var rejected errRejected
	if errors.As(err, &rejected) {
		a.log.Info("answer save rejected",
			zap.String("instance_id", instanceID),
			zap.Error(rejected.err))
		return nil, rejected.err
	}
	if err != nil {
		return nil, fmt.Errorf("save answers: %w", err)
	}
	metrics.AnswersWrittenTotal.Add(float64(written))
	a.log.Debug("answers saved",
		zap.String("instance_id", instanceID),
		zap.Int("count", written))

	return a.stores.Answers.ListByInstance(ctx, instanceID)
}

// errRejected marks a draft that failed validation inside the write tx.
type errRejected struct{ err error }

func (e errRejected) Error() string { return e.err.Error() }
func (e errRejected) Unwrap() error { return e.err }

// Clear removes the instance's answer for one element.
func (a *Answers) Clear(ctx context.Context, instanceID, userID, elementID string) error {
	if _, err := a.stores.Instances.GetOwned(ctx, instanceID, userID); err != nil {
		return err
	}
	return a.stores.Answers.Delete(ctx, instanceID, elementID)
}

func resolveDraft(elems map[string]*store.Element, draft DraftAnswers) ([]store.AnswerValue, error) {
	index := make(map[string]int, len(draft))
	values := make([]store.AnswerValue, 0, len(draft))
	for _, d := range draft {
		e, ok := elems[d.ElementID]
		if !ok {
			metrics.AnswerRejectionsTotal.WithLabelValues("unknown_element").Inc()
			return nil, fmt.Errorf("element %s: %w", d.ElementID, store.ErrNotFound)
		}
		if !e.Active() {
			metrics.AnswerRejectionsTotal.WithLabelValues("retired_element").Inc()
			return nil, fmt.Errorf("%w: %s", ErrElementRetired, e.Name)
		}
		value := d.Value
		if e.Kind == store.ElementSelect {
			opt, ok := e.Options.Lookup(d.Value)
			if !ok {
				metrics.AnswerRejectionsTotal.WithLabelValues("unknown_option").Inc()
				return nil, fmt.Errorf("%w: %q for %s", ErrUnknownOption, d.Value, e.Name)
			}
			value = opt.Result
		}

		v := store.AnswerValue{ElementID: e.ID, Value: value}
		if i, seen := index[e.ID]; seen {
			values[i] = v
			continue
		}
		index[e.ID] = len(values)
		values = append(values, v)
	}
	return values, nil
}
