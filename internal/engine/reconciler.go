package engine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/joestump/docmerge/internal/document"
	"github.com/joestump/docmerge/internal/metrics"
	"github.com/joestump/docmerge/internal/placeholder"
	"github.com/joestump/docmerge/internal/store"
)

// Mode selects what a re-upload does to variables whose placeholder survives.
type Mode string

const (
	// ModePreserve keeps question text, options and section of surviving
	// placeholders and only adds or removes the names that changed.
	ModePreserve Mode = "preserve"
	// ModeReset discards every variable and recreates them blank.
	ModeReset Mode = "reset"
)

// ParseMode validates a configured reconcile mode.
func ParseMode(s string) (Mode, error) {
	switch Mode(s) {
	case ModePreserve, ModeReset:
		return Mode(s), nil
	case "":
		return ModePreserve, nil
	}
	return "", fmt.Errorf("unknown reconcile mode %q", s)
}

// Reconciliation is the outcome of creating or replacing a template source.
type Reconciliation struct {
	Template  *store.Template
	Variables []*store.Variable
	Diff      store.VariableDiff
}

// Reconciler derives a template's variables from its source document.
type Reconciler struct {
	stores  *Stores
	mode    Mode
	timeout time.Duration
	log     *zap.Logger
}

func NewReconciler(stores *Stores, mode Mode, extractTimeout time.Duration, log *zap.Logger) *Reconciler {
	if mode == "" {
		mode = ModePreserve
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Reconciler{stores: stores, mode: mode, timeout: extractTimeout, log: log}
}

// Create stores a new template and its source, then extracts variables.
//
// When extraction fails the template is still created with a failed
// extraction status; the returned Reconciliation is populated and the error
// wraps ErrExtractionFailed.
func (r *Reconciler) Create(ctx context.Context, meta store.NewTemplate, doc document.Document) (*Reconciliation, error) {
	if _, err := doc.Format(); err != nil {
		return nil, err
	}
	names, extractErr := r.extract(ctx, doc)

	var templateID string
	var diff store.VariableDiff
	err := store.WithTx(ctx, r.stores.DB, func(tx *sqlx.Tx) error {
		src, err := r.stores.Sources.PutTx(ctx, tx, doc.Name, doc.ContentType, doc.Data)
		if err != nil {
			return err
		}
		tpl, err := r.stores.Templates.CreateTx(ctx, tx, meta, src)
		if err != nil {
			return err
		}
		templateID = tpl.ID
		diff, err = r.applyTx(ctx, tx, tpl.ID, names, extractErr)
		return err
	})
	if err != nil {
		metrics.ReconciliationsTotal.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("create template: %w", err)
	}
	return r.finish(ctx, templateID, diff, extractErr)
}

// Replace swaps the template's source document and reconciles its variables
// with the placeholders of the new document. The previous source is dropped.
func (r *Reconciler) Replace(ctx context.Context, templateID string, doc document.Document) (*Reconciliation, error) {
	if _, err := doc.Format(); err != nil {
		return nil, err
	}
	tpl, err := r.stores.Templates.GetByID(ctx, templateID)
	if err != nil {
		return nil, err
	}
	names, extractErr := r.extract(ctx, doc)

	var diff store.VariableDiff
	err = store.WithTx(ctx, r.stores.DB, func(tx *sqlx.Tx) error {
		src, err := r.stores.Sources.PutTx(ctx, tx, doc.Name, doc.ContentType, doc.Data)
		if err != nil {
			return err
		}
		if err := r.stores.Templates.SetSourceTx(ctx, tx, templateID, src); err != nil {
			return err
		}
		if tpl.SourceRef != "" {
			if err := r.stores.Sources.DeleteTx(ctx, tx, tpl.SourceRef); err != nil {
				return err
			}
		}
		diff, err = r.applyTx(ctx, tx, templateID, names, extractErr)
		return err
	})
	if err != nil {
		metrics.ReconciliationsTotal.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("replace template source: %w", err)
	}
	return r.finish(ctx, templateID, diff, extractErr)
}

// Retry re-runs extraction on the template's stored source, typically after
// a failed extraction.
func (r *Reconciler) Retry(ctx context.Context, templateID string) (*Reconciliation, error) {
	tpl, err := r.stores.Templates.GetByID(ctx, templateID)
	if err != nil {
		return nil, err
	}
	src, err := r.stores.Sources.Get(ctx, tpl.SourceRef)
	if err != nil {
		return nil, fmt.Errorf("load source for template %s: %w", templateID, err)
	}
	doc := document.Document{Name: src.Name, ContentType: src.ContentType, Data: src.Data}
	names, extractErr := r.extract(ctx, doc)

	var diff store.VariableDiff
	err = store.WithTx(ctx, r.stores.DB, func(tx *sqlx.Tx) error {
		var err error
		diff, err = r.applyTx(ctx, tx, templateID, names, extractErr)
		return err
	})
	if err != nil {
		metrics.ReconciliationsTotal.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("retry extraction: %w", err)
	}
	return r.finish(ctx, templateID, diff, extractErr)
}

func (r *Reconciler) extract(ctx context.Context, doc document.Document) ([]string, error) {
	if r.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}
	text, err := document.Extract(ctx, doc)
	if err != nil {
		return nil, err
	}
	return placeholder.Scan(text), nil
}

// applyTx writes the extraction outcome. Variables are only touched when
// extraction succeeded.
func (r *Reconciler) applyTx(ctx context.Context, tx *sqlx.Tx, templateID string, names []string, extractErr error) (store.VariableDiff, error) {
	if extractErr != nil {
		return store.VariableDiff{}, r.stores.Templates.SetExtractionTx(ctx, tx, templateID, store.ExtractionFailed, extractErr.Error())
	}

	var (
		diff store.VariableDiff
		err  error
	)
	if r.mode == ModeReset {
		diff, err = r.stores.Variables.ReplaceAllTx(ctx, tx, templateID, names)
	} else {
		diff, err = r.stores.Variables.MergeTx(ctx, tx, templateID, names)
	}
	if err != nil {
		return store.VariableDiff{}, err
	}
	if err := r.stores.Elements.SyncTx(ctx, tx, templateID); err != nil {
		return store.VariableDiff{}, err
	}
	return diff, r.stores.Templates.SetExtractionTx(ctx, tx, templateID, store.ExtractionOK, "")
}

func (r *Reconciler) finish(ctx context.Context, templateID string, diff store.VariableDiff, extractErr error) (*Reconciliation, error) {
	tpl, err := r.stores.Templates.GetByID(ctx, templateID)
	if err != nil {
		return nil, err
	}
	vars, err := r.stores.Variables.ListByTemplate(ctx, templateID)
	if err != nil {
		return nil, err
	}
	out := &Reconciliation{Template: tpl, Variables: vars, Diff: diff}

	if extractErr != nil {
		metrics.ReconciliationsTotal.WithLabelValues("extraction_failed").Inc()
		r.log.Warn("variable extraction failed",
			zap.String("template_id", templateID),
			zap.Bool("timeout", errors.Is(extractErr, context.DeadlineExceeded)),
			zap.Error(extractErr))
		return out, fmt.Errorf("%w: %v", ErrExtractionFailed, extractErr)
	}

	metrics.ReconciliationsTotal.WithLabelValues("ok").Inc()
	metrics.VariablesDiscovered.Observe(float64(len(vars)))
	r.log.Info("template reconciled",
		zap.String("template_id", templateID),
		zap.String("mode", string(r.mode)),
		zap.Strings("added", diff.Added),
		zap.Strings("removed", diff.Removed),
		zap.Int("variables", len(vars)))
	return out, nil
}
