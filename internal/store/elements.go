package store

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

// ElementKind tells a free-text question from a selectable one.
type ElementKind string

const (
	ElementText   ElementKind = "text"
	ElementSelect ElementKind = "select"
)

// Element is the answerable form of a variable. Answers reference elements,
// and an element outlives its variable as a retired row so that instances
// answered against an older document version keep rendering.
type Element struct {
	ID         string      `db:"id"`
	TemplateID string      `db:"template_id"`
	Name       string      `db:"name"`
	Kind       ElementKind `db:"kind"`
	Question   string      `db:"question"`
	Options    OptionList  `db:"options"`
	Status     Lifecycle   `db:"status"`
	CreatedAt  time.Time   `db:"created_at"`
	UpdatedAt  time.Time   `db:"updated_at"`
}

// Active reports whether the element can still receive answers.
func (e *Element) Active() bool {
	return e.Status == LifecycleActive
}

// ElementStore is the sqlx-backed store for elements.
type ElementStore struct {
	db *sqlx.DB
}

func NewElementStore(db *sqlx.DB) *ElementStore {
	return &ElementStore{db: db}
}

// GetByID returns the element matching id, or ErrNotFound.
func (s *ElementStore) GetByID(ctx context.Context, id string) (*Element, error) {
	var e Element
	err := s.db.GetContext(ctx, &e, s.db.Rebind(`SELECT * FROM elements WHERE id = ?`), id)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &e, nil
}

// ListByTemplate returns the template's elements ordered by name.
// Retired elements are only included when includeRetired is set.
func (s *ElementStore) ListByTemplate(ctx context.Context, templateID string, includeRetired bool) ([]*Element, error) {
	return listElements(ctx, s.db, templateID, includeRetired)
}

func listElements(ctx context.Context, q sqlx.ExtContext, templateID string, includeRetired bool) ([]*Element, error) {
	query := `SELECT * FROM elements WHERE template_id = ?`
	args := []any{templateID}
	if !includeRetired {
		query += ` AND status = ?`
		args = append(args, LifecycleActive)
	}
	query += ` ORDER BY name ASC`

	var elems []*Element
	if err := sqlx.SelectContext(ctx, q, &elems, q.Rebind(query), args...); err != nil {
		return nil, err
	}
	return elems, nil
}

// LockByTemplateTx reads all of the template's elements inside tx and holds a
// shared lock on them until tx ends, so a concurrent sync cannot retire an
// element or change its options under the caller. SQLite serializes writers
// on its own and takes no row locks.
func (s *ElementStore) LockByTemplateTx(ctx context.Context, tx *sqlx.Tx, templateID string) ([]*Element, error) {
	query := `SELECT * FROM elements WHERE template_id = ? ORDER BY name ASC`
	if tx.DriverName() != "sqlite" {
		query += ` FOR SHARE`
	}
	var elems []*Element
	if err := tx.SelectContext(ctx, &elems, tx.Rebind(query), templateID); err != nil {
		return nil, err
	}
	return elems, nil
}

// Sync brings the template's elements in line with its variables.
func (s *ElementStore) Sync(ctx context.Context, templateID string) error {
	return WithTx(ctx, s.db, func(tx *sqlx.Tx) error {
		return syncElementsTx(ctx, tx, templateID)
	})
}

// SyncTx is Sync inside tx.
func (s *ElementStore) SyncTx(ctx context.Context, tx *sqlx.Tx, templateID string) error {
	return syncElementsTx(ctx, tx, templateID)
}

// syncElementsTx creates an element for every variable that lacks one, copies
// question and options onto existing elements, reactivates elements whose
// placeholder came back, and retires elements whose placeholder is gone.
// Element ids are stable per placeholder name, so answers survive re-uploads.
func syncElementsTx(ctx context.Context, tx *sqlx.Tx, templateID string) error {
	vars, err := listVariables(ctx, tx, templateID)
	if err != nil {
		return err
	}
	elems, err := listElements(ctx, tx, templateID, true)
	if err != nil {
		return err
	}
	byName := make(map[string]*Element, len(elems))
	for _, e := range elems {
		byName[e.Name] = e
	}

	now := time.Now().UTC()
	live := make(map[string]bool, len(vars))
	for _, v := range vars {
		live[v.Name] = true
		kind := ElementText
		if v.Options.Selectable() {
			kind = ElementSelect
		}
		e, ok := byName[v.Name]
		if !ok {
			_, err := tx.ExecContext(ctx, tx.Rebind(`
				INSERT INTO elements (id, template_id, name, kind, question, options, status, created_at, updated_at)
				VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
			`), uuid.New().String(), templateID, v.Name, kind, v.Question, v.Options, LifecycleActive, now, now)
			if err != nil {
				return err
			}
			continue
		}
		if e.Kind == kind && e.Question == v.Question && e.Active() && sameOptions(e.Options, v.Options) {
			continue
		}
		_, err := tx.ExecContext(ctx, tx.Rebind(`
			UPDATE elements SET kind = ?, question = ?, options = ?, status = ?, updated_at = ? WHERE id = ?
		`), kind, v.Question, v.Options, LifecycleActive, now, e.ID)
		if err != nil {
			return err
		}
	}

	for _, e := range elems {
		if live[e.Name] || !e.Active() {
			continue
		}
		_, err := tx.ExecContext(ctx, tx.Rebind(`
			UPDATE elements SET status = ?, updated_at = ? WHERE id = ?
		`), LifecycleRetired, now, e.ID)
		if err != nil {
			return err
		}
	}
	return nil
}

func sameOptions(a, b OptionList) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
