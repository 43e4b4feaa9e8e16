package store

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

// Section is a named, ordered grouping of variables within a template.
type Section struct {
	ID         string    `db:"id"`
	TemplateID string    `db:"template_id"`
	Title      string    `db:"title"`
	Position   int       `db:"position"`
	Status     Lifecycle `db:"status"`
	CreatedAt  time.Time `db:"created_at"`
	UpdatedAt  time.Time `db:"updated_at"`
}

// Active reports whether the section has not been retired.
func (s *Section) Active() bool {
	return s.Status == LifecycleActive
}

// SectionStore is the sqlx-backed store for sections.
type SectionStore struct {
	db *sqlx.DB
}

func NewSectionStore(db *sqlx.DB) *SectionStore {
	return &SectionStore{db: db}
}

// Create appends a new active section to the end of the template's list.
func (s *SectionStore) Create(ctx context.Context, templateID, title string) (*Section, error) {
	var sec *Section
	err := WithTx(ctx, s.db, func(tx *sqlx.Tx) error {
		var err error
		sec, err = s.CreateTx(ctx, tx, templateID, title)
		return err
	})
	return sec, err
}

// CreateTx is Create inside tx.
func (s *SectionStore) CreateTx(ctx context.Context, tx *sqlx.Tx, templateID, title string) (*Section, error) {
	if _, err := getTemplate(ctx, tx, templateID); err != nil {
		return nil, err
	}
	var next int
	err := tx.GetContext(ctx, &next, tx.Rebind(`
		SELECT COALESCE(MAX(position), -1) + 1 FROM sections WHERE template_id = ?
	`), templateID)
	if err != nil {
		return nil, err
	}

	id := uuid.New().String()
	now := time.Now().UTC()
	_, err = tx.ExecContext(ctx, tx.Rebind(`
		INSERT INTO sections (id, template_id, title, position, status, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`), id, templateID, title, next, LifecycleActive, now, now)
	if err != nil {
		return nil, err
	}
	return getSection(ctx, tx, id)
}

// GetByID returns the section matching id regardless of its lifecycle, or ErrNotFound.
func (s *SectionStore) GetByID(ctx context.Context, id string) (*Section, error) {
	return getSection(ctx, s.db, id)
}

func getSection(ctx context.Context, q sqlx.ExtContext, id string) (*Section, error) {
	var sec Section
	err := sqlx.GetContext(ctx, q, &sec, q.Rebind(`SELECT * FROM sections WHERE id = ?`), id)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &sec, nil
}

// ListByTemplate returns the template's sections ordered by position.
// Retired sections are only included when includeRetired is set.
func (s *SectionStore) ListByTemplate(ctx context.Context, templateID string, includeRetired bool) ([]*Section, error) {
	query := `SELECT * FROM sections WHERE template_id = ?`
	args := []any{templateID}
	if !includeRetired {
		query += ` AND status = ?`
		args = append(args, LifecycleActive)
	}
	query += ` ORDER BY position ASC, created_at ASC`

	var sections []*Section
	if err := s.db.SelectContext(ctx, &sections, s.db.Rebind(query), args...); err != nil {
		return nil, err
	}
	return sections, nil
}

// Rename changes an active section's title.
func (s *SectionStore) Rename(ctx context.Context, id, title string) (*Section, error) {
	res, err := s.db.ExecContext(ctx, s.db.Rebind(`
		UPDATE sections SET title = ?, updated_at = ? WHERE id = ? AND status = ?
	`), title, time.Now().UTC(), id, LifecycleActive)
	if err != nil {
		return nil, err
	}
	if err := requireAffected(res); err != nil {
		return nil, err
	}
	return s.GetByID(ctx, id)
}

// Reorder assigns positions to the template's sections in the order given.
// Sections not listed keep their relative order after the listed ones.
func (s *SectionStore) Reorder(ctx context.Context, templateID string, ids []string) error {
	return WithTx(ctx, s.db, func(tx *sqlx.Tx) error {
		var existing []string
		err := tx.SelectContext(ctx, &existing, tx.Rebind(`
			SELECT id FROM sections WHERE template_id = ? ORDER BY position ASC, created_at ASC
		`), templateID)
		if err != nil {
			return err
		}
		known := make(map[string]bool, len(existing))
		for _, id := range existing {
			known[id] = true
		}

		order := make([]string, 0, len(existing))
		placed := make(map[string]bool, len(existing))
		for _, id := range ids {
			if !known[id] {
				return ErrNotFound
			}
			if !placed[id] {
				order = append(order, id)
				placed[id] = true
			}
		}
		for _, id := range existing {
			if !placed[id] {
				order = append(order, id)
			}
		}

		now := time.Now().UTC()
		for pos, id := range order {
			if _, err := tx.ExecContext(ctx, tx.Rebind(`
				UPDATE sections SET position = ?, updated_at = ? WHERE id = ?
			`), pos, now, id); err != nil {
				return err
			}
		}
		return nil
	})
}

// Retire soft-deletes a section and, in the same transaction, clears the
// section reference of every variable that pointed at it.
func (s *SectionStore) Retire(ctx context.Context, id string) error {
	return WithTx(ctx, s.db, func(tx *sqlx.Tx) error {
		res, err := tx.ExecContext(ctx, tx.Rebind(`
			UPDATE sections SET status = ?, updated_at = ? WHERE id = ? AND status = ?
		`), LifecycleRetired, time.Now().UTC(), id, LifecycleActive)
		if err != nil {
			return err
		}
		if err := requireAffected(res); err != nil {
			return err
		}
		_, err = tx.ExecContext(ctx, tx.Rebind(`
			UPDATE variables SET section_id = NULL, updated_at = ? WHERE section_id = ?
		`), time.Now().UTC(), id)
		return err
	})
}
