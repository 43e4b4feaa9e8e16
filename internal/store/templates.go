package store

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

// ExtractionStatus records whether variables could be derived from a
// template's current source document.
type ExtractionStatus string

const (
	ExtractionPending ExtractionStatus = "pending"
	ExtractionOK      ExtractionStatus = "ok"
	ExtractionFailed  ExtractionStatus = "failed"
)

// Template represents a row in the templates table.
type Template struct {
	ID               string           `db:"id"`
	Title            string           `db:"title"`
	Description      string           `db:"description"`
	Ordinal          int              `db:"ordinal"`
	SourceRef        string           `db:"source_ref"`
	SourceName       string           `db:"source_name"`
	ContentType      string           `db:"content_type"`
	ExtractionStatus ExtractionStatus `db:"extraction_status"`
	ExtractionError  string           `db:"extraction_error"`
	CreatedBy        string           `db:"created_by"`
	CreatedAt        time.Time        `db:"created_at"`
	UpdatedAt        time.Time        `db:"updated_at"`
}

// NewTemplate carries the operator-supplied metadata for a new template.
type NewTemplate struct {
	Title       string
	Description string
	Ordinal     int
	CreatedBy   string
}

// SourceInfo points a template at a stored source document.
type SourceInfo struct {
	Ref         string
	Name        string
	ContentType string
}

// TemplateStore is the sqlx-backed store for templates.
type TemplateStore struct {
	db *sqlx.DB
}

func NewTemplateStore(db *sqlx.DB) *TemplateStore {
	return &TemplateStore{db: db}
}

// CreateTx inserts a template inside tx with a pending extraction status.
func (s *TemplateStore) CreateTx(ctx context.Context, tx *sqlx.Tx, t NewTemplate, src SourceInfo) (*Template, error) {
	id := uuid.New().String()
	now := time.Now().UTC()
	_, err := tx.ExecContext(ctx, tx.Rebind(`
		INSERT INTO templates (id, title, description, ordinal, source_ref, source_name, content_type,
			extraction_status, extraction_error, created_by, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, '', ?, ?, ?)
	`), id, t.Title, t.Description, t.Ordinal, src.Ref, src.Name, src.ContentType,
		ExtractionPending, t.CreatedBy, now, now)
	if err != nil {
		return nil, err
	}
	return getTemplate(ctx, tx, id)
}

// SetSourceTx points the template at a new source document.
func (s *TemplateStore) SetSourceTx(ctx context.Context, tx *sqlx.Tx, id string, src SourceInfo) error {
	res, err := tx.ExecContext(ctx, tx.Rebind(`
		UPDATE templates SET source_ref = ?, source_name = ?, content_type = ?, updated_at = ? WHERE id = ?
	`), src.Ref, src.Name, src.ContentType, time.Now().UTC(), id)
	if err != nil {
		return err
	}
	return requireAffected(res)
}

// SetExtractionTx records the outcome of the latest variable extraction.
func (s *TemplateStore) SetExtractionTx(ctx context.Context, tx *sqlx.Tx, id string, status ExtractionStatus, msg string) error {
	_, err := tx.ExecContext(ctx, tx.Rebind(`
		UPDATE templates SET extraction_status = ?, extraction_error = ?, updated_at = ? WHERE id = ?
	`), status, msg, time.Now().UTC(), id)
	return err
}

// GetByID returns the template matching id, or ErrNotFound.
func (s *TemplateStore) GetByID(ctx context.Context, id string) (*Template, error) {
	return getTemplate(ctx, s.db, id)
}

// GetByIDTx is GetByID inside tx.
func (s *TemplateStore) GetByIDTx(ctx context.Context, tx *sqlx.Tx, id string) (*Template, error) {
	return getTemplate(ctx, tx, id)
}

func getTemplate(ctx context.Context, q sqlx.ExtContext, id string) (*Template, error) {
	var t Template
	err := sqlx.GetContext(ctx, q, &t, q.Rebind(`SELECT * FROM templates WHERE id = ?`), id)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// List returns all templates ordered by ordinal, then title.
func (s *TemplateStore) List(ctx context.Context) ([]*Template, error) {
	var templates []*Template
	err := s.db.SelectContext(ctx, &templates, `SELECT * FROM templates ORDER BY ordinal ASC, title ASC`)
	if err != nil {
		return nil, err
	}
	return templates, nil
}

// UpdateMeta changes a template's title, description and ordinal.
func (s *TemplateStore) UpdateMeta(ctx context.Context, id, title, description string, ordinal int) (*Template, error) {
	res, err := s.db.ExecContext(ctx, s.db.Rebind(`
		UPDATE templates SET title = ?, description = ?, ordinal = ?, updated_at = ? WHERE id = ?
	`), title, description, ordinal, time.Now().UTC(), id)
	if err != nil {
		return nil, err
	}
	if err := requireAffected(res); err != nil {
		return nil, err
	}
	return s.GetByID(ctx, id)
}

// Delete removes a template together with everything it owns: variables,
// sections, elements, instances with their answers, and source documents.
func (s *TemplateStore) Delete(ctx context.Context, id string) error {
	return WithTx(ctx, s.db, func(tx *sqlx.Tx) error {
		t, err := getTemplate(ctx, tx, id)
		if err != nil {
			return err
		}
		stmts := []string{
			`DELETE FROM answers WHERE instance_id IN (SELECT id FROM instances WHERE template_id = ?)`,
			`DELETE FROM instances WHERE template_id = ?`,
			`DELETE FROM variables WHERE template_id = ?`,
			`DELETE FROM elements WHERE template_id = ?`,
			`DELETE FROM sections WHERE template_id = ?`,
		}
		for _, stmt := range stmts {
			if _, err := tx.ExecContext(ctx, tx.Rebind(stmt), id); err != nil {
				return err
			}
		}
		if t.SourceRef != "" {
			if _, err := tx.ExecContext(ctx, tx.Rebind(`DELETE FROM source_documents WHERE ref = ?`), t.SourceRef); err != nil {
				return err
			}
		}
		_, err = tx.ExecContext(ctx, tx.Rebind(`DELETE FROM templates WHERE id = ?`), id)
		return err
	})
}

func requireAffected(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
