package store

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

// SourceDocument is an uploaded template source file.
type SourceDocument struct {
	Ref         string    `db:"ref"`
	Name        string    `db:"name"`
	ContentType string    `db:"content_type"`
	Size        int64     `db:"size"`
	Data        []byte    `db:"data"`
	CreatedAt   time.Time `db:"created_at"`
}

// SourceStore keeps uploaded source documents in the database so a template
// can be re-extracted or rendered without the original upload.
type SourceStore struct {
	db *sqlx.DB
}

func NewSourceStore(db *sqlx.DB) *SourceStore {
	return &SourceStore{db: db}
}

// PutTx stores data and returns its reference.
func (s *SourceStore) PutTx(ctx context.Context, tx *sqlx.Tx, name, contentType string, data []byte) (SourceInfo, error) {
	ref := uuid.New().String()
	_, err := tx.ExecContext(ctx, tx.Rebind(`
		INSERT INTO source_documents (ref, name, content_type, size, data, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`), ref, name, contentType, len(data), data, time.Now().UTC())
	if err != nil {
		return SourceInfo{}, err
	}
	return SourceInfo{Ref: ref, Name: name, ContentType: contentType}, nil
}

// DeleteTx removes a stored document. Missing refs are ignored.
func (s *SourceStore) DeleteTx(ctx context.Context, tx *sqlx.Tx, ref string) error {
	_, err := tx.ExecContext(ctx, tx.Rebind(`DELETE FROM source_documents WHERE ref = ?`), ref)
	return err
}

// Get returns the stored document, or ErrNotFound.
func (s *SourceStore) Get(ctx context.Context, ref string) (*SourceDocument, error) {
	var d SourceDocument
	err := s.db.GetContext(ctx, &d, s.db.Rebind(`SELECT * FROM source_documents WHERE ref = ?`), ref)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &d, nil
}
