package store

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

// Instance is one user's materialization of a template.
type Instance struct {
	ID         string    `db:"id"`
	TemplateID string    `db:"template_id"`
	UserID     string    `db:"user_id"`
	Title      string    `db:"title"`
	CreatedAt  time.Time `db:"created_at"`
	UpdatedAt  time.Time `db:"updated_at"`
}

// InstanceStore is the sqlx-backed store for instances.
type InstanceStore struct {
	db *sqlx.DB
}

func NewInstanceStore(db *sqlx.DB) *InstanceStore {
	return &InstanceStore{db: db}
}

// Create starts a new instance of templateID for userID and makes sure the
// template's elements exist.
func (s *InstanceStore) Create(ctx context.Context, templateID, userID, title string) (*Instance, error) {
	var inst *Instance
	err := WithTx(ctx, s.db, func(tx *sqlx.Tx) error {
		if _, err := getTemplate(ctx, tx, templateID); err != nil {
			return err
		}
		if err := syncElementsTx(ctx, tx, templateID); err != nil {
			return err
		}
		id := uuid.New().String()
		now := time.Now().UTC()
		_, err := tx.ExecContext(ctx, tx.Rebind(`
			INSERT INTO instances (id, template_id, user_id, title, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?, ?)
		`), id, templateID, userID, title, now, now)
		if err != nil {
			return err
		}
		inst, err = getInstance(ctx, tx, id)
		return err
	})
	if err != nil {
		return nil, err
	}
	return inst, nil
}

// GetByID returns the instance matching id, or ErrNotFound.
func (s *InstanceStore) GetByID(ctx context.Context, id string) (*Instance, error) {
	return getInstance(ctx, s.db, id)
}

// GetOwned returns the instance only if userID owns it. It returns
// ErrNotFound for missing instances and ErrForbidden for other users' ones.
func (s *InstanceStore) GetOwned(ctx context.Context, id, userID string) (*Instance, error) {
	inst, err := s.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if inst.UserID != userID {
		return nil, ErrForbidden
	}
	return inst, nil
}

func getInstance(ctx context.Context, q sqlx.ExtContext, id string) (*Instance, error) {
	var inst Instance
	err := sqlx.GetContext(ctx, q, &inst, q.Rebind(`SELECT * FROM instances WHERE id = ?`), id)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &inst, nil
}

// ListByUser returns the user's instances, newest first.
func (s *InstanceStore) ListByUser(ctx context.Context, userID string) ([]*Instance, error) {
	var instances []*Instance
	err := s.db.SelectContext(ctx, &instances, s.db.Rebind(`
		SELECT * FROM instances WHERE user_id = ? ORDER BY created_at DESC, id ASC
	`), userID)
	if err != nil {
		return nil, err
	}
	return instances, nil
}

// Delete removes an instance owned by userID together with its answers.
func (s *InstanceStore) Delete(ctx context.Context, id, userID string) error {
	return WithTx(ctx, s.db, func(tx *sqlx.Tx) error {
		inst, err := getInstance(ctx, tx, id)
		if err != nil {
			return err
		}
		if inst.UserID != userID {
			return ErrForbidden
		}
		if _, err := tx.ExecContext(ctx, tx.Rebind(`DELETE FROM answers WHERE instance_id = ?`), id); err != nil {
			return err
		}
		_, err = tx.ExecContext(ctx, tx.Rebind(`DELETE FROM instances WHERE id = ?`), id)
		return err
	})
}
