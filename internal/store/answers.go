package store

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"
)

// Answer is the resolved value for one element within one instance. For
// selectable elements Value holds the chosen option's result, not its label.
type Answer struct {
	InstanceID  string    `db:"instance_id"`
	ElementID   string    `db:"element_id"`
	ElementName string    `db:"element_name"`
	UserID      string    `db:"user_id"`
	Value       string    `db:"value"`
	UpdatedAt   time.Time `db:"updated_at"`
}

// AnswerValue is one resolved value ready to be written.
type AnswerValue struct {
	ElementID string
	Value     string
}

// AnswerStore is the sqlx-backed store for answers.
type AnswerStore struct {
	db *sqlx.DB
}

func NewAnswerStore(db *sqlx.DB) *AnswerStore {
	return &AnswerStore{db: db}
}

// UpsertMany writes each value as its own row-level upsert inside one
// transaction. Elements not listed are never touched, so two concurrent
// saves of different elements cannot overwrite each other.
func (s *AnswerStore) UpsertMany(ctx context.Context, instanceID, userID string, values []AnswerValue) error {
	if len(values) == 0 {
		return nil
	}
	return WithTx(ctx, s.db, func(tx *sqlx.Tx) error {
		return s.UpsertManyTx(ctx, tx, instanceID, userID, values)
	})
}

// UpsertManyTx is UpsertMany inside tx.
func (s *AnswerStore) UpsertManyTx(ctx context.Context, tx *sqlx.Tx, instanceID, userID string, values []AnswerValue) error {
	if len(values) == 0 {
		return nil
	}
	now := time.Now().UTC()
	for _, v := range values {
		if err := upsertAnswer(ctx, tx, instanceID, userID, v, now); err != nil {
			return err
		}
	}
	_, err := tx.ExecContext(ctx, tx.Rebind(`UPDATE instances SET updated_at = ? WHERE id = ?`), now, instanceID)
	return err
}

func upsertAnswer(ctx context.Context, tx *sqlx.Tx, instanceID, userID string, v AnswerValue, now time.Time) error {
	update := tx.Rebind(`
		UPDATE answers SET value = ?, user_id = ?, updated_at = ? WHERE instance_id = ? AND element_id = ?
	`)
	res, err := tx.ExecContext(ctx, update, v.Value, userID, now, instanceID, v.ElementID)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err != nil {
		return err
	} else if n > 0 {
		return nil
	}

	_, err = tx.ExecContext(ctx, tx.Rebind(`
		INSERT INTO answers (instance_id, element_id, user_id, value, updated_at) VALUES (?, ?, ?, ?, ?)
	`), instanceID, v.ElementID, userID, v.Value, now)
	if isUniqueConstraintError(err) {
		// Another save inserted the row first; last write wins.
		_, err = tx.ExecContext(ctx, update, v.Value, userID, now, instanceID, v.ElementID)
	}
	return err
}

// ListByInstance returns every answer of the instance with its element's
// placeholder name, read in a single statement.
func (s *AnswerStore) ListByInstance(ctx context.Context, instanceID string) ([]*Answer, error) {
	var answers []*Answer
	err := s.db.SelectContext(ctx, &answers, s.db.Rebind(`
		SELECT a.instance_id, a.element_id, e.name AS element_name, a.user_id, a.value, a.updated_at
		FROM answers a
		INNER JOIN elements e ON e.id = a.element_id
		WHERE a.instance_id = ?
		ORDER BY e.name ASC
	`), instanceID)
	if err != nil {
		return nil, err
	}
	return answers, nil
}

// Delete clears the answer for one element. Missing answers are not an error.
func (s *AnswerStore) Delete(ctx context.Context, instanceID, elementID string) error {
	_, err := s.db.ExecContext(ctx, s.db.Rebind(`
		DELETE FROM answers WHERE instance_id = ? AND element_id = ?
	`), instanceID, elementID)
	return err
}
