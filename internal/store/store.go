// Package store persists templates, their variables, sections and elements,
// and the instances and answers users create from them.
package store

import (
	"context"
	"errors"
	"strings"

	"github.com/jmoiron/sqlx"
)

var (
	// ErrNotFound is returned when a requested entity does not exist.
	ErrNotFound = errors.New("not found")

	// ErrSectionRetired is returned when a variable is assigned to a section
	// that is retired or belongs to another template.
	ErrSectionRetired = errors.New("section is retired or not part of this template")

	// ErrForbidden is returned when a user acts on an instance they do not own.
	ErrForbidden = errors.New("instance belongs to another user")
)

// Lifecycle is the soft-delete state shared by sections and elements.
// Readers filter on LifecycleActive unless they ask for retired rows.
type Lifecycle string

const (
	LifecycleActive  Lifecycle = "active"
	LifecycleRetired Lifecycle = "retired"
)

// WithTx runs fn inside a transaction, committing when fn returns nil.
func WithTx(ctx context.Context, db *sqlx.DB, fn func(tx *sqlx.Tx) error) error {
	tx, err := db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if err := fn(tx); err != nil {
		return err
	}
	return tx.Commit()
}

// isUniqueConstraintError checks whether err indicates a unique constraint violation.
// Works across SQLite, PostgreSQL, and MySQL.
func isUniqueConstraintError(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "unique constraint") || // SQLite & PostgreSQL
		strings.Contains(msg, "duplicate key") || // PostgreSQL
		strings.Contains(msg, "duplicate entry") // MySQL
}
