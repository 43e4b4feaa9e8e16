package store

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

// Variable is one placeholder discovered in a template's source document,
// with the question an operator wrote for it.
type Variable struct {
	ID         string         `db:"id"`
	TemplateID string         `db:"template_id"`
	Name       string         `db:"name"`
	Question   string         `db:"question"`
	Options    OptionList     `db:"options"`
	SectionID  sql.NullString `db:"section_id"`
	Position   int            `db:"position"`
	CreatedAt  time.Time      `db:"created_at"`
	UpdatedAt  time.Time      `db:"updated_at"`
}

// VariableUpdate is a partial update. Unset fields are left alone; a cleared
// Options field converts the variable back to free-text and a cleared
// SectionID removes it from its section.
type VariableUpdate struct {
	Question  Optional[string]
	Options   Optional[OptionList]
	SectionID Optional[string]
}

// VariableDiff reports what a merge changed, by placeholder name.
type VariableDiff struct {
	Added   []string
	Removed []string
	Kept    []string
}

// VariableStore is the sqlx-backed store for variables.
type VariableStore struct {
	db *sqlx.DB
}

func NewVariableStore(db *sqlx.DB) *VariableStore {
	return &VariableStore{db: db}
}

// ListByTemplate returns the template's variables in document order.
func (s *VariableStore) ListByTemplate(ctx context.Context, templateID string) ([]*Variable, error) {
	return listVariables(ctx, s.db, templateID)
}

func listVariables(ctx context.Context, q sqlx.ExtContext, templateID string) ([]*Variable, error) {
	var vars []*Variable
	err := sqlx.SelectContext(ctx, q, &vars, q.Rebind(`
		SELECT * FROM variables WHERE template_id = ? ORDER BY position ASC, name ASC
	`), templateID)
	if err != nil {
		return nil, err
	}
	return vars, nil
}

// GetByID returns the variable matching id, or ErrNotFound.
func (s *VariableStore) GetByID(ctx context.Context, id string) (*Variable, error) {
	return getVariable(ctx, s.db, id)
}

func getVariable(ctx context.Context, q sqlx.ExtContext, id string) (*Variable, error) {
	var v Variable
	err := sqlx.GetContext(ctx, q, &v, q.Rebind(`SELECT * FROM variables WHERE id = ?`), id)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &v, nil
}

// Update applies upd to the variable and refreshes the template's elements
// in the same transaction.
func (s *VariableStore) Update(ctx context.Context, id string, upd VariableUpdate) (*Variable, error) {
	var out *Variable
	err := WithTx(ctx, s.db, func(tx *sqlx.Tx) error {
		var err error
		out, err = s.UpdateTx(ctx, tx, id, upd)
		return err
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// UpdateTx is Update inside tx.
func (s *VariableStore) UpdateTx(ctx context.Context, tx *sqlx.Tx, id string, upd VariableUpdate) (*Variable, error) {
	if upd.Options.Set && !upd.Options.Null {
		if err := upd.Options.Value.Validate(); err != nil {
			return nil, err
		}
	}

	v, err := getVariable(ctx, tx, id)
	if err != nil {
		return nil, err
	}
	now := time.Now().UTC()

	if upd.SectionID.Set && !upd.SectionID.Null && upd.SectionID.Value != "" {
		// The section check and the assignment are one statement so a
		// concurrent retire cannot leave the variable pointing at it.
		res, err := tx.ExecContext(ctx, tx.Rebind(`
			UPDATE variables SET section_id = ?, updated_at = ?
			WHERE id = ? AND EXISTS (
				SELECT 1 FROM sections WHERE id = ? AND template_id = ? AND status = ?
			)
		`), upd.SectionID.Value, now, id, upd.SectionID.Value, v.TemplateID, LifecycleActive)
		if err != nil {
			return nil, err
		}
		if err := requireAffected(res); err != nil {
			return nil, ErrSectionRetired
		}
	}

	var (
		sets []string
		args []any
	)
	if upd.Question.Set {
		sets = append(sets, "question = ?")
		args = append(args, upd.Question.Value)
	}
	if upd.Options.Set {
		if upd.Options.Null || len(upd.Options.Value) == 0 {
			sets = append(sets, "options = NULL")
		} else {
			sets = append(sets, "options = ?")
			args = append(args, upd.Options.Value)
		}
	}
	if upd.SectionID.Set && (upd.SectionID.Null || upd.SectionID.Value == "") {
		sets = append(sets, "section_id = NULL")
	}
	if len(sets) > 0 {
		sets = append(sets, "updated_at = ?")
		args = append(args, now, id)
		query := `UPDATE variables SET ` + strings.Join(sets, ", ") + ` WHERE id = ?`
		if _, err := tx.ExecContext(ctx, tx.Rebind(query), args...); err != nil {
			return nil, err
		}
	}

	if err := syncElementsTx(ctx, tx, v.TemplateID); err != nil {
		return nil, err
	}
	return getVariable(ctx, tx, id)
}

// ReplaceAllTx deletes every variable of the template and inserts one fresh,
// unanswered variable per name. Authored questions, options and section
// assignments are discarded.
func (s *VariableStore) ReplaceAllTx(ctx context.Context, tx *sqlx.Tx, templateID string, names []string) (VariableDiff, error) {
	existing, err := listVariables(ctx, tx, templateID)
	if err != nil {
		return VariableDiff{}, err
	}
	if _, err := tx.ExecContext(ctx, tx.Rebind(`DELETE FROM variables WHERE template_id = ?`), templateID); err != nil {
		return VariableDiff{}, err
	}
	now := time.Now().UTC()
	for pos, name := range names {
		if err := insertVariable(ctx, tx, templateID, name, pos, now); err != nil {
			return VariableDiff{}, err
		}
	}

	var diff VariableDiff
	old := make(map[string]bool, len(existing))
	for _, v := range existing {
		old[v.Name] = true
	}
	fresh := make(map[string]bool, len(names))
	for _, n := range names {
		fresh[n] = true
		if old[n] {
			diff.Kept = append(diff.Kept, n)
		} else {
			diff.Added = append(diff.Added, n)
		}
	}
	for _, v := range existing {
		if !fresh[v.Name] {
			diff.Removed = append(diff.Removed, v.Name)
		}
	}
	return diff, nil
}

// MergeTx reconciles the template's variables with names: variables whose
// name persists keep their question, options and section and move to their
// new position; names that disappeared are deleted; new names are inserted.
func (s *VariableStore) MergeTx(ctx context.Context, tx *sqlx.Tx, templateID string, names []string) (VariableDiff, error) {
	existing, err := listVariables(ctx, tx, templateID)
	if err != nil {
		return VariableDiff{}, err
	}
	byName := make(map[string]*Variable, len(existing))
	for _, v := range existing {
		byName[v.Name] = v
	}

	var diff VariableDiff
	now := time.Now().UTC()
	fresh := make(map[string]bool, len(names))
	for pos, name := range names {
		fresh[name] = true
		if v, ok := byName[name]; ok {
			diff.Kept = append(diff.Kept, name)
			if v.Position == pos {
				continue
			}
			if _, err := tx.ExecContext(ctx, tx.Rebind(`
				UPDATE variables SET position = ?, updated_at = ? WHERE id = ?
			`), pos, now, v.ID); err != nil {
				return VariableDiff{}, err
			}
			continue
		}
		diff.Added = append(diff.Added, name)
		if err := insertVariable(ctx, tx, templateID, name, pos, now); err != nil {
			return VariableDiff{}, err
		}
	}

	for _, v := range existing {
		if fresh[v.Name] {
			continue
		}
		diff.Removed = append(diff.Removed, v.Name)
		if _, err := tx.ExecContext(ctx, tx.Rebind(`DELETE FROM variables WHERE id = ?`), v.ID); err != nil {
			return VariableDiff{}, err
		}
	}
	return diff, nil
}

func insertVariable(ctx context.Context, tx *sqlx.Tx, templateID, name string, pos int, now time.Time) error {
	_, err := tx.ExecContext(ctx, tx.Rebind(`
		INSERT INTO variables (id, template_id, name, question, options, section_id, position, created_at, updated_at)
		VALUES (?, ?, ?, '', NULL, NULL, ?, ?, ?)
	`), uuid.New().String(), templateID, name, pos, now, now)
	return err
}
