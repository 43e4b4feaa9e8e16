// Package engine keeps a template's question set in line with its source
// document, validates and stores answers, and builds the substitution maps
// used to merge answers back into the document.
package engine

import (
	"errors"

	"github.com/jmoiron/sqlx"

	"github.com/joestump/docmerge/internal/store"
)

var (
	// ErrExtractionFailed is returned when a source document could not be
	// converted to text. The template and its source are still saved.
	ErrExtractionFailed = errors.New("variable extraction failed")

	// ErrUnknownOption is returned when a selectable answer names a label
	// that is not in the element's current option list.
	ErrUnknownOption = errors.New("unknown answer option")

	// ErrElementRetired is returned when an answer targets a retired element.
	ErrElementRetired = errors.New("element is retired")
)

// Stores bundles the stores the engine reads and writes.
type Stores struct {
	DB        *sqlx.DB
	Templates *store.TemplateStore
	Sources   *store.SourceStore
	Variables *store.VariableStore
	Sections  *store.SectionStore
	Elements  *store.ElementStore
	Instances *store.InstanceStore
	Answers   *store.AnswerStore
}

// NewStores builds every store over db.
func NewStores(db *sqlx.DB) *Stores {
	return &Stores{
		DB:        db,
		Templates: store.NewTemplateStore(db),
		Sources:   store.NewSourceStore(db),
		Variables: store.NewVariableStore(db),
		Sections:  store.NewSectionStore(db),
		Elements:  store.NewElementStore(db),
		Instances: store.NewInstanceStore(db),
		Answers:   store.NewAnswerStore(db),
	}
}
