package engine

import (
	"context"
	"fmt"
	"io"

	"github.com/jmoiron/sqlx"
	"gopkg.in/yaml.v3"

	"github.com/joestump/docmerge/internal/store"
)

// QuestionSet is the portable form of a template's authored questions,
// used to copy question text, options and sections between templates.
type QuestionSet struct {
	Template  string         `yaml:"template,omitempty"`
	Sections  []string       `yaml:"sections,omitempty"`
	Questions []QuestionSpec `yaml:"questions"`
}

// QuestionSpec is the authored content of one placeholder.
type QuestionSpec struct {
	Name     string           `yaml:"name"`
	Question string           `yaml:"question,omitempty"`
	Options  store.OptionList `yaml:"options,omitempty"`
	Section  string           `yaml:"section,omitempty"`
}

// ImportResult reports which placeholders of a question set were applied.
type ImportResult struct {
	Applied         []string
	Skipped         []string
	SectionsCreated []string
}

// DecodeQuestionSet reads a YAML question set, rejecting unknown keys.
func DecodeQuestionSet(r io.Reader) (*QuestionSet, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	var set QuestionSet
	if err := dec.Decode(&set); err != nil {
		return nil, fmt.Errorf("decode question set: %w", err)
	}
	return &set, nil
}

// EncodeQuestionSet writes set as YAML.
func EncodeQuestionSet(w io.Writer, set *QuestionSet) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(set); err != nil {
		return err
	}
	return enc.Close()
}

// Export returns the template's authored questions in document order.
func (q *Questions) Export(ctx context.Context, templateID string) (*QuestionSet, error) {
	tpl, err := q.stores.Templates.GetByID(ctx, templateID)
	if err != nil {
		return nil, err
	}
	sections, err := q.stores.Sections.ListByTemplate(ctx, templateID, false)
	if err != nil {
		return nil, err
	}
	vars, err := q.stores.Variables.ListByTemplate(ctx, templateID)
	if err != nil {
		return nil, err
	}

	set := &QuestionSet{Template: tpl.Title, Questions: make([]QuestionSpec, 0, len(vars))}
	titles := make(map[string]string, len(sections))
	for _, s := range sections {
		titles[s.ID] = s.Title
		set.Sections = append(set.Sections, s.Title)
	}
	for _, v := range vars {
		set.Questions = append(set.Questions, QuestionSpec{
			Name:     v.Name,
			Question: v.Question,
			Options:  v.Options,
			Section:  titles[v.SectionID.String],
		})
	}
	return set, nil
}

// Import applies set to the template's variables by placeholder name.
// Sections are matched by title and created when missing. Names the
// template does not have are skipped. All option lists are validated
// before anything is written, and the writes share one transaction.
func (q *Questions) Import(ctx context.Context, templateID string, set *QuestionSet) (*ImportResult, error) {
	for _, spec := range set.Questions {
		if err := spec.Options.Validate(); err != nil {
			return nil, fmt.Errorf("question %s: %w", spec.Name, err)
		}
	}
	if _, err := q.stores.Templates.GetByID(ctx, templateID); err != nil {
		return nil, err
	}
	vars, err := q.stores.Variables.ListByTemplate(ctx, templateID)
	if err != nil {
		return nil, err
	}
	varByName := make(map[string]*store.Variable, len(vars))
	for _, v := range vars {
		varByName[v.Name] = v
	}
	existing, err := q.stores.Sections.ListByTemplate(ctx, templateID, false)
	if err != nil {
		return nil, err
	}
	sectionByTitle := make(map[string]string, len(existing))
	for _, s := range existing {
		if _, dup := sectionByTitle[s.Title]; !dup {
			sectionByTitle[s.Title] = s.ID
		}
	}

	res := &ImportResult{}
	err = store.WithTx(ctx, q.stores.DB, func(tx *sqlx.Tx) error {
		ensureSection := func(title string) (string, error) {
			if id, ok := sectionByTitle[title]; ok {
				return id, nil
			}
			s, err := q.stores.Sections.CreateTx(ctx, tx, templateID, title)
			if err != nil {
				return "", err
			}
			sectionByTitle[title] = s.ID
			res.SectionsCreated = append(res.SectionsCreated, title)
			return s.ID, nil
		}
		for _, title := range set.Sections {
			if _, err := ensureSection(title); err != nil {
				return err
			}
		}

		for _, spec := range set.Questions {
			v, ok := varByName[spec.Name]
			if !ok {
				res.Skipped = append(res.Skipped, spec.Name)
				continue
			}
			upd := store.VariableUpdate{
				Question:  store.Some(spec.Question),
				Options:   store.Clear[store.OptionList](),
				SectionID: store.Clear[string](),
			}
			if spec.Options.Selectable() {
				upd.Options = store.Some(spec.Options)
			}
			if spec.Section != "" {
				id, err := ensureSection(spec.Section)
				if err != nil {
					return err
				}
				upd.SectionID = store.Some(id)
			}
			if _, err := q.stores.Variables.UpdateTx(ctx, tx, v.ID, upd); err != nil {
				return fmt.Errorf("question %s: %w", spec.Name, err)
			}
			res.Applied = append(res.Applied, spec.Name)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return res, nil
}
