package engine

import (
	"context"

	"github.com/joestump/docmerge/internal/placeholder"
	"github.com/joestump/docmerge/internal/store"
)

// Question is one answerable element as presented to a user.
type Question struct {
	ElementID string            `json:"element_id"`
	Name      string            `json:"name"`
	Kind      store.ElementKind `json:"kind"`
	// Text is the question with references to already answered
	// placeholders filled in. RawText is the authored text.
	Text     string         `json:"text"`
	RawText  string         `json:"raw_text"`
	Options  []store.Option `json:"options,omitempty"`
	Answer   string         `json:"answer,omitempty"`
	Answered bool           `json:"answered"`
}

// QuestionGroup is the questions of one section, in document order. A nil
// Section holds the unsectioned questions.
type QuestionGroup struct {
	Section   *store.Section `json:"section"`
	Questions []Question     `json:"questions"`
}

// Questions assembles the question set of a template.
type Questions struct {
	stores *Stores
}

func NewQuestions(stores *Stores) *Questions {
	return &Questions{stores: stores}
}

// List returns the template's active questions grouped by active section,
// followed by the unsectioned group. Variables pointing at a missing or
// retired section are listed as unsectioned. When instanceID is set the
// instance must belong to userID; its answers are attached and used to
// resolve cross-references in question text.
func (q *Questions) List(ctx context.Context, templateID, instanceID, userID string) ([]QuestionGroup, error) {
	if _, err := q.stores.Templates.GetByID(ctx, templateID); err != nil {
		return nil, err
	}

	answers := map[string]string{}
	if instanceID != "" {
		inst, err := q.stores.Instances.GetOwned(ctx, instanceID, userID)
		if err != nil {
			return nil, err
		}
		if inst.TemplateID != templateID {
			return nil, store.ErrNotFound
		}
		list, err := q.stores.Answers.ListByInstance(ctx, instanceID)
		if err != nil {
			return nil, err
		}
		for _, a := range list {
			answers[a.ElementName] = a.Value
		}
	}

	sections, err := q.stores.Sections.ListByTemplate(ctx, templateID, false)
	if err != nil {
		return nil, err
	}
	vars, err := q.stores.Variables.ListByTemplate(ctx, templateID)
	if err != nil {
		return nil, err
	}
	elems, err := q.stores.Elements.ListByTemplate(ctx, templateID, false)
	if err != nil {
		return nil, err
	}
	elemByName := make(map[string]*store.Element, len(elems))
	for _, e := range elems {
		elemByName[e.Name] = e
	}

	groups := make([]QuestionGroup, 0, len(sections)+1)
	groupIndex := make(map[string]int, len(sections))
	for _, s := range sections {
		groupIndex[s.ID] = len(groups)
		groups = append(groups, QuestionGroup{Section: s, Questions: []Question{}})
	}
	var unsectioned []Question

	lookup := placeholder.MapLookup(answers)
	for _, v := range vars {
		e, ok := elemByName[v.Name]
		if !ok {
			continue
		}
		value, answered := answers[v.Name]
		question := Question{
			ElementID: e.ID,
			Name:      v.Name,
			Kind:      e.Kind,
			Text:      placeholder.ResolveReferences(v.Question, lookup),
			RawText:   v.Question,
			Options:   v.Options,
			Answer:    value,
			Answered:  answered,
		}
		if i, ok := groupIndex[v.SectionID.String]; ok && v.SectionID.Valid {
			groups[i].Questions = append(groups[i].Questions, question)
			continue
		}
		unsectioned = append(unsectioned, question)
	}
	if len(unsectioned) > 0 {
		groups = append(groups, QuestionGroup{Questions: unsectioned})
	}
	return groups, nil
}
