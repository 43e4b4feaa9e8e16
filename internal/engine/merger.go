package engine

import (
	"context"
	"fmt"

	"github.com/joestump/docmerge/internal/document"
	"github.com/joestump/docmerge/internal/placeholder"
)

// Merger builds substitution maps and substituted documents.
type Merger struct {
	stores *Stores
	filler string
}

func NewMerger(stores *Stores, filler string) *Merger {
	if filler == "" {
		filler = placeholder.DefaultFiller
	}
	return &Merger{stores: stores, filler: filler}
}

// PreviewMap maps every variable and element of the template to the blank
// filler, regardless of any answers.
func (m *Merger) PreviewMap(ctx context.Context, templateID string) (map[string]string, error) {
	if _, err := m.stores.Templates.GetByID(ctx, templateID); err != nil {
		return nil, err
	}
	vars, err := m.stores.Variables.ListByTemplate(ctx, templateID)
	if err != nil {
		return nil, err
	}
	elems, err := m.stores.Elements.ListByTemplate(ctx, templateID, true)
	if err != nil {
		return nil, err
	}
	subst := make(map[string]string, len(vars)+len(elems))
	for _, v := range vars {
		subst[v.Name] = m.filler
	}
	for _, e := range elems {
		subst[e.Name] = m.filler
	}
	return subst, nil
}

// AnswerMap returns the instance's answers as a placeholder name to text
// map. Unanswered elements are absent so their tokens stay visible. The
// answers are read in one statement, giving a consistent snapshot.
func (m *Merger) AnswerMap(ctx context.Context, instanceID, userID string) (map[string]string, error) {
	if _, err := m.stores.Instances.GetOwned(ctx, instanceID, userID); err != nil {
		return nil, err
	}
	return m.answerMap(ctx, instanceID)
}

func (m *Merger) answerMap(ctx context.Context, instanceID string) (map[string]string, error) {
	answers, err := m.stores.Answers.ListByInstance(ctx, instanceID)
	if err != nil {
		return nil, err
	}
	subst := make(map[string]string, len(answers))
	for _, a := range answers {
		subst[a.ElementName] = a.Value
	}
	return subst, nil
}

// Preview returns the template's source with every placeholder blanked.
// Tokens present in the document but unknown to the store (for example after
// a failed extraction) are blanked as well.
func (m *Merger) Preview(ctx context.Context, templateID string) (document.Document, error) {
	subst, err := m.PreviewMap(ctx, templateID)
	if err != nil {
		return document.Document{}, err
	}
	doc, err := m.source(ctx, templateID)
	if err != nil {
		return document.Document{}, err
	}
	if text, err := document.Extract(ctx, doc); err == nil {
		for _, name := range placeholder.Scan(text) {
			subst[name] = m.filler
		}
	}
	out, err := document.Substitute(ctx, doc, subst)
	if err != nil {
		return document.Document{}, fmt.Errorf("preview template %s: %w", templateID, err)
	}
	return out, nil
}

// Merge returns the template's source with the instance's answers
// substituted in.
func (m *Merger) Merge(ctx context.Context, instanceID, userID string) (document.Document, error) {
	inst, err := m.stores.Instances.GetOwned(ctx, instanceID, userID)
	if err != nil {
		return document.Document{}, err
	}
	subst, err := m.answerMap(ctx, instanceID)
	if err != nil {
		return document.Document{}, err
	}
	doc, err := m.source(ctx, inst.TemplateID)
	if err != nil {
		return document.Document{}, err
	}
	out, err := document.Substitute(ctx, doc, subst)
	if err != nil {
		return document.Document{}, fmt.Errorf("merge instance %s: %w", instanceID, err)
	}
	return out, nil
}

func (m *Merger) source(ctx context.Context, templateID string) (document.Document, error) {
	tpl, err := m.stores.Templates.GetByID(ctx, templateID)
	if err != nil {
		return document.Document{}, err
	}
	src, err := m.stores.Sources.Get(ctx, tpl.SourceRef)
	if err != nil {
		return document.Document{}, fmt.Errorf("load source for template %s: %w", templateID, err)
	}
	return document.Document{Name: src.Name, ContentType: src.ContentType, Data: src.Data}, nil
}
