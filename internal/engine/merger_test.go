package engine_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joestump/docmerge/internal/document"
	"github.com/joestump/docmerge/internal/engine"
	"github.com/joestump/docmerge/internal/placeholder"
	"github.com/joestump/docmerge/internal/store"
)

const greeting = "Hello ${name}, you work at ${company}."

func TestMerger_MergeLeavesUnansweredTokens(t *testing.T) {
	te := newTestEngine(t, engine.ModePreserve)
	ctx := context.Background()
	rec := createTemplate(t, te, greeting)
	inst, err := te.Stores.Instances.Create(ctx, rec.Template.ID, "alice", "")
	require.NoError(t, err)
	_, err = te.Answers.Save(ctx, inst.ID, "alice", engine.DraftAnswers{
		{ElementID: elementID(t, te, rec.Template.ID, "name"), Value: "Alex"},
	})
	require.NoError(t, err)

	doc, err := te.Merger.Merge(ctx, inst.ID, "alice")
	require.NoError(t, err)
	assert.Equal(t, "Hello Alex, you work at ${company}.", string(doc.Data))

	subst, err := te.Merger.AnswerMap(ctx, inst.ID, "alice")
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"name": "Alex"}, subst)

	_, err = te.Merger.Merge(ctx, inst.ID, "bob")
	assert.ErrorIs(t, err, store.ErrForbidden)
}

func TestMerger_Preview(t *testing.T) {
	te := newTestEngine(t, engine.ModePreserve)
	ctx := context.Background()
	rec := createTemplate(t, te, greeting)

	// Answers never leak into a preview.
	inst, err := te.Stores.Instances.Create(ctx, rec.Template.ID, "alice", "")
	require.NoError(t, err)
	_, err = te.Answers.Save(ctx, inst.ID, "alice", engine.DraftAnswers{
		{ElementID: elementID(t, te, rec.Template.ID, "name"), Value: "Alex"},
	})
	require.NoError(t, err)

	doc, err := te.Merger.Preview(ctx, rec.Template.ID)
	require.NoError(t, err)
	assert.Equal(t, "Hello ____, you work at ____.", string(doc.Data))
	assert.False(t, placeholder.Contains(string(doc.Data)))

	subst, err := te.Merger.PreviewMap(ctx, rec.Template.ID)
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"name": "____", "company": "____"}, subst)
}

func TestMerger_RetiredElementAnswersStillRender(t *testing.T) {
	te := newTestEngine(t, engine.ModePreserve)
	ctx := context.Background()
	rec := createTemplate(t, te, greeting)
	inst, err := te.Stores.Instances.Create(ctx, rec.Template.ID, "alice", "")
	require.NoError(t, err)
	_, err = te.Answers.Save(ctx, inst.ID, "alice", engine.DraftAnswers{
		{ElementID: elementID(t, te, rec.Template.ID, "company"), Value: "Acme"},
	})
	require.NoError(t, err)

	// The new version drops ${company}, then brings it back.
	_, err = te.Reconciler.Replace(ctx, rec.Template.ID, textDoc("Hello ${name}."))
	require.NoError(t, err)
	subst, err := te.Merger.AnswerMap(ctx, inst.ID, "alice")
	require.NoError(t, err)
	assert.Equal(t, "Acme", subst["company"])

	_, err = te.Reconciler.Replace(ctx, rec.Template.ID, textDoc(greeting))
	require.NoError(t, err)
	doc, err := te.Merger.Merge(ctx, inst.ID, "alice")
	require.NoError(t, err)
	assert.Equal(t, "Hello ${name}, you work at Acme.", string(doc.Data))
}

func TestMerger_PreviewOfCorruptSource(t *testing.T) {
	te := newTestEngine(t, engine.ModePreserve)
	ctx := context.Background()
	rec := createTemplate(t, te, "A ${a}")

	_, err := te.Reconciler.Replace(ctx, rec.Template.ID, document.Document{Name: "v2.docx", Data: []byte("x")})
	require.ErrorIs(t, err, engine.ErrExtractionFailed)

	_, err = te.Merger.Preview(ctx, rec.Template.ID)
	assert.ErrorIs(t, err, document.ErrCorrupt)
}
