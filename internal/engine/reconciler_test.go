package engine_test

import (
	"context"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joestump/docmerge/internal/document"
	"github.com/joestump/docmerge/internal/engine"
	"github.com/joestump/docmerge/internal/store"
)

func TestReconciler_Create(t *testing.T) {
	te := newTestEngine(t, engine.ModePreserve)
	rec := createTemplate(t, te, "Hello ${name}, you work at ${company}. Bye ${name}. ${}")

	assert.Equal(t, store.ExtractionOK, rec.Template.ExtractionStatus)
	if diff := cmp.Diff([]string{"name", "company"}, names(rec.Variables)); diff != "" {
		t.Errorf("variables (-want +got):\n%s", diff)
	}
	for _, v := range rec.Variables {
		assert.Empty(t, v.Question)
		assert.False(t, v.SectionID.Valid)
	}

	elems, err := te.Stores.Elements.ListByTemplate(context.Background(), rec.Template.ID, false)
	require.NoError(t, err)
	assert.Len(t, elems, 2)
}

func TestReconciler_Create_ExtractionFailureKeepsTemplate(t *testing.T) {
	te := newTestEngine(t, engine.ModePreserve)
	ctx := context.Background()
	bad := document.Document{Name: "broken.docx", Data: []byte("not a zip archive")}

	rec, err := te.Reconciler.Create(ctx, store.NewTemplate{Title: "Broken"}, bad)
	require.ErrorIs(t, err, engine.ErrExtractionFailed)
	require.NotNil(t, rec)
	assert.Equal(t, store.ExtractionFailed, rec.Template.ExtractionStatus)
	assert.NotEmpty(t, rec.Template.ExtractionError)
	assert.Empty(t, rec.Variables)

	saved, err := te.Stores.Templates.GetByID(ctx, rec.Template.ID)
	require.NoError(t, err)
	assert.Equal(t, "Broken", saved.Title)
	src, err := te.Stores.Sources.Get(ctx, saved.SourceRef)
	require.NoError(t, err)
	assert.Equal(t, bad.Data, src.Data)
}

func TestReconciler_Create_UnsupportedFormat(t *testing.T) {
	te := newTestEngine(t, engine.ModePreserve)
	_, err := te.Reconciler.Create(context.Background(), store.NewTemplate{Title: "x"},
		document.Document{Name: "image.png", Data: []byte{0x89}})
	assert.ErrorIs(t, err, document.ErrUnsupportedFormat)
}

func TestReconciler_Replace_PreservesAuthoredContent(t *testing.T) {
	te := newTestEngine(t, engine.ModePreserve)
	ctx := context.Background()
	rec := createTemplate(t, te, "${name} ${company} ${old}")
	tplID := rec.Template.ID

	_, err := te.Stores.Variables.Update(ctx, variableID(t, te, tplID, "company"), store.VariableUpdate{
		Question: store.Some("Who employs you?"),
	})
	require.NoError(t, err)
	oldElement := elementID(t, te, tplID, "old")

	rec, err = te.Reconciler.Replace(ctx, tplID, textDoc("${company} ${name} ${fresh}"))
	require.NoError(t, err)
	if diff := cmp.Diff([]string{"company", "name", "fresh"}, names(rec.Variables)); diff != "" {
		t.Errorf("variables (-want +got):\n%s", diff)
	}
	assert.Equal(t, []string{"fresh"}, rec.Diff.Added)
	assert.Equal(t, []string{"old"}, rec.Diff.Removed)
	assert.Equal(t, "Who employs you?", rec.Variables[0].Question)

	e, err := te.Stores.Elements.GetByID(ctx, oldElement)
	require.NoError(t, err)
	assert.False(t, e.Active(), "element of removed placeholder should be retired")
}

func TestReconciler_Replace_ResetMode(t *testing.T) {
	te := newTestEngine(t, engine.ModeReset)
	ctx := context.Background()
	rec := createTemplate(t, te, "${name} ${old}")
	tplID := rec.Template.ID

	_, err := te.Stores.Variables.Update(ctx, variableID(t, te, tplID, "name"), store.VariableUpdate{
		Question: store.Some("Your name?"),
	})
	require.NoError(t, err)

	rec, err = te.Reconciler.Replace(ctx, tplID, textDoc("${name} ${new}"))
	require.NoError(t, err)
	if diff := cmp.Diff([]string{"name", "new"}, names(rec.Variables)); diff != "" {
		t.Errorf("variables (-want +got):\n%s", diff)
	}
	assert.Empty(t, rec.Variables[0].Question)
}

func TestReconciler_Replace_Idempotent(t *testing.T) {
	for _, mode := range []engine.Mode{engine.ModePreserve, engine.ModeReset} {
		t.Run(string(mode), func(t *testing.T) {
			te := newTestEngine(t, mode)
			ctx := context.Background()
			text := "${b} ${a} ${b} ${c}"
			rec := createTemplate(t, te, text)
			before := names(rec.Variables)

			for i := 0; i < 2; i++ {
				rec, err := te.Reconciler.Replace(ctx, rec.Template.ID, textDoc(text))
				require.NoError(t, err)
				if diff := cmp.Diff(before, names(rec.Variables)); diff != "" {
					t.Errorf("run %d changed variables (-want +got):\n%s", i, diff)
				}
			}
		})
	}
}

func TestReconciler_Replace_FailureLeavesVariables(t *testing.T) {
	te := newTestEngine(t, engine.ModePreserve)
	ctx := context.Background()
	rec := createTemplate(t, te, "${name}")
	oldRef := rec.Template.SourceRef

	bad := document.Document{Name: "v2.docx", Data: []byte("garbage")}
	rec, err := te.Reconciler.Replace(ctx, rec.Template.ID, bad)
	require.ErrorIs(t, err, engine.ErrExtractionFailed)
	assert.Equal(t, []string{"name"}, names(rec.Variables))
	assert.Equal(t, "v2.docx", rec.Template.SourceName)
	assert.Equal(t, store.ExtractionFailed, rec.Template.ExtractionStatus)

	_, err = te.Stores.Sources.Get(ctx, oldRef)
	assert.ErrorIs(t, err, store.ErrNotFound, "replaced source should be dropped")

	// Retrying against the same broken source fails again.
	_, err = te.Reconciler.Retry(ctx, rec.Template.ID)
	assert.ErrorIs(t, err, engine.ErrExtractionFailed)
}

func TestReconciler_Retry(t *testing.T) {
	te := newTestEngine(t, engine.ModePreserve)
	rec := createTemplate(t, te, "${x} ${y}")

	again, err := te.Reconciler.Retry(context.Background(), rec.Template.ID)
	require.NoError(t, err)
	assert.Equal(t, names(rec.Variables), names(again.Variables))

	_, err = te.Reconciler.Retry(context.Background(), "missing")
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestParseMode(t *testing.T) {
	m, err := engine.ParseMode("")
	require.NoError(t, err)
	assert.Equal(t, engine.ModePreserve, m)

	m, err = engine.ParseMode("reset")
	require.NoError(t, err)
	assert.Equal(t, engine.ModeReset, m)

	_, err = engine.ParseMode("merge")
	assert.Error(t, err)
}
