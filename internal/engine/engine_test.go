package engine_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/joestump/docmerge/internal/document"
	"github.com/joestump/docmerge/internal/engine"
	"github.com/joestump/docmerge/internal/store"
	"github.com/joestump/docmerge/internal/testutil"
)

type testEngine struct {
	Stores     *engine.Stores
	Reconciler *engine.Reconciler
	Answers    *engine.Answers
	Questions  *engine.Questions
	Merger     *engine.Merger
}

func newTestEngine(t *testing.T, mode engine.Mode) *testEngine {
	t.Helper()
	stores := engine.NewStores(testutil.NewTestDB(t))
	return &testEngine{
		Stores:     stores,
		Reconciler: engine.NewReconciler(stores, mode, 5*time.Second, nil),
		Answers:    engine.NewAnswers(stores, nil),
		Questions:  engine.NewQuestions(stores),
		Merger:     engine.NewMerger(stores, "____"),
	}
}

func textDoc(s string) document.Document {
	return document.Document{Name: "policy.txt", ContentType: "text/plain", Data: []byte(s)}
}

// createTemplate uploads text as a new template and fails the test on error.
func createTemplate(t *testing.T, te *testEngine, text string) *engine.Reconciliation {
	t.Helper()
	rec, err := te.Reconciler.Create(context.Background(), store.NewTemplate{Title: "Policy"}, textDoc(text))
	require.NoError(t, err)
	return rec
}

func names(vars []*store.Variable) []string {
	out := make([]string, 0, len(vars))
	for _, v := range vars {
		out = append(out, v.Name)
	}
	return out
}

func elementID(t *testing.T, te *testEngine, templateID, name string) string {
	t.Helper()
	elems, err := te.Stores.Elements.ListByTemplate(context.Background(), templateID, true)
	require.NoError(t, err)
	for _, e := range elems {
		if e.Name == name {
			return e.ID
		}
	}
	t.Fatalf("element %q not found", name)
	return ""
}

func variableID(t *testing.T, te *testEngine, templateID, name string) string {
	t.Helper()
	vars, err := te.Stores.Variables.ListByTemplate(context.Background(), templateID)
	require.NoError(t, err)
	for _, v := range vars {
		if v.Name == name {
			return v.ID
		}
	}
	t.Fatalf("variable %q not found", name)
	return ""
}
