package store_test

import (
	"context"
	"testing"

	"github.com/jmoiron/sqlx"

	"github.com/joestump/docmerge/internal/store"
	"github.com/joestump/docmerge/internal/testutil"
)

// testEnv holds all stores sharing one in-memory database.
type testEnv struct {
	DB        *sqlx.DB
	Templates *store.TemplateStore
	Sources   *store.SourceStore
	Variables *store.VariableStore
	Sections  *store.SectionStore
	Elements  *store.ElementStore
	Instances *store.InstanceStore
	Answers   *store.AnswerStore
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	db := testutil.NewTestDB(t)
	return &testEnv{
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

// seedTemplate creates a template whose variables are names, in order.
func seedTemplate(t *testing.T, env *testEnv, names ...string) *store.Template {
	t.Helper()
	ctx := context.Background()
	var tpl *store.Template
	err := store.WithTx(ctx, env.DB, func(tx *sqlx.Tx) error {
		src, err := env.Sources.PutTx(ctx, tx, "policy.txt", "text/plain", []byte("source"))
		if err != nil {
			return err
		}
		tpl, err = env.Templates.CreateTx(ctx, tx, store.NewTemplate{Title: "Policy", Description: "desc"}, src)
		if err != nil {
			return err
		}
		if _, err := env.Variables.MergeTx(ctx, tx, tpl.ID, names); err != nil {
			return err
		}
		return env.Elements.SyncTx(ctx, tx, tpl.ID)
	})
	if err != nil {
		t.Fatalf("seed template: %v", err)
	}
	return tpl
}

func variableNames(t *testing.T, env *testEnv, templateID string) []string {
	t.Helper()
	vars, err := env.Variables.ListByTemplate(context.Background(), templateID)
	if err != nil {
		t.Fatalf("ListByTemplate: %v", err)
	}
	names := make([]string, 0, len(vars))
	for _, v := range vars {
		names = append(names, v.Name)
	}
	return names
}

func variableByName(t *testing.T, env *testEnv, templateID, name string) *store.Variable {
	t.Helper()
	vars, err := env.Variables.ListByTemplate(context.Background(), templateID)
	if err != nil {
		t.Fatalf("ListByTemplate: %v", err)
	}
	for _, v := range vars {
		if v.Name == name {
			return v
		}
	}
	t.Fatalf("variable %q not found", name)
	return nil
}

func equalStrings(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
