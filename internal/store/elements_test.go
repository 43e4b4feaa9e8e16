package store_test

import (
	"context"
	"testing"

	"github.com/jmoiron/sqlx"

	"github.com/joestump/docmerge/internal/store"
)

func elementByName(t *testing.T, env *testEnv, templateID, name string) *store.Element {
	t.Helper()
	elems, err := env.Elements.ListByTemplate(context.Background(), templateID, true)
	if err != nil {
		t.Fatalf("ListByTemplate: %v", err)
	}
	for _, e := range elems {
		if e.Name == name {
			return e
		}
	}
	t.Fatalf("element %q not found", name)
	return nil
}

func mergeNames(t *testing.T, env *testEnv, templateID string, names ...string) {
	t.Helper()
	ctx := context.Background()
	err := store.WithTx(ctx, env.DB, func(tx *sqlx.Tx) error {
		if _, err := env.Variables.MergeTx(ctx, tx, templateID, names); err != nil {
			return err
		}
		return env.Elements.SyncTx(ctx, tx, templateID)
	})
	if err != nil {
		t.Fatalf("merge: %v", err)
	}
}

func TestElementStore_SyncFollowsVariables(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	tpl := seedTemplate(t, env, "name", "region")

	region := variableByName(t, env, tpl.ID, "region")
	_, err := env.Variables.Update(ctx, region.ID, store.VariableUpdate{
		Question: store.Some("Region?"),
		Options:  store.Some(store.OptionList{{Label: "EU", Result: "European Union"}}),
	})
	if err != nil {
		t.Fatalf("Update: %v", err)
	}

	e := elementByName(t, env, tpl.ID, "region")
	if e.Kind != store.ElementSelect {
		t.Errorf("kind = %q, want select", e.Kind)
	}
	if e.Question != "Region?" || len(e.Options) != 1 {
		t.Errorf("element not synced: %+v", e)
	}
	if got := elementByName(t, env, tpl.ID, "name"); got.Kind != store.ElementText {
		t.Errorf("name kind = %q, want text", got.Kind)
	}
}

func TestElementStore_RetireAndReactivateKeepsID(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	tpl := seedTemplate(t, env, "name", "company")
	before := elementByName(t, env, tpl.ID, "company")

	mergeNames(t, env, tpl.ID, "name")
	retired := elementByName(t, env, tpl.ID, "company")
	if retired.Active() {
		t.Fatal("element should be retired once its placeholder is gone")
	}
	active, err := env.Elements.ListByTemplate(ctx, tpl.ID, false)
	if err != nil {
		t.Fatalf("ListByTemplate: %v", err)
	}
	if len(active) != 1 || active[0].Name != "name" {
		t.Errorf("active elements = %d", len(active))
	}

	mergeNames(t, env, tpl.ID, "name", "company")
	back := elementByName(t, env, tpl.ID, "company")
	if !back.Active() {
		t.Error("element should be reactivated")
	}
	if back.ID != before.ID {
		t.Errorf("element id changed: %s -> %s", before.ID, back.ID)
	}
}
