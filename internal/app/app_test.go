package app

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/Teaching-Knowledge-Graph/TeachingKG/internal/catalogue/catalogtest"
	"github.com/Teaching-Knowledge-Graph/TeachingKG/internal/domain/authoring"
	"github.com/Teaching-Knowledge-Graph/TeachingKG/internal/domain/catalogue"
	"github.com/Teaching-Knowledge-Graph/TeachingKG/internal/platform/logger"
	"github.com/Teaching-Knowledge-Graph/TeachingKG/internal/services"
)

func testConfig(t *testing.T, backend string) Config {
	t.Helper()
	cfg := LoadConfigFrom(sourceOf(map[string]string{
		"TKG_TRIPLES_PATH":  catalogtest.Path(),
		"TKG_STORE_BACKEND": backend,
	}), logger.Nop())
	return cfg
}

func newApp(t *testing.T, cfg Config) *App {
	t.Helper()
	a, err := New(context.Background(), cfg, logger.Nop())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() { _ = a.Close(context.Background()) })
	return a
}

func TestNewWithSQLiteStore(t *testing.T) {
	a := newApp(t, testConfig(t, BackendSQLite))

	if got := a.Store.State(); got != services.StateAvailable {
		t.Fatalf("store state: want=%q got=%q", services.StateAvailable, got)
	}
	st := a.Catalogue.Stats()
	if st.Statements != catalogtest.StatementCount || st.LoadError != "" {
		t.Fatalf("catalogue stats: got=%+v", st)
	}

	ctx := context.Background()
	user, err := a.Store.CreateUser(ctx, authoring.NewUser{Username: "educator", Password: "correct horse battery"})
	if err != nil {
		t.Fatalf("CreateUser: %v", err)
	}
	hit, err := a.Catalogue.Detail(ctx, catalogtest.CourseAlgebra)
	if err != nil {
		t.Fatalf("Detail: %v", err)
	}
	draft, err := a.Composer.ComposeForCreate(ctx, []catalogue.Entity{hit.Entity})
	if err != nil {
		t.Fatalf("ComposeForCreate: %v", err)
	}
	id, err := a.Composer.Persist(ctx, draft, user.ID)
	if err != nil {
		t.Fatalf("Persist: %v", err)
	}
	view, err := a.Composer.ComposeForComplete(ctx, id)
	if err != nil {
		t.Fatalf("ComposeForComplete: %v", err)
	}
	if len(view.Dangling) != 0 || len(view.Sections) != 2 {
		t.Fatalf("view: want 2 resolved sections got sections=%d dangling=%+v", len(view.Sections), view.Dangling)
	}
}

func TestNewWithoutStore(t *testing.T) {
	a := newApp(t, testConfig(t, BackendNone))
	st := a.Store.Status()
	if st.State != services.StateDisabled || st.Backend != "none" {
		t.Fatalf("store status: got=%+v", st)
	}
	if len(a.Catalogue.Stats().Source) == 0 {
		t.Fatalf("catalogue should be loaded")
	}
}

func TestNewWithMissingCatalogueIsDegraded(t *testing.T) {
	cfg := testConfig(t, BackendNone)
	cfg.TriplesPath = filepath.Join(t.TempDir(), "missing.nt")
	a := newApp(t, cfg)
	st := a.Catalogue.Stats()
	if st.LoadError == "" || st.Statements != 0 {
		t.Fatalf("catalogue stats: want degraded empty got=%+v", st)
	}
	res, err := a.Catalogue.Search(context.Background(), "algebra", catalogue.Filters{})
	if err != nil || len(res) != 0 {
		t.Fatalf("Search on empty catalogue: got=%v err=%v", res, err)
	}
}

func TestNewRejectsInvalidConfig(t *testing.T) {
	cfg := testConfig(t, "mongo")
	if _, err := New(context.Background(), cfg, logger.Nop()); err == nil {
		t.Fatalf("expected config error")
	}
}
