package services

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/Teaching-Knowledge-Graph/TeachingKG/internal/domain/authoring"
	"github.com/Teaching-Knowledge-Graph/TeachingKG/internal/domain/faults"
	"github.com/Teaching-Knowledge-Graph/TeachingKG/internal/observability"
	"github.com/Teaching-Knowledge-Graph/TeachingKG/internal/platform/logger"
)

func startedStore(t *testing.T) (*GraphStore, *memStore) {
	t.Helper()
	backend := newMemStore()
	g := NewGraphStore(backend, logger.Nop(),
		WithTimeout(200*time.Millisecond),
		WithBcryptCost(bcrypt.MinCost),
		WithStoreMetrics(observability.NewMetrics()),
	)
	if err := g.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	return g, backend
}

func TestStartFailureDisablesStore(t *testing.T) {
	backend := newMemStore()
	backend.setDown(true)
	g := NewGraphStore(backend, logger.Nop(), WithTimeout(100*time.Millisecond))
	if err := g.Start(context.Background()); !faults.IsCode(err, faults.CodePersistenceUnavailable) {
		t.Fatalf("Start: want persistence_unavailable, got=%v", err)
	}
	st := g.Status()
	if st.State != StateDisabled || st.LastError == "" || st.LastCheck.IsZero() {
		t.Fatalf("Status after failed start: got=%+v", st)
	}

	before := backend.calls
	_, err := g.GetCourse(context.Background(), uuid.New())
	if !faults.IsCode(err, faults.CodePersistenceUnavailable) {
		t.Fatalf("GetCourse while disabled: got=%v", err)
	}
	if backend.calls != before {
		t.Fatalf("disabled store should fail fast without calling the backend")
	}

	backend.setDown(false)
	if err := g.Reconnect(context.Background()); err != nil {
		t.Fatalf("Reconnect: %v", err)
	}
	if g.State() != StateAvailable || g.Status().LastError != "" {
		t.Fatalf("after Reconnect: got=%+v", g.Status())
	}
}

func TestNilBackendIsDisabled(t *testing.T) {
	g := NewGraphStore(nil, logger.Nop())
	if err := g.Start(context.Background()); err == nil {
		t.Fatalf("Start without backend should fail")
	}
	if g.Status().Backend != "none" || g.State() != StateDisabled {
		t.Fatalf("Status: got=%+v", g.Status())
	}
	if _, err := g.CreateUser(context.Background(), authoring.NewUser{Username: "a", Password: "b"}); !faults.IsCode(err, faults.CodePersistenceUnavailable) {
		t.Fatalf("CreateUser: got=%v", err)
	}
}

func TestTimeoutDegradesAndRecovers(t *testing.T) {
	g, backend := startedStore(t)
	backend.setHang(true)
	start := time.Now()
	_, err := g.GetCourse(context.Background(), uuid.New())
	if !faults.IsCode(err, faults.CodePersistenceUnavailable) {
		t.Fatalf("hung call: want persistence_unavailable, got=%v", err)
	}
	if time.Since(start) > 2*time.Second {
		t.Fatalf("call should be bounded by the adapter timeout")
	}
	if g.State() != StateDegraded {
		t.Fatalf("State: want=degraded got=%s", g.State())
	}

	backend.setHang(false)
	_, err = g.GetCourse(context.Background(), uuid.New())
	if !faults.IsCode(err, faults.CodeNotFound) {
		t.Fatalf("after recovery: want not_found, got=%v", err)
	}
	if g.State() != StateAvailable {
		t.Fatalf("State: want=available got=%s", g.State())
	}
}

func TestConnectivityErrorDegrades(t *testing.T) {
	g, backend := startedStore(t)
	backend.setDown(true)
	if _, err := g.ListCoursesByOwner(context.Background(), uuid.New()); !faults.IsCode(err, faults.CodePersistenceUnavailable) {
		t.Fatalf("ListCoursesByOwner: got=%v", err)
	}
	if g.State() != StateDegraded {
		t.Fatalf("State: want=degraded got=%s", g.State())
	}
	if !strings.Contains(g.Status().LastError, "connection refused") {
		t.Fatalf("LastError: got=%q", g.Status().LastError)
	}
}

func TestCreateUserAndAuthenticate(t *testing.T) {
	g, backend := startedStore(t)
	ctx := context.Background()

	u, err := g.CreateUser(ctx, authoring.NewUser{Username: " ada ", Email: "ada@example.org", Password: "s3cret"})
	if err != nil {
		t.Fatalf("CreateUser: %v", err)
	}
	if u.Username != "ada" || u.Role != authoring.RoleEducator || u.DisplayName != "ada" {
		t.Fatalf("CreateUser: got=%+v", u)
	}
	stored := backend.users[u.ID]
	if stored.PasswordHash == "s3cret" || !strings.HasPrefix(stored.PasswordHash, "$2") {
		t.Fatalf("password must be stored as a bcrypt hash")
	}

	if _, err := g.CreateUser(ctx, authoring.NewUser{Username: "ada", Password: "x"}); !faults.IsCode(err, faults.CodeConflict) {
		t.Fatalf("duplicate username: want conflict, got=%v", err)
	}
	if _, err := g.CreateUser(ctx, authoring.NewUser{Role: "root"}); !faults.IsCode(err, faults.CodeValidation) {
		t.Fatalf("invalid user: want validation, got=%v", err)
	} else if got := faults.FieldsOf(err); len(got) != 3 {
		t.Fatalf("invalid user fields: got=%v", got)
	}

	if got, err := g.Authenticate(ctx, "ada", "s3cret"); err != nil || got.ID != u.ID {
		t.Fatalf("Authenticate: got=%v err=%v", got, err)
	}
	if _, err := g.Authenticate(ctx, "ada", "wrong"); !faults.IsCode(err, faults.CodeUnauthenticated) {
		t.Fatalf("wrong password: got=%v", err)
	}
	if _, err := g.Authenticate(ctx, "nobody", "s3cret"); !faults.IsCode(err, faults.CodeUnauthenticated) {
		t.Fatalf("unknown user: got=%v", err)
	}
}

func TestAuthenticateUnknownUserRunsBcrypt(t *testing.T) {
	g, _ := startedStore(t)
	if g.dummyHash != nil {
		t.Fatalf("dummy hash should be built lazily")
	}
	if _, err := g.Authenticate(context.Background(), "ghost", "whatever"); !faults.IsCode(err, faults.CodeUnauthenticated) {
		t.Fatalf("unknown user: got=%v", err)
	}
	cost, err := bcrypt.Cost(g.dummyHash)
	if err != nil {
		t.Fatalf("dummy hash: %v", err)
	}
	if cost != bcrypt.MinCost {
		t.Fatalf("dummy hash cost: want=%d got=%d", bcrypt.MinCost, cost)
	}
}

func TestSearchCoursesByTitle(t *testing.T) {
	g, _ := startedStore(t)
	ctx := context.Background()
	owner := uuid.New()
	for _, title := range []string{"Loops for beginners", "Matrices", "Advanced loops"} {
		c := &authoring.AuthoredCourse{OwnerID: owner, Title: title, Sections: []authoring.Section{{Heading: "x", Body: "y"}}}
		if _, err := g.CreateCourse(ctx, c); err != nil {
			t.Fatalf("CreateCourse: %v", err)
		}
	}
	found, err := g.SearchCoursesByTitle(ctx, "LOOPS", 0)
	if err != nil || len(found) != 2 {
		t.Fatalf("SearchCoursesByTitle: want=2 got=%d err=%v", len(found), err)
	}
	if _, err := g.SearchCoursesByTitle(ctx, "  ", 0); !faults.IsCode(err, faults.CodeValidation) {
		t.Fatalf("empty query: want validation, got=%v", err)
	}
}

func TestCourseLifecycle(t *testing.T) {
	g, _ := startedStore(t)
	ctx := context.Background()
	owner, _ := g.CreateUser(ctx, authoring.NewUser{Username: "owner", Password: "pw"})
	other, _ := g.CreateUser(ctx, authoring.NewUser{Username: "other", Password: "pw"})
	admin, _ := g.CreateUser(ctx, authoring.NewUser{Username: "admin", Password: "pw", Role: authoring.RoleAdmin})

	created, err := g.CreateCourse(ctx, &authoring.AuthoredCourse{
		OwnerID: owner.ID,
		Title:   "Remix",
		Sections: []authoring.Section{
			{Heading: "Intro", Body: "hello", Position: 7},
			{Heading: "Matrices", RefKind: authoring.RefTopic, RefIRI: "https://w3id.org/tkg/topic/matrices"},
		},
	})
	if err != nil {
		t.Fatalf("CreateCourse: %v", err)
	}
	if created.Version != 1 || created.ID == uuid.Nil || created.Sections[0].Position != 0 || created.Sections[1].CourseID != created.ID {
		t.Fatalf("CreateCourse: got=%+v", created)
	}

	edit := created.Clone()
	edit.Title = "Remix v2"
	if _, err := g.UpdateCourse(ctx, other.ID, edit); !faults.IsCode(err, faults.CodeForbidden) {
		t.Fatalf("update by non-owner: got=%v", err)
	}
	updated, err := g.UpdateCourse(ctx, owner.ID, edit)
	if err != nil {
		t.Fatalf("UpdateCourse: %v", err)
	}
	if updated.Version != 2 || updated.Title != "Remix v2" {
		t.Fatalf("UpdateCourse: got=%+v", updated)
	}
	// a second writer based on version 1 loses
	if _, err := g.UpdateCourse(ctx, owner.ID, edit); !faults.IsCode(err, faults.CodeConflict) {
		t.Fatalf("stale update: want conflict, got=%v", err)
	}

	list, err := g.ListCoursesByOwner(ctx, owner.ID)
	if err != nil || len(list) != 1 {
		t.Fatalf("ListCoursesByOwner: n=%d err=%v", len(list), err)
	}

	if err := g.DeleteCourse(ctx, other.ID, created.ID); !faults.IsCode(err, faults.CodeForbidden) {
		t.Fatalf("delete by non-owner: got=%v", err)
	}
	if err := g.DeleteCourse(ctx, admin.ID, created.ID); err != nil {
		t.Fatalf("delete by admin: %v", err)
	}
	if _, err := g.GetCourse(ctx, created.ID); !faults.IsCode(err, faults.CodeNotFound) {
		t.Fatalf("GetCourse after delete: got=%v", err)
	}
}

func TestCloseDisables(t *testing.T) {
	g, _ := startedStore(t)
	if err := g.Close(context.Background()); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if g.State() != StateDisabled {
		t.Fatalf("State after Close: got=%s", g.State())
	}
}
