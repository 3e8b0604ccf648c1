package repos

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/Teaching-Knowledge-Graph/TeachingKG/internal/data/repos/testutil"
	"github.com/Teaching-Knowledge-Graph/TeachingKG/internal/domain/faults"
)

func TestStoreUsers(t *testing.T) {
	store := NewStore(testutil.Database(t), testutil.Logger(t))
	ctx := context.Background()

	if err := store.Ping(ctx); err != nil {
		t.Fatalf("Ping: %v", err)
	}
	if err := store.EnsureSchema(ctx); err != nil {
		t.Fatalf("EnsureSchema: %v", err)
	}

	u := testutil.NewUser("ada-" + uuid.NewString()[:8])
	if err := store.CreateUser(ctx, u); err != nil {
		t.Fatalf("CreateUser: %v", err)
	}
	dup := testutil.NewUser(u.Username)
	if err := store.CreateUser(ctx, dup); faults.CodeOf(err) != faults.CodeConflict {
		t.Fatalf("CreateUser duplicate: want=%q got=%v", faults.CodeConflict, err)
	}

	got, err := store.GetUserByUsername(ctx, u.Username)
	if err != nil || got.ID != u.ID {
		t.Fatalf("GetUserByUsername: got=%+v err=%v", got, err)
	}
	if _, err := store.GetUser(ctx, uuid.New()); faults.CodeOf(err) != faults.CodeNotFound {
		t.Fatalf("GetUser missing: want=%q got=%v", faults.CodeNotFound, err)
	}
}

func TestStoreCourseLifecycle(t *testing.T) {
	store := NewStore(testutil.Database(t), testutil.Logger(t))
	ctx := context.Background()
	owner := uuid.New()

	c := testutil.NewCourse(owner, "Intro")
	c.CreatedAt = time.Now().UTC()
	c.UpdatedAt = c.CreatedAt
	if err := store.CreateCourse(ctx, c); err != nil {
		t.Fatalf("CreateCourse: %v", err)
	}

	got, err := store.GetCourse(ctx, c.ID)
	if err != nil {
		t.Fatalf("GetCourse: %v", err)
	}
	if len(got.Sections) != 2 {
		t.Fatalf("sections: want=2 got=%d", len(got.Sections))
	}

	next := got.Clone()
	next.Title = "Intro v2"
	next.Version = 2
	next.Sections = next.Sections[:1]
	if err := store.UpdateCourse(ctx, next, 1); err != nil {
		t.Fatalf("UpdateCourse: %v", err)
	}
	if err := store.UpdateCourse(ctx, next, 1); faults.CodeOf(err) != faults.CodeConflict {
		t.Fatalf("UpdateCourse stale: want=%q got=%v", faults.CodeConflict, err)
	}
	missing := next.Clone()
	missing.ID = uuid.New()
	if err := store.UpdateCourse(ctx, missing, 2); faults.CodeOf(err) != faults.CodeNotFound {
		t.Fatalf("UpdateCourse missing: want=%q got=%v", faults.CodeNotFound, err)
	}

	list, err := store.ListCoursesByOwner(ctx, owner)
	if err != nil {
		t.Fatalf("ListCoursesByOwner: %v", err)
	}
	if len(list) != 1 || list[0].Title != "Intro v2" || len(list[0].Sections) != 1 {
		t.Fatalf("ListCoursesByOwner: unexpected %+v", list)
	}

	if err := store.DeleteCourse(ctx, c.ID); err != nil {
		t.Fatalf("DeleteCourse: %v", err)
	}
	if err := store.DeleteCourse(ctx, c.ID); faults.CodeOf(err) != faults.CodeNotFound {
		t.Fatalf("DeleteCourse twice: want=%q got=%v", faults.CodeNotFound, err)
	}
	if _, err := store.GetCourse(ctx, c.ID); faults.CodeOf(err) != faults.CodeNotFound {
		t.Fatalf("GetCourse after delete: want=%q got=%v", faults.CodeNotFound, err)
	}
}

func TestStoreClosedIsUnavailable(t *testing.T) {
	d := testutil.Database(t)
	store := NewStore(d, testutil.Logger(t))
	if err := store.Close(context.Background()); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if got := faults.CodeOf(store.Ping(context.Background())); got != faults.CodePersistenceUnavailable {
		t.Fatalf("Ping after close: want=%q got=%q", faults.CodePersistenceUnavailable, got)
	}
}
