package course

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/Teaching-Knowledge-Graph/TeachingKG/internal/data/repos/testutil"
	"github.com/Teaching-Knowledge-Graph/TeachingKG/internal/domain/authoring"
)

func TestAuthoredCourseRepo(t *testing.T) {
	db := testutil.DB(t)
	tx := testutil.Tx(t, db)
	log := testutil.Logger(t)
	courses := NewAuthoredCourseRepo(db, log)
	sections := NewSectionRepo(db, log)
	ctx := context.Background()

	owner := uuid.New()
	c := testutil.NewCourse(owner, "Loops for beginners")
	c.Metadata = authoring.CourseMetadata{Language: "en", LearningOutcomes: []string{"write a for loop"}}
	c.CreatedAt = time.Now().UTC()
	c.UpdatedAt = c.CreatedAt

	if _, err := courses.Create(ctx, tx, []*authoring.AuthoredCourse{c}); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if err := sections.ReplaceForCourse(ctx, tx, c.ID, c.Sections); err != nil {
		t.Fatalf("ReplaceForCourse: %v", err)
	}

	got, err := courses.GetByIDs(ctx, tx, []uuid.UUID{c.ID})
	if err != nil {
		t.Fatalf("GetByIDs: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("GetByIDs: expected 1 course, got %d", len(got))
	}
	if got[0].Metadata.Language != "en" || len(got[0].Metadata.LearningOutcomes) != 1 {
		t.Fatalf("metadata: unexpected %+v", got[0].Metadata)
	}
	if len(got[0].Snapshots) != 1 || got[0].Snapshots[0].Label != "Loops" {
		t.Fatalf("snapshots: unexpected %+v", got[0].Snapshots)
	}
	if len(got[0].Sections) != 2 || got[0].Sections[0].Heading != "Loops" || got[0].Sections[1].Body != "bring a laptop" {
		t.Fatalf("sections: unexpected %+v", got[0].Sections)
	}

	next := got[0].Clone()
	next.Title = "Loops, revised"
	next.Version = 2
	ok, err := courses.UpdateIfVersion(ctx, tx, next, 1)
	if err != nil || !ok {
		t.Fatalf("UpdateIfVersion: ok=%v err=%v", ok, err)
	}
	ok, err = courses.UpdateIfVersion(ctx, tx, next, 1)
	if err != nil {
		t.Fatalf("UpdateIfVersion (stale): %v", err)
	}
	if ok {
		t.Fatalf("UpdateIfVersion (stale): expected no row written")
	}

	listed, err := courses.ListByOwner(ctx, tx, owner)
	if err != nil {
		t.Fatalf("ListByOwner: %v", err)
	}
	if len(listed) != 1 || listed[0].Title != "Loops, revised" || listed[0].Version != 2 {
		t.Fatalf("ListByOwner: unexpected %+v", listed)
	}

	exists, err := courses.Exists(ctx, tx, c.ID)
	if err != nil || !exists {
		t.Fatalf("Exists: want=true got=%v err=%v", exists, err)
	}

	if err := sections.DeleteByCourseIDs(ctx, tx, []uuid.UUID{c.ID}); err != nil {
		t.Fatalf("DeleteByCourseIDs: %v", err)
	}
	n, err := courses.DeleteByIDs(ctx, tx, []uuid.UUID{c.ID})
	if err != nil || n != 1 {
		t.Fatalf("DeleteByIDs: want=1 got=%d err=%v", n, err)
	}
	exists, err = courses.Exists(ctx, tx, c.ID)
	if err != nil || exists {
		t.Fatalf("Exists after delete: want=false got=%v err=%v", exists, err)
	}
}

func TestSectionReplaceStampsCourse(t *testing.T) {
	db := testutil.DB(t)
	tx := testutil.Tx(t, db)
	log := testutil.Logger(t)
	courses := NewAuthoredCourseRepo(db, log)
	sections := NewSectionRepo(db, log)
	ctx := context.Background()

	c := testutil.NewCourse(uuid.New(), "Stamped")
	c.CreatedAt = time.Now().UTC()
	c.UpdatedAt = c.CreatedAt
	if _, err := courses.Create(ctx, tx, []*authoring.AuthoredCourse{c}); err != nil {
		t.Fatalf("Create: %v", err)
	}
	replacement := []authoring.Section{{Position: 0, Heading: "Only", Body: "text"}}
	if err := sections.ReplaceForCourse(ctx, tx, c.ID, replacement); err != nil {
		t.Fatalf("ReplaceForCourse: %v", err)
	}
	got, err := courses.GetByIDs(ctx, tx, []uuid.UUID{c.ID})
	if err != nil || len(got) != 1 {
		t.Fatalf("GetByIDs: %v", err)
	}
	if len(got[0].Sections) != 1 {
		t.Fatalf("sections: want=1 got=%d", len(got[0].Sections))
	}
	s := got[0].Sections[0]
	if s.CourseID != c.ID || s.ID == uuid.Nil {
		t.Fatalf("section not stamped: %+v", s)
	}
}

func TestSearchByTitle(t *testing.T) {
	db := testutil.DB(t)
	tx := testutil.Tx(t, db)
	log := testutil.Logger(t)
	courses := NewAuthoredCourseRepo(db, log)
	ctx := context.Background()

	base := time.Now().UTC()
	var batch []*authoring.AuthoredCourse
	for i, title := range []string{"Loops for beginners", "Advanced LOOPS", "Loops at 100% speed", "Matrices"} {
		c := testutil.NewCourse(uuid.New(), title)
		c.Facilitators = []authoring.Facilitator{{Name: "Jane", Affiliation: "TU Delft", Email: "jane@example.org", Roles: []string{"lecturer"}}}
		c.CreatedAt = base.Add(time.Duration(i) * time.Second)
		c.UpdatedAt = c.CreatedAt
		batch = append(batch, c)
	}
	if _, err := courses.Create(ctx, tx, batch); err != nil {
		t.Fatalf("Create: %v", err)
	}

	got, err := courses.SearchByTitle(ctx, tx, "loops", 0)
	if err != nil {
		t.Fatalf("SearchByTitle: %v", err)
	}
	if len(got) != 3 || got[0].Title != "Loops at 100% speed" {
		t.Fatalf("SearchByTitle: want 3 newest first, got %d (%+v)", len(got), got)
	}
	if len(got[0].Facilitators) != 1 || got[0].Facilitators[0].Affiliation != "TU Delft" {
		t.Fatalf("facilitators: got=%+v", got[0].Facilitators)
	}

	got, err = courses.SearchByTitle(ctx, tx, "100%", 0)
	if err != nil || len(got) != 1 {
		t.Fatalf("SearchByTitle with wildcard: want=1 got=%d err=%v", len(got), err)
	}
	got, err = courses.SearchByTitle(ctx, tx, "loops", 1)
	if err != nil || len(got) != 1 {
		t.Fatalf("SearchByTitle limit: want=1 got=%d err=%v", len(got), err)
	}
}
