package services

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/Teaching-Knowledge-Graph/TeachingKG/internal/catalogue/search"
	"github.com/Teaching-Knowledge-Graph/TeachingKG/internal/domain/authoring"
	"github.com/Teaching-Knowledge-Graph/TeachingKG/internal/domain/catalogue"
	"github.com/Teaching-Knowledge-Graph/TeachingKG/internal/domain/faults"
	"github.com/Teaching-Knowledge-Graph/TeachingKG/internal/observability"
	"github.com/Teaching-Knowledge-Graph/TeachingKG/internal/platform/logger"
	"github.com/Teaching-Knowledge-Graph/TeachingKG/internal/vocabulary"
)

// CourseStore is the part of the property store the composer needs.
type CourseStore interface {
	CreateCourse(ctx context.Context, c *authoring.AuthoredCourse) (*authoring.AuthoredCourse, error)
	GetCourse(ctx context.Context, id uuid.UUID) (*authoring.AuthoredCourse, error)
	ListCoursesByOwner(ctx context.Context, ownerID uuid.UUID) ([]*authoring.AuthoredCourse, error)
}

type ComposerOption func(*Composer)

func WithComposerMetrics(m *observability.Metrics) ComposerOption {
	return func(c *Composer) { c.metrics = m }
}

// Composer joins catalogue entities with authored courses for the create
// and complete workflows.
type Composer struct {
	catalogue *search.Service
	store     CourseStore
	log       *logger.Logger
	metrics   *observability.Metrics
	tracer    trace.Tracer
}

func NewComposer(cat *search.Service, store CourseStore, log *logger.Logger, opts ...ComposerOption) *Composer {
	if log == nil {
		log = logger.Nop()
	}
	c := &Composer{
		catalogue: cat,
		store:     store,
		log:       log.With("service", "Composer"),
		tracer:    observability.Tracer(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// ComposeForCreate seeds an unsaved course from selected catalogue entities.
// Courses expand to the topics they teach; every other entity becomes one
// section. Repeated IRIs yield a single section. Display attributes are
// copied into Snapshots and never resynced. Name clashes with the catalogue
// and between sections are reported in Collisions.
func (c *Composer) ComposeForCreate(ctx context.Context, selected []catalogue.Entity) (*authoring.DraftComposite, error) {
	_, span := c.tracer.Start(ctx, "compose.create")
	defer span.End()
	span.SetAttributes(attribute.Int("compose.selected", len(selected)))

	idx := c.catalogue.Index()
	draft := &authoring.DraftComposite{
		Course:     authoring.AuthoredCourse{Sections: []authoring.Section{}},
		Sources:    []string{},
		Collisions: []authoring.NameCollision{},
	}
	covered := map[string]struct{}{}
	snapped := map[string]struct{}{}
	addSnapshot := func(e catalogue.Entity, kind authoring.RefKind) {
		if _, ok := snapped[e.IRI]; ok {
			return
		}
		snapped[e.IRI] = struct{}{}
		draft.Course.Snapshots = append(draft.Course.Snapshots, authoring.Snapshot{
			IRI:        e.IRI,
			Kind:       kind,
			Label:      e.Label,
			Types:      append([]string(nil), e.Types...),
			Attributes: e.Clone().Attributes,
		})
	}
	addSection := func(e catalogue.Entity, kind authoring.RefKind) {
		if _, ok := covered[e.IRI]; ok {
			return
		}
		covered[e.IRI] = struct{}{}
		draft.Course.Sections = append(draft.Course.Sections, authoring.Section{
			Position: len(draft.Course.Sections),
			Heading:  e.Label,
			RefKind:  kind,
			RefIRI:   e.IRI,
		})
		addSnapshot(e, kind)
	}

	seededFrom := ""
	for _, sel := range selected {
		iri := strings.TrimSpace(sel.IRI)
		if iri == "" {
			continue
		}
		// prefer the live entity over whatever the caller held on to
		e, ok := idx.Entity(iri)
		if !ok {
			e = sel.Clone()
			e.IRI = iri
		}
		draft.Sources = append(draft.Sources, iri)

		if !e.HasType(vocabulary.SchemaCourse) {
			addSection(e, authoring.RefTopic)
			continue
		}
		addSnapshot(e, authoring.RefCourse)
		if seededFrom == "" {
			seededFrom = iri
			draft.Course.Title = idx.FirstLiteral(iri, vocabulary.SchemaName)
			if draft.Course.Title == "" {
				draft.Course.Title = e.Label
			}
			draft.Course.Description = idx.FirstLiteral(iri, vocabulary.SchemaDescription)
			draft.Course.Metadata.Language = idx.FirstLiteral(iri, vocabulary.SchemaInLanguage)
		}
		topics := c.catalogue.TopicIRIs(iri)
		if len(topics) == 0 {
			// a course without topics is cited whole
			addSection(e, authoring.RefCourse)
			continue
		}
		for _, t := range topics {
			te, ok := idx.Entity(t)
			if !ok {
				continue
			}
			addSection(te, authoring.RefTopic)
		}
	}

	draft.Collisions = c.nameCollisions(&draft.Course)
	span.SetAttributes(
		attribute.Int("compose.sections", len(draft.Course.Sections)),
		attribute.Int("compose.collisions", len(draft.Collisions)),
	)
	return draft, nil
}

// ComposeForComplete loads an authored course and resolves it against the
// catalogue. Only loading the course can fail; if the owner's other courses
// cannot be listed the view is returned without those collisions.
func (c *Composer) ComposeForComplete(ctx context.Context, courseID uuid.UUID) (*authoring.CompositeView, error) {
	ctx, span := c.tracer.Start(ctx, "compose.complete")
	defer span.End()

	course, err := c.store.GetCourse(ctx, courseID)
	if err != nil {
		return nil, err
	}
	view, err := c.ResolveView(ctx, course)
	if err != nil {
		return nil, err
	}
	owned, err := c.ownerCollisions(ctx, course.OwnerID, course.ID, course.Title)
	if err != nil {
		c.log.Warn("owner collision check skipped", "course_id", course.ID, "error", err)
		return view, nil
	}
	view.Collisions = append(view.Collisions, owned...)
	return view, nil
}

// ResolveView resolves every section reference of course. References that
// do not resolve become DanglingReference entries; none are dropped.
func (c *Composer) ResolveView(ctx context.Context, course *authoring.AuthoredCourse) (*authoring.CompositeView, error) {
	_, span := c.tracer.Start(ctx, "compose.resolve")
	defer span.End()
	if course == nil {
		return nil, faults.Validation("resolve_view", []string{"course"})
	}

	idx := c.catalogue.Index()
	view := &authoring.CompositeView{
		Course:        *course.Clone(),
		Sections:      make([]authoring.ResolvedSection, 0, len(course.Sections)),
		Dangling:      []authoring.DanglingReference{},
		Collisions:    c.nameCollisions(course),
		Complementary: []catalogue.Entity{},
	}
	covered := map[string]struct{}{}
	var coveredOrder []string
	cover := func(iri string) {
		if _, ok := covered[iri]; ok {
			return
		}
		covered[iri] = struct{}{}
		coveredOrder = append(coveredOrder, iri)
	}

	for i, sec := range course.Sections {
		rs := authoring.ResolvedSection{Section: sec}
		if !sec.IsReference() {
			view.Sections = append(view.Sections, rs)
			continue
		}
		reason := ""
		iri := strings.TrimSpace(sec.RefIRI)
		e, ok := idx.Entity(iri)
		switch {
		case iri == "":
			reason = "empty reference"
		case !ok:
			reason = "not found in catalogue"
		case sec.RefKind == authoring.RefCourse && !e.HasType(vocabulary.SchemaCourse):
			reason = "referenced entity is not a course"
		}
		if reason != "" {
			rs.Dangling = true
			view.Dangling = append(view.Dangling, authoring.DanglingReference{
				SectionIndex: i,
				Heading:      sec.Heading,
				Ref:          sec.Ref(),
				Reason:       reason,
			})
			view.Sections = append(view.Sections, rs)
			continue
		}
		rs.Entity = &e
		view.Sections = append(view.Sections, rs)

		if sec.RefKind == authoring.RefCourse {
			for _, t := range c.catalogue.TopicIRIs(iri) {
				cover(t)
			}
			continue
		}
		cover(iri)
	}

	view.Complementary = c.complementary(covered, coveredOrder)
	if n := len(view.Dangling); n > 0 {
		c.metrics.AddDangling(n)
		c.log.Warn("authored course has dangling references", "course_id", course.ID, "dangling", n)
	}
	span.SetAttributes(
		attribute.Int("compose.dangling", len(view.Dangling)),
		attribute.Int("compose.complementary", len(view.Complementary)),
	)
	return view, nil
}

// complementary lists topics taught by catalogue courses that share a topic
// with the covered set but are not covered themselves.
func (c *Composer) complementary(covered map[string]struct{}, order []string) []catalogue.Entity {
	idx := c.catalogue.Index()
	out := []catalogue.Entity{}
	seen := map[string]struct{}{}
	for _, t := range order {
		for _, course := range idx.Subjects(vocabulary.SchemaTeaches, t) {
			for _, other := range c.catalogue.TopicIRIs(course) {
				if _, ok := covered[other]; ok {
					continue
				}
				if _, ok := seen[other]; ok {
					continue
				}
				seen[other] = struct{}{}
				if e, ok := idx.Entity(other); ok {
					out = append(out, e)
				}
			}
		}
	}
	return out
}

// Persist validates draft and stores it for ownerID. Validation reports
// every missing field at once. A title the owner already uses fails with
// CodeConflict; catalogue and heading clashes are left in draft.Collisions
// as warnings.
func (c *Composer) Persist(ctx context.Context, draft *authoring.DraftComposite, ownerID uuid.UUID) (uuid.UUID, error) {
	ctx, span := c.tracer.Start(ctx, "compose.persist")
	defer span.End()

	if fields := MissingFields(draft, ownerID); len(fields) > 0 {
		return uuid.Nil, faults.Validation("persist_course", fields)
	}
	owned, err := c.ownerCollisions(ctx, ownerID, uuid.Nil, draft.Course.Title)
	if err != nil {
		return uuid.Nil, err
	}
	draft.Collisions = append(c.nameCollisions(&draft.Course), owned...)
	if len(owned) > 0 {
		return uuid.Nil, faults.Conflict("persist_course", "owner already has a course titled %q (%s)", draft.Course.Title, owned[0].With)
	}
	course := draft.Course.Clone()
	course.OwnerID = ownerID
	saved, err := c.store.CreateCourse(ctx, course)
	if err != nil {
		return uuid.Nil, err
	}
	c.log.Info("authored course persisted", "course_id", saved.ID, "owner_id", ownerID, "sections", len(saved.Sections))
	return saved.ID, nil
}

func normalizeName(s string) string {
	return strings.ToLower(strings.Join(strings.Fields(s), " "))
}

// nameCollisions reports a title equal to a catalogue course title and
// sections sharing a heading.
func (c *Composer) nameCollisions(course *authoring.AuthoredCourse) []authoring.NameCollision {
	out := []authoring.NameCollision{}
	for _, iri := range c.catalogue.CoursesTitled(course.Title) {
		out = append(out, authoring.NameCollision{
			Kind:         authoring.CollisionCatalogueCourse,
			Name:         course.Title,
			With:         iri,
			SectionIndex: -1,
		})
	}
	first := map[string]int{}
	for i, sec := range course.Sections {
		key := normalizeName(sec.Heading)
		if key == "" {
			continue
		}
		if j, ok := first[key]; ok {
			out = append(out, authoring.NameCollision{
				Kind:         authoring.CollisionSectionHeading,
				Name:         sec.Heading,
				With:         strconv.Itoa(j),
				SectionIndex: i,
			})
			continue
		}
		first[key] = i
	}
	return out
}

// ownerCollisions lists the owner's other courses titled like title. self
// is excluded so a stored course does not clash with itself.
func (c *Composer) ownerCollisions(ctx context.Context, ownerID, self uuid.UUID, title string) ([]authoring.NameCollision, error) {
	key := normalizeName(title)
	if key == "" || ownerID == uuid.Nil {
		return nil, nil
	}
	courses, err := c.store.ListCoursesByOwner(ctx, ownerID)
	if err != nil {
		return nil, err
	}
	var out []authoring.NameCollision
	for _, other := range courses {
		if other.ID == self || normalizeName(other.Title) != key {
			continue
		}
		out = append(out, authoring.NameCollision{
			Kind:         authoring.CollisionAuthoredCourse,
			Name:         title,
			With:         other.ID.String(),
			SectionIndex: -1,
		})
	}
	return out, nil
}

// MissingFields lists what a draft lacks before it can be stored.
func MissingFields(draft *authoring.DraftComposite, ownerID uuid.UUID) []string {
	if draft == nil {
		return []string{"draft"}
	}
	var fields []string
	if ownerID == uuid.Nil {
		fields = append(fields, "owner_id")
	}
	if strings.TrimSpace(draft.Course.Title) == "" {
		fields = append(fields, "title")
	}
	if len(draft.Course.Sections) == 0 {
		fields = append(fields, "sections")
	}
	for i, s := range draft.Course.Sections {
		switch {
		case s.IsReference():
			if strings.TrimSpace(s.RefIRI) == "" {
				fields = append(fields, fmt.Sprintf("sections[%d].ref.iri", i))
			}
			if s.RefKind != authoring.RefTopic && s.RefKind != authoring.RefCourse {
				fields = append(fields, fmt.Sprintf("sections[%d].ref.kind", i))
			}
		case strings.TrimSpace(s.Body) == "":
			fields = append(fields, fmt.Sprintf("sections[%d].body", i))
		}
	}
	blank := func(v string) bool { return strings.TrimSpace(v) == "" }
	for i, f := range draft.Course.Facilitators {
		if blank(f.Name) {
			fields = append(fields, fmt.Sprintf("facilitators[%d].name", i))
		}
		if blank(f.Affiliation) {
			fields = append(fields, fmt.Sprintf("facilitators[%d].affiliation", i))
		}
		if blank(f.Email) {
			fields = append(fields, fmt.Sprintf("facilitators[%d].email", i))
		}
		if blank(strings.Join(f.Roles, "")) {
			fields = append(fields, fmt.Sprintf("facilitators[%d].roles", i))
		}
	}
	for i, r := range draft.Course.EducationalResources {
		if blank(r.Title) {
			fields = append(fields, fmt.Sprintf("educational_resources[%d].title", i))
		}
		if blank(r.URL) {
			fields = append(fields, fmt.Sprintf("educational_resources[%d].url", i))
		}
		if blank(r.Type) {
			fields = append(fields, fmt.Sprintf("educational_resources[%d].type", i))
		}
	}
	for i, r := range draft.Course.AdditionalResources {
		if blank(r.Type) {
			fields = append(fields, fmt.Sprintf("additional_resources[%d].type", i))
		}
		if blank(r.URL) {
			fields = append(fields, fmt.Sprintf("additional_resources[%d].url", i))
		}
	}
	return fields
}
