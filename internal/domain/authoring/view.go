package authoring

import "github.com/Teaching-Knowledge-Graph/TeachingKG/internal/domain/catalogue"

// DraftComposite is an unsaved course skeleton seeded from catalogue entities.
type DraftComposite struct {
	Course AuthoredCourse `json:"course"`
	// Sources are the IRIs of the selected catalogue entities, in order.
	Sources    []string        `json:"sources"`
	Collisions []NameCollision `json:"collisions"`
}

type CollisionKind string

const (
	// CollisionCatalogueCourse: the title equals a catalogue course title.
	CollisionCatalogueCourse CollisionKind = "catalogue_course"
	// CollisionAuthoredCourse: the owner already has a course with this title.
	CollisionAuthoredCourse CollisionKind = "authored_course"
	// CollisionSectionHeading: two sections of one course share a heading.
	CollisionSectionHeading CollisionKind = "section_heading"
)

// NameCollision marks a title or heading that clashes with another name.
// Names are compared ignoring case and repeated whitespace.
type NameCollision struct {
	Kind CollisionKind `json:"kind"`
	Name string        `json:"name"`
	// With is the catalogue IRI or authored course id clashed with. For
	// headings it is the position of the first section using the name.
	With string `json:"with"`
	// SectionIndex is the later of two clashing sections, -1 for titles.
	SectionIndex int `json:"section_index"`
}

// DanglingReference marks a section whose catalogue reference did not
// resolve. It is a warning carried inside a view, not an error.
type DanglingReference struct {
	SectionIndex int          `json:"section_index"`
	Heading      string       `json:"heading"`
	Ref          CatalogueRef `json:"ref"`
	Reason       string       `json:"reason"`
}

type ResolvedSection struct {
	Section Section `json:"section"`
	// Entity is the live catalogue entity; nil for freeform or dangling sections.
	Entity   *catalogue.Entity `json:"entity,omitempty"`
	Dangling bool              `json:"dangling,omitempty"`
}

// CompositeView joins an authored course with the catalogue for one request.
type CompositeView struct {
	Course   AuthoredCourse      `json:"course"`
	Sections []ResolvedSection   `json:"sections"`
	Dangling   []DanglingReference `json:"dangling"`
	Collisions []NameCollision     `json:"collisions"`
	// Complementary lists catalogue topics taught alongside the course's
	// topics elsewhere that the course does not cover yet.
	Complementary []catalogue.Entity `json:"complementary"`
}
