// Package authoring holds the mutable-store model: users, authored courses
// and the transient composition views built from them.
package authoring

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// RefKind is the kind of catalogue entity a section cites.
type RefKind string

const (
	RefTopic  RefKind = "topic"
	RefCourse RefKind = "course"
)

// CatalogueRef is a weak reference to a catalogue entity: an identifier that
// must be resolved against the index, never a pointer into it.
type CatalogueRef struct {
	Kind RefKind `json:"kind"`
	IRI  string  `json:"iri"`
}

// Section is one ordered entry of an authored course. It either cites a
// catalogue entity (RefIRI set) or carries freeform Body text.
type Section struct {
	ID       uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	CourseID uuid.UUID `gorm:"type:uuid;not null;index" json:"course_id"`
	Position int       `gorm:"column:position;not null" json:"position"`
	Heading  string    `gorm:"column:heading" json:"heading"`
	RefKind  RefKind   `gorm:"column:ref_kind" json:"ref_kind,omitempty"`
	RefIRI   string    `gorm:"column:ref_iri;index" json:"ref_iri,omitempty"`
	Body     string    `gorm:"column:body;type:text" json:"body,omitempty"`
}

func (Section) TableName() string { return "authored_section" }

func (s Section) IsReference() bool { return s.RefKind != "" || s.RefIRI != "" }

func (s Section) Ref() CatalogueRef { return CatalogueRef{Kind: s.RefKind, IRI: s.RefIRI} }

// Snapshot is a by-value copy of a catalogue entity's display attributes,
// taken when the course was composed and never resynced.
type Snapshot struct {
	IRI        string              `json:"iri"`
	Kind       RefKind             `json:"kind"`
	Label      string              `json:"label"`
	Types      []string            `json:"types,omitempty"`
	Attributes map[string][]string `json:"attributes,omitempty"`
}

func (s Snapshot) Clone() Snapshot {
	out := Snapshot{IRI: s.IRI, Kind: s.Kind, Label: s.Label}
	if s.Types != nil {
		out.Types = append([]string(nil), s.Types...)
	}
	if s.Attributes != nil {
		out.Attributes = make(map[string][]string, len(s.Attributes))
		for k, v := range s.Attributes {
			out.Attributes[k] = append([]string(nil), v...)
		}
	}
	return out
}

type CourseMetadata struct {
	Language          string   `json:"language,omitempty"`
	EducationalLevel  string   `json:"educational_level,omitempty"`
	NotionalHours     string   `json:"notional_hours,omitempty"`
	LearningOutcomes  []string `json:"learning_outcomes,omitempty"`
	TargetedSkills    []string `json:"targeted_skills,omitempty"`
	EntryRequirements string   `json:"entry_requirements,omitempty"`
	RequiredSoftware  string   `json:"required_software,omitempty"`
}

// Facilitator is a person running an authored course.
type Facilitator struct {
	Name        string   `json:"name"`
	Affiliation string   `json:"affiliation"`
	Email       string   `json:"email"`
	Roles       []string `json:"roles"`
}

// EducationalResource is teaching material included in a course.
type EducationalResource struct {
	Title string `json:"title"`
	URL   string `json:"url"`
	Type  string `json:"type"`
}

// AdditionalResource is supporting material such as a repository or dataset.
type AdditionalResource struct {
	Type string `json:"type"`
	URL  string `json:"url"`
}

// DefaultTitleSearchLimit caps authored-course title searches without an
// explicit limit.
const DefaultTitleSearchLimit = 20

type AuthoredCourse struct {
	ID          uuid.UUID                     `gorm:"type:uuid;primaryKey" json:"id"`
	OwnerID     uuid.UUID                     `gorm:"type:uuid;not null;index" json:"owner_id"`
	Title       string                        `gorm:"column:title;not null" json:"title"`
	Description string                        `gorm:"column:description;type:text" json:"description"`
	Metadata    CourseMetadata                `gorm:"column:metadata;serializer:json" json:"metadata"`
	Sections    []Section                     `gorm:"foreignKey:CourseID;references:ID" json:"sections"`
	Snapshots   datatypes.JSONSlice[Snapshot] `gorm:"column:snapshots" json:"snapshots"`

	Facilitators         datatypes.JSONSlice[Facilitator]         `gorm:"column:facilitators" json:"facilitators"`
	EducationalResources datatypes.JSONSlice[EducationalResource] `gorm:"column:educational_resources" json:"educational_resources"`
	AdditionalResources  datatypes.JSONSlice[AdditionalResource]  `gorm:"column:additional_resources" json:"additional_resources"`

	Version     int                           `gorm:"column:version;not null;default:1" json:"version"`
	CreatedAt   time.Time                     `gorm:"not null;index" json:"created_at"`
	UpdatedAt   time.Time                     `gorm:"not null" json:"updated_at"`
}

func (AuthoredCourse) TableName() string { return "authored_course" }

// Clone returns a deep copy.
func (c *AuthoredCourse) Clone() *AuthoredCourse {
	if c == nil {
		return nil
	}
	out := *c
	out.Metadata.LearningOutcomes = append([]string(nil), c.Metadata.LearningOutcomes...)
	out.Metadata.TargetedSkills = append([]string(nil), c.Metadata.TargetedSkills...)
	if c.Sections != nil {
		out.Sections = append([]Section(nil), c.Sections...)
	}
	if c.Facilitators != nil {
		out.Facilitators = make(datatypes.JSONSlice[Facilitator], len(c.Facilitators))
		for i, f := range c.Facilitators {
			f.Roles = append([]string(nil), f.Roles...)
			out.Facilitators[i] = f
		}
	}
	if c.EducationalResources != nil {
		out.EducationalResources = append(datatypes.JSONSlice[EducationalResource](nil), c.EducationalResources...)
	}
	if c.AdditionalResources != nil {
		out.AdditionalResources = append(datatypes.JSONSlice[AdditionalResource](nil), c.AdditionalResources...)
	}
	if c.Snapshots != nil {
		out.Snapshots = make(datatypes.JSONSlice[Snapshot], len(c.Snapshots))
		for i, s := range c.Snapshots {
			out.Snapshots[i] = s.Clone()
		}
	}
	return &out
}

// Snapshot returns the stored snapshot for an IRI.
func (c *AuthoredCourse) Snapshot(iri string) (Snapshot, bool) {
	if c == nil {
		return Snapshot{}, false
	}
	for _, s := range c.Snapshots {
		if s.IRI == iri {
			return s, true
		}
	}
	return Snapshot{}, false
}
