// Package vocabulary holds the IRIs of the ontologies the Teaching Knowledge
// Graph is mapped onto, plus the label map used to turn predicate IRIs into
// attribute names.
package vocabulary

import "strings"

// Namespace prefixes.
const (
	RDF     = "http://www.w3.org/1999/02/22-rdf-syntax-ns#"
	RDFS    = "http://www.w3.org/2000/01/rdf-schema#"
	XSD     = "http://www.w3.org/2001/XMLSchema#"
	Schema  = "http://schema.org/"
	Courses = "https://w3id.org/def/courses#"
	EduCOR  = "https://github.com/tibonto/educor#"
)

// Core RDF terms.
const (
	RDFType    = RDF + "type"
	RDFSLabel  = RDFS + "label"
	XSDBoolean = XSD + "boolean"
	XSDString  = XSD + "string"
)

// Class IRIs.
const (
	// SchemaCourse is the type of every catalogue course.
	SchemaCourse = Schema + "Course"

	SchemaPerson                  = Schema + "Person"
	SchemaEducationalOrganization = Schema + "EducationalOrganization"
	SchemaCollegeOrUniversity     = Schema + "CollegeOrUniversity"
	SchemaDefinedTerm             = Schema + "DefinedTerm"

	// CoursesTopic is the type used by the mapping rules for taught topics.
	CoursesTopic = Courses + "Topic"
	CoursesSkill = Courses + "Skill"
)

// Predicate IRIs.
const (
	SchemaName             = Schema + "name"
	SchemaDescription      = Schema + "description"
	SchemaURL              = Schema + "url"
	SchemaProvider         = Schema + "provider"
	SchemaTeaches          = Schema + "teaches"
	SchemaEducationalLevel = Schema + "educationalLevel"
	SchemaLocation         = Schema + "location"
	SchemaEmail            = Schema + "email"
	SchemaInLanguage       = Schema + "inLanguage"

	CoursesResponsibleEntity = Courses + "responsibleEntity"
	CoursesSkillRequired     = Courses + "skillRequired"
	CoursesTheoreticalTopic  = Courses + "theoreticalTopic"
	CoursesMainTopic         = Courses + "mainTopic"

	EduCORRequiresKnowledge = EduCOR + "requiresKnowledge"
)

// LocalName returns the fragment or last path segment of an IRI.
func LocalName(iri string) string {
	s := strings.TrimSpace(iri)
	if i := strings.LastIndex(s, "#"); i >= 0 && i < len(s)-1 {
		return s[i+1:]
	}
	s = strings.TrimRight(s, "/")
	if i := strings.LastIndex(s, "/"); i >= 0 && i < len(s)-1 {
		return s[i+1:]
	}
	return s
}
