// Package catalogue holds the read-only catalogue model: statements, entities
// and the shapes returned by the search service.
package catalogue

// Direction selects which side of a statement an entity sits on.
type Direction int

const (
	// Forward follows statements where the entity is the subject.
	Forward Direction = iota
	// Backward follows statements where the entity is the object.
	Backward
)

func (d Direction) String() string {
	if d == Backward {
		return "backward"
	}
	return "forward"
}

// Entity is a node of the catalogue graph. Identity is the IRI.
type Entity struct {
	IRI        string              `json:"iri"`
	Label      string              `json:"label"`
	Types      []string            `json:"types,omitempty"`
	Attributes map[string][]string `json:"attributes,omitempty"`
}

// Clone returns a deep copy, so callers can keep it past later lookups.
func (e Entity) Clone() Entity {
	out := Entity{IRI: e.IRI, Label: e.Label}
	if e.Types != nil {
		out.Types = append([]string(nil), e.Types...)
	}
	if e.Attributes != nil {
		out.Attributes = make(map[string][]string, len(e.Attributes))
		for k, v := range e.Attributes {
			out.Attributes[k] = append([]string(nil), v...)
		}
	}
	return out
}

// First returns the first value of an attribute.
func (e Entity) First(label string) string {
	if v := e.Attributes[label]; len(v) > 0 {
		return v[0]
	}
	return ""
}

// HasType reports whether typeIRI is among the entity types.
func (e Entity) HasType(typeIRI string) bool {
	for _, t := range e.Types {
		if t == typeIRI {
			return true
		}
	}
	return false
}

// Relation is one edge from a detailed entity to a neighbour.
type Relation struct {
	Predicate string    `json:"predicate"`
	Label     string    `json:"label"`
	Direction Direction `json:"direction"`
	Entity    Entity    `json:"entity"`
}

// EntityDetail is the full view returned by Detail.
type EntityDetail struct {
	Entity
	Relations []Relation `json:"relations"`
}

// Filters narrows a search.
type Filters struct {
	// Type restricts results to entities of this class. Empty means courses.
	Type string `json:"type,omitempty"`
	// Topic keeps only entities that point at this topic IRI.
	Topic string `json:"topic,omitempty"`
	// Limit caps the result count; 0 means no cap.
	Limit int `json:"limit,omitempty"`
}
