package catalogue

import (
	"strconv"
	"strings"
)

// TermKind distinguishes the three N-Triples term shapes.
type TermKind uint8

const (
	TermIRI TermKind = iota
	TermBlank
	TermLiteral
)

func (k TermKind) String() string {
	switch k {
	case TermIRI:
		return "iri"
	case TermBlank:
		return "blank"
	case TermLiteral:
		return "literal"
	default:
		return "unknown"
	}
}

// Term is a subject or object position value.
type Term struct {
	Kind  TermKind `json:"kind"`
	Value string   `json:"value"`
	// Datatype is set for typed literals only.
	Datatype string `json:"datatype,omitempty"`
	// Lang is set for language-tagged literals only.
	Lang string `json:"lang,omitempty"`
}

func IRI(v string) Term   { return Term{Kind: TermIRI, Value: v} }
func Blank(v string) Term { return Term{Kind: TermBlank, Value: v} }

func Literal(v, datatype, lang string) Term {
	return Term{Kind: TermLiteral, Value: v, Datatype: datatype, Lang: lang}
}

func (t Term) IsIRI() bool     { return t.Kind == TermIRI }
func (t Term) IsBlank() bool   { return t.Kind == TermBlank }
func (t Term) IsLiteral() bool { return t.Kind == TermLiteral }

// IsNode reports whether the term names a graph node (IRI or blank node).
func (t Term) IsNode() bool { return t.Kind == TermIRI || t.Kind == TermBlank }

// Key is the entity identity of a node term. Blank nodes keep their "_:"
// prefix so they never collide with IRIs. Literals return "".
func (t Term) Key() string {
	switch t.Kind {
	case TermIRI:
		return t.Value
	case TermBlank:
		return "_:" + t.Value
	default:
		return ""
	}
}

// String renders the term in N-Triples syntax.
func (t Term) String() string {
	switch t.Kind {
	case TermIRI:
		return "<" + t.Value + ">"
	case TermBlank:
		return "_:" + t.Value
	}
	var b strings.Builder
	q := strconv.Quote(t.Value)
	b.WriteString(q)
	switch {
	case t.Lang != "":
		b.WriteString("@")
		b.WriteString(t.Lang)
	case t.Datatype != "":
		b.WriteString("^^<")
		b.WriteString(t.Datatype)
		b.WriteString(">")
	}
	return b.String()
}

// Statement is one immutable fact of the catalogue graph.
type Statement struct {
	Subject   Term   `json:"subject"`
	Predicate string `json:"predicate"`
	Object    Term   `json:"object"`
	// Line is the 1-based source line the statement was parsed from, 0 when
	// the statement was built programmatically.
	Line int `json:"line,omitempty"`
}

func (s Statement) String() string {
	return s.Subject.String() + " <" + s.Predicate + "> " + s.Object.String() + " ."
}
