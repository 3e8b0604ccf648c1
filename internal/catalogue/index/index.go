// Package index builds the in-memory lookup structures over a loaded
// catalogue. An Index is immutable once built and safe for concurrent use.
package index

import (
	"strings"

	"github.com/Teaching-Knowledge-Graph/TeachingKG/internal/catalogue/loader"
	"github.com/Teaching-Knowledge-Graph/TeachingKG/internal/domain/catalogue"
	"github.com/Teaching-Knowledge-Graph/TeachingKG/internal/vocabulary"
)

type Index struct {
	fb     *loader.FactBase
	labels *vocabulary.Labels

	// statement positions into fb, in file order
	bySubject   map[string][]int
	byPredicate map[string][]int
	byObject    map[string][]int

	types       map[string][]string
	typeBuckets map[string][]string
	order       []string
	known       map[string]struct{}
}

// Build indexes fb. A nil labels map falls back to IRI local names.
func Build(fb *loader.FactBase, labels *vocabulary.Labels) *Index {
	if labels == nil {
		labels = vocabulary.DefaultLabels()
	}
	n := fb.Len()
	idx := &Index{
		fb:          fb,
		labels:      labels,
		bySubject:   make(map[string][]int, n/4+1),
		byPredicate: make(map[string][]int),
		byObject:    make(map[string][]int, n/4+1),
		types:       make(map[string][]string),
		typeBuckets: make(map[string][]string),
		known:       make(map[string]struct{}, n/4+1),
	}
	for i := 0; i < n; i++ {
		st := fb.At(i)
		subj := st.Subject.Key()
		idx.bySubject[subj] = append(idx.bySubject[subj], i)
		idx.byPredicate[st.Predicate] = append(idx.byPredicate[st.Predicate], i)
		idx.remember(subj)
		if st.Object.IsNode() {
			obj := st.Object.Key()
			idx.byObject[obj] = append(idx.byObject[obj], i)
			idx.remember(obj)
		}
		if st.Predicate == vocabulary.RDFType && st.Object.IsIRI() {
			idx.addType(subj, st.Object.Value)
		}
	}
	return idx
}

func (idx *Index) remember(key string) {
	if _, ok := idx.known[key]; ok {
		return
	}
	idx.known[key] = struct{}{}
	idx.order = append(idx.order, key)
}

func (idx *Index) addType(subj, typeIRI string) {
	for _, t := range idx.types[subj] {
		if t == typeIRI {
			return
		}
	}
	idx.types[subj] = append(idx.types[subj], typeIRI)
	idx.typeBuckets[typeIRI] = append(idx.typeBuckets[typeIRI], subj)
}

func (idx *Index) FactBase() *loader.FactBase { return idx.fb }
func (idx *Index) Labels() *vocabulary.Labels { return idx.labels }

// Len is the number of indexed statements.
func (idx *Index) Len() int { return idx.fb.Len() }

func (idx *Index) EntityCount() int { return len(idx.order) }

func (idx *Index) Fingerprint() string { return idx.fb.Fingerprint() }

// Has reports whether iri occurs as a subject or node object.
func (idx *Index) Has(iri string) bool {
	_, ok := idx.known[iri]
	return ok
}

// Entity returns a freshly built entity for iri.
func (idx *Index) Entity(iri string) (catalogue.Entity, bool) {
	if !idx.Has(iri) {
		return catalogue.Entity{}, false
	}
	return idx.entity(iri), true
}

func (idx *Index) entity(iri string) catalogue.Entity {
	e := catalogue.Entity{
		IRI:        iri,
		Label:      idx.Label(iri),
		Attributes: idx.AttributesOf(iri),
	}
	if ts := idx.types[iri]; len(ts) > 0 {
		e.Types = append([]string(nil), ts...)
	}
	return e
}

// Label is the display name: schema:name, then rdfs:label, then the IRI
// local name.
func (idx *Index) Label(iri string) string {
	if v, ok := idx.literal(iri, vocabulary.SchemaName); ok {
		return v
	}
	if v, ok := idx.literal(iri, vocabulary.RDFSLabel); ok {
		return v
	}
	return vocabulary.LocalName(strings.TrimPrefix(iri, "_:"))
}

// EntityIRIs returns every entity key in first-seen order.
func (idx *Index) EntityIRIs() []string {
	return append([]string(nil), idx.order...)
}

// EntityIRIsOfType returns the type bucket in insertion order.
func (idx *Index) EntityIRIsOfType(typeIRI string) []string {
	return append([]string(nil), idx.typeBuckets[typeIRI]...)
}

func (idx *Index) EntitiesOfType(typeIRI string) []catalogue.Entity {
	bucket := idx.typeBuckets[typeIRI]
	out := make([]catalogue.Entity, 0, len(bucket))
	for _, iri := range bucket {
		out = append(out, idx.entity(iri))
	}
	return out
}

func (idx *Index) TypesOf(iri string) []string {
	return append([]string(nil), idx.types[iri]...)
}

func (idx *Index) HasType(iri, typeIRI string) bool {
	for _, t := range idx.types[iri] {
		if t == typeIRI {
			return true
		}
	}
	return false
}

// AttributesOf maps attribute labels to values for every statement with iri
// as subject, rdf:type excluded. Literal values are decoded; node values are
// kept as identifiers.
func (idx *Index) AttributesOf(iri string) map[string][]string {
	positions := idx.bySubject[iri]
	if len(positions) == 0 {
		return nil
	}
	out := make(map[string][]string)
	for _, i := range positions {
		st := idx.fb.At(i)
		if st.Predicate == vocabulary.RDFType {
			continue
		}
		label := idx.labels.Label(st.Predicate)
		val := st.Object.Value
		if st.Object.IsNode() {
			val = st.Object.Key()
		}
		out[label] = append(out[label], val)
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

// Statements returns the statements with iri as subject, in file order.
func (idx *Index) Statements(iri string) []catalogue.Statement {
	return idx.collect(idx.bySubject[iri])
}

// Incoming returns the statements with iri as object, in file order.
func (idx *Index) Incoming(iri string) []catalogue.Statement {
	return idx.collect(idx.byObject[iri])
}

// WithPredicate returns every statement using pred, in file order.
func (idx *Index) WithPredicate(pred string) []catalogue.Statement {
	return idx.collect(idx.byPredicate[pred])
}

func (idx *Index) collect(positions []int) []catalogue.Statement {
	if len(positions) == 0 {
		return nil
	}
	out := make([]catalogue.Statement, 0, len(positions))
	for _, i := range positions {
		out = append(out, idx.fb.At(i))
	}
	return out
}

// Objects returns the objects of (iri, pred, ?) in file order. Duplicate
// statements yield duplicate terms.
func (idx *Index) Objects(iri, pred string) []catalogue.Term {
	var out []catalogue.Term
	for _, i := range idx.bySubject[iri] {
		st := idx.fb.At(i)
		if st.Predicate == pred {
			out = append(out, st.Object)
		}
	}
	return out
}

// Subjects returns the distinct subjects of (?, pred, obj) in file order.
func (idx *Index) Subjects(pred, obj string) []string {
	var out []string
	seen := map[string]struct{}{}
	for _, i := range idx.byObject[obj] {
		st := idx.fb.At(i)
		if st.Predicate != pred {
			continue
		}
		key := st.Subject.Key()
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, key)
	}
	return out
}

// RelatedTo returns the distinct neighbours of iri over pred (any predicate
// when pred is empty). Forward follows iri as subject, Backward as object.
// Literal objects are not entities and are skipped.
func (idx *Index) RelatedTo(iri, pred string, dir catalogue.Direction) []catalogue.Entity {
	var out []catalogue.Entity
	seen := map[string]struct{}{}
	for _, n := range idx.neighbours(iri, pred, dir) {
		if _, ok := seen[n.key]; ok {
			continue
		}
		seen[n.key] = struct{}{}
		out = append(out, idx.entity(n.key))
	}
	return out
}

type neighbour struct {
	key  string
	pred string
}

func (idx *Index) neighbours(iri, pred string, dir catalogue.Direction) []neighbour {
	var out []neighbour
	if dir == catalogue.Backward {
		for _, i := range idx.byObject[iri] {
			st := idx.fb.At(i)
			if pred == "" || st.Predicate == pred {
				out = append(out, neighbour{key: st.Subject.Key(), pred: st.Predicate})
			}
		}
		return out
	}
	for _, i := range idx.bySubject[iri] {
		st := idx.fb.At(i)
		if !st.Object.IsNode() {
			continue
		}
		if pred == "" || st.Predicate == pred {
			out = append(out, neighbour{key: st.Object.Key(), pred: st.Predicate})
		}
	}
	return out
}

// Relations lists every (predicate, neighbour) pair of iri in one direction,
// de-duplicated on the pair.
func (idx *Index) Relations(iri string, dir catalogue.Direction) []catalogue.Relation {
	var out []catalogue.Relation
	seen := map[string]struct{}{}
	for _, n := range idx.neighbours(iri, "", dir) {
		if dir == catalogue.Forward && n.pred == vocabulary.RDFType {
			continue
		}
		k := n.pred + "\x00" + n.key
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, catalogue.Relation{
			Predicate: n.pred,
			Label:     idx.labels.Label(n.pred),
			Direction: dir,
			Entity:    catalogue.Entity{IRI: n.key, Label: idx.Label(n.key), Types: idx.TypesOf(n.key)},
		})
	}
	return out
}

func (idx *Index) literal(iri, pred string) (string, bool) {
	for _, i := range idx.bySubject[iri] {
		st := idx.fb.At(i)
		if st.Predicate == pred && st.Object.IsLiteral() {
			return st.Object.Value, true
		}
	}
	return "", false
}

// FirstLiteral returns the first value of (iri, pred). An IRI object is
// followed to its schema:name; objects without one are skipped.
func (idx *Index) FirstLiteral(iri, pred string) string {
	for _, o := range idx.Objects(iri, pred) {
		if o.IsLiteral() {
			return o.Value
		}
		if o.IsIRI() {
			if name, ok := idx.literal(o.Value, vocabulary.SchemaName); ok {
				return name
			}
		}
	}
	return ""
}

// BoolValue reads a boolean flag. xsd:boolean literals compare against
// "true"; untyped literals accept true/1 and false/0. nil means unset or
// unrecognised.
func (idx *Index) BoolValue(iri, pred string) *bool {
	for _, o := range idx.Objects(iri, pred) {
		if !o.IsLiteral() {
			continue
		}
		val := strings.ToLower(strings.TrimSpace(o.Value))
		if o.Datatype == vocabulary.XSDBoolean {
			b := val == "true"
			return &b
		}
		switch val {
		case "true", "1":
			b := true
			return &b
		case "false", "0":
			b := false
			return &b
		}
	}
	return nil
}

// Stats summarises the indexed catalogue.
func (idx *Index) Stats() catalogue.Stats {
	st := catalogue.Stats{
		Source:      idx.fb.Source(),
		Fingerprint: idx.fb.Fingerprint(),
		Statements:  idx.fb.Len(),
		Entities:    len(idx.order),
		Courses:     len(idx.typeBuckets[vocabulary.SchemaCourse]),
		ParseErrors: len(idx.fb.ParseErrors()),
		Degraded:    idx.fb.Degraded(),
	}
	if err := idx.fb.LoadErr(); err != nil {
		st.LoadError = err.Error()
	}
	return st
}
