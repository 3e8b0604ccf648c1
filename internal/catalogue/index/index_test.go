package index

import (
	"context"
	"strings"
	"testing"

	"github.com/Teaching-Knowledge-Graph/TeachingKG/internal/catalogue/catalogtest"
	"github.com/Teaching-Knowledge-Graph/TeachingKG/internal/catalogue/loader"
	"github.com/Teaching-Knowledge-Graph/TeachingKG/internal/domain/catalogue"
	"github.com/Teaching-Knowledge-Graph/TeachingKG/internal/vocabulary"
)

func fixture(t *testing.T) *Index {
	t.Helper()
	fb, err := loader.Parse(context.Background(), strings.NewReader(catalogtest.NTriples), loader.Options{})
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	return Build(fb, vocabulary.DefaultLabels())
}

func iris(es []catalogue.Entity) []string {
	out := make([]string, 0, len(es))
	for _, e := range es {
		out = append(out, e.IRI)
	}
	return out
}

func equal(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func TestEntitiesOfTypeKeepsInsertionOrder(t *testing.T) {
	idx := fixture(t)
	got := iris(idx.EntitiesOfType(vocabulary.SchemaCourse))
	want := []string{
		catalogtest.CourseAlgebra,
		catalogtest.CourseLinearAlgebra,
		catalogtest.CourseDataScience,
		catalogtest.CourseProgramming,
	}
	if !equal(got, want) {
		t.Fatalf("EntitiesOfType: want=%v got=%v", want, got)
	}
	if n := len(idx.EntitiesOfType("http://ex.org/Nothing")); n != 0 {
		t.Fatalf("unknown type: want=0 got=%d", n)
	}
}

func TestEntityAttributesAndLabel(t *testing.T) {
	idx := fixture(t)
	e, ok := idx.Entity(catalogtest.CourseAlgebra)
	if !ok {
		t.Fatalf("Entity: algebra course missing")
	}
	if e.Label != "Algebra" {
		t.Fatalf("Label: want=%q got=%q", "Algebra", e.Label)
	}
	if !e.HasType(vocabulary.SchemaCourse) {
		t.Fatalf("Types: got=%v", e.Types)
	}
	if got := e.Attributes["teaches"]; !equal(got, []string{catalogtest.TopicLinearEquations, catalogtest.TopicPolynomials}) {
		t.Fatalf("teaches: got=%v", got)
	}
	if _, ok := e.Attributes["type"]; ok {
		t.Fatalf("rdf:type should not be an attribute")
	}
	if e.First("description") != "Foundations of algebraic manipulation." {
		t.Fatalf("description: got=%q", e.First("description"))
	}

	// object-only entities resolve with a local-name label
	lvl, ok := idx.Entity(catalogtest.CompetencyAlgebra)
	if !ok || lvl.Label != "algebraic-reasoning" {
		t.Fatalf("competency label: ok=%v got=%q", ok, lvl.Label)
	}
	if _, ok := idx.Entity("https://w3id.org/tkg/nope"); ok {
		t.Fatalf("unknown IRI should not resolve")
	}
}

func TestRelatedToBothDirections(t *testing.T) {
	idx := fixture(t)
	fwd := iris(idx.RelatedTo(catalogtest.CourseLinearAlgebra, vocabulary.SchemaTeaches, catalogue.Forward))
	if !equal(fwd, []string{catalogtest.TopicLinearEquations, catalogtest.TopicMatrices}) {
		t.Fatalf("forward: got=%v", fwd)
	}
	back := iris(idx.RelatedTo(catalogtest.TopicMatrices, vocabulary.SchemaTeaches, catalogue.Backward))
	if !equal(back, []string{catalogtest.CourseLinearAlgebra, catalogtest.CourseDataScience}) {
		t.Fatalf("backward: got=%v", back)
	}
	// any predicate, de-duplicated
	anyPred := iris(idx.RelatedTo(catalogtest.OrgTUDelft, "", catalogue.Backward))
	if !equal(anyPred, []string{catalogtest.CourseAlgebra, catalogtest.CourseLinearAlgebra}) {
		t.Fatalf("backward any: got=%v", anyPred)
	}
}

func TestBlankNodesAreEntities(t *testing.T) {
	idx := fixture(t)
	if !idx.Has("_:inst1") {
		t.Fatalf("blank node should be indexed")
	}
	rel := idx.RelatedTo(catalogtest.CourseProgramming, "http://schema.org/hasCourseInstance", catalogue.Forward)
	if len(rel) != 1 || rel[0].First("courseMode") != "online" {
		t.Fatalf("blank neighbour: got=%+v", rel)
	}
}

func TestFirstLiteralFollowsIRIObjects(t *testing.T) {
	idx := fixture(t)
	if got := idx.FirstLiteral(catalogtest.TopicLinearEquations, vocabulary.SchemaEducationalLevel); got != "Bachelor Degree" {
		t.Fatalf("FirstLiteral via IRI: got=%q", got)
	}
	if got := idx.FirstLiteral(catalogtest.TopicPolynomials, vocabulary.SchemaEducationalLevel); got != "HighSchool" {
		t.Fatalf("FirstLiteral literal: got=%q", got)
	}
	if got := idx.FirstLiteral(catalogtest.CourseAlgebra, vocabulary.SchemaProvider); got != "TU Delft" {
		t.Fatalf("FirstLiteral provider: got=%q", got)
	}
}

func TestBoolValue(t *testing.T) {
	idx := fixture(t)
	cases := []struct {
		iri  string
		pred string
		want *bool
	}{
		{catalogtest.TopicLinearEquations, vocabulary.CoursesTheoreticalTopic, ptr(true)},
		{catalogtest.TopicPolynomials, vocabulary.CoursesTheoreticalTopic, ptr(false)},
		{catalogtest.TopicMatrices, vocabulary.CoursesTheoreticalTopic, ptr(true)},
		{catalogtest.TopicMatrices, vocabulary.CoursesMainTopic, ptr(false)},
		{catalogtest.TopicLoops, vocabulary.CoursesMainTopic, nil},
	}
	for _, tc := range cases {
		got := idx.BoolValue(tc.iri, tc.pred)
		switch {
		case tc.want == nil && got != nil:
			t.Fatalf("BoolValue(%s): want=nil got=%v", tc.iri, *got)
		case tc.want != nil && (got == nil || *got != *tc.want):
			t.Fatalf("BoolValue(%s): want=%v got=%v", tc.iri, *tc.want, got)
		}
	}
}

func ptr(b bool) *bool { return &b }

func TestDuplicateStatementsStayInBuckets(t *testing.T) {
	src := strings.Repeat("<http://ex.org/a> <http://ex.org/p> <http://ex.org/b> .\n", 2)
	fb, err := loader.Parse(context.Background(), strings.NewReader(src), loader.Options{})
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	idx := Build(fb, nil)
	if idx.Len() != 2 {
		t.Fatalf("Len: want=2 got=%d", idx.Len())
	}
	if n := len(idx.Objects("http://ex.org/a", "http://ex.org/p")); n != 2 {
		t.Fatalf("Objects: want=2 got=%d", n)
	}
	if n := len(idx.RelatedTo("http://ex.org/a", "", catalogue.Forward)); n != 1 {
		t.Fatalf("RelatedTo: want=1 got=%d", n)
	}
	if idx.EntityCount() != 2 {
		t.Fatalf("EntityCount: want=2 got=%d", idx.EntityCount())
	}
}

func TestRelationsCarryLabels(t *testing.T) {
	idx := fixture(t)
	rels := idx.Relations(catalogtest.TopicPolynomials, catalogue.Backward)
	if len(rels) != 2 {
		t.Fatalf("Relations: want=2 got=%d (%+v)", len(rels), rels)
	}
	if rels[0].Entity.IRI != catalogtest.CourseAlgebra || rels[0].Label != "teaches" || rels[0].Entity.Label != "Algebra" {
		t.Fatalf("Relations[0]: got=%+v", rels[0])
	}
	if rels[1].Entity.IRI != catalogtest.CompetencyAlgebra || rels[1].Label != "requires" {
		t.Fatalf("Relations[1]: got=%+v", rels[1])
	}
}

func TestStats(t *testing.T) {
	idx := fixture(t)
	st := idx.Stats()
	if st.Statements != catalogtest.StatementCount || st.Courses != 4 || st.ParseErrors != 0 {
		t.Fatalf("Stats: got=%+v", st)
	}
	if st.Fingerprint == "" {
		t.Fatalf("Stats: missing fingerprint")
	}
	if st.Degraded {
		t.Fatalf("Stats: clean catalogue reported degraded")
	}
}

func TestBuildOnEmptyFactBase(t *testing.T) {
	idx := Build(loader.Empty("missing.nt", context.Canceled), nil)
	if idx.Len() != 0 || idx.Has("x") {
		t.Fatalf("empty index should be empty")
	}
	if st := idx.Stats(); st.LoadError == "" || !st.Degraded {
		t.Fatalf("Stats should report the load error, got=%+v", st)
	}
}
