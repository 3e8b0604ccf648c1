package search

import (
	"context"
	"sort"
	"strings"

	"github.com/Teaching-Knowledge-Graph/TeachingKG/internal/domain/catalogue"
	"github.com/Teaching-Knowledge-Graph/TeachingKG/internal/domain/faults"
	"github.com/Teaching-Knowledge-Graph/TeachingKG/internal/vocabulary"
)

const (
	graphMaxProviders = 6
	graphMaxTopics    = 12
)

// ListCourses returns every catalogue course sorted by lower-cased title.
func (s *Service) ListCourses(ctx context.Context) ([]catalogue.CourseListing, error) {
	_, span := s.tracer.Start(ctx, "catalogue.ListCourses")
	defer span.End()

	iris := s.idx.EntityIRIsOfType(vocabulary.SchemaCourse)
	out := make([]catalogue.CourseListing, 0, len(iris))
	for _, iri := range iris {
		out = append(out, catalogue.CourseListing{
			IRI:        iri,
			Name:       s.idx.FirstLiteral(iri, vocabulary.SchemaName),
			URL:        s.idx.FirstLiteral(iri, vocabulary.SchemaURL),
			Providers:  s.providers(iri, false),
			TopicCount: len(s.topicIRIs(iri)),
			SkillCount: len(s.skills(iri)),
		})
	}
	sort.SliceStable(out, func(i, j int) bool {
		return strings.ToLower(out[i].Name) < strings.ToLower(out[j].Name)
	})
	return out, nil
}

// CourseSummary builds the detail view of one course: providers, topics with
// their flags and levels, related skills and a small node/edge graph.
func (s *Service) CourseSummary(ctx context.Context, iri string) (*catalogue.CourseSummary, error) {
	_, span := s.tracer.Start(ctx, "catalogue.CourseSummary")
	defer span.End()

	isCourse := func(k string) bool { return s.idx.HasType(k, vocabulary.SchemaCourse) }
	target, ok := resolve(iri, isCourse)
	if !ok {
		target, ok = s.courseByName(strings.TrimSpace(iri))
	}
	if !ok {
		return nil, faults.NotFound("course_summary", "no catalogue course %q", strings.TrimSpace(iri))
	}

	sum := &catalogue.CourseSummary{
		IRI:       target,
		Name:      s.idx.FirstLiteral(target, vocabulary.SchemaName),
		URL:       s.idx.FirstLiteral(target, vocabulary.SchemaURL),
		Providers: s.providers(target, true),
		Topics:    []catalogue.TopicInfo{},
		Summary:   catalogue.SummaryCounts{Levels: map[string]int{}},
	}
	for _, t := range s.topicIRIs(target) {
		info := s.topicInfo(t)
		switch {
		case info.Theoretical == nil:
		case *info.Theoretical:
			sum.Summary.TheoreticalCount++
		default:
			sum.Summary.PracticalCount++
		}
		if info.Level != "" {
			sum.Summary.Levels[info.Level]++
		}
		sum.Topics = append(sum.Topics, info)
	}
	sum.Skills = s.skills(target)
	sum.Summary.TopicCount = len(sum.Topics)
	sum.Summary.SkillCount = len(sum.Skills)
	sum.Graph = buildGraph(sum)
	return sum, nil
}

// courseByName matches a course on its exact title.
func (s *Service) courseByName(name string) (string, bool) {
	if name == "" {
		return "", false
	}
	for _, iri := range s.idx.EntityIRIsOfType(vocabulary.SchemaCourse) {
		if s.idx.FirstLiteral(iri, vocabulary.SchemaName) == name {
			return iri, true
		}
	}
	return "", false
}

// CoursesTitled returns the catalogue courses whose title equals title,
// ignoring case, in index order.
func (s *Service) CoursesTitled(title string) []string {
	q := strings.ToLower(strings.Join(strings.Fields(title), " "))
	if q == "" {
		return nil
	}
	var out []string
	for _, iri := range s.idx.EntityIRIsOfType(vocabulary.SchemaCourse) {
		if strings.ToLower(strings.Join(strings.Fields(s.idx.Label(iri)), " ")) == q {
			out = append(out, iri)
		}
	}
	return out
}

// TopicInfo describes one topic with its flags and short level label.
func (s *Service) TopicInfo(iri string) catalogue.TopicInfo { return s.topicInfo(iri) }

func (s *Service) topicInfo(iri string) catalogue.TopicInfo {
	name := s.idx.FirstLiteral(iri, vocabulary.SchemaName)
	if name == "" {
		name = iri
	}
	return catalogue.TopicInfo{
		IRI:         iri,
		Name:        name,
		Theoretical: s.idx.BoolValue(iri, vocabulary.CoursesTheoreticalTopic),
		Main:        s.idx.BoolValue(iri, vocabulary.CoursesMainTopic),
		Level:       ShortLevelLabel(s.levelValue(iri)),
	}
}

// levelValue prefers a literal level; an IRI level resolves to its name or
// falls back to the IRI itself.
func (s *Service) levelValue(iri string) string {
	for _, o := range s.idx.Objects(iri, vocabulary.SchemaEducationalLevel) {
		if o.IsLiteral() {
			return o.Value
		}
		if o.IsIRI() {
			if name := s.idx.FirstLiteral(o.Value, vocabulary.SchemaName); name != "" {
				return name
			}
			return o.Value
		}
	}
	return ""
}

// TopicIRIs returns the distinct topics a course teaches, in index order.
func (s *Service) TopicIRIs(courseIRI string) []string { return s.topicIRIs(courseIRI) }

func (s *Service) topicIRIs(courseIRI string) []string {
	var out []string
	seen := map[string]struct{}{}
	for _, o := range s.idx.Objects(courseIRI, vocabulary.SchemaTeaches) {
		if !o.IsNode() {
			continue
		}
		k := o.Key()
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, k)
	}
	return out
}

func (s *Service) providers(courseIRI string, withContact bool) []catalogue.Provider {
	out := []catalogue.Provider{}
	seen := map[string]struct{}{}
	for _, pred := range []string{vocabulary.SchemaProvider, vocabulary.CoursesResponsibleEntity} {
		for _, o := range s.idx.Objects(courseIRI, pred) {
			if !o.IsNode() {
				continue
			}
			pid := o.Key()
			if _, ok := seen[pid]; ok {
				continue
			}
			seen[pid] = struct{}{}

			p := catalogue.Provider{IRI: pid, Name: s.idx.FirstLiteral(pid, vocabulary.SchemaName)}
			if p.Name == "" {
				p.Name = pid
			}
			switch {
			case s.idx.HasType(pid, vocabulary.SchemaEducationalOrganization),
				s.idx.HasType(pid, vocabulary.SchemaCollegeOrUniversity):
				p.Kind = catalogue.ProviderOrganization
				if withContact {
					p.Location = s.idx.FirstLiteral(pid, vocabulary.SchemaLocation)
				}
			case s.idx.HasType(pid, vocabulary.SchemaPerson):
				p.Kind = catalogue.ProviderPerson
				if withContact {
					p.Email = s.idx.FirstLiteral(pid, vocabulary.SchemaEmail)
				}
			}
			out = append(out, p)
		}
	}
	return out
}

// skills collects the skills required by anything that requires or teaches
// one of the course's topics.
func (s *Service) skills(courseIRI string) []catalogue.SkillInfo {
	out := []catalogue.SkillInfo{}
	seen := map[string]struct{}{}
	for _, t := range s.topicIRIs(courseIRI) {
		holders := s.idx.Subjects(vocabulary.EduCORRequiresKnowledge, t)
		holders = append(holders, s.idx.Subjects(vocabulary.SchemaTeaches, t)...)
		for _, h := range holders {
			for _, o := range s.idx.Objects(h, vocabulary.CoursesSkillRequired) {
				if !o.IsNode() {
					continue
				}
				cid := o.Key()
				if _, ok := seen[cid]; ok {
					continue
				}
				seen[cid] = struct{}{}
				name := s.idx.FirstLiteral(cid, vocabulary.SchemaName)
				if name == "" {
					name = cid
				}
				out = append(out, catalogue.SkillInfo{
					IRI:   cid,
					Name:  name,
					Level: s.idx.FirstLiteral(cid, vocabulary.SchemaEducationalLevel),
				})
			}
		}
	}
	return out
}

func buildGraph(sum *catalogue.CourseSummary) catalogue.Graph {
	label := sum.Name
	if label == "" {
		label = "Course"
	}
	g := catalogue.Graph{
		Nodes: []catalogue.GraphNode{{ID: sum.IRI, Label: label, Group: "Course"}},
		Edges: []catalogue.GraphEdge{},
	}
	present := map[string]struct{}{sum.IRI: {}}
	addNode := func(id, label, group string) {
		if _, ok := present[id]; ok {
			return
		}
		present[id] = struct{}{}
		g.Nodes = append(g.Nodes, catalogue.GraphNode{ID: id, Label: label, Group: group})
	}

	for i, p := range sum.Providers {
		if i == graphMaxProviders {
			break
		}
		group := string(p.Kind)
		if group == "" {
			group = "Provider"
		}
		addNode(p.IRI, p.Name, group)
		g.Edges = append(g.Edges, catalogue.GraphEdge{From: sum.IRI, To: p.IRI, Label: "provider"})
	}
	for i, t := range sum.Topics {
		if i == graphMaxTopics {
			break
		}
		addNode(t.IRI, t.Name, "Topic")
		g.Edges = append(g.Edges, catalogue.GraphEdge{From: sum.IRI, To: t.IRI, Label: "teaches"})
	}
	for _, sk := range sum.Skills {
		addNode(sk.IRI, sk.Name, "Skill")
		g.Edges = append(g.Edges, catalogue.GraphEdge{From: sum.IRI, To: sk.IRI, Label: "skill"})
	}
	return g
}
