package catalogue

// ProviderKind classifies a course provider.
type ProviderKind string

const (
	ProviderOrganization ProviderKind = "Organization"
	ProviderPerson       ProviderKind = "Person"
)

type Provider struct {
	IRI      string       `json:"iri"`
	Name     string       `json:"name"`
	Kind     ProviderKind `json:"kind,omitempty"`
	Location string       `json:"location,omitempty"`
	Email    string       `json:"email,omitempty"`
}

type TopicInfo struct {
	IRI         string `json:"iri"`
	Name        string `json:"name"`
	Theoretical *bool  `json:"theoretical,omitempty"`
	Main        *bool  `json:"main,omitempty"`
	Level       string `json:"educationalLevel,omitempty"`
}

type SkillInfo struct {
	IRI   string `json:"iri"`
	Name  string `json:"name"`
	Level string `json:"educationalLevel,omitempty"`
}

// CourseListing is one row of the course list.
type CourseListing struct {
	IRI        string     `json:"iri"`
	Name       string     `json:"name"`
	URL        string     `json:"url,omitempty"`
	Providers  []Provider `json:"providers"`
	TopicCount int        `json:"topicCount"`
	SkillCount int        `json:"skillCount"`
}

type SummaryCounts struct {
	TopicCount       int            `json:"topicCount"`
	TheoreticalCount int            `json:"theoreticalCount"`
	PracticalCount   int            `json:"practicalCount"`
	Levels           map[string]int `json:"levels"`
	SkillCount       int            `json:"skillCount"`
}

type GraphNode struct {
	ID    string `json:"id"`
	Label string `json:"label"`
	Group string `json:"group"`
}

type GraphEdge struct {
	From  string `json:"from"`
	To    string `json:"to"`
	Label string `json:"label"`
}

type Graph struct {
	Nodes []GraphNode `json:"nodes"`
	Edges []GraphEdge `json:"edges"`
}

// CourseSummary is the course detail used by the browse and create pages.
type CourseSummary struct {
	IRI       string        `json:"iri"`
	Name      string        `json:"name"`
	URL       string        `json:"url,omitempty"`
	Providers []Provider    `json:"providers"`
	Topics    []TopicInfo   `json:"topics"`
	Summary   SummaryCounts `json:"summary"`
	Skills    []SkillInfo   `json:"skills"`
	Graph     Graph         `json:"graph"`
}

// Stats describes the loaded catalogue.
type Stats struct {
	Source      string `json:"source"`
	Fingerprint string `json:"fingerprint,omitempty"`
	Statements  int    `json:"statements"`
	Entities    int    `json:"entities"`
	Courses     int    `json:"courses"`
	ParseErrors int    `json:"parseErrors"`
	LoadError   string `json:"loadError,omitempty"`
	// Degraded is set when the load failed or skipped malformed lines.
	Degraded bool `json:"degraded"`
}
