// Package catalogtest ships a small catalogue used by tests across the
// catalogue, services and http packages.
package catalogtest

import (
	_ "embed"
	"path/filepath"
	"runtime"
)

//go:embed testdata/catalogue.nt
var NTriples string

// StatementCount is the number of statements in NTriples.
const StatementCount = 63

const Base = "https://w3id.org/tkg/"

const (
	CourseAlgebra       = Base + "course/algebra-101"
	CourseLinearAlgebra = Base + "course/linear-algebra"
	CourseDataScience   = Base + "course/data-science"
	CourseProgramming   = Base + "course/intro-programming"

	TopicLinearEquations = Base + "topic/linear-equations"
	TopicPolynomials     = Base + "topic/polynomials"
	TopicMatrices        = Base + "topic/matrices"
	TopicStatistics      = Base + "topic/statistics"
	TopicLoops           = Base + "topic/loops"

	LevelBachelor = Base + "level/BachelorDegree"

	CompetencyAlgebra = Base + "competency/algebraic-reasoning"
	SkillProofs       = Base + "skill/proofs"
	SkillModelling    = Base + "skill/modelling"
	SkillDataAnalysis = Base + "skill/data-analysis"

	OrgTUDelft = Base + "org/tu-delft"
	PersonJane = Base + "person/jane-doe"
)

// Path returns the on-disk location of the fixture file.
func Path() string {
	_, file, _, _ := runtime.Caller(0)
	return filepath.Join(filepath.Dir(file), "testdata", "catalogue.nt")
}
