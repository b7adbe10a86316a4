package model

// Complexity levels for inferred components
const (
	ComplexitySimple   = "simple"
	ComplexityModerate = "moderate"
	ComplexityComplex  = "complex"
)

// Variation is one section instance grouped into a component
type Variation struct {
	ID         int               `json:"id"`
	SectionID  string            `json:"sectionId"`
	Elements   []string          `json:"elements"`
	Bounds     Bounds            `json:"bounds"`
	Content    string            `json:"content"`
	Attributes map[string]string `json:"attributes"`
	Styles     map[string]string `json:"styles,omitempty"`
}

// Component is a recurring UI pattern inferred from sections.
// Instances always equals len(Variations).
type Component struct {
	Type             string      `json:"type"`
	Instances        int         `json:"instances"`
	CommonElements   []string    `json:"commonElements"`
	Variations       []Variation `json:"variations"`
	Props            []string    `json:"props"`
	CSSClasses       []string    `json:"cssClasses"`
	Complexity       string      `json:"complexity"`
	ReusabilityScore int         `json:"reusabilityScore"`
	Consistency      int         `json:"consistency"`
}

// Relationship records elements shared by two component types
type Relationship struct {
	From           string   `json:"from"`
	To             string   `json:"to"`
	SharedElements []string `json:"sharedElements"`
}

// CrossComponentAnalysis summarizes how component types relate
type CrossComponentAnalysis struct {
	Relationships    []Relationship `json:"relationships"`
	SharedElements   []string       `json:"sharedElements"`
	ReusabilityScore int            `json:"reusabilityScore"`
}

// Priority and effort levels
const (
	LevelHigh   = "high"
	LevelMedium = "medium"
	LevelLow    = "low"
)

// LevelWeight maps high/medium/low to 3/2/1.
func LevelWeight(level string) int {
	switch level {
	case LevelHigh:
		return 3
	case LevelMedium:
		return 2
	case LevelLow:
		return 1
	}
	return 0
}

// Refactoring opportunity kinds
const (
	OpportunityDuplicate    = "duplicate-structure"
	OpportunityInconsistent = "inconsistent-styling"
	OpportunityPropExtract  = "prop-extraction"
	OpportunityComposition  = "composition"
)

// RefactoringOpportunity is one suggestion produced by the inference engine
type RefactoringOpportunity struct {
	Type            string   `json:"type"`
	Component       string   `json:"component"`
	Description     string   `json:"description"`
	Priority        string   `json:"priority"`
	EstimatedEffort string   `json:"estimatedEffort"`
	Impact          string   `json:"impact"`
	Details         []string `json:"details,omitempty"`
}

// Weight is priority weight plus impact weight.
func (o RefactoringOpportunity) Weight() int {
	return LevelWeight(o.Priority) + LevelWeight(o.Impact)
}

// ComponentReport is the full inference result for one page
type ComponentReport struct {
	Components               []Component              `json:"components"`
	CrossComponentAnalysis   CrossComponentAnalysis   `json:"crossComponentAnalysis"`
	TotalComponents          int                      `json:"totalComponents"`
	ReusabilityScore         int                      `json:"reusabilityScore"`
	RefactoringPriority      string                   `json:"refactoringPriority"`
	RefactoringOpportunities []RefactoringOpportunity `json:"refactoringOpportunities"`
}

// ComponentUsage is one route's use of an aggregated component
type ComponentUsage struct {
	Route string `json:"route"`
	Count int    `json:"count"`
}

// AggregatedComponent merges one component type across routes
type AggregatedComponent struct {
	Type             string           `json:"type"`
	TotalInstances   int              `json:"totalInstances"`
	Usage            []ComponentUsage `json:"usage"`
	Props            []string         `json:"props"`
	CSSClasses       []string         `json:"cssClasses"`
	CommonElements   []string         `json:"commonElements"`
	Complexity       string           `json:"complexity"`
	ReusabilityScore int              `json:"reusabilityScore"`
	Consistency      int              `json:"consistency"`
	Priority         string           `json:"priority"`
}
