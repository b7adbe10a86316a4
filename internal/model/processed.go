package model

import "time"

// Analysis sources
const (
	SourceDOM      = "dom-analysis"
	SourceFallback = "fallback"
)

// AnalysisInfo describes how trustworthy a processed route is
type AnalysisInfo struct {
	Confidence           float64 `json:"confidence"`
	Source               string  `json:"source"`
	ElementsAnalyzed     int     `json:"elementsAnalyzed"`
	SectionsFound        int     `json:"sectionsFound"`
	ComponentsIdentified int     `json:"componentsIdentified"`
	Error                string  `json:"error,omitempty"`
}

// ProcessedRoute is the per-route artifact written once per route.
// A retry of the same route overwrites it.
type ProcessedRoute struct {
	Route            Route                    `json:"route"`
	Title            string                   `json:"title"`
	Sections         []Section                `json:"sections"`
	Components       []Component              `json:"components"`
	Opportunities    []RefactoringOpportunity `json:"refactoringOpportunities"`
	ReusabilityScore int                      `json:"reusabilityScore"`
	DOMStructure     DOMStructure             `json:"domStructure"`
	Layout           Layout                   `json:"layout"`
	Forms            []Form                   `json:"forms"`
	Media            Media                    `json:"media"`
	Interactive      Interactive              `json:"interactive"`
	Navigation       Navigation               `json:"navigation"`
	Meta             Meta                     `json:"meta"`
	Performance      Performance              `json:"performance"`
	Modals           []Modal                  `json:"modals"`
	Analysis         AnalysisInfo             `json:"analysis"`
	Segmentation     *Segmentation            `json:"segmentation,omitempty"`
	Screenshot       string                   `json:"screenshot"` // PNG data URL, empty when capture failed
	Timestamp        int64                    `json:"timestamp"`
	Error            string                   `json:"error,omitempty"`
}

// Failed reports whether the route produced only a fallback record.
func (p *ProcessedRoute) Failed() bool {
	return p.Analysis.Source == SourceFallback
}

// NewProcessedRoute folds a page analysis and its component report into a record.
// An analysis carrying an error becomes a fallback record.
func NewProcessedRoute(route Route, a *PageAnalysis, report *ComponentReport, now time.Time) *ProcessedRoute {
	if a == nil {
		return FallbackProcessedRoute(route, "DOM analysis failed", now)
	}
	if a.Error != "" {
		return FallbackProcessedRoute(route, a.Error, now)
	}
	a.Normalize()

	sections := make([]Section, len(a.Sections))
	copy(sections, a.Sections)

	components := []Component{}
	opportunities := []RefactoringOpportunity{}
	score := 0
	if report != nil {
		components = report.Components
		opportunities = report.RefactoringOpportunities
		score = report.ReusabilityScore
	}

	return &ProcessedRoute{
		Route:            route,
		Title:            route.DisplayTitle(),
		Sections:         sections,
		Components:       components,
		Opportunities:    opportunities,
		ReusabilityScore: score,
		DOMStructure:     a.DOMStructure,
		Layout:           a.Layout,
		Forms:            a.Forms,
		Media:            a.Media,
		Interactive:      a.Interactive,
		Navigation:       a.Navigation,
		Meta:             a.Meta,
		Performance:      a.Performance,
		Modals:           a.Modals,
		Analysis: AnalysisInfo{
			Confidence:           0.9,
			Source:               SourceDOM,
			ElementsAnalyzed:     a.DOMStructure.TotalElements,
			SectionsFound:        len(sections),
			ComponentsIdentified: len(components),
		},
		Timestamp: now.UnixMilli(),
	}
}

// FallbackProcessedRoute is the record stored when a route could not be analysed.
// It carries a single "error" section so documentation still has something to render.
func FallbackProcessedRoute(route Route, errMsg string, now time.Time) *ProcessedRoute {
	return &ProcessedRoute{
		Route: route,
		Title: route.DisplayTitle(),
		Sections: []Section{{
			ID:             "section-0",
			Type:           "error",
			TagName:        "div",
			TextContent:    "Analysis failed: " + errMsg,
			Attributes:     map[string]string{},
			ComputedStyles: map[string]string{},
			Children:       []ChildSummary{},
			ElementNames:   []string{},
		}},
		Components:    []Component{},
		Opportunities: []RefactoringOpportunity{},
		Forms:         []Form{},
		Media:         EmptyMedia(),
		Interactive:   EmptyInteractive(),
		Navigation:    EmptyNavigation(),
		Layout:        Layout{Structure: "unknown", GridAreas: []GridArea{}},
		Modals:        []Modal{},
		Analysis: AnalysisInfo{
			Confidence: 0.1,
			Source:     SourceFallback,
			Error:      errMsg,
		},
		Timestamp: now.UnixMilli(),
		Error:     errMsg,
	}
}
