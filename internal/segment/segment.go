// Package segment splits a full-page screenshot into UI regions. Vision
// models are optional; every failure degrades to the DOM sections.
package segment

import (
	"context"
	"fmt"

	"github.com/v0xg/routedoc/internal/components"
	"github.com/v0xg/routedoc/internal/model"
)

// Segmentation sources
const (
	SourceOpenAI      = "openai-vision"
	SourceClaude      = "claude-vision"
	SourceTextParsing = "text-parsing"
	SourceDOM         = "dom-analysis"
)

// Request is one screenshot to segment.
type Request struct {
	DataURL  string
	Route    model.Route
	Sections []model.Section // DOM sections of the same page
}

// Segmenter finds UI regions in a screenshot.
type Segmenter interface {
	Segment(ctx context.Context, req Request) (*model.Segmentation, error)
}

// NewSegmenter creates a segmenter based on the provider name. An empty name
// or "dom" selects the DOM segmenter.
func NewSegmenter(name, model string) (Segmenter, error) {
	switch name {
	case "", "dom":
		return DOMSegmenter{}, nil
	case "claude", "anthropic":
		return NewClaudeSegmenter(model)
	case "openai", "gpt":
		return NewOpenAISegmenter(model)
	default:
		return nil, fmt.Errorf("unknown provider: %s (supported: dom, claude, openai)", name)
	}
}

// DOMSegmenter reports the DOM sections as segments. It never fails.
type DOMSegmenter struct{}

func (DOMSegmenter) Segment(_ context.Context, req Request) (*model.Segmentation, error) {
	return FromSections(req.Sections), nil
}

// FromSections converts DOM sections into a segmentation.
func FromSections(sections []model.Section) *model.Segmentation {
	segs := make([]model.Segment, 0, len(sections))
	for _, s := range sections {
		elements := s.ElementNames
		if elements == nil {
			elements = []string{}
		}
		segs = append(segs, model.Segment{
			Type:          s.Type,
			ComponentType: components.ComponentType(s),
			Bounds:        s.Bounds,
			Elements:      elements,
			Content:       s.Content.Text,
		})
	}
	return &model.Segmentation{Sections: segs, Confidence: 0.9, Source: SourceDOM}
}
