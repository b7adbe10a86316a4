package segment

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/v0xg/routedoc/internal/model"
)

const systemPrompt = `You are a UI analyst. You receive a full-page screenshot of a website and identify the distinct UI components and sections in it.

Output a JSON object with a "sections" array. Each section has:
- "type": component type (header, navigation, hero, card, form, footer, sidebar, main, text, button)
- "bounds": approximate pixel coordinates {"x", "y", "width", "height"}
- "elements": array of sub-elements found
- "content": short description of the content
- "confidence": number between 0 and 1

Focus on reusable components that could become shared UI components.

Respond ONLY with the JSON object, no explanation or markdown.`

func buildUserPrompt(route model.Route) string {
	return fmt.Sprintf("Segment this screenshot.\nURL: %s\nTitle: %s", route.URL, route.DisplayTitle())
}

var componentTypes = map[string]string{
	"header":     "Header",
	"navigation": "Navigation",
	"nav":        "Navigation",
	"hero":       "HeroSection",
	"banner":     "Banner",
	"card":       "Card",
	"button":     "Button",
	"form":       "Form",
	"footer":     "Footer",
	"sidebar":    "Sidebar",
	"main":       "MainContent",
	"text":       "TextBlock",
}

func componentType(segmentType string) string {
	if t, ok := componentTypes[strings.ToLower(segmentType)]; ok {
		return t
	}
	return "GenericComponent"
}

// parseSegmentation reads a model reply. It accepts a bare JSON object, a
// JSON object surrounded by text, or a plain-text outline.
func parseSegmentation(response, source string) (*model.Segmentation, error) {
	var seg model.Segmentation
	if err := json.Unmarshal([]byte(response), &seg); err == nil && seg.Sections != nil {
		return finish(&seg, source, 0.8), nil
	}

	if obj, ok := extractObject(response); ok {
		if err := json.Unmarshal([]byte(obj), &seg); err == nil && seg.Sections != nil {
			return finish(&seg, source, 0.8), nil
		}
	}

	seg = parseUnstructured(response)
	if len(seg.Sections) == 0 {
		return nil, fmt.Errorf("no segments found in response")
	}
	return finish(&seg, SourceTextParsing, 0.6), nil
}

func finish(seg *model.Segmentation, source string, confidence float64) *model.Segmentation {
	for i := range seg.Sections {
		s := &seg.Sections[i]
		if s.ComponentType == "" {
			s.ComponentType = componentType(s.Type)
		}
		if s.Elements == nil {
			s.Elements = []string{}
		}
	}
	if seg.Source == "" {
		seg.Source = source
	}
	if seg.Confidence == 0 {
		seg.Confidence = confidence
	}
	return seg
}

// extractObject returns the first balanced {...} block in s.
func extractObject(s string) (string, bool) {
	start := strings.Index(s, "{")
	if start == -1 {
		return "", false
	}

	depth := 0
	inString, escaped := false, false
	for i := start; i < len(s); i++ {
		c := s[i]
		switch {
		case escaped:
			escaped = false
		case c == '\\' && inString:
			escaped = true
		case c == '"':
			inString = !inString
		case inString:
		case c == '{':
			depth++
		case c == '}':
			depth--
			if depth == 0 {
				return s[start : i+1], true
			}
		}
	}
	return "", false
}

var (
	sectionHeading = regexp.MustCompile(`(?i)^(header|navigation|hero|main|footer|sidebar)`)
	headingSplit   = regexp.MustCompile(`[\s:]`)
	listItem       = regexp.MustCompile(`^[-*]\s*`)
)

// parseUnstructured reads an outline like
//
//	Header: logo and menu
//	- logo
//	- menu
//
// into segments.
func parseUnstructured(content string) model.Segmentation {
	var (
		segs    []model.Segment
		current *model.Segment
	)
	for _, line := range strings.Split(content, "\n") {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" {
			continue
		}
		if sectionHeading.MatchString(trimmed) {
			if current != nil {
				segs = append(segs, *current)
			}
			current = &model.Segment{
				Type:     strings.ToLower(headingSplit.Split(trimmed, 2)[0]),
				Elements: []string{},
				Content:  trimmed,
			}
			continue
		}
		if current != nil && listItem.MatchString(trimmed) {
			current.Elements = append(current.Elements, listItem.ReplaceAllString(trimmed, ""))
		}
	}
	if current != nil {
		segs = append(segs, *current)
	}
	return model.Segmentation{Sections: segs}
}
