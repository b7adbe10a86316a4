// Package markdown renders processed routes as Markdown documentation.
package markdown

import (
	"fmt"
	"math"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/v0xg/routedoc/internal/config"
	"github.com/v0xg/routedoc/internal/model"
)

// Generated filenames
const (
	PageFile       = "page.md"
	SectionsFile   = "sections.md"
	ComponentsFile = "components.md"
	DraftFile      = "draft.md"
)

const mimeType = "text/markdown"

// Generator renders the documentation set.
type Generator struct {
	settings config.Settings
	now      func() time.Time
}

// New creates a Generator. now may be nil.
func New(settings config.Settings, now func() time.Time) *Generator {
	if now == nil {
		now = time.Now
	}
	return &Generator{settings: settings, now: now}
}

// Generate returns page.md, sections.md, components.md and draft.md.
func (g *Generator) Generate(routes []*model.ProcessedRoute, components []model.AggregatedComponent) []model.File {
	return []model.File{
		{Filename: PageFile, Content: g.Page(routes, components), MimeType: mimeType},
		{Filename: SectionsFile, Content: g.Sections(routes), MimeType: mimeType},
		{Filename: ComponentsFile, Content: g.Components(routes, components), MimeType: mimeType},
		{Filename: DraftFile, Content: g.Draft(routes), MimeType: mimeType},
	}
}

func (g *Generator) header(b *strings.Builder, title string) {
	fmt.Fprintf(b, "# %s\n\n", title)
	fmt.Fprintf(b, "*Generated on: %s*\n\n", g.now().UTC().Format(time.RFC3339))
}

// Page renders the per-page overview.
func (g *Generator) Page(routes []*model.ProcessedRoute, components []model.AggregatedComponent) string {
	var b strings.Builder
	g.header(&b, "Page Analysis Documentation")
	fmt.Fprintf(&b, "**Total Pages Analyzed: %d**\n\n", len(routes))

	b.WriteString("## Executive Summary\n\n")
	fmt.Fprintf(&b, "This document covers %d pages with %d sections and %d unique reusable components.\n\n",
		len(routes), totalSections(routes), len(components))

	b.WriteString("## Page Overview\n\n")
	b.WriteString("| Page | URL | Sections | Components | Layout Type |\n")
	b.WriteString("|------|-----|----------|------------|-------------|\n")
	for _, r := range routes {
		layout := r.Layout.Structure
		if layout == "" {
			layout = "unknown"
		}
		fmt.Fprintf(&b, "| %s | `%s` | %d | %d | %s |\n",
			RouteName(r.Route.URL), r.Route.URL, len(r.Sections), len(r.Components), layout)
	}
	b.WriteString("\n")

	tableOfContents(&b, routes)

	for i, r := range routes {
		fmt.Fprintf(&b, "## %d. %s\n\n", i+1, RouteName(r.Route.URL))
		fmt.Fprintf(&b, "- **URL**: `%s`\n", r.Route.FullURL)
		fmt.Fprintf(&b, "- **Title**: %s\n", orDefault(r.Meta.Title, r.Title))
		if r.Meta.Description != "" {
			fmt.Fprintf(&b, "- **Description**: %s\n", r.Meta.Description)
		}
		fmt.Fprintf(&b, "- **Captured**: %s\n", time.UnixMilli(r.Timestamp).UTC().Format(time.RFC3339))
		fmt.Fprintf(&b, "- **Analysis**: %s (confidence %d%%)\n", r.Analysis.Source, int(math.Round(r.Analysis.Confidence*100)))
		if r.Error != "" {
			fmt.Fprintf(&b, "- **Error**: %s\n", r.Error)
		}
		b.WriteString("\n")

		b.WriteString("### Structure\n\n")
		fmt.Fprintf(&b, "- **Total Elements**: %d\n", r.DOMStructure.TotalElements)
		fmt.Fprintf(&b, "- **DOM Depth**: %d levels\n", r.DOMStructure.Depth)
		fmt.Fprintf(&b, "- **Page Dimensions**: %.0f × %.0f px\n", r.DOMStructure.PageWidth, r.DOMStructure.PageHeight)
		fmt.Fprintf(&b, "- **Forms**: %d\n", len(r.Forms))
		fmt.Fprintf(&b, "- **Images**: %d\n", len(r.Media.Images))
		fmt.Fprintf(&b, "- **Buttons**: %d, **Links**: %d, **Inputs**: %d\n",
			len(r.Interactive.Buttons), len(r.Interactive.Links), len(r.Interactive.Inputs))
		if len(r.Modals) > 0 {
			fmt.Fprintf(&b, "- **Modals**: %d\n", len(r.Modals))
		}
		b.WriteString("\n")

		if len(r.Components) > 0 {
			b.WriteString("### Components Used\n\n")
			for _, c := range r.Components {
				fmt.Fprintf(&b, "- **%s** × %d (%s)\n", c.Type, c.Instances, c.Complexity)
			}
			b.WriteString("\n")
		}
		if len(r.Opportunities) > 0 {
			b.WriteString("### Refactoring Opportunities\n\n")
			for _, o := range r.Opportunities {
				fmt.Fprintf(&b, "- [%s] %s\n", o.Priority, o.Description)
			}
			b.WriteString("\n")
		}
	}

	if len(components) > 0 {
		b.WriteString("## Component Usage Summary\n\n")
		b.WriteString("| Component | Instances | Pages | Priority |\n")
		b.WriteString("|-----------|-----------|-------|----------|\n")
		for _, c := range components {
			fmt.Fprintf(&b, "| %s | %d | %d | %s |\n", c.Type, c.TotalInstances, len(c.Usage), c.Priority)
		}
		b.WriteString("\n")
	}
	return b.String()
}

// Sections renders every detected section, grouped by type per route.
func (g *Generator) Sections(routes []*model.ProcessedRoute) string {
	var b strings.Builder
	g.header(&b, "Page Sections Analysis")
	fmt.Fprintf(&b, "**Total Routes Analyzed: %d**\n\n", len(routes))

	for i, r := range routes {
		fmt.Fprintf(&b, "## %d. %s\n\n", i+1, RouteName(r.Route.URL))
		fmt.Fprintf(&b, "**URL**: `%s`\n\n", r.Route.URL)

		b.WriteString("### Layout Analysis\n\n")
		fmt.Fprintf(&b, "- **Structure Type**: %s\n", orDefault(r.Layout.Structure, "unknown"))
		fmt.Fprintf(&b, "- **Columns**: %d\n", max(r.Layout.Columns, 1))
		fmt.Fprintf(&b, "- **Has Header**: %s\n", yesNo(r.Layout.HasHeader))
		fmt.Fprintf(&b, "- **Has Footer**: %s\n", yesNo(r.Layout.HasFooter))
		fmt.Fprintf(&b, "- **Has Sidebar**: %s\n", yesNo(r.Layout.HasSidebar))
		fmt.Fprintf(&b, "- **Responsive Design**: %s\n", yesNo(r.Layout.IsResponsive))
		if len(r.Layout.GridAreas) > 0 {
			b.WriteString("- **Grid Areas**:\n")
			for _, a := range r.Layout.GridAreas {
				fmt.Fprintf(&b, "  - %s: `%s`\n", a.Element, a.Areas)
			}
		}
		b.WriteString("\n")

		if len(r.Sections) == 0 {
			b.WriteString("**No sections found**\n\n---\n\n")
			continue
		}

		b.WriteString("### Page Sections\n\n")
		for _, group := range groupSections(r.Sections) {
			fmt.Fprintf(&b, "#### %s (%d found)\n\n", FormatSectionName(group.typ), len(group.sections))
			for j, s := range group.sections {
				g.section(&b, j+1, s)
			}
		}
		if r.Error != "" {
			fmt.Fprintf(&b, "**Error**: %s\n\n", r.Error)
		}
		b.WriteString("---\n\n")
	}
	return b.String()
}

func (g *Generator) section(b *strings.Builder, index int, s model.Section) {
	fmt.Fprintf(b, "##### %d. %s\n\n", index, strings.ToUpper(orDefault(s.TagName, "element")))
	if s.Selector != "" {
		fmt.Fprintf(b, "- **Selector**: `%s`\n", s.Selector)
	}
	fmt.Fprintf(b, "- **Type**: %s\n", s.Type)
	fmt.Fprintf(b, "- **Position**: %.0f, %.0f\n", s.Bounds.Left, s.Bounds.Top)
	fmt.Fprintf(b, "- **Dimensions**: %.0f × %.0f px\n", s.Bounds.Width, s.Bounds.Height)
	fmt.Fprintf(b, "- **Elements**: %d direct, %d total\n", s.Elements.Direct, s.Elements.All)
	if len(s.ElementNames) > 0 {
		fmt.Fprintf(b, "- **Contains**: %s\n", strings.Join(s.ElementNames, ", "))
	}
	if text := Excerpt(s.TextContent, 100); text != "" {
		fmt.Fprintf(b, "- **Content**: %s\n", text)
	}
	if s.Reusability != nil {
		fmt.Fprintf(b, "- **Reusability**: %d/100\n", s.Reusability.ReusabilityScore)
	}
	if s.LayoutPattern != nil {
		fmt.Fprintf(b, "- **Layout Pattern**: %s\n", s.LayoutPattern.Pattern)
	}
	if g.settings.IncludeAccessibility {
		var flags []string
		a := s.Accessibility
		if a.HasAriaLabel || a.HasAriaLabelledBy {
			flags = append(flags, "labelled")
		}
		if a.HasRole {
			flags = append(flags, "role")
		}
		if a.HasTabIndex {
			flags = append(flags, "tabindex")
		}
		if len(flags) == 0 {
			flags = append(flags, "none")
		}
		fmt.Fprintf(b, "- **Accessibility**: %s\n", strings.Join(flags, ", "))
	}
	b.WriteString("\n")
}

// Components renders the component library across all routes.
func (g *Generator) Components(routes []*model.ProcessedRoute, components []model.AggregatedComponent) string {
	var b strings.Builder
	g.header(&b, "Component Library Documentation")
	fmt.Fprintf(&b, "**Total Unique Components: %d**\n\n", len(components))

	b.WriteString("## Component Overview\n\n")
	b.WriteString("| # | Component | Usage Count | Reusability Score | Consistency | Priority |\n")
	b.WriteString("|---|-----------|-------------|-------------------|-------------|----------|\n")
	for i, c := range components {
		fmt.Fprintf(&b, "| %d | [%s](#%s) | %d | %d/100 | %d%% | %s |\n",
			i+1, c.Type, Anchor(c.Type), c.TotalInstances, c.ReusabilityScore, c.Consistency, c.Priority)
	}
	b.WriteString("\n")

	b.WriteString("## Detailed Component Specifications\n\n")
	for _, c := range components {
		fmt.Fprintf(&b, "### %s\n\n", c.Type)
		fmt.Fprintf(&b, "- **Complexity**: %s\n", c.Complexity)
		fmt.Fprintf(&b, "- **Instances**: %d across %d page(s)\n", c.TotalInstances, len(c.Usage))
		if len(c.Props) > 0 {
			fmt.Fprintf(&b, "- **Props**: %s\n", codeList(c.Props))
		}
		if len(c.CSSClasses) > 0 {
			fmt.Fprintf(&b, "- **CSS Classes**: %s\n", codeList(c.CSSClasses))
		}
		if len(c.CommonElements) > 0 {
			fmt.Fprintf(&b, "- **Common Elements**: %s\n", strings.Join(c.CommonElements, ", "))
		}
		b.WriteString("- **Used On**:\n")
		for _, u := range c.Usage {
			fmt.Fprintf(&b, "  - `%s` (%d)\n", u.Route, u.Count)
		}
		b.WriteString("\n")

		fmt.Fprintf(&b, "```jsx\n<%s", ComponentName(c.Type))
		for _, p := range c.Props {
			if p == "className" || p == "id" {
				continue
			}
			fmt.Fprintf(&b, " %s={...}", p)
		}
		b.WriteString(" />\n```\n\n")
	}

	var opportunities []model.RefactoringOpportunity
	for _, r := range routes {
		opportunities = append(opportunities, r.Opportunities...)
	}
	if len(opportunities) > 0 {
		sort.SliceStable(opportunities, func(i, j int) bool {
			return opportunities[i].Weight() > opportunities[j].Weight()
		})
		b.WriteString("## Refactoring Opportunities\n\n")
		b.WriteString("| Component | Type | Priority | Effort | Impact |\n")
		b.WriteString("|-----------|------|----------|--------|--------|\n")
		for _, o := range opportunities {
			fmt.Fprintf(&b, "| %s | %s | %s | %s | %s |\n", o.Component, o.Type, o.Priority, o.EstimatedEffort, o.Impact)
		}
		b.WriteString("\n")
	}
	return b.String()
}

// Draft renders the condensed per-route draft with summary statistics.
func (g *Generator) Draft(routes []*model.ProcessedRoute) string {
	var b strings.Builder
	g.header(&b, "Route Analysis Draft")
	fmt.Fprintf(&b, "**Total Routes Analyzed: %d**\n\n", len(routes))
	tableOfContents(&b, routes)

	for i, r := range routes {
		fmt.Fprintf(&b, "## %d. %s\n\n", i+1, RouteName(r.Route.URL))
		b.WriteString("### Overview\n\n")
		fmt.Fprintf(&b, "- **URL**: `%s`\n", r.Route.URL)
		fmt.Fprintf(&b, "- **Sections Detected**: %d\n", len(r.Sections))
		fmt.Fprintf(&b, "- **Components Identified**: %d\n", len(r.Components))
		if r.Segmentation != nil {
			fmt.Fprintf(&b, "- **Segmentation**: %d regions (%s)\n", len(r.Segmentation.Sections), r.Segmentation.Source)
		}
		b.WriteString("\n")

		if r.Segmentation != nil && len(r.Segmentation.Sections) > 0 {
			b.WriteString("### Regions\n\n")
			for j, s := range r.Segmentation.Sections {
				fmt.Fprintf(&b, "#### %d. %s\n\n", j+1, FormatSectionName(s.Type))
				fmt.Fprintf(&b, "- **Component**: %s\n", s.ComponentType)
				fmt.Fprintf(&b, "- **Position**: x: %.0fpx, y: %.0fpx\n", s.Bounds.X, s.Bounds.Y)
				if s.Confidence > 0 {
					fmt.Fprintf(&b, "- **Confidence**: %d%%\n", int(math.Round(s.Confidence*100)))
				}
				for _, el := range s.Elements {
					fmt.Fprintf(&b, "  - %s\n", el)
				}
				b.WriteString("\n")
			}
		}
	}

	b.WriteString("## Analysis Summary\n\n")
	sections := totalSections(routes)
	components := 0
	for _, r := range routes {
		components += len(r.Components)
	}
	b.WriteString("### Statistics\n\n")
	fmt.Fprintf(&b, "- **Total Routes Analyzed**: %d\n", len(routes))
	fmt.Fprintf(&b, "- **Total Sections Found**: %d\n", sections)
	fmt.Fprintf(&b, "- **Total Components Identified**: %d\n", components)
	if len(routes) > 0 {
		fmt.Fprintf(&b, "- **Average Sections per Route**: %.1f\n", float64(sections)/float64(len(routes)))
		fmt.Fprintf(&b, "- **Average Components per Route**: %.1f\n", float64(components)/float64(len(routes)))
	}
	b.WriteString("\n")

	counts := map[string]int{}
	for _, r := range routes {
		for _, s := range r.Sections {
			counts[s.Type]++
		}
	}
	types := make([]string, 0, len(counts))
	for t := range counts {
		types = append(types, t)
	}
	sort.Slice(types, func(i, j int) bool {
		if counts[types[i]] != counts[types[j]] {
			return counts[types[i]] > counts[types[j]]
		}
		return types[i] < types[j]
	})
	if len(types) > 5 {
		types = types[:5]
	}
	if len(types) > 0 {
		b.WriteString("### Most Common Section Types\n\n")
		for _, t := range types {
			fmt.Fprintf(&b, "- **%s**: %d instances\n", FormatSectionName(t), counts[t])
		}
		b.WriteString("\n")
	}
	return b.String()
}

func tableOfContents(b *strings.Builder, routes []*model.ProcessedRoute) {
	b.WriteString("## Table of Contents\n\n")
	for i, r := range routes {
		name := RouteName(r.Route.URL)
		fmt.Fprintf(b, "%d. [%s](#%d-%s)\n", i+1, name, i+1, Anchor(name))
	}
	b.WriteString("\n")
}

type sectionGroup struct {
	typ      string
	sections []model.Section
}

// groupSections groups by type in order of first appearance.
func groupSections(sections []model.Section) []sectionGroup {
	var groups []sectionGroup
	index := map[string]int{}
	for _, s := range sections {
		i, ok := index[s.Type]
		if !ok {
			i = len(groups)
			index[s.Type] = i
			groups = append(groups, sectionGroup{typ: s.Type})
		}
		groups[i].sections = append(groups[i].sections, s)
	}
	return groups
}

func totalSections(routes []*model.ProcessedRoute) int {
	n := 0
	for _, r := range routes {
		n += len(r.Sections)
	}
	return n
}

// RouteName turns a path into "Docs > Intro"; "/" is "Home".
func RouteName(url string) string {
	return model.FormatRouteTitle(url)
}

// FormatSectionName turns "main-content" into "Main Content".
func FormatSectionName(typ string) string {
	words := strings.FieldsFunc(typ, func(r rune) bool { return r == '-' || r == '_' })
	for i, w := range words {
		words[i] = strings.ToUpper(w[:1]) + w[1:]
	}
	if len(words) == 0 {
		return "Unknown"
	}
	return strings.Join(words, " ")
}

var (
	nonAlnum       = regexp.MustCompile(`[^a-zA-Z0-9]`)
	nonAnchorChars = regexp.MustCompile(`[^a-z0-9]+`)
)

// ComponentName strips a component type down to an identifier.
func ComponentName(typ string) string {
	name := nonAlnum.ReplaceAllString(typ, "")
	if name == "" {
		return "Component"
	}
	return strings.ToUpper(name[:1]) + name[1:]
}

// Anchor returns the GitHub-style heading anchor for text.
func Anchor(text string) string {
	return strings.Trim(nonAnchorChars.ReplaceAllString(strings.ToLower(text), "-"), "-")
}

// Excerpt collapses whitespace and cuts s to n runes with an ellipsis.
func Excerpt(s string, n int) string {
	s = strings.Join(strings.Fields(s), " ")
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}

func codeList(items []string) string {
	quoted := make([]string, len(items))
	for i, it := range items {
		quoted[i] = "`" + it + "`"
	}
	return strings.Join(quoted, ", ")
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}

func yesNo(b bool) string {
	if b {
		return "Yes"
	}
	return "No"
}
