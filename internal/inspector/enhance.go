package inspector

import (
	"slices"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"

	"github.com/v0xg/routedoc/internal/inspector/snapshot"
	"github.com/v0xg/routedoc/internal/model"
)

var semanticTags = map[string]string{
	"header":  "banner",
	"nav":     "navigation",
	"main":    "main",
	"footer":  "contentinfo",
	"aside":   "complementary",
	"article": "article",
	"section": "region",
}

var reusableClassKeywords = []string{
	"card", "btn", "button", "nav", "menu", "item", "list", "panel", "widget",
	"modal", "hero", "banner", "header", "footer", "container", "grid", "tab",
}

// tokenNodeLimit bounds how many nodes of a section feed its design tokens
const tokenNodeLimit = 50

// enhanceSections fills the enhanced fields of every section. nodes[i] is the
// element sections[i] was built from.
func enhanceSections(p PageSnapshotProvider, sections []model.Section, nodes []*html.Node) {
	for i := range sections {
		n := nodes[i]
		style := p.ComputedStyle(n)
		s := &sections[i]

		s.LogicalGrouping = logicalGrouping(s, n, style)
		s.NestedStructure = nestedStructure(n, style)
		s.LayoutPattern = layoutPattern(style)
		s.Reusability = reusability(n)
		s.DesignTokens = designTokens(p, n)
	}

	for i := range sections {
		for j := range sections {
			if i != j && contains(nodes[i], nodes[j]) {
				sections[i].NestedStructure.NestedSections = append(sections[i].NestedStructure.NestedSections, sections[j].ID)
			}
		}
	}
}

func logicalGrouping(s *model.Section, n *html.Node, style snapshot.Style) *model.LogicalGrouping {
	g := &model.LogicalGrouping{SemanticGroup: "generic"}
	if group, ok := semanticTags[n.Data]; ok {
		g.SemanticGroup = group
	} else if role := attr(n, "role"); role != "" {
		g.SemanticGroup = role
	}

	c := s.Content
	switch {
	case c.Forms > 0 || c.Inputs > 0:
		g.FunctionalGroup = "data-entry"
	case s.Type == "navigation" || c.Links > 3 && c.Paragraphs == 0:
		g.FunctionalGroup = "navigation"
	case c.Buttons > 0:
		g.FunctionalGroup = "action"
	case c.Images > 0 && c.Paragraphs == 0:
		g.FunctionalGroup = "media"
	default:
		g.FunctionalGroup = "display"
	}

	switch position := style.Get("position"); {
	case position == "fixed":
		g.VisualGroup = "overlay"
	case position == "sticky":
		g.VisualGroup = "sticky"
	case style.Get("boxShadow") != "" && style.Get("boxShadow") != "none":
		g.VisualGroup = "card-like"
	case !transparent(style.Get("backgroundColor")):
		g.VisualGroup = "highlighted"
	default:
		g.VisualGroup = "plain"
	}

	switch {
	case c.Headings > 0 && c.Paragraphs > 0:
		g.ContentGroup = "article"
	case c.Tables > 0:
		g.ContentGroup = "tabular"
	case c.Lists > 0:
		g.ContentGroup = "list"
	case c.Images >= 2:
		g.ContentGroup = "gallery"
	case c.Text == "":
		g.ContentGroup = "empty"
	default:
		g.ContentGroup = "text"
	}
	return g
}

func nestedStructure(n *html.Node, style snapshot.Style) *model.NestedStructure {
	base := elementDepth(n)
	level := 0
	goquery.NewDocumentFromNode(n).Find("*").Each(func(_ int, d *goquery.Selection) {
		if l := elementDepth(d.Get(0)) - base; l > level {
			level = l
		}
	})

	counts := map[string]int{}
	var order []string
	for _, c := range elementChildren(n) {
		sig := signature(c)
		if counts[sig] == 0 {
			order = append(order, sig)
		}
		counts[sig]++
	}
	patterns := []string{}
	maxRepeat := 0
	for _, sig := range order {
		if counts[sig] >= 2 {
			patterns = append(patterns, sig)
		}
		maxRepeat = max(maxRepeat, counts[sig])
	}

	shape := "none"
	switch {
	case n.Data == "ul" || n.Data == "ol" || hasChildTag(n, "ul", "ol"):
		shape = "list"
	case n.Data == "table" || hasChildTag(n, "table"):
		shape = "table"
	case strings.Contains(style.Get("display"), "grid") || maxRepeat >= 3:
		shape = "grid"
	}

	return &model.NestedStructure{
		NestingLevel:      level,
		RepeatingPatterns: patterns,
		DataStructure:     shape,
		NestedSections:    []string{},
	}
}

// signature identifies an element by tag and first class, e.g. "div.card".
func signature(n *html.Node) string {
	if classes := strings.Fields(attr(n, "class")); len(classes) > 0 {
		return n.Data + "." + classes[0]
	}
	return n.Data
}

func hasChildTag(n *html.Node, tags ...string) bool {
	for _, c := range elementChildren(n) {
		if slices.Contains(tags, c.Data) {
			return true
		}
	}
	return false
}

func layoutPattern(style snapshot.Style) *model.LayoutPattern {
	display := style.Get("display")
	lp := &model.LayoutPattern{}
	switch {
	case strings.Contains(display, "grid"):
		lp.Pattern = "grid"
		lp.GridTemplate = style.Get("gridTemplateColumns")
		lp.GridColumns = countGridColumns(lp.GridTemplate)
	case strings.Contains(display, "flex"):
		lp.FlexDirection = style.Get("flexDirection")
		if lp.FlexDirection == "" {
			lp.FlexDirection = "row"
		}
		lp.Pattern = "flex-row"
		if strings.HasPrefix(lp.FlexDirection, "column") {
			lp.Pattern = "flex-column"
		}
	case strings.HasPrefix(display, "inline"):
		lp.Pattern = "inline"
	default:
		lp.Pattern = "block"
	}
	if lp.Pattern == "grid" || strings.HasPrefix(lp.Pattern, "flex") {
		lp.JustifyContent = style.Get("justifyContent")
		lp.AlignItems = style.Get("alignItems")
	}
	return lp
}

func reusability(n *html.Node) *model.Reusability {
	r := &model.Reusability{ReusableClasses: []string{}}
	score := 0

	if _, ok := semanticTags[n.Data]; ok {
		r.SemanticTag = true
		score += 20
	}
	for _, class := range strings.Fields(strings.ToLower(attr(n, "class"))) {
		for _, kw := range reusableClassKeywords {
			if strings.Contains(class, kw) {
				r.ReusableClasses = append(r.ReusableClasses, class)
				score += 10
				break
			}
		}
	}
	if n.Parent != nil {
		sig := signature(n)
		same := 0
		for _, sib := range elementChildren(n.Parent) {
			if signature(sib) == sig {
				same++
			}
		}
		if same >= 2 {
			r.RepeatingSiblings = true
			score += 15
		}
	}
	for _, a := range n.Attr {
		if a.Key == "role" || strings.HasPrefix(a.Key, "aria-") {
			r.AccessibilityAttr = true
			score += 10
			break
		}
	}

	r.ReusabilityScore = min(score, 100)
	return r
}

func designTokens(p PageSnapshotProvider, n *html.Node) *model.DesignTokens {
	t := &model.DesignTokens{
		Colors:     []string{},
		Spacing:    []string{},
		Typography: []model.Typography{},
		Borders:    []string{},
		Shadows:    []string{},
	}
	addUnique := func(list *[]string, v string) {
		if v != "" && !slices.Contains(*list, v) {
			*list = append(*list, v)
		}
	}

	nodes := []*html.Node{n}
	goquery.NewDocumentFromNode(n).Find("*").EachWithBreak(func(_ int, d *goquery.Selection) bool {
		nodes = append(nodes, d.Get(0))
		return len(nodes) < tokenNodeLimit
	})

	for _, el := range nodes {
		style := p.ComputedStyle(el)
		if c := style.Get("color"); c != "" {
			addUnique(&t.Colors, c)
		}
		if bg := style.Get("backgroundColor"); !transparent(bg) {
			addUnique(&t.Colors, bg)
		}
		for _, prop := range []string{"margin", "padding"} {
			if v := style.Get(prop); v != "" && v != "0px" {
				addUnique(&t.Spacing, v)
			}
		}
		if b := style.Get("border"); b != "" && !strings.HasPrefix(b, "0px") && !strings.Contains(b, "none") {
			addUnique(&t.Borders, b)
		}
		if sh := style.Get("boxShadow"); sh != "" && sh != "none" {
			addUnique(&t.Shadows, sh)
		}
		if size := style.Get("fontSize"); size != "" {
			typo := model.Typography{
				FontSize:   size,
				FontFamily: style.Get("fontFamily"),
				FontWeight: style.Get("fontWeight"),
			}
			if !slices.Contains(t.Typography, typo) {
				t.Typography = append(t.Typography, typo)
			}
		}
	}
	return t
}

func transparent(color string) bool {
	return color == "" || color == "transparent" || color == "rgba(0, 0, 0, 0)"
}
