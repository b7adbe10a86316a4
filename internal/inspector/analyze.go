package inspector

import (
	"fmt"
	"math"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"

	"github.com/v0xg/routedoc/internal/inspector/snapshot"
	"github.com/v0xg/routedoc/internal/model"
)

var semanticSelectors = []string{
	"header", "nav", "main", "section", "article", "aside", "footer",
	`[role="banner"]`, `[role="navigation"]`, `[role="main"]`,
	`[role="complementary"]`, `[role="contentinfo"]`,
}

var layoutSelectors = []string{
	".container", ".wrapper", ".content", ".sidebar", ".hero", ".banner",
	".header", ".footer", ".navbar", ".menu", ".widget", ".panel",
}

var componentSelectors = []string{
	".card", ".modal", ".popup", ".dropdown", ".carousel", ".slider",
	".tabs", ".accordion", ".gallery", ".grid", ".list",
}

var modalSelectors = []string{
	".modal", ".popup", ".overlay", ".dialog", `[role="dialog"]`,
	`[role="alertdialog"]`, ".lightbox", ".fancybox", ".modal-dialog",
	".popup-container", "[data-modal]", `[aria-modal="true"]`,
}

var breadcrumbSelectors = []string{".breadcrumb", ".breadcrumbs", `[aria-label*="breadcrumb"]`}

// styleProps is the computed style subset recorded per section
var styleProps = []string{
	"display", "position", "backgroundColor", "color", "fontSize", "fontFamily",
	"margin", "padding", "border", "borderRadius", "boxShadow",
	"gridTemplateColumns", "flexDirection", "justifyContent", "alignItems",
}

const (
	buttonSelector      = `button, input[type="button"], input[type="submit"]`
	interactiveSelector = "button, input, textarea, select, a, [tabindex], [onclick]"
	fieldSelector       = `input:not([type="hidden"]):not([type="button"]):not([type="submit"]), textarea`
)

var sectionIDChars = regexp.MustCompile(`[\[\]"'=:.\s]`)

// Options tune AnalyzePageStructure
type Options struct {
	// Enhanced adds grouping, nesting, layout, reusability and token data
	// to every section.
	Enhanced bool
	Now      func() time.Time
}

func (o Options) now() time.Time {
	if o.Now != nil {
		return o.Now()
	}
	return time.Now()
}

// AnalyzePageStructure extracts the structural description of the page.
// It never fails: a provider panic yields model.FallbackAnalysis carrying
// the panic message.
func AnalyzePageStructure(p PageSnapshotProvider, opts Options) (result *model.PageAnalysis) {
	start := opts.now().UnixMilli()
	defer func() {
		if r := recover(); r != nil {
			result = model.FallbackAnalysis(fmt.Sprint(r), start)
		}
	}()
	if p == nil {
		return model.FallbackAnalysis("no page snapshot available", start)
	}

	win := p.Window()
	sections, nodes := analyzeSections(p, win)
	if opts.Enhanced {
		enhanceSections(p, sections, nodes)
	}

	a := &model.PageAnalysis{
		Sections:     sections,
		Forms:        analyzeForms(p, win),
		Media:        analyzeMedia(p, win),
		Interactive:  analyzeInteractive(p, win),
		Navigation:   analyzeNavigation(p, win),
		Layout:       analyzeLayout(p, win),
		DOMStructure: analyzeDOMStructure(p, win),
		Meta:         analyzeMeta(p, win),
		Performance: model.Performance{
			AnalysisTime:      start,
			ScriptsLoaded:     win.Scripts,
			StylesheetsLoaded: win.StyleSheets,
		},
		Modals: detectModals(p, win),
	}
	a.Normalize()
	return a
}

// PageDimensions returns the scrollable size of the page, taking the largest
// of the body and document metrics.
func PageDimensions(win snapshot.Window) (width, height float64) {
	width = max(win.Body.ScrollWidth, win.Body.OffsetWidth, win.Document.ClientWidth,
		win.Document.ScrollWidth, win.Document.OffsetWidth)
	height = max(win.Body.ScrollHeight, win.Body.OffsetHeight, win.Document.ClientHeight,
		win.Document.ScrollHeight, win.Document.OffsetHeight)
	return width, height
}

func analyzeDOMStructure(p PageSnapshotProvider, win snapshot.Window) model.DOMStructure {
	all := p.QueryAll("*")
	depth := 0
	all.Each(func(_ int, s *goquery.Selection) {
		if d := elementDepth(s.Get(0)); d > depth {
			depth = d
		}
	})
	width, height := PageDimensions(win)
	return model.DOMStructure{
		TotalElements:        all.Length(),
		Depth:                depth,
		PageWidth:            width,
		PageHeight:           height,
		HasScrollableContent: height > win.InnerHeight,
		Viewport:             model.Viewport{Width: win.InnerWidth, Height: win.InnerHeight},
	}
}

func analyzeSections(p PageSnapshotProvider, win snapshot.Window) ([]model.Section, []*html.Node) {
	var (
		sections []model.Section
		nodes    []*html.Node
	)
	selectors := make([]string, 0, len(semanticSelectors)+len(layoutSelectors)+len(componentSelectors))
	selectors = append(selectors, semanticSelectors...)
	selectors = append(selectors, layoutSelectors...)
	selectors = append(selectors, componentSelectors...)

	for _, selector := range selectors {
		p.QueryAll(selector).Each(func(i int, s *goquery.Selection) {
			n := s.Get(0)
			if !isVisible(p, n) {
				return
			}
			sections = append(sections, buildSection(p, win, selector, i, s))
			nodes = append(nodes, n)
		})
	}
	return sections, nodes
}

func buildSection(p PageSnapshotProvider, win snapshot.Window, selector string, index int, s *goquery.Selection) model.Section {
	n := s.Get(0)
	rect := p.BoundingRect(n)
	style := p.ComputedStyle(n)
	text := strings.TrimSpace(s.Text())

	attrs := make(map[string]string, len(n.Attr))
	for _, a := range n.Attr {
		attrs[a.Key] = a.Val
	}
	styles := make(map[string]string, len(styleProps))
	for _, prop := range styleProps {
		styles[prop] = style.Get(prop)
	}

	var children []model.ChildSummary
	s.Children().Each(func(_ int, cs *goquery.Selection) {
		c := cs.Get(0)
		children = append(children, model.ChildSummary{
			TagName:     c.Data,
			ClassName:   attr(c, "class"),
			ID:          attr(c, "id"),
			HasChildren: cs.Children().Length() > 0,
			TextLength:  utf8.RuneCountInString(cs.Text()),
		})
	})

	descendants := s.Find("*")
	var names []string
	seen := map[string]bool{}
	descendants.Each(func(_ int, d *goquery.Selection) {
		name := goquery.NodeName(d)
		if !seen[name] {
			seen[name] = true
			names = append(names, name)
		}
	})

	return model.Section{
		ID:       fmt.Sprintf("%s_%d", sectionIDChars.ReplaceAllString(selector, "_"), index),
		Selector: selector,
		TagName:  n.Data,
		Type:     classifyElementType(n.Data, attr(n, "class")),
		Bounds: model.Bounds{
			X:      rect.X + win.ScrollX,
			Y:      rect.Y + win.ScrollY,
			Width:  rect.Width,
			Height: rect.Height,
			Top:    rect.Y + win.ScrollY,
			Left:   rect.X + win.ScrollX,
			Right:  rect.Right() + win.ScrollX,
			Bottom: rect.Bottom() + win.ScrollY,
		},
		Content:        detailedContent(s, text),
		Attributes:     attrs,
		ComputedStyles: styles,
		Children:       children,
		Depth:          elementDepth(n),
		Elements: model.ElementCount{
			Direct: len(elementChildren(n)),
			All:    descendants.Length(),
		},
		ElementNames: names,
		TextContent:  truncate(text, 500),
		IsEmpty: text == "" && len(elementChildren(n)) == 0 &&
			s.Find("img, video, audio, svg, canvas").Length() == 0,
		HasInteractiveElements: s.Find(interactiveSelector).Length() > 0,
		Accessibility:          accessibility(n),
	}
}

// classifyElementType maps tag and class keywords to a section type. The
// first matching rule wins.
func classifyElementType(tag, class string) string {
	class = strings.ToLower(class)
	switch {
	case tag == "header" || strings.Contains(class, "header"):
		return "header"
	case tag == "nav" || strings.Contains(class, "nav"):
		return "navigation"
	case tag == "main" || strings.Contains(class, "main"):
		return "main-content"
	case tag == "footer" || strings.Contains(class, "footer"):
		return "footer"
	case tag == "aside" || strings.Contains(class, "sidebar"):
		return "sidebar"
	case strings.Contains(class, "hero") || strings.Contains(class, "banner"):
		return "hero-section"
	case strings.Contains(class, "card"):
		return "card-component"
	case strings.Contains(class, "modal"):
		return "modal-component"
	case strings.Contains(class, "carousel") || strings.Contains(class, "slider"):
		return "carousel-component"
	case strings.Contains(class, "form"):
		return "form-component"
	case strings.Contains(class, "button") || strings.Contains(class, "btn"):
		return "button-component"
	}
	return "content-section"
}

func detailedContent(s *goquery.Selection, text string) model.SectionContent {
	return model.SectionContent{
		Text:       truncate(text, 300),
		Headings:   s.Find("h1, h2, h3, h4, h5, h6").Length(),
		Paragraphs: s.Find("p").Length(),
		Images:     s.Find("img").Length(),
		Links:      s.Find("a").Length(),
		Lists:      s.Find("ul, ol").Length(),
		Tables:     s.Find("table").Length(),
		Forms:      s.Find("form").Length(),
		Buttons:    s.Find(buttonSelector).Length(),
		Inputs:     s.Find("input, textarea, select").Length(),
	}
}

func accessibility(n *html.Node) model.Accessibility {
	a := model.Accessibility{
		HasAriaLabel:      attr(n, "aria-label") != "",
		HasAriaLabelledBy: attr(n, "aria-labelledby") != "",
		HasRole:           attr(n, "role") != "",
		HasTabIndex:       attr(n, "tabindex") != "",
		IsHeading:         len(n.Data) == 2 && n.Data[0] == 'h' && n.Data[1] >= '1' && n.Data[1] <= '6',
	}
	if n.Data == "img" {
		alt := attr(n, "alt") != ""
		a.HasAltText = &alt
	}
	return a
}

func analyzeForms(p PageSnapshotProvider, win snapshot.Window) []model.Form {
	var forms []model.Form
	p.QueryAll("form").Each(func(i int, s *goquery.Selection) {
		n := s.Get(0)
		action := win.Href
		if raw := attr(n, "action"); raw != "" {
			action = resolveURL(win.Href, raw)
		}
		method := strings.ToLower(attr(n, "method"))
		if method == "" {
			method = "get"
		}

		form := model.Form{
			ID:         fmt.Sprintf("form_%d", i),
			Action:     action,
			Method:     method,
			Inputs:     []model.FormInput{},
			Buttons:    []model.FormButton{},
			Validation: !hasAttr(n, "novalidate"),
		}
		s.Find("input, textarea, select").Each(func(_ int, in *goquery.Selection) {
			el := in.Get(0)
			form.Inputs = append(form.Inputs, model.FormInput{
				Type:        fieldType(el),
				Name:        attr(el, "name"),
				Placeholder: attr(el, "placeholder"),
				Required:    hasAttr(el, "required"),
				ID:          attr(el, "id"),
			})
		})
		s.Find(`button, input[type="submit"]`).Each(func(_ int, b *goquery.Selection) {
			el := b.Get(0)
			form.Buttons = append(form.Buttons, model.FormButton{
				Type:  buttonType(el),
				Text:  strings.TrimSpace(b.Text()),
				Value: attr(el, "value"),
			})
		})
		form.FieldCount = len(form.Inputs)
		forms = append(forms, form)
	})
	return forms
}

// fieldType mirrors the DOM's HTMLInputElement.type defaults.
func fieldType(n *html.Node) string {
	switch n.Data {
	case "textarea":
		return "textarea"
	case "select":
		if hasAttr(n, "multiple") {
			return "select-multiple"
		}
		return "select-one"
	}
	if t := strings.ToLower(attr(n, "type")); t != "" {
		return t
	}
	return "text"
}

func buttonType(n *html.Node) string {
	if t := strings.ToLower(attr(n, "type")); t != "" {
		return t
	}
	if n.Data == "button" {
		return "submit"
	}
	return "button"
}

func analyzeMedia(p PageSnapshotProvider, win snapshot.Window) model.Media {
	media := model.EmptyMedia()
	p.QueryAll("img").Each(func(i int, s *goquery.Selection) {
		n := s.Get(0)
		if !isVisible(p, n) {
			return
		}
		rect := p.BoundingRect(n)
		loading := attr(n, "loading")
		if loading == "" {
			loading = "eager"
		}
		media.Images = append(media.Images, model.Image{
			ID:      fmt.Sprintf("img_%d", i),
			Src:     resolveURL(win.Href, attr(n, "src")),
			Alt:     attr(n, "alt"),
			Width:   dimension(attr(n, "width"), rect.Width),
			Height:  dimension(attr(n, "height"), rect.Height),
			Loading: loading,
			IsLazy:  loading == "lazy",
		})
	})
	playable := func(prefix string, i int, s *goquery.Selection) model.Playable {
		n := s.Get(0)
		src := attr(n, "src")
		if src == "" {
			src, _ = s.Find("source[src]").First().Attr("src")
		}
		return model.Playable{
			ID:       fmt.Sprintf("%s_%d", prefix, i),
			Src:      resolveURL(win.Href, src),
			Controls: hasAttr(n, "controls"),
			Autoplay: hasAttr(n, "autoplay"),
			Loop:     hasAttr(n, "loop"),
			Muted:    hasAttr(n, "muted"),
		}
	}
	p.QueryAll("video").Each(func(i int, s *goquery.Selection) {
		media.Videos = append(media.Videos, playable("video", i, s))
	})
	p.QueryAll("audio").Each(func(i int, s *goquery.Selection) {
		media.Audio = append(media.Audio, playable("audio", i, s))
	})
	return media
}

func dimension(declared string, rendered float64) int {
	if v, err := strconv.Atoi(strings.TrimSuffix(declared, "px")); err == nil {
		return v
	}
	return int(math.Round(rendered))
}

func analyzeInteractive(p PageSnapshotProvider, win snapshot.Window) model.Interactive {
	in := model.EmptyInteractive()
	p.QueryAll(buttonSelector).Each(func(i int, s *goquery.Selection) {
		n := s.Get(0)
		if !isVisible(p, n) {
			return
		}
		text := strings.TrimSpace(s.Text())
		if text == "" {
			text = attr(n, "value")
		}
		in.Buttons = append(in.Buttons, model.Button{
			ID:       fmt.Sprintf("btn_%d", i),
			Text:     text,
			Type:     buttonType(n),
			Disabled: hasAttr(n, "disabled"),
			Classes:  classList(n),
		})
	})
	p.QueryAll("a[href]").Each(func(i int, s *goquery.Selection) {
		n := s.Get(0)
		if !isVisible(p, n) {
			return
		}
		href := resolveURL(win.Href, attr(n, "href"))
		in.Links = append(in.Links, model.Link{
			ID:         fmt.Sprintf("link_%d", i),
			Href:       href,
			Text:       strings.TrimSpace(s.Text()),
			IsExternal: win.Origin == "" || !strings.HasPrefix(href, win.Origin),
			Target:     attr(n, "target"),
		})
	})
	p.QueryAll(fieldSelector).Each(func(i int, s *goquery.Selection) {
		n := s.Get(0)
		if !isVisible(p, n) {
			return
		}
		in.Inputs = append(in.Inputs, model.Input{
			ID:          fmt.Sprintf("input_%d", i),
			Type:        fieldType(n),
			Name:        attr(n, "name"),
			Placeholder: attr(n, "placeholder"),
		})
	})
	p.QueryAll("select").Each(func(i int, s *goquery.Selection) {
		n := s.Get(0)
		if !isVisible(p, n) {
			return
		}
		in.Selects = append(in.Selects, model.Select{
			ID:      fmt.Sprintf("select_%d", i),
			Name:    attr(n, "name"),
			Options: s.Find("option").Length(),
		})
	})
	return in
}

func analyzeNavigation(p PageSnapshotProvider, win snapshot.Window) model.Navigation {
	nav := model.EmptyNavigation()
	block := func(prefix string, i int, s *goquery.Selection) model.NavBlock {
		links := s.Find("a")
		b := model.NavBlock{
			ID:        fmt.Sprintf("%s_%d", prefix, i),
			Location:  navigationLocation(s),
			LinkCount: links.Length(),
			Links:     []model.NavLink{},
		}
		links.EachWithBreak(func(j int, l *goquery.Selection) bool {
			if j >= 10 {
				return false
			}
			b.Links = append(b.Links, navLink(win, l))
			return true
		})
		return b
	}

	p.QueryAll(`nav, [role="navigation"], .navbar, .main-nav`).Each(func(i int, s *goquery.Selection) {
		nav.Primary = append(nav.Primary, block("nav", i, s))
	})
	p.QueryAll(".sub-nav, .subnav, .secondary-nav").Each(func(i int, s *goquery.Selection) {
		nav.Secondary = append(nav.Secondary, block("subnav", i, s))
	})
	p.QueryAll(`.pagination, [aria-label*="pagination"], [aria-label*="Pagination"]`).Each(func(i int, s *goquery.Selection) {
		nav.Pagination = append(nav.Pagination, block("pagination", i, s))
	})
	for _, selector := range breadcrumbSelectors {
		p.QueryAll(selector).Each(func(i int, s *goquery.Selection) {
			crumb := model.Breadcrumb{ID: fmt.Sprintf("breadcrumb_%d", i), Steps: []model.NavLink{}}
			s.Find("a").Each(func(_ int, l *goquery.Selection) {
				crumb.Steps = append(crumb.Steps, navLink(win, l))
			})
			nav.Breadcrumbs = append(nav.Breadcrumbs, crumb)
		})
	}
	return nav
}

func navLink(win snapshot.Window, l *goquery.Selection) model.NavLink {
	href, _ := l.Attr("href")
	if href != "" {
		href = resolveURL(win.Href, href)
	}
	return model.NavLink{Text: strings.TrimSpace(l.Text()), Href: href}
}

// navigationLocation places a nav by its nearest structural ancestor.
func navigationLocation(s *goquery.Selection) string {
	switch {
	case s.Closest("header").Length() > 0:
		return "header"
	case s.Closest("footer").Length() > 0:
		return "footer"
	case s.Closest("aside").Length() > 0:
		return "sidebar"
	}
	return "main"
}

func analyzeLayout(p PageSnapshotProvider, win snapshot.Window) model.Layout {
	layout := model.Layout{
		Structure:    "unknown",
		Columns:      1,
		HasHeader:    p.QueryAll(`header, [role="banner"]`).Length() > 0,
		HasFooter:    p.QueryAll(`footer, [role="contentinfo"]`).Length() > 0,
		HasSidebar:   p.QueryAll(`aside, .sidebar, [role="complementary"]`).Length() > 0,
		IsResponsive: p.QueryAll(`meta[name="viewport"]`).Length() > 0 || win.MaxWidthMedia,
		GridAreas:    []model.GridArea{},
	}

	if main := p.QueryAll(`main, [role="main"], .main-content`).First(); main.Length() > 0 {
		n := main.Get(0)
		style := p.ComputedStyle(n)
		display := style.Get("display")
		switch {
		case strings.Contains(display, "grid"):
			layout.Structure = "grid"
			if cols := countGridColumns(style.Get("gridTemplateColumns")); cols > 0 {
				layout.Columns = cols
			}
		case strings.Contains(display, "flex"):
			layout.Structure = "flexbox"
			if !strings.HasPrefix(style.Get("flexDirection"), "column") {
				if cols := len(elementChildren(n)); cols > 0 {
					layout.Columns = cols
				}
			}
		default:
			layout.Structure = "traditional"
		}
	}

	p.QueryAll("*").Each(func(_ int, s *goquery.Selection) {
		style := p.ComputedStyle(s.Get(0))
		areas := style.Get("gridTemplateAreas")
		if style.Get("display") == "grid" && areas != "" && areas != "none" {
			layout.GridAreas = append(layout.GridAreas, model.GridArea{
				Element: goquery.NodeName(s),
				Areas:   areas,
			})
		}
	})
	return layout
}

// countGridColumns counts the tracks of a grid-template-columns value.
// "repeat(3, 1fr)" is 3, "200px 1fr" is 2.
func countGridColumns(template string) int {
	template = strings.TrimSpace(template)
	if template == "" || template == "none" {
		return 0
	}
	var tokens []string
	depth, start := 0, -1
	for i, c := range template {
		switch {
		case c == '(':
			depth++
		case c == ')':
			depth--
		case unicode.IsSpace(c) && depth == 0:
			if start >= 0 {
				tokens = append(tokens, template[start:i])
				start = -1
			}
			continue
		}
		if start < 0 {
			start = i
		}
	}
	if start >= 0 {
		tokens = append(tokens, template[start:])
	}

	count := 0
	for _, tok := range tokens {
		if inner, ok := strings.CutPrefix(tok, "repeat("); ok {
			num, _, _ := strings.Cut(inner, ",")
			if n, err := strconv.Atoi(strings.TrimSpace(num)); err == nil {
				count += n
				continue
			}
		}
		count++
	}
	return count
}

func analyzeMeta(p PageSnapshotProvider, win snapshot.Window) model.Meta {
	content := func(name string) string {
		v, _ := p.QueryAll(fmt.Sprintf(`meta[name="%s"]`, name)).First().Attr("content")
		return v
	}
	title := win.Title
	if title == "" {
		title = strings.TrimSpace(p.QueryAll("title").First().Text())
	}
	return model.Meta{
		Title:       title,
		Description: content("description"),
		Keywords:    content("keywords"),
		Viewport:    content("viewport"),
		Charset:     win.Charset,
	}
}

func detectModals(p PageSnapshotProvider, win snapshot.Window) []model.Modal {
	var modals []model.Modal
	for _, selector := range modalSelectors {
		p.QueryAll(selector).Each(func(_ int, s *goquery.Selection) {
			n := s.Get(0)
			if !isVisible(p, n) {
				return
			}
			rect := p.BoundingRect(n)
			modals = append(modals, model.Modal{
				Selector: selector,
				ID:       attr(n, "id"),
				Classes:  classList(n),
				Bounds: model.Bounds{
					X: rect.X, Y: rect.Y, Width: rect.Width, Height: rect.Height,
					Top: rect.Y, Left: rect.X, Right: rect.Right(), Bottom: rect.Bottom(),
				},
				ZIndex:    p.ComputedStyle(n).Get("zIndex"),
				IsOverlay: rect.Width > win.InnerWidth*0.8 || rect.Height > win.InnerHeight*0.8,
			})
		})
	}
	return modals
}

func classList(n *html.Node) []string {
	classes := strings.Fields(attr(n, "class"))
	if classes == nil {
		return []string{}
	}
	return classes
}

func resolveURL(base, ref string) string {
	if ref == "" {
		return ""
	}
	r, err := url.Parse(ref)
	if err != nil {
		return ref
	}
	b, err := url.Parse(base)
	if err != nil || base == "" {
		return r.String()
	}
	return b.ResolveReference(r).String()
}
