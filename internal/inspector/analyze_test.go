package inspector

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/net/html"

	"github.com/v0xg/routedoc/internal/inspector/snapshot"
	"github.com/v0xg/routedoc/internal/model"
)

const shopPage = `<html><head>
<title>Shop</title>
<meta name="viewport" content="width=device-width">
<meta name="description" content="A shop">
</head>
<body>
<header class="site-header"><nav class="main-nav"><a href="/">Home</a><a href="/about">About</a><a href="https://other.com/x">Ext</a></nav></header>
<main style="display: grid; grid-template-columns: repeat(3, 1fr)">
  <div class="card"><h2>One</h2><p>First</p><button>Buy</button></div>
  <div class="card"><h2>Two</h2><p>Second</p><button>Buy</button></div>
  <div class="card"><h2>Three</h2><p>Third</p><button>Buy</button></div>
  <form action="/search" method="POST"><input name="q" required placeholder="Search"><button type="submit">Go</button></form>
  <img src="/logo.png" alt="Logo" width="120">
</main>
<div class="modal" style="display: none">Hidden</div>
<footer><a href="mailto:x@y.z">Mail</a></footer>
</body></html>`

var fixedNow = func() time.Time { return time.UnixMilli(1700000000000) }

func shopSnapshot(t *testing.T) *snapshot.Snapshot {
	t.Helper()
	s, err := snapshot.FromString(shopPage, snapshot.Window{Href: "https://shop.test/products"})
	require.NoError(t, err)
	return s
}

func sectionByID(t *testing.T, a *model.PageAnalysis, id string) model.Section {
	t.Helper()
	for _, s := range a.Sections {
		if s.ID == id {
			return s
		}
	}
	t.Fatalf("section %q not found", id)
	return model.Section{}
}

func TestAnalyzePageStructureSections(t *testing.T) {
	a := AnalyzePageStructure(shopSnapshot(t), Options{Now: fixedNow})
	require.Empty(t, a.Error)

	var ids []string
	for _, s := range a.Sections {
		ids = append(ids, s.ID)
	}
	assert.Equal(t, []string{"header_0", "nav_0", "main_0", "footer_0", "_card_0", "_card_1", "_card_2"}, ids)

	header := sectionByID(t, a, "header_0")
	assert.Equal(t, "header", header.Type)
	assert.Equal(t, "site-header", header.Class())
	assert.Equal(t, "navigation", sectionByID(t, a, "nav_0").Type)
	assert.Equal(t, "main-content", sectionByID(t, a, "main_0").Type)

	card := sectionByID(t, a, "_card_0")
	assert.Equal(t, "card-component", card.Type)
	assert.Equal(t, ".card", card.Selector)
	assert.Equal(t, 1, card.Content.Headings)
	assert.Equal(t, 1, card.Content.Paragraphs)
	assert.Equal(t, 1, card.Content.Buttons)
	assert.Equal(t, []string{"h2", "p", "button"}, card.ElementNames)
	assert.Equal(t, model.ElementCount{Direct: 3, All: 3}, card.Elements)
	assert.True(t, card.HasInteractiveElements)
	assert.False(t, card.IsEmpty)
	assert.Equal(t, "grid", sectionByID(t, a, "main_0").ComputedStyles["display"])
	assert.Nil(t, card.LogicalGrouping, "enhanced fields only on the enhanced path")

	assert.Equal(t, int64(1700000000000), a.Performance.AnalysisTime)
}

func TestGraphicOnlySectionIsNotEmpty(t *testing.T) {
	rect := &snapshot.Rect{Width: 1000, Height: 80}
	page := &snapshot.Page{
		Window: snapshot.Window{Href: "https://shop.test/", InnerWidth: 1000, InnerHeight: 800},
		Root: &snapshot.Node{Tag: "html", Children: []*snapshot.Node{
			{Tag: "body", Rect: &snapshot.Rect{Width: 1000, Height: 800}, Children: []*snapshot.Node{
				{Tag: "header", Rect: rect, Children: []*snapshot.Node{
					{Tag: "svg", Attrs: [][2]string{{"viewBox", "0 0 24 24"}}, Rect: &snapshot.Rect{Width: 24, Height: 24}},
				}},
				{Tag: "aside", Rect: rect, Children: []*snapshot.Node{
					{Tag: "canvas", Attrs: [][2]string{{"width", "300"}}, Rect: &snapshot.Rect{Width: 300, Height: 80}},
				}},
				{Tag: "footer", Rect: rect},
			}},
		}},
	}
	s, err := snapshot.New(page)
	require.NoError(t, err)

	a := AnalyzePageStructure(s, Options{Now: fixedNow})
	require.Empty(t, a.Error)
	assert.False(t, sectionByID(t, a, "header_0").IsEmpty)
	assert.False(t, sectionByID(t, a, "aside_0").IsEmpty)
	assert.True(t, sectionByID(t, a, "footer_0").IsEmpty)
	assert.Equal(t, 1, s.QueryAll("svg[viewbox]").Length())
}

func TestAnalyzePageStructurePageParts(t *testing.T) {
	a := AnalyzePageStructure(shopSnapshot(t), Options{Now: fixedNow})

	require.Len(t, a.Forms, 1)
	form := a.Forms[0]
	assert.Equal(t, "form_0", form.ID)
	assert.Equal(t, "https://shop.test/search", form.Action)
	assert.Equal(t, "post", form.Method)
	require.Len(t, form.Inputs, 1)
	assert.Equal(t, "text", form.Inputs[0].Type)
	assert.True(t, form.Inputs[0].Required)
	require.Len(t, form.Buttons, 1)
	assert.Equal(t, "submit", form.Buttons[0].Type)
	assert.Equal(t, 1, form.FieldCount)
	assert.True(t, form.Validation)

	require.Len(t, a.Media.Images, 1)
	img := a.Media.Images[0]
	assert.Equal(t, "https://shop.test/logo.png", img.Src)
	assert.Equal(t, 120, img.Width)
	assert.Equal(t, "eager", img.Loading)
	assert.False(t, img.IsLazy)

	assert.Len(t, a.Interactive.Buttons, 4)
	require.Len(t, a.Interactive.Links, 4)
	external := map[string]bool{}
	for _, l := range a.Interactive.Links {
		external[l.Href] = l.IsExternal
	}
	assert.False(t, external["https://shop.test/"])
	assert.True(t, external["https://other.com/x"])
	assert.Len(t, a.Interactive.Inputs, 1)

	require.Len(t, a.Navigation.Primary, 1)
	nav := a.Navigation.Primary[0]
	assert.Equal(t, "header", nav.Location)
	assert.Equal(t, 3, nav.LinkCount)
	assert.Equal(t, "https://shop.test/about", nav.Links[1].Href)

	assert.Equal(t, "grid", a.Layout.Structure)
	assert.Equal(t, 3, a.Layout.Columns)
	assert.True(t, a.Layout.HasHeader)
	assert.True(t, a.Layout.HasFooter)
	assert.False(t, a.Layout.HasSidebar)
	assert.True(t, a.Layout.IsResponsive)

	assert.Empty(t, a.Modals, "hidden modal is not reported")
	assert.NotNil(t, a.Modals)

	assert.Equal(t, "Shop", a.Meta.Title)
	assert.Equal(t, "A shop", a.Meta.Description)
	assert.Equal(t, "UTF-8", a.Meta.Charset)
	assert.Greater(t, a.DOMStructure.TotalElements, 20)
	assert.Equal(t, float64(1280), a.DOMStructure.Viewport.Width)
}

func TestAnalyzePageStructureEnhanced(t *testing.T) {
	a := AnalyzePageStructure(shopSnapshot(t), Options{Enhanced: true, Now: fixedNow})

	card := sectionByID(t, a, "_card_1")
	require.NotNil(t, card.Reusability)
	assert.Equal(t, 25, card.Reusability.ReusabilityScore)
	assert.True(t, card.Reusability.RepeatingSiblings)
	assert.Equal(t, []string{"card"}, card.Reusability.ReusableClasses)
	assert.Equal(t, "action", card.LogicalGrouping.FunctionalGroup)
	assert.Equal(t, "article", card.LogicalGrouping.ContentGroup)

	main := sectionByID(t, a, "main_0")
	assert.Equal(t, 20, main.Reusability.ReusabilityScore)
	assert.Equal(t, "main", main.LogicalGrouping.SemanticGroup)
	assert.Equal(t, "grid", main.LayoutPattern.Pattern)
	assert.Equal(t, 3, main.LayoutPattern.GridColumns)
	assert.Equal(t, "grid", main.NestedStructure.DataStructure)
	assert.Equal(t, []string{"div.card"}, main.NestedStructure.RepeatingPatterns)
	assert.Equal(t, []string{"_card_0", "_card_1", "_card_2"}, main.NestedStructure.NestedSections)

	header := sectionByID(t, a, "header_0")
	assert.Equal(t, []string{"nav_0"}, header.NestedStructure.NestedSections)
	assert.NotEmpty(t, header.DesignTokens.Colors)
}

type panickingProvider struct{ PageSnapshotProvider }

func (panickingProvider) Window() snapshot.Window { return snapshot.Window{} }

func (panickingProvider) QueryAll(string) *goquery.Selection { panic("document detached") }

func (panickingProvider) ComputedStyle(*html.Node) snapshot.Style { return nil }

func TestAnalyzePageStructureNeverFails(t *testing.T) {
	a := AnalyzePageStructure(panickingProvider{}, Options{Now: fixedNow})
	assert.Equal(t, "document detached", a.Error)
	assert.Equal(t, "unknown", a.Layout.Structure)

	data, err := json.Marshal(a)
	require.NoError(t, err)
	assert.NotContains(t, string(data), "null")

	a = AnalyzePageStructure(nil, Options{Now: fixedNow})
	assert.NotEmpty(t, a.Error)
	assert.NotNil(t, a.Sections)
}

func TestClassifyElementType(t *testing.T) {
	tests := []struct {
		tag, class, want string
	}{
		{"header", "", "header"},
		{"div", "Page-Header", "header"},
		{"div", "navbar", "navigation"},
		{"section", "main-area", "main-content"},
		{"footer", "", "footer"},
		{"aside", "", "sidebar"},
		{"div", "hero", "hero-section"},
		{"div", "product-card", "card-component"},
		{"div", "modal", "modal-component"},
		{"div", "slider", "carousel-component"},
		{"div", "form-wrap", "form-component"},
		{"div", "btn", "button-component"},
		{"section", "", "content-section"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, classifyElementType(tt.tag, tt.class), "%s.%s", tt.tag, tt.class)
	}
}

func TestCountGridColumns(t *testing.T) {
	tests := map[string]int{
		"repeat(3, 1fr)":                        3,
		"200px 1fr":                             2,
		"minmax(100px, 1fr) 2fr":                2,
		"repeat(auto-fill, minmax(200px, 1fr))": 1,
		"repeat(2, 1fr) 300px":                  3,
		"none":                                  0,
		"":                                      0,
	}
	for template, want := range tests {
		assert.Equal(t, want, countGridColumns(template), template)
	}
}
