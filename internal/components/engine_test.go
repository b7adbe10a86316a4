package components

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/v0xg/routedoc/internal/model"
)

func section(id, tag, class, typ string, top float64, elements ...string) model.Section {
	attrs := map[string]string{}
	if class != "" {
		attrs["class"] = class
	}
	return model.Section{
		ID:             id,
		TagName:        tag,
		Type:           typ,
		Attributes:     attrs,
		ComputedStyles: map[string]string{"display": "block"},
		ElementNames:   elements,
		Bounds:         model.Bounds{Top: top, Y: top},
	}
}

func pageSections() []model.Section {
	card := func(id string, top float64, title string) model.Section {
		s := section(id, "div", "card", "card-component", top, "h2", "p", "button")
		s.TextContent = title + " Buy"
		s.Children = []model.ChildSummary{{TagName: "h2"}, {TagName: "p"}, {TagName: "button"}}
		return s
	}
	header := section("header_0", "header", "site-header", "header", 0, "nav", "a")
	nav := section("nav_0", "nav", "main-nav", "navigation", 10, "a")
	main := section("main_0", "main", "", "main-content", 100, "div", "h2", "p", "button", "form")
	main.NestedStructure = &model.NestedStructure{RepeatingPatterns: []string{"div.card"}}
	return []model.Section{
		header, nav, main,
		section("footer_0", "footer", "", "footer", 900, "a"),
		card("_card_0", 120, "One"),
		card("_card_1", 120, "Two"),
		card("_card_2", 400, "Three"),
		section("div_0", "div", "", "content-section", 600),
	}
}

func componentByType(t *testing.T, r model.ComponentReport, typ string) model.Component {
	t.Helper()
	for _, c := range r.Components {
		if c.Type == typ {
			return c
		}
	}
	t.Fatalf("component %q not found", typ)
	return model.Component{}
}

func TestComponentType(t *testing.T) {
	tests := []struct {
		name    string
		section model.Section
		want    string
	}{
		{"header tag", section("a", "header", "", "", 0), "Header"},
		{"header class wins over card", section("a", "div", "card-header", "", 0), "Header"},
		{"nav class substring", section("a", "ul", "navbar", "", 0), "Navigation"},
		{"nav by inspector type", section("a", "div", "", "navigation", 0), "Navigation"},
		{"item is a card", section("a", "li", "list-item", "", 0), "Card"},
		{"btn class", section("a", "a", "btn primary", "", 0), "Button"},
		{"form tag", section("a", "form", "", "", 0), "Form"},
		{"banner", section("a", "section", "top-banner", "", 0), "Hero"},
		{"aside", section("a", "aside", "", "", 0), "Sidebar"},
		{"main by type", section("a", "div", "", "main-content", 0), "MainContent"},
		{"uppercase tag", section("a", "FOOTER", "", "", 0), "Footer"},
		{"fallback", section("a", "div", "plain", "content-section", 0), GenericComponent},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ComponentType(tt.section))
		})
	}
}

func TestExtract(t *testing.T) {
	report := NewEngine(nil).Extract(&model.PageAnalysis{Sections: pageSections()})

	var types []string
	for _, c := range report.Components {
		types = append(types, c.Type)
		assert.Equal(t, c.Instances, len(c.Variations))
		assert.GreaterOrEqual(t, c.Instances, 1)
	}
	assert.Equal(t, []string{"Card", "Footer", "GenericComponent", "Header", "MainContent", "Navigation"}, types)
	assert.Equal(t, 6, report.TotalComponents)

	card := componentByType(t, report, "Card")
	assert.Equal(t, 3, card.Instances)
	assert.Equal(t, []string{"button", "h2", "p"}, card.CommonElements)
	assert.Equal(t, []string{"className", "content", "href", "imageUrl", "title"}, card.Props)
	assert.Equal(t, []string{"card"}, card.CSSClasses)
	assert.Equal(t, model.ComplexityModerate, card.Complexity)
	assert.Equal(t, 60, card.ReusabilityScore)
	assert.Equal(t, 100, card.Consistency)
	assert.Equal(t, "_card_0", card.Variations[0].SectionID)
	assert.Equal(t, 1, card.Variations[0].ID)

	header := componentByType(t, report, "Header")
	assert.Equal(t, []string{"className", "logo", "navigationItems", "title"}, header.Props)

	generic := componentByType(t, report, GenericComponent)
	assert.Equal(t, model.ComplexitySimple, generic.Complexity)
	assert.Empty(t, generic.CommonElements)
	assert.NotNil(t, generic.CommonElements)
}

func TestExtractCrossComponentAnalysis(t *testing.T) {
	report := NewEngine(nil).Extract(&model.PageAnalysis{Sections: pageSections()})
	cross := report.CrossComponentAnalysis

	assert.Contains(t, cross.Relationships, model.Relationship{From: "Card", To: "MainContent", SharedElements: []string{"button", "h2", "p"}})
	assert.Contains(t, cross.Relationships, model.Relationship{From: "Footer", To: "Header", SharedElements: []string{"a"}})
	assert.Contains(t, cross.SharedElements, "a")
	assert.Equal(t, report.ReusabilityScore, cross.ReusabilityScore)
}

func TestExtractOpportunities(t *testing.T) {
	report := NewEngine(nil).Extract(&model.PageAnalysis{Sections: pageSections()})
	opps := report.RefactoringOpportunities
	require.NotEmpty(t, opps)

	byType := map[string]model.RefactoringOpportunity{}
	for _, o := range opps {
		byType[o.Component+"/"+o.Type] = o
	}
	prop, ok := byType["Card/"+model.OpportunityPropExtract]
	require.True(t, ok)
	assert.Equal(t, []string{"text"}, prop.Details)

	comp, ok := byType["MainContent/"+model.OpportunityComposition]
	require.True(t, ok)
	assert.Equal(t, []string{"div.card"}, comp.Details)

	_, dup := byType["Card/"+model.OpportunityDuplicate]
	assert.False(t, dup, "cards differ in text")

	for i := 1; i < len(opps); i++ {
		assert.GreaterOrEqual(t, opps[i-1].Weight(), opps[i].Weight())
	}
	assert.Equal(t, model.LevelMedium, report.RefactoringPriority)
}

func TestDuplicateAndInconsistentStyling(t *testing.T) {
	a := section("b1", "button", "btn", "", 0, "span")
	b := section("b2", "button", "btn", "", 10, "span")
	c := section("b3", "button", "btn", "", 20, "span")
	c.ComputedStyles = map[string]string{"display": "inline-block"}

	report := NewEngine(nil).Extract(&model.PageAnalysis{Sections: []model.Section{a, b, c}})
	require.Len(t, report.Components, 1)
	button := report.Components[0]
	assert.Equal(t, 0, button.Consistency)
	assert.Equal(t, []string{"className", "disabled", "onClick", "variant"}, button.Props)

	require.NotEmpty(t, report.RefactoringOpportunities)
	top := report.RefactoringOpportunities[0]
	assert.Equal(t, model.OpportunityDuplicate, top.Type)
	assert.Equal(t, []string{"b1, b2"}, top.Details)
	assert.Equal(t, model.LevelHigh, report.RefactoringPriority)

	var styling *model.RefactoringOpportunity
	for i := range report.RefactoringOpportunities {
		if report.RefactoringOpportunities[i].Type == model.OpportunityInconsistent {
			styling = &report.RefactoringOpportunities[i]
		}
	}
	require.NotNil(t, styling)
	assert.Equal(t, []string{"display: block | inline-block"}, styling.Details)
}

func TestExtractIsOrderIndependent(t *testing.T) {
	engine := NewEngine(nil)
	want := engine.Extract(&model.PageAnalysis{Sections: pageSections()})

	rng := rand.New(rand.NewSource(7))
	for i := 0; i < 10; i++ {
		shuffled := pageSections()
		rng.Shuffle(len(shuffled), func(a, b int) { shuffled[a], shuffled[b] = shuffled[b], shuffled[a] })
		got := engine.Extract(&model.PageAnalysis{Sections: shuffled})
		assert.Equal(t, want, got)
	}
}

func TestExtractEmpty(t *testing.T) {
	report := NewEngine(nil).Extract(nil)
	assert.Empty(t, report.Components)
	assert.NotNil(t, report.Components)
	assert.NotNil(t, report.RefactoringOpportunities)
	assert.NotNil(t, report.CrossComponentAnalysis.Relationships)
	assert.Zero(t, report.ReusabilityScore)
	assert.Equal(t, model.LevelLow, report.RefactoringPriority)
}

func TestComplexity(t *testing.T) {
	simple := model.Section{ElementNames: []string{"a"}}
	assert.Equal(t, model.ComplexitySimple, Complexity([]model.Section{simple}))

	complex := model.Section{
		Children:     make([]model.ChildSummary, 6),
		ElementNames: []string{"a", "b", "c", "d", "e"},
	}
	assert.Equal(t, model.ComplexityComplex, Complexity([]model.Section{complex}))
	// (1.3 + 5.5) / 2 = 3.4
	assert.Equal(t, model.ComplexityModerate, Complexity([]model.Section{simple, complex}))
}

func TestReusabilityUsesEnhancedScores(t *testing.T) {
	a := section("a", "div", "widget", "", 0)
	a.Reusability = &model.Reusability{ReusabilityScore: 40}
	b := section("b", "div", "widget", "", 10)
	b.Reusability = &model.Reusability{ReusabilityScore: 55}
	assert.Equal(t, 48, reusabilityScore([]model.Section{a, b}))
}
