package components

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/v0xg/routedoc/internal/model"
)

func TestAggregate(t *testing.T) {
	home := &model.ProcessedRoute{
		Route: model.Route{URL: "/"},
		Components: []model.Component{
			{Type: "Card", Instances: 3, CommonElements: []string{"h2", "p"}, Props: []string{"title"}, CSSClasses: []string{"card"}, Complexity: model.ComplexitySimple, ReusabilityScore: 40, Consistency: 90},
			{Type: "Header", Instances: 1, CommonElements: []string{"nav"}, Complexity: model.ComplexitySimple},
		},
	}
	blog := &model.ProcessedRoute{
		Route: model.Route{URL: "/blog"},
		Components: []model.Component{
			{Type: "card", Instances: 2, CommonElements: []string{"p", "img"}, Props: []string{"href"}, CSSClasses: []string{"card", "wide"}, Complexity: model.ComplexityComplex, ReusabilityScore: 70, Consistency: 50},
		},
	}

	got := Aggregate([]*model.ProcessedRoute{home, nil, blog})
	require.Len(t, got, 2)

	card := got[0]
	assert.Equal(t, "Card", card.Type)
	assert.Equal(t, 5, card.TotalInstances)
	assert.Equal(t, []model.ComponentUsage{{Route: "/", Count: 3}, {Route: "/blog", Count: 2}}, card.Usage)
	assert.Equal(t, []string{"p"}, card.CommonElements)
	assert.Equal(t, []string{"href", "title"}, card.Props)
	assert.Equal(t, []string{"card", "wide"}, card.CSSClasses)
	assert.Equal(t, model.ComplexityComplex, card.Complexity)
	assert.Equal(t, 70, card.ReusabilityScore)
	assert.Equal(t, 90, card.Consistency)
	assert.Equal(t, model.LevelHigh, card.Priority)

	header := got[1]
	assert.Equal(t, "Header", header.Type)
	assert.Equal(t, model.LevelLow, header.Priority)
	assert.NotNil(t, header.Props)
}

func TestAggregateEmpty(t *testing.T) {
	got := Aggregate(nil)
	assert.NotNil(t, got)
	assert.Empty(t, got)
}
