package components

import (
	"sort"
	"strings"

	"github.com/v0xg/routedoc/internal/model"
)

var complexityRank = map[string]int{
	model.ComplexitySimple:   1,
	model.ComplexityModerate: 2,
	model.ComplexityComplex:  3,
}

// Aggregate merges the components of every processed route by type,
// ignoring case. The first spelling seen names the merged component.
// Results are ordered by total instances, most used first.
func Aggregate(routes []*model.ProcessedRoute) []model.AggregatedComponent {
	byKey := make(map[string]*model.AggregatedComponent)
	var order []string
	props := make(map[string]map[string]bool)
	classes := make(map[string]map[string]bool)

	for _, r := range routes {
		if r == nil {
			continue
		}
		for _, c := range r.Components {
			key := strings.ToLower(c.Type)
			agg, ok := byKey[key]
			if !ok {
				agg = &model.AggregatedComponent{
					Type:           c.Type,
					Usage:          []model.ComponentUsage{},
					CommonElements: nonNil(c.CommonElements),
					Complexity:     c.Complexity,
				}
				byKey[key] = agg
				order = append(order, key)
				props[key] = make(map[string]bool)
				classes[key] = make(map[string]bool)
			} else {
				agg.CommonElements = intersect(agg.CommonElements, c.CommonElements)
			}

			agg.TotalInstances += c.Instances
			agg.Usage = append(agg.Usage, model.ComponentUsage{Route: r.Route.URL, Count: c.Instances})
			agg.ReusabilityScore = max(agg.ReusabilityScore, c.ReusabilityScore)
			agg.Consistency = max(agg.Consistency, c.Consistency)
			if complexityRank[c.Complexity] > complexityRank[agg.Complexity] {
				agg.Complexity = c.Complexity
			}
			for _, p := range c.Props {
				props[key][p] = true
			}
			for _, cl := range c.CSSClasses {
				classes[key][cl] = true
			}
		}
	}

	out := make([]model.AggregatedComponent, 0, len(order))
	for _, key := range order {
		agg := byKey[key]
		agg.Props = sortedKeys(props[key])
		agg.CSSClasses = sortedKeys(classes[key])
		agg.Priority = extractionPriority(agg)
		out = append(out, *agg)
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].TotalInstances > out[j].TotalInstances
	})
	return out
}

// extractionPriority ranks how worthwhile pulling a component into a shared
// library is: widely used and reusable components come first.
func extractionPriority(c *model.AggregatedComponent) string {
	switch {
	case len(c.Usage) >= 3 || (c.TotalInstances >= 3 && c.ReusabilityScore >= 50):
		return model.LevelHigh
	case len(c.Usage) >= 2 || c.TotalInstances >= 2:
		return model.LevelMedium
	}
	return model.LevelLow
}

func intersect(a, b []string) []string {
	out := []string{}
	for _, x := range a {
		for _, y := range b {
			if x == y {
				out = append(out, x)
				break
			}
		}
	}
	return out
}
