// Package components infers recurring UI components from the sections found
// by page structure analysis.
package components

import (
	"encoding/json"
	"fmt"
	"math"
	"slices"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/v0xg/routedoc/internal/model"
)

// GenericComponent is the type of a section no rule matches.
const GenericComponent = "GenericComponent"

// typeRule classifies a section by tag, then class substring, then the
// section type the inspector assigned. Rules are tried in order.
type typeRule struct {
	name    string
	tags    []string
	classes []string
	types   []string
}

var typeRules = []typeRule{
	{name: "Header", tags: []string{"header"}, classes: []string{"header"}, types: []string{"header"}},
	{name: "Navigation", tags: []string{"nav"}, classes: []string{"nav"}, types: []string{"navigation"}},
	{name: "Footer", tags: []string{"footer"}, classes: []string{"footer"}, types: []string{"footer"}},
	{name: "Card", classes: []string{"card", "item"}},
	{name: "Button", tags: []string{"button"}, classes: []string{"btn"}},
	{name: "Form", tags: []string{"form"}, classes: []string{"form"}},
	{name: "Hero", classes: []string{"hero", "banner"}},
	{name: "Sidebar", tags: []string{"aside"}, classes: []string{"sidebar"}},
	{name: "MainContent", tags: []string{"main"}, classes: []string{"main"}, types: []string{"main-content"}},
}

func (r typeRule) match(tag, class, typ string) bool {
	if slices.Contains(r.tags, tag) {
		return true
	}
	for _, c := range r.classes {
		if strings.Contains(class, c) {
			return true
		}
	}
	return slices.Contains(r.types, typ)
}

// ComponentType returns the component category of a section.
func ComponentType(s model.Section) string {
	tag := strings.ToLower(s.TagName)
	class := strings.ToLower(s.Class())
	for _, r := range typeRules {
		if r.match(tag, class, s.Type) {
			return r.name
		}
	}
	return GenericComponent
}

var defaultProps = map[string][]string{
	"Button":     {"onClick", "disabled", "variant"},
	"Header":     {"title", "logo", "navigationItems"},
	"Card":       {"title", "content", "imageUrl", "href"},
	"Navigation": {"items", "activeItem"},
	"Form":       {"onSubmit", "fields"},
}

var attributeProps = map[string]string{
	"id":    "id",
	"class": "className",
	"href":  "href",
	"src":   "src",
	"alt":   "alt",
	"title": "title",
}

// Engine groups sections into components and scores them.
type Engine struct {
	logger *zap.Logger
}

// NewEngine creates an Engine. A nil logger is replaced with a no-op one.
func NewEngine(logger *zap.Logger) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{logger: logger}
}

// Extract infers the components of one analysed page. The result does not
// depend on the order of the sections.
func (e *Engine) Extract(a *model.PageAnalysis) model.ComponentReport {
	var sections []model.Section
	if a != nil {
		sections = a.Sections
	}

	groups := make(map[string][]model.Section)
	for _, s := range sections {
		t := ComponentType(s)
		groups[t] = append(groups[t], s)
	}
	types := make([]string, 0, len(groups))
	for t := range groups {
		types = append(types, t)
	}
	sort.Strings(types)

	report := model.ComponentReport{
		Components:               make([]model.Component, 0, len(types)),
		RefactoringOpportunities: []model.RefactoringOpportunity{},
	}
	for _, t := range types {
		instances := sortedInstances(groups[t])
		report.Components = append(report.Components, buildComponent(t, instances))
		report.RefactoringOpportunities = append(report.RefactoringOpportunities, opportunities(t, instances)...)
	}

	sortOpportunities(report.RefactoringOpportunities)
	report.CrossComponentAnalysis = crossAnalysis(types, groups)
	report.TotalComponents = len(report.Components)
	report.ReusabilityScore = meanScore(report.Components)
	report.CrossComponentAnalysis.ReusabilityScore = report.ReusabilityScore
	report.RefactoringPriority = overallPriority(report.RefactoringOpportunities)

	e.logger.Debug("components extracted",
		zap.Int("sections", len(sections)),
		zap.Int("components", report.TotalComponents),
		zap.Int("opportunities", len(report.RefactoringOpportunities)))
	return report
}

// sortedInstances orders a group by page position so variation ids are stable.
func sortedInstances(in []model.Section) []model.Section {
	out := slices.Clone(in)
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Bounds.Top != out[j].Bounds.Top {
			return out[i].Bounds.Top < out[j].Bounds.Top
		}
		if out[i].Bounds.Left != out[j].Bounds.Left {
			return out[i].Bounds.Left < out[j].Bounds.Left
		}
		return out[i].ID < out[j].ID
	})
	return out
}

func buildComponent(typ string, instances []model.Section) model.Component {
	variations := make([]model.Variation, len(instances))
	for i, s := range instances {
		content := s.Content.Text
		if content == "" {
			content = s.TextContent
		}
		variations[i] = model.Variation{
			ID:         i + 1,
			SectionID:  s.ID,
			Elements:   nonNil(s.ElementNames),
			Bounds:     s.Bounds,
			Content:    content,
			Attributes: s.Attributes,
			Styles:     s.ComputedStyles,
		}
	}
	return model.Component{
		Type:             typ,
		Instances:        len(instances),
		CommonElements:   CommonElements(instances),
		Variations:       variations,
		Props:            inferProps(typ, instances),
		CSSClasses:       cssClasses(instances),
		Complexity:       Complexity(instances),
		ReusabilityScore: reusabilityScore(instances),
		Consistency:      consistency(instances),
	}
}

// CommonElements returns the element names present in every instance.
func CommonElements(instances []model.Section) []string {
	if len(instances) == 0 {
		return []string{}
	}
	common := []string{}
	for _, el := range uniqueSorted(instances[0].ElementNames) {
		shared := true
		for _, s := range instances[1:] {
			if !slices.Contains(s.ElementNames, el) {
				shared = false
				break
			}
		}
		if shared {
			common = append(common, el)
		}
	}
	return common
}

func inferProps(typ string, instances []model.Section) []string {
	props := make(map[string]bool)
	for _, p := range defaultProps[typ] {
		props[p] = true
	}
	for _, s := range instances {
		if typ == "Button" && strings.TrimSpace(s.TextContent) != "" {
			props["text"] = true
		}
		for attr := range s.Attributes {
			if p, ok := attributeProps[attr]; ok {
				props[p] = true
			}
		}
	}
	return sortedKeys(props)
}

func cssClasses(instances []model.Section) []string {
	seen := make(map[string]bool)
	for _, s := range instances {
		for _, c := range strings.Fields(s.Class()) {
			seen[c] = true
		}
	}
	return sortedKeys(seen)
}

// Complexity averages children*0.5 + attributes*0.2 + elements*0.3 (plus a
// base of 1) over the instances and buckets the result.
func Complexity(instances []model.Section) string {
	if len(instances) == 0 {
		return model.ComplexitySimple
	}
	total := 0.0
	for _, s := range instances {
		total += 1 +
			float64(len(s.Children))*0.5 +
			float64(len(s.Attributes))*0.2 +
			float64(len(s.ElementNames))*0.3
	}
	avg := total / float64(len(instances))
	switch {
	case avg < 2:
		return model.ComplexitySimple
	case avg < 5:
		return model.ComplexityModerate
	}
	return model.ComplexityComplex
}

// reusabilityScore averages the per-section scores from enhanced analysis.
// Without them it estimates from how often the pattern repeats.
func reusabilityScore(instances []model.Section) int {
	sum, n := 0, 0
	for _, s := range instances {
		if s.Reusability != nil {
			sum += s.Reusability.ReusabilityScore
			n++
		}
	}
	if n > 0 {
		return int(math.Round(float64(sum) / float64(n)))
	}
	return min(100, 20*len(instances))
}

// consistency is the share of style properties, among those every instance
// sets, that have the same value in all instances.
func consistency(instances []model.Section) int {
	if len(instances) < 2 {
		return 100
	}
	shared, same := 0, 0
	for prop, v := range instances[0].ComputedStyles {
		all, equal := true, true
		for _, s := range instances[1:] {
			other, ok := s.ComputedStyles[prop]
			if !ok {
				all = false
				break
			}
			if other != v {
				equal = false
			}
		}
		if !all {
			continue
		}
		shared++
		if equal {
			same++
		}
	}
	if shared == 0 {
		return 100
	}
	return int(math.Round(float64(same) / float64(shared) * 100))
}

func crossAnalysis(types []string, groups map[string][]model.Section) model.CrossComponentAnalysis {
	elements := make(map[string][]string, len(types))
	for _, t := range types {
		var names []string
		for _, s := range groups[t] {
			names = append(names, s.ElementNames...)
		}
		elements[t] = uniqueSorted(names)
	}

	out := model.CrossComponentAnalysis{
		Relationships:  []model.Relationship{},
		SharedElements: []string{},
	}
	allShared := make(map[string]bool)
	for i, a := range types {
		for _, b := range types[i+1:] {
			var shared []string
			for _, el := range elements[a] {
				if slices.Contains(elements[b], el) {
					shared = append(shared, el)
					allShared[el] = true
				}
			}
			if len(shared) > 0 {
				out.Relationships = append(out.Relationships, model.Relationship{From: a, To: b, SharedElements: shared})
			}
		}
	}
	out.SharedElements = sortedKeys(allShared)
	return out
}

func meanScore(components []model.Component) int {
	if len(components) == 0 {
		return 0
	}
	sum := 0
	for _, c := range components {
		sum += c.ReusabilityScore
	}
	return int(math.Round(float64(sum) / float64(len(components))))
}

func overallPriority(opps []model.RefactoringOpportunity) string {
	if len(opps) == 0 {
		return model.LevelLow
	}
	for _, o := range opps {
		if o.Priority == model.LevelHigh {
			return model.LevelHigh
		}
	}
	return model.LevelMedium
}

// opportunities runs the four refactoring heuristics over one component group.
func opportunities(typ string, instances []model.Section) []model.RefactoringOpportunity {
	var out []model.RefactoringOpportunity
	if o, ok := duplicateStructure(typ, instances); ok {
		out = append(out, o)
	}
	if o, ok := inconsistentStyling(typ, instances); ok {
		out = append(out, o)
	}
	if o, ok := propExtraction(typ, instances); ok {
		out = append(out, o)
	}
	if o, ok := composition(typ, instances); ok {
		out = append(out, o)
	}
	return out
}

// duplicateStructure finds instances with identical structure, style and content.
func duplicateStructure(typ string, instances []model.Section) (model.RefactoringOpportunity, bool) {
	counts := make(map[string][]string)
	for _, s := range instances {
		sig := structureKey(s) + "|" + styleKey(s) + "|" + normalizeText(s.TextContent)
		counts[sig] = append(counts[sig], s.ID)
	}
	var details []string
	for _, ids := range counts {
		if len(ids) > 1 {
			sort.Strings(ids)
			details = append(details, strings.Join(ids, ", "))
		}
	}
	if len(details) == 0 {
		return model.RefactoringOpportunity{}, false
	}
	sort.Strings(details)
	return model.RefactoringOpportunity{
		Type:            model.OpportunityDuplicate,
		Component:       typ,
		Description:     fmt.Sprintf("%s has %d group(s) of identical instances that can share one implementation", typ, len(details)),
		Priority:        model.LevelHigh,
		EstimatedEffort: model.LevelLow,
		Impact:          model.LevelMedium,
		Details:         details,
	}, true
}

// inconsistentStyling reports style properties that take different values
// across instances of the same component.
func inconsistentStyling(typ string, instances []model.Section) (model.RefactoringOpportunity, bool) {
	if len(instances) < 2 {
		return model.RefactoringOpportunity{}, false
	}
	values := make(map[string]map[string]bool)
	for _, s := range instances {
		for prop, v := range s.ComputedStyles {
			if values[prop] == nil {
				values[prop] = make(map[string]bool)
			}
			values[prop][v] = true
		}
	}
	var details []string
	for prop, vs := range values {
		if len(vs) > 1 {
			details = append(details, prop+": "+strings.Join(sortedKeys(vs), " | "))
		}
	}
	if len(details) == 0 {
		return model.RefactoringOpportunity{}, false
	}
	sort.Strings(details)
	priority := model.LevelMedium
	if len(details) > 3 {
		priority = model.LevelHigh
	}
	return model.RefactoringOpportunity{
		Type:            model.OpportunityInconsistent,
		Component:       typ,
		Description:     fmt.Sprintf("%s instances disagree on %d style properties", typ, len(details)),
		Priority:        priority,
		EstimatedEffort: model.LevelLow,
		Impact:          model.LevelMedium,
		Details:         details,
	}, true
}

// propExtraction finds structurally identical instances whose text or
// attributes differ: the differing parts are prop candidates.
func propExtraction(typ string, instances []model.Section) (model.RefactoringOpportunity, bool) {
	byStructure := make(map[string][]model.Section)
	for _, s := range instances {
		k := structureKey(s)
		byStructure[k] = append(byStructure[k], s)
	}

	varying := make(map[string]bool)
	for _, group := range byStructure {
		if len(group) < 2 {
			continue
		}
		first := group[0]
		for _, s := range group[1:] {
			if normalizeText(s.TextContent) != normalizeText(first.TextContent) {
				varying["text"] = true
			}
			for _, attr := range unionKeys(first.Attributes, s.Attributes) {
				if attr != "class" && first.Attributes[attr] != s.Attributes[attr] {
					varying[attr] = true
				}
			}
		}
	}
	if len(varying) == 0 {
		return model.RefactoringOpportunity{}, false
	}
	details := sortedKeys(varying)
	return model.RefactoringOpportunity{
		Type:            model.OpportunityPropExtract,
		Component:       typ,
		Description:     fmt.Sprintf("%s shares one structure but varies in %s", typ, strings.Join(details, ", ")),
		Priority:        model.LevelMedium,
		EstimatedEffort: model.LevelMedium,
		Impact:          model.LevelHigh,
		Details:         details,
	}, true
}

// composition flags instances whose children repeat a pattern that could be
// its own component.
func composition(typ string, instances []model.Section) (model.RefactoringOpportunity, bool) {
	patterns := make(map[string]bool)
	for _, s := range instances {
		if s.NestedStructure == nil {
			continue
		}
		for _, p := range s.NestedStructure.RepeatingPatterns {
			patterns[p] = true
		}
	}
	if len(patterns) == 0 {
		return model.RefactoringOpportunity{}, false
	}
	details := sortedKeys(patterns)
	return model.RefactoringOpportunity{
		Type:            model.OpportunityComposition,
		Component:       typ,
		Description:     fmt.Sprintf("%s contains repeating children (%s) that can be composed from a child component", typ, strings.Join(details, ", ")),
		Priority:        model.LevelLow,
		EstimatedEffort: model.LevelHigh,
		Impact:          model.LevelMedium,
		Details:         details,
	}, true
}

// sortOpportunities orders by priority+impact weight, heaviest first.
func sortOpportunities(opps []model.RefactoringOpportunity) {
	sort.SliceStable(opps, func(i, j int) bool {
		wi, wj := opps[i].Weight(), opps[j].Weight()
		if wi != wj {
			return wi > wj
		}
		if opps[i].Component != opps[j].Component {
			return opps[i].Component < opps[j].Component
		}
		return opps[i].Type < opps[j].Type
	})
}

func structureKey(s model.Section) string {
	children := make([]string, len(s.Children))
	for i, c := range s.Children {
		children[i] = c.TagName
	}
	return strings.ToLower(s.TagName) + ":" + strings.Join(uniqueSorted(s.ElementNames), ",") + ":" + strings.Join(children, ",")
}

func styleKey(s model.Section) string {
	b, _ := json.Marshal(s.ComputedStyles) // map keys marshal sorted
	return string(b)
}

func normalizeText(s string) string {
	return strings.ToLower(strings.Join(strings.Fields(s), " "))
}

func uniqueSorted(in []string) []string {
	out := slices.Clone(in)
	sort.Strings(out)
	return slices.Compact(out)
}

func unionKeys(a, b map[string]string) []string {
	keys := make(map[string]bool, len(a)+len(b))
	for k := range a {
		keys[k] = true
	}
	for k := range b {
		keys[k] = true
	}
	return sortedKeys(keys)
}

func sortedKeys(m map[string]bool) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
