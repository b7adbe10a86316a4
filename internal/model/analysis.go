package model

// Bounds is an element rectangle in page coordinates (scroll adjusted)
type Bounds struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
	Top    float64 `json:"top"`
	Left   float64 `json:"left"`
	Right  float64 `json:"right"`
	Bottom float64 `json:"bottom"`
}

// SectionContent summarizes what a section contains
type SectionContent struct {
	Text       string `json:"text"`
	Headings   int    `json:"headings"`
	Paragraphs int    `json:"paragraphs"`
	Images     int    `json:"images"`
	Links      int    `json:"links"`
	Lists      int    `json:"lists"`
	Tables     int    `json:"tables"`
	Forms      int    `json:"forms"`
	Buttons    int    `json:"buttons"`
	Inputs     int    `json:"inputs"`
}

// ChildSummary describes a direct child of a section
type ChildSummary struct {
	TagName     string `json:"tagName"`
	ClassName   string `json:"className,omitempty"`
	ID          string `json:"id,omitempty"`
	HasChildren bool   `json:"hasChildren"`
	TextLength  int    `json:"textLength"`
}

// ElementCount counts direct and total descendants
type ElementCount struct {
	Direct int `json:"direct"`
	All    int `json:"all"`
}

// Accessibility flags for a single element
type Accessibility struct {
	HasAriaLabel      bool  `json:"hasAriaLabel"`
	HasAriaLabelledBy bool  `json:"hasAriaLabelledBy"`
	HasRole           bool  `json:"hasRole"`
	HasTabIndex       bool  `json:"hasTabIndex"`
	IsHeading         bool  `json:"isHeading"`
	HasAltText        *bool `json:"hasAltText"` // nil unless the element is an <img>
}

// Section is a DOM region classified by the inspector
type Section struct {
	ID                     string            `json:"id"`
	Selector               string            `json:"selector"`
	Type                   string            `json:"type"`
	TagName                string            `json:"tagName"`
	Bounds                 Bounds            `json:"bounds"`
	Content                SectionContent    `json:"content"`
	Attributes             map[string]string `json:"attributes"`
	ComputedStyles         map[string]string `json:"computedStyles"`
	Children               []ChildSummary    `json:"children"`
	Depth                  int               `json:"depth"`
	Elements               ElementCount      `json:"elements"`
	ElementNames           []string          `json:"elementNames"`
	TextContent            string            `json:"textContent"`
	IsEmpty                bool              `json:"isEmpty"`
	HasInteractiveElements bool              `json:"hasInteractiveElements"`
	Accessibility          Accessibility     `json:"accessibility"`

	LogicalGrouping *LogicalGrouping `json:"logicalGrouping,omitempty"`
	NestedStructure *NestedStructure `json:"nestedStructure,omitempty"`
	LayoutPattern   *LayoutPattern   `json:"layoutPattern,omitempty"`
	Reusability     *Reusability     `json:"reusabilityFactors,omitempty"`
	DesignTokens    *DesignTokens    `json:"designTokens,omitempty"`
}

// Class returns the section's class attribute.
func (s Section) Class() string {
	return s.Attributes["class"]
}

// LogicalGrouping classifies a section along four axes
type LogicalGrouping struct {
	SemanticGroup   string `json:"semanticGroup"`
	FunctionalGroup string `json:"functionalGroup"`
	VisualGroup     string `json:"visualGroup"`
	ContentGroup    string `json:"contentGroup"`
}

// NestedStructure captures how deep and how regular a section's subtree is
type NestedStructure struct {
	NestingLevel      int      `json:"nestingLevel"`
	RepeatingPatterns []string `json:"repeatingPatterns"`
	DataStructure     string   `json:"dataStructure"` // list, table, grid, none
	NestedSections    []string `json:"nestedSections"`
}

// LayoutPattern describes grid/flex details of a section
type LayoutPattern struct {
	Pattern        string `json:"pattern"` // grid, flex-row, flex-column, block, inline
	GridColumns    int    `json:"gridColumns,omitempty"`
	GridTemplate   string `json:"gridTemplate,omitempty"`
	FlexDirection  string `json:"flexDirection,omitempty"`
	JustifyContent string `json:"justifyContent,omitempty"`
	AlignItems     string `json:"alignItems,omitempty"`
}

// Reusability is the 0-100 extraction-suitability estimate of a section
type Reusability struct {
	ReusabilityScore  int      `json:"reusabilityScore"`
	SemanticTag       bool     `json:"semanticTag"`
	ReusableClasses   []string `json:"reusableClasses"`
	RepeatingSiblings bool     `json:"repeatingSiblings"`
	AccessibilityAttr bool     `json:"accessibilityAttributes"`
}

// Typography is one font setting found in a section
type Typography struct {
	FontSize   string `json:"fontSize"`
	FontFamily string `json:"fontFamily,omitempty"`
	FontWeight string `json:"fontWeight,omitempty"`
}

// DesignTokens are style values pulled from computed style
type DesignTokens struct {
	Colors     []string     `json:"colors"`
	Spacing    []string     `json:"spacing"`
	Typography []Typography `json:"typography"`
	Borders    []string     `json:"borders"`
	Shadows    []string     `json:"shadows"`
}

// FormInput is a field inside a form
type FormInput struct {
	Type        string `json:"type"`
	Name        string `json:"name"`
	Placeholder string `json:"placeholder"`
	Required    bool   `json:"required"`
	ID          string `json:"id"`
}

// FormButton is a submit or plain button inside a form
type FormButton struct {
	Type  string `json:"type"`
	Text  string `json:"text"`
	Value string `json:"value"`
}

// Form describes a <form> element
type Form struct {
	ID         string       `json:"id"`
	Action     string       `json:"action"`
	Method     string       `json:"method"`
	Inputs     []FormInput  `json:"inputs"`
	Buttons    []FormButton `json:"buttons"`
	FieldCount int          `json:"fieldCount"`
	Validation bool         `json:"validation"`
}

// Image is a visible <img>
type Image struct {
	ID      string `json:"id"`
	Src     string `json:"src"`
	Alt     string `json:"alt"`
	Width   int    `json:"width"`
	Height  int    `json:"height"`
	Loading string `json:"loading"`
	IsLazy  bool   `json:"isLazy"`
}

// Playable is a <video> or <audio> element
type Playable struct {
	ID       string `json:"id"`
	Src      string `json:"src"`
	Controls bool   `json:"controls"`
	Autoplay bool   `json:"autoplay"`
	Loop     bool   `json:"loop"`
	Muted    bool   `json:"muted,omitempty"`
}

// Media groups the page's media elements
type Media struct {
	Images []Image    `json:"images"`
	Videos []Playable `json:"videos"`
	Audio  []Playable `json:"audio"`
}

// Button is a visible interactive button
type Button struct {
	ID       string   `json:"id"`
	Text     string   `json:"text"`
	Type     string   `json:"type"`
	Disabled bool     `json:"disabled"`
	Classes  []string `json:"classes"`
}

// Link is a visible anchor
type Link struct {
	ID         string `json:"id"`
	Href       string `json:"href"`
	Text       string `json:"text"`
	IsExternal bool   `json:"isExternal"`
	Target     string `json:"target"`
}

// Input is a visible text-like field outside the form summary
type Input struct {
	ID          string `json:"id"`
	Type        string `json:"type"`
	Name        string `json:"name"`
	Placeholder string `json:"placeholder"`
}

// Select is a visible <select>
type Select struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Options int    `json:"options"`
}

// Interactive groups clickable and editable elements
type Interactive struct {
	Buttons []Button `json:"buttons"`
	Links   []Link   `json:"links"`
	Inputs  []Input  `json:"inputs"`
	Selects []Select `json:"selects"`
}

// NavLink is a link inside a navigation block
type NavLink struct {
	Text string `json:"text"`
	Href string `json:"href"`
}

// NavBlock is a navigation element and its first links
type NavBlock struct {
	ID        string    `json:"id"`
	Location  string    `json:"location"`
	LinkCount int       `json:"linkCount"`
	Links     []NavLink `json:"links"`
}

// Breadcrumb is a breadcrumb trail
type Breadcrumb struct {
	ID    string    `json:"id"`
	Steps []NavLink `json:"steps"`
}

// Navigation groups navigation structures
type Navigation struct {
	Primary     []NavBlock   `json:"primary"`
	Secondary   []NavBlock   `json:"secondary"`
	Breadcrumbs []Breadcrumb `json:"breadcrumbs"`
	Pagination  []NavBlock   `json:"pagination"`
}

// GridArea is an element declaring grid-template-areas
type GridArea struct {
	Element string `json:"element"`
	Areas   string `json:"areas"`
}

// Layout is the coarse page layout classification
type Layout struct {
	Structure    string     `json:"structure"` // grid, flexbox, traditional, unknown
	Columns      int        `json:"columns"`
	HasHeader    bool       `json:"hasHeader"`
	HasFooter    bool       `json:"hasFooter"`
	HasSidebar   bool       `json:"hasSidebar"`
	IsResponsive bool       `json:"isResponsive"`
	GridAreas    []GridArea `json:"gridAreas"`
}

// Viewport is the window's inner size
type Viewport struct {
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// DOMStructure holds page-wide counts and dimensions
type DOMStructure struct {
	TotalElements        int      `json:"totalElements"`
	Depth                int      `json:"depth"`
	PageWidth            float64  `json:"pageWidth"`
	PageHeight           float64  `json:"pageHeight"`
	HasScrollableContent bool     `json:"hasScrollableContent"`
	Viewport             Viewport `json:"viewport"`
}

// Meta is document-level metadata
type Meta struct {
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
	Keywords    string `json:"keywords,omitempty"`
	Viewport    string `json:"viewport,omitempty"`
	Charset     string `json:"charset,omitempty"`
}

// Performance records when the analysis ran and what the page loaded
type Performance struct {
	AnalysisTime      int64 `json:"analysisTime"`
	ScriptsLoaded     int   `json:"scriptsLoaded"`
	StylesheetsLoaded int   `json:"stylesheetsLoaded"`
}

// Modal is a visible dialog or overlay
type Modal struct {
	Selector  string   `json:"selector"`
	ID        string   `json:"id"`
	Classes   []string `json:"classes"`
	Bounds    Bounds   `json:"bounds"`
	ZIndex    string   `json:"zIndex"`
	IsOverlay bool     `json:"isOverlay"`
}

// PageAnalysis is the structure-analysis result for one page
type PageAnalysis struct {
	Sections     []Section    `json:"sections"`
	Forms        []Form       `json:"forms"`
	Media        Media        `json:"media"`
	Interactive  Interactive  `json:"interactive"`
	Navigation   Navigation   `json:"navigation"`
	Layout       Layout       `json:"layout"`
	DOMStructure DOMStructure `json:"domStructure"`
	Meta         Meta         `json:"meta"`
	Performance  Performance  `json:"performance"`
	Modals       []Modal      `json:"modals"`
	Error        string       `json:"error,omitempty"`
}

// EmptyMedia returns Media with non-nil slices.
func EmptyMedia() Media {
	return Media{Images: []Image{}, Videos: []Playable{}, Audio: []Playable{}}
}

// EmptyInteractive returns Interactive with non-nil slices.
func EmptyInteractive() Interactive {
	return Interactive{Buttons: []Button{}, Links: []Link{}, Inputs: []Input{}, Selects: []Select{}}
}

// EmptyNavigation returns Navigation with non-nil slices.
func EmptyNavigation() Navigation {
	return Navigation{
		Primary:     []NavBlock{},
		Secondary:   []NavBlock{},
		Breadcrumbs: []Breadcrumb{},
		Pagination:  []NavBlock{},
	}
}

// FallbackAnalysis returns a fully-populated, empty analysis carrying errMsg.
// Every documented field is present so downstream consumers never nil-check.
func FallbackAnalysis(errMsg string, now int64) *PageAnalysis {
	return &PageAnalysis{
		Sections:    []Section{},
		Forms:       []Form{},
		Media:       EmptyMedia(),
		Interactive: EmptyInteractive(),
		Navigation:  EmptyNavigation(),
		Layout:      Layout{Structure: "unknown", GridAreas: []GridArea{}},
		Modals:      []Modal{},
		Performance: Performance{AnalysisTime: now},
		Error:       errMsg,
	}
}

// Normalize fills nil slices so a decoded or partially built analysis has
// the same shape as FallbackAnalysis.
func (a *PageAnalysis) Normalize() {
	if a.Sections == nil {
		a.Sections = []Section{}
	}
	if a.Forms == nil {
		a.Forms = []Form{}
	}
	if a.Media.Images == nil {
		a.Media.Images = []Image{}
	}
	if a.Media.Videos == nil {
		a.Media.Videos = []Playable{}
	}
	if a.Media.Audio == nil {
		a.Media.Audio = []Playable{}
	}
	if a.Interactive.Buttons == nil {
		a.Interactive.Buttons = []Button{}
	}
	if a.Interactive.Links == nil {
		a.Interactive.Links = []Link{}
	}
	if a.Interactive.Inputs == nil {
		a.Interactive.Inputs = []Input{}
	}
	if a.Interactive.Selects == nil {
		a.Interactive.Selects = []Select{}
	}
	if a.Navigation.Primary == nil {
		a.Navigation.Primary = []NavBlock{}
	}
	if a.Navigation.Secondary == nil {
		a.Navigation.Secondary = []NavBlock{}
	}
	if a.Navigation.Breadcrumbs == nil {
		a.Navigation.Breadcrumbs = []Breadcrumb{}
	}
	if a.Navigation.Pagination == nil {
		a.Navigation.Pagination = []NavBlock{}
	}
	if a.Layout.GridAreas == nil {
		a.Layout.GridAreas = []GridArea{}
	}
	if a.Layout.Structure == "" {
		a.Layout.Structure = "unknown"
	}
	if a.Modals == nil {
		a.Modals = []Modal{}
	}
	for i := range a.Sections {
		s := &a.Sections[i]
		if s.Attributes == nil {
			s.Attributes = map[string]string{}
		}
		if s.ComputedStyles == nil {
			s.ComputedStyles = map[string]string{}
		}
		if s.Children == nil {
			s.Children = []ChildSummary{}
		}
		if s.ElementNames == nil {
			s.ElementNames = []string{}
		}
	}
}
