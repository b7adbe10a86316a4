// Package snapshot holds a static copy of a rendered page: the element tree
// with bounding rects and a computed-style subset, queryable through goquery.
package snapshot

import (
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// Rect is a viewport-relative bounding box, as getBoundingClientRect reports it
type Rect struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// Right edge
func (r Rect) Right() float64 { return r.X + r.Width }

// Bottom edge
func (r Rect) Bottom() float64 { return r.Y + r.Height }

// Style is a computed-style subset keyed by camelCase property name
type Style map[string]string

// Get returns the property value or "".
func (s Style) Get(name string) string {
	if s == nil {
		return ""
	}
	return s[name]
}

// Box holds the size metrics of body or documentElement
type Box struct {
	ScrollWidth  float64 `json:"scrollWidth"`
	ScrollHeight float64 `json:"scrollHeight"`
	OffsetWidth  float64 `json:"offsetWidth"`
	OffsetHeight float64 `json:"offsetHeight"`
	ClientWidth  float64 `json:"clientWidth"`
	ClientHeight float64 `json:"clientHeight"`
}

// Window is the window/document state at snapshot time
type Window struct {
	InnerWidth  float64 `json:"innerWidth"`
	InnerHeight float64 `json:"innerHeight"`
	ScrollX     float64 `json:"scrollX"`
	ScrollY     float64 `json:"scrollY"`
	Href        string  `json:"href"`
	Origin      string  `json:"origin"`
	Title       string  `json:"title"`
	Charset     string  `json:"charset"`
	Scripts     int     `json:"scripts"`
	StyleSheets int     `json:"styleSheets"`
	// MaxWidthMedia is true when any readable stylesheet has a max-width media rule
	MaxWidthMedia bool `json:"maxWidthMedia"`
	Body          Box  `json:"body"`
	Document      Box  `json:"document"`
}

// Node is the serialised form of one DOM node. Element nodes carry Tag,
// text nodes carry Text.
type Node struct {
	Tag      string      `json:"t,omitempty"`
	Text     string      `json:"x,omitempty"`
	Attrs    [][2]string `json:"a,omitempty"`
	Rect     *Rect       `json:"r,omitempty"`
	Style    Style       `json:"s,omitempty"`
	Children []*Node     `json:"c,omitempty"`
}

// Page is a complete serialised snapshot
type Page struct {
	Window Window `json:"window"`
	Root   *Node  `json:"root"`
}

// Scroller moves the live page. A static snapshot has none.
type Scroller func(x, y float64) error

// Snapshot implements the page inspector's provider over a static tree.
type Snapshot struct {
	doc    *goquery.Document
	rects  map[*html.Node]Rect
	styles map[*html.Node]Style
	win    Window
	scroll Scroller
}

// Option configures a Snapshot
type Option func(*Snapshot)

// WithScroller forwards ScrollTo calls to the live page.
func WithScroller(fn Scroller) Option {
	return func(s *Snapshot) { s.scroll = fn }
}

// New builds a snapshot from a serialised page.
func New(p *Page, opts ...Option) (*Snapshot, error) {
	if p == nil || p.Root == nil {
		return nil, fmt.Errorf("snapshot has no root element")
	}
	if p.Root.Tag == "" {
		return nil, fmt.Errorf("snapshot root is not an element")
	}

	s := &Snapshot{
		rects:  make(map[*html.Node]Rect),
		styles: make(map[*html.Node]Style),
		win:    p.Window,
	}

	doc := &html.Node{Type: html.DocumentNode}
	doc.AppendChild(s.build(p.Root))
	s.doc = goquery.NewDocumentFromNode(doc)

	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

func (s *Snapshot) build(n *Node) *html.Node {
	if n.Tag == "" {
		return &html.Node{Type: html.TextNode, Data: n.Text}
	}

	tag := strings.ToLower(n.Tag)
	el := &html.Node{
		Type:     html.ElementNode,
		Data:     tag,
		DataAtom: atom.Lookup([]byte(tag)),
	}
	for _, kv := range n.Attrs {
		el.Attr = append(el.Attr, html.Attribute{Key: strings.ToLower(kv[0]), Val: kv[1]})
	}
	if n.Rect != nil {
		s.rects[el] = *n.Rect
	}
	if n.Style != nil {
		s.styles[el] = n.Style
	}
	for _, child := range n.Children {
		if child == nil {
			continue
		}
		el.AppendChild(s.build(child))
	}
	return el
}

// Document returns the underlying goquery document.
func (s *Snapshot) Document() *goquery.Document {
	return s.doc
}

// QueryAll returns every element matching selector in document order.
// An invalid selector matches nothing.
func (s *Snapshot) QueryAll(selector string) *goquery.Selection {
	return s.doc.Find(selector)
}

// ComputedStyle returns the recorded style of n, or an empty style.
func (s *Snapshot) ComputedStyle(n *html.Node) Style {
	if st, ok := s.styles[n]; ok {
		return st
	}
	return Style{}
}

// BoundingRect returns the recorded viewport-relative rect of n.
func (s *Snapshot) BoundingRect(n *html.Node) Rect {
	return s.rects[n]
}

// ScrollTo scrolls the live page when one is attached and records the new
// offset. Rects already captured are not recomputed.
func (s *Snapshot) ScrollTo(x, y float64) error {
	if s.scroll != nil {
		if err := s.scroll(x, y); err != nil {
			return fmt.Errorf("scroll to %v,%v: %w", x, y, err)
		}
	}
	s.win.ScrollX, s.win.ScrollY = x, y
	return nil
}

// Window returns window metrics at snapshot time.
func (s *Snapshot) Window() Window {
	return s.win
}
