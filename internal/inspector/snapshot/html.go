package snapshot

import (
	"fmt"
	"io"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
)

// rowHeight is the synthetic height given to each rendered element of a
// static document.
const rowHeight = 20

var blockTags = map[string]bool{
	"html": true, "body": true, "div": true, "section": true, "article": true,
	"header": true, "footer": true, "nav": true, "main": true, "aside": true,
	"form": true, "ul": true, "ol": true, "li": true, "p": true, "table": true,
	"h1": true, "h2": true, "h3": true, "h4": true, "h5": true, "h6": true,
	"figure": true, "fieldset": true, "dialog": true,
}

var hiddenTags = map[string]bool{
	"head": true, "script": true, "style": true, "meta": true, "link": true,
	"title": true, "template": true, "noscript": true,
}

var defaultStyle = Style{
	"visibility":        "visible",
	"opacity":           "1",
	"position":          "static",
	"backgroundColor":   "rgba(0, 0, 0, 0)",
	"color":             "rgb(0, 0, 0)",
	"fontSize":          "16px",
	"fontWeight":        "400",
	"margin":            "0px",
	"padding":           "0px",
	"border":            "0px none rgb(0, 0, 0)",
	"borderRadius":      "0px",
	"boxShadow":         "none",
	"gridTemplateAreas": "none",
	"zIndex":            "auto",
}

// FromHTML builds a snapshot from static markup. Layout is approximated:
// each rendered element is a full-width row stacked in document order, and
// computed style is the inline style over browser defaults. Elements with
// display:none, the hidden attribute, or a non-rendered tag get a zero rect.
func FromHTML(r io.Reader, win Window, opts ...Option) (*Snapshot, error) {
	root, err := html.Parse(r)
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}
	if win.InnerWidth == 0 {
		win.InnerWidth = 1280
	}
	if win.InnerHeight == 0 {
		win.InnerHeight = 800
	}
	if win.Origin == "" && win.Href != "" {
		if u, err := url.Parse(win.Href); err == nil && u.Host != "" {
			win.Origin = u.Scheme + "://" + u.Host
		}
	}
	if win.Charset == "" {
		win.Charset = "UTF-8"
	}

	s := &Snapshot{
		rects:  make(map[*html.Node]Rect),
		styles: make(map[*html.Node]Style),
	}
	s.doc = goquery.NewDocumentFromNode(root)

	y := 0.0
	var walk func(n *html.Node, hidden bool)
	walk = func(n *html.Node, hidden bool) {
		if n.Type == html.ElementNode {
			st := staticStyle(n)
			s.styles[n] = st
			hidden = hidden || hiddenTags[n.Data] || st.Get("display") == "none" || hasAttr(n, "hidden")
			if !hidden {
				s.rects[n] = Rect{X: 0, Y: y, Width: win.InnerWidth, Height: rowHeight}
				y += rowHeight
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c, hidden)
		}
	}
	walk(root, false)

	// ancestors span their descendants
	var span func(n *html.Node) float64
	span = func(n *html.Node) float64 {
		bottom := 0.0
		if r, ok := s.rects[n]; ok {
			bottom = r.Bottom()
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			if b := span(c); b > bottom {
				bottom = b
			}
		}
		if r, ok := s.rects[n]; ok && bottom > r.Bottom() {
			r.Height = bottom - r.Y
			s.rects[n] = r
		}
		return bottom
	}
	span(root)

	if win.Title == "" {
		win.Title = strings.TrimSpace(s.doc.Find("title").First().Text())
	}
	if win.Scripts == 0 {
		win.Scripts = s.doc.Find("script").Length()
	}
	if win.StyleSheets == 0 {
		win.StyleSheets = s.doc.Find(`link[rel="stylesheet"], style`).Length()
	}
	if !win.MaxWidthMedia {
		s.doc.Find("style").EachWithBreak(func(_ int, sel *goquery.Selection) bool {
			win.MaxWidthMedia = strings.Contains(sel.Text(), "max-width")
			return !win.MaxWidthMedia
		})
	}
	box := Box{
		ScrollWidth: win.InnerWidth, ScrollHeight: y,
		OffsetWidth: win.InnerWidth, OffsetHeight: y,
		ClientWidth: win.InnerWidth, ClientHeight: win.InnerHeight,
	}
	if win.Body == (Box{}) {
		win.Body = box
	}
	if win.Document == (Box{}) {
		win.Document = box
	}
	s.win = win

	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// FromString is FromHTML over a string.
func FromString(markup string, win Window, opts ...Option) (*Snapshot, error) {
	return FromHTML(strings.NewReader(markup), win, opts...)
}

func staticStyle(n *html.Node) Style {
	st := make(Style, len(defaultStyle)+4)
	for k, v := range defaultStyle {
		st[k] = v
	}
	if blockTags[n.Data] {
		st["display"] = "block"
	} else {
		st["display"] = "inline"
	}
	for k, v := range ParseInlineStyle(attr(n, "style")) {
		st[k] = v
	}
	return st
}

// ParseInlineStyle parses a style attribute into camelCase properties.
func ParseInlineStyle(style string) Style {
	out := Style{}
	for _, decl := range strings.Split(style, ";") {
		name, value, ok := strings.Cut(decl, ":")
		if !ok {
			continue
		}
		name = strings.TrimSpace(strings.ToLower(name))
		value = strings.TrimSpace(value)
		if name == "" || value == "" {
			continue
		}
		out[camelCase(name)] = value
	}
	return out
}

func camelCase(prop string) string {
	parts := strings.Split(prop, "-")
	var b strings.Builder
	b.WriteString(parts[0])
	for _, p := range parts[1:] {
		if p == "" {
			continue
		}
		b.WriteString(strings.ToUpper(p[:1]) + p[1:])
	}
	return b.String()
}

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}

func hasAttr(n *html.Node, key string) bool {
	for _, a := range n.Attr {
		if a.Key == key {
			return true
		}
	}
	return false
}
