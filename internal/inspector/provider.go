// Package inspector analyses a page from inside its execution context:
// route discovery and DOM structure analysis over a PageSnapshotProvider.
package inspector

import (
	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"

	"github.com/v0xg/routedoc/internal/inspector/snapshot"
)

// PageSnapshotProvider is the page capability the inspector works against.
// snapshot.Snapshot implements it for live pages and static fixtures.
type PageSnapshotProvider interface {
	QueryAll(selector string) *goquery.Selection
	ComputedStyle(n *html.Node) snapshot.Style
	BoundingRect(n *html.Node) snapshot.Rect
	ScrollTo(x, y float64) error
	Window() snapshot.Window
}

var _ PageSnapshotProvider = (*snapshot.Snapshot)(nil)

func isVisible(p PageSnapshotProvider, n *html.Node) bool {
	rect := p.BoundingRect(n)
	style := p.ComputedStyle(n)
	return rect.Width > 0 &&
		rect.Height > 0 &&
		style.Get("visibility") != "hidden" &&
		style.Get("display") != "none" &&
		style.Get("opacity") != "0"
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

// elementDepth counts element ancestors, so <html> is 0.
func elementDepth(n *html.Node) int {
	depth := 0
	for cur := n.Parent; cur != nil && cur.Type == html.ElementNode; cur = cur.Parent {
		depth++
	}
	return depth
}

func elementChildren(n *html.Node) []*html.Node {
	var out []*html.Node
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.ElementNode {
			out = append(out, c)
		}
	}
	return out
}

func contains(ancestor, n *html.Node) bool {
	for cur := n.Parent; cur != nil; cur = cur.Parent {
		if cur == ancestor {
			return true
		}
	}
	return false
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
