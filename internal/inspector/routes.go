package inspector

import (
	"encoding/json"
	"net/url"
	"regexp"
	"strings"
	"sync"

	"github.com/PuerkitoBio/goquery"

	"github.com/v0xg/routedoc/internal/inspector/snapshot"
	"github.com/v0xg/routedoc/internal/model"
)

var navSelectors = []string{
	"nav", `[role="navigation"]`, ".nav", ".navigation", ".menu", ".navbar",
	"header nav", "footer nav",
}

var (
	routePathLiteral   = regexp.MustCompile(`path:\s*["']([^"']+)["']`)
	angularRouteObject = regexp.MustCompile(`\{\s*path:\s*["']([^"']+)["']`)
)

// RouteSet is the de-duplicated collection of discovered routes. Two routes
// are the same when their serialised forms are equal. Insertion order is kept.
type RouteSet struct {
	mu     sync.Mutex
	keys   map[string]struct{}
	routes []model.Route
}

// NewRouteSet returns an empty set
func NewRouteSet() *RouteSet {
	return &RouteSet{keys: make(map[string]struct{})}
}

// Add inserts r unless an identical route is present. Safe for concurrent use.
func (s *RouteSet) Add(r model.Route) bool {
	key := r.Key()
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.keys[key]; ok {
		return false
	}
	s.keys[key] = struct{}{}
	s.routes = append(s.routes, r)
	return true
}

// Routes returns a copy of the set in insertion order.
func (s *RouteSet) Routes() []model.Route {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]model.Route, len(s.routes))
	copy(out, s.routes)
	return out
}

// Len returns the number of routes
func (s *RouteSet) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.routes)
}

// Clear empties the set.
func (s *RouteSet) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.keys = make(map[string]struct{})
	s.routes = nil
}

// Encoded returns each route as its JSON string, the getRoutes wire form.
func (s *RouteSet) Encoded() []string {
	routes := s.Routes()
	out := make([]string, 0, len(routes))
	for _, r := range routes {
		data, err := json.Marshal(r)
		if err != nil {
			continue
		}
		out = append(out, string(data))
	}
	return out
}

// DecodeRoutes parses the getRoutes wire form. Malformed entries are skipped.
func DecodeRoutes(encoded []string) []model.Route {
	routes := make([]model.Route, 0, len(encoded))
	for _, e := range encoded {
		var r model.Route
		if err := json.Unmarshal([]byte(e), &r); err != nil {
			continue
		}
		routes = append(routes, r)
	}
	return routes
}

func currentRoute(win snapshot.Window) (model.Route, bool) {
	u, err := url.Parse(win.Href)
	if err != nil || u.Host == "" {
		return model.Route{}, false
	}
	path := u.EscapedPath()
	if path == "" {
		path = "/"
	}
	title := win.Title
	if title == "" {
		title = model.FormatRouteTitle(path)
	}
	return model.Route{
		ID:      model.RouteID(pathAndQuery(u)),
		URL:     pathAndQuery(u),
		FullURL: u.String(),
		Title:   title,
		Type:    model.RouteCurrent,
	}, true
}

// findStaticRoutes collects same-origin anchors. Fragment-only, mailto and
// tel links are skipped.
func findStaticRoutes(p PageSnapshotProvider, win snapshot.Window, add func(model.Route)) {
	base, err := url.Parse(win.Href)
	if err != nil {
		return
	}
	origin := win.Origin
	if origin == "" && base.Host != "" {
		origin = base.Scheme + "://" + base.Host
	}

	p.QueryAll("a[href]").Each(func(_ int, s *goquery.Selection) {
		href, _ := s.Attr("href")
		if href == "" ||
			strings.HasPrefix(href, "#") ||
			strings.HasPrefix(href, "mailto:") ||
			strings.HasPrefix(href, "tel:") {
			return
		}
		ref, err := url.Parse(href)
		if err != nil {
			return
		}
		u := base.ResolveReference(ref)
		if u.Scheme+"://"+u.Host != origin {
			return
		}

		path := u.EscapedPath()
		if path == "" {
			path = "/"
		}
		title := strings.TrimSpace(s.Text())
		if title == "" {
			title = path
		}
		routeContext := "content"
		if parent := s.Closest("nav, .nav, .menu, header, footer"); parent.Length() > 0 {
			routeContext = goquery.NodeName(parent)
		}
		add(model.Route{
			ID:      model.RouteID(pathAndQuery(u)),
			URL:     pathAndQuery(u),
			FullURL: u.String(),
			Title:   title,
			Type:    model.RouteStatic,
			Context: routeContext,
		})
	})
}

// findSPARoutes scans inline scripts for router configuration literals. The
// framework tag is a guess from markers in the same script.
func findSPARoutes(p PageSnapshotProvider, win snapshot.Window, add func(model.Route)) {
	p.QueryAll("script").Each(func(_ int, s *goquery.Selection) {
		content := s.Text()
		if content == "" {
			return
		}
		framework := guessFramework(content)
		re := routePathLiteral
		if framework == "angular" {
			re = angularRouteObject
		}
		for _, m := range re.FindAllStringSubmatch(content, -1) {
			path := m[1]
			add(model.Route{
				ID:        model.RouteID(path),
				URL:       path,
				FullURL:   win.Origin + path,
				Title:     model.FormatRouteTitle(path),
				Type:      model.RouteSPA,
				Framework: framework,
				IsDynamic: strings.ContainsAny(path, ":*"),
			})
		}
	})
}

func guessFramework(script string) string {
	switch {
	case strings.Contains(script, "@angular") || strings.Contains(script, "RouterModule"):
		return "angular"
	case strings.Contains(script, "vue-router") || strings.Contains(script, "VueRouter") ||
		strings.Contains(script, "createWebHistory"):
		return "vue-router"
	}
	return "react-router"
}

// findNavigationRoutes collects root-relative links inside navigation menus.
func findNavigationRoutes(p PageSnapshotProvider, win snapshot.Window, add func(model.Route)) {
	for _, selector := range navSelectors {
		p.QueryAll(selector).Each(func(_ int, nav *goquery.Selection) {
			n := nav.Get(0)
			navContext := &model.NavContext{
				TagName:   n.Data,
				ClassName: attr(n, "class"),
				Position:  navigationLocation(nav),
			}
			nav.Find("a[href]").Each(func(_ int, link *goquery.Selection) {
				href, _ := link.Attr("href")
				if !strings.HasPrefix(href, "/") {
					return
				}
				title := strings.TrimSpace(link.Text())
				if title == "" {
					title = href
				}
				add(model.Route{
					ID:         model.RouteID(href),
					URL:        href,
					FullURL:    win.Origin + href,
					Title:      title,
					Type:       model.RouteNavigation,
					NavContext: navContext,
				})
			})
		})
	}
}

func pathAndQuery(u *url.URL) string {
	path := u.EscapedPath()
	if path == "" {
		path = "/"
	}
	if u.RawQuery != "" {
		return path + "?" + u.RawQuery
	}
	return path
}
