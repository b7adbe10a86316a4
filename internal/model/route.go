package model

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"strings"
	"unicode"
	"unicode/utf8"
)

// RouteType records how a route was discovered
type RouteType string

const (
	RouteStatic     RouteType = "static"
	RouteSPA        RouteType = "spa"
	RouteSitemap    RouteType = "sitemap"
	RouteNavigation RouteType = "navigation"
	RouteCurrent    RouteType = "current"
)

// Route is a navigable URL found on the target site
type Route struct {
	ID         string      `json:"id"`
	URL        string      `json:"url"`     // path + query
	FullURL    string      `json:"fullUrl"` // absolute
	Title      string      `json:"title"`
	Type       RouteType   `json:"type"`
	Framework  string      `json:"framework,omitempty"`
	IsDynamic  bool        `json:"isDynamic,omitempty"`
	Context    string      `json:"context,omitempty"` // enclosing nav/header/footer for static links
	NavContext *NavContext `json:"navContext,omitempty"`
}

// NavContext describes the navigation element a route was found in
type NavContext struct {
	TagName   string `json:"tagName"`
	ClassName string `json:"className,omitempty"`
	Position  string `json:"position"` // header, footer, sidebar, main
}

// RouteID derives a stable id from a route's path and query. Distinct
// urls get distinct ids.
func RouteID(url string) string {
	sum := sha256.Sum256([]byte(url))
	return hex.EncodeToString(sum[:8])
}

// FormatRouteTitle turns "/docs/getting-started" into "Docs > Getting-started".
func FormatRouteTitle(path string) string {
	var parts []string
	for _, seg := range strings.Split(path, "/") {
		if seg == "" {
			continue
		}
		r, size := utf8.DecodeRuneInString(seg)
		parts = append(parts, string(unicode.ToUpper(r))+seg[size:])
	}
	if len(parts) == 0 {
		return "Home"
	}
	return strings.Join(parts, " > ")
}

// Key is the serialized form used to de-duplicate routes.
func (r Route) Key() string {
	data, err := json.Marshal(r)
	if err != nil {
		return r.ID + "|" + r.FullURL
	}
	return string(data)
}

// DisplayTitle falls back to the URL when the route has no title.
func (r Route) DisplayTitle() string {
	if r.Title != "" {
		return r.Title
	}
	return r.URL
}
