package inspector

import (
	"bufio"
	"bytes"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/gocolly/colly/v2"
	lru "github.com/hashicorp/golang-lru/v2"
	"go.uber.org/zap"

	"github.com/v0xg/routedoc/internal/model"
)

// sitemapCandidates are tried in order; the first that answers 2xx wins.
var sitemapCandidates = []string{"/sitemap.xml", "/sitemap_index.xml", "/robots.txt"}

const (
	visitedSitemapSize = 256
	// maxSitemapDepth bounds index -> sitemap -> ... chains
	maxSitemapDepth = 3
)

// SitemapFetcher discovers routes from sitemap.xml, sitemap indexes and
// robots.txt Sitemap directives. Each sitemap URL is fetched at most once
// per fetcher; later discoveries replay the remembered routes.
type SitemapFetcher struct {
	transport http.RoundTripper
	timeout   time.Duration
	userAgent string
	logger    *zap.Logger

	visited *lru.Cache[string, *sitemapResult]
	wg      sync.WaitGroup
}

// SitemapOption configures a SitemapFetcher
type SitemapOption func(*SitemapFetcher)

// WithTransport replaces the HTTP transport, used by tests.
func WithTransport(rt http.RoundTripper) SitemapOption {
	return func(f *SitemapFetcher) { f.transport = rt }
}

// WithTimeout sets the per-request timeout.
func WithTimeout(d time.Duration) SitemapOption {
	return func(f *SitemapFetcher) { f.timeout = d }
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) SitemapOption {
	return func(f *SitemapFetcher) { f.logger = l }
}

// NewSitemapFetcher returns a fetcher with a 10s request timeout.
func NewSitemapFetcher(opts ...SitemapOption) *SitemapFetcher {
	visited, err := lru.New[string, *sitemapResult](visitedSitemapSize)
	if err != nil {
		panic(err) // only for a non-positive size
	}
	f := &SitemapFetcher{
		timeout:   10 * time.Second,
		userAgent: "routedoc/1.0",
		logger:    zap.NewNop(),
		visited:   visited,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Discover fetches the site's sitemap and reports each listed URL through
// add. Sitemaps referenced from robots.txt or a sitemap index are fetched in
// the background; use Wait to block on them. add must be safe for
// concurrent use.
func (f *SitemapFetcher) Discover(origin string, add func(model.Route)) {
	origin = strings.TrimSuffix(origin, "/")
	if origin == "" {
		return
	}
	for _, candidate := range sitemapCandidates {
		if f.fetch(origin+candidate, add, 0) {
			return
		}
	}
}

// Wait blocks until background sitemap fetches finish.
func (f *SitemapFetcher) Wait() {
	f.wg.Wait()
}

// sitemapResult is what one fetch produced, replayed on later discoveries
type sitemapResult struct {
	ok     bool
	routes []model.Route
	nested []string
}

// fetch retrieves one sitemap or robots.txt. It reports whether the server
// answered successfully. A URL already fetched is replayed from the cache.
func (f *SitemapFetcher) fetch(target string, add func(model.Route), depth int) bool {
	if seen, _ := f.visited.ContainsOrAdd(target, nil); seen {
		cached, _ := f.visited.Get(target)
		if cached == nil {
			return false // in flight
		}
		for _, r := range cached.routes {
			add(r)
		}
		f.follow(cached.nested, add, depth)
		return cached.ok
	}

	c := colly.NewCollector(colly.UserAgent(f.userAgent))
	c.SetRequestTimeout(f.timeout)
	if f.transport != nil {
		c.WithTransport(f.transport)
	}

	result := &sitemapResult{}
	c.OnResponse(func(r *colly.Response) {
		result.ok = true
		if bytes.Contains(bytes.ToLower(r.Body), []byte("sitemap:")) {
			result.nested = append(result.nested, robotsSitemaps(r.Body)...)
		}
	})
	c.OnXML("//url/loc", func(e *colly.XMLElement) {
		if route, valid := sitemapRoute(strings.TrimSpace(e.Text)); valid {
			result.routes = append(result.routes, route)
			add(route)
		}
	})
	c.OnXML("//sitemap/loc", func(e *colly.XMLElement) {
		result.nested = append(result.nested, strings.TrimSpace(e.Text))
	})
	c.OnError(func(r *colly.Response, err error) {
		f.logger.Debug("sitemap fetch failed",
			zap.String("url", target),
			zap.Int("status", r.StatusCode),
			zap.Error(err))
	})

	if err := c.Visit(target); err != nil {
		f.logger.Debug("sitemap visit failed", zap.String("url", target), zap.Error(err))
	}
	f.visited.Add(target, result)
	f.follow(result.nested, add, depth)
	return result.ok
}

// follow fetches referenced sitemaps in the background.
func (f *SitemapFetcher) follow(nested []string, add func(model.Route), depth int) {
	if depth >= maxSitemapDepth {
		return
	}
	for _, u := range nested {
		if u == "" {
			continue
		}
		f.wg.Add(1)
		go func(u string) {
			defer f.wg.Done()
			f.fetch(u, add, depth+1)
		}(u)
	}
}

func sitemapRoute(loc string) (model.Route, bool) {
	u, err := url.Parse(loc)
	if err != nil || u.Host == "" {
		return model.Route{}, false
	}
	path := u.EscapedPath()
	if path == "" {
		path = "/"
	}
	return model.Route{
		ID:      model.RouteID(pathAndQuery(u)),
		URL:     pathAndQuery(u),
		FullURL: loc,
		Title:   model.FormatRouteTitle(path),
		Type:    model.RouteSitemap,
	}, true
}

// robotsSitemaps returns the targets of "Sitemap:" lines, case-insensitively.
func robotsSitemaps(body []byte) []string {
	var out []string
	sc := bufio.NewScanner(bytes.NewReader(body))
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if len(line) < len("sitemap:") || !strings.EqualFold(line[:len("sitemap:")], "sitemap:") {
			continue
		}
		if target := strings.TrimSpace(line[len("sitemap:"):]); target != "" {
			out = append(out, target)
		}
	}
	return out
}
