package inspector

import (
	"testing"

	"github.com/jarcoal/httpmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/v0xg/routedoc/internal/model"
)

const urlset = `<?xml version="1.0" encoding="UTF-8"?>
<urlset xmlns="http://www.sitemaps.org/schemas/sitemap/0.9">
  <url><loc>https://site.test/</loc></url>
  <url><loc>https://site.test/guide/intro?x=1</loc></url>
</urlset>`

func xmlResponder(body string) httpmock.Responder {
	resp := httpmock.NewStringResponse(200, body)
	resp.Header.Set("Content-Type", "application/xml")
	return httpmock.ResponderFromResponse(resp)
}

func textResponder(body string) httpmock.Responder {
	resp := httpmock.NewStringResponse(200, body)
	resp.Header.Set("Content-Type", "text/plain")
	return httpmock.ResponderFromResponse(resp)
}

func TestSitemapDiscover(t *testing.T) {
	transport := httpmock.NewMockTransport()
	transport.RegisterResponder("GET", "https://site.test/sitemap.xml", xmlResponder(urlset))

	f := NewSitemapFetcher(WithTransport(transport))
	set := NewRouteSet()
	f.Discover("https://site.test/", func(r model.Route) { set.Add(r) })
	f.Wait()

	routes := set.Routes()
	require.Len(t, routes, 2)
	assert.Equal(t, model.Route{
		ID:      model.RouteID("/guide/intro?x=1"),
		URL:     "/guide/intro?x=1",
		FullURL: "https://site.test/guide/intro?x=1",
		Title:   "Guide > Intro",
		Type:    model.RouteSitemap,
	}, routes[1])

	info := transport.GetCallCountInfo()
	assert.Zero(t, info["GET https://site.test/robots.txt"], "first successful candidate stops the search")
}

func TestSitemapFollowsRobotsDirectives(t *testing.T) {
	transport := httpmock.NewMockTransport()
	transport.RegisterResponder("GET", "https://site.test/sitemap.xml", httpmock.NewStringResponder(404, ""))
	transport.RegisterResponder("GET", "https://site.test/sitemap_index.xml", httpmock.NewStringResponder(404, ""))
	transport.RegisterResponder("GET", "https://site.test/robots.txt",
		textResponder("User-agent: *\nDisallow: /admin\nsitemap: https://site.test/pages.xml\n"))
	transport.RegisterResponder("GET", "https://site.test/pages.xml", xmlResponder(urlset))

	f := NewSitemapFetcher(WithTransport(transport))
	set := NewRouteSet()
	f.Discover("https://site.test", func(r model.Route) { set.Add(r) })
	f.Wait()

	assert.Equal(t, 2, set.Len())
	assert.Equal(t, 1, transport.GetCallCountInfo()["GET https://site.test/pages.xml"])
}

func TestSitemapIndex(t *testing.T) {
	index := `<?xml version="1.0" encoding="UTF-8"?>
<sitemapindex xmlns="http://www.sitemaps.org/schemas/sitemap/0.9">
  <sitemap><loc>https://site.test/posts.xml</loc></sitemap>
</sitemapindex>`
	transport := httpmock.NewMockTransport()
	transport.RegisterResponder("GET", "https://site.test/sitemap.xml", xmlResponder(index))
	transport.RegisterResponder("GET", "https://site.test/posts.xml", xmlResponder(urlset))

	f := NewSitemapFetcher(WithTransport(transport))
	set := NewRouteSet()
	f.Discover("https://site.test", func(r model.Route) { set.Add(r) })
	f.Wait()

	assert.Equal(t, 2, set.Len())
}

func TestSitemapFetchedOncePerSession(t *testing.T) {
	transport := httpmock.NewMockTransport()
	transport.RegisterResponder("GET", "https://site.test/sitemap.xml", xmlResponder(urlset))

	f := NewSitemapFetcher(WithTransport(transport))
	first := NewRouteSet()
	f.Discover("https://site.test", func(r model.Route) { first.Add(r) })
	f.Wait()

	second := NewRouteSet()
	f.Discover("https://site.test", func(r model.Route) { second.Add(r) })
	f.Wait()

	assert.Equal(t, 1, transport.GetCallCountInfo()["GET https://site.test/sitemap.xml"])
	assert.Equal(t, first.Routes(), second.Routes(), "remembered routes are replayed")
}

func TestRobotsSitemaps(t *testing.T) {
	body := []byte("User-agent: *\nSitemap: https://a.test/s1.xml\nSITEMAP:https://a.test/s2.xml\n# Sitemap: no\n")
	assert.Equal(t, []string{"https://a.test/s1.xml", "https://a.test/s2.xml"}, robotsSitemaps(body))
}
