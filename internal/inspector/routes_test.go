package inspector

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/v0xg/routedoc/internal/inspector/snapshot"
	"github.com/v0xg/routedoc/internal/messaging"
	"github.com/v0xg/routedoc/internal/model"
)

const docsPage = `<html><body>
<header><nav class="menu"><a href="/docs">Docs</a><a href="/blog">Blog</a></nav></header>
<a href="pricing?plan=pro">Pricing</a>
<a href="#top">Top</a><a href="mailto:a@b.c">Mail</a><a href="tel:123">Call</a>
<a href="https://elsewhere.test/x">Away</a>
<a href="https://site.test/about"></a>
<script>
import VueRouter from 'vue-router'
const routes = [{ path: '/users/:id' }, { path: "/settings" }]
</script>
</body></html>`

func docsSnapshot(t *testing.T) *snapshot.Snapshot {
	t.Helper()
	s, err := snapshot.FromString(docsPage, snapshot.Window{Href: "https://site.test/"})
	require.NoError(t, err)
	return s
}

func findRoute(routes []model.Route, typ model.RouteType, url string) *model.Route {
	for i := range routes {
		if routes[i].Type == typ && routes[i].URL == url {
			return &routes[i]
		}
	}
	return nil
}

func TestDetectRoutes(t *testing.T) {
	agent := NewAgent(nil, Options{}, nil)
	routes := agent.DetectRoutes(context.Background(), docsSnapshot(t))

	current := findRoute(routes, model.RouteCurrent, "/")
	require.NotNil(t, current)
	assert.Equal(t, "Home", current.Title)
	assert.Equal(t, model.RouteID("/"), current.ID)

	docs := findRoute(routes, model.RouteStatic, "/docs")
	require.NotNil(t, docs)
	assert.Equal(t, "nav", docs.Context)
	assert.Equal(t, "https://site.test/docs", docs.FullURL)

	pricing := findRoute(routes, model.RouteStatic, "/pricing?plan=pro")
	require.NotNil(t, pricing)
	assert.Equal(t, "content", pricing.Context)
	assert.Equal(t, model.RouteID("/pricing?plan=pro"), pricing.ID)

	about := findRoute(routes, model.RouteStatic, "/about")
	require.NotNil(t, about)
	assert.Equal(t, "/about", about.Title, "empty link text falls back to the path")

	dynamic := findRoute(routes, model.RouteSPA, "/users/:id")
	require.NotNil(t, dynamic)
	assert.True(t, dynamic.IsDynamic)
	assert.Equal(t, "vue-router", dynamic.Framework)
	assert.Equal(t, "Users > :id", dynamic.Title)
	settings := findRoute(routes, model.RouteSPA, "/settings")
	require.NotNil(t, settings)
	assert.False(t, settings.IsDynamic)

	nav := findRoute(routes, model.RouteNavigation, "/blog")
	require.NotNil(t, nav)
	require.NotNil(t, nav.NavContext)
	assert.Equal(t, model.NavContext{TagName: "nav", ClassName: "menu", Position: "header"}, *nav.NavContext)

	for _, r := range routes {
		assert.NotContains(t, r.FullURL, "elsewhere.test")
		assert.NotContains(t, r.FullURL, "mailto:")
		assert.NotContains(t, r.FullURL, "#top")
	}
	// current + 4 static + 2 spa + 2 nav; the three overlapping nav selectors collapse
	assert.Len(t, routes, 9)
}

func TestDetectRoutesIsIdempotent(t *testing.T) {
	agent := NewAgent(nil, Options{}, nil)
	snap := docsSnapshot(t)
	first := agent.DetectRoutes(context.Background(), snap)
	second := agent.DetectRoutes(context.Background(), snap)
	assert.Equal(t, first, second)
}

func TestRouteSetConcurrentAdd(t *testing.T) {
	set := NewRouteSet()
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			set.Add(model.Route{ID: "a", URL: "/a", Type: model.RouteStatic})
			set.Add(model.Route{ID: "b", URL: "/b", Type: model.RouteStatic})
		}()
	}
	wg.Wait()
	assert.Equal(t, 2, set.Len())

	decoded := DecodeRoutes(append(set.Encoded(), "{broken"))
	assert.Len(t, decoded, 2)

	set.Clear()
	assert.Zero(t, set.Len())
}

func TestGuessFramework(t *testing.T) {
	assert.Equal(t, "angular", guessFramework(`RouterModule.forRoot([{ path: 'a' }])`))
	assert.Equal(t, "vue-router", guessFramework(`createRouter({ history: createWebHistory() })`))
	assert.Equal(t, "react-router", guessFramework(`const r = [{ path: "/x" }]`))
}

func TestAgentHandle(t *testing.T) {
	ctx := context.Background()
	snap := docsSnapshot(t)
	agent := NewAgent(nil, Options{}, nil)

	resp := agent.Handle(ctx, snap, messaging.Request{Action: messaging.GetRoutes})
	require.True(t, resp.Success)
	assert.Len(t, DecodeRoutes(resp.Routes), 9)

	resp = agent.Handle(ctx, snap, messaging.Request{Action: messaging.RefreshRoutes})
	require.True(t, resp.Success)
	assert.Len(t, resp.Routes, 9)

	resp = agent.Handle(ctx, snap, messaging.Request{Action: messaging.GetPageDimensions})
	require.True(t, resp.Success)
	require.NotNil(t, resp.Dimensions)
	assert.Equal(t, float64(1280), resp.Dimensions.InnerWidth)
	assert.Greater(t, resp.Dimensions.ScrollHeight, 0.0)

	resp = agent.Handle(ctx, snap, messaging.Request{Action: messaging.AnalyzePageStructure})
	require.True(t, resp.Success)
	require.NotNil(t, resp.Analysis)
	assert.True(t, resp.Analysis.Layout.HasHeader)

	resp = agent.Handle(ctx, snap, messaging.Request{Action: messaging.PageReady})
	assert.True(t, resp.Success)

	resp = agent.Handle(ctx, snap, messaging.Request{Action: messaging.DownloadFiles})
	assert.False(t, resp.Success)
	assert.Equal(t, "Unknown action", resp.Error)
}

func TestAgentHandleRecoversPanics(t *testing.T) {
	agent := NewAgent(nil, Options{}, nil)
	resp := agent.Handle(context.Background(), panickingProvider{}, messaging.Request{Action: messaging.RefreshRoutes})
	assert.False(t, resp.Success)
	assert.Contains(t, resp.Error, "document detached")
}
