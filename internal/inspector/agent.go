package inspector

import (
	"context"
	"fmt"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/v0xg/routedoc/internal/messaging"
	"github.com/v0xg/routedoc/internal/model"
)

// Agent is the page-context side of one tab. It owns the tab's route set
// and answers the page actions.
type Agent struct {
	routes   *RouteSet
	sitemaps *SitemapFetcher
	opts     Options
	logger   *zap.Logger
	group    singleflight.Group
}

// NewAgent creates an agent. sitemaps may be nil to skip sitemap discovery.
func NewAgent(sitemaps *SitemapFetcher, opts Options, logger *zap.Logger) *Agent {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Agent{
		routes:   NewRouteSet(),
		sitemaps: sitemaps,
		opts:     opts,
		logger:   logger,
	}
}

// Routes returns the routes discovered so far.
func (a *Agent) Routes() []model.Route {
	return a.routes.Routes()
}

// DetectRoutes runs every discovery pass over p and returns the combined
// set. Concurrent calls share one run.
func (a *Agent) DetectRoutes(ctx context.Context, p PageSnapshotProvider) []model.Route {
	_, _, _ = a.group.Do("detect", func() (any, error) {
		a.detect(ctx, p)
		return nil, nil
	})
	return a.routes.Routes()
}

func (a *Agent) detect(ctx context.Context, p PageSnapshotProvider) {
	win := p.Window()
	add := func(r model.Route) { a.routes.Add(r) }

	if r, ok := currentRoute(win); ok {
		add(r)
	}
	findStaticRoutes(p, win, add)
	findSPARoutes(p, win, add)
	if a.sitemaps != nil && ctx.Err() == nil {
		a.sitemaps.Discover(win.Origin, add)
	}
	findNavigationRoutes(p, win, add)

	a.logger.Debug("routes detected",
		zap.String("href", win.Href),
		zap.Int("routes", a.routes.Len()))
}

// Handle answers one page action against the current snapshot. A panic in
// any pass is reported as a failed response.
func (a *Agent) Handle(ctx context.Context, p PageSnapshotProvider, req messaging.Request) (resp messaging.Response) {
	defer func() {
		if r := recover(); r != nil {
			a.logger.Error("page action panicked", zap.String("action", string(req.Action)), zap.Any("panic", r))
			resp = messaging.Fail(fmt.Errorf("%s: %v", req.Action, r))
		}
	}()

	switch req.Action {
	case messaging.GetRoutes:
		if a.routes.Len() == 0 {
			a.DetectRoutes(ctx, p)
		}
		return messaging.Response{Success: true, Routes: a.routes.Encoded()}

	case messaging.RefreshRoutes:
		a.routes.Clear()
		a.DetectRoutes(ctx, p)
		return messaging.Response{Success: true, Routes: a.routes.Encoded()}

	case messaging.AnalyzePageStructure:
		analysis := AnalyzePageStructure(p, a.opts)
		return messaging.Response{Success: analysis.Error == "", Analysis: analysis, Error: analysis.Error}

	case messaging.PageReady:
		a.DetectRoutes(ctx, p)
		return messaging.Response{Success: true}

	case messaging.GetPageDimensions:
		win := p.Window()
		width, height := PageDimensions(win)
		return messaging.Response{
			Success: true,
			Dimensions: &messaging.Dimensions{
				ScrollWidth:  width,
				ScrollHeight: height,
				InnerWidth:   win.InnerWidth,
				InnerHeight:  win.InnerHeight,
			},
		}
	}
	return messaging.Response{Success: false, Error: "Unknown action"}
}
