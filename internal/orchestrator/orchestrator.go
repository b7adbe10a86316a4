// Package orchestrator drives capture runs: it visits each route in its own
// tab, analyses and screenshots the page, infers components and persists
// the results for export.
package orchestrator

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"math"
	"net/url"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/v0xg/routedoc/internal/components"
	"github.com/v0xg/routedoc/internal/config"
	"github.com/v0xg/routedoc/internal/export"
	"github.com/v0xg/routedoc/internal/inspector"
	"github.com/v0xg/routedoc/internal/markdown"
	"github.com/v0xg/routedoc/internal/messaging"
	"github.com/v0xg/routedoc/internal/model"
	"github.com/v0xg/routedoc/internal/segment"
	"github.com/v0xg/routedoc/internal/stitcher"
	"github.com/v0xg/routedoc/internal/store"
)

// currentPageURL marks a route that refers to whatever the active tab shows.
const currentPageURL = "current-page"

// Route outcome labels
const (
	outcomeSuccess  = "success"
	outcomeFallback = "fallback"
	outcomeFailed   = "failed"
)

// Tab is one browser tab as seen by the orchestrator.
type Tab interface {
	messaging.Channel
	stitcher.Capturer

	ID() string
	URL(ctx context.Context) (string, error)
	Navigate(ctx context.Context, url string) error
	// WaitLoad blocks until the document finished loading.
	WaitLoad(ctx context.Context) error
	// Inject loads the page agent. Injecting twice is harmless.
	Inject(ctx context.Context) error
	Close() error
}

// TabDriver opens and focuses tabs.
type TabDriver interface {
	Open(ctx context.Context, url string) (Tab, error)
	Active(ctx context.Context) (Tab, error)
	Tab(id string) (Tab, error)
	Activate(ctx context.Context, tab Tab) error
}

// Options configures an Orchestrator. Driver, State and Screenshots are
// required; everything else has a default.
type Options struct {
	Config      *config.Config
	Driver      TabDriver
	State       store.RunStateStore
	Screenshots store.ScreenshotStore
	Stitcher    *stitcher.Stitcher
	Engine      *components.Engine
	Segmenter   segment.Segmenter // nil skips segmentation
	Markdown    *markdown.Generator
	Downloader  *export.Downloader
	Broadcaster *messaging.Broadcaster
	Metrics     *Metrics
	Logger      *zap.Logger
	Sleep       stitcher.SleepFunc
	Now         func() time.Time
}

// Result is the immediate answer to ProcessRoutes.
type Result struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// Orchestrator runs capture sessions. Only one session is live at a time:
// starting a new one cancels the previous run and discards its pending writes.
type Orchestrator struct {
	cfg         *config.Config
	driver      TabDriver
	state       store.RunStateStore
	screenshots store.ScreenshotStore
	stitcher    *stitcher.Stitcher
	engine      *components.Engine
	segmenter   segment.Segmenter
	markdown    *markdown.Generator
	downloader  *export.Downloader
	broadcaster *messaging.Broadcaster
	metrics     *Metrics
	logger      *zap.Logger
	sleep       stitcher.SleepFunc
	now         func() time.Time

	writeMu sync.Mutex // guards gen, cancel and every state write
	gen     uint64
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// New creates an Orchestrator.
func New(opts Options) (*Orchestrator, error) {
	if opts.Driver == nil {
		return nil, errors.New("orchestrator: tab driver is required")
	}
	if opts.State == nil || opts.Screenshots == nil {
		return nil, errors.New("orchestrator: run state and screenshot stores are required")
	}
	if opts.Config == nil {
		opts.Config = config.DefaultConfig()
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.Sleep == nil {
		opts.Sleep = stitcher.Sleep
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Stitcher == nil {
		opts.Stitcher = stitcher.New(stitcher.Options{
			ScrollDelay:     opts.Config.ScrollDelay,
			CaptureInterval: opts.Config.CaptureInterval,
			Sleep:           opts.Sleep,
			Now:             opts.Now,
			Logger:          opts.Logger,
		})
	}
	if opts.Engine == nil {
		opts.Engine = components.NewEngine(opts.Logger)
	}
	if opts.Markdown == nil {
		opts.Markdown = markdown.New(opts.Config.Settings, opts.Now)
	}
	if opts.Downloader == nil {
		opts.Downloader = export.NewDownloader(opts.Config.OutputDir, opts.Logger)
	}
	if opts.Broadcaster == nil {
		opts.Broadcaster = messaging.NewBroadcaster()
	}

	return &Orchestrator{
		cfg:         opts.Config,
		driver:      opts.Driver,
		state:       opts.State,
		screenshots: opts.Screenshots,
		stitcher:    opts.Stitcher,
		engine:      opts.Engine,
		segmenter:   opts.Segmenter,
		markdown:    opts.Markdown,
		downloader:  opts.Downloader,
		broadcaster: opts.Broadcaster,
		metrics:     opts.Metrics,
		logger:      opts.Logger,
		sleep:       opts.Sleep,
		now:         opts.Now,
	}, nil
}

// Broadcaster returns the channel progress and completion messages are published on.
func (o *Orchestrator) Broadcaster() *messaging.Broadcaster {
	return o.broadcaster
}

// ProcessRoutes starts a new capture session for routes and returns as soon
// as the run is under way. A run already in progress is cancelled.
func (o *Orchestrator) ProcessRoutes(ctx context.Context, routes []model.Route) (Result, error) {
	if len(routes) == 0 {
		return Result{}, ErrNoRoutes
	}
	routes = slices.Clone(routes)

	o.writeMu.Lock()
	if o.cancel != nil {
		o.cancel()
	}
	o.gen++
	gen := o.gen
	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	o.cancel = cancel

	err := o.screenshots.Clear(ctx)
	if err == nil {
		err = o.state.StartRun(ctx, routes)
	}
	o.writeMu.Unlock()
	if err != nil {
		cancel()
		return Result{}, fmt.Errorf("failed to start run: %w", err)
	}

	o.logger.Info("route processing started", zap.Int("routes", len(routes)), zap.Uint64("session", gen))

	o.wg.Add(1)
	go func() {
		defer o.wg.Done()
		defer cancel()
		o.startRouteProcessing(runCtx, gen, routes)
	}()

	return Result{Success: true, Message: "Processing started"}, nil
}

// Wait blocks until every background run has returned.
func (o *Orchestrator) Wait() {
	o.wg.Wait()
}

// Shutdown cancels the current run and waits for it to return.
func (o *Orchestrator) Shutdown() {
	o.writeMu.Lock()
	if o.cancel != nil {
		o.cancel()
	}
	o.writeMu.Unlock()
	o.wg.Wait()
}

func (o *Orchestrator) generation() uint64 {
	o.writeMu.Lock()
	defer o.writeMu.Unlock()
	return o.gen
}

// commit runs fn unless session gen has been superseded.
func (o *Orchestrator) commit(gen uint64, fn func() error) error {
	o.writeMu.Lock()
	defer o.writeMu.Unlock()
	if gen != o.gen {
		return errStaleSession
	}
	return fn()
}

func (o *Orchestrator) startRouteProcessing(ctx context.Context, gen uint64, routes []model.Route) {
	original, err := o.driver.Active(ctx)
	if err != nil {
		o.logger.Debug("no active tab to restore", zap.Error(err))
	}

	err = o.commit(gen, func() error {
		return o.state.SetStatus(ctx, store.StatusInProgress, "")
	})
	if errors.Is(err, errStaleSession) {
		return
	}
	if err != nil {
		o.logger.Error("failed to persist status", zap.Error(err))
	}

	failed := 0
	cancelled := false
	for i, route := range routes {
		if ctx.Err() != nil {
			cancelled = true
			break
		}

		progress := int(math.Round(float64(i+1) / float64(len(routes)) * 100))
		err := o.commit(gen, func() error {
			o.metrics.SetProgress(progress)
			o.broadcaster.Publish(messaging.Request{Action: messaging.ProcessingProgress, Progress: progress})
			return o.state.SetProgress(ctx, progress)
		})
		if errors.Is(err, errStaleSession) {
			return
		}
		if err != nil {
			o.logger.Warn("failed to persist progress", zap.Error(err))
		}

		o.logger.Info("processing route",
			zap.Int("index", i+1),
			zap.Int("total", len(routes)),
			zap.String("url", route.FullURL))

		_, err = o.processAndCapture(ctx, gen, route)
		if errors.Is(err, errStaleSession) {
			return
		}
		if err != nil {
			failed++
			o.logger.Warn("route failed, continuing", zap.String("url", route.FullURL), zap.Error(err))
		}

		if i < len(routes)-1 {
			if err := o.sleep(ctx, o.cfg.RouteDelay); err != nil {
				cancelled = true
				break
			}
		}
	}

	status, msg := store.StatusCompleted, ""
	switch {
	case cancelled:
		status, msg = store.StatusError, "processing cancelled"
	case failed == len(routes):
		status, msg = store.StatusError, fmt.Sprintf("all %d routes failed", failed)
	}

	// the run context may be cancelled here, final writes use a fresh one
	final := context.WithoutCancel(ctx)
	err = o.commit(gen, func() error {
		o.broadcaster.Publish(messaging.Request{
			Action:  messaging.ProcessingComplete,
			Success: status == store.StatusCompleted,
			Error:   msg,
		})
		return o.state.SetStatus(final, status, msg)
	})
	if err != nil && !errors.Is(err, errStaleSession) {
		o.logger.Error("failed to persist status", zap.Error(err))
	}

	o.logger.Info("route processing finished",
		zap.String("status", string(status)),
		zap.Int("routes", len(routes)),
		zap.Int("failed", failed))

	if original != nil {
		if err := o.driver.Activate(final, original); err != nil {
			o.logger.Warn("failed to restore original tab", zap.Error(err))
		}
	}
}

// ProcessAndCaptureRoute processes route in a new tab within the current session.
func (o *Orchestrator) ProcessAndCaptureRoute(ctx context.Context, route model.Route) (*model.ProcessedRoute, error) {
	return o.processAndCapture(ctx, o.generation(), route)
}

func (o *Orchestrator) processAndCapture(ctx context.Context, gen uint64, route model.Route) (*model.ProcessedRoute, error) {
	started := o.now()
	defer func() {
		o.metrics.ObserveRoute(o.now().Sub(started))
	}()

	tab, err := o.driver.Open(ctx, route.FullURL)
	if err != nil {
		return nil, o.fail(ctx, gen, route, fmt.Errorf("failed to open tab: %w", err))
	}
	defer func() {
		if err := tab.Close(); err != nil {
			o.logger.Debug("failed to close tab", zap.String("tab", tab.ID()), zap.Error(err))
		}
	}()

	if err := o.waitLoad(ctx, tab); err != nil {
		return nil, o.fail(ctx, gen, route, err)
	}
	if err := o.sleep(ctx, o.cfg.SettleTime); err != nil {
		return nil, err
	}

	analysis := o.analyzeOrFallback(ctx, tab, route)
	shot := o.capture(ctx, tab)
	processed := o.build(ctx, route, analysis, shot)

	err = o.commit(gen, func() error {
		return o.persist(ctx, processed, tab.ID(), route.FullURL)
	})
	if errors.Is(err, errStaleSession) {
		return nil, err
	}
	if err != nil {
		return nil, o.fail(ctx, gen, route, err)
	}
	o.recordOutcome(processed)
	return processed, nil
}

// ProcessIndividualRoute processes route in the active tab, navigating only
// when the tab is not already showing it.
func (o *Orchestrator) ProcessIndividualRoute(ctx context.Context, route model.Route) (*model.ProcessedRoute, error) {
	gen := o.generation()

	tab, err := o.driver.Active(ctx)
	if err != nil {
		return nil, o.fail(ctx, gen, route, fmt.Errorf("no active tab: %w", err))
	}

	current, err := tab.URL(ctx)
	if err != nil {
		o.logger.Debug("failed to read tab url", zap.Error(err))
	}
	if !isCurrentPage(current, route) {
		if err := o.navigate(ctx, tab, route.FullURL); err != nil {
			// analyse whatever the tab is showing
			o.logger.Warn("navigation failed, analysing current page",
				zap.String("url", route.FullURL), zap.Error(err))
		}
	}
	if err := o.sleep(ctx, o.cfg.SettleTime); err != nil {
		return nil, o.fail(ctx, gen, route, err)
	}

	if err := o.ensureAgent(ctx, tab); err != nil {
		o.logger.Warn("page agent unavailable", zap.String("tab", tab.ID()), zap.Error(err))
	}

	shot := o.capture(ctx, tab)
	analysis := o.analyzeOrFallback(ctx, tab, route)
	processed := o.build(ctx, route, analysis, shot)

	pageURL, _ := tab.URL(ctx)
	if pageURL == "" {
		pageURL = route.FullURL
	}
	err = o.commit(gen, func() error {
		return o.persist(ctx, processed, tab.ID(), pageURL)
	})
	if err != nil {
		return nil, o.fail(ctx, gen, route, err)
	}
	o.recordOutcome(processed)
	return processed, nil
}

func (o *Orchestrator) navigate(ctx context.Context, tab Tab, target string) error {
	if err := tab.Navigate(ctx, target); err != nil {
		return fmt.Errorf("failed to navigate: %w", err)
	}
	if err := o.waitLoad(ctx, tab); err != nil {
		return err
	}
	return o.sleep(ctx, o.cfg.NavigateSettle)
}

// waitLoad bounds tab.WaitLoad by the navigation timeout.
func (o *Orchestrator) waitLoad(ctx context.Context, tab Tab) error {
	loadCtx, cancel := context.WithTimeout(ctx, o.cfg.NavigationTimeout)
	defer cancel()

	err := tab.WaitLoad(loadCtx)
	if err == nil {
		return nil
	}
	if ctx.Err() == nil && errors.Is(loadCtx.Err(), context.DeadlineExceeded) {
		return fmt.Errorf("%w after %s", ErrNavigationTimeout, o.cfg.NavigationTimeout)
	}
	return fmt.Errorf("failed to load page: %w", err)
}

// send delivers req to the tab's page agent, injecting the agent and
// retrying once when nothing is listening.
func (o *Orchestrator) send(ctx context.Context, tab Tab, req messaging.Request) (messaging.Response, error) {
	resp, err := tab.Send(ctx, req)
	if err == nil || !isNotConnected(err) {
		return resp, err
	}

	o.logger.Debug("page agent missing, injecting", zap.String("tab", tab.ID()), zap.String("action", string(req.Action)))
	if err := o.inject(ctx, tab); err != nil {
		return messaging.Response{}, err
	}
	return tab.Send(ctx, req)
}

func (o *Orchestrator) inject(ctx context.Context, tab Tab) error {
	o.metrics.IncInjection()
	if err := tab.Inject(ctx); err != nil {
		return fmt.Errorf("failed to inject page agent: %w", err)
	}
	return o.sleep(ctx, o.cfg.InjectSettle)
}

// ensureAgent checks the page agent answers and injects it otherwise.
func (o *Orchestrator) ensureAgent(ctx context.Context, tab Tab) error {
	if _, err := tab.Send(ctx, messaging.Request{Action: messaging.GetRoutes}); err == nil {
		return nil
	}
	return o.inject(ctx, tab)
}

func (o *Orchestrator) analyze(ctx context.Context, tab Tab) (*model.PageAnalysis, error) {
	resp, err := o.send(ctx, tab, messaging.Request{Action: messaging.AnalyzePageStructure})
	if err != nil {
		return nil, err
	}
	if !resp.Success || resp.Analysis == nil {
		msg := resp.Error
		if msg == "" {
			msg = "empty analysis"
		}
		return nil, fmt.Errorf("page analysis failed: %s", msg)
	}
	return resp.Analysis, nil
}

func (o *Orchestrator) analyzeOrFallback(ctx context.Context, tab Tab, route model.Route) *model.PageAnalysis {
	analysis, err := o.analyze(ctx, tab)
	if err == nil {
		return analysis
	}
	o.metrics.IncError(errorTypeLabel(err))
	o.logger.Warn("structure analysis failed, using fallback",
		zap.String("url", route.FullURL), zap.Error(err))
	return model.FallbackAnalysis(err.Error(), o.now().UnixMilli())
}

// screenshot captures the tab as a PNG data URL, the full page when the
// settings ask for it and the viewport otherwise.
func (o *Orchestrator) screenshot(ctx context.Context, tab Tab) (string, error) {
	if o.cfg.Settings.CaptureFullPage {
		dataURL, err := o.stitcher.Capture(ctx, tab)
		return dataURL, classifyCaptureError(err)
	}
	data, err := tab.CaptureViewport(ctx)
	if err != nil {
		return "", classifyCaptureError(err)
	}
	return "data:image/png;base64," + base64.StdEncoding.EncodeToString(data), nil
}

// capture never fails the route; a failed screenshot leaves it empty.
func (o *Orchestrator) capture(ctx context.Context, tab Tab) string {
	dataURL, err := o.screenshot(ctx, tab)
	if err != nil {
		o.metrics.IncScreenshot(outcomeFailed)
		o.metrics.IncError(errorTypeLabel(err))
		o.logger.Warn("screenshot failed", zap.String("tab", tab.ID()), zap.Error(err))
		return ""
	}
	o.metrics.IncScreenshot(outcomeSuccess)
	return dataURL
}

func (o *Orchestrator) build(ctx context.Context, route model.Route, analysis *model.PageAnalysis, shot string) *model.ProcessedRoute {
	var report *model.ComponentReport
	if analysis.Error == "" {
		r := o.engine.Extract(analysis)
		report = &r
	}
	processed := model.NewProcessedRoute(route, analysis, report, o.now())
	processed.Screenshot = shot

	if o.segmenter != nil && shot != "" && !processed.Failed() {
		seg, err := o.segmenter.Segment(ctx, segment.Request{
			DataURL:  shot,
			Route:    route,
			Sections: processed.Sections,
		})
		if err != nil {
			o.logger.Warn("segmentation failed", zap.String("url", route.FullURL), zap.Error(err))
		} else {
			processed.Segmentation = seg
		}
	}
	return processed
}

// persist must be called under commit.
func (o *Orchestrator) persist(ctx context.Context, p *model.ProcessedRoute, tabID, pageURL string) error {
	if err := o.state.SaveProcessed(ctx, p); err != nil {
		return fmt.Errorf("failed to save processed route: %w", err)
	}
	if p.Screenshot == "" {
		return nil
	}
	err := o.screenshots.Put(ctx, model.Screenshot{
		ID:        uuid.NewString(),
		RouteID:   p.Route.ID,
		RouteURL:  p.Route.URL,
		DataURL:   p.Screenshot,
		TabID:     tabID,
		URL:       pageURL,
		CreatedAt: o.now(),
	})
	if err != nil {
		return fmt.Errorf("failed to save screenshot: %w", err)
	}
	return nil
}

// fail stores a fallback record for route and returns err.
func (o *Orchestrator) fail(ctx context.Context, gen uint64, route model.Route, err error) error {
	o.metrics.IncRoute(outcomeFailed)
	o.metrics.IncError(errorTypeLabel(err))

	record := model.FallbackProcessedRoute(route, err.Error(), o.now())
	saveErr := o.commit(gen, func() error {
		return o.state.SaveProcessed(context.WithoutCancel(ctx), record)
	})
	if saveErr != nil && !errors.Is(saveErr, errStaleSession) {
		o.logger.Error("failed to save fallback record", zap.String("route", route.ID), zap.Error(saveErr))
	}
	return err
}

func (o *Orchestrator) recordOutcome(p *model.ProcessedRoute) {
	if p.Failed() {
		o.metrics.IncRoute(outcomeFallback)
		return
	}
	o.metrics.IncRoute(outcomeSuccess)
}

// isCurrentPage reports whether a tab at current already shows route.
func isCurrentPage(current string, route model.Route) bool {
	if route.URL == currentPageURL {
		return true
	}
	if current == "" {
		return false
	}
	if current == route.FullURL {
		return true
	}
	u, err := url.Parse(current)
	if err != nil {
		return false
	}
	path := u.EscapedPath()
	if path == "" {
		path = "/"
	}
	if u.RawQuery != "" {
		path += "?" + u.RawQuery
	}
	return path == route.URL
}

// DiscoverRoutes opens target in a new tab and asks its page agent for routes.
func (o *Orchestrator) DiscoverRoutes(ctx context.Context, target string) ([]model.Route, error) {
	tab, err := o.driver.Open(ctx, target)
	if err != nil {
		return nil, fmt.Errorf("failed to open tab: %w", err)
	}
	defer func() {
		if err := tab.Close(); err != nil {
			o.logger.Debug("failed to close tab", zap.Error(err))
		}
	}()

	if err := o.waitLoad(ctx, tab); err != nil {
		return nil, err
	}
	if err := o.sleep(ctx, o.cfg.SettleTime); err != nil {
		return nil, err
	}

	resp, err := o.send(ctx, tab, messaging.Request{Action: messaging.GetRoutes})
	if err != nil {
		return nil, fmt.Errorf("failed to get routes: %w", err)
	}
	if !resp.Success {
		return nil, fmt.Errorf("failed to get routes: %s", resp.Error)
	}
	return inspector.DecodeRoutes(resp.Routes), nil
}
