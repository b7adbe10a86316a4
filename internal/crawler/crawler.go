// Package crawler drives Chromium tabs through go-rod and exposes each tab
// as a message channel to its page agent.
package crawler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
	"go.uber.org/zap"

	"github.com/v0xg/routedoc/internal/inspector"
)

// ErrTabNotFound is returned for an unknown tab id.
var ErrTabNotFound = errors.New("tab not found")

// Options configures the browser
type Options struct {
	Width      int
	Height     int
	Headless   bool
	ProfileDir string // Chrome/Chromium profile directory for authenticated sessions
	Bin        string // browser binary, looked up when empty

	// Inspector options and the shared sitemap fetcher for every tab's agent
	Inspector inspector.Options
	Sitemaps  *inspector.SitemapFetcher

	Logger *zap.Logger
}

// Browser owns one Chromium instance and the tabs opened through it.
type Browser struct {
	browser  *rod.Browser
	launcher *launcher.Launcher
	opts     Options
	logger   *zap.Logger

	mu     sync.Mutex
	tabs   map[string]*Tab
	active string
}

// Launch starts a browser and connects to it.
func Launch(ctx context.Context, opts Options) (*Browser, error) {
	if opts.Width == 0 {
		opts.Width = 1280
	}
	if opts.Height == 0 {
		opts.Height = 800
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}

	path := opts.Bin
	if path == "" {
		path, _ = launcher.LookPath()
	}
	l := launcher.New().Context(ctx).Bin(path).Headless(opts.Headless)
	if opts.ProfileDir != "" {
		l = l.UserDataDir(opts.ProfileDir)
	}

	u, err := l.Launch()
	if err != nil {
		return nil, fmt.Errorf("launch browser: %w", err)
	}
	browser := rod.New().ControlURL(u)
	if err := browser.Connect(); err != nil {
		l.Kill()
		return nil, fmt.Errorf("connect to browser: %w", err)
	}

	opts.Logger.Debug("browser launched", zap.String("bin", path), zap.Bool("headless", opts.Headless))
	return &Browser{
		browser:  browser,
		launcher: l,
		opts:     opts,
		logger:   opts.Logger,
		tabs:     make(map[string]*Tab),
	}, nil
}

// Close closes every tab and the browser.
func (b *Browser) Close() error {
	b.mu.Lock()
	b.tabs = make(map[string]*Tab)
	b.active = ""
	b.mu.Unlock()

	var err error
	if b.browser != nil {
		err = b.browser.Close()
	}
	if b.launcher != nil {
		b.launcher.Kill()
	}
	return err
}

// Open creates a tab for url and makes it the active one. It does not wait
// for the load to finish.
func (b *Browser) Open(ctx context.Context, url string) (*Tab, error) {
	page, err := b.browser.Context(ctx).Page(proto.TargetCreateTarget{URL: url})
	if err != nil {
		return nil, fmt.Errorf("open tab for %s: %w", url, err)
	}
	if err := page.SetViewport(&proto.EmulationSetDeviceMetricsOverride{
		Width:             b.opts.Width,
		Height:            b.opts.Height,
		DeviceScaleFactor: 1,
	}); err != nil {
		_ = page.Close()
		return nil, fmt.Errorf("set viewport: %w", err)
	}

	tab := b.track(page)
	b.mu.Lock()
	b.active = tab.ID()
	b.mu.Unlock()
	return tab, nil
}

// Tab returns the tab with the given id.
func (b *Browser) Tab(id string) (*Tab, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	tab, ok := b.tabs[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrTabNotFound, id)
	}
	return tab, nil
}

// Active returns the tab that currently has focus, adopting an existing
// browser page when none was opened through Open.
func (b *Browser) Active(ctx context.Context) (*Tab, error) {
	b.mu.Lock()
	tab, ok := b.tabs[b.active]
	b.mu.Unlock()
	if ok {
		return tab, nil
	}

	pages, err := b.browser.Context(ctx).Pages()
	if err != nil {
		return nil, fmt.Errorf("list tabs: %w", err)
	}
	if len(pages) == 0 {
		return b.Open(ctx, "about:blank")
	}
	tab = b.track(pages.First())
	b.mu.Lock()
	b.active = tab.ID()
	b.mu.Unlock()
	return tab, nil
}

// Activate brings tab to the front.
func (b *Browser) Activate(ctx context.Context, tab *Tab) error {
	if _, err := tab.page.Context(ctx).Activate(); err != nil {
		return fmt.Errorf("activate tab %s: %w", tab.ID(), err)
	}
	b.mu.Lock()
	b.active = tab.ID()
	b.mu.Unlock()
	return nil
}

func (b *Browser) track(page *rod.Page) *Tab {
	tab := &Tab{
		id:     string(page.TargetID),
		page:   page,
		agent:  inspector.NewAgent(b.opts.Sitemaps, b.opts.Inspector, b.logger),
		logger: b.logger.With(zap.String("tab", string(page.TargetID))),
		onClose: func(id string) {
			b.mu.Lock()
			delete(b.tabs, id)
			if b.active == id {
				b.active = ""
			}
			b.mu.Unlock()
		},
	}
	b.mu.Lock()
	b.tabs[tab.id] = tab
	b.mu.Unlock()
	return tab
}

// settleTimeout bounds the network-idle wait; persistent connections
// (WebSockets, polling) would otherwise never go idle.
const settleTimeout = 5 * time.Second
