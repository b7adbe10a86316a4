package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"regexp"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/yaml.v3"

	"github.com/v0xg/routedoc/internal/config"
	"github.com/v0xg/routedoc/internal/crawler"
	"github.com/v0xg/routedoc/internal/inspector"
	"github.com/v0xg/routedoc/internal/messaging"
	"github.com/v0xg/routedoc/internal/model"
	"github.com/v0xg/routedoc/internal/orchestrator"
	"github.com/v0xg/routedoc/internal/segment"
	"github.com/v0xg/routedoc/internal/store"
)

var (
	configPath         string
	output             string
	statePath          string
	width              int
	height             int
	provider           string
	modelName          string
	profile            string
	headless           bool
	verbose            bool
	metricsAddr        string
	maxRoutes          int
	match              string
	includeScreenshots bool

	cfg    *config.Config
	logger *zap.Logger
)

// segmentCacheSize bounds the vision segmentation cache when caching is enabled
const segmentCacheSize = 128

func main() {
	// Load .env file if present (silently ignore if not found)
	_ = godotenv.Load()

	rootCmd := &cobra.Command{
		Use:   "routedoc",
		Short: "Document the pages of a website as Markdown",
		Long: `routedoc discovers the routes of a website, visits each one in a browser,
captures a full-page screenshot, analyses the page structure and writes
Markdown documentation of its sections and reusable components.

Example:
  routedoc capture "https://myapp.com" --max-routes 10 --match '^/docs'`,
		SilenceUsage:      true,
		PersistentPreRunE: setup,
		PersistentPostRun: func(*cobra.Command, []string) {
			if logger != nil {
				_ = logger.Sync()
			}
		},
	}

	pf := rootCmd.PersistentFlags()
	pf.StringVarP(&configPath, "config", "c", "", "YAML config file")
	pf.StringVarP(&output, "output", "o", "", "Output directory (default routedoc-output)")
	pf.StringVar(&statePath, "state", "", "State database (default routedoc.db)")
	pf.IntVar(&width, "width", 1280, "Viewport width")
	pf.IntVar(&height, "height", 800, "Viewport height")
	pf.StringVar(&provider, "provider", "", "Screenshot segmentation: dom, claude, openai (default: from env or none)")
	pf.StringVar(&modelName, "model", "", "Specific model override")
	pf.StringVar(&profile, "profile", "", "Chrome/Chromium profile directory for authenticated sessions (close browser first)")
	pf.BoolVar(&headless, "headless", true, "Run the browser without a window")
	pf.BoolVarP(&verbose, "verbose", "v", false, "Show detailed progress")
	pf.StringVar(&metricsAddr, "metrics-addr", "", "Serve Prometheus metrics on this address, e.g. :9090")

	routesCmd := &cobra.Command{
		Use:   "routes <url>",
		Short: "Discover and print the routes of a page",
		Args:  cobra.ExactArgs(1),
		RunE:  runRoutes,
	}

	captureCmd := &cobra.Command{
		Use:   "capture <url>",
		Short: "Discover, process and document routes",
		Args:  cobra.ExactArgs(1),
		RunE:  runCapture,
	}
	captureCmd.Flags().IntVar(&maxRoutes, "max-routes", 0, "Maximum routes to process (default from settings)")
	captureCmd.Flags().StringVar(&match, "match", "", "Only process routes whose path matches this regular expression")
	captureCmd.Flags().BoolVar(&includeScreenshots, "screenshots", true, "Export screenshots and section overlays")

	exportCmd := &cobra.Command{
		Use:   "export",
		Short: "Regenerate documentation from the state database",
		Args:  cobra.NoArgs,
		RunE:  runExport,
	}
	exportCmd.Flags().BoolVar(&includeScreenshots, "screenshots", true, "Export screenshots and section overlays")

	settingsCmd := &cobra.Command{
		Use:   "settings",
		Short: "Print the effective capture settings",
		Args:  cobra.NoArgs,
		RunE:  runSettings,
	}

	rootCmd.AddCommand(routesCmd, captureCmd, exportCmd, settingsCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// setup loads the config, applies flag overrides and builds the logger.
func setup(cmd *cobra.Command, _ []string) error {
	var err error
	cfg, err = config.Load(configPath)
	if err != nil {
		return err
	}

	flags := cmd.Flags()
	if flags.Changed("output") {
		cfg.OutputDir = output
	}
	if flags.Changed("state") {
		cfg.StatePath = statePath
	}
	if flags.Changed("width") {
		cfg.ViewportWidth = width
	}
	if flags.Changed("height") {
		cfg.ViewportHeight = height
	}
	if flags.Changed("headless") {
		cfg.Headless = headless
	}
	if flags.Changed("profile") {
		cfg.ProfileDir = profile
	}
	if flags.Changed("metrics-addr") {
		cfg.MetricsAddr = metricsAddr
	}
	if flags.Changed("model") {
		cfg.Model = modelName
	}
	if flags.Changed("verbose") {
		cfg.Verbose = verbose
	}
	switch {
	case flags.Changed("provider"):
		cfg.Provider = provider
	case cfg.Provider == "":
		cfg.Provider = os.Getenv("ROUTEDOC_DEFAULT_PROVIDER")
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	zc := zap.NewProductionConfig()
	if cfg.Verbose {
		zc.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
	}
	logger, err = zc.Build()
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	return nil
}

func logVerbose(format string, args ...any) {
	if cfg.Verbose {
		fmt.Printf(format+"\n", args...)
	}
}

// session bundles what a command needs to drive the orchestrator.
type session struct {
	db      *store.DB
	browser *crawler.Browser
	orch    *orchestrator.Orchestrator
	metrics *orchestrator.Metrics
	server  *http.Server
}

func openSession(ctx context.Context, withBrowser bool) (*session, error) {
	db, err := store.Open(cfg.StatePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open state database: %w", err)
	}
	s := &session{db: db, metrics: orchestrator.NewMetrics()}

	var driver orchestrator.TabDriver = offlineDriver{}
	if withBrowser {
		fmt.Printf("→ Launching browser... ")
		s.browser, err = crawler.Launch(ctx, crawler.Options{
			Width:      cfg.ViewportWidth,
			Height:     cfg.ViewportHeight,
			Headless:   cfg.Headless,
			ProfileDir: cfg.ProfileDir,
			Inspector:  inspector.Options{Enhanced: cfg.Settings.EnhancedAnalysis},
			Sitemaps: inspector.NewSitemapFetcher(
				inspector.WithTimeout(cfg.SitemapTimeout),
				inspector.WithLogger(logger),
			),
			Logger: logger,
		})
		if err != nil {
			fmt.Println("failed")
			s.close()
			return nil, fmt.Errorf("browser launch failed: %w", err)
		}
		fmt.Println("done")
		driver = browserDriver{browser: s.browser}
	}

	segmenter, err := newSegmenter()
	if err != nil {
		s.close()
		return nil, err
	}

	s.orch, err = orchestrator.New(orchestrator.Options{
		Config:      cfg,
		Driver:      driver,
		State:       store.NewRunState(db.KV()),
		Screenshots: db.Screenshots(),
		Segmenter:   segmenter,
		Metrics:     s.metrics,
		Logger:      logger,
	})
	if err != nil {
		s.close()
		return nil, err
	}

	if cfg.MetricsAddr != "" {
		s.server = &http.Server{
			Addr:    cfg.MetricsAddr,
			Handler: promhttp.HandlerFor(s.metrics.Registry, promhttp.HandlerOpts{}),
		}
		go func() {
			if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("metrics server failed", zap.Error(err))
			}
		}()
		logger.Info("metrics server enabled", zap.String("addr", cfg.MetricsAddr))
	}
	return s, nil
}

func (s *session) close() {
	if s.orch != nil {
		s.orch.Shutdown()
	}
	if s.server != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		_ = s.server.Shutdown(ctx)
		cancel()
	}
	if s.browser != nil {
		if err := s.browser.Close(); err != nil {
			logger.Warn("failed to close browser", zap.Error(err))
		}
	}
	if err := s.db.Close(); err != nil {
		logger.Warn("failed to close state database", zap.Error(err))
	}
}

// newSegmenter returns nil when no provider is configured.
func newSegmenter() (segment.Segmenter, error) {
	if cfg.Provider == "" {
		return nil, nil
	}
	primary, err := segment.NewSegmenter(cfg.Provider, cfg.Model)
	if err != nil {
		return nil, fmt.Errorf("segmentation provider init failed: %w", err)
	}
	cacheSize := 0
	if cfg.Settings.EnableCaching {
		cacheSize = segmentCacheSize
	}
	return segment.WithFallback(primary, segment.FallbackOptions{
		CacheSize: cacheSize,
		Threshold: cfg.Settings.SegmentationThreshold,
		Logger:    logger,
	}), nil
}

func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

func runRoutes(_ *cobra.Command, args []string) error {
	url := args[0]
	ctx, stop := signalContext()
	defer stop()

	s, err := openSession(ctx, true)
	if err != nil {
		return err
	}
	defer s.close()

	routes, err := discover(ctx, s, url)
	if err != nil {
		return err
	}
	for i, r := range routes {
		fmt.Printf("  [%d] %-10s %s", i+1, r.Type, r.URL)
		if r.Title != "" && r.Title != r.URL {
			fmt.Printf("  (%s)", r.Title)
		}
		fmt.Println()
	}
	return nil
}

func discover(ctx context.Context, s *session, url string) ([]model.Route, error) {
	fmt.Printf("→ Discovering routes on %s... ", url)
	routes, err := s.orch.DiscoverRoutes(ctx, url)
	if err != nil {
		fmt.Println("failed")
		return nil, fmt.Errorf("route discovery failed: %w", err)
	}
	fmt.Printf("done (found %d routes)\n", len(routes))
	return routes, nil
}

// filterRoutes keeps routes whose path matches pattern, up to limit.
func filterRoutes(routes []model.Route, pattern string, limit int) ([]model.Route, error) {
	var re *regexp.Regexp
	if pattern != "" {
		var err error
		re, err = regexp.Compile(pattern)
		if err != nil {
			return nil, fmt.Errorf("invalid --match pattern: %w", err)
		}
	}
	out := make([]model.Route, 0, len(routes))
	for _, r := range routes {
		if re != nil && !re.MatchString(r.URL) {
			continue
		}
		out = append(out, r)
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}

func runCapture(cmd *cobra.Command, args []string) error {
	url := args[0]
	ctx, stop := signalContext()
	defer stop()

	limit := cfg.Settings.MaxRoutes
	if cmd.Flags().Changed("max-routes") {
		limit = maxRoutes
	}

	s, err := openSession(ctx, true)
	if err != nil {
		return err
	}
	defer s.close()

	routes, err := discover(ctx, s, url)
	if err != nil {
		return err
	}
	routes, err = filterRoutes(routes, match, limit)
	if err != nil {
		return err
	}
	if len(routes) == 0 {
		return errors.New("no routes left to process")
	}
	for _, r := range routes {
		logVerbose("  %s", r.FullURL)
	}

	updates, unsubscribe := s.orch.Broadcaster().Subscribe(len(routes) + 1)
	defer unsubscribe()

	fmt.Printf("→ Processing %d routes...\n", len(routes))
	if _, err := s.orch.ProcessRoutes(ctx, routes); err != nil {
		return fmt.Errorf("processing failed: %w", err)
	}

	done := false
	for !done {
		select {
		case <-ctx.Done():
			fmt.Println("⚠ Interrupted, stopping")
			s.orch.Shutdown()
			return ctx.Err()
		case msg := <-updates:
			switch msg.Action {
			case messaging.ProcessingProgress:
				fmt.Printf("  %3d%%\n", msg.Progress)
			case messaging.ProcessingComplete:
				done = true
				if !msg.Success {
					fmt.Printf("⚠ Processing finished with errors: %s\n", msg.Error)
				}
			}
		}
	}
	s.orch.Wait()

	return export(ctx, s)
}

func runExport(_ *cobra.Command, _ []string) error {
	ctx, stop := signalContext()
	defer stop()

	s, err := openSession(ctx, false)
	if err != nil {
		return err
	}
	defer s.close()
	return export(ctx, s)
}

func export(ctx context.Context, s *session) error {
	fmt.Printf("→ Exporting documentation... ")
	resp := s.orch.ExportAllData(ctx, includeScreenshots)
	if !resp.Success {
		fmt.Println("failed")
		return fmt.Errorf("export failed: %s", resp.Error)
	}
	fmt.Printf("done (%d files)\n", len(resp.Downloaded))
	for _, f := range resp.Failed {
		fmt.Printf("  ⚠ %s: %s\n", f.Filename, f.Error)
	}
	if sum := resp.Summary; sum != nil {
		logVerbose("  routes: %d (%d failed), sections: %d, components: %d, screenshots: %d",
			sum.TotalRoutes, sum.FailedRoutes, sum.TotalSections, sum.TotalComponents, sum.Screenshots)
	}

	fmt.Printf("✓ Saved to %s\n", cfg.OutputDir)
	return nil
}

func runSettings(_ *cobra.Command, _ []string) error {
	out, err := yaml.Marshal(cfg.Settings)
	if err != nil {
		return err
	}
	fmt.Print(string(out))
	return nil
}
