package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Settings are the user-facing capture preferences returned by getSettings.
type Settings struct {
	ScreenshotQuality     string  `json:"screenshotQuality" yaml:"screenshot_quality"` // high, medium, low
	WaitTime              int     `json:"waitTime" yaml:"wait_time"`                   // settle time in ms
	CaptureFullPage       bool    `json:"captureFullPage" yaml:"capture_full_page"`
	ExcludeHiddenElements bool    `json:"excludeHiddenElements" yaml:"exclude_hidden_elements"`
	DocumentationFormat   string  `json:"documentationFormat" yaml:"documentation_format"`
	IncludeAccessibility  bool    `json:"includeAccessibility" yaml:"include_accessibility"`
	MaxRoutes             int     `json:"maxRoutes" yaml:"max_routes"`
	SegmentationThreshold float64 `json:"segmentationThreshold" yaml:"segmentation_threshold"`
	EnableBatchProcessing bool    `json:"enableBatchProcessing" yaml:"enable_batch_processing"`
	EnableCaching         bool    `json:"enableCaching" yaml:"enable_caching"`
	EnhancedAnalysis      bool    `json:"enhancedAnalysis" yaml:"enhanced_analysis"`
}

// Quality maps the screenshot quality setting to a 0-100 encoder quality.
func (s Settings) Quality() int {
	switch s.ScreenshotQuality {
	case "high":
		return 100
	case "medium":
		return 80
	case "low":
		return 60
	}
	return 90
}

// Config holds runtime configuration.
type Config struct {
	Settings Settings `yaml:"settings"`

	ViewportWidth     int           `yaml:"viewport_width"`
	ViewportHeight    int           `yaml:"viewport_height"`
	Headless          bool          `yaml:"headless"`
	ProfileDir        string        `yaml:"profile_dir"`
	NavigationTimeout time.Duration `yaml:"navigation_timeout"`
	SettleTime        time.Duration `yaml:"settle_time"`
	NavigateSettle    time.Duration `yaml:"navigate_settle"`
	InjectSettle      time.Duration `yaml:"inject_settle"`
	RouteDelay        time.Duration `yaml:"route_delay"`
	ScrollDelay       time.Duration `yaml:"scroll_delay"`
	CaptureInterval   time.Duration `yaml:"capture_interval"`
	SitemapTimeout    time.Duration `yaml:"sitemap_timeout"`

	StatePath   string `yaml:"state_path"`
	OutputDir   string `yaml:"output_dir"`
	Provider    string `yaml:"provider"` // "", dom, claude, openai
	Model       string `yaml:"model"`
	MetricsAddr string `yaml:"metrics_addr"`
	Verbose     bool   `yaml:"verbose"`
}

// DefaultSettings mirrors the capture defaults shipped with the tool.
func DefaultSettings() Settings {
	return Settings{
		ScreenshotQuality:     "high",
		WaitTime:              3000,
		CaptureFullPage:       true,
		ExcludeHiddenElements: true,
		DocumentationFormat:   "markdown",
		IncludeAccessibility:  true,
		MaxRoutes:             20,
		SegmentationThreshold: 0.7,
		EnableBatchProcessing: true,
		EnableCaching:         true,
		EnhancedAnalysis:      true,
	}
}

// DefaultConfig returns defaults tuned for the browser's capture quota.
func DefaultConfig() *Config {
	return &Config{
		Settings:          DefaultSettings(),
		ViewportWidth:     1280,
		ViewportHeight:    800,
		Headless:          true,
		NavigationTimeout: 30 * time.Second,
		SettleTime:        3 * time.Second,
		NavigateSettle:    4 * time.Second,
		InjectSettle:      2 * time.Second,
		RouteDelay:        500 * time.Millisecond,
		ScrollDelay:       300 * time.Millisecond,
		CaptureInterval:   500 * time.Millisecond,
		SitemapTimeout:    10 * time.Second,
		StatePath:         "routedoc.db",
		OutputDir:         "routedoc-output",
	}
}

// Load reads a YAML file over the defaults. An empty path returns the defaults.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	return cfg, nil
}

// Validate ensures all configuration values are coherent.
func (c *Config) Validate() error {
	switch c.Settings.ScreenshotQuality {
	case "high", "medium", "low":
	default:
		return fmt.Errorf("screenshot quality must be high, medium, or low")
	}
	if c.Settings.WaitTime < 0 {
		return fmt.Errorf("wait time cannot be negative")
	}
	if c.Settings.MaxRoutes <= 0 {
		return fmt.Errorf("max routes must be positive")
	}
	if c.Settings.SegmentationThreshold < 0 || c.Settings.SegmentationThreshold > 1 {
		return fmt.Errorf("segmentation threshold must be between 0 and 1")
	}
	if c.Settings.DocumentationFormat != "markdown" {
		return fmt.Errorf("documentation format must be markdown")
	}
	if c.ViewportWidth <= 0 || c.ViewportHeight <= 0 {
		return fmt.Errorf("viewport dimensions must be positive")
	}
	if c.NavigationTimeout <= 0 {
		return fmt.Errorf("navigation timeout must be positive")
	}
	for name, d := range map[string]time.Duration{
		"settle time":      c.SettleTime,
		"navigate settle":  c.NavigateSettle,
		"inject settle":    c.InjectSettle,
		"route delay":      c.RouteDelay,
		"scroll delay":     c.ScrollDelay,
		"capture interval": c.CaptureInterval,
	} {
		if d < 0 {
			return fmt.Errorf("%s cannot be negative", name)
		}
	}
	if c.SitemapTimeout <= 0 {
		return fmt.Errorf("sitemap timeout must be positive")
	}
	if c.StatePath == "" {
		return fmt.Errorf("state path cannot be empty")
	}
	if c.OutputDir == "" {
		return fmt.Errorf("output directory cannot be empty")
	}
	switch c.Provider {
	case "", "dom", "claude", "anthropic", "openai", "gpt":
	default:
		return fmt.Errorf("unknown provider: %s (supported: dom, claude, openai)", c.Provider)
	}

	return nil
}
