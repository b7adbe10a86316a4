package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{
			name:    "unknown quality",
			mutate:  func(cfg *Config) { cfg.Settings.ScreenshotQuality = "ultra" },
			wantErr: "screenshot quality",
		},
		{
			name:    "zero max routes",
			mutate:  func(cfg *Config) { cfg.Settings.MaxRoutes = 0 },
			wantErr: "max routes",
		},
		{
			name:    "threshold above one",
			mutate:  func(cfg *Config) { cfg.Settings.SegmentationThreshold = 1.5 },
			wantErr: "segmentation threshold",
		},
		{
			name:    "negative scroll delay",
			mutate:  func(cfg *Config) { cfg.ScrollDelay = -time.Millisecond },
			wantErr: "scroll delay",
		},
		{
			name:    "zero navigation timeout",
			mutate:  func(cfg *Config) { cfg.NavigationTimeout = 0 },
			wantErr: "navigation timeout",
		},
		{
			name:    "unknown provider",
			mutate:  func(cfg *Config) { cfg.Provider = "gemini" },
			wantErr: "unknown provider",
		},
		{
			name:    "empty state path",
			mutate:  func(cfg *Config) { cfg.StatePath = "" },
			wantErr: "state path",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if err == nil {
				t.Fatalf("expected error containing %q", tt.wantErr)
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Fatalf("error %q does not contain %q", err, tt.wantErr)
			}
		})
	}
}

func TestDefaultConfigIsValid(t *testing.T) {
	if err := DefaultConfig().Validate(); err != nil {
		t.Fatalf("default config invalid: %v", err)
	}
}

func TestSettingsQuality(t *testing.T) {
	cases := map[string]int{"high": 100, "medium": 80, "low": 60, "": 90}
	for quality, want := range cases {
		s := Settings{ScreenshotQuality: quality}
		if got := s.Quality(); got != want {
			t.Errorf("Quality(%q) = %d, want %d", quality, got, want)
		}
	}
}

func TestLoadOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "routedoc.yaml")
	body := `
settings:
  screenshot_quality: medium
  max_routes: 5
viewport_width: 1440
route_delay: 1s
provider: openai
`
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Settings.ScreenshotQuality != "medium" || cfg.Settings.MaxRoutes != 5 {
		t.Fatalf("settings not applied: %+v", cfg.Settings)
	}
	if cfg.ViewportWidth != 1440 || cfg.ViewportHeight != 800 {
		t.Fatalf("viewport = %dx%d", cfg.ViewportWidth, cfg.ViewportHeight)
	}
	if cfg.RouteDelay != time.Second {
		t.Fatalf("route delay = %s", cfg.RouteDelay)
	}
	if !cfg.Settings.CaptureFullPage {
		t.Fatalf("unset fields should keep defaults")
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("validate: %v", err)
	}
}

func TestLoadEmptyPath(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.StatePath != DefaultConfig().StatePath {
		t.Fatalf("expected defaults")
	}
}
