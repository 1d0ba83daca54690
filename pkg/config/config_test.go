package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{"LIVEDASH_API_BASE", "LIVEDASH_TOKEN", "LIVEDASH_PUSH_URL", "LIVEDASH_PRESET", "LIVEDASH_LOG_LEVEL"} {
		t.Setenv(k, "")
	}
}

const sampleTOML = `
preset = "ops"

[general]
log_level = "debug"
cache_dir = "/tmp/livedash"

[api]
base_url = "http://localhost:8004"
timeout = "5s"

[push]
url = "ws://localhost:8004/ws"
redial_delay = "2s"

[[views]]
name = "summary"
interval = "30s"
schedule = "fixed-rate"
on_error = "discard"
timeout = "10s"

  [[views.resources]]
  name = "stats"
  kind = "http"
  path = "/api/v1/agents/stats/summary"

[[views]]
name = "host"
auto_refresh = false

  [[views.resources]]
  name = "system"
  kind = "sysmetrics"
  mounts = ["/", "/home"]
`

const sampleYAML = `
api:
  base_url: http://localhost:8004
views:
  - name: summary
    interval: 30s
    resources:
      - name: stats
        kind: http
        path: /api/v1/agents/stats/summary
        query:
          window: 1h
`

func TestLoadFromReaderTOML(t *testing.T) {
	clearEnv(t)
	cfg, err := LoadFromReader(strings.NewReader(sampleTOML), FormatTOML)
	if err != nil {
		t.Fatalf("LoadFromReader: %v", err)
	}

	if cfg.General.LogLevel != "debug" || cfg.API.Timeout.Duration != 5*time.Second {
		t.Errorf("general/api not decoded: %+v %+v", cfg.General, cfg.API)
	}
	if cfg.Push.RedialDelay.Duration != 2*time.Second {
		t.Errorf("RedialDelay = %v", cfg.Push.RedialDelay)
	}
	if len(cfg.Views) != 2 {
		t.Fatalf("len(Views) = %d, want 2", len(cfg.Views))
	}

	v := cfg.Views[0]
	if v.Interval.Duration != 30*time.Second || v.Schedule != "fixed-rate" || v.OnError != "discard" {
		t.Errorf("view[0] = %+v", v)
	}
	if !v.AutoRefreshEnabled() {
		t.Error("auto_refresh should default to true")
	}
	if cfg.Views[1].AutoRefreshEnabled() {
		t.Error("explicit auto_refresh = false was ignored")
	}
	if got := cfg.Views[1].Resources[0].Mounts; len(got) != 2 {
		t.Errorf("Mounts = %v", got)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate: %v", err)
	}
}

func TestLoadFromReaderYAML(t *testing.T) {
	clearEnv(t)
	cfg, err := LoadFromReader(strings.NewReader(sampleYAML), FormatYAML)
	if err != nil {
		t.Fatalf("LoadFromReader: %v", err)
	}
	if len(cfg.Views) != 1 || cfg.Views[0].Interval.Duration != 30*time.Second {
		t.Fatalf("views = %+v", cfg.Views)
	}
	if q := cfg.Views[0].Resources[0].Query["window"]; q != "1h" {
		t.Errorf("query window = %q", q)
	}
	if cfg.General.LogLevel != "info" {
		t.Errorf("defaults lost: log level %q", cfg.General.LogLevel)
	}
}

func TestLoadFromReaderBadDuration(t *testing.T) {
	clearEnv(t)
	_, err := LoadFromReader(strings.NewReader(`[api]
timeout = "soon"`), FormatTOML)
	if err == nil {
		t.Fatal("expected error for invalid duration")
	}
}

func TestEnvOverrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("LIVEDASH_API_BASE", "https://api.example")
	t.Setenv("LIVEDASH_TOKEN", "tok")
	t.Setenv("LIVEDASH_PUSH_URL", "wss://push.example")

	cfg, err := LoadFromReader(strings.NewReader(`[api]
base_url = "http://file"`), FormatTOML)
	if err != nil {
		t.Fatalf("LoadFromReader: %v", err)
	}
	if cfg.API.BaseURL != "https://api.example" || cfg.Push.URL != "wss://push.example" {
		t.Errorf("env not applied: %+v %+v", cfg.API, cfg.Push)
	}
	// The token variable is read by the credentials chain, not copied here.
	if cfg.API.Token != "" {
		t.Errorf("API.Token = %q, want empty", cfg.API.Token)
	}
}

func TestLoadSearchesXDG(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", dir)
	t.Setenv("HOME", t.TempDir())

	if err := os.MkdirAll(filepath.Join(dir, "livedash"), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "livedash", "config.yaml"), []byte(sampleYAML), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.API.BaseURL != "http://localhost:8004" {
		t.Errorf("config.yaml not picked up: %+v", cfg.API)
	}
}

func TestLoadFromFileMissingGivesDefaults(t *testing.T) {
	clearEnv(t)
	cfg, err := LoadFromFile(filepath.Join(t.TempDir(), "nope.toml"))
	if err != nil {
		t.Fatalf("LoadFromFile: %v", err)
	}
	if cfg.Preset != "agents" {
		t.Errorf("Preset = %q, want agents", cfg.Preset)
	}
}

func TestResolvedViewsUsesPreset(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Preset = "ops"
	views := cfg.ResolvedViews()
	if len(views) != 3 || views[0].Name != "host" {
		t.Errorf("ops preset = %+v", views)
	}

	if got := ViewPreset("unknown"); got[0].Name != "summary" {
		t.Errorf("unknown preset should fall back to agents, got %q", got[0].Name)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"demo preset ok", func(c *Config) { c.Preset = "demo" }, ""},
		{"agents preset needs base url", func(c *Config) {}, "api.base_url"},
		{"bad log level", func(c *Config) { c.Preset = "demo"; c.General.LogLevel = "loud" }, "log_level"},
		{"duplicate view", func(c *Config) {
			v := ViewConfig{Name: "a", Resources: []ResourceConfig{{Name: "r", Kind: KindMock}}}
			c.Views = []ViewConfig{v, v}
		}, "duplicate view"},
		{"unknown kind", func(c *Config) {
			c.Views = []ViewConfig{{Name: "a", Resources: []ResourceConfig{{Name: "r", Kind: "ftp"}}}}
		}, "unknown kind"},
		{"no resources", func(c *Config) { c.Views = []ViewConfig{{Name: "a"}} }, "at least one resource"},
		{"bad schedule", func(c *Config) {
			c.Views = []ViewConfig{{Name: "a", Schedule: "sometimes", Resources: []ResourceConfig{{Name: "r", Kind: KindMock}}}}
		}, "sometimes"},
		{"tiny interval", func(c *Config) {
			c.Views = []ViewConfig{{Name: "a", Interval: Duration{time.Millisecond}, Resources: []ResourceConfig{{Name: "r", Kind: KindMock}}}}
		}, "below 100ms"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("Validate: %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Validate = %v, want error containing %q", err, tt.wantErr)
			}
		})
	}
}

func TestDurationText(t *testing.T) {
	var d Duration
	if err := d.UnmarshalText([]byte("-1s")); err == nil {
		t.Error("negative duration accepted")
	}
	if err := d.UnmarshalText([]byte("90s")); err != nil || d.Duration != 90*time.Second {
		t.Errorf("90s -> %v, %v", d.Duration, err)
	}
	if b, _ := d.MarshalText(); string(b) != "1m30s" {
		t.Errorf("MarshalText = %q", b)
	}
}
