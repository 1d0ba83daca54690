package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"gitlab.com/tinyland/lab/livedash/pkg/refresher"
)

// Resource kinds understood by the dashboard builder.
const (
	KindHTTP       = "http"
	KindSysMetrics = "sysmetrics"
	KindK8s        = "k8s"
	KindTailscale  = "tailscale"
	KindMock       = "mock"
)

// Config is the root of the configuration file.
type Config struct {
	General GeneralConfig `toml:"general" yaml:"general"`
	API     APIConfig     `toml:"api" yaml:"api"`
	Push    PushConfig    `toml:"push" yaml:"push"`

	// Preset names a built-in view set used when Views is empty.
	Preset string       `toml:"preset" yaml:"preset"`
	Views  []ViewConfig `toml:"views" yaml:"views"`
}

// GeneralConfig holds process-wide settings.
type GeneralConfig struct {
	LogLevel string `toml:"log_level" yaml:"log_level"`
	CacheDir string `toml:"cache_dir" yaml:"cache_dir"`

	// SnapshotTTL bounds how long serve-mode snapshots stay readable by
	// `livedash status`.
	SnapshotTTL Duration `toml:"snapshot_ttl" yaml:"snapshot_ttl"`
}

// APIConfig describes the REST backend shared by http resources.
type APIConfig struct {
	BaseURL string   `toml:"base_url" yaml:"base_url"`
	Token   string   `toml:"token" yaml:"token"`
	Timeout Duration `toml:"timeout" yaml:"timeout"`
}

// PushConfig describes the optional websocket push channel.
type PushConfig struct {
	URL         string   `toml:"url" yaml:"url"`
	RedialDelay Duration `toml:"redial_delay" yaml:"redial_delay"`
}

// ViewConfig is one refreshable view.
type ViewConfig struct {
	Name     string   `toml:"name" yaml:"name"`
	Title    string   `toml:"title" yaml:"title"`
	Interval Duration `toml:"interval" yaml:"interval"`

	// AutoRefresh defaults to true when unset.
	AutoRefresh *bool `toml:"auto_refresh" yaml:"auto_refresh"`

	// Schedule is "fixed-delay" (default) or "fixed-rate".
	Schedule string `toml:"schedule" yaml:"schedule"`

	// OnError is "keep-last-good" (default) or "discard".
	OnError string `toml:"on_error" yaml:"on_error"`

	Timeout   Duration         `toml:"timeout" yaml:"timeout"`
	Resources []ResourceConfig `toml:"resources" yaml:"resources"`
}

// AutoRefreshEnabled resolves the AutoRefresh default.
func (v ViewConfig) AutoRefreshEnabled() bool {
	return v.AutoRefresh == nil || *v.AutoRefresh
}

// ResourceConfig is one data source of a view. Which fields apply depends
// on Kind.
type ResourceConfig struct {
	Name string `toml:"name" yaml:"name"`
	Kind string `toml:"kind" yaml:"kind"`

	// http
	Path  string            `toml:"path" yaml:"path"`
	Query map[string]string `toml:"query" yaml:"query"`

	// k8s
	Kubeconfig string `toml:"kubeconfig" yaml:"kubeconfig"`
	Context    string `toml:"context" yaml:"context"`
	Namespace  string `toml:"namespace" yaml:"namespace"`

	// tailscale
	Socket string `toml:"socket" yaml:"socket"`

	// sysmetrics
	Mounts []string `toml:"mounts" yaml:"mounts"`
}

// ResolvedViews returns Views, or the preset's views when none are set.
func (c *Config) ResolvedViews() []ViewConfig {
	if len(c.Views) > 0 {
		return c.Views
	}
	return ViewPreset(c.Preset)
}

// Validate reports every problem found, joined.
func (c *Config) Validate() error {
	var errs []error

	switch c.General.LogLevel {
	case "", "debug", "info", "warn", "error":
	default:
		errs = append(errs, fmt.Errorf("general.log_level: unknown level %q", c.General.LogLevel))
	}

	seen := make(map[string]bool)
	for i, v := range c.ResolvedViews() {
		where := fmt.Sprintf("views[%d]", i)
		if v.Name == "" {
			errs = append(errs, fmt.Errorf("%s: name is required", where))
		} else if seen[v.Name] {
			errs = append(errs, fmt.Errorf("%s: duplicate view %q", where, v.Name))
		}
		seen[v.Name] = true

		if v.Interval.Duration > 0 && v.Interval.Duration < 100*time.Millisecond {
			errs = append(errs, fmt.Errorf("%s: interval %v is below 100ms", where, v.Interval.Duration))
		}
		if _, ok := refresher.ParseSchedule(v.Schedule); !ok {
			errs = append(errs, fmt.Errorf("%s: unknown schedule %q", where, v.Schedule))
		}
		if _, ok := refresher.ParseErrorPolicy(v.OnError); !ok {
			errs = append(errs, fmt.Errorf("%s: unknown on_error policy %q", where, v.OnError))
		}
		if len(v.Resources) == 0 {
			errs = append(errs, fmt.Errorf("%s: at least one resource is required", where))
		}

		names := make(map[string]bool)
		for j, r := range v.Resources {
			rwhere := fmt.Sprintf("%s.resources[%d]", where, j)
			if r.Name == "" {
				errs = append(errs, fmt.Errorf("%s: name is required", rwhere))
			} else if names[r.Name] {
				errs = append(errs, fmt.Errorf("%s: duplicate resource %q", rwhere, r.Name))
			}
			names[r.Name] = true

			switch r.Kind {
			case KindHTTP:
				if c.API.BaseURL == "" && !strings.HasPrefix(r.Path, "http://") && !strings.HasPrefix(r.Path, "https://") {
					errs = append(errs, fmt.Errorf("%s: http resource needs api.base_url or an absolute path", rwhere))
				}
			case KindSysMetrics, KindK8s, KindTailscale, KindMock:
			default:
				errs = append(errs, fmt.Errorf("%s: unknown kind %q", rwhere, r.Kind))
			}
		}
	}
	return errors.Join(errs...)
}
