package config

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"
)

// Format selects the decoder for LoadFromReader.
type Format int

const (
	FormatTOML Format = iota
	FormatYAML
)

// configNames are tried in order inside each search directory.
var configNames = []string{"config.toml", "config.yaml", "config.yml"}

// Load reads configuration from the standard locations:
//  1. $XDG_CONFIG_HOME/livedash/
//  2. ~/.config/livedash/
//
// Each directory is searched for config.toml, config.yaml then config.yml.
// If no file exists, DefaultConfig() with env overrides is returned.
func Load() (*Config, error) {
	for _, p := range configSearchPaths() {
		if _, err := os.Stat(p); err == nil {
			return LoadFromFile(p)
		}
	}
	cfg := DefaultConfig()
	applyEnvOverrides(cfg)
	return cfg, nil
}

// LoadFromFile reads configuration from path. The extension picks the
// format; anything but .yaml/.yml is TOML. A missing file yields defaults.
func LoadFromFile(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			cfg := DefaultConfig()
			applyEnvOverrides(cfg)
			return cfg, nil
		}
		return nil, err
	}
	defer f.Close()

	cfg, err := LoadFromReader(f, formatFor(path))
	if err != nil {
		return nil, fmt.Errorf("config: %s: %w", path, err)
	}
	return cfg, nil
}

// LoadFromReader decodes configuration over the defaults and applies
// environment overrides.
func LoadFromReader(r io.Reader, format Format) (*Config, error) {
	cfg := DefaultConfig()
	switch format {
	case FormatYAML:
		if err := yaml.NewDecoder(r).Decode(cfg); err != nil && err != io.EOF {
			return nil, err
		}
	default:
		if _, err := toml.NewDecoder(r).Decode(cfg); err != nil {
			return nil, err
		}
	}
	applyEnvOverrides(cfg)
	return cfg, nil
}

// DefaultConfig returns the configuration used when no file exists.
func DefaultConfig() *Config {
	home, _ := os.UserHomeDir()
	return &Config{
		General: GeneralConfig{
			LogLevel:    "info",
			CacheDir:    filepath.Join(xdgCacheHome(home), "livedash"),
			SnapshotTTL: Duration{10 * time.Minute},
		},
		API: APIConfig{
			Timeout: Duration{15 * time.Second},
		},
		Push: PushConfig{
			RedialDelay: Duration{5 * time.Second},
		},
		Preset: "agents",
	}
}

// applyEnvOverrides lets the environment win over file values.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("LIVEDASH_API_BASE"); v != "" {
		cfg.API.BaseURL = v
	}
	if v := os.Getenv("LIVEDASH_PUSH_URL"); v != "" {
		cfg.Push.URL = v
	}
	if v := os.Getenv("LIVEDASH_PRESET"); v != "" {
		cfg.Preset = v
	}
	if v := os.Getenv("LIVEDASH_LOG_LEVEL"); v != "" {
		cfg.General.LogLevel = v
	}
}

func formatFor(path string) Format {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return FormatYAML
	}
	return FormatTOML
}

// configSearchPaths returns the ordered list of config files to try.
func configSearchPaths() []string {
	home, _ := os.UserHomeDir()

	dirs := []string{filepath.Join(xdgConfigHome(home), "livedash")}
	if fallback := filepath.Join(home, ".config", "livedash"); fallback != dirs[0] {
		dirs = append(dirs, fallback)
	}

	var paths []string
	for _, d := range dirs {
		for _, n := range configNames {
			paths = append(paths, filepath.Join(d, n))
		}
	}
	return paths
}

// ConfigDir returns the primary config directory.
func ConfigDir() string {
	home, _ := os.UserHomeDir()
	return filepath.Join(xdgConfigHome(home), "livedash")
}

func xdgConfigHome(home string) string {
	if v := os.Getenv("XDG_CONFIG_HOME"); v != "" {
		return v
	}
	return filepath.Join(home, ".config")
}

func xdgCacheHome(home string) string {
	if v := os.Getenv("XDG_CACHE_HOME"); v != "" {
		return v
	}
	return filepath.Join(home, ".cache")
}
