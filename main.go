// livedash is a terminal dashboard whose views stay fresh on their own.
//
// Each configured view polls a set of resources (REST endpoints, host
// metrics, a Kubernetes cluster, the local tailnet) on its own interval,
// shows the last good data next to any error, and offers a Retry.
//
// Usage:
//
//	livedash [command] [flags]
//
// Commands:
//
//	tui      Launch the interactive dashboard (default)
//	serve    Keep views fresh headless, persisting snapshots and health
//	status   Print the state recorded by a running or past serve
//	ctl      Send a control command to a running serve
//	token    Manage the stored API token
//	version  Print version and exit
//
// Global flags:
//
//	--config string  Path to configuration file (default: ~/.config/livedash/config.toml)
//	--verbose        Enable verbose logging
//	--use-mocks      Replace every resource with demo data
package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"gitlab.com/tinyland/lab/livedash/pkg/cache"
	"gitlab.com/tinyland/lab/livedash/pkg/config"
)

var (
	version = "0.1.0"
	commit  = "dev"
	date    = "unknown"
)

// globalOptions holds flags shared by every command.
type globalOptions struct {
	ConfigPath string
	Verbose    bool
	UseMocks   bool
}

var globalOpts = &globalOptions{}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "livedash",
		Short: "Self-refreshing terminal dashboard",
		Long: `livedash shows views that re-fetch their resources on a timer.

Each view keeps its last good data when a refresh fails, shows the error
with a Retry control, and can have auto-refresh switched off and on.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTUI(cmd)
		},
	}

	root.PersistentFlags().StringVar(&globalOpts.ConfigPath, "config", "", "Path to configuration file")
	root.PersistentFlags().BoolVar(&globalOpts.Verbose, "verbose", false, "Enable verbose logging")
	root.PersistentFlags().BoolVar(&globalOpts.UseMocks, "use-mocks", false, "Use demo data instead of real resources")

	root.AddCommand(newTUICmd())
	root.AddCommand(newServeCmd())
	root.AddCommand(newStatusCmd())
	root.AddCommand(newCtlCmd())
	root.AddCommand(newTokenCmd())
	root.AddCommand(newVersionCmd())
	return root
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "livedash: %v\n", err)
		os.Exit(1)
	}
}

// loadConfig reads --config when given, otherwise searches the default
// locations.
func loadConfig() (*config.Config, error) {
	var (
		cfg *config.Config
		err error
	)
	if globalOpts.ConfigPath != "" {
		cfg, err = config.LoadFromFile(globalOpts.ConfigPath)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	return cfg, nil
}

// newLogger builds the process logger. --verbose wins over the configured
// level.
func newLogger(cfg *config.Config, w io.Writer) *slog.Logger {
	level := slog.LevelInfo
	switch cfg.General.LogLevel {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}
	if globalOpts.Verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}

// openLogFile opens livedash.log in the cache dir for appending.
func openLogFile(cfg *config.Config) (*os.File, error) {
	if err := os.MkdirAll(cfg.General.CacheDir, 0o755); err != nil {
		return nil, fmt.Errorf("create cache dir: %w", err)
	}
	return os.OpenFile(logPath(cfg), os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
}

func openStore(cfg *config.Config) (*cache.Store, error) {
	return cache.NewStore(cache.StoreConfig{Dir: filepath.Join(cfg.General.CacheDir, "store")})
}

// Runtime file locations, all under the cache dir.

func pidPath(cfg *config.Config) string    { return filepath.Join(cfg.General.CacheDir, "livedash.pid") }
func healthPath(cfg *config.Config) string { return filepath.Join(cfg.General.CacheDir, "health.json") }
func socketPath(cfg *config.Config) string { return filepath.Join(cfg.General.CacheDir, "livedash.sock") }
func logPath(cfg *config.Config) string    { return filepath.Join(cfg.General.CacheDir, "livedash.log") }
