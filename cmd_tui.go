package main

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	zone "github.com/lrstanley/bubblezone"
	"github.com/spf13/cobra"

	"gitlab.com/tinyland/lab/livedash/pkg/app"
	"gitlab.com/tinyland/lab/livedash/pkg/cache"
	"gitlab.com/tinyland/lab/livedash/pkg/config"
	"gitlab.com/tinyland/lab/livedash/pkg/daemon"
	"gitlab.com/tinyland/lab/livedash/pkg/dashboard"
	"gitlab.com/tinyland/lab/livedash/pkg/push"
	"gitlab.com/tinyland/lab/livedash/pkg/refresher"
	"gitlab.com/tinyland/lab/livedash/pkg/resources"
	"gitlab.com/tinyland/lab/livedash/pkg/widgets"
)

// stopTimeout bounds how long shutdown waits for in-flight ticks.
const stopTimeout = 5 * time.Second

func newTUICmd() *cobra.Command {
	return &cobra.Command{
		Use:   "tui",
		Short: "Launch the interactive dashboard",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTUI(cmd)
		},
	}
}

func runTUI(cmd *cobra.Command) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	// The alternate screen owns the terminal, so logs only go to the file.
	logFile, err := openLogFile(cfg)
	if err != nil {
		return fmt.Errorf("open log file: %w", err)
	}
	defer logFile.Close()
	logger := newLogger(cfg, logFile)

	store, err := openStore(cfg)
	if err != nil {
		logger.Warn("cache unavailable, starting without snapshots", "error", err)
		store = nil
	}

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	bridge := &app.Bridge{}
	views, err := dashboard.Build(cfg, dashboard.Deps{
		Store:    store,
		Registry: resources.NewRegistry(),
		Logger:   logger,
		UseMocks: globalOpts.UseMocks,
		OnUpdate: bridge.OnUpdate,
	})
	if err != nil {
		return err
	}

	zones := zone.New()
	mgr := refresher.NewManager()
	model := app.NewAppModel(ctx, app.Config{
		Title:        "livedash",
		TickInterval: time.Second,
		Manager:      mgr,
		Views:        views,
		Zones:        zones,
	}, viewWidgets(cfg, views, store, zones)...)

	p := tea.NewProgram(model, tea.WithAltScreen(), tea.WithMouseCellMotion(), tea.WithContext(ctx))
	bridge.Attach(p)

	if cfg.Push.URL != "" {
		go runPush(ctx, cfg, store, mgr, logger)
	}

	logger.Info("tui started", "views", len(views), "preset", cfg.Preset)
	_, runErr := p.Run()
	interrupted := ctx.Err() != nil
	cancel()

	stopCtx, stopCancel := context.WithTimeout(context.Background(), stopTimeout)
	defer stopCancel()
	if err := mgr.StopAll(stopCtx); err != nil {
		logger.Warn("views did not stop in time", "error", err)
	}
	if runErr != nil && !interrupted {
		return fmt.Errorf("tui: %w", runErr)
	}
	return nil
}

// viewWidgets builds one widget per view, seeded with the snapshot a
// previous serve persisted.
func viewWidgets(cfg *config.Config, views []*refresher.View, store *cache.Store, zones *zone.Manager) []app.Widget {
	titles := make(map[string]string)
	for _, vc := range cfg.ResolvedViews() {
		titles[vc.Name] = vc.Title
	}

	out := make([]app.Widget, 0, len(views))
	for _, v := range views {
		opts := []widgets.ViewOption{widgets.WithTitle(titles[v.Name()]), widgets.WithZones(zones)}
		if store != nil {
			if rec, ok := daemon.LoadSnapshot(store, v.Name()); ok {
				opts = append(opts, widgets.WithCachedData(rec.Data, rec.LastSuccess))
			}
		}
		out = append(out, widgets.NewViewWidget(v, opts...))
	}
	return out
}

// runPush keeps the push listener connected until ctx ends.
func runPush(ctx context.Context, cfg *config.Config, store *cache.Store, target push.Toucher, logger *slog.Logger) {
	l := push.New(cfg.Push.URL, target,
		push.WithRedialDelay(cfg.Push.RedialDelay.Duration),
		push.WithCredentials(dashboard.Credentials(cfg, store)),
		push.WithLogger(logger),
	)
	if err := l.Run(ctx); err != nil && ctx.Err() == nil {
		logger.Error("push listener stopped", "error", err)
	}
}
