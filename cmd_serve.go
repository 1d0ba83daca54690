package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"gitlab.com/tinyland/lab/livedash/pkg/cache"
	"gitlab.com/tinyland/lab/livedash/pkg/config"
	"gitlab.com/tinyland/lab/livedash/pkg/daemon"
	"gitlab.com/tinyland/lab/livedash/pkg/dashboard"
	"gitlab.com/tinyland/lab/livedash/pkg/refresher"
	"gitlab.com/tinyland/lab/livedash/pkg/resources"
)

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Keep views fresh without a terminal",
		Long: `serve mounts the configured views headless. Every update is persisted
as a snapshot in the cache and summarised in health.json, and a control
socket accepts HEALTH, LIST, RETRY, AUTO and TOUCH commands.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context())
		},
	}
}

// server holds the state of one serve process.
type server struct {
	cfg      *config.Config
	store    *cache.Store
	registry *resources.Registry
	manager  *refresher.Manager
	logger   *slog.Logger
	started  time.Time

	healthMu sync.Mutex
}

func runServe(parent context.Context) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	logFile, err := openLogFile(cfg)
	if err != nil {
		return fmt.Errorf("open log file: %w", err)
	}
	defer logFile.Close()
	logger := newLogger(cfg, io.MultiWriter(os.Stderr, logFile))

	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := daemon.AcquirePID(pidPath(cfg)); err != nil {
		return err
	}
	defer func() {
		if err := daemon.ReleasePID(pidPath(cfg)); err != nil {
			logger.Warn("release PID file", "error", err)
		}
	}()

	store, err := openStore(cfg)
	if err != nil {
		return err
	}

	s := &server{
		cfg:      cfg,
		store:    store,
		registry: resources.NewRegistry(),
		manager:  refresher.NewManager(),
		logger:   logger,
		started:  time.Now(),
	}
	return s.run(ctx)
}

func (s *server) run(ctx context.Context) error {
	views, err := dashboard.Build(s.cfg, dashboard.Deps{
		Store:    s.store,
		Registry: s.registry,
		Logger:   s.logger,
		UseMocks: globalOpts.UseMocks,
		OnUpdate: s.onUpdate,
	})
	if err != nil {
		return err
	}

	s.logger.Info("starting livedash serve",
		"views", len(views),
		"preset", s.cfg.Preset,
		"cache_dir", s.cfg.General.CacheDir,
	)
	if err := dashboard.MountAll(ctx, s.manager, views, s.logger); err != nil {
		return err
	}
	s.writeHealth()

	ipc := daemon.NewIPCServer(socketPath(s.cfg), daemon.NewController(ctx, s.manager, s.health),
		daemon.WithIPCLogger(s.logger))
	if err := ipc.Start(); err != nil {
		s.logger.Warn("control socket unavailable", "error", err)
	} else {
		defer ipc.Stop()
	}

	if s.cfg.Push.URL != "" {
		go runPush(ctx, s.cfg, s.store, s.manager, s.logger)
	}

	<-ctx.Done()
	s.logger.Info("received shutdown signal")

	stopCtx, cancel := context.WithTimeout(context.Background(), stopTimeout)
	defer cancel()
	if err := s.manager.StopAll(stopCtx); err != nil {
		s.logger.Warn("views did not stop in time", "error", err)
	}
	s.writeHealth()
	return nil
}

// onUpdate persists every applied snapshot and refreshes health.json.
func (s *server) onUpdate(snap refresher.Snapshot) {
	if err := daemon.SaveSnapshot(s.store, snap, s.cfg.General.SnapshotTTL.Duration); err != nil {
		s.logger.Warn("save snapshot", "view", snap.View, "error", err)
	}
	s.writeHealth()
}

func (s *server) health() *daemon.HealthStatus {
	return daemon.NewHealthStatus(s.started, time.Now(), s.manager.Snapshots(), s.registry.AllStatus())
}

// writeHealth serialises writers; views update concurrently.
func (s *server) writeHealth() {
	s.healthMu.Lock()
	defer s.healthMu.Unlock()
	if err := daemon.WriteHealthFile(healthPath(s.cfg), s.health()); err != nil {
		s.logger.Warn("write health file", "error", err)
	}
}
