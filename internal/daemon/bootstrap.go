// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package daemon wires the stream proxy together and runs it.
package daemon

import (
	"context"
	"fmt"
	"time"

	"github.com/catatau597/tube-sub000/internal/api"
	"github.com/catatau597/tube-sub000/internal/config"
	"github.com/catatau597/tube-sub000/internal/fanout"
	xglog "github.com/catatau597/tube-sub000/internal/log"
	"github.com/catatau597/tube-sub000/internal/orchestrator"
	"github.com/catatau597/tube-sub000/internal/persistence/sqlite"
	"github.com/catatau597/tube-sub000/internal/profile"
	"github.com/catatau597/tube-sub000/internal/snapshot"
	"github.com/catatau597/tube-sub000/internal/strategy"
	"github.com/catatau597/tube-sub000/internal/telemetry"
)

// Bootstrap builds the App for cfg. Failure to open the profile catalogue is
// not fatal: launches then use the default profile.
func Bootstrap(ctx context.Context, cfg config.AppConfig, version string) (*App, error) {
	logger := xglog.WithComponent("daemon")

	tracing, err := telemetry.NewProvider(ctx, telemetry.Config{
		Enabled:        cfg.Tracing.Enabled,
		ServiceName:    "tube",
		ServiceVersion: version,
		ExporterType:   cfg.Tracing.Exporter,
		Endpoint:       cfg.Tracing.Endpoint,
		SamplingRate:   cfg.Tracing.SamplingRate,
	})
	if err != nil {
		return nil, fmt.Errorf("init tracing: %w", err)
	}

	var store profile.Store
	var closeStore func() error
	if cfg.CatalogPath != "" {
		s, err := profile.OpenStore(ctx, cfg.CatalogPath, sqlite.ReaderConfig())
		if err != nil {
			logger.Warn().
				Err(err).
				Str("event", "profile.store_unavailable").
				Str("path", cfg.CatalogPath).
				Msg("tool profile catalogue unavailable, using defaults")
		} else {
			store = s
			closeStore = s.Close
		}
	}
	resolver := profile.NewResolver(store)

	launcher := strategy.NewLauncher(strategy.Config{
		Tools: strategy.Tools{
			FFmpeg:     cfg.Tools.FFmpeg,
			Streamlink: cfg.Tools.Streamlink,
			YtDlp:      cfg.Tools.YtDlp,
		},
		Placeholder:    strategy.PlaceholderOptions{FontFile: cfg.Tools.FontFile},
		Format:         cfg.Tools.Format,
		ProbeTimeout:   cfg.Timeouts.Probe,
		ResolveTimeout: cfg.Timeouts.Resolve,
		KillTimeout:    cfg.Timeouts.Kill,
	}, resolver)

	statusReader := snapshot.NewStatusReader(cfg.Snapshots.StatusPath)
	overlayReader := snapshot.NewOverlayReader(cfg.Snapshots.OverlayPath)

	registry := fanout.NewRegistry(cfg.Timeouts.Watchdog)
	orch := orchestrator.New(orchestrator.Config{
		PlaceholderURL: cfg.PlaceholderURL,
		KillTimeout:    cfg.Timeouts.Kill,
		ChunkSize:      cfg.Stream.ChunkSize,
		LaunchRate:     cfg.Stream.LaunchRate,
		LaunchBurst:    cfg.Stream.LaunchBurst,
	}, registry, statusReader, overlayReader, launcher)

	srv := api.New(api.Config{
		ViewerBuffer:    cfg.Stream.ViewerBuffer,
		StreamRateLimit: cfg.Stream.RateLimit,
		EnableMetrics:   cfg.Metrics.Enabled,
	}, orch)

	mgr, err := NewManager(ServerConfig{
		ListenAddr:        cfg.ListenAddr,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       120 * time.Second,
		ShutdownTimeout:   cfg.Timeouts.Shutdown,
	}, Deps{
		Logger:     logger,
		APIHandler: srv.Routes(),
	})
	if err != nil {
		if closeStore != nil {
			_ = closeStore()
		}
		_ = tracing.Shutdown(ctx)
		return nil, err
	}

	// LIFO: sessions are killed first, spans are flushed last.
	mgr.RegisterShutdownHook("telemetry", tracing.Shutdown)
	if closeStore != nil {
		mgr.RegisterShutdownHook("profile_store", func(context.Context) error {
			return closeStore()
		})
	}
	mgr.RegisterShutdownHook("sessions", orch.Shutdown)

	logger.Info().
		Str("event", "daemon.bootstrapped").
		Str("listen", cfg.ListenAddr).
		Str("status_snapshot", cfg.Snapshots.StatusPath).
		Str("overlay_snapshot", cfg.Snapshots.OverlayPath).
		Bool("profiles", store != nil).
		Bool("tracing", tracing.Enabled()).
		Msg("stream proxy wired")

	return NewApp(logger, mgr,
		Watcher{Name: "status_snapshot", Run: statusReader.Watch},
		Watcher{Name: "overlay_snapshot", Run: overlayReader.Watch},
	), nil
}
