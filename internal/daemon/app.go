// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package daemon

import (
	"context"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

// Watcher is a best-effort background loop that stops when ctx ends.
type Watcher struct {
	Name string
	Run  func(ctx context.Context) error
}

// App owns the long-lived runtime lifecycle (snapshot watchers) and delegates
// server management to Manager.
type App struct {
	logger   zerolog.Logger
	manager  Manager
	watchers []Watcher
}

// NewApp creates a new App orchestrator.
func NewApp(logger zerolog.Logger, manager Manager, watchers ...Watcher) *App {
	return &App{
		logger:   logger,
		manager:  manager,
		watchers: watchers,
	}
}

// Manager returns the server manager.
func (a *App) Manager() Manager { return a.manager }

// Run starts all owned background subsystems and blocks until ctx is cancelled or a fatal error occurs.
func (a *App) Run(ctx context.Context) error {
	if a.manager == nil {
		return ErrMissingManager
	}

	g, gctx := errgroup.WithContext(ctx)

	// Watchers are best-effort: without one the readers fall back to reading
	// the file on every lookup.
	for _, w := range a.watchers {
		g.Go(func() error {
			if err := w.Run(gctx); err != nil {
				a.logger.Warn().
					Err(err).
					Str("event", "watcher.failed").
					Str("watcher", w.Name).
					Msg("background watcher stopped")
			}
			return nil
		})
	}

	g.Go(func() error {
		return a.manager.Start(gctx)
	})

	return g.Wait()
}
