// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package snapshot

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"

	xglog "github.com/catatau597/tube-sub000/internal/log"
	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"
)

// cachedFile holds the parsed content of a JSON file written by another
// process. The cache is only used while a watcher is running; otherwise every
// read goes to disk.
type cachedFile[T any] struct {
	path   string
	parse  func([]byte) (T, error)
	logger zerolog.Logger

	watching atomic.Bool

	mu    sync.Mutex
	gen   uint64
	valid bool
	value T
}

func newCachedFile[T any](path, component string, parse func([]byte) (T, error)) *cachedFile[T] {
	if path != "" {
		path = filepath.Clean(path)
	}
	return &cachedFile[T]{
		path:   path,
		parse:  parse,
		logger: xglog.WithComponent(component),
	}
}

func (f *cachedFile[T]) get() (T, error) {
	var zero T
	if f.path == "" {
		return zero, nil
	}

	f.mu.Lock()
	if f.valid && f.watching.Load() {
		v := f.value
		f.mu.Unlock()
		return v, nil
	}
	gen := f.gen
	f.mu.Unlock()

	data, err := os.ReadFile(f.path)
	if errors.Is(err, fs.ErrNotExist) {
		return zero, nil
	}
	if err != nil {
		return zero, fmt.Errorf("read %s: %w", f.path, err)
	}
	v, err := f.parse(data)
	if err != nil {
		return zero, fmt.Errorf("parse %s: %w", f.path, err)
	}

	f.mu.Lock()
	if f.gen == gen {
		f.value = v
		f.valid = true
	}
	f.mu.Unlock()
	return v, nil
}

func (f *cachedFile[T]) invalidate() {
	f.mu.Lock()
	f.gen++
	f.valid = false
	f.mu.Unlock()
}

// watch invalidates the cache whenever the file changes, until ctx ends.
// The parent directory is watched so atomic rename-into-place is observed.
func (f *cachedFile[T]) watch(ctx context.Context) error {
	if f.path == "" {
		return nil
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer func() { _ = watcher.Close() }()

	if err := watcher.Add(filepath.Dir(f.path)); err != nil {
		return fmt.Errorf("watch %s: %w", filepath.Dir(f.path), err)
	}

	f.invalidate()
	f.watching.Store(true)
	defer f.watching.Store(false)

	f.logger.Info().
		Str("event", "snapshot.watch_started").
		Str("path", f.path).
		Msg("watching snapshot file")

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != f.path {
				continue
			}
			f.invalidate()
			f.logger.Debug().
				Str("event", "snapshot.changed").
				Str("op", event.Op.String()).
				Msg("snapshot file changed")
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			f.invalidate()
			f.logger.Error().
				Err(err).
				Str("event", "snapshot.watcher_error").
				Msg("snapshot watcher error")
		}
	}
}
