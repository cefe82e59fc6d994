// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package fanout

import (
	"context"
	"errors"
	"io"
	"sync"
)

var (
	// ErrSinkClosed is returned by Write after the viewer was closed.
	ErrSinkClosed = errors.New("viewer closed")
	// ErrViewerTooSlow is returned by Write when the viewer's queue is full.
	ErrViewerTooSlow = errors.New("viewer queue full")
)

// Viewer is a Sink that queues chunks for a single consumer goroutine, so a
// slow connection never blocks the broadcaster. With a positive limit the
// queue is capped at that many chunks and overflowing drops the viewer.
type Viewer struct {
	id    string
	limit int

	mu     sync.Mutex
	queue  [][]byte
	closed bool

	notify chan struct{}
	done   chan struct{}
}

// NewViewer creates a viewer. limit <= 0 means unbounded.
func NewViewer(id string, limit int) *Viewer {
	return &Viewer{
		id:     id,
		limit:  limit,
		notify: make(chan struct{}, 1),
		done:   make(chan struct{}),
	}
}

// ID returns the viewer identifier.
func (v *Viewer) ID() string { return v.id }

// Write enqueues p. It never blocks.
func (v *Viewer) Write(p []byte) (int, error) {
	v.mu.Lock()
	if v.closed {
		v.mu.Unlock()
		return 0, ErrSinkClosed
	}
	if v.limit > 0 && len(v.queue) >= v.limit {
		v.mu.Unlock()
		return 0, ErrViewerTooSlow
	}
	v.queue = append(v.queue, p)
	v.mu.Unlock()

	select {
	case v.notify <- struct{}{}:
	default:
	}
	return len(p), nil
}

// Close marks the viewer finished. Chunks already queued are still delivered
// by Pump. Close is idempotent.
func (v *Viewer) Close() error {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.closed {
		return nil
	}
	v.closed = true
	close(v.done)
	return nil
}

// Done is closed once the viewer is closed.
func (v *Viewer) Done() <-chan struct{} { return v.done }

// Pending returns the number of queued chunks.
func (v *Viewer) Pending() int {
	v.mu.Lock()
	defer v.mu.Unlock()
	return len(v.queue)
}

// Pump copies queued chunks to dst until the viewer is closed and drained, ctx
// ends, or a write to dst fails. flush, if set, runs after each batch.
// A failed write closes the viewer.
func (v *Viewer) Pump(ctx context.Context, dst io.Writer, flush func()) error {
	for {
		v.mu.Lock()
		batch := v.queue
		v.queue = nil
		closed := v.closed
		v.mu.Unlock()

		for _, chunk := range batch {
			if _, err := dst.Write(chunk); err != nil {
				_ = v.Close()
				return err
			}
		}
		if len(batch) > 0 {
			if flush != nil {
				flush()
			}
			continue
		}
		if closed {
			return nil
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-v.notify:
		case <-v.done:
		}
	}
}
