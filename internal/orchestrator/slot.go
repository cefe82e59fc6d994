// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package orchestrator

import (
	"errors"
	"sync"
	"time"

	"github.com/catatau597/tube-sub000/internal/strategy"
)

var errNotLaunched = errors.New("pipeline not launched")

// streamSlot is filled exactly once with the launched stream or the reason
// there is none. The session's kill function waits on it, so a kill that
// lands before the spawn still reaches the process.
type streamSlot struct {
	once   sync.Once
	ready  chan struct{}
	stream strategy.Stream
	err    error
}

func newStreamSlot() *streamSlot {
	return &streamSlot{ready: make(chan struct{})}
}

func (s *streamSlot) resolve(stream strategy.Stream, err error) {
	s.once.Do(func() {
		s.stream, s.err = stream, err
		close(s.ready)
	})
}

func (s *streamSlot) wait() (strategy.Stream, error) {
	<-s.ready
	return s.stream, s.err
}

// killFunc returns the session kill capability bound to the slot.
func (s *streamSlot) killFunc(timeout time.Duration) func() error {
	return func() error {
		stream, err := s.wait()
		if err != nil || stream == nil {
			return nil
		}
		return stream.Kill(timeout)
	}
}
