// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package fanout shares one upstream byte stream per media key among any
// number of viewers.
package fanout

import (
	"context"
	"io"
	"sort"
	"sync"
	"time"

	xglog "github.com/catatau597/tube-sub000/internal/log"
	"github.com/catatau597/tube-sub000/internal/metrics"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

// DefaultIdleTimeout is the watchdog interval: a session that broadcasts
// nothing for this long is torn down even with viewers attached.
const DefaultIdleTimeout = 30 * time.Second

// Kill reasons, used for logs and metrics.
const (
	ReasonLastViewer   = "last_viewer"
	ReasonNoViewers    = "no_viewers"
	ReasonWatchdog     = "watchdog"
	ReasonUpstreamEOF  = "upstream_eof"
	ReasonShutdown     = "shutdown"
	ReasonExplicit     = "explicit"
	ReasonLaunchFailed = "launch_failed"
)

// Sink receives broadcast chunks for one viewer. Write must not block on the
// viewer's connection; a Write error drops the sink from its session.
// The chunk passed to Write is never modified afterwards and may be retained.
type Sink interface {
	io.Writer
	Close() error
}

// KillFunc terminates whatever produces a session's bytes.
type KillFunc func() error

// Session is the live record of one media key's upstream and its viewers.
type Session struct {
	key       string
	killFn    KillFunc
	createdAt time.Time

	mu           sync.Mutex
	clients      map[Sink]struct{}
	watchdog     *time.Timer
	lastActivity time.Time
	bytesSent    int64
	dead         bool

	started  chan struct{}
	startErr error
	idle     time.Duration
	once     sync.Once
}

// Key returns the media key of the session.
func (s *Session) Key() string { return s.key }

// MarkStarted records the outcome of starting the session's upstream. Only the
// first call counts. A successful start counts as activity for the watchdog.
func (s *Session) MarkStarted(err error) {
	s.once.Do(func() {
		s.mu.Lock()
		s.startErr = err
		if err == nil && !s.dead {
			s.touch(s.idle)
		}
		s.mu.Unlock()
		close(s.started)
	})
}

// Started is closed once MarkStarted was called.
func (s *Session) Started() <-chan struct{} { return s.started }

// StartErr returns the error passed to MarkStarted. It is only meaningful
// after Started is closed.
func (s *Session) StartErr() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.startErr
}

// Info is a point-in-time view of a session.
type Info struct {
	Key          string    `json:"media_key"`
	Viewers      int       `json:"viewers"`
	CreatedAt    time.Time `json:"created_at"`
	LastActivity time.Time `json:"last_activity"`
	BytesSent    int64     `json:"bytes_sent"`
}

// Registry holds at most one Session per media key.
// Lock order: Registry.mu before Session.mu.
type Registry struct {
	idle   time.Duration
	logger zerolog.Logger

	mu       sync.Mutex
	sessions map[string]*Session
	closed   bool
}

// NewRegistry creates an empty registry. A non-positive idle uses DefaultIdleTimeout.
func NewRegistry(idle time.Duration) *Registry {
	if idle <= 0 {
		idle = DefaultIdleTimeout
	}
	return &Registry{
		idle:     idle,
		logger:   xglog.WithComponent("fanout"),
		sessions: make(map[string]*Session),
	}
}

// Create registers a session for key with an empty client set and arms its
// watchdog. If a session already exists it is left untouched and Create
// returns it with false. After Shutdown, Create returns nil and false.
func (r *Registry) Create(key string, killFn KillFunc) (*Session, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return nil, false
	}
	if existing, ok := r.sessions[key]; ok {
		return existing, false
	}

	now := time.Now()
	s := &Session{
		key:          key,
		killFn:       killFn,
		createdAt:    now,
		clients:      make(map[Sink]struct{}),
		lastActivity: now,
		started:      make(chan struct{}),
		idle:         r.idle,
	}
	s.watchdog = time.AfterFunc(r.idle, func() { r.expire(s) })
	r.sessions[key] = s
	metrics.ActiveSessions.Inc()

	r.logger.Debug().
		Str(xglog.FieldEvent, "session.created").
		Str(xglog.FieldMediaKey, key).
		Msg("session registered")
	return s, true
}

// Get returns the current session for key.
func (r *Registry) Get(key string) (*Session, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[key]
	return s, ok
}

// Has reports whether a session exists for key.
func (r *Registry) Has(key string) bool {
	_, ok := r.Get(key)
	return ok
}

// Len returns the number of sessions.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}

// Closed reports whether Shutdown was called.
func (r *Registry) Closed() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.closed
}

// AddClient subscribes sink to the session for key. It returns false when no
// session exists, which callers treat as the session having vanished.
func (r *Registry) AddClient(key string, sink Sink) bool {
	s, ok := r.Get(key)
	if !ok {
		return false
	}
	return r.AddClientTo(s, sink)
}

// AddClientTo subscribes sink to s. It returns false once s was killed.
func (r *Registry) AddClientTo(s *Session, sink Sink) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.dead {
		return false
	}
	if _, dup := s.clients[sink]; !dup {
		s.clients[sink] = struct{}{}
		metrics.ActiveViewers.Inc()
	}
	s.touch(r.idle)
	return true
}

// RemoveClient unsubscribes sink. Emptying the client set kills the session.
func (r *Registry) RemoveClient(key string, sink Sink) {
	s, ok := r.Get(key)
	if !ok {
		return
	}

	s.mu.Lock()
	if _, present := s.clients[sink]; !present || s.dead {
		s.mu.Unlock()
		return
	}
	delete(s.clients, sink)
	metrics.ActiveViewers.Dec()
	empty := len(s.clients) == 0
	s.mu.Unlock()

	if empty {
		r.KillSession(s, ReasonLastViewer)
	}
}

// Broadcast fans chunk out to every viewer of the session for key.
func (r *Registry) Broadcast(key string, chunk []byte) {
	if s, ok := r.Get(key); ok {
		r.BroadcastTo(s, chunk)
	}
}

// BroadcastTo fans chunk out to the viewers of s, provided s is still live.
// It resets the watchdog. Viewers whose write fails are dropped silently;
// if none remain the session is killed.
func (r *Registry) BroadcastTo(s *Session, chunk []byte) {
	data := make([]byte, len(chunk))
	copy(data, chunk)

	s.mu.Lock()
	if s.dead {
		s.mu.Unlock()
		return
	}
	s.touch(r.idle)
	s.bytesSent += int64(len(data))
	var dropped []Sink
	for sink := range s.clients {
		if _, err := sink.Write(data); err != nil {
			delete(s.clients, sink)
			dropped = append(dropped, sink)
		}
	}
	empty := len(s.clients) == 0
	s.mu.Unlock()

	metrics.BroadcastBytesTotal.Add(float64(len(data)))
	for _, sink := range dropped {
		_ = sink.Close()
		metrics.ActiveViewers.Dec()
		metrics.ViewerDroppedTotal.Inc()
	}

	if empty {
		r.KillSession(s, ReasonNoViewers)
	}
}

// Kill tears down the session for key, if any.
func (r *Registry) Kill(key string) {
	if s, ok := r.Get(key); ok {
		r.KillSession(s, ReasonExplicit)
	}
}

// KillSession tears down s exactly once: the watchdog is cancelled, every
// remaining sink is closed, the session leaves the registry, and only then is
// the kill function invoked. Kill function errors are logged, not returned.
// It is a no-op when s is no longer the registered session for its key.
func (r *Registry) KillSession(s *Session, reason string) {
	r.mu.Lock()
	if cur, ok := r.sessions[s.key]; !ok || cur != s {
		r.mu.Unlock()
		return
	}
	delete(r.sessions, s.key)

	s.mu.Lock()
	s.dead = true
	s.watchdog.Stop()
	clients := s.clients
	s.clients = nil
	s.mu.Unlock()
	r.mu.Unlock()

	for sink := range clients {
		_ = sink.Close()
	}
	metrics.ActiveViewers.Sub(float64(len(clients)))
	metrics.ActiveSessions.Dec()
	metrics.IncSessionKill(reason)

	logger := r.logger.With().
		Str(xglog.FieldMediaKey, s.key).
		Str(xglog.FieldReason, reason).
		Logger()

	if reason == ReasonWatchdog {
		logger.Info().
			Str(xglog.FieldEvent, "session.watchdog").
			Dur("idle", r.idle).
			Int(xglog.FieldViewers, len(clients)).
			Msg("session idle, tearing down")
	} else {
		logger.Debug().
			Str(xglog.FieldEvent, "session.killed").
			Int(xglog.FieldViewers, len(clients)).
			Msg("session torn down")
	}

	if s.killFn == nil {
		return
	}
	if err := s.killFn(); err != nil {
		logger.Warn().Err(err).Str(xglog.FieldEvent, "session.kill_failed").Msg("failed to terminate session upstream")
	}
}

// Snapshot lists the current sessions ordered by media key.
func (r *Registry) Snapshot() []Info {
	r.mu.Lock()
	sessions := make([]*Session, 0, len(r.sessions))
	for _, s := range r.sessions {
		sessions = append(sessions, s)
	}
	r.mu.Unlock()

	out := make([]Info, 0, len(sessions))
	for _, s := range sessions {
		s.mu.Lock()
		out = append(out, Info{
			Key:          s.key,
			Viewers:      len(s.clients),
			CreatedAt:    s.createdAt,
			LastActivity: s.lastActivity,
			BytesSent:    s.bytesSent,
		})
		s.mu.Unlock()
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out
}

// Shutdown closes the registry to new sessions, kills every session
// concurrently and waits for the kill functions to return or ctx to end.
func (r *Registry) Shutdown(ctx context.Context) error {
	r.mu.Lock()
	r.closed = true
	sessions := make([]*Session, 0, len(r.sessions))
	for _, s := range r.sessions {
		sessions = append(sessions, s)
	}
	r.mu.Unlock()

	var g errgroup.Group
	for _, s := range sessions {
		g.Go(func() error {
			r.KillSession(s, ReasonShutdown)
			return nil
		})
	}

	done := make(chan struct{})
	go func() {
		_ = g.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (r *Registry) expire(s *Session) {
	r.KillSession(s, ReasonWatchdog)
}

// touch must be called with s.mu held.
func (s *Session) touch(idle time.Duration) {
	s.lastActivity = time.Now()
	s.watchdog.Reset(idle)
}
