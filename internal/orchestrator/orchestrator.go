// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package orchestrator turns a viewer request for a media key into a
// subscription on a shared session, starting the upstream pipeline at most
// once per key.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/catatau597/tube-sub000/internal/fanout"
	xglog "github.com/catatau597/tube-sub000/internal/log"
	"github.com/catatau597/tube-sub000/internal/metrics"
	"github.com/catatau597/tube-sub000/internal/proc"
	"github.com/catatau597/tube-sub000/internal/snapshot"
	"github.com/catatau597/tube-sub000/internal/strategy"
	"github.com/catatau597/tube-sub000/internal/telemetry"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/singleflight"
	"golang.org/x/time/rate"
)

var (
	// ErrNotFound means nothing can be served for the key.
	ErrNotFound = errors.New("media not found")
	// ErrTransient means the session vanished before the viewer subscribed.
	ErrTransient = errors.New("session unavailable, retry")
	// ErrUpstream means the pipeline could not be started.
	ErrUpstream = errors.New("upstream failure")

	errShuttingDown = errors.New("shutting down")
)

const defaultChunkSize = 64 * 1024

// RecordSource reads the status snapshot.
type RecordSource interface {
	Lookup(ctx context.Context, key string) (snapshot.Record, bool, error)
}

// OverlaySource reads the overlay snapshot.
type OverlaySource interface {
	Overlay(ctx context.Context, key string) (snapshot.Overlay, bool, error)
}

// Launcher starts pipelines and probes live streams.
type Launcher interface {
	Launch(ctx context.Context, plan strategy.Plan) (strategy.Stream, error)
	Playable(ctx context.Context, watchURL string) bool
}

// Sink is a viewer output that reports when the registry closed it.
type Sink interface {
	fanout.Sink
	Done() <-chan struct{}
}

// Config holds orchestrator settings.
type Config struct {
	// PlaceholderURL is the global still image; empty disables it.
	PlaceholderURL string
	KillTimeout    time.Duration
	// ChunkSize is the read size of the stdout pump.
	ChunkSize int
	// LaunchRate paces pipeline launches per second across all keys; 0 disables pacing.
	LaunchRate  float64
	LaunchBurst int
}

// Orchestrator owns cold starts for every media key.
type Orchestrator struct {
	cfg      Config
	registry *fanout.Registry
	records  RecordSource
	overlays OverlaySource
	launcher Launcher

	pending singleflight.Group
	limiter *rate.Limiter
	logger  zerolog.Logger
	tracer  trace.Tracer

	// life is cancelled by Shutdown to abort probes and URL resolution.
	life context.Context
	stop context.CancelFunc
}

// New wires an orchestrator. overlays may be nil.
func New(cfg Config, registry *fanout.Registry, records RecordSource, overlays OverlaySource, launcher Launcher) *Orchestrator {
	if cfg.KillTimeout <= 0 {
		cfg.KillTimeout = proc.DefaultKillTimeout
	}
	if cfg.ChunkSize <= 0 {
		cfg.ChunkSize = defaultChunkSize
	}
	var limiter *rate.Limiter
	if cfg.LaunchRate > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.LaunchRate), max(cfg.LaunchBurst, 1))
	}
	life, stop := context.WithCancel(context.Background())
	return &Orchestrator{
		cfg:      cfg,
		limiter:  limiter,
		life:     life,
		stop:     stop,
		registry: registry,
		records:  records,
		overlays: overlays,
		launcher: launcher,
		logger:   xglog.WithComponent("orchestrator"),
		tracer:   telemetry.Tracer("github.com/catatau597/tube-sub000/internal/orchestrator"),
	}
}

// ServeVideo subscribes sink to the session for key, starting it if needed,
// and blocks until ctx ends or the registry closes the sink. Errors are only
// returned before the subscription exists and wrap ErrNotFound, ErrTransient
// or ErrUpstream. A viewer that leaves while the session is starting gets nil.
func (o *Orchestrator) ServeVideo(ctx context.Context, key string, sink Sink) error {
	if err := o.subscribe(ctx, key, sink); err != nil {
		if ctx.Err() != nil && errors.Is(err, ctx.Err()) {
			return nil
		}
		return err
	}

	select {
	case <-ctx.Done():
	case <-sink.Done():
	}
	o.registry.RemoveClient(key, sink)
	return nil
}

func (o *Orchestrator) subscribe(ctx context.Context, key string, sink Sink) error {
	if joined, err := o.join(ctx, key, sink); joined {
		return err
	}

	var leader atomic.Bool
	ch := o.pending.DoChan(key, func() (any, error) {
		leader.Store(true)
		return nil, o.coldStart(context.WithoutCancel(ctx), key, sink)
	})

	var res singleflight.Result
	select {
	case res = <-ch:
	case <-ctx.Done():
		if !leader.Load() {
			return ctx.Err()
		}
		// The leader's sink is owned by the cold start until it returns.
		res = <-ch
	}
	if leader.Load() || res.Err != nil {
		return res.Err
	}
	if joined, err := o.join(ctx, key, sink); joined {
		return err
	}
	metrics.IncColdStart("transient")
	return fmt.Errorf("%w: %s ended before subscribe", ErrTransient, key)
}

// join subscribes sink to the live session for key and waits until its
// upstream has started, returning the start error if the launch failed.
// joined is false when there is no live session to subscribe to.
func (o *Orchestrator) join(ctx context.Context, key string, sink Sink) (joined bool, err error) {
	s, ok := o.registry.Get(key)
	if !ok || !o.registry.AddClientTo(s, sink) {
		return false, nil
	}
	select {
	case <-s.Started():
		return true, s.StartErr()
	case <-ctx.Done():
		return true, nil
	}
}

// coldStart registers the session with a deferred kill, subscribes the
// requester and only then launches the pipeline. Every exit after the session
// exists publishes the outcome through MarkStarted.
func (o *Orchestrator) coldStart(ctx context.Context, key string, sink Sink) error {
	started := time.Now()
	ctx, span := o.tracer.Start(ctx, "orchestrator.cold_start",
		trace.WithAttributes(telemetry.SessionAttributes(key, "")...))
	defer span.End()

	logger := xglog.WithContext(ctx, o.logger).With().Str(xglog.FieldMediaKey, key).Logger()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	defer context.AfterFunc(o.life, cancel)()

	if o.registry.Closed() {
		metrics.IncColdStart("transient")
		span.SetStatus(codes.Error, "shutting down")
		return fmt.Errorf("%w: %s: %w", ErrTransient, key, errShuttingDown)
	}

	plan, err := o.plan(ctx, key, logger)
	if err != nil {
		metrics.IncColdStart("not_found")
		span.SetStatus(codes.Error, "not found")
		logger.Info().Str(xglog.FieldEvent, "orchestrator.not_found").Msg("nothing to serve")
		return err
	}
	span.SetAttributes(telemetry.SessionAttributes("", string(plan.Kind))...)
	metrics.IncStrategyDecision(string(plan.Kind))

	select {
	case <-sink.Done():
		metrics.IncColdStart("transient")
		logger.Debug().Str(xglog.FieldEvent, "orchestrator.requester_gone").Msg("requester left before start, skipping spawn")
		return fmt.Errorf("%w: %s requester left", ErrTransient, key)
	default:
	}

	slot := newStreamSlot()
	session, created := o.registry.Create(key, slot.killFunc(o.cfg.KillTimeout))
	if session == nil {
		slot.resolve(nil, errNotLaunched)
		metrics.IncColdStart("transient")
		span.SetStatus(codes.Error, "shutting down")
		logger.Debug().Str(xglog.FieldEvent, "orchestrator.shutting_down").Msg("registry closed, skipping spawn")
		return fmt.Errorf("%w: %s: %w", ErrTransient, key, errShuttingDown)
	}
	if !created {
		// Another cold start registered the key between the fast path and here.
		slot.resolve(nil, errNotLaunched)
		if joined, err := o.join(ctx, key, sink); joined {
			return err
		}
		metrics.IncColdStart("transient")
		return fmt.Errorf("%w: %s", ErrTransient, key)
	}

	if !o.registry.AddClientTo(session, sink) {
		err := fmt.Errorf("%w: %s vanished before subscribe", ErrTransient, key)
		slot.resolve(nil, errNotLaunched)
		session.MarkStarted(err)
		metrics.IncColdStart("transient")
		span.SetStatus(codes.Error, "session vanished")
		logger.Debug().Str(xglog.FieldEvent, "orchestrator.vanished").Msg("session gone before subscribe, skipping spawn")
		return err
	}

	if o.limiter != nil {
		if r := o.limiter.Reserve(); r.Delay() > 0 {
			metrics.IncLaunchThrottled()
			logger.Debug().Str(xglog.FieldEvent, "orchestrator.launch_paced").Dur("delay", r.Delay()).Msg("pacing pipeline launch")
			time.Sleep(r.Delay())
		}
		if cur, ok := o.registry.Get(key); !ok || cur != session {
			err := fmt.Errorf("%w: %s ended before launch", ErrTransient, key)
			slot.resolve(nil, errNotLaunched)
			session.MarkStarted(err)
			metrics.IncColdStart("transient")
			logger.Debug().Str(xglog.FieldEvent, "orchestrator.vanished").Msg("session ended while pacing, skipping spawn")
			return err
		}
	}

	stream, err := o.launcher.Launch(ctx, plan)
	if err != nil {
		upErr := fmt.Errorf("%w: %s: %w", ErrUpstream, plan.Kind, err)
		slot.resolve(nil, err)
		o.registry.KillSession(session, fanout.ReasonLaunchFailed)
		session.MarkStarted(upErr)
		metrics.IncColdStart("upstream")
		span.RecordError(err)
		span.SetStatus(codes.Error, "launch failed")
		logger.Error().Err(err).
			Str(xglog.FieldEvent, "orchestrator.launch_failed").
			Str(xglog.FieldStrategy, string(plan.Kind)).
			Msg("failed to start pipeline")
		return upErr
	}
	slot.resolve(stream, nil)
	session.MarkStarted(nil)

	metrics.IncColdStart("ok")
	metrics.ObserveColdStart(string(plan.Kind), time.Since(started))
	logger.Info().
		Str(xglog.FieldEvent, "orchestrator.started").
		Str(xglog.FieldStrategy, string(plan.Kind)).
		Dur("elapsed", time.Since(started)).
		Msg("session started")

	go o.pump(session, stream)
	return nil
}

func (o *Orchestrator) plan(ctx context.Context, key string, logger zerolog.Logger) (strategy.Plan, error) {
	rec, found, err := o.records.Lookup(ctx, key)
	if err != nil {
		logger.Warn().Err(err).Str(xglog.FieldEvent, "orchestrator.snapshot_failed").Msg("status snapshot unreadable, treating as no record")
		found = false
	}

	var overlay snapshot.Overlay
	if found && rec.Status == snapshot.StatusUpcoming && o.overlays != nil {
		ov, ok, err := o.overlays.Overlay(ctx, key)
		switch {
		case err != nil:
			logger.Warn().Err(err).Str(xglog.FieldEvent, "orchestrator.overlay_failed").Msg("overlay snapshot unreadable")
		case ok:
			overlay = ov
		}
	}

	return Decide(ctx, DecisionInput{
		Key:            key,
		Record:         rec,
		Found:          found,
		Overlay:        overlay,
		PlaceholderURL: o.cfg.PlaceholderURL,
		Probe:          o.launcher.Playable,
	})
}

// pump copies the pipeline output into the session until EOF, then ends the
// session. It only ever touches its own session instance.
func (o *Orchestrator) pump(session *fanout.Session, stream strategy.Stream) {
	buf := make([]byte, o.cfg.ChunkSize)
	r := stream.Stdout()
	for {
		n, err := r.Read(buf)
		if n > 0 {
			o.registry.BroadcastTo(session, buf[:n])
		}
		if err != nil {
			break
		}
	}
	o.registry.KillSession(session, fanout.ReasonUpstreamEOF)
}

// ThumbnailURL returns the still image for key: the record's thumbnail, else
// the global placeholder.
func (o *Orchestrator) ThumbnailURL(ctx context.Context, key string) (string, error) {
	rec, found, err := o.records.Lookup(ctx, key)
	if err != nil {
		o.logger.Warn().Err(err).Str(xglog.FieldMediaKey, key).Msg("status snapshot unreadable")
	}
	if err == nil && found && rec.ThumbnailURL != "" {
		return rec.ThumbnailURL, nil
	}
	if o.cfg.PlaceholderURL != "" {
		return o.cfg.PlaceholderURL, nil
	}
	return "", fmt.Errorf("%w: no thumbnail for %s", ErrNotFound, key)
}

// Sessions lists the active sessions.
func (o *Orchestrator) Sessions() []fanout.Info {
	return o.registry.Snapshot()
}

// Shutdown aborts pending cold starts, closes the registry to new sessions
// and kills every session.
func (o *Orchestrator) Shutdown(ctx context.Context) error {
	o.stop()
	return o.registry.Shutdown(ctx)
}
