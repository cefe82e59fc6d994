// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package api exposes the stream proxy over HTTP.
package api

import (
	"context"
	"net/http"

	"github.com/catatau597/tube-sub000/internal/fanout"
	xglog "github.com/catatau597/tube-sub000/internal/log"
	"github.com/catatau597/tube-sub000/internal/orchestrator"
	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

// Service is the orchestrator surface the HTTP layer needs.
type Service interface {
	ServeVideo(ctx context.Context, key string, sink orchestrator.Sink) error
	ThumbnailURL(ctx context.Context, key string) (string, error)
	Sessions() []fanout.Info
}

// Config tunes the HTTP layer.
type Config struct {
	// ViewerBuffer caps queued chunks per viewer; 0 is unbounded.
	ViewerBuffer int
	// StreamRateLimit is stream requests per minute per IP; 0 disables it.
	StreamRateLimit int
	EnableMetrics   bool
}

// Server holds the HTTP handlers.
type Server struct {
	cfg    Config
	svc    Service
	logger zerolog.Logger
}

// New creates the HTTP layer.
func New(cfg Config, svc Service) *Server {
	return &Server{cfg: cfg, svc: svc, logger: xglog.WithComponent("api")}
}

// Routes builds the router.
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(Recoverer)
	r.Use(OTelHTTP("tube"))
	r.Use(RequestID)
	r.Use(Observe)

	r.Get("/healthz", s.handleHealth)
	r.Get("/api/sessions", s.handleSessions)
	r.Get("/thumbnail/{key}", s.handleThumbnail)

	r.Group(func(r chi.Router) {
		if s.cfg.StreamRateLimit > 0 {
			r.Use(StreamRateLimit(s.cfg.StreamRateLimit))
		}
		r.Get("/stream/{key}", s.handleStream)
	})

	if s.cfg.EnableMetrics {
		r.Handle("/metrics", promhttp.Handler())
	}
	return r
}
