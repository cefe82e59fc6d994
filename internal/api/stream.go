// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"regexp"

	"github.com/catatau597/tube-sub000/internal/fanout"
	xglog "github.com/catatau597/tube-sub000/internal/log"
	"github.com/catatau597/tube-sub000/internal/orchestrator"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

var keyPattern = regexp.MustCompile(`^[A-Za-z0-9_-]{1,64}$`)

// streamWriter sends the response headers lazily so an error status can still
// be written when no byte was streamed.
type streamWriter struct {
	w       http.ResponseWriter
	started bool
}

func (s *streamWriter) Write(p []byte) (int, error) {
	if !s.started {
		h := s.w.Header()
		h.Set("Content-Type", "video/mp2t")
		h.Set("Cache-Control", "no-store")
		h.Set("X-Content-Type-Options", "nosniff")
		s.w.WriteHeader(http.StatusOK)
		s.started = true
	}
	return s.w.Write(p)
}

func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	key := chi.URLParam(r, "key")
	if !keyPattern.MatchString(key) {
		writeError(w, r, http.StatusBadRequest, "invalid_key", "Media key is malformed.")
		return
	}

	viewerID := uuid.NewString()
	ctx := xglog.ContextWithViewerID(r.Context(), viewerID)
	logger := xglog.WithContext(ctx, s.logger).With().Str(xglog.FieldMediaKey, key).Logger()

	viewer := fanout.NewViewer(viewerID, s.cfg.ViewerBuffer)
	out := &streamWriter{w: w}
	rc := http.NewResponseController(w)

	pumped := make(chan error, 1)
	go func() {
		pumped <- viewer.Pump(ctx, out, func() { _ = rc.Flush() })
	}()

	logger.Debug().Str(xglog.FieldEvent, "viewer.attach").Msg("viewer connected")
	err := s.svc.ServeVideo(ctx, key, viewer)
	_ = viewer.Close()
	pumpErr := <-pumped

	if err != nil {
		status, code := statusFor(err)
		logger.Info().Err(err).
			Str(xglog.FieldEvent, "viewer.rejected").
			Int("status", status).
			Msg("stream request failed")
		if out.started {
			return
		}
		if status == http.StatusServiceUnavailable {
			w.Header().Set("Retry-After", "1")
		}
		writeError(w, r, status, code, err.Error())
		return
	}

	logger.Debug().
		AnErr("pump_err", pumpErr).
		Str(xglog.FieldEvent, "viewer.detach").
		Msg("viewer disconnected")
}

func statusFor(err error) (int, string) {
	switch {
	case errors.Is(err, orchestrator.ErrNotFound):
		return http.StatusNotFound, "not_found"
	case errors.Is(err, orchestrator.ErrTransient):
		return http.StatusServiceUnavailable, "unavailable"
	case errors.Is(err, orchestrator.ErrUpstream):
		return http.StatusBadGateway, "upstream_failed"
	default:
		return http.StatusInternalServerError, "internal_error"
	}
}

func (s *Server) handleThumbnail(w http.ResponseWriter, r *http.Request) {
	key := chi.URLParam(r, "key")
	if !keyPattern.MatchString(key) {
		writeError(w, r, http.StatusBadRequest, "invalid_key", "Media key is malformed.")
		return
	}
	url, err := s.svc.ThumbnailURL(r.Context(), key)
	if err != nil {
		status, code := statusFor(err)
		writeError(w, r, status, code, err.Error())
		return
	}
	http.Redirect(w, r, url, http.StatusFound)
}

func (s *Server) handleSessions(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{"sessions": s.svc.Sessions()})
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = w.Write([]byte("ok\n"))
}
