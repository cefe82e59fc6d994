// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/catatau597/tube-sub000/internal/fanout"
	xglog "github.com/catatau597/tube-sub000/internal/log"
	"github.com/catatau597/tube-sub000/internal/orchestrator"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeService struct {
	mu       sync.Mutex
	keys     []string
	viewers  []string
	chunks   []string
	err      error
	thumb    string
	thumbErr error
	sessions []fanout.Info
}

func (f *fakeService) ServeVideo(ctx context.Context, key string, sink orchestrator.Sink) error {
	f.mu.Lock()
	f.keys = append(f.keys, key)
	f.viewers = append(f.viewers, xglog.ViewerIDFromContext(ctx))
	chunks, err := f.chunks, f.err
	f.mu.Unlock()

	if err != nil {
		return err
	}
	for _, c := range chunks {
		if _, werr := sink.Write([]byte(c)); werr != nil {
			return nil
		}
	}
	return sink.Close()
}

func (f *fakeService) ThumbnailURL(_ context.Context, key string) (string, error) {
	if f.thumbErr != nil {
		return "", f.thumbErr
	}
	return f.thumb + "?k=" + key, nil
}

func (f *fakeService) Sessions() []fanout.Info { return f.sessions }

func newTestServer(cfg Config, svc Service) *httptest.Server {
	return httptest.NewServer(New(cfg, svc).Routes())
}

func TestStream_WritesTransportStream(t *testing.T) {
	svc := &fakeService{chunks: []string{"ts-1", "ts-2", "ts-3"}}
	rr := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/stream/abc_DEF-1", nil)
	New(Config{}, svc).Routes().ServeHTTP(rr, req)

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "video/mp2t", rr.Header().Get("Content-Type"))
	assert.Equal(t, "no-store", rr.Header().Get("Cache-Control"))
	assert.Equal(t, "ts-1ts-2ts-3", rr.Body.String())
	assert.NotEmpty(t, rr.Header().Get(HeaderRequestID))

	require.Len(t, svc.keys, 1)
	assert.Equal(t, "abc_DEF-1", svc.keys[0])
	assert.NotEmpty(t, svc.viewers[0], "viewer id is attached to the context")
}

func TestStream_InvalidKey(t *testing.T) {
	svc := &fakeService{}
	h := New(Config{}, svc).Routes()

	for _, key := range []string{"bad.key", "a%20b", "x$y"} {
		rr := httptest.NewRecorder()
		h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/stream/"+key, nil))
		assert.Equal(t, http.StatusBadRequest, rr.Code, key)
	}
	assert.Empty(t, svc.keys)
}

func TestStream_ErrorMapping(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantCode   string
	}{
		{"not found", orchestrator.ErrNotFound, http.StatusNotFound, "not_found"},
		{"transient", fmt.Errorf("%w: late", orchestrator.ErrTransient), http.StatusServiceUnavailable, "unavailable"},
		{"upstream", fmt.Errorf("%w: spawn", orchestrator.ErrUpstream), http.StatusBadGateway, "upstream_failed"},
		{"other", fmt.Errorf("boom"), http.StatusInternalServerError, "internal_error"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := New(Config{}, &fakeService{err: tt.err}).Routes()
			rr := httptest.NewRecorder()
			h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/stream/vid1", nil))

			assert.Equal(t, tt.wantStatus, rr.Code)
			var body map[string]string
			require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
			assert.Equal(t, tt.wantCode, body["error"])
			assert.Equal(t, rr.Header().Get(HeaderRequestID), body["requestId"])
			if tt.wantStatus == http.StatusServiceUnavailable {
				assert.Equal(t, "1", rr.Header().Get("Retry-After"))
			}
		})
	}
}

func TestStream_RateLimit(t *testing.T) {
	svc := &fakeService{}
	h := New(Config{StreamRateLimit: 2}, svc).Routes()

	codes := make([]int, 0, 3)
	for i := 0; i < 3; i++ {
		rr := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/stream/vid1", nil)
		req.RemoteAddr = "192.0.2.7:5000"
		h.ServeHTTP(rr, req)
		codes = append(codes, rr.Code)
	}
	assert.Equal(t, []int{http.StatusOK, http.StatusOK, http.StatusTooManyRequests}, codes)
}

func TestStream_ClientDisconnectEndsServe(t *testing.T) {
	started := make(chan struct{})
	returned := make(chan error, 1)
	svc := &blockingService{started: started, returned: returned}
	srv := newTestServer(Config{}, svc)
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL+"/stream/vid1", nil)
	require.NoError(t, err)

	go func() {
		resp, err := http.DefaultClient.Do(req)
		if err == nil {
			_ = resp.Body.Close()
		}
	}()

	<-started
	cancel()

	select {
	case err := <-returned:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(5 * time.Second):
		t.Fatal("ServeVideo did not observe the disconnect")
	}
}

type blockingService struct {
	fakeService
	started  chan struct{}
	returned chan error
}

func (b *blockingService) ServeVideo(ctx context.Context, _ string, sink orchestrator.Sink) error {
	_, _ = sink.Write([]byte("first"))
	close(b.started)
	<-ctx.Done()
	b.returned <- ctx.Err()
	return nil
}

func TestThumbnail(t *testing.T) {
	h := New(Config{}, &fakeService{thumb: "https://img.example/t.jpg"}).Routes()
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/thumbnail/vid1", nil))
	assert.Equal(t, http.StatusFound, rr.Code)
	assert.Equal(t, "https://img.example/t.jpg?k=vid1", rr.Header().Get("Location"))

	h = New(Config{}, &fakeService{thumbErr: orchestrator.ErrNotFound}).Routes()
	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/thumbnail/vid1", nil))
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestSessions(t *testing.T) {
	created := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	svc := &fakeService{sessions: []fanout.Info{
		{Key: "vid1", Viewers: 2, CreatedAt: created, LastActivity: created, BytesSent: 1024},
	}}
	h := New(Config{}, svc).Routes()
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/sessions", nil))

	require.Equal(t, http.StatusOK, rr.Code)
	var body struct {
		Sessions []fanout.Info `json:"sessions"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	require.Len(t, body.Sessions, 1)
	assert.Equal(t, "vid1", body.Sessions[0].Key)
	assert.Equal(t, 2, body.Sessions[0].Viewers)
}

func TestHealthAndMetrics(t *testing.T) {
	h := New(Config{EnableMetrics: true}, &fakeService{}).Routes()

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, rr.Code)

	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), "tube_http_request_duration_seconds")

	h = New(Config{}, &fakeService{}).Routes()
	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestRequestID_PropagatesIncomingHeader(t *testing.T) {
	h := New(Config{}, &fakeService{}).Routes()
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.Header.Set(HeaderRequestID, "req-42")
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	assert.Equal(t, "req-42", rr.Header().Get(HeaderRequestID))
}

func TestRecoverer(t *testing.T) {
	h := Recoverer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("kaboom")
	}))
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/x", nil))
	assert.Equal(t, http.StatusInternalServerError, rr.Code)
}
