// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package snapshot

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/google/renameio/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

const statusJSON = `{
  "streams": {
    "live1": {"watchUrl": "https://www.youtube.com/watch?v=live1", "thumbnailUrl": "https://i/live1.jpg", "status": "live", "actualStart": "2025-03-01T18:00:00Z"},
    "soon1": {"watchUrl": "https://www.youtube.com/watch?v=soon1", "thumbnailUrl": "https://i/soon1.jpg", "status": "upcoming"},
    "vod1":  {"watchUrl": "https://www.youtube.com/watch?v=vod1", "status": "none", "actualStart": "2025-03-01T10:00:00Z", "actualEnd": "2025-03-01T12:00:00Z"},
    "odd1":  {"status": "archived", "actualStart": "garbage"}
  }
}`

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
}

func TestStatusReader_Lookup(t *testing.T) {
	path := filepath.Join(t.TempDir(), "status.json")
	writeFile(t, path, statusJSON)
	r := NewStatusReader(path)
	ctx := context.Background()

	start := time.Date(2025, 3, 1, 18, 0, 0, 0, time.UTC)
	rec, ok, err := r.Lookup(ctx, "live1")
	require.NoError(t, err)
	require.True(t, ok)
	want := Record{
		Key:          "live1",
		WatchURL:     "https://www.youtube.com/watch?v=live1",
		ThumbnailURL: "https://i/live1.jpg",
		Status:       StatusLive,
		ActualStart:  &start,
	}
	if diff := cmp.Diff(want, rec); diff != "" {
		t.Errorf("Lookup mismatch (-want +got):\n%s", diff)
	}
	assert.True(t, rec.GenuinelyLive())

	vod, _, _ := r.Lookup(ctx, "vod1")
	assert.Equal(t, StatusEnded, vod.Status)
	assert.False(t, vod.GenuinelyLive())

	odd, _, _ := r.Lookup(ctx, "odd1")
	assert.Equal(t, StatusEnded, odd.Status)
	assert.Nil(t, odd.ActualStart)

	_, ok, err = r.Lookup(ctx, "missing")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestRecord_GenuinelyLive(t *testing.T) {
	now := time.Now()
	tests := []struct {
		name string
		rec  Record
		want bool
	}{
		{"live with start", Record{Status: StatusLive, ActualStart: &now}, true},
		{"live without start", Record{Status: StatusLive}, false},
		{"live with end", Record{Status: StatusLive, ActualStart: &now, ActualEnd: &now}, false},
		{"ended with start", Record{Status: StatusEnded, ActualStart: &now}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.rec.GenuinelyLive())
		})
	}
}

func TestStatusReader_MissingFileAndEmptyPath(t *testing.T) {
	ctx := context.Background()

	_, ok, err := NewStatusReader(filepath.Join(t.TempDir(), "absent.json")).Lookup(ctx, "k")
	require.NoError(t, err)
	assert.False(t, ok)

	_, ok, err = NewStatusReader("").Lookup(ctx, "k")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestStatusReader_CorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "status.json")
	writeFile(t, path, `{"streams": [`)

	_, _, err := NewStatusReader(path).Lookup(context.Background(), "k")
	assert.Error(t, err)
}

func TestOverlayReader(t *testing.T) {
	path := filepath.Join(t.TempDir(), "overlay.json")
	writeFile(t, path, `{"soon1": {"line1": "Live in 15 min", "line2": "Sat 20:00"}}`)
	r := NewOverlayReader(path)

	ov, ok, err := r.Overlay(context.Background(), "soon1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, Overlay{Line1: "Live in 15 min", Line2: "Sat 20:00"}, ov)

	_, ok, err = r.Overlay(context.Background(), "other")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestStatusReader_WatchInvalidatesCache(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	dir := t.TempDir()
	path := filepath.Join(dir, "status.json")
	writeFile(t, path, `{"streams": {"k": {"status": "upcoming"}}}`)
	r := NewStatusReader(path)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- r.Watch(ctx) }()
	require.Eventually(t, r.file.watching.Load, 2*time.Second, 10*time.Millisecond)

	rec, _, err := r.Lookup(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, StatusUpcoming, rec.Status)

	// Atomic replace, the way the scheduler publishes.
	require.NoError(t, renameio.WriteFile(path,
		[]byte(`{"streams": {"k": {"status": "live", "actualStart": "2025-03-01T18:00:00Z"}}}`), 0o600))

	require.Eventually(t, func() bool {
		rec, _, err := r.Lookup(context.Background(), "k")
		return err == nil && rec.Status == StatusLive
	}, 2*time.Second, 10*time.Millisecond)

	cancel()
	require.NoError(t, <-done)
	assert.False(t, r.file.watching.Load())
}

func TestCachedFile_InvalidateDropsValue(t *testing.T) {
	path := filepath.Join(t.TempDir(), "overlay.json")
	writeFile(t, path, `{}`)

	f := newCachedFile(path, "test", parseOverlays)
	f.watching.Store(true)

	_, err := f.get()
	require.NoError(t, err)
	assert.True(t, f.valid)

	f.invalidate()
	assert.False(t, f.valid)
}
