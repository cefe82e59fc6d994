// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package snapshot reads the stream status and overlay snapshots published by
// the external polling scheduler. Both files are read-only here.
package snapshot

import (
	"context"
	"encoding/json"
	"time"
)

// Status is the normalized lifecycle state of a stream.
type Status string

const (
	StatusLive     Status = "live"
	StatusUpcoming Status = "upcoming"
	StatusEnded    Status = "ended"
)

// ParseStatus maps the wire value; "none" and unknown values are ended.
func ParseStatus(s string) Status {
	switch Status(s) {
	case StatusLive:
		return StatusLive
	case StatusUpcoming:
		return StatusUpcoming
	default:
		return StatusEnded
	}
}

// Record is the scheduler's view of one media key.
type Record struct {
	Key          string
	WatchURL     string
	ThumbnailURL string
	Status       Status
	ActualStart  *time.Time
	ActualEnd    *time.Time
}

// GenuinelyLive reports a live status with a recorded start and no end.
func (r Record) GenuinelyLive() bool {
	return r.Status == StatusLive && r.ActualStart != nil && r.ActualEnd == nil
}

// Overlay is the two-line text shown on placeholder frames.
type Overlay struct {
	Line1 string `json:"line1"`
	Line2 string `json:"line2"`
}

type wireRecord struct {
	WatchURL     string `json:"watchUrl"`
	ThumbnailURL string `json:"thumbnailUrl"`
	Status       string `json:"status"`
	ActualStart  string `json:"actualStart"`
	ActualEnd    string `json:"actualEnd"`
}

type wireStatus struct {
	Streams map[string]wireRecord `json:"streams"`
}

func parseStatus(data []byte) (map[string]Record, error) {
	var w wireStatus
	if err := json.Unmarshal(data, &w); err != nil {
		return nil, err
	}
	out := make(map[string]Record, len(w.Streams))
	for key, r := range w.Streams {
		out[key] = Record{
			Key:          key,
			WatchURL:     r.WatchURL,
			ThumbnailURL: r.ThumbnailURL,
			Status:       ParseStatus(r.Status),
			ActualStart:  parseTime(r.ActualStart),
			ActualEnd:    parseTime(r.ActualEnd),
		}
	}
	return out, nil
}

func parseOverlays(data []byte) (map[string]Overlay, error) {
	var out map[string]Overlay
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// parseTime returns nil for empty or unparseable values.
func parseTime(s string) *time.Time {
	if s == "" {
		return nil
	}
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return nil
	}
	return &t
}

// StatusReader serves records from the status snapshot.
type StatusReader struct {
	file *cachedFile[map[string]Record]
}

// NewStatusReader reads the status snapshot at path. An empty path yields no records.
func NewStatusReader(path string) *StatusReader {
	return &StatusReader{file: newCachedFile(path, "snapshot.status", parseStatus)}
}

// Lookup returns the record for key. A missing file means no record.
func (r *StatusReader) Lookup(_ context.Context, key string) (Record, bool, error) {
	records, err := r.file.get()
	if err != nil {
		return Record{}, false, err
	}
	rec, ok := records[key]
	return rec, ok, nil
}

// Watch keeps the cache coherent with the file until ctx ends.
func (r *StatusReader) Watch(ctx context.Context) error {
	return r.file.watch(ctx)
}

// OverlayReader serves overlay text from the overlay snapshot.
type OverlayReader struct {
	file *cachedFile[map[string]Overlay]
}

// NewOverlayReader reads the overlay snapshot at path. An empty path yields no overlays.
func NewOverlayReader(path string) *OverlayReader {
	return &OverlayReader{file: newCachedFile(path, "snapshot.overlay", parseOverlays)}
}

// Overlay returns the overlay for key.
func (r *OverlayReader) Overlay(_ context.Context, key string) (Overlay, bool, error) {
	overlays, err := r.file.get()
	if err != nil {
		return Overlay{}, false, err
	}
	ov, ok := overlays[key]
	return ov, ok, nil
}

// Watch keeps the cache coherent with the file until ctx ends.
func (r *OverlayReader) Watch(ctx context.Context) error {
	return r.file.watch(ctx)
}
