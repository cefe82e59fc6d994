// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package strategy builds and launches the external tool pipelines that
// produce an MPEG-TS byte stream for a media key.
package strategy

import (
	"context"
	"errors"
	"io"
	"time"

	"github.com/catatau597/tube-sub000/internal/profile"
)

// Kind tags a retrieval plan.
type Kind string

const (
	// Placeholder loops a still image with overlay text.
	Placeholder Kind = "placeholder"
	// Passthrough relays a live stream through streamlink.
	Passthrough Kind = "passthrough"
	// DownloadRemux downloads with yt-dlp and remuxes with ffmpeg.
	DownloadRemux Kind = "download_remux"
)

// Overlay is the two-line text drawn on placeholder frames.
type Overlay struct {
	Line1 string
	Line2 string
}

// Plan is the outcome of the decision function.
type Plan struct {
	Kind     Kind
	ImageURL string
	Overlay  Overlay
	WatchURL string
}

// ErrNoPlayableURL is returned when URL resolution yields nothing usable.
var ErrNoPlayableURL = errors.New("no playable url resolved")

// Stream is a running pipeline whose last stage writes MPEG-TS to Stdout.
type Stream interface {
	Stdout() io.Reader
	Kill(timeout time.Duration) error
}

// ProfileResolver supplies the tool profile for each launch.
type ProfileResolver interface {
	Resolve(ctx context.Context, tool string) profile.Profile
}

// Tools holds the executable paths.
type Tools struct {
	FFmpeg     string
	Streamlink string
	YtDlp      string
}

// DefaultTools resolves binaries from PATH.
func DefaultTools() Tools {
	return Tools{FFmpeg: "ffmpeg", Streamlink: "streamlink", YtDlp: "yt-dlp"}
}
