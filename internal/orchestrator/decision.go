// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package orchestrator

import (
	"context"
	"fmt"

	"github.com/catatau597/tube-sub000/internal/snapshot"
	"github.com/catatau597/tube-sub000/internal/strategy"
)

// ProbeFunc reports whether a live stream can be relayed directly.
type ProbeFunc func(ctx context.Context, watchURL string) bool

// DecisionInput is everything the decision needs for one cold start.
type DecisionInput struct {
	Key            string
	Record         snapshot.Record
	Found          bool
	Overlay        snapshot.Overlay
	PlaceholderURL string
	// Probe is only consulted for genuinely live records.
	Probe ProbeFunc
}

// Decide picks the retrieval plan for a media key:
//
//  1. no record: placeholder image without text, or ErrNotFound
//  2. upcoming: placeholder with the thumbnail and overlay lines
//  3. genuinely live and probe succeeds: passthrough
//  4. anything else: download+remux
func Decide(ctx context.Context, in DecisionInput) (strategy.Plan, error) {
	if !in.Found {
		if in.PlaceholderURL == "" {
			return strategy.Plan{}, fmt.Errorf("%w: no record for %s and no placeholder", ErrNotFound, in.Key)
		}
		return strategy.Plan{Kind: strategy.Placeholder, ImageURL: in.PlaceholderURL}, nil
	}

	rec := in.Record
	if rec.Status == snapshot.StatusUpcoming {
		image := rec.ThumbnailURL
		if image == "" {
			image = in.PlaceholderURL
		}
		if image == "" {
			return strategy.Plan{}, fmt.Errorf("%w: no image for upcoming %s", ErrNotFound, in.Key)
		}
		return strategy.Plan{
			Kind:     strategy.Placeholder,
			ImageURL: image,
			Overlay:  strategy.Overlay{Line1: in.Overlay.Line1, Line2: in.Overlay.Line2},
		}, nil
	}

	watchURL := rec.WatchURL
	if watchURL == "" {
		watchURL = WatchURL(in.Key)
	}

	if rec.GenuinelyLive() && in.Probe != nil && in.Probe(ctx, watchURL) {
		return strategy.Plan{Kind: strategy.Passthrough, WatchURL: watchURL}, nil
	}
	return strategy.Plan{Kind: strategy.DownloadRemux, WatchURL: watchURL}, nil
}

// WatchURL builds the canonical watch page for a video id.
func WatchURL(key string) string {
	return "https://www.youtube.com/watch?v=" + key
}
