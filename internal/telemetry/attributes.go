// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package telemetry

import (
	"go.opentelemetry.io/otel/attribute"
)

// Attribute keys shared by the session and launch spans.
const (
	MediaKeyKey = "tube.media_key"
	StrategyKey = "tube.strategy"
	PIDsKey     = "tube.pids"
	ViewerIDKey = "tube.viewer_id"
)

// SessionAttributes describes a cold start. Empty values are omitted.
func SessionAttributes(mediaKey, strategy string) []attribute.KeyValue {
	attrs := make([]attribute.KeyValue, 0, 2)
	if mediaKey != "" {
		attrs = append(attrs, attribute.String(MediaKeyKey, mediaKey))
	}
	if strategy != "" {
		attrs = append(attrs, attribute.String(StrategyKey, strategy))
	}
	return attrs
}

// ProcessAttributes describes a launched pipeline.
func ProcessAttributes(strategy string, pids []int) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String(StrategyKey, strategy),
		attribute.IntSlice(PIDsKey, pids),
	}
}
