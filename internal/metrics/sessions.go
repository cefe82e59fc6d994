// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package metrics provides Prometheus metrics for the stream proxy core.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// No media keys or viewer IDs in labels.

var (
	// ActiveSessions tracks sessions currently present in the registry.
	ActiveSessions = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "tube_active_sessions",
		Help: "Current number of fan-out sessions in the registry.",
	})

	// ActiveViewers tracks subscribed viewers across all sessions.
	ActiveViewers = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "tube_active_viewers",
		Help: "Current number of viewers subscribed to a session.",
	})

	// SessionKillTotal counts session teardowns by reason.
	SessionKillTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tube_session_kill_total",
		Help: "Total number of session teardowns, by reason (last_viewer, watchdog, upstream_eof, shutdown, explicit).",
	}, []string{"reason"})

	// ViewerDroppedTotal counts viewers removed because a write failed.
	ViewerDroppedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "tube_viewer_dropped_total",
		Help: "Total number of viewers dropped after a failed write.",
	})

	// BroadcastBytesTotal counts bytes pushed into the fan-out.
	BroadcastBytesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "tube_broadcast_bytes_total",
		Help: "Total number of upstream bytes broadcast to sessions.",
	})
)

// IncSessionKill records a session teardown.
func IncSessionKill(reason string) {
	SessionKillTotal.WithLabelValues(reason).Inc()
}
