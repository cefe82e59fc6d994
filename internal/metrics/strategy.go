// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// StrategyDecisionTotal counts the retrieval strategy chosen per cold start.
	StrategyDecisionTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tube_strategy_decision_total",
		Help: "Total number of cold-start strategy decisions, by strategy.",
	}, []string{"strategy"})

	// ProbeTotal counts passthrough playability probes by result.
	ProbeTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tube_probe_total",
		Help: "Total number of passthrough playability probes, by result (playable, not_playable).",
	}, []string{"result"})

	// ColdStartTotal counts cold starts by outcome.
	ColdStartTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tube_cold_start_total",
		Help: "Total number of cold starts, by outcome (ok, not_found, upstream, transient).",
	}, []string{"outcome"})

	// ColdStartDuration tracks time from first request to process launch.
	ColdStartDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "tube_cold_start_duration_seconds",
		Help:    "Time from cold-start request to launched process, by strategy.",
		Buckets: []float64{0.1, 0.25, 0.5, 1, 2, 3, 5, 8, 13, 20},
	}, []string{"strategy"})

	// LaunchThrottledTotal counts launches delayed by launch pacing.
	LaunchThrottledTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "tube_launch_throttled_total",
		Help: "Total number of pipeline launches delayed by launch pacing.",
	})
)

// IncStrategyDecision records a strategy decision.
func IncStrategyDecision(strategy string) {
	StrategyDecisionTotal.WithLabelValues(strategy).Inc()
}

// IncProbe records a probe outcome.
func IncProbe(playable bool) {
	result := "not_playable"
	if playable {
		result = "playable"
	}
	ProbeTotal.WithLabelValues(result).Inc()
}

// IncColdStart records a cold start outcome.
func IncColdStart(outcome string) {
	ColdStartTotal.WithLabelValues(outcome).Inc()
}

// ObserveColdStart records the cold start duration for a strategy.
func ObserveColdStart(strategy string, d time.Duration) {
	ColdStartDuration.WithLabelValues(strategy).Observe(d.Seconds())
}

// IncLaunchThrottled records a paced launch.
func IncLaunchThrottled() {
	LaunchThrottledTotal.Inc()
}
