// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// HTTPRequestDuration tracks request latency by route pattern. Stream
	// requests last as long as the viewer watches.
	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "tube_http_request_duration_seconds",
		Help:    "HTTP request latencies in seconds",
		Buckets: []float64{0.005, 0.025, 0.1, 0.5, 1, 5, 30, 120, 600, 3600},
	}, []string{"method", "path", "status"})

	// HTTPRequestsInFlight is the number of requests being served, including open streams.
	HTTPRequestsInFlight = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "tube_http_requests_in_flight",
		Help: "Current number of HTTP requests being served",
	})

	// HTTPResponseBytes counts bytes written to clients by route pattern.
	HTTPResponseBytes = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tube_http_response_bytes_total",
		Help: "Total bytes written in HTTP responses",
	}, []string{"path"})
)
