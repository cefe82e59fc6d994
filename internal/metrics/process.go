// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// ProcSpawnTotal counts external process spawns by binary and result.
	ProcSpawnTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tube_proc_spawn_total",
		Help: "Total number of external process spawns, by binary and result.",
	}, []string{"binary", "result"})

	// ProcTerminateTotal counts termination signals by signal and outcome.
	ProcTerminateTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tube_proc_terminate_total",
		Help: "Total number of termination signals sent, by signal and outcome (sent, esrch, error).",
	}, []string{"signal", "outcome"})

	// ProcWaitTotal counts how processes ended after a kill.
	ProcWaitTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tube_proc_wait_total",
		Help: "Total number of observed process exits after kill, by result (graceful, forced).",
	}, []string{"result"})
)

// IncProcSpawn records a spawn attempt.
func IncProcSpawn(binary string, ok bool) {
	result := "error"
	if ok {
		result = "ok"
	}
	ProcSpawnTotal.WithLabelValues(binary, result).Inc()
}

// IncProcTerminate records a termination signal outcome.
func IncProcTerminate(signal, outcome string) {
	ProcTerminateTotal.WithLabelValues(signal, outcome).Inc()
}

// IncProcWait records how a killed process ended.
func IncProcWait(result string) {
	ProcWaitTotal.WithLabelValues(result).Inc()
}
