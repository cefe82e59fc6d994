// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestIncProcSpawn_Results(t *testing.T) {
	okBefore := testutil.ToFloat64(ProcSpawnTotal.WithLabelValues("ffmpeg", "ok"))
	errBefore := testutil.ToFloat64(ProcSpawnTotal.WithLabelValues("ffmpeg", "error"))

	IncProcSpawn("ffmpeg", true)
	IncProcSpawn("ffmpeg", false)
	IncProcSpawn("ffmpeg", false)

	assert.Equal(t, okBefore+1, testutil.ToFloat64(ProcSpawnTotal.WithLabelValues("ffmpeg", "ok")))
	assert.Equal(t, errBefore+2, testutil.ToFloat64(ProcSpawnTotal.WithLabelValues("ffmpeg", "error")))
}

func TestIncProbe_Results(t *testing.T) {
	before := testutil.ToFloat64(ProbeTotal.WithLabelValues("not_playable"))
	IncProbe(false)
	assert.Equal(t, before+1, testutil.ToFloat64(ProbeTotal.WithLabelValues("not_playable")))
}

func TestSessionAndColdStartCounters(t *testing.T) {
	killBefore := testutil.ToFloat64(SessionKillTotal.WithLabelValues("watchdog"))
	IncSessionKill("watchdog")
	assert.Equal(t, killBefore+1, testutil.ToFloat64(SessionKillTotal.WithLabelValues("watchdog")))

	coldBefore := testutil.ToFloat64(ColdStartTotal.WithLabelValues("ok"))
	IncColdStart("ok")
	assert.Equal(t, coldBefore+1, testutil.ToFloat64(ColdStartTotal.WithLabelValues("ok")))

	ObserveColdStart("placeholder", 250*time.Millisecond)
	assert.Equal(t, 1, testutil.CollectAndCount(ColdStartDuration))
}
