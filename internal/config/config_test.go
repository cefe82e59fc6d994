// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	dataDir := t.TempDir()
	t.Setenv(EnvDataDir, dataDir)

	cfg, err := NewLoader("").Load()
	require.NoError(t, err)

	assert.Equal(t, ":8888", cfg.ListenAddr)
	assert.Equal(t, 30*time.Second, cfg.Timeouts.Watchdog)
	assert.Equal(t, 3*time.Second, cfg.Timeouts.Kill)
	assert.Equal(t, 0, cfg.Stream.ViewerBuffer)
	assert.Equal(t, filepath.Join(dataDir, DefaultStatusFile), cfg.Snapshots.StatusPath)
	assert.Equal(t, filepath.Join(dataDir, DefaultOverlayFile), cfg.Snapshots.OverlayPath)
	assert.True(t, cfg.Metrics.Enabled)
}

func TestLoad_FileThenEnvPrecedence(t *testing.T) {
	path := writeConfig(t, `
listenAddr: "127.0.0.1:9000"
dataDir: /srv/tube
placeholderUrl: https://cdn.example/placeholder.png
snapshots:
  statusPath: /srv/scheduler/streams.json
tools:
  ytdlp: /opt/yt-dlp
  format: "bv*+ba/b"
timeouts:
  watchdog: 45s
  probe: 10s
stream:
  viewerBuffer: 256
`)
	t.Setenv(EnvListenAddr, ":7000")
	t.Setenv(EnvProbeTimeout, "5s")
	t.Setenv(EnvMetricsEnabled, "no")

	cfg, err := NewLoader(path).Load()
	require.NoError(t, err)

	assert.Equal(t, ":7000", cfg.ListenAddr, "env beats file")
	assert.Equal(t, "/srv/tube", cfg.DataDir)
	assert.Equal(t, "https://cdn.example/placeholder.png", cfg.PlaceholderURL)
	assert.Equal(t, "/srv/scheduler/streams.json", cfg.Snapshots.StatusPath)
	assert.Equal(t, "/srv/tube/overlay.json", cfg.Snapshots.OverlayPath)
	assert.Equal(t, "/opt/yt-dlp", cfg.Tools.YtDlp)
	assert.Equal(t, "ffmpeg", cfg.Tools.FFmpeg, "untouched keys keep defaults")
	assert.Equal(t, "bv*+ba/b", cfg.Tools.Format)
	assert.Equal(t, 45*time.Second, cfg.Timeouts.Watchdog)
	assert.Equal(t, 5*time.Second, cfg.Timeouts.Probe)
	assert.Equal(t, 256, cfg.Stream.ViewerBuffer)
	assert.False(t, cfg.Metrics.Enabled)
}

func TestLoad_UnknownFieldRejected(t *testing.T) {
	path := writeConfig(t, "listenAddr: \":8888\"\nenigma2:\n  host: box\n")

	_, err := NewLoader(path).Load()
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUnknownConfigField)
}

func TestLoad_EmptyFile(t *testing.T) {
	t.Setenv(EnvDataDir, t.TempDir())
	path := writeConfig(t, "")

	cfg, err := NewLoader(path).Load()
	require.NoError(t, err)
	assert.Equal(t, ":8888", cfg.ListenAddr)
}

func TestLoad_RejectsNonYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte("{}"), 0o600))

	_, err := NewLoader(path).Load()
	assert.ErrorContains(t, err, "only YAML supported")
}

func TestLoad_MultipleDocuments(t *testing.T) {
	path := writeConfig(t, "listenAddr: \":1\"\n---\nlistenAddr: \":2\"\n")

	_, err := NewLoader(path).Load()
	assert.ErrorContains(t, err, "multiple documents")
}

func TestParseHelpers_InvalidValuesFallBack(t *testing.T) {
	t.Setenv("TUBE_TEST_INT", "many")
	t.Setenv("TUBE_TEST_DUR", "soon")
	t.Setenv("TUBE_TEST_BOOL", "perhaps")
	t.Setenv("TUBE_TEST_EMPTY", "")
	t.Setenv("TUBE_TEST_FLOAT", "half")

	assert.Equal(t, 7, ParseInt("TUBE_TEST_INT", 7))
	assert.Equal(t, time.Second, ParseDuration("TUBE_TEST_DUR", time.Second))
	assert.True(t, ParseBool("TUBE_TEST_BOOL", true))
	assert.Equal(t, "fallback", ParseString("TUBE_TEST_EMPTY", "fallback"))
	assert.Equal(t, "fallback", ParseString("TUBE_TEST_UNSET", "fallback"))
	assert.InDelta(t, 0.25, ParseFloat("TUBE_TEST_FLOAT", 0.25), 1e-9)
}

func TestLoad_TracingFromEnv(t *testing.T) {
	t.Setenv(EnvDataDir, t.TempDir())
	t.Setenv(EnvTracing, "true")
	t.Setenv(EnvOTLPExporter, "http")
	t.Setenv(EnvOTLPEndpoint, "collector:4318")
	t.Setenv(EnvSamplingRate, "0.1")

	cfg, err := NewLoader("").Load()
	require.NoError(t, err)
	assert.True(t, cfg.Tracing.Enabled)
	assert.Equal(t, "http", cfg.Tracing.Exporter)
	assert.Equal(t, "collector:4318", cfg.Tracing.Endpoint)
	assert.InDelta(t, 0.1, cfg.Tracing.SamplingRate, 1e-9)
}

func TestLoad_LaunchPacingFromEnv(t *testing.T) {
	t.Setenv(EnvDataDir, t.TempDir())
	t.Setenv(EnvLaunchRate, "0.5")
	t.Setenv(EnvLaunchBurst, "2")

	cfg, err := NewLoader("").Load()
	require.NoError(t, err)
	assert.InDelta(t, 0.5, cfg.Stream.LaunchRate, 1e-9)
	assert.Equal(t, 2, cfg.Stream.LaunchBurst)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*AppConfig)
		wantErr string
	}{
		{"defaults are valid", func(*AppConfig) {}, ""},
		{"bad listen addr", func(c *AppConfig) { c.ListenAddr = "8888" }, "listenAddr"},
		{"bad log level", func(c *AppConfig) { c.LogLevel = "loud" }, "logLevel"},
		{"zero watchdog", func(c *AppConfig) { c.Timeouts.Watchdog = 0 }, "timeouts.watchdog"},
		{"resolve not below watchdog", func(c *AppConfig) { c.Timeouts.Resolve = c.Timeouts.Watchdog }, "timeouts.resolve"},
		{"negative buffer", func(c *AppConfig) { c.Stream.ViewerBuffer = -1 }, "stream.viewerBuffer"},
		{"empty tool", func(c *AppConfig) { c.Tools.Streamlink = "" }, "tools.streamlink"},
		{"tiny chunks", func(c *AppConfig) { c.Stream.ChunkSize = 10 }, "stream.chunkSize"},
		{"unknown exporter", func(c *AppConfig) { c.Tracing.Enabled = true; c.Tracing.Exporter = "zipkin" }, "tracing.exporter"},
		{"negative launch rate", func(c *AppConfig) { c.Stream.LaunchRate = -1 }, "stream.launchRate"},
		{"launch rate without burst", func(c *AppConfig) { c.Stream.LaunchRate = 2; c.Stream.LaunchBurst = 0 }, "stream.launchBurst"},
		{"sampling out of range", func(c *AppConfig) { c.Tracing.SamplingRate = 1.5 }, "tracing.samplingRate"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Defaults()
			tt.mutate(&cfg)
			err := Validate(cfg)
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.ErrorIs(t, err, ErrInvalidConfig)
			assert.ErrorContains(t, err, tt.wantErr)
		})
	}
}
