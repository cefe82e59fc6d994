// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package config loads the daemon configuration: defaults, then an optional
// YAML file, then TUBE_* environment variables.
package config

import "time"

// AppConfig is the effective daemon configuration.
type AppConfig struct {
	ListenAddr string `yaml:"listenAddr"`
	DataDir    string `yaml:"dataDir"`
	LogLevel   string `yaml:"logLevel"`

	// PlaceholderURL is the global still image used when a key has no record.
	PlaceholderURL string `yaml:"placeholderUrl"`
	// CatalogPath is the SQLite catalogue holding tool profiles. Empty disables profiles.
	CatalogPath string `yaml:"catalogPath"`

	Snapshots SnapshotConfig `yaml:"snapshots"`
	Tools     ToolsConfig    `yaml:"tools"`
	Timeouts  TimeoutConfig  `yaml:"timeouts"`
	Stream    StreamConfig   `yaml:"stream"`
	Metrics   MetricsConfig  `yaml:"metrics"`
	Tracing   TracingConfig  `yaml:"tracing"`
}

// SnapshotConfig locates the files written by the scheduler.
type SnapshotConfig struct {
	StatusPath  string `yaml:"statusPath"`
	OverlayPath string `yaml:"overlayPath"`
}

// ToolsConfig names the external binaries.
type ToolsConfig struct {
	FFmpeg     string `yaml:"ffmpeg"`
	Streamlink string `yaml:"streamlink"`
	YtDlp      string `yaml:"ytdlp"`
	// Format is the yt-dlp format selector.
	Format   string `yaml:"format"`
	FontFile string `yaml:"fontFile"`
}

// TimeoutConfig bounds every waiting point.
type TimeoutConfig struct {
	Watchdog time.Duration `yaml:"watchdog"`
	Kill     time.Duration `yaml:"kill"`
	Probe    time.Duration `yaml:"probe"`
	Resolve  time.Duration `yaml:"resolve"`
	Shutdown time.Duration `yaml:"shutdown"`
}

// StreamConfig tunes viewer delivery.
type StreamConfig struct {
	// ViewerBuffer caps queued chunks per viewer; 0 is unbounded.
	ViewerBuffer int `yaml:"viewerBuffer"`
	// RateLimit is stream requests per minute per client IP; 0 disables it.
	RateLimit int `yaml:"rateLimit"`
	ChunkSize int `yaml:"chunkSize"`
	// LaunchRate paces upstream pipeline starts per second across all keys; 0 disables pacing.
	LaunchRate  float64 `yaml:"launchRate"`
	LaunchBurst int     `yaml:"launchBurst"`
}

// MetricsConfig toggles the /metrics endpoint.
type MetricsConfig struct {
	Enabled bool `yaml:"enabled"`
}

// TracingConfig controls OTLP trace export.
type TracingConfig struct {
	Enabled bool `yaml:"enabled"`
	// Exporter is "grpc" or "http".
	Exporter     string  `yaml:"exporter"`
	Endpoint     string  `yaml:"endpoint"`
	SamplingRate float64 `yaml:"samplingRate"`
}

// Defaults returns the built-in configuration.
func Defaults() AppConfig {
	return AppConfig{
		ListenAddr: ":8888",
		DataDir:    "/data",
		LogLevel:   "info",
		Tools: ToolsConfig{
			FFmpeg:     "ffmpeg",
			Streamlink: "streamlink",
			YtDlp:      "yt-dlp",
			Format:     "best",
		},
		Timeouts: TimeoutConfig{
			Watchdog: 30 * time.Second,
			Kill:     3 * time.Second,
			Probe:    20 * time.Second,
			Resolve:  20 * time.Second,
			Shutdown: 10 * time.Second,
		},
		Stream: StreamConfig{
			RateLimit:   60,
			ChunkSize:   64 * 1024,
			LaunchBurst: 4,
		},
		Metrics: MetricsConfig{Enabled: true},
		Tracing: TracingConfig{
			Exporter:     "grpc",
			Endpoint:     "localhost:4317",
			SamplingRate: 1.0,
		},
	}
}
