// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Environment variables, highest precedence.
const (
	EnvListenAddr     = "TUBE_LISTEN_ADDR"
	EnvDataDir        = "TUBE_DATA_DIR"
	EnvLogLevel       = "TUBE_LOG_LEVEL"
	EnvPlaceholderURL = "TUBE_PLACEHOLDER_URL"
	EnvCatalogPath    = "TUBE_CATALOG_DB"
	EnvStatusPath     = "TUBE_STATUS_SNAPSHOT"
	EnvOverlayPath    = "TUBE_OVERLAY_SNAPSHOT"
	EnvFFmpegBin      = "TUBE_FFMPEG_BIN"
	EnvStreamlinkBin  = "TUBE_STREAMLINK_BIN"
	EnvYtDlpBin       = "TUBE_YTDLP_BIN"
	EnvYtDlpFormat    = "TUBE_YTDLP_FORMAT"
	EnvFontFile       = "TUBE_FONT_FILE"
	EnvWatchdog       = "TUBE_WATCHDOG"
	EnvKillTimeout    = "TUBE_KILL_TIMEOUT"
	EnvProbeTimeout   = "TUBE_PROBE_TIMEOUT"
	EnvResolveTimeout = "TUBE_RESOLVE_TIMEOUT"
	EnvShutdown       = "TUBE_SHUTDOWN_TIMEOUT"
	EnvViewerBuffer   = "TUBE_VIEWER_BUFFER"
	EnvRateLimit      = "TUBE_STREAM_RATE_LIMIT"
	EnvChunkSize      = "TUBE_CHUNK_SIZE"
	EnvLaunchRate     = "TUBE_LAUNCH_RATE"
	EnvLaunchBurst    = "TUBE_LAUNCH_BURST"
	EnvMetricsEnabled = "TUBE_METRICS_ENABLED"
	EnvTracing        = "TUBE_TRACING_ENABLED"
	EnvOTLPExporter   = "TUBE_OTLP_EXPORTER"
	EnvOTLPEndpoint   = "TUBE_OTLP_ENDPOINT"
	EnvSamplingRate   = "TUBE_TRACE_SAMPLING_RATE"
)

// Default snapshot file names inside the data dir.
const (
	DefaultStatusFile  = "status.json"
	DefaultOverlayFile = "overlay.json"
)

// Loader handles configuration loading with precedence.
type Loader struct {
	configPath string
}

// NewLoader creates a new configuration loader. An empty path skips the file.
func NewLoader(configPath string) *Loader {
	return &Loader{configPath: configPath}
}

// Load loads configuration with precedence: ENV > File > Defaults.
// The file is parsed strictly, then env is applied, then the result is validated.
func (l *Loader) Load() (AppConfig, error) {
	cfg := Defaults()

	if l.configPath != "" {
		if err := l.loadFile(l.configPath, &cfg); err != nil {
			return cfg, fmt.Errorf("load config file: %w", err)
		}
	}

	applyEnv(&cfg)
	resolvePaths(&cfg)

	if err := Validate(cfg); err != nil {
		return cfg, fmt.Errorf("config validation failed: %w", err)
	}
	return cfg, nil
}

// loadFile decodes the YAML file over cfg. Unknown fields are fatal.
func (l *Loader) loadFile(path string, cfg *AppConfig) error {
	path = filepath.Clean(path)

	ext := strings.ToLower(filepath.Ext(path))
	if ext != ".yaml" && ext != ".yml" {
		return fmt.Errorf("unsupported config format: %s (only YAML supported)", ext)
	}

	// #nosec G304 -- configuration file paths are provided by the operator via CLI/ENV
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read file: %w", err)
	}

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil {
		if errors.Is(err, io.EOF) {
			return nil
		}
		if strings.Contains(err.Error(), "field") && strings.Contains(err.Error(), "not found") {
			return fmt.Errorf("%w: %w", ErrUnknownConfigField, err)
		}
		return fmt.Errorf("strict config parse error: %w", err)
	}

	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		return fmt.Errorf("config file contains multiple documents or trailing content")
	}
	return nil
}

func applyEnv(cfg *AppConfig) {
	cfg.ListenAddr = ParseString(EnvListenAddr, cfg.ListenAddr)
	cfg.DataDir = ParseString(EnvDataDir, cfg.DataDir)
	cfg.LogLevel = ParseString(EnvLogLevel, cfg.LogLevel)
	cfg.PlaceholderURL = ParseString(EnvPlaceholderURL, cfg.PlaceholderURL)
	cfg.CatalogPath = ParseString(EnvCatalogPath, cfg.CatalogPath)

	cfg.Snapshots.StatusPath = ParseString(EnvStatusPath, cfg.Snapshots.StatusPath)
	cfg.Snapshots.OverlayPath = ParseString(EnvOverlayPath, cfg.Snapshots.OverlayPath)

	cfg.Tools.FFmpeg = ParseString(EnvFFmpegBin, cfg.Tools.FFmpeg)
	cfg.Tools.Streamlink = ParseString(EnvStreamlinkBin, cfg.Tools.Streamlink)
	cfg.Tools.YtDlp = ParseString(EnvYtDlpBin, cfg.Tools.YtDlp)
	cfg.Tools.Format = ParseString(EnvYtDlpFormat, cfg.Tools.Format)
	cfg.Tools.FontFile = ParseString(EnvFontFile, cfg.Tools.FontFile)

	cfg.Timeouts.Watchdog = ParseDuration(EnvWatchdog, cfg.Timeouts.Watchdog)
	cfg.Timeouts.Kill = ParseDuration(EnvKillTimeout, cfg.Timeouts.Kill)
	cfg.Timeouts.Probe = ParseDuration(EnvProbeTimeout, cfg.Timeouts.Probe)
	cfg.Timeouts.Resolve = ParseDuration(EnvResolveTimeout, cfg.Timeouts.Resolve)
	cfg.Timeouts.Shutdown = ParseDuration(EnvShutdown, cfg.Timeouts.Shutdown)

	cfg.Stream.ViewerBuffer = ParseInt(EnvViewerBuffer, cfg.Stream.ViewerBuffer)
	cfg.Stream.RateLimit = ParseInt(EnvRateLimit, cfg.Stream.RateLimit)
	cfg.Stream.ChunkSize = ParseInt(EnvChunkSize, cfg.Stream.ChunkSize)
	cfg.Stream.LaunchRate = ParseFloat(EnvLaunchRate, cfg.Stream.LaunchRate)
	cfg.Stream.LaunchBurst = ParseInt(EnvLaunchBurst, cfg.Stream.LaunchBurst)

	cfg.Metrics.Enabled = ParseBool(EnvMetricsEnabled, cfg.Metrics.Enabled)

	cfg.Tracing.Enabled = ParseBool(EnvTracing, cfg.Tracing.Enabled)
	cfg.Tracing.Exporter = ParseString(EnvOTLPExporter, cfg.Tracing.Exporter)
	cfg.Tracing.Endpoint = ParseString(EnvOTLPEndpoint, cfg.Tracing.Endpoint)
	cfg.Tracing.SamplingRate = ParseFloat(EnvSamplingRate, cfg.Tracing.SamplingRate)
}

// resolvePaths makes the data dir absolute and places unset snapshot paths inside it.
func resolvePaths(cfg *AppConfig) {
	if abs, err := filepath.Abs(cfg.DataDir); err == nil {
		cfg.DataDir = abs
	}
	if cfg.Snapshots.StatusPath == "" {
		cfg.Snapshots.StatusPath = filepath.Join(cfg.DataDir, DefaultStatusFile)
	}
	if cfg.Snapshots.OverlayPath == "" {
		cfg.Snapshots.OverlayPath = filepath.Join(cfg.DataDir, DefaultOverlayFile)
	}
}
