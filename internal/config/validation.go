// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package config

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"time"

	"github.com/rs/zerolog"
)

// Validate checks the effective configuration. All problems are reported at once.
func Validate(cfg AppConfig) error {
	var errs []error
	add := func(format string, args ...any) {
		errs = append(errs, fmt.Errorf("%w: "+format, append([]any{ErrInvalidConfig}, args...)...))
	}

	if _, _, err := net.SplitHostPort(cfg.ListenAddr); err != nil {
		add("listenAddr %q: %v", cfg.ListenAddr, err)
	}
	if _, err := zerolog.ParseLevel(cfg.LogLevel); err != nil {
		add("logLevel %q: %v", cfg.LogLevel, err)
	}
	if cfg.PlaceholderURL != "" {
		if u, err := url.Parse(cfg.PlaceholderURL); err != nil || (u.Scheme == "" && u.Path == "") {
			add("placeholderUrl %q is not a URL or path", cfg.PlaceholderURL)
		}
	}

	for name, bin := range map[string]string{
		"tools.ffmpeg":     cfg.Tools.FFmpeg,
		"tools.streamlink": cfg.Tools.Streamlink,
		"tools.ytdlp":      cfg.Tools.YtDlp,
	} {
		if bin == "" {
			add("%s must not be empty", name)
		}
	}

	for name, d := range map[string]time.Duration{
		"timeouts.watchdog": cfg.Timeouts.Watchdog,
		"timeouts.kill":     cfg.Timeouts.Kill,
		"timeouts.probe":    cfg.Timeouts.Probe,
		"timeouts.resolve":  cfg.Timeouts.Resolve,
		"timeouts.shutdown": cfg.Timeouts.Shutdown,
	} {
		if d <= 0 {
			add("%s must be positive, got %s", name, d)
		}
	}

	if cfg.Timeouts.Resolve > 0 && cfg.Timeouts.Resolve >= cfg.Timeouts.Watchdog {
		add("timeouts.resolve (%s) must be shorter than timeouts.watchdog (%s)", cfg.Timeouts.Resolve, cfg.Timeouts.Watchdog)
	}

	if cfg.Stream.ViewerBuffer < 0 {
		add("stream.viewerBuffer must be >= 0, got %d", cfg.Stream.ViewerBuffer)
	}
	if cfg.Stream.RateLimit < 0 {
		add("stream.rateLimit must be >= 0, got %d", cfg.Stream.RateLimit)
	}
	if cfg.Stream.ChunkSize < 1024 {
		add("stream.chunkSize must be >= 1024, got %d", cfg.Stream.ChunkSize)
	}

	if cfg.Stream.LaunchRate < 0 {
		add("stream.launchRate must be >= 0, got %g", cfg.Stream.LaunchRate)
	}
	if cfg.Stream.LaunchRate > 0 && cfg.Stream.LaunchBurst < 1 {
		add("stream.launchBurst must be >= 1 when launchRate is set, got %d", cfg.Stream.LaunchBurst)
	}

	if cfg.Tracing.Enabled {
		if cfg.Tracing.Exporter != "grpc" && cfg.Tracing.Exporter != "http" {
			add("tracing.exporter must be grpc or http, got %q", cfg.Tracing.Exporter)
		}
		if cfg.Tracing.Endpoint == "" {
			add("tracing.endpoint must not be empty when tracing is enabled")
		}
	}
	if cfg.Tracing.SamplingRate < 0 || cfg.Tracing.SamplingRate > 1 {
		add("tracing.samplingRate must be within [0, 1], got %g", cfg.Tracing.SamplingRate)
	}

	return errors.Join(errs...)
}
