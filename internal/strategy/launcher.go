// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package strategy

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	xglog "github.com/catatau597/tube-sub000/internal/log"
	"github.com/catatau597/tube-sub000/internal/metrics"
	"github.com/catatau597/tube-sub000/internal/proc"
	"github.com/catatau597/tube-sub000/internal/profile"
	"github.com/catatau597/tube-sub000/internal/telemetry"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const noPlayableMarker = "no playable streams found"

// Config tunes the launcher.
type Config struct {
	Tools       Tools
	Placeholder PlaceholderOptions
	// Format is the yt-dlp format selector for download+remux.
	Format         string
	ProbeTimeout   time.Duration
	ResolveTimeout time.Duration
	KillTimeout    time.Duration
}

// DefaultConfig returns the launcher defaults.
func DefaultConfig() Config {
	return Config{
		Tools:          DefaultTools(),
		Placeholder:    DefaultPlaceholderOptions(),
		Format:         "best",
		ProbeTimeout:   20 * time.Second,
		ResolveTimeout: 20 * time.Second,
		KillTimeout:    proc.DefaultKillTimeout,
	}
}

// Launcher starts the pipeline for a plan and answers playability probes.
type Launcher struct {
	cfg      Config
	profiles ProfileResolver
	logger   zerolog.Logger
	tracer   trace.Tracer
}

// NewLauncher creates a launcher. A nil resolver uses the default profile.
func NewLauncher(cfg Config, profiles ProfileResolver) *Launcher {
	if profiles == nil {
		profiles = profile.NewResolver(nil)
	}
	def := DefaultConfig()
	if cfg.ProbeTimeout <= 0 {
		cfg.ProbeTimeout = def.ProbeTimeout
	}
	if cfg.ResolveTimeout <= 0 {
		cfg.ResolveTimeout = def.ResolveTimeout
	}
	if cfg.KillTimeout <= 0 {
		cfg.KillTimeout = def.KillTimeout
	}
	if cfg.Placeholder.Width <= 0 || cfg.Placeholder.Height <= 0 || cfg.Placeholder.FPS <= 0 {
		font := cfg.Placeholder.FontFile
		cfg.Placeholder = def.Placeholder
		cfg.Placeholder.FontFile = font
	}
	return &Launcher{
		cfg:      cfg,
		profiles: profiles,
		logger:   xglog.WithComponent("strategy"),
		tracer:   telemetry.Tracer("github.com/catatau597/tube-sub000/internal/strategy"),
	}
}

// Launch spawns the pipeline for plan. The returned stream is owned by the caller.
func (l *Launcher) Launch(ctx context.Context, plan Plan) (Stream, error) {
	ctx, span := l.tracer.Start(ctx, "strategy.launch",
		trace.WithAttributes(telemetry.SessionAttributes("", string(plan.Kind))...))
	defer span.End()

	var (
		chain *proc.Chain
		err   error
	)
	switch plan.Kind {
	case Placeholder:
		p := l.profiles.Resolve(ctx, profile.ToolFFmpeg)
		chain, err = proc.SpawnPiped(ctx, l.cfg.KillTimeout, proc.Command{
			Name: "ffmpeg-placeholder",
			Path: l.cfg.Tools.FFmpeg,
			Args: PlaceholderArgs(plan.ImageURL, plan.Overlay, p, l.cfg.Placeholder),
		})
	case Passthrough:
		p := l.profiles.Resolve(ctx, profile.ToolStreamlink)
		chain, err = proc.SpawnPiped(ctx, l.cfg.KillTimeout, proc.Command{
			Name: "streamlink",
			Path: l.cfg.Tools.Streamlink,
			Args: StreamlinkArgs(plan.WatchURL, p, l.cookies(p)),
		})
	case DownloadRemux:
		chain, err = l.downloadRemux(ctx, plan.WatchURL)
	default:
		err = fmt.Errorf("unknown strategy %q", plan.Kind)
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "launch failed")
		return nil, err
	}

	span.SetAttributes(telemetry.ProcessAttributes(string(plan.Kind), chain.PIDs())...)
	l.logger.Info().
		Str(xglog.FieldEvent, "strategy.launched").
		Str(xglog.FieldStrategy, string(plan.Kind)).
		Ints("pids", chain.PIDs()).
		Msg("pipeline started")
	return chain, nil
}

func (l *Launcher) downloadRemux(ctx context.Context, watchURL string) (*proc.Chain, error) {
	p := l.profiles.Resolve(ctx, profile.ToolYtDlp)

	out, diag, err := l.capture(ctx, "yt-dlp-resolve", l.cfg.Tools.YtDlp,
		ResolveArgs(watchURL, l.cfg.Format, p), l.cfg.ResolveTimeout)
	if err != nil {
		return nil, fmt.Errorf("resolve %s: %w%s", watchURL, err, lastLine(diag))
	}
	if !hasMediaURL(out) {
		return nil, fmt.Errorf("resolve %s: %w%s", watchURL, ErrNoPlayableURL, lastLine(diag))
	}

	info, err := infoPipe(out)
	if err != nil {
		return nil, err
	}
	return proc.SpawnPiped(ctx, l.cfg.KillTimeout,
		proc.Command{
			Name:  "yt-dlp",
			Path:  l.cfg.Tools.YtDlp,
			Args:  DownloadArgs(l.cfg.Format, p),
			Stdin: info,
		},
		proc.Command{
			Name: "ffmpeg-remux",
			Path: l.cfg.Tools.FFmpeg,
			Args: RemuxArgs(),
		},
	)
}

// Playable reports whether streamlink can find a stream for watchURL.
// Any failure counts as not playable.
func (l *Launcher) Playable(ctx context.Context, watchURL string) bool {
	p := l.profiles.Resolve(ctx, profile.ToolStreamlink)

	out, diag, err := l.capture(ctx, "streamlink-probe", l.cfg.Tools.Streamlink,
		ProbeArgs(watchURL, p, l.cookies(p)), l.cfg.ProbeTimeout)

	playable := err == nil && !containsMarker(out, diag)
	metrics.IncProbe(playable)

	ev := l.logger.Debug()
	if !playable {
		ev = l.logger.Info()
	}
	ev.Str(xglog.FieldEvent, "strategy.probe").
		Str("watch_url", watchURL).
		Bool("playable", playable).
		AnErr("probe_err", err).
		Msg("passthrough probe finished")
	return playable
}

// capture runs a short-lived command and collects its stdout, bounded by timeout.
func (l *Launcher) capture(ctx context.Context, name, path string, args []string, timeout time.Duration) ([]byte, []string, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	h, err := proc.Spawn(ctx, proc.Command{Name: name, Path: path, Args: args})
	if err != nil {
		return nil, nil, err
	}
	defer func() { _ = h.Kill(l.cfg.KillTimeout) }()

	type result struct {
		out []byte
		err error
	}
	done := make(chan result, 1)
	stdout := h.Stdout()
	go func() {
		out, err := io.ReadAll(stdout)
		done <- result{out, err}
	}()

	select {
	case r := <-done:
		if err := h.Wait(ctx); err != nil {
			return r.out, h.Diagnostics(20), err
		}
		return r.out, h.Diagnostics(20), r.err
	case <-ctx.Done():
		_ = h.Kill(l.cfg.KillTimeout)
		<-done
		return nil, h.Diagnostics(20), fmt.Errorf("%s: %w", name, ctx.Err())
	}
}

func (l *Launcher) cookies(p profile.Profile) []Cookie {
	if p.CookieFile == "" {
		return nil
	}
	all, err := ReadCookieFile(p.CookieFile)
	if err != nil {
		l.logger.Warn().Err(err).
			Str(xglog.FieldEvent, "strategy.cookies_unreadable").
			Str("cookie_file", p.CookieFile).
			Msg("ignoring cookie file")
		return nil
	}
	return youtubeCookies(all)
}

func containsMarker(out []byte, diag []string) bool {
	if bytes.Contains(bytes.ToLower(out), []byte(noPlayableMarker)) {
		return true
	}
	for _, line := range diag {
		if strings.Contains(strings.ToLower(line), noPlayableMarker) {
			return true
		}
	}
	return false
}

// hasMediaURL reports whether the yt-dlp info JSON selected at least one
// downloadable format.
func hasMediaURL(out []byte) bool {
	var info struct {
		URL              string `json:"url"`
		RequestedFormats []struct {
			URL string `json:"url"`
		} `json:"requested_formats"`
	}
	if err := json.Unmarshal(out, &info); err != nil {
		return false
	}
	if isHTTP(info.URL) {
		return true
	}
	for _, f := range info.RequestedFormats {
		if isHTTP(f.URL) {
			return true
		}
	}
	return false
}

// infoPipe returns the read end of a pipe that yields info and then EOF.
// The writer goroutine ends once the reader drains or closes it.
func infoPipe(info []byte) (*os.File, error) {
	r, w, err := os.Pipe()
	if err != nil {
		return nil, fmt.Errorf("info pipe: %w", err)
	}
	go func() {
		_, _ = w.Write(info)
		_ = w.Close()
	}()
	return r, nil
}

func lastLine(diag []string) string {
	if len(diag) == 0 {
		return ""
	}
	return ": " + diag[len(diag)-1]
}
