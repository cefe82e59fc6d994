// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package strategy

import (
	"fmt"
	"strings"

	"github.com/catatau597/tube-sub000/internal/profile"
)

// PlaceholderOptions controls the placeholder encoder.
type PlaceholderOptions struct {
	Width    int
	Height   int
	FPS      int
	FontFile string
}

// DefaultPlaceholderOptions returns 720p at 25 fps with the fontconfig default font.
func DefaultPlaceholderOptions() PlaceholderOptions {
	return PlaceholderOptions{Width: 1280, Height: 720, FPS: 25}
}

// PlaceholderArgs builds the ffmpeg arguments that loop imageURL at real-time
// rate with a silent audio track and the overlay lines burned in.
func PlaceholderArgs(imageURL string, ov Overlay, p profile.Profile, o PlaceholderOptions) []string {
	args := []string{"-hide_banner", "-loglevel", "error", "-nostdin"}
	args = append(args, p.Flags...)
	if isHTTP(imageURL) && p.UserAgent != "" {
		args = append(args, "-user_agent", p.UserAgent)
	}
	args = append(args,
		"-re", "-loop", "1", "-i", imageURL,
		"-f", "lavfi", "-i", "anullsrc=channel_layout=stereo:sample_rate=44100",
		"-vf", placeholderFilter(ov, o),
		"-map", "0:v", "-map", "1:a",
		"-c:v", "libx264", "-preset", "ultrafast", "-tune", "stillimage",
		"-pix_fmt", "yuv420p",
		"-r", fmt.Sprint(o.FPS), "-g", fmt.Sprint(o.FPS*2),
		"-c:a", "aac", "-b:a", "64k",
		"-f", "mpegts", "pipe:1",
	)
	return args
}

func placeholderFilter(ov Overlay, o PlaceholderOptions) string {
	parts := []string{
		fmt.Sprintf("scale=%d:%d:force_original_aspect_ratio=decrease", o.Width, o.Height),
		fmt.Sprintf("pad=%d:%d:(ow-iw)/2:(oh-ih)/2", o.Width, o.Height),
	}
	if ov.Line1 != "" {
		parts = append(parts, drawtext(ov.Line1, o, "h-th-140", 44))
	}
	if ov.Line2 != "" {
		parts = append(parts, drawtext(ov.Line2, o, "h-th-80", 34))
	}
	return strings.Join(parts, ",")
}

func drawtext(text string, o PlaceholderOptions, y string, size int) string {
	var b strings.Builder
	b.WriteString("drawtext=")
	if o.FontFile != "" {
		b.WriteString("fontfile=")
		b.WriteString(escapeGraph(escapeOption(o.FontFile)))
		b.WriteString(":")
	}
	b.WriteString("text=")
	b.WriteString(EscapeDrawtext(text))
	fmt.Fprintf(&b, ":fontcolor=white:fontsize=%d:box=1:boxcolor=black@0.6:boxborderw=12:x=(w-tw)/2:y=%s", size, y)
	return b.String()
}

// EscapeDrawtext escapes text for a drawtext text= value inside a filtergraph:
// first for text expansion, then the filter option level, then the graph level.
func EscapeDrawtext(text string) string {
	return escapeGraph(escapeOption(escapeWith(text, `\%`)))
}

func escapeOption(s string) string { return escapeWith(s, `\':`) }

func escapeGraph(s string) string { return escapeWith(s, `\'[],;`) }

func escapeWith(s, special string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if strings.ContainsRune(special, r) {
			b.WriteByte('\\')
		}
		b.WriteRune(r)
	}
	return b.String()
}

// StreamlinkArgs builds the passthrough arguments writing the best stream to stdout.
func StreamlinkArgs(watchURL string, p profile.Profile, cookies []Cookie) []string {
	args := append([]string{"--stdout"}, streamlinkCommon(p, cookies)...)
	return append(args, watchURL, "best")
}

// ProbeArgs builds the streamlink invocation that only lists available streams.
func ProbeArgs(watchURL string, p profile.Profile, cookies []Cookie) []string {
	return append(streamlinkCommon(p, cookies), watchURL)
}

func streamlinkCommon(p profile.Profile, cookies []Cookie) []string {
	args := []string{"--loglevel", "error"}
	if p.UserAgent != "" {
		args = append(args, "--http-header", "User-Agent="+p.UserAgent)
	}
	for _, c := range cookies {
		args = append(args, "--http-cookie", c.Name+"="+c.Value)
	}
	return append(args, p.Flags...)
}

// ResolveArgs builds the yt-dlp invocation printing the extracted info JSON.
func ResolveArgs(watchURL, format string, p profile.Profile) []string {
	args := append([]string{"--dump-single-json", "--no-warnings", "--no-playlist"}, ytDlpCommon(format, p)...)
	return append(args, watchURL)
}

// DownloadArgs builds the yt-dlp invocation that reads the resolved info JSON
// from stdin and streams the media to stdout without extracting again.
func DownloadArgs(format string, p profile.Profile) []string {
	args := append([]string{"--quiet", "--no-warnings", "--no-part", "--hls-use-mpegts"}, ytDlpCommon(format, p)...)
	return append(args, "--load-info-json", "-", "-o", "-")
}

func ytDlpCommon(format string, p profile.Profile) []string {
	var args []string
	if format != "" {
		args = append(args, "-f", format)
	}
	if p.UserAgent != "" {
		args = append(args, "--user-agent", p.UserAgent)
	}
	if p.CookieFile != "" {
		args = append(args, "--cookies", p.CookieFile)
	}
	return append(args, p.Flags...)
}

// RemuxArgs builds the ffmpeg arguments copying stdin into MPEG-TS on stdout.
func RemuxArgs() []string {
	return []string{
		"-hide_banner", "-loglevel", "error",
		"-i", "pipe:0",
		"-map", "0", "-c", "copy",
		"-f", "mpegts", "pipe:1",
	}
}

func isHTTP(u string) bool {
	return strings.HasPrefix(u, "http://") || strings.HasPrefix(u, "https://")
}
