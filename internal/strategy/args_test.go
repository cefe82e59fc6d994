// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package strategy

import (
	"strings"
	"testing"

	"github.com/catatau597/tube-sub000/internal/profile"
	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
)

func TestStreamlinkArgs(t *testing.T) {
	p := profile.Profile{Flags: []string{"--hls-live-edge", "2"}, UserAgent: "UA"}
	cookies := []Cookie{{Domain: ".youtube.com", Name: "SID", Value: "abc"}}

	got := StreamlinkArgs("https://www.youtube.com/watch?v=k1", p, cookies)
	want := []string{
		"--stdout",
		"--loglevel", "error",
		"--http-header", "User-Agent=UA",
		"--http-cookie", "SID=abc",
		"--hls-live-edge", "2",
		"https://www.youtube.com/watch?v=k1", "best",
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("StreamlinkArgs mismatch (-want +got):\n%s", diff)
	}

	probe := ProbeArgs("https://www.youtube.com/watch?v=k1", p, nil)
	wantProbe := []string{
		"--loglevel", "error",
		"--http-header", "User-Agent=UA",
		"--hls-live-edge", "2",
		"https://www.youtube.com/watch?v=k1",
	}
	if diff := cmp.Diff(wantProbe, probe); diff != "" {
		t.Errorf("ProbeArgs mismatch (-want +got):\n%s", diff)
	}
}

func TestYtDlpArgs(t *testing.T) {
	p := profile.Profile{Flags: []string{"--force-ipv4"}, CookieFile: "/c/yt.txt", UserAgent: "UA"}

	resolve := ResolveArgs("https://y/w", "best", p)
	wantResolve := []string{
		"--dump-single-json", "--no-warnings", "--no-playlist",
		"-f", "best",
		"--user-agent", "UA",
		"--cookies", "/c/yt.txt",
		"--force-ipv4",
		"https://y/w",
	}
	if diff := cmp.Diff(wantResolve, resolve); diff != "" {
		t.Errorf("ResolveArgs mismatch (-want +got):\n%s", diff)
	}

	download := DownloadArgs("", profile.Profile{})
	wantDownload := []string{
		"--quiet", "--no-warnings", "--no-part", "--hls-use-mpegts",
		"--load-info-json", "-", "-o", "-",
	}
	if diff := cmp.Diff(wantDownload, download); diff != "" {
		t.Errorf("DownloadArgs mismatch (-want +got):\n%s", diff)
	}
}

func TestRemuxArgs_ReadsStdinWritesStdout(t *testing.T) {
	args := RemuxArgs()
	assert.Contains(t, args, "pipe:0")
	assert.Equal(t, "pipe:1", args[len(args)-1])
	assert.Contains(t, strings.Join(args, " "), "-c copy")
}

func TestPlaceholderArgs(t *testing.T) {
	p := profile.Profile{UserAgent: "UA", Flags: []string{"-threads", "1"}}
	o := DefaultPlaceholderOptions()

	remote := PlaceholderArgs("https://i.ytimg.com/vi/k1/maxresdefault.jpg", Overlay{Line1: "Live in 5m"}, p, o)
	assert.Equal(t, []string{"-hide_banner", "-loglevel", "error", "-nostdin", "-threads", "1", "-user_agent", "UA"}, remote[:8])
	assert.Contains(t, remote, "-re")
	assert.Equal(t, []string{"-f", "mpegts", "pipe:1"}, remote[len(remote)-3:])

	local := PlaceholderArgs("/srv/placeholder.png", Overlay{}, p, o)
	assert.NotContains(t, local, "-user_agent")

	vf := local[indexOf(local, "-vf")+1]
	assert.Equal(t, "scale=1280:720:force_original_aspect_ratio=decrease,pad=1280:720:(ow-iw)/2:(oh-ih)/2", vf)
}

func TestPlaceholderFilter_Lines(t *testing.T) {
	vf := placeholderFilter(Overlay{Line1: "Starts 20:00", Line2: "Tomorrow"}, DefaultPlaceholderOptions())
	assert.Equal(t, 2, strings.Count(vf, "drawtext="))
	assert.Contains(t, vf, `text=Starts 20\\:00:`)
	assert.Contains(t, vf, "text=Tomorrow:")
}

func TestEscapeDrawtext(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"plain", "plain"},
		{"20:00", `20\\:00`},
		{"it's", `it\\\'s`},
		{"a, b", `a\, b`},
		{"[x];", `\[x\]\;`},
		{"100%", `100\\\\%`},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, EscapeDrawtext(tt.in))
		})
	}
}

func TestParseCookies(t *testing.T) {
	src := strings.Join([]string{
		"# Netscape HTTP Cookie File",
		"",
		".youtube.com\tTRUE\t/\tTRUE\t0\tSID\tabc",
		"#HttpOnly_.youtube.com\tTRUE\t/\tTRUE\t0\tHSID\tdef",
		"example.org\tFALSE\t/\tFALSE\t0\tother\tzzz",
		"broken line",
	}, "\n")

	got, err := ParseCookies(strings.NewReader(src))
	assert.NoError(t, err)
	want := []Cookie{
		{Domain: ".youtube.com", Name: "SID", Value: "abc"},
		{Domain: ".youtube.com", Name: "HSID", Value: "def"},
		{Domain: "example.org", Name: "other", Value: "zzz"},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("ParseCookies mismatch (-want +got):\n%s", diff)
	}
	assert.Len(t, youtubeCookies(got), 2)
}

func indexOf(args []string, s string) int {
	for i, a := range args {
		if a == s {
			return i
		}
	}
	return -1
}
