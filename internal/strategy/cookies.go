// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package strategy

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"
)

// Cookie is one name/value pair from a Netscape cookie file.
type Cookie struct {
	Domain string
	Name   string
	Value  string
}

// ReadCookieFile loads a Netscape-format cookie file.
func ReadCookieFile(path string) ([]Cookie, error) {
	f, err := os.Open(path) // #nosec G304 -- path comes from the tool profile
	if err != nil {
		return nil, fmt.Errorf("open cookie file: %w", err)
	}
	defer f.Close()
	return ParseCookies(f)
}

// ParseCookies parses Netscape cookie lines. Comment lines are skipped except
// the #HttpOnly_ prefix, which marks a regular entry.
func ParseCookies(r io.Reader) ([]Cookie, error) {
	var out []Cookie
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.TrimRight(scanner.Text(), "\r")
		line = strings.TrimPrefix(line, "#HttpOnly_")
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		fields := strings.Split(line, "\t")
		if len(fields) < 7 || fields[5] == "" {
			continue
		}
		out = append(out, Cookie{Domain: fields[0], Name: fields[5], Value: fields[6]})
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read cookies: %w", err)
	}
	return out, nil
}

func youtubeCookies(all []Cookie) []Cookie {
	var out []Cookie
	for _, c := range all {
		d := strings.TrimPrefix(c.Domain, ".")
		if d == "youtube.com" || strings.HasSuffix(d, ".youtube.com") || d == "google.com" || strings.HasSuffix(d, ".google.com") {
			out = append(out, c)
		}
	}
	return out
}
