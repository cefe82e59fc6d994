// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package profile resolves the flags, cookie file and user agent handed to an
// external tool.
package profile

import (
	"context"
	"slices"

	xglog "github.com/catatau597/tube-sub000/internal/log"
	"github.com/rs/zerolog"
)

// DefaultUserAgent is used when no profile or credential supplies one.
const DefaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36"

// Tool names a profile can be bound to.
const (
	ToolFFmpeg     = "ffmpeg"
	ToolStreamlink = "streamlink"
	ToolYtDlp      = "ytdlp"
)

// Profile is the resolved tool configuration. Values are never mutated after
// resolution.
type Profile struct {
	Flags      []string
	CookieFile string
	UserAgent  string
}

// Default returns the hard-coded fallback profile.
func Default() Profile {
	return Profile{UserAgent: DefaultUserAgent}
}

// Store reads tool profiles and legacy credentials.
type Store interface {
	// ActiveProfile returns the active profile bound to tool.
	ActiveProfile(ctx context.Context, tool string) (Profile, bool, error)
	// LatestCredential returns the most recently stored credential of kind.
	LatestCredential(ctx context.Context, kind string) (Profile, bool, error)
}

// CredentialKind maps a tool to the legacy credential kind it falls back to.
func CredentialKind(tool string) string {
	switch tool {
	case ToolStreamlink, ToolYtDlp:
		return "youtube"
	default:
		return "http"
	}
}

// Resolver picks the profile for a tool: the active profile bound to it, else
// the latest legacy credential, else Default. It never fails.
type Resolver struct {
	store  Store
	logger zerolog.Logger
}

// NewResolver creates a resolver. A nil store always yields Default.
func NewResolver(store Store) *Resolver {
	return &Resolver{store: store, logger: xglog.WithComponent("profile")}
}

// Resolve returns the profile for tool. Store errors are logged and skipped.
func (r *Resolver) Resolve(ctx context.Context, tool string) Profile {
	if r == nil || r.store == nil {
		return Default()
	}

	p, ok, err := r.store.ActiveProfile(ctx, tool)
	switch {
	case err != nil:
		r.logger.Warn().Err(err).
			Str(xglog.FieldEvent, "profile.lookup_failed").
			Str("tool", tool).
			Msg("active profile lookup failed")
	case ok:
		return normalize(p)
	}

	kind := CredentialKind(tool)
	p, ok, err = r.store.LatestCredential(ctx, kind)
	switch {
	case err != nil:
		r.logger.Warn().Err(err).
			Str(xglog.FieldEvent, "profile.credential_failed").
			Str("tool", tool).
			Str("kind", kind).
			Msg("legacy credential lookup failed")
	case ok:
		p.Flags = nil
		return normalize(p)
	}

	return Default()
}

func normalize(p Profile) Profile {
	if p.UserAgent == "" {
		p.UserAgent = DefaultUserAgent
	}
	p.Flags = slices.Clone(p.Flags)
	return p
}
