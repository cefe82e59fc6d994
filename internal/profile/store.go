// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package profile

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/catatau597/tube-sub000/internal/persistence/sqlite"
)

// Schema is the catalogue layout the store reads. The catalogue owner
// creates it; OpenStore applies it only for writable databases.
const Schema = `
CREATE TABLE IF NOT EXISTS tool_profiles (
	id          INTEGER PRIMARY KEY AUTOINCREMENT,
	tool        TEXT    NOT NULL,
	name        TEXT    NOT NULL,
	flags       TEXT    NOT NULL DEFAULT '[]',
	cookie_file TEXT    NOT NULL DEFAULT '',
	user_agent  TEXT    NOT NULL DEFAULT '',
	active      INTEGER NOT NULL DEFAULT 0,
	updated_at  INTEGER NOT NULL DEFAULT 0
);
CREATE INDEX IF NOT EXISTS idx_tool_profiles_active ON tool_profiles(tool, active);
CREATE TABLE IF NOT EXISTS credentials (
	id          INTEGER PRIMARY KEY AUTOINCREMENT,
	kind        TEXT    NOT NULL,
	cookie_file TEXT    NOT NULL DEFAULT '',
	user_agent  TEXT    NOT NULL DEFAULT '',
	created_at  INTEGER NOT NULL DEFAULT 0
);
CREATE INDEX IF NOT EXISTS idx_credentials_kind ON credentials(kind, created_at);
`

// SQLiteStore reads profiles from the catalogue database.
type SQLiteStore struct {
	db *sql.DB
}

// OpenStore opens the catalogue at path. With cfg.ReadOnly unset the schema is
// created when missing.
func OpenStore(ctx context.Context, path string, cfg sqlite.Config) (*SQLiteStore, error) {
	db, err := sqlite.Open(path, cfg)
	if err != nil {
		return nil, fmt.Errorf("open profile store: %w", err)
	}

	issues, err := sqlite.Check(ctx, db, false)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("verify profile store: %w", err)
	}
	if len(issues) > 0 {
		_ = db.Close()
		return nil, fmt.Errorf("profile store corrupt: %s", strings.Join(issues, "; "))
	}

	if !cfg.ReadOnly {
		if _, err := db.ExecContext(ctx, Schema); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply profile schema: %w", err)
		}
	}
	return &SQLiteStore{db: db}, nil
}

// Close releases the connection pool.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// ActiveProfile implements Store. When several profiles are flagged active
// for a tool, the most recently updated wins.
func (s *SQLiteStore) ActiveProfile(ctx context.Context, tool string) (Profile, bool, error) {
	const q = `SELECT flags, cookie_file, user_agent FROM tool_profiles
		WHERE tool = ? AND active = 1
		ORDER BY updated_at DESC, id DESC LIMIT 1`

	var flags string
	var p Profile
	err := s.db.QueryRowContext(ctx, q, tool).Scan(&flags, &p.CookieFile, &p.UserAgent)
	if errors.Is(err, sql.ErrNoRows) {
		return Profile{}, false, nil
	}
	if err != nil {
		return Profile{}, false, fmt.Errorf("query active profile for %s: %w", tool, err)
	}
	if flags != "" {
		if err := json.Unmarshal([]byte(flags), &p.Flags); err != nil {
			return Profile{}, false, fmt.Errorf("decode flags for %s: %w", tool, err)
		}
	}
	return p, true, nil
}

// LatestCredential implements Store.
func (s *SQLiteStore) LatestCredential(ctx context.Context, kind string) (Profile, bool, error) {
	const q = `SELECT cookie_file, user_agent FROM credentials
		WHERE kind = ?
		ORDER BY created_at DESC, id DESC LIMIT 1`

	var p Profile
	err := s.db.QueryRowContext(ctx, q, kind).Scan(&p.CookieFile, &p.UserAgent)
	if errors.Is(err, sql.ErrNoRows) {
		return Profile{}, false, nil
	}
	if err != nil {
		return Profile{}, false, fmt.Errorf("query credential %s: %w", kind, err)
	}
	return p, true, nil
}
