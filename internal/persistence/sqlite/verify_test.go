// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package sqlite

import (
	"context"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDSN(t *testing.T) {
	rw := DSN("/data/catalog.db", DefaultConfig())
	assert.True(t, strings.HasPrefix(rw, "file:/data/catalog.db?"))
	assert.Contains(t, rw, "journal_mode%28WAL%29")
	assert.NotContains(t, rw, "mode=ro")

	ro := DSN("/data/catalog.db", ReaderConfig())
	assert.Contains(t, ro, "mode=ro")
	assert.NotContains(t, ro, "journal_mode")
	assert.Contains(t, ro, "busy_timeout%285000%29")
}

func TestOpen_ReadOnlyRejectsWrites(t *testing.T) {
	path := filepath.Join(t.TempDir(), "catalog.db")

	db, err := Open(path, DefaultConfig())
	require.NoError(t, err)
	_, err = db.Exec("CREATE TABLE t (id INTEGER PRIMARY KEY)")
	require.NoError(t, err)
	require.NoError(t, db.Close())

	ro, err := Open(path, ReaderConfig())
	require.NoError(t, err)
	defer ro.Close()

	var n int
	require.NoError(t, ro.QueryRow("SELECT COUNT(*) FROM t").Scan(&n))
	assert.Equal(t, 0, n)

	_, err = ro.Exec("INSERT INTO t (id) VALUES (1)")
	assert.Error(t, err)
}

func TestCheck_HealthyDatabase(t *testing.T) {
	db, err := Open(filepath.Join(t.TempDir(), "ok.db"), DefaultConfig())
	require.NoError(t, err)
	defer db.Close()

	_, err = db.Exec("CREATE TABLE t (id INTEGER PRIMARY KEY, data TEXT)")
	require.NoError(t, err)

	issues, err := Check(context.Background(), db, true)
	require.NoError(t, err)
	assert.Nil(t, issues)
}
