package db

import (
	"path/filepath"
	"testing"

	"github.com/AdamBeresnev/padel-tournament/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpenAndMigrate(t *testing.T) {
	dsn := filepath.Join(t.TempDir(), "padel.db") + "?_foreign_keys=on&_busy_timeout=5000&_txlock=immediate"

	conn, err := Open(config.DatabaseConfig{Driver: "sqlite3", DSN: dsn})
	require.NoError(t, err)
	defer conn.Close()

	require.NoError(t, RunMigrations(conn, "file://../../migrations"))
	// second run is a no-op
	require.NoError(t, RunMigrations(conn, "file://../../migrations"))

	var tables []string
	err = conn.Select(&tables, "SELECT name FROM sqlite_master WHERE type = 'table' AND name NOT LIKE 'sqlite_%' ORDER BY name")
	require.NoError(t, err)

	for _, table := range []string{"tournaments", "categories", "teams", "zones", "zone_teams", "matches", "match_sets", "americano_pools", "americano_pool_matches", "americano_rankings"} {
		assert.Contains(t, tables, table)
	}
}

func TestOpenUnknownDriver(t *testing.T) {
	_, err := Open(config.DatabaseConfig{Driver: "oracle", DSN: "whatever"})
	assert.Error(t, err)
}
