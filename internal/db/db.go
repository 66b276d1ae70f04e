package db

import (
	"errors"
	"fmt"

	"github.com/AdamBeresnev/padel-tournament/internal/config"
	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/database/sqlite3"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
)

// Open connects to the configured database. For sqlite the DSN is expected to enable
// foreign keys and immediate transactions; the pragma is repeated for DSNs that don't.
func Open(cfg config.DatabaseConfig) (*sqlx.DB, error) {
	conn, err := sqlx.Connect(cfg.Driver, cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to %s: %w", cfg.Driver, err)
	}

	if cfg.Driver == "sqlite3" {
		if _, err := conn.Exec("PRAGMA foreign_keys = ON;"); err != nil {
			conn.Close()
			return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
		}
	}

	return conn, nil
}

// RunMigrations applies every pending migration found at sourceURL (e.g. file://migrations).
func RunMigrations(conn *sqlx.DB, sourceURL string) error {
	var (
		driver database.Driver
		err    error
	)

	name := conn.DriverName()
	switch name {
	case "sqlite3":
		driver, err = sqlite3.WithInstance(conn.DB, &sqlite3.Config{})
	case "postgres":
		driver, err = postgres.WithInstance(conn.DB, &postgres.Config{})
	default:
		return fmt.Errorf("no migration driver for %q", name)
	}
	if err != nil {
		return fmt.Errorf("failed to create migrate driver instance: %w", err)
	}

	m, err := migrate.NewWithDatabaseInstance(sourceURL, name, driver)
	if err != nil {
		return fmt.Errorf("failed to create migrate instance: %w", err)
	}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("failed to apply migrations: %w", err)
	}
	return nil
}
