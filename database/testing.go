package database

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"testing"

	"github.com/golang-migrate/migrate/v4"
	"github.com/stretchr/testify/require"

	"github.com/kvk-connect/kvk-sync/internal/db"
)

// MigrateUp applies every pending migration to the database behind connString
func MigrateUp(connString string) error {
	m, err := NewFromConnectionString(connString)
	if err != nil {
		return err
	}
	defer func() { _, _ = m.Close() }()

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return err
	}
	return nil
}

// SetupTestSQLite creates a migrated SQLite database in a temporary directory
func SetupTestSQLite(t *testing.T) *sql.DB {
	t.Helper()

	path := filepath.Join(t.TempDir(), "kvk.db")
	require.NoError(t, MigrateUp(path))

	target, err := db.ParseURL(path)
	require.NoError(t, err)

	conn, err := sql.Open(target.DriverName(), target.DSN)
	require.NoError(t, err)
	require.NoError(t, conn.PingContext(context.Background()))
	t.Cleanup(func() { _ = conn.Close() })

	return conn
}
