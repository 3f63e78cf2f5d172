package database

import (
	"errors"
	"path/filepath"
	"testing"

	"github.com/golang-migrate/migrate/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var tables = []string{"signalen", "basisprofielen", "vestigingen", "vestigingsprofielen"}

func TestNewFromConnectionString_RejectsUnknownScheme(t *testing.T) {
	t.Parallel()

	_, err := NewFromConnectionString("mysql://localhost/kvk")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported database scheme")
}

func TestMigrations_SQLiteUpDown(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "migrate.db")
	m, err := NewFromConnectionString("sqlite:///" + path)
	require.NoError(t, err)
	t.Cleanup(func() { _, _ = m.Close() })

	require.NoError(t, m.Up())
	version, dirty, err := m.Version()
	require.NoError(t, err)
	assert.False(t, dirty)
	assert.Equal(t, uint(1), version)

	assert.ErrorIs(t, m.Up(), migrate.ErrNoChange)

	require.NoError(t, m.Down())
	_, _, err = m.Version()
	assert.True(t, errors.Is(err, migrate.ErrNilVersion))
}

func TestSetupTestSQLite_CreatesSchema(t *testing.T) {
	t.Parallel()

	conn := SetupTestSQLite(t)
	for _, table := range tables {
		var name string
		err := conn.QueryRow(`SELECT name FROM sqlite_master WHERE type = 'table' AND name = $1`, table).Scan(&name)
		require.NoError(t, err, table)
		assert.Equal(t, table, name)
	}
}

func TestSetupTestDB_CreatesSchema(t *testing.T) {
	conn, _ := SetupTestDB(t)
	for _, table := range tables {
		var exists bool
		err := conn.QueryRow(
			`SELECT EXISTS (SELECT 1 FROM information_schema.tables WHERE table_name = $1)`, table,
		).Scan(&exists)
		require.NoError(t, err)
		assert.True(t, exists, table)
	}
}
