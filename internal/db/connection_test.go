package db

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kvk-connect/kvk-sync/internal/config"
)

const sqliteParams = "_busy_timeout=5000&_foreign_keys=1&_journal_mode=WAL"

func TestParseURL(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name        string
		raw         string
		wantDialect Dialect
		wantDSN     string
		wantMigrate string
		wantErr     bool
	}{
		{
			name:        "postgres",
			raw:         "postgres://kvk:secret@db:5432/kvk?sslmode=disable",
			wantDialect: DialectPostgres,
			wantDSN:     "postgres://kvk:secret@db:5432/kvk?sslmode=disable",
			wantMigrate: "pgx5://kvk:secret@db:5432/kvk?sslmode=disable",
		},
		{
			name:        "postgresql scheme",
			raw:         "postgresql://kvk@db/kvk",
			wantDialect: DialectPostgres,
			wantDSN:     "postgres://kvk@db/kvk",
			wantMigrate: "pgx5://kvk@db/kvk",
		},
		{
			name:        "sqlalchemy driver suffix",
			raw:         "postgresql+psycopg2://kvk@db/kvk",
			wantDialect: DialectPostgres,
			wantDSN:     "postgres://kvk@db/kvk",
			wantMigrate: "pgx5://kvk@db/kvk",
		},
		{
			name:        "sqlalchemy relative sqlite",
			raw:         "sqlite:///kvk.db",
			wantDialect: DialectSQLite,
			wantDSN:     "kvk.db?" + sqliteParams,
			wantMigrate: "sqlite3://kvk.db?" + sqliteParams,
		},
		{
			name:        "sqlalchemy absolute sqlite",
			raw:         "sqlite:////var/lib/kvk.db",
			wantDialect: DialectSQLite,
			wantDSN:     "/var/lib/kvk.db?" + sqliteParams,
			wantMigrate: "sqlite3:///var/lib/kvk.db?" + sqliteParams,
		},
		{
			name:        "migrate style sqlite",
			raw:         "sqlite3:///var/lib/kvk.db",
			wantDialect: DialectSQLite,
			wantDSN:     "/var/lib/kvk.db?" + sqliteParams,
			wantMigrate: "sqlite3:///var/lib/kvk.db?" + sqliteParams,
		},
		{
			name:        "bare path keeps explicit parameters",
			raw:         "data/kvk.db?_busy_timeout=100",
			wantDialect: DialectSQLite,
			wantDSN:     "data/kvk.db?_busy_timeout=100&_foreign_keys=1&_journal_mode=WAL",
			wantMigrate: "sqlite3://data/kvk.db?_busy_timeout=100&_foreign_keys=1&_journal_mode=WAL",
		},
		{
			name:        "file prefix",
			raw:         "file:kvk.db",
			wantDialect: DialectSQLite,
			wantDSN:     "kvk.db?" + sqliteParams,
			wantMigrate: "sqlite3://kvk.db?" + sqliteParams,
		},
		{name: "empty", raw: "  ", wantErr: true},
		{name: "unsupported scheme", raw: "mysql://db/kvk", wantErr: true},
		{name: "in memory", raw: ":memory:", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			target, err := ParseURL(tt.raw)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantDialect, target.Dialect)
			assert.Equal(t, tt.wantDSN, target.DSN)
			assert.Equal(t, tt.wantMigrate, target.MigrateURL())
		})
	}
}

func TestTarget_DriverName(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "pgx", Target{Dialect: DialectPostgres}.DriverName())
	assert.Equal(t, "sqlite3", Target{Dialect: DialectSQLite}.DriverName())
}

func TestNewConnection(t *testing.T) {
	t.Parallel()

	t.Run("nil config", func(t *testing.T) {
		t.Parallel()
		_, err := NewConnection(context.Background(), nil)
		require.Error(t, err)
	})

	t.Run("no database configured", func(t *testing.T) {
		t.Parallel()
		_, err := NewConnection(context.Background(), &config.DatabaseConfig{})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "no database configured")
	})

	t.Run("invalid lifetime", func(t *testing.T) {
		t.Parallel()
		_, err := NewConnection(context.Background(), &config.DatabaseConfig{
			URL:             filepath.Join(t.TempDir(), "kvk.db"),
			ConnMaxLifetime: "forever",
		})
		require.Error(t, err)
	})

	t.Run("sqlite file", func(t *testing.T) {
		t.Parallel()
		conn, err := NewConnection(context.Background(), &config.DatabaseConfig{
			URL: filepath.Join(t.TempDir(), "kvk.db"),
		})
		require.NoError(t, err)
		t.Cleanup(func() { _ = conn.Close() })

		assert.Equal(t, DialectSQLite, conn.Dialect)
		require.NoError(t, conn.Ping(context.Background()))

		var fk int
		require.NoError(t, conn.DB.QueryRow("PRAGMA foreign_keys").Scan(&fk))
		assert.Equal(t, 1, fk)
	})
}

func TestConnection_NilDB(t *testing.T) {
	t.Parallel()

	conn := &Connection{}
	require.Error(t, conn.Ping(context.Background()))
	require.NoError(t, conn.Close())
}
