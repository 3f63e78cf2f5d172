// Package database provides database migration tooling.
package database

import (
	"embed"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/pgx/v5" // registers the pgx5:// scheme
	_ "github.com/golang-migrate/migrate/v4/database/sqlite3" // registers the sqlite3:// scheme
	"github.com/golang-migrate/migrate/v4/source"
	"github.com/golang-migrate/migrate/v4/source/iofs"

	"github.com/kvk-connect/kvk-sync/internal/db"
)

//go:embed migrations/postgres/*.sql migrations/sqlite3/*.sql
var fs embed.FS

// migrationsFromSource returns the embedded migrations of a dialect.
func migrationsFromSource(dialect db.Dialect) (source.Driver, error) {
	return iofs.New(fs, "migrations/"+string(dialect))
}

// Migrator is the interface for the migration tooling.
type Migrator interface {
	Up() error
	Down() error
	Steps(int) error
	Version() (uint, bool, error)
	Close() (error, error)
}

// NewFromConnectionString returns a new migration instance for the database behind connString.
// The dialect, and with it the migration set, is derived from the URL.
func NewFromConnectionString(connString string) (Migrator, error) {
	target, err := db.ParseURL(connString)
	if err != nil {
		return nil, err
	}

	d, err := migrationsFromSource(target.Dialect)
	if err != nil {
		return nil, fmt.Errorf("failed to load %s migrations: %w", target.Dialect, err)
	}

	m, err := migrate.NewWithSourceInstance("iofs", d, target.MigrateURL())
	if err != nil {
		return nil, fmt.Errorf("failed to create migrator: %w", err)
	}
	return m, nil
}
