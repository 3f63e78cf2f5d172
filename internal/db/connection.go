// Package db contains code for connecting to the database.
package db

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib" // Needs to be imported for Postgres driver
	_ "github.com/mattn/go-sqlite3"    // Needs to be imported for SQLite driver

	"github.com/kvk-connect/kvk-sync/internal/config"
)

// Dialect identifies the SQL flavour of a database
type Dialect string

const (
	// DialectPostgres is served by the pgx driver
	DialectPostgres Dialect = "postgres"

	// DialectSQLite is served by the go-sqlite3 driver
	DialectSQLite Dialect = "sqlite3"
)

const (
	defaultMaxOpenConns    = 25
	defaultMaxIdleConns    = 5
	defaultConnMaxLifetime = 5 * time.Minute
	defaultPingTimeout     = 10 * time.Second
)

// sqliteDefaults are added to SQLite DSNs that do not set them
var sqliteDefaults = [][2]string{
	{"_foreign_keys", "1"},
	{"_busy_timeout", "5000"},
	{"_journal_mode", "WAL"},
}

// Target is a parsed database URL
type Target struct {
	Dialect Dialect
	// DSN is the data source name handed to the driver
	DSN string
}

// DriverName returns the database/sql driver registered for the dialect
func (t Target) DriverName() string {
	if t.Dialect == DialectPostgres {
		return "pgx"
	}
	return "sqlite3"
}

// MigrateURL returns the URL understood by the golang-migrate driver of the dialect
func (t Target) MigrateURL() string {
	if t.Dialect == DialectPostgres {
		return "pgx5://" + strings.TrimPrefix(t.DSN, "postgres://")
	}
	return "sqlite3://" + t.DSN
}

// ParseURL detects the dialect of raw.
//
// Postgres is selected by the postgres:// and postgresql:// schemes, including
// SQLAlchemy style driver suffixes such as postgresql+psycopg2://. Everything
// else is treated as SQLite: sqlite:///relative.db, sqlite:////absolute.db,
// sqlite3:///absolute.db, file:path.db or a bare file path.
func ParseURL(raw string) (Target, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return Target{}, fmt.Errorf("database URL is empty")
	}

	scheme, rest, hasScheme := strings.Cut(raw, "://")
	if hasScheme {
		base, _, _ := strings.Cut(strings.ToLower(scheme), "+")
		switch base {
		case "postgres", "postgresql":
			return Target{Dialect: DialectPostgres, DSN: "postgres://" + rest}, nil
		case "sqlite", "sqlite3":
			// sqlite:///x.db is relative, sqlite:////x.db absolute
			path := strings.TrimPrefix(rest, "/")
			if base == "sqlite3" {
				path = rest
			}
			return sqliteTarget(path)
		default:
			return Target{}, fmt.Errorf("unsupported database scheme %q", scheme)
		}
	}

	return sqliteTarget(strings.TrimPrefix(raw, "file:"))
}

func sqliteTarget(dsn string) (Target, error) {
	path, query, _ := strings.Cut(dsn, "?")
	if path == "" {
		return Target{}, fmt.Errorf("sqlite database path is empty")
	}
	if path == ":memory:" {
		// Every pooled connection would see its own empty database
		return Target{}, fmt.Errorf("in-memory sqlite databases are not supported, use a file path")
	}

	params, err := url.ParseQuery(query)
	if err != nil {
		return Target{}, fmt.Errorf("invalid sqlite parameters: %w", err)
	}
	for _, kv := range sqliteDefaults {
		if !params.Has(kv[0]) {
			params.Set(kv[0], kv[1])
		}
	}
	return Target{Dialect: DialectSQLite, DSN: path + "?" + params.Encode()}, nil
}

// Connection wraps the database handle and its dialect
type Connection struct {
	DB      *sql.DB
	Dialect Dialect
}

// NewConnection opens and verifies a connection from the provided configuration
func NewConnection(ctx context.Context, cfg *config.DatabaseConfig) (*Connection, error) {
	if cfg == nil {
		return nil, fmt.Errorf("database configuration is required")
	}

	connStr, err := cfg.GetConnectionString()
	if err != nil {
		return nil, err
	}
	target, err := ParseURL(connStr)
	if err != nil {
		return nil, err
	}

	maxOpenConns := cfg.MaxOpenConns
	if maxOpenConns == 0 {
		maxOpenConns = defaultMaxOpenConns
	}

	maxIdleConns := cfg.MaxIdleConns
	if maxIdleConns == 0 {
		maxIdleConns = defaultMaxIdleConns
	}

	connMaxLifetime, err := cfg.GetConnMaxLifetime()
	if err != nil {
		return nil, fmt.Errorf("invalid connection max lifetime: %w", err)
	}
	if connMaxLifetime == 0 {
		connMaxLifetime = defaultConnMaxLifetime
	}

	sqlDB, err := sql.Open(target.DriverName(), target.DSN)
	if err != nil {
		return nil, fmt.Errorf("failed to open database connection: %w", err)
	}

	sqlDB.SetMaxOpenConns(maxOpenConns)
	sqlDB.SetMaxIdleConns(maxIdleConns)
	sqlDB.SetConnMaxLifetime(connMaxLifetime)

	pingCtx, cancel := context.WithTimeout(ctx, defaultPingTimeout)
	defer cancel()
	if err := sqlDB.PingContext(pingCtx); err != nil {
		if closeErr := sqlDB.Close(); closeErr != nil {
			slog.Error("Failed to close database connection after ping failure", "error", closeErr)
		}
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	slog.Info("Database connection established", "dialect", target.Dialect)

	return &Connection{DB: sqlDB, Dialect: target.Dialect}, nil
}

// Close closes the database connection
func (c *Connection) Close() error {
	if c.DB != nil {
		slog.Debug("Closing database connection")
		return c.DB.Close()
	}
	return nil
}

// Ping verifies the database connection is still alive
func (c *Connection) Ping(ctx context.Context) error {
	if c.DB != nil {
		return c.DB.PingContext(ctx)
	}
	return fmt.Errorf("database connection is nil")
}
