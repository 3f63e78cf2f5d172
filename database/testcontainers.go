package database

import (
	"context"
	"database/sql"
	"testing"

	"github.com/stretchr/testify/require"
	tc "github.com/testcontainers/testcontainers-go"
	tclog "github.com/testcontainers/testcontainers-go/log"
	"github.com/testcontainers/testcontainers-go/modules/postgres"

	"github.com/kvk-connect/kvk-sync/internal/db"
)

type nopLogger struct{}

func (*nopLogger) Printf(_ string, _ ...any) {}

var _ tclog.Logger = (*nopLogger)(nil)

var (
	dbName = "testdb"
	dbUser = "testuser"
	dbPass = "testpass"
)

// SetupTestDB creates a Postgres container using testcontainers and runs migrations.
// The test is skipped in -short mode.
func SetupTestDB(t *testing.T) (*sql.DB, string) {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping postgres container test in short mode")
	}

	ctx := context.Background()

	postgresContainer, err := postgres.Run(
		ctx,
		"postgres:16-alpine",
		postgres.WithDatabase(dbName),
		postgres.WithUsername(dbUser),
		postgres.WithPassword(dbPass),
		postgres.BasicWaitStrategies(),
		tc.WithLogger(&nopLogger{}),
	)
	tc.CleanupContainer(t, postgresContainer)
	require.NoError(t, err)

	connStr, err := postgresContainer.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	// Apply, roll back the newest step and reapply so down migrations stay honest
	require.NoError(t, MigrateUp(connStr))
	m, err := NewFromConnectionString(connStr)
	require.NoError(t, err)
	require.NoError(t, m.Steps(-1))
	_, _ = m.Close()
	require.NoError(t, MigrateUp(connStr))

	target, err := db.ParseURL(connStr)
	require.NoError(t, err)
	conn, err := sql.Open(target.DriverName(), target.DSN)
	require.NoError(t, err)
	require.NoError(t, conn.PingContext(ctx))
	t.Cleanup(func() { _ = conn.Close() })

	return conn, connStr
}
