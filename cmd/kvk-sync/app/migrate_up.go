package app

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/golang-migrate/migrate/v4"
	"github.com/spf13/cobra"

	"github.com/kvk-connect/kvk-sync/database"
)

func newMigrateUpCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "up",
		Short: "Apply pending database migrations",
		Long: `Apply pending migrations to bring the schema up to date.

Examples:
  # Create or upgrade the schema
  kvk-sync migrate up --yes

  # Apply a single migration
  kvk-sync migrate up -n 1 -y`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			m, target, err := openMigrator(cmd, opts)
			if err != nil {
				return err
			}
			defer closeMigrator(m)

			n, err := steps(cmd)
			if err != nil {
				return err
			}
			if err := confirm(cmd, fmt.Sprintf("Apply migrations to the %s database?", target.Dialect)); err != nil {
				if errors.Is(err, errCancelled) {
					slog.Info("Migration cancelled")
					return nil
				}
				return err
			}
			if err := executeMigrateUp(m, n); err != nil {
				return err
			}
			displayMigrationVersion(m)
			return nil
		},
	}
}

func executeMigrateUp(m database.Migrator, n int) error {
	var err error
	if n == 0 {
		slog.Info("Applying all pending migrations")
		err = m.Up()
	} else {
		slog.Info("Applying migrations", "steps", n)
		err = m.Steps(n)
	}
	if errors.Is(err, migrate.ErrNoChange) {
		slog.Info("No migrations to apply, database is up to date")
		return nil
	}
	if err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}
	slog.Info("Migration completed successfully")
	return nil
}
