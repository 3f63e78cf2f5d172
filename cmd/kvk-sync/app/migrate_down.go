package app

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/golang-migrate/migrate/v4"
	"github.com/spf13/cobra"

	"github.com/kvk-connect/kvk-sync/database"
)

func newMigrateDownCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "down",
		Short: "Revert database migrations",
		Long: `Revert applied migrations.
WARNING: This operation can result in data loss. Use with caution.

Examples:
  # Revert the latest migration
  kvk-sync migrate down --num-steps 1 --yes

  # Revert all migrations (WARNING: drops every table)
  kvk-sync migrate down --yes`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			n, err := steps(cmd)
			if err != nil {
				return err
			}

			prompt := "WARNING: This will revert ALL migrations and delete every stored record. Continue?"
			if n > 0 {
				prompt = fmt.Sprintf("WARNING: This will revert %d migration(s) and may delete data. Continue?", n)
			}
			if err := confirm(cmd, prompt); err != nil {
				if errors.Is(err, errCancelled) {
					slog.Info("Migration cancelled")
				}
				return err
			}

			m, _, err := openMigrator(cmd, opts)
			if err != nil {
				return err
			}
			defer closeMigrator(m)

			if err := executeMigrateDown(m, n); err != nil {
				return err
			}
			displayMigrationVersion(m)
			return nil
		},
	}
}

func executeMigrateDown(m database.Migrator, n int) error {
	var err error
	if n == 0 {
		slog.Warn("Reverting all migrations")
		err = m.Down()
	} else {
		slog.Info("Reverting migrations", "steps", n)
		err = m.Steps(-n)
	}
	if errors.Is(err, migrate.ErrNoChange) {
		slog.Info("No migrations to revert, database is already at the oldest version")
		return nil
	}
	if err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}
	slog.Info("Migration completed successfully")
	return nil
}
