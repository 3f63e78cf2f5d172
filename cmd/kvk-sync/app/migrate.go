package app

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"strings"

	"github.com/golang-migrate/migrate/v4"
	"github.com/spf13/cobra"

	"github.com/kvk-connect/kvk-sync/database"
	"github.com/kvk-connect/kvk-sync/internal/db"
)

// errCancelled is returned when the confirmation prompt is declined
var errCancelled = errors.New("migration cancelled by user")

func newMigrateCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Database migration tool",
		Long:  `Manage the schema version of the Postgres or SQLite database. Use with 'up' or 'down'.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cmd.Usage()
		},
	}

	cmd.PersistentFlags().BoolP("yes", "y", false, "Answer yes to all questions")
	cmd.PersistentFlags().UintP("num-steps", "n", 0, "Number of steps to migrate (0 = all)")

	cmd.AddCommand(newMigrateUpCmd(opts), newMigrateDownCmd(opts))
	return cmd
}

// openMigrator loads the configuration and returns a migrator for the configured database
func openMigrator(cmd *cobra.Command, opts *rootOptions) (database.Migrator, db.Target, error) {
	cfg, err := loadConfig(cmd, opts)
	if err != nil {
		return nil, db.Target{}, err
	}
	if err := cfg.RequireDatabase(); err != nil {
		return nil, db.Target{}, err
	}
	connString, err := cfg.Database.GetConnectionString()
	if err != nil {
		return nil, db.Target{}, fmt.Errorf("failed to build connection string: %w", err)
	}
	target, err := db.ParseURL(connString)
	if err != nil {
		return nil, db.Target{}, err
	}
	m, err := database.NewFromConnectionString(connString)
	if err != nil {
		return nil, db.Target{}, fmt.Errorf("failed to create migrator: %w", err)
	}
	return m, target, nil
}

func closeMigrator(m database.Migrator) {
	srcErr, dbErr := m.Close()
	if err := errors.Join(srcErr, dbErr); err != nil {
		slog.Error("Error closing migrator", "error", err)
	}
}

// steps reads --num-steps as an int
func steps(cmd *cobra.Command) (int, error) {
	n, err := cmd.Flags().GetUint("num-steps")
	if err != nil {
		return 0, fmt.Errorf("failed to get num-steps flag: %w", err)
	}
	if n > math.MaxInt {
		return 0, fmt.Errorf("number of steps exceeds maximum allowed value")
	}
	return int(n), nil // #nosec G115 -- overflow checked above
}

// confirm asks prompt on out unless --yes is set; anything but y or yes declines
func confirm(cmd *cobra.Command, prompt string) error {
	if yes, _ := cmd.Flags().GetBool("yes"); yes {
		return nil
	}
	if _, err := fmt.Fprintf(cmd.OutOrStdout(), "%s (yes/no): ", prompt); err != nil {
		return err
	}
	answer, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("failed to read user input: %w", err)
	}
	switch strings.ToLower(strings.TrimSpace(answer)) {
	case "y", "yes":
		return nil
	default:
		return errCancelled
	}
}

func displayMigrationVersion(m database.Migrator) {
	version, dirty, err := m.Version()
	switch {
	case errors.Is(err, migrate.ErrNilVersion):
		slog.Info("Database schema has been completely removed")
	case err != nil:
		slog.Warn("Failed to get migration version", "error", err)
	case dirty:
		slog.Warn("Current migration version is dirty, manual intervention may be required", "version", version)
	default:
		slog.Info("Current migration version", "version", version)
	}
}
