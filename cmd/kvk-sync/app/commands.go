// Package app provides the commands of the kvk-sync binary.
package app

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/kvk-connect/kvk-sync/internal/versions"
)

// ParseLogLevel maps a level name onto a slog.Level; ok is false for unknown names
func ParseLogLevel(s string) (level slog.Level, ok bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug, true
	case "info", "":
		return slog.LevelInfo, true
	case "warn", "warning":
		return slog.LevelWarn, true
	case "error":
		return slog.LevelError, true
	default:
		return slog.LevelInfo, false
	}
}

// NewRootCmd creates the root command. level is adjusted by --debug and the configured log level.
func NewRootCmd(level *slog.LevelVar) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:               "kvk-sync",
		DisableAutoGenTag: true,
		SilenceUsage:      true,
		Short:             "Synchronize the KvK registry into a local database",
		Long: `kvk-sync keeps a local Postgres or SQLite database in step with the
Dutch Chamber of Commerce (KvK) registry: it stores mutation signals and
fetches the base profiles, establishment lists and establishment profiles
that the signals show to be missing or outdated.`,
		Run: func(cmd *cobra.Command, _ []string) {
			// If no subcommand is provided, print help
			if err := cmd.Help(); err != nil {
				slog.Error("Error displaying help", "error", err)
			}
		},
	}

	v := viper.New()
	rootCmd.PersistentFlags().Bool("debug", false, "Enable debug logging")
	rootCmd.PersistentFlags().String("config", "", "Path to configuration file (YAML format)")
	if err := v.BindPFlag("debug", rootCmd.PersistentFlags().Lookup("debug")); err != nil {
		slog.Error("Error binding debug flag", "error", err)
	}
	rootCmd.PersistentPreRun = func(*cobra.Command, []string) {
		if v.GetBool("debug") && level != nil {
			level.Set(slog.LevelDebug)
		}
	}

	opts := &rootOptions{level: level, debug: func() bool { return v.GetBool("debug") }}
	rootCmd.AddCommand(
		newMutatiesCmd(opts),
		newBasisProfielCmd(opts),
		newVestigingsProfielCmd(opts),
		newVestigingenCmd(opts),
		newAbonnementenCmd(opts),
		newStatusCmd(opts),
		newMigrateCmd(opts),
		newVersionCmd(),
	)
	return rootCmd
}

// rootOptions is shared by the subcommands
type rootOptions struct {
	level *slog.LevelVar
	debug func() bool
}

func newVersionCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		RunE: func(cmd *cobra.Command, _ []string) error {
			info := versions.GetVersionInfo()
			format, err := cmd.Flags().GetString("format")
			if err != nil {
				return fmt.Errorf("failed to get format flag: %w", err)
			}

			if format == "json" {
				output, err := json.MarshalIndent(info, "", "  ")
				if err != nil {
					return fmt.Errorf("failed to format version info: %w", err)
				}
				_, err = fmt.Fprintln(cmd.OutOrStdout(), string(output))
				return err
			}
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "kvk-sync %s (commit %s, built %s, %s, %s)\n",
				info.Version, info.Commit, info.BuildDate, info.GoVersion, info.Platform)
			return err
		},
	}
	cmd.Flags().String("format", "", "Output format (json)")
	return cmd
}
