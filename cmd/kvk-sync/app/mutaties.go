package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/spf13/cobra"

	"github.com/kvk-connect/kvk-sync/internal/config"
	"github.com/kvk-connect/kvk-sync/internal/kvk"
	"github.com/kvk-connect/kvk-sync/internal/service"
	"github.com/kvk-connect/kvk-sync/internal/store"
	"github.com/kvk-connect/kvk-sync/internal/sync"
)

func newMutatiesCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "mutaties",
		Short: "Sync mutation signals",
		Long: `Store the mutation signals (signalen) of the configured subscription.

--auto continues from the newest stored signal, or one day back on an empty
database, up to a minute ago. Combine it with --daemon to keep following new
signals. --manual takes an explicit --from and --to (ISO-8601, UTC when no zone
is given). --signaal-id prints a single signal as JSON; add --store to also
store it.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runMutaties(cmd, opts)
		},
	}

	cmd.Flags().String("signaal-id", "", "Print a single signal as JSON")
	cmd.Flags().Bool("store", false, "Also store the signal fetched with --signaal-id")
	cmd.Flags().Bool("auto", false, "Sync the signals published since the last stored signal")
	cmd.Flags().Bool("manual", false, "Sync the signals between --from and --to")
	cmd.Flags().String("from", "", "Window start for --manual (ISO-8601)")
	cmd.Flags().String("to", "", "Window end for --manual (ISO-8601)")
	cmd.Flags().Int("fetch-limit", service.DefaultPageSize, "Number of signals requested per page")
	cmd.Flags().Bool("daemon", false, "Repeat --auto every interval")
	cmd.Flags().Int("batch-size", config.DefaultBatchSize, "Number of signals committed per transaction")
	cmd.Flags().Int("interval", int(config.DefaultInterval/time.Minute), "Minutes between daemon cycles")

	cmd.MarkFlagsMutuallyExclusive("signaal-id", "auto", "manual")
	cmd.MarkFlagsOneRequired("signaal-id", "auto", "manual")
	cmd.MarkFlagsRequiredTogether("from", "to")
	return cmd
}

func runMutaties(cmd *cobra.Command, opts *rootOptions) error {
	flags := cmd.Flags()
	manual, _ := flags.GetBool("manual")
	daemon, _ := flags.GetBool("daemon")
	auto, _ := flags.GetBool("auto")
	from, _ := flags.GetString("from")
	to, _ := flags.GetString("to")

	if daemon && !auto {
		return errors.New("--daemon requires --auto")
	}
	if manual && (from == "" || to == "") {
		return errors.New("--manual requires --from and --to")
	}
	if !manual && (from != "" || to != "") {
		return errors.New("--from and --to require --manual")
	}

	ctx, cancel := signalContext()
	defer cancel()

	if flags.Changed("signaal-id") {
		return runSignaal(ctx, cmd, opts)
	}
	if flags.Changed("store") {
		return errors.New("--store requires --signaal-id")
	}

	rt, err := newRuntime(ctx, cmd, opts, needs{api: true, database: true})
	if err != nil {
		return err
	}
	defer rt.Close()

	if rt.cfg.API.MutatieAbonnementID == "" {
		return fmt.Errorf("%w: set %s_MUTATIE_ABONNEMENT_ID", service.ErrNoAbonnement, config.EnvPrefix)
	}

	pageSize, _ := flags.GetInt("fetch-limit")
	conn := rt.conn.DB
	job := sync.NewMutatieJob(
		service.NewMutatieService(rt.client, rt.cfg.API.MutatieAbonnementID),
		store.NewSignaalReader(conn),
		store.NewSignaalWriter(conn, rt.writerOptions(cmd)...),
		pageSize,
		rt.jobOptions()...,
	)

	switch {
	case manual:
		fromTime, err := sync.ParseTimestamp(from)
		if err != nil {
			return fmt.Errorf("invalid --from: %w", err)
		}
		toTime, err := sync.ParseTimestamp(to)
		if err != nil {
			return fmt.Errorf("invalid --to: %w", err)
		}
		if job, err = job.WithWindow(fromTime, toTime); err != nil {
			return err
		}
		return rt.runner(job).RunOnce(ctx)

	case daemon:
		return rt.daemon(ctx, job, rt.interval(cmd))

	default:
		return rt.runner(job).RunOnce(ctx)
	}
}

// runSignaal prints one signal and stores it only when --store is given, so a
// lookup works without a database.
func runSignaal(ctx context.Context, cmd *cobra.Command, opts *rootOptions) error {
	id, _ := cmd.Flags().GetString("signaal-id")
	persist, _ := cmd.Flags().GetBool("store")

	rt, err := newRuntime(ctx, cmd, opts, needs{api: true, database: persist})
	if err != nil {
		return err
	}
	defer rt.Close()

	if rt.cfg.API.MutatieAbonnementID == "" {
		return fmt.Errorf("%w: set %s_MUTATIE_ABONNEMENT_ID", service.ErrNoAbonnement, config.EnvPrefix)
	}
	signals := service.NewMutatieService(rt.client, rt.cfg.API.MutatieAbonnementID)

	var signaal *kvk.Signaal
	if persist {
		conn := rt.conn.DB
		job := sync.NewMutatieJob(signals, store.NewSignaalReader(conn),
			store.NewSignaalWriter(conn, rt.writerOptions(cmd)...), service.DefaultPageSize, rt.jobOptions()...)
		if signaal, err = job.SyncSignaal(ctx, id); err != nil {
			return err
		}
		slog.Info("Stored signal", "id", signaal.ID, "kvk_nummer", signaal.KvKNummer,
			"vestigingsnummer", signaal.Vestigingsnummer, "type", signaal.SignaalType)
	} else if signaal, err = signals.Signaal(ctx, id); err != nil {
		return err
	}

	out, err := json.MarshalIndent(signaal, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode signal: %w", err)
	}
	_, err = fmt.Fprintln(cmd.OutOrStdout(), string(out))
	return err
}
