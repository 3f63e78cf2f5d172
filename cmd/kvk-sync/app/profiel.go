package app

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/kvk-connect/kvk-sync/internal/csvkeys"
	"github.com/kvk-connect/kvk-sync/internal/store"
	"github.com/kvk-connect/kvk-sync/internal/sync"
)

var gapModes = []string{"update-missing", "update-known", "daemon"}

// markRunModes makes the given run-mode flags mutually exclusive and requires one of them
func markRunModes(cmd *cobra.Command, flags ...string) {
	modes := append(flags, gapModes...)
	cmd.MarkFlagsMutuallyExclusive(modes...)
	cmd.MarkFlagsOneRequired(modes...)
}

// runGapModes runs the job in the gap mode selected on the command line
func runGapModes[T any](ctx context.Context, cmd *cobra.Command, rt *runtime, job *sync.ProfielJob[T]) error {
	switch {
	case flagSet(cmd, "daemon"):
		return rt.daemon(ctx, job.WithMode(sync.ModeAll), rt.interval(cmd))
	case flagSet(cmd, "update-missing"):
		return rt.runner(job.WithMode(sync.ModeMissing)).RunOnce(ctx)
	case flagSet(cmd, "update-known"):
		return rt.runner(job.WithMode(sync.ModeOutdated)).RunOnce(ctx)
	default:
		return errors.New("no run mode selected")
	}
}

func flagSet(cmd *cobra.Command, name string) bool {
	v, err := cmd.Flags().GetBool(name)
	return err == nil && v
}

// withCSV runs fn on the keys read from the CSV file at path
func withCSV(path string, fn func(iter.Seq2[string, error]) error) error {
	f, err := os.Open(filepath.Clean(path))
	if err != nil {
		return fmt.Errorf("failed to open csv file: %w", err)
	}
	defer func() { _ = f.Close() }()
	return fn(csvkeys.Read(f))
}

func finish(job string, res sync.Result, err error) error {
	logResult(job, res)
	if err != nil {
		return err
	}
	if res.Total() > 0 && res.Failed == res.Total() {
		return errors.New("every key failed to sync")
	}
	return nil
}

func newBasisProfielCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "basisprofiel",
		Short: "Sync company base profiles",
		Long: `Fetch base profiles (basisprofielen) from the KvK API.

Profiles are fetched for a single KvK number (--kvk), for every KvK number in a
CSV file (--csv, skipping numbers that are already stored), or for the numbers
the stored mutation signals show to be missing or outdated.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, cancel := signalContext()
			defer cancel()

			rt, err := newRuntime(ctx, cmd, opts, needs{api: true, database: true})
			if err != nil {
				return err
			}
			defer rt.Close()

			conn := rt.conn.DB
			job := sync.NewBasisProfielJob(
				store.NewReader(conn, store.BasisProfielGap),
				store.NewBasisProfielWriter(conn, rt.writerOptions(cmd)...),
				rt.records(),
				rt.jobOptions()...,
			).WithLimit(rt.limit(cmd))

			if kvkNummer, _ := cmd.Flags().GetString("kvk"); kvkNummer != "" {
				res, err := job.SyncKeys(ctx, sync.Keys([]string{kvkNummer}), false)
				return finish(job.Name(), res, err)
			}
			if path, _ := cmd.Flags().GetString("csv"); path != "" {
				return withCSV(path, func(keys iter.Seq2[string, error]) error {
					res, err := job.SyncKeys(ctx, keys, true)
					return finish(job.Name(), res, err)
				})
			}
			return runGapModes(ctx, cmd, rt, job)
		},
	}

	cmd.Flags().String("kvk", "", "Sync the base profile of a single KvK number")
	cmd.Flags().String("csv", "", "Sync the base profiles of the KvK numbers in a CSV file")
	addSyncFlags(cmd)
	markRunModes(cmd, "kvk", "csv")
	return cmd
}

func newVestigingenCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "vestigingen",
		Short: "Sync the establishment lists of companies",
		Long: `Fetch the establishment numbers (vestigingen) of companies whose base profile
is stored. Companies without establishments are recorded with a placeholder
so they are not fetched again.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, cancel := signalContext()
			defer cancel()

			rt, err := newRuntime(ctx, cmd, opts, needs{api: true, database: true})
			if err != nil {
				return err
			}
			defer rt.Close()

			conn := rt.conn.DB
			job := sync.NewVestigingenJob(
				store.NewReader(conn, store.VestigingenGap),
				store.NewVestigingenWriter(conn, rt.writerOptions(cmd)...),
				rt.records(),
				rt.jobOptions()...,
			).WithLimit(rt.limit(cmd))

			if kvkNummer, _ := cmd.Flags().GetString("kvk"); kvkNummer != "" {
				res, err := job.SyncKeys(ctx, sync.Keys([]string{kvkNummer}), false)
				return finish(job.Name(), res, err)
			}
			if path, _ := cmd.Flags().GetString("csv-kvk"); path != "" {
				return withCSV(path, func(keys iter.Seq2[string, error]) error {
					res, err := job.SyncKeys(ctx, keys, false)
					return finish(job.Name(), res, err)
				})
			}
			return runGapModes(ctx, cmd, rt, job)
		},
	}

	cmd.Flags().String("kvk", "", "Sync the establishment list of a single KvK number")
	cmd.Flags().String("csv-kvk", "", "Sync the establishment lists of the KvK numbers in a CSV file")
	addSyncFlags(cmd)
	markRunModes(cmd, "kvk", "csv-kvk")
	return cmd
}

func newVestigingsProfielCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "vestigingsprofiel",
		Short: "Sync establishment profiles",
		Long: `Fetch establishment profiles (vestigingsprofielen) from the KvK API.

Profiles are fetched for a single establishment (--vestiging), for every
establishment of a company (--kvk), for the establishments or companies listed
in a CSV file (--csv-vestiging, --csv-kvk), or for the establishments that the
stored lists and signals show to be missing or outdated.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, cancel := signalContext()
			defer cancel()

			rt, err := newRuntime(ctx, cmd, opts, needs{api: true, database: true})
			if err != nil {
				return err
			}
			defer rt.Close()

			conn := rt.conn.DB
			records := rt.records()
			job := sync.NewVestigingsProfielJob(
				store.NewReader(conn, store.VestigingsProfielGap),
				store.NewVestigingsProfielWriter(conn, rt.writerOptions(cmd)...),
				records,
				rt.jobOptions()...,
			).WithLimit(rt.limit(cmd))

			syncKeys := func(keys iter.Seq2[string, error]) error {
				res, err := job.SyncKeys(ctx, keys, false)
				return finish(job.Name(), res, err)
			}

			if nummer, _ := cmd.Flags().GetString("vestiging"); nummer != "" {
				return syncKeys(sync.Keys([]string{nummer}))
			}
			if kvkNummer, _ := cmd.Flags().GetString("kvk"); kvkNummer != "" {
				return syncKeys(sync.ExpandVestigingen(ctx, records, sync.Keys([]string{kvkNummer})))
			}
			if path, _ := cmd.Flags().GetString("csv-vestiging"); path != "" {
				return withCSV(path, syncKeys)
			}
			if path, _ := cmd.Flags().GetString("csv-kvk"); path != "" {
				return withCSV(path, func(keys iter.Seq2[string, error]) error {
					return syncKeys(sync.ExpandVestigingen(ctx, records, keys))
				})
			}
			return runGapModes(ctx, cmd, rt, job)
		},
	}

	cmd.Flags().String("vestiging", "", "Sync the profile of a single vestigingsnummer")
	cmd.Flags().String("kvk", "", "Sync the profiles of every establishment of a KvK number")
	cmd.Flags().String("csv-vestiging", "", "Sync the profiles of the vestigingsnummers in a CSV file")
	cmd.Flags().String("csv-kvk", "", "Sync the profiles of every establishment of the KvK numbers in a CSV file")
	addSyncFlags(cmd)
	markRunModes(cmd, "vestiging", "kvk", "csv-vestiging", "csv-kvk")
	return cmd
}
