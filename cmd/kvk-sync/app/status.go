package app

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/kvk-connect/kvk-sync/internal/store"
)

// gapStatus is one row of the status table
type gapStatus struct {
	Name     string
	Missing  int
	Outdated int
}

func newStatusCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show how many records are missing or outdated",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, cancel := signalContext()
			defer cancel()

			rt, err := newRuntime(ctx, cmd, opts, needs{database: true})
			if err != nil {
				return err
			}
			defer rt.Close()

			rows, err := collectStatus(ctx, rt.conn.DB)
			if err != nil {
				return err
			}
			last, ok, err := store.NewSignaalReader(rt.conn.DB).LastTimestamp(ctx)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if err := renderStatus(out, rows); err != nil {
				return err
			}
			if ok {
				_, err = fmt.Fprintf(out, "Newest signal: %s\n", last.Format(time.RFC3339))
			} else {
				_, err = fmt.Fprintln(out, "Newest signal: none")
			}
			return err
		},
	}
}

func collectStatus(ctx context.Context, conn *sql.DB) ([]gapStatus, error) {
	var rows []gapStatus
	for _, gap := range store.Gaps() {
		reader := store.NewReader(conn, gap)
		missing, err := reader.CountMissing(ctx)
		if err != nil {
			return nil, err
		}
		outdated, err := reader.CountOutdated(ctx)
		if err != nil {
			return nil, err
		}
		rows = append(rows, gapStatus{Name: gap.Name, Missing: missing, Outdated: outdated})
	}
	return rows, nil
}

func renderStatus(w io.Writer, rows []gapStatus) error {
	table := tablewriter.NewWriter(w)
	table.Header("Record", "Missing", "Outdated")
	for _, r := range rows {
		if err := table.Append(r.Name, strconv.Itoa(r.Missing), strconv.Itoa(r.Outdated)); err != nil {
			return fmt.Errorf("failed to render status: %w", err)
		}
	}
	return table.Render()
}
