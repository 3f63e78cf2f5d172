package app

import (
	"fmt"
	"io"
	"strconv"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/kvk-connect/kvk-sync/internal/kvk"
	"github.com/kvk-connect/kvk-sync/internal/service"
)

func newAbonnementenCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "abonnementen",
		Short: "List the mutation service subscriptions of the API key",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, cancel := signalContext()
			defer cancel()

			rt, err := newRuntime(ctx, cmd, opts, needs{api: true})
			if err != nil {
				return err
			}
			defer rt.Close()

			abonnementen, err := service.NewMutatieService(rt.client, rt.cfg.API.MutatieAbonnementID).Abonnementen(ctx)
			if err != nil {
				return err
			}
			return renderAbonnementen(cmd.OutOrStdout(), abonnementen)
		},
	}
}

func renderAbonnementen(w io.Writer, abonnementen []kvk.MutatieAbonnement) error {
	table := tablewriter.NewWriter(w)
	table.Header("ID", "Contract", "Contract naam", "Start", "Actief")
	for _, a := range abonnementen {
		start := ""
		if a.StartDatum != nil {
			start = a.StartDatum.Format("2006-01-02")
		}
		if err := table.Append(a.ID, a.ContractID, a.ContractNaam, start, strconv.FormatBool(a.Actief)); err != nil {
			return fmt.Errorf("failed to render subscriptions: %w", err)
		}
	}
	return table.Render()
}
