package main

import (
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/red-atencion/outreach-cli/internal/zone"
)

var zonesPublish bool

var zonesCmd = &cobra.Command{
	Use:   "zones",
	Short: "Load the configured zone sets and report their features",
	Long:  "Loads every configured zone set in precedence order. Fails on any missing or corrupt geometry. With --publish the polygons are written to the Postgres warehouse.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		if err := cfg.Validate(); err != nil {
			return err
		}

		sets, err := zone.NewFileProvider(cfg.Zones.Sets).LoadZoneSets(ctx)
		if err != nil {
			return err
		}
		if _, err := zone.NewResolver(sets); err != nil {
			return err
		}
		formatZoneSets(os.Stdout, sets)

		if !zonesPublish {
			return nil
		}
		if cfg.Warehouse.Driver != "postgres" {
			return eris.New("zones --publish requires warehouse.driver postgres")
		}
		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		_, sink, closeFn, err := initWarehouse(ctx, st)
		if err != nil {
			return err
		}
		defer closeFn()
		return sink.ReplaceZones(ctx, cfg.Warehouse.ZonesTable, sets)
	},
}

// formatZoneSets writes one line per set in precedence order.
func formatZoneSets(out io.Writer, sets []*zone.Set) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "PRECEDENCE\tSET\tKIND\tFEATURES")
	for i, s := range sets {
		_, _ = fmt.Fprintf(w, "%d\t%s\t%s\t%d\n", i+1, s.Name, s.Kind, len(s.Features))
	}
	_ = w.Flush()
}

func init() {
	zonesCmd.Flags().BoolVar(&zonesPublish, "publish", false, "write zone polygons to the warehouse")
	rootCmd.AddCommand(zonesCmd)
}
