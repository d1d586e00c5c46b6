package main

import (
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/red-atencion/outreach-cli/internal/warehouse"
)

var exportOut string

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Write the stored classified history as CSV",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		batch, err := st.Load(ctx)
		if err != nil {
			return eris.Wrap(err, "export: load history")
		}

		if exportOut == "" || exportOut == "-" {
			return warehouse.WriteCSV(os.Stdout, batch)
		}
		if err := warehouse.NewCSVSink(exportOut).ReplaceTable(ctx, batch); err != nil {
			return err
		}
		zap.L().Info("export complete",
			zap.String("out", exportOut),
			zap.Int("rows", len(batch)),
		)
		return nil
	},
}

func init() {
	exportCmd.Flags().StringVar(&exportOut, "out", "-", "output CSV path, - for stdout")
	rootCmd.AddCommand(exportCmd)
}
