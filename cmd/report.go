package main

import (
	"io"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/red-atencion/outreach-cli/internal/evolution"
	"github.com/red-atencion/outreach-cli/internal/model"
	"github.com/red-atencion/outreach-cli/internal/report"
)

var (
	reportZone   string
	reportWeeks  int
	reportFormat string
)

var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Print weekly indicators and evolution counts for a zone",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		if err := cfg.Validate(); err != nil {
			return err
		}
		opts, err := cfg.ReportOptions()
		if err != nil {
			return err
		}
		if reportWeeks > 0 {
			opts.Weeks = reportWeeks
		}
		evo, err := cfg.EvolutionOptions()
		if err != nil {
			return err
		}

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		batch, err := st.Load(ctx)
		if err != nil {
			return eris.Wrap(err, "report: load history")
		}
		return writeReport(os.Stdout, batch, reportZone, opts, evo, reportFormat)
	},
}

// writeReport recomputes the evolution fold over the stored batch, since
// observations are not persisted, and encodes the zone summary.
func writeReport(w io.Writer, batch []model.CaseRecord, zone string, opts report.Options, evo evolution.Options, format string) error {
	res := evolution.Classify(batch, evo)
	summary := report.Summary{
		Indicators: report.Weekly(batch, zone, opts),
		Evolution:  report.Evolution(res, zone, opts.Weeks),
	}
	return report.Encode(w, summary, format)
}

func init() {
	reportCmd.Flags().StringVar(&reportZone, "zone", "", "zone label (empty for every zone)")
	reportCmd.Flags().IntVar(&reportWeeks, "weeks", 0, "trailing weeks (default from config)")
	reportCmd.Flags().StringVar(&reportFormat, "format", "yaml", "output format: yaml or json")
	rootCmd.AddCommand(reportCmd)
}
