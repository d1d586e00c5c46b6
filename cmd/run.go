package main

import (
	"encoding/json"
	"io"
	"os"
	"path/filepath"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/red-atencion/outreach-cli/internal/model"
)

var runInput string

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Ingest one case file and rebuild the classified history",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		incoming, err := readInput(runInput)
		if err != nil {
			return err
		}

		env, err := initPipeline(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		result, err := env.Pipeline.Run(ctx, filepath.Base(runInput), incoming)
		if err != nil {
			return eris.Wrap(err, "pipeline run")
		}

		zap.L().Info("run complete",
			zap.String("run_id", result.Run.ID),
			zap.Int("appended", result.Run.Appended),
			zap.Int("total", result.Run.Total),
		)
		return writeRun(os.Stdout, result.Run)
	},
}

func writeRun(w io.Writer, run model.Run) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(run)
}

func init() {
	runCmd.Flags().StringVar(&runInput, "input", "", "case spreadsheet (.xlsx) or CSV export")
	_ = runCmd.MarkFlagRequired("input")
	rootCmd.AddCommand(runCmd)
}
