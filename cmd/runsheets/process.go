package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jackzampolin/runsheets/internal/api"
	"github.com/jackzampolin/runsheets/internal/pipeline"
)

var (
	processMapping string
	processInline  string
	processDryRun  bool
	processArchive string
)

var processCmd = &cobra.Command{
	Use:   "process <pdf|s3://bucket/key>",
	Short: "Split a run-sheet PDF and mail each recipient their runs",
	Long: `Process one combined run-sheet PDF end to end.

Runs are detected from their "Run: SCD..." header, split into one PDF per
run, grouped by the mapping, merged per recipient and mailed. Runs missing
from the mapping are listed as unassigned. A failed send for one recipient
does not stop the others.

If the mail section of the config is incomplete, nothing is sent and the
report says why.

Examples:
  runsheets process daily.pdf --mapping drivers.csv
  runsheets process daily.pdf --inline "{'SCD0001': 'ann@example.com'}"
  runsheets process daily.pdf --mapping drivers.json --dry-run
  runsheets process s3://sheets/daily.pdf --mapping drivers.csv --archive s3://sheets/runs/2024-03-05`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		logger := newLogger()

		m, err := loadMapping(processMapping, processInline)
		if err != nil {
			return err
		}

		h, err := getHome()
		if err != nil {
			return err
		}

		cfgMgr, err := loadConfig()
		if err != nil {
			return err
		}

		p, err := buildPipeline(cfgMgr.Get(), h, logger)
		if err != nil {
			return err
		}

		report, err := p.Run(ctx, pipeline.Request{
			Source:  args[0],
			Mapping: m,
			DryRun:  processDryRun,
			Archive: processArchive,
		})
		if err != nil {
			return err
		}

		if err := api.Output(report); err != nil {
			return err
		}
		if report.Summary.Failed > 0 {
			return fmt.Errorf("%w: %d of %d sends failed", errPartialSend, report.Summary.Failed, report.Summary.Recipients)
		}
		return nil
	},
}

func init() {
	processCmd.Flags().StringVarP(&processMapping, "mapping", "m", "", "mapping file (.csv with Run,Email columns, .json object, or inline literal text)")
	processCmd.Flags().StringVar(&processInline, "inline", "", "inline mapping literal, e.g. {'SCD0001': 'a@example.com'}")
	processCmd.Flags().BoolVar(&processDryRun, "dry-run", false, "detect, split and merge without sending")
	processCmd.Flags().StringVar(&processArchive, "archive", "", "directory or s3:// prefix to store each run's PDF")

	rootCmd.AddCommand(processCmd)
}
