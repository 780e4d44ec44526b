package main

import (
	"github.com/spf13/cobra"

	"github.com/jackzampolin/runsheets/internal/api"
)

var detectCmd = &cobra.Command{
	Use:   "detect <pdf|s3://bucket/key>",
	Short: "Show the runs detected in a PDF",
	Long: `Detect run boundaries without splitting or sending anything.

Prints each run with its operator and page range (0-based, end exclusive),
plus any run that reappeared after a different run had started.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		logger := newLogger()

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

		det, err := p.Detect(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		return api.Output(det)
	},
}

func init() {
	rootCmd.AddCommand(detectCmd)
}
