package main

import (
	"github.com/spf13/cobra"

	"github.com/jackzampolin/runsheets/internal/api"
	"github.com/jackzampolin/runsheets/internal/ledger"
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List documents processed by watch",
	RunE: func(cmd *cobra.Command, args []string) error {
		h, err := getHome()
		if err != nil {
			return err
		}

		l, err := ledger.Open(h.LedgerPath())
		if err != nil {
			return err
		}
		defer l.Close()

		entries, err := l.List()
		if err != nil {
			return err
		}
		return api.Output(entries)
	},
}

func init() {
	rootCmd.AddCommand(historyCmd)
}
