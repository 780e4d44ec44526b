package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/jackzampolin/runsheets/internal/api"
	"github.com/jackzampolin/runsheets/internal/config"
	"github.com/jackzampolin/runsheets/internal/home"
	"github.com/jackzampolin/runsheets/version"
)

var (
	cfgFile      string
	homeDir      string
	outputFormat string
	verbose      bool
)

var rootCmd = &cobra.Command{
	Use:   "runsheets",
	Short: "Split combined run sheets and mail each driver their runs",
	Long: `Runsheets takes one PDF holding many concatenated run sheets, finds where
each run starts from its "Run: SCD..." header, splits the PDF per run,
groups runs by a run-to-recipient mapping, merges each recipient's runs
into one PDF and mails it.

Examples:
  runsheets detect daily.pdf
  runsheets process daily.pdf --mapping drivers.csv
  runsheets process s3://sheets/daily.pdf --mapping drivers.json --archive s3://sheets/runs
  runsheets watch ./inbox --mapping drivers.csv --metrics-addr :9090`,
	Version:      version.GitRelease,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(
		&cfgFile, "config", "", "config file (default: ./config.yaml or ~/.runsheets/config.yaml)",
	)
	rootCmd.PersistentFlags().StringVar(
		&homeDir, "home", "", "runsheets home directory (default: ~/.runsheets)",
	)
	rootCmd.PersistentFlags().StringVarP(
		&outputFormat, "output", "o", "yaml", "output format: yaml or json",
	)
	rootCmd.PersistentFlags().BoolVarP(
		&verbose, "verbose", "v", false, "enable debug logging",
	)

	// Set output format before any command runs
	rootCmd.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		format, err := api.ParseOutputFormat(outputFormat)
		if err != nil {
			return err
		}
		api.SetOutputFormat(format)
		return nil
	}

	rootCmd.AddCommand(versionCmd)
}

// newLogger returns the text logger used by every command. Logs go to
// stderr so structured output on stdout stays parseable.
func newLogger() *slog.Logger {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

// getHome returns the home directory manager.
func getHome() (*home.Dir, error) {
	h, err := home.New(homeDir)
	if err != nil {
		return nil, err
	}
	if err := h.EnsureExists(); err != nil {
		return nil, fmt.Errorf("failed to create home directory: %w", err)
	}
	return h, nil
}

// loadConfig loads --config, else the home directory's config.yaml when one
// exists, else ./config.yaml or ~/.runsheets/config.yaml.
func loadConfig() (*config.Manager, error) {
	path := cfgFile
	if path == "" && homeDir != "" {
		if h, err := home.New(homeDir); err == nil && h.ConfigExists() {
			path = h.ConfigPath()
		}
	}
	mgr, err := config.NewManager(path)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return mgr, nil
}
