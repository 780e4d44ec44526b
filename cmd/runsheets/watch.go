package main

import (
	"context"
	"fmt"
	"os"
	"sync/atomic"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/jackzampolin/runsheets/internal/config"
	"github.com/jackzampolin/runsheets/internal/ledger"
	"github.com/jackzampolin/runsheets/internal/metrics"
	"github.com/jackzampolin/runsheets/internal/pipeline"
	"github.com/jackzampolin/runsheets/internal/watch"
)

var (
	watchMapping     string
	watchInline      string
	watchSettle      time.Duration
	watchMetricsAddr string
)

var watchCmd = &cobra.Command{
	Use:   "watch <inbox-dir>",
	Short: "Process run-sheet PDFs as they arrive in a directory",
	Long: `Watch an inbox directory and process each new PDF once.

A file is processed after it has been quiet for the settle period. Every
document is remembered by content hash in ~/.runsheets/ledger, so a file
dropped twice is only mailed once. Only documents that are themselves
broken (unreadable, no run markers) are remembered as rejected. Documents
that failed for any other reason, such as a bad mapping file, an incomplete
mail config or an interrupt, are retried on the next drop or restart.

The mapping file is re-read for every document and the config file is
hot-reloaded, so both can be edited while the watcher runs.

Examples:
  runsheets watch ./inbox --mapping drivers.csv
  runsheets watch ./inbox --mapping drivers.csv --metrics-addr :9090`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		logger := newLogger()
		inbox := args[0]

		if info, err := os.Stat(inbox); err != nil || !info.IsDir() {
			return fmt.Errorf("inbox %s is not a directory", inbox)
		}
		// Fail on a bad mapping before watching anything.
		if _, err := loadMapping(watchMapping, watchInline); err != nil {
			return err
		}

		h, err := getHome()
		if err != nil {
			return err
		}
		if removed, err := h.PruneWork(time.Now().Add(-time.Hour)); err != nil {
			logger.Warn("failed to prune stale work directories", "error", err)
		} else if len(removed) > 0 {
			logger.Info("pruned stale work directories", "count", len(removed))
		}

		cfgMgr, err := loadConfig()
		if err != nil {
			return err
		}
		cfg := cfgMgr.Get()

		var current atomic.Pointer[pipeline.Pipeline]
		p, err := buildPipeline(cfg, h, logger)
		if err != nil {
			return err
		}
		current.Store(p)

		cfgMgr.OnChange(func(cfg *config.Config) {
			p, err := buildPipeline(cfg, h, logger)
			if err != nil {
				logger.Error("config reload rejected, keeping previous settings", "error", err)
				return
			}
			current.Store(p)
			logger.Info("config reloaded", "file", cfgMgr.ConfigFile())
		})
		if cfgMgr.ConfigFile() != "" {
			cfgMgr.WatchConfig(logger)
		}

		l, err := ledger.Open(h.LedgerPath())
		if err != nil {
			return err
		}
		defer l.Close()

		settle := watchSettle
		if !cmd.Flags().Changed("settle") && cfg.Watch.SettleMillis > 0 {
			settle = time.Duration(cfg.Watch.SettleMillis) * time.Millisecond
		}

		w, err := watch.New(watch.Options{
			Dir:    inbox,
			Settle: settle,
			Ledger: l,
			Process: func(ctx context.Context, path string) (*pipeline.Report, error) {
				m, err := loadMapping(watchMapping, watchInline)
				if err != nil {
					return nil, err
				}
				return current.Load().Run(ctx, pipeline.Request{Source: path, Mapping: m})
			},
			Logger: logger,
		})
		if err != nil {
			return err
		}

		addr := watchMetricsAddr
		if addr == "" {
			addr = cfg.Watch.MetricsAddr
		}

		g, ctx := errgroup.WithContext(ctx)
		g.Go(func() error { return w.Run(ctx) })
		if addr != "" {
			metrics.Init()
			logger.Info("serving metrics", "addr", addr)
			g.Go(func() error { return metrics.Serve(ctx, addr) })
		}
		return g.Wait()
	},
}

func init() {
	watchCmd.Flags().StringVarP(&watchMapping, "mapping", "m", "", "mapping file (.csv, .json, or inline literal text)")
	watchCmd.Flags().StringVar(&watchInline, "inline", "", "inline mapping literal")
	watchCmd.Flags().DurationVar(&watchSettle, "settle", watch.DefaultSettle, "quiet period before a new file is processed")
	watchCmd.Flags().StringVar(&watchMetricsAddr, "metrics-addr", "", "serve Prometheus metrics on this address, e.g. :9090")

	rootCmd.AddCommand(watchCmd)
}
