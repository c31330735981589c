package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"TenderScan/internal/app"
	"TenderScan/internal/config"
	sqlitecache "TenderScan/internal/infrastructure/cache"
	"TenderScan/internal/logging"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var configPath string

	root := &cobra.Command{
		Use:           "tenderscan",
		Short:         "Crawl procurement portals and classify tender documents",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&configPath, "config", "", "path to YAML config (default config.yaml, env TENDERSCAN_CONFIG)")

	root.AddCommand(
		newScanCmd(&configPath),
		newAnalyzeCmd(&configPath),
		newWatchCmd(&configPath),
		newCacheCmd(&configPath),
	)
	return root
}

func loadConfig(path string) (config.Config, error) {
	if path == "" {
		return config.Load(), nil
	}
	return config.LoadFile(path)
}

func newScanCmd(configPath *string) *cobra.Command {
	var (
		maxPages   int
		resetCache bool
	)

	cmd := &cobra.Command{
		Use:   "scan",
		Short: "Run a single crawl-and-classify pass",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(*configPath)
			if err != nil {
				return err
			}
			if maxPages > 0 {
				cfg.Crawl.MaxPages = maxPages
			}
			if resetCache {
				cfg.Cache.Reset = true
			}

			logger := logging.New(cfg.Logging.Level)
			application, err := app.New(cfg, logger)
			if err != nil {
				return err
			}
			defer application.Close()

			ctx, stop := signalContext(cmd.Context())
			defer stop()

			return application.Run(ctx)
		},
	}
	cmd.Flags().IntVar(&maxPages, "max-pages", 0, "stop after this many listing pages")
	cmd.Flags().BoolVar(&resetCache, "reset-cache", false, "drop cached stage results before the run")
	return cmd
}

func newAnalyzeCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "analyze FILE...",
		Short: "Classify local documents without crawling",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(*configPath)
			if err != nil {
				return err
			}

			logger := logging.New(cfg.Logging.Level)
			application, err := app.New(cfg, logger)
			if err != nil {
				return err
			}
			defer application.Close()

			results, err := application.Analyze(cmd.Context(), args)
			if err != nil {
				return err
			}

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(results)
		},
	}
}

func newWatchCmd(configPath *string) *cobra.Command {
	var cronExpr string

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Run the crawl on a cron schedule until interrupted",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(*configPath)
			if err != nil {
				return err
			}
			if cronExpr != "" {
				cfg.Schedule.CronExpression = cronExpr
			}

			logger := logging.New(cfg.Logging.Level)
			application, err := app.New(cfg, logger)
			if err != nil {
				return err
			}
			defer application.Close()

			ctx, stop := signalContext(cmd.Context())
			defer stop()

			return application.Watch(ctx)
		},
	}
	cmd.Flags().StringVar(&cronExpr, "cron", "", "cron expression overriding the configured schedule")
	return cmd
}

func newCacheCmd(configPath *string) *cobra.Command {
	cache := &cobra.Command{
		Use:   "cache",
		Short: "Manage the persistent stage cache",
	}

	cache.AddCommand(&cobra.Command{
		Use:   "reset",
		Short: "Drop all cached stage results and the visited set",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(*configPath)
			if err != nil {
				return err
			}

			store, err := sqlitecache.Open(cfg.Cache.Path)
			if err != nil {
				return err
			}
			defer store.Close()

			if err := store.Reset(cmd.Context()); err != nil {
				return err
			}
			logging.New(cfg.Logging.Level).Info("cache reset", "path", cfg.Cache.Path)
			return nil
		},
	})
	return cache
}

func signalContext(parent context.Context) (context.Context, context.CancelFunc) {
	if parent == nil {
		parent = context.Background()
	}
	return signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
}
