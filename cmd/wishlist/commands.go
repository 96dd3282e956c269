package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/aluiziolira/go-wishlist-tracker/config"
	"github.com/aluiziolira/go-wishlist-tracker/etl"
	"github.com/aluiziolira/go-wishlist-tracker/scraper"
	"github.com/aluiziolira/go-wishlist-tracker/storage"
)

type options struct {
	configPath string
	cfg        *config.Config
}

func newRootCmd() *cobra.Command {
	opts := &options{}
	defaults := config.DefaultConfig()

	root := &cobra.Command{
		Use:           "wishlist",
		Short:         "wishlist tracks the prices of a public wishlist across runs.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(opts.configPath)
			if err != nil {
				return err
			}
			applyFlags(cmd, cfg)
			if err := cfg.Validate(); err != nil {
				return err
			}
			opts.cfg = cfg

			logger, level := newLogger(cfg.Verbose)
			slog.SetDefault(logger)
			slog.SetLogLoggerLevel(level.Level())
			return nil
		},
	}

	flags := root.PersistentFlags()
	flags.StringVarP(&opts.configPath, "config", "c", "", "YAML configuration file")
	flags.BoolP("verbose", "v", false, "Enable verbose logging")
	flags.String("start-url", defaults.StartURL, "Wishlist URL to crawl")
	flags.Int("max-pages", defaults.MaxPages, "Maximum wishlist pages to fetch")
	flags.String("locale", defaults.Locale, "Locale of the added-date month names")
	flags.Bool("strict-dates", false, "Fail the transform on an unparseable added date")
	flags.Bool("historical", false, "Also keep a timestamped copy of the raw items")
	flags.Bool("bootstrap-master", false, "Start a new master table when none exists")
	flags.String("storage", defaults.Storage.Backend, "Storage backend: fs, gcs, redis, memcache or postgres")
	flags.String("root", defaults.Storage.Root, "Root directory of the fs backend")
	flags.String("bucket", "", "Bucket of the gcs backend")
	flags.String("metrics-addr", "", "Prometheus metrics listen address (e.g. :9090)")

	root.AddCommand(
		stageCmd(opts, "extract", "Crawl the wishlist and store the raw items.", func(ctx context.Context, r *etl.Runner) (*etl.RunResult, error) {
			res, err := r.Extract(ctx)
			return &etl.RunResult{Extract: res}, err
		}),
		stageCmd(opts, "transform", "Derive rows from the raw items and merge them with the master table.", func(ctx context.Context, r *etl.Runner) (*etl.RunResult, error) {
			res, err := r.Transform(ctx)
			return &etl.RunResult{Transform: res}, err
		}),
		stageCmd(opts, "load", "Promote the interim table to the master table.", func(ctx context.Context, r *etl.Runner) (*etl.RunResult, error) {
			res, err := r.Load(ctx)
			return &etl.RunResult{Load: res}, err
		}),
		stageCmd(opts, "run", "Run extract, transform and load in order.", func(ctx context.Context, r *etl.Runner) (*etl.RunResult, error) {
			return r.Run(ctx)
		}),
	)
	return root
}

type stageFunc func(ctx context.Context, r *etl.Runner) (*etl.RunResult, error)

func stageCmd(opts *options, name, short string, stage stageFunc) *cobra.Command {
	return &cobra.Command{
		Use:   name,
		Short: short,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			cfg := opts.cfg

			store, err := storage.Open(ctx, cfg.Storage)
			if err != nil {
				return err
			}
			defer func() {
				if err := storage.Close(store); err != nil {
					slog.Error("close storage", slog.Any("error", err))
				}
			}()

			runner, err := etl.NewRunner(cfg, store)
			if err != nil {
				return err
			}

			if cfg.MetricsAddr != "" {
				runner.Metrics = scraper.NewMetrics()
				stopMetrics := serveMetrics(cfg.MetricsAddr, runner.Metrics)
				defer stopMetrics()
			}

			slog.Info("starting stage",
				slog.String("stage", name),
				slog.String("storage", cfg.Storage.Backend),
			)
			start := time.Now()
			result, err := stage(ctx, runner)
			if err != nil {
				return err
			}
			printSummary(name, result, time.Since(start))
			return nil
		},
	}
}

// applyFlags copies explicitly set flags over the loaded configuration.
func applyFlags(cmd *cobra.Command, cfg *config.Config) {
	flags := cmd.Flags()
	if flags.Changed("verbose") {
		cfg.Verbose, _ = flags.GetBool("verbose")
	}
	if flags.Changed("start-url") {
		cfg.StartURL, _ = flags.GetString("start-url")
	}
	if flags.Changed("max-pages") {
		cfg.MaxPages, _ = flags.GetInt("max-pages")
	}
	if flags.Changed("locale") {
		cfg.Locale, _ = flags.GetString("locale")
	}
	if flags.Changed("strict-dates") {
		cfg.StrictDates, _ = flags.GetBool("strict-dates")
	}
	if flags.Changed("historical") {
		cfg.Historical, _ = flags.GetBool("historical")
	}
	if flags.Changed("bootstrap-master") {
		cfg.BootstrapMaster, _ = flags.GetBool("bootstrap-master")
	}
	if flags.Changed("storage") {
		cfg.Storage.Backend, _ = flags.GetString("storage")
	}
	if flags.Changed("root") {
		cfg.Storage.Root, _ = flags.GetString("root")
	}
	if flags.Changed("bucket") {
		cfg.Storage.Bucket, _ = flags.GetString("bucket")
	}
	if flags.Changed("metrics-addr") {
		cfg.MetricsAddr, _ = flags.GetString("metrics-addr")
	}
}

func serveMetrics(addr string, metrics *scraper.Metrics) func() {
	server := &http.Server{
		Addr:    addr,
		Handler: promhttp.HandlerFor(metrics.Registry, promhttp.HandlerOpts{}),
	}
	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("metrics server failed", slog.Any("error", err))
		}
	}()
	slog.Info("metrics server enabled", slog.String("addr", addr))

	return func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			slog.Error("metrics server shutdown failed", slog.Any("error", err))
		}
	}
}
