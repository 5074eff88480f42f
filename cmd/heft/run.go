package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/weiihann/heft/config"
	"github.com/weiihann/heft/harness"
	"github.com/weiihann/heft/report"
	"github.com/weiihann/heft/store"
	"github.com/weiihann/heft/suite"
	"github.com/weiihann/heft/workload"
)

type runFlags struct {
	threads     int
	profile     bool
	warmup      time.Duration
	window      time.Duration
	dsn         string
	poolSize    int
	jsonOut     string
	htmlOut     string
	metricsOut  string
	exclude     []string
	imageSample string
	seed        int64
}

func newRunCmd(opts *rootOptions) *cobra.Command {
	var f runFlags

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the workload suite and print the Heft Index",
		Long: `Warm up and measure every registered workload at one thread and at the
configured thread count, then score the results and print a report.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(opts.configPath)
			if err != nil {
				return err
			}
			applyRunFlags(cmd.Flags(), cfg, f)
			if err := config.Validate(cfg); err != nil {
				return err
			}

			return runBenchmark(cmd.Context(), opts.logger, cmd.OutOrStdout(), cfg)
		},
	}

	flags := cmd.Flags()
	flags.IntVarP(&f.threads, "threads", "t", 0,
		"Concurrent worker count (default: number of CPUs)")
	flags.BoolVar(&f.profile, "profile", false,
		"Log a scaling diagnostic for each workload")
	flags.DurationVar(&f.warmup, "warmup", config.DefaultWarmup,
		"Warmup duration before each measurement window")
	flags.DurationVar(&f.window, "window", config.DefaultWindow,
		"Measurement window per profile")
	flags.StringVar(&f.dsn, "db", store.DefaultDSN,
		"SQLite DSN or file path for the workload database")
	flags.IntVar(&f.poolSize, "pool-size", 0,
		"Database connection pool size (default: thread count)")
	flags.StringVar(&f.jsonOut, "json", "",
		"Write the JSON payload to this path (.gz to compress)")
	flags.StringVar(&f.htmlOut, "html", "",
		"Write the HTML report to this path")
	flags.StringVar(&f.metricsOut, "metrics", "",
		"Write Prometheus text-format metrics to this path")
	flags.StringSliceVar(&f.exclude, "exclude", nil,
		"Workloads to leave out of the run")
	flags.StringVar(&f.imageSample, "image-sample", "",
		"Image file for the image workload (default: synthesized)")
	flags.Int64Var(&f.seed, "seed", config.DefaultSeed,
		"Seed for generated fixture data")

	return cmd
}

// applyRunFlags overrides cfg with every flag set on the command line.
func applyRunFlags(fs *pflag.FlagSet, cfg *config.Config, f runFlags) {
	if fs.Changed("threads") {
		cfg.Threads = f.threads
	}
	if fs.Changed("profile") {
		cfg.Profile = f.profile
	}
	if fs.Changed("warmup") {
		cfg.Warmup = f.warmup
	}
	if fs.Changed("window") {
		cfg.Window = f.window
	}
	if fs.Changed("db") {
		cfg.Database.DSN = f.dsn
	}
	if fs.Changed("pool-size") {
		cfg.Database.PoolSize = f.poolSize
	}
	if fs.Changed("json") {
		cfg.Output.JSON = f.jsonOut
	}
	if fs.Changed("html") {
		cfg.Output.HTML = f.htmlOut
	}
	if fs.Changed("metrics") {
		cfg.Output.Metrics = f.metricsOut
	}
	if fs.Changed("exclude") {
		cfg.Workloads.Exclude = f.exclude
	}
	if fs.Changed("image-sample") {
		cfg.Workloads.ImageSample = f.imageSample
	}
	if fs.Changed("seed") {
		cfg.Workloads.Seed = f.seed
	}
}

func runBenchmark(
	ctx context.Context,
	logger *slog.Logger,
	out io.Writer,
	cfg *config.Config,
) error {
	logger.InfoContext(ctx, "starting benchmark",
		slog.Int("threads", cfg.Threads),
		slog.Duration("warmup", cfg.Warmup),
		slog.Duration("window", cfg.Window),
		slog.Bool("profile", cfg.Profile),
	)

	pool, err := store.Open(ctx, store.Options{
		DSN:         cfg.Database.DSN,
		Size:        cfg.PoolSize(),
		BusyTimeout: cfg.Database.BusyTimeout,
	}, logger)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer pool.Close()

	logger.InfoContext(ctx, "store ready",
		slog.String("dsn", pool.DSN()),
		slog.Int("pool_size", pool.Size()),
	)

	reg, err := registerSuite(ctx, logger, pool, cfg)
	if err != nil {
		return err
	}

	runner := harness.NewRunner(harness.RunConfig{
		Threads: cfg.Threads,
		Warmup:  cfg.Warmup,
		Window:  cfg.Window,
		Profile: cfg.Profile,
		Weights: cfg.MergedWeights(),
	}, pool, logger)
	runner.Progress = func(p harness.Progress) {
		if p.Done {
			fmt.Fprintln(out, "Done ✓")

			return
		}
		fmt.Fprintf(out, "[%d/%d] Running %s... ", p.Index, p.Total, p.Name)
	}

	payload, err := runner.Run(ctx, reg)
	if err != nil {
		return fmt.Errorf("run suite: %w", err)
	}

	stats := pool.Stats()
	logger.DebugContext(ctx, "pool stats",
		slog.Int("open", stats.OpenConnections),
		slog.Int64("wait_count", stats.WaitCount),
		slog.Duration("wait_duration", stats.WaitDuration),
	)

	fmt.Fprintln(out)
	if err := report.Generate(out, payload); err != nil {
		return fmt.Errorf("generate report: %w", err)
	}

	if err := writeOutputs(ctx, logger, payload, cfg.Output); err != nil {
		return err
	}

	logger.InfoContext(ctx, "benchmark complete",
		slog.Float64("composite_score", payload.CompositeScore),
		slog.String("tier", payload.Tier.String()),
	)

	return nil
}

func registerSuite(
	ctx context.Context,
	logger *slog.Logger,
	pool *store.Pool,
	cfg *config.Config,
) (*workload.Registry, error) {
	reg := workload.NewRegistry()

	err := suite.Register(ctx, reg, suite.Env{
		Pool:        pool,
		Logger:      logger,
		Weights:     cfg.MergedWeights(),
		ImageSample: cfg.Workloads.ImageSample,
		Seed:        cfg.Workloads.Seed,
		Exclude:     cfg.Workloads.Exclude,
	})
	if err != nil {
		return nil, fmt.Errorf("register workloads: %w", err)
	}

	return reg, nil
}

func writeOutputs(
	ctx context.Context,
	logger *slog.Logger,
	p *harness.Payload,
	out config.OutputConfig,
) error {
	targets := []struct {
		kind   string
		path   string
		render func(io.Writer, *harness.Payload) error
	}{
		{"json", out.JSON, report.GenerateJSON},
		{"html", out.HTML, report.GenerateHTML},
		{"metrics", out.Metrics, report.WritePrometheus},
	}

	for _, t := range targets {
		if t.path == "" {
			continue
		}
		if err := report.WriteFile(t.path, p, t.render); err != nil {
			return fmt.Errorf("write %s output: %w", t.kind, err)
		}
		logger.InfoContext(ctx, "wrote output",
			slog.String("kind", t.kind),
			slog.String("path", t.path),
		)
	}

	return nil
}
