package harness

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/weiihann/heft/score"
	"github.com/weiihann/heft/workload"
)

// Default phase durations.
const (
	DefaultWarmup = 2 * time.Second
	DefaultWindow = 5 * time.Second
)

// ErrNoWorkloads is returned by Run when the registry is empty.
var ErrNoWorkloads = errors.New("no workloads registered")

// RunConfig holds parameters for a benchmark run.
type RunConfig struct {
	// Threads is the worker count for the concurrent profile.
	Threads int

	Warmup time.Duration
	Window time.Duration

	// Profile enables the scaling diagnostic log output.
	Profile bool

	// Weights is the base weight table. Nil uses score.DefaultWeights.
	Weights score.Weights
}

// Progress reports a workload starting (Done false) or finishing.
type Progress struct {
	Index int
	Total int
	Name  string
	Done  bool
}

// Runner measures every workload of a registry and scores the run.
type Runner struct {
	Config  RunConfig
	Harness *Harness
	Logger  *slog.Logger

	// Progress, if set, is called before and after each workload.
	Progress func(Progress)

	// Memory samples process memory in MB. Nil uses ProcessRSSMB.
	Memory func(ctx context.Context) (float64, error)

	// System describes the host. Nil uses CollectSystemInfo.
	System func(ctx context.Context) SystemInfo
}

// NewRunner creates a Runner that checks connections out of pool.
func NewRunner(cfg RunConfig, pool Pool, logger *slog.Logger) *Runner {
	return &Runner{
		Config: cfg,
		Harness: &Harness{
			Pool:    pool,
			Retrier: &Retrier{Logger: logger},
		},
		Logger: logger,
	}
}

// Measure runs the single-threaded and concurrent profiles of def and
// returns its unscored result. A fatal body error aborts the measurement.
func (r *Runner) Measure(ctx context.Context, def workload.Definition) (Result, error) {
	logger := r.Logger.With(slog.String("workload", def.Name))
	threads := max(r.Config.Threads, 1)

	memBefore, memErr := r.memory(ctx)

	if err := r.warmup(ctx, def.Body, 1); err != nil {
		return Result{}, fmt.Errorf("warm up 1 thread: %w", err)
	}

	single, err := r.Harness.Run(ctx, def.Body, 1, r.Config.Window)
	if err != nil {
		return Result{}, fmt.Errorf("measure 1 thread: %w", err)
	}

	if err := r.warmup(ctx, def.Body, threads); err != nil {
		return Result{}, fmt.Errorf("warm up %d threads: %w", threads, err)
	}

	multi, err := r.Harness.Run(ctx, def.Body, threads, r.Config.Window)
	if err != nil {
		return Result{}, fmt.Errorf("measure %d threads: %w", threads, err)
	}

	memAfter, err := r.memory(ctx)
	if memErr == nil {
		memErr = err
	}

	var delta float64
	if memErr != nil {
		logger.WarnContext(ctx, "memory sampling failed",
			slog.String("error", memErr.Error()),
		)
	} else {
		delta = memAfter - memBefore
	}

	logger.DebugContext(ctx, "workload measured",
		slog.Int64("completed_1t", single.Completed),
		slog.Int64("completed_mt", multi.Completed),
		slog.Int("threads", threads),
	)

	return Result{
		Name:          def.Name,
		Throughput1:   single.Throughput(),
		ThroughputT:   multi.Throughput(),
		MemoryDeltaMB: delta,
	}, nil
}

// Run measures every definition in registry order, scores the results and
// classifies the composite.
func (r *Runner) Run(ctx context.Context, reg *workload.Registry) (*Payload, error) {
	defs := reg.Definitions()
	if len(defs) == 0 {
		return nil, ErrNoWorkloads
	}

	weights := r.Config.Weights
	if weights == nil {
		weights = score.DefaultWeights()
	}

	threads := max(r.Config.Threads, 1)
	start := time.Now()

	if r.Config.Profile {
		r.Logger.InfoContext(ctx, "running scaling diagnostic",
			slog.Int("threads", threads),
			slog.Int("workloads", len(defs)),
		)
	}

	results := make([]Result, 0, len(defs))
	samples := make([]score.Sample, 0, len(defs))

	for i, def := range defs {
		r.report(Progress{Index: i + 1, Total: len(defs), Name: def.Name})

		res, err := r.Measure(ctx, def)
		if err != nil {
			return nil, fmt.Errorf("measure %q: %w", def.Name, err)
		}

		r.report(Progress{Index: i + 1, Total: len(defs), Name: def.Name, Done: true})

		results = append(results, res)
		samples = append(samples, score.Sample{
			Name:        res.Name,
			Throughput1: res.Throughput1,
			ThroughputT: res.ThroughputT,
		})
	}

	out := score.Score(samples, weights, threads)

	for i, w := range out.Workloads {
		if !w.Known {
			r.Logger.WarnContext(ctx, "no weight configured, using fallback",
				slog.String("workload", w.Name),
				slog.Float64("weight", w.BaseWeight),
			)
		}

		results[i].BaseWeight = w.BaseWeight
		results[i].AdjustedWeight = w.AdjustedWeight
		results[i].EfficiencyPct = w.EfficiencyPct
		results[i].Scaling = score.Scaling(w.Throughput1, w.ThroughputT)
		results[i].WeightedScore = w.ThroughputT * w.AdjustedWeight

		if r.Config.Profile {
			r.Logger.InfoContext(ctx, "scaling",
				slog.String("workload", w.Name),
				slog.Float64("scaling", results[i].Scaling),
				slog.Float64("efficiency_pct", w.EfficiencyPct),
			)
		}
	}

	return &Payload{
		Results:        results,
		CompositeScore: out.Composite,
		Tier:           out.Tier,
		Threads:        threads,
		ProfileMode:    r.Config.Profile,
		System:         r.system(ctx),
		Skipped:        reg.Skipped(),
		StartedAt:      start,
		Elapsed:        time.Since(start),
	}, nil
}

func (r *Runner) warmup(ctx context.Context, body workload.Body, threads int) error {
	if r.Config.Warmup <= 0 {
		return nil
	}

	_, err := r.Harness.Run(ctx, body, threads, r.Config.Warmup)

	return err
}

func (r *Runner) memory(ctx context.Context) (float64, error) {
	if r.Memory != nil {
		return r.Memory(ctx)
	}

	return ProcessRSSMB(ctx)
}

func (r *Runner) system(ctx context.Context) SystemInfo {
	if r.System != nil {
		return r.System(ctx)
	}

	return CollectSystemInfo(ctx)
}

func (r *Runner) report(p Progress) {
	if r.Progress != nil {
		r.Progress(p)
	}
}
