// Package suite holds the bundled workloads and registers the ones this
// host can run. Optional workloads are guarded by a capability probe; a
// failed probe records a skip instead of a registration.
package suite

import (
	"context"
	"fmt"
	"log/slog"
	"slices"

	"github.com/sahilm/fuzzy"

	"github.com/weiihann/heft/score"
	"github.com/weiihann/heft/store"
	"github.com/weiihann/heft/workload"
)

// Bundled workload names.
const (
	ActiveRecord = "Active Record Heft"
	View         = "View Heft"
	SolidQueue   = "Solid Queue Heft"
	Cache        = "Cache Heft"
	Image        = "Image Heft"
	Request      = "Request Heft"
	Search       = "Search Heft"
)

// Env is what the bundled workloads need besides their connection.
type Env struct {
	Pool   *store.Pool
	Logger *slog.Logger

	// Weights supplies base weights. Nil uses score.DefaultWeights.
	Weights score.Weights

	// ImageSample is a JPEG or PNG to resize. Empty synthesizes one.
	ImageSample string

	// Seed drives fixture generation.
	Seed int64

	// Exclude names workloads to skip.
	Exclude []string
}

type builder func(ctx context.Context, env Env) (workload.Body, error)

type entry struct {
	name  string
	build builder
}

var bundled = []entry{
	{ActiveRecord, buildActiveRecord},
	{View, buildView},
	{SolidQueue, buildSolidQueue},
	{Cache, buildCache},
	{Image, buildImage},
	{Request, buildRequest},
	{Search, buildSearch},
}

// Names returns the bundled workload names in registration order.
func Names() []string {
	names := make([]string, len(bundled))
	for i, e := range bundled {
		names[i] = e.name
	}

	return names
}

// Register probes and registers every bundled workload into reg. A
// workload whose probe fails, or that env excludes, is recorded as a skip.
func Register(ctx context.Context, reg *workload.Registry, env Env) error {
	weights := env.Weights
	if weights == nil {
		weights = score.DefaultWeights()
	}

	warnUnknownExcludes(ctx, env)

	for _, e := range bundled {
		if slices.Contains(env.Exclude, e.name) {
			reg.Skip(e.name, "excluded by configuration")

			continue
		}

		body, err := e.build(ctx, env)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}

			env.Logger.WarnContext(ctx, "skipping workload",
				slog.String("workload", e.name),
				slog.String("reason", err.Error()),
			)
			reg.Skip(e.name, err.Error())

			continue
		}

		weight, _ := weights.Lookup(e.name)
		if err := reg.Register(e.name, weight, body); err != nil {
			return fmt.Errorf("register %q: %w", e.name, err)
		}
	}

	return nil
}

func warnUnknownExcludes(ctx context.Context, env Env) {
	names := Names()

	for _, ex := range env.Exclude {
		if slices.Contains(names, ex) {
			continue
		}

		attrs := []any{slog.String("name", ex)}
		if matches := fuzzy.Find(ex, names); len(matches) > 0 {
			attrs = append(attrs, slog.String("did_you_mean", matches[0].Str))
		}

		env.Logger.WarnContext(ctx, "excluded workload does not exist", attrs...)
	}
}
