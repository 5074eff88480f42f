// Package harness measures registered workloads: it drives the concurrent
// timed windows, absorbs transient contention through the retry policy and
// assembles the scored run payload.
package harness

import (
	"time"

	"github.com/weiihann/heft/score"
	"github.com/weiihann/heft/workload"
)

// PhaseSample is the raw outcome of one timed window.
type PhaseSample struct {
	Threads   int
	Completed int64
	Window    time.Duration
}

// Throughput returns completed invocations per second of window.
func (s PhaseSample) Throughput() float64 {
	if s.Window <= 0 {
		return 0
	}

	return float64(s.Completed) / s.Window.Seconds()
}

// Result holds the measured and scored outcome for one workload.
type Result struct {
	Name           string  `json:"name"`
	Throughput1    float64 `json:"throughput_1t"`
	ThroughputT    float64 `json:"throughput_mt"`
	Scaling        float64 `json:"scaling"`
	MemoryDeltaMB  float64 `json:"memory_delta_mb"`
	EfficiencyPct  float64 `json:"efficiency_pct"`
	BaseWeight     float64 `json:"base_weight"`
	AdjustedWeight float64 `json:"adjusted_weight"`
	WeightedScore  float64 `json:"score"`
}

// Payload is the complete, self-contained outcome of a run.
type Payload struct {
	Results        []Result        `json:"workloads"`
	CompositeScore float64         `json:"composite_score"`
	Tier           score.Tier      `json:"tier"`
	Threads        int             `json:"threads"`
	ProfileMode    bool            `json:"profile_mode"`
	System         SystemInfo      `json:"system"`
	Skipped        []workload.Skip `json:"skipped,omitempty"`
	StartedAt      time.Time       `json:"started_at"`
	Elapsed        time.Duration   `json:"elapsed_ns"`
}
