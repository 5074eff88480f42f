// Package score turns raw per-workload throughput into the heft index: it
// renormalizes base weights over the workloads that actually ran, derives
// scaling efficiency, sums the weighted composite and maps it to a tier.
// Everything here is pure and deterministic.
package score

import "math"

// FallbackWeight is the base weight given to a workload the weight table
// does not know.
const FallbackWeight = 1.0

// Weights maps a workload name to its base weight.
type Weights map[string]float64

// DefaultWeights returns the built-in weight table. The result is a fresh
// map the caller may modify.
func DefaultWeights() Weights {
	return Weights{
		"Active Record Heft": 0.4,
		"View Heft":          0.2,
		"Solid Queue Heft":   0.2,
		"Cache Heft":         0.1,
		"Image Heft":         0.1,
		"Request Heft":       0.3,
		"Search Heft":        0.1,
	}
}

// Lookup returns the base weight for name and whether the table knew it.
func (w Weights) Lookup(name string) (float64, bool) {
	if v, ok := w[name]; ok && v > 0 {
		return v, true
	}

	return FallbackWeight, false
}

// Sample is the raw measurement for one workload.
type Sample struct {
	Name        string
	Throughput1 float64
	ThroughputT float64
}

// Scored is a Sample with its weights and efficiency filled in.
type Scored struct {
	Sample

	// BaseWeight is the declared weight before renormalization.
	BaseWeight float64

	// AdjustedWeight is BaseWeight divided by the sum of base weights over
	// every scored sample. Adjusted weights sum to 1.
	AdjustedWeight float64

	// EfficiencyPct is ThroughputT / (Throughput1 * threads) * 100, or 0
	// when that is undefined.
	EfficiencyPct float64

	// Known is false when BaseWeight came from FallbackWeight.
	Known bool
}

// Output is the result of scoring a set of samples.
type Output struct {
	Workloads []Scored

	// Composite is the sum of ThroughputT * AdjustedWeight in sample order.
	Composite float64

	// WeightPool is the sum of base weights the adjusted weights were
	// normalized against.
	WeightPool float64

	Tier Tier
}

// Score weighs samples against weights for a run at the given thread count.
// Samples keep their order in the output.
func Score(samples []Sample, weights Weights, threads int) Output {
	out := Output{Workloads: make([]Scored, len(samples))}

	for i, s := range samples {
		base, known := weights.Lookup(s.Name)
		out.WeightPool += base
		out.Workloads[i] = Scored{
			Sample:        s,
			BaseWeight:    base,
			Known:         known,
			EfficiencyPct: Efficiency(s.Throughput1, s.ThroughputT, threads),
		}
	}

	for i := range out.Workloads {
		w := &out.Workloads[i]
		w.AdjustedWeight = w.BaseWeight / out.WeightPool
		out.Composite += w.ThroughputT * w.AdjustedWeight
	}

	out.Tier = Classify(out.Composite)

	return out
}

// Efficiency returns how close tT comes to linear scaling of t1 across
// threads, as a percentage. It is 0 when t1 or threads is not positive or
// the ratio is not finite.
func Efficiency(t1, tT float64, threads int) float64 {
	if t1 <= 0 || threads <= 0 {
		return 0
	}

	pct := tT / (t1 * float64(threads)) * 100
	if math.IsNaN(pct) || math.IsInf(pct, 0) || pct < 0 {
		return 0
	}

	return pct
}

// Scaling returns tT / t1, or 0 when t1 is not positive.
func Scaling(t1, tT float64) float64 {
	if t1 <= 0 {
		return 0
	}

	return tT / t1
}
