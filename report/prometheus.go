package report

import (
	"fmt"
	"io"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/common/expfmt"

	"github.com/weiihann/heft/harness"
	"github.com/weiihann/heft/score"
)

const metricNamespace = "heft"

// NewRegistry returns a registry holding gauges for every result in p.
func NewRegistry(p *harness.Payload) (*prometheus.Registry, error) {
	reg := prometheus.NewRegistry()

	workloadGauge := func(name, help string) *prometheus.GaugeVec {
		return prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: metricNamespace,
			Name:      name,
			Help:      help,
		}, []string{"workload"})
	}

	throughput := prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: metricNamespace,
		Name:      "throughput_ops_per_second",
		Help:      "Completed workload invocations per second.",
	}, []string{"workload", "threads"})
	efficiency := workloadGauge("scaling_efficiency_percent",
		"Concurrent throughput as a percentage of linear scaling.")
	weight := workloadGauge("adjusted_weight",
		"Renormalized weight of the workload in the composite score.")
	memory := workloadGauge("memory_delta_megabytes",
		"Process resident memory change while measuring the workload.")
	composite := prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: metricNamespace,
		Name:      "composite_score",
		Help:      "Weighted composite throughput score.",
	})
	tier := prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: metricNamespace,
		Name:      "tier",
		Help:      "1 for the tier the composite score falls in, 0 otherwise.",
	}, []string{"tier"})

	for _, c := range []prometheus.Collector{
		throughput, efficiency, weight, memory, composite, tier,
	} {
		if err := reg.Register(c); err != nil {
			return nil, fmt.Errorf("register collector: %w", err)
		}
	}

	threads := fmt.Sprintf("%d", p.Threads)
	for _, r := range p.Results {
		throughput.WithLabelValues(r.Name, "1").Set(r.Throughput1)
		throughput.WithLabelValues(r.Name, threads).Set(r.ThroughputT)
		efficiency.WithLabelValues(r.Name).Set(r.EfficiencyPct)
		weight.WithLabelValues(r.Name).Set(r.AdjustedWeight)
		memory.WithLabelValues(r.Name).Set(r.MemoryDeltaMB)
	}

	composite.Set(p.CompositeScore)

	for _, t := range []score.Tier{
		score.TierEntry, score.TierProduction, score.TierHighPerformance,
	} {
		v := 0.0
		if t == p.Tier {
			v = 1
		}
		tier.WithLabelValues(t.String()).Set(v)
	}

	return reg, nil
}

// WritePrometheus writes p in the Prometheus text exposition format, as
// read by the node_exporter textfile collector.
func WritePrometheus(w io.Writer, p *harness.Payload) error {
	if p == nil {
		return fmt.Errorf("no payload to export")
	}

	reg, err := NewRegistry(p)
	if err != nil {
		return err
	}

	families, err := reg.Gather()
	if err != nil {
		return fmt.Errorf("gather metrics: %w", err)
	}

	for _, mf := range families {
		if _, err := expfmt.MetricFamilyToText(w, mf); err != nil {
			return fmt.Errorf("write %s: %w", mf.GetName(), err)
		}
	}

	return nil
}
