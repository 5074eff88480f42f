package report

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/common/expfmt"

	"github.com/weiihann/heft/harness"
	"github.com/weiihann/heft/score"
	"github.com/weiihann/heft/workload"
)

func samplePayload() *harness.Payload {
	return &harness.Payload{
		Results: []harness.Result{
			{
				Name:           "Active Record Heft",
				Throughput1:    100,
				ThroughputT:    200,
				Scaling:        2,
				EfficiencyPct:  50,
				BaseWeight:     0.4,
				AdjustedWeight: 0.8,
				MemoryDeltaMB:  1.5,
				WeightedScore:  160,
			},
			{
				Name:           "Cache Heft",
				Throughput1:    50,
				ThroughputT:    100,
				Scaling:        2,
				EfficiencyPct:  12.5,
				BaseWeight:     0.1,
				AdjustedWeight: 0.2,
				WeightedScore:  20,
			},
		},
		CompositeScore: 180,
		Tier:           score.TierProduction,
		Threads:        4,
		System: harness.SystemInfo{
			GoVersion:     "go1.24.0",
			OS:            "linux",
			Arch:          "amd64",
			NumCPU:        8,
			GOMAXPROCS:    8,
			SQLiteVersion: "3.46.1",
		},
		Skipped: []workload.Skip{{Name: "Image Heft", Reason: "no image codec"}},
	}
}

func TestGenerate(t *testing.T) {
	var buf bytes.Buffer
	if err := Generate(&buf, samplePayload()); err != nil {
		t.Fatalf("Generate failed: %v", err)
	}

	output := buf.String()

	for _, want := range []string{
		Title,
		"8 Cores",
		"SQLite 3.46.1",
		"Active Record Heft",
		"Cache Heft",
		"4T ops/s",
		"2.00x",
		"50.0%",
		"12.5%",
		"0.80",
		"1.5 MB",
		"Skipped Image Heft: no image codec",
		"HEFT INDEX: 180",
		"Production-Ready",
	} {
		if !strings.Contains(output, want) {
			t.Errorf("expected %q in output", want)
		}
	}
}

func TestGenerateEmpty(t *testing.T) {
	var buf bytes.Buffer
	if err := Generate(&buf, &harness.Payload{}); err == nil {
		t.Error("expected error for empty results")
	}
	if err := Generate(&buf, nil); err == nil {
		t.Error("expected error for nil payload")
	}
}

func TestGenerateJSON(t *testing.T) {
	var buf bytes.Buffer
	if err := GenerateJSON(&buf, samplePayload()); err != nil {
		t.Fatalf("GenerateJSON failed: %v", err)
	}

	var raw map[string]any
	if err := json.Unmarshal(buf.Bytes(), &raw); err != nil {
		t.Fatalf("output is not valid JSON: %v", err)
	}
	if raw["tier"] != "Production-Ready" {
		t.Errorf("tier = %v, want Production-Ready", raw["tier"])
	}

	parsed, err := ReadJSON(&buf)
	if err != nil {
		t.Fatalf("ReadJSON failed: %v", err)
	}
	if len(parsed.Results) != 2 {
		t.Fatalf("expected 2 results, got %d", len(parsed.Results))
	}
	if parsed.Results[0].Name != "Active Record Heft" {
		t.Errorf("name = %q, want Active Record Heft", parsed.Results[0].Name)
	}
	if parsed.Tier != score.TierProduction {
		t.Errorf("tier = %s, want %s", parsed.Tier, score.TierProduction)
	}
}

func TestReadJSONInvalid(t *testing.T) {
	if _, err := ReadJSON(strings.NewReader("{not json")); err == nil {
		t.Error("expected error for invalid JSON")
	}
}

func TestGenerateHTML(t *testing.T) {
	var buf bytes.Buffer
	if err := GenerateHTML(&buf, samplePayload()); err != nil {
		t.Fatalf("GenerateHTML failed: %v", err)
	}

	output := buf.String()

	for _, want := range []string{
		"<!DOCTYPE html>",
		"Heft Index: 180 (Production-Ready)",
		"<td>Active Record Heft</td>",
		`<td class="fair">50.0%</td>`,
		`<td class="poor">12.5%</td>`,
		"Image Heft: no image codec",
	} {
		if !strings.Contains(output, want) {
			t.Errorf("expected %q in html", want)
		}
	}

	const open = `<script type="application/json" id="chart-data">`
	start := strings.Index(output, open)
	if start < 0 {
		t.Fatal("chart data script missing")
	}
	rest := output[start+len(open):]
	end := strings.Index(rest, "</script>")
	if end < 0 {
		t.Fatal("chart data script not closed")
	}

	var chart ChartData
	if err := json.Unmarshal([]byte(rest[:end]), &chart); err != nil {
		t.Fatalf("chart data is not valid JSON: %v", err)
	}

	want := NewChartData(samplePayload())
	if len(chart.Labels) != 2 || chart.Labels[1] != want.Labels[1] {
		t.Errorf("labels = %v, want %v", chart.Labels, want.Labels)
	}
	if chart.DataMT[0] != 200 || chart.Data1T[1] != 50 {
		t.Errorf("series = %v / %v", chart.Data1T, chart.DataMT)
	}
}

func TestBuildChartScales(t *testing.T) {
	c := buildChart(samplePayload())

	if len(c.Bars) != 2 {
		t.Fatalf("bars = %d, want 2", len(c.Bars))
	}

	span := chartWidth - chartLabelSpan
	if c.Bars[0].WidthT != span {
		t.Errorf("peak bar width = %d, want %d", c.Bars[0].WidthT, span)
	}
	if c.Bars[1].Width1 != span/4 {
		t.Errorf("quarter bar width = %d, want %d", c.Bars[1].Width1, span/4)
	}
}

func TestWritePrometheus(t *testing.T) {
	var buf bytes.Buffer
	if err := WritePrometheus(&buf, samplePayload()); err != nil {
		t.Fatalf("WritePrometheus failed: %v", err)
	}

	var parser expfmt.TextParser
	families, err := parser.TextToMetricFamilies(&buf)
	if err != nil {
		t.Fatalf("output does not parse: %v", err)
	}

	composite, ok := families["heft_composite_score"]
	if !ok {
		t.Fatal("heft_composite_score missing")
	}
	if got := composite.GetMetric()[0].GetGauge().GetValue(); got != 180 {
		t.Errorf("composite = %v, want 180", got)
	}

	throughput := families["heft_throughput_ops_per_second"]
	if throughput == nil {
		t.Fatal("heft_throughput_ops_per_second missing")
	}
	// Two workloads, each at 1 and 4 threads.
	if got := len(throughput.GetMetric()); got != 4 {
		t.Errorf("throughput series = %d, want 4", got)
	}

	var active string
	for _, m := range families["heft_tier"].GetMetric() {
		if m.GetGauge().GetValue() == 1 {
			active = m.GetLabel()[0].GetValue()
		}
	}
	if active != "Production-Ready" {
		t.Errorf("active tier = %q, want Production-Ready", active)
	}
}

func TestWriteFileRoundTrip(t *testing.T) {
	for _, name := range []string{"heft.json", "heft.json.gz"} {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "out", name)

			if err := WriteFile(path, samplePayload(), GenerateJSON); err != nil {
				t.Fatalf("WriteFile failed: %v", err)
			}

			p, err := ReadFile(path)
			if err != nil {
				t.Fatalf("ReadFile failed: %v", err)
			}
			if p.CompositeScore != 180 {
				t.Errorf("composite = %v, want 180", p.CompositeScore)
			}

			entries, err := os.ReadDir(filepath.Dir(path))
			if err != nil {
				t.Fatalf("read dir: %v", err)
			}
			if len(entries) != 1 {
				t.Errorf("dir has %d entries, want only the payload", len(entries))
			}
		})
	}
}

func TestQuery(t *testing.T) {
	tests := []struct {
		expr string
		want string
	}{
		{"tier", `"Production-Ready"`},
		{"workloads[?efficiency_pct < `30`].name", "[\n  \"Cache Heft\"\n]"},
		{"length(skipped)", "1"},
	}

	for _, tt := range tests {
		got, err := Query(samplePayload(), tt.expr)
		if err != nil {
			t.Fatalf("Query(%q) failed: %v", tt.expr, err)
		}
		if strings.TrimSpace(string(got)) != tt.want {
			t.Errorf("Query(%q) = %s, want %s", tt.expr, got, tt.want)
		}
	}

	if _, err := Query(samplePayload(), "workloads[?"); err == nil {
		t.Error("expected error for invalid expression")
	}
}

func TestWriteJSONColor(t *testing.T) {
	data := []byte(`{"tier": "Entry/Dev"}`)

	var plain bytes.Buffer
	if err := WriteJSONColor(&plain, data, false); err != nil {
		t.Fatalf("plain write failed: %v", err)
	}
	if plain.String() != string(data) {
		t.Errorf("plain = %q, want %q", plain.String(), data)
	}

	var colored bytes.Buffer
	if err := WriteJSONColor(&colored, data, true); err != nil {
		t.Fatalf("colored write failed: %v", err)
	}
	if !strings.Contains(colored.String(), "\x1b[") {
		t.Error("expected ANSI escapes in colored output")
	}
	if !strings.Contains(colored.String(), "Entry/Dev") {
		t.Error("colored output lost content")
	}
}

func TestWatch(t *testing.T) {
	path := filepath.Join(t.TempDir(), "heft.json")
	if err := WriteFile(path, samplePayload(), GenerateJSON); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	got := make(chan *harness.Payload, 4)
	done := make(chan error, 1)

	go func() {
		done <- Watch(ctx, path, logger, func(p *harness.Payload) { got <- p })
	}()

	updated := samplePayload()
	updated.CompositeScore = 250
	updated.Tier = score.TierHighPerformance

	// Keep rewriting until the watcher, which starts asynchronously, sees it.
	ticker := time.NewTicker(50 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case p := <-got:
			if p.CompositeScore != 250 {
				t.Errorf("composite = %v, want 250", p.CompositeScore)
			}
			cancel()
			if err := <-done; err != nil {
				t.Errorf("Watch returned %v", err)
			}

			return

		case <-ticker.C:
			if err := WriteFile(path, updated, GenerateJSON); err != nil {
				t.Fatalf("WriteFile failed: %v", err)
			}

		case <-ctx.Done():
			t.Fatal("timed out waiting for reload")
		}
	}
}

func TestHumanize(t *testing.T) {
	tests := []struct {
		input float64
		want  string
	}{
		{0, "0"},
		{0.44, "0.4"},
		{123.46, "123.5"},
		{999, "999.0"},
		{1000, "1.0k"},
		{1234, "1.2k"},
		{3_400_000, "3.4M"},
	}

	for _, tt := range tests {
		if got := Humanize(tt.input); got != tt.want {
			t.Errorf("Humanize(%v) = %q, want %q", tt.input, got, tt.want)
		}
	}
}

func TestBand(t *testing.T) {
	tests := []struct {
		pct  float64
		want string
	}{
		{100, "good"},
		{60, "good"},
		{59.9, "fair"},
		{30, "fair"},
		{29.9, "poor"},
		{0, "poor"},
	}

	for _, tt := range tests {
		if got := Band(tt.pct); got != tt.want {
			t.Errorf("Band(%v) = %q, want %q", tt.pct, got, tt.want)
		}
	}
}

func TestFormatMB(t *testing.T) {
	tests := []struct {
		input float64
		want  string
	}{
		{0, "-"},
		{1.5, "1.5 MB"},
		{512, "512 MB"},
		{1024, "1 GB"},
		{1536, "1.5 GB"},
		{-2.5, "-2.5 MB"},
	}

	for _, tt := range tests {
		if got := formatMB(tt.input); got != tt.want {
			t.Errorf("formatMB(%v) = %q, want %q", tt.input, got, tt.want)
		}
	}
}
