package report

import (
	"embed"
	"encoding/json"
	"fmt"
	"html/template"
	"io"

	"github.com/weiihann/heft/harness"
	"github.com/weiihann/heft/score"
	"github.com/weiihann/heft/workload"
)

//go:embed templates/report.html.tmpl
var htmlFS embed.FS

var htmlTemplate = template.Must(
	template.ParseFS(htmlFS, "templates/report.html.tmpl"))

// Chart geometry for the inline SVG.
const (
	chartWidth     = 900
	chartLabelSpan = 180
	chartBarHeight = 12
	chartRowHeight = 34
)

// ChartData is the series embedded in the HTML report.
type ChartData struct {
	Labels []string  `json:"labels"`
	Data1T []float64 `json:"data_1t"`
	DataMT []float64 `json:"data_mt"`
}

// NewChartData extracts the chart series from p.
func NewChartData(p *harness.Payload) ChartData {
	c := ChartData{
		Labels: make([]string, len(p.Results)),
		Data1T: make([]float64, len(p.Results)),
		DataMT: make([]float64, len(p.Results)),
	}

	for i, r := range p.Results {
		c.Labels[i] = r.Name
		c.Data1T[i] = r.Throughput1
		c.DataMT[i] = r.ThroughputT
	}

	return c
}

type htmlBar struct {
	Label          string
	LabelY, Y1, YT int
	Width1, WidthT int
	Value1, ValueT string
}

type htmlChart struct {
	Width, Height     int
	Offset, BarHeight int
	Bars              []htmlBar
}

type htmlRow struct {
	Name        string
	Throughput1 string
	ThroughputT string
	Scaling     string
	Efficiency  string
	Band        string
	Weight      string
	Memory      string
}

type htmlPage struct {
	Title     string
	System    harness.SystemInfo
	Threads   int
	Composite float64
	Tier      score.Tier
	Chart     htmlChart
	Rows      []htmlRow
	Skipped   []workload.Skip
	ChartData template.JS
}

// GenerateHTML writes a self-contained HTML report for p.
func GenerateHTML(w io.Writer, p *harness.Payload) error {
	if p == nil || len(p.Results) == 0 {
		return fmt.Errorf("no results to report")
	}

	data, err := json.Marshal(NewChartData(p))
	if err != nil {
		return fmt.Errorf("encode chart data: %w", err)
	}

	page := htmlPage{
		Title:     Title,
		System:    p.System,
		Threads:   p.Threads,
		Composite: p.CompositeScore,
		Tier:      p.Tier,
		Chart:     buildChart(p),
		Skipped:   p.Skipped,
		ChartData: template.JS(data),
	}

	for _, r := range p.Results {
		page.Rows = append(page.Rows, htmlRow{
			Name:        r.Name,
			Throughput1: Humanize(r.Throughput1),
			ThroughputT: Humanize(r.ThroughputT),
			Scaling:     fmt.Sprintf("%.2fx", r.Scaling),
			Efficiency:  fmt.Sprintf("%.1f%%", r.EfficiencyPct),
			Band:        Band(r.EfficiencyPct),
			Weight:      fmt.Sprintf("%.2f", r.AdjustedWeight),
			Memory:      formatMB(r.MemoryDeltaMB),
		})
	}

	if err := htmlTemplate.Execute(w, page); err != nil {
		return fmt.Errorf("render html: %w", err)
	}

	return nil
}

func buildChart(p *harness.Payload) htmlChart {
	c := htmlChart{
		Width:     chartWidth,
		Height:    len(p.Results)*chartRowHeight + chartBarHeight,
		Offset:    chartLabelSpan,
		BarHeight: chartBarHeight,
	}

	var peak float64
	for _, r := range p.Results {
		peak = max(peak, r.Throughput1, r.ThroughputT)
	}

	span := float64(chartWidth - chartLabelSpan)
	scale := func(v float64) int {
		if peak <= 0 {
			return 0
		}

		return int(v / peak * span)
	}

	for i, r := range p.Results {
		top := i * chartRowHeight
		c.Bars = append(c.Bars, htmlBar{
			Label:  r.Name,
			LabelY: top + chartBarHeight + 4,
			Y1:     top,
			YT:     top + chartBarHeight + 2,
			Width1: scale(r.Throughput1),
			WidthT: scale(r.ThroughputT),
			Value1: Humanize(r.Throughput1),
			ValueT: Humanize(r.ThroughputT),
		})
	}

	return c
}
