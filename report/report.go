// Package report renders run payloads as a console summary, JSON, an HTML
// page and a Prometheus textfile.
package report

import (
	"encoding/json"
	"fmt"
	"io"
	"math"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"github.com/weiihann/heft/harness"
)

// Efficiency bands, in percent of linear scaling.
const (
	EfficiencyGood = 60.0
	EfficiencyFair = 30.0
)

const boxWidth = 60

// Title is the banner shown above every report.
const Title = "Heft Index"

// Generate writes the console summary for p: a system header, the
// per-workload table and the final score box.
func Generate(w io.Writer, p *harness.Payload) error {
	if p == nil || len(p.Results) == 0 {
		return fmt.Errorf("no results to report")
	}

	r := lipgloss.NewRenderer(w)

	if err := Header(w, r, p.System); err != nil {
		return err
	}

	threadsLabel := fmt.Sprintf("%dT ops/s", p.Threads)

	t := table.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(r.NewStyle().Foreground(lipgloss.Color("8"))).
		Headers("Workload", "1T ops/s", threadsLabel, "Scaling",
			"Efficiency", "Weight", "Mem Δ").
		StyleFunc(func(row, col int) lipgloss.Style {
			s := r.NewStyle().Padding(0, 1)
			if row == table.HeaderRow {
				return s.Bold(true)
			}
			if col > 0 {
				s = s.Align(lipgloss.Right)
			}
			if col == 4 && row >= 0 && row < len(p.Results) {
				s = s.Foreground(efficiencyColor(p.Results[row].EfficiencyPct))
			}

			return s
		})

	for _, res := range p.Results {
		t.Row(
			res.Name,
			Humanize(res.Throughput1),
			Humanize(res.ThroughputT),
			fmt.Sprintf("%.2fx", res.Scaling),
			fmt.Sprintf("%.1f%%", res.EfficiencyPct),
			fmt.Sprintf("%.2f", res.AdjustedWeight),
			formatMB(res.MemoryDeltaMB),
		)
	}

	fmt.Fprintln(w, t.Render())

	for _, s := range p.Skipped {
		fmt.Fprintf(w, "Skipped %s: %s\n", s.Name, s.Reason)
	}

	scoreLine := fmt.Sprintf("HEFT INDEX: %.0f  (%s)", p.CompositeScore, p.Tier)
	box := r.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color("4")).
		Width(boxWidth).
		Padding(0, 1).
		Bold(true).
		Foreground(lipgloss.Color("2")).
		Render(scoreLine)

	fmt.Fprintln(w)
	fmt.Fprintln(w, box)

	return nil
}

// Header writes the banner box describing the host.
func Header(w io.Writer, r *lipgloss.Renderer, info harness.SystemInfo) error {
	lines := []string{
		r.NewStyle().Bold(true).Render(Title),
		fmt.Sprintf("%s • %s/%s • %d Cores • GOMAXPROCS %d",
			info.GoVersion, info.OS, info.Arch, info.NumCPU, info.GOMAXPROCS),
	}

	var extra []string
	if info.CPUModel != "" {
		extra = append(extra, info.CPUModel)
	}
	if info.TotalMemoryMB > 0 {
		extra = append(extra, formatMB(float64(info.TotalMemoryMB))+" RAM")
	}
	if info.SQLiteVersion != "" {
		extra = append(extra, "SQLite "+info.SQLiteVersion)
	}
	if len(extra) > 0 {
		lines = append(lines, strings.Join(extra, " • "))
	}

	box := r.NewStyle().
		Border(lipgloss.NormalBorder()).
		BorderForeground(lipgloss.Color("4")).
		Width(boxWidth).
		Padding(0, 1).
		Render(strings.Join(lines, "\n"))

	_, err := fmt.Fprintln(w, box)

	return err
}

// GenerateJSON writes p as indented JSON to w.
func GenerateJSON(w io.Writer, p *harness.Payload) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")

	return enc.Encode(p)
}

// ReadJSON decodes a payload written by GenerateJSON.
func ReadJSON(r io.Reader) (*harness.Payload, error) {
	var p harness.Payload
	if err := json.NewDecoder(r).Decode(&p); err != nil {
		return nil, fmt.Errorf("decode payload: %w", err)
	}

	return &p, nil
}

// Humanize formats an ops/s figure: 0, 123.4, 1.2k, 3.4M.
func Humanize(ops float64) string {
	switch {
	case ops == 0 || math.IsNaN(ops):
		return "0"
	case ops >= 1_000_000:
		return fmt.Sprintf("%.1fM", ops/1_000_000)
	case ops >= 1_000:
		return fmt.Sprintf("%.1fk", ops/1_000)
	default:
		return fmt.Sprintf("%.1f", ops)
	}
}

// Band names the efficiency band of pct: good, fair or poor.
func Band(pct float64) string {
	switch {
	case pct >= EfficiencyGood:
		return "good"
	case pct >= EfficiencyFair:
		return "fair"
	default:
		return "poor"
	}
}

func efficiencyColor(pct float64) lipgloss.Color {
	switch Band(pct) {
	case "good":
		return lipgloss.Color("2")
	case "fair":
		return lipgloss.Color("3")
	default:
		return lipgloss.Color("1")
	}
}

func formatMB(mb float64) string {
	if mb == 0 {
		return "-"
	}

	sign := ""
	if mb < 0 {
		sign = "-"
		mb = -mb
	}

	units := []string{"MB", "GB", "TB"}
	unit := 0

	for mb >= 1024 && unit < len(units)-1 {
		mb /= 1024
		unit++
	}

	formatted := fmt.Sprintf("%.1f", mb)
	formatted = strings.TrimRight(formatted, "0")
	formatted = strings.TrimRight(formatted, ".")

	return sign + formatted + " " + units[unit]
}
