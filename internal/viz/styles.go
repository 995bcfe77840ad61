package viz

import (
	"fmt"
	"sort"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/san-kum/magtrack/internal/core"
	"github.com/san-kum/magtrack/internal/sim"
)

var (
	panelStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("#444466")).
			Padding(0, 2)

	statsStyle = lipgloss.NewStyle().
			Border(lipgloss.NormalBorder(), false, false, false, true).
			BorderForeground(lipgloss.Color("240")).
			Padding(1, 2).
			Width(44)

	helpStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("240")).MarginTop(1)

	SparkHigh = lipgloss.NewStyle().Foreground(lipgloss.Color("#00ff88"))
	SparkMid  = lipgloss.NewStyle().Foreground(lipgloss.Color("#ffcc00"))
	SparkLow  = lipgloss.NewStyle().Foreground(lipgloss.Color("#ff4444"))
)

// ProgressBar renders a fraction in [0, 1] as a bar of the given width.
func ProgressBar(fraction float64, width int) string {
	filled := min(max(int(fraction*float64(width)), 0), width)
	bar := strings.Repeat("█", filled) + strings.Repeat("░", width-filled)

	if fraction > 0.8 {
		return SparkHigh.Render(bar)
	} else if fraction > 0.4 {
		return SparkMid.Render(bar)
	}
	return SparkLow.Render(bar)
}

// SparklineChart renders the most recent values that fit in width.
func SparklineChart(values []float64, width int) string {
	if len(values) == 0 {
		return strings.Repeat("─", width)
	}
	if len(values) > width {
		values = values[len(values)-width:]
	}

	chars := []rune{'▁', '▂', '▃', '▄', '▅', '▆', '▇', '█'}
	lo, hi := values[0], values[0]
	for _, v := range values {
		lo, hi = min(lo, v), max(hi, v)
	}
	span := hi - lo
	if span == 0 {
		span = 1
	}

	var b strings.Builder
	for _, v := range values {
		norm := (v - lo) / span
		c := string(chars[min(max(int(norm*float64(len(chars)-1)), 0), len(chars)-1)])
		switch {
		case norm > 0.7:
			b.WriteString(SparkHigh.Render(c))
		case norm > 0.3:
			b.WriteString(SparkMid.Render(c))
		default:
			b.WriteString(SparkLow.Render(c))
		}
	}
	return b.String()
}

type particleStats struct {
	count, escaped, steps int
	deposit, initial      float64
}

// RenderSummary formats the outcome of a run: track statuses, energy
// balance, metrics and a per-particle breakdown.
func RenderSummary(r *sim.Result) string {
	theme := CurrentTheme
	label, value := theme.label(), theme.value()
	row := func(name, v string) string {
		return label.Render(fmt.Sprintf("%-18s", name)) + value.Render(v)
	}

	var lines []string
	lines = append(lines, theme.title().Render(r.Label), "")
	lines = append(lines, row("tracks", fmt.Sprintf("%d", len(r.Tracks))))
	lines = append(lines, row("iterations", fmt.Sprintf("%d", r.Iterations)))

	counts := r.Counts()
	var status []string
	for _, s := range []core.TrackStatus{core.StatusAlive, core.StatusKilled, core.StatusErrored} {
		if n := counts[s]; n > 0 {
			status = append(status, theme.status(s.String()).Render(fmt.Sprintf("%s %d", s, n)))
		}
	}
	lines = append(lines, row("status", strings.Join(status, "  ")))

	var initial, escaped float64
	for _, t := range r.Tracks {
		initial += t.InitialEnergy
		if t.Escaped {
			escaped += t.Energy
		}
	}
	deposit := r.TotalDeposit()
	lines = append(lines, row("deposited", fmt.Sprintf("%.6g MeV", deposit)))
	lines = append(lines, row("escaped", fmt.Sprintf("%.6g MeV", escaped)))
	if initial > 0 {
		lines = append(lines, row("absorbed", ProgressBar(deposit/initial, 20)+fmt.Sprintf(" %.1f%%", 100*deposit/initial)))
	}

	if len(r.Metrics) > 0 {
		lines = append(lines, "", theme.accent().Render("metrics"))
		names := make([]string, 0, len(r.Metrics))
		for name := range r.Metrics {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			lines = append(lines, row(name, fmt.Sprintf("%.6g", r.Metrics[name])))
		}
	}

	byParticle := make(map[string]*particleStats)
	var particles []string
	for _, t := range r.Tracks {
		ps, ok := byParticle[t.Particle]
		if !ok {
			ps = &particleStats{}
			byParticle[t.Particle] = ps
			particles = append(particles, t.Particle)
		}
		ps.count++
		ps.steps += t.NumSteps
		ps.deposit += t.Deposit
		ps.initial += t.InitialEnergy
		if t.Escaped {
			ps.escaped++
		}
	}
	sort.Strings(particles)
	lines = append(lines, "", theme.accent().Render(fmt.Sprintf("%-8s %6s %8s %8s %12s", "particle", "count", "escaped", "steps", "deposit")))
	for _, name := range particles {
		ps := byParticle[name]
		lines = append(lines, value.Render(fmt.Sprintf("%-8s %6d %8d %8.1f %12.6g",
			name, ps.count, ps.escaped, float64(ps.steps)/float64(ps.count), ps.deposit)))
	}

	if len(r.Errors) > 0 {
		lines = append(lines, "", theme.status("errored").Render(fmt.Sprintf("%d errored tracks", len(r.Errors))))
		for i, err := range r.Errors {
			if i == 5 {
				lines = append(lines, label.Render(fmt.Sprintf("  ... %d more", len(r.Errors)-5)))
				break
			}
			lines = append(lines, label.Render("  "+err.Error()))
		}
	}

	return panelStyle.Render(lipgloss.JoinVertical(lipgloss.Left, lines...))
}
