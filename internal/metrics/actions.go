package metrics

import (
	"github.com/san-kum/magtrack/internal/core"
	"github.com/san-kum/magtrack/internal/sim"
)

// ActionCounts tallies the post-step actions. Its value is the fraction of
// steps limited by a geometry boundary.
type ActionCounts struct {
	name    string
	counts  map[core.ActionID]int
	samples int
}

func NewActionCounts() *ActionCounts {
	return &ActionCounts{
		name:   "boundary_fraction",
		counts: make(map[core.ActionID]int),
	}
}

func (a *ActionCounts) Name() string { return a.name }

func (a *ActionCounts) Observe(ev sim.StepEvent) {
	a.counts[ev.Action]++
	a.samples++
}

func (a *ActionCounts) Value() float64 {
	if a.samples == 0 {
		return 0
	}
	return float64(a.counts[core.ActionBoundary]) / float64(a.samples)
}

func (a *ActionCounts) Count(id core.ActionID) int { return a.counts[id] }

// Counts returns a copy keyed by action label.
func (a *ActionCounts) Counts() map[string]int {
	out := make(map[string]int, len(a.counts))
	for id, n := range a.counts {
		out[id.String()] = n
	}
	return out
}

func (a *ActionCounts) Reset() {
	clear(a.counts)
	a.samples = 0
}
