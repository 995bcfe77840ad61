package metrics

import (
	"github.com/san-kum/magtrack/internal/core"
	"github.com/san-kum/magtrack/internal/sim"
)

// Errored counts the distinct tracks that ended in an error.
type Errored struct {
	name   string
	tracks map[uint64]struct{}
}

func NewErrored() *Errored {
	return &Errored{
		name:   "errored_tracks",
		tracks: make(map[uint64]struct{}),
	}
}

func (e *Errored) Name() string {
	return e.name
}

func (e *Errored) Observe(ev sim.StepEvent) {
	if ev.Status == core.StatusErrored {
		e.tracks[ev.TrackID] = struct{}{}
	}
}

func (e *Errored) Value() float64 {
	return float64(len(e.tracks))
}

func (e *Errored) Reset() {
	clear(e.tracks)
}

// Standard returns the metrics recorded for every run.
func Standard() []sim.Metric {
	return []sim.Metric{NewEnergyDeposit(), NewActionCounts(), NewStepLength(), NewErrored()}
}
