// Package propagate moves a track along its step through the geometry,
// either in a straight line or along a curved trajectory in a magnetic
// field.
package propagate

import (
	"github.com/san-kum/magtrack/internal/geo"
)

// Propagator moves one track up to a requested step length.
type Propagator interface {
	Propagate(step float64) geo.Propagation
	// TracksCanLoop reports whether a propagation may be flagged as looping.
	TracksCanLoop() bool
}

// Linear moves along the current direction to the next boundary or the end
// of the step.
type Linear struct {
	geo geo.TrackView
}

func NewLinear(g geo.TrackView) Linear {
	return Linear{geo: g}
}

func (l Linear) Propagate(step float64) geo.Propagation {
	result := l.geo.FindNextStep(step)
	if result.Boundary {
		l.geo.MoveToBoundary()
	} else {
		l.geo.MoveInternalDist(result.Distance)
	}
	return result
}

func (Linear) TracksCanLoop() bool { return false }
