// Package msc implements multiple Coulomb scattering along a step: the
// step limit, the conversion between true and geometric path lengths, and
// the angular deflection with lateral displacement at the end of the step.
package msc

import (
	"github.com/san-kum/magtrack/internal/core"
)

// Model is a multiple scattering model acting on one track.
type Model interface {
	// IsApplicable reports whether the track scatters over a step of the
	// given length.
	IsApplicable(track core.TrackView, step float64) bool
	// LimitStep shortens the step if needed and converts it to a geometric
	// path, recording both in the track's MscStep.
	LimitStep(track core.TrackView)
	// ApplyStep converts the traveled geometric path back to a true path
	// and deflects the track.
	ApplyStep(track core.TrackView)
}
