package propagate

import (
	"math"

	"github.com/san-kum/magtrack/internal/assert"
	"github.com/san-kum/magtrack/internal/geo"
	"github.com/san-kum/magtrack/internal/ode"
	"github.com/san-kum/magtrack/internal/phys"
	"gonum.org/v1/gonum/spatial/r3"
)

// Stepper advances a state along the curved trajectory by one substep.
type Stepper interface {
	Advance(step float64, state ode.OdeState) ode.Substep
	MinimumStep() float64
	DeltaIntersection() float64
	MaxSubsteps() int
}

// Field propagates a charged track through a magnetic field.
//
// The curved step is split into substeps by the stepper; each substep is
// approximated by its chord and tested for a boundary crossing. When a
// chord crosses a boundary the substep is shortened until the straight-line
// intercept is within the intersection tolerance of the curve.
type Field[S Stepper] struct {
	stepper S
	geo     geo.TrackView
	state   ode.OdeState
}

func NewField[S Stepper](stepper S, particle phys.ParticleTrackView, g geo.TrackView) *Field[S] {
	return &Field[S]{
		stepper: stepper,
		geo:     g,
		state:   ode.OdeState{Pos: g.Pos(), Mom: r3.Scale(particle.Momentum(), g.Dir())},
	}
}

func (f *Field[S]) TracksCanLoop() bool { return true }

// State is the position and momentum after the last propagation.
func (f *Field[S]) State() ode.OdeState { return f.state }

func (f *Field[S]) bumpDistance() float64 { return 0.1 * f.stepper.DeltaIntersection() }

func (f *Field[S]) Propagate(step float64) geo.Propagation {
	assert.Expect(step > 0, "nonpositive step %g", step)
	minStep := f.stepper.MinimumStep()
	deltaIntersection := f.stepper.DeltaIntersection()

	result := geo.Propagation{Boundary: f.geo.IsOnBoundary()}
	remaining := step
	substeps := f.stepper.MaxSubsteps()
	for {
		assert.That(r3.Norm(r3.Sub(f.state.Pos, f.geo.Pos())) <= 1e-10*math.Max(1, r3.Norm(f.state.Pos)),
			"ode position %v is not the geometry position %v", f.state.Pos, f.geo.Pos())

		substep := f.stepper.Advance(remaining, f.state)
		assert.That(substep.Length > 0 && substep.Length <= remaining,
			"substep %g outside (0, %g]", substep.Length, remaining)

		chord := ode.MakeChord(f.state.Pos, substep.State.Pos)
		if chord.Length >= minStep {
			f.geo.SetDir(chord.Dir)
		}
		linear := f.geo.FindNextStep(chord.Length + deltaIntersection)

		// Can exceed the substep slightly since the search extends past
		// the chord end
		var updateLength float64
		if chord.Length > 0 {
			updateLength = substep.Length * linear.Distance / chord.Length
		}

		switch {
		case !linear.Boundary:
			f.state = substep.State
			result.Boundary = false
			result.Distance += substep.Length
			remaining = step - result.Distance
			f.geo.MoveInternal(f.state.Pos)
			substeps--
		case result.Boundary && linear.Distance < f.bumpDistance():
			// Starting on a surface and heading back through it
			remaining = substep.Length / 2
		case updateLength <= minStep ||
			ode.IsInterceptClose(f.state.Pos, chord.Dir, linear.Distance, substep.State.Pos, deltaIntersection) ||
			chord.Length == 0:
			result.Boundary = linear.Distance <= chord.Length ||
				result.Distance+updateLength <= step ||
				chord.Length == 0
			if !result.Boundary {
				f.state.Pos = substep.State.Pos
				f.geo.MoveInternal(substep.State.Pos)
			}
			result.Distance += math.Min(updateLength, substep.Length)
			f.state.Mom = substep.State.Mom
			remaining = 0
		default:
			remaining = updateLength
		}

		if !(remaining > minStep && substeps > 0) {
			break
		}
	}

	if substeps == 0 && result.Distance < step {
		result.Looping = true
	} else if result.Distance > 0 {
		if result.Boundary {
			f.geo.MoveToBoundary()
			f.state.Pos = f.geo.Pos()
		} else if result.Distance < step {
			// Roundoff over many substeps
			assert.That(math.Abs(result.Distance-step) <= 1e-8*step,
				"propagated %g short of step %g", result.Distance, step)
			result.Distance = step
		}
	}

	dir := r3.Unit(f.state.Mom)
	f.geo.SetDir(dir)

	if result.Distance == 0 {
		// Stuck on a boundary: push into the volume along the new direction
		result.Distance = math.Min(f.bumpDistance(), step)
		result.Boundary = false
		f.state.Pos = r3.Add(f.state.Pos, r3.Scale(result.Distance, dir))
		f.geo.MoveInternal(f.state.Pos)
	}

	assert.Ensure(result.Distance > 0 && result.Distance <= step*(1+1e-8),
		"propagated %g for step %g", result.Distance, step)
	return result
}
