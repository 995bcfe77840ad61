// Package alongstep applies the continuous part of a simulation step to a
// batch of tracks: scattering step limit, propagation, scattering, time,
// energy loss and step bookkeeping, always in that order.
package alongstep

import (
	"math"

	"github.com/san-kum/magtrack/internal/assert"
	"github.com/san-kum/magtrack/internal/core"
	"github.com/san-kum/magtrack/internal/msc"
	"github.com/san-kum/magtrack/internal/propagate"
)

// Stage transforms one track in place.
type Stage interface {
	Apply(track core.TrackView)
}

// MscStepLimitApplier converts the physics step into a geometric step when
// scattering applies. Otherwise the geometric path is zeroed so that
// MscApplier skips the track.
type MscStepLimitApplier struct {
	Msc msc.Model
}

func (a MscStepLimitApplier) Apply(track core.TrackView) {
	if a.Msc != nil && a.Msc.IsApplicable(track, track.Sim().StepLength()) {
		a.Msc.LimitStep(track)
		assert.Ensure(track.MscStep().GeomPath > 0, "scattering step limit left no geometric path")
		return
	}
	track.MscStep().GeomPath = 0
}

// PropagatorFactory makes the propagator for one track and one step.
type PropagatorFactory func(track core.TrackView) propagate.Propagator

// PropagationApplier moves the track and records why the step ended early.
type PropagationApplier struct {
	MakePropagator PropagatorFactory
}

func (a PropagationApplier) Apply(track core.TrackView) {
	sim := track.Sim()
	step := sim.StepLength()
	if step == 0 {
		// Stopped particle waiting for an at-rest interaction
		assert.Expect(track.Particle().IsStopped() && sim.PostStepAction() == core.ActionDiscrete &&
			track.Physics().AtRestProcess(), "zero step for a track that is not stopped at rest")
		return
	}

	g := track.Geo()
	start := g.Pos()
	prop := a.MakePropagator(track)
	p := prop.Propagate(step)
	if g.Pos() == start {
		// The track cannot make progress
		track.ApplyErrored()
		return
	}
	distance := math.Min(p.Distance, step)

	if prop.TracksCanLoop() {
		sim.UpdateLooping(p.Looping)
	}
	switch {
	case prop.TracksCanLoop() && p.Looping:
		sim.SetStepLength(distance)
		particle := track.Particle()
		if particle.IsStable() && sim.IsLooping(particle.ParticleID(), particle.Energy()) {
			sim.SetPostStepAction(core.ActionTrackingCut)
		} else {
			sim.SetPostStepAction(core.ActionPropagationLimit)
		}
	case p.Boundary:
		sim.Step(distance, core.ActionBoundary)
	case p.Distance < step:
		sim.Step(distance, core.ActionPropagationLimit)
	}
}

// MscApplier converts the traveled geometric path back to a true path and
// deflects the track.
type MscApplier struct {
	Msc msc.Model
}

func (a MscApplier) Apply(track core.TrackView) {
	if a.Msc == nil || track.Sim().Status() != core.StatusAlive || track.MscStep().GeomPath == 0 {
		return
	}
	a.Msc.ApplyStep(track)
}

// TimeUpdater advances the lab time by the step duration.
type TimeUpdater struct{}

func (TimeUpdater) Apply(track core.TrackView) {
	sim := track.Sim()
	if sim.Status() == core.StatusErrored {
		return
	}
	// The speed underflows to zero for vanishing kinetic energy
	if speed := track.Particle().Speed(); speed > 0 {
		sim.AddTime(sim.StepLength() / speed)
	}
}

// TrackUpdater counts the step, flags runaway tracks and consumes the
// interaction mean free path traveled. An errored step is not counted.
type TrackUpdater struct{}

func (TrackUpdater) Apply(track core.TrackView) {
	sim := track.Sim()
	if sim.Status() == core.StatusErrored {
		return
	}
	sim.IncrementNumSteps()

	action := sim.PostStepAction()
	if max := sim.MaxSteps(); max > 0 && sim.NumSteps() >= max &&
		action != core.ActionTrackingCut && sim.Status() == core.StatusAlive {
		track.ApplyErrored()
		return
	}
	if action == core.ActionDiscrete || action == core.ActionTrackingCut {
		return
	}

	physics := track.Physics()
	mfp := physics.InteractionMFP() - sim.StepLength()*physics.MacroXS()
	assert.That(mfp > 0 || sim.Status() != core.StatusAlive, "interaction mfp %g after a non-discrete step", mfp)
	physics.SetInteractionMFP(math.Max(mfp, 0))
}
