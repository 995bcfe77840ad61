package alongstep

import (
	"github.com/san-kum/magtrack/internal/assert"
	"github.com/san-kum/magtrack/internal/core"
	"github.com/san-kum/magtrack/internal/fluct"
	"github.com/san-kum/magtrack/internal/phys"
)

// ElossCalculator computes the energy lost over the current step.
type ElossCalculator interface {
	CalcEloss(track core.TrackView) float64
}

// MeanELoss loses the mean energy given by the stopping power tables.
type MeanELoss struct{}

func (MeanELoss) CalcEloss(track core.TrackView) float64 {
	return phys.CalcMeanEnergyLoss(track.Particle(), track.Physics(), track.Sim().StepLength())
}

// FluctELoss samples the loss around the mean.
type FluctELoss struct {
	Params *fluct.Params
}

func (f FluctELoss) CalcEloss(track core.TrackView) float64 {
	particle, physics := track.Particle(), track.Physics()
	step := track.Sim().StepLength()
	mean := phys.CalcMeanEnergyLoss(particle, physics, step)

	energy := particle.Energy()
	if !(mean > 0 && mean < energy) {
		return mean
	}
	eloss := fluct.NewHelper(f.Params, particle, physics, mean, step).Sample(track.Rng())
	if eloss >= energy {
		// The range only accounts for the mean loss. Stopping on a
		// boundary would bias the crossing, so fall back to the mean there.
		if track.Geo().IsOnBoundary() {
			return mean
		}
		return energy
	}
	return eloss
}

// ElossApplier deposits the continuous energy loss and stops tracks that
// run out of energy.
type ElossApplier[C ElossCalculator] struct {
	Calc C
}

func (a ElossApplier[C]) Apply(track core.TrackView) {
	sim, particle, physics := track.Sim(), track.Particle(), track.Physics()
	if sim.Status() != core.StatusAlive || particle.IsStopped() || !physics.EnergyLossGrid() {
		return
	}

	action := sim.PostStepAction()
	// Tracks are not cut on a boundary unless the range ran out
	applyCut := action != core.ActionDiscrete &&
		(!track.Geo().IsOnBoundary() || action == core.ActionRange)

	energy := particle.Energy()
	deposited := a.Calc.CalcEloss(track)
	assert.That(deposited >= 0 && deposited <= energy, "energy loss %g outside [0, %g]", deposited, energy)
	if applyCut && energy-deposited <= physics.LowestEnergy() {
		deposited = energy
	}

	if deposited > 0 {
		physics.DepositEnergy(deposited)
		particle.SubtractEnergy(deposited)
	}
	if !particle.IsStopped() {
		return
	}
	if physics.AtRestProcess() {
		sim.SetPostStepAction(core.ActionDiscrete)
	} else {
		sim.SetStatus(core.StatusKilled)
		sim.SetPostStepAction(core.ActionRange)
	}
}
