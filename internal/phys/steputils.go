package phys

import (
	"math"

	"github.com/san-kum/magtrack/internal/assert"
)

// Limiter names what bounds a physics step.
type Limiter int

const (
	LimitNone Limiter = iota
	LimitDiscrete
	LimitRange
	LimitFixedStep
)

type StepLimit struct {
	Step    float64
	Limiter Limiter
}

// CalcPhysicsStepLimit picks the shortest of the distance to the next
// discrete interaction, the range-based energy loss step and the fixed step
// limiter. It stores the macroscopic cross section and the range for the
// rest of the step.
func CalcPhysicsStepLimit(particle ParticleTrackView, physics PhysicsTrackView) StepLimit {
	assert.Expect(physics.HasInteractionMFP(), "interaction mfp has not been sampled")

	xs := physics.CalcMacroXS(particle.Energy())
	physics.SetMacroXS(xs)

	limit := StepLimit{Step: math.Inf(1), Limiter: LimitDiscrete}
	if particle.IsStopped() {
		limit.Step = 0
		return limit
	}
	if xs > 0 {
		limit.Step = physics.InteractionMFP() / xs
	}

	if physics.EnergyLossGrid() {
		r := physics.CalcRange(particle.Energy())
		physics.SetDedxRange(r)
		if step := physics.RangeToStep(r); step <= limit.Step {
			limit = StepLimit{Step: step, Limiter: LimitRange}
		}
		if fixed := physics.Options().FixedStepLimiter; fixed > 0 && fixed < limit.Step {
			limit = StepLimit{Step: fixed, Limiter: LimitFixedStep}
		}
	} else if xs == 0 {
		limit.Limiter = LimitNone
	}
	return limit
}

// CalcMeanEnergyLoss is the mean energy lost over a step. When the linear
// dE/dx estimate exceeds the linear loss limit the loss is recomputed from
// the range stored by CalcPhysicsStepLimit.
func CalcMeanEnergyLoss(particle ParticleTrackView, physics PhysicsTrackView, step float64) float64 {
	assert.Expect(step > 0, "nonpositive step %g", step)

	pre := particle.Energy()
	eloss := step * physics.CalcDedx(pre)
	if eloss < pre*physics.Options().LinearLossLimit {
		return eloss
	}

	r := physics.DedxRange()
	if step == r {
		return pre
	}
	assert.That(r > step, "step %g exceeds range %g", step, r)

	// A step within a few ulp of the range lands on zero energy here
	eloss = pre - physics.CalcInverseRange(r-step)
	return math.Max(eloss, 0)
}
