package ode

import (
	"math"

	"github.com/san-kum/magtrack/internal/assert"
)

// Substepper advances a state by one substep whose sagitta is within
// DeltaChord and whose truncation error is within EpsilonRelMax.
//
// A Substepper remembers the last reduced chord length, so it must be used by
// a single propagation at a time.
type Substepper struct {
	opts      *DriverOptions
	integrate Integrator
	maxChord  float64
}

func NewSubstepper(opts *DriverOptions, integrate Integrator) *Substepper {
	return &Substepper{opts: opts, integrate: integrate, maxChord: math.Inf(1)}
}

func (s *Substepper) MaxSubsteps() int           { return s.opts.MaxSubsteps }
func (s *Substepper) MinimumStep() float64       { return s.opts.MinimumStep }
func (s *Substepper) DeltaIntersection() float64 { return s.opts.DeltaIntersection }
func (s *Substepper) Options() *DriverOptions    { return s.opts }
func (s *Substepper) Integrator() Integrator     { return s.integrate }

type chordSearch struct {
	end   Substep
	errSq float64
}

type goodStep struct {
	end      Substep
	proposed float64
}

// Advance takes a substep of at most step.
func (s *Substepper) Advance(step float64, state OdeState) Substep {
	if step <= s.opts.MinimumStep {
		return Substep{Length: step, State: s.integrate.Integrate(step, state).End}
	}

	next := s.findNextChord(math.Min(step, s.maxChord), state)
	assert.That(next.end.Length <= step, "chord %g longer than step %g", next.end.Length, step)
	if next.end.Length < step {
		s.maxChord = next.end.Length / s.opts.MinChordShrink
	}

	if next.errSq > 1 {
		nextStep := step * s.newStepScale(next.errSq)
		next.end = s.AccurateAdvance(next.end.Length, state, nextStep)
	}

	assert.Ensure(next.end.Length > 0 && next.end.Length <= step,
		"substep %g outside (0, %g]", next.end.Length, step)
	return next.end
}

func (s *Substepper) findNextChord(step float64, state OdeState) chordSearch {
	var integrated Integration
	for remaining := s.opts.MaxNSteps; remaining > 0; remaining-- {
		integrated = s.integrate.Integrate(step, state)

		dchord := DistanceChord(state.Pos, integrated.Mid.Pos, integrated.End.Pos)
		if dchord <= s.opts.DeltaChord+s.opts.DChordTol {
			break
		}
		scaleStep := math.Max(math.Sqrt(s.opts.DeltaChord/dchord), s.opts.MinChordShrink)
		step *= scaleStep
	}

	return chordSearch{
		end:   Substep{Length: step, State: integrated.End},
		errSq: RelErrSq(integrated.Err, step, state.Mom) / (s.opts.EpsilonRelMax * s.opts.EpsilonRelMax),
	}
}

// AccurateAdvance integrates a curve of the given length with adaptive
// error control, starting from a trial step of hinitial.
func (s *Substepper) AccurateAdvance(step float64, state OdeState, hinitial float64) Substep {
	assert.Expect(step > 0, "nonpositive step %g", step)

	h := step
	if hinitial > s.opts.InitialStepTol*step && hinitial < step {
		h = hinitial
	}
	hThreshold := s.opts.EpsilonStep * step

	result := goodStep{end: Substep{State: state}}
	curveLength := 0.0
	for remaining := s.opts.MaxNSteps; remaining > 0; remaining-- {
		result = s.integrateStep(h, result.end.State)
		curveLength += result.end.Length

		if h < hThreshold || curveLength >= step {
			break
		}
		h = math.Min(math.Max(result.proposed, s.opts.MinimumStep), step-curveLength)
	}

	result.end.Length = math.Min(curveLength, step)
	return result.end
}

func (s *Substepper) integrateStep(step float64, state OdeState) goodStep {
	if step > s.opts.MinimumStep {
		return s.oneGoodStep(step, state)
	}

	integrated := s.integrate.Integrate(step, state)
	errSq := RelErrSq(integrated.Err, step, state.Mom) / (s.opts.EpsilonRelMax * s.opts.EpsilonRelMax)
	return goodStep{
		end:      Substep{Length: step, State: integrated.End},
		proposed: step * s.newStepScale(errSq),
	}
}

func (s *Substepper) oneGoodStep(step float64, state OdeState) goodStep {
	var integrated Integration
	var errSq float64
	for remaining := s.opts.MaxNSteps; remaining > 0; remaining-- {
		integrated = s.integrate.Integrate(step, state)
		errSq = RelErrSq(integrated.Err, step, state.Mom) / (s.opts.EpsilonRelMax * s.opts.EpsilonRelMax)
		if !(errSq > 1) {
			break
		}
		step *= math.Max(s.newStepScale(errSq), s.opts.MaxSteppingDecrease)
	}

	return goodStep{
		end:      Substep{Length: step, State: integrated.End},
		proposed: step * s.growthScale(errSq),
	}
}

// growthScale is the factor for the next trial step after an accepted one.
// Errors below Errcon grow the step by the maximum increase.
func (s *Substepper) growthScale(errSq float64) float64 {
	if errSq <= s.opts.Errcon*s.opts.Errcon {
		return s.opts.MaxSteppingIncrease
	}
	return math.Min(s.newStepScale(errSq), s.opts.MaxSteppingIncrease)
}

func (s *Substepper) newStepScale(errSq float64) float64 {
	assert.That(errSq >= 0, "negative error %g", errSq)
	p := s.opts.PGrow
	if errSq > 1 {
		p = s.opts.PShrink
	}
	return s.opts.Safety * math.Pow(errSq, 0.5*p)
}
