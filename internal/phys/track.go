package phys

import (
	"math"

	"github.com/san-kum/magtrack/internal/assert"
)

// PhysicsStates holds the per-slot physics state.
type PhysicsStates struct {
	material []MaterialID
	// remaining number of mean free paths to the next discrete interaction
	interactionMFP []float64
	macroXS        []float64
	// range at the start of the step
	dedxRange []float64
	deposited []float64
}

func NewPhysicsStates(size int) *PhysicsStates {
	return &PhysicsStates{
		material:       make([]MaterialID, size),
		interactionMFP: make([]float64, size),
		macroXS:        make([]float64, size),
		dedxRange:      make([]float64, size),
		deposited:      make([]float64, size),
	}
}

// PhysicsTrackView reads the tables of the particle and material of one
// slot and its physics state.
type PhysicsTrackView struct {
	params   *PhysicsParams
	states   *PhysicsStates
	slot     int
	particle ParticleID
}

func NewPhysicsTrackView(p *PhysicsParams, s *PhysicsStates, pid ParticleID, slot int) PhysicsTrackView {
	return PhysicsTrackView{params: p, states: s, slot: slot, particle: pid}
}

func (v PhysicsTrackView) Reset() {
	s, i := v.states, v.slot
	s.interactionMFP[i] = 0
	s.macroXS[i] = 0
	s.dedxRange[i] = 0
	s.deposited[i] = 0
}

func (v PhysicsTrackView) MaterialID() MaterialID { return v.states.material[v.slot] }
func (v PhysicsTrackView) Material() MaterialRecord {
	return v.params.materials.Get(v.MaterialID())
}
func (v PhysicsTrackView) SetMaterial(id MaterialID) { v.states.material[v.slot] = id }

func (v PhysicsTrackView) tables() *Tables {
	return v.params.Tables(v.particle, v.MaterialID())
}

func (v PhysicsTrackView) Options() Options { return v.params.opts }

// EnergyLossGrid reports whether the particle loses energy continuously in
// the current material.
func (v PhysicsTrackView) EnergyLossGrid() bool { return v.tables().Dedx != nil }
func (v PhysicsTrackView) HasMsc() bool         { return v.tables().MscMfp != nil }
func (v PhysicsTrackView) HasDiscrete() bool    { return v.tables().Discrete != nil }

func (v PhysicsTrackView) CalcDedx(e float64) float64 {
	assert.Expect(v.EnergyLossGrid(), "no energy loss for particle %d", v.particle)
	return v.tables().Dedx.Eval(e)
}

func (v PhysicsTrackView) CalcRange(e float64) float64 {
	assert.Expect(v.EnergyLossGrid(), "no range for particle %d", v.particle)
	return v.tables().Range.Range(e)
}

func (v PhysicsTrackView) CalcInverseRange(r float64) float64 {
	assert.Expect(v.EnergyLossGrid(), "no range for particle %d", v.particle)
	return v.tables().Range.Energy(r)
}

func (v PhysicsTrackView) CalcMscMfp(e float64) float64 {
	assert.Expect(v.HasMsc(), "no msc for particle %d", v.particle)
	return v.tables().MscMfp.Eval(e)
}

// CalcMacroXS is the discrete cross section in 1/cm.
func (v PhysicsTrackView) CalcMacroXS(e float64) float64 {
	if !v.HasDiscrete() {
		return 0
	}
	return v.tables().Discrete.Eval(e)
}

func (v PhysicsTrackView) DedxRange() float64     { return v.states.dedxRange[v.slot] }
func (v PhysicsTrackView) SetDedxRange(r float64) { v.states.dedxRange[v.slot] = r }

func (v PhysicsTrackView) MacroXS() float64      { return v.states.macroXS[v.slot] }
func (v PhysicsTrackView) SetMacroXS(xs float64) { v.states.macroXS[v.slot] = xs }

func (v PhysicsTrackView) InteractionMFP() float64 { return v.states.interactionMFP[v.slot] }
func (v PhysicsTrackView) HasInteractionMFP() bool { return v.InteractionMFP() > 0 }
func (v PhysicsTrackView) SetInteractionMFP(mfp float64) {
	assert.Expect(mfp >= 0, "negative mfp %g", mfp)
	v.states.interactionMFP[v.slot] = mfp
}

func (v PhysicsTrackView) AtRestProcess() bool {
	return v.params.particles.Get(v.particle).AtRest
}

func (v PhysicsTrackView) LowestEnergy() float64 { return v.params.opts.LowestEnergy }

// RangeToStep converts a range into the maximum step allowed by energy
// loss.
func (v PhysicsTrackView) RangeToStep(r float64) float64 {
	assert.Expect(r >= 0, "negative range %g", r)
	f := v.params.rangeStep(v.particle)
	rho, alpha := f.MinRange, f.MaxStepOverRange
	if r < rho*(1+sqrtTol) {
		return r
	}
	step := alpha*r + rho*(1-alpha)*(2-rho/r)
	assert.Ensure(step > 0 && step <= r, "step %g outside (0, %g]", step, r)
	return step
}

func (v PhysicsTrackView) DepositEnergy(e float64) { v.states.deposited[v.slot] += e }
func (v PhysicsTrackView) EnergyDeposit() float64  { return v.states.deposited[v.slot] }
func (v PhysicsTrackView) ResetEnergyDeposit()     { v.states.deposited[v.slot] = 0 }

var sqrtTol = math.Sqrt(1e-12)
