package phys

import (
	"math"
	"testing"

	"github.com/san-kum/magtrack/internal/units"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixture struct {
	physics   *PhysicsParams
	particles *ParticleParams
	materials *MaterialParams
	pstates   *ParticleStates
	states    *PhysicsStates
}

func newFixture(t *testing.T, opts Options) *fixture {
	t.Helper()
	particles, err := NewParticleParams(StandardParticles())
	require.NoError(t, err)
	materials, err := NewMaterialParams(StandardMaterials())
	require.NoError(t, err)
	physics, err := BuildPhysics(particles, materials, opts)
	require.NoError(t, err)
	return &fixture{
		physics:   physics,
		particles: particles,
		materials: materials,
		pstates:   NewParticleStates(1),
		states:    NewPhysicsStates(1),
	}
}

func (f *fixture) track(t *testing.T, particle, material string, energy float64) (ParticleTrackView, PhysicsTrackView) {
	t.Helper()
	pid, err := f.particles.Find(particle)
	require.NoError(t, err)
	mid, err := f.materials.Find(material)
	require.NoError(t, err)

	part := NewParticleTrackView(f.particles, f.pstates, 0)
	part.Init(pid, energy)
	phys := NewPhysicsTrackView(f.physics, f.states, pid, 0)
	phys.Reset()
	phys.SetMaterial(mid)
	return part, phys
}

func TestParticleKinematics(t *testing.T) {
	particles, err := NewParticleParams(StandardParticles())
	require.NoError(t, err)
	states := NewParticleStates(2)

	e := NewParticleTrackView(particles, states, 0)
	id, err := particles.Find("e-")
	require.NoError(t, err)
	e.Init(id, 1)
	assert.InDelta(t, math.Sqrt(1*(1+2*units.ElectronMass)), e.Momentum(), 1e-12)
	assert.InDelta(t, e.Momentum()/(1+units.ElectronMass), e.Beta(), 1e-12)
	assert.Less(t, e.Speed(), units.CLight)
	assert.Equal(t, -1.0, e.Charge())

	e.SubtractEnergy(0.25)
	assert.InDelta(t, 0.75, e.Energy(), 1e-15)
	e.SubtractEnergy(0.75)
	assert.True(t, e.IsStopped())
	assert.Equal(t, 0.0, e.Speed())

	g := NewParticleTrackView(particles, states, 1)
	gid, err := particles.Find("gamma")
	require.NoError(t, err)
	g.Init(gid, 2)
	assert.Equal(t, 1.0, g.Beta())
	assert.Equal(t, 2.0, g.Momentum())

	_, err = particles.Find("pion")
	assert.ErrorIs(t, err, ErrUnknownParticle)
}

func TestParamsValidation(t *testing.T) {
	_, err := NewParticleParams([]ParticleRecord{{Name: "a"}, {Name: "a"}})
	assert.Error(t, err)
	_, err = NewParticleParams([]ParticleRecord{{Name: "a", Mass: -1}})
	assert.Error(t, err)

	bad := StandardMaterials()[:1]
	bad[0].RadiationLength = 0
	_, err = NewMaterialParams(bad)
	assert.Error(t, err)

	opts := DefaultOptions()
	opts.LinearLossLimit = 2
	assert.ErrorIs(t, opts.Validate(), ErrInvalidTable)
}

func TestStoppingPower(t *testing.T) {
	f := newFixture(t, DefaultOptions())

	// PDG: 7.289 MeV cm2/g for 100 MeV protons in water
	_, phys := f.track(t, "proton", "water", 100)
	assert.InEpsilon(t, 7.289, phys.CalcDedx(100), 0.01)
	// PSTAR CSDA range 7.718 g/cm2
	assert.InEpsilon(t, 7.718, phys.CalcRange(100), 0.02)

	// ESTAR: collision stopping power 1.849, CSDA range 0.4367
	_, phys = f.track(t, "e-", "water", 1)
	assert.InEpsilon(t, 1.849, phys.CalcDedx(1), 0.03)
	assert.InEpsilon(t, 0.4367, phys.CalcRange(1), 0.02)

	assert.True(t, phys.EnergyLossGrid())
	assert.True(t, phys.HasMsc())

	_, phys = f.track(t, "gamma", "lead", 10)
	assert.False(t, phys.EnergyLossGrid())
	assert.False(t, phys.HasMsc())
	assert.InEpsilon(t, 7.0/9.0/0.5612*(1-2*units.ElectronMass/10), phys.CalcMacroXS(10), 1e-3)
}

func TestRangeTable(t *testing.T) {
	f := newFixture(t, DefaultOptions())
	_, phys := f.track(t, "mu-", "iron", 1)

	prev := 0.0
	for _, e := range []float64{1e-4, 1e-3, 0.01, 0.5, 3, 150, 1e4, 1e8, 1e9} {
		r := phys.CalcRange(e)
		assert.Greater(t, r, prev, "range must increase at %g", e)
		prev = r
		assert.InEpsilon(t, e, phys.CalcInverseRange(r), 5e-3, "round trip at %g", e)
	}
	assert.Equal(t, 0.0, phys.CalcInverseRange(0))
}

func TestRangeToStep(t *testing.T) {
	f := newFixture(t, DefaultOptions())
	_, phys := f.track(t, "e-", "water", 1)

	rho := DefaultOptions().LightStep.MinRange
	assert.Equal(t, 0.5*rho, phys.RangeToStep(0.5*rho))

	r := 10.0
	want := 0.2*r + rho*0.8*(2-rho/r)
	assert.InDelta(t, want, phys.RangeToStep(r), 1e-12)
	assert.Less(t, phys.RangeToStep(r), r)
}

func TestMeanEnergyLoss(t *testing.T) {
	f := newFixture(t, DefaultOptions())
	part, phys := f.track(t, "e-", "silicon", 10)
	phys.SetInteractionMFP(1)

	limit := CalcPhysicsStepLimit(part, phys)
	r := phys.DedxRange()
	require.Greater(t, r, 0.0)
	assert.InDelta(t, r, phys.CalcRange(10), 1e-12)

	// Small steps lose dE/dx * step
	step := 1e-4
	assert.InDelta(t, phys.CalcDedx(10)*step, CalcMeanEnergyLoss(part, phys, step), 1e-12)

	// Steps up to the range lose everything
	assert.Equal(t, 10.0, CalcMeanEnergyLoss(part, phys, r))

	// Long steps follow the range curve
	eloss := CalcMeanEnergyLoss(part, phys, 0.5*r)
	assert.InDelta(t, 10-phys.CalcInverseRange(0.5*r), eloss, 1e-12)
	assert.Greater(t, eloss, 0.0)
	assert.Less(t, eloss, 10.0)

	assert.LessOrEqual(t, limit.Step, r)
}

func TestPhysicsStepLimit(t *testing.T) {
	opts := DefaultOptions()
	f := newFixture(t, opts)

	part, phys := f.track(t, "e-", "lead", 100)
	phys.SetInteractionMFP(1e-3)
	limit := CalcPhysicsStepLimit(part, phys)
	assert.Equal(t, LimitDiscrete, limit.Limiter)
	assert.InDelta(t, 1e-3/phys.MacroXS(), limit.Step, 1e-12)

	phys.SetInteractionMFP(1e3)
	limit = CalcPhysicsStepLimit(part, phys)
	assert.Equal(t, LimitRange, limit.Limiter)
	assert.InDelta(t, phys.RangeToStep(phys.DedxRange()), limit.Step, 1e-12)

	part.SetEnergy(0)
	limit = CalcPhysicsStepLimit(part, phys)
	assert.Equal(t, StepLimit{Step: 0, Limiter: LimitDiscrete}, limit)

	opts.FixedStepLimiter = 1e-3
	f = newFixture(t, opts)
	part, phys = f.track(t, "proton", "water", 100)
	phys.SetInteractionMFP(10)
	assert.Equal(t, StepLimit{Step: 1e-3, Limiter: LimitFixedStep}, CalcPhysicsStepLimit(part, phys))

	part, phys = f.track(t, "gamma", "water", 0.5)
	phys.SetInteractionMFP(1)
	assert.Equal(t, LimitNone, CalcPhysicsStepLimit(part, phys).Limiter)
}
