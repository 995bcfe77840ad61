package phys

import (
	"errors"
	"fmt"
	"math"

	"github.com/san-kum/magtrack/internal/units"
)

// ErrInvalidTable is returned when physics tables cannot be built.
var ErrInvalidTable = errors.New("phys: invalid physics table")

// RangeStep converts the range into a step limit: steps approach
// MaxStepOverRange*range far from the end of the range and the full range
// below MinRange.
type RangeStep struct {
	MaxStepOverRange float64 `yaml:"max_step_over_range" json:"max_step_over_range"`
	MinRange         float64 `yaml:"min_range" json:"min_range"`
}

type Options struct {
	MinEnergy     float64 `yaml:"min_energy" json:"min_energy"`
	MaxEnergy     float64 `yaml:"max_energy" json:"max_energy"`
	BinsPerDecade int     `yaml:"bins_per_decade" json:"bins_per_decade"`

	// Fractional energy loss above which the mean loss comes from the range
	LinearLossLimit float64 `yaml:"linear_loss_limit" json:"linear_loss_limit"`
	// Maximum charged step, disabled when zero
	FixedStepLimiter float64 `yaml:"fixed_step_limiter" json:"fixed_step_limiter"`
	// Tracking cut: charged particles below this energy are stopped
	LowestEnergy float64 `yaml:"lowest_energy" json:"lowest_energy"`
	// Delta-ray production threshold bounding the energy transfer
	ElectronCut float64 `yaml:"electron_cut" json:"electron_cut"`

	LightStep RangeStep `yaml:"light_step" json:"light_step"`
	HeavyStep RangeStep `yaml:"heavy_step" json:"heavy_step"`

	DisableEloss    bool `yaml:"disable_eloss" json:"disable_eloss"`
	DisableMsc      bool `yaml:"disable_msc" json:"disable_msc"`
	DisableDiscrete bool `yaml:"disable_discrete" json:"disable_discrete"`
}

func DefaultOptions() Options {
	return Options{
		MinEnergy:       1 * units.KeV,
		MaxEnergy:       100 * units.TeV,
		BinsPerDecade:   20,
		LinearLossLimit: 0.01,
		LowestEnergy:    1 * units.KeV,
		ElectronCut:     1 * units.MeV,
		LightStep:       RangeStep{MaxStepOverRange: 0.2, MinRange: 1 * units.Millimeter},
		HeavyStep:       RangeStep{MaxStepOverRange: 0.2, MinRange: 0.1 * units.Millimeter},
	}
}

func (o Options) Validate() error {
	checks := []struct {
		ok   bool
		name string
		val  any
	}{
		{o.MinEnergy > 0, "min_energy", o.MinEnergy},
		{o.MaxEnergy > o.MinEnergy, "max_energy", o.MaxEnergy},
		{o.BinsPerDecade > 0, "bins_per_decade", o.BinsPerDecade},
		{o.LinearLossLimit > 0 && o.LinearLossLimit < 1, "linear_loss_limit", o.LinearLossLimit},
		{o.FixedStepLimiter >= 0, "fixed_step_limiter", o.FixedStepLimiter},
		{o.LowestEnergy >= 0, "lowest_energy", o.LowestEnergy},
		{o.ElectronCut > 0, "electron_cut", o.ElectronCut},
		{o.LightStep.MaxStepOverRange > 0 && o.LightStep.MaxStepOverRange <= 1, "light_step.max_step_over_range", o.LightStep.MaxStepOverRange},
		{o.LightStep.MinRange > 0, "light_step.min_range", o.LightStep.MinRange},
		{o.HeavyStep.MaxStepOverRange > 0 && o.HeavyStep.MaxStepOverRange <= 1, "heavy_step.max_step_over_range", o.HeavyStep.MaxStepOverRange},
		{o.HeavyStep.MinRange > 0, "heavy_step.min_range", o.HeavyStep.MinRange},
	}
	for _, c := range checks {
		if !c.ok {
			return fmt.Errorf("%w: %s = %v", ErrInvalidTable, c.name, c.val)
		}
	}
	return nil
}

// Tables are the physics data of one particle in one material. Eloss and
// Msc are nil for neutral particles, Discrete when no discrete process
// applies.
type Tables struct {
	Dedx     *LogTable
	Range    *RangeTable
	MscMfp   *LogTable
	Discrete *LogTable
}

type PhysicsParams struct {
	particles *ParticleParams
	materials *MaterialParams
	opts      Options
	tables    []Tables
}

// BuildPhysics tabulates analytic models for every particle and material:
// Bethe (heavy) and Berger-Seltzer (e+-) stopping powers without the
// density effect, the integrated CSDA range, a Highland-consistent MSC
// transport mean free path and a lumped discrete cross section.
func BuildPhysics(particles *ParticleParams, materials *MaterialParams, opts Options) (*PhysicsParams, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	p := &PhysicsParams{
		particles: particles,
		materials: materials,
		opts:      opts,
		tables:    make([]Tables, particles.Size()*materials.Size()),
	}

	decades := math.Log10(opts.MaxEnergy / opts.MinEnergy)
	n := max(2, int(math.Ceil(decades*float64(opts.BinsPerDecade)))+1)
	energies := energyNodes(opts.MinEnergy, opts.MaxEnergy, n)

	for pid := range particles.Size() {
		part := particles.Get(ParticleID(pid))
		for mid := range materials.Size() {
			mat := materials.Get(MaterialID(mid))
			t, err := buildTables(part, mat, energies, opts)
			if err != nil {
				return nil, fmt.Errorf("%s in %s: %w", part.Name, mat.Name, err)
			}
			p.tables[pid*materials.Size()+mid] = t
		}
	}
	return p, nil
}

func (p *PhysicsParams) Particles() *ParticleParams { return p.particles }
func (p *PhysicsParams) Materials() *MaterialParams { return p.materials }
func (p *PhysicsParams) Options() Options           { return p.opts }

func (p *PhysicsParams) Tables(pid ParticleID, mid MaterialID) *Tables {
	return &p.tables[int(pid)*p.materials.Size()+int(mid)]
}

func (p *PhysicsParams) rangeStep(pid ParticleID) RangeStep {
	if p.particles.Get(pid).Mass < 1*units.MeV {
		return p.opts.LightStep
	}
	return p.opts.HeavyStep
}

func buildTables(part ParticleRecord, mat MaterialRecord, energies []float64, opts Options) (Tables, error) {
	var t Tables
	emin, emax := energies[0], energies[len(energies)-1]

	if part.Charge != 0 && !opts.DisableEloss {
		dedx := stoppingPowers(part, mat, energies)
		for i, v := range dedx {
			if !(v > 0) || math.IsInf(v, 0) {
				return t, fmt.Errorf("%w: dE/dx = %g at %g MeV", ErrInvalidTable, v, energies[i])
			}
		}
		dedxTable := newLogTable(emin, emax, dedx)
		rangeTable := newRangeTable(energies, integrateRange(energies, dedx), dedx[len(dedx)-1])
		t.Dedx, t.Range = &dedxTable, &rangeTable
	}

	if part.Charge != 0 && part.Mass > 0 && !opts.DisableMsc {
		mfp := make([]float64, len(energies))
		for i, e := range energies {
			k := kinematicsOf(part.Mass, e)
			betacp := k.beta * k.momentum
			mfp[i] = mat.RadiationLength * math.Pow(betacp/(13.6*units.MeV*math.Abs(part.Charge)), 2)
		}
		mfpTable := newLogTable(emin, emax, mfp)
		t.MscMfp = &mfpTable
	}

	if part.Discrete != DiscreteNone && !opts.DisableDiscrete {
		xs := make([]float64, len(energies))
		for i, e := range energies {
			xs[i] = discreteXS(part, mat, e)
		}
		xsTable := newLogTable(emin, emax, xs)
		t.Discrete = &xsTable
	}
	return t, nil
}

type kinematics struct {
	beta2, beta, gamma, momentum float64
}

func kinematicsOf(mass, e float64) kinematics {
	p := math.Sqrt(e * (e + 2*mass))
	beta := p / (e + mass)
	return kinematics{beta2: beta * beta, beta: beta, gamma: (e + mass) / mass, momentum: p}
}

// betheK is 4 pi N_A r_e^2 m_e c^2 in MeV cm^2/mol.
const betheK = 0.307075

// stoppingPowers returns dE/dx in MeV/cm. Where the logarithmic term
// falls below one the formula is invalid and dE/dx follows sqrt(E) down
// from the last valid node.
func stoppingPowers(part ParticleRecord, mat MaterialRecord, energies []float64) []float64 {
	me := units.ElectronMass
	lightFactor := betheK * mat.Z / mat.A * mat.Density
	iOverMe := mat.MeanExcitation / me
	z2 := part.Charge * part.Charge

	dedx := make([]float64, len(energies))
	valid := make([]bool, len(energies))
	for i, e := range energies {
		k := kinematicsOf(part.Mass, e)
		var bracket, prefactor float64
		if part.Mass < 1*units.MeV {
			tau := e / me
			var f float64
			if part.Charge < 0 {
				f = 1 - k.beta2 + (tau*tau/8-(2*tau+1)*math.Ln2)/((tau+1)*(tau+1))
			} else {
				y := 1 / (tau + 2)
				f = 2*math.Ln2 - k.beta2/12*(23+14*y+10*y*y+4*y*y*y)
			}
			bracket = math.Log(tau*tau*(tau+2)/(2*iOverMe*iOverMe)) + f
			prefactor = 0.5 * lightFactor / k.beta2
		} else {
			ratio := me / part.Mass
			wmax := 2 * me * k.beta2 * k.gamma * k.gamma / (1 + 2*k.gamma*ratio + ratio*ratio)
			bracket = 0.5*math.Log(2*me*k.beta2*k.gamma*k.gamma*wmax/(mat.MeanExcitation*mat.MeanExcitation)) - k.beta2
			prefactor = lightFactor * z2 / k.beta2
		}
		valid[i] = bracket >= 1
		dedx[i] = prefactor * bracket
	}

	// Patch the low-energy end with sqrt(E) scaling
	first := 0
	for first < len(valid) && !valid[first] {
		first++
	}
	if first == len(valid) {
		first = len(valid) - 1
		dedx[first] = math.Max(dedx[first], 1e-30)
	}
	for i := 0; i < first; i++ {
		dedx[i] = dedx[first] * math.Sqrt(energies[i]/energies[first])
	}
	return dedx
}

// integrateRange integrates 1/(dE/dx) with the trapezoid rule in log(E),
// starting from R(E0) = 2 E0 / dedx(E0) for the sqrt(E) regime below the
// table.
func integrateRange(energies, dedx []float64) []float64 {
	ranges := make([]float64, len(energies))
	ranges[0] = 2 * energies[0] / dedx[0]
	for i := 1; i < len(energies); i++ {
		// dR = E/dedx dlnE
		dlog := math.Log(energies[i] / energies[i-1])
		ranges[i] = ranges[i-1] + 0.5*dlog*(energies[i-1]/dedx[i-1]+energies[i]/dedx[i])
	}
	return ranges
}

func discreteXS(part ParticleRecord, mat MaterialRecord, e float64) float64 {
	x0 := mat.RadiationLength
	switch part.Discrete {
	case DiscreteBrems:
		return e / (e + 10*units.MeV) / x0
	case DiscretePair:
		return 7.0 / 9.0 / x0 * math.Max(0, 1-2*units.ElectronMass/e)
	case DiscreteNuclear:
		return math.Min(1, e/(10*units.MeV)) / mat.NuclearInteractionLength()
	case DiscreteMuonRadiative:
		ratio := units.ElectronMass / part.Mass
		return ratio * ratio * e / (e + 1*units.GeV) / x0
	}
	return 0
}
