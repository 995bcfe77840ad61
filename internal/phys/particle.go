package phys

import (
	"errors"
	"fmt"
	"math"

	"github.com/san-kum/magtrack/internal/assert"
	"github.com/san-kum/magtrack/internal/units"
)

// ErrUnknownParticle is returned when a particle name is not registered.
var ErrUnknownParticle = errors.New("phys: unknown particle")

type ParticleID int

// DiscreteModel selects the lumped discrete cross section of a particle.
type DiscreteModel int

const (
	DiscreteNone DiscreteModel = iota
	// Bremsstrahlung-like: saturates at 1/X0
	DiscreteBrems
	// Pair production: 7/(9 X0)
	DiscretePair
	// Nuclear inelastic: 1/lambda_I
	DiscreteNuclear
	// Radiative muon losses, suppressed by the mass
	DiscreteMuonRadiative
)

type ParticleRecord struct {
	Name   string  `yaml:"name" json:"name"`
	PDG    int     `yaml:"pdg" json:"pdg"`
	Mass   float64 `yaml:"mass" json:"mass"`
	Charge float64 `yaml:"charge" json:"charge"`
	Stable bool    `yaml:"stable" json:"stable"`
	// A stopped particle interacts at rest instead of being killed
	AtRest   bool          `yaml:"at_rest" json:"at_rest"`
	Discrete DiscreteModel `yaml:"discrete" json:"discrete"`
}

func StandardParticles() []ParticleRecord {
	return []ParticleRecord{
		{Name: "e-", PDG: 11, Mass: units.ElectronMass, Charge: -1, Stable: true, Discrete: DiscreteBrems},
		{Name: "e+", PDG: -11, Mass: units.ElectronMass, Charge: 1, Stable: true, AtRest: true, Discrete: DiscreteBrems},
		{Name: "mu-", PDG: 13, Mass: units.MuonMass, Charge: -1, Discrete: DiscreteMuonRadiative},
		{Name: "mu+", PDG: -13, Mass: units.MuonMass, Charge: 1, Discrete: DiscreteMuonRadiative},
		{Name: "proton", PDG: 2212, Mass: units.ProtonMass, Charge: 1, Stable: true, Discrete: DiscreteNuclear},
		{Name: "gamma", PDG: 22, Mass: 0, Charge: 0, Stable: true, Discrete: DiscretePair},
	}
}

type ParticleParams struct {
	records []ParticleRecord
	byName  map[string]ParticleID
}

func NewParticleParams(records []ParticleRecord) (*ParticleParams, error) {
	p := &ParticleParams{byName: make(map[string]ParticleID, len(records))}
	for _, r := range records {
		if r.Name == "" {
			return nil, fmt.Errorf("phys: particle %d has no name", len(p.records))
		}
		if _, dup := p.byName[r.Name]; dup {
			return nil, fmt.Errorf("phys: duplicate particle %q", r.Name)
		}
		if r.Mass < 0 {
			return nil, fmt.Errorf("phys: particle %q has negative mass %g", r.Name, r.Mass)
		}
		p.byName[r.Name] = ParticleID(len(p.records))
		p.records = append(p.records, r)
	}
	return p, nil
}

func (p *ParticleParams) Size() int                        { return len(p.records) }
func (p *ParticleParams) Get(id ParticleID) ParticleRecord { return p.records[id] }

func (p *ParticleParams) Find(name string) (ParticleID, error) {
	id, ok := p.byName[name]
	if !ok {
		return 0, fmt.Errorf("%w: %q", ErrUnknownParticle, name)
	}
	return id, nil
}

type ParticleStates struct {
	id     []ParticleID
	energy []float64
}

func NewParticleStates(size int) *ParticleStates {
	return &ParticleStates{id: make([]ParticleID, size), energy: make([]float64, size)}
}

// ParticleTrackView reads and updates the kinematics of one slot.
type ParticleTrackView struct {
	params *ParticleParams
	states *ParticleStates
	slot   int
}

func NewParticleTrackView(p *ParticleParams, s *ParticleStates, slot int) ParticleTrackView {
	return ParticleTrackView{params: p, states: s, slot: slot}
}

func (v ParticleTrackView) Init(id ParticleID, energy float64) {
	assert.Expect(energy >= 0, "negative energy %g", energy)
	v.states.id[v.slot] = id
	v.states.energy[v.slot] = energy
}

func (v ParticleTrackView) ParticleID() ParticleID { return v.states.id[v.slot] }
func (v ParticleTrackView) Def() ParticleRecord    { return v.params.Get(v.ParticleID()) }
func (v ParticleTrackView) Mass() float64          { return v.Def().Mass }
func (v ParticleTrackView) Charge() float64        { return v.Def().Charge }
func (v ParticleTrackView) IsStable() bool         { return v.Def().Stable }

// Energy is the kinetic energy.
func (v ParticleTrackView) Energy() float64 { return v.states.energy[v.slot] }
func (v ParticleTrackView) IsStopped() bool { return v.Energy() == 0 }

func (v ParticleTrackView) SetEnergy(e float64) {
	assert.Expect(e >= 0, "negative energy %g", e)
	v.states.energy[v.slot] = e
}

func (v ParticleTrackView) SubtractEnergy(e float64) {
	assert.Expect(e >= 0 && e <= v.Energy(), "cannot subtract %g from %g", e, v.Energy())
	v.states.energy[v.slot] = math.Max(v.Energy()-e, 0)
}

func (v ParticleTrackView) TotalEnergy() float64 { return v.Energy() + v.Mass() }

// Momentum is |p| in MeV/c.
func (v ParticleTrackView) Momentum() float64 {
	e := v.Energy()
	return math.Sqrt(e * (e + 2*v.Mass()))
}

func (v ParticleTrackView) Beta() float64 {
	if v.Mass() == 0 {
		return 1
	}
	return v.Momentum() / v.TotalEnergy()
}

func (v ParticleTrackView) Beta2() float64 {
	b := v.Beta()
	return b * b
}

func (v ParticleTrackView) LorentzFactor() float64 {
	if v.Mass() == 0 {
		return math.Inf(1)
	}
	return v.TotalEnergy() / v.Mass()
}

// Speed in cm/s. It underflows to zero for vanishing kinetic energy.
func (v ParticleTrackView) Speed() float64 {
	return v.Beta() * units.CLight
}
