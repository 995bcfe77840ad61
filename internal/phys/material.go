package phys

import (
	"fmt"
	"math"

	"github.com/san-kum/magtrack/internal/units"
)

type MaterialID int

// MaterialRecord describes a homogeneous medium by effective element
// parameters.
type MaterialRecord struct {
	Name    string  `yaml:"name" json:"name"`
	Density float64 `yaml:"density" json:"density"`
	Z       float64 `yaml:"z" json:"z"`
	A       float64 `yaml:"a" json:"a"`
	// MeanExcitation is the ionization potential I in MeV
	MeanExcitation  float64 `yaml:"mean_excitation" json:"mean_excitation"`
	RadiationLength float64 `yaml:"radiation_length" json:"radiation_length"`
}

// ElectronDensity in electrons per cm^3.
func (m MaterialRecord) ElectronDensity() float64 {
	return m.Density * units.AvogadroNumber * m.Z / m.A
}

// NuclearInteractionLength approximates lambda_I = 35 A^(1/3) g/cm^2.
func (m MaterialRecord) NuclearInteractionLength() float64 {
	return 35 * math.Cbrt(m.A) / m.Density
}

func (m MaterialRecord) validate() error {
	switch {
	case m.Name == "":
		return fmt.Errorf("phys: material has no name")
	case m.Density <= 0:
		return fmt.Errorf("phys: material %q density %g, expected > 0", m.Name, m.Density)
	case m.Z <= 0 || m.A <= 0:
		return fmt.Errorf("phys: material %q has Z=%g A=%g, expected > 0", m.Name, m.Z, m.A)
	case m.MeanExcitation <= 0:
		return fmt.Errorf("phys: material %q mean excitation %g, expected > 0", m.Name, m.MeanExcitation)
	case m.RadiationLength <= 0:
		return fmt.Errorf("phys: material %q radiation length %g, expected > 0", m.Name, m.RadiationLength)
	}
	return nil
}

// StandardMaterials are PDG values for common detector media.
func StandardMaterials() []MaterialRecord {
	return []MaterialRecord{
		{Name: "galactic", Density: 1e-25, Z: 1, A: 1.008, MeanExcitation: 21.8 * units.EV, RadiationLength: 6.3e24},
		{Name: "air", Density: 1.205e-3, Z: 7.36, A: 14.74, MeanExcitation: 85.7 * units.EV, RadiationLength: 30390},
		{Name: "water", Density: 1.0, Z: 7.42, A: 13.37, MeanExcitation: 75 * units.EV, RadiationLength: 36.08},
		{Name: "silicon", Density: 2.329, Z: 14, A: 28.0855, MeanExcitation: 173 * units.EV, RadiationLength: 9.370},
		{Name: "iron", Density: 7.874, Z: 26, A: 55.845, MeanExcitation: 286 * units.EV, RadiationLength: 1.757},
		{Name: "lead", Density: 11.35, Z: 82, A: 207.2, MeanExcitation: 823 * units.EV, RadiationLength: 0.5612},
	}
}

type MaterialParams struct {
	records []MaterialRecord
	byName  map[string]MaterialID
}

func NewMaterialParams(records []MaterialRecord) (*MaterialParams, error) {
	p := &MaterialParams{byName: make(map[string]MaterialID, len(records))}
	for _, r := range records {
		if err := r.validate(); err != nil {
			return nil, err
		}
		if _, dup := p.byName[r.Name]; dup {
			return nil, fmt.Errorf("phys: duplicate material %q", r.Name)
		}
		p.byName[r.Name] = MaterialID(len(p.records))
		p.records = append(p.records, r)
	}
	return p, nil
}

func (p *MaterialParams) Size() int                        { return len(p.records) }
func (p *MaterialParams) Get(id MaterialID) MaterialRecord { return p.records[id] }

func (p *MaterialParams) Find(name string) (MaterialID, error) {
	id, ok := p.byName[name]
	if !ok {
		return 0, fmt.Errorf("phys: unknown material %q", name)
	}
	return id, nil
}
