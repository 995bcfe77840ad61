// Package fluct samples the energy lost over a step around the mean
// continuous loss.
package fluct

import (
	"errors"
	"fmt"
	"math"

	"github.com/san-kum/magtrack/internal/phys"
	"github.com/san-kum/magtrack/internal/units"
)

var ErrInvalidOptions = errors.New("fluct: invalid options")

// Model is the distribution used to sample one step's loss.
type Model int

const (
	ModelNone Model = iota
	ModelGamma
	ModelGaussian
	ModelUrban
)

func (m Model) String() string {
	switch m {
	case ModelNone:
		return "none"
	case ModelGamma:
		return "gamma"
	case ModelGaussian:
		return "gaussian"
	case ModelUrban:
		return "urban"
	}
	return fmt.Sprintf("Model(%d)", int(m))
}

type Options struct {
	// Mean losses below this are not smeared
	MinLoss float64 `yaml:"min_loss" json:"min_loss"`
	// Ratio of mean loss to maximum transfer above which the loss is
	// Gaussian-like
	Kappa float64 `yaml:"kappa" json:"kappa"`
	// Fraction of the Urban mean loss taken by ionization
	Rate float64 `yaml:"rate" json:"rate"`
}

func DefaultOptions() Options {
	return Options{MinLoss: 1e-5 * units.MeV, Kappa: 10, Rate: 0.56}
}

func (o Options) Validate() error {
	switch {
	case o.MinLoss < 0:
		return fmt.Errorf("%w: min_loss %g", ErrInvalidOptions, o.MinLoss)
	case o.Kappa <= 0:
		return fmt.Errorf("%w: kappa %g", ErrInvalidOptions, o.Kappa)
	case !(o.Rate > 0 && o.Rate <= 1):
		return fmt.Errorf("%w: rate %g not in (0, 1]", ErrInvalidOptions, o.Rate)
	}
	return nil
}

// UrbanMaterial is the two-level atom used for excitation losses. The log
// energies average to the log mean excitation energy weighted by the
// oscillator strengths.
type UrbanMaterial struct {
	OscStrength   [2]float64
	BindingEnergy [2]float64
	LogBinding    [2]float64
}

func newUrbanMaterial(m phys.MaterialRecord) UrbanMaterial {
	var u UrbanMaterial
	if m.Z > 2 {
		u.OscStrength[1] = 2 / m.Z
	}
	u.OscStrength[0] = 1 - u.OscStrength[1]
	u.BindingEnergy[1] = 10 * units.EV * m.Z * m.Z
	u.LogBinding[1] = math.Log(u.BindingEnergy[1])
	u.LogBinding[0] = (math.Log(m.MeanExcitation) - u.OscStrength[1]*u.LogBinding[1]) / u.OscStrength[0]
	u.BindingEnergy[0] = math.Exp(u.LogBinding[0])
	return u
}

// Params holds the per-material fluctuation data.
type Params struct {
	opts      Options
	materials *phys.MaterialParams
	urban     []UrbanMaterial
}

func NewParams(materials *phys.MaterialParams, opts Options) (*Params, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	p := &Params{opts: opts, materials: materials, urban: make([]UrbanMaterial, materials.Size())}
	for i := range p.urban {
		p.urban[i] = newUrbanMaterial(materials.Get(phys.MaterialID(i)))
	}
	return p, nil
}

func (p *Params) Options() Options                       { return p.opts }
func (p *Params) Urban(id phys.MaterialID) UrbanMaterial { return p.urban[id] }
