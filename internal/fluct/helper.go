package fluct

import (
	"math"

	"github.com/san-kum/magtrack/internal/phys"
	"github.com/san-kum/magtrack/internal/units"
)

// Helper gathers the step quantities the fluctuation models share and
// selects the model.
type Helper struct {
	params   *Params
	material phys.MaterialID

	mean         float64
	maxEnergy    float64
	bohrVariance float64
	beta2        float64
	betaGamma2   float64
	charge       float64
	model        Model
}

// NewHelper prepares sampling of the loss over a step of the given length
// with the given mean loss.
func NewHelper(p *Params, particle phys.ParticleTrackView, physics phys.PhysicsTrackView, mean, step float64) Helper {
	mat := physics.Material()
	h := Helper{
		params:     p,
		material:   physics.MaterialID(),
		mean:       mean,
		beta2:      particle.Beta2(),
		betaGamma2: particle.Beta2() * square(particle.LorentzFactor()),
		charge:     particle.Charge(),
	}
	h.maxEnergy = math.Min(maxEnergyTransfer(particle), physics.Options().ElectronCut)
	h.bohrVariance = 2 * math.Pi * square(units.ClassicalElectronRadius) * units.ElectronMass *
		mat.ElectronDensity() * square(h.charge) * step * h.maxEnergy * (1 - h.beta2/2)

	opts := p.opts
	switch {
	case mean < opts.MinLoss || h.maxEnergy <= mat.MeanExcitation:
		h.model = ModelNone
	case mean >= opts.Kappa*h.maxEnergy:
		if square(mean) > 4*h.bohrVariance {
			h.model = ModelGaussian
		} else {
			h.model = ModelGamma
		}
	default:
		h.model = ModelUrban
	}
	return h
}

func (h Helper) Model() Model              { return h.model }
func (h Helper) Mean() float64             { return h.mean }
func (h Helper) MaxEnergy() float64        { return h.maxEnergy }
func (h Helper) BohrVariance() float64     { return h.bohrVariance }
func (h Helper) Material() phys.MaterialID { return h.material }

// maxEnergyTransfer is the kinematic limit on the energy given to one
// atomic electron.
func maxEnergyTransfer(particle phys.ParticleTrackView) float64 {
	e, m := particle.Energy(), particle.Mass()
	if m == units.ElectronMass {
		if particle.Charge() < 0 {
			// Identical particles: the faster one is the primary
			return e / 2
		}
		return e
	}
	gamma := particle.LorentzFactor()
	ratio := units.ElectronMass / m
	return 2 * units.ElectronMass * particle.Beta2() * gamma * gamma /
		(1 + 2*gamma*ratio + ratio*ratio)
}

func square(x float64) float64 { return x * x }
