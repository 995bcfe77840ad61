package fluct

import (
	"math"

	"github.com/san-kum/magtrack/internal/rng"
	"github.com/san-kum/magtrack/internal/units"
)

// Above this expected number of ionizations the individual collisions are
// not sampled.
const maxIonizations = 1000

// Sample draws the energy lost over the step.
func (h Helper) Sample(engine rng.Engine) float64 {
	switch h.model {
	case ModelGaussian:
		return h.sampleGaussian(engine)
	case ModelGamma:
		return h.sampleGamma(engine)
	case ModelUrban:
		return h.sampleUrban(engine)
	}
	return h.mean
}

// sampleGaussian truncates to (0, 2*mean) so the mean is preserved.
func (h Helper) sampleGaussian(engine rng.Engine) float64 {
	sigma := math.Sqrt(h.bohrVariance)
	for {
		loss := rng.Normal(engine, h.mean, sigma)
		if loss > 0 && loss < 2*h.mean {
			return loss
		}
	}
}

// sampleGamma matches the mean and the Bohr variance.
func (h Helper) sampleGamma(engine rng.Engine) float64 {
	shape := square(h.mean) / h.bohrVariance
	return rng.Gamma(engine, shape, h.bohrVariance/h.mean)
}

// sampleUrban splits the mean into excitations of a two-level atom and
// ionizations with a 1/E^2 spectrum up to the maximum transfer.
func (h Helper) sampleUrban(engine rng.Engine) float64 {
	urban := h.params.urban[h.material]
	rate := h.params.opts.Rate
	exciteMean := h.mean * (1 - rate)

	mat := h.params.materials.Get(h.material)
	logMax := math.Log(2 * units.ElectronMass * h.betaGamma2)
	denom := logMax - math.Log(mat.MeanExcitation) - h.beta2

	var excite [2]float64
	if denom > 0 {
		for i := range excite {
			if urban.OscStrength[i] == 0 {
				continue
			}
			num := logMax - urban.LogBinding[i] - h.beta2
			if num <= 0 {
				excite = [2]float64{}
				break
			}
			excite[i] = exciteMean * urban.OscStrength[i] / urban.BindingEnergy[i] * num / denom
		}
	}
	if excite == [2]float64{} {
		rate = 1
	}

	var loss float64
	for i, n := range excite {
		if n > 0 {
			loss += float64(rng.Poisson(engine, n)) * urban.BindingEnergy[i]
		}
	}
	return loss + h.sampleIonization(engine, rate*h.mean)
}

func (h Helper) sampleIonization(engine rng.Engine, mean float64) float64 {
	lo := h.params.materials.Get(h.material).MeanExcitation
	hi := h.maxEnergy
	n := mean * (hi - lo) / (lo * hi * math.Log(hi/lo))

	if n > maxIonizations {
		// The sum of many collisions is close to normal
		mu, sigma := n*lo*hi*math.Log(hi/lo)/(hi-lo), math.Sqrt(n*lo*hi)
		return math.Max(0, rng.Normal(engine, mu, sigma))
	}

	var loss float64
	frac := 1 - lo/hi
	for range rng.Poisson(engine, n) {
		loss += lo / (1 - frac*rng.Canonical(engine))
	}
	return loss
}
