package msc

import (
	"math"

	"github.com/san-kum/magtrack/internal/core"
	"github.com/san-kum/magtrack/internal/phys"
	"github.com/san-kum/magtrack/internal/units"
)

type geoStep struct {
	geom  float64
	alpha float64
}

// stepToGeo converts a true path into the mean geometric path, assuming
// the transport mfp varies linearly over the step.
func stepToGeo(p HighlandParams, physics phys.PhysicsTrackView, e, lambda, r, tstep float64) geoStep {
	switch {
	case tstep < p.MinStepTransform:
		return geoStep{geom: tstep}
	case tstep < r*p.SmallRangeFrac:
		return geoStep{geom: -lambda * math.Expm1(-tstep/lambda)}
	}

	var alpha, slope float64
	if e < units.ElectronMass || tstep == r {
		// The cross section vanishes at the end of the range
		alpha = 1 / r
		slope = math.Max(1-alpha*tstep, 0)
	} else {
		lambda1 := physics.CalcMscMfp(physics.CalcInverseRange(r - tstep))
		alpha = (lambda - lambda1) / (lambda * tstep)
		slope = lambda1 / lambda
	}
	if !(alpha > 0) {
		return geoStep{geom: math.Min(-lambda*math.Expm1(-tstep/lambda), tstep)}
	}

	w := 1 + 1/(alpha*lambda)
	geom := (1 - math.Pow(slope, w)) / (alpha * w)
	return geoStep{geom: math.Min(geom, tstep), alpha: alpha}
}

// stepFromGeo inverts stepToGeo for a geometric path shortened by
// propagation.
func stepFromGeo(p HighlandParams, mstep core.MscStep, lambda, r, gstep float64) float64 {
	if gstep < p.MinStepTransform {
		return gstep
	}

	tstep := mstep.TruePath
	if mstep.Alpha == 0 {
		if gstep < lambda {
			tstep = -lambda * math.Log1p(-gstep/lambda)
		}
	} else {
		w := 1 + 1/(mstep.Alpha*lambda)
		if x := gstep * w * mstep.Alpha; x < 1 {
			tstep = (1 - math.Pow(1-x, 1/w)) / mstep.Alpha
		} else {
			tstep = r
		}
	}
	return math.Max(gstep, math.Min(tstep, mstep.TruePath))
}
