package msc

import (
	"errors"
	"fmt"
	"math"

	"github.com/san-kum/magtrack/internal/core"
	"github.com/san-kum/magtrack/internal/phys"
	"github.com/san-kum/magtrack/internal/rng"
	"github.com/san-kum/magtrack/internal/units"
	"gonum.org/v1/gonum/spatial/r3"
)

var ErrInvalidParams = errors.New("msc: invalid parameters")

type HighlandParams struct {
	// Fraction of max(range, mfp) allowed per step
	RangeFactor float64 `yaml:"range_factor" json:"range_factor"`
	// Smallest step limit imposed by scattering
	MinLimit float64 `yaml:"min_limit" json:"min_limit"`
	// Steps at or below this length do not scatter
	MinStep float64 `yaml:"min_step" json:"min_step"`
	// Steps below this length are not transformed
	MinStepTransform float64 `yaml:"min_step_transform" json:"min_step_transform"`
	// Below this fraction of the range the mfp is constant over the step
	SmallRangeFrac float64 `yaml:"small_range_frac" json:"small_range_frac"`
	// Above this many mfp the exit direction is isotropic
	TauBig float64 `yaml:"tau_big" json:"tau_big"`
	// Displacements shorter than this are dropped
	GeomLimit float64 `yaml:"geom_limit" json:"geom_limit"`
	// Fraction of the safety kept clear by the displacement
	SafetyTol float64 `yaml:"safety_tol" json:"safety_tol"`
	// No scattering is sampled below this end-of-step energy
	MinEndpointEnergy float64 `yaml:"min_endpoint_energy" json:"min_endpoint_energy"`

	LowEnergyLimit  float64 `yaml:"low_energy_limit" json:"low_energy_limit"`
	HighEnergyLimit float64 `yaml:"high_energy_limit" json:"high_energy_limit"`

	DisableDisplacement bool `yaml:"disable_displacement" json:"disable_displacement"`
}

func DefaultHighlandParams() HighlandParams {
	return HighlandParams{
		RangeFactor:       0.04,
		MinLimit:          1 * units.Micrometer,
		MinStep:           1e-9 * units.Centimeter,
		MinStepTransform:  1e-7 * units.Centimeter,
		SmallRangeFrac:    0.05,
		TauBig:            8,
		GeomLimit:         5e-7 * units.Centimeter,
		SafetyTol:         0.01,
		MinEndpointEnergy: 1 * units.EV,
		LowEnergyLimit:    100 * units.EV,
		HighEnergyLimit:   100 * units.TeV,
	}
}

func (p HighlandParams) Validate() error {
	switch {
	case !(p.RangeFactor > 0 && p.RangeFactor <= 1):
		return fmt.Errorf("%w: range_factor %g not in (0, 1]", ErrInvalidParams, p.RangeFactor)
	case p.MinLimit <= 0 || p.MinStep <= 0 || p.MinStepTransform <= 0:
		return fmt.Errorf("%w: minimum step lengths must be positive", ErrInvalidParams)
	case !(p.SmallRangeFrac > 0 && p.SmallRangeFrac < 1):
		return fmt.Errorf("%w: small_range_frac %g not in (0, 1)", ErrInvalidParams, p.SmallRangeFrac)
	case p.TauBig <= 0:
		return fmt.Errorf("%w: tau_big %g", ErrInvalidParams, p.TauBig)
	case p.SafetyTol < 0 || p.SafetyTol >= 1:
		return fmt.Errorf("%w: safety_tol %g not in [0, 1)", ErrInvalidParams, p.SafetyTol)
	case !(p.HighEnergyLimit > p.LowEnergyLimit):
		return fmt.Errorf("%w: energy limits [%g, %g]", ErrInvalidParams, p.LowEnergyLimit, p.HighEnergyLimit)
	}
	return nil
}

// Highland scatters with a Gaussian polar angle whose width follows the
// Highland formula, and displaces laterally by the mean radius expected
// from the difference between the true and geometric path.
type Highland struct {
	params HighlandParams
}

func NewHighland(p HighlandParams) (*Highland, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return &Highland{params: p}, nil
}

func (h *Highland) Params() HighlandParams { return h.params }

func (h *Highland) IsApplicable(track core.TrackView, step float64) bool {
	if track.Sim().Status() != core.StatusAlive || step <= h.params.MinStep {
		return false
	}
	part := track.Particle()
	if part.Charge() == 0 || part.IsStopped() {
		return false
	}
	physics := track.Physics()
	if !physics.HasMsc() || !physics.EnergyLossGrid() {
		return false
	}
	e := part.Energy()
	return e >= h.params.LowEnergyLimit && e < h.params.HighEnergyLimit
}

func (h *Highland) LimitStep(track core.TrackView) {
	sim, part, physics := track.Sim(), track.Particle(), track.Physics()
	e := part.Energy()
	lambda := physics.CalcMscMfp(e)
	r := rangeOf(physics, e)

	truePath := math.Min(sim.StepLength(), r)
	limit := math.Max(h.params.RangeFactor*math.Max(r, lambda), h.params.MinLimit)
	if limit < truePath {
		truePath = limit
		sim.SetPostStepAction(core.ActionMscRange)
	}

	step := stepToGeo(h.params, physics, e, lambda, r, truePath)
	*track.MscStep() = core.MscStep{
		TruePath:    truePath,
		GeomPath:    step.geom,
		Alpha:       step.alpha,
		IsDisplaced: !h.params.DisableDisplacement && !track.Geo().IsOnBoundary(),
	}
	sim.SetStepLength(step.geom)
}

func (h *Highland) ApplyStep(track core.TrackView) {
	sim, part, physics, g := track.Sim(), track.Particle(), track.Physics(), track.Geo()
	mstep := track.MscStep()
	e := part.Energy()
	lambda := physics.CalcMscMfp(e)
	r := rangeOf(physics, e)

	geomPath := sim.StepLength()
	truePath := mstep.TruePath
	if geomPath < mstep.GeomPath {
		// Propagation stopped early: recover the equivalent true path
		truePath = stepFromGeo(h.params, *mstep, lambda, r, geomPath)
	}
	sim.SetStepLength(truePath)

	if truePath < h.params.GeomLimit {
		return
	}
	endEnergy := 0.0
	if truePath < r {
		endEnergy = physics.CalcInverseRange(r - truePath)
	}
	if endEnergy < h.params.MinEndpointEnergy {
		return
	}

	engine := track.Rng()
	costheta := 1.0
	if tau := truePath / lambda; tau >= h.params.TauBig {
		costheta = rng.Uniform(engine, -1, 1)
	} else if theta0 := highlandWidth(part, physics.Material(), e, endEnergy, truePath); theta0 > 0 {
		theta := math.Hypot(rng.Normal(engine, 0, theta0), rng.Normal(engine, 0, theta0))
		costheta = math.Cos(math.Min(theta, math.Pi))
	}
	phi := rng.Uniform(engine, 0, 2*math.Pi)
	sinphi, cosphi := math.Sincos(phi)

	dir := g.Dir()
	if mstep.IsDisplaced && truePath > geomPath {
		length := 0.73 * math.Sqrt((truePath-geomPath)*(truePath+geomPath))
		length = math.Min(length, (1-h.params.SafetyTol)*g.FindSafety())
		if length >= h.params.GeomLimit {
			disp := rotateUz(r3.Vec{X: cosphi, Y: sinphi}, dir)
			g.MoveInternal(r3.Add(g.Pos(), r3.Scale(length, disp)))
		}
	}

	sintheta := math.Sqrt(math.Max(0, (1-costheta)*(1+costheta)))
	newDir := rotateUz(r3.Vec{X: sintheta * cosphi, Y: sintheta * sinphi, Z: costheta}, dir)
	g.SetDir(r3.Unit(newDir))
}

// rangeOf returns the range stored by the physics step limit, computing
// it if the pre-step was skipped.
func rangeOf(physics phys.PhysicsTrackView, e float64) float64 {
	if r := physics.DedxRange(); r > 0 {
		return r
	}
	return physics.CalcRange(e)
}

// highlandWidth is the plane angular width of the Highland formula with
// the momentum averaged over the step and the logarithmic correction.
func highlandWidth(part phys.ParticleTrackView, mat phys.MaterialRecord, e0, e1, truePath float64) float64 {
	m := part.Mass()
	invbetacp := math.Sqrt((e0 + m) * (e1 + m) / (e0 * (e0 + 2*m) * e1 * (e1 + 2*m)))
	z := math.Abs(part.Charge())
	y := truePath / mat.RadiationLength

	correction := 1 + 0.038*math.Log(y*z*z/part.Beta2())
	return math.Max(0, 13.6*units.MeV*z*math.Sqrt(y)*invbetacp*correction)
}

// rotateUz rotates local, expressed in a frame whose z axis is dir, into
// the lab frame.
func rotateUz(local, dir r3.Vec) r3.Vec {
	up := dir.X*dir.X + dir.Y*dir.Y
	if up > 0 {
		up = math.Sqrt(up)
		return r3.Vec{
			X: (dir.X*dir.Z*local.X-dir.Y*local.Y)/up + dir.X*local.Z,
			Y: (dir.Y*dir.Z*local.X+dir.X*local.Y)/up + dir.Y*local.Z,
			Z: -up*local.X + dir.Z*local.Z,
		}
	}
	if dir.Z < 0 {
		return r3.Vec{X: -local.X, Y: local.Y, Z: -local.Z}
	}
	return local
}
