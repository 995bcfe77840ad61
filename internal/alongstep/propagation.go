package alongstep

import (
	"fmt"

	"github.com/san-kum/magtrack/internal/core"
	"github.com/san-kum/magtrack/internal/ode"
	"github.com/san-kum/magtrack/internal/propagate"
)

// Integrator names an ODE integrator for field propagation.
type Integrator string

const (
	IntegratorDormandPrince Integrator = "dormand-prince"
	IntegratorRK4           Integrator = "rk4"
	// IntegratorZHelix is exact for a uniform field along z only.
	IntegratorZHelix Integrator = "zhelix"
)

func Integrators() []Integrator {
	return []Integrator{IntegratorDormandPrince, IntegratorRK4, IntegratorZHelix}
}

func makeIntegrator[F ode.Evaluator](kind Integrator, eq ode.Equation[F]) (ode.Integrator, error) {
	switch kind {
	case IntegratorDormandPrince, "":
		return ode.NewDormandPrince(eq), nil
	case IntegratorRK4:
		return ode.NewRK4(eq), nil
	case IntegratorZHelix:
		return ode.NewZHelix(eq), nil
	}
	return nil, fmt.Errorf("%w: unknown integrator %q", ErrInvalidAction, kind)
}

// FieldTrackPropagator propagates charged tracks through a magnetic field
// F and neutral tracks in straight lines.
type FieldTrackPropagator[F ode.Evaluator] struct {
	field      F
	driver     ode.DriverOptions
	integrator Integrator
}

func NewFieldTrackPropagator[F ode.Evaluator](field F, driver ode.DriverOptions, kind Integrator) (*FieldTrackPropagator[F], error) {
	if err := driver.Validate(); err != nil {
		return nil, err
	}
	if _, err := makeIntegrator(kind, ode.NewEquation(field, 1)); err != nil {
		return nil, err
	}
	return &FieldTrackPropagator[F]{field: field, driver: driver, integrator: kind}, nil
}

func (p *FieldTrackPropagator[F]) Field() F                         { return p.field }
func (p *FieldTrackPropagator[F]) DriverOptions() ode.DriverOptions { return p.driver }

// Make builds the propagator for the track's particle.
func (p *FieldTrackPropagator[F]) Make(track core.TrackView) propagate.Propagator {
	particle := track.Particle()
	if particle.Charge() == 0 {
		return propagate.NewLinear(track.Geo())
	}
	// Checked at construction
	integrate, _ := makeIntegrator(p.integrator, ode.NewEquation(p.field, particle.Charge()))
	stepper := ode.NewSubstepper(&p.driver, integrate)
	return propagate.NewField(stepper, particle, track.Geo())
}

// Apply propagates one track, shortening its step and setting the
// post-step action when the propagation ends early.
func (p *FieldTrackPropagator[F]) Apply(track core.TrackView) {
	PropagationApplier{MakePropagator: p.Make}.Apply(track)
}

func makeLinear(track core.TrackView) propagate.Propagator {
	return propagate.NewLinear(track.Geo())
}
