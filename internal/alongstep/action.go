package alongstep

import (
	"context"
	"errors"
	"fmt"

	"github.com/san-kum/magtrack/internal/core"
	"github.com/san-kum/magtrack/internal/field"
	"github.com/san-kum/magtrack/internal/fluct"
	"github.com/san-kum/magtrack/internal/msc"
	"github.com/san-kum/magtrack/internal/ode"
)

var ErrInvalidAction = errors.New("alongstep: invalid action")

// Options configure the physics and scheduling shared by every action.
type Options struct {
	// Scattering model; nil disables scattering
	Msc msc.Model
	// Fluctuation data; nil loses the mean energy
	Fluct *fluct.Params
	// Integrator for charged tracks in a field
	Integrator Integrator
	// Worker goroutines, GOMAXPROCS when zero
	Workers int
	// Tracks per scheduling chunk
	MinChunk int
}

// Action is the along-step part of the step loop for one field
// configuration.
type Action struct {
	label  string
	stages []Stage
	opts   Options
}

func newAction(label string, propagation Stage, opts Options) *Action {
	var eloss Stage = ElossApplier[MeanELoss]{}
	if opts.Fluct != nil {
		eloss = ElossApplier[FluctELoss]{Calc: FluctELoss{Params: opts.Fluct}}
	}
	if opts.MinChunk <= 0 {
		opts.MinChunk = 64
	}
	return &Action{
		label: label,
		stages: []Stage{
			MscStepLimitApplier{Msc: opts.Msc},
			propagation,
			MscApplier{Msc: opts.Msc},
			TimeUpdater{},
			eloss,
			TrackUpdater{},
		},
		opts: opts,
	}
}

func (a *Action) Label() string { return a.label }

// ApplyTrack runs every stage on one alive track.
func (a *Action) ApplyTrack(track core.TrackView) {
	for _, stage := range a.stages {
		stage.Apply(track)
	}
}

// Step applies the along-step stages to every alive track. Tracks are
// independent, so slots are divided among workers; cancellation is checked
// between chunks.
func (a *Action) Step(ctx context.Context, params *core.Params, state *core.State) error {
	return parallelFor(ctx, state.Size(), a.opts.Workers, a.opts.MinChunk, func(start, end int) {
		for slot := start; slot < end; slot++ {
			track := core.NewTrackView(params, state, slot)
			if track.Sim().Status() != core.StatusAlive {
				continue
			}
			a.ApplyTrack(track)
		}
	})
}

// NewNeutral moves tracks in straight lines without scattering or
// continuous energy loss.
func NewNeutral(opts Options) *Action {
	a := newAction("along-step-neutral", PropagationApplier{MakePropagator: makeLinear}, opts)
	a.stages[0] = MscStepLimitApplier{}
	a.stages[2] = MscApplier{}
	a.stages[4] = noEloss{}
	return a
}

func newFieldAction[F ode.Evaluator](label string, f F, driver ode.DriverOptions, opts Options) (*Action, error) {
	prop, err := NewFieldTrackPropagator(f, driver, opts.Integrator)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrInvalidAction, label, err)
	}
	return newAction(label, prop, opts), nil
}

// NewUniformMsc propagates through a uniform field. Zero driver options
// select the defaults.
func NewUniformMsc(f field.Uniform, driver ode.DriverOptions, opts Options) (*Action, error) {
	if driver == (ode.DriverOptions{}) {
		driver = ode.DefaultDriverOptions()
	}
	if opts.Integrator == IntegratorZHelix && !f.IsAlongZ() {
		return nil, fmt.Errorf("%w: helix integrator needs a field along z, got %v", ErrInvalidAction, f.Value)
	}
	return newFieldAction("along-step-uniform-msc", f, driver, opts)
}

func NewCartMapMsc(p *field.CartMapParams, opts Options) (*Action, error) {
	if opts.Integrator == IntegratorZHelix {
		return nil, fmt.Errorf("%w: helix integrator needs a uniform field", ErrInvalidAction)
	}
	return newFieldAction("along-step-cartmap-msc", field.NewCartMapField(p), p.DriverOptions(), opts)
}

func NewCylMapMsc(p *field.CylMapParams, opts Options) (*Action, error) {
	if opts.Integrator == IntegratorZHelix {
		return nil, fmt.Errorf("%w: helix integrator needs a uniform field", ErrInvalidAction)
	}
	return newFieldAction("along-step-cylmap-msc", field.NewCylMapField(p), p.DriverOptions(), opts)
}

func NewRZMapMsc(p *field.RZMapParams, opts Options) (*Action, error) {
	if opts.Integrator == IntegratorZHelix {
		return nil, fmt.Errorf("%w: helix integrator needs a uniform field", ErrInvalidAction)
	}
	return newFieldAction("along-step-rzmap-msc", field.NewRZMapField(p), p.DriverOptions(), opts)
}

type noEloss struct{}

func (noEloss) Apply(core.TrackView) {}
