// Package sim runs batches of primaries through the step loop: the physics
// step limit, the along-step action and the post-step boundary and
// interaction handling.
package sim

import (
	"context"
	"fmt"
	"log/slog"
	"math"

	"github.com/san-kum/magtrack/internal/core"
	"github.com/san-kum/magtrack/internal/phys"
	"github.com/san-kum/magtrack/internal/rng"
	"gonum.org/v1/gonum/spatial/r3"
)

type Simulator struct {
	params    *core.Params
	along     AlongStep
	metrics   []Metric
	observers []Observer
	logger    *slog.Logger
}

func New(params *core.Params, along AlongStep) *Simulator {
	return &Simulator{
		params:    params,
		along:     along,
		metrics:   make([]Metric, 0),
		observers: make([]Observer, 0),
		logger:    slog.Default(),
	}
}

func (s *Simulator) AddMetric(m Metric)     { s.metrics = append(s.metrics, m) }
func (s *Simulator) AddObserver(o Observer) { s.observers = append(s.observers, o) }
func (s *Simulator) Params() *core.Params   { return s.params }

func (s *Simulator) SetLogger(l *slog.Logger) {
	if l == nil {
		l = slog.Default()
	}
	s.logger = l
}

// Run steps all primaries until none is alive, the iteration limit is
// reached or the context is canceled. A canceled run returns the partial
// result together with the context error.
func (s *Simulator) Run(ctx context.Context, primaries []core.Primary, cfg Config) (*Result, error) {
	b, err := s.Start(primaries, cfg)
	if err != nil {
		return nil, err
	}
	for !b.Done() {
		select {
		case <-ctx.Done():
			return b.Finish(), ctx.Err()
		default:
		}
		if err := b.Step(ctx); err != nil {
			return b.Finish(), err
		}
	}
	if b.Alive() > 0 {
		s.logger.Warn("iteration limit reached", "iterations", b.iteration, "alive", b.Alive())
	}
	return b.Finish(), nil
}

// RunWithCallback is Run with a callback after every iteration; returning
// false stops the run early.
func (s *Simulator) RunWithCallback(ctx context.Context, primaries []core.Primary, cfg Config, callback func(b *Batch) bool) (*Result, error) {
	b, err := s.Start(primaries, cfg)
	if err != nil {
		return nil, err
	}
	for !b.Done() {
		select {
		case <-ctx.Done():
			return b.Finish(), ctx.Err()
		default:
		}
		if err := b.Step(ctx); err != nil {
			return b.Finish(), err
		}
		if !callback(b) {
			break
		}
	}
	return b.Finish(), nil
}

func (s *Simulator) validate(primaries []core.Primary, cfg Config) error {
	if s.along == nil {
		return ErrNoAction
	}
	if len(primaries) == 0 {
		return ErrNoPrimaries
	}
	if cfg.MaxIterations < 0 {
		return fmt.Errorf("%w: max iterations %d, expected >= 0", ErrInvalidConfig, cfg.MaxIterations)
	}
	if !(cfg.MaxStep > 0) {
		return fmt.Errorf("%w: max step %g, expected > 0", ErrInvalidConfig, cfg.MaxStep)
	}
	if s.params == nil {
		return fmt.Errorf("%w: no params", ErrInvalidConfig)
	}
	for i, p := range primaries {
		if int(p.Particle) < 0 || int(p.Particle) >= s.params.Particles.Size() {
			return fmt.Errorf("%w: primary %d has unknown particle %d", ErrInvalidConfig, i, p.Particle)
		}
		if !(p.Energy > 0) {
			return fmt.Errorf("%w: primary %d energy %g, expected > 0", ErrInvalidConfig, i, p.Energy)
		}
		if math.Abs(r3.Norm(p.Dir)-1) > 1e-6 {
			return fmt.Errorf("%w: primary %d direction %v is not a unit vector", ErrInvalidConfig, i, p.Dir)
		}
	}
	return nil
}

// Batch is a run in progress, one slot per primary.
type Batch struct {
	sim       *Simulator
	cfg       Config
	state     *core.State
	result    *Result
	iteration int
	alive     []bool
	escaped   []bool
	deposits  []float64
	errored   []bool
}

// Start initializes one track slot per primary.
func (s *Simulator) Start(primaries []core.Primary, cfg Config) (*Batch, error) {
	if err := s.validate(primaries, cfg); err != nil {
		return nil, err
	}
	for _, m := range s.metrics {
		m.Reset()
	}

	n := len(primaries)
	b := &Batch{
		sim:   s,
		cfg:   cfg,
		state: core.NewState(n, cfg.Seed),
		result: &Result{
			Label:   s.along.Label(),
			Tracks:  make([]TrackSummary, n),
			Metrics: make(map[string]float64),
			Errors:  make([]error, 0),
		},
		alive:    make([]bool, n),
		escaped:  make([]bool, n),
		deposits: make([]float64, n),
		errored:  make([]bool, n),
	}
	for slot, p := range primaries {
		track := b.track(slot)
		track.Init(p)
		b.result.Tracks[slot] = TrackSummary{
			TrackID:       p.TrackID,
			Particle:      track.Particle().Def().Name,
			InitialEnergy: p.Energy,
		}
		if track.Sim().Status() != core.StatusAlive {
			// Started outside the world
			b.escaped[slot] = true
		}
	}
	s.logger.Debug("batch started", "tracks", n, "action", s.along.Label(), "seed", cfg.Seed)
	return b, nil
}

func (b *Batch) track(slot int) core.TrackView {
	return core.NewTrackView(b.sim.params, b.state, slot)
}

func (b *Batch) Iteration() int     { return b.iteration }
func (b *Batch) State() *core.State { return b.state }

// Alive counts the tracks still being transported.
func (b *Batch) Alive() int {
	n := 0
	for slot := range b.state.Size() {
		if b.track(slot).Sim().Status() == core.StatusAlive {
			n++
		}
	}
	return n
}

func (b *Batch) Done() bool {
	if b.cfg.MaxIterations > 0 && b.iteration >= b.cfg.MaxIterations {
		return true
	}
	return b.Alive() == 0
}

// Step advances every alive track by one step.
func (b *Batch) Step(ctx context.Context) error {
	for slot := range b.state.Size() {
		b.alive[slot] = b.preStep(b.track(slot))
	}
	if err := b.sim.along.Step(ctx, b.sim.params, b.state); err != nil {
		return fmt.Errorf("%s: %w", b.sim.along.Label(), err)
	}
	for slot := range b.state.Size() {
		if b.alive[slot] {
			b.postStep(b.track(slot))
		}
	}
	b.iteration++
	return nil
}

func (b *Batch) preStep(track core.TrackView) bool {
	sim := track.Sim()
	if sim.Status() != core.StatusAlive {
		return false
	}
	physics := track.Physics()
	physics.ResetEnergyDeposit()
	if !physics.HasInteractionMFP() {
		physics.SetInteractionMFP(rng.Exponential(track.Rng()))
	}
	limit := phys.CalcPhysicsStepLimit(track.Particle(), physics)
	if limit.Step > b.cfg.MaxStep {
		sim.Step(b.cfg.MaxStep, core.ActionPropagationLimit)
	} else {
		sim.Step(limit.Step, core.ActionFromLimiter(limit.Limiter))
	}
	return true
}

func (b *Batch) postStep(track core.TrackView) {
	sim, particle, physics := track.Sim(), track.Particle(), track.Physics()
	slot := track.Slot()

	switch sim.Status() {
	case core.StatusErrored:
		b.trackingCut(track)
		b.reportError(track)
	case core.StatusAlive:
		switch sim.PostStepAction() {
		case core.ActionBoundary:
			g := track.Geo()
			g.CrossBoundary()
			if !track.UpdateMaterial() {
				b.escaped[slot] = true
				sim.SetStatus(core.StatusKilled)
			}
		case core.ActionTrackingCut:
			b.trackingCut(track)
			sim.SetStatus(core.StatusKilled)
		case core.ActionDiscrete:
			if particle.IsStopped() {
				// Annihilation at rest; the products are not transported
				sim.SetStatus(core.StatusKilled)
			} else {
				physics.SetInteractionMFP(0)
			}
		}
	}

	b.deposits[slot] += physics.EnergyDeposit()
	ev := b.event(track)
	for _, m := range b.sim.metrics {
		m.Observe(ev)
	}
	for _, obs := range b.sim.observers {
		obs.OnStep(ev)
	}
	if b.cfg.RecordSteps {
		b.result.Steps = append(b.result.Steps, ev)
	}
}

// trackingCut deposits the remaining kinetic energy locally.
func (b *Batch) trackingCut(track core.TrackView) {
	particle := track.Particle()
	if e := particle.Energy(); e > 0 {
		track.Physics().DepositEnergy(e)
		particle.SetEnergy(0)
	}
}

func (b *Batch) reportError(track core.TrackView) {
	slot := track.Slot()
	if b.errored[slot] {
		return
	}
	b.errored[slot] = true
	sim := track.Sim()
	err := &TrackError{
		TrackID:   sim.TrackID(),
		Slot:      slot,
		Iteration: b.iteration,
		NumSteps:  sim.NumSteps(),
		Pos:       track.Geo().Pos(),
		Wrapped:   ErrTrackErrored,
	}
	b.result.Errors = append(b.result.Errors, err)
	b.sim.logger.Error("track errored",
		"track", err.TrackID, "slot", slot, "iteration", b.iteration, "steps", err.NumSteps,
		"particle", track.Particle().Def().Name, "energy", track.Particle().Energy())
}

func (b *Batch) event(track core.TrackView) StepEvent {
	sim, g := track.Sim(), track.Geo()
	return StepEvent{
		Iteration:  b.iteration,
		Slot:       track.Slot(),
		TrackID:    sim.TrackID(),
		Particle:   track.Particle().Def().Name,
		Status:     sim.Status(),
		Action:     sim.PostStepAction(),
		StepLength: sim.StepLength(),
		Energy:     track.Particle().Energy(),
		Deposit:    track.Physics().EnergyDeposit(),
		Pos:        g.Pos(),
		Dir:        g.Dir(),
		Time:       sim.Time(),
		Volume:     g.Volume(),
	}
}

// Finish collects the track summaries and metric values.
func (b *Batch) Finish() *Result {
	r := b.result
	r.Iterations = b.iteration
	for slot := range b.state.Size() {
		track := b.track(slot)
		sim := track.Sim()
		t := &r.Tracks[slot]
		t.Status = sim.Status()
		t.LastAction = sim.PostStepAction()
		t.NumSteps = sim.NumSteps()
		t.Energy = track.Particle().Energy()
		t.Deposit = b.deposits[slot]
		t.Time = sim.Time()
		t.Pos = track.Geo().Pos()
		t.Escaped = b.escaped[slot]
	}
	for _, m := range b.sim.metrics {
		r.Metrics[m.Name()] = m.Value()
	}
	return r
}
