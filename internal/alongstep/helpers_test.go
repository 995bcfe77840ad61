package alongstep_test

import (
	"github.com/san-kum/magtrack/internal/core"
	"github.com/san-kum/magtrack/internal/fluct"
	"github.com/san-kum/magtrack/internal/geo"
	"github.com/san-kum/magtrack/internal/phys"
	"github.com/san-kum/magtrack/internal/propagate"
	"gonum.org/v1/gonum/spatial/r3"

	. "github.com/onsi/gomega"
)

type fixture struct {
	params *core.Params
	state  *core.State
}

func newFixture(planes []float64, layers []string, size int, looping map[string]core.LoopingThreshold) *fixture {
	p, err := core.BuildParams(core.ParamsInput{
		Planes:   planes,
		Layers:   layers,
		Physics:  phys.DefaultOptions(),
		MaxSteps: 100,
		Looping:  looping,
	})
	Expect(err).NotTo(HaveOccurred())
	return &fixture{params: p, state: core.NewState(size, 2024)}
}

func (f *fixture) init(slot int, particle string, energy float64, pos, dir r3.Vec) core.TrackView {
	pid, err := f.params.Particles.Find(particle)
	Expect(err).NotTo(HaveOccurred())
	track := core.NewTrackView(f.params, f.state, slot)
	track.Init(core.Primary{TrackID: uint64(slot + 1), Particle: pid, Energy: energy, Pos: pos, Dir: dir})
	Expect(track.Sim().Status()).To(Equal(core.StatusAlive))
	return track
}

// prestep stores the physics quantities the along-step stages read and
// requests a step.
func prestep(track core.TrackView, step float64, action core.ActionID) {
	physics := track.Physics()
	if !physics.HasInteractionMFP() {
		physics.SetInteractionMFP(1)
	}
	phys.CalcPhysicsStepLimit(track.Particle(), physics)
	track.Sim().Step(step, action)
}

// physicsStep requests the physics step limit, capped at max.
func physicsStep(track core.TrackView, max float64) {
	physics := track.Physics()
	physics.SetInteractionMFP(1)
	limit := phys.CalcPhysicsStepLimit(track.Particle(), physics)
	if limit.Step > max {
		track.Sim().Step(max, core.ActionFixedStep)
		return
	}
	track.Sim().Step(limit.Step, core.ActionFromLimiter(limit.Limiter))
}

// stubPropagator reports a fixed result, optionally moving the track.
type stubPropagator struct {
	geo     geo.TrackView
	result  geo.Propagation
	move    bool
	canLoop bool
}

func (s stubPropagator) Propagate(float64) geo.Propagation {
	if s.move {
		s.geo.MoveInternal(r3.Add(s.geo.Pos(), r3.Scale(s.result.Distance, s.geo.Dir())))
	}
	return s.result
}

func (s stubPropagator) TracksCanLoop() bool { return s.canLoop }

func stubFactory(result geo.Propagation, move, canLoop bool) func(core.TrackView) propagate.Propagator {
	return func(track core.TrackView) propagate.Propagator {
		return stubPropagator{geo: track.Geo(), result: result, move: move, canLoop: canLoop}
	}
}

// fixedLoss always loses the same energy.
type fixedLoss struct {
	loss float64
}

func (f fixedLoss) CalcEloss(core.TrackView) float64 { return f.loss }

func linear(track core.TrackView) propagate.Propagator {
	return propagate.NewLinear(track.Geo())
}

func fluctParams(f *fixture) (*fluct.Params, error) {
	return fluct.NewParams(f.params.Physics.Materials(), fluct.DefaultOptions())
}
