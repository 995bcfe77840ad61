package alongstep_test

import (
	"context"
	"math"

	"github.com/san-kum/magtrack/internal/alongstep"
	"github.com/san-kum/magtrack/internal/core"
	"github.com/san-kum/magtrack/internal/field"
	"github.com/san-kum/magtrack/internal/fluct"
	"github.com/san-kum/magtrack/internal/msc"
	"github.com/san-kum/magtrack/internal/ode"
	"github.com/san-kum/magtrack/internal/units"
	"gonum.org/v1/gonum/spatial/r3"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

type snapshot struct {
	status core.TrackStatus
	action core.ActionID
	step   float64
	energy float64
	pos    r3.Vec
	dir    r3.Vec
}

// batchSetup is a slab stack in a uniform field along z.
type batchSetup struct {
	planes  []float64
	layers  []string
	bz      float64
	maxStep float64
	fluct   bool
}

var (
	slabBatch    = batchSetup{planes: []float64{-5, 0, 5}, layers: []string{"water", "silicon"}, bz: 1, maxStep: 0.5, fluct: true}
	loopingBatch = batchSetup{planes: []float64{-1000, 1000}, layers: []string{"galactic"}, bz: 4, maxStep: 1000}
)

func runBatch(setup batchSetup, workers int) ([]snapshot, []float64, []float64) {
	const n = 256
	f := newFixture(setup.planes, setup.layers, n, nil)
	model, err := msc.NewHighland(msc.DefaultHighlandParams())
	Expect(err).NotTo(HaveOccurred())
	opts := alongstep.Options{Msc: model, Workers: workers, MinChunk: 16}
	if setup.fluct {
		opts.Fluct, err = fluct.NewParams(f.params.Physics.Materials(), fluct.DefaultOptions())
		Expect(err).NotTo(HaveOccurred())
	}
	action, err := alongstep.NewUniformMsc(field.NewUniformZ(setup.bz), ode.DriverOptions{}, opts)
	Expect(err).NotTo(HaveOccurred())

	requested := make([]float64, n)
	before := make([]float64, n)
	for i := range n {
		particle := []string{"e-", "e+", "proton", "gamma"}[i%4]
		dir := r3.Unit(r3.Vec{X: math.Cos(float64(i)), Y: math.Sin(float64(i)), Z: 1})
		track := f.init(i, particle, 0.5+float64(i%16), r3.Vec{Z: -4 + 8*float64(i)/n}, dir)
		physicsStep(track, setup.maxStep)
		requested[i] = track.Sim().StepLength()
		before[i] = track.Particle().Energy()
	}
	Expect(action.Step(context.Background(), f.params, f.state)).To(Succeed())

	out := make([]snapshot, n)
	deposits := make([]float64, n)
	for i := range out {
		track := core.NewTrackView(f.params, f.state, i)
		out[i] = snapshot{
			status: track.Sim().Status(),
			action: track.Sim().PostStepAction(),
			step:   track.Sim().StepLength(),
			energy: track.Particle().Energy(),
			pos:    track.Geo().Pos(),
			dir:    track.Geo().Dir(),
		}
		deposits[i] = track.Physics().EnergyDeposit()
		Expect(deposits[i]).To(BeNumerically("<=", before[i]))
		Expect(out[i].energy + deposits[i]).To(BeNumerically("~", before[i], 1e-9))
	}
	return out, deposits, requested
}

var _ = Describe("Action", func() {
	It("does not depend on the number of workers", func() {
		serial, _, _ := runBatch(slabBatch, 1)
		parallel, _, _ := runBatch(slabBatch, 4)
		Expect(parallel).To(Equal(serial))
	})

	DescribeTable("never lengthens the requested step",
		func(setup batchSetup, want core.ActionID) {
			tracks, deposits, requested := runBatch(setup, 2)
			seen := false
			for i, t := range tracks {
				Expect(deposits[i]).To(BeNumerically(">=", 0))
				Expect(t.status).To(BeElementOf(core.StatusAlive, core.StatusKilled))
				Expect(t.step).To(BeNumerically("<=", requested[i]))
				Expect(r3.Norm(t.dir)).To(BeNumerically("~", 1, 1e-9))
				if t.action == want {
					seen = true
				}
			}
			Expect(seen).To(BeTrue())
		},
		Entry("slabs", slabBatch, core.ActionBoundary),
		Entry("looping in a strong field", loopingBatch, core.ActionPropagationLimit),
	)

	It("stops when the context is canceled", func() {
		f := newFixture([]float64{-5, 5}, []string{"water"}, 8, nil)
		for i := range 8 {
			track := f.init(i, "gamma", 1, r3.Vec{}, r3.Vec{Z: 1})
			prestep(track, 1, core.ActionDiscrete)
		}
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		action := alongstep.NewNeutral(alongstep.Options{Workers: 1})
		Expect(action.Step(ctx, f.params, f.state)).To(MatchError(context.Canceled))
		Expect(core.NewTrackView(f.params, f.state, 0).Geo().Pos()).To(Equal(r3.Vec{}))
	})

	It("skips tracks that are not alive", func() {
		f := newFixture([]float64{-5, 5}, []string{"water"}, 2, nil)
		for i := range 2 {
			track := f.init(i, "gamma", 1, r3.Vec{}, r3.Vec{Z: 1})
			prestep(track, 1, core.ActionDiscrete)
		}
		core.NewTrackView(f.params, f.state, 1).Sim().SetStatus(core.StatusKilled)

		Expect(alongstep.NewNeutral(alongstep.Options{}).Step(context.Background(), f.params, f.state)).To(Succeed())
		Expect(core.NewTrackView(f.params, f.state, 0).Sim().NumSteps()).To(Equal(1))
		Expect(core.NewTrackView(f.params, f.state, 1).Sim().NumSteps()).To(BeZero())
	})

	It("moves neutral tracks in straight lines without losing energy", func() {
		f := newFixture([]float64{-5, 5}, []string{"water"}, 1, nil)
		track := f.init(0, "gamma", 1, r3.Vec{}, r3.Vec{Z: 1})
		prestep(track, 2, core.ActionDiscrete)

		action := alongstep.NewNeutral(alongstep.Options{})
		Expect(action.Label()).To(Equal("along-step-neutral"))
		action.ApplyTrack(track)
		Expect(track.Geo().Pos()).To(Equal(r3.Vec{Z: 2}))
		Expect(track.Particle().Energy()).To(Equal(1.0))
		Expect(track.Sim().PostStepAction()).To(Equal(core.ActionDiscrete))
	})

	It("propagates neutral tracks straight through a field", func() {
		f := newFixture([]float64{-5, 5}, []string{"water"}, 1, nil)
		action, err := alongstep.NewUniformMsc(field.NewUniformZ(2), ode.DriverOptions{}, alongstep.Options{})
		Expect(err).NotTo(HaveOccurred())

		track := f.init(0, "gamma", 1, r3.Vec{}, r3.Vec{X: 1})
		prestep(track, 2, core.ActionDiscrete)
		action.ApplyTrack(track)
		Expect(track.Geo().Pos().X).To(BeNumerically("~", 2, 1e-12))
		Expect(track.Geo().Dir()).To(Equal(r3.Vec{X: 1}))
	})
})

var _ = Describe("cylindrical map action", func() {
	// Long enough that the map is flat to rounding near the origin
	solenoid := func(b0 float64) *field.CylMapParams {
		p, err := field.NewCylMapParams(field.Solenoid{B0: b0, HalfLength: 1000, Radius: 50}.CylMap(11, 9, 201))
		Expect(err).NotTo(HaveOccurred())
		return p
	}

	It("follows the uniform field it tabulates", func() {
		const n = 8
		opts := alongstep.Options{Workers: 2, MinChunk: 1}
		cylAction, err := alongstep.NewRegistry().Build("cylmap", alongstep.FieldSource{Cyl: solenoid(1)}, opts)
		Expect(err).NotTo(HaveOccurred())
		uniformAction, err := alongstep.NewUniformMsc(field.NewUniformZ(1), ode.DriverOptions{}, opts)
		Expect(err).NotTo(HaveOccurred())

		initialDir := func(i int) r3.Vec {
			angle := 2 * math.Pi * float64(i) / n
			return r3.Unit(r3.Vec{X: math.Cos(angle), Y: math.Sin(angle), Z: 0.3})
		}
		run := func(action *alongstep.Action) *fixture {
			f := newFixture([]float64{-100, 100}, []string{"galactic"}, n, nil)
			for i := range n {
				track := f.init(i, "e-", 10, r3.Vec{X: 0.1 * float64(i)}, initialDir(i))
				prestep(track, 2, core.ActionRange)
			}
			Expect(action.Step(context.Background(), f.params, f.state)).To(Succeed())
			return f
		}
		cyl, uniform := run(cylAction), run(uniformAction)

		for i := range n {
			got := core.NewTrackView(cyl.params, cyl.state, i)
			want := core.NewTrackView(uniform.params, uniform.state, i)
			Expect(got.Sim().Status()).To(Equal(core.StatusAlive))
			Expect(got.Sim().PostStepAction()).To(Equal(want.Sim().PostStepAction()))
			Expect(got.Sim().StepLength()).To(BeNumerically("~", want.Sim().StepLength(), 1e-6))
			Expect(r3.Norm(r3.Sub(got.Geo().Pos(), want.Geo().Pos()))).To(BeNumerically("<", 1e-3))
			Expect(r3.Norm(r3.Sub(got.Geo().Dir(), want.Geo().Dir()))).To(BeNumerically("<", 1e-3))
			Expect(r3.Dot(got.Geo().Dir(), initialDir(i))).To(BeNumerically("<", 1-1e-3))
		}
	})

	It("cuts a looping electron", func() {
		f := newFixture([]float64{-1000, 1000}, []string{"galactic"}, 1, map[string]core.LoopingThreshold{
			"e-": {MaxSubthresholdSteps: 3, MaxSteps: 10, ThresholdEnergy: 10 * units.MeV},
		})
		action, err := alongstep.NewCylMapMsc(solenoid(4), alongstep.Options{Workers: 1})
		Expect(err).NotTo(HaveOccurred())

		track := f.init(0, "e-", 1*units.MeV, r3.Vec{}, r3.Vec{X: 1})
		var actions []core.ActionID
		for range 10 {
			prestep(track, 1000, core.ActionRange)
			Expect(action.Step(context.Background(), f.params, f.state)).To(Succeed())
			actions = append(actions, track.Sim().PostStepAction())
			Expect(track.Sim().StepLength()).To(BeNumerically("<", 1000))
			if track.Sim().PostStepAction() == core.ActionTrackingCut {
				break
			}
		}
		Expect(actions).To(Equal([]core.ActionID{
			core.ActionPropagationLimit, core.ActionPropagationLimit, core.ActionTrackingCut,
		}))
		Expect(track.Sim().Status()).To(Equal(core.StatusAlive))
		Expect(track.Geo().Pos().Z).To(BeNumerically("~", 0, 1e-6))
	})
})

var _ = Describe("FieldTrackPropagator", func() {
	It("rejects invalid driver options and integrators", func() {
		_, err := alongstep.NewFieldTrackPropagator(field.NewUniformZ(1), ode.DriverOptions{}, alongstep.IntegratorRK4)
		Expect(err).To(MatchError(ode.ErrInvalidOptions))

		_, err = alongstep.NewFieldTrackPropagator(field.NewUniformZ(1), ode.DefaultDriverOptions(), "euler")
		Expect(err).To(MatchError(alongstep.ErrInvalidAction))
	})

	It("curves charged tracks", func() {
		f := newFixture([]float64{-100, 100}, []string{"galactic"}, 1, nil)
		prop, err := alongstep.NewFieldTrackPropagator(field.NewUniformZ(1), ode.DefaultDriverOptions(),
			alongstep.IntegratorDormandPrince)
		Expect(err).NotTo(HaveOccurred())

		track := f.init(0, "e-", 10, r3.Vec{}, r3.Vec{X: 1})
		prestep(track, 1, core.ActionRange)
		prop.Apply(track)
		Expect(track.Sim().StepLength()).To(Equal(1.0))
		Expect(track.Geo().Dir().Y).NotTo(BeZero())
		Expect(track.Geo().Pos().Z).To(BeZero())
	})
})

var _ = Describe("Registry", func() {
	var (
		r   *alongstep.Registry
		cyl *field.CylMapParams
	)

	BeforeEach(func() {
		r = alongstep.NewRegistry()
		var err error
		cyl, err = field.NewCylMapParams(field.Solenoid{B0: 1, HalfLength: 10, Radius: 5}.CylMap(5, 5, 9))
		Expect(err).NotTo(HaveOccurred())
	})

	It("lists the field kinds", func() {
		Expect(r.Names()).To(Equal([]string{"cartmap", "cylmap", "neutral", "rzmap", "uniform"}))
	})

	It("builds the action for a field kind", func() {
		action, err := r.Build("cylmap", alongstep.FieldSource{Cyl: cyl}, alongstep.Options{})
		Expect(err).NotTo(HaveOccurred())
		Expect(action.Label()).To(Equal("along-step-cylmap-msc"))

		action, err = r.Build("uniform", alongstep.FieldSource{Uniform: field.NewUniformZ(1)},
			alongstep.Options{Integrator: alongstep.IntegratorZHelix})
		Expect(err).NotTo(HaveOccurred())
		Expect(action.Label()).To(Equal("along-step-uniform-msc"))
	})

	It("reports missing inputs and unknown kinds", func() {
		_, err := r.Build("cartmap", alongstep.FieldSource{}, alongstep.Options{})
		Expect(err).To(MatchError(alongstep.ErrInvalidAction))

		_, err = r.Build("dipole", alongstep.FieldSource{}, alongstep.Options{})
		Expect(err).To(MatchError(alongstep.ErrInvalidAction))

		_, err = r.Build("cylmap", alongstep.FieldSource{Cyl: cyl}, alongstep.Options{Integrator: alongstep.IntegratorZHelix})
		Expect(err).To(MatchError(alongstep.ErrInvalidAction))
	})
})
