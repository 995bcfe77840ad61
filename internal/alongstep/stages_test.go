package alongstep_test

import (
	"github.com/san-kum/magtrack/internal/alongstep"
	"github.com/san-kum/magtrack/internal/core"
	"github.com/san-kum/magtrack/internal/field"
	"github.com/san-kum/magtrack/internal/geo"
	"github.com/san-kum/magtrack/internal/msc"
	"github.com/san-kum/magtrack/internal/ode"
	"github.com/san-kum/magtrack/internal/phys"
	"github.com/san-kum/magtrack/internal/units"
	"gonum.org/v1/gonum/spatial/r3"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("MscStepLimitApplier", func() {
	var f *fixture

	BeforeEach(func() {
		f = newFixture([]float64{-100, 100}, []string{"water"}, 1, nil)
	})

	It("zeroes the geometric path without a model", func() {
		track := f.init(0, "e-", 10, r3.Vec{}, r3.Vec{Z: 1})
		prestep(track, 1, core.ActionRange)
		track.MscStep().GeomPath = 5

		alongstep.MscStepLimitApplier{}.Apply(track)
		Expect(track.MscStep().GeomPath).To(BeZero())
		Expect(track.Sim().StepLength()).To(Equal(1.0))
	})

	It("records a geometric step no longer than the true step", func() {
		model, err := msc.NewHighland(msc.DefaultHighlandParams())
		Expect(err).NotTo(HaveOccurred())
		track := f.init(0, "e-", 10, r3.Vec{}, r3.Vec{Z: 1})
		prestep(track, 1, core.ActionRange)

		alongstep.MscStepLimitApplier{Msc: model}.Apply(track)
		mstep := track.MscStep()
		Expect(mstep.GeomPath).To(BeNumerically(">", 0))
		Expect(mstep.GeomPath).To(BeNumerically("<=", mstep.TruePath))
		Expect(track.Sim().StepLength()).To(Equal(mstep.GeomPath))
	})

	It("does not scatter neutral particles", func() {
		model, err := msc.NewHighland(msc.DefaultHighlandParams())
		Expect(err).NotTo(HaveOccurred())
		track := f.init(0, "gamma", 10, r3.Vec{}, r3.Vec{Z: 1})
		prestep(track, 1, core.ActionDiscrete)

		alongstep.MscStepLimitApplier{Msc: model}.Apply(track)
		Expect(track.MscStep().GeomPath).To(BeZero())
	})
})

var _ = Describe("PropagationApplier", func() {
	var f *fixture

	BeforeEach(func() {
		f = newFixture([]float64{-10, 0, 10}, []string{"galactic", "galactic"}, 1, map[string]core.LoopingThreshold{
			"e-":  {MaxSubthresholdSteps: 2, MaxSteps: 4, ThresholdEnergy: 10},
			"mu-": {MaxSubthresholdSteps: 2, MaxSteps: 4, ThresholdEnergy: 10},
		})
	})

	It("stops at a boundary and shrinks the step", func() {
		track := f.init(0, "e-", 10, r3.Vec{Z: -5}, r3.Vec{Z: 1})
		prestep(track, 20, core.ActionRange)

		alongstep.PropagationApplier{MakePropagator: linear}.Apply(track)
		Expect(track.Sim().PostStepAction()).To(Equal(core.ActionBoundary))
		Expect(track.Sim().StepLength()).To(BeNumerically("~", 5, 1e-12))
		Expect(track.Geo().IsOnBoundary()).To(BeTrue())
	})

	It("keeps the action when the full step is taken", func() {
		track := f.init(0, "e-", 10, r3.Vec{Z: -5}, r3.Vec{Z: 1})
		prestep(track, 2, core.ActionRange)

		alongstep.PropagationApplier{MakePropagator: linear}.Apply(track)
		Expect(track.Sim().PostStepAction()).To(Equal(core.ActionRange))
		Expect(track.Sim().StepLength()).To(Equal(2.0))
		Expect(track.Geo().Pos().Z).To(BeNumerically("~", -3, 1e-12))
	})

	It("skips a zero step for a particle stopped at rest", func() {
		track := f.init(0, "e+", 1, r3.Vec{Z: -5}, r3.Vec{Z: 1})
		track.Particle().SetEnergy(0)
		track.Sim().Step(0, core.ActionDiscrete)

		alongstep.PropagationApplier{MakePropagator: linear}.Apply(track)
		Expect(track.Geo().Pos()).To(Equal(r3.Vec{Z: -5}))
		Expect(track.Sim().Status()).To(Equal(core.StatusAlive))
	})

	It("limits a step that ends short of the request", func() {
		track := f.init(0, "e-", 10, r3.Vec{Z: -5}, r3.Vec{Z: 1})
		prestep(track, 2, core.ActionRange)

		factory := stubFactory(geo.Propagation{Distance: 1.5}, true, true)
		alongstep.PropagationApplier{MakePropagator: factory}.Apply(track)
		Expect(track.Sim().PostStepAction()).To(Equal(core.ActionPropagationLimit))
		Expect(track.Sim().StepLength()).To(Equal(1.5))
		Expect(track.Sim().NumLoopingSteps()).To(BeZero())
	})

	It("flags a track that does not move as errored", func() {
		track := f.init(0, "e-", 10, r3.Vec{Z: -5}, r3.Vec{Z: 1})
		prestep(track, 2, core.ActionRange)

		factory := stubFactory(geo.Propagation{Distance: 1e-3, Looping: true}, false, true)
		alongstep.PropagationApplier{MakePropagator: factory}.Apply(track)
		Expect(track.Sim().Status()).To(Equal(core.StatusErrored))
		Expect(track.Sim().PostStepAction()).To(Equal(core.ActionTrackingCut))
		Expect(track.Sim().StepLength()).To(Equal(2.0))
		Expect(track.Sim().NumLoopingSteps()).To(BeZero())
	})

	DescribeTable("looping",
		func(particle string, energy float64, calls int, want core.ActionID) {
			track := f.init(0, particle, energy, r3.Vec{Z: -5}, r3.Vec{Z: 1})
			factory := stubFactory(geo.Propagation{Distance: 0.1, Looping: true}, true, true)
			for range calls {
				prestep(track, 5, core.ActionRange)
				alongstep.PropagationApplier{MakePropagator: factory}.Apply(track)
			}
			Expect(track.Sim().PostStepAction()).To(Equal(want))
			Expect(track.Sim().StepLength()).To(Equal(0.1))
			Expect(track.Sim().NumLoopingSteps()).To(Equal(calls))
		},
		Entry("first low-energy loop", "e-", 1.0, 1, core.ActionPropagationLimit),
		Entry("persistent low-energy loop", "e-", 1.0, 2, core.ActionTrackingCut),
		Entry("high energy loops longer", "e-", 20.0, 3, core.ActionPropagationLimit),
		Entry("high energy cut", "e-", 20.0, 4, core.ActionTrackingCut),
		Entry("unstable particles are never cut", "mu-", 1.0, 5, core.ActionPropagationLimit),
	)
})

var _ = Describe("looping termination in a strong field", func() {
	It("ends with a tracking cut instead of looping forever", func() {
		f := newFixture([]float64{-1000, 1000}, []string{"galactic"}, 1, map[string]core.LoopingThreshold{
			"e-": {MaxSubthresholdSteps: 3, MaxSteps: 10, ThresholdEnergy: 10 * units.MeV},
		})
		model, err := msc.NewHighland(msc.DefaultHighlandParams())
		Expect(err).NotTo(HaveOccurred())
		action, err := alongstep.NewUniformMsc(field.NewUniformZ(4), ode.DriverOptions{},
			alongstep.Options{Msc: model, Workers: 1})
		Expect(err).NotTo(HaveOccurred())

		track := f.init(0, "e-", 1*units.MeV, r3.Vec{}, r3.Vec{X: 1})
		var actions []core.ActionID
		for range 10 {
			prestep(track, 1000, core.ActionRange)
			action.ApplyTrack(track)
			actions = append(actions, track.Sim().PostStepAction())
			if track.Sim().PostStepAction() == core.ActionTrackingCut {
				break
			}
		}
		Expect(actions).To(Equal([]core.ActionID{
			core.ActionPropagationLimit, core.ActionPropagationLimit, core.ActionTrackingCut,
		}))
		Expect(track.Sim().Status()).To(Equal(core.StatusAlive))
		Expect(track.Sim().NumSteps()).To(Equal(3))
	})
})

var _ = Describe("MscApplier", func() {
	It("only scatters alive tracks with a geometric path", func() {
		f := newFixture([]float64{-100, 100}, []string{"water"}, 1, nil)
		model, err := msc.NewHighland(msc.DefaultHighlandParams())
		Expect(err).NotTo(HaveOccurred())

		track := f.init(0, "e-", 10, r3.Vec{}, r3.Vec{Z: 1})
		prestep(track, 1, core.ActionRange)
		alongstep.MscStepLimitApplier{Msc: model}.Apply(track)
		track.Sim().SetStatus(core.StatusErrored)

		alongstep.MscApplier{Msc: model}.Apply(track)
		Expect(track.Geo().Dir()).To(Equal(r3.Vec{Z: 1}))

		track.Sim().SetStatus(core.StatusAlive)
		alongstep.MscApplier{Msc: model}.Apply(track)
		Expect(track.Geo().Dir()).NotTo(Equal(r3.Vec{Z: 1}))
		Expect(track.Sim().StepLength()).To(Equal(track.MscStep().TruePath))
	})
})

var _ = Describe("TimeUpdater", func() {
	var f *fixture

	BeforeEach(func() {
		f = newFixture([]float64{-100, 100}, []string{"water"}, 1, nil)
	})

	It("adds the step duration", func() {
		track := f.init(0, "gamma", 1, r3.Vec{}, r3.Vec{Z: 1})
		track.Sim().SetStepLength(units.CLight * 1e-9)
		alongstep.TimeUpdater{}.Apply(track)
		Expect(track.Sim().Time()).To(BeNumerically("~", 1e-9, 1e-21))
	})

	It("skips errored tracks and zero speed", func() {
		track := f.init(0, "proton", 1, r3.Vec{}, r3.Vec{Z: 1})
		track.Sim().SetStepLength(1)
		track.Sim().SetStatus(core.StatusErrored)
		alongstep.TimeUpdater{}.Apply(track)
		Expect(track.Sim().Time()).To(BeZero())

		track.Sim().SetStatus(core.StatusAlive)
		track.Particle().SetEnergy(0)
		alongstep.TimeUpdater{}.Apply(track)
		Expect(track.Sim().Time()).To(BeZero())
	})
})

var _ = Describe("ElossApplier", func() {
	var (
		f     *fixture
		track core.TrackView
	)

	// onBoundary leaves a 10 MeV track on the plane at z = 0.
	onBoundary := func(particle string) core.TrackView {
		t := f.init(0, particle, 10, r3.Vec{Z: -1}, r3.Vec{Z: 1})
		prestep(t, 5, core.ActionRange)
		alongstep.PropagationApplier{MakePropagator: linear}.Apply(t)
		Expect(t.Geo().IsOnBoundary()).To(BeTrue())
		return t
	}

	BeforeEach(func() {
		f = newFixture([]float64{-10, 0, 10}, []string{"water", "water"}, 1, nil)
	})

	It("does not cut a track on a boundary", func() {
		track = onBoundary("e-")
		lowest := track.Physics().LowestEnergy()
		alongstep.ElossApplier[fixedLoss]{Calc: fixedLoss{loss: 10 - lowest/2}}.Apply(track)

		Expect(track.Sim().Status()).To(Equal(core.StatusAlive))
		Expect(track.Particle().Energy()).To(BeNumerically("~", lowest/2, 1e-12))
		Expect(track.Physics().EnergyDeposit()).To(BeNumerically("~", 10-lowest/2, 1e-12))
		Expect(track.Sim().PostStepAction()).To(Equal(core.ActionBoundary))
	})

	It("cuts a range-limited track on a boundary", func() {
		track = onBoundary("e-")
		track.Sim().SetPostStepAction(core.ActionRange)
		lowest := track.Physics().LowestEnergy()
		alongstep.ElossApplier[fixedLoss]{Calc: fixedLoss{loss: 10 - lowest/2}}.Apply(track)

		Expect(track.Sim().Status()).To(Equal(core.StatusKilled))
		Expect(track.Particle().IsStopped()).To(BeTrue())
		Expect(track.Physics().EnergyDeposit()).To(Equal(10.0))
	})

	It("cuts a track below the lowest energy inside a volume", func() {
		track = f.init(0, "e-", 10, r3.Vec{Z: -5}, r3.Vec{Z: 1})
		prestep(track, 1, core.ActionPropagationLimit)
		lowest := track.Physics().LowestEnergy()
		alongstep.ElossApplier[fixedLoss]{Calc: fixedLoss{loss: 10 - lowest/2}}.Apply(track)

		Expect(track.Sim().Status()).To(Equal(core.StatusKilled))
		Expect(track.Sim().PostStepAction()).To(Equal(core.ActionRange))
		Expect(track.Physics().EnergyDeposit()).To(Equal(10.0))
	})

	It("forces an at-rest interaction for stopped positrons", func() {
		track = f.init(0, "e+", 10, r3.Vec{Z: -5}, r3.Vec{Z: 1})
		prestep(track, 1, core.ActionRange)
		alongstep.ElossApplier[fixedLoss]{Calc: fixedLoss{loss: 10}}.Apply(track)

		Expect(track.Sim().Status()).To(Equal(core.StatusAlive))
		Expect(track.Sim().PostStepAction()).To(Equal(core.ActionDiscrete))
		Expect(track.Particle().IsStopped()).To(BeTrue())
	})

	It("never cuts before a discrete interaction", func() {
		track = f.init(0, "e-", 10, r3.Vec{Z: -5}, r3.Vec{Z: 1})
		prestep(track, 1, core.ActionDiscrete)
		lowest := track.Physics().LowestEnergy()
		alongstep.ElossApplier[fixedLoss]{Calc: fixedLoss{loss: 10 - lowest/2}}.Apply(track)

		Expect(track.Sim().Status()).To(Equal(core.StatusAlive))
		Expect(track.Particle().Energy()).To(BeNumerically("~", lowest/2, 1e-12))
	})

	It("ignores particles without energy loss tables", func() {
		track = f.init(0, "gamma", 10, r3.Vec{Z: -5}, r3.Vec{Z: 1})
		prestep(track, 1, core.ActionDiscrete)
		alongstep.ElossApplier[fixedLoss]{Calc: fixedLoss{loss: 1}}.Apply(track)
		Expect(track.Particle().Energy()).To(Equal(10.0))
	})

	It("loses the mean energy", func() {
		track = f.init(0, "proton", 100, r3.Vec{Z: -5}, r3.Vec{Z: 1})
		prestep(track, 0.01, core.ActionRange)
		want := phys.CalcMeanEnergyLoss(track.Particle(), track.Physics(), 0.01)
		alongstep.ElossApplier[alongstep.MeanELoss]{}.Apply(track)

		Expect(want).To(BeNumerically(">", 0))
		Expect(track.Physics().EnergyDeposit()).To(Equal(want))
		Expect(track.Particle().Energy()).To(BeNumerically("~", 100-want, 1e-12))
	})

	It("samples a bounded fluctuating loss", func() {
		fp, err := fluctParams(f)
		Expect(err).NotTo(HaveOccurred())
		applier := alongstep.ElossApplier[alongstep.FluctELoss]{Calc: alongstep.FluctELoss{Params: fp}}
		for i := range 200 {
			track = f.init(0, "e-", 5, r3.Vec{Z: -5}, r3.Vec{Z: 1})
			f.state.Rng.Reset(0, uint64(i))
			prestep(track, 0.05, core.ActionRange)
			applier.Apply(track)
			Expect(track.Physics().EnergyDeposit()).To(BeNumerically(">=", 0))
			Expect(track.Physics().EnergyDeposit()).To(BeNumerically("<=", 5))
		}
	})
})

var _ = Describe("TrackUpdater", func() {
	var f *fixture

	BeforeEach(func() {
		f = newFixture([]float64{-10, 10}, []string{"water"}, 1, nil)
	})

	It("consumes the interaction mean free path", func() {
		track := f.init(0, "e-", 10, r3.Vec{}, r3.Vec{Z: 1})
		track.Physics().SetInteractionMFP(2)
		prestep(track, 0.5, core.ActionRange)
		xs := track.Physics().MacroXS()
		Expect(xs).To(BeNumerically(">", 0))

		alongstep.TrackUpdater{}.Apply(track)
		Expect(track.Sim().NumSteps()).To(Equal(1))
		Expect(track.Physics().InteractionMFP()).To(BeNumerically("~", 2-0.5*xs, 1e-12))
	})

	It("leaves the mean free path for discrete interactions", func() {
		track := f.init(0, "e-", 10, r3.Vec{}, r3.Vec{Z: 1})
		track.Physics().SetInteractionMFP(2)
		prestep(track, 0.5, core.ActionDiscrete)

		alongstep.TrackUpdater{}.Apply(track)
		Expect(track.Physics().InteractionMFP()).To(Equal(2.0))
	})

	It("flags runaway tracks", func() {
		track := f.init(0, "e-", 10, r3.Vec{}, r3.Vec{Z: 1})
		for range track.Sim().MaxSteps() - 1 {
			prestep(track, 1e-3, core.ActionRange)
			alongstep.TrackUpdater{}.Apply(track)
		}
		Expect(track.Sim().Status()).To(Equal(core.StatusAlive))

		prestep(track, 1e-3, core.ActionRange)
		alongstep.TrackUpdater{}.Apply(track)
		Expect(track.Sim().Status()).To(Equal(core.StatusErrored))
		Expect(track.Sim().PostStepAction()).To(Equal(core.ActionTrackingCut))
	})

	It("does not flag a track already being cut", func() {
		track := f.init(0, "e-", 10, r3.Vec{}, r3.Vec{Z: 1})
		for range track.Sim().MaxSteps() {
			prestep(track, 1e-3, core.ActionTrackingCut)
			alongstep.TrackUpdater{}.Apply(track)
		}
		Expect(track.Sim().Status()).To(Equal(core.StatusAlive))
	})

	It("does not count an errored step", func() {
		track := f.init(0, "e-", 10, r3.Vec{}, r3.Vec{Z: 1})
		track.Physics().SetInteractionMFP(2)
		prestep(track, 0.5, core.ActionRange)
		track.ApplyErrored()

		alongstep.TrackUpdater{}.Apply(track)
		Expect(track.Sim().NumSteps()).To(BeZero())
		Expect(track.Physics().InteractionMFP()).To(Equal(2.0))
	})
})
