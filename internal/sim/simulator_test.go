package sim_test

import (
	"context"
	"errors"
	"io"
	"log/slog"

	"github.com/san-kum/magtrack/internal/alongstep"
	"github.com/san-kum/magtrack/internal/core"
	"github.com/san-kum/magtrack/internal/field"
	"github.com/san-kum/magtrack/internal/fluct"
	"github.com/san-kum/magtrack/internal/msc"
	"github.com/san-kum/magtrack/internal/ode"
	"github.com/san-kum/magtrack/internal/phys"
	"github.com/san-kum/magtrack/internal/sim"
	"gonum.org/v1/gonum/spatial/r3"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

func buildParams(planes []float64, layers []string, maxSteps int, looping map[string]core.LoopingThreshold) *core.Params {
	p, err := core.BuildParams(core.ParamsInput{
		Planes:   planes,
		Layers:   layers,
		Physics:  phys.DefaultOptions(),
		MaxSteps: maxSteps,
		Looping:  looping,
	})
	Expect(err).NotTo(HaveOccurred())
	return p
}

func uniformAction(params *core.Params, bz float64) *alongstep.Action {
	model, err := msc.NewHighland(msc.DefaultHighlandParams())
	Expect(err).NotTo(HaveOccurred())
	fp, err := fluct.NewParams(params.Physics.Materials(), fluct.DefaultOptions())
	Expect(err).NotTo(HaveOccurred())
	action, err := alongstep.NewUniformMsc(field.NewUniformZ(bz), ode.DriverOptions{},
		alongstep.Options{Msc: model, Fluct: fp, Workers: 2, MinChunk: 4})
	Expect(err).NotTo(HaveOccurred())
	return action
}

func beam(params *core.Params, particle string, energy float64, n int, pos r3.Vec) []core.Primary {
	pid, err := params.Particles.Find(particle)
	Expect(err).NotTo(HaveOccurred())
	out := make([]core.Primary, n)
	for i := range out {
		out[i] = core.Primary{TrackID: uint64(i), Particle: pid, Energy: energy, Pos: pos, Dir: r3.Vec{Z: 1}}
	}
	return out
}

func quiet() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type stepCounter struct {
	events  int
	byTrack map[uint64]int
}

func (c *stepCounter) OnStep(ev sim.StepEvent) {
	c.events++
	c.byTrack[ev.TrackID]++
}

type failingAction struct{}

func (failingAction) Label() string { return "failing" }
func (failingAction) Step(context.Context, *core.Params, *core.State) error {
	return errors.New("boom")
}

var _ = Describe("Simulator", func() {
	var cfg sim.Config

	BeforeEach(func() {
		cfg = sim.DefaultConfig()
		cfg.Seed = 7
	})

	Describe("validation", func() {
		var params *core.Params

		BeforeEach(func() {
			params = buildParams([]float64{-1, 1}, []string{"water"}, 0, nil)
		})

		It("requires an along-step action", func() {
			_, err := sim.New(params, nil).Run(context.Background(), beam(params, "e-", 1, 1, r3.Vec{}), cfg)
			Expect(err).To(MatchError(sim.ErrNoAction))
		})

		It("requires primaries", func() {
			_, err := sim.New(params, alongstep.NewNeutral(alongstep.Options{})).Run(context.Background(), nil, cfg)
			Expect(err).To(MatchError(sim.ErrNoPrimaries))
		})

		DescribeTable("rejects bad input",
			func(mutate func(*sim.Config, []core.Primary)) {
				primaries := beam(params, "gamma", 1, 2, r3.Vec{})
				mutate(&cfg, primaries)
				_, err := sim.New(params, alongstep.NewNeutral(alongstep.Options{})).Run(context.Background(), primaries, cfg)
				Expect(errors.Is(err, sim.ErrInvalidConfig)).To(BeTrue())
			},
			Entry("negative iterations", func(c *sim.Config, _ []core.Primary) { c.MaxIterations = -1 }),
			Entry("zero max step", func(c *sim.Config, _ []core.Primary) { c.MaxStep = 0 }),
			Entry("zero energy", func(_ *sim.Config, p []core.Primary) { p[1].Energy = 0 }),
			Entry("unnormalized direction", func(_ *sim.Config, p []core.Primary) { p[0].Dir = r3.Vec{Z: 2} }),
			Entry("unknown particle", func(_ *sim.Config, p []core.Primary) { p[0].Particle = 99 }),
		)
	})

	It("carries a neutral beam out of the world unchanged", func() {
		params := buildParams([]float64{-5, 0, 5}, []string{"water", "lead"}, 0, nil)
		s := sim.New(params, alongstep.NewNeutral(alongstep.Options{}))
		s.SetLogger(quiet())

		res, err := s.Run(context.Background(), beam(params, "gamma", 10, 32, r3.Vec{Z: -4}), cfg)
		Expect(err).NotTo(HaveOccurred())
		Expect(res.Label).To(Equal("along-step-neutral"))
		for _, t := range res.Tracks {
			Expect(t.Status).To(Equal(core.StatusKilled))
			Expect(t.Escaped).To(BeTrue())
			Expect(t.Energy).To(Equal(10.0))
			Expect(t.Deposit).To(BeZero())
			Expect(t.Pos.Z).To(BeNumerically("~", 5, 1e-12))
		}
		Expect(res.TotalDeposit()).To(BeZero())
	})

	It("deposits the full energy of electrons that stop", func() {
		params := buildParams([]float64{-100, 100}, []string{"water"}, 0, nil)
		s := sim.New(params, uniformAction(params, 1))
		s.SetLogger(quiet())

		res, err := s.Run(context.Background(), beam(params, "e-", 5, 24, r3.Vec{}), cfg)
		Expect(err).NotTo(HaveOccurred())
		Expect(res.Errors).To(BeEmpty())
		for _, t := range res.Tracks {
			Expect(t.Status).To(Equal(core.StatusKilled))
			Expect(t.Escaped).To(BeFalse())
			Expect(t.Energy).To(BeZero())
			Expect(t.Deposit).To(BeNumerically("~", 5, 1e-9))
			Expect(t.Time).To(BeNumerically(">", 0))
		}
		Expect(res.TotalDeposit()).To(BeNumerically("~", 24*5, 1e-7))
	})

	It("annihilates positrons at rest", func() {
		params := buildParams([]float64{-50, 50}, []string{"lead"}, 0, nil)
		s := sim.New(params, uniformAction(params, 1))
		s.SetLogger(quiet())

		res, err := s.Run(context.Background(), beam(params, "e+", 1, 8, r3.Vec{}), cfg)
		Expect(err).NotTo(HaveOccurred())
		for _, t := range res.Tracks {
			Expect(t.Status).To(Equal(core.StatusKilled))
			Expect(t.LastAction).To(Equal(core.ActionDiscrete))
			Expect(t.Deposit).To(BeNumerically("~", 1, 1e-9))
		}
	})

	It("cuts looping electrons and deposits their energy", func() {
		looping := map[string]core.LoopingThreshold{
			"e-": {MaxSubthresholdSteps: 3, MaxSteps: 10, ThresholdEnergy: 10},
		}
		params := buildParams([]float64{-100, 100}, []string{"galactic"}, 0, looping)
		s := sim.New(params, uniformAction(params, 4))
		s.SetLogger(quiet())

		res, err := s.Run(context.Background(), beam(params, "e-", 1, 4, r3.Vec{}), cfg)
		Expect(err).NotTo(HaveOccurred())
		for _, t := range res.Tracks {
			Expect(t.Status).To(Equal(core.StatusKilled))
			Expect(t.LastAction).To(Equal(core.ActionTrackingCut))
			Expect(t.Deposit).To(BeNumerically("~", 1, 1e-9))
			Expect(t.NumSteps).To(BeNumerically("<=", 4))
		}
	})

	It("reports tracks exceeding the step limit", func() {
		params := buildParams([]float64{-100, 100}, []string{"water"}, 2, nil)
		s := sim.New(params, uniformAction(params, 1))
		s.SetLogger(quiet())

		res, err := s.Run(context.Background(), beam(params, "e-", 10, 3, r3.Vec{}), cfg)
		Expect(err).NotTo(HaveOccurred())
		Expect(res.Errors).To(HaveLen(3))
		for _, e := range res.Errors {
			var te *sim.TrackError
			Expect(errors.As(e, &te)).To(BeTrue())
			Expect(te.NumSteps).To(Equal(2))
			Expect(errors.Is(e, sim.ErrTrackErrored)).To(BeTrue())
		}
		Expect(res.Counts()[core.StatusErrored]).To(Equal(3))
		Expect(res.TotalDeposit()).To(BeNumerically("~", 30, 1e-9))
	})

	It("notifies observers once per track step", func() {
		params := buildParams([]float64{-100, 100}, []string{"water"}, 0, nil)
		s := sim.New(params, uniformAction(params, 1))
		s.SetLogger(quiet())
		counter := &stepCounter{byTrack: make(map[uint64]int)}
		s.AddObserver(counter)

		cfg.RecordSteps = true
		res, err := s.Run(context.Background(), beam(params, "proton", 20, 6, r3.Vec{}), cfg)
		Expect(err).NotTo(HaveOccurred())
		Expect(res.Steps).To(HaveLen(counter.events))
		for _, t := range res.Tracks {
			Expect(counter.byTrack[t.TrackID]).To(Equal(t.NumSteps))
		}
	})

	It("is reproducible for a fixed seed", func() {
		params := buildParams([]float64{-100, 0, 100}, []string{"water", "iron"}, 0, nil)
		action := uniformAction(params, 2)
		primaries := beam(params, "e-", 3, 16, r3.Vec{Z: -1})

		run := func() *sim.Result {
			s := sim.New(params, action)
			s.SetLogger(quiet())
			res, err := s.Run(context.Background(), primaries, cfg)
			Expect(err).NotTo(HaveOccurred())
			return res
		}
		Expect(run().Tracks).To(Equal(run().Tracks))
	})

	It("returns the partial result when canceled", func() {
		params := buildParams([]float64{-100, 100}, []string{"water"}, 0, nil)
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		res, err := sim.New(params, uniformAction(params, 1)).Run(ctx, beam(params, "e-", 5, 4, r3.Vec{}), cfg)
		Expect(err).To(MatchError(context.Canceled))
		Expect(res).NotTo(BeNil())
		Expect(res.Iterations).To(BeZero())
	})

	It("propagates along-step failures", func() {
		params := buildParams([]float64{-1, 1}, []string{"water"}, 0, nil)
		_, err := sim.New(params, failingAction{}).Run(context.Background(), beam(params, "e-", 1, 1, r3.Vec{}), cfg)
		Expect(err).To(MatchError(ContainSubstring("failing: boom")))
	})

	It("stops when the callback declines", func() {
		params := buildParams([]float64{-100, 100}, []string{"water"}, 0, nil)
		s := sim.New(params, uniformAction(params, 1))
		res, err := s.RunWithCallback(context.Background(), beam(params, "e-", 5, 4, r3.Vec{}), cfg,
			func(b *sim.Batch) bool { return b.Iteration() < 2 })
		Expect(err).NotTo(HaveOccurred())
		Expect(res.Iterations).To(Equal(2))
	})

	It("stops at the iteration limit", func() {
		params := buildParams([]float64{-100, 100}, []string{"water"}, 0, nil)
		s := sim.New(params, uniformAction(params, 1))
		s.SetLogger(quiet())
		cfg.MaxIterations = 3
		res, err := s.Run(context.Background(), beam(params, "e-", 50, 2, r3.Vec{}), cfg)
		Expect(err).NotTo(HaveOccurred())
		Expect(res.Iterations).To(Equal(3))
		Expect(res.Counts()[core.StatusAlive]).To(Equal(2))
	})
})

var _ = Describe("Ensemble", func() {
	It("runs one result per seed", func() {
		params := buildParams([]float64{-100, 100}, []string{"water"}, 0, nil)
		action := uniformAction(params, 1)
		factory := func() *sim.Simulator {
			s := sim.New(params, action)
			s.SetLogger(quiet())
			return s
		}
		results, err := sim.NewEnsemble(factory, 3, 10).Run(context.Background(),
			beam(params, "e-", 2, 8, r3.Vec{}), sim.DefaultConfig())
		Expect(err).NotTo(HaveOccurred())
		Expect(results).To(HaveLen(3))
		for _, r := range results {
			Expect(r.TotalDeposit()).To(BeNumerically("~", 16, 1e-8))
		}

		stats := sim.Summarize(results)
		Expect(stats.Runs).To(Equal(3))
		Expect(stats.MeanDeposit).To(BeNumerically("~", 16, 1e-8))
		Expect(stats.StdDeposit).To(BeNumerically("<", 1e-8))
		Expect(stats.Errored).To(BeZero())
	})

	It("reports every failed repetition", func() {
		params := buildParams([]float64{-100, 100}, []string{"water"}, 0, nil)
		factory := func() *sim.Simulator {
			s := sim.New(params, failingAction{})
			s.SetLogger(quiet())
			return s
		}
		ens := sim.NewEnsemble(factory, 2, 5)
		ens.Parallel = 1
		_, err := ens.Run(context.Background(), beam(params, "e-", 2, 1, r3.Vec{}), sim.DefaultConfig())
		Expect(err).To(HaveOccurred())
		Expect(err.Error()).To(ContainSubstring("run 0 (seed 5)"))
		Expect(err.Error()).To(ContainSubstring("run 1 (seed 6)"))
	})
})
