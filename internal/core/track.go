package core

import (
	"github.com/san-kum/magtrack/internal/assert"
	"github.com/san-kum/magtrack/internal/geo"
	"github.com/san-kum/magtrack/internal/phys"
	"github.com/san-kum/magtrack/internal/rng"
	"gonum.org/v1/gonum/spatial/r3"
)

// Primary is a track to start.
type Primary struct {
	TrackID  uint64
	Particle phys.ParticleID
	Energy   float64
	Pos      r3.Vec
	Dir      r3.Vec
	Time     float64
}

// TrackView is the view of one track slot across all state components.
type TrackView struct {
	params *Params
	state  *State
	slot   int
}

func NewTrackView(p *Params, s *State, slot int) TrackView {
	return TrackView{params: p, state: s, slot: slot}
}

func (t TrackView) Slot() int       { return t.slot }
func (t TrackView) Params() *Params { return t.params }

func (t TrackView) Sim() SimTrackView {
	return SimTrackView{params: &t.params.Sim, states: t.state.Sim, slot: t.slot}
}

func (t TrackView) Geo() geo.SlabTrackView {
	return geo.NewSlabTrackView(t.params.Geometry, t.state.Geo, t.slot)
}

func (t TrackView) Particle() phys.ParticleTrackView {
	return phys.NewParticleTrackView(t.params.Particles, t.state.Particle, t.slot)
}

func (t TrackView) Physics() phys.PhysicsTrackView {
	pid := t.Particle().ParticleID()
	return phys.NewPhysicsTrackView(t.params.Physics, t.state.Physics, pid, t.slot)
}

func (t TrackView) MscStep() *MscStep { return &t.state.Msc[t.slot] }

func (t TrackView) Rng() rng.Engine { return t.state.Rng.Engine(t.slot) }

// Init starts a primary in this slot.
func (t TrackView) Init(p Primary) {
	t.state.Rng.Reset(t.slot, p.TrackID)
	t.Sim().init(p.TrackID, p.Time)
	t.Particle().Init(p.Particle, p.Energy)
	t.Geo().Init(p.Pos, p.Dir)
	t.Physics().Reset()
	*t.MscStep() = MscStep{}
	if !t.UpdateMaterial() {
		t.Sim().SetStatus(StatusKilled)
	}
}

// UpdateMaterial sets the physics material from the current volume. It
// returns false when the track is outside the world.
func (t TrackView) UpdateMaterial() bool {
	g := t.Geo()
	if g.IsOutside() {
		return false
	}
	t.Physics().SetMaterial(t.params.VolumeMaterials[g.Volume()])
	return true
}

// ApplyErrored flags a numerical failure. The track is cut at the end of
// the step and the rest of the batch continues.
func (t TrackView) ApplyErrored() {
	sim := t.Sim()
	sim.SetStatus(StatusErrored)
	sim.SetPostStepAction(ActionTrackingCut)
}

// SimTrackView is the bookkeeping of one slot.
type SimTrackView struct {
	params *SimParams
	states *SimStates
	slot   int
}

func (v SimTrackView) init(id uint64, time float64) {
	s, i := v.states, v.slot
	s.trackID[i] = id
	s.status[i] = StatusAlive
	s.stepLength[i] = 0
	s.action[i] = ActionNone
	s.time[i] = time
	s.numSteps[i] = 0
	s.numLooping[i] = 0
}

func (v SimTrackView) TrackID() uint64              { return v.states.trackID[v.slot] }
func (v SimTrackView) Status() TrackStatus          { return v.states.status[v.slot] }
func (v SimTrackView) SetStatus(s TrackStatus)      { v.states.status[v.slot] = s }
func (v SimTrackView) StepLength() float64          { return v.states.stepLength[v.slot] }
func (v SimTrackView) PostStepAction() ActionID     { return v.states.action[v.slot] }
func (v SimTrackView) SetPostStepAction(a ActionID) { v.states.action[v.slot] = a }
func (v SimTrackView) Time() float64                { return v.states.time[v.slot] }
func (v SimTrackView) NumSteps() int                { return v.states.numSteps[v.slot] }
func (v SimTrackView) NumLoopingSteps() int         { return v.states.numLooping[v.slot] }
func (v SimTrackView) MaxSteps() int                { return v.params.MaxSteps }

func (v SimTrackView) SetStepLength(s float64) {
	assert.Expect(s >= 0, "negative step length %g", s)
	v.states.stepLength[v.slot] = s
}

// Step sets a new step length together with the action that limits it.
func (v SimTrackView) Step(s float64, a ActionID) {
	v.SetStepLength(s)
	v.SetPostStepAction(a)
}

func (v SimTrackView) AddTime(dt float64) {
	assert.Expect(dt >= 0, "negative time step %g", dt)
	v.states.time[v.slot] += dt
}

func (v SimTrackView) IncrementNumSteps() { v.states.numSteps[v.slot]++ }

// UpdateLooping counts consecutive looping steps.
func (v SimTrackView) UpdateLooping(looping bool) {
	if looping {
		v.states.numLooping[v.slot]++
	} else {
		v.states.numLooping[v.slot] = 0
	}
}

// IsLooping reports whether the track has looped for too many consecutive
// steps at its energy.
func (v SimTrackView) IsLooping(pid phys.ParticleID, energy float64) bool {
	t := v.params.LoopingThreshold(pid)
	if energy < t.ThresholdEnergy {
		return v.NumLoopingSteps() >= t.MaxSubthresholdSteps
	}
	return v.NumLoopingSteps() >= t.MaxSteps
}
