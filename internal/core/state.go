package core

import (
	"github.com/san-kum/magtrack/internal/geo"
	"github.com/san-kum/magtrack/internal/phys"
	"github.com/san-kum/magtrack/internal/rng"
)

// MscStep records the multiple scattering step transformation.
type MscStep struct {
	// Physical path length requested before the geometric transformation
	TruePath float64
	// Geometric path length; zero when scattering does not apply
	GeomPath float64
	// Slope of the mean free path over the step, zero for small steps
	Alpha float64
	// Lateral displacement is allowed (the track is not on a boundary)
	IsDisplaced bool
}

type SimStates struct {
	trackID    []uint64
	status     []TrackStatus
	stepLength []float64
	action     []ActionID
	time       []float64
	numSteps   []int
	numLooping []int
}

func newSimStates(size int) *SimStates {
	return &SimStates{
		trackID:    make([]uint64, size),
		status:     make([]TrackStatus, size),
		stepLength: make([]float64, size),
		action:     make([]ActionID, size),
		time:       make([]float64, size),
		numSteps:   make([]int, size),
		numLooping: make([]int, size),
	}
}

// State is the struct-of-arrays storage for a batch of track slots.
type State struct {
	Sim      *SimStates
	Geo      *geo.SlabStates
	Particle *phys.ParticleStates
	Physics  *phys.PhysicsStates
	Msc      []MscStep
	Rng      *rng.States
}

func NewState(size int, seed uint64) *State {
	return &State{
		Sim:      newSimStates(size),
		Geo:      geo.NewSlabStates(size),
		Particle: phys.NewParticleStates(size),
		Physics:  phys.NewPhysicsStates(size),
		Msc:      make([]MscStep, size),
		Rng:      rng.NewStates(size, seed),
	}
}

func (s *State) Size() int { return len(s.Msc) }
