package sim

import (
	"context"

	"github.com/san-kum/magtrack/internal/core"
	"github.com/san-kum/magtrack/internal/geo"
	"gonum.org/v1/gonum/spatial/r3"
)

// AlongStep is the continuous part of the step applied to a whole batch.
type AlongStep interface {
	Label() string
	Step(ctx context.Context, params *core.Params, state *core.State) error
}

// StepEvent is the outcome of one step of one track, after the post-step
// actions have run.
type StepEvent struct {
	Iteration  int
	Slot       int
	TrackID    uint64
	Particle   string
	Status     core.TrackStatus
	Action     core.ActionID
	StepLength float64
	Energy     float64
	// Energy deposited locally during the step
	Deposit float64
	Pos     r3.Vec
	Dir     r3.Vec
	Time    float64
	Volume  geo.VolumeID
}

type Metric interface {
	Name() string
	Observe(ev StepEvent)
	Value() float64
	Reset()
}

type Observer interface {
	OnStep(ev StepEvent)
}

type Config struct {
	// Step iterations over the batch; zero is unlimited
	MaxIterations int
	// Cap on a single step, so that neutral tracks parallel to the
	// planes stay finite
	MaxStep float64
	Seed    uint64
	// Keep every StepEvent in the result
	RecordSteps bool
}

func DefaultConfig() Config {
	return Config{
		MaxIterations: 10000,
		MaxStep:       1e4,
		Seed:          1,
	}
}

// TrackSummary is the final state of one primary.
type TrackSummary struct {
	TrackID    uint64           `json:"track_id"`
	Particle   string           `json:"particle"`
	Status     core.TrackStatus `json:"status"`
	LastAction core.ActionID    `json:"last_action"`
	NumSteps   int              `json:"num_steps"`
	// Kinetic energy at the start and the end of the run
	InitialEnergy float64 `json:"initial_energy"`
	Energy        float64 `json:"energy"`
	Deposit       float64 `json:"deposit"`
	Time          float64 `json:"time"`
	Pos           r3.Vec  `json:"pos"`
	// The track left the world
	Escaped bool `json:"escaped"`
}

type Result struct {
	Label      string
	Tracks     []TrackSummary
	Steps      []StepEvent
	Iterations int
	Metrics    map[string]float64
	// One TrackError per errored track
	Errors []error
}

// Counts tallies the final track statuses.
func (r *Result) Counts() map[core.TrackStatus]int {
	counts := make(map[core.TrackStatus]int)
	for _, t := range r.Tracks {
		counts[t.Status]++
	}
	return counts
}

// TotalDeposit sums the energy deposited by all tracks.
func (r *Result) TotalDeposit() float64 {
	var sum float64
	for _, t := range r.Tracks {
		sum += t.Deposit
	}
	return sum
}
