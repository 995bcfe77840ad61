package metrics

import (
	"math"

	"github.com/san-kum/magtrack/internal/sim"
)

// StepLength is the mean physical step length in cm.
type StepLength struct {
	name    string
	sum     float64
	max     float64
	samples int
}

func NewStepLength() *StepLength {
	return &StepLength{
		name: "mean_step_length",
	}
}

func (s *StepLength) Name() string {
	return s.name
}

func (s *StepLength) Observe(ev sim.StepEvent) {
	s.sum += ev.StepLength
	s.max = math.Max(s.max, ev.StepLength)
	s.samples++
}

func (s *StepLength) Value() float64 {
	if s.samples == 0 {
		return 0
	}
	return s.sum / float64(s.samples)
}

func (s *StepLength) Max() float64 { return s.max }
func (s *StepLength) Count() int   { return s.samples }

func (s *StepLength) Reset() {
	s.sum = 0
	s.max = 0
	s.samples = 0
}
