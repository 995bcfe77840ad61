package ode

import (
	"errors"
	"fmt"

	"github.com/san-kum/magtrack/internal/units"
)

// ErrInvalidOptions is returned for driver options that cannot drive a
// propagation.
var ErrInvalidOptions = errors.New("ode: invalid driver options")

// DriverOptions are the tolerances for the chord and error control of a
// field propagation.
type DriverOptions struct {
	// Steps below this length are integrated without error control
	MinimumStep float64 `yaml:"minimum_step" json:"minimum_step"`
	// Maximum sagitta of a substep
	DeltaChord float64 `yaml:"delta_chord" json:"delta_chord"`
	// Accuracy of a boundary intersection
	DeltaIntersection float64 `yaml:"delta_intersection" json:"delta_intersection"`
	// Relative step below which accurate advance stops
	EpsilonStep float64 `yaml:"epsilon_step" json:"epsilon_step"`
	// Maximum relative truncation error
	EpsilonRelMax float64 `yaml:"epsilon_rel_max" json:"epsilon_rel_max"`
	// Scaled error below which an accepted step grows by the maximum increase
	Errcon  float64 `yaml:"errcon" json:"errcon"`
	PGrow   float64 `yaml:"pgrow" json:"pgrow"`
	PShrink float64 `yaml:"pshrink" json:"pshrink"`
	Safety  float64 `yaml:"safety" json:"safety"`

	MaxSteppingIncrease float64 `yaml:"max_stepping_increase" json:"max_stepping_increase"`
	MaxSteppingDecrease float64 `yaml:"max_stepping_decrease" json:"max_stepping_decrease"`

	// Iteration limit of the chord search and accurate advance
	MaxNSteps int `yaml:"max_nsteps" json:"max_nsteps"`
	// Substeps per propagation before a track is flagged as looping
	MaxSubsteps int `yaml:"max_substeps" json:"max_substeps"`

	InitialStepTol float64 `yaml:"initial_step_tol" json:"initial_step_tol"`
	DChordTol      float64 `yaml:"dchord_tol" json:"dchord_tol"`
	MinChordShrink float64 `yaml:"min_chord_shrink" json:"min_chord_shrink"`
}

func DefaultDriverOptions() DriverOptions {
	deltaChord := 0.25 * units.Millimeter
	return DriverOptions{
		MinimumStep:         1e-5 * units.Millimeter,
		DeltaChord:          deltaChord,
		DeltaIntersection:   1e-4 * units.Millimeter,
		EpsilonStep:         1e-5,
		EpsilonRelMax:       1e-3,
		Errcon:              1e-4,
		PGrow:               -0.20,
		PShrink:             -0.25,
		Safety:              0.9,
		MaxSteppingIncrease: 5,
		MaxSteppingDecrease: 0.1,
		MaxNSteps:           100,
		MaxSubsteps:         10,
		InitialStepTol:      1e-6,
		DChordTol:           1e-5 * deltaChord,
		MinChordShrink:      0.5,
	}
}

// Validate checks every option against its allowed range.
func (o DriverOptions) Validate() error {
	checks := []struct {
		ok   bool
		name string
		val  any
		want string
	}{
		{o.MinimumStep > 0, "minimum_step", o.MinimumStep, "> 0"},
		{o.DeltaChord > 0, "delta_chord", o.DeltaChord, "> 0"},
		{o.DeltaIntersection > o.MinimumStep, "delta_intersection", o.DeltaIntersection, "> minimum_step"},
		{o.EpsilonStep > 0 && o.EpsilonStep < 1, "epsilon_step", o.EpsilonStep, "in (0, 1)"},
		{o.EpsilonRelMax > 0, "epsilon_rel_max", o.EpsilonRelMax, "> 0"},
		{o.Errcon > 0, "errcon", o.Errcon, "> 0"},
		{o.PGrow < 0, "pgrow", o.PGrow, "< 0"},
		{o.PShrink < 0, "pshrink", o.PShrink, "< 0"},
		{o.Safety > 0 && o.Safety < 1, "safety", o.Safety, "in (0, 1)"},
		{o.MaxSteppingIncrease > 1, "max_stepping_increase", o.MaxSteppingIncrease, "> 1"},
		{o.MaxSteppingDecrease > 0 && o.MaxSteppingDecrease < 1, "max_stepping_decrease", o.MaxSteppingDecrease, "in (0, 1)"},
		{o.MaxNSteps > 0, "max_nsteps", o.MaxNSteps, "> 0"},
		{o.MaxSubsteps > 0, "max_substeps", o.MaxSubsteps, "> 0"},
		{o.InitialStepTol > 0, "initial_step_tol", o.InitialStepTol, "> 0"},
		{o.DChordTol > 0, "dchord_tol", o.DChordTol, "> 0"},
		{o.MinChordShrink > 0 && o.MinChordShrink < 1, "min_chord_shrink", o.MinChordShrink, "in (0, 1)"},
	}
	for _, c := range checks {
		if !c.ok {
			return fmt.Errorf("%w: %s=%v, must be %s", ErrInvalidOptions, c.name, c.val, c.want)
		}
	}
	return nil
}
