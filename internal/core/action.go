package core

import (
	"fmt"

	"github.com/san-kum/magtrack/internal/phys"
)

// ActionID is the action that ends a step.
type ActionID int

const (
	ActionNone ActionID = iota
	ActionBoundary
	ActionPropagationLimit
	ActionTrackingCut
	ActionRange
	ActionDiscrete
	ActionMscRange
	ActionFixedStep
	numActions
)

var actionLabels = [...]string{
	ActionNone:             "none",
	ActionBoundary:         "geo-boundary",
	ActionPropagationLimit: "geo-propagation-limit",
	ActionTrackingCut:      "tracking-cut",
	ActionRange:            "eloss-range",
	ActionDiscrete:         "physics-discrete-select",
	ActionMscRange:         "msc-range",
	ActionFixedStep:        "physics-fixed-step",
}

func (a ActionID) String() string {
	if a < 0 || a >= numActions {
		return fmt.Sprintf("action(%d)", int(a))
	}
	return actionLabels[a]
}

// Actions lists every action in order.
func Actions() []ActionID {
	ids := make([]ActionID, numActions)
	for i := range ids {
		ids[i] = ActionID(i)
	}
	return ids
}

// ActionFromLimiter maps a physics step limiter onto its action.
func ActionFromLimiter(l phys.Limiter) ActionID {
	switch l {
	case phys.LimitDiscrete:
		return ActionDiscrete
	case phys.LimitRange:
		return ActionRange
	case phys.LimitFixedStep:
		return ActionFixedStep
	}
	return ActionNone
}

type TrackStatus int

const (
	StatusInactive TrackStatus = iota
	StatusAlive
	StatusKilled
	StatusErrored
)

func (s TrackStatus) String() string {
	switch s {
	case StatusInactive:
		return "inactive"
	case StatusAlive:
		return "alive"
	case StatusKilled:
		return "killed"
	case StatusErrored:
		return "errored"
	}
	return fmt.Sprintf("status(%d)", int(s))
}

func (a ActionID) MarshalText() ([]byte, error) { return []byte(a.String()), nil }

func (a *ActionID) UnmarshalText(text []byte) error {
	for _, id := range Actions() {
		if id.String() == string(text) {
			*a = id
			return nil
		}
	}
	return fmt.Errorf("core: unknown action %q", text)
}

func (s TrackStatus) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

func (s *TrackStatus) UnmarshalText(text []byte) error {
	for _, st := range []TrackStatus{StatusInactive, StatusAlive, StatusKilled, StatusErrored} {
		if st.String() == string(text) {
			*s = st
			return nil
		}
	}
	return fmt.Errorf("core: unknown track status %q", text)
}
