package sim

import (
	"errors"
	"fmt"

	"gonum.org/v1/gonum/spatial/r3"
)

var (
	ErrNoAction      = errors.New("sim: no along-step action")
	ErrNoPrimaries   = errors.New("sim: no primaries")
	ErrInvalidConfig = errors.New("sim: invalid config")
	ErrTrackErrored  = errors.New("sim: track errored")
)

// TrackError reports a track that failed during a step. The rest of the
// batch is unaffected.
type TrackError struct {
	TrackID   uint64
	Slot      int
	Iteration int
	NumSteps  int
	Pos       r3.Vec
	Wrapped   error
}

func (e *TrackError) Error() string {
	return fmt.Sprintf("track %d (slot %d) at iteration %d, step %d, pos (%g, %g, %g): %v",
		e.TrackID, e.Slot, e.Iteration, e.NumSteps, e.Pos.X, e.Pos.Y, e.Pos.Z, e.Wrapped)
}

func (e *TrackError) Unwrap() error {
	return e.Wrapped
}
