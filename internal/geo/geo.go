// Package geo defines the geometry navigation contract used by propagation
// and a planar slab geometry that implements it.
package geo

import (
	"errors"

	"gonum.org/v1/gonum/spatial/r3"
)

// ErrInvalidGeometry is returned for geometry input that cannot be built.
var ErrInvalidGeometry = errors.New("geo: invalid geometry")

// VolumeID identifies a geometry volume. Outside is the exterior of the
// world.
type VolumeID int

const Outside VolumeID = -1

// Propagation is the outcome of moving a track along a step.
type Propagation struct {
	// Distance actually traveled
	Distance float64
	// The track stopped on a boundary
	Boundary bool
	// The track made too little progress in the allotted substeps
	Looping bool
}

// TrackView navigates one track through a geometry.
//
// FindNextStep computes the straight-line distance to the next boundary
// along the current direction, up to max. The result is cached until the
// track moves or changes direction; MoveToBoundary and MoveInternalDist
// consume it.
type TrackView interface {
	Pos() r3.Vec
	Dir() r3.Vec
	SetDir(dir r3.Vec)
	Volume() VolumeID
	IsOnBoundary() bool
	IsOutside() bool

	FindNextStep(max float64) Propagation
	FindSafety() float64

	MoveToBoundary()
	MoveInternalDist(dist float64)
	MoveInternal(pos r3.Vec)
	CrossBoundary()
}
