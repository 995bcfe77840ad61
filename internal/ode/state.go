package ode

import (
	"math"

	"gonum.org/v1/gonum/spatial/r3"
)

// OdeState is a point on a trajectory: position in cm and momentum in MeV/c.
type OdeState struct {
	Pos r3.Vec
	Mom r3.Vec
}

// axpy returns y + a*x.
func axpy(a float64, x, y OdeState) OdeState {
	return OdeState{
		Pos: r3.Add(y.Pos, r3.Scale(a, x.Pos)),
		Mom: r3.Add(y.Mom, r3.Scale(a, x.Mom)),
	}
}

func sub(a, b OdeState) OdeState {
	return OdeState{Pos: r3.Sub(a.Pos, b.Pos), Mom: r3.Sub(a.Mom, b.Mom)}
}

func scale(a float64, s OdeState) OdeState {
	return OdeState{Pos: r3.Scale(a, s.Pos), Mom: r3.Scale(a, s.Mom)}
}

// Integration is the result of a single integrator step.
type Integration struct {
	Mid OdeState
	End OdeState
	Err OdeState
}

// Substep is a step actually taken and the state at its end.
type Substep struct {
	Length float64
	State  OdeState
}

// Chord is the straight segment between two points.
type Chord struct {
	Length float64
	Dir    r3.Vec
}

// MakeChord returns the segment from src to dst. The direction is zero when
// the points coincide.
func MakeChord(src, dst r3.Vec) Chord {
	d := r3.Sub(dst, src)
	length := r3.Norm(d)
	if length == 0 {
		return Chord{}
	}
	return Chord{Length: length, Dir: r3.Scale(1/length, d)}
}

// DistanceChord is the distance from the midpoint of a curved step to the
// chord joining its end points (the sagitta).
func DistanceChord(beg, mid, end r3.Vec) float64 {
	begMid := r3.Sub(mid, beg)
	begEnd := r3.Sub(end, beg)

	distSq := r3.Dot(begEnd, begEnd)
	midSq := r3.Dot(begMid, begMid)
	if distSq == 0 {
		return math.Sqrt(midSq)
	}
	proj := r3.Dot(begMid, begEnd)
	return math.Sqrt(math.Max(0, midSq-proj*proj/distSq))
}

// IsInterceptClose reports whether moving a distance along dir from pos lands
// within tol of target.
func IsInterceptClose(pos, dir r3.Vec, distance float64, target r3.Vec, tol float64) bool {
	d := r3.Sub(r3.Add(pos, r3.Scale(distance, dir)), target)
	return r3.Dot(d, d) < tol*tol
}

// RelErrSq is the squared relative truncation error: position error scaled by
// the step and momentum error scaled by the starting momentum.
func RelErrSq(errState OdeState, step float64, mom r3.Vec) float64 {
	errPos := r3.Dot(errState.Pos, errState.Pos) / (step * step)
	errMom := r3.Dot(errState.Mom, errState.Mom) / r3.Dot(mom, mom)
	return math.Max(errPos, errMom)
}
