package ode

import (
	"math"

	"gonum.org/v1/gonum/spatial/r3"
)

const helixTolerance = 1e-10

// ZHelix steps analytically along the helix traced in a field parallel to z.
// It is exact only when the field is uniform and has no transverse part.
type ZHelix[F Evaluator] struct {
	eq Equation[F]
}

func NewZHelix[F Evaluator](eq Equation[F]) *ZHelix[F] {
	return &ZHelix[F]{eq: eq}
}

func (z *ZHelix[F]) Integrate(step float64, x OdeState) Integration {
	bz := z.eq.field.Evaluate(x.Pos).Z
	p := r3.Norm(x.Mom)
	// Rotation rate of the transverse direction per unit path length
	omega := -z.eq.coeff * bz / p

	tol := OdeState{
		Pos: r3.Vec{X: helixTolerance, Y: helixTolerance, Z: helixTolerance},
		Mom: r3.Vec{X: helixTolerance, Y: helixTolerance, Z: helixTolerance},
	}
	return Integration{
		Mid: moveHelix(0.5*step, omega, x),
		End: moveHelix(step, omega, x),
		Err: tol,
	}
}

func moveHelix(s, omega float64, x OdeState) OdeState {
	p := r3.Norm(x.Mom)
	u := r3.Scale(1/p, x.Mom)

	if omega == 0 {
		return OdeState{Pos: r3.Add(x.Pos, r3.Scale(s, u)), Mom: x.Mom}
	}

	phi := omega * s
	sin, cos := math.Sincos(phi)
	oneMinusCos := 1 - cos

	pos := r3.Vec{
		X: x.Pos.X + (sin*u.X-oneMinusCos*u.Y)/omega,
		Y: x.Pos.Y + (oneMinusCos*u.X+sin*u.Y)/omega,
		Z: x.Pos.Z + s*u.Z,
	}
	dir := r3.Vec{
		X: cos*u.X - sin*u.Y,
		Y: sin*u.X + cos*u.Y,
		Z: u.Z,
	}
	return OdeState{Pos: pos, Mom: r3.Scale(p, dir)}
}
