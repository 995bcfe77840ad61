package ode

import (
	"github.com/san-kum/magtrack/internal/units"
	"gonum.org/v1/gonum/spatial/r3"
)

// Evaluator returns the magnetic field in tesla at a position in cm.
type Evaluator interface {
	Evaluate(pos r3.Vec) r3.Vec
}

// Equation is the right-hand side of the equation of motion for one particle
// charge in a field.
type Equation[F Evaluator] struct {
	field F
	coeff float64
}

// NewEquation binds a field to a particle charge in units of e.
func NewEquation[F Evaluator](field F, charge float64) Equation[F] {
	return Equation[F]{field: field, coeff: charge * units.LorentzCoefficient}
}

func (e Equation[F]) Field() F { return e.field }

// Derive returns d(state)/ds.
func (e Equation[F]) Derive(s OdeState) OdeState {
	b := e.field.Evaluate(s.Pos)
	momInv := 1 / r3.Norm(s.Mom)
	return OdeState{
		Pos: r3.Scale(momInv, s.Mom),
		Mom: r3.Scale(e.coeff*momInv, r3.Cross(s.Mom, b)),
	}
}
