package field

import "gonum.org/v1/gonum/spatial/r3"

// Uniform is a constant field.
type Uniform struct {
	Value r3.Vec
}

func NewUniformZ(bz float64) Uniform {
	return Uniform{Value: r3.Vec{Z: bz}}
}

func (u Uniform) Evaluate(r3.Vec) r3.Vec { return u.Value }

// IsAlongZ reports whether the field has no transverse component.
func (u Uniform) IsAlongZ() bool {
	return u.Value.X == 0 && u.Value.Y == 0
}
