package units

import "math"

// Turn is an angle expressed as a fraction of a full revolution.
type Turn float64

// Radians converts to an angle in radians.
func (t Turn) Radians() float64 {
	return float64(t) * 2 * math.Pi
}

// Atan2Turn returns atan2(y, x) in turns, in [-0.5, 0.5].
func Atan2Turn(y, x float64) Turn {
	return Turn(math.Atan2(y, x) / (2 * math.Pi))
}

// SinCos returns sin and cos of a turn, exact at quarter turns.
func SinCos(t Turn) (sin, cos float64) {
	switch float64(t) {
	case 0:
		return 0, 1
	case 0.25:
		return 1, 0
	case 0.5, -0.5:
		return 0, -1
	case -0.25, 0.75:
		return -1, 0
	}
	return math.Sincos(t.Radians())
}

// Wrap maps a turn onto [0, 1).
func (t Turn) Wrap() Turn {
	v := float64(t)
	return Turn(v - math.Floor(v))
}
