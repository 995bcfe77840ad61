package grid

import "github.com/san-kum/magtrack/internal/assert"

// Interp locates a value inside a grid cell.
type Interp struct {
	Index    int
	Fraction float64
}

// FindInterp returns the cell containing v and the fractional distance
// across it, in [0, 1). The caller must ensure Front() <= v < Back().
func FindInterp[G Grid](g G, v float64) Interp {
	assert.Expect(v >= g.Front() && v < g.Back(),
		"value %g outside grid [%g, %g)", v, g.Front(), g.Back())

	i := g.Find(v)
	lo, hi := g.At(i), g.At(i+1)
	frac := (v - lo) / (hi - lo)
	assert.Ensure(frac >= 0 && frac < 1, "fraction %g out of range", frac)
	return Interp{Index: i, Fraction: frac}
}

// Lerp blends two values by a fraction.
func Lerp(lo, hi, frac float64) float64 {
	return (1-frac)*lo + frac*hi
}
