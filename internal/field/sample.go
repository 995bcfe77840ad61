package field

import "gonum.org/v1/gonum/spatial/r3"

// SampleLine evaluates f at n evenly spaced points from a to b inclusive.
func SampleLine(f Field, a, b r3.Vec, n int) (pos, values []r3.Vec) {
	if n < 2 {
		return []r3.Vec{a}, []r3.Vec{f.Evaluate(a)}
	}
	pos = make([]r3.Vec, n)
	values = make([]r3.Vec, n)
	delta := r3.Sub(b, a)
	for i := range pos {
		pos[i] = r3.Add(a, r3.Scale(float64(i)/float64(n-1), delta))
		values[i] = f.Evaluate(pos[i])
	}
	return pos, values
}
