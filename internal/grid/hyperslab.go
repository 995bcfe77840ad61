package grid

import "github.com/san-kum/magtrack/internal/assert"

// Hyperslab maps multi-dimensional indices onto a flat row-major array: the
// last dimension varies fastest.
type Hyperslab struct {
	dims []int
}

func NewHyperslab(dims ...int) Hyperslab {
	d := make([]int, len(dims))
	copy(d, dims)
	return Hyperslab{dims: d}
}

// Size is the total number of flattened elements.
func (h Hyperslab) Size() int {
	n := 1
	for _, d := range h.dims {
		n *= d
	}
	return n
}

func (h Hyperslab) Rank() int { return len(h.dims) }

func (h Hyperslab) Index(coords ...int) int {
	assert.Expect(len(coords) == len(h.dims), "got %d coords for rank %d", len(coords), len(h.dims))
	idx := 0
	for i, c := range coords {
		assert.Expect(c >= 0 && c < h.dims[i], "coord %d = %d out of [0, %d)", i, c, h.dims[i])
		idx = idx*h.dims[i] + c
	}
	return idx
}
