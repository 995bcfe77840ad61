// Package grid provides one-dimensional interpolation grids and the
// flattened index math shared by the tabulated field maps.
package grid

import (
	"errors"
	"fmt"
	"math"
	"sort"

	"github.com/san-kum/magtrack/internal/assert"
	"gonum.org/v1/gonum/floats"
)

// ErrInvalidAxis is returned for axes that cannot be interpolated on.
var ErrInvalidAxis = errors.New("grid: invalid axis")

// Grid is a sorted sequence of interpolation nodes.
type Grid interface {
	Size() int
	At(i int) float64
	Front() float64
	Back() float64
	// Find returns the largest i such that At(i) <= v.
	Find(v float64) int
}

// Nonuniform is a view of a strictly increasing sequence of nodes.
type Nonuniform struct {
	values []float64
}

func NewNonuniform(values []float64) Nonuniform {
	assert.Expect(len(values) >= 2, "grid needs at least two nodes, got %d", len(values))
	return Nonuniform{values: values}
}

func (g Nonuniform) Size() int         { return len(g.values) }
func (g Nonuniform) At(i int) float64  { return g.values[i] }
func (g Nonuniform) Front() float64    { return g.values[0] }
func (g Nonuniform) Back() float64     { return g.values[len(g.values)-1] }
func (g Nonuniform) Values() []float64 { return g.values }

func (g Nonuniform) Find(v float64) int {
	i := sort.Search(len(g.values), func(i int) bool { return g.values[i] > v })
	return i - 1
}

// Uniform is an evenly spaced grid described by its first node, spacing and
// node count.
type Uniform struct {
	front float64
	delta float64
	size  int
}

func NewUniform(front, back float64, size int) Uniform {
	assert.Expect(size >= 2 && back > front, "bad uniform grid [%g, %g] x %d", front, back, size)
	return Uniform{front: front, delta: (back - front) / float64(size-1), size: size}
}

func (g Uniform) Size() int        { return g.size }
func (g Uniform) At(i int) float64 { return g.front + float64(i)*g.delta }
func (g Uniform) Front() float64   { return g.front }
func (g Uniform) Back() float64    { return g.At(g.size - 1) }
func (g Uniform) Delta() float64   { return g.delta }

func (g Uniform) Find(v float64) int {
	i := int(math.Floor((v - g.front) / g.delta))
	// Rounding can put a value near a node into the neighboring cell.
	if i > 0 && v < g.At(i) {
		i--
	} else if i+1 < g.size && v >= g.At(i+1) {
		i++
	}
	return i
}

// ValidateAxis checks that values can serve as interpolation nodes.
func ValidateAxis(name string, values []float64) error {
	if len(values) < 2 {
		return fmt.Errorf("%w: %s needs at least 2 nodes, got %d", ErrInvalidAxis, name, len(values))
	}
	if floats.HasNaN(values) {
		return fmt.Errorf("%w: %s contains NaN", ErrInvalidAxis, name)
	}
	for i := 1; i < len(values); i++ {
		if !(values[i] > values[i-1]) {
			return fmt.Errorf("%w: %s is not strictly increasing at index %d (%g <= %g)",
				ErrInvalidAxis, name, i, values[i], values[i-1])
		}
	}
	if math.IsInf(values[0], 0) || math.IsInf(values[len(values)-1], 0) {
		return fmt.Errorf("%w: %s has infinite bounds", ErrInvalidAxis, name)
	}
	return nil
}
