// Package field evaluates magnetic fields: uniform fields and tabulated maps
// on cylindrical (r, phi, z), Cartesian (x, y, z) and axisymmetric (r, z)
// grids.
//
// Map parameters are validated and built once, then shared read-only by any
// number of cheap sampler values. Every map returns exactly zero outside its
// tabulated region.
//
// Positions are in cm and fields in tesla.
package field

import (
	"errors"
	"fmt"

	"github.com/san-kum/magtrack/internal/grid"
	"github.com/san-kum/magtrack/internal/ode"
	"gonum.org/v1/gonum/spatial/r3"
)

// ErrInvalidMap is returned when field map input fails validation.
var ErrInvalidMap = errors.New("field: invalid field map")

// Field returns the magnetic field at a position.
type Field interface {
	Evaluate(pos r3.Vec) r3.Vec
}

// locate is FindInterp extended to the closed range: the last node maps to
// the end of the last cell.
func locate(g grid.Nonuniform, v float64) grid.Interp {
	if v >= g.Back() {
		return grid.Interp{Index: g.Size() - 2, Fraction: 1}
	}
	return grid.FindInterp(g, v)
}

func inside(g grid.Nonuniform, v float64) bool {
	return v >= g.Front() && v <= g.Back()
}

// trilinear blends the three components stored at the eight corners of a
// cell, nested along the first, second, then third axis.
func trilinear(values []float64, idx grid.Hyperslab, a, b, c grid.Interp) [3]float64 {
	wa, wb, wc := a.Fraction, b.Fraction, c.Fraction
	at := func(i, j, k, comp int) float64 {
		return values[idx.Index(a.Index+i, b.Index+j, c.Index+k, comp)]
	}

	var out [3]float64
	for comp := range out {
		v000 := at(0, 0, 0, comp)
		v001 := at(0, 0, 1, comp)
		v010 := at(0, 1, 0, comp)
		v011 := at(0, 1, 1, comp)
		v100 := at(1, 0, 0, comp)
		v101 := at(1, 0, 1, comp)
		v110 := at(1, 1, 0, comp)
		v111 := at(1, 1, 1, comp)

		out[comp] = (1-wa)*((1-wb)*((1-wc)*v000+wc*v001)+wb*((1-wc)*v010+wc*v011)) +
			wa*((1-wb)*((1-wc)*v100+wc*v101)+wb*((1-wc)*v110+wc*v111))
	}
	return out
}

// driverOptions validates the propagation options carried by a map input.
// Unset options take the defaults.
func driverOptions(opts ode.DriverOptions) (ode.DriverOptions, error) {
	if opts == (ode.DriverOptions{}) {
		return ode.DefaultDriverOptions(), nil
	}
	if err := opts.Validate(); err != nil {
		return opts, fmt.Errorf("%w: %w", ErrInvalidMap, err)
	}
	return opts, nil
}
