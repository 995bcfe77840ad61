package phys

import (
	"math"

	"github.com/san-kum/magtrack/internal/grid"
	"gonum.org/v1/gonum/floats"
)

// LogTable is a function of energy tabulated on nodes evenly spaced in
// log(E) and interpolated linearly in log(E). Energies beyond the table use
// the end values.
type LogTable struct {
	loge   grid.Uniform
	values []float64
}

func energyNodes(emin, emax float64, n int) []float64 {
	return floats.LogSpan(make([]float64, n), emin, emax)
}

func newLogTable(emin, emax float64, values []float64) LogTable {
	return LogTable{loge: grid.NewUniform(math.Log(emin), math.Log(emax), len(values)), values: values}
}

func (t LogTable) MinEnergy() float64 { return math.Exp(t.loge.Front()) }
func (t LogTable) MaxEnergy() float64 { return math.Exp(t.loge.Back()) }
func (t LogTable) Values() []float64  { return t.values }

func (t LogTable) Eval(e float64) float64 {
	le := math.Log(e)
	switch {
	case le <= t.loge.Front():
		return t.values[0]
	case le >= t.loge.Back():
		return t.values[len(t.values)-1]
	}
	i := grid.FindInterp(t.loge, le)
	return grid.Lerp(t.values[i.Index], t.values[i.Index+1], i.Fraction)
}

// RangeTable is the CSDA range R(E) with its inverse E(R).
type RangeTable struct {
	table    LogTable
	ranges   grid.Nonuniform
	energies []float64
	// dE/dx at the top of the table for extrapolation
	maxDedx float64
}

func newRangeTable(energies, ranges []float64, maxDedx float64) RangeTable {
	return RangeTable{
		table:    newLogTable(energies[0], energies[len(energies)-1], ranges),
		ranges:   grid.NewNonuniform(ranges),
		energies: energies,
		maxDedx:  maxDedx,
	}
}

// Range scales as sqrt(E) below the table and grows linearly above it.
func (t RangeTable) Range(e float64) float64 {
	emin, emax := t.table.MinEnergy(), t.table.MaxEnergy()
	switch {
	case e < emin:
		return t.ranges.Front() * math.Sqrt(e/emin)
	case e > emax:
		return t.ranges.Back() + (e-emax)/t.maxDedx
	}
	return t.table.Eval(e)
}

// Energy inverts Range.
func (t RangeTable) Energy(r float64) float64 {
	switch {
	case r <= 0:
		return 0
	case r < t.ranges.Front():
		q := r / t.ranges.Front()
		return t.energies[0] * q * q
	case r >= t.ranges.Back():
		return t.energies[len(t.energies)-1] + (r-t.ranges.Back())*t.maxDedx
	}
	i := grid.FindInterp(t.ranges, r)
	return grid.Lerp(t.energies[i.Index], t.energies[i.Index+1], i.Fraction)
}
