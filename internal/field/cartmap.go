package field

import (
	"fmt"

	"github.com/san-kum/magtrack/internal/grid"
	"github.com/san-kum/magtrack/internal/ode"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/spatial/r3"
)

// AxisGrid describes one map axis either by explicit nodes or by Num evenly
// spaced nodes from Min to Max.
type AxisGrid struct {
	Min    float64   `yaml:"min,omitempty" json:"min,omitempty"`
	Max    float64   `yaml:"max,omitempty" json:"max,omitempty"`
	Num    int       `yaml:"num,omitempty" json:"num,omitempty"`
	Values []float64 `yaml:"values,omitempty" json:"values,omitempty"`
}

func UniformAxis(min, max float64, num int) AxisGrid {
	return AxisGrid{Min: min, Max: max, Num: num}
}

func ExplicitAxis(values ...float64) AxisGrid {
	return AxisGrid{Values: values}
}

// Nodes returns the interpolation nodes of the axis.
func (a AxisGrid) Nodes() []float64 {
	if len(a.Values) > 0 {
		return append([]float64(nil), a.Values...)
	}
	if a.Num < 2 {
		nodes := make([]float64, max(a.Num, 0))
		for i := range nodes {
			nodes[i] = a.Min
		}
		return nodes
	}
	return floats.Span(make([]float64, a.Num), a.Min, a.Max)
}

// CartMapInput is a field tabulated on an (x, y, z) grid. Field holds
// (Bx, By, Bz) triplets with z varying fastest, then y, then x.
type CartMapInput struct {
	X     AxisGrid  `yaml:"x" json:"x"`
	Y     AxisGrid  `yaml:"y" json:"y"`
	Z     AxisGrid  `yaml:"z" json:"z"`
	Field []float64 `yaml:"field" json:"field"`

	Driver ode.DriverOptions `yaml:"driver_options" json:"driver_options"`
}

type CartMapParams struct {
	gridX  []float64
	gridY  []float64
	gridZ  []float64
	values []float64
	index  grid.Hyperslab
	driver ode.DriverOptions
}

func NewCartMapParams(inp CartMapInput) (*CartMapParams, error) {
	x, y, z := inp.X.Nodes(), inp.Y.Nodes(), inp.Z.Nodes()
	for _, ax := range []struct {
		name   string
		values []float64
	}{{"x", x}, {"y", y}, {"z", z}} {
		if err := grid.ValidateAxis(ax.name, ax.values); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrInvalidMap, err)
		}
	}

	index := grid.NewHyperslab(len(x), len(y), len(z), 3)
	if len(inp.Field) != index.Size() {
		return nil, fmt.Errorf("%w: field has %d values, expected %d (3 x %d x %d x %d)",
			ErrInvalidMap, len(inp.Field), index.Size(), len(x), len(y), len(z))
	}
	driver, err := driverOptions(inp.Driver)
	if err != nil {
		return nil, err
	}

	return &CartMapParams{
		gridX:  x,
		gridY:  y,
		gridZ:  z,
		values: append([]float64(nil), inp.Field...),
		index:  index,
		driver: driver,
	}, nil
}

func (p *CartMapParams) DriverOptions() ode.DriverOptions { return p.driver }

func (p *CartMapParams) Bounds() (lo, hi r3.Vec) {
	lo = r3.Vec{X: p.gridX[0], Y: p.gridY[0], Z: p.gridZ[0]}
	hi = r3.Vec{X: p.gridX[len(p.gridX)-1], Y: p.gridY[len(p.gridY)-1], Z: p.gridZ[len(p.gridZ)-1]}
	return lo, hi
}

type CartMapField struct {
	params *CartMapParams
	x      grid.Nonuniform
	y      grid.Nonuniform
	z      grid.Nonuniform
}

func NewCartMapField(p *CartMapParams) CartMapField {
	return CartMapField{
		params: p,
		x:      grid.NewNonuniform(p.gridX),
		y:      grid.NewNonuniform(p.gridY),
		z:      grid.NewNonuniform(p.gridZ),
	}
}

func (f CartMapField) Params() *CartMapParams { return f.params }

func (f CartMapField) Evaluate(pos r3.Vec) r3.Vec {
	if !inside(f.x, pos.X) || !inside(f.y, pos.Y) || !inside(f.z, pos.Z) {
		return r3.Vec{}
	}
	b := trilinear(f.params.values, f.params.index,
		locate(f.x, pos.X), locate(f.y, pos.Y), locate(f.z, pos.Z))
	return r3.Vec{X: b[0], Y: b[1], Z: b[2]}
}
