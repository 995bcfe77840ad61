package field

import (
	"fmt"
	"math"

	"github.com/san-kum/magtrack/internal/grid"
	"github.com/san-kum/magtrack/internal/ode"
	"gonum.org/v1/gonum/spatial/r3"
)

// RZMapInput is an axisymmetric field tabulated on an (r, z) grid. FieldR
// and FieldZ are indexed [iz*nr + ir].
type RZMapInput struct {
	R      AxisGrid  `yaml:"r" json:"r"`
	Z      AxisGrid  `yaml:"z" json:"z"`
	FieldR []float64 `yaml:"field_r" json:"field_r"`
	FieldZ []float64 `yaml:"field_z" json:"field_z"`

	Driver ode.DriverOptions `yaml:"driver_options" json:"driver_options"`
}

type RZMapParams struct {
	gridR  []float64
	gridZ  []float64
	fieldR []float64
	fieldZ []float64
	index  grid.Hyperslab
	driver ode.DriverOptions
}

func NewRZMapParams(inp RZMapInput) (*RZMapParams, error) {
	r, z := inp.R.Nodes(), inp.Z.Nodes()
	if err := grid.ValidateAxis("r", r); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidMap, err)
	}
	if err := grid.ValidateAxis("z", z); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidMap, err)
	}
	if r[0] < 0 {
		return nil, fmt.Errorf("%w: r starts at %g, expected >= 0", ErrInvalidMap, r[0])
	}

	index := grid.NewHyperslab(len(z), len(r))
	for _, f := range []struct {
		name   string
		values []float64
	}{{"field_r", inp.FieldR}, {"field_z", inp.FieldZ}} {
		if len(f.values) != index.Size() {
			return nil, fmt.Errorf("%w: %s has %d values, expected %d (%d x %d)",
				ErrInvalidMap, f.name, len(f.values), index.Size(), len(z), len(r))
		}
	}
	driver, err := driverOptions(inp.Driver)
	if err != nil {
		return nil, err
	}

	return &RZMapParams{
		gridR:  r,
		gridZ:  z,
		fieldR: append([]float64(nil), inp.FieldR...),
		fieldZ: append([]float64(nil), inp.FieldZ...),
		index:  index,
		driver: driver,
	}, nil
}

func (p *RZMapParams) DriverOptions() ode.DriverOptions { return p.driver }

type RZMapField struct {
	params *RZMapParams
	r      grid.Nonuniform
	z      grid.Nonuniform
}

func NewRZMapField(p *RZMapParams) RZMapField {
	return RZMapField{params: p, r: grid.NewNonuniform(p.gridR), z: grid.NewNonuniform(p.gridZ)}
}

func (f RZMapField) Params() *RZMapParams { return f.params }

func (f RZMapField) Evaluate(pos r3.Vec) r3.Vec {
	r := math.Hypot(pos.X, pos.Y)
	if !inside(f.r, r) || !inside(f.z, pos.Z) {
		return r3.Vec{}
	}

	ir, iz := locate(f.r, r), locate(f.z, pos.Z)
	bilinear := func(values []float64) float64 {
		at := func(dz, dr int) float64 {
			return values[f.params.index.Index(iz.Index+dz, ir.Index+dr)]
		}
		lo := grid.Lerp(at(0, 0), at(0, 1), ir.Fraction)
		hi := grid.Lerp(at(1, 0), at(1, 1), ir.Fraction)
		return grid.Lerp(lo, hi, iz.Fraction)
	}

	bz := bilinear(f.params.fieldZ)
	if r == 0 {
		return r3.Vec{Z: bz}
	}
	br := bilinear(f.params.fieldR)
	return r3.Vec{X: br * pos.X / r, Y: br * pos.Y / r, Z: bz}
}
