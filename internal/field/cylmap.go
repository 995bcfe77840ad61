package field

import (
	"fmt"
	"math"

	"github.com/san-kum/magtrack/internal/grid"
	"github.com/san-kum/magtrack/internal/ode"
	"github.com/san-kum/magtrack/internal/units"
	"gonum.org/v1/gonum/spatial/r3"
)

// phiTolerance bounds how far the azimuthal grid ends may sit from 0 and 1
// turn before they are snapped.
const phiTolerance = 1e-10

// CylMapInput is a field tabulated on an (r, phi, z) grid. Field holds
// (Br, Bphi, Bz) triplets with z varying fastest, then phi, then r.
type CylMapInput struct {
	GridR   []float64    `yaml:"grid_r" json:"grid_r"`
	GridPhi []units.Turn `yaml:"grid_phi" json:"grid_phi"`
	GridZ   []float64    `yaml:"grid_z" json:"grid_z"`
	Field   []float64    `yaml:"field" json:"field"`

	Driver ode.DriverOptions `yaml:"driver_options" json:"driver_options"`
}

// CylMapParams owns a validated cylindrical map. It is never modified after
// construction and may be shared by any number of samplers.
type CylMapParams struct {
	gridR   []float64
	gridPhi []float64
	gridZ   []float64
	values  []float64
	index   grid.Hyperslab
	driver  ode.DriverOptions
}

func NewCylMapParams(inp CylMapInput) (*CylMapParams, error) {
	phi := make([]float64, len(inp.GridPhi))
	for i, t := range inp.GridPhi {
		phi[i] = float64(t)
	}

	for _, ax := range []struct {
		name   string
		values []float64
	}{{"grid_r", inp.GridR}, {"grid_phi", phi}, {"grid_z", inp.GridZ}} {
		if err := grid.ValidateAxis(ax.name, ax.values); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrInvalidMap, err)
		}
	}

	if inp.GridR[0] < 0 {
		return nil, fmt.Errorf("%w: grid_r starts at %g, expected >= 0", ErrInvalidMap, inp.GridR[0])
	}
	if front := phi[0]; math.Abs(front) > phiTolerance {
		return nil, fmt.Errorf("%w: grid_phi starts at %g turn, expected 0", ErrInvalidMap, front)
	}
	if back := phi[len(phi)-1]; math.Abs(back-1) > phiTolerance*math.Max(1, math.Abs(back)) {
		return nil, fmt.Errorf("%w: grid_phi ends at %g turn, expected 1", ErrInvalidMap, back)
	}

	index := grid.NewHyperslab(len(inp.GridR), len(phi), len(inp.GridZ), 3)
	if len(inp.Field) != index.Size() {
		return nil, fmt.Errorf("%w: field has %d values, expected %d (3 x %d x %d x %d)",
			ErrInvalidMap, len(inp.Field), index.Size(), len(inp.GridR), len(phi), len(inp.GridZ))
	}
	driver, err := driverOptions(inp.Driver)
	if err != nil {
		return nil, err
	}

	phi[0] = 0
	phi[len(phi)-1] = 1

	return &CylMapParams{
		gridR:   append([]float64(nil), inp.GridR...),
		gridPhi: phi,
		gridZ:   append([]float64(nil), inp.GridZ...),
		values:  append([]float64(nil), inp.Field...),
		index:   index,
		driver:  driver,
	}, nil
}

func (p *CylMapParams) DriverOptions() ode.DriverOptions { return p.driver }

// Bounds returns the (r, phi, z) corners of the tabulated region.
func (p *CylMapParams) Bounds() (lo, hi r3.Vec) {
	lo = r3.Vec{X: p.gridR[0], Y: 0, Z: p.gridZ[0]}
	hi = r3.Vec{X: p.gridR[len(p.gridR)-1], Y: 1, Z: p.gridZ[len(p.gridZ)-1]}
	return lo, hi
}

// CylMapField samples a CylMapParams.
type CylMapField struct {
	params *CylMapParams
	r      grid.Nonuniform
	phi    grid.Nonuniform
	z      grid.Nonuniform
}

func NewCylMapField(p *CylMapParams) CylMapField {
	return CylMapField{
		params: p,
		r:      grid.NewNonuniform(p.gridR),
		phi:    grid.NewNonuniform(p.gridPhi),
		z:      grid.NewNonuniform(p.gridZ),
	}
}

func (f CylMapField) Params() *CylMapParams { return f.params }

// Evaluate interpolates the cylindrical components at pos and rotates them
// into the Cartesian frame at the azimuth of pos.
func (f CylMapField) Evaluate(pos r3.Vec) r3.Vec {
	r := math.Hypot(pos.X, pos.Y)
	phi := units.Atan2Turn(pos.Y, pos.X).Wrap()

	if !inside(f.r, r) || !inside(f.phi, float64(phi)) || !inside(f.z, pos.Z) {
		return r3.Vec{}
	}

	b := trilinear(f.params.values, f.params.index,
		locate(f.r, r), locate(f.phi, float64(phi)), locate(f.z, pos.Z))

	sinphi, cosphi := units.SinCos(phi)
	return r3.Vec{
		X: b[0]*cosphi - b[1]*sinphi,
		Y: b[0]*sinphi + b[1]*cosphi,
		Z: b[2],
	}
}
