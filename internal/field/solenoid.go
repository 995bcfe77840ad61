package field

import (
	"math"

	"github.com/san-kum/magtrack/internal/units"
	"gonum.org/v1/gonum/spatial/r3"
)

// Solenoid is an analytic finite solenoid: Bz = B0/(1 + (z/L)^8) with the
// first-order radial term Br = -r/2 dBz/dz that keeps the field
// divergence free near the axis. It generates the tabulated maps used by
// presets and tests.
type Solenoid struct {
	B0         float64 `yaml:"b0" json:"b0"`
	HalfLength float64 `yaml:"half_length" json:"half_length"`
	Radius     float64 `yaml:"radius" json:"radius"`
}

func (s Solenoid) components(r, z float64) (br, bz float64) {
	u := z / s.HalfLength
	u8 := math.Pow(u, 8)
	shape := 1 / (1 + u8)
	dshape := -8 * math.Pow(u, 7) / s.HalfLength * shape * shape
	return -0.5 * r * s.B0 * dshape, s.B0 * shape
}

func (s Solenoid) Evaluate(pos r3.Vec) r3.Vec {
	r := math.Hypot(pos.X, pos.Y)
	br, bz := s.components(r, pos.Z)
	if r == 0 {
		return r3.Vec{Z: bz}
	}
	return r3.Vec{X: br * pos.X / r, Y: br * pos.Y / r, Z: bz}
}

// zExtent is the tabulated half length along z.
func (s Solenoid) zExtent() float64 { return 2 * s.HalfLength }

func (s Solenoid) CylMap(nr, nphi, nz int) CylMapInput {
	inp := CylMapInput{
		GridR: UniformAxis(0, s.Radius, nr).Nodes(),
		GridZ: UniformAxis(-s.zExtent(), s.zExtent(), nz).Nodes(),
	}
	for _, t := range UniformAxis(0, 1, nphi).Nodes() {
		inp.GridPhi = append(inp.GridPhi, units.Turn(t))
	}
	inp.Field = make([]float64, 0, 3*nr*nphi*nz)
	for _, r := range inp.GridR {
		for range inp.GridPhi {
			for _, z := range inp.GridZ {
				br, bz := s.components(r, z)
				inp.Field = append(inp.Field, br, 0, bz)
			}
		}
	}
	return inp
}

func (s Solenoid) CartMap(nxy, nz int) CartMapInput {
	inp := CartMapInput{
		X: UniformAxis(-s.Radius, s.Radius, nxy),
		Y: UniformAxis(-s.Radius, s.Radius, nxy),
		Z: UniformAxis(-s.zExtent(), s.zExtent(), nz),
	}
	inp.Field = make([]float64, 0, 3*nxy*nxy*nz)
	for _, x := range inp.X.Nodes() {
		for _, y := range inp.Y.Nodes() {
			for _, z := range inp.Z.Nodes() {
				b := s.Evaluate(r3.Vec{X: x, Y: y, Z: z})
				inp.Field = append(inp.Field, b.X, b.Y, b.Z)
			}
		}
	}
	return inp
}

func (s Solenoid) RZMap(nr, nz int) RZMapInput {
	inp := RZMapInput{
		R: UniformAxis(0, s.Radius, nr),
		Z: UniformAxis(-s.zExtent(), s.zExtent(), nz),
	}
	for _, z := range inp.Z.Nodes() {
		for _, r := range inp.R.Nodes() {
			br, bz := s.components(r, z)
			inp.FieldR = append(inp.FieldR, br)
			inp.FieldZ = append(inp.FieldZ, bz)
		}
	}
	return inp
}
