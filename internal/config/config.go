// Package config describes a tracking run in YAML: the field, the
// geometry, the physics options and the primaries.
package config

import (
	"errors"
	"fmt"
	"os"
	"slices"

	"github.com/san-kum/magtrack/internal/alongstep"
	"github.com/san-kum/magtrack/internal/core"
	"github.com/san-kum/magtrack/internal/field"
	"github.com/san-kum/magtrack/internal/fluct"
	"github.com/san-kum/magtrack/internal/msc"
	"github.com/san-kum/magtrack/internal/ode"
	"github.com/san-kum/magtrack/internal/phys"
	"github.com/san-kum/magtrack/internal/sim"
	"gonum.org/v1/gonum/spatial/r3"
	"gopkg.in/yaml.v3"
)

var ErrInvalidConfig = errors.New("config: invalid config")

const (
	DefaultMaxIterations = 10000
	DefaultMaxStep       = 1e4
	DefaultMinChunk      = 64
	DefaultSeed          = 12345
)

type Config struct {
	Field       FieldConfig       `yaml:"field"`
	Driver      ode.DriverOptions `yaml:"driver"`
	Msc         MscConfig         `yaml:"msc"`
	Fluctuation FluctConfig       `yaml:"fluctuation"`
	Physics     phys.Options      `yaml:"physics"`
	Sim         SimConfig         `yaml:"sim"`
	Geometry    GeometryConfig    `yaml:"geometry"`
	// Replaces the standard materials when set
	Materials []phys.MaterialRecord `yaml:"materials,omitempty"`
	Primaries []PrimaryConfig       `yaml:"primaries"`
	Seed      uint64                `yaml:"seed"`
}

// FieldConfig selects the along-step action. Maps are read from MapFile or
// tabulated from an analytic Solenoid.
type FieldConfig struct {
	Kind string `yaml:"kind"`
	// Uniform field in tesla
	Value    [3]float64      `yaml:"value"`
	MapFile  string          `yaml:"map_file,omitempty"`
	Solenoid *field.Solenoid `yaml:"solenoid,omitempty"`
	Grid     MapGrid         `yaml:"grid"`
}

// MapGrid is the node count of a generated map. Cartesian maps use Radial
// for both transverse axes.
type MapGrid struct {
	Radial    int `yaml:"radial"`
	Azimuthal int `yaml:"azimuthal"`
	Axial     int `yaml:"axial"`
}

type MscConfig struct {
	Enabled bool               `yaml:"enabled"`
	Params  msc.HighlandParams `yaml:",inline"`
}

type FluctConfig struct {
	Enabled bool          `yaml:"enabled"`
	Options fluct.Options `yaml:",inline"`
}

type SimConfig struct {
	MaxIterations int     `yaml:"max_iterations"`
	MaxSteps      int     `yaml:"max_steps"`
	MaxStep       float64 `yaml:"max_step"`
	Workers       int     `yaml:"workers"`
	MinChunk      int     `yaml:"min_chunk"`
	Integrator    string  `yaml:"integrator"`
	// Looping thresholds by particle name
	Looping map[string]core.LoopingThreshold `yaml:"looping,omitempty"`
}

// GeometryConfig is a stack of layers along z bounded by Planes.
type GeometryConfig struct {
	Planes []float64 `yaml:"planes"`
	Layers []string  `yaml:"layers"`
}

type PrimaryConfig struct {
	Particle string     `yaml:"particle"`
	Energy   float64    `yaml:"energy"`
	Count    int        `yaml:"count"`
	Pos      [3]float64 `yaml:"pos"`
	Dir      [3]float64 `yaml:"dir"`
	Time     float64    `yaml:"time"`
}

func DefaultConfig() *Config {
	return &Config{
		Field:       FieldConfig{Kind: "uniform", Value: [3]float64{0, 0, 1}},
		Msc:         MscConfig{Enabled: true, Params: msc.DefaultHighlandParams()},
		Fluctuation: FluctConfig{Enabled: true, Options: fluct.DefaultOptions()},
		Physics:     phys.DefaultOptions(),
		Sim: SimConfig{
			MaxIterations: DefaultMaxIterations,
			MaxStep:       DefaultMaxStep,
			MinChunk:      DefaultMinChunk,
			Integrator:    string(alongstep.IntegratorDormandPrince),
		},
		Geometry: GeometryConfig{
			Planes: []float64{-50, 0, 50},
			Layers: []string{"water", "silicon"},
		},
		Primaries: []PrimaryConfig{
			{Particle: "e-", Energy: 10, Count: 16, Pos: [3]float64{0, 0, -40}, Dir: [3]float64{0, 0, 1}},
		},
		Seed: DefaultSeed,
	}
}

func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrInvalidConfig, path, err)
	}
	return cfg, nil
}

func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

func (c *Config) Validate() error {
	fail := func(format string, args ...any) error {
		return fmt.Errorf("%w: %s", ErrInvalidConfig, fmt.Sprintf(format, args...))
	}

	kinds := alongstep.NewRegistry().Names()
	if !slices.Contains(kinds, c.Field.Kind) {
		return fail("field kind %q, expected one of %v", c.Field.Kind, kinds)
	}
	switch c.Field.Kind {
	case "cylmap", "cartmap", "rzmap":
		if (c.Field.MapFile == "") == (c.Field.Solenoid == nil) {
			return fail("%s field needs exactly one of map_file and solenoid", c.Field.Kind)
		}
		if c.Field.Solenoid != nil {
			g := c.Field.Grid
			if g.Radial < 2 || g.Axial < 2 || (c.Field.Kind == "cylmap" && g.Azimuthal < 2) {
				return fail("generated %s map grid %+v needs at least 2 nodes per axis", c.Field.Kind, g)
			}
			if s := c.Field.Solenoid; !(s.B0 != 0 && s.HalfLength > 0 && s.Radius > 0) {
				return fail("solenoid %+v needs nonzero b0 and positive extents", *s)
			}
		}
	}
	if !slices.Contains(alongstep.Integrators(), alongstep.Integrator(c.Sim.Integrator)) {
		return fail("integrator %q, expected one of %v", c.Sim.Integrator, alongstep.Integrators())
	}
	if c.Driver != (ode.DriverOptions{}) {
		if err := c.Driver.Validate(); err != nil {
			return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
		}
	}
	if c.Msc.Enabled {
		if err := c.Msc.Params.Validate(); err != nil {
			return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
		}
	}
	if c.Fluctuation.Enabled {
		if err := c.Fluctuation.Options.Validate(); err != nil {
			return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
		}
	}
	if err := c.Physics.Validate(); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}

	switch {
	case c.Sim.MaxIterations < 0:
		return fail("max_iterations %d, expected >= 0", c.Sim.MaxIterations)
	case c.Sim.MaxSteps < 0:
		return fail("max_steps %d, expected >= 0", c.Sim.MaxSteps)
	case !(c.Sim.MaxStep > 0):
		return fail("max_step %g, expected > 0", c.Sim.MaxStep)
	case c.Sim.Workers < 0:
		return fail("workers %d, expected >= 0", c.Sim.Workers)
	case len(c.Geometry.Layers) == 0 || len(c.Geometry.Planes) != len(c.Geometry.Layers)+1:
		return fail("%d planes for %d layers", len(c.Geometry.Planes), len(c.Geometry.Layers))
	case len(c.Primaries) == 0:
		return fail("no primaries")
	}
	for i, p := range c.Primaries {
		switch {
		case p.Particle == "":
			return fail("primary %d has no particle", i)
		case !(p.Energy > 0):
			return fail("primary %d energy %g, expected > 0", i, p.Energy)
		case p.Count < 1:
			return fail("primary %d count %d, expected >= 1", i, p.Count)
		case p.Dir == [3]float64{}:
			return fail("primary %d has no direction", i)
		}
	}
	return nil
}

// BuildParams assembles the shared problem definition.
func (c *Config) BuildParams() (*core.Params, error) {
	return core.BuildParams(core.ParamsInput{
		Planes:    c.Geometry.Planes,
		Layers:    c.Geometry.Layers,
		Materials: c.Materials,
		Physics:   c.Physics,
		MaxSteps:  c.Sim.MaxSteps,
		Looping:   c.Sim.Looping,
	})
}

// Sampler returns the magnetic field of the configuration, nil for a
// neutral run.
func (c *Config) Sampler() (field.Field, error) {
	src, err := c.fieldSource()
	if err != nil {
		return nil, err
	}
	switch c.Field.Kind {
	case "uniform":
		return src.Uniform, nil
	case "cylmap":
		return field.NewCylMapField(src.Cyl), nil
	case "cartmap":
		return field.NewCartMapField(src.Cart), nil
	case "rzmap":
		return field.NewRZMapField(src.RZ), nil
	}
	return nil, nil
}

func (c *Config) fieldSource() (alongstep.FieldSource, error) {
	f := c.Field
	src := alongstep.FieldSource{
		Uniform: field.Uniform{Value: r3.Vec{X: f.Value[0], Y: f.Value[1], Z: f.Value[2]}},
		Driver:  c.Driver,
	}
	var err error
	switch f.Kind {
	case "cylmap":
		var inp field.CylMapInput
		if f.Solenoid != nil {
			inp = f.Solenoid.CylMap(f.Grid.Radial, f.Grid.Azimuthal, f.Grid.Axial)
			inp.Driver = c.Driver
		} else if inp, err = field.LoadCylMapInput(f.MapFile); err != nil {
			return src, err
		}
		src.Cyl, err = field.NewCylMapParams(inp)
	case "cartmap":
		var inp field.CartMapInput
		if f.Solenoid != nil {
			inp = f.Solenoid.CartMap(f.Grid.Radial, f.Grid.Axial)
			inp.Driver = c.Driver
		} else if inp, err = field.LoadCartMapInput(f.MapFile); err != nil {
			return src, err
		}
		src.Cart, err = field.NewCartMapParams(inp)
	case "rzmap":
		var inp field.RZMapInput
		if f.Solenoid != nil {
			inp = f.Solenoid.RZMap(f.Grid.Radial, f.Grid.Axial)
			inp.Driver = c.Driver
		} else if inp, err = field.LoadRZMapInput(f.MapFile); err != nil {
			return src, err
		}
		src.RZ, err = field.NewRZMapParams(inp)
	}
	return src, err
}

// BuildAction constructs the along-step action for the field kind.
func (c *Config) BuildAction(params *core.Params) (*alongstep.Action, error) {
	src, err := c.fieldSource()
	if err != nil {
		return nil, err
	}
	opts := alongstep.Options{
		Integrator: alongstep.Integrator(c.Sim.Integrator),
		Workers:    c.Sim.Workers,
		MinChunk:   c.Sim.MinChunk,
	}
	if c.Msc.Enabled {
		if opts.Msc, err = msc.NewHighland(c.Msc.Params); err != nil {
			return nil, err
		}
	}
	if c.Fluctuation.Enabled {
		if opts.Fluct, err = fluct.NewParams(params.Physics.Materials(), c.Fluctuation.Options); err != nil {
			return nil, err
		}
	}
	return alongstep.NewRegistry().Build(c.Field.Kind, src, opts)
}

// BuildPrimaries expands the primary groups with consecutive track IDs.
func (c *Config) BuildPrimaries(params *core.Params) ([]core.Primary, error) {
	var out []core.Primary
	for _, p := range c.Primaries {
		pid, err := params.Particles.Find(p.Particle)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrInvalidConfig, err)
		}
		dir := r3.Unit(r3.Vec{X: p.Dir[0], Y: p.Dir[1], Z: p.Dir[2]})
		for range p.Count {
			out = append(out, core.Primary{
				TrackID:  uint64(len(out)),
				Particle: pid,
				Energy:   p.Energy,
				Pos:      r3.Vec{X: p.Pos[0], Y: p.Pos[1], Z: p.Pos[2]},
				Dir:      dir,
				Time:     p.Time,
			})
		}
	}
	return out, nil
}

func (c *Config) SimConfig() sim.Config {
	return sim.Config{
		MaxIterations: c.Sim.MaxIterations,
		MaxStep:       c.Sim.MaxStep,
		Seed:          c.Seed,
	}
}

// NumPrimaries counts the primaries after expansion.
func (c *Config) NumPrimaries() int {
	n := 0
	for _, p := range c.Primaries {
		n += p.Count
	}
	return n
}
