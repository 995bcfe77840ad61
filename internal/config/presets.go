package config

import (
	"sort"

	"github.com/san-kum/magtrack/internal/core"
	"github.com/san-kum/magtrack/internal/field"
)

var presets = map[string]func() *Config{
	"uniform-solenoid": func() *Config {
		c := DefaultConfig()
		c.Field = FieldConfig{Kind: "uniform", Value: [3]float64{0, 0, 2}}
		c.Geometry = GeometryConfig{
			Planes: []float64{-100, -10, 10, 100},
			Layers: []string{"air", "silicon", "air"},
		}
		c.Primaries = []PrimaryConfig{
			{Particle: "e-", Energy: 50, Count: 32, Pos: [3]float64{0, 0, -90}, Dir: [3]float64{0.2, 0, 1}},
			{Particle: "mu+", Energy: 1000, Count: 16, Pos: [3]float64{0, 0, -90}, Dir: [3]float64{0, 0.1, 1}},
		}
		return c
	},
	"cylmap-solenoid": func() *Config {
		c := DefaultConfig()
		c.Field = FieldConfig{
			Kind:     "cylmap",
			Solenoid: &field.Solenoid{B0: 4, HalfLength: 50, Radius: 40},
			Grid:     MapGrid{Radial: 21, Azimuthal: 9, Axial: 81},
		}
		c.Geometry = GeometryConfig{
			Planes: []float64{-90, -5, 5, 90},
			Layers: []string{"air", "iron", "air"},
		}
		c.Primaries = []PrimaryConfig{
			{Particle: "mu-", Energy: 2000, Count: 32, Pos: [3]float64{1, 0, -80}, Dir: [3]float64{0.1, 0.1, 1}},
		}
		return c
	},
	"rzmap-solenoid": func() *Config {
		c := DefaultConfig()
		c.Field = FieldConfig{
			Kind:     "rzmap",
			Solenoid: &field.Solenoid{B0: 2, HalfLength: 50, Radius: 40},
			Grid:     MapGrid{Radial: 41, Axial: 201},
		}
		c.Geometry = GeometryConfig{
			Planes: []float64{-90, 90},
			Layers: []string{"air"},
		}
		c.Primaries = []PrimaryConfig{
			{Particle: "proton", Energy: 500, Count: 16, Pos: [3]float64{0, 0, -80}, Dir: [3]float64{0.3, 0, 1}},
		}
		return c
	},
	"looping-electron": func() *Config {
		c := DefaultConfig()
		c.Field = FieldConfig{Kind: "uniform", Value: [3]float64{0, 0, 4}}
		c.Geometry = GeometryConfig{
			Planes: []float64{-100, 100},
			Layers: []string{"galactic"},
		}
		c.Sim.Looping = map[string]core.LoopingThreshold{
			"e-": {MaxSubthresholdSteps: 3, MaxSteps: 10, ThresholdEnergy: 10},
		}
		c.Primaries = []PrimaryConfig{
			{Particle: "e-", Energy: 1, Count: 8, Dir: [3]float64{1, 0, 0}},
		}
		return c
	},
	"lead-slab": func() *Config {
		c := DefaultConfig()
		c.Field = FieldConfig{
			Kind:     "cartmap",
			Solenoid: &field.Solenoid{B0: 1, HalfLength: 20, Radius: 20},
			Grid:     MapGrid{Radial: 21, Axial: 41},
		}
		c.Geometry = GeometryConfig{
			Planes: []float64{-30, -1, 1, 30},
			Layers: []string{"air", "lead", "air"},
		}
		c.Primaries = []PrimaryConfig{
			{Particle: "e-", Energy: 20, Count: 32, Pos: [3]float64{0, 0, -20}, Dir: [3]float64{0, 0, 1}},
			{Particle: "e+", Energy: 20, Count: 32, Pos: [3]float64{0, 0, -20}, Dir: [3]float64{0, 0, 1}},
			{Particle: "proton", Energy: 200, Count: 16, Pos: [3]float64{0, 0, -20}, Dir: [3]float64{0, 0, 1}},
		}
		return c
	},
	"neutral-beam": func() *Config {
		c := DefaultConfig()
		c.Field = FieldConfig{Kind: "neutral"}
		c.Msc.Enabled = false
		c.Fluctuation.Enabled = false
		c.Geometry = GeometryConfig{
			Planes: []float64{-20, 0, 5, 20},
			Layers: []string{"water", "lead", "water"},
		}
		c.Primaries = []PrimaryConfig{
			{Particle: "gamma", Energy: 10, Count: 64, Pos: [3]float64{0, 0, -19}, Dir: [3]float64{0, 0, 1}},
		}
		return c
	},
}

// GetPreset returns a fresh copy of a named configuration, nil if unknown.
func GetPreset(name string) *Config {
	fn, ok := presets[name]
	if !ok {
		return nil
	}
	return fn()
}

func ListPresets() []string {
	names := make([]string, 0, len(presets))
	for name := range presets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
