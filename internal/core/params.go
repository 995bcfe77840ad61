// Package core holds the per-track simulation state and the views that the
// stepping loop reads and writes.
package core

import (
	"fmt"

	"github.com/san-kum/magtrack/internal/geo"
	"github.com/san-kum/magtrack/internal/phys"
	"github.com/san-kum/magtrack/internal/units"
)

// LoopingThreshold decides when a looping track is killed. Below
// ThresholdEnergy a track may loop for MaxSubthresholdSteps consecutive
// steps, above it for MaxSteps.
type LoopingThreshold struct {
	MaxSubthresholdSteps int     `yaml:"max_subthreshold_steps" json:"max_subthreshold_steps"`
	MaxSteps             int     `yaml:"max_steps" json:"max_steps"`
	ThresholdEnergy      float64 `yaml:"threshold_energy" json:"threshold_energy"`
}

func DefaultLoopingThreshold() LoopingThreshold {
	return LoopingThreshold{
		MaxSubthresholdSteps: 10,
		MaxSteps:             100,
		ThresholdEnergy:      250 * units.MeV,
	}
}

type SimParams struct {
	// Steps per track before it is flagged as errored; zero is unlimited
	MaxSteps int
	Looping  map[phys.ParticleID]LoopingThreshold
}

func (p SimParams) LoopingThreshold(pid phys.ParticleID) LoopingThreshold {
	if t, ok := p.Looping[pid]; ok {
		return t
	}
	return DefaultLoopingThreshold()
}

// Params is the shared, immutable problem definition.
type Params struct {
	Geometry *geo.SlabParams
	// Material of each geometry volume
	VolumeMaterials []phys.MaterialID
	Particles       *phys.ParticleParams
	Physics         *phys.PhysicsParams
	Sim             SimParams
}

func (p *Params) Validate() error {
	if p.Geometry == nil || p.Particles == nil || p.Physics == nil {
		return fmt.Errorf("core: incomplete params")
	}
	if len(p.VolumeMaterials) != p.Geometry.NumVolumes() {
		return fmt.Errorf("core: %d volume materials for %d volumes",
			len(p.VolumeMaterials), p.Geometry.NumVolumes())
	}
	for i, m := range p.VolumeMaterials {
		if int(m) < 0 || int(m) >= p.Physics.Materials().Size() {
			return fmt.Errorf("core: volume %d has invalid material %d", i, m)
		}
	}
	if p.Sim.MaxSteps < 0 {
		return fmt.Errorf("core: max steps %d, expected >= 0", p.Sim.MaxSteps)
	}
	return nil
}

// ParamsInput describes a slab problem by name.
type ParamsInput struct {
	// Planes bounding the layers, strictly increasing in z
	Planes []float64
	// Material name of each layer
	Layers []string

	// Defaults to the standard particles and materials
	Particles []phys.ParticleRecord
	Materials []phys.MaterialRecord
	Physics   phys.Options

	MaxSteps int
	// Looping thresholds by particle name
	Looping map[string]LoopingThreshold
}

func BuildParams(inp ParamsInput) (*Params, error) {
	if inp.Particles == nil {
		inp.Particles = phys.StandardParticles()
	}
	if inp.Materials == nil {
		inp.Materials = phys.StandardMaterials()
	}

	particles, err := phys.NewParticleParams(inp.Particles)
	if err != nil {
		return nil, err
	}
	materials, err := phys.NewMaterialParams(inp.Materials)
	if err != nil {
		return nil, err
	}
	physics, err := phys.BuildPhysics(particles, materials, inp.Physics)
	if err != nil {
		return nil, err
	}
	geometry, err := geo.NewSlabParams(inp.Planes, inp.Layers)
	if err != nil {
		return nil, err
	}

	p := &Params{
		Geometry:  geometry,
		Particles: particles,
		Physics:   physics,
		Sim:       SimParams{MaxSteps: inp.MaxSteps, Looping: make(map[phys.ParticleID]LoopingThreshold)},
	}
	for _, name := range inp.Layers {
		id, err := materials.Find(name)
		if err != nil {
			return nil, err
		}
		p.VolumeMaterials = append(p.VolumeMaterials, id)
	}
	for name, t := range inp.Looping {
		id, err := particles.Find(name)
		if err != nil {
			return nil, err
		}
		p.Sim.Looping[id] = t
	}
	return p, p.Validate()
}
