// Package rng provides per-track random streams and the distributions
// sampled along a step.
//
// Every track slot owns an independent PCG stream keyed by the run seed and
// the slot, so results do not depend on how slots are divided among
// workers.
package rng

import (
	"math/rand/v2"

	"gonum.org/v1/gonum/stat/distuv"
)

// Engine is a source of uniformly distributed 64-bit values.
type Engine = rand.Source

type States struct {
	seed    uint64
	streams []rand.PCG
}

func NewStates(size int, seed uint64) *States {
	s := &States{seed: seed, streams: make([]rand.PCG, size)}
	for i := range s.streams {
		s.Reset(i, uint64(i))
	}
	return s
}

func (s *States) Size() int { return len(s.streams) }

// Reset restarts the stream of a slot, typically with a track counter so
// that a slot reused by a new track starts a fresh sequence.
func (s *States) Reset(slot int, stream uint64) {
	s.streams[slot].Seed(s.seed, stream)
}

func (s *States) Engine(slot int) Engine { return &s.streams[slot] }

// Canonical returns a uniform value in [0, 1).
func Canonical(e Engine) float64 {
	return float64(e.Uint64()>>11) * 0x1p-53
}

// Uniform returns a value in [lo, hi).
func Uniform(e Engine, lo, hi float64) float64 {
	return lo + (hi-lo)*Canonical(e)
}

func Normal(e Engine, mean, stddev float64) float64 {
	return distuv.Normal{Mu: mean, Sigma: stddev, Src: e}.Rand()
}

// Gamma samples with the given shape k and scale theta (mean k*theta).
func Gamma(e Engine, shape, scale float64) float64 {
	return distuv.Gamma{Alpha: shape, Beta: 1 / scale, Src: e}.Rand()
}

func Poisson(e Engine, mean float64) int {
	return int(distuv.Poisson{Lambda: mean, Src: e}.Rand())
}

// Exponential samples with unit mean: the number of mean free paths to the
// next interaction.
func Exponential(e Engine) float64 {
	return distuv.Exponential{Rate: 1, Src: e}.Rand()
}
