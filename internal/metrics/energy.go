// Package metrics aggregates step events into run-level figures.
package metrics

import (
	"github.com/san-kum/magtrack/internal/sim"
)

// EnergyDeposit sums the locally deposited energy in MeV, in total and per
// particle type.
type EnergyDeposit struct {
	name       string
	total      float64
	byParticle map[string]float64
}

func NewEnergyDeposit() *EnergyDeposit {
	return &EnergyDeposit{
		name:       "energy_deposit",
		byParticle: make(map[string]float64),
	}
}

func (e *EnergyDeposit) Name() string { return e.name }

func (e *EnergyDeposit) Observe(ev sim.StepEvent) {
	if ev.Deposit == 0 {
		return
	}
	e.total += ev.Deposit
	e.byParticle[ev.Particle] += ev.Deposit
}

func (e *EnergyDeposit) Value() float64 { return e.total }

func (e *EnergyDeposit) ByParticle(name string) float64 { return e.byParticle[name] }

func (e *EnergyDeposit) Reset() {
	e.total = 0
	clear(e.byParticle)
}
