package ode

// Integrator advances a state by a fixed path length.
type Integrator interface {
	Integrate(step float64, beg OdeState) Integration
}
