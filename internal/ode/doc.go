// Package ode integrates the equation of motion of a charged particle in a
// magnetic field.
//
// The independent variable is the path length s, the state is the pair
// (position, momentum) and the equation is
//
//	dx/ds = p/|p|
//	dp/ds = (q k / |p|) p × B(x)
//
// with k = [units.LorentzCoefficient]. Integrators return the end state, a
// midpoint estimate used for chord (sagitta) checks and a truncation error
// estimate. [Substepper] wraps an integrator with the adaptive chord and
// error control used by the field propagator.
package ode
