package ode

// RK4 is the classical fourth-order Runge-Kutta integrator. The error is
// estimated by comparing one full step with two half steps.
type RK4[F Evaluator] struct {
	eq Equation[F]
}

func NewRK4[F Evaluator](eq Equation[F]) *RK4[F] {
	return &RK4[F]{eq: eq}
}

func (r *RK4[F]) step(h float64, x, k1 OdeState) OdeState {
	k2 := r.eq.Derive(axpy(0.5*h, k1, x))
	k3 := r.eq.Derive(axpy(0.5*h, k2, x))
	k4 := r.eq.Derive(axpy(h, k3, x))

	h6 := h / 6.0
	result := axpy(h6, k1, x)
	result = axpy(2*h6, k2, result)
	result = axpy(2*h6, k3, result)
	return axpy(h6, k4, result)
}

func (r *RK4[F]) Integrate(step float64, x OdeState) Integration {
	half := 0.5 * step
	k1 := r.eq.Derive(x)

	full := r.step(step, x, k1)

	var result Integration
	result.Mid = r.step(half, x, k1)
	result.End = r.step(half, result.Mid, r.eq.Derive(result.Mid))
	// Richardson estimate for a fourth order method
	result.Err = scale(1.0/15.0, sub(result.End, full))
	return result
}
