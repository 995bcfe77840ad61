package ode

// Dormand-Prince coefficients (RK45)
var (
	b21 = 1.0 / 5.0
	b31 = 3.0 / 40.0
	b32 = 9.0 / 40.0
	b41 = 44.0 / 45.0
	b42 = -56.0 / 15.0
	b43 = 32.0 / 9.0
	b51 = 19372.0 / 6561.0
	b52 = -25360.0 / 2187.0
	b53 = 64448.0 / 6561.0
	b54 = -212.0 / 729.0
	b61 = 9017.0 / 3168.0
	b62 = -355.0 / 33.0
	b63 = 46732.0 / 5247.0
	b64 = 49.0 / 176.0
	b65 = -5103.0 / 18656.0

	c1 = 35.0 / 384.0
	c3 = 500.0 / 1113.0
	c4 = 125.0 / 192.0
	c5 = -2187.0 / 6784.0
	c6 = 11.0 / 84.0

	dc1 = c1 - 5179.0/57600.0
	dc3 = c3 - 7571.0/16695.0
	dc4 = c4 - 393.0/640.0
	dc5 = c5 - -92097.0/339200.0
	dc6 = c6 - 187.0/2100.0
	dc7 = -1.0 / 40.0

	// Dense output at half the step, scaled by step/2.
	m1 = 6025192743.0 / 30085553152.0
	m3 = 51252292925.0 / 65400821598.0
	m4 = -2691868925.0 / 45128329728.0
	m5 = 187940372067.0 / 1594534317056.0
	m6 = -1776094331.0 / 19743644256.0
	m7 = 11237099.0 / 235043384.0
)

// DormandPrince is the seven-stage embedded 5(4) Runge-Kutta integrator. The
// last stage is evaluated at the end point and feeds the error estimate and
// the midpoint interpolant.
type DormandPrince[F Evaluator] struct {
	eq Equation[F]
}

func NewDormandPrince[F Evaluator](eq Equation[F]) *DormandPrince[F] {
	return &DormandPrince[F]{eq: eq}
}

func (d *DormandPrince[F]) Integrate(step float64, x OdeState) Integration {
	k1 := d.eq.Derive(x)

	x2 := axpy(step*b21, k1, x)
	k2 := d.eq.Derive(x2)

	x3 := axpy(step*b32, k2, axpy(step*b31, k1, x))
	k3 := d.eq.Derive(x3)

	x4 := axpy(step*b43, k3, axpy(step*b42, k2, axpy(step*b41, k1, x)))
	k4 := d.eq.Derive(x4)

	x5 := axpy(step*b54, k4, axpy(step*b53, k3, axpy(step*b52, k2, axpy(step*b51, k1, x))))
	k5 := d.eq.Derive(x5)

	x6 := axpy(step*b65, k5, axpy(step*b64, k4, axpy(step*b63, k3,
		axpy(step*b62, k2, axpy(step*b61, k1, x)))))
	k6 := d.eq.Derive(x6)

	xNew := axpy(step*c6, k6, axpy(step*c5, k5, axpy(step*c4, k4,
		axpy(step*c3, k3, axpy(step*c1, k1, x)))))
	k7 := d.eq.Derive(xNew)

	var result Integration
	result.End = xNew

	errEst := scale(dc1, k1)
	errEst = axpy(dc3, k3, errEst)
	errEst = axpy(dc4, k4, errEst)
	errEst = axpy(dc5, k5, errEst)
	errEst = axpy(dc6, k6, errEst)
	errEst = axpy(dc7, k7, errEst)
	result.Err = scale(step, errEst)

	half := 0.5 * step
	mid := axpy(half*m1, k1, x)
	mid = axpy(half*m3, k3, mid)
	mid = axpy(half*m4, k4, mid)
	mid = axpy(half*m5, k5, mid)
	mid = axpy(half*m6, k6, mid)
	mid = axpy(half*m7, k7, mid)
	result.Mid = mid

	return result
}
