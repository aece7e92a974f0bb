package integrators

import "github.com/gavinathaya/KleoProj/internal/kleo"

// RK4 is the classical fixed-step Runge-Kutta scheme. It serves where
// evenly spaced samples matter more than error control, such as
// resampling a known orbit for plotting, and is the reference scheme
// for convergence checks; the orbit search itself uses DOPRI5. Not safe
// for concurrent use (scratch buffers).
type RK4 struct {
	k1, k2, k3, k4 kleo.State
	scratch        kleo.State
}

func NewRK4() *RK4 {
	return &RK4{}
}

func (r *RK4) ensureScratch(n int) {
	if len(r.k1) != n {
		r.k1 = make(kleo.State, n)
		r.k2 = make(kleo.State, n)
		r.k3 = make(kleo.State, n)
		r.k4 = make(kleo.State, n)
		r.scratch = make(kleo.State, n)
	}
}

func (r *RK4) Step(sys kleo.System, x kleo.State, t, dt float64) kleo.State {
	n := len(x)
	r.ensureScratch(n)

	copy(r.k1, sys.Derive(x, t))

	for i := 0; i < n; i++ {
		r.scratch[i] = x[i] + dt*0.5*r.k1[i]
	}
	copy(r.k2, sys.Derive(r.scratch, t+dt*0.5))

	for i := 0; i < n; i++ {
		r.scratch[i] = x[i] + dt*0.5*r.k2[i]
	}
	copy(r.k3, sys.Derive(r.scratch, t+dt*0.5))

	for i := 0; i < n; i++ {
		r.scratch[i] = x[i] + dt*r.k3[i]
	}
	copy(r.k4, sys.Derive(r.scratch, t+dt))

	result := make(kleo.State, n)
	dt6 := dt / 6.0
	for i := 0; i < n; i++ {
		result[i] = x[i] + dt6*(r.k1[i]+2*r.k2[i]+2*r.k3[i]+r.k4[i])
	}
	return result
}
