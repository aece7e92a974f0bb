// Package integrators provides the ODE solvers used by the orbit search:
// a fixed-step RK4 and the adaptive Dormand-Prince 5(4) pair with event
// detection. The integrators know nothing about periodicity; they expose
// generic zero-crossing events and leave all orbit logic to the caller.
package integrators

import (
	"math"

	"github.com/gavinathaya/KleoProj/internal/kleo"
)

// Dormand-Prince coefficients (5th order solution, 4th order embedded).
var (
	a2 = 1.0 / 5.0
	a3 = 3.0 / 10.0
	a4 = 4.0 / 5.0
	a5 = 8.0 / 9.0

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
)

const (
	safety   = 0.9
	minScale = 0.1
	maxScale = 5.0
)

// DOPRI5 is the adaptive Dormand-Prince 5(4) integrator. The zero value
// is ready to use; instances are stateless and safe for concurrent use.
type DOPRI5 struct{}

func NewDOPRI5() *DOPRI5 { return &DOPRI5{} }

// step takes one trial step of size h and returns the 5th-order result,
// the derivatives at both endpoints, and the scaled error norm of the
// embedded 4th-order difference.
func (d *DOPRI5) step(sys kleo.System, x kleo.State, t, h, atol, rtol float64) (xNew, k1, k7 kleo.State, errNorm float64) {
	n := len(x)
	k1 = sys.Derive(x, t)

	xs := make(kleo.State, n)
	for i := 0; i < n; i++ {
		xs[i] = x[i] + h*b21*k1[i]
	}
	k2 := sys.Derive(xs, t+a2*h)
	for i := 0; i < n; i++ {
		xs[i] = x[i] + h*(b31*k1[i]+b32*k2[i])
	}
	k3 := sys.Derive(xs, t+a3*h)
	for i := 0; i < n; i++ {
		xs[i] = x[i] + h*(b41*k1[i]+b42*k2[i]+b43*k3[i])
	}
	k4 := sys.Derive(xs, t+a4*h)
	for i := 0; i < n; i++ {
		xs[i] = x[i] + h*(b51*k1[i]+b52*k2[i]+b53*k3[i]+b54*k4[i])
	}
	k5 := sys.Derive(xs, t+a5*h)
	for i := 0; i < n; i++ {
		xs[i] = x[i] + h*(b61*k1[i]+b62*k2[i]+b63*k3[i]+b64*k4[i]+b65*k5[i])
	}
	k6 := sys.Derive(xs, t+h)

	xNew = make(kleo.State, n)
	for i := 0; i < n; i++ {
		xNew[i] = x[i] + h*(c1*k1[i]+c3*k3[i]+c4*k4[i]+c5*k5[i]+c6*k6[i])
	}
	k7 = sys.Derive(xNew, t+h)

	for i := 0; i < n; i++ {
		e := h * (dc1*k1[i] + dc3*k3[i] + dc4*k4[i] + dc5*k5[i] + dc6*k6[i] + dc7*k7[i])
		sc := atol + rtol*math.Max(math.Abs(x[i]), math.Abs(xNew[i]))
		errNorm += (e / sc) * (e / sc)
	}
	errNorm = math.Sqrt(errNorm / float64(n))
	return xNew, k1, k7, errNorm
}

// Integrate propagates x0 from t0 toward tmax (backward when tmax < t0)
// under sys, with adaptive step control against the (atol, rtol) mixed
// error norm. Accepted steps are scanned for sign changes of the event
// function; crossings are bracketed on the step's Hermite interpolant
// and then polished by Newton on a re-integrated sub-step, so event
// times resolve to the integration accuracy regardless of the outer
// step size.
//
// The returned trajectory holds whatever was accepted before a failure,
// so candidate-level callers can count partial outcomes. Errors wrap the
// kleo sentinels: ErrNonFiniteState, ErrStepTooSmall, ErrMaxStepsExceeded.
func (d *DOPRI5) Integrate(sys kleo.System, x0 kleo.State, t0, tmax float64, opts Options) (*Trajectory, error) {
	span := math.Abs(tmax - t0)
	opts = opts.withDefaults(span)

	tr := &Trajectory{}
	if !x0.IsValid() {
		return tr, &kleo.IntegrationError{Step: 0, Time: t0, Wrapped: kleo.ErrNonFiniteState}
	}

	dir := 1.0
	if tmax < t0 {
		dir = -1.0
	}

	x := x0.Clone()
	t := t0
	h := dir * math.Min(opts.InitialStep, opts.MaxStep)

	tr.Times = append(tr.Times, t)
	tr.States = append(tr.States, x.Clone())

	// Sign of the event function at the last accepted node. Zero means
	// "on the section": crossings are only armed once the trajectory has
	// left it, so orbits seeded exactly on the symmetry plane do not
	// trigger a spurious event at t0.
	g := 0.0
	if opts.EventFunc != nil {
		g = opts.EventFunc(x)
	}

	for (t-tmax)*dir < 0 {
		if tr.Steps >= opts.MaxSteps {
			return tr, &kleo.IntegrationError{Step: tr.Steps, Time: t, Wrapped: kleo.ErrMaxStepsExceeded}
		}
		if (t+h-tmax)*dir > 0 {
			h = tmax - t
		}

		xNew, k1, k7, errNorm := d.step(sys, x, t, h, opts.Atol, opts.Rtol)

		if !xNew.IsValid() || !k7.IsValid() {
			// Usually an overshoot into the singular region; retry
			// smaller before declaring the trajectory lost.
			if math.Abs(h)*0.5 < opts.MinStep {
				return tr, &kleo.IntegrationError{Step: tr.Steps, Time: t, Wrapped: kleo.ErrNonFiniteState}
			}
			h *= 0.5
			tr.Rejected++
			continue
		}

		if errNorm > 1 {
			h *= math.Max(minScale, safety*math.Pow(errNorm, -0.25))
			tr.Rejected++
			if math.Abs(h) < opts.MinStep {
				return tr, &kleo.IntegrationError{Step: tr.Steps, Time: t, Wrapped: kleo.ErrStepTooSmall}
			}
			continue
		}

		// Step accepted.
		stop := false
		if opts.EventFunc != nil {
			gNew := opts.EventFunc(xNew)
			if g != 0 && (gNew == 0 || math.Signbit(gNew) != math.Signbit(g)) {
				crossDir := +1
				if g > 0 {
					crossDir = -1
				}
				if opts.EventDirection == 0 || opts.EventDirection == crossDir {
					ev := d.locateEvent(sys, opts.EventFunc, x, xNew, k1, k7, t, h)
					ev.Direction = crossDir
					tr.Events = append(tr.Events, ev)
					if opts.StopAtEvent || len(tr.Events) >= opts.MaxEvents {
						t = ev.Time
						x = ev.State
						stop = true
					}
				}
			}
			if !stop && gNew != 0 {
				g = gNew
			}
		}

		if !stop {
			t += h
			x = xNew
		}
		tr.Steps++

		if opts.Dense || stop || (t-tmax)*dir >= 0 {
			tr.Times = append(tr.Times, t)
			tr.States = append(tr.States, x.Clone())
		}
		if stop {
			return tr, nil
		}

		if errNorm > 0 {
			h *= math.Min(maxScale, safety*math.Pow(errNorm, -0.2))
		} else {
			h *= maxScale
		}
		if math.Abs(h) > opts.MaxStep {
			h = dir * opts.MaxStep
		}
	}

	return tr, nil
}

// hermite evaluates the cubic Hermite interpolant through (x0, f0) at
// theta=0 and (x1, f1) at theta=1 over a step of width h.
func hermite(x0, x1, f0, f1 kleo.State, h, theta float64) kleo.State {
	t2 := theta * theta
	t3 := t2 * theta
	h00 := 2*t3 - 3*t2 + 1
	h10 := t3 - 2*t2 + theta
	h01 := -2*t3 + 3*t2
	h11 := t3 - t2

	out := make(kleo.State, len(x0))
	for i := range x0 {
		out[i] = h00*x0[i] + h10*h*f0[i] + h01*x1[i] + h11*h*f1[i]
	}
	return out
}

// locateEvent resolves a sign change within an accepted step. Bisection
// on the Hermite interpolant brackets the crossing parameter; Newton
// iterations on a single re-integrated sub-step then pin the crossing to
// the integration accuracy rather than the interpolant's.
func (d *DOPRI5) locateEvent(sys kleo.System, eventFn func(kleo.State) float64, x0, x1, f0, f1 kleo.State, t, h float64) Event {
	lo, hi := 0.0, 1.0
	gLo := eventFn(x0)

	for iter := 0; iter < 60 && hi-lo > 1e-12; iter++ {
		mid := 0.5 * (lo + hi)
		gMid := eventFn(hermite(x0, x1, f0, f1, h, mid))
		if gMid == 0 {
			lo, hi = mid, mid
			break
		}
		if math.Signbit(gMid) == math.Signbit(gLo) {
			lo = mid
			gLo = gMid
		} else {
			hi = mid
		}
	}
	theta := 0.5 * (lo + hi)

	// Newton polish against the true sub-step solution.
	state := hermite(x0, x1, f0, f1, h, theta)
	for iter := 0; iter < 5; iter++ {
		sub, _, _, _ := d.step(sys, x0, t, theta*h, 0, 0)
		if !sub.IsValid() {
			break
		}
		state = sub
		gv := eventFn(sub)
		if gv == 0 {
			break
		}
		gdot := eventSlope(sys, eventFn, sub, t+theta*h)
		if gdot == 0 {
			break
		}
		dTheta := -gv / (gdot * h)
		theta += dTheta
		if theta < 0 {
			theta = 0
		} else if theta > 1 {
			theta = 1
		}
		if math.Abs(dTheta) < 1e-15 {
			sub, _, _, _ = d.step(sys, x0, t, theta*h, 0, 0)
			if sub.IsValid() {
				state = sub
			}
			break
		}
	}

	return Event{
		Time:  t + theta*h,
		State: state,
	}
}

// eventSlope is d(eventFn)/dt along the flow, by a centered directional
// difference (exact for the coordinate projections used as sections).
func eventSlope(sys kleo.System, eventFn func(kleo.State) float64, x kleo.State, t float64) float64 {
	f := sys.Derive(x, t)
	eps := 1e-7
	plus := make(kleo.State, len(x))
	minus := make(kleo.State, len(x))
	for i := range x {
		plus[i] = x[i] + eps*f[i]
		minus[i] = x[i] - eps*f[i]
	}
	return (eventFn(plus) - eventFn(minus)) / (2 * eps)
}
