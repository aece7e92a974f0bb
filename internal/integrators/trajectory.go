package integrators

import "github.com/gavinathaya/KleoProj/internal/kleo"

// Event records a detected zero crossing of the event function.
type Event struct {
	Time      float64
	State     kleo.State
	Direction int // +1 rising, -1 falling
}

// Trajectory is the output of one integration call: accepted samples plus
// any detected events. When Options.Dense is false only the endpoints are
// recorded.
type Trajectory struct {
	Times  []float64
	States []kleo.State
	Events []Event

	Steps    int // accepted steps
	Rejected int // rejected trial steps
}

// Final returns the last recorded time and state.
func (tr *Trajectory) Final() (float64, kleo.State) {
	n := len(tr.Times)
	return tr.Times[n-1], tr.States[n-1]
}

// Options controls one integration. Zero values select the defaults
// below; tolerances follow the (atol, rtol) mixed error norm.
type Options struct {
	Atol float64 // absolute tolerance (default 1e-12)
	Rtol float64 // relative tolerance (default 1e-10)

	InitialStep float64 // first trial step (default span/1000)
	MinStep     float64 // underflow threshold (default 1e-13)
	MaxStep     float64 // growth ceiling (default span/10)
	MaxSteps    int     // accepted-step budget (default 200000)

	Dense bool // record every accepted step, not just endpoints

	// EventFunc, when set, is a scalar function of the state whose zero
	// crossings are located to event precision within accepted steps.
	EventFunc func(kleo.State) float64
	// EventDirection filters crossings: +1 rising only, -1 falling only,
	// 0 both.
	EventDirection int
	// StopAtEvent terminates the integration at the first accepted event.
	StopAtEvent bool
	// MaxEvents bounds recorded events (default 64).
	MaxEvents int
}

func (o Options) withDefaults(span float64) Options {
	if o.Atol <= 0 {
		o.Atol = 1e-12
	}
	if o.Rtol <= 0 {
		o.Rtol = 1e-10
	}
	if o.InitialStep <= 0 {
		o.InitialStep = span / 1000
	}
	if o.MinStep <= 0 {
		o.MinStep = 1e-13
	}
	if o.MaxStep <= 0 {
		o.MaxStep = span / 10
	}
	if o.MaxSteps <= 0 {
		o.MaxSteps = 200000
	}
	if o.MaxEvents <= 0 {
		o.MaxEvents = 64
	}
	return o
}
