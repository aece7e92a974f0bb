package kleo

import "math"

// State is a state vector in the synodic frame. For the equations of
// motion it is [x, y, z, vx, vy, vz]; the variational system extends it
// with the flattened state-transition matrix.
type State []float64

func (s State) Clone() State {
	c := make(State, len(s))
	copy(c, s)
	return c
}

// IsValid reports whether every component is finite.
func (s State) IsValid() bool {
	for _, v := range s {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}

func (s State) Norm() float64 {
	sum := 0.0
	for _, v := range s {
		sum += v * v
	}
	return math.Sqrt(sum)
}

func (s State) Add(other State) State {
	result := make(State, len(s))
	for i := range s {
		result[i] = s[i] + other[i]
	}
	return result
}

func (s State) Sub(other State) State {
	result := make(State, len(s))
	for i := range s {
		result[i] = s[i] - other[i]
	}
	return result
}

func (s State) Scale(factor float64) State {
	result := make(State, len(s))
	for i := range s {
		result[i] = s[i] * factor
	}
	return result
}

// Indices into the 6-component dynamical state.
const (
	IX = iota
	IY
	IZ
	IVX
	IVY
	IVZ
)

// StateDim is the dimension of the dynamical state.
const StateDim = 6

// System defines the differential equations dX/dt = Derive(X, t).
// Implementations must be pure: no retained references to the input,
// no mutation, deterministic for identical inputs. The time argument is
// unused by the autonomous synodic-frame equations but kept for
// integrator-interface uniformity.
type System interface {
	Derive(x State, t float64) State
	Dim() int
}
