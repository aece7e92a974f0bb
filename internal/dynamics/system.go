// Package dynamics wraps the field model into the synodic-frame equations
// of motion, and provides the variational system that propagates the
// state-transition matrix alongside the trajectory.
package dynamics

import (
	"github.com/gavinathaya/KleoProj/internal/field"
	"github.com/gavinathaya/KleoProj/internal/kleo"
	"gonum.org/v1/gonum/mat"
)

// RotatingFrame is the restricted problem in the frame co-rotating with
// the asteroid: gravitational pull of the dipole-segment distribution
// plus centrifugal and Coriolis terms for unit rotation rate about z.
type RotatingFrame struct {
	Params field.Parameters
}

func NewRotatingFrame(p field.Parameters) *RotatingFrame {
	return &RotatingFrame{Params: p}
}

func (r *RotatingFrame) Dim() int { return kleo.StateDim }

func (r *RotatingFrame) Derive(x kleo.State, _ float64) kleo.State {
	ax, ay, az := field.Acceleration(r.Params, x[kleo.IX], x[kleo.IY], x[kleo.IZ])
	return kleo.State{
		x[kleo.IVX],
		x[kleo.IVY],
		x[kleo.IVZ],
		ax + x[kleo.IX] + 2*x[kleo.IVY],
		ay + x[kleo.IY] - 2*x[kleo.IVX],
		az,
	}
}

// VariationalDim is the dimension of the extended state: the 6 dynamical
// components followed by the 6x6 state-transition matrix in row-major
// order.
const VariationalDim = kleo.StateDim + kleo.StateDim*kleo.StateDim

// Variational propagates d(Phi)/dt = F(x) Phi together with the state,
// where F = [[0, I], [H, K]], H the effective-potential Hessian and K the
// Coriolis block. Phi maps initial-state perturbations to downstream
// perturbations, which is what Newton refinement differentiates.
type Variational struct {
	Params field.Parameters
}

func NewVariational(p field.Parameters) *Variational {
	return &Variational{Params: p}
}

func (v *Variational) Dim() int { return VariationalDim }

func (v *Variational) Derive(x kleo.State, _ float64) kleo.State {
	const n = kleo.StateDim
	d := make(kleo.State, VariationalDim)

	ax, ay, az := field.Acceleration(v.Params, x[kleo.IX], x[kleo.IY], x[kleo.IZ])
	d[kleo.IX] = x[kleo.IVX]
	d[kleo.IY] = x[kleo.IVY]
	d[kleo.IZ] = x[kleo.IVZ]
	d[kleo.IVX] = ax + x[kleo.IX] + 2*x[kleo.IVY]
	d[kleo.IVY] = ay + x[kleo.IY] - 2*x[kleo.IVX]
	d[kleo.IVZ] = az

	h := field.EffectiveHessian(v.Params, x[kleo.IX], x[kleo.IY], x[kleo.IZ])

	// dPhi[i][j] = sum_k F[i][k] Phi[k][j], with Phi[k][j] = x[n+n*k+j].
	for j := 0; j < n; j++ {
		// Position rows: F picks out the matching velocity row.
		d[n+0*n+j] = x[n+3*n+j]
		d[n+1*n+j] = x[n+4*n+j]
		d[n+2*n+j] = x[n+5*n+j]
		// Velocity rows: Hessian block plus Coriolis coupling.
		p0 := x[n+0*n+j]
		p1 := x[n+1*n+j]
		p2 := x[n+2*n+j]
		d[n+3*n+j] = h[0][0]*p0 + h[0][1]*p1 + h[0][2]*p2 + 2*x[n+4*n+j]
		d[n+4*n+j] = h[1][0]*p0 + h[1][1]*p1 + h[1][2]*p2 - 2*x[n+3*n+j]
		d[n+5*n+j] = h[2][0]*p0 + h[2][1]*p1 + h[2][2]*p2
	}
	return d
}

// WithIdentitySTM returns the extended initial state: x0 followed by the
// identity transition matrix.
func WithIdentitySTM(x0 kleo.State) kleo.State {
	const n = kleo.StateDim
	ext := make(kleo.State, VariationalDim)
	copy(ext, x0[:n])
	for i := 0; i < n; i++ {
		ext[n+i*n+i] = 1
	}
	return ext
}

// STM extracts the 6x6 state-transition matrix from an extended state.
func STM(ext kleo.State) *mat.Dense {
	const n = kleo.StateDim
	return mat.NewDense(n, n, append([]float64(nil), ext[n:]...))
}
