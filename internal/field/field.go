// Package field evaluates the dipole-segment gravity model of
// 216-Kleopatra: two point masses at (-l1, 0, 0) and (l2, 0, 0) joined by
// a uniform-density segment of unit length, in the synodic frame rotating
// at unit rate.
//
// The segment's potential has the closed-form logarithmic expression in
// the endpoint distances, so no quadrature is involved. All functions are
// pure and allocation-free; they are called on every integrator substep.
//
// The model is singular at the mass points and on the segment between
// them (the interval [-l1, l2] on the x axis). Callers keep trajectories
// outside the body; the integrator reports non-finite values rather than
// panicking if one strays in.
package field

import (
	"fmt"
	"math"

	"github.com/gavinathaya/KleoProj/internal/kleo"
)

// Parameters is the dimensionless parameter set of the dipole-segment
// model. Immutable after construction: every evaluator takes it by value.
type Parameters struct {
	// Kappa scales the gravity term against the centrifugal term,
	// kappa = G*M / (omega^2 * l^3).
	Kappa float64
	// Mu is the mass fraction of the second point mass, m2/(m1+m2).
	Mu float64
	// MuS is the segment's fraction of the total mass, ms/M.
	MuS float64
	// L1, L2 are the point-mass offsets from the barycenter in units of
	// the segment length; L1 + L2 = 1.
	L1, L2 float64
}

// Kleopatra returns the reference dimensionless parameters for
// 216-Kleopatra used throughout the literature on this model.
func Kleopatra() Parameters {
	return Parameters{
		Kappa: 0.991,
		Mu:    0.484,
		MuS:   0.163,
		L1:    0.486608,
		L2:    0.513392,
	}
}

func (p Parameters) Validate() error {
	switch {
	case p.Kappa <= 0:
		return fmt.Errorf("%w: kappa must be positive, got %g", kleo.ErrInvalidConfig, p.Kappa)
	case p.Mu <= 0 || p.Mu >= 1:
		return fmt.Errorf("%w: mu must be in (0,1), got %g", kleo.ErrInvalidConfig, p.Mu)
	case p.MuS < 0 || p.MuS >= 1:
		return fmt.Errorf("%w: mu_s must be in [0,1), got %g", kleo.ErrInvalidConfig, p.MuS)
	case p.L1 <= 0 || p.L2 <= 0:
		return fmt.Errorf("%w: offsets must be positive, got l1=%g l2=%g", kleo.ErrInvalidConfig, p.L1, p.L2)
	case math.Abs(p.L1+p.L2-1) > 1e-9:
		return fmt.Errorf("%w: offsets must sum to the segment length, l1+l2=%g", kleo.ErrInvalidConfig, p.L1+p.L2)
	}
	return nil
}

// PhysicalParameters is the SI description of the body. It exists so the
// dimensionless set can be derived from published values rather than
// hard-coded; the numerical core never consumes it directly.
type PhysicalParameters struct {
	G              float64 // gravitational constant (m^3 kg^-1 s^-2)
	M1             float64 // first point mass (kg)
	M2             float64 // second point mass (kg)
	MSeg           float64 // segment mass (kg)
	SegmentLength  float64 // segment length (m)
	Offset1        float64 // distance of m1 from the barycenter (m)
	Offset2        float64 // distance of m2 from the barycenter (m)
	RotationPeriod float64 // spin period (s)
}

// KleopatraPhysical returns the published SI values for 216-Kleopatra.
func KleopatraPhysical() PhysicalParameters {
	return PhysicalParameters{
		G:              6.67430e-11,
		M1:             1.1014e18,
		M2:             1.0350e18,
		MSeg:           4.1547e17,
		SegmentLength:  117800,
		Offset1:        57322.4224,
		Offset2:        60477.5776,
		RotationPeriod: 5.385 * 3600,
	}
}

func (pp PhysicalParameters) Validate() error {
	switch {
	case pp.G <= 0:
		return fmt.Errorf("%w: G must be positive", kleo.ErrInvalidConfig)
	case pp.M1 <= 0 || pp.M2 <= 0 || pp.MSeg < 0:
		return fmt.Errorf("%w: masses must be positive", kleo.ErrInvalidConfig)
	case pp.SegmentLength <= 0:
		return fmt.Errorf("%w: segment length must be positive", kleo.ErrInvalidConfig)
	case pp.Offset1 <= 0 || pp.Offset2 <= 0:
		return fmt.Errorf("%w: offsets must be positive", kleo.ErrInvalidConfig)
	case pp.RotationPeriod <= 0:
		return fmt.Errorf("%w: rotation period must be positive", kleo.ErrInvalidConfig)
	}
	return nil
}

// TotalMass returns M = m1 + m2 + ms.
func (pp PhysicalParameters) TotalMass() float64 {
	return pp.M1 + pp.M2 + pp.MSeg
}

// Normalized derives the dimensionless parameter set: lengths in units of
// the segment length, time in units of the inverse spin rate.
func (pp PhysicalParameters) Normalized() Parameters {
	omega := 2 * math.Pi / pp.RotationPeriod
	l3 := pp.SegmentLength * pp.SegmentLength * pp.SegmentLength
	return Parameters{
		Kappa: pp.G * pp.TotalMass() / (omega * omega * l3),
		Mu:    pp.M2 / (pp.M1 + pp.M2),
		MuS:   pp.MSeg / pp.TotalMass(),
		L1:    pp.Offset1 / pp.SegmentLength,
		L2:    pp.Offset2 / pp.SegmentLength,
	}
}

// distances returns the distances from (x,y,z) to the two point masses.
func distances(p Parameters, x, y, z float64) (r1, r2 float64) {
	dx1 := x + p.L1
	dx2 := x - p.L2
	yz := y*y + z*z
	r1 = math.Sqrt(dx1*dx1 + yz)
	r2 = math.Sqrt(dx2*dx2 + yz)
	return r1, r2
}

// Potential returns the gravitational potential of the dipole-segment
// distribution at (x, y, z). The segment term is the closed-form
// logarithm in the endpoint distances.
func Potential(p Parameters, x, y, z float64) float64 {
	r1, r2 := distances(p, x, y, z)
	s := r1 + r2
	return -p.Kappa * ((1-p.Mu)*(1-p.MuS)/r1 +
		p.Mu*(1-p.MuS)/r2 +
		p.MuS*math.Log((s+1)/(s-1)))
}

// EffectivePotential returns Omega(x,y,z), the synodic-frame effective
// potential: centrifugal term plus the (sign-flipped) gravity term.
func EffectivePotential(p Parameters, x, y, z float64) float64 {
	return 0.5*(x*x+y*y) - Potential(p, x, y, z)
}

// Acceleration returns the gravitational acceleration (the gradient of
// -Potential) at (x, y, z). Centrifugal and Coriolis terms are added by
// the equations of motion, not here.
func Acceleration(p Parameters, x, y, z float64) (ax, ay, az float64) {
	dx1 := x + p.L1
	dx2 := x - p.L2
	r1, r2 := distances(p, x, y, z)
	s := r1 + r2

	a1 := p.Kappa * (1 - p.Mu) * (1 - p.MuS) / (r1 * r1 * r1)
	a2 := p.Kappa * p.Mu * (1 - p.MuS) / (r2 * r2 * r2)
	// d/dxi of kappa*mu_s*ln((s+1)/(s-1)) = -2*kappa*mu_s/(s^2-1) * ds/dxi
	as := 2 * p.Kappa * p.MuS / (s*s - 1)

	ax = -a1*dx1 - a2*dx2 - as*(dx1/r1+dx2/r2)
	ay = -(a1 + a2 + as*(1/r1+1/r2)) * y
	az = -(a1 + a2 + as*(1/r1+1/r2)) * z
	return ax, ay, az
}

// EffectiveHessian returns the 3x3 matrix of second derivatives of the
// effective potential Omega. It feeds the variational equations used for
// state-transition-matrix sensitivities.
func EffectiveHessian(p Parameters, x, y, z float64) [3][3]float64 {
	d1 := [3]float64{x + p.L1, y, z}
	d2 := [3]float64{x - p.L2, y, z}
	r1, r2 := distances(p, x, y, z)
	s := r1 + r2

	a1 := p.Kappa * (1 - p.Mu) * (1 - p.MuS)
	a2 := p.Kappa * p.Mu * (1 - p.MuS)
	as := p.Kappa * p.MuS

	r13 := r1 * r1 * r1
	r23 := r2 * r2 * r2
	r15 := r13 * r1 * r1
	r25 := r23 * r2 * r2
	sm1 := s*s - 1

	// Unit vectors toward the field point from each mass.
	var u1, u2, gs [3]float64
	for i := 0; i < 3; i++ {
		u1[i] = d1[i] / r1
		u2[i] = d2[i] / r2
		gs[i] = u1[i] + u2[i] // gradient of s
	}

	var h [3][3]float64
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			var kron float64
			if i == j {
				kron = 1
			}
			// Point-mass terms: Hess(1/r) = 3 d d^T / r^5 - I / r^3.
			h[i][j] = a1*(3*d1[i]*d1[j]/r15-kron/r13) +
				a2*(3*d2[i]*d2[j]/r25-kron/r23)
			// Segment term: Hess of ln((s+1)/(s-1)).
			h[i][j] += as * (4*s/(sm1*sm1)*gs[i]*gs[j] -
				2/sm1*((kron-u1[i]*u1[j])/r1+(kron-u2[i]*u2[j])/r2))
		}
	}
	// Centrifugal part of Omega contributes diag(1, 1, 0).
	h[0][0]++
	h[1][1]++
	return h
}

// JacobiConstant returns C = 2*Omega - |v|^2 for a 6-component state.
// C is conserved along synodic-frame trajectories and classifies orbits.
func JacobiConstant(p Parameters, x kleo.State) float64 {
	v2 := x[kleo.IVX]*x[kleo.IVX] + x[kleo.IVY]*x[kleo.IVY] + x[kleo.IVZ]*x[kleo.IVZ]
	return 2*EffectivePotential(p, x[kleo.IX], x[kleo.IY], x[kleo.IZ]) - v2
}

// OnSegment reports whether (x,y,z) lies within tol of the singular set
// (the segment joining the two mass points).
func OnSegment(p Parameters, x, y, z, tol float64) bool {
	r1, r2 := distances(p, x, y, z)
	return r1+r2-1 < tol
}
