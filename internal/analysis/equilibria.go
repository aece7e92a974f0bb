// Package analysis computes structural features of the dipole-segment
// field used to stage a scan: collinear equilibrium points and the
// feasible region of the (x0, C) seed plane.
package analysis

import (
	"math"

	"github.com/gavinathaya/KleoProj/internal/field"
)

// Equilibrium is a point on the x axis where the effective gradient
// vanishes, with the Jacobi constant of a particle at rest there.
type Equilibrium struct {
	X      float64
	Jacobi float64
}

// effGradX is d(Omega)/dx on the x axis: centrifugal plus gravity.
func effGradX(p field.Parameters, x float64) float64 {
	ax, _, _ := field.Acceleration(p, x, 0, 0)
	return x + ax
}

// CollinearEquilibria locates the equilibrium points on the x axis in
// [xMin, xMax] by sampling the effective gradient and bisecting each
// sign change. The singular interval [-l1, l2] (the body itself) is
// excluded.
func CollinearEquilibria(p field.Parameters, xMin, xMax float64, samples int) []Equilibrium {
	if samples < 2 {
		samples = 2
	}
	const margin = 1e-6

	var roots []Equilibrium
	step := (xMax - xMin) / float64(samples-1)
	prevX := math.NaN()
	prevG := 0.0

	for i := 0; i < samples; i++ {
		x := xMin + float64(i)*step
		if x > -p.L1-margin && x < p.L2+margin {
			prevX = math.NaN()
			continue
		}
		g := effGradX(p, x)
		if math.IsNaN(g) || math.IsInf(g, 0) {
			prevX = math.NaN()
			continue
		}
		if !math.IsNaN(prevX) && math.Signbit(g) != math.Signbit(prevG) {
			root := bisectGradient(p, prevX, x, prevG)
			roots = append(roots, Equilibrium{
				X:      root,
				Jacobi: 2 * field.EffectivePotential(p, root, 0, 0),
			})
		}
		prevX, prevG = x, g
	}
	return roots
}

func bisectGradient(p field.Parameters, lo, hi, gLo float64) float64 {
	for iter := 0; iter < 100 && hi-lo > 1e-14; iter++ {
		mid := 0.5 * (lo + hi)
		g := effGradX(p, mid)
		if g == 0 {
			return mid
		}
		if math.Signbit(g) == math.Signbit(gLo) {
			lo, gLo = mid, g
		} else {
			hi = mid
		}
	}
	return 0.5 * (lo + hi)
}

// FeasibleFraction reports the fraction of an (x0, C) grid that admits a
// real section speed, a cheap pre-scan sanity check that the configured
// ranges overlap the accessible region at all.
func FeasibleFraction(p field.Parameters, x0s, cs []float64) float64 {
	if len(x0s) == 0 || len(cs) == 0 {
		return 0
	}
	feasible := 0
	for _, x0 := range x0s {
		for _, c := range cs {
			radicand := 2*field.EffectivePotential(p, x0, 0, 0) - c
			if !math.IsNaN(radicand) && !math.IsInf(radicand, 0) && radicand >= 0 {
				feasible++
			}
		}
	}
	return float64(feasible) / float64(len(x0s)*len(cs))
}
