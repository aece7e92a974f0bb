package search

import (
	"errors"
	"math"

	"github.com/gavinathaya/KleoProj/internal/dynamics"
	"github.com/gavinathaya/KleoProj/internal/field"
	"github.com/gavinathaya/KleoProj/internal/integrators"
	"github.com/gavinathaya/KleoProj/internal/kleo"
	"gonum.org/v1/gonum/mat"
)

// maxCorrection bounds a single Newton step so a bad Jacobian cannot
// throw the seed across the grid.
const maxCorrection = 0.1

// residualGrowthFactor: one iteration may not grow the residual by more
// than this, or the candidate is declared diverged.
const residualGrowthFactor = 2.0

// minTransversal is the smallest |vy| at a section crossing for which
// the event-time sensitivity correction is well conditioned.
const minTransversal = 1e-8

// errNoReturn: the trajectory reached MaxTime without re-crossing the
// symmetry section.
var errNoReturn = errors.New("no section return within time budget")

// refiner drives differential correction for one worker. Each worker
// owns one; the underlying systems and integrator are stateless.
type refiner struct {
	params field.Parameters
	cfg    Config
	sym    Symmetry
	plain  *dynamics.RotatingFrame
	vari   *dynamics.Variational
	integ  *integrators.DOPRI5
}

func newRefiner(p field.Parameters, cfg Config, sym Symmetry) *refiner {
	return &refiner{
		params: p,
		cfg:    cfg,
		sym:    sym,
		plain:  dynamics.NewRotatingFrame(p),
		vari:   dynamics.NewVariational(p),
		integ:  integrators.NewDOPRI5(),
	}
}

func sectionY(x kleo.State) float64 { return x[kleo.IY] }

func (r *refiner) options() integrators.Options {
	return integrators.Options{
		Atol:        r.cfg.Atol,
		Rtol:        r.cfg.Rtol,
		MaxSteps:    r.cfg.MaxSteps,
		EventFunc:   sectionY,
		StopAtEvent: true,
	}
}

// crossing integrates seed to its first return to the y = 0 section and
// returns the event. withSTM selects the variational system, in which
// case the state-transition matrix at the crossing is also returned.
func (r *refiner) crossing(seed kleo.State, withSTM bool) (integrators.Event, *mat.Dense, error) {
	var sys kleo.System = r.plain
	x0 := seed
	if withSTM {
		sys = r.vari
		x0 = dynamics.WithIdentitySTM(seed)
	}

	tr, err := r.integ.Integrate(sys, x0, 0, r.cfg.MaxTime, r.options())
	if err != nil {
		return integrators.Event{}, nil, err
	}
	if len(tr.Events) == 0 {
		return integrators.Event{}, nil, errNoReturn
	}

	ev := tr.Events[0]
	var stm *mat.Dense
	if withSTM {
		stm = dynamics.STM(ev.State)
		ev.State = ev.State[:kleo.StateDim]
	}
	return ev, stm, nil
}

// residual extracts the periodicity residual at a crossing: the velocity
// components the mirror condition requires to vanish.
func (r *refiner) residual(ev integrators.Event) []float64 {
	idx := r.sym.ResidualIndices()
	res := make([]float64, len(idx))
	for i, ri := range idx {
		res[i] = ev.State[ri]
	}
	return res
}

func norm(v []float64) float64 {
	sum := 0.0
	for _, x := range v {
		sum += x * x
	}
	return math.Sqrt(sum)
}

// jacobianSTM differentiates the residual with respect to the free seed
// scalars using the state-transition matrix Phi at the crossing. The
// crossing time shifts with the seed, so each column carries the
// event-time correction dtau = -(e_y . Phi dx0) / vy(tau).
func (r *refiner) jacobianSTM(ev integrators.Event, stm *mat.Dense) (*mat.Dense, error) {
	resIdx := r.sym.ResidualIndices()
	corIdx := r.sym.CorrectionIndices()

	deriv := r.plain.Derive(ev.State, ev.Time)
	vy := deriv[kleo.IY]
	if math.Abs(vy) < minTransversal {
		return nil, errors.New("section crossing not transversal")
	}

	jac := mat.NewDense(len(resIdx), len(corIdx), nil)
	for j, c := range corIdx {
		dtau := -stm.At(kleo.IY, c) / vy
		for i, ri := range resIdx {
			jac.Set(i, j, stm.At(ri, c)+deriv[ri]*dtau)
		}
	}
	return jac, nil
}

// jacobianFD builds the same matrix by one-sided finite differences,
// re-integrating a perturbed seed per free scalar.
func (r *refiner) jacobianFD(seed kleo.State, base []float64) (*mat.Dense, error) {
	resIdx := r.sym.ResidualIndices()
	corIdx := r.sym.CorrectionIndices()

	jac := mat.NewDense(len(resIdx), len(corIdx), nil)
	for j, c := range corIdx {
		h := 1e-7 * math.Max(1, math.Abs(seed[c]))
		pert := seed.Clone()
		pert[c] += h

		ev, _, err := r.crossing(pert, false)
		if err != nil {
			return nil, err
		}
		res := r.residual(ev)
		for i := range resIdx {
			jac.Set(i, j, (res[i]-base[i])/h)
		}
	}
	return jac, nil
}

// refine runs differential correction from seed until the residual norm
// drops below tolerance or the candidate is abandoned. An already
// converged seed returns after a single residual evaluation with no
// Newton steps, so re-refining a catalog entry does not drift it.
func (r *refiner) refine(seed kleo.State) (*PeriodicOrbit, Outcome) {
	withSTM := r.cfg.Sensitivity == SensitivitySTM
	current := seed.Clone()
	prevNorm := math.Inf(1)
	var history []float64

	for iter := 0; iter <= r.cfg.MaxRefine; iter++ {
		ev, stm, err := r.crossing(current, withSTM)
		if err != nil {
			if iter == 0 {
				return nil, OutcomeNoEvent
			}
			// The corrected seed left the domain; the original grid
			// point did have a return, so this is a refinement failure.
			return nil, OutcomeDiverged
		}

		res := r.residual(ev)
		resNorm := norm(res)
		history = append(history, resNorm)

		if resNorm < r.cfg.ResidualTol {
			return r.emit(current, ev, resNorm, iter, history)
		}
		if iter == 0 && resNorm > r.cfg.CoarseTol {
			return nil, OutcomeRejected
		}
		if resNorm > residualGrowthFactor*prevNorm || math.IsNaN(resNorm) {
			return nil, OutcomeDiverged
		}
		if iter == r.cfg.MaxRefine {
			break
		}
		prevNorm = resNorm

		var jac *mat.Dense
		if withSTM {
			jac, err = r.jacobianSTM(ev, stm)
		} else {
			jac, err = r.jacobianFD(current, res)
		}
		if err != nil {
			return nil, OutcomeDiverged
		}

		delta, err := solveCorrection(jac, res)
		if err != nil {
			return nil, OutcomeDiverged
		}
		for j, c := range r.sym.CorrectionIndices() {
			current[c] += delta[j]
		}
	}
	return nil, OutcomeDiverged
}

// solveCorrection solves J*delta = -res by QR (least squares when the
// residual outnumbers the free scalars) and clamps the step length.
func solveCorrection(jac *mat.Dense, res []float64) ([]float64, error) {
	m, n := jac.Dims()
	rhs := mat.NewVecDense(m, nil)
	for i, v := range res {
		rhs.SetVec(i, -v)
	}

	var qr mat.QR
	qr.Factorize(jac)
	var sol mat.VecDense
	if err := qr.SolveVecTo(&sol, false, rhs); err != nil {
		return nil, err
	}

	delta := make([]float64, n)
	sum := 0.0
	for j := range delta {
		delta[j] = sol.AtVec(j)
		sum += delta[j] * delta[j]
	}
	if length := math.Sqrt(sum); length > maxCorrection {
		for j := range delta {
			delta[j] *= maxCorrection / length
		}
	}
	return delta, nil
}

// emit finalizes a converged candidate, applying the Jacobi-drift gate:
// the integration's conserved quantity must actually have been conserved
// for the orbit to be trusted.
func (r *refiner) emit(seed kleo.State, ev integrators.Event, resNorm float64, iters int, history []float64) (*PeriodicOrbit, Outcome) {
	c0 := field.JacobiConstant(r.params, seed)
	drift := math.Abs(field.JacobiConstant(r.params, ev.State) - c0)
	if r.cfg.JacobiDriftTol > 0 && drift > r.cfg.JacobiDriftTol {
		return nil, OutcomeRejected
	}

	return &PeriodicOrbit{
		Initial:         seed.Clone(),
		HalfPeriod:      ev.Time,
		Period:          2 * ev.Time,
		Jacobi:          c0,
		Residual:        resNorm,
		Family:          r.sym.Family(seed),
		Iterations:      iters,
		ResidualHistory: history,
	}, OutcomeConverged
}
