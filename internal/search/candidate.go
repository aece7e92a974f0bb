package search

import (
	"math"
	"time"

	"github.com/gavinathaya/KleoProj/internal/field"
	"github.com/gavinathaya/KleoProj/internal/kleo"
)

// Outcome is the terminal state of one grid candidate. NoEvent and
// Diverged are expected, common results of a dense scan; only invalid
// configuration aborts the search as a whole.
type Outcome int

const (
	// OutcomePending: not yet processed (scan canceled before this seed).
	OutcomePending Outcome = iota
	// OutcomeInfeasible: the Jacobi constant admits no real section
	// speed at this seed (2*Omega - C < 0), or the seed sits in the
	// singular zone.
	OutcomeInfeasible
	// OutcomeNoEvent: the trajectory never returned to the symmetry
	// section within the integration budget, or integration failed.
	OutcomeNoEvent
	// OutcomeConverged: refinement drove the residual below tolerance.
	OutcomeConverged
	// OutcomeDiverged: the residual grew or the iteration budget ran out.
	OutcomeDiverged
	// OutcomeRejected: the first residual was outside the coarse
	// acceptance bound, or the converged orbit failed the Jacobi-drift
	// quality gate.
	OutcomeRejected
)

func (o Outcome) String() string {
	switch o {
	case OutcomePending:
		return "pending"
	case OutcomeInfeasible:
		return "infeasible"
	case OutcomeNoEvent:
		return "no-event"
	case OutcomeConverged:
		return "converged"
	case OutcomeDiverged:
		return "diverged"
	case OutcomeRejected:
		return "rejected"
	default:
		return "unknown"
	}
}

// Seed is one grid point: scan position x0 and Jacobi constant C, with
// the section speed vy0 derived from the effective potential.
type Seed struct {
	Index    int
	X0       float64
	C        float64
	VY0      float64
	Feasible bool
}

// SectionSpeed returns vy0 = sqrt(2*Omega(x0,0,0) - C), the synodic
// speed perpendicular to the x axis that realizes Jacobi constant C at
// seed position x0. The second return is false when the radicand is
// negative or non-finite (energetically forbidden or singular).
func SectionSpeed(p field.Parameters, x0, c float64) (float64, bool) {
	radicand := 2*field.EffectivePotential(p, x0, 0, 0) - c
	if math.IsNaN(radicand) || math.IsInf(radicand, 0) || radicand < 0 {
		return 0, false
	}
	return math.Sqrt(radicand), true
}

// PeriodicOrbit is a converged, classified orbit. Immutable once emitted.
type PeriodicOrbit struct {
	// Initial is the refined state on the symmetry section.
	Initial kleo.State
	// HalfPeriod is the time of the mirror crossing; Period = 2*HalfPeriod.
	HalfPeriod float64
	Period     float64
	// Jacobi is the Jacobi constant of the refined orbit (recomputed
	// after refinement; it drifts from the seed's C as vy0 is corrected).
	Jacobi float64
	// Residual is the final periodicity residual norm.
	Residual float64
	// Family is the classification tag (symmetry type and sense).
	Family string
	// SeedIndex orders the catalog by the originating grid point.
	SeedIndex int
	// Iterations is the number of Newton corrections applied.
	Iterations int
	// ResidualHistory records the residual norm before each correction
	// and after the last, for convergence diagnostics. Not persisted.
	ResidualHistory []float64
}

// Candidate is the full per-seed record kept for scan diagnostics.
type Candidate struct {
	Seed    Seed
	Outcome Outcome
	Orbit   *PeriodicOrbit
	Err     error
}

// Stats summarizes a finished scan so callers can tell "no orbits for
// these physics" from "search mis-configured".
type Stats struct {
	Seeded     int
	Pending    int // nonzero only when the scan was canceled
	Infeasible int
	NoEvent    int
	Converged  int
	Diverged   int
	Rejected   int
	Duplicates int
	Elapsed    time.Duration
}

// Result is the output of one grid search: the deduplicated catalog
// ordered by scan position, plus per-candidate records and counts.
type Result struct {
	Orbits     []PeriodicOrbit
	Candidates []Candidate
	Stats      Stats
}

// Progress is a snapshot emitted while the scan runs.
type Progress struct {
	Done      int
	Total     int
	Converged int
}
