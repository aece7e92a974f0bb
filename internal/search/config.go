package search

import (
	"fmt"
	"math"
	"runtime"

	"github.com/gavinathaya/KleoProj/internal/kleo"
)

// SensitivityMode selects how refinement obtains residual derivatives.
type SensitivityMode string

const (
	// SensitivitySTM integrates the variational equations alongside the
	// trajectory and slices the state-transition matrix. More accurate;
	// the default.
	SensitivitySTM SensitivityMode = "stm"
	// SensitivityFiniteDiff perturbs each free scalar and re-integrates.
	SensitivityFiniteDiff SensitivityMode = "fd"
)

// RangeSpec is a closed scan range stepped at fixed resolution.
type RangeSpec struct {
	Min, Max, Step float64
}

func (r RangeSpec) Count() int {
	if r.Step <= 0 || r.Max < r.Min {
		return 0
	}
	return int(math.Floor((r.Max-r.Min)/r.Step+1e-9)) + 1
}

func (r RangeSpec) Values() []float64 {
	n := r.Count()
	vals := make([]float64, n)
	for i := 0; i < n; i++ {
		vals[i] = r.Min + float64(i)*r.Step
	}
	return vals
}

// Config are the knobs of one grid search. DefaultConfig gives values
// that reproduce the reference 216-Kleopatra scan semantics at coarse
// resolution.
type Config struct {
	// X0 scans the seed position along the x axis; C scans the Jacobi
	// constant. The grid is their cartesian product.
	X0 RangeSpec
	C  RangeSpec

	Symmetry SymmetryType
	// Z0 is the seed out-of-plane offset for the vertical symmetry.
	Z0 float64

	// Integrator tolerances and budgets, per candidate.
	Atol     float64
	Rtol     float64
	MaxTime  float64 // give up if no section return by this time
	MaxSteps int

	// Refinement.
	MaxRefine   int
	ResidualTol float64
	// CoarseTol is the acceptance bound on the first residual; seeds
	// farther than this from periodicity are rejected without Newton
	// iterations.
	CoarseTol   float64
	Sensitivity SensitivityMode

	// Catalog hygiene.
	DedupTol       float64
	JacobiDriftTol float64

	Workers int
}

func DefaultConfig() Config {
	return Config{
		X0:             RangeSpec{Min: -3, Max: 2, Step: 0.1},
		C:              RangeSpec{Min: -3, Max: 5, Step: 0.2},
		Symmetry:       SymmetryPlanar,
		Atol:           1e-12,
		Rtol:           1e-10,
		MaxTime:        4 * math.Pi,
		MaxSteps:       100000,
		MaxRefine:      25,
		ResidualTol:    1e-10,
		CoarseTol:      0.5,
		Sensitivity:    SensitivitySTM,
		DedupTol:       1e-3,
		JacobiDriftTol: 1e-7,
		Workers:        runtime.NumCPU(),
	}
}

func (c Config) Validate() error {
	if c.X0.Count() == 0 {
		return fmt.Errorf("%w: empty x0 range", kleo.ErrInvalidConfig)
	}
	if c.C.Count() == 0 {
		return fmt.Errorf("%w: empty C range", kleo.ErrInvalidConfig)
	}
	if c.Atol <= 0 || c.Rtol <= 0 {
		return fmt.Errorf("%w: tolerances must be positive", kleo.ErrInvalidConfig)
	}
	if c.MaxTime <= 0 {
		return fmt.Errorf("%w: max integration time must be positive", kleo.ErrInvalidConfig)
	}
	if c.MaxRefine < 1 {
		return fmt.Errorf("%w: refine iteration budget must be at least 1", kleo.ErrInvalidConfig)
	}
	if c.ResidualTol <= 0 || c.DedupTol <= 0 {
		return fmt.Errorf("%w: residual and dedup tolerances must be positive", kleo.ErrInvalidConfig)
	}
	switch c.Sensitivity {
	case SensitivitySTM, SensitivityFiniteDiff:
	default:
		return fmt.Errorf("%w: unknown sensitivity mode %q", kleo.ErrInvalidConfig, c.Sensitivity)
	}
	if _, err := NewSymmetry(c.Symmetry, c.Z0); err != nil {
		return err
	}
	if c.Workers < 1 {
		return fmt.Errorf("%w: workers must be at least 1", kleo.ErrInvalidConfig)
	}
	return nil
}
