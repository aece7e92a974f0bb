package search

import (
	"fmt"

	"github.com/gavinathaya/KleoProj/internal/kleo"
)

// SymmetryType selects the mirror symmetry a periodic orbit is assumed
// to satisfy. Adding a symmetry class means adding a mapping here, not
// touching the search loop.
type SymmetryType string

const (
	// SymmetryPlanar: equatorial orbits (z = 0) crossing the x axis
	// perpendicularly. Seed (x0, vy0), one residual (vx at the mirror
	// crossing).
	SymmetryPlanar SymmetryType = "planar"

	// SymmetryVertical: three-dimensional orbits seeded off the
	// equatorial plane, perpendicular to the y = 0 plane. Seed
	// (x0, z0, vy0), residuals (vx, vz) at the crossing.
	SymmetryVertical SymmetryType = "vertical"
)

// Symmetry maps reduced seed scalars to a full state on the symmetry
// section and designates which components refinement may adjust and
// which must vanish at the return crossing.
type Symmetry interface {
	Type() SymmetryType

	// SeedState builds the full 6-state for scan position x0 and section
	// speed vy0; all remaining components are fixed by the symmetry.
	SeedState(x0, vy0 float64) kleo.State

	// CorrectionIndices are the state components Newton refinement is
	// allowed to adjust. The scan scalar x0 stays fixed so the catalog
	// remains parameterized by it.
	CorrectionIndices() []int

	// ResidualIndices are the velocity components whose values at the
	// y = 0 return crossing form the periodicity residual.
	ResidualIndices() []int

	// Family tags a converged seed for the output catalog.
	Family(seed kleo.State) string
}

// NewSymmetry builds the mapping for typ. z0 is only used by the
// vertical symmetry (seed plane offset).
func NewSymmetry(typ SymmetryType, z0 float64) (Symmetry, error) {
	switch typ {
	case SymmetryPlanar:
		return planarSymmetry{}, nil
	case SymmetryVertical:
		return verticalSymmetry{z0: z0}, nil
	default:
		return nil, fmt.Errorf("%w: unknown symmetry %q", kleo.ErrInvalidConfig, typ)
	}
}

type planarSymmetry struct{}

func (planarSymmetry) Type() SymmetryType { return SymmetryPlanar }

func (planarSymmetry) SeedState(x0, vy0 float64) kleo.State {
	return kleo.State{x0, 0, 0, 0, vy0, 0}
}

func (planarSymmetry) CorrectionIndices() []int { return []int{kleo.IVY} }
func (planarSymmetry) ResidualIndices() []int   { return []int{kleo.IVX} }

func (planarSymmetry) Family(seed kleo.State) string {
	// Sign of the inertial angular momentum at the seed point.
	lz := seed[kleo.IX] * (seed[kleo.IVY] + seed[kleo.IX])
	if lz >= 0 {
		return "planar-prograde"
	}
	return "planar-retrograde"
}

type verticalSymmetry struct {
	z0 float64
}

func (verticalSymmetry) Type() SymmetryType { return SymmetryVertical }

func (v verticalSymmetry) SeedState(x0, vy0 float64) kleo.State {
	return kleo.State{x0, 0, v.z0, 0, vy0, 0}
}

func (verticalSymmetry) CorrectionIndices() []int { return []int{kleo.IZ, kleo.IVY} }
func (verticalSymmetry) ResidualIndices() []int   { return []int{kleo.IVX, kleo.IVZ} }

func (verticalSymmetry) Family(kleo.State) string { return "vertical" }
