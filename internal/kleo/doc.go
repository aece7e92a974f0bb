// Package kleo provides the core numeric types shared by the KleoProj
// packages: the state vector, the dynamical-system interface consumed by
// the integrators, and the error taxonomy for integration and search
// failures.
//
// All quantities are expressed in the normalized synodic frame of the
// dipole-segment model (segment length 1, rotation rate 1); see
// [github.com/gavinathaya/KleoProj/internal/field] for the parameter set.
package kleo
