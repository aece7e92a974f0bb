package kleo

import (
	"errors"
	"fmt"
)

// Sentinel errors for integration and search failures.
var (
	// ErrNonFiniteState indicates a NaN or Inf appeared in the state or
	// its derivative (trajectory left the model's domain of validity).
	ErrNonFiniteState = errors.New("kleo: non-finite state")

	// ErrStepTooSmall indicates the adaptive step underflowed the minimum
	// without meeting tolerance, typically on close approach to a mass.
	ErrStepTooSmall = errors.New("kleo: adaptive step below minimum")

	// ErrMaxStepsExceeded indicates the step budget ran out before tmax.
	ErrMaxStepsExceeded = errors.New("kleo: step budget exceeded")

	// ErrNoBracket indicates event refinement could not bracket a sign
	// change that step-level detection reported. This is a bug signal,
	// not an expected outcome.
	ErrNoBracket = errors.New("kleo: event sign change lost during refinement")

	// ErrInvalidConfig indicates invalid physical or search parameters.
	// Fatal: surfaced before any candidate work starts.
	ErrInvalidConfig = errors.New("kleo: invalid configuration")
)

// IntegrationError wraps a sentinel with the step and time at which the
// integration gave up.
type IntegrationError struct {
	Step    int
	Time    float64
	Wrapped error
}

func (e *IntegrationError) Error() string {
	return fmt.Sprintf("integration failed at step %d (t=%.6g): %v", e.Step, e.Time, e.Wrapped)
}

func (e *IntegrationError) Unwrap() error {
	return e.Wrapped
}
