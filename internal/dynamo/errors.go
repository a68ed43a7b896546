package dynamo

import (
	"errors"
	"fmt"
)

// Domain errors for identification.
var (
	// ErrDimensionMismatch indicates a model, matrix or data shape disagreement.
	ErrDimensionMismatch = errors.New("dynamo: dimension mismatch")

	// ErrInsufficientData indicates a batch request larger than the fit record supports.
	ErrInsufficientData = errors.New("dynamo: insufficient data for requested batch")

	// ErrDegenerateLossScale indicates the initial loss is zero or non-finite.
	ErrDegenerateLossScale = errors.New("dynamo: degenerate loss scale")

	// ErrNonFiniteLoss indicates a NaN or Inf loss during training.
	ErrNonFiniteLoss = errors.New("dynamo: non-finite loss")

	// ErrInvalidState indicates a state vector with NaN or Inf entries.
	ErrInvalidState = errors.New("dynamo: invalid state (NaN or Inf detected)")
)

// Mismatch wraps ErrDimensionMismatch with the offending shapes.
func Mismatch(what string, want, got int) error {
	return fmt.Errorf("%w: %s want %d, got %d", ErrDimensionMismatch, what, want, got)
}

// StepError wraps an error with the integration step that produced it.
type StepError struct {
	Step    int
	Time    float64
	Wrapped error
}

func (e *StepError) Error() string {
	return fmt.Sprintf("step %d (t=%.4f): %v", e.Step, e.Time, e.Wrapped)
}

func (e *StepError) Unwrap() error {
	return e.Wrapped
}
