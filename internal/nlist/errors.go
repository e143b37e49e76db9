package nlist

import (
	"errors"
	"fmt"
)

var (
	// ErrMinimumImage indicates a box shorter than twice the largest list
	// radius along some axis.
	ErrMinimumImage = errors.New("nlist: box too small for minimum image with cutoff+buffer")

	// ErrResourceExhausted indicates neighbor or cell storage would exceed
	// its hard ceiling.
	ErrResourceExhausted = errors.New("nlist: neighbor storage exceeds ceiling")

	// ErrDegenerateStencil indicates a stencil that would span every cell.
	ErrDegenerateStencil = errors.New("nlist: degenerate stencil")

	ErrInvalidCutoff = errors.New("nlist: invalid cutoff or buffer")
	ErrTypeMismatch  = errors.New("nlist: particle type out of range")
	ErrInvalidBox    = errors.New("nlist: invalid box")
)

// BuildError wraps a fatal error with the step and phase it occurred in.
type BuildError struct {
	Step    uint64
	Op      string
	Wrapped error
}

func (e *BuildError) Error() string {
	return fmt.Sprintf("step %d: %s: %v", e.Step, e.Op, e.Wrapped)
}

func (e *BuildError) Unwrap() error {
	return e.Wrapped
}
