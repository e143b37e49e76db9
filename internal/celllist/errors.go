package celllist

import "errors"

var (
	// ErrTooManyCells indicates the nominal width would produce more cells
	// than the configured ceiling.
	ErrTooManyCells = errors.New("celllist: cell count exceeds ceiling")

	// ErrResourceExhausted indicates the per-cell capacity needed to hold
	// the densest cell exceeds the storage ceiling.
	ErrResourceExhausted = errors.New("celllist: cell storage exceeds ceiling")

	ErrInvalidWidth = errors.New("celllist: nominal width must be positive")
)
