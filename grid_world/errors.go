package grid_world

import "errors"

// The error taxonomy shared by every package operating on a grid. Returned errors wrap
// one of these, so callers should test with errors.Is.
var (
	// ErrConfiguration means a dimension, probability or hyper-parameter is out of range.
	ErrConfiguration = errors.New("configuration error")
	// ErrInvariantViolation means an edit would break the start/goal rules. The grid is unchanged.
	ErrInvariantViolation = errors.New("invariant violation")
	// ErrOutOfBounds means a coordinate transform or edit targeted a position outside the grid.
	ErrOutOfBounds = errors.New("out of bounds")
)
