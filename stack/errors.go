package stack

import "errors"

// Generation-time errors are fatal: once one occurs the model's invariants
// cannot be trusted, so the tracker latches the error and refuses further
// work (see Tracker.Err).

var (
	// ErrVariableNotFound indicates a referenced variable is not present in
	// the stack model.
	ErrVariableNotFound = errors.New("variable not found")

	// ErrInvalidSize indicates a variable size or slot range that is not
	// representable (sizes must be at least one slot).
	ErrInvalidSize = errors.New("invalid size")

	// ErrBranchShapeMismatch indicates the two arms of a conditional left
	// incompatible stack shapes and cannot be merged. There is no automatic
	// reconciliation; the caller must redesign the branches.
	ErrBranchShapeMismatch = errors.New("branch shape mismatch")
)
