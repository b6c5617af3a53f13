package types

import (
	"errors"
	"fmt"
)

// Sentinel errors for the engine's error taxonomy. Callers match with
// errors.Is; storage and service layers wrap them with context via %w.
var (
	// ErrNotFound indicates an unknown entity or candidate id.
	ErrNotFound = errors.New("not found")

	// ErrAlreadyDecided indicates an approve/reject/merge attempt on a
	// candidate that is no longer pending. The decision already taken is
	// never silently re-applied.
	ErrAlreadyDecided = errors.New("candidate already decided")

	// ErrEmptyName indicates a record whose name is empty after
	// normalization. Such records are never merged; the resolver treats
	// them as unmatchable and safe to create fresh.
	ErrEmptyName = errors.New("empty name")
)

// MergeExecutionError wraps a failure partway through a merge, such as a
// storage constraint violation the equivalence check did not anticipate.
// The enclosing transaction has been rolled back when this is returned.
//
// Scanners recover from it locally by downgrading the pair to a pending
// review candidate; manual approvals surface it to the operator with the
// candidate left pending for retry.
type MergeExecutionError struct {
	CanonicalID int64
	DuplicateID int64
	Err         error
}

func (e *MergeExecutionError) Error() string {
	return fmt.Sprintf("merge of %d into %d failed: %v", e.DuplicateID, e.CanonicalID, e.Err)
}

func (e *MergeExecutionError) Unwrap() error {
	return e.Err
}
