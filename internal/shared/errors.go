package shared

import "errors"

var (
	// ErrNotFound indicates a missing record.
	ErrNotFound = errors.New("not found")
	// ErrConflict indicates an optimistic concurrency conflict that survived
	// the bounded retry budget.
	ErrConflict = errors.New("concurrent update conflict")
)
