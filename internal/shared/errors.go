package shared

import "errors"

var (
	// ErrNotFound indicates a referenced resource does not exist.
	ErrNotFound = errors.New("not found")
	// ErrInvalidInput indicates a request rejected before any state mutation.
	ErrInvalidInput = errors.New("invalid input")
	// ErrConflict indicates concurrent-update contention; the caller may resubmit.
	ErrConflict = errors.New("conflict")
)
