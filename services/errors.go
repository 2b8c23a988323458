package services

import "errors"

// Engine error kinds. Services wrap these with context via fmt.Errorf
// and callers branch with errors.Is.
var (
	// ErrValidation marks out-of-range input, e.g. a negative duration.
	ErrValidation = errors.New("validation error")
	// ErrNotFound marks an unknown user, entity, achievement or
	// participation id.
	ErrNotFound = errors.New("not found")
	// ErrConflict marks a duplicate grant attempt. Resolution treats it
	// as a no-op result, not a hard failure.
	ErrConflict = errors.New("conflict")
	// ErrComputation marks malformed historical data, e.g. a record with
	// no timestamp.
	ErrComputation = errors.New("computation error")
)
