package store

import "errors"

var (
	// ErrUnauthenticated indicates the caller has no valid identity.
	// Rejected before any transaction begins, never retried.
	ErrUnauthenticated = errors.New("authentication required")

	// ErrNotFound indicates the target post or comment does not exist
	// at transaction time.
	ErrNotFound = errors.New("not found")

	// ErrPermissionDenied indicates the caller lacks rights over the
	// target (editing another user's comment, non-author pinning).
	ErrPermissionDenied = errors.New("permission denied")

	// ErrConflict indicates the transaction could not commit. Retried
	// by the coordinator up to its budget before surfacing.
	ErrConflict = errors.New("transaction conflict")

	// ErrValidation indicates malformed input (empty text, out-of-range
	// length). Rejected before any transaction is opened.
	ErrValidation = errors.New("invalid input")
)

// IsNotFound checks if an error is a "not found" error.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsConflict checks if an error is a retryable commit conflict.
func IsConflict(err error) bool {
	return errors.Is(err, ErrConflict)
}

// IsPermissionDenied checks if an error is an authorization failure.
func IsPermissionDenied(err error) bool {
	return errors.Is(err, ErrPermissionDenied)
}

// IsValidation checks if an error is a validation error.
func IsValidation(err error) bool {
	return errors.Is(err, ErrValidation)
}
