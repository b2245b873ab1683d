package rating

import "errors"

var (
	// ErrConflict means a rating record changed underneath the transaction.
	ErrConflict = errors.New("concurrent modification conflict")
	// ErrValidation marks outcomes that can never succeed as submitted.
	ErrValidation = errors.New("invalid match outcome")
	// ErrUnavailable wraps storage failures.
	ErrUnavailable = errors.New("storage unavailable")
	// ErrNotFound means the requested participant or match does not exist.
	ErrNotFound = errors.New("not found")
	// ErrDuplicate is returned by InsertMatch when the idempotency key is taken.
	ErrDuplicate = errors.New("idempotency key already applied")
)
