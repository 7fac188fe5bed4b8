package data

import (
	"errors"
	"fmt"
)

// Store error taxonomy. Callers match with errors.Is; handlers map these to
// HTTP status codes.
var (
	// ErrNotFound means the addressed record does not exist (for summary
	// updates this signals index/log drift).
	ErrNotFound = errors.New("record not found")

	// ErrExists means a unique constraint rejected the write.
	ErrExists = errors.New("record already exists")

	// ErrUnavailable wraps network/backend failures from the document store.
	ErrUnavailable = errors.New("store unavailable")

	// ErrMalformed means a stored document failed to decode into its typed
	// record. Surfaced instead of silently returning empty results.
	ErrMalformed = errors.New("malformed record")
)

// unavailable tags a driver error as a backend failure while keeping the
// original error in the chain.
func unavailable(err error) error {
	return fmt.Errorf("%w: %v", ErrUnavailable, err)
}

// malformed tags a decode error.
func malformed(err error) error {
	return fmt.Errorf("%w: %v", ErrMalformed, err)
}
