package domain

import "errors"

var (
	// ErrNotFound marks a reference to an unknown doctor, patient or
	// consultation.
	ErrNotFound = errors.New("not found")
	// ErrInvalidState marks an action against a participant or consultation
	// in an incompatible state. Callers treat it as a silent no-op toward the
	// client.
	ErrInvalidState = errors.New("invalid state")
)
