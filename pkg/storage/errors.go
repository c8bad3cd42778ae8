package storage

import "errors"

// Sentinel errors for storage operations.
var (
	// ErrNotFound is returned when a project or message does not exist.
	ErrNotFound = errors.New("record not found")

	// ErrConflict is returned when a write would violate a uniqueness
	// constraint, or when a versioned update lost a race.
	ErrConflict = errors.New("record conflict")
)
