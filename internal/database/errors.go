package database

import "errors"

var (
	// ErrNotFound is returned when a record does not exist.
	ErrNotFound = errors.New("record not found")

	// ErrConflict is returned when a write would violate a uniqueness rule,
	// such as a second guardian with the same reference image path.
	ErrConflict = errors.New("record conflicts with an existing record")
)
