package storage

import "errors"

var (
	// ErrNotFound is returned when a lookup matches no row.
	ErrNotFound = errors.New("record not found")

	// ErrDuplicateKey is returned when an insert violates a uniqueness
	// constraint, e.g. a second mapping for the same cost center.
	ErrDuplicateKey = errors.New("duplicate key")
)
