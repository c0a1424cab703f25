package repository

import "errors"

var (
	// ErrNotFound is returned when a requested entity does not exist.
	ErrNotFound = errors.New("entity not found")

	// ErrDuplicateOpenTrip is returned when inserting an OPEN trip for a
	// user who already has one. The storage layer enforces this with a
	// partial unique index, so two racing entries cannot both succeed.
	ErrDuplicateOpenTrip = errors.New("user already has an open trip")
)
