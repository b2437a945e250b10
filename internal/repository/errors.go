package repository

import "errors"

var (
	// ErrNotFound is returned when a row does not exist or is not visible to
	// the requesting user.
	ErrNotFound = errors.New("not found")

	// ErrActiveStintExists is returned when an insert trips the one-active
	// partial unique index, i.e. another start won the race.
	ErrActiveStintExists = errors.New("active stint already exists")
)
