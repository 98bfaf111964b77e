package job

import "errors"

var (
	// ErrConflict is returned when a custom ID is already taken.
	ErrConflict = errors.New("job custom id already exists")
	// ErrNotFound is returned when a job or transaction does not exist.
	ErrNotFound = errors.New("record not found")
	// ErrTerminal is returned when a write targets a job that already
	// reached Completed or Failed.
	ErrTerminal = errors.New("job already in a terminal state")
)
