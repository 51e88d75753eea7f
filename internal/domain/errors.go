package domain

import "errors"

var (
	// ErrJobNotFound is returned when a job id does not exist.
	ErrJobNotFound = errors.New("job not found")
	// ErrJobTerminal is returned when a transition is requested on a finished job.
	ErrJobTerminal = errors.New("job is in a terminal state")
)
