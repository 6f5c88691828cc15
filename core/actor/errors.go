package actor

import "errors"

var (
	ErrStopped     = errors.New("actor stopped")
	ErrSelfRequest = errors.New("actor cannot wait on itself")
	ErrPanic       = errors.New("actor handler panicked")
)
