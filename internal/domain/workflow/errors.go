package workflow

import "errors"

var (
	// ErrInvalidTransition is returned when a state transition is not allowed
	ErrInvalidTransition = errors.New("invalid state transition")

	// ErrGuardFailed is returned when every guard of a trigger rejects it
	ErrGuardFailed = errors.New("guard condition failed")
)
