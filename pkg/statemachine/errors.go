package statemachine

import "errors"

var (
	// ErrInvalidTransition indicates a malformed transition definition.
	ErrInvalidTransition = errors.New("statemachine: invalid transition")

	// ErrNoTransition indicates the event is not defined for the current state.
	ErrNoTransition = errors.New("statemachine: no transition")

	// ErrGuardRejected indicates a guard vetoed the transition.
	ErrGuardRejected = errors.New("statemachine: guard rejected")
)
