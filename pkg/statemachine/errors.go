package statemachine

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidState        = errors.New("statemachine: state must not be empty")
	ErrInvalidTransition   = errors.New("statemachine: transition needs from, event and to")
	ErrAmbiguousTransition = errors.New("statemachine: ambiguous transition")
	ErrNoTransition        = errors.New("statemachine: no transition")
)

// TransitionError reports an event that the current state does not accept.
// It matches ErrNoTransition with errors.Is.
type TransitionError struct {
	From  State
	Event Event
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("statemachine: no transition from %q on %q", e.From, e.Event)
}

func (e *TransitionError) Unwrap() error { return ErrNoTransition }
