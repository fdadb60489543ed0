package broker

import (
	"errors"

	"github.com/dmitrymomot/doorman/pkg/statemachine"
)

// Handshake states. AWAITING_CALLBACK is never stored: it is implied by a
// valid sealed transaction.
const (
	StateStart            statemachine.State = "START"
	StateAwaitingCallback statemachine.State = "AWAITING_CALLBACK"
	StateAuthenticated    statemachine.State = "AUTHENTICATED"
	StateDenied           statemachine.State = "DENIED"
	StateFailed           statemachine.State = "FAILED"
)

const (
	EventBegin        statemachine.Event = "begin"
	EventAuthenticate statemachine.Event = "authenticate"
	EventDeny         statemachine.Event = "deny"
	EventFail         statemachine.Event = "fail"
)

// lifecycle is shared by every handshake; each call takes its own cursor.
var lifecycle = statemachine.MustNew(StateStart,
	statemachine.Transition{From: StateStart, Event: EventBegin, To: StateAwaitingCallback},
	statemachine.Transition{From: StateStart, Event: EventFail, To: StateFailed},
	statemachine.Transition{From: StateAwaitingCallback, Event: EventAuthenticate, To: StateAuthenticated},
	statemachine.Transition{From: StateAwaitingCallback, Event: EventDeny, To: StateDenied},
	statemachine.Transition{From: StateAwaitingCallback, Event: EventFail, To: StateFailed},
)

// Outcome maps the error returned by Complete to the terminal state it
// leads to.
func Outcome(err error) statemachine.State {
	switch {
	case err == nil:
		return StateAuthenticated
	case errors.Is(err, ErrProviderDenied):
		return StateDenied
	default:
		return StateFailed
	}
}

func outcomeEvent(err error) statemachine.Event {
	switch Outcome(err) {
	case StateAuthenticated:
		return EventAuthenticate
	case StateDenied:
		return EventDeny
	default:
		return EventFail
	}
}
