package statemachine

import (
	"fmt"
	"maps"
	"slices"
)

// State is a node of a lifecycle.
type State string

// Event moves a lifecycle from one state to another.
type Event string

// Transition is one edge of a table.
type Transition struct {
	From  State
	Event Event
	To    State
}

// Table is an immutable set of transitions with an initial state.
type Table struct {
	initial State
	edges   map[State]map[Event]State
}

// New builds a table. Duplicate edges are allowed; conflicting ones are not.
func New(initial State, transitions ...Transition) (*Table, error) {
	if initial == "" {
		return nil, ErrInvalidState
	}

	t := &Table{initial: initial, edges: make(map[State]map[Event]State)}
	for i, tr := range transitions {
		if tr.From == "" || tr.Event == "" || tr.To == "" {
			return nil, fmt.Errorf("%w: transition %d", ErrInvalidTransition, i)
		}
		out, ok := t.edges[tr.From]
		if !ok {
			out = make(map[Event]State)
			t.edges[tr.From] = out
		}
		if to, ok := out[tr.Event]; ok && to != tr.To {
			return nil, fmt.Errorf("%w: %q on %q leads to both %q and %q", ErrAmbiguousTransition, tr.From, tr.Event, to, tr.To)
		}
		out[tr.Event] = tr.To
	}
	return t, nil
}

// MustNew is New for package-level tables.
func MustNew(initial State, transitions ...Transition) *Table {
	t, err := New(initial, transitions...)
	if err != nil {
		panic(err)
	}
	return t
}

func (t *Table) Initial() State { return t.initial }

// IsTerminal reports whether s has no outgoing transitions.
func (t *Table) IsTerminal(s State) bool {
	return len(t.edges[s]) == 0
}

// Events returns the events s accepts, sorted.
func (t *Table) Events(s State) []Event {
	return slices.Sorted(maps.Keys(t.edges[s]))
}

// Next returns the state event leads to from s.
func (t *Table) Next(s State, event Event) (State, error) {
	to, ok := t.edges[s][event]
	if !ok {
		return "", &TransitionError{From: s, Event: event}
	}
	return to, nil
}

// Start returns a run positioned at the initial state.
func (t *Table) Start() *Machine {
	return t.Resume(t.initial)
}

// Resume returns a run positioned at s, for lifecycles whose earlier steps
// happened in another process or request.
func (t *Table) Resume(s State) *Machine {
	return &Machine{table: t, current: s, history: []State{s}}
}
