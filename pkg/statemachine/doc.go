// Package statemachine provides immutable transition tables for small,
// fixed lifecycles.
//
// A Table is built once, usually as a package variable, and shared. Each
// run of the lifecycle takes its own Machine from it with Start or Resume,
// so concurrent runs never share mutable state:
//
//	var lifecycle = statemachine.MustNew("start",
//		statemachine.Transition{From: "start", Event: "begin", To: "waiting"},
//		statemachine.Transition{From: "waiting", Event: "finish", To: "done"},
//	)
//
//	run := lifecycle.Start()
//	if err := run.Fire("begin"); err != nil {
//		// no such transition from the current state
//	}
//
// A state without outgoing transitions is terminal. Each state and event
// pair leads to at most one state; tables that say otherwise are rejected
// when they are built.
package statemachine
