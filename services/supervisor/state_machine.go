// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package supervisor implements the orchestration graph that routes
// control between the supervisor reasoning step and specialist
// delegates while enforcing cross-field consistency on session state.
//
// The graph is a small finite state machine: START, SUPERVISOR,
// HANDOFF, RESPOND, END, plus an ERROR_RECOVERY pseudo-state entered on
// invariant violations and specialist failures. The executor drives one
// turn at a time per session; independent sessions run fully in
// parallel.
//
// Thread Safety:
//
//	All exported types in this package are safe for concurrent use.
//	Per-session execution is serialized by the session itself.
package supervisor

import "fmt"

// ExecState is a node of the executor state machine.
type ExecState string

const (
	// StateStart is the entry node of every turn.
	StateStart ExecState = "START"

	// StateSupervisor runs one external reasoning step.
	StateSupervisor ExecState = "SUPERVISOR"

	// StateHandoff delegates to a specialist via the adapter.
	StateHandoff ExecState = "HANDOFF"

	// StateRespond emits the terminal response for the turn.
	StateRespond ExecState = "RESPOND"

	// StateEnd is the terminal node of a turn.
	StateEnd ExecState = "END"

	// StateErrorRecovery is entered on invariant violations, unknown
	// specialists, or specialist failures, and loops back to the
	// supervisor with a diagnostic until the retry budget runs out.
	StateErrorRecovery ExecState = "ERROR_RECOVERY"
)

// String returns the state name.
func (s ExecState) String() string {
	return string(s)
}

// IsTerminal reports whether the state ends the turn.
func (s ExecState) IsTerminal() bool {
	return s == StateEnd
}

// AllExecStates returns every node of the executor graph.
func AllExecStates() []ExecState {
	return []ExecState{
		StateStart,
		StateSupervisor,
		StateHandoff,
		StateRespond,
		StateEnd,
		StateErrorRecovery,
	}
}

// StateMachine enforces the executor transition table.
//
// Thread Safety: the transition table is immutable after construction;
// StateMachine is safe for concurrent use.
type StateMachine struct {
	transitions map[ExecState]map[ExecState]struct{}
}

// NewStateMachine builds the state machine with the graph's transition
// table:
//
//	START           -> SUPERVISOR
//	SUPERVISOR      -> SUPERVISOR | HANDOFF | RESPOND | ERROR_RECOVERY
//	HANDOFF         -> SUPERVISOR | ERROR_RECOVERY
//	ERROR_RECOVERY  -> SUPERVISOR | RESPOND
//	RESPOND         -> END
//	END             -> (terminal)
func NewStateMachine() *StateMachine {
	table := map[ExecState][]ExecState{
		StateStart:         {StateSupervisor},
		StateSupervisor:    {StateSupervisor, StateHandoff, StateRespond, StateErrorRecovery},
		StateHandoff:       {StateSupervisor, StateErrorRecovery},
		StateErrorRecovery: {StateSupervisor, StateRespond},
		StateRespond:       {StateEnd},
		StateEnd:           {},
	}

	transitions := make(map[ExecState]map[ExecState]struct{}, len(table))
	for from, tos := range table {
		set := make(map[ExecState]struct{}, len(tos))
		for _, to := range tos {
			set[to] = struct{}{}
		}
		transitions[from] = set
	}

	return &StateMachine{transitions: transitions}
}

// DefaultStateMachine is the shared transition table used by executors
// that are not given their own.
var DefaultStateMachine = NewStateMachine()

// CanTransition reports whether from -> to is an allowed edge.
func (m *StateMachine) CanTransition(from, to ExecState) bool {
	set, ok := m.transitions[from]
	if !ok {
		return false
	}
	_, ok = set[to]
	return ok
}

// Transition moves the session to the target state, or returns
// ErrInvalidTransition (wrapped with the offending edge) leaving the
// session state unchanged.
func (m *StateMachine) Transition(session *Session, to ExecState) error {
	from := session.ExecState()
	if !m.CanTransition(from, to) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, from, to)
	}
	session.setExecState(to)
	return nil
}

// ValidTransitionsFrom returns the allowed successor states of from.
func (m *StateMachine) ValidTransitionsFrom(from ExecState) []ExecState {
	set, ok := m.transitions[from]
	if !ok {
		return nil
	}

	// Deterministic ordering for callers that display the graph.
	var out []ExecState
	for _, s := range AllExecStates() {
		if _, ok := set[s]; ok {
			out = append(out, s)
		}
	}
	return out
}

// CanTransition checks an edge against the default state machine.
func CanTransition(from, to ExecState) bool {
	return DefaultStateMachine.CanTransition(from, to)
}

// Transition applies an edge on the default state machine.
func Transition(session *Session, to ExecState) error {
	return DefaultStateMachine.Transition(session, to)
}
