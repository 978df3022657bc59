// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package supervisor

import (
	"errors"
	"testing"
)

func TestStateMachine_ValidTransitions(t *testing.T) {
	machine := NewStateMachine()

	valid := []struct {
		from, to ExecState
	}{
		{StateStart, StateSupervisor},
		{StateSupervisor, StateSupervisor},
		{StateSupervisor, StateHandoff},
		{StateSupervisor, StateRespond},
		{StateSupervisor, StateErrorRecovery},
		{StateHandoff, StateSupervisor},
		{StateHandoff, StateErrorRecovery},
		{StateErrorRecovery, StateSupervisor},
		{StateErrorRecovery, StateRespond},
		{StateRespond, StateEnd},
	}

	for _, tt := range valid {
		t.Run(tt.from.String()+"->"+tt.to.String(), func(t *testing.T) {
			if !machine.CanTransition(tt.from, tt.to) {
				t.Errorf("CanTransition(%s, %s) = false, want true", tt.from, tt.to)
			}
		})
	}
}

func TestStateMachine_InvalidTransitions(t *testing.T) {
	machine := NewStateMachine()

	invalid := []struct {
		from, to ExecState
	}{
		{StateStart, StateHandoff},
		{StateStart, StateRespond},
		{StateStart, StateEnd},
		{StateHandoff, StateHandoff},
		{StateHandoff, StateRespond},
		{StateHandoff, StateEnd},
		{StateErrorRecovery, StateHandoff},
		{StateErrorRecovery, StateEnd},
		{StateRespond, StateSupervisor},
		{StateEnd, StateStart},
		{StateEnd, StateSupervisor},
		{ExecState("BOGUS"), StateSupervisor},
	}

	for _, tt := range invalid {
		t.Run(tt.from.String()+"->"+tt.to.String(), func(t *testing.T) {
			if machine.CanTransition(tt.from, tt.to) {
				t.Errorf("CanTransition(%s, %s) = true, want false", tt.from, tt.to)
			}
		})
	}
}

func TestStateMachine_TransitionUpdatesSession(t *testing.T) {
	machine := NewStateMachine()
	sess := NewSession()

	if sess.ExecState() != StateStart {
		t.Fatalf("new session in %s, want START", sess.ExecState())
	}

	if err := machine.Transition(sess, StateSupervisor); err != nil {
		t.Fatalf("Transition: %v", err)
	}
	if sess.ExecState() != StateSupervisor {
		t.Errorf("ExecState = %s, want SUPERVISOR", sess.ExecState())
	}
}

func TestStateMachine_TransitionRejectsInvalidEdge(t *testing.T) {
	machine := NewStateMachine()
	sess := NewSession()

	err := machine.Transition(sess, StateEnd)
	if !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("err = %v, want ErrInvalidTransition", err)
	}
	if sess.ExecState() != StateStart {
		t.Errorf("failed transition moved session to %s", sess.ExecState())
	}
}

func TestStateMachine_ValidTransitionsFrom(t *testing.T) {
	machine := NewStateMachine()

	got := machine.ValidTransitionsFrom(StateErrorRecovery)
	want := map[ExecState]bool{StateSupervisor: true, StateRespond: true}
	if len(got) != len(want) {
		t.Fatalf("successors = %v", got)
	}
	for _, s := range got {
		if !want[s] {
			t.Errorf("unexpected successor %s", s)
		}
	}

	if successors := machine.ValidTransitionsFrom(StateEnd); len(successors) != 0 {
		t.Errorf("END has successors: %v", successors)
	}
	if successors := machine.ValidTransitionsFrom(ExecState("BOGUS")); successors != nil {
		t.Errorf("unknown state has successors: %v", successors)
	}
}

func TestExecState_IsTerminal(t *testing.T) {
	for _, s := range AllExecStates() {
		if got, want := s.IsTerminal(), s == StateEnd; got != want {
			t.Errorf("%s.IsTerminal() = %v, want %v", s, got, want)
		}
	}
}
