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
	"fmt"
	"strings"
)

// Sentinel errors returned by the executor and session layer.
var (
	// ErrInvalidTransition indicates an executor state transition that
	// the state machine does not allow.
	ErrInvalidTransition = errors.New("invalid executor state transition")

	// ErrSessionNotFound indicates the session ID is not in the store.
	ErrSessionNotFound = errors.New("session not found")

	// ErrSessionInProgress indicates a turn is already executing for
	// the session. Turns are serialized per session ID.
	ErrSessionInProgress = errors.New("session turn already in progress")

	// ErrSessionEnded indicates the session was explicitly ended.
	ErrSessionEnded = errors.New("session already ended")

	// ErrEmptyMessage indicates a turn was submitted without text.
	ErrEmptyMessage = errors.New("empty user message")

	// ErrCanceled indicates the turn was canceled between steps. The
	// last fully applied snapshot remains valid.
	ErrCanceled = errors.New("turn canceled")

	// ErrStepLimitExceeded indicates the global supervisor turn budget
	// was exhausted. This is terminal and not retryable.
	ErrStepLimitExceeded = errors.New("supervisor step limit exceeded")
)

// UnknownSpecialistError reports a handoff decision naming a specialist
// that is not in the static registry. Recoverable: the executor loops
// back to the supervisor with a diagnostic note.
type UnknownSpecialistError struct {
	Target string
}

func (e *UnknownSpecialistError) Error() string {
	return fmt.Sprintf("unknown specialist %q", e.Target)
}

// MalformedDecisionError reports a supervisor decision that does not
// match the expected shape for its kind. Recoverable.
type MalformedDecisionError struct {
	Err error
}

func (e *MalformedDecisionError) Error() string {
	return fmt.Sprintf("malformed supervisor decision: %v", e.Err)
}

func (e *MalformedDecisionError) Unwrap() error { return e.Err }

// SpecialistFailure reports a delegate error, timeout, or malformed
// output, normalized by the adapter. Recoverable up to the configured
// retry budget, then terminal.
type SpecialistFailure struct {
	// Specialist is the delegate that failed.
	Specialist string

	// TimedOut is true when the invocation exceeded its deadline.
	TimedOut bool

	// Err is the underlying cause, if any.
	Err error
}

func (e *SpecialistFailure) Error() string {
	if e.TimedOut {
		return fmt.Sprintf("specialist %s timed out", e.Specialist)
	}
	return fmt.Sprintf("specialist %s failed: %v", e.Specialist, e.Err)
}

func (e *SpecialistFailure) Unwrap() error { return e.Err }

// InvariantViolationError reports one or more consistency rules broken
// by a patch. The executor does not advance the edge that produced the
// failing state; it asks the supervisor for a compensating action.
type InvariantViolationError struct {
	Violations []Violation
}

func (e *InvariantViolationError) Error() string {
	if len(e.Violations) == 0 {
		return "invariant violation"
	}
	rules := make([]string, len(e.Violations))
	for i, v := range e.Violations {
		rules[i] = v.Rule
	}
	return "invariant violation: " + strings.Join(rules, ", ")
}
