// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package events provides event types and broadcasting for the
// supervisor graph.
//
// Events let hosting code observe orchestration behavior, such as
// transitions and invariant violations, without coupling to the
// executor implementation.
//
// Thread Safety:
//
//	All types in this package are designed for concurrent use.
package events

// Type identifies the kind of event.
type Type string

const (
	// TypeSessionStart is emitted when a session is created.
	TypeSessionStart Type = "session_start"

	// TypeSessionEnd is emitted when a session is explicitly ended.
	TypeSessionEnd Type = "session_end"

	// TypeStateTransition is emitted when the executor changes node.
	TypeStateTransition Type = "state_transition"

	// TypeDecision is emitted after a supervisor reasoning step.
	TypeDecision Type = "decision"

	// TypeHandoff is emitted when control is delegated to a specialist.
	TypeHandoff Type = "handoff"

	// TypeSpecialistResult is emitted when a specialist returns.
	TypeSpecialistResult Type = "specialist_result"

	// TypeInvariantViolation is emitted when a patch is rejected.
	TypeInvariantViolation Type = "invariant_violation"

	// TypeRespond is emitted when a turn produces its response.
	TypeRespond Type = "respond"
)

// Event is one observation of the orchestration graph.
//
// Events should be treated as immutable after creation. States are
// recorded as plain strings so this package stays free of executor
// dependencies.
type Event struct {
	// ID is a unique identifier for this event.
	ID string `json:"id"`

	// Type identifies the kind of event.
	Type Type `json:"type"`

	// SessionID links the event to a session.
	SessionID string `json:"session_id"`

	// Timestamp is when the event occurred (Unix milliseconds UTC).
	Timestamp int64 `json:"timestamp"`

	// Data contains event-specific data: one of StateTransitionData,
	// DecisionData, HandoffData, SpecialistResultData, ViolationData,
	// or RespondData.
	Data any `json:"data,omitempty"`
}

// StateTransitionData is the payload for state transition events.
type StateTransitionData struct {
	From   string `json:"from"`
	To     string `json:"to"`
	Reason string `json:"reason,omitempty"`
}

// DecisionData is the payload for decision events.
type DecisionData struct {
	Kind   string `json:"kind"`
	Target string `json:"target,omitempty"`
}

// HandoffData is the payload for handoff events.
type HandoffData struct {
	Specialist string `json:"specialist"`
}

// SpecialistResultData is the payload for specialist result events.
type SpecialistResultData struct {
	Specialist string `json:"specialist"`
	Success    bool   `json:"success"`
	Error      string `json:"error,omitempty"`
}

// ViolationData is the payload for invariant violation events.
type ViolationData struct {
	Rules []string `json:"rules"`
}

// RespondData is the payload for respond events.
type RespondData struct {
	Message string `json:"message"`

	// Failure is set when the response is a terminal failure
	// (step limit or retry budget exhaustion).
	Failure string `json:"failure,omitempty"`
}
