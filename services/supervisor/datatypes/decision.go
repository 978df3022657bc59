// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package datatypes

import (
	"fmt"

	"github.com/go-playground/validator/v10"
)

// DecisionKind is the action class a decision selects.
type DecisionKind string

const (
	// DecisionHandoff delegates control to a named specialist.
	DecisionHandoff DecisionKind = "handoff"

	// DecisionFinal terminates the turn with a response to the user.
	DecisionFinal DecisionKind = "final"

	// DecisionContinue asks for another supervisor reasoning step.
	DecisionContinue DecisionKind = "continue"
)

// Decision is the normalized output of one supervisor reasoning step.
//
// The executor treats the reasoning backend as a black box: only the
// shape of the decision is validated, never how it was produced.
// A decision that fails Validate is handled as recoverable: the
// executor appends a diagnostic and loops back to the supervisor.
type Decision struct {
	// Kind selects the action. Unrecognized kinds route back to the
	// supervisor, bounded by the executor step limit.
	Kind DecisionKind `json:"kind" validate:"required"`

	// Target names the specialist for handoff decisions.
	Target string `json:"target,omitempty" validate:"required_if=Kind handoff"`

	// Args is the payload delivered to the specialist.
	Args map[string]any `json:"args,omitempty"`

	// Message is the terminal response text for final decisions.
	Message string `json:"message,omitempty" validate:"required_if=Kind final"`
}

var decisionValidate = validator.New()

// Validate checks that the decision carries the fields its kind
// requires: handoff needs a target, final needs a message.
func (d *Decision) Validate() error {
	if d == nil {
		return fmt.Errorf("decision is nil")
	}
	if err := decisionValidate.Struct(d); err != nil {
		return fmt.Errorf("malformed %s decision: %w", d.Kind, err)
	}
	return nil
}

// ContinueDecision returns a decision requesting another supervisor step.
func ContinueDecision() *Decision {
	return &Decision{Kind: DecisionContinue}
}

// HandoffDecision returns a decision delegating to the named specialist.
func HandoffDecision(target string, args map[string]any) *Decision {
	return &Decision{Kind: DecisionHandoff, Target: target, Args: args}
}

// FinalDecision returns a decision terminating with message.
func FinalDecision(message string) *Decision {
	return &Decision{Kind: DecisionFinal, Message: message}
}
