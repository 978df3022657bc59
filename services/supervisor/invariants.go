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
	"fmt"

	"github.com/AleutianAI/tripmate/services/supervisor/datatypes"
)

// Rule identifiers carried by violations. Machine-readable, stable.
const (
	// RuleDatesItinerary: if travel dates are set, the itinerary must
	// contain at least one flight and one lodging entry.
	RuleDatesItinerary = "dates_itinerary"

	// RuleBudgetBundles: if a budget is set, priced bundles must exist.
	RuleBudgetBundles = "budget_bundles"

	// RuleBookingApproval: a booking may only exist with approval set.
	RuleBookingApproval = "booking_approval"

	// RuleHandoffRegistered: a pending handoff must name a registered
	// specialist.
	RuleHandoffRegistered = "handoff_registered"

	// RuleTurnMonotonic: the turn counter never decreases.
	RuleTurnMonotonic = "turn_monotonic"
)

// Violation is one broken consistency rule, with a machine-readable
// rule id and a human-readable explanation.
type Violation struct {
	Rule        string `json:"rule"`
	Explanation string `json:"explanation"`
}

// Checker validates state snapshots against the cross-field rules.
//
// Checks are pure: the checker never mutates state. On a failing state
// every broken rule is reported, not just the first, so a compensating
// supervisor turn can see the full picture.
//
// Thread Safety: Checker is immutable after construction and safe for
// concurrent use.
type Checker struct {
	registered map[string]struct{}
}

// NewChecker creates a checker that treats the given specialist names
// as the registered set for the handoff rule.
func NewChecker(specialists []string) *Checker {
	reg := make(map[string]struct{}, len(specialists))
	for _, name := range specialists {
		reg[name] = struct{}{}
	}
	return &Checker{registered: reg}
}

// Check evaluates the per-snapshot rules against state and returns one
// violation per broken rule. A nil or empty result means the state is
// consistent.
func (c *Checker) Check(state *datatypes.TripState) []Violation {
	var out []Violation

	if state.Slots.HasDates() && !(state.HasFlights() && state.HasLodging()) {
		out = append(out, Violation{
			Rule: RuleDatesItinerary,
			Explanation: fmt.Sprintf(
				"dates %s..%s are set but the itinerary is missing flights or lodging",
				state.Slots.StartDate, state.Slots.EndDate),
		})
	}

	if state.Slots.HasBudget() && len(state.Bundles) == 0 {
		out = append(out, Violation{
			Rule: RuleBudgetBundles,
			Explanation: fmt.Sprintf(
				"budget %q is set but no priced bundles have been computed",
				state.Slots.Budget),
		})
	}

	if state.Booking != nil && !state.Approval {
		out = append(out, Violation{
			Rule:        RuleBookingApproval,
			Explanation: "a booking exists but approval was never granted",
		})
	}

	if state.PendingHandoff != "" {
		if _, ok := c.registered[state.PendingHandoff]; !ok {
			out = append(out, Violation{
				Rule: RuleHandoffRegistered,
				Explanation: fmt.Sprintf(
					"pending handoff names unregistered specialist %q",
					state.PendingHandoff),
			})
		}
	}

	return out
}

// CheckStep evaluates Check on next plus the cross-snapshot turn
// counter rule. prev may be nil for the first snapshot of a session.
func (c *Checker) CheckStep(prev, next *datatypes.TripState) []Violation {
	out := c.Check(next)

	if prev != nil && next.TurnCount < prev.TurnCount {
		out = append(out, Violation{
			Rule: RuleTurnMonotonic,
			Explanation: fmt.Sprintf(
				"turn count went backwards: %d -> %d",
				prev.TurnCount, next.TurnCount),
		})
	}

	return out
}
