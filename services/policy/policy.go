// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package policy provides decision backends for the trip supervisor.
//
// A policy inspects a read-only view of the session state and emits the
// next decision: continue reasoning, hand off to a specialist, or
// answer the user. HeuristicPolicy is the default keyword-driven
// backend; OpenAIPolicy delegates the decision to a chat model.
package policy

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/AleutianAI/tripmate/services/supervisor/datatypes"
)

// Specialist names the policies route to. They must match the names
// registered with the supervisor's registry.
const (
	SpecialistPlanner = "planner"
	SpecialistFlights = "flights"
	SpecialistHotels  = "hotels"
	SpecialistBudget  = "budget"
	SpecialistBooking = "booking"
)

// HeuristicPolicy routes by keyword intent plus state completeness.
//
// Description:
//
//	The routing mirrors a staged pipeline: extract trip slots first,
//	then search flights, then lodging, then compute budget bundles,
//	and only book once the user has approved a bundle. The last user
//	message supplies intent; the state supplies what is still missing,
//	so a compensating pass after a rejected patch naturally routes to
//	the specialist whose contribution is absent.
type HeuristicPolicy struct{}

// NewHeuristicPolicy returns the keyword-driven backend.
func NewHeuristicPolicy() *HeuristicPolicy {
	return &HeuristicPolicy{}
}

var _planKeywords = []string{"plan", "trip", "go to", "visit", "travel", "vacation"}

func containsAny(s string, keywords []string) bool {
	for _, k := range keywords {
		if strings.Contains(s, k) {
			return true
		}
	}
	return false
}

// Decide implements the supervisor's decision contract.
func (p *HeuristicPolicy) Decide(_ context.Context, view *datatypes.TripState) (*datatypes.Decision, error) {
	var msg string
	if m, ok := view.LastUserMessage(); ok {
		msg = strings.ToLower(m.Content)
	}

	wantsBooking := containsAny(msg, []string{"book", "confirm", "reserve"})
	wantsFlights := strings.Contains(msg, "flight")
	wantsHotels := containsAny(msg, []string{"hotel", "lodging", "stay", "accommodation"})
	wantsBudget := containsAny(msg, []string{"budget", "bundle", "cost", "cheap", "price"})
	wantsPlanning := containsAny(msg, _planKeywords) || wantsFlights || wantsHotels

	// Booking intent is handled first: it either delegates or asks for
	// the approval it is missing.
	if wantsBooking {
		switch {
		case len(view.Bundles) == 0 && view.Slots.HasBudget():
			return datatypes.HandoffDecision(SpecialistBudget, nil), nil
		case len(view.Bundles) == 0:
			return datatypes.FinalDecision("I need a budget before I can prepare booking options. What's your total budget?"), nil
		case !view.Approval:
			return datatypes.FinalDecision("I have bundle options ready. Please approve a bundle before I book anything."), nil
		default:
			return datatypes.HandoffDecision(SpecialistBooking, map[string]any{
				"bundle": view.Bundles[0].Name,
			}), nil
		}
	}

	// Slot extraction comes before any search.
	if view.Slots.Destination == "" && wantsPlanning {
		return datatypes.HandoffDecision(SpecialistPlanner, nil), nil
	}

	if view.Slots.HasDates() {
		if !view.HasFlights() && (wantsFlights || wantsPlanning) {
			return datatypes.HandoffDecision(SpecialistFlights, nil), nil
		}
		if !view.HasLodging() && (wantsHotels || wantsPlanning) {
			return datatypes.HandoffDecision(SpecialistHotels, nil), nil
		}
	}

	if view.Slots.HasBudget() && len(view.Bundles) == 0 &&
		(wantsBudget || (view.HasFlights() && view.HasLodging())) {
		return datatypes.HandoffDecision(SpecialistBudget, nil), nil
	}

	if !wantsPlanning && !wantsBudget {
		return datatypes.FinalDecision("How can I help plan your trip? Tell me where you want to go, your dates, and your budget."), nil
	}

	return datatypes.FinalDecision(summarize(view)), nil
}

// summarize composes a direct answer from whatever the state holds.
func summarize(view *datatypes.TripState) string {
	var b strings.Builder

	if view.Booking != nil {
		fmt.Fprintf(&b, "Your %s bundle is booked, reference %s. ",
			view.Booking.BundleName, view.Booking.Reference)
	}

	if view.Slots.Destination != "" {
		fmt.Fprintf(&b, "Trip to %s", view.Slots.Destination)
		if view.Slots.HasDates() {
			fmt.Fprintf(&b, " from %s to %s", view.Slots.StartDate, view.Slots.EndDate)
		}
		b.WriteString(". ")
	}

	if view.HasFlights() {
		fmt.Fprintf(&b, "%d flight option(s) found. ", len(view.Itinerary.Flights))
	}
	if view.HasLodging() {
		fmt.Fprintf(&b, "%d lodging option(s) found. ", len(view.Itinerary.Lodging))
	}

	if len(view.Bundles) > 0 {
		b.WriteString("Bundles: ")
		for i, bundle := range view.Bundles {
			if i > 0 {
				b.WriteString(", ")
			}
			fmt.Fprintf(&b, "%s (%.0f %s)", bundle.Name, bundle.TotalCost, bundle.Currency)
		}
		b.WriteString(". ")
	}

	if b.Len() == 0 {
		return "I don't have enough trip details yet. Tell me your destination, dates, and budget."
	}
	return strings.TrimSpace(b.String())
}

// ScriptedPolicy replays a fixed sequence of decisions. It exists for
// tests and demos; once the script is exhausted it answers with a
// fixed final message.
type ScriptedPolicy struct {
	mu     sync.Mutex
	script []*datatypes.Decision
	idx    int

	// Fallback is returned after the script runs out. Defaults to a
	// final "script exhausted" decision.
	Fallback *datatypes.Decision
}

// NewScriptedPolicy builds a policy replaying the given decisions.
func NewScriptedPolicy(script ...*datatypes.Decision) *ScriptedPolicy {
	return &ScriptedPolicy{script: script}
}

func (p *ScriptedPolicy) Decide(_ context.Context, _ *datatypes.TripState) (*datatypes.Decision, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.idx < len(p.script) {
		d := p.script[p.idx]
		p.idx++
		return d, nil
	}
	if p.Fallback != nil {
		return p.Fallback, nil
	}
	return datatypes.FinalDecision("script exhausted"), nil
}
