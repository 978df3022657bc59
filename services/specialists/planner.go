// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package specialists implements the worker agents the trip supervisor
// delegates to. Each specialist consumes a read-only view of the
// session state and returns a patch with its contribution; it never
// mutates the view.
//
// The implementations here are deterministic demo providers: they
// produce plausible flights, lodging, and bundles without external
// calls. Swapping in a real provider means replacing one specialist
// behind the same registry name.
package specialists

import (
	"context"
	"regexp"
	"strings"

	"github.com/AleutianAI/tripmate/services/supervisor/datatypes"
)

// Planner extracts trip slots from the conversation: destination,
// dates, budget, party size, interests.
type Planner struct{}

// NewPlanner returns the slot-extraction specialist.
func NewPlanner() *Planner {
	return &Planner{}
}

func (p *Planner) Name() string { return "planner" }

var (
	isoDateRe = regexp.MustCompile(`\b(\d{4}-\d{2}-\d{2})\b`)
	budgetRe  = regexp.MustCompile(`(?i)\b(?:budget\s*(?:of|is)?\s*)?(\d{2,7})\s*(usd|eur|inr|gbp|jpy|\$|€|₹|£)`)
	destRe    = regexp.MustCompile(`\b(?i:to|visit|in)\s+([A-Z][a-zA-Z]+(?:\s[A-Z][a-zA-Z]+)?)`)
	originRe  = regexp.MustCompile(`\b(?i:from)\s+([A-Z][a-zA-Z]+(?:\s[A-Z][a-zA-Z]+)?)`)
	partyRe   = regexp.MustCompile(`(?i)\b(\d+)\s+(?:people|persons|adults|travellers|travelers)\b`)
)

var currencyNames = map[string]string{
	"$": "USD", "€": "EUR", "₹": "INR", "£": "GBP",
}

var interestKeywords = []string{
	"food", "museum", "museums", "beach", "hiking", "nightlife",
	"history", "shopping", "art", "nature",
}

// Invoke parses the latest user message and merges any slots it finds
// over the ones already known. It never erases a previously set slot.
func (p *Planner) Invoke(_ context.Context, _ map[string]any, view *datatypes.TripState) (*datatypes.Patch, error) {
	var text string
	if m, ok := view.LastUserMessage(); ok {
		text = m.Content
	}
	slots := datatypes.TripSlots{}

	if m := destRe.FindStringSubmatch(text); m != nil {
		slots.Destination = m[1]
	}
	if m := originRe.FindStringSubmatch(text); m != nil {
		slots.Origin = m[1]
	}

	if dates := isoDateRe.FindAllString(text, 2); len(dates) >= 1 {
		slots.StartDate = dates[0]
		if len(dates) >= 2 {
			slots.EndDate = dates[1]
		}
	}

	if m := budgetRe.FindStringSubmatch(text); m != nil {
		cur := strings.ToUpper(m[2])
		if name, ok := currencyNames[m[2]]; ok {
			cur = name
		}
		slots.Budget = m[1] + " " + cur
	}

	if m := partyRe.FindStringSubmatch(text); m != nil {
		slots.Party = m[1]
	}

	lower := strings.ToLower(text)
	for _, k := range interestKeywords {
		if strings.Contains(lower, k) {
			slots.Interests = append(slots.Interests, k)
		}
	}

	return &datatypes.Patch{Slots: &slots}, nil
}
