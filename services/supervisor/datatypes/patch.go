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

// Patch is a partial state update produced by one step of the graph.
//
// Nil fields are untouched; set fields are overlaid onto the prior
// snapshot. Apply performs no validation; the invariant layer is always
// run immediately after a patch is applied.
type Patch struct {
	// AppendMessages are appended to the conversation in order.
	AppendMessages []Message `json:"append_messages,omitempty"`

	// Slots overlays the non-empty fields onto the current slots.
	// Fields left empty in the patch keep their current value.
	Slots *TripSlots `json:"slots,omitempty"`

	// Itinerary replaces the current itinerary when set.
	Itinerary *Itinerary `json:"itinerary,omitempty"`

	// AddFlights appends flight legs, creating the itinerary if needed.
	AddFlights []FlightLeg `json:"add_flights,omitempty"`

	// AddLodging appends lodging entries, creating the itinerary if needed.
	AddLodging []Lodging `json:"add_lodging,omitempty"`

	// Bundles replaces the bundle list when non-nil.
	Bundles []Bundle `json:"bundles,omitempty"`

	// Approval sets the approval flag when non-nil.
	Approval *bool `json:"approval,omitempty"`

	// Booking sets the finalized booking when non-nil.
	Booking *Booking `json:"booking,omitempty"`

	// PendingHandoff sets the delegated specialist when non-nil.
	// Pointing at an empty string clears the marker.
	PendingHandoff *string `json:"pending_handoff,omitempty"`

	// TurnCount sets the executor cycle counter when non-nil.
	TurnCount *int `json:"turn_count,omitempty"`
}

// IsZero reports whether the patch changes nothing.
func (p Patch) IsZero() bool {
	return p.AppendMessages == nil &&
		p.Slots == nil &&
		p.Itinerary == nil &&
		p.AddFlights == nil &&
		p.AddLodging == nil &&
		p.Bundles == nil &&
		p.Approval == nil &&
		p.Booking == nil &&
		p.PendingHandoff == nil &&
		p.TurnCount == nil
}

// Apply overlays patch onto state and returns the new snapshot.
//
// The input state is never mutated. A nil or zero patch returns a
// snapshot equal to the input, and fields a patch does not mention are
// preserved verbatim.
func Apply(state *TripState, patch *Patch) *TripState {
	next := state.Clone()
	if patch == nil {
		return next
	}

	next.Conversation = append(next.Conversation, patch.AppendMessages...)

	if patch.Slots != nil {
		next.Slots = mergeSlots(next.Slots, *patch.Slots)
	}

	if patch.Itinerary != nil {
		next.Itinerary = (&TripState{Itinerary: patch.Itinerary}).Clone().Itinerary
	}

	if len(patch.AddFlights) > 0 || len(patch.AddLodging) > 0 {
		if next.Itinerary == nil {
			next.Itinerary = &Itinerary{}
		}
		next.Itinerary.Flights = append(next.Itinerary.Flights, patch.AddFlights...)
		next.Itinerary.Lodging = append(next.Itinerary.Lodging, patch.AddLodging...)
	}

	if patch.Bundles != nil {
		next.Bundles = make([]Bundle, len(patch.Bundles))
		for i, b := range patch.Bundles {
			next.Bundles[i] = cloneBundle(b)
		}
	}

	if patch.Approval != nil {
		next.Approval = *patch.Approval
	}

	if patch.Booking != nil {
		b := *patch.Booking
		next.Booking = &b
	}

	if patch.PendingHandoff != nil {
		next.PendingHandoff = *patch.PendingHandoff
	}

	if patch.TurnCount != nil {
		next.TurnCount = *patch.TurnCount
	}

	return next
}

// mergeSlots overlays the non-empty fields of patch onto base.
func mergeSlots(base, patch TripSlots) TripSlots {
	out := base
	if patch.Origin != "" {
		out.Origin = patch.Origin
	}
	if patch.Destination != "" {
		out.Destination = patch.Destination
	}
	if patch.StartDate != "" {
		out.StartDate = patch.StartDate
	}
	if patch.EndDate != "" {
		out.EndDate = patch.EndDate
	}
	if patch.Budget != "" {
		out.Budget = patch.Budget
	}
	if patch.Party != "" {
		out.Party = patch.Party
	}
	if len(patch.Interests) > 0 {
		out.Interests = append([]string(nil), patch.Interests...)
	}
	return out
}

// BoolPtr returns a pointer to b, for building patches inline.
func BoolPtr(b bool) *bool { return &b }

// StringPtr returns a pointer to s, for building patches inline.
func StringPtr(s string) *string { return &s }

// IntPtr returns a pointer to i, for building patches inline.
func IntPtr(i int) *int { return &i }
