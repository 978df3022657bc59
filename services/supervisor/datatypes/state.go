// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package datatypes defines the session state threaded through the
// supervisor graph and the patch semantics used to mutate it.
//
// TripState is mutable by replacement only: every step of the graph
// produces a new snapshot via Apply, never an in-place edit. This keeps
// concurrent readers safe and makes the check-after-every-patch
// discipline of the invariant layer sound.
//
// Thread Safety:
//
//	TripState values are not internally synchronized. Ownership is
//	per-session; cross-goroutine sharing goes through Clone().
package datatypes

import "time"

// Message roles used in the conversation log.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleSystem    = "system"
	RoleTool      = "tool"
)

// Message is a single conversation record. The conversation is
// append-only; messages are never edited or removed.
type Message struct {
	// Role is one of user, assistant, system, or tool.
	Role string `json:"role"`

	// Content is the message text.
	Content string `json:"content"`

	// Timestamp is when the message was appended (Unix milliseconds UTC).
	Timestamp int64 `json:"timestamp"`
}

// NewMessage creates a message stamped with the current time.
func NewMessage(role, content string) Message {
	return Message{
		Role:      role,
		Content:   content,
		Timestamp: time.Now().UnixMilli(),
	}
}

// TripSlots holds the fields extracted from the conversation so far.
// Empty string means the slot is unset.
type TripSlots struct {
	Origin      string   `json:"origin,omitempty"`
	Destination string   `json:"destination,omitempty"`
	StartDate   string   `json:"start_date,omitempty"` // ISO date
	EndDate     string   `json:"end_date,omitempty"`   // ISO date
	Budget      string   `json:"budget,omitempty"`     // kept as text, e.g. "1200 EUR"
	Party       string   `json:"party,omitempty"`
	Interests   []string `json:"interests,omitempty"`
}

// HasDates reports whether both travel dates are set.
func (s TripSlots) HasDates() bool {
	return s.StartDate != "" && s.EndDate != ""
}

// HasBudget reports whether a budget has been provided.
func (s TripSlots) HasBudget() bool {
	return s.Budget != ""
}

// FlightLeg is one flight segment of the itinerary.
type FlightLeg struct {
	Route    string  `json:"route"` // e.g. "DEL-CDG"
	Carrier  string  `json:"carrier,omitempty"`
	Departs  string  `json:"departs,omitempty"` // ISO date
	Price    float64 `json:"price"`
	Currency string  `json:"currency"`
}

// Lodging is one lodging booking of the itinerary.
type Lodging struct {
	Name     string  `json:"name"`
	CheckIn  string  `json:"check_in,omitempty"`  // ISO date
	CheckOut string  `json:"check_out,omitempty"` // ISO date
	Nightly  float64 `json:"nightly"`
	Currency string  `json:"currency"`
}

// Itinerary collects the flight and lodging candidates composed so far.
// Absent (nil on TripState) until a specialist populates it.
type Itinerary struct {
	Flights []FlightLeg `json:"flights"`
	Lodging []Lodging   `json:"lodging"`
}

// Bundle is a priced package option (Cheapest, Balanced, Comfort).
type Bundle struct {
	Name      string             `json:"name"`
	TotalCost float64            `json:"total_cost"`
	Currency  string             `json:"currency"`
	Breakdown map[string]float64 `json:"breakdown,omitempty"` // flights, lodging, buffer, ...
	Pros      []string           `json:"pros,omitempty"`
	Cons      []string           `json:"cons,omitempty"`
}

// Booking is a finalized booking. It may only exist on a state whose
// Approval flag is true; the invariant layer enforces this.
type Booking struct {
	BundleName  string `json:"bundle_name"`
	Reference   string `json:"reference"`
	ConfirmedAt int64  `json:"confirmed_at"` // Unix milliseconds UTC
}

// TripState is the session state threaded through the supervisor graph.
//
// A TripState is owned by exactly one session. Steps never mutate it;
// they produce a patch which Apply overlays onto a fresh clone.
type TripState struct {
	// Conversation is the append-only message log.
	Conversation []Message `json:"conversation"`

	// Slots are the extracted trip fields.
	Slots TripSlots `json:"slots"`

	// Itinerary is nil until flights or lodging are populated.
	Itinerary *Itinerary `json:"itinerary,omitempty"`

	// Bundles is the ordered list of priced package options, nil until
	// the budget specialist computes them.
	Bundles []Bundle `json:"bundles,omitempty"`

	// Approval is true only after an explicit confirmation.
	Approval bool `json:"approval"`

	// Booking is nil until a booking is finalized.
	Booking *Booking `json:"booking,omitempty"`

	// PendingHandoff names the specialist currently delegated to, or is
	// empty when control sits with the supervisor.
	PendingHandoff string `json:"pending_handoff,omitempty"`

	// TurnCount is incremented once per completed executor cycle and is
	// monotonically non-decreasing for the session lifetime.
	TurnCount int `json:"turn_count"`
}

// NewTripState returns the empty state a session starts from.
func NewTripState() *TripState {
	return &TripState{Conversation: []Message{}}
}

// Clone returns a deep copy of the state. External collaborators only
// ever see clones, so nothing they do can alias the live snapshot.
func (s *TripState) Clone() *TripState {
	if s == nil {
		return nil
	}

	out := &TripState{
		Slots:          s.Slots,
		Approval:       s.Approval,
		PendingHandoff: s.PendingHandoff,
		TurnCount:      s.TurnCount,
	}

	out.Conversation = make([]Message, len(s.Conversation))
	copy(out.Conversation, s.Conversation)

	if len(s.Slots.Interests) > 0 {
		out.Slots.Interests = make([]string, len(s.Slots.Interests))
		copy(out.Slots.Interests, s.Slots.Interests)
	}

	if s.Itinerary != nil {
		it := &Itinerary{
			Flights: make([]FlightLeg, len(s.Itinerary.Flights)),
			Lodging: make([]Lodging, len(s.Itinerary.Lodging)),
		}
		copy(it.Flights, s.Itinerary.Flights)
		copy(it.Lodging, s.Itinerary.Lodging)
		out.Itinerary = it
	}

	if s.Bundles != nil {
		out.Bundles = make([]Bundle, len(s.Bundles))
		for i, b := range s.Bundles {
			out.Bundles[i] = cloneBundle(b)
		}
	}

	if s.Booking != nil {
		b := *s.Booking
		out.Booking = &b
	}

	return out
}

func cloneBundle(b Bundle) Bundle {
	out := b
	if b.Breakdown != nil {
		out.Breakdown = make(map[string]float64, len(b.Breakdown))
		for k, v := range b.Breakdown {
			out.Breakdown[k] = v
		}
	}
	if b.Pros != nil {
		out.Pros = append([]string(nil), b.Pros...)
	}
	if b.Cons != nil {
		out.Cons = append([]string(nil), b.Cons...)
	}
	return out
}

// LastUserMessage returns the most recent user message, if any.
func (s *TripState) LastUserMessage() (Message, bool) {
	return s.lastWithRole(RoleUser)
}

// LastAssistantMessage returns the most recent non-empty assistant
// message, if any.
func (s *TripState) LastAssistantMessage() (Message, bool) {
	return s.lastWithRole(RoleAssistant)
}

func (s *TripState) lastWithRole(role string) (Message, bool) {
	for i := len(s.Conversation) - 1; i >= 0; i-- {
		if s.Conversation[i].Role == role && s.Conversation[i].Content != "" {
			return s.Conversation[i], true
		}
	}
	return Message{}, false
}

// HasFlights reports whether the itinerary contains at least one flight.
func (s *TripState) HasFlights() bool {
	return s.Itinerary != nil && len(s.Itinerary.Flights) > 0
}

// HasLodging reports whether the itinerary contains at least one
// lodging entry.
func (s *TripState) HasLodging() bool {
	return s.Itinerary != nil && len(s.Itinerary.Lodging) > 0
}
