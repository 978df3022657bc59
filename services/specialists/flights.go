// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package specialists

import (
	"context"
	"fmt"
	"hash/fnv"

	"github.com/AleutianAI/tripmate/services/supervisor/datatypes"
)

// Flights is the demo flight-search specialist. It produces a small
// set of deterministic options for the route in the trip slots; price
// variance is seeded from the route so repeated searches agree.
type Flights struct{}

// NewFlights returns the flight-search specialist.
func NewFlights() *Flights {
	return &Flights{}
}

func (f *Flights) Name() string { return "flights" }

var flightCarriers = []struct {
	code string
	fare float64
}{
	{"AF", 550},
	{"LH", 610},
	{"EK", 720},
}

// Invoke returns flight options for the slots' origin/destination pair.
// Results are additive; earlier options on the itinerary are kept.
func (f *Flights) Invoke(_ context.Context, _ map[string]any, view *datatypes.TripState) (*datatypes.Patch, error) {
	if view.Slots.Destination == "" {
		return nil, fmt.Errorf("flight search requires a destination")
	}
	origin := view.Slots.Origin
	if origin == "" {
		origin = "DEL"
	}

	route := origin + "-" + view.Slots.Destination
	seed := float64(routeSeed(route) % 80)

	legs := make([]datatypes.FlightLeg, 0, len(flightCarriers))
	for _, c := range flightCarriers {
		legs = append(legs, datatypes.FlightLeg{
			Route:    route,
			Carrier:  c.code,
			Departs:  view.Slots.StartDate,
			Price:    c.fare + seed,
			Currency: "EUR",
		})
	}

	return &datatypes.Patch{AddFlights: legs}, nil
}

func routeSeed(route string) uint32 {
	h := fnv.New32a()
	h.Write([]byte(route))
	return h.Sum32()
}
