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

	"github.com/AleutianAI/tripmate/services/supervisor/datatypes"
)

// Hotels is the demo lodging-search specialist.
type Hotels struct{}

// NewHotels returns the lodging-search specialist.
func NewHotels() *Hotels {
	return &Hotels{}
}

func (h *Hotels) Name() string { return "hotels" }

var hotelTiers = []struct {
	label   string
	nightly float64
}{
	{"Budget Inn", 80},
	{"Central Hotel", 120},
	{"Grand Palace", 210},
}

// Invoke returns lodging options near the slots' destination, one per
// price tier.
func (h *Hotels) Invoke(_ context.Context, _ map[string]any, view *datatypes.TripState) (*datatypes.Patch, error) {
	if view.Slots.Destination == "" {
		return nil, fmt.Errorf("hotel search requires a destination")
	}

	options := make([]datatypes.Lodging, 0, len(hotelTiers))
	for _, t := range hotelTiers {
		options = append(options, datatypes.Lodging{
			Name:     t.label + " " + view.Slots.Destination,
			CheckIn:  view.Slots.StartDate,
			CheckOut: view.Slots.EndDate,
			Nightly:  t.nightly,
			Currency: "EUR",
		})
	}

	return &datatypes.Patch{AddLodging: options}, nil
}
