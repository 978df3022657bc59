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
	"math"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/AleutianAI/tripmate/services/supervisor/datatypes"
)

// Budget composes Cheapest/Balanced/Comfort bundles from the itinerary
// options and the user's stated budget.
type Budget struct{}

// NewBudget returns the bundle-composition specialist.
func NewBudget() *Budget {
	return &Budget{}
}

func (b *Budget) Name() string { return "budget" }

var budgetSlotRe = regexp.MustCompile(`(\d+(?:\.\d+)?)\s*([A-Za-z]{3})?`)

// parseBudget reads a slot like "1200 EUR" into amount and currency.
func parseBudget(slot string) (float64, string, error) {
	m := budgetSlotRe.FindStringSubmatch(strings.TrimSpace(slot))
	if m == nil {
		return 0, "", fmt.Errorf("unparseable budget %q", slot)
	}
	amount, err := strconv.ParseFloat(m[1], 64)
	if err != nil {
		return 0, "", fmt.Errorf("unparseable budget amount %q: %w", m[1], err)
	}
	currency := strings.ToUpper(m[2])
	if currency == "" {
		currency = "EUR"
	}
	return amount, currency, nil
}

// nightCount derives the stay length from ISO dates, defaulting to 3
// when dates are missing or malformed.
func nightCount(start, end string) int {
	s, err1 := time.Parse("2006-01-02", start)
	e, err2 := time.Parse("2006-01-02", end)
	if err1 != nil || err2 != nil || !e.After(s) {
		return 3
	}
	return int(e.Sub(s).Hours() / 24)
}

// bundleTiers pairs each bundle name with its comfort multiplier over
// the cheapest viable combination. A 10% buffer is added on top of
// every bundle.
var bundleTiers = []struct {
	name       string
	multiplier float64
	pros       []string
	cons       []string
}{
	{"Cheapest", 1.0, []string{"Saves money"}, []string{"Basic comfort"}},
	{"Balanced", 1.3, []string{"Good value"}, []string{"Fewer luxuries"}},
	{"Comfort", 1.7, []string{"More comfort"}, []string{"Higher cost"}},
}

// Invoke computes the three bundles. It needs a budget slot plus at
// least one flight and one lodging option on the itinerary.
func (b *Budget) Invoke(_ context.Context, _ map[string]any, view *datatypes.TripState) (*datatypes.Patch, error) {
	if !view.Slots.HasBudget() {
		return nil, fmt.Errorf("bundle composition requires a budget slot")
	}
	if !view.HasFlights() || !view.HasLodging() {
		return nil, fmt.Errorf("bundle composition requires flight and lodging options")
	}

	budget, currency, err := parseBudget(view.Slots.Budget)
	if err != nil {
		return nil, err
	}

	flights := append([]datatypes.FlightLeg(nil), view.Itinerary.Flights...)
	sort.Slice(flights, func(i, j int) bool { return flights[i].Price < flights[j].Price })
	lodging := append([]datatypes.Lodging(nil), view.Itinerary.Lodging...)
	sort.Slice(lodging, func(i, j int) bool { return lodging[i].Nightly < lodging[j].Nightly })

	nights := nightCount(view.Slots.StartDate, view.Slots.EndDate)
	baseFlight := flights[0].Price
	baseLodging := lodging[0].Nightly * float64(nights)

	bundles := make([]datatypes.Bundle, 0, len(bundleTiers))
	for _, tier := range bundleTiers {
		flightCost := round2(baseFlight * tier.multiplier)
		lodgingCost := round2(baseLodging * tier.multiplier)
		buffer := round2((flightCost + lodgingCost) * 0.10)
		total := round2(flightCost + lodgingCost + buffer)

		cons := tier.cons
		if total > budget {
			cons = append(append([]string(nil), cons...), "Exceeds stated budget")
		}

		bundles = append(bundles, datatypes.Bundle{
			Name:      tier.name,
			TotalCost: total,
			Currency:  currency,
			Breakdown: map[string]float64{
				"flights": flightCost,
				"lodging": lodgingCost,
				"buffer":  buffer,
			},
			Pros: tier.pros,
			Cons: cons,
		})
	}

	return &datatypes.Patch{Bundles: bundles}, nil
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
