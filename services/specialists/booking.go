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
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/AleutianAI/tripmate/services/supervisor/datatypes"
)

// Booking confirms an approved bundle. It refuses to run without the
// approval flag; the invariant checker would reject the patch anyway,
// but failing here gives the supervisor a clearer compensating note.
type Booking struct{}

// NewBooking returns the booking specialist.
func NewBooking() *Booking {
	return &Booking{}
}

func (b *Booking) Name() string { return "booking" }

// Invoke books the bundle named in the payload ("bundle" key),
// defaulting to the first bundle on the state.
func (b *Booking) Invoke(_ context.Context, payload map[string]any, view *datatypes.TripState) (*datatypes.Patch, error) {
	if !view.Approval {
		return nil, fmt.Errorf("booking requires user approval")
	}
	if len(view.Bundles) == 0 {
		return nil, fmt.Errorf("booking requires a composed bundle")
	}
	if view.Booking != nil {
		return nil, fmt.Errorf("bundle %s already booked", view.Booking.BundleName)
	}

	name, _ := payload["bundle"].(string)
	if name == "" {
		name = view.Bundles[0].Name
	}

	var chosen *datatypes.Bundle
	for i := range view.Bundles {
		if strings.EqualFold(view.Bundles[i].Name, name) {
			chosen = &view.Bundles[i]
			break
		}
	}
	if chosen == nil {
		return nil, fmt.Errorf("no bundle named %q", name)
	}

	return &datatypes.Patch{
		Booking: &datatypes.Booking{
			BundleName:  chosen.Name,
			Reference:   "TRIP-" + strings.ToUpper(uuid.NewString()[:8]),
			ConfirmedAt: time.Now().UnixMilli(),
		},
	}, nil
}
