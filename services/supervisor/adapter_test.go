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
	"context"
	"errors"
	"testing"
	"time"

	"github.com/AleutianAI/tripmate/services/supervisor/datatypes"
)

func TestAdapter_InvokeSuccess(t *testing.T) {
	want := &datatypes.Patch{Slots: &datatypes.TripSlots{Destination: "Paris"}}
	reg := NewRegistry(patchSpecialist("planner", want))
	adapter := NewAdapter(reg, time.Second, 0)

	patch, failure := adapter.Invoke(t.Context(), "planner", nil, datatypes.NewTripState())
	if failure != nil {
		t.Fatalf("unexpected failure: %v", failure)
	}
	if patch.Slots.Destination != "Paris" {
		t.Errorf("patch = %+v", patch)
	}
}

func TestAdapter_InvokeUnknownSpecialist(t *testing.T) {
	adapter := NewAdapter(testRegistry("planner"), time.Second, 0)

	_, failure := adapter.Invoke(t.Context(), "weather", nil, datatypes.NewTripState())
	if failure == nil {
		t.Fatal("expected failure")
	}
	var unknown *UnknownSpecialistError
	if !errors.As(failure.Err, &unknown) {
		t.Errorf("Err = %T, want *UnknownSpecialistError", failure.Err)
	}
}

func TestAdapter_InvokeErrorReturn(t *testing.T) {
	boom := errors.New("backend unreachable")
	reg := NewRegistry(&fakeSpecialist{
		name: "flights",
		invoke: func(context.Context, map[string]any, *datatypes.TripState) (*datatypes.Patch, error) {
			return nil, boom
		},
	})
	adapter := NewAdapter(reg, time.Second, 0)

	_, failure := adapter.Invoke(t.Context(), "flights", nil, datatypes.NewTripState())
	if failure == nil || failure.TimedOut {
		t.Fatalf("failure = %+v, want plain error", failure)
	}
	if !errors.Is(failure.Err, boom) {
		t.Errorf("Err = %v, want wrapped cause", failure.Err)
	}
}

func TestAdapter_InvokeNilPatchIsFailure(t *testing.T) {
	reg := NewRegistry(&fakeSpecialist{
		name: "flights",
		invoke: func(context.Context, map[string]any, *datatypes.TripState) (*datatypes.Patch, error) {
			return nil, nil
		},
	})
	adapter := NewAdapter(reg, time.Second, 0)

	_, failure := adapter.Invoke(t.Context(), "flights", nil, datatypes.NewTripState())
	if failure == nil {
		t.Fatal("nil patch with nil error should fail")
	}
}

func TestAdapter_InvokeTimeout(t *testing.T) {
	reg := NewRegistry(&fakeSpecialist{
		name: "hotels",
		invoke: func(ctx context.Context, _ map[string]any, _ *datatypes.TripState) (*datatypes.Patch, error) {
			<-ctx.Done()
			return nil, ctx.Err()
		},
	})
	adapter := NewAdapter(reg, 20*time.Millisecond, 0)

	_, failure := adapter.Invoke(t.Context(), "hotels", nil, datatypes.NewTripState())
	if failure == nil {
		t.Fatal("expected timeout failure")
	}
	if !failure.TimedOut {
		t.Errorf("TimedOut = false: %+v", failure)
	}
}

func TestAdapter_InvokeRecoversPanic(t *testing.T) {
	reg := NewRegistry(&fakeSpecialist{
		name: "budget",
		invoke: func(context.Context, map[string]any, *datatypes.TripState) (*datatypes.Patch, error) {
			panic("division by zero")
		},
	})
	adapter := NewAdapter(reg, time.Second, 0)

	_, failure := adapter.Invoke(t.Context(), "budget", nil, datatypes.NewTripState())
	if failure == nil {
		t.Fatal("panicking specialist should fail, not crash")
	}
	if failure.TimedOut {
		t.Errorf("panic reported as timeout: %+v", failure)
	}
}

func TestAdapter_InvokeRetriesThenSucceeds(t *testing.T) {
	calls := 0
	reg := NewRegistry(&fakeSpecialist{
		name: "flights",
		invoke: func(context.Context, map[string]any, *datatypes.TripState) (*datatypes.Patch, error) {
			calls++
			if calls == 1 {
				return nil, errors.New("transient")
			}
			return &datatypes.Patch{}, nil
		},
	})
	adapter := NewAdapter(reg, time.Second, 1)

	patch, failure := adapter.Invoke(t.Context(), "flights", nil, datatypes.NewTripState())
	if failure != nil {
		t.Fatalf("retry did not rescue the call: %v", failure)
	}
	if patch == nil || calls != 2 {
		t.Errorf("calls = %d, patch = %v", calls, patch)
	}
}

func TestAdapter_InvokeRetryBudgetExhausted(t *testing.T) {
	calls := 0
	reg := NewRegistry(&fakeSpecialist{
		name: "flights",
		invoke: func(context.Context, map[string]any, *datatypes.TripState) (*datatypes.Patch, error) {
			calls++
			return nil, errors.New("hard down")
		},
	})
	adapter := NewAdapter(reg, time.Second, 1)

	_, failure := adapter.Invoke(t.Context(), "flights", nil, datatypes.NewTripState())
	if failure == nil {
		t.Fatal("expected failure after budget exhaustion")
	}
	if calls != 2 {
		t.Errorf("calls = %d, want 2 (initial + one retry)", calls)
	}
}

func TestAdapter_SpecialistSeesClone(t *testing.T) {
	state := datatypes.NewTripState()
	state.Slots.Destination = "Paris"

	reg := NewRegistry(&fakeSpecialist{
		name: "planner",
		invoke: func(_ context.Context, _ map[string]any, view *datatypes.TripState) (*datatypes.Patch, error) {
			view.Slots.Destination = "mutated"
			view.Conversation = append(view.Conversation, datatypes.Message{Role: datatypes.RoleTool})
			return &datatypes.Patch{}, nil
		},
	})
	adapter := NewAdapter(reg, time.Second, 0)

	if _, failure := adapter.Invoke(t.Context(), "planner", nil, state); failure != nil {
		t.Fatalf("invoke: %v", failure)
	}
	if state.Slots.Destination != "Paris" || len(state.Conversation) != 0 {
		t.Errorf("specialist mutated the live state: %+v", state)
	}
}
