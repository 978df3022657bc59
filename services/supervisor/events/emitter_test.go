// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package events

import (
	"sync"
	"testing"
)

func TestEmitter_DeliversToSubscriber(t *testing.T) {
	emitter := NewEmitter()

	var got []*Event
	emitter.Subscribe(Subscription{
		Handler: func(e *Event) { got = append(got, e) },
	})

	emitter.Emit(TypeHandoff, "sess-1", HandoffData{Specialist: "flights"})

	if len(got) != 1 {
		t.Fatalf("delivered = %d, want 1", len(got))
	}
	ev := got[0]
	if ev.Type != TypeHandoff || ev.SessionID != "sess-1" {
		t.Errorf("event = %+v", ev)
	}
	if ev.ID == "" || ev.Timestamp == 0 {
		t.Errorf("event not stamped: %+v", ev)
	}
	if data, ok := ev.Data.(HandoffData); !ok || data.Specialist != "flights" {
		t.Errorf("data = %+v", ev.Data)
	}
}

func TestEmitter_TypeFilter(t *testing.T) {
	emitter := NewEmitter()

	var got []Type
	emitter.Subscribe(Subscription{
		Types:   []Type{TypeRespond},
		Handler: func(e *Event) { got = append(got, e.Type) },
	})

	emitter.Emit(TypeDecision, "s", nil)
	emitter.Emit(TypeRespond, "s", nil)
	emitter.Emit(TypeHandoff, "s", nil)

	if len(got) != 1 || got[0] != TypeRespond {
		t.Errorf("got = %v, want [respond]", got)
	}
}

func TestEmitter_CustomFilter(t *testing.T) {
	emitter := NewEmitter()

	var got int
	emitter.Subscribe(Subscription{
		Filter:  func(e *Event) bool { return e.SessionID == "wanted" },
		Handler: func(*Event) { got++ },
	})

	emitter.Emit(TypeDecision, "wanted", nil)
	emitter.Emit(TypeDecision, "other", nil)

	if got != 1 {
		t.Errorf("delivered = %d, want 1", got)
	}
}

func TestEmitter_Unsubscribe(t *testing.T) {
	emitter := NewEmitter()

	var got int
	id := emitter.Subscribe(Subscription{Handler: func(*Event) { got++ }})

	emitter.Emit(TypeDecision, "s", nil)
	emitter.Unsubscribe(id)
	emitter.Emit(TypeDecision, "s", nil)

	if got != 1 {
		t.Errorf("delivered = %d, want 1", got)
	}
}

func TestEmitter_PanickingHandlerIsContained(t *testing.T) {
	emitter := NewEmitter()

	var after int
	emitter.Subscribe(Subscription{Handler: func(*Event) { panic("boom") }})
	emitter.Subscribe(Subscription{Handler: func(*Event) { after++ }})

	emitter.Emit(TypeDecision, "s", nil)

	if after != 1 {
		t.Error("panicking subscriber blocked delivery")
	}
}

func TestEmitter_BufferAndSessionLookup(t *testing.T) {
	emitter := NewEmitter()

	emitter.Emit(TypeSessionStart, "a", nil)
	emitter.Emit(TypeSessionStart, "b", nil)
	emitter.Emit(TypeRespond, "a", nil)

	if got := len(emitter.Events()); got != 3 {
		t.Errorf("buffered = %d, want 3", got)
	}

	forA := emitter.EventsForSession("a")
	if len(forA) != 2 {
		t.Fatalf("session a events = %d, want 2", len(forA))
	}
	if forA[0].Type != TypeSessionStart || forA[1].Type != TypeRespond {
		t.Errorf("order wrong: %+v", forA)
	}
}

func TestEmitter_BufferBounded(t *testing.T) {
	emitter := NewEmitter(WithBufferSize(8))

	for i := 0; i < 100; i++ {
		emitter.Emit(TypeDecision, "s", nil)
	}

	if got := len(emitter.Events()); got > 8 {
		t.Errorf("buffer grew to %d, cap 8", got)
	}
}

func TestEmitter_ConcurrentEmit(t *testing.T) {
	emitter := NewEmitter()

	var mu sync.Mutex
	count := 0
	emitter.Subscribe(Subscription{Handler: func(*Event) {
		mu.Lock()
		count++
		mu.Unlock()
	}})

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 10; j++ {
				emitter.Emit(TypeDecision, "s", nil)
			}
		}()
	}
	wg.Wait()

	mu.Lock()
	defer mu.Unlock()
	if count != 160 {
		t.Errorf("delivered = %d, want 160", count)
	}
}
