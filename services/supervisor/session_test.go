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
	"sort"
	"sync"
	"testing"

	"github.com/AleutianAI/tripmate/services/supervisor/datatypes"
)

func TestSession_AcquireRelease(t *testing.T) {
	sess := NewSession()

	if !sess.TryAcquire() {
		t.Fatal("fresh session should acquire")
	}
	if sess.TryAcquire() {
		t.Fatal("second acquire should fail while held")
	}
	sess.Release()
	if !sess.TryAcquire() {
		t.Fatal("acquire after release should succeed")
	}
}

func TestSession_AcquireIsExclusive(t *testing.T) {
	sess := NewSession()

	var mu sync.Mutex
	acquired := 0
	var wg sync.WaitGroup
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if sess.TryAcquire() {
				mu.Lock()
				acquired++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if acquired != 1 {
		t.Errorf("acquired = %d, want exactly 1", acquired)
	}
}

func TestSession_SnapshotIsIsolated(t *testing.T) {
	sess := NewSession()

	snap := sess.Snapshot()
	snap.Slots.Destination = "Paris"
	snap.Conversation = append(snap.Conversation, datatypes.Message{Role: datatypes.RoleUser})

	if live := sess.State(); live.Slots.Destination != "" || len(live.Conversation) != 0 {
		t.Errorf("snapshot mutation reached live state: %+v", live)
	}
}

func TestSession_ReplaceStateKeepsOldSnapshot(t *testing.T) {
	sess := NewSession()
	old := sess.State()

	next := old.Clone()
	next.Slots.Destination = "Paris"
	sess.ReplaceState(next)

	if old.Slots.Destination != "" {
		t.Error("replace mutated the previous snapshot")
	}
	if sess.State().Slots.Destination != "Paris" {
		t.Error("replace did not take effect")
	}
}

func TestSession_History(t *testing.T) {
	sess := NewSession()
	sess.AddHistoryEntry(HistoryEntry{Type: "decision", Detail: "handoff"})
	sess.AddHistoryEntry(HistoryEntry{Type: "handoff", Specialist: "flights"})

	history := sess.History()
	if len(history) != 2 {
		t.Fatalf("len = %d, want 2", len(history))
	}
	if history[0].Step != 0 || history[1].Step != 1 {
		t.Errorf("step numbering wrong: %+v", history)
	}
	if history[0].Timestamp == 0 {
		t.Error("timestamp not stamped")
	}

	// Returned slice is a copy.
	history[0].Type = "mutated"
	if sess.History()[0].Type != "decision" {
		t.Error("History() aliases internal slice")
	}
}

func TestSession_EndedLifecycle(t *testing.T) {
	sess := NewSession()
	if sess.IsEnded() {
		t.Fatal("fresh session marked ended")
	}
	sess.MarkEnded()
	if !sess.IsEnded() {
		t.Fatal("MarkEnded did not stick")
	}
}

func TestInMemorySessionStore(t *testing.T) {
	store := NewInMemorySessionStore()

	sessions := []*Session{NewSession(), NewSession(), NewSession()}
	for _, s := range sessions {
		store.Put(s)
	}

	for _, s := range sessions {
		got, ok := store.Get(s.ID)
		if !ok || got != s {
			t.Errorf("Get(%s) = %v, %v", s.ID, got, ok)
		}
	}

	ids := store.List()
	if len(ids) != len(sessions) {
		t.Fatalf("List len = %d, want %d", len(ids), len(sessions))
	}
	if !sort.StringsAreSorted(ids) {
		t.Errorf("List not sorted: %v", ids)
	}

	store.Delete(sessions[0].ID)
	if _, ok := store.Get(sessions[0].ID); ok {
		t.Error("Delete did not remove the session")
	}
	if _, ok := store.Get("missing"); ok {
		t.Error("Get of unknown id succeeded")
	}
}
