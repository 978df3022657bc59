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
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/AleutianAI/tripmate/services/supervisor/datatypes"
)

// HistoryEntry records one step of a session's execution for
// diagnostics and audit.
type HistoryEntry struct {
	// Step is the 0-indexed entry number.
	Step int `json:"step"`

	// Type describes what happened (turn_start, state_transition,
	// decision, handoff, invariant_violation, respond, ...).
	Type string `json:"type"`

	// From and To are set for state_transition entries.
	From ExecState `json:"from,omitempty"`
	To   ExecState `json:"to,omitempty"`

	// Specialist is set for handoff-related entries.
	Specialist string `json:"specialist,omitempty"`

	// Rule is set for invariant_violation entries.
	Rule string `json:"rule,omitempty"`

	// Detail is free-form context for the entry.
	Detail string `json:"detail,omitempty"`

	// Timestamp is when the entry was recorded (Unix milliseconds UTC).
	Timestamp int64 `json:"timestamp"`
}

// SessionMetrics tracks per-session counters.
type SessionMetrics struct {
	// Turns is the number of user turns submitted.
	Turns int `json:"turns"`

	// SupervisorSteps is the number of reasoning steps executed.
	SupervisorSteps int `json:"supervisor_steps"`

	// Handoffs is the number of specialist invocations attempted.
	Handoffs int `json:"handoffs"`

	// Violations is the number of invariant violations encountered.
	Violations int `json:"violations"`
}

// Session owns one conversation's state and its execution bookkeeping.
//
// Exactly one turn may execute at a time for a session (TryAcquire /
// Release); independent sessions are fully concurrent.
//
// Thread Safety: Session is safe for concurrent use.
type Session struct {
	// ID is the session identifier.
	ID string

	mu         sync.RWMutex
	state      *datatypes.TripState
	execState  ExecState
	history    []HistoryEntry
	metrics    SessionMetrics
	ended      bool
	inProgress atomic.Bool

	// CreatedAt is when the session started (Unix milliseconds UTC).
	CreatedAt int64

	lastActiveAt atomic.Int64
}

// NewSession creates an empty session in the START state.
func NewSession() *Session {
	now := time.Now().UnixMilli()
	s := &Session{
		ID:        uuid.NewString(),
		state:     datatypes.NewTripState(),
		execState: StateStart,
		CreatedAt: now,
	}
	s.lastActiveAt.Store(now)
	return s
}

// TryAcquire claims the session's single execution slot. Returns false
// if a turn is already in flight.
func (s *Session) TryAcquire() bool {
	return s.inProgress.CompareAndSwap(false, true)
}

// Release frees the execution slot.
func (s *Session) Release() {
	s.inProgress.Store(false)
}

// Snapshot returns a deep copy of the current state for external
// collaborators.
func (s *Session) Snapshot() *datatypes.TripState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.Clone()
}

// State returns the live snapshot. Callers must not mutate it; use
// ReplaceState with a patched clone instead.
func (s *Session) State() *datatypes.TripState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// ReplaceState swaps in a new snapshot. The previous snapshot is left
// intact for any reader still holding it.
func (s *Session) ReplaceState(next *datatypes.TripState) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = next
	s.lastActiveAt.Store(time.Now().UnixMilli())
}

// ExecState returns the current executor node for this session.
func (s *Session) ExecState() ExecState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.execState
}

// setExecState is called by the state machine after validating an edge,
// and by the executor when resetting to START at turn boundaries.
func (s *Session) setExecState(state ExecState) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.execState = state
}

// AddHistoryEntry appends an entry, stamping step number and time.
func (s *Session) AddHistoryEntry(entry HistoryEntry) {
	s.mu.Lock()
	defer s.mu.Unlock()
	entry.Step = len(s.history)
	entry.Timestamp = time.Now().UnixMilli()
	s.history = append(s.history, entry)
}

// History returns a copy of the session history.
func (s *Session) History() []HistoryEntry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]HistoryEntry, len(s.history))
	copy(out, s.history)
	return out
}

// Metrics returns a copy of the session counters.
func (s *Session) Metrics() SessionMetrics {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.metrics
}

// bumpMetrics applies fn to the counters under the session lock.
func (s *Session) bumpMetrics(fn func(*SessionMetrics)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fn(&s.metrics)
}

// MarkEnded flags the session as explicitly ended. Further turns are
// rejected with ErrSessionEnded.
func (s *Session) MarkEnded() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ended = true
}

// IsEnded reports whether the session was explicitly ended.
func (s *Session) IsEnded() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.ended
}

// LastActiveAt returns the last activity time (Unix milliseconds UTC).
func (s *Session) LastActiveAt() int64 {
	return s.lastActiveAt.Load()
}

// SessionStore manages session lookup.
type SessionStore interface {
	// Get retrieves a session by ID.
	Get(id string) (*Session, bool)

	// Put stores a session.
	Put(session *Session)

	// Delete removes a session.
	Delete(id string)

	// List returns all stored session IDs.
	List() []string
}

// InMemorySessionStore is the default SessionStore.
//
// Thread Safety: InMemorySessionStore is safe for concurrent use.
type InMemorySessionStore struct {
	mu       sync.RWMutex
	sessions map[string]*Session
}

// NewInMemorySessionStore creates an empty store.
func NewInMemorySessionStore() *InMemorySessionStore {
	return &InMemorySessionStore{sessions: make(map[string]*Session)}
}

// Get implements SessionStore.
func (s *InMemorySessionStore) Get(id string) (*Session, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	session, ok := s.sessions[id]
	return session, ok
}

// Put implements SessionStore.
func (s *InMemorySessionStore) Put(session *Session) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[session.ID] = session
}

// Delete implements SessionStore.
func (s *InMemorySessionStore) Delete(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, id)
}

// List implements SessionStore. IDs are sorted for deterministic
// ordering.
func (s *InMemorySessionStore) List() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := make([]string, 0, len(s.sessions))
	for id := range s.sessions {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
