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
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Handler is a function that processes events.
type Handler func(event *Event)

// Filter determines whether an event should be handled.
type Filter func(event *Event) bool

// Subscription registers a handler for matching events.
type Subscription struct {
	// ID uniquely identifies this subscription.
	ID string

	// Handler processes matching events.
	Handler Handler

	// Filter determines which events to handle (nil = all events).
	Filter Filter

	// Types limits which event types to handle (nil = all types).
	Types []Type
}

// Emitter broadcasts events to subscribers and keeps a bounded buffer
// of recent events for inspection.
//
// Thread Safety: Emitter is safe for concurrent use.
type Emitter struct {
	mu            sync.RWMutex
	subscriptions map[string]*Subscription
	buffer        []Event
	bufferSize    int
}

// EmitterOption configures an Emitter.
type EmitterOption func(*Emitter)

// WithBufferSize sets the number of recent events retained.
func WithBufferSize(size int) EmitterOption {
	return func(e *Emitter) {
		if size > 0 {
			e.bufferSize = size
		}
	}
}

// NewEmitter creates a new event emitter.
func NewEmitter(opts ...EmitterOption) *Emitter {
	e := &Emitter{
		subscriptions: make(map[string]*Subscription),
		bufferSize:    1000,
	}
	for _, opt := range opts {
		opt(e)
	}
	e.buffer = make([]Event, 0, e.bufferSize)
	return e
}

// Subscribe registers a handler and returns the subscription ID.
func (e *Emitter) Subscribe(sub Subscription) string {
	if sub.ID == "" {
		sub.ID = uuid.NewString()
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	e.subscriptions[sub.ID] = &sub
	return sub.ID
}

// Unsubscribe removes a subscription.
func (e *Emitter) Unsubscribe(id string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	delete(e.subscriptions, id)
}

// Emit builds an event and delivers it to matching subscribers.
//
// Handlers run synchronously on the caller's goroutine; a panicking
// handler is recovered and logged so one bad subscriber cannot take
// down a turn.
func (e *Emitter) Emit(eventType Type, sessionID string, data any) {
	event := Event{
		ID:        uuid.NewString(),
		Type:      eventType,
		SessionID: sessionID,
		Timestamp: time.Now().UnixMilli(),
		Data:      data,
	}

	e.mu.Lock()
	if len(e.buffer) >= e.bufferSize {
		// Drop the oldest half rather than one at a time.
		e.buffer = append(e.buffer[:0], e.buffer[e.bufferSize/2:]...)
	}
	e.buffer = append(e.buffer, event)

	subs := make([]*Subscription, 0, len(e.subscriptions))
	for _, sub := range e.subscriptions {
		subs = append(subs, sub)
	}
	e.mu.Unlock()

	for _, sub := range subs {
		if !matches(sub, &event) {
			continue
		}
		deliver(sub, &event)
	}
}

// Events returns a copy of the buffered events, oldest first.
func (e *Emitter) Events() []Event {
	e.mu.RLock()
	defer e.mu.RUnlock()
	out := make([]Event, len(e.buffer))
	copy(out, e.buffer)
	return out
}

// EventsForSession returns buffered events for one session.
func (e *Emitter) EventsForSession(sessionID string) []Event {
	e.mu.RLock()
	defer e.mu.RUnlock()

	var out []Event
	for _, ev := range e.buffer {
		if ev.SessionID == sessionID {
			out = append(out, ev)
		}
	}
	return out
}

func matches(sub *Subscription, event *Event) bool {
	if len(sub.Types) > 0 {
		found := false
		for _, t := range sub.Types {
			if t == event.Type {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	if sub.Filter != nil && !sub.Filter(event) {
		return false
	}
	return sub.Handler != nil
}

func deliver(sub *Subscription, event *Event) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("Event handler panicked",
				slog.String("subscription", sub.ID),
				slog.String("event_type", string(event.Type)),
				slog.Any("panic", r),
			)
		}
	}()
	sub.Handler(event)
}
