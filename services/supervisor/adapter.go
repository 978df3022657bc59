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
	"fmt"
	"log/slog"
	"time"

	"github.com/AleutianAI/tripmate/services/supervisor/datatypes"
)

// Specialist is an external delegate owning one domain slice.
//
// Implementations receive the handoff payload and a read-only snapshot
// of the session state, and return a patch covering the schema subset
// they own. They should honor ctx cancellation; the adapter additionally
// enforces a hard deadline on every invocation.
type Specialist interface {
	// Name is the registry key this specialist is addressed by.
	Name() string

	// Invoke runs the delegate and returns a state patch, or an error
	// on failure. A nil patch with nil error is treated as a failure.
	Invoke(ctx context.Context, payload map[string]any, view *datatypes.TripState) (*datatypes.Patch, error)
}

// Adapter is the uniform invocation wrapper around specialists.
//
// It hands each delegate a cloned snapshot (no aliasing of the live
// state), enforces a per-invocation timeout, retries up to the
// configured budget, and normalizes every failure mode (error return,
// timeout, nil patch, even a panicking delegate) into a typed
// *SpecialistFailure instead of raising through the graph.
//
// Thread Safety: Adapter is immutable after construction and safe for
// concurrent use.
type Adapter struct {
	registry *Registry
	timeout  time.Duration
	retries  int
}

// NewAdapter creates an adapter over registry. timeout bounds each
// invocation attempt; retries is the number of additional attempts
// after the first failure (0 = no retry).
func NewAdapter(registry *Registry, timeout time.Duration, retries int) *Adapter {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	if retries < 0 {
		retries = 0
	}
	return &Adapter{registry: registry, timeout: timeout, retries: retries}
}

type invokeOutcome struct {
	patch *datatypes.Patch
	err   error
}

// Invoke runs the named specialist and returns its patch, or a typed
// failure after the retry budget is exhausted.
//
// The state argument is cloned before the delegate sees it, so a
// misbehaving delegate cannot corrupt the session snapshot.
func (a *Adapter) Invoke(ctx context.Context, name string, payload map[string]any, state *datatypes.TripState) (*datatypes.Patch, *SpecialistFailure) {
	spec, ok := a.registry.Get(name)
	if !ok {
		return nil, &SpecialistFailure{
			Specialist: name,
			Err:        &UnknownSpecialistError{Target: name},
		}
	}

	var last *SpecialistFailure
	attempts := a.retries + 1

	for attempt := 1; attempt <= attempts; attempt++ {
		patch, failure := a.invokeOnce(ctx, spec, payload, state)
		if failure == nil {
			return patch, nil
		}
		last = failure

		slog.Warn("Specialist invocation failed",
			slog.String("specialist", name),
			slog.Int("attempt", attempt),
			slog.Int("max_attempts", attempts),
			slog.Bool("timed_out", failure.TimedOut),
			slog.String("error", failure.Error()),
		)

		// Do not burn retries on a canceled turn.
		if ctx.Err() != nil {
			break
		}
	}

	return nil, last
}

// invokeOnce runs a single attempt with its own deadline. The delegate
// runs in a goroutine so a call that ignores ctx still cannot stall the
// graph past the timeout.
func (a *Adapter) invokeOnce(ctx context.Context, spec Specialist, payload map[string]any, state *datatypes.TripState) (*datatypes.Patch, *SpecialistFailure) {
	callCtx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	view := state.Clone()
	done := make(chan invokeOutcome, 1)

	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- invokeOutcome{err: fmt.Errorf("specialist panicked: %v", r)}
			}
		}()
		patch, err := spec.Invoke(callCtx, payload, view)
		done <- invokeOutcome{patch: patch, err: err}
	}()

	select {
	case <-callCtx.Done():
		return nil, &SpecialistFailure{
			Specialist: spec.Name(),
			TimedOut:   callCtx.Err() == context.DeadlineExceeded,
			Err:        callCtx.Err(),
		}
	case out := <-done:
		if out.err != nil {
			return nil, &SpecialistFailure{Specialist: spec.Name(), Err: out.err}
		}
		if out.patch == nil {
			return nil, &SpecialistFailure{
				Specialist: spec.Name(),
				Err:        fmt.Errorf("specialist returned no patch"),
			}
		}
		return out.patch, nil
	}
}
