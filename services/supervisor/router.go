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

	"github.com/AleutianAI/tripmate/services/supervisor/datatypes"
)

// EdgeKind is the class of graph edge a routed decision resolves to.
type EdgeKind string

const (
	// EdgeToSupervisor loops control back for another reasoning step.
	EdgeToSupervisor EdgeKind = "to_supervisor"

	// EdgeToSpecialist delegates control to a named specialist.
	EdgeToSpecialist EdgeKind = "to_specialist"

	// EdgeRespond terminates the turn with a response to the user.
	EdgeRespond EdgeKind = "respond"
)

// Edge is the resolved graph edge for one supervisor decision.
type Edge struct {
	// Kind selects the edge class.
	Kind EdgeKind

	// Specialist is the delegate name for EdgeToSpecialist edges.
	Specialist string

	// Payload is the handoff payload for EdgeToSpecialist edges.
	Payload map[string]any

	// Message is the terminal response for EdgeRespond edges.
	Message string

	// Err is non-nil when routing degraded to EdgeToSupervisor because
	// the decision could not be honored (unknown specialist). The
	// executor appends it as a diagnostic rather than failing the turn.
	Err error
}

// Registry is the closed set of specialists a session may hand off to.
//
// The registry is configuration: it is built once before sessions start
// and never mutated while a session runs.
//
// Thread Safety: Registry is immutable after construction and safe for
// concurrent use.
type Registry struct {
	specialists map[string]Specialist
}

// NewRegistry builds a registry from the given specialists. Later
// entries with a duplicate name replace earlier ones.
func NewRegistry(specialists ...Specialist) *Registry {
	m := make(map[string]Specialist, len(specialists))
	for _, s := range specialists {
		if s == nil {
			continue
		}
		m[s.Name()] = s
	}
	return &Registry{specialists: m}
}

// Get returns the specialist registered under name.
func (r *Registry) Get(name string) (Specialist, bool) {
	s, ok := r.specialists[name]
	return s, ok
}

// Has reports whether name is registered.
func (r *Registry) Has(name string) bool {
	_, ok := r.specialists[name]
	return ok
}

// Names returns the registered specialist names, sorted.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.specialists))
	for name := range r.specialists {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Router resolves supervisor decisions to graph edges.
//
// Routing is a pure mapping with no side effects. It is total: every
// decision resolves to an Edge, including unrecognized kinds, which
// default to EdgeToSupervisor so the executor's step limit bounds any
// self-loop.
type Router struct {
	registry *Registry
}

// NewRouter creates a router over the given registry.
func NewRouter(registry *Registry) *Router {
	return &Router{registry: registry}
}

// Route maps a decision to its graph edge.
//
// A handoff to an unregistered target does not crash the turn: it
// resolves to EdgeToSupervisor carrying an UnknownSpecialistError for
// the executor to surface as a diagnostic.
func (r *Router) Route(d *datatypes.Decision) Edge {
	if d == nil {
		return Edge{Kind: EdgeToSupervisor}
	}

	switch d.Kind {
	case datatypes.DecisionHandoff:
		if !r.registry.Has(d.Target) {
			return Edge{
				Kind: EdgeToSupervisor,
				Err:  &UnknownSpecialistError{Target: d.Target},
			}
		}
		return Edge{
			Kind:       EdgeToSpecialist,
			Specialist: d.Target,
			Payload:    d.Args,
		}

	case datatypes.DecisionFinal:
		return Edge{Kind: EdgeRespond, Message: d.Message}

	default:
		// "continue" and anything unrecognized.
		return Edge{Kind: EdgeToSupervisor}
	}
}
