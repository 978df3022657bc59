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
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics collects Prometheus counters for the executor. All methods
// are nil-safe so the executor works without a registry in tests.
type Metrics struct {
	turnsTotal          *prometheus.CounterVec
	stepsTotal          prometheus.Counter
	handoffsTotal       *prometheus.CounterVec
	violationsTotal     *prometheus.CounterVec
	specialistFailures  *prometheus.CounterVec
	turnDuration        prometheus.Histogram
	activeSessions      prometheus.Gauge
	decisionsTotal      *prometheus.CounterVec
	stepLimitExceeded   prometheus.Counter
	malformedDecisions  prometheus.Counter
}

// NewMetrics builds and registers the supervisor metric set.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		turnsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "tripmate",
			Subsystem: "supervisor",
			Name:      "turns_total",
			Help:      "Completed turns by outcome (final, error).",
		}, []string{"outcome"}),
		stepsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "tripmate",
			Subsystem: "supervisor",
			Name:      "steps_total",
			Help:      "Supervisor reasoning steps executed.",
		}),
		handoffsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "tripmate",
			Subsystem: "supervisor",
			Name:      "handoffs_total",
			Help:      "Specialist handoffs by specialist name.",
		}, []string{"specialist"}),
		violationsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "tripmate",
			Subsystem: "supervisor",
			Name:      "invariant_violations_total",
			Help:      "Invariant violations detected, by rule.",
		}, []string{"rule"}),
		specialistFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "tripmate",
			Subsystem: "supervisor",
			Name:      "specialist_failures_total",
			Help:      "Specialist invocation failures by specialist and kind.",
		}, []string{"specialist", "kind"}),
		turnDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "tripmate",
			Subsystem: "supervisor",
			Name:      "turn_duration_seconds",
			Help:      "Wall-clock duration of a submitted turn.",
			Buckets:   prometheus.ExponentialBuckets(0.01, 2, 12),
		}),
		activeSessions: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "tripmate",
			Subsystem: "supervisor",
			Name:      "active_sessions",
			Help:      "Sessions currently stored and not ended.",
		}),
		decisionsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "tripmate",
			Subsystem: "supervisor",
			Name:      "decisions_total",
			Help:      "Supervisor decisions by kind.",
		}, []string{"kind"}),
		stepLimitExceeded: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "tripmate",
			Subsystem: "supervisor",
			Name:      "step_limit_exceeded_total",
			Help:      "Turns terminated by the step limit.",
		}),
		malformedDecisions: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "tripmate",
			Subsystem: "supervisor",
			Name:      "malformed_decisions_total",
			Help:      "Decisions rejected by shape validation.",
		}),
	}

	if reg != nil {
		reg.MustRegister(
			m.turnsTotal,
			m.stepsTotal,
			m.handoffsTotal,
			m.violationsTotal,
			m.specialistFailures,
			m.turnDuration,
			m.activeSessions,
			m.decisionsTotal,
			m.stepLimitExceeded,
			m.malformedDecisions,
		)
	}
	return m
}

func (m *Metrics) ObserveTurn(outcome string, seconds float64) {
	if m == nil {
		return
	}
	m.turnsTotal.WithLabelValues(outcome).Inc()
	m.turnDuration.Observe(seconds)
}

func (m *Metrics) IncStep() {
	if m == nil {
		return
	}
	m.stepsTotal.Inc()
}

func (m *Metrics) IncHandoff(specialist string) {
	if m == nil {
		return
	}
	m.handoffsTotal.WithLabelValues(specialist).Inc()
}

func (m *Metrics) IncViolation(rule string) {
	if m == nil {
		return
	}
	m.violationsTotal.WithLabelValues(rule).Inc()
}

func (m *Metrics) IncSpecialistFailure(specialist, kind string) {
	if m == nil {
		return
	}
	m.specialistFailures.WithLabelValues(specialist, kind).Inc()
}

func (m *Metrics) IncDecision(kind string) {
	if m == nil {
		return
	}
	m.decisionsTotal.WithLabelValues(kind).Inc()
}

func (m *Metrics) IncStepLimit() {
	if m == nil {
		return
	}
	m.stepLimitExceeded.Inc()
}

func (m *Metrics) IncMalformed() {
	if m == nil {
		return
	}
	m.malformedDecisions.Inc()
}

func (m *Metrics) SetActiveSessions(n int) {
	if m == nil {
		return
	}
	m.activeSessions.Set(float64(n))
}
