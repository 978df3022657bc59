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
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/semaphore"

	"github.com/AleutianAI/tripmate/services/supervisor/datatypes"
	"github.com/AleutianAI/tripmate/services/supervisor/events"
)

// DecisionPolicy produces the next supervisor decision from a
// read-only view of the session state.
//
// Implementations must not retain or mutate the view; the executor
// passes a deep copy.
type DecisionPolicy interface {
	// Decide returns the next decision. The context carries the
	// decision timeout.
	Decide(ctx context.Context, view *datatypes.TripState) (*datatypes.Decision, error)
}

// TurnResult reports the outcome of a submitted turn.
type TurnResult struct {
	SessionID string `json:"session_id"`

	// Reply is the assistant message appended during RESPOND.
	Reply string `json:"reply"`

	// Failed is true when the turn ended through error recovery or a
	// terminal condition rather than a normal final decision.
	Failed bool `json:"failed"`

	// FailureReason describes why a failed turn ended, empty otherwise.
	FailureReason string `json:"failure_reason,omitempty"`

	// Steps is the number of executor cycles consumed by the turn.
	Steps int `json:"steps"`

	// TurnCount is the session turn counter after the turn.
	TurnCount int `json:"turn_count"`
}

// Executor drives sessions through the supervisor state machine.
//
// Description:
//
//	Each submitted turn runs the cycle START -> SUPERVISOR -> ... ->
//	RESPOND -> END over the session's TripState. Supervisor decisions
//	come from the configured DecisionPolicy; handoffs go through the
//	Adapter; every specialist patch is gated by the invariant Checker
//	before it becomes visible. All failure paths converge on
//	ERROR_RECOVERY, which either routes back to SUPERVISOR with a
//	compensating note or forces a terminal apology.
//
// Thread Safety:
//
//	Turns on the same session are serialized by the session's
//	in-progress flag; a concurrent SubmitTurn returns
//	ErrSessionInProgress without blocking. Turns on distinct sessions
//	run concurrently, optionally capped by a weighted semaphore.
type Executor struct {
	mu      sync.RWMutex
	cfg     Config
	policy  DecisionPolicy
	router  *Router
	adapter *Adapter
	checker *Checker
	machine *StateMachine

	sessions SessionStore
	emitter  *events.Emitter
	metrics  *Metrics
	tracer   trace.Tracer
	turnSem  *semaphore.Weighted
}

// ExecutorOption configures an Executor.
type ExecutorOption func(*Executor)

// WithSessionStore replaces the default in-memory session store.
func WithSessionStore(store SessionStore) ExecutorOption {
	return func(e *Executor) { e.sessions = store }
}

// WithEmitter attaches an event emitter.
func WithEmitter(em *events.Emitter) ExecutorOption {
	return func(e *Executor) { e.emitter = em }
}

// WithMetrics attaches a metric set.
func WithMetrics(m *Metrics) ExecutorOption {
	return func(e *Executor) { e.metrics = m }
}

// NewExecutor creates an executor over the given specialist registry
// and decision policy.
func NewExecutor(cfg Config, registry *Registry, policy DecisionPolicy, opts ...ExecutorOption) *Executor {
	cfg = cfg.withDefaults()

	e := &Executor{
		cfg:      cfg,
		policy:   policy,
		router:   NewRouter(registry),
		adapter:  NewAdapter(registry, cfg.SpecialistTimeout, cfg.SpecialistRetries),
		checker:  NewChecker(registry.Names()),
		machine:  DefaultStateMachine,
		sessions: NewInMemorySessionStore(),
		tracer:   otel.Tracer("tripmate/supervisor"),
	}
	for _, opt := range opts {
		opt(e)
	}
	if cfg.MaxConcurrentTurns > 0 {
		e.turnSem = semaphore.NewWeighted(cfg.MaxConcurrentTurns)
	}
	return e
}

// SetConfig swaps the hot-reloadable tunables. Takes effect for turns
// started after the call.
func (e *Executor) SetConfig(cfg Config) {
	cfg = cfg.withDefaults()
	e.mu.Lock()
	e.cfg = cfg
	e.adapter = NewAdapter(e.router.registry, cfg.SpecialistTimeout, cfg.SpecialistRetries)
	e.mu.Unlock()
}

func (e *Executor) config() Config {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.cfg
}

func (e *Executor) currentAdapter() *Adapter {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.adapter
}

// StartSession creates a new session and returns it.
func (e *Executor) StartSession() *Session {
	sess := NewSession()
	e.sessions.Put(sess)
	e.emit(events.TypeSessionStart, sess.ID, nil)
	e.metrics.SetActiveSessions(e.activeSessionCount())
	slog.Info("Session started", slog.String("session_id", sess.ID))
	return sess
}

// Sessions returns the live session IDs sorted.
func (e *Executor) Sessions() []string {
	return e.sessions.List()
}

// GetSession looks up a session by id.
func (e *Executor) GetSession(id string) (*Session, error) {
	sess, ok := e.sessions.Get(id)
	if !ok {
		return nil, ErrSessionNotFound
	}
	return sess, nil
}

// EndSession marks a session ended and removes it from the store.
func (e *Executor) EndSession(id string) error {
	sess, err := e.GetSession(id)
	if err != nil {
		return err
	}
	sess.MarkEnded()
	e.sessions.Delete(id)
	e.emit(events.TypeSessionEnd, id, nil)
	e.metrics.SetActiveSessions(e.activeSessionCount())
	slog.Info("Session ended", slog.String("session_id", id))
	return nil
}

// Approve records booking approval on a session. It is the only state
// write that happens outside a turn; it still respects per-session
// serialization.
func (e *Executor) Approve(id string) error {
	sess, err := e.GetSession(id)
	if err != nil {
		return err
	}
	if sess.IsEnded() {
		return ErrSessionEnded
	}
	if !sess.TryAcquire() {
		return ErrSessionInProgress
	}
	defer sess.Release()

	next := datatypes.Apply(sess.State(), &datatypes.Patch{Approval: datatypes.BoolPtr(true)})
	sess.ReplaceState(next)
	slog.Info("Booking approved", slog.String("session_id", id))
	return nil
}

// SubmitTurn appends the user message to the session conversation and
// runs the executor cycle to completion.
//
// Inputs:
//   - ctx: cancellation is honored at step boundaries; a turn already
//     past its final state transition completes normally.
//   - sessionID: must name a live session.
//   - userMessage: must be non-empty after trimming.
//
// Outputs:
//   - *TurnResult: the reply and turn accounting.
//   - error: ErrSessionNotFound, ErrSessionEnded, ErrSessionInProgress,
//     ErrEmptyMessage, ErrCanceled, or an internal execution error.
func (e *Executor) SubmitTurn(ctx context.Context, sessionID, userMessage string) (*TurnResult, error) {
	if strings.TrimSpace(userMessage) == "" {
		return nil, ErrEmptyMessage
	}

	sess, err := e.GetSession(sessionID)
	if err != nil {
		return nil, err
	}
	if sess.IsEnded() {
		return nil, ErrSessionEnded
	}
	if !sess.TryAcquire() {
		return nil, ErrSessionInProgress
	}
	defer sess.Release()

	if e.turnSem != nil {
		if err := e.turnSem.Acquire(ctx, 1); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrCanceled, err)
		}
		defer e.turnSem.Release(1)
	}

	ctx, span := e.tracer.Start(ctx, "supervisor.turn",
		trace.WithAttributes(attribute.String("session.id", sessionID)),
	)
	defer span.End()

	start := time.Now()
	result, err := e.runTurn(ctx, sess, userMessage)
	elapsed := time.Since(start).Seconds()

	outcome := "final"
	if err != nil || (result != nil && result.Failed) {
		outcome = "error"
	}
	e.metrics.ObserveTurn(outcome, elapsed)

	return result, err
}

// turnRun carries the working data of one submitted turn.
//
// state is the working snapshot, which may temporarily violate
// invariants while compensating steps run. lastValid is the newest
// snapshot that passed the checker; only a valid snapshot is ever
// committed to the session, so a failed turn can always fall back to
// it.
type turnRun struct {
	sess      *Session
	state     *datatypes.TripState
	lastValid *datatypes.TripState
	steps     int
	pending   *Edge

	// lastViolationKey and violationStall track how many consecutive
	// compensating passes reported the identical violation set. A pass
	// that changes the set is progress and resets the counter.
	lastViolationKey string
	violationStall   int

	// specialistFailures tracks adapter failures per specialist within
	// this turn. A second failure for the same specialist escalates to
	// a terminal response.
	specialistFailures map[string]int

	// recovery is the pending failure ERROR_RECOVERY must resolve.
	recovery error

	finalMessage string
	failed       bool
	failReason   string
}

func (e *Executor) runTurn(ctx context.Context, sess *Session, userMessage string) (*TurnResult, error) {
	cfg := e.config()

	run := &turnRun{
		sess:               sess,
		state:              sess.Snapshot(),
		specialistFailures: make(map[string]int),
	}
	run.state = datatypes.Apply(run.state, &datatypes.Patch{
		AppendMessages: []datatypes.Message{datatypes.NewMessage(datatypes.RoleUser, userMessage)},
	})
	run.lastValid = run.state

	// Each turn begins a fresh traversal from START.
	sess.setExecState(StateStart)

	for {
		if err := ctx.Err(); err != nil {
			slog.Warn("Turn canceled at step boundary",
				slog.String("session_id", sess.ID),
				slog.Int("steps", run.steps),
			)
			return nil, fmt.Errorf("%w: %v", ErrCanceled, err)
		}

		state := sess.ExecState()
		if state == StateEnd {
			break
		}

		var err error
		switch state {
		case StateStart:
			err = e.transition(run, StateSupervisor, "turn start")
		case StateSupervisor:
			err = e.stepSupervisor(ctx, cfg, run)
		case StateHandoff:
			err = e.stepHandoff(ctx, cfg, run)
		case StateErrorRecovery:
			err = e.stepRecovery(cfg, run)
		case StateRespond:
			err = e.stepRespond(run)
		default:
			err = fmt.Errorf("executor in unexpected state %s", state)
		}
		if err != nil {
			return nil, err
		}
	}

	// Commit the working state only at END.
	sess.ReplaceState(run.state)
	sess.bumpMetrics(func(m *SessionMetrics) { m.Turns++ })

	return &TurnResult{
		SessionID:     sess.ID,
		Reply:         run.finalMessage,
		Failed:        run.failed,
		FailureReason: run.failReason,
		Steps:         run.steps,
		TurnCount:     run.state.TurnCount,
	}, nil
}

// stepSupervisor runs one reasoning step: enforce the step limit, ask
// the policy for a decision, validate it, and route.
func (e *Executor) stepSupervisor(ctx context.Context, cfg Config, run *turnRun) error {
	run.steps++
	e.metrics.IncStep()
	run.sess.bumpMetrics(func(m *SessionMetrics) { m.SupervisorSteps++ })

	if run.steps > cfg.StepLimit {
		e.metrics.IncStepLimit()
		slog.Error("Step limit exceeded, forcing terminal response",
			slog.String("session_id", run.sess.ID),
			slog.Int("limit", cfg.StepLimit),
		)
		run.sess.AddHistoryEntry(HistoryEntry{
			Type:   "step_limit",
			Detail: fmt.Sprintf("step limit %d exceeded", cfg.StepLimit),
		})
		return e.forceRespond(run, terminalApology, ErrStepLimitExceeded.Error())
	}

	decisionCtx, cancel := context.WithTimeout(ctx, cfg.DecisionTimeout)
	decision, err := e.policy.Decide(decisionCtx, run.state.Clone())
	cancel()
	if err != nil {
		run.recovery = &MalformedDecisionError{Err: err}
		return e.transition(run, StateErrorRecovery, "policy error")
	}

	if err := decision.Validate(); err != nil {
		e.metrics.IncMalformed()
		run.recovery = &MalformedDecisionError{Err: err}
		return e.transition(run, StateErrorRecovery, "malformed decision")
	}

	e.metrics.IncDecision(string(decision.Kind))
	e.emit(events.TypeDecision, run.sess.ID, events.DecisionData{
		Kind:   string(decision.Kind),
		Target: decision.Target,
	})
	run.sess.AddHistoryEntry(HistoryEntry{
		Type:   "decision",
		Detail: string(decision.Kind),
	})

	edge := e.router.Route(decision)
	switch edge.Kind {
	case EdgeRespond:
		run.finalMessage = edge.Message
		return e.transition(run, StateRespond, "final decision")

	case EdgeToSpecialist:
		run.pending = &edge
		return e.transition(run, StateHandoff, "handoff to "+edge.Specialist)

	default:
		if edge.Err != nil {
			run.recovery = edge.Err
			return e.transition(run, StateErrorRecovery, "unroutable decision")
		}
		// Plain continue: another reasoning pass over the same state.
		run.state = datatypes.Apply(run.state, &datatypes.Patch{
			TurnCount: datatypes.IntPtr(run.state.TurnCount + 1),
		})
		return e.transition(run, StateSupervisor, "continue")
	}
}

// stepHandoff invokes the pending specialist and gates its patch
// through the invariant checker before it becomes visible.
func (e *Executor) stepHandoff(ctx context.Context, cfg Config, run *turnRun) error {
	edge := run.pending
	run.pending = nil
	if edge == nil {
		return fmt.Errorf("handoff state without pending edge")
	}

	e.metrics.IncHandoff(edge.Specialist)
	run.sess.bumpMetrics(func(m *SessionMetrics) { m.Handoffs++ })
	e.emit(events.TypeHandoff, run.sess.ID, events.HandoffData{Specialist: edge.Specialist})
	run.sess.AddHistoryEntry(HistoryEntry{
		Type:       "handoff",
		Specialist: edge.Specialist,
	})

	// The specialist sees the handoff marker on its view, but the
	// marker is only persisted with a successful result.
	view := datatypes.Apply(run.state, &datatypes.Patch{
		PendingHandoff: datatypes.StringPtr(edge.Specialist),
	})

	patch, failure := e.currentAdapter().Invoke(ctx, edge.Specialist, edge.Payload, view)
	if failure != nil {
		kind := "error"
		if failure.TimedOut {
			kind = "timeout"
		}
		e.metrics.IncSpecialistFailure(edge.Specialist, kind)
		e.emit(events.TypeSpecialistResult, run.sess.ID, events.SpecialistResultData{
			Specialist: edge.Specialist,
			Success:    false,
			Error:      failure.Error(),
		})
		run.recovery = failure
		return e.transition(run, StateErrorRecovery, "specialist failure")
	}

	candidate := datatypes.Apply(view, patch)
	candidate = datatypes.Apply(candidate, &datatypes.Patch{
		PendingHandoff: datatypes.StringPtr(""),
		TurnCount:      datatypes.IntPtr(run.state.TurnCount + 1),
	})

	if violations := e.checker.CheckStep(run.state, candidate); len(violations) > 0 {
		rules := make([]string, 0, len(violations))
		for _, v := range violations {
			rules = append(rules, v.Rule)
			e.metrics.IncViolation(v.Rule)
			run.sess.AddHistoryEntry(HistoryEntry{
				Type:       "violation",
				Specialist: edge.Specialist,
				Rule:       v.Rule,
				Detail:     v.Explanation,
			})
		}
		run.sess.bumpMetrics(func(m *SessionMetrics) { m.Violations += len(violations) })
		e.emit(events.TypeInvariantViolation, run.sess.ID, events.ViolationData{Rules: rules})
		slog.Warn("Specialist patch violates invariants, holding for compensation",
			slog.String("session_id", run.sess.ID),
			slog.String("specialist", edge.Specialist),
			slog.Any("rules", rules),
		)

		// The candidate becomes the working state so compensating
		// steps can complete it, but it is not committable: lastValid
		// still points at the prior consistent snapshot.
		run.state = candidate
		run.recovery = &InvariantViolationError{Violations: violations}
		return e.transition(run, StateErrorRecovery, "invariant violation")
	}

	e.emit(events.TypeSpecialistResult, run.sess.ID, events.SpecialistResultData{
		Specialist: edge.Specialist,
		Success:    true,
	})
	run.state = candidate
	run.lastValid = candidate
	return e.transition(run, StateSupervisor, "specialist result applied")
}

// stepRecovery resolves the pending failure: either inject a
// compensating note and hand control back to the supervisor, or force
// a terminal response when a retry budget is exhausted.
func (e *Executor) stepRecovery(cfg Config, run *turnRun) error {
	failure := run.recovery
	run.recovery = nil
	if failure == nil {
		return fmt.Errorf("error recovery state without pending failure")
	}

	var (
		note     string
		terminal bool
		reason   string
	)

	var (
		violationErr  *InvariantViolationError
		unknownErr    *UnknownSpecialistError
		malformedErr  *MalformedDecisionError
		specialistErr *SpecialistFailure
	)
	switch {
	case errors.As(failure, &violationErr):
		rules := make([]string, 0, len(violationErr.Violations))
		for _, v := range violationErr.Violations {
			rules = append(rules, v.Rule)
		}
		key := strings.Join(rules, ",")
		if key == run.lastViolationKey {
			run.violationStall++
		} else {
			run.lastViolationKey = key
			run.violationStall = 1
		}
		if run.violationStall > cfg.ViolationRetries {
			terminal = true
			reason = fmt.Sprintf("violations [%s] persisted across %d compensating turns", key, run.violationStall)
		}
		note = "The trip state is not yet consistent: " + violationErr.Error() +
			". Trigger the specialist that fills in what is missing."

	case errors.As(failure, &unknownErr):
		note = fmt.Sprintf("Specialist %q is not available. Choose one of the registered specialists or answer directly.", unknownErr.Target)

	case errors.As(failure, &malformedErr):
		note = "The previous decision was not understood: " + malformedErr.Err.Error() +
			". Produce a well-formed decision."

	case errors.As(failure, &specialistErr):
		run.specialistFailures[specialistErr.Specialist]++
		if run.specialistFailures[specialistErr.Specialist] > 1 {
			terminal = true
			reason = fmt.Sprintf("specialist %s failed repeatedly", specialistErr.Specialist)
		}
		if specialistErr.TimedOut {
			note = fmt.Sprintf("Specialist %q timed out. Try a different approach or answer with what is known.", specialistErr.Specialist)
		} else {
			note = fmt.Sprintf("Specialist %q failed: %v. Try a different approach or answer with what is known.", specialistErr.Specialist, specialistErr.Err)
		}

	default:
		terminal = true
		reason = failure.Error()
	}

	run.sess.AddHistoryEntry(HistoryEntry{
		Type:   "recovery",
		Detail: failure.Error(),
	})

	if terminal {
		slog.Error("Turn recovery budget exhausted",
			slog.String("session_id", run.sess.ID),
			slog.String("reason", reason),
		)
		return e.forceRespond(run, terminalApology, reason)
	}

	run.state = datatypes.Apply(run.state, &datatypes.Patch{
		AppendMessages: []datatypes.Message{datatypes.NewMessage(datatypes.RoleSystem, note)},
		TurnCount:      datatypes.IntPtr(run.state.TurnCount + 1),
	})
	return e.transition(run, StateSupervisor, "recovered")
}

// stepRespond appends the assistant reply and finishes the traversal.
// A working state still violating invariants is never committed. The
// turn falls back to the last consistent snapshot, carrying over the
// conversation appended along the way.
func (e *Executor) stepRespond(run *turnRun) error {
	if run.finalMessage == "" {
		run.finalMessage = terminalApology
	}
	if len(e.checker.Check(run.state)) > 0 {
		run.failed = true
		if run.failReason == "" {
			run.failReason = "consistency rules unresolved at respond"
		}
		run.state = revertConversation(run.lastValid, run.state)
	}
	run.state = datatypes.Apply(run.state, &datatypes.Patch{
		AppendMessages: []datatypes.Message{datatypes.NewMessage(datatypes.RoleAssistant, run.finalMessage)},
	})
	e.emit(events.TypeRespond, run.sess.ID, events.RespondData{
		Message: run.finalMessage,
		Failure: run.failReason,
	})
	return e.transition(run, StateEnd, "responded")
}

// forceRespond routes to RESPOND with a terminal apology, marking the
// turn failed. Called from both SUPERVISOR and ERROR_RECOVERY; the
// machine permits RESPOND from either.
func (e *Executor) forceRespond(run *turnRun, message, reason string) error {
	run.failed = true
	run.failReason = reason
	run.finalMessage = message

	from := run.sess.ExecState()
	if from == StateSupervisor || from == StateErrorRecovery {
		return e.transition(run, StateRespond, "terminal: "+reason)
	}
	return fmt.Errorf("cannot force respond from %s", from)
}

const terminalApology = "I wasn't able to complete that request. " +
	"Your trip details are unchanged; please try rephrasing or start a new request."

// revertConversation returns valid with the conversation entries that
// working accumulated beyond it, discarding every other working change.
func revertConversation(valid, working *datatypes.TripState) *datatypes.TripState {
	if len(working.Conversation) <= len(valid.Conversation) {
		return valid
	}
	return datatypes.Apply(valid, &datatypes.Patch{
		AppendMessages: working.Conversation[len(valid.Conversation):],
	})
}

func (e *Executor) transition(run *turnRun, to ExecState, reason string) error {
	from := run.sess.ExecState()
	if err := e.machine.Transition(run.sess, to); err != nil {
		return err
	}
	e.emit(events.TypeStateTransition, run.sess.ID, events.StateTransitionData{
		From:   from.String(),
		To:     to.String(),
		Reason: reason,
	})
	run.sess.AddHistoryEntry(HistoryEntry{
		Type:   "transition",
		From:   from,
		To:     to,
		Detail: reason,
	})
	return nil
}

func (e *Executor) emit(eventType events.Type, sessionID string, data any) {
	if e.emitter == nil {
		return
	}
	e.emitter.Emit(eventType, sessionID, data)
}

func (e *Executor) activeSessionCount() int {
	return len(e.sessions.List())
}

// SessionID generation shared by transports that create sessions
// implicitly on first contact.
func NewSessionID() string {
	return uuid.NewString()
}
