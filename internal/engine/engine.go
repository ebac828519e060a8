package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/roach88/csc/internal/compiler"
	"github.com/roach88/csc/internal/ir"
	"github.com/roach88/csc/internal/journal"
	"github.com/roach88/csc/internal/verb"
)

// Observer is notified of engine activity. Implemented by the metrics
// package; all methods are called synchronously on the evaluating goroutine.
type Observer interface {
	AttemptRecorded(a ir.DecisionAttempt)
	WindowEvaluated(window string, fired bool)
	ScopeAdvanced(axis ir.Axis)
}

// Engine evaluates compiled rules against decision-window snapshots.
//
// INVARIANTS:
//   - rules order NEVER changes after construction or Swap
//   - at most one rule fires per window
//   - every attempt is journaled, in evaluation order, before the next rule
//     is considered
//
// Thread-safety model: Evaluate, OnScopeAdvance and Swap serialize on an
// internal mutex, so a hot reload may Swap from another goroutine. Callers
// that need a fixed interleaving of windows and advances must still drive
// them from one goroutine.
type Engine struct {
	mu        sync.Mutex
	rules     []compiler.RuleDefinition // declaration order
	verbs     *verb.Registry
	journal   journal.Journal
	clock     SeqSource
	cooldowns *CooldownTracker
	observer  Observer
}

// EngineOption allows configuration of engine parameters.
type EngineOption func(*Engine)

// WithClock sets the logical clock. Used to resume a run at a known seq.
func WithClock(c SeqSource) EngineOption {
	return func(e *Engine) {
		e.clock = c
	}
}

// WithObserver registers an observer for attempts, windows and advances.
func WithObserver(o Observer) EngineOption {
	return func(e *Engine) {
		e.observer = o
	}
}

// New creates an Engine over rules in declaration order.
//
// The rules slice is copied to prevent external mutation from breaking the
// declaration order invariant. A nil registry means verb.DefaultRegistry and
// a nil journal means journal.Discard.
func New(rules []compiler.RuleDefinition, verbs *verb.Registry, j journal.Journal, opts ...EngineOption) *Engine {
	if verbs == nil {
		verbs = verb.DefaultRegistry()
	}
	if j == nil {
		j = journal.Discard
	}

	e := &Engine{
		rules:     copyRules(rules),
		verbs:     verbs,
		journal:   j,
		clock:     NewClock(),
		cooldowns: NewCooldownTracker(),
	}

	for _, opt := range opts {
		opt(e)
	}

	return e
}

func copyRules(rules []compiler.RuleDefinition) []compiler.RuleDefinition {
	if rules == nil {
		return nil
	}
	out := make([]compiler.RuleDefinition, len(rules))
	copy(out, rules)
	return out
}

// WindowResult is the outcome of one window evaluation.
type WindowResult struct {
	Window   string
	Intent   verb.Intent // nil when no rule fired
	RuleID   string      // the rule that fired, if any
	Attempts []ir.DecisionAttempt
}

// Fired reports whether a rule produced an intent.
func (r WindowResult) Fired() bool {
	return r.Intent != nil
}

// EvaluateWindow evaluates every rule for window and returns the intent of
// the first rule that fires, or nil.
func (e *Engine) EvaluateWindow(ctx context.Context, window string, snap ir.Snapshot) (verb.Intent, error) {
	res, err := e.Evaluate(ctx, window, snap)
	if err != nil {
		return nil, err
	}
	return res.Intent, nil
}

// Evaluate is EvaluateWindow with the full list of attempts.
//
// Expression failures never surface as errors; they become GUARD_FALSE and
// WHEN_EVAL_ERROR attempts. An error is returned only for an empty window, a
// journal failure, or a verb the registry cannot apply. Attempts journaled
// before the error are kept in the returned result.
func (e *Engine) Evaluate(ctx context.Context, window string, snap ir.Snapshot) (WindowResult, error) {
	if window == "" {
		return WindowResult{}, &RuntimeError{
			Code:    ErrCodeInvalidWindow,
			Message: "window id is empty",
		}
	}
	if err := ctx.Err(); err != nil {
		return WindowResult{}, err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	res := WindowResult{Window: window}
	rollIndex := snap.RollIndex()

	for i := range e.rules {
		r := &e.rules[i]
		a := ir.DecisionAttempt{
			RollIndex: rollIndex,
			Window:    window,
			RuleID:    r.ID,
			Origin:    ir.OriginDSL,
			WhenExpr:  r.Condition,
			Verb:      r.Verb,
			Args:      r.Args.Clone(),
		}

		if e.cooldowns.IsSuppressed(r.ID, r.Cooldown) {
			a.Reason = ir.ReasonCooldown
			slog.Debug("rule suppressed", "rule", r.ID, "window", window, "reason", a.Reason)
			if err := e.record(ctx, &res, a); err != nil {
				return res, err
			}
			continue
		}

		if detail, ok := checkGuards(r, snap); !ok {
			a.Reason = ir.ReasonGuardFalse
			a.Detail = detail
			slog.Debug("guard rejected rule", "rule", r.ID, "window", window, "reason", a.Reason)
			if err := e.record(ctx, &res, a); err != nil {
				return res, err
			}
			continue
		}
		a.GuardsPassed = true

		ok, err := r.When().Eval(snap)
		if err != nil {
			a.Reason = ir.ReasonWhenEvalError
			a.Detail = err.Error()
			slog.Warn("condition evaluation failed", "rule", r.ID, "window", window, "error", err)
			if err := e.record(ctx, &res, a); err != nil {
				return res, err
			}
			continue
		}
		if !ok {
			slog.Debug("rule missed", "rule", r.ID, "window", window)
			if err := e.record(ctx, &res, a); err != nil {
				return res, err
			}
			continue
		}
		a.EvaluatedTrue = true

		intent, err := e.verbs.Apply(r.Verb, r.Args)
		if err != nil {
			return res, applyError(window, r.ID, err)
		}

		a.Legal = true
		a.Applied = true
		if err := e.record(ctx, &res, a); err != nil {
			return res, err
		}
		e.cooldowns.Arm(r.ID, r.Cooldown)

		res.Intent = intent
		res.RuleID = r.ID
		slog.Info("rule fired", "rule", r.ID, "window", window, "verb", r.Verb)
		break
	}

	if e.observer != nil {
		e.observer.WindowEvaluated(window, res.Fired())
	}
	return res, nil
}

// checkGuards evaluates guards in order. On rejection it returns a detail
// naming the first guard that was false or failed.
func checkGuards(r *compiler.RuleDefinition, snap ir.Snapshot) (string, bool) {
	for i, g := range r.GuardPrograms() {
		ok, err := g.Eval(snap)
		if err != nil {
			return fmt.Sprintf("guards[%d]: %v", i, err), false
		}
		if !ok {
			return fmt.Sprintf("guards[%d] is false: %s", i, r.Guards[i]), false
		}
	}
	return "", true
}

func (e *Engine) record(ctx context.Context, res *WindowResult, a ir.DecisionAttempt) error {
	a.Seq = e.clock.Next()
	if err := e.journal.Write(ctx, a); err != nil {
		return &RuntimeError{
			Code:    ErrCodeJournalWrite,
			Message: fmt.Sprintf("journal attempt %d: %v", a.Seq, err),
			RuleID:  a.RuleID,
			Window:  a.Window,
			Err:     err,
		}
	}
	res.Attempts = append(res.Attempts, a)
	if e.observer != nil {
		e.observer.AttemptRecorded(a)
	}
	return nil
}

func applyError(window, ruleID string, err error) error {
	code := ErrCodeInvalidArgs
	if errors.Is(err, verb.ErrUnknownVerb) {
		code = ErrCodeUnknownVerb
	}
	return &RuntimeError{
		Code:    code,
		Message: err.Error(),
		RuleID:  ruleID,
		Window:  window,
		Err:     err,
	}
}

// OnScopeAdvance decrements every cooldown on axis by one. The driver calls
// it once per roll, hand or point-cycle boundary.
func (e *Engine) OnScopeAdvance(axis ir.Axis) error {
	if _, err := ir.ParseAxis(string(axis)); err != nil {
		return &RuntimeError{
			Code:    ErrCodeInvalidAxis,
			Message: err.Error(),
			Err:     err,
		}
	}

	e.mu.Lock()
	e.cooldowns.Advance(axis)
	e.mu.Unlock()

	slog.Debug("scope advanced", "axis", axis)
	if e.observer != nil {
		e.observer.ScopeAdvanced(axis)
	}
	return nil
}

// Swap replaces the rule list between windows. Cooldown state is kept for
// rule ids present in both lists and dropped for the rest.
func (e *Engine) Swap(rules []compiler.RuleDefinition) {
	rules = copyRules(rules)
	keep := make(map[string]bool, len(rules))
	for _, r := range rules {
		keep[r.ID] = true
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	e.rules = rules
	e.cooldowns.Retain(keep)
	slog.Info("rules swapped", "count", len(rules))
}

// Rules returns a copy of the current rules in declaration order.
func (e *Engine) Rules() []compiler.RuleDefinition {
	e.mu.Lock()
	defer e.mu.Unlock()
	return copyRules(e.rules)
}

// Cooldown returns the remaining cooldown counters for ruleID.
func (e *Engine) Cooldown(ruleID string) ir.CooldownSpec {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.cooldowns.Remaining(ruleID)
}

// Clock returns the engine's logical clock.
func (e *Engine) Clock() SeqSource {
	return e.clock
}
