package session

import (
	"context"
	"fmt"
	"io"

	"github.com/roach88/csc/internal/engine"
	"github.com/roach88/csc/internal/ir"
	"github.com/roach88/csc/internal/verb"
)

// Evaluator is the part of the engine a session drives.
type Evaluator interface {
	Evaluate(ctx context.Context, window string, snap ir.Snapshot) (engine.WindowResult, error)
	OnScopeAdvance(axis ir.Axis) error
}

// Outcome is the result of one window event.
type Outcome struct {
	Line      int
	Window    string
	RollIndex int64
	Intent    verb.Intent // nil when no rule fired
	RuleID    string
	Attempts  []ir.DecisionAttempt
}

// Run feeds events through eval in order and returns one outcome per window
// event. It stops at the first engine error.
func Run(ctx context.Context, eval Evaluator, events []Event) ([]Outcome, error) {
	var outcomes []Outcome
	for _, ev := range events {
		out, ok, err := step(ctx, eval, ev)
		if err != nil {
			return outcomes, err
		}
		if ok {
			outcomes = append(outcomes, out)
		}
	}
	return outcomes, nil
}

// Stream reads JSONL events from r and applies each as it arrives, calling
// fn with every window outcome. Used for long-running drivers that pipe
// events in.
func Stream(ctx context.Context, r io.Reader, eval Evaluator, opts Options, fn func(Outcome) error) error {
	return scanJSONL(r, opts, func(ev Event) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		out, ok, err := step(ctx, eval, ev)
		if err != nil {
			return err
		}
		if ok && fn != nil {
			return fn(out)
		}
		return nil
	})
}

func step(ctx context.Context, eval Evaluator, ev Event) (Outcome, bool, error) {
	if ev.Kind == EventAdvance {
		if err := eval.OnScopeAdvance(ev.Axis); err != nil {
			return Outcome{}, false, fmt.Errorf("line %d: %w", ev.Line, err)
		}
		return Outcome{}, false, nil
	}

	res, err := eval.Evaluate(ctx, ev.Window, ev.Snapshot)
	if err != nil {
		return Outcome{}, false, fmt.Errorf("line %d: %w", ev.Line, err)
	}
	return Outcome{
		Line:      ev.Line,
		Window:    ev.Window,
		RollIndex: ev.Snapshot.RollIndex(),
		Intent:    res.Intent,
		RuleID:    res.RuleID,
		Attempts:  res.Attempts,
	}, true, nil
}

// Intents returns the intent maps of every outcome that fired, in order.
func Intents(outcomes []Outcome) []ir.IRObject {
	var out []ir.IRObject
	for _, o := range outcomes {
		if o.Intent != nil {
			out = append(out, o.Intent.Map())
		}
	}
	return out
}

// Attempts flattens the attempts of every outcome, in journal order.
func Attempts(outcomes []Outcome) []ir.DecisionAttempt {
	var out []ir.DecisionAttempt
	for _, o := range outcomes {
		out = append(out, o.Attempts...)
	}
	return out
}
