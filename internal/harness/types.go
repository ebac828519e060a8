package harness

import (
	"github.com/roach88/csc/internal/ir"
	"github.com/roach88/csc/internal/store"
)

// WindowTrace is the outcome of one window event.
type WindowTrace struct {
	Line      int         `json:"line"`
	Window    string      `json:"window"`
	RollIndex int64       `json:"roll_index"`
	RuleID    string      `json:"rule_id,omitempty"`
	Intent    ir.IRObject `json:"intent,omitempty"` // nil when no rule fired
}

// Result is the outcome of a test scenario execution.
type Result struct {
	// Pass indicates overall test success.
	// True if every window expectation and assertion holds and the replay
	// journal matches the first run.
	Pass bool `json:"pass"`

	RunID    string `json:"run_id,omitempty"`
	SpecHash string `json:"spec_hash,omitempty"`

	// Windows holds one entry per window event, in event order.
	Windows []WindowTrace `json:"windows"`

	// Trace is the first run's journal as read back from the store.
	Trace []ir.DecisionAttempt `json:"trace"`

	// Cooldowns holds each rule's remaining counters after the last event.
	Cooldowns map[string]ir.CooldownSpec `json:"cooldowns,omitempty"`

	// Parity compares the first run with its replay.
	Parity *store.Parity `json:"-"`

	// CompileError is the spec error text for compile_error scenarios.
	CompileError string `json:"compile_error,omitempty"`

	// Errors contains validation error messages.
	// Empty if Pass is true.
	Errors []string `json:"errors,omitempty"`
}

// NewResult creates a new passing result.
func NewResult() *Result {
	return &Result{
		Pass:      true,
		Windows:   []WindowTrace{},
		Trace:     []ir.DecisionAttempt{},
		Cooldowns: make(map[string]ir.CooldownSpec),
		Errors:    []string{},
	}
}

// AddError adds a validation error and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}

// Intents returns the intents that fired, in order.
func (r *Result) Intents() []ir.IRObject {
	var out []ir.IRObject
	for _, w := range r.Windows {
		if w.Intent != nil {
			out = append(out, w.Intent)
		}
	}
	return out
}
