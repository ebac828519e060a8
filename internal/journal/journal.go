package journal

import (
	"context"
	"errors"
	"sync"

	"github.com/roach88/csc/internal/ir"
)

// Journal receives decision attempts in evaluation order.
type Journal interface {
	Write(ctx context.Context, a ir.DecisionAttempt) error
}

// Memory keeps attempts in a slice. Useful for tests and for replay
// comparison without touching disk.
type Memory struct {
	mu       sync.Mutex
	attempts []ir.DecisionAttempt
}

// NewMemory returns an empty in-memory journal.
func NewMemory() *Memory {
	return &Memory{}
}

// Write appends a copy of a.
func (m *Memory) Write(_ context.Context, a ir.DecisionAttempt) error {
	a.Args = a.Args.Clone()
	m.mu.Lock()
	m.attempts = append(m.attempts, a)
	m.mu.Unlock()
	return nil
}

// Attempts returns a copy of everything written so far.
func (m *Memory) Attempts() []ir.DecisionAttempt {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]ir.DecisionAttempt, len(m.attempts))
	copy(out, m.attempts)
	return out
}

// Len returns the number of attempts written.
func (m *Memory) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.attempts)
}

// Discard drops every attempt.
var Discard Journal = discard{}

type discard struct{}

func (discard) Write(context.Context, ir.DecisionAttempt) error { return nil }

// Tee fans each attempt out to every journal in order. All journals are
// written even if one fails; the errors are joined.
func Tee(journals ...Journal) Journal {
	return tee(journals)
}

type tee []Journal

func (t tee) Write(ctx context.Context, a ir.DecisionAttempt) error {
	var errs []error
	for _, j := range t {
		if err := j.Write(ctx, a); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
