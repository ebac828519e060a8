// Package testutil holds deterministic stand-ins and fixtures shared by
// engine-level tests: a resettable seq source, a fixed run id, and helpers
// that build snapshots and compiled rule sets without boilerplate.
package testutil

import "sync"

// DeterministicClock is a resettable engine.SeqSource.
//
// Unlike engine.Clock it can be rewound, so one scenario can be evaluated
// twice against fresh engines and yield identical attempt seq numbers.
type DeterministicClock struct {
	mu  sync.Mutex
	seq int64
}

// NewDeterministicClock creates a clock whose first Next returns 1.
func NewDeterministicClock() *DeterministicClock {
	return &DeterministicClock{}
}

// Next increments and returns the next sequence number.
func (c *DeterministicClock) Next() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.seq++
	return c.seq
}

// Current returns the current sequence number without incrementing.
func (c *DeterministicClock) Current() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.seq
}

// Reset rewinds the clock to 0.
func (c *DeterministicClock) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.seq = 0
}
