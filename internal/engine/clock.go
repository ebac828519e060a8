package engine

import "sync/atomic"

// SeqSource hands out attempt sequence numbers. Clock is the production
// implementation; the harness substitutes a resettable one.
type SeqSource interface {
	Next() int64
	Current() int64
}

// Clock stamps journaled attempts with a strictly increasing seq. Two
// engines started from the same position over the same events produce the
// same seqs, which is what replay parity compares.
//
// Clock is safe for concurrent use.
type Clock struct {
	seq atomic.Int64
}

// NewClock returns a clock whose first seq is 1.
func NewClock() *Clock {
	return &Clock{}
}

// NewClockAt returns a clock whose first seq is start+1. Pass the store's
// last seq to continue a run's journal.
func NewClockAt(start int64) *Clock {
	c := &Clock{}
	c.seq.Store(start)
	return c
}

// Next advances the clock and returns the new seq.
func (c *Clock) Next() int64 {
	return c.seq.Add(1)
}

// Current returns the last seq handed out.
func (c *Clock) Current() int64 {
	return c.seq.Load()
}
