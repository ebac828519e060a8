package engine

import (
	"sort"

	"github.com/roach88/csc/internal/ir"
)

// CooldownTracker holds per-rule cooldown counters on each scope axis.
//
// Each counter is a plain decreasing integer: Arm raises it to the configured
// count plus one and Advance lowers it by one, floored at 0. A rule is
// suppressed while any axis it configures has a nonzero counter.
//
// The tracker is owned by one Engine. It is not safe for concurrent use on
// its own; the engine serializes access.
type CooldownTracker struct {
	counters map[string]ir.CooldownSpec
}

// NewCooldownTracker returns a tracker with no armed rules.
func NewCooldownTracker() *CooldownTracker {
	return &CooldownTracker{counters: make(map[string]ir.CooldownSpec)}
}

// IsSuppressed reports whether ruleID is cooling down on any axis that spec
// configures.
func (t *CooldownTracker) IsSuppressed(ruleID string, spec ir.CooldownSpec) bool {
	state, ok := t.counters[ruleID]
	if !ok {
		return false
	}
	for _, axis := range ir.Axes {
		if spec.Get(axis) > 0 && state.Get(axis) > 0 {
			return true
		}
	}
	return false
}

// Arm starts the cooldown for ruleID. The +1 covers the advance that closes
// the window the rule just fired in, so the rule stays quiet for N further
// units of the axis.
func (t *CooldownTracker) Arm(ruleID string, spec ir.CooldownSpec) {
	if spec.IsZero() {
		return
	}
	state := t.counters[ruleID]
	for _, axis := range ir.Axes {
		n := spec.Get(axis)
		if n <= 0 {
			continue
		}
		state = state.Set(axis, max(state.Get(axis), n+1))
	}
	t.counters[ruleID] = state
}

// Advance decrements every counter on axis by one, floored at 0.
func (t *CooldownTracker) Advance(axis ir.Axis) {
	for id, state := range t.counters {
		if n := state.Get(axis); n > 0 {
			t.counters[id] = state.Set(axis, n-1)
		}
	}
}

// Remaining returns the counters for ruleID. The zero value means the rule
// is not cooling down.
func (t *CooldownTracker) Remaining(ruleID string) ir.CooldownSpec {
	return t.counters[ruleID]
}

// Retain drops state for every rule id not in keep.
func (t *CooldownTracker) Retain(keep map[string]bool) {
	for id := range t.counters {
		if !keep[id] {
			delete(t.counters, id)
		}
	}
}

// Active returns the ids with at least one nonzero counter, sorted.
func (t *CooldownTracker) Active() []string {
	var ids []string
	for id, state := range t.counters {
		if !state.IsZero() {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids
}
