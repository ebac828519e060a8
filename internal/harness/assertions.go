package harness

import (
	"fmt"
	"sort"
	"strings"

	"github.com/roach88/csc/internal/ir"
)

// AssertionError is returned when an assertion fails.
// It includes detailed context to help debug the failure.
type AssertionError struct {
	Type     string               // Assertion type for categorization
	Expected string               // Human-readable expected outcome
	Actual   string               // Human-readable actual outcome
	Trace    []ir.DecisionAttempt // Full journal for debugging context
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder

	fmt.Fprintf(&buf, "Assertion failed: %s\n", e.Type)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s\n", e.Actual)

	if len(e.Trace) > 0 {
		fmt.Fprintf(&buf, "\nJournal:\n")
		for _, a := range e.Trace {
			fmt.Fprintf(&buf, "  [%d] %s %s %s\n", a.Seq, a.Window, a.RuleID, describeOutcome(a))
		}
	}

	return buf.String()
}

func describeOutcome(a ir.DecisionAttempt) string {
	switch {
	case a.Fired():
		return "fired " + a.Verb
	case a.Reason != ir.ReasonNone:
		return string(a.Reason)
	default:
		return "miss"
	}
}

// EvaluateAssertions runs every assertion against the result and returns
// one message per failure.
func EvaluateAssertions(result *Result, assertions []Assertion) []string {
	var errs []string
	for i, a := range assertions {
		var err error
		switch a.Type {
		case AssertJournalContains:
			err = assertJournalContains(result.Trace, a)
		case AssertJournalCount:
			err = assertJournalCount(result.Trace, a)
		case AssertFireOrder:
			err = assertFireOrder(result.Trace, a)
		case AssertCooldown:
			err = assertCooldown(result.Cooldowns, a)
		default:
			err = fmt.Errorf("unknown assertion type %q", a.Type)
		}
		if err != nil {
			errs = append(errs, fmt.Sprintf("assertions[%d]: %v", i, err))
		}
	}
	return errs
}

// matches reports whether an attempt passes the assertion's filter fields.
func matches(at ir.DecisionAttempt, a Assertion) bool {
	if a.Rule != "" && at.RuleID != a.Rule {
		return false
	}
	if a.Window != "" && at.Window != a.Window {
		return false
	}
	if a.Reason != "" {
		want := ir.ReasonCode(a.Reason)
		if a.Reason == ReasonNone {
			want = ir.ReasonNone
		}
		if at.Reason != want {
			return false
		}
	}
	if a.Fired != nil && at.Fired() != *a.Fired {
		return false
	}
	return true
}

func describeFilter(a Assertion) string {
	var parts []string
	if a.Rule != "" {
		parts = append(parts, "rule="+a.Rule)
	}
	if a.Window != "" {
		parts = append(parts, "window="+a.Window)
	}
	if a.Reason != "" {
		parts = append(parts, "reason="+a.Reason)
	}
	if a.Fired != nil {
		parts = append(parts, fmt.Sprintf("fired=%t", *a.Fired))
	}
	if len(parts) == 0 {
		return "any attempt"
	}
	return strings.Join(parts, " ")
}

func assertJournalContains(trace []ir.DecisionAttempt, a Assertion) error {
	for _, at := range trace {
		if matches(at, a) {
			return nil
		}
	}
	return &AssertionError{
		Type:     AssertJournalContains,
		Expected: "an attempt with " + describeFilter(a),
		Actual:   "not found in journal",
		Trace:    trace,
	}
}

func assertJournalCount(trace []ir.DecisionAttempt, a Assertion) error {
	count := 0
	for _, at := range trace {
		if matches(at, a) {
			count++
		}
	}
	if count != a.Count {
		return &AssertionError{
			Type:     AssertJournalCount,
			Expected: fmt.Sprintf("%d attempts with %s", a.Count, describeFilter(a)),
			Actual:   fmt.Sprintf("%d attempts", count),
			Trace:    trace,
		}
	}
	return nil
}

// assertFireOrder checks that the listed rules fire in order. Fires need not
// be consecutive; each listed rule matches its next fire after the previous
// match.
func assertFireOrder(trace []ir.DecisionAttempt, a Assertion) error {
	var fired []string
	for _, at := range trace {
		if at.Fired() {
			fired = append(fired, at.RuleID)
		}
	}

	next := 0
	for _, id := range fired {
		if next < len(a.Rules) && id == a.Rules[next] {
			next++
		}
	}
	if next == len(a.Rules) {
		return nil
	}
	return &AssertionError{
		Type:     AssertFireOrder,
		Expected: fmt.Sprintf("fires in order: %v", a.Rules),
		Actual:   fmt.Sprintf("fires were %v (no %s after %v)", fired, a.Rules[next], a.Rules[:next]),
		Trace:    trace,
	}
}

func assertCooldown(cooldowns map[string]ir.CooldownSpec, a Assertion) error {
	got, ok := cooldowns[a.Rule]
	if !ok {
		return &AssertionError{
			Type:     AssertCooldown,
			Expected: fmt.Sprintf("rule %s", a.Rule),
			Actual:   "no such rule",
		}
	}

	var want ir.CooldownSpec
	for k, n := range a.Expect {
		want = want.Set(cooldownAxes[k], n)
	}
	if got != want {
		return &AssertionError{
			Type:     AssertCooldown,
			Expected: fmt.Sprintf("%s remaining %s", a.Rule, formatCooldown(want)),
			Actual:   formatCooldown(got),
		}
	}
	return nil
}

func formatCooldown(c ir.CooldownSpec) string {
	return fmt.Sprintf("rolls=%d hands=%d point_cycles=%d", c.Rolls, c.Hands, c.PointCycles)
}

// matchObject reports whether every key in want is present in got with an
// equal value. Integers and floats compare numerically.
func matchObject(got, want ir.IRObject) bool {
	for k, wv := range want {
		gv, ok := got[k]
		if !ok {
			return false
		}
		if !valuesEqual(gv, wv) {
			return false
		}
	}
	return true
}

func valuesEqual(a, b ir.IRValue) bool {
	if af, ok := asFloat(a); ok {
		bf, ok := asFloat(b)
		return ok && af == bf
	}
	return a == b
}

func asFloat(v ir.IRValue) (float64, bool) {
	switch n := v.(type) {
	case ir.IRInt:
		return float64(n), true
	case ir.IRFloat:
		return float64(n), true
	default:
		return 0, false
	}
}

// formatObject renders an object with sorted keys for error messages.
func formatObject(obj ir.IRObject) string {
	keys := make([]string, 0, len(obj))
	for k := range obj {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = fmt.Sprintf("%s=%v", k, ir.ToAny(obj[k]))
	}
	return "{" + strings.Join(parts, " ") + "}"
}
