package ir

import (
	"encoding/json"
	"fmt"
	"sort"
)

// Axis names one of the independent cooldown dimensions.
type Axis string

const (
	AxisRoll       Axis = "roll"
	AxisHand       Axis = "hand"
	AxisPointCycle Axis = "point_cycle"
)

// Axes lists every axis in a fixed order for deterministic iteration.
var Axes = []Axis{AxisRoll, AxisHand, AxisPointCycle}

// ParseAxis validates an axis name.
func ParseAxis(s string) (Axis, error) {
	switch Axis(s) {
	case AxisRoll, AxisHand, AxisPointCycle:
		return Axis(s), nil
	default:
		return "", fmt.Errorf("unknown scope axis %q (want roll, hand or point_cycle)", s)
	}
}

// CooldownSpec holds per-axis suppress-for-N counts. Zero means the axis is
// not configured.
type CooldownSpec struct {
	Rolls       int `json:"rolls,omitempty"`
	Hands       int `json:"hands,omitempty"`
	PointCycles int `json:"point_cycles,omitempty"`
}

// Get returns the configured count for an axis.
func (c CooldownSpec) Get(axis Axis) int {
	switch axis {
	case AxisRoll:
		return c.Rolls
	case AxisHand:
		return c.Hands
	case AxisPointCycle:
		return c.PointCycles
	default:
		return 0
	}
}

// Set returns a copy with the count for axis replaced.
func (c CooldownSpec) Set(axis Axis, n int) CooldownSpec {
	switch axis {
	case AxisRoll:
		c.Rolls = n
	case AxisHand:
		c.Hands = n
	case AxisPointCycle:
		c.PointCycles = n
	}
	return c
}

// IsZero reports whether no axis is configured.
func (c CooldownSpec) IsZero() bool {
	return c.Rolls == 0 && c.Hands == 0 && c.PointCycles == 0
}

// BehaviorSpec is the raw, uncompiled behavior container.
type BehaviorSpec struct {
	SchemaVersion string     `json:"schema_version" yaml:"schema_version"`
	Rules         []RuleDecl `json:"rules" yaml:"rules"`

	// Source is the file the spec was loaded from, if any.
	Source string `json:"-" yaml:"-"`
}

// RuleDecl is one rule as written by the author, before validation.
// Cooldown is either a mapping of axis name to count or a bare integer.
type RuleDecl struct {
	ID       string   `json:"id" yaml:"id"`
	When     string   `json:"when" yaml:"when"`
	Then     string   `json:"then" yaml:"then"`
	Scope    string   `json:"scope,omitempty" yaml:"scope,omitempty"`
	Cooldown any      `json:"cooldown,omitempty" yaml:"cooldown,omitempty"`
	Guards   []string `json:"guards,omitempty" yaml:"guards,omitempty"`

	Pos Position `json:"-" yaml:"-"`
}

// Position locates a rule declaration in its source file.
type Position struct {
	File string
	Line int
	Col  int
}

// IsValid reports whether the position carries a line number.
func (p Position) IsValid() bool {
	return p.Line > 0
}

func (p Position) String() string {
	if !p.IsValid() {
		return p.File
	}
	if p.File == "" {
		return fmt.Sprintf("%d:%d", p.Line, p.Col)
	}
	return fmt.Sprintf("%s:%d:%d", p.File, p.Line, p.Col)
}

func (r RuleDecl) canonicalObject() (map[string]any, error) {
	obj := map[string]any{
		"id":   r.ID,
		"when": r.When,
		"then": r.Then,
	}
	if r.Scope != "" {
		obj["scope"] = r.Scope
	}
	if len(r.Guards) > 0 {
		obj["guards"] = r.Guards
	}
	if r.Cooldown != nil {
		cd, err := normalizeCooldown(r.Cooldown)
		if err != nil {
			return nil, fmt.Errorf("cooldown: %w", err)
		}
		obj["cooldown"] = cd
	}
	return obj, nil
}

func normalizeCooldown(v any) (any, error) {
	switch val := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, raw := range val {
			irv, err := FromAny(raw)
			if err != nil {
				return nil, fmt.Errorf("key %q: %w", k, err)
			}
			out[k] = irv
		}
		return out, nil
	case map[string]int:
		out := make(map[string]any, len(val))
		for k, n := range val {
			out[k] = IRInt(n)
		}
		return out, nil
	default:
		return FromAny(v)
	}
}

// ReasonCode explains why a rule did not fire. The zero value is a plain miss
// or a fire.
type ReasonCode string

const (
	ReasonNone          ReasonCode = ""
	ReasonCooldown      ReasonCode = "COOLDOWN"
	ReasonGuardFalse    ReasonCode = "GUARD_FALSE"
	ReasonWhenEvalError ReasonCode = "WHEN_EVAL_ERROR"
)

// DecisionAttempt records one rule's fate in one window evaluation.
type DecisionAttempt struct {
	Seq           int64      `json:"seq"`
	RollIndex     int64      `json:"roll_index"`
	Window        string     `json:"window"`
	RuleID        string     `json:"rule_id"`
	Origin        string     `json:"origin"`
	WhenExpr      string     `json:"when_expr"`
	EvaluatedTrue bool       `json:"evaluated_true"`
	GuardsPassed  bool       `json:"guards_passed"`
	Verb          string     `json:"verb"`
	Args          IRObject   `json:"args"`
	Legal         bool       `json:"legal"`
	Applied       bool       `json:"applied"`
	Reason        ReasonCode `json:"reason,omitempty"`
	Detail        string     `json:"detail,omitempty"`
}

// Fired reports whether this attempt produced the window's intent.
func (a DecisionAttempt) Fired() bool {
	return a.Applied
}

// CanonicalJSON returns the single-line journal encoding of the attempt.
func (a DecisionAttempt) CanonicalJSON() ([]byte, error) {
	args := a.Args
	if args == nil {
		args = IRObject{}
	}
	obj := map[string]any{
		"seq":            IRInt(a.Seq),
		"roll_index":     IRInt(a.RollIndex),
		"window":         a.Window,
		"rule_id":        a.RuleID,
		"origin":         a.Origin,
		"when_expr":      a.WhenExpr,
		"evaluated_true": a.EvaluatedTrue,
		"guards_passed":  a.GuardsPassed,
		"verb":           a.Verb,
		"args":           args,
		"legal":          a.Legal,
		"applied":        a.Applied,
	}
	if a.Reason != ReasonNone {
		obj["reason"] = string(a.Reason)
	}
	if a.Detail != "" {
		obj["detail"] = a.Detail
	}
	return MarshalCanonical(obj)
}

// ParseDecisionAttempt decodes one journal line.
func ParseDecisionAttempt(line []byte) (DecisionAttempt, error) {
	var a DecisionAttempt
	if err := json.Unmarshal(line, &a); err != nil {
		return DecisionAttempt{}, fmt.Errorf("parse decision attempt: %w", err)
	}
	if a.Args == nil {
		a.Args = IRObject{}
	}
	return a, nil
}

// Snapshot is the flat variable map supplied for one decision window.
type Snapshot map[string]IRValue

// SnapshotFromMap converts decoded JSON/YAML into a Snapshot. A null value
// leaves its key unbound, so an expression reading it fails to evaluate
// instead of the whole snapshot being rejected.
func SnapshotFromMap(m map[string]any) (Snapshot, error) {
	bound := make(map[string]any, len(m))
	for k, v := range m {
		if v != nil {
			bound[k] = v
		}
	}
	obj, err := ObjectFromMap(bound)
	if err != nil {
		return nil, fmt.Errorf("snapshot: %w", err)
	}
	return Snapshot(obj), nil
}

// Lookup returns the value bound to name.
func (s Snapshot) Lookup(name string) (IRValue, bool) {
	v, ok := s[name]
	return v, ok
}

// RollIndex returns the integer roll_index carried by the snapshot, or 0.
func (s Snapshot) RollIndex() int64 {
	if v, ok := s["roll_index"].(IRInt); ok {
		return int64(v)
	}
	return 0
}

// Keys returns snapshot keys in sorted order.
func (s Snapshot) Keys() []string {
	keys := make([]string, 0, len(s))
	for k := range s {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
