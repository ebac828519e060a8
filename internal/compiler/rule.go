package compiler

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/roach88/csc/internal/expr"
	"github.com/roach88/csc/internal/ir"
	"github.com/roach88/csc/internal/verb"
)

// LoadMode controls how errors are handled during compilation.
type LoadMode int

const (
	// LoadModeFailFast stops on the first error encountered.
	LoadModeFailFast LoadMode = iota
	// LoadModeCollectAll collects all errors before returning.
	LoadModeCollectAll
)

// RuleDefinition is a compiled rule. It is built once by Compile and never
// mutated afterwards.
type RuleDefinition struct {
	ID        string
	Condition string
	Guards    []string
	Verb      string
	Args      ir.IRObject
	Scope     ir.Axis // empty when the rule has no scope
	Cooldown  ir.CooldownSpec
	Pos       ir.Position

	when   *expr.Program
	guards []*expr.Program
}

// When returns the parsed condition.
func (r *RuleDefinition) When() *expr.Program {
	return r.when
}

// GuardPrograms returns the parsed guards in declaration order.
func (r *RuleDefinition) GuardPrograms() []*expr.Program {
	return r.guards
}

// HasCooldown reports whether any axis is configured.
func (r *RuleDefinition) HasCooldown() bool {
	return !r.Cooldown.IsZero()
}

// Compile validates spec against the verb registry and returns rules in
// declaration order. It stops at the first error, which is a *SpecError.
func Compile(spec ir.BehaviorSpec, reg *verb.Registry) ([]RuleDefinition, error) {
	rules, errs := compileSpec(spec, reg, LoadModeFailFast)
	if len(errs) > 0 {
		return nil, errs[0]
	}
	return rules, nil
}

// Validate reports every problem in spec instead of stopping at the first.
// An empty result means Compile would succeed.
func Validate(spec ir.BehaviorSpec, reg *verb.Registry) []error {
	_, errs := compileSpec(spec, reg, LoadModeCollectAll)
	return errs
}

func compileSpec(spec ir.BehaviorSpec, reg *verb.Registry, mode LoadMode) ([]RuleDefinition, []error) {
	var errs []error
	add := func(e *SpecError) bool {
		errs = append(errs, e)
		return mode == LoadModeFailFast
	}

	if spec.SchemaVersion != ir.SchemaVersion {
		if add(&SpecError{
			Code:    ErrSchemaVersion,
			Field:   "schema_version",
			Token:   spec.SchemaVersion,
			Message: fmt.Sprintf("unsupported schema version %q (want %q)", spec.SchemaVersion, ir.SchemaVersion),
			Pos:     ir.Position{File: spec.Source},
		}) {
			return nil, errs
		}
	}

	rules := make([]RuleDefinition, 0, len(spec.Rules))
	seen := make(map[string]int, len(spec.Rules))
	for i, decl := range spec.Rules {
		rule, ruleErrs := compileRule(i, decl, reg, mode)
		if decl.ID != "" {
			if first, dup := seen[decl.ID]; dup {
				ruleErrs = append(ruleErrs, &SpecError{
					Code:    ErrDuplicateRuleID,
					RuleID:  decl.ID,
					Field:   "id",
					Token:   decl.ID,
					Message: fmt.Sprintf("duplicate rule id (first declared as rules[%d])", first),
					Pos:     decl.Pos,
				})
			} else {
				seen[decl.ID] = i
			}
		}
		for _, e := range ruleErrs {
			if add(e) {
				return nil, errs
			}
		}
		if len(ruleErrs) == 0 {
			rules = append(rules, rule)
		}
	}

	if len(errs) > 0 {
		return nil, errs
	}
	return rules, nil
}

// compileRule checks one declaration. In fail-fast mode it returns after the
// first problem.
func compileRule(index int, decl ir.RuleDecl, reg *verb.Registry, mode LoadMode) (RuleDefinition, []*SpecError) {
	var errs []*SpecError
	label := decl.ID
	if label == "" {
		label = fmt.Sprintf("rules[%d]", index)
	}
	fail := func(e *SpecError) bool {
		e.RuleID = label
		if !e.Pos.IsValid() {
			e.Pos = decl.Pos
		}
		errs = append(errs, e)
		return mode == LoadModeFailFast
	}

	for _, f := range []struct{ name, value string }{{"id", decl.ID}, {"when", decl.When}, {"then", decl.Then}} {
		if strings.TrimSpace(f.value) == "" {
			if fail(&SpecError{Code: ErrMissingField, Field: f.name, Message: f.name + " is required"}) {
				return RuleDefinition{}, errs
			}
		}
	}

	rule := RuleDefinition{
		ID:        decl.ID,
		Condition: decl.When,
		Guards:    append([]string(nil), decl.Guards...),
		Pos:       decl.Pos,
	}

	if strings.TrimSpace(decl.When) != "" {
		prog, err := ValidateExpr(decl.When)
		if err != nil {
			se := err.(*SpecError)
			se.Field = "when"
			if fail(se) {
				return RuleDefinition{}, errs
			}
		}
		rule.when = prog
	}

	for i, g := range decl.Guards {
		prog, err := ValidateExpr(g)
		if err != nil {
			se := err.(*SpecError)
			se.Field = fmt.Sprintf("guards[%d]", i)
			if fail(se) {
				return RuleDefinition{}, errs
			}
			continue
		}
		rule.guards = append(rule.guards, prog)
	}

	if strings.TrimSpace(decl.Then) != "" {
		if se := compileAction(&rule, decl.Then, reg); se != nil {
			if fail(se) {
				return RuleDefinition{}, errs
			}
		}
	}

	if decl.Scope != "" {
		axis, err := ir.ParseAxis(decl.Scope)
		if err != nil {
			if fail(&SpecError{Code: ErrInvalidScope, Field: "scope", Token: decl.Scope, Message: err.Error()}) {
				return RuleDefinition{}, errs
			}
		}
		rule.Scope = axis
	}

	cd, se := parseCooldown(decl.Cooldown, rule.Scope)
	if se != nil {
		if fail(se) {
			return RuleDefinition{}, errs
		}
	}
	rule.Cooldown = cd

	return rule, errs
}

func compileAction(rule *RuleDefinition, then string, reg *verb.Registry) *SpecError {
	name, args, err := ParseAction(then)
	if err != nil {
		se := err.(*SpecError)
		se.Field = "then"
		return se
	}

	if err := reg.Validate(name, args); err != nil {
		se := &SpecError{Field: "then", Message: err.Error()}
		var ae *verb.ArgError
		switch {
		case errors.Is(err, verb.ErrUnknownVerb):
			se.Code = ErrUnknownVerb
			se.Token = name
			se.Message = fmt.Sprintf("unknown verb %q", name)
		case errors.As(err, &ae):
			se.Token = ae.Arg
			if len(ae.Args) > 1 {
				se.Token = strings.Join(ae.Args, ",")
			}
			switch ae.Kind {
			case verb.ArgMissing:
				se.Code = ErrMissingArg
			case verb.ArgUnknown:
				se.Code = ErrUnknownArg
			default:
				se.Code = ErrInvalidArgValue
			}
		default:
			se.Code = ErrInvalidArgValue
		}
		return se
	}

	rule.Verb = name
	rule.Args = args
	return nil
}

var cooldownKeys = map[string]ir.Axis{
	"rolls":        ir.AxisRoll,
	"roll":         ir.AxisRoll,
	"hands":        ir.AxisHand,
	"hand":         ir.AxisHand,
	"point_cycles": ir.AxisPointCycle,
	"point_cycle":  ir.AxisPointCycle,
}

// parseCooldown accepts an axis mapping or a bare count on the scope axis.
func parseCooldown(raw any, scope ir.Axis) (ir.CooldownSpec, *SpecError) {
	var cd ir.CooldownSpec
	bad := func(msg string) (ir.CooldownSpec, *SpecError) {
		return ir.CooldownSpec{}, &SpecError{Code: ErrInvalidCooldown, Field: "cooldown", Message: msg}
	}

	switch val := raw.(type) {
	case nil:
		return cd, nil

	case map[string]any:
		keys := make([]string, 0, len(val))
		for k := range val {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			axis, ok := cooldownKeys[k]
			if !ok {
				return bad(fmt.Sprintf("unknown cooldown axis %q (want rolls, hands or point_cycles)", k))
			}
			if cd.Get(axis) != 0 {
				return bad(fmt.Sprintf("axis %s given more than once", axis))
			}
			n, ok := asInt(val[k])
			if !ok || n <= 0 {
				return bad(fmt.Sprintf("%s must be a positive integer", k))
			}
			cd = cd.Set(axis, n)
		}
		return cd, nil

	default:
		n, ok := asInt(raw)
		if !ok {
			return bad(fmt.Sprintf("expected a count or axis mapping, got %T", raw))
		}
		if n < 0 {
			return bad("count must not be negative")
		}
		if n == 0 {
			return cd, nil
		}
		if scope == "" {
			return bad("a bare cooldown count requires a scope")
		}
		return cd.Set(scope, n), nil
	}
}

// asInt accepts whole numbers from any decoder: YAML ints, CUE ints, JSON
// float64 and json.Number.
func asInt(v any) (int, bool) {
	switch n := v.(type) {
	case int:
		return n, true
	case int64:
		return int(n), true
	case uint64:
		if n > math.MaxInt32 {
			return 0, false
		}
		return int(n), true
	case ir.IRInt:
		return int(n), true
	case float64:
		if n != math.Trunc(n) || math.Abs(n) > math.MaxInt32 {
			return 0, false
		}
		return int(n), true
	case json.Number:
		i, err := n.Int64()
		if err != nil {
			return 0, false
		}
		return int(i), true
	default:
		return 0, false
	}
}
