package compiler

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/csc/internal/ir"
	"github.com/roach88/csc/internal/verb"
)

func spec(rules ...ir.RuleDecl) ir.BehaviorSpec {
	return ir.BehaviorSpec{SchemaVersion: ir.SchemaVersion, Rules: rules}
}

func TestCompilePreservesDeclarationOrder(t *testing.T) {
	s := spec(
		ir.RuleDecl{ID: "c", When: "profit >= 0", Then: "press(bet=6)"},
		ir.RuleDecl{ID: "a", When: "profit >= 0", Then: "regress(bet=6)"},
		ir.RuleDecl{ID: "b", When: "bankroll < 100", Then: "switch_profile(name=safe_mode)"},
	)

	rules, err := Compile(s, verb.DefaultRegistry())
	require.NoError(t, err)
	require.Len(t, rules, 3)
	assert.Equal(t, "c", rules[0].ID)
	assert.Equal(t, "a", rules[1].ID)
	assert.Equal(t, "b", rules[2].ID)
}

func TestCompileRuleDefinition(t *testing.T) {
	s := spec(ir.RuleDecl{
		ID:       "press_six",
		When:     "point_on and point_number == 6",
		Then:     "press(bet=6, units=2)",
		Scope:    "roll",
		Cooldown: map[string]any{"rolls": 2, "hand": 1},
		Guards:   []string{"bankroll > 100", "drawdown < 0.5"},
	})

	rules, err := Compile(s, verb.DefaultRegistry())
	require.NoError(t, err)
	require.Len(t, rules, 1)

	r := rules[0]
	assert.Equal(t, "press_six", r.ID)
	assert.Equal(t, "point_on and point_number == 6", r.Condition)
	assert.Equal(t, "press", r.Verb)
	assert.Equal(t, ir.IRObject{"bet": ir.IRInt(6), "units": ir.IRInt(2)}, r.Args)
	assert.Equal(t, ir.AxisRoll, r.Scope)
	assert.Equal(t, ir.CooldownSpec{Rolls: 2, Hands: 1}, r.Cooldown)
	assert.True(t, r.HasCooldown())
	assert.Equal(t, []string{"bankroll > 100", "drawdown < 0.5"}, r.Guards)
	require.NotNil(t, r.When())
	assert.Len(t, r.GuardPrograms(), 2)
}

func TestCompileCooldownForms(t *testing.T) {
	tests := []struct {
		name     string
		scope    string
		cooldown any
		want     ir.CooldownSpec
	}{
		{"none", "", nil, ir.CooldownSpec{}},
		{"bare zero", "roll", 0, ir.CooldownSpec{}},
		{"bare zero without scope", "", 0, ir.CooldownSpec{}},
		{"bare on roll", "roll", 3, ir.CooldownSpec{Rolls: 3}},
		{"bare on hand", "hand", 1, ir.CooldownSpec{Hands: 1}},
		{"bare json float", "point_cycle", float64(2), ir.CooldownSpec{PointCycles: 2}},
		{"plural keys", "", map[string]any{"rolls": 2, "hands": 1, "point_cycles": 4}, ir.CooldownSpec{Rolls: 2, Hands: 1, PointCycles: 4}},
		{"singular keys", "", map[string]any{"roll": 1, "point_cycle": 1}, ir.CooldownSpec{Rolls: 1, PointCycles: 1}},
		{"int64 from cue", "", map[string]any{"rolls": int64(5)}, ir.CooldownSpec{Rolls: 5}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rules, err := Compile(spec(ir.RuleDecl{
				ID: "r", When: "profit >= 0", Then: "press(bet=6)", Scope: tt.scope, Cooldown: tt.cooldown,
			}), verb.DefaultRegistry())
			require.NoError(t, err)
			assert.Equal(t, tt.want, rules[0].Cooldown)
		})
	}
}

func TestCompileErrors(t *testing.T) {
	ok := ir.RuleDecl{ID: "r", When: "profit >= 0", Then: "press(bet=6)"}
	with := func(mut func(*ir.RuleDecl)) ir.BehaviorSpec {
		d := ok
		mut(&d)
		return spec(d)
	}

	tests := []struct {
		name  string
		spec  ir.BehaviorSpec
		code  string
		field string
		token string
	}{
		{"schema version", ir.BehaviorSpec{SchemaVersion: "2.0", Rules: []ir.RuleDecl{ok}}, ErrSchemaVersion, "schema_version", "2.0"},
		{"missing schema version", ir.BehaviorSpec{Rules: []ir.RuleDecl{ok}}, ErrSchemaVersion, "schema_version", ""},
		{"missing id", with(func(d *ir.RuleDecl) { d.ID = "" }), ErrMissingField, "id", ""},
		{"missing when", with(func(d *ir.RuleDecl) { d.When = "  " }), ErrMissingField, "when", ""},
		{"missing then", with(func(d *ir.RuleDecl) { d.Then = "" }), ErrMissingField, "then", ""},
		{"unknown variable", with(func(d *ir.RuleDecl) { d.When = "mystery_var > 0" }), ErrUnknownVariable, "when", "mystery_var"},
		{"guard function call", with(func(d *ir.RuleDecl) { d.Guards = []string{"point_on", "max(bankroll) > 0"} }), ErrFunctionCall, "guards[1]", "max"},
		{"guard string literal", with(func(d *ir.RuleDecl) { d.Guards = []string{"run_id == 'x'"} }), ErrStringLiteral, "guards[0]", "'"},
		{"malformed then", with(func(d *ir.RuleDecl) { d.Then = "press" }), ErrMalformedAction, "then", "press"},
		{"unknown verb", with(func(d *ir.RuleDecl) { d.Then = "moonwalk()" }), ErrUnknownVerb, "then", "moonwalk"},
		{"missing arg", with(func(d *ir.RuleDecl) { d.Then = "regress()" }), ErrMissingArg, "then", "bet"},
		{"unknown arg", with(func(d *ir.RuleDecl) { d.Then = "press(bet=6, amount=5)" }), ErrUnknownArg, "then", "amount"},
		{"bad arg value", with(func(d *ir.RuleDecl) { d.Then = "press(bet=6, units=lots)" }), ErrInvalidArgValue, "then", "units"},
		{"invalid scope", with(func(d *ir.RuleDecl) { d.Scope = "rolls" }), ErrInvalidScope, "scope", "rolls"},
		{"bare cooldown without scope", with(func(d *ir.RuleDecl) { d.Cooldown = 2 }), ErrInvalidCooldown, "cooldown", ""},
		{"negative cooldown", with(func(d *ir.RuleDecl) { d.Scope = "roll"; d.Cooldown = -1 }), ErrInvalidCooldown, "cooldown", ""},
		{"zero axis count", with(func(d *ir.RuleDecl) { d.Cooldown = map[string]any{"rolls": 0} }), ErrInvalidCooldown, "cooldown", ""},
		{"unknown axis", with(func(d *ir.RuleDecl) { d.Cooldown = map[string]any{"shooters": 1} }), ErrInvalidCooldown, "cooldown", ""},
		{"axis twice", with(func(d *ir.RuleDecl) { d.Cooldown = map[string]any{"roll": 1, "rolls": 2} }), ErrInvalidCooldown, "cooldown", ""},
		{"fractional count", with(func(d *ir.RuleDecl) { d.Cooldown = map[string]any{"rolls": 1.5} }), ErrInvalidCooldown, "cooldown", ""},
		{"string cooldown", with(func(d *ir.RuleDecl) { d.Cooldown = "soon" }), ErrInvalidCooldown, "cooldown", ""},
		{"duplicate id", spec(ok, ok), ErrDuplicateRuleID, "id", "r"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Compile(tt.spec, verb.DefaultRegistry())
			require.Error(t, err)
			var se *SpecError
			require.ErrorAs(t, err, &se)
			assert.Equal(t, tt.code, se.Code)
			assert.Equal(t, tt.field, se.Field)
			assert.Equal(t, tt.token, se.Token)
		})
	}
}

func TestCompileErrorNamesRuleAndField(t *testing.T) {
	s := spec(ir.RuleDecl{ID: "mystery", When: "mystery_var > 0", Then: "regress()", Pos: ir.Position{File: "spec.yaml", Line: 6, Col: 5}})

	_, err := Compile(s, verb.DefaultRegistry())
	require.Error(t, err)
	assert.Equal(t, `spec.yaml:6:5: [E203] rule "mystery": when: unknown variable "mystery_var"`, err.Error())
}

func TestCompileUnnamedRuleUsesIndex(t *testing.T) {
	_, err := Compile(spec(ir.RuleDecl{When: "profit > 0", Then: "press(bet=6)"}), verb.DefaultRegistry())
	var se *SpecError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, "rules[0]", se.RuleID)
}

func TestCompileAgainstCustomRegistry(t *testing.T) {
	reg := verb.NewRegistry()
	require.NoError(t, reg.Register("hedge", verb.Signature{Required: []string{"bet"}}, nil))

	_, err := Compile(spec(ir.RuleDecl{ID: "r", When: "profit < 0", Then: "press(bet=6)"}), reg)
	var se *SpecError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, ErrUnknownVerb, se.Code)

	rules, err := Compile(spec(ir.RuleDecl{ID: "r", When: "profit < 0", Then: "hedge(bet=any_craps)"}), reg)
	require.NoError(t, err)
	assert.Equal(t, "hedge", rules[0].Verb)
}

func TestValidateCollectsAll(t *testing.T) {
	s := ir.BehaviorSpec{
		SchemaVersion: "0.9",
		Rules: []ir.RuleDecl{
			{ID: "a", When: "mystery_var > 0", Then: "moonwalk()"},
			{ID: "b", When: "profit >= 0", Then: "press(bet=6)"},
			{ID: "b", When: "profit >= 0", Then: "regress()", Scope: "shoe"},
		},
	}

	errs := Validate(s, verb.DefaultRegistry())
	var codes []string
	for _, err := range errs {
		var se *SpecError
		require.ErrorAs(t, err, &se)
		codes = append(codes, se.Code)
	}
	assert.Equal(t, []string{
		ErrSchemaVersion,
		ErrUnknownVariable, ErrUnknownVerb,
		ErrMissingArg, ErrInvalidScope, ErrDuplicateRuleID,
	}, codes)
}

func TestValidateCleanSpec(t *testing.T) {
	errs := Validate(spec(ir.RuleDecl{ID: "r", When: "profit >= 0", Then: "press(bet=6)"}), verb.DefaultRegistry())
	assert.Empty(t, errs)
}

func TestCompileDoesNotAliasDecl(t *testing.T) {
	guards := []string{"point_on"}
	rules, err := Compile(spec(ir.RuleDecl{ID: "r", When: "profit >= 0", Then: "press(bet=6)", Guards: guards}), verb.DefaultRegistry())
	require.NoError(t, err)

	guards[0] = "bankroll > 0"
	assert.Equal(t, []string{"point_on"}, rules[0].Guards)
}

func TestCompileNamesEveryMissingArgument(t *testing.T) {
	reg := verb.NewRegistry()
	require.NoError(t, reg.Register("bet_both", verb.Signature{Required: []string{"bet", "amount"}}, nil))
	s := spec(ir.RuleDecl{ID: "r", When: "profit >= 0", Then: "bet_both()"})

	_, err := Compile(s, reg)
	var se *SpecError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, ErrMissingArg, se.Code)
	assert.Equal(t, "amount,bet", se.Token)
	assert.Contains(t, se.Error(), `"amount"`)
	assert.Contains(t, se.Error(), `"bet"`)

	errs := Validate(s, reg)
	require.Len(t, errs, 1)
	assert.Contains(t, errs[0].Error(), `"amount"`)
	assert.Contains(t, errs[0].Error(), `"bet"`)
}
