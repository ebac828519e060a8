package expr

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/csc/internal/ir"
)

func testSnapshot() ir.Snapshot {
	return ir.Snapshot{
		"bankroll":        ir.IRInt(250),
		"drawdown":        ir.IRFloat(0.15),
		"profit":          ir.IRInt(0),
		"point_on":        ir.IRBool(true),
		"point_number":    ir.IRInt(6),
		"last_roll_total": ir.IRInt(7),
		"run_id":          ir.IRString("r1"),
	}
}

func TestEval(t *testing.T) {
	tests := []struct {
		src  string
		want bool
	}{
		{"bankroll > 100", true},
		{"bankroll < 100", false},
		{"profit >= 0", true},
		{"profit <= -1", false},
		{"point_number == 6", true},
		{"point_number != 6", false},
		{"point_on", true},
		{"not point_on", false},
		{"!point_on", false},
		{"point_on == true", true},
		{"point_on != false", true},
		{"point_on and point_number == 6", true},
		{"point_on && point_number == 8", false},
		{"point_number == 8 or bankroll > 200", true},
		{"point_number == 8 || bankroll > 300", false},
		{"0 < drawdown <= 0.2", true},
		{"0.2 < drawdown <= 0.5", false},
		{"drawdown > 0", true},
		{"bankroll == 250.0", true},
		{"last_roll_total > 6 > 5", true},
		{"true", true},
		{"false or not false", true},
		{"not (bankroll > 100 and point_on)", false},
	}
	snap := testSnapshot()
	for _, tt := range tests {
		t.Run(tt.src, func(t *testing.T) {
			got, err := MustParse(tt.src).Eval(snap)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestEvalShortCircuit(t *testing.T) {
	snap := testSnapshot()

	// missing variable on the right is never read
	got, err := MustParse("point_on or missing_var > 0").Eval(snap)
	require.NoError(t, err)
	assert.True(t, got)

	got, err = MustParse("not point_on and missing_var > 0").Eval(snap)
	require.NoError(t, err)
	assert.False(t, got)

	got, err = MustParse("bankroll < 0 < missing_var").Eval(snap)
	require.NoError(t, err)
	assert.False(t, got)
}

func TestEvalErrors(t *testing.T) {
	tests := []struct {
		name    string
		src     string
		message string
		varName string
	}{
		{"missing variable", "box_hits > 2", `variable "box_hits" is not in the snapshot`, "box_hits"},
		{"number as bool", "bankroll", "expression yields int, not bool", ""},
		{"number in and", "bankroll and point_on", "and operand bankroll is int, not bool", ""},
		{"number in not", "not bankroll", "not operand bankroll is int, not bool", ""},
		{"bool ordering", "point_on > false", "operator > is not defined for bool", ""},
		{"bool vs number", "point_on == 1", "cannot compare bool == int", ""},
		{"number vs bool", "bankroll == true", "cannot compare int == bool", ""},
		{"string vs number", "run_id == 1", "cannot compare string == int", ""},
	}
	snap := testSnapshot()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := MustParse(tt.src).Eval(snap)
			require.Error(t, err)
			var ee *EvalError
			require.ErrorAs(t, err, &ee)
			assert.Equal(t, tt.message, ee.Message)
			assert.Equal(t, tt.varName, ee.Var)
		})
	}
}

func TestEvalIsPure(t *testing.T) {
	prog := MustParse("point_on and bankroll > 100")
	snap := testSnapshot()
	for i := 0; i < 5; i++ {
		got, err := prog.Eval(snap)
		require.NoError(t, err)
		assert.True(t, got)
	}
	assert.Equal(t, testSnapshot(), snap)
}
