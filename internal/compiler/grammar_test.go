package compiler

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateExprAccepts(t *testing.T) {
	for _, src := range []string{
		"bankroll > 100",
		"point_on and point_number == 6",
		"point_on && !(pso_count >= 2)",
		"0 < drawdown <= 0.2",
		"not (profit < 0) or box_hits != 3",
		"hand_id >= 1 and roll_in_hand < 10 and last_roll_total == 7",
		"seed == 42",
		"true",
	} {
		t.Run(src, func(t *testing.T) {
			prog, err := ValidateExpr(src)
			require.NoError(t, err)
			require.NotNil(t, prog)
		})
	}
}

func TestValidateExprRejects(t *testing.T) {
	tests := []struct {
		name  string
		src   string
		code  string
		token string
	}{
		{"unknown variable", "mystery_var > 0", ErrUnknownVariable, "mystery_var"},
		{"unknown variable later", "bankroll > 0 and __import__ == 1", ErrUnknownVariable, "__import__"},
		{"function call", "abs(drawdown) > 0.1", ErrFunctionCall, "abs"},
		{"dunder call", "__import__(os)", ErrFunctionCall, "__import__"},
		{"true call", "true(1)", ErrFunctionCall, "true"},
		{"false call", "false(point_on)", ErrFunctionCall, "false"},
		{"string literal", `run_id == "abc"`, ErrStringLiteral, `"`},
		{"attribute", "bankroll.real > 0", ErrExprSyntax, "."},
		{"dangling", "bankroll >", ErrExprSyntax, ""},
		{"empty", "", ErrExprSyntax, ""},
		{"lambda", "lambda: 1", ErrExprSyntax, ":"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ValidateExpr(tt.src)
			require.Error(t, err)
			var se *SpecError
			require.ErrorAs(t, err, &se)
			assert.Equal(t, tt.code, se.Code)
			assert.Equal(t, tt.token, se.Token)
		})
	}
}

func TestUnknownVariableMessageNamesToken(t *testing.T) {
	_, err := ValidateExpr("mystery_var > 0")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "mystery_var")
}
