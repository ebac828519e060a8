package compiler

import (
	"errors"
	"fmt"

	"github.com/roach88/csc/internal/expr"
)

// Whitelist is the closed set of snapshot variables a rule may reference.
var Whitelist = map[string]bool{
	"bankroll":        true,
	"drawdown":        true,
	"profit":          true,
	"hand_id":         true,
	"roll_in_hand":    true,
	"point_on":        true,
	"point_number":    true,
	"last_roll_total": true,
	"pso_count":       true,
	"box_hits":        true,
	"seed":            true,
	"run_id":          true,
}

// KnownWindows lists the decision windows the external driver emits.
var KnownWindows = map[string]bool{
	"come_out_start":  true,
	"after_point_set": true,
	"after_resolve":   true,
	"hand_end":        true,
}

// ValidateExpr checks src against the expression grammar and the variable
// whitelist and returns the parsed program. The returned error is a
// *SpecError with Code, Token and Message set; callers fill in rule context.
func ValidateExpr(src string) (*expr.Program, error) {
	prog, err := expr.Parse(src)
	if err != nil {
		var se *expr.SyntaxError
		if !errors.As(err, &se) {
			return nil, &SpecError{Code: ErrExprSyntax, Message: err.Error()}
		}
		code := ErrExprSyntax
		switch se.Kind {
		case expr.ErrFunctionCall:
			code = ErrFunctionCall
		case expr.ErrStringLiteral:
			code = ErrStringLiteral
		}
		return nil, &SpecError{Code: code, Token: se.Token, Message: se.Error()}
	}

	for _, name := range prog.Vars() {
		if !Whitelist[name] {
			return nil, &SpecError{
				Code:    ErrUnknownVariable,
				Token:   name,
				Message: fmt.Sprintf("unknown variable %q", name),
			}
		}
	}
	return prog, nil
}
