package compiler

import (
	"fmt"
	"strings"

	"cuelang.org/go/cue/errors"
	"cuelang.org/go/cue/token"

	"github.com/roach88/csc/internal/ir"
)

// Spec error codes (E200-E299)
const (
	ErrLoad            = "E200" // spec file could not be read or parsed
	ErrSchemaVersion   = "E201" // unsupported schema version or malformed container
	ErrMissingField    = "E202" // rule lacks id, when or then
	ErrUnknownVariable = "E203" // identifier outside the variable whitelist
	ErrFunctionCall    = "E204" // function-call syntax in an expression
	ErrStringLiteral   = "E205" // string literal in an expression
	ErrExprSyntax      = "E206" // expression does not parse
	ErrMalformedAction = "E207" // then clause is not verb(args)
	ErrUnknownVerb     = "E208" // verb not registered
	ErrMissingArg      = "E209" // required verb argument missing
	ErrUnknownArg      = "E210" // argument not in the verb signature
	ErrInvalidScope    = "E211" // scope is not roll, hand or point_cycle
	ErrInvalidCooldown = "E212" // cooldown is not a valid count or axis mapping
	ErrDuplicateRuleID = "E213" // two rules share an id
	ErrInvalidArgValue = "E214" // argument value malformed or rejected by the verb
)

// SpecError reports why a behavior spec was rejected. It names the offending
// rule and field and, when known, the token and source position.
type SpecError struct {
	Code    string      `json:"code"`
	RuleID  string      `json:"rule_id,omitempty"`
	Field   string      `json:"field"`
	Token   string      `json:"token,omitempty"`
	Message string      `json:"message"`
	Pos     ir.Position `json:"-"`
}

func (e *SpecError) Error() string {
	var sb strings.Builder
	if e.Pos.IsValid() {
		sb.WriteString(e.Pos.String())
		sb.WriteString(": ")
	}
	fmt.Fprintf(&sb, "[%s] ", e.Code)
	if e.RuleID != "" {
		fmt.Fprintf(&sb, "rule %q: ", e.RuleID)
	}
	if e.Field != "" {
		sb.WriteString(e.Field)
		sb.WriteString(": ")
	}
	sb.WriteString(e.Message)
	return sb.String()
}

// positionOf converts a CUE position.
func positionOf(pos token.Pos) ir.Position {
	if !pos.IsValid() {
		return ir.Position{}
	}
	return ir.Position{File: pos.Filename(), Line: pos.Line(), Col: pos.Column()}
}

// formatCUEError extracts position info from CUE errors.
func formatCUEError(err error, source string) error {
	if err == nil {
		return nil
	}

	errs := errors.Errors(err)
	if len(errs) == 0 {
		return &SpecError{Code: ErrLoad, Field: "cue", Message: err.Error(), Pos: ir.Position{File: source}}
	}

	first := errs[0]
	se := &SpecError{Code: ErrLoad, Field: "cue", Message: first.Error(), Pos: ir.Position{File: source}}
	if positions := errors.Positions(first); len(positions) > 0 {
		se.Pos = positionOf(positions[0])
	}
	return se
}
