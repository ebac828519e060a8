package expr

import "fmt"

// ErrorKind classifies a SyntaxError so callers can map it to their own codes.
type ErrorKind int

const (
	ErrSyntax ErrorKind = iota
	ErrFunctionCall
	ErrStringLiteral
)

// SyntaxError reports an expression the grammar does not accept.
type SyntaxError struct {
	Kind    ErrorKind
	Col     int
	Token   string
	Message string
}

func (e *SyntaxError) Error() string {
	return fmt.Sprintf("col %d: %s", e.Col, e.Message)
}

// EvalError reports an expression that could not be evaluated against a
// snapshot: a missing variable or a type mismatch.
type EvalError struct {
	Var     string
	Message string
}

func (e *EvalError) Error() string {
	return e.Message
}
