package engine

import (
	"errors"
	"fmt"
)

// RuntimeError represents an error detected while evaluating a window or
// advancing a scope.
//
// Runtime errors include:
//   - Unknown verb: a compiled rule names a verb the registry no longer has
//   - Invalid args: the registry rejected a rule's arguments at apply time
//   - Journal write: the journal refused an attempt
//   - Invalid axis / window: the driver passed a bad signal
//
// Expression evaluation failures are NOT runtime errors. They are recorded
// in the journal as GUARD_FALSE or WHEN_EVAL_ERROR and evaluation continues.
type RuntimeError struct {
	// Code identifies the error category.
	Code RuntimeErrorCode

	// Message is a human-readable description.
	Message string

	// RuleID identifies the affected rule, if any.
	RuleID string

	// Window identifies the decision window being evaluated, if any.
	Window string

	// Err is the underlying cause.
	Err error
}

// RuntimeErrorCode categorizes runtime errors.
type RuntimeErrorCode string

const (
	// ErrCodeUnknownVerb indicates a rule's verb has no registration.
	ErrCodeUnknownVerb RuntimeErrorCode = "UNKNOWN_VERB"

	// ErrCodeInvalidArgs indicates the registry rejected a rule's arguments.
	ErrCodeInvalidArgs RuntimeErrorCode = "INVALID_ARGS"

	// ErrCodeJournalWrite indicates an attempt could not be journaled.
	ErrCodeJournalWrite RuntimeErrorCode = "JOURNAL_WRITE"

	// ErrCodeInvalidAxis indicates a scope advance named an unknown axis.
	ErrCodeInvalidAxis RuntimeErrorCode = "INVALID_AXIS"

	// ErrCodeInvalidWindow indicates an empty window id.
	ErrCodeInvalidWindow RuntimeErrorCode = "INVALID_WINDOW"
)

// Error implements the error interface.
func (e *RuntimeError) Error() string {
	if e.Window != "" && e.RuleID != "" {
		return fmt.Sprintf("%s: %s (window=%s, rule=%s)", e.Code, e.Message, e.Window, e.RuleID)
	}
	if e.Window != "" {
		return fmt.Sprintf("%s: %s (window=%s)", e.Code, e.Message, e.Window)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause.
func (e *RuntimeError) Unwrap() error {
	return e.Err
}

// IsUnknownVerb returns true if the error is an unknown verb error.
// Uses errors.As to handle wrapped errors.
func IsUnknownVerb(err error) bool {
	return hasCode(err, ErrCodeUnknownVerb)
}

// IsJournalError returns true if the error came from the journal.
func IsJournalError(err error) bool {
	return hasCode(err, ErrCodeJournalWrite)
}

// IsInvalidAxis returns true if the error rejected a scope advance.
func IsInvalidAxis(err error) bool {
	return hasCode(err, ErrCodeInvalidAxis)
}

func hasCode(err error, code RuntimeErrorCode) bool {
	var re *RuntimeError
	if errors.As(err, &re) {
		return re.Code == code
	}
	return false
}
