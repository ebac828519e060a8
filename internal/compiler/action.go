package compiler

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/roach88/csc/internal/ir"
)

var (
	// actionPattern matches verb(args) with optional surrounding whitespace.
	actionPattern = regexp.MustCompile(`^\s*([A-Za-z_][A-Za-z0-9_]*)\s*\((.*)\)\s*$`)
	argKeyPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)
	intPattern    = regexp.MustCompile(`^-?\d+$`)
	floatPattern  = regexp.MustCompile(`^-?\d+\.\d+$`)
	barePattern   = regexp.MustCompile(`^[A-Za-z0-9_][A-Za-z0-9_.\-]*$`)
)

// ParseAction splits a then clause into its verb name and literal arguments.
// Values are integers, decimals, bare tokens, or quoted tokens; quotes are
// stripped. The returned error is a *SpecError without rule context.
func ParseAction(then string) (string, ir.IRObject, error) {
	m := actionPattern.FindStringSubmatch(then)
	if m == nil {
		return "", nil, &SpecError{
			Code:    ErrMalformedAction,
			Token:   strings.TrimSpace(then),
			Message: fmt.Sprintf("expected verb(args), got %q", strings.TrimSpace(then)),
		}
	}

	verbName, argSrc := m[1], strings.TrimSpace(m[2])
	args := ir.IRObject{}
	if argSrc == "" {
		return verbName, args, nil
	}

	for _, part := range strings.Split(argSrc, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		key, raw, ok := strings.Cut(part, "=")
		if !ok {
			return "", nil, &SpecError{
				Code:    ErrMalformedAction,
				Token:   part,
				Message: fmt.Sprintf("argument %q must be key=value", part),
			}
		}
		key, raw = strings.TrimSpace(key), strings.TrimSpace(raw)
		if !argKeyPattern.MatchString(key) {
			return "", nil, &SpecError{
				Code:    ErrMalformedAction,
				Token:   key,
				Message: fmt.Sprintf("invalid argument name %q", key),
			}
		}
		if _, dup := args[key]; dup {
			return "", nil, &SpecError{
				Code:    ErrInvalidArgValue,
				Token:   key,
				Message: fmt.Sprintf("argument %q given more than once", key),
			}
		}
		v, err := parseArgValue(raw)
		if err != nil {
			return "", nil, &SpecError{
				Code:    ErrInvalidArgValue,
				Token:   raw,
				Message: fmt.Sprintf("argument %q: %v", key, err),
			}
		}
		args[key] = v
	}
	return verbName, args, nil
}

func parseArgValue(raw string) (ir.IRValue, error) {
	switch {
	case raw == "":
		return nil, fmt.Errorf("value is empty")
	case intPattern.MatchString(raw):
		n, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("integer %s out of range", raw)
		}
		return ir.IRInt(n), nil
	case floatPattern.MatchString(raw):
		f, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid number %s", raw)
		}
		return ir.IRFloat(f), nil
	}

	unquoted := raw
	if len(raw) >= 2 && (raw[0] == '"' || raw[0] == '\'') && raw[len(raw)-1] == raw[0] {
		unquoted = raw[1 : len(raw)-1]
	}
	if !barePattern.MatchString(unquoted) {
		return nil, fmt.Errorf("value %q is not a number or bare token", raw)
	}
	return ir.IRString(unquoted), nil
}
