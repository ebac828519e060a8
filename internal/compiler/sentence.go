package compiler

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/roach88/csc/internal/expr"
	"github.com/roach88/csc/internal/ir"
)

var (
	thenPattern = regexp.MustCompile(`(?i)\bTHEN\b`)
	whenPattern = regexp.MustCompile(`(?i)\bWHEN\b`)
)

// SentenceError reports a malformed WHEN ... THEN ... sentence. Col is
// 1-based within Source.
type SentenceError struct {
	Message string
	Line    int
	Col     int
	Source  string
}

func (e *SentenceError) Error() string {
	col := e.Col
	if col < 1 {
		col = 1
	}
	return fmt.Sprintf("line %d, col %d: %s\n  %s\n  %s^", e.Line, col, e.Message, e.Source, strings.Repeat(" ", col-1))
}

// ParseSentence turns one "WHEN <condition> THEN <verb>(<args>)" sentence
// into a rule declaration. The declaration still has to go through Compile.
func ParseSentence(sentence string) (ir.RuleDecl, error) {
	return parseSentence(sentence, 1)
}

// ParseSentences parses one sentence per non-empty line. Lines starting with
// '#' are comments.
func ParseSentences(text string) ([]ir.RuleDecl, error) {
	var decls []ir.RuleDecl
	for i, raw := range strings.Split(text, "\n") {
		line := strings.TrimSpace(raw)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		decl, err := parseSentence(line, i+1)
		if err != nil {
			return nil, err
		}
		decls = append(decls, decl)
	}
	return decls, nil
}

// SpecFromSentences wraps parsed sentences in a current-version spec.
func SpecFromSentences(text, source string) (ir.BehaviorSpec, error) {
	decls, err := ParseSentences(text)
	if err != nil {
		return ir.BehaviorSpec{}, err
	}
	for i := range decls {
		decls[i].Pos.File = source
	}
	return ir.BehaviorSpec{SchemaVersion: ir.SchemaVersion, Rules: decls, Source: source}, nil
}

func parseSentence(sentence string, line int) (ir.RuleDecl, error) {
	fail := func(col int, format string, args ...any) (ir.RuleDecl, error) {
		return ir.RuleDecl{}, &SentenceError{Message: fmt.Sprintf(format, args...), Line: line, Col: col, Source: sentence}
	}

	if strings.TrimSpace(sentence) == "" {
		return fail(1, "empty sentence")
	}

	thens := thenPattern.FindAllStringIndex(sentence, -1)
	switch {
	case len(thens) == 0:
		return fail(len(sentence)+1, "missing THEN in sentence")
	case len(thens) > 1:
		return fail(thens[1][0]+1, "THEN appears more than once")
	}
	condPart, actionPart := sentence[:thens[0][0]], sentence[thens[0][1]:]

	when := whenPattern.FindStringIndex(condPart)
	if when == nil {
		return fail(1, "missing WHEN in sentence")
	}
	if strings.TrimSpace(condPart[:when[0]]) != "" {
		return fail(1, "sentence must start with WHEN")
	}

	condStart := when[1]
	condition := strings.TrimSpace(condPart[condStart:])
	if condition == "" {
		return fail(condStart+1, "missing condition expression after WHEN")
	}
	condOffset := condStart + strings.Index(condPart[condStart:], condition)

	// Surface unexpected characters here, with a column into the sentence.
	if _, err := expr.Lex(condition); err != nil {
		var se *expr.SyntaxError
		if errors.As(err, &se) {
			return fail(condOffset+se.Col, "%s", se.Message)
		}
		return fail(condOffset+1, "%v", err)
	}

	action := strings.TrimSpace(actionPart)
	actionOffset := thens[0][1] + strings.Index(actionPart, action)
	m := actionPattern.FindStringSubmatch(action)
	if m == nil {
		return fail(actionOffset+1, "malformed THEN clause; expected verb(args), got %q", action)
	}

	return ir.RuleDecl{
		ID:       fmt.Sprintf("line%d_%s", line, m[1]),
		When:     condition,
		Then:     action,
		Scope:    string(ir.AxisRoll),
		Cooldown: 0,
		Pos:      ir.Position{Line: line, Col: 1},
	}, nil
}
