package cli

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/roach88/csc/internal/compiler"
	"github.com/roach88/csc/internal/ir"
	"github.com/roach88/csc/internal/verb"
)

// CLI error codes. Spec errors keep their own E2xx codes.
const (
	ErrCodeGeneric     = "E001" // Generic/unknown error
	ErrCodeNotFound    = "E005" // Path not found
	ErrCodeWriteFailed = "E007" // File write error
	ErrCodeSentence    = "E008" // Sentence does not parse
	ErrCodeEvents      = "E009" // Event log unreadable or malformed
	ErrCodeStore       = "E010" // Attempt store error
)

// sentenceExts are spec files read with the WHEN ... THEN ... front-end.
var sentenceExts = map[string]bool{
	".rules": true,
	".txt":   true,
}

// LoadedSpec is a spec file compiled against a verb registry.
type LoadedSpec struct {
	Path  string
	Spec  ir.BehaviorSpec
	Rules []compiler.RuleDefinition
	Hash  string
}

// LoadSpec reads a behavior spec from path. CUE, JSON and YAML files go
// through the spec loader; .rules and .txt files are parsed as sentences.
func LoadSpec(path string) (ir.BehaviorSpec, error) {
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return ir.BehaviorSpec{}, NewExitError(ExitCommandError, fmt.Sprintf("spec not found: %s", path))
		}
		return ir.BehaviorSpec{}, WrapExitError(ExitCommandError, "stat spec", err)
	}

	if sentenceExts[strings.ToLower(filepath.Ext(path))] {
		data, err := os.ReadFile(path)
		if err != nil {
			return ir.BehaviorSpec{}, WrapExitError(ExitCommandError, "read spec", err)
		}
		return compiler.SpecFromSentences(string(data), path)
	}
	return compiler.LoadFile(path)
}

// CompileSpec loads path and compiles it, stopping at the first error.
func CompileSpec(path string, reg *verb.Registry) (*LoadedSpec, error) {
	spec, err := LoadSpec(path)
	if err != nil {
		return nil, err
	}
	rules, err := compiler.Compile(spec, reg)
	if err != nil {
		return nil, err
	}
	hash, err := ir.SpecHash(spec)
	if err != nil {
		return nil, fmt.Errorf("hash spec: %w", err)
	}
	return &LoadedSpec{Path: path, Spec: spec, Rules: rules, Hash: hash}, nil
}

// errorCode picks the code reported for err in JSON output.
func errorCode(err error) string {
	var specErr *compiler.SpecError
	if errors.As(err, &specErr) {
		return specErr.Code
	}
	var sentErr *compiler.SentenceError
	if errors.As(err, &sentErr) {
		return ErrCodeSentence
	}
	var exitErr *ExitError
	if errors.As(err, &exitErr) && strings.Contains(exitErr.Message, "not found") {
		return ErrCodeNotFound
	}
	return ErrCodeGeneric
}

// specFailure reports a load or compile error and returns it as a command
// error.
func specFailure(f *OutputFormatter, err error) error {
	code := errorCode(err)
	if outErr := f.Error(code, err.Error(), nil); outErr != nil {
		return outErr
	}
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr
	}
	return WrapExitError(ExitCommandError, code, err)
}
