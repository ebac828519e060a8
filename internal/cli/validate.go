package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/csc/internal/compiler"
	"github.com/roach88/csc/internal/verb"
)

// ValidationResult holds validation results.
type ValidationResult struct {
	Valid  bool              `json:"valid"`
	Rules  int               `json:"rules"`
	Errors []ValidationIssue `json:"errors,omitempty"`
}

// ValidationIssue is one problem found in a spec.
type ValidationIssue struct {
	Code     string `json:"code"`
	RuleID   string `json:"rule_id,omitempty"`
	Field    string `json:"field,omitempty"`
	Token    string `json:"token,omitempty"`
	Message  string `json:"message"`
	Position string `json:"position,omitempty"`
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate <spec>",
		Short: "Report every problem in a behavior spec",
		Long: `Validate a behavior spec and report every problem at once.

Unlike compile, validation does not stop at the first error. Each problem
names the rule id, the field and, for expressions, the offending token.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(rootOpts, args[0], cmd)
		},
	}

	return cmd
}

func runValidate(opts *RootOptions, path string, cmd *cobra.Command) error {
	formatter := newFormatter(opts, cmd.OutOrStdout(), cmd.ErrOrStderr())

	spec, err := LoadSpec(path)
	if err != nil {
		var sentErr *compiler.SentenceError
		if errors.As(err, &sentErr) {
			return outputValidationErrors(formatter, []error{err})
		}
		return specFailure(formatter, err)
	}
	formatter.VerboseLog("Validating %d rule(s) from %s", len(spec.Rules), path)

	if errs := compiler.Validate(spec, verb.DefaultRegistry()); len(errs) > 0 {
		return outputValidationErrors(formatter, errs)
	}

	if formatter.JSON() {
		return formatter.Success(ValidationResult{Valid: true, Rules: len(spec.Rules)})
	}
	fmt.Fprintf(formatter.Writer, "✓ %s is valid (%d rule(s))\n", path, len(spec.Rules))
	return nil
}

func validationIssue(err error) ValidationIssue {
	var specErr *compiler.SpecError
	if errors.As(err, &specErr) {
		issue := ValidationIssue{
			Code:    specErr.Code,
			RuleID:  specErr.RuleID,
			Field:   specErr.Field,
			Token:   specErr.Token,
			Message: specErr.Message,
		}
		if specErr.Pos.IsValid() {
			issue.Position = specErr.Pos.String()
		}
		return issue
	}
	var sentErr *compiler.SentenceError
	if errors.As(err, &sentErr) {
		return ValidationIssue{
			Code:     ErrCodeSentence,
			Message:  sentErr.Message,
			Position: fmt.Sprintf("%d:%d", sentErr.Line, sentErr.Col),
		}
	}
	return ValidationIssue{Code: ErrCodeGeneric, Message: err.Error()}
}

func outputValidationErrors(formatter *OutputFormatter, errs []error) error {
	issues := make([]ValidationIssue, len(errs))
	for i, err := range errs {
		issues[i] = validationIssue(err)
	}
	failure := NewExitError(ExitFailure, fmt.Sprintf("validation failed with %d error(s)", len(errs)))

	if formatter.JSON() {
		if err := formatter.Failure(issues[0].Code, issues[0].Message, ValidationResult{Valid: false, Errors: issues}); err != nil {
			return err
		}
		return failure
	}

	w := formatter.Writer
	fmt.Fprintln(w, "✗ Validation failed")
	fmt.Fprintln(w)
	for _, err := range errs {
		fmt.Fprintf(w, "  %v\n", err)
	}
	fmt.Fprintln(w)
	return failure
}
