package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/csc/internal/compiler"
	"github.com/roach88/csc/internal/ir"
	"github.com/roach88/csc/internal/verb"
)

// CompileOptions holds flags for the compile command.
type CompileOptions struct {
	*RootOptions
	Output string // output file path
}

// CompilationResult is the compiled form of a spec as written by --output.
type CompilationResult struct {
	Source        string         `json:"source"`
	SchemaVersion string         `json:"schema_version"`
	SpecHash      string         `json:"spec_hash"`
	Rules         []CompiledRule `json:"rules"`
}

// CompiledRule is one rule after validation, in declaration order.
type CompiledRule struct {
	ID       string          `json:"id"`
	When     string          `json:"when"`
	Guards   []string        `json:"guards,omitempty"`
	Verb     string          `json:"verb"`
	Args     ir.IRObject     `json:"args"`
	Scope    string          `json:"scope,omitempty"`
	Cooldown ir.CooldownSpec `json:"cooldown"`
}

// NewCompileCommand creates the compile command.
func NewCompileCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &CompileOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "compile <spec>",
		Short: "Compile a behavior spec into rule definitions",
		Long: `Compile a behavior spec into validated rule definitions.

The spec may be CUE, JSON or YAML (the behavior container, optionally under a
top-level "behavior" key) or a .rules/.txt file of WHEN ... THEN ... sentences.
Compilation stops at the first error, which names the rule and field.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCompile(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVarP(&opts.Output, "output", "o", "", "output file path")

	return cmd
}

func runCompile(opts *CompileOptions, path string, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd.OutOrStdout(), cmd.ErrOrStderr())

	loaded, err := CompileSpec(path, verb.DefaultRegistry())
	if err != nil {
		return specFailure(formatter, err)
	}
	formatter.VerboseLog("Compiled %d rule(s) from %s", len(loaded.Rules), path)

	result := newCompilationResult(loaded)

	if opts.Output != "" {
		if err := writeCompiled(result, opts.Output); err != nil {
			_ = formatter.Error(ErrCodeWriteFailed, err.Error(), nil)
			return WrapExitError(ExitCommandError, "write output", err)
		}
	}

	return outputCompileSuccess(formatter, result, opts.Output)
}

func newCompilationResult(loaded *LoadedSpec) *CompilationResult {
	result := &CompilationResult{
		Source:        loaded.Path,
		SchemaVersion: loaded.Spec.SchemaVersion,
		SpecHash:      loaded.Hash,
		Rules:         make([]CompiledRule, 0, len(loaded.Rules)),
	}
	for _, r := range loaded.Rules {
		result.Rules = append(result.Rules, compiledRule(r))
	}
	return result
}

func compiledRule(r compiler.RuleDefinition) CompiledRule {
	args := r.Args
	if args == nil {
		args = ir.IRObject{}
	}
	return CompiledRule{
		ID:       r.ID,
		When:     r.Condition,
		Guards:   r.Guards,
		Verb:     r.Verb,
		Args:     args,
		Scope:    string(r.Scope),
		Cooldown: r.Cooldown,
	}
}

func outputCompileSuccess(formatter *OutputFormatter, result *CompilationResult, outputFile string) error {
	if formatter.JSON() {
		return formatter.Success(result)
	}

	w := formatter.Writer
	fmt.Fprintf(w, "✓ Compiled %d rule(s)\n", len(result.Rules))
	fmt.Fprintf(w, "  spec hash: %s\n\n", result.SpecHash)

	if len(result.Rules) > 0 {
		fmt.Fprintln(w, "Rules:")
		for _, r := range result.Rules {
			fmt.Fprintf(w, "  %s: %s → %s%s\n", r.ID, r.When, r.Verb, formatArgs(r.Args))
			if len(r.Guards) > 0 {
				fmt.Fprintf(w, "    guards: %s\n", strings.Join(r.Guards, "; "))
			}
			if !r.Cooldown.IsZero() {
				fmt.Fprintf(w, "    cooldown: %s\n", formatCooldown(r.Cooldown))
			}
		}
		fmt.Fprintln(w)
	}

	if outputFile != "" {
		fmt.Fprintf(w, "Wrote compiled rules to %s\n", outputFile)
	}
	return nil
}

// formatArgs renders verb arguments as "(k=v, ...)" in key order.
func formatArgs(args ir.IRObject) string {
	parts := make([]string, 0, len(args))
	for _, k := range args.SortedKeys() {
		parts = append(parts, fmt.Sprintf("%s=%v", k, ir.ToAny(args[k])))
	}
	return "(" + strings.Join(parts, ", ") + ")"
}

func formatCooldown(c ir.CooldownSpec) string {
	var parts []string
	for _, axis := range []ir.Axis{ir.AxisRoll, ir.AxisHand, ir.AxisPointCycle} {
		if n := c.Get(axis); n > 0 {
			parts = append(parts, fmt.Sprintf("%s=%d", axis, n))
		}
	}
	return strings.Join(parts, " ")
}

func writeCompiled(result *CompilationResult, filename string) error {
	data, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling rules: %w", err)
	}
	if err := os.WriteFile(filename, append(data, '\n'), 0644); err != nil {
		return fmt.Errorf("writing file: %w", err)
	}
	return nil
}
