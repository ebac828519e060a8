package cli

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/roach88/csc/internal/compiler"
	"github.com/roach88/csc/internal/ir"
	"github.com/roach88/csc/internal/verb"
)

// ParseOptions holds flags for the parse command.
type ParseOptions struct {
	*RootOptions
	Output string
}

// ParseResult is the spec built from a sentence file.
type ParseResult struct {
	Source string        `json:"source"`
	Rules  []ir.RuleDecl `json:"rules"`
}

// NewParseCommand creates the parse command.
func NewParseCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ParseOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "parse <sentences|->",
		Short: "Convert WHEN ... THEN ... sentences into a YAML behavior spec",
		Long: `Parse rule sentences, one per line, into a behavior spec.

Each line reads "WHEN <condition> THEN <verb>(<args>)". Blank lines and lines
starting with '#' are skipped. Rules are named line<N>_<verb>, scoped to roll
and have no cooldown. The resulting spec is compiled before it is printed so
unknown variables and verbs are reported here.

Examples:
  csc parse strategy.rules
  csc parse strategy.rules -o strategy.yaml
  echo "WHEN profit > 0 THEN press(bet=6, units=1)" | csc parse -`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runParse(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVarP(&opts.Output, "output", "o", "", "write the YAML spec to a file")

	return cmd
}

func runParse(opts *ParseOptions, path string, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd.OutOrStdout(), cmd.ErrOrStderr())

	text, source, err := readSentences(path, cmd.InOrStdin())
	if err != nil {
		_ = formatter.Error(ErrCodeNotFound, err.Error(), nil)
		return WrapExitError(ExitCommandError, "read sentences", err)
	}

	spec, err := compiler.SpecFromSentences(text, source)
	if err != nil {
		return specFailure(formatter, err)
	}
	if _, err := compiler.Compile(spec, verb.DefaultRegistry()); err != nil {
		return specFailure(formatter, err)
	}
	formatter.VerboseLog("Parsed %d rule(s) from %s", len(spec.Rules), source)

	data, err := yaml.Marshal(map[string]ir.BehaviorSpec{"behavior": spec})
	if err != nil {
		return WrapExitError(ExitCommandError, "encode spec", err)
	}

	if opts.Output != "" {
		if err := os.WriteFile(opts.Output, data, 0644); err != nil {
			_ = formatter.Error(ErrCodeWriteFailed, err.Error(), nil)
			return WrapExitError(ExitCommandError, "write output", err)
		}
	}

	if formatter.JSON() {
		return formatter.Success(ParseResult{Source: source, Rules: spec.Rules})
	}
	if opts.Output != "" {
		fmt.Fprintf(formatter.Writer, "✓ Parsed %d rule(s), wrote %s\n", len(spec.Rules), opts.Output)
		return nil
	}
	_, err = formatter.Writer.Write(data)
	return err
}

func readSentences(path string, stdin io.Reader) (string, string, error) {
	if path == "-" {
		data, err := io.ReadAll(stdin)
		if err != nil {
			return "", "", err
		}
		return string(data), "<stdin>", nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return "", "", err
	}
	return string(data), path, nil
}
