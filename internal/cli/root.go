package cli

import (
	"fmt"
	"io"
	"log/slog"
	"slices"

	"github.com/spf13/cobra"

	"github.com/roach88/csc/internal/config"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	Verbose bool
	Format  string // "json" | "text"

	// Config holds the environment defaults read when the root command is
	// built. Flags override it.
	Config config.Config
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// NewRootCommand creates the root command for the csc CLI.
func NewRootCommand() *cobra.Command {
	cfg, cfgErr := config.Load()
	opts := &RootOptions{Config: cfg}

	cmd := &cobra.Command{
		Use:   "csc",
		Short: "csc - craps strategy controller rule engine",
		Long: `Compile behavior rule specs and evaluate them against table snapshots.

Rules are declared as "when <condition> then <verb>(<args>)" with optional
guards, scope and cooldowns. At each decision window the first rule whose
guards and condition hold proposes an intent, and every rule's fate is
written to the decisions journal.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if cfgErr != nil {
				return WrapExitError(ExitCommandError, "invalid environment", cfgErr)
			}
			if !isValidFormat(opts.Format) {
				return NewExitError(ExitCommandError, fmt.Sprintf("invalid format %q: must be one of %v", opts.Format, ValidFormats))
			}
			return setupLogging(opts, cmd.ErrOrStderr())
		},
	}

	format := cfg.Format
	if format == "" {
		format = "text"
	}

	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", format, "output format (json|text)")

	cmd.AddCommand(NewCompileCommand(opts))
	cmd.AddCommand(NewValidateCommand(opts))
	cmd.AddCommand(NewParseCommand(opts))
	cmd.AddCommand(NewRunCommand(opts))
	cmd.AddCommand(NewReplayCommand(opts))
	cmd.AddCommand(NewTraceCommand(opts))
	cmd.AddCommand(NewTestCommand(opts))
	cmd.AddCommand(NewServeCommand(opts))

	return cmd
}

// Execute runs the root command and returns the process exit code.
func Execute(args []string, stdout, stderr io.Writer) int {
	cmd := NewRootCommand()
	cmd.SetArgs(args)
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)
	err := cmd.Execute()
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
	}
	return GetExitCode(err)
}

// setupLogging installs the process-wide slog handler. --verbose wins over
// CSC_LOG_LEVEL.
func setupLogging(opts *RootOptions, w io.Writer) error {
	level := slog.LevelDebug
	if !opts.Verbose {
		var err error
		level, err = config.ParseLevel(opts.Config.LogLevel)
		if err != nil {
			return WrapExitError(ExitCommandError, "invalid log level", err)
		}
	}
	handler := slog.NewTextHandler(w, &slog.HandlerOptions{Level: level})
	slog.SetDefault(slog.New(handler))
	return nil
}

func isValidFormat(format string) bool {
	return slices.Contains(ValidFormats, format)
}
