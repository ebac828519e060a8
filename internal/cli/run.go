package cli

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/roach88/csc/internal/engine"
	"github.com/roach88/csc/internal/ir"
	"github.com/roach88/csc/internal/journal"
	"github.com/roach88/csc/internal/session"
	"github.com/roach88/csc/internal/store"
	"github.com/roach88/csc/internal/verb"
)

// RunOptions holds flags for the run command.
type RunOptions struct {
	*RootOptions
	Events         string
	Database       string
	Journal        string
	RunID          string
	AllowAnyWindow bool

	// RunIDGenerator overrides the run id source (for testing).
	// If nil, defaults to UUIDv7Generator.
	RunIDGenerator engine.RunIDGenerator
}

// RunResult is the output of a run.
type RunResult struct {
	RunID    string         `json:"run_id"`
	SpecHash string         `json:"spec_hash"`
	Windows  []WindowOutput `json:"windows"`
	Intents  int            `json:"intents"`
	Attempts int            `json:"attempts"`
	Digest   string         `json:"digest"`
}

// WindowOutput is the outcome of one window event.
type WindowOutput struct {
	Line      int         `json:"line"`
	Window    string      `json:"window"`
	RollIndex int64       `json:"roll_index"`
	RuleID    string      `json:"rule_id,omitempty"`
	Intent    ir.IRObject `json:"intent,omitempty"`
}

// NewRunCommand creates the run command.
func NewRunCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RunOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "run <spec>",
		Short: "Evaluate a spec against an event log",
		Long: `Evaluate a behavior spec against a recorded event log.

The event log is JSONL (one {"window": ..., "snapshot": {...}} or
{"advance": "roll|hand|point_cycle"} object per line) or a YAML list of the
same objects. Every decision attempt is journaled: to the SQLite store with
--db, to a JSONL file with --journal, or both.

Example:
  csc run strategy.yaml --events session.jsonl
  csc run strategy.yaml --events session.jsonl --db ./csc.db --journal decisions.jsonl`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runEngine(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Events, "events", "", "event log (JSONL or YAML, required)")
	cmd.Flags().StringVar(&opts.Database, "db", rootOpts.Config.DB, "SQLite attempt store (env CSC_DB)")
	cmd.Flags().StringVar(&opts.Journal, "journal", rootOpts.Config.Journal, "append attempts to a JSONL journal (env CSC_JOURNAL)")
	cmd.Flags().StringVar(&opts.RunID, "run-id", "", "run id (default: generated UUIDv7)")
	cmd.Flags().BoolVar(&opts.AllowAnyWindow, "allow-any-window", false, "accept window names outside the standard set")
	_ = cmd.MarkFlagRequired("events")

	return cmd
}

func runEngine(opts *RunOptions, specPath string, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd.OutOrStdout(), cmd.ErrOrStderr())
	ctx := commandContext(cmd)

	reg := verb.DefaultRegistry()
	loaded, err := CompileSpec(specPath, reg)
	if err != nil {
		return specFailure(formatter, err)
	}
	slog.Info("spec compiled", "path", specPath, "rules", len(loaded.Rules), "spec_hash", loaded.Hash)

	events, err := session.LoadEvents(opts.Events, session.Options{AllowAnyWindow: opts.AllowAnyWindow})
	if err != nil {
		_ = formatter.Error(ErrCodeEvents, err.Error(), nil)
		return WrapExitError(ExitCommandError, "failed to load events", err)
	}

	runID := opts.RunID
	if runID == "" {
		gen := opts.RunIDGenerator
		if gen == nil {
			gen = engine.UUIDv7Generator{}
		}
		runID = gen.Generate()
	}

	sinks, closeSinks, err := openSinks(ctx, opts.Database, opts.Journal, runID, loaded)
	if err != nil {
		_ = formatter.Error(ErrCodeStore, err.Error(), nil)
		return WrapExitError(ExitCommandError, "failed to open journal", err)
	}
	defer closeSinks()

	eng := engine.New(loaded.Rules, reg, sinks)
	slog.Info("run starting", "run_id", runID, "events", len(events))

	outcomes, err := session.Run(ctx, eng, events)
	if err != nil {
		_ = formatter.Error(ErrCodeGeneric, err.Error(), nil)
		return WrapExitError(ExitFailure, "engine error", err)
	}

	result, err := newRunResult(runID, loaded.Hash, outcomes)
	if err != nil {
		return WrapExitError(ExitFailure, "digest journal", err)
	}
	slog.Info("run finished", "run_id", runID, "windows", len(result.Windows), "intents", result.Intents)

	return outputRunResult(formatter, result)
}

// openSinks builds the journal for a run: the store run when dbPath is set,
// the JSONL file when journalPath is set. The returned func closes both.
func openSinks(ctx context.Context, dbPath, journalPath, runID string, loaded *LoadedSpec) (journal.Journal, func(), error) {
	var (
		sinks   []journal.Journal
		closers []func() error
	)
	closeAll := func() {
		for _, c := range closers {
			if err := c(); err != nil {
				slog.Error("error closing journal", "error", err)
			}
		}
	}

	if dbPath != "" {
		st, err := store.Open(dbPath)
		if err != nil {
			return nil, closeAll, err
		}
		closers = append(closers, st.Close)
		if err := st.CreateRun(ctx, newStoreRun(runID, loaded)); err != nil {
			closeAll()
			return nil, func() {}, err
		}
		sinks = append(sinks, st.Journal(runID))
	}

	if journalPath != "" {
		f, err := journal.OpenFile(journalPath)
		if err != nil {
			closeAll()
			return nil, func() {}, err
		}
		closers = append(closers, f.Close)
		sinks = append(sinks, f)
	}

	switch len(sinks) {
	case 0:
		return journal.Discard, closeAll, nil
	case 1:
		return sinks[0], closeAll, nil
	default:
		return journal.Tee(sinks...), closeAll, nil
	}
}

func newStoreRun(runID string, loaded *LoadedSpec) store.Run {
	return store.Run{
		ID:            runID,
		SpecHash:      loaded.Hash,
		SpecSource:    loaded.Path,
		SchemaVersion: loaded.Spec.SchemaVersion,
		EngineVersion: ir.EngineVersion,
		RuleCount:     len(loaded.Rules),
	}
}

func newRunResult(runID, specHash string, outcomes []session.Outcome) (*RunResult, error) {
	attempts := session.Attempts(outcomes)
	digest, err := ir.JournalDigest(attempts)
	if err != nil {
		return nil, err
	}
	result := &RunResult{
		RunID:    runID,
		SpecHash: specHash,
		Windows:  make([]WindowOutput, 0, len(outcomes)),
		Attempts: len(attempts),
		Digest:   digest,
	}
	for _, o := range outcomes {
		w := WindowOutput{Line: o.Line, Window: o.Window, RollIndex: o.RollIndex}
		if o.Intent != nil {
			w.RuleID = o.RuleID
			w.Intent = o.Intent.Map()
			result.Intents++
		}
		result.Windows = append(result.Windows, w)
	}
	return result, nil
}

func outputRunResult(formatter *OutputFormatter, result *RunResult) error {
	if formatter.JSON() {
		return formatter.Success(result)
	}

	w := formatter.Writer
	fmt.Fprintf(w, "Run %s (spec %s)\n", result.RunID, shortHash(result.SpecHash))
	for _, win := range result.Windows {
		fmt.Fprintf(w, "  line %-4d %-16s roll %-4d ", win.Line, win.Window, win.RollIndex)
		if win.Intent == nil {
			fmt.Fprintln(w, "→ none")
			continue
		}
		fmt.Fprintf(w, "→ %s [%s]\n", formatIntent(win.Intent), win.RuleID)
	}
	fmt.Fprintf(w, "✓ %d window(s), %d intent(s), %d attempt(s)\n",
		len(result.Windows), result.Intents, result.Attempts)
	return nil
}

// formatIntent renders an intent mapping as verb(k=v, ...).
func formatIntent(intent ir.IRObject) string {
	args := intent.Clone()
	name, _ := args["verb"].(ir.IRString)
	delete(args, "verb")
	return string(name) + formatArgs(args)
}

func shortHash(h string) string {
	if len(h) > 12 {
		return h[:12]
	}
	return h
}

// commandContext returns the command's context, or Background when the
// command runs outside Execute.
func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}
