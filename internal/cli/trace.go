package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/csc/internal/ir"
	"github.com/roach88/csc/internal/store"
)

// TraceOptions holds flags for the trace command.
type TraceOptions struct {
	*RootOptions
	Database  string
	RuleID    string
	Window    string
	Reason    string // reason code, or "none" for plain misses and fires
	FiredOnly bool
}

// TraceEntry is one journal line in the timeline.
type TraceEntry struct {
	Seq       int64       `json:"seq"`
	RollIndex int64       `json:"roll_index"`
	Window    string      `json:"window"`
	RuleID    string      `json:"rule_id"`
	Fired     bool        `json:"fired"`
	Verb      string      `json:"verb"`
	Args      ir.IRObject `json:"args"`
	Reason    string      `json:"reason,omitempty"`
	Detail    string      `json:"detail,omitempty"`
}

// TraceResult is the journal of one run.
type TraceResult struct {
	RunID      string       `json:"run_id"`
	SpecHash   string       `json:"spec_hash"`
	SpecSource string       `json:"spec_source"`
	RuleCount  int          `json:"rule_count"`
	Timeline   []TraceEntry `json:"timeline"`
	Stats      TraceStats   `json:"stats"`
}

// TraceStats summarizes the whole run, ignoring filters.
type TraceStats struct {
	LastSeq  int64          `json:"last_seq"`
	Attempts int            `json:"attempts"`
	ByReason map[string]int `json:"by_reason"`
}

// RunSummary is one line of the run listing.
type RunSummary struct {
	ID         string `json:"id"`
	SpecHash   string `json:"spec_hash"`
	SpecSource string `json:"spec_source"`
	RuleCount  int    `json:"rule_count"`
}

// NewTraceCommand creates the trace command.
func NewTraceCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &TraceOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "trace [run-id]",
		Short: "Show the decisions journal of a stored run",
		Long: `Show the decisions journal of a run stored with "csc run --db".

Without a run id, lists the runs in the store. With one, prints every attempt
in sequence order; --rule, --window, --reason and --fired narrow the timeline.
Reasons are COOLDOWN, GUARD_FALSE, WHEN_EVAL_ERROR, or "none" for plain misses
and fires.

Examples:
  csc trace --db ./csc.db
  csc trace --db ./csc.db 0190... --rule press_on_profit
  csc trace --db ./csc.db 0190... --reason COOLDOWN --format json`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			runID := ""
			if len(args) == 1 {
				runID = args[0]
			}
			return runTrace(opts, runID, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", rootOpts.Config.DB, "SQLite attempt store (env CSC_DB)")
	cmd.Flags().StringVar(&opts.RuleID, "rule", "", "only attempts for this rule id")
	cmd.Flags().StringVar(&opts.Window, "window", "", "only attempts in this window")
	cmd.Flags().StringVar(&opts.Reason, "reason", "", "only attempts with this reason (COOLDOWN, GUARD_FALSE, WHEN_EVAL_ERROR, none)")
	cmd.Flags().BoolVar(&opts.FiredOnly, "fired", false, "only attempts that fired")

	return cmd
}

func runTrace(opts *TraceOptions, runID string, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd.OutOrStdout(), cmd.ErrOrStderr())
	ctx := commandContext(cmd)

	if opts.Database == "" {
		return NewExitError(ExitCommandError, "--db is required")
	}
	filter, err := traceFilter(opts)
	if err != nil {
		return WrapExitError(ExitCommandError, "invalid filter", err)
	}

	st, err := store.Open(opts.Database)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to open database", err)
	}
	defer func() {
		if closeErr := st.Close(); closeErr != nil {
			slog.Error("error closing database", "error", closeErr)
		}
	}()

	if runID == "" {
		return listRuns(ctx, formatter, st)
	}

	result, err := buildTrace(ctx, st, runID, filter)
	if err != nil {
		if errors.Is(err, store.ErrRunNotFound) {
			_ = formatter.Error(ErrCodeNotFound, err.Error(), nil)
		}
		return WrapExitError(ExitCommandError, "failed to read run", err)
	}
	return outputTrace(formatter, result)
}

func traceFilter(opts *TraceOptions) (store.Filter, error) {
	f := store.Filter{RuleID: opts.RuleID, Window: opts.Window, FiredOnly: opts.FiredOnly}
	if opts.Reason == "" {
		return f, nil
	}
	var reason ir.ReasonCode
	switch strings.ToUpper(opts.Reason) {
	case "NONE":
		reason = ir.ReasonNone
	case string(ir.ReasonCooldown):
		reason = ir.ReasonCooldown
	case string(ir.ReasonGuardFalse):
		reason = ir.ReasonGuardFalse
	case string(ir.ReasonWhenEvalError):
		reason = ir.ReasonWhenEvalError
	default:
		return f, fmt.Errorf("unknown reason %q", opts.Reason)
	}
	f.Reason = &reason
	return f, nil
}

func buildTrace(ctx context.Context, st *store.Store, runID string, filter store.Filter) (*TraceResult, error) {
	run, err := st.ReadRun(ctx, runID)
	if err != nil {
		return nil, err
	}
	attempts, err := st.ReadAttempts(ctx, runID, filter)
	if err != nil {
		return nil, err
	}
	lastSeq, err := st.GetLastSeq(ctx, runID)
	if err != nil {
		return nil, err
	}
	counts, err := st.CountByReason(ctx, runID)
	if err != nil {
		return nil, err
	}

	result := &TraceResult{
		RunID:      run.ID,
		SpecHash:   run.SpecHash,
		SpecSource: run.SpecSource,
		RuleCount:  run.RuleCount,
		Timeline:   make([]TraceEntry, 0, len(attempts)),
		Stats: TraceStats{
			LastSeq:  lastSeq,
			ByReason: make(map[string]int, len(counts)),
		},
	}
	for reason, n := range counts {
		result.Stats.ByReason[reasonLabel(reason)] = n
		result.Stats.Attempts += n
	}
	for _, a := range attempts {
		result.Timeline = append(result.Timeline, TraceEntry{
			Seq:       a.Seq,
			RollIndex: a.RollIndex,
			Window:    a.Window,
			RuleID:    a.RuleID,
			Fired:     a.Fired(),
			Verb:      a.Verb,
			Args:      a.Args,
			Reason:    string(a.Reason),
			Detail:    a.Detail,
		})
	}
	return result, nil
}

func reasonLabel(r ir.ReasonCode) string {
	if r == ir.ReasonNone {
		return "none"
	}
	return string(r)
}

func listRuns(ctx context.Context, formatter *OutputFormatter, st *store.Store) error {
	runs, err := st.ListRuns(ctx)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to list runs", err)
	}
	summaries := make([]RunSummary, 0, len(runs))
	for _, r := range runs {
		summaries = append(summaries, RunSummary{ID: r.ID, SpecHash: r.SpecHash, SpecSource: r.SpecSource, RuleCount: r.RuleCount})
	}

	if formatter.JSON() {
		return formatter.Success(summaries)
	}
	w := formatter.Writer
	if len(summaries) == 0 {
		fmt.Fprintln(w, "No runs found in database.")
		return nil
	}
	fmt.Fprintf(w, "%d run(s):\n", len(summaries))
	for _, r := range summaries {
		fmt.Fprintf(w, "  %s  spec %s  %d rule(s)  %s\n", r.ID, shortHash(r.SpecHash), r.RuleCount, r.SpecSource)
	}
	return nil
}

func outputTrace(formatter *OutputFormatter, result *TraceResult) error {
	if formatter.JSON() {
		return formatter.Success(result)
	}

	w := formatter.Writer
	fmt.Fprintf(w, "Run %s (spec %s, %d rule(s), %s)\n\n", result.RunID, shortHash(result.SpecHash), result.RuleCount, result.SpecSource)

	if len(result.Timeline) == 0 {
		fmt.Fprintln(w, "No matching attempts.")
	}
	for _, e := range result.Timeline {
		fmt.Fprintf(w, "  [%d] roll %-4d %-16s %-24s ", e.Seq, e.RollIndex, e.Window, e.RuleID)
		switch {
		case e.Fired:
			fmt.Fprintf(w, "✓ %s%s\n", e.Verb, formatArgs(e.Args))
		case e.Reason != "":
			if e.Detail != "" {
				fmt.Fprintf(w, "%s: %s\n", e.Reason, e.Detail)
			} else {
				fmt.Fprintln(w, e.Reason)
			}
		default:
			fmt.Fprintln(w, "miss")
		}
	}

	fmt.Fprintln(w)
	fmt.Fprintf(w, "Stats: %d attempt(s), last seq %d", result.Stats.Attempts, result.Stats.LastSeq)
	for _, label := range []string{"none", string(ir.ReasonCooldown), string(ir.ReasonGuardFalse), string(ir.ReasonWhenEvalError)} {
		if n := result.Stats.ByReason[label]; n > 0 {
			fmt.Fprintf(w, ", %s=%d", label, n)
		}
	}
	fmt.Fprintln(w)
	return nil
}
