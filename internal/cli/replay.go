package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/roach88/csc/internal/engine"
	"github.com/roach88/csc/internal/journal"
	"github.com/roach88/csc/internal/session"
	"github.com/roach88/csc/internal/store"
	"github.com/roach88/csc/internal/verb"
)

// ReplayOptions holds flags for the replay command.
type ReplayOptions struct {
	*RootOptions
	Events         string
	Database       string
	RunID          string // recorded run to compare against
	Journal        string // recorded JSONL journal to compare against
	ReplayID       string
	AllowAnyWindow bool

	// RunIDGenerator overrides the replay id suffix source (for testing).
	RunIDGenerator engine.RunIDGenerator
}

// ReplayResult reports whether a replay reproduced the recorded journal.
type ReplayResult struct {
	Original         string            `json:"original"`
	Replay           string            `json:"replay"`
	SpecHash         string            `json:"spec_hash"`
	RecordedSpecHash string            `json:"recorded_spec_hash,omitempty"`
	Match            bool              `json:"match"`
	OriginalCount    int               `json:"original_attempts"`
	ReplayCount      int               `json:"replay_attempts"`
	Digest           string            `json:"digest"`
	Divergence       *store.Divergence `json:"divergence,omitempty"`
}

// NewReplayCommand creates the replay command.
func NewReplayCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ReplayOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "replay <spec>",
		Short: "Re-run a recorded session and verify the journal is identical",
		Long: `Re-run a behavior spec over the same event log and compare the new
decisions journal with a recorded one, attempt by attempt.

The recorded journal is either a run in the SQLite store (--db with --run) or
a JSONL journal file (--journal) holding exactly one run. With --db the replay
is stored as a new run named <run>-replay-<id>.

Exit codes:
  0 - Journals are identical
  1 - Journals diverge (the first differing attempt is printed)
  2 - Command error (database not found, unknown run, etc.)

Examples:
  csc replay strategy.yaml --events session.jsonl --db ./csc.db --run 0190...
  csc replay strategy.yaml --events session.jsonl --journal decisions.jsonl`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runReplay(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Events, "events", "", "event log (JSONL or YAML, required)")
	cmd.Flags().StringVar(&opts.Database, "db", rootOpts.Config.DB, "SQLite attempt store (env CSC_DB)")
	cmd.Flags().StringVar(&opts.RunID, "run", "", "recorded run id in --db")
	cmd.Flags().StringVar(&opts.Journal, "journal", "", "recorded JSONL journal")
	cmd.Flags().StringVar(&opts.ReplayID, "replay-id", "", "id of the replay run (default: <run>-replay-<uuid>)")
	cmd.Flags().BoolVar(&opts.AllowAnyWindow, "allow-any-window", false, "accept window names outside the standard set")
	_ = cmd.MarkFlagRequired("events")

	return cmd
}

func runReplay(opts *ReplayOptions, specPath string, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd.OutOrStdout(), cmd.ErrOrStderr())
	ctx := commandContext(cmd)

	if (opts.RunID == "") == (opts.Journal == "") {
		return NewExitError(ExitCommandError, "exactly one of --run or --journal is required")
	}
	if opts.RunID != "" && opts.Database == "" {
		return NewExitError(ExitCommandError, "--run requires --db")
	}

	reg := verb.DefaultRegistry()
	loaded, err := CompileSpec(specPath, reg)
	if err != nil {
		return specFailure(formatter, err)
	}

	events, err := session.LoadEvents(opts.Events, session.Options{AllowAnyWindow: opts.AllowAnyWindow})
	if err != nil {
		_ = formatter.Error(ErrCodeEvents, err.Error(), nil)
		return WrapExitError(ExitCommandError, "failed to load events", err)
	}

	var result *ReplayResult
	if opts.RunID != "" {
		result, err = replayStoredRun(ctx, opts, loaded, events, reg)
	} else {
		result, err = replayJournalFile(ctx, opts.Journal, loaded, events, reg)
	}
	if err != nil {
		code := ErrCodeStore
		if errors.Is(err, store.ErrRunNotFound) {
			code = ErrCodeNotFound
		}
		_ = formatter.Error(code, err.Error(), nil)
		return WrapExitError(ExitCommandError, "replay failed", err)
	}

	return outputReplayResult(formatter, result)
}

func replayStoredRun(ctx context.Context, opts *ReplayOptions, loaded *LoadedSpec, events []session.Event, reg *verb.Registry) (*ReplayResult, error) {
	st, err := store.Open(opts.Database)
	if err != nil {
		return nil, err
	}
	defer func() {
		if closeErr := st.Close(); closeErr != nil {
			slog.Error("error closing database", "error", closeErr)
		}
	}()

	recorded, err := st.ReadRun(ctx, opts.RunID)
	if err != nil {
		return nil, err
	}
	if recorded.SpecHash != loaded.Hash {
		slog.Warn("spec differs from the recorded run", "run_id", recorded.ID, "recorded", recorded.SpecHash, "current", loaded.Hash)
	}

	replayID := opts.ReplayID
	if replayID == "" {
		gen := opts.RunIDGenerator
		if gen == nil {
			gen = engine.UUIDv7Generator{}
		}
		replayID = opts.RunID + "-replay-" + gen.Generate()
	}

	if err := st.CreateRun(ctx, newStoreRun(replayID, loaded)); err != nil {
		return nil, err
	}
	eng := engine.New(loaded.Rules, reg, st.Journal(replayID))
	if _, err := session.Run(ctx, eng, events); err != nil {
		return nil, fmt.Errorf("replay run: %w", err)
	}

	parity, err := st.CompareRuns(ctx, opts.RunID, replayID)
	if err != nil {
		return nil, err
	}
	result := newReplayResult(parity, loaded.Hash)
	result.RecordedSpecHash = recorded.SpecHash
	return result, nil
}

func replayJournalFile(ctx context.Context, path string, loaded *LoadedSpec, events []session.Event, reg *verb.Registry) (*ReplayResult, error) {
	recorded, err := journal.ReadFile(path)
	if err != nil {
		return nil, err
	}

	mem := journal.NewMemory()
	eng := engine.New(loaded.Rules, reg, mem)
	if _, err := session.Run(ctx, eng, events); err != nil {
		return nil, fmt.Errorf("replay run: %w", err)
	}

	parity, err := store.Compare(recorded, mem.Attempts())
	if err != nil {
		return nil, err
	}
	parity.LeftRun, parity.RightRun = path, "replay"
	return newReplayResult(parity, loaded.Hash), nil
}

func newReplayResult(p store.Parity, specHash string) *ReplayResult {
	return &ReplayResult{
		Original:      p.LeftRun,
		Replay:        p.RightRun,
		SpecHash:      specHash,
		Match:         p.Match(),
		OriginalCount: p.LeftCount,
		ReplayCount:   p.RightCount,
		Digest:        p.RightDigest,
		Divergence:    p.Divergence,
	}
}

func outputReplayResult(formatter *OutputFormatter, result *ReplayResult) error {
	mismatch := NewExitError(ExitFailure, "replay diverged from the recorded journal")

	if formatter.JSON() {
		if result.Match {
			return formatter.Success(result)
		}
		if err := formatter.Failure("E_REPLAY_MISMATCH", mismatch.Message, result); err != nil {
			return err
		}
		return mismatch
	}

	w := formatter.Writer
	fmt.Fprintf(w, "Replay of %s as %s\n", result.Original, result.Replay)
	if result.RecordedSpecHash != "" && result.RecordedSpecHash != result.SpecHash {
		fmt.Fprintf(w, "  warning: spec hash %s differs from recorded %s\n",
			shortHash(result.SpecHash), shortHash(result.RecordedSpecHash))
	}
	if result.Match {
		fmt.Fprintf(w, "✓ Journals identical: %d attempt(s), digest %s\n", result.ReplayCount, shortHash(result.Digest))
		return nil
	}

	d := result.Divergence
	fmt.Fprintf(w, "✗ Journals diverge at attempt %d (recorded %d, replayed %d)\n",
		d.Index+1, result.OriginalCount, result.ReplayCount)
	fmt.Fprintf(w, "  recorded: %s\n", orNone(d.Left))
	fmt.Fprintf(w, "  replayed: %s\n", orNone(d.Right))
	return mismatch
}

func orNone(s string) string {
	if s == "" {
		return "<none>"
	}
	return s
}
