package store

import (
	"context"
	"fmt"

	"github.com/roach88/csc/internal/ir"
)

// Run describes one engine run.
type Run struct {
	ID            string
	SpecHash      string
	SpecSource    string
	SchemaVersion string
	EngineVersion string
	RuleCount     int
}

// CreateRun inserts a run record. Run ids are unique; creating the same id
// twice is an error.
func (s *Store) CreateRun(ctx context.Context, run Run) error {
	if run.ID == "" {
		return fmt.Errorf("create run: id is required")
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO runs
		(id, spec_hash, spec_source, schema_version, engine_version, rule_count)
		VALUES (?, ?, ?, ?, ?, ?)
	`,
		run.ID,
		run.SpecHash,
		run.SpecSource,
		run.SchemaVersion,
		run.EngineVersion,
		run.RuleCount,
	)
	if err != nil {
		return fmt.Errorf("create run %s: %w", run.ID, err)
	}
	return nil
}

// WriteAttempt appends one decision attempt to a run.
//
// The attempt's Args are serialized to canonical JSON per RFC 8785 for
// deterministic replay. The run must exist (foreign key constraint) and
// (run_id, seq) must be new: an attempt is never overwritten.
func (s *Store) WriteAttempt(ctx context.Context, runID string, a ir.DecisionAttempt) error {
	argsJSON, err := marshalArgs(a.Args)
	if err != nil {
		return fmt.Errorf("write attempt: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO decision_attempts
		(run_id, seq, roll_index, decision_window, rule_id, origin, when_expr,
		 evaluated_true, guards_passed, verb, args, legal, applied, reason, detail)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		runID,
		a.Seq,
		a.RollIndex,
		a.Window,
		a.RuleID,
		a.Origin,
		a.WhenExpr,
		boolToInt(a.EvaluatedTrue),
		boolToInt(a.GuardsPassed),
		a.Verb,
		argsJSON,
		boolToInt(a.Legal),
		boolToInt(a.Applied),
		string(a.Reason),
		a.Detail,
	)
	if err != nil {
		return fmt.Errorf("write attempt %s/%d: %w", runID, a.Seq, err)
	}
	return nil
}

// RunJournal writes attempts into one run of the store. It satisfies the
// engine's journal interface.
type RunJournal struct {
	store *Store
	runID string
}

// Journal returns a journal that appends to runID.
func (s *Store) Journal(runID string) *RunJournal {
	return &RunJournal{store: s, runID: runID}
}

// RunID returns the run the journal writes to.
func (j *RunJournal) RunID() string {
	return j.runID
}

// Write appends a to the run.
func (j *RunJournal) Write(ctx context.Context, a ir.DecisionAttempt) error {
	return j.store.WriteAttempt(ctx, j.runID, a)
}
