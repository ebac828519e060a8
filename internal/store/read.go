package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/roach88/csc/internal/ir"
)

// ErrRunNotFound is returned when a run id has no record.
var ErrRunNotFound = errors.New("run not found")

// ReadRun retrieves a single run by id.
// Returns an error wrapping ErrRunNotFound if it does not exist.
func (s *Store) ReadRun(ctx context.Context, id string) (Run, error) {
	var run Run
	err := s.db.QueryRowContext(ctx, `
		SELECT id, spec_hash, spec_source, schema_version, engine_version, rule_count
		FROM runs
		WHERE id = ?
	`, id).Scan(&run.ID, &run.SpecHash, &run.SpecSource, &run.SchemaVersion, &run.EngineVersion, &run.RuleCount)
	if errors.Is(err, sql.ErrNoRows) {
		return Run{}, fmt.Errorf("%w: %s", ErrRunNotFound, id)
	}
	if err != nil {
		return Run{}, fmt.Errorf("read run: %w", err)
	}
	return run, nil
}

// ListRuns returns every run in creation order.
// Returns an empty slice (not nil) if the store has no runs.
func (s *Store) ListRuns(ctx context.Context) ([]Run, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, spec_hash, spec_source, schema_version, engine_version, rule_count
		FROM runs
		ORDER BY rowid ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	runs := []Run{}
	for rows.Next() {
		var run Run
		if err := rows.Scan(&run.ID, &run.SpecHash, &run.SpecSource, &run.SchemaVersion, &run.EngineVersion, &run.RuleCount); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate runs: %w", err)
	}
	return runs, nil
}

// Filter narrows ReadAttempts. Zero fields do not filter.
type Filter struct {
	RuleID string
	Window string
	// Reason selects one reason code. ir.ReasonNone selects plain misses
	// and fires; use a nil pointer to keep every reason.
	Reason    *ir.ReasonCode
	FiredOnly bool
}

// ReadAttempts returns the attempts of a run that match f.
// Results are ordered deterministically: ORDER BY seq ASC.
//
// Returns an empty slice (not nil) if nothing matches.
func (s *Store) ReadAttempts(ctx context.Context, runID string, f Filter) ([]ir.DecisionAttempt, error) {
	where := []string{"run_id = ?"}
	args := []any{runID}
	if f.RuleID != "" {
		where = append(where, "rule_id = ?")
		args = append(args, f.RuleID)
	}
	if f.Window != "" {
		where = append(where, "decision_window = ?")
		args = append(args, f.Window)
	}
	if f.Reason != nil {
		where = append(where, "reason = ?")
		args = append(args, string(*f.Reason))
	}
	if f.FiredOnly {
		where = append(where, "applied = 1")
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT seq, roll_index, decision_window, rule_id, origin, when_expr,
		       evaluated_true, guards_passed, verb, args, legal, applied, reason, detail
		FROM decision_attempts
		WHERE `+strings.Join(where, " AND ")+`
		ORDER BY seq ASC
	`, args...)
	if err != nil {
		return nil, fmt.Errorf("query attempts: %w", err)
	}
	defer rows.Close()

	attempts := []ir.DecisionAttempt{}
	for rows.Next() {
		a, err := scanAttempt(rows)
		if err != nil {
			return nil, err
		}
		attempts = append(attempts, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate attempts: %w", err)
	}
	return attempts, nil
}

// scanAttempt scans a row into a DecisionAttempt.
func scanAttempt(rows *sql.Rows) (ir.DecisionAttempt, error) {
	var a ir.DecisionAttempt
	var argsJSON, reason string
	var evaluated, guards, legal, applied int

	if err := rows.Scan(
		&a.Seq, &a.RollIndex, &a.Window, &a.RuleID, &a.Origin, &a.WhenExpr,
		&evaluated, &guards, &a.Verb, &argsJSON, &legal, &applied, &reason, &a.Detail,
	); err != nil {
		return ir.DecisionAttempt{}, fmt.Errorf("scan attempt: %w", err)
	}

	args, err := unmarshalArgs(argsJSON)
	if err != nil {
		return ir.DecisionAttempt{}, err
	}
	a.Args = args
	a.EvaluatedTrue = evaluated == 1
	a.GuardsPassed = guards == 1
	a.Legal = legal == 1
	a.Applied = applied == 1
	a.Reason = ir.ReasonCode(reason)

	return a, nil
}

// GetLastSeq returns the highest seq journaled for a run, or 0.
// Used to resume the logical clock from the correct position.
func (s *Store) GetLastSeq(ctx context.Context, runID string) (int64, error) {
	var seq int64
	err := s.db.QueryRowContext(ctx, `
		SELECT COALESCE(MAX(seq), 0) FROM decision_attempts WHERE run_id = ?
	`, runID).Scan(&seq)
	if err != nil {
		return 0, fmt.Errorf("get last seq: %w", err)
	}
	return seq, nil
}

// CountByReason returns the number of attempts per reason code for a run.
// Plain misses and fires are counted under ir.ReasonNone.
func (s *Store) CountByReason(ctx context.Context, runID string) (map[ir.ReasonCode]int, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT reason, COUNT(*) FROM decision_attempts
		WHERE run_id = ?
		GROUP BY reason
		ORDER BY reason
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("count attempts: %w", err)
	}
	defer rows.Close()

	counts := make(map[ir.ReasonCode]int)
	for rows.Next() {
		var reason string
		var n int
		if err := rows.Scan(&reason, &n); err != nil {
			return nil, fmt.Errorf("scan count: %w", err)
		}
		counts[ir.ReasonCode(reason)] = n
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate counts: %w", err)
	}
	return counts, nil
}
