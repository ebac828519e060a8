package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/roach88/csc/internal/ir"
)

// createTestStore creates a new store in a temp directory for testing.
func createTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// createTestRun creates a run with minimal required fields.
func createTestRun(id string) Run {
	return Run{
		ID:            id,
		SpecHash:      "test-hash",
		SchemaVersion: ir.SchemaVersion,
		EngineVersion: ir.EngineVersion,
		RuleCount:     2,
	}
}

func mustCreateRun(t *testing.T, s *Store, id string) {
	t.Helper()
	if err := s.CreateRun(context.Background(), createTestRun(id)); err != nil {
		t.Fatalf("CreateRun(%q) failed: %v", id, err)
	}
}

// createTestAttempt creates an attempt with minimal required fields.
// ReasonNone produces a fired attempt.
func createTestAttempt(seq int64, ruleID string, reason ir.ReasonCode) ir.DecisionAttempt {
	a := ir.DecisionAttempt{
		Seq:       seq,
		RollIndex: seq * 10,
		Window:    "after_resolve",
		RuleID:    ruleID,
		Origin:    ir.OriginDSL,
		WhenExpr:  "profit >= 0",
		Verb:      "press",
		Args:      ir.IRObject{"bet": ir.IRString("6"), "units": ir.IRInt(1)},
		Reason:    reason,
	}
	if reason == ir.ReasonNone {
		a.GuardsPassed = true
		a.EvaluatedTrue = true
		a.Legal = true
		a.Applied = true
	} else {
		a.Detail = "detail for " + string(reason)
	}
	return a
}
