package store

import (
	"context"
	"errors"
	"testing"

	"github.com/roach88/csc/internal/ir"
)

func seedRun(t *testing.T, s *Store, runID string) {
	t.Helper()
	ctx := context.Background()
	mustCreateRun(t, s, runID)

	attempts := []ir.DecisionAttempt{
		createTestAttempt(1, "a", ir.ReasonCooldown),
		createTestAttempt(2, "b", ir.ReasonGuardFalse),
		createTestAttempt(3, "c", ir.ReasonNone),
		createTestAttempt(4, "a", ir.ReasonWhenEvalError),
		createTestAttempt(5, "b", ir.ReasonNone),
	}
	attempts[3].Window = "hand_end"

	// A plain miss: reason none, not applied.
	attempts[4].Applied = false
	attempts[4].Legal = false
	attempts[4].EvaluatedTrue = false

	for _, a := range attempts {
		if err := s.WriteAttempt(ctx, runID, a); err != nil {
			t.Fatalf("WriteAttempt() failed: %v", err)
		}
	}
}

func seqs(attempts []ir.DecisionAttempt) []int64 {
	out := make([]int64, len(attempts))
	for i, a := range attempts {
		out[i] = a.Seq
	}
	return out
}

func equalSeqs(a, b []int64) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func TestReadAttempts_Filters(t *testing.T) {
	s := createTestStore(t)
	seedRun(t, s, "run-1")

	none := ir.ReasonNone
	cooldown := ir.ReasonCooldown

	tests := []struct {
		name   string
		filter Filter
		want   []int64
	}{
		{"all", Filter{}, []int64{1, 2, 3, 4, 5}},
		{"by rule", Filter{RuleID: "a"}, []int64{1, 4}},
		{"by window", Filter{Window: "hand_end"}, []int64{4}},
		{"by reason", Filter{Reason: &cooldown}, []int64{1}},
		{"reason none", Filter{Reason: &none}, []int64{3, 5}},
		{"fired only", Filter{FiredOnly: true}, []int64{3}},
		{"combined", Filter{RuleID: "b", Reason: &none}, []int64{5}},
		{"no match", Filter{RuleID: "zzz"}, []int64{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := s.ReadAttempts(context.Background(), "run-1", tt.filter)
			if err != nil {
				t.Fatalf("ReadAttempts() failed: %v", err)
			}
			if got == nil {
				t.Fatal("ReadAttempts() returned nil, want empty slice")
			}
			if !equalSeqs(seqs(got), tt.want) {
				t.Errorf("seqs = %v, want %v", seqs(got), tt.want)
			}
		})
	}
}

func TestReadAttempts_IsolatedByRun(t *testing.T) {
	s := createTestStore(t)
	seedRun(t, s, "run-1")
	mustCreateRun(t, s, "run-2")

	got, err := s.ReadAttempts(context.Background(), "run-2", Filter{})
	if err != nil {
		t.Fatalf("ReadAttempts() failed: %v", err)
	}
	if len(got) != 0 {
		t.Errorf("run-2 has %d attempts, want 0", len(got))
	}
}

func TestReadRun_NotFound(t *testing.T) {
	s := createTestStore(t)

	_, err := s.ReadRun(context.Background(), "missing")
	if !errors.Is(err, ErrRunNotFound) {
		t.Errorf("ReadRun() error = %v, want ErrRunNotFound", err)
	}
}

func TestListRuns_CreationOrder(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	runs, err := s.ListRuns(ctx)
	if err != nil {
		t.Fatalf("ListRuns() failed: %v", err)
	}
	if runs == nil || len(runs) != 0 {
		t.Fatalf("ListRuns() on empty store = %v, want empty slice", runs)
	}

	for _, id := range []string{"zeta", "alpha", "mid"} {
		mustCreateRun(t, s, id)
	}
	runs, err = s.ListRuns(ctx)
	if err != nil {
		t.Fatalf("ListRuns() failed: %v", err)
	}
	var ids []string
	for _, r := range runs {
		ids = append(ids, r.ID)
	}
	if len(ids) != 3 || ids[0] != "zeta" || ids[1] != "alpha" || ids[2] != "mid" {
		t.Errorf("ListRuns() ids = %v, want [zeta alpha mid]", ids)
	}
}

func TestGetLastSeq_EmptyRun(t *testing.T) {
	s := createTestStore(t)
	mustCreateRun(t, s, "run-1")

	seq, err := s.GetLastSeq(context.Background(), "run-1")
	if err != nil {
		t.Fatalf("GetLastSeq() failed: %v", err)
	}
	if seq != 0 {
		t.Errorf("GetLastSeq() = %d, want 0", seq)
	}
}

func TestCountByReason(t *testing.T) {
	s := createTestStore(t)
	seedRun(t, s, "run-1")

	counts, err := s.CountByReason(context.Background(), "run-1")
	if err != nil {
		t.Fatalf("CountByReason() failed: %v", err)
	}
	want := map[ir.ReasonCode]int{
		ir.ReasonNone:          2,
		ir.ReasonCooldown:      1,
		ir.ReasonGuardFalse:    1,
		ir.ReasonWhenEvalError: 1,
	}
	if len(counts) != len(want) {
		t.Fatalf("CountByReason() = %v, want %v", counts, want)
	}
	for k, v := range want {
		if counts[k] != v {
			t.Errorf("count[%q] = %d, want %d", k, counts[k], v)
		}
	}
}
