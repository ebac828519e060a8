package store

import (
	"context"
	"reflect"
	"testing"

	"github.com/roach88/csc/internal/ir"
)

func TestCreateRun_RoundTrip(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	run := createTestRun("run-1")
	run.SpecSource = "strategy.yaml"
	if err := s.CreateRun(ctx, run); err != nil {
		t.Fatalf("CreateRun() failed: %v", err)
	}

	got, err := s.ReadRun(ctx, "run-1")
	if err != nil {
		t.Fatalf("ReadRun() failed: %v", err)
	}
	if got != run {
		t.Errorf("ReadRun() = %+v, want %+v", got, run)
	}
}

func TestCreateRun_Duplicate(t *testing.T) {
	s := createTestStore(t)
	mustCreateRun(t, s, "run-1")

	if err := s.CreateRun(context.Background(), createTestRun("run-1")); err == nil {
		t.Error("creating the same run twice should fail")
	}
}

func TestCreateRun_RequiresID(t *testing.T) {
	s := createTestStore(t)

	if err := s.CreateRun(context.Background(), Run{}); err == nil {
		t.Error("expected error for empty run id")
	}
}

func TestWriteAttempt_RoundTrip(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	mustCreateRun(t, s, "run-1")

	fired := createTestAttempt(1, "press_six", ir.ReasonNone)
	fired.Args = ir.IRObject{
		"bet":   ir.IRString("6"),
		"units": ir.IRInt(2),
		"ratio": ir.IRFloat(0.5),
	}
	miss := createTestAttempt(2, "regress", ir.ReasonWhenEvalError)

	for _, a := range []ir.DecisionAttempt{fired, miss} {
		if err := s.WriteAttempt(ctx, "run-1", a); err != nil {
			t.Fatalf("WriteAttempt() failed: %v", err)
		}
	}

	got, err := s.ReadAttempts(ctx, "run-1", Filter{})
	if err != nil {
		t.Fatalf("ReadAttempts() failed: %v", err)
	}
	want := []ir.DecisionAttempt{fired, miss}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("ReadAttempts() =\n%+v\nwant\n%+v", got, want)
	}
}

func TestWriteAttempt_NilArgs(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	mustCreateRun(t, s, "run-1")

	a := createTestAttempt(1, "a", ir.ReasonCooldown)
	a.Args = nil
	if err := s.WriteAttempt(ctx, "run-1", a); err != nil {
		t.Fatalf("WriteAttempt() failed: %v", err)
	}

	got, err := s.ReadAttempts(ctx, "run-1", Filter{})
	if err != nil {
		t.Fatalf("ReadAttempts() failed: %v", err)
	}
	if got[0].Args == nil || len(got[0].Args) != 0 {
		t.Errorf("Args = %#v, want empty object", got[0].Args)
	}
}

func TestRunJournal_Write(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	mustCreateRun(t, s, "run-1")

	j := s.Journal("run-1")
	if j.RunID() != "run-1" {
		t.Errorf("RunID() = %q", j.RunID())
	}
	for i := int64(1); i <= 3; i++ {
		if err := j.Write(ctx, createTestAttempt(i, "r", ir.ReasonGuardFalse)); err != nil {
			t.Fatalf("Write(%d) failed: %v", i, err)
		}
	}

	last, err := s.GetLastSeq(ctx, "run-1")
	if err != nil {
		t.Fatalf("GetLastSeq() failed: %v", err)
	}
	if last != 3 {
		t.Errorf("GetLastSeq() = %d, want 3", last)
	}
}
