package engine

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/csc/internal/ir"
	"github.com/roach88/csc/internal/journal"
)

func TestClock_Sequence(t *testing.T) {
	tests := []struct {
		name  string
		clock *Clock
		want  []int64
	}{
		{"fresh", NewClock(), []int64{1, 2, 3}},
		{"resumed", NewClockAt(41), []int64{42, 43, 44}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got []int64
			for range tt.want {
				got = append(got, tt.clock.Next())
			}
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.want[len(tt.want)-1], tt.clock.Current())
		})
	}
}

func TestClock_ConcurrentNextIsUnique(t *testing.T) {
	c := NewClock()
	const workers, perWorker = 50, 200

	var (
		mu   sync.Mutex
		seen = make(map[int64]bool, workers*perWorker)
		wg   sync.WaitGroup
	)
	for range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range perWorker {
				seq := c.Next()
				mu.Lock()
				seen[seq] = true
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Len(t, seen, workers*perWorker)
	assert.Equal(t, int64(workers*perWorker), c.Current())
}

func TestClock_StampsAttempts(t *testing.T) {
	rules := compileRules(t,
		ir.RuleDecl{ID: "a", When: "profit < 0", Then: "regress(bet=6)"},
		ir.RuleDecl{ID: "b", When: "profit >= 0", Then: "press(bet=6)"},
	)
	j := journal.NewMemory()
	e := New(rules, nil, j, WithClock(NewClockAt(10)))

	_, err := e.Evaluate(context.Background(), "after_resolve", ir.Snapshot{"profit": ir.IRInt(3)})
	require.NoError(t, err)
	_, err = e.Evaluate(context.Background(), "after_resolve", ir.Snapshot{"profit": ir.IRInt(-3)})
	require.NoError(t, err)

	var seqs []int64
	for _, a := range j.Attempts() {
		seqs = append(seqs, a.Seq)
	}
	assert.Equal(t, []int64{11, 12, 13}, seqs)
}
