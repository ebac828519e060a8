package journal

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/csc/internal/ir"
)

func attempt(seq int64, rule string) ir.DecisionAttempt {
	return ir.DecisionAttempt{
		Seq:      seq,
		Window:   "come_out_start",
		RuleID:   rule,
		Origin:   ir.OriginDSL,
		WhenExpr: "bankroll > 0",
		Verb:     "regress",
		Args:     ir.IRObject{"bet": ir.IRString("6")},
	}
}

func TestMemoryKeepsOrder(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	require.NoError(t, m.Write(ctx, attempt(1, "a")))
	require.NoError(t, m.Write(ctx, attempt(2, "b")))
	require.NoError(t, m.Write(ctx, attempt(3, "c")))

	got := m.Attempts()
	require.Len(t, got, 3)
	assert.Equal(t, []string{"a", "b", "c"}, []string{got[0].RuleID, got[1].RuleID, got[2].RuleID})
	assert.Equal(t, 3, m.Len())
}

func TestMemoryCopiesArgs(t *testing.T) {
	m := NewMemory()
	a := attempt(1, "a")
	require.NoError(t, m.Write(context.Background(), a))

	a.Args["bet"] = ir.IRString("8")
	assert.Equal(t, ir.IRString("6"), m.Attempts()[0].Args["bet"])
}

func TestFileAppendsCanonicalLines(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), DefaultFileName)

	j, err := OpenFile(path)
	require.NoError(t, err)
	require.NoError(t, j.Write(ctx, attempt(1, "a")))
	require.NoError(t, j.Close())

	// Reopening appends rather than truncating.
	j, err = OpenFile(path)
	require.NoError(t, err)
	miss := attempt(2, "b")
	miss.Reason = ir.ReasonGuardFalse
	require.NoError(t, j.Write(ctx, miss))
	require.NoError(t, j.Close())
	require.NoError(t, j.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimRight(string(data), "\n"), "\n")
	require.Len(t, lines, 2)
	assert.Equal(t,
		`{"applied":false,"args":{"bet":"6"},"evaluated_true":false,"guards_passed":false,"legal":false,"origin":"dsl","roll_index":0,"rule_id":"a","seq":1,"verb":"regress","when_expr":"bankroll > 0","window":"come_out_start"}`,
		lines[0])
	assert.Contains(t, lines[1], `"reason":"GUARD_FALSE"`)

	got, err := ReadFile(path)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "a", got[0].RuleID)
	assert.Equal(t, ir.ReasonGuardFalse, got[1].Reason)
	assert.Equal(t, ir.IRString("6"), got[1].Args["bet"])
}

func TestFileWriteAfterClose(t *testing.T) {
	j, err := OpenFile(filepath.Join(t.TempDir(), DefaultFileName))
	require.NoError(t, err)
	require.NoError(t, j.Close())

	err = j.Write(context.Background(), attempt(1, "a"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "closed")
}

func TestFileLinesReadableBeforeClose(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), DefaultFileName)
	j, err := OpenFile(path)
	require.NoError(t, err)
	t.Cleanup(func() { j.Close() })

	for i := int64(1); i <= 3; i++ {
		require.NoError(t, j.Write(ctx, attempt(i, "r")))
		got, err := ReadFile(path)
		require.NoError(t, err)
		require.Len(t, got, int(i))
		assert.Equal(t, i, got[i-1].Seq)
	}
}

func TestReadFileReportsLine(t *testing.T) {
	path := filepath.Join(t.TempDir(), DefaultFileName)
	require.NoError(t, os.WriteFile(path, []byte("{\"seq\":1}\n\nnot json\n"), 0o644))

	_, err := ReadFile(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), ":3:")
}

type failing struct{}

func (failing) Write(context.Context, ir.DecisionAttempt) error {
	return errors.New("disk full")
}

func TestTeeWritesAll(t *testing.T) {
	a, b := NewMemory(), NewMemory()
	j := Tee(a, failing{}, b, Discard)

	err := j.Write(context.Background(), attempt(1, "a"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "disk full")
	assert.Equal(t, 1, a.Len())
	assert.Equal(t, 1, b.Len())
}
