package cli

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const noCooldownSpec = `schema_version: "1.0"
rules:
  - id: press_on_profit
    when: "profit >= 0"
    then: "press(bet=6, units=2)"
  - id: regress_on_profit
    when: "profit >= 0"
    then: "regress(bet=6)"
`

// recordRun stores one run of the strategy spec and returns the database path.
func recordRun(t *testing.T, runID string) string {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "csc.db")
	_, err := runCLI(t, "text", NewRunCommand, strategySpec, "--events", sessionEvents, "--db", dbPath, "--run-id", runID)
	require.NoError(t, err)
	return dbPath
}

func writeNoCooldownSpec(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "strategy.yaml")
	require.NoError(t, os.WriteFile(path, []byte(noCooldownSpec), 0644))
	return path
}

func TestReplayStoredRunIdentical(t *testing.T) {
	dbPath := recordRun(t, "orig")

	out, err := runCLI(t, "text", NewReplayCommand, strategySpec,
		"--events", sessionEvents, "--db", dbPath, "--run", "orig", "--replay-id", "rep")
	require.NoError(t, err)

	assert.Contains(t, out, "Replay of orig as rep")
	assert.Contains(t, out, "✓ Journals identical: 5 attempt(s)")
	assert.NotContains(t, out, "warning")
}

func TestReplayStoredRunJSON(t *testing.T) {
	dbPath := recordRun(t, "orig")

	out, err := runCLI(t, "json", NewReplayCommand, strategySpec,
		"--events", sessionEvents, "--db", dbPath, "--run", "orig", "--replay-id", "rep")
	require.NoError(t, err)

	var result ReplayResult
	resp := decodeResponse(t, out, &result)
	assert.Equal(t, "ok", resp.Status)
	assert.True(t, result.Match)
	assert.Equal(t, "orig", result.Original)
	assert.Equal(t, "rep", result.Replay)
	assert.Equal(t, 5, result.OriginalCount)
	assert.Equal(t, 5, result.ReplayCount)
	assert.Equal(t, result.SpecHash, result.RecordedSpecHash)
	assert.Nil(t, result.Divergence)
}

func TestReplayJournalFile(t *testing.T) {
	journalPath := filepath.Join(t.TempDir(), "decisions.jsonl")
	_, err := runCLI(t, "text", NewRunCommand, strategySpec, "--events", sessionEvents, "--journal", journalPath)
	require.NoError(t, err)

	out, err := runCLI(t, "text", NewReplayCommand, strategySpec, "--events", sessionEvents, "--journal", journalPath)
	require.NoError(t, err)
	assert.Contains(t, out, "Replay of "+journalPath+" as replay")
	assert.Contains(t, out, "✓ Journals identical: 5 attempt(s)")
}

func TestReplayDivergence(t *testing.T) {
	journalPath := filepath.Join(t.TempDir(), "decisions.jsonl")
	_, err := runCLI(t, "text", NewRunCommand, strategySpec, "--events", sessionEvents, "--journal", journalPath)
	require.NoError(t, err)
	changed := writeNoCooldownSpec(t)

	out, err := runCLI(t, "text", NewReplayCommand, changed, "--events", sessionEvents, "--journal", journalPath)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out, "✗ Journals diverge at attempt 2")
	assert.Contains(t, out, "  recorded: ")
	assert.Contains(t, out, "COOLDOWN")

	out, err = runCLI(t, "json", NewReplayCommand, changed, "--events", sessionEvents, "--journal", journalPath)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))

	var result ReplayResult
	resp := decodeResponse(t, out, &result)
	assert.Equal(t, "error", resp.Status)
	require.NotNil(t, resp.Error)
	assert.Equal(t, "E_REPLAY_MISMATCH", resp.Error.Code)
	assert.False(t, result.Match)
	require.NotNil(t, result.Divergence)
	assert.Equal(t, 1, result.Divergence.Index)
}

func TestReplayWarnsOnChangedSpec(t *testing.T) {
	dbPath := recordRun(t, "orig")
	changed := writeNoCooldownSpec(t)

	out, err := runCLI(t, "text", NewReplayCommand, changed,
		"--events", sessionEvents, "--db", dbPath, "--run", "orig", "--replay-id", "rep")
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out, "warning: spec hash")
	assert.Contains(t, out, "✗ Journals diverge")
}

func TestReplayUnknownRun(t *testing.T) {
	dbPath := recordRun(t, "orig")

	_, err := runCLI(t, "text", NewReplayCommand, strategySpec,
		"--events", sessionEvents, "--db", dbPath, "--run", "missing")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestReplayFlagErrors(t *testing.T) {
	tests := []struct {
		name string
		args []string
		want string
	}{
		{"neither source", []string{strategySpec, "--events", sessionEvents}, "exactly one of --run or --journal"},
		{"both sources", []string{strategySpec, "--events", sessionEvents, "--run", "a", "--journal", "b.jsonl", "--db", "x.db"}, "exactly one of --run or --journal"},
		{"run without db", []string{strategySpec, "--events", sessionEvents, "--run", "a"}, "--run requires --db"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := runCLI(t, "text", NewReplayCommand, tt.args...)
			require.Error(t, err)
			assert.Equal(t, ExitCommandError, GetExitCode(err))
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}
