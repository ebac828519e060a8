package cli

import (
	"bufio"
	"bytes"
	"encoding/json"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/csc/internal/engine"
	"github.com/roach88/csc/internal/ir"
	"github.com/roach88/csc/internal/journal"
	"github.com/roach88/csc/internal/metrics"
	"github.com/roach88/csc/internal/verb"
)

func runServeCLI(t *testing.T, format string, stdin string, args ...string) (string, error) {
	t.Helper()
	buf := &bytes.Buffer{}
	cmd := NewServeCommand(&RootOptions{Format: format})
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetOut(buf)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs(args)
	err := cmd.Execute()
	return buf.String(), err
}

func TestServeStdinText(t *testing.T) {
	events, err := os.ReadFile(sessionEvents)
	require.NoError(t, err)

	out, err := runServeCLI(t, "text", string(events), strategySpec, "--run-id", "live")
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, "line 1 come_out_start roll 1 → press(bet=6, units=2) [press_on_profit]", lines[0])
	assert.Equal(t, "line 3 after_resolve roll 2 → regress(bet=6, units=1) [regress_on_profit]", lines[1])
	assert.Equal(t, "line 5 after_resolve roll 3 → none", lines[2])
}

func TestServeJSONLines(t *testing.T) {
	out, err := runServeCLI(t, "json", "", strategySpec, "--events", sessionEvents, "--run-id", "live")
	require.NoError(t, err)

	var windows []WindowOutput
	sc := bufio.NewScanner(strings.NewReader(out))
	for sc.Scan() {
		var w WindowOutput
		require.NoError(t, json.Unmarshal(sc.Bytes(), &w), sc.Text())
		windows = append(windows, w)
	}
	require.Len(t, windows, 3)
	assert.Equal(t, "press_on_profit", windows[0].RuleID)
	assert.Equal(t, ir.IRString("press"), windows[0].Intent["verb"])
	assert.Equal(t, "regress_on_profit", windows[1].RuleID)
	assert.Empty(t, windows[2].RuleID)
	assert.Nil(t, windows[2].Intent)
}

func TestServeJournalsToFile(t *testing.T) {
	journalPath := filepath.Join(t.TempDir(), journal.DefaultFileName)

	_, err := runServeCLI(t, "text", "", strategySpec, "--events", sessionEvents, "--journal", journalPath, "--run-id", "live")
	require.NoError(t, err)

	attempts, err := journal.ReadFile(journalPath)
	require.NoError(t, err)
	assert.Len(t, attempts, 5)
}

func TestServeWithMetricsEndpoint(t *testing.T) {
	_, err := runServeCLI(t, "text", "", strategySpec, "--events", sessionEvents, "--metrics-addr", "127.0.0.1:0", "--run-id", "live")
	require.NoError(t, err)
}

func TestServeBadEventStream(t *testing.T) {
	_, err := runServeCLI(t, "text", `{"window": "come_out_start", "snapshot": {"profit": 1}}`+"\nnot json\n", strategySpec)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))

	_, err = runServeCLI(t, "text", "", strategySpec, "--events", filepath.Join(t.TempDir(), "missing.jsonl"))
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestServeInvalidSpec(t *testing.T) {
	out, err := runServeCLI(t, "text", "", invalidSpec)
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, out, "Error [E203]")
}

func TestReloaderSwapsRules(t *testing.T) {
	dir := t.TempDir()
	specPath := filepath.Join(dir, "strategy.yaml")
	original, err := os.ReadFile(strategySpec)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(specPath, original, 0644))

	reg := verb.DefaultRegistry()
	loaded, err := CompileSpec(specPath, reg)
	require.NoError(t, err)

	m := metrics.New("", nil)
	eng := engine.New(loaded.Rules, reg, journal.Discard, engine.WithObserver(m))
	reload := newReloader(specPath, reg, eng, m)

	single := `schema_version: "1.0"
rules:
  - id: hold
    when: "profit < 0"
    then: "regress(bet=8)"
`
	require.NoError(t, os.WriteFile(specPath, []byte(single), 0644))
	require.NoError(t, reload())
	rules := eng.Rules()
	require.Len(t, rules, 1)
	assert.Equal(t, "hold", rules[0].ID)

	require.NoError(t, os.WriteFile(specPath, []byte("rules: [\n"), 0644))
	require.Error(t, reload())
	rules = eng.Rules()
	require.Len(t, rules, 1)
	assert.Equal(t, "hold", rules[0].ID)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	body := rec.Body.String()
	assert.Contains(t, body, `csc_reloads_total{result="ok"} 1`)
	assert.Contains(t, body, `csc_reloads_total{result="error"} 1`)
}

func TestOpenEventStream(t *testing.T) {
	stdin := strings.NewReader("x")

	r, closeFn, err := openEventStream("-", stdin)
	require.NoError(t, err)
	assert.Same(t, stdin, r)
	closeFn()

	r, closeFn, err = openEventStream("", stdin)
	require.NoError(t, err)
	assert.Same(t, stdin, r)
	closeFn()

	r, closeFn, err = openEventStream(sessionEvents, stdin)
	require.NoError(t, err)
	assert.NotSame(t, stdin, r)
	closeFn()

	_, _, err = openEventStream(filepath.Join(t.TempDir(), "missing"), stdin)
	require.Error(t, err)
}
