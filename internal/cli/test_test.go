package cli

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	harnessScenarios = filepath.Join("..", "harness", "testdata", "scenarios")
	harnessGolden    = filepath.Join("..", "harness", "testdata", "golden")
)

const passingScenario = `name: single_press
description: "One press on profit, nothing on a loss."
behavior:
  schema_version: "1.0"
  rules:
    - id: press_on_profit
      when: "profit > 0"
      then: "press(bet=8)"
events:
  - window: after_resolve
    snapshot: { profit: 10, roll_index: 1 }
  - window: after_resolve
    snapshot: { profit: -10, roll_index: 2 }
windows:
  - rule: press_on_profit
    intent: { verb: press }
  - none: true
`

const failingScenario = `name: wrong_rule
description: "Expects a rule that never fires."
behavior:
  schema_version: "1.0"
  rules:
    - id: press_on_profit
      when: "profit > 0"
      then: "press(bet=8)"
events:
  - window: after_resolve
    snapshot: { profit: 10, roll_index: 1 }
windows:
  - rule: regress_on_profit
`

func writeScenario(t *testing.T, dir, name, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name+".yaml"), []byte(content), 0644))
}

func TestHarnessScenariosPass(t *testing.T) {
	out, err := runCLI(t, "text", NewTestCommand, harnessScenarios, "--golden", harnessGolden)
	require.NoError(t, err, out)

	assert.Contains(t, out, "✓ press_cooldown")
	assert.Contains(t, out, "✓ unknown_verb")
	assert.Contains(t, out, "Test Summary: 7 passed, 0 failed, 7 total")
	assert.Contains(t, out, "✓ All scenarios passed")
}

func TestHarnessScenariosJSON(t *testing.T) {
	out, err := runCLI(t, "json", NewTestCommand, harnessScenarios, "--golden", harnessGolden)
	require.NoError(t, err, out)

	var result TestResult
	resp := decodeResponse(t, out, &result)
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, 7, result.Total)
	assert.Equal(t, 7, result.Passed)

	golden := map[string]string{}
	for _, sr := range result.Scenarios {
		golden[sr.Name] = sr.Golden
	}
	assert.Equal(t, "match", golden["press_cooldown"])
	assert.Equal(t, "match", golden["guard_and_eval_error"])
	assert.Equal(t, "", golden["first_match_wins"])
}

func TestFilterScenarios(t *testing.T) {
	out, err := runCLI(t, "text", NewTestCommand, harnessScenarios, "--golden", harnessGolden, "--filter", "unknown_*")
	require.NoError(t, err)

	assert.Contains(t, out, "✓ unknown_variable")
	assert.Contains(t, out, "✓ unknown_verb")
	assert.NotContains(t, out, "press_cooldown")
	assert.Contains(t, out, "Test Summary: 2 passed, 0 failed, 2 total")
}

func TestGoldenUpdateAndMismatch(t *testing.T) {
	dir := t.TempDir()
	writeScenario(t, dir, "single_press", passingScenario)
	goldenPath := filepath.Join(dir, "golden", "single_press.golden")

	out, err := runCLI(t, "text", NewTestCommand, dir, "--update")
	require.NoError(t, err, out)
	assert.Contains(t, out, "✓ single_press (golden updated)")

	data, err := os.ReadFile(goldenPath)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"rule_id":"press_on_profit"`)

	var result TestResult
	out, err = runCLI(t, "json", NewTestCommand, dir)
	require.NoError(t, err, out)
	decodeResponse(t, out, &result)
	require.Len(t, result.Scenarios, 1)
	assert.Equal(t, "match", result.Scenarios[0].Golden)

	require.NoError(t, os.WriteFile(goldenPath, []byte("{}\n"), 0644))
	out, err = runCLI(t, "text", NewTestCommand, dir)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out, "✗ single_press")
	assert.Contains(t, out, "--update")
}

func TestFailingScenario(t *testing.T) {
	dir := t.TempDir()
	writeScenario(t, dir, "single_press", passingScenario)
	writeScenario(t, dir, "wrong_rule", failingScenario)

	out, err := runCLI(t, "text", NewTestCommand, dir)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out, "✓ single_press")
	assert.Contains(t, out, "✗ wrong_rule")
	assert.Contains(t, out, "Test Summary: 1 passed, 1 failed, 2 total")

	out, err = runCLI(t, "json", NewTestCommand, dir)
	require.Error(t, err)
	var result TestResult
	resp := decodeResponse(t, out, &result)
	require.NotNil(t, resp.Error)
	assert.Equal(t, "E_TEST_FAILED", resp.Error.Code)
	assert.Equal(t, 1, result.Failed)
}

func TestScenariosDirErrors(t *testing.T) {
	_, err := runCLI(t, "text", NewTestCommand, filepath.Join(t.TempDir(), "missing"))
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, err.Error(), "scenarios directory not found")

	out, err := runCLI(t, "text", NewTestCommand, t.TempDir())
	require.NoError(t, err)
	assert.Contains(t, out, "No scenarios found.")
}

func TestFindScenarioFiles(t *testing.T) {
	dir := t.TempDir()
	writeScenario(t, dir, "b", passingScenario)
	writeScenario(t, dir, "a", passingScenario)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("x"), 0644))
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "specs"), 0755))
	writeScenario(t, filepath.Join(dir, "specs"), "c", passingScenario)

	files, err := findScenarioFiles(dir, "")
	require.NoError(t, err)
	assert.Equal(t, []string{filepath.Join(dir, "a.yaml"), filepath.Join(dir, "b.yaml")}, files)

	_, err = findScenarioFiles(dir, "[")
	require.Error(t, err)
}
