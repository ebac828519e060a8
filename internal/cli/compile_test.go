package cli

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCompileValidSpec(t *testing.T) {
	out, err := runCLI(t, "text", NewCompileCommand, strategySpec)
	require.NoError(t, err)

	assert.Contains(t, out, "✓ Compiled 2 rule(s)")
	assert.Contains(t, out, "press_on_profit: profit >= 0 → press(bet=6, units=2)")
	assert.Contains(t, out, "cooldown: roll=1")
	assert.Contains(t, out, "regress_on_profit: profit >= 0 → regress(bet=6)")
}

func TestCompileValidSpecJSON(t *testing.T) {
	out, err := runCLI(t, "json", NewCompileCommand, strategySpec)
	require.NoError(t, err)

	var result CompilationResult
	resp := decodeResponse(t, out, &result)
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, "1.0", result.SchemaVersion)
	assert.NotEmpty(t, result.SpecHash)
	require.Len(t, result.Rules, 2)
	assert.Equal(t, "press_on_profit", result.Rules[0].ID)
	assert.Equal(t, "press", result.Rules[0].Verb)
	assert.Equal(t, 1, result.Rules[0].Cooldown.Rolls)
	assert.Equal(t, "regress_on_profit", result.Rules[1].ID)
}

func TestCompileSentenceFile(t *testing.T) {
	out, err := runCLI(t, "text", NewCompileCommand, strategyRules)
	require.NoError(t, err)

	assert.Contains(t, out, "✓ Compiled 2 rule(s)")
	assert.Contains(t, out, "line2_press")
	assert.Contains(t, out, "line3_switch_profile")
}

func TestCompileOutputToFile(t *testing.T) {
	outputFile := filepath.Join(t.TempDir(), "compiled.json")

	out, err := runCLI(t, "text", NewCompileCommand, strategySpec, "--output", outputFile)
	require.NoError(t, err)
	assert.Contains(t, out, "Wrote compiled rules to")

	data, err := os.ReadFile(outputFile)
	require.NoError(t, err)

	var result CompilationResult
	require.NoError(t, json.Unmarshal(data, &result))
	assert.Len(t, result.Rules, 2)
	assert.Equal(t, strategySpec, result.Source)
}

func TestCompileSameSpecSameHash(t *testing.T) {
	first, err := runCLI(t, "json", NewCompileCommand, strategySpec)
	require.NoError(t, err)
	second, err := runCLI(t, "json", NewCompileCommand, strategySpec)
	require.NoError(t, err)

	var a, b CompilationResult
	decodeResponse(t, first, &a)
	decodeResponse(t, second, &b)
	assert.Equal(t, a.SpecHash, b.SpecHash)
}

func TestCompileInvalidSpec(t *testing.T) {
	out, err := runCLI(t, "text", NewCompileCommand, invalidSpec)
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))

	assert.Contains(t, out, "Error [E203]")
	assert.Contains(t, out, `rule "bad_var"`)
	assert.Contains(t, out, "mystery_var")
	// Compile stops at the first error.
	assert.NotContains(t, out, "moonwalk")
}

func TestCompileInvalidSpecJSON(t *testing.T) {
	out, err := runCLI(t, "json", NewCompileCommand, invalidSpec)
	require.Error(t, err)

	resp := decodeResponse(t, out, nil)
	assert.Equal(t, "error", resp.Status)
	require.NotNil(t, resp.Error)
	assert.Equal(t, "E203", resp.Error.Code)
}

func TestCompileMissingFile(t *testing.T) {
	out, err := runCLI(t, "text", NewCompileCommand, filepath.Join("testdata", "nope.yaml"))
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, out, "Error [E005]")
}

func TestCompileMissingArgs(t *testing.T) {
	_, err := runCLI(t, "text", NewCompileCommand)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "accepts 1 arg")
}
