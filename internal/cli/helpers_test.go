package cli

import (
	"bytes"
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/require"
)

var (
	strategySpec  = filepath.Join("testdata", "strategy.yaml")
	strategyRules = filepath.Join("testdata", "strategy.rules")
	invalidSpec   = filepath.Join("testdata", "invalid.yaml")
	sessionEvents = filepath.Join("testdata", "session.jsonl")
)

// runCLI executes the subcommand built by newCmd and returns its stdout.
func runCLI(t *testing.T, format string, newCmd func(*RootOptions) *cobra.Command, args ...string) (string, error) {
	t.Helper()
	buf := &bytes.Buffer{}
	cmd := newCmd(&RootOptions{Format: format})
	cmd.SetOut(buf)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs(args)
	err := cmd.Execute()
	return buf.String(), err
}

// decodeResponse unmarshals a JSON envelope and re-decodes its data into v.
func decodeResponse(t *testing.T, out string, v any) CLIResponse {
	t.Helper()
	var resp CLIResponse
	require.NoError(t, json.Unmarshal([]byte(out), &resp), out)
	if v != nil && resp.Data != nil {
		data, err := json.Marshal(resp.Data)
		require.NoError(t, err)
		require.NoError(t, json.Unmarshal(data, v))
	}
	return resp
}
