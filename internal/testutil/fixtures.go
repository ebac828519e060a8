package testutil

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/roach88/csc/internal/compiler"
	"github.com/roach88/csc/internal/ir"
	"github.com/roach88/csc/internal/verb"
)

// Snapshot builds an ir.Snapshot from alternating name/value pairs:
//
//	testutil.Snapshot(t, "profit", 0, "point_on", true)
func Snapshot(t testing.TB, kv ...any) ir.Snapshot {
	t.Helper()
	require.True(t, len(kv)%2 == 0, "Snapshot needs name/value pairs")

	m := make(map[string]any, len(kv)/2)
	for i := 0; i < len(kv); i += 2 {
		name, ok := kv[i].(string)
		require.True(t, ok, "snapshot key %v is not a string", kv[i])
		m[name] = kv[i+1]
	}
	snap, err := ir.SnapshotFromMap(m)
	require.NoError(t, err)
	return snap
}

// Spec wraps rule declarations in a schema-version 1.0 container.
func Spec(rules ...ir.RuleDecl) ir.BehaviorSpec {
	return ir.BehaviorSpec{SchemaVersion: ir.SchemaVersion, Rules: rules}
}

// MustCompile compiles spec against the default verb registry and fails the
// test on any spec error.
func MustCompile(t testing.TB, spec ir.BehaviorSpec) []compiler.RuleDefinition {
	t.Helper()
	rules, err := compiler.Compile(spec, verb.DefaultRegistry())
	require.NoError(t, err)
	return rules
}
