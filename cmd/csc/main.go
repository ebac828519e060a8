// csc evaluates craps betting behavior specs against table events.
//
// A spec is a list of rules, each pairing a condition over the table
// snapshot with a verb that becomes the intent for the window. Rules are
// tried in order and the first one that fires wins; every attempt is
// recorded in an append-only decisions journal.
//
// Usage:
//
//	# Check a spec and print its compiled rules
//	csc compile strategy.yaml
//
//	# Report every error in a spec
//	csc validate strategy.yaml
//
//	# Turn WHEN ... THEN ... sentences into a spec
//	csc parse strategy.rules -o strategy.yaml
//
//	# Evaluate a recorded session and store the journal
//	csc run strategy.yaml --events session.jsonl --db ./csc.db
//
//	# Re-run the session and verify the journal is identical
//	csc replay strategy.yaml --events session.jsonl --db ./csc.db --run <run-id>
//
//	# Inspect a stored journal
//	csc trace --db ./csc.db <run-id> --reason COOLDOWN
//
//	# Run conformance scenarios
//	csc test ./scenarios
//
//	# Evaluate a live event stream with hot reload and metrics
//	simulator | csc serve strategy.yaml --watch --metrics-addr :9090
package main

import (
	"os"

	"github.com/roach88/csc/internal/cli"
)

func main() {
	os.Exit(cli.Execute(os.Args[1:], os.Stdout, os.Stderr))
}
