// Package harness provides conformance testing for behavior specs.
//
// A scenario names a behavior spec, feeds it a sequence of decision windows
// and scope advances, and asserts on the intents produced and on the
// decisions journal. Every scenario is run twice against fresh engines; the
// two journals must be identical (replay parity).
//
// # Scenario Format
//
// Scenarios are YAML files with the following structure:
//
//	name: press_then_cool_down
//	description: "What this scenario validates"
//	spec: ../specs/behavior.yaml   # or behavior: {inline}, or sentences: |
//	run_id: scenario-run-1         # optional
//	events:
//	  - window: come_out_start
//	    snapshot: { profit: 0, roll_index: 1 }
//	  - advance: roll
//	windows:
//	  - rule: press_on_profit
//	    intent: { verb: press, bet: "6", units: 2 }
//	assertions:
//	  - type: journal_contains
//	    rule: press_on_profit
//	    reason: COOLDOWN
//	  - type: cooldown
//	    rule: press_on_profit
//	    expect: { rolls: 1 }
//
// The windows list, when present, has one entry per window event: either
// an expected intent (subset match, with an optional firing rule id) or
// none: true. A scenario may instead set compile_error to a substring the
// spec error must contain; such scenarios carry no events.
//
// # Assertion Types
//
//   - journal_contains: some attempt matches rule/window/reason/fired
//   - journal_count: exactly count attempts match rule/window/reason/fired
//   - fire_order: the listed rules fire in this relative order
//   - cooldown: remaining counters for a rule after the last event
//
// # Deterministic Testing
//
// The harness uses a resettable logical clock (testutil.DeterministicClock),
// a fixed run id (testutil.FixedRunIDGenerator) and an in-memory SQLite
// store per scenario, so traces are byte-identical across runs and can be
// compared against golden files.
//
// # Usage
//
//	scenario, err := harness.LoadScenario("testdata/scenarios/first_match_wins.yaml")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	result, err := harness.Run(scenario)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	if !result.Pass {
//	    for _, msg := range result.Errors {
//	        log.Println(msg)
//	    }
//	}
package harness
