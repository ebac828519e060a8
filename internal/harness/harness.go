package harness

import (
	"context"
	"fmt"
	"strings"

	"github.com/roach88/csc/internal/compiler"
	"github.com/roach88/csc/internal/engine"
	"github.com/roach88/csc/internal/ir"
	"github.com/roach88/csc/internal/session"
	"github.com/roach88/csc/internal/store"
	"github.com/roach88/csc/internal/testutil"
	"github.com/roach88/csc/internal/verb"
)

// ReplaySuffix is appended to the run id of the parity run.
const ReplaySuffix = "-replay"

// Harness is the test execution engine.
// It runs scenarios with a deterministic clock and run id.
type Harness struct {
	store    *store.Store
	rules    []compiler.RuleDefinition
	verbs    *verb.Registry
	clock    *testutil.DeterministicClock
	spec     ir.BehaviorSpec
	specHash string
}

// Run executes a test scenario and returns the result.
//
// Each scenario runs in a fresh in-memory database for isolation.
//
// Execution flow:
//  1. Load and compile the behavior spec
//  2. Evaluate every event against a fresh engine journaling to the store
//  3. Evaluate the same events against a second fresh engine (replay)
//  4. Compare both journals, then check window expectations and assertions
//
// An error is returned only when the scenario cannot be executed at all;
// failed expectations are reported in Result.Errors.
func Run(scenario *Scenario) (*Result, error) {
	ctx := context.Background()
	reg := verb.DefaultRegistry()
	result := NewResult()

	spec, rules, specErr := scenario.compile(reg)
	if scenario.CompileError != "" {
		if specErr == nil {
			result.AddError(fmt.Sprintf("expected spec error containing %q, but the spec compiled", scenario.CompileError))
			return result, nil
		}
		result.CompileError = specErr.Error()
		if !strings.Contains(specErr.Error(), scenario.CompileError) {
			result.AddError(fmt.Sprintf("expected spec error containing %q, got: %v", scenario.CompileError, specErr))
		}
		return result, nil
	}
	if specErr != nil {
		return nil, fmt.Errorf("failed to compile spec: %w", specErr)
	}

	events := scenario.EventList
	if events == nil && scenario.Events.Kind != 0 {
		var err error
		events, err = session.DecodeYAMLNode(&scenario.Events, session.Options{AllowAnyWindow: scenario.AllowAnyWindow})
		if err != nil {
			return nil, fmt.Errorf("failed to decode events: %w", err)
		}
	}

	specHash, err := ir.SpecHash(spec)
	if err != nil {
		return nil, fmt.Errorf("failed to hash spec: %w", err)
	}

	st, err := store.Open(":memory:")
	if err != nil {
		return nil, fmt.Errorf("failed to create in-memory store: %w", err)
	}
	defer st.Close()

	h := &Harness{
		store:    st,
		rules:    rules,
		verbs:    reg,
		clock:    testutil.NewDeterministicClock(),
		spec:     spec,
		specHash: specHash,
	}

	runID := testutil.NewFixedRunIDGenerator(scenario.RunID).Generate()
	result.RunID = runID
	result.SpecHash = specHash

	outcomes, eng, err := h.execute(ctx, runID, events)
	if err != nil {
		return nil, fmt.Errorf("failed to execute events: %w", err)
	}
	if _, _, err := h.execute(ctx, runID+ReplaySuffix, events); err != nil {
		return nil, fmt.Errorf("failed to execute replay: %w", err)
	}

	parity, err := st.CompareRuns(ctx, runID, runID+ReplaySuffix)
	if err != nil {
		return nil, fmt.Errorf("failed to compare runs: %w", err)
	}
	result.Parity = &parity
	if !parity.Match() {
		result.AddError(parity.String())
	}

	trace, err := st.ReadAttempts(ctx, runID, store.Filter{})
	if err != nil {
		return nil, fmt.Errorf("failed to read trace: %w", err)
	}
	result.Trace = trace

	for _, out := range outcomes {
		w := WindowTrace{
			Line:      out.Line,
			Window:    out.Window,
			RollIndex: out.RollIndex,
			RuleID:    out.RuleID,
		}
		if out.Intent != nil {
			w.Intent = out.Intent.Map()
		}
		result.Windows = append(result.Windows, w)
	}
	for _, r := range rules {
		result.Cooldowns[r.ID] = eng.Cooldown(r.ID)
	}

	for _, msg := range checkWindows(result.Windows, scenario.Windows) {
		result.AddError(msg)
	}
	for _, msg := range EvaluateAssertions(result, scenario.Assertions) {
		result.AddError(msg)
	}

	return result, nil
}

// execute records a run and feeds events through a fresh engine whose
// journal is the store.
func (h *Harness) execute(ctx context.Context, runID string, events []session.Event) ([]session.Outcome, *engine.Engine, error) {
	h.clock.Reset()

	err := h.store.CreateRun(ctx, store.Run{
		ID:            runID,
		SpecHash:      h.specHash,
		SpecSource:    h.spec.Source,
		SchemaVersion: h.spec.SchemaVersion,
		EngineVersion: ir.EngineVersion,
		RuleCount:     len(h.rules),
	})
	if err != nil {
		return nil, nil, err
	}

	eng := engine.New(h.rules, h.verbs, h.store.Journal(runID), engine.WithClock(h.clock))
	outcomes, err := session.Run(ctx, eng, events)
	if err != nil {
		return nil, nil, err
	}
	return outcomes, eng, nil
}

// checkWindows compares window outcomes with expectations. No expectations
// means nothing is checked.
func checkWindows(got []WindowTrace, want []WindowExpect) []string {
	if len(want) == 0 {
		return nil
	}
	if len(got) != len(want) {
		return []string{fmt.Sprintf("expected %d window outcomes, got %d", len(want), len(got))}
	}

	var errs []string
	for i, w := range want {
		g := got[i]
		where := fmt.Sprintf("windows[%d] (%s, line %d)", i, g.Window, g.Line)

		if w.None {
			if g.Intent != nil {
				errs = append(errs, fmt.Sprintf("%s: expected no intent, rule %s fired with %s", where, g.RuleID, formatObject(g.Intent)))
			}
			continue
		}
		if g.Intent == nil {
			errs = append(errs, fmt.Sprintf("%s: expected an intent, no rule fired", where))
			continue
		}
		if w.Rule != "" && w.Rule != g.RuleID {
			errs = append(errs, fmt.Sprintf("%s: expected rule %s to fire, got %s", where, w.Rule, g.RuleID))
		}
		if w.Intent != nil {
			want, err := ir.ObjectFromMap(w.Intent)
			if err != nil {
				errs = append(errs, fmt.Sprintf("%s: invalid expected intent: %v", where, err))
				continue
			}
			if !matchObject(g.Intent, want) {
				errs = append(errs, fmt.Sprintf("%s: expected intent %s, got %s", where, formatObject(want), formatObject(g.Intent)))
			}
		}
	}
	return errs
}
