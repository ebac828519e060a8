package harness

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/roach88/csc/internal/compiler"
	"github.com/roach88/csc/internal/ir"
	"github.com/roach88/csc/internal/session"
	"github.com/roach88/csc/internal/verb"
)

// Scenario defines a conformance test scenario.
type Scenario struct {
	// Name uniquely identifies this scenario. It also names the golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Exactly one of Spec, Behavior and Sentences supplies the rules.
	// Spec is a path, relative to the scenario file unless absolute.
	Spec      string     `yaml:"spec,omitempty"`
	Behavior  *yaml.Node `yaml:"behavior,omitempty"`
	Sentences string     `yaml:"sentences,omitempty"`

	// RunID is an optional fixed run id. Defaults to testutil.DefaultRunID.
	RunID string `yaml:"run_id,omitempty"`

	// AllowAnyWindow accepts window ids outside the known set.
	AllowAnyWindow bool `yaml:"allow_any_window,omitempty"`

	// Events is the raw event list, decoded with session.DecodeYAMLNode.
	Events yaml.Node `yaml:"events"`

	// Windows holds one expectation per window event.
	Windows []WindowExpect `yaml:"windows,omitempty"`

	// CompileError, when set, expects loading or compiling the spec to fail
	// with an error containing this text.
	CompileError string `yaml:"compile_error,omitempty"`

	// Assertions validate the journal and final cooldown state.
	Assertions []Assertion `yaml:"assertions,omitempty"`

	// EventList holds decoded events. LoadScenario fills it; scenarios built
	// in code may set it instead of Events.
	EventList []session.Event `yaml:"-"`

	path string
}

// WindowExpect is the expected outcome of one window event.
type WindowExpect struct {
	// Intent is a subset match against the produced intent mapping.
	Intent map[string]any `yaml:"intent,omitempty"`

	// Rule is the id of the rule expected to fire.
	Rule string `yaml:"rule,omitempty"`

	// None expects no rule to fire.
	None bool `yaml:"none,omitempty"`
}

// Assertion validates the journal or final cooldown state.
type Assertion struct {
	// Type specifies the assertion type:
	// - "journal_contains": some attempt matches the filter
	// - "journal_count": exactly Count attempts match the filter
	// - "fire_order": Rules fire in this relative order
	// - "cooldown": Expect holds the remaining counters for Rule
	Type string `yaml:"type"`

	// Filter fields. Empty fields match anything. Reason takes a reason code
	// or "none" for plain misses and fires.
	Rule   string `yaml:"rule,omitempty"`
	Window string `yaml:"window,omitempty"`
	Reason string `yaml:"reason,omitempty"`
	Fired  *bool  `yaml:"fired,omitempty"`

	// Count is the expected number of matches (journal_count).
	Count int `yaml:"count,omitempty"`

	// Rules is the expected firing order (fire_order).
	Rules []string `yaml:"rules,omitempty"`

	// Expect maps axis names (rolls, hands, point_cycles) to the expected
	// remaining count (cooldown). Unlisted axes must be zero.
	Expect map[string]int `yaml:"expect,omitempty"`
}

// Assertion type constants.
const (
	AssertJournalContains = "journal_contains"
	AssertJournalCount    = "journal_count"
	AssertFireOrder       = "fire_order"
	AssertCooldown        = "cooldown"
)

// ReasonNone is the Assertion.Reason spelling of ir.ReasonNone.
const ReasonNone = "none"

var validReasons = map[string]bool{
	ReasonNone:                     true,
	string(ir.ReasonCooldown):      true,
	string(ir.ReasonGuardFalse):    true,
	string(ir.ReasonWhenEvalError): true,
}

var cooldownAxes = map[string]ir.Axis{
	"rolls":        ir.AxisRoll,
	"hands":        ir.AxisHand,
	"point_cycles": ir.AxisPointCycle,
}

// LoadScenario reads and parses a scenario YAML file.
// Returns an error if the file doesn't exist, is malformed,
// contains unknown fields (typos), or is missing required fields.
// Spec paths resolve relative to the scenario file.
func LoadScenario(path string) (*Scenario, error) {
	return LoadScenarioWithBasePath(path, filepath.Dir(path))
}

// LoadScenarioWithBasePath reads and parses a scenario YAML file,
// resolving the spec path relative to basePath.
func LoadScenarioWithBasePath(path, basePath string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}

	// Strict field validation catches typos like "assertion:" vs "assertions:".
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}
	scenario.path = path

	if scenario.Spec != "" && !filepath.IsAbs(scenario.Spec) && basePath != "" {
		scenario.Spec = filepath.Join(basePath, scenario.Spec)
	}

	if scenario.Events.Kind != 0 {
		events, err := session.DecodeYAMLNode(&scenario.Events, session.Options{AllowAnyWindow: scenario.AllowAnyWindow})
		if err != nil {
			return nil, fmt.Errorf("invalid scenario: events: %w", err)
		}
		scenario.EventList = events
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}

	return &scenario, nil
}

// validateScenario checks that required fields are present and valid.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}

	if s.Description == "" {
		return fmt.Errorf("description is required")
	}

	sources := 0
	for _, set := range []bool{s.Spec != "", s.Behavior != nil, s.Sentences != ""} {
		if set {
			sources++
		}
	}
	if sources != 1 {
		return fmt.Errorf("exactly one of spec, behavior or sentences is required")
	}

	if s.Spec != "" {
		if _, err := os.Stat(s.Spec); os.IsNotExist(err) {
			return fmt.Errorf("spec file not found: %s", s.Spec)
		}
	}

	if s.CompileError != "" {
		if len(s.EventList) > 0 || len(s.Windows) > 0 || len(s.Assertions) > 0 {
			return fmt.Errorf("compile_error scenarios take no events, windows or assertions")
		}
		return nil
	}

	if len(s.EventList) == 0 {
		return fmt.Errorf("events list is required and must be non-empty")
	}

	if len(s.Windows) > 0 {
		windows := 0
		for _, ev := range s.EventList {
			if ev.Kind == session.EventWindow {
				windows++
			}
		}
		if len(s.Windows) != windows {
			return fmt.Errorf("windows has %d entries for %d window events", len(s.Windows), windows)
		}
	}

	for i, w := range s.Windows {
		switch {
		case w.None && (w.Intent != nil || w.Rule != ""):
			return fmt.Errorf("windows[%d]: none excludes intent and rule", i)
		case !w.None && w.Intent == nil && w.Rule == "":
			return fmt.Errorf("windows[%d]: intent, rule or none is required", i)
		}
	}

	for i := range s.Assertions {
		if err := validateAssertion(i, &s.Assertions[i]); err != nil {
			return err
		}
	}

	return nil
}

// validateAssertion validates a single assertion based on its type.
func validateAssertion(index int, a *Assertion) error {
	if a.Type == "" {
		return fmt.Errorf("assertions[%d]: type is required", index)
	}
	if a.Reason != "" && !validReasons[a.Reason] {
		return fmt.Errorf("assertions[%d]: unknown reason %q", index, a.Reason)
	}

	switch a.Type {
	case AssertJournalContains:
		if a.Rule == "" && a.Window == "" && a.Reason == "" && a.Fired == nil {
			return fmt.Errorf("assertions[%d]: journal_contains needs at least one filter", index)
		}
	case AssertJournalCount:
		if a.Count < 0 {
			return fmt.Errorf("assertions[%d]: count must be non-negative for journal_count", index)
		}
	case AssertFireOrder:
		if len(a.Rules) == 0 {
			return fmt.Errorf("assertions[%d]: rules list is required for fire_order", index)
		}
	case AssertCooldown:
		if a.Rule == "" {
			return fmt.Errorf("assertions[%d]: rule is required for cooldown", index)
		}
		for k, n := range a.Expect {
			if _, ok := cooldownAxes[k]; !ok {
				return fmt.Errorf("assertions[%d]: unknown cooldown axis %q", index, k)
			}
			if n < 0 {
				return fmt.Errorf("assertions[%d]: %s must be non-negative", index, k)
			}
		}
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}

	return nil
}

// loadSpec produces the behavior spec from whichever source is set.
func (s *Scenario) loadSpec() (ir.BehaviorSpec, error) {
	switch {
	case s.Spec != "":
		return compiler.LoadFile(s.Spec)
	case s.Behavior != nil:
		data, err := yaml.Marshal(s.Behavior)
		if err != nil {
			return ir.BehaviorSpec{}, fmt.Errorf("re-encode inline behavior: %w", err)
		}
		return compiler.LoadBytes(data, compiler.FormatYAML, s.source())
	case s.Sentences != "":
		return compiler.SpecFromSentences(s.Sentences, s.source())
	default:
		return ir.BehaviorSpec{}, fmt.Errorf("scenario %s has no spec", s.Name)
	}
}

func (s *Scenario) source() string {
	if s.path != "" {
		return s.path
	}
	return s.Name
}

// compile loads and compiles the scenario's spec against reg.
func (s *Scenario) compile(reg *verb.Registry) (ir.BehaviorSpec, []compiler.RuleDefinition, error) {
	spec, err := s.loadSpec()
	if err != nil {
		return ir.BehaviorSpec{}, nil, err
	}
	rules, err := compiler.Compile(spec, reg)
	if err != nil {
		return spec, nil, err
	}
	return spec, rules, nil
}
