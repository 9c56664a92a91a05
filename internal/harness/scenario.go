package harness

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/wdiesveld/tinyqueries/internal/catalog"
)

// Scenario defines a query test scenario.
type Scenario struct {
	// Name uniquely identifies this scenario and names its golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Sources is an optional directory of CUE query sources, compiled
	// before the inline queries are registered. Relative to the scenario
	// file when loaded with LoadScenarioWithBasePath.
	Sources string `yaml:"sources,omitempty"`

	// Schema lists SQL statements run before the flow, typically CREATE
	// TABLE and INSERT statements.
	Schema []string `yaml:"schema,omitempty"`

	// Queries registers compiled queries inline, by id.
	Queries map[string]QueryDef `yaml:"queries,omitempty"`

	// Globals are registered as global parameter values.
	Globals map[string]any `yaml:"globals,omitempty"`

	// Nested overrides the engine default for nesting dotted fields.
	Nested *bool `yaml:"nested,omitempty"`

	// Flow contains the terms to execute, in order.
	Flow []FlowStep `yaml:"flow"`

	// Assertions validate the trace and the final database state.
	Assertions []Assertion `yaml:"assertions,omitempty"`
}

// QueryDef is an inline compiled query: either an interface plus SQL, or
// just a term for an alias.
type QueryDef struct {
	// Interface holds the fields of a compiled interface file.
	Interface map[string]any `yaml:"interface,omitempty"`
	SQL       string         `yaml:"sql,omitempty"`
	// Term is shorthand for an alias interface.
	Term string `yaml:"term,omitempty"`
}

// Compile turns the definition into a catalog interface.
func (d QueryDef) Compile() (*catalog.Interface, error) {
	raw := d.Interface
	if raw == nil {
		raw = map[string]any{}
	}
	if d.Term != "" {
		raw["term"] = d.Term
	}
	data, err := json.Marshal(raw)
	if err != nil {
		return nil, fmt.Errorf("failed to encode interface: %w", err)
	}
	return catalog.ParseInterface(data)
}

// FlowStep executes one term.
type FlowStep struct {
	// Term is the query term to execute.
	Term string `yaml:"term"`

	// Params is a mapping of parameter values, or a single value for the
	// default parameter.
	Params any `yaml:"params,omitempty"`

	// Single returns only the first row of the output.
	Single bool `yaml:"single,omitempty"`

	// Run executes the term with Run instead of Select, for queries that
	// write.
	Run bool `yaml:"run,omitempty"`

	// Expect specifies the expected outcome. If nil, the step only has to
	// succeed.
	Expect *ExpectClause `yaml:"expect,omitempty"`
}

// ExpectClause specifies the expected outcome of a step.
type ExpectClause struct {
	// Result is compared to the output as canonical JSON.
	Result any `yaml:"result,omitempty"`

	// Error is the expected engine error code, e.g. MISSING_INTERFACE.
	Error string `yaml:"error,omitempty"`

	// Count is the expected number of rows (or keys) in the output.
	Count *int `yaml:"count,omitempty"`
}

// Assertion validates the trace or the final state.
type Assertion struct {
	// Type is one of trace_contains, trace_order, trace_count and
	// final_state.
	Type string `yaml:"type"`

	// Term is the executed term (trace_contains, trace_count).
	Term string `yaml:"term,omitempty"`

	// Params are the expected step params (trace_contains). Subset match.
	Params map[string]any `yaml:"params,omitempty"`

	// Terms is the expected order (trace_order).
	Terms []string `yaml:"terms,omitempty"`

	// Count is the expected number of occurrences (trace_count).
	Count int `yaml:"count,omitempty"`

	// Table is the table to check (final_state).
	Table string `yaml:"table,omitempty"`

	// Where selects the row (final_state). All fields must match exactly.
	Where map[string]any `yaml:"where,omitempty"`

	// Expect contains expected column values (final_state). Subset match.
	Expect map[string]any `yaml:"expect,omitempty"`
}

// Assertion type constants.
const (
	AssertTraceContains = "trace_contains"
	AssertTraceOrder    = "trace_order"
	AssertTraceCount    = "trace_count"
	AssertFinalState    = "final_state"
)

// LoadScenario reads and parses a scenario YAML file. A relative Sources
// directory is resolved against the scenario file's directory.
func LoadScenario(path string) (*Scenario, error) {
	return LoadScenarioWithBasePath(path, filepath.Dir(path))
}

// LoadScenarioWithBasePath reads and parses a scenario YAML file,
// resolving a relative Sources directory against basePath.
// Returns an error if the file doesn't exist, is malformed, contains
// unknown fields (typos), or is missing required fields.
func LoadScenarioWithBasePath(path, basePath string) (*Scenario, error) {
	return loadScenario(path, basePath, "")
}

// loadScenario is LoadScenarioWithBasePath with a fallback sources
// directory for scenarios that name none.
func loadScenario(path, basePath, defaultSources string) (*Scenario, error) {
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

	if scenario.Sources != "" && !filepath.IsAbs(scenario.Sources) && basePath != "" {
		scenario.Sources = filepath.Join(basePath, scenario.Sources)
	}
	if scenario.Sources == "" {
		scenario.Sources = defaultSources
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
	if s.Sources == "" && len(s.Queries) == 0 {
		return fmt.Errorf("sources or queries is required")
	}
	if len(s.Flow) == 0 {
		return fmt.Errorf("flow list is required and must be non-empty")
	}

	if s.Sources != "" {
		if info, err := os.Stat(s.Sources); err != nil || !info.IsDir() {
			return fmt.Errorf("sources directory not found: %s", s.Sources)
		}
	}

	for id, def := range s.Queries {
		if def.Term == "" && def.SQL == "" {
			return fmt.Errorf("queries.%s: sql or term is required", id)
		}
	}

	for i, step := range s.Flow {
		if step.Term == "" {
			return fmt.Errorf("flow[%d]: term is required", i)
		}
		if step.Single && step.Run {
			return fmt.Errorf("flow[%d]: single and run are mutually exclusive", i)
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

	switch a.Type {
	case AssertTraceContains:
		if a.Term == "" {
			return fmt.Errorf("assertions[%d]: term is required for trace_contains", index)
		}
	case AssertTraceOrder:
		if len(a.Terms) == 0 {
			return fmt.Errorf("assertions[%d]: terms list is required for trace_order", index)
		}
	case AssertTraceCount:
		if a.Term == "" {
			return fmt.Errorf("assertions[%d]: term is required for trace_count", index)
		}
		if a.Count < 0 {
			return fmt.Errorf("assertions[%d]: count must be non-negative for trace_count", index)
		}
	case AssertFinalState:
		if a.Table == "" {
			return fmt.Errorf("assertions[%d]: table is required for final_state", index)
		}
		if len(a.Expect) == 0 {
			return fmt.Errorf("assertions[%d]: expect is required for final_state", index)
		}
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}
	return nil
}
