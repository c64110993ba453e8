package harness

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/roach88/relfilter/internal/ir"
)

// Scenario defines a conformance test scenario.
// A scenario loads a schema, seeds the relational store, runs filter queries
// through the engine and asserts on the compiled filters, the rows they
// select and what was logged along the way.
type Scenario struct {
	// Name uniquely identifies this scenario. It also names the golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Schema is the directory of CUE model files to load.
	// Relative paths are resolved against the base path given to
	// LoadScenarioWithBasePath.
	Schema string `yaml:"schema"`

	// TraceID is the fixed trace id stamped on every query.
	// If empty, defaults to "test-trace-default".
	TraceID string `yaml:"trace_id,omitempty"`

	// Connectors binds storage-engine keys to connector kinds.
	// If nil, bookshelf is bound to sql and mongoose to document.
	Connectors map[string]string `yaml:"connectors,omitempty"`

	// Seed lists rows inserted before any query runs, in order.
	Seed []SeedStep `yaml:"seed,omitempty"`

	// Queries are run in order against the seeded store.
	Queries []QueryStep `yaml:"queries"`

	// Assertions validate the captured logs and final store state.
	Assertions []Assertion `yaml:"assertions,omitempty"`
}

// SeedStep inserts rows into one model's table.
type SeedStep struct {
	// Model is the model UID.
	Model string `yaml:"model"`

	// Rows are keyed by attribute name or relation alias.
	Rows []map[string]any `yaml:"rows"`
}

// QueryStep runs one filter through the engine.
type QueryStep struct {
	// Name labels the step in the trace and in failure messages.
	Name string `yaml:"name"`

	// Model is the entity name (or UID) to query.
	Model string `yaml:"model"`

	// Plugin namespaces Model. Empty means the application namespace.
	Plugin string `yaml:"plugin,omitempty"`

	// Filter is the raw filter description handed to the engine.
	Filter ir.Filter `yaml:"filter"`

	// Options are forwarded to the connector verbatim.
	Options map[string]any `yaml:"options,omitempty"`

	// Expect specifies the expected outcome.
	// If nil, the step only has to succeed.
	Expect *ExpectClause `yaml:"expect,omitempty"`
}

// ExpectClause specifies expected query behavior.
type ExpectClause struct {
	// Error is the expected error code (e.g. "INVALID_FIELD_PATH").
	// When set, every other field is ignored.
	Error string `yaml:"error,omitempty"`

	// Where is the expected compiled where list, compared in canonical form.
	Where []ir.WhereClause `yaml:"where,omitempty"`

	// Backend is the expected connector implementation ("sql", "document").
	Backend string `yaml:"backend,omitempty"`

	// SQL is the expected statement text for relational queries.
	SQL string `yaml:"sql,omitempty"`

	// Rows are the expected primary keys, in order. Only relational queries
	// are executed.
	Rows []any `yaml:"rows,omitempty"`

	// NoRows asserts an empty result. Rows cannot express that because an
	// empty list is indistinguishable from an absent one.
	NoRows bool `yaml:"no_rows,omitempty"`
}

// Assertion validates logs or final state.
type Assertion struct {
	// Type specifies the assertion type:
	// - "log_contains": some log line contains Text
	// - "log_count": exactly Count log lines contain Text
	// - "row_count": the Model table holds exactly Count rows
	Type string `yaml:"type"`

	// Text is the substring to look for (log_contains, log_count).
	Text string `yaml:"text,omitempty"`

	// Model is the model UID (row_count).
	Model string `yaml:"model,omitempty"`

	// Count is the expected number of lines or rows.
	Count int `yaml:"count,omitempty"`
}

// Assertion type constants.
const (
	AssertLogContains = "log_contains"
	AssertLogCount    = "log_count"
	AssertRowCount    = "row_count"
)

// LoadScenario reads and parses a scenario YAML file, resolving the schema
// directory relative to the scenario file.
func LoadScenario(path string) (*Scenario, error) {
	return LoadScenarioWithBasePath(path, filepath.Dir(path))
}

// LoadScenarioWithBasePath reads and parses a scenario YAML file,
// resolving the schema directory relative to the provided base path.
// Returns an error if the file doesn't exist, is malformed,
// contains unknown fields (typos), or is missing required fields.
func LoadScenarioWithBasePath(path, basePath string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}

	// Parse YAML with strict field validation (catches typos like "assertion:" vs "assertions:")
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if scenario.Schema != "" && !filepath.IsAbs(scenario.Schema) && basePath != "" {
		scenario.Schema = filepath.Join(basePath, scenario.Schema)
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

	if s.Schema == "" {
		return fmt.Errorf("schema directory is required")
	}
	if info, err := os.Stat(s.Schema); err != nil || !info.IsDir() {
		return fmt.Errorf("schema directory not found: %s", s.Schema)
	}

	if len(s.Queries) == 0 {
		return fmt.Errorf("queries list is required and must be non-empty")
	}

	for i, step := range s.Seed {
		if step.Model == "" {
			return fmt.Errorf("seed[%d]: model is required", i)
		}
		if len(step.Rows) == 0 {
			return fmt.Errorf("seed[%d]: rows list is required and must be non-empty", i)
		}
	}

	names := make(map[string]bool, len(s.Queries))
	for i, q := range s.Queries {
		if q.Name == "" {
			return fmt.Errorf("queries[%d]: name is required", i)
		}
		if names[q.Name] {
			return fmt.Errorf("queries[%d]: duplicate name %q", i, q.Name)
		}
		names[q.Name] = true
		if q.Model == "" {
			return fmt.Errorf("queries[%d]: model is required", i)
		}
		if q.Expect != nil && q.Expect.NoRows && len(q.Expect.Rows) > 0 {
			return fmt.Errorf("queries[%d].expect: rows and no_rows are mutually exclusive", i)
		}
	}

	for i, assertion := range s.Assertions {
		if err := validateAssertion(i, &assertion); err != nil {
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
	case AssertLogContains:
		if a.Text == "" {
			return fmt.Errorf("assertions[%d]: text is required for log_contains", index)
		}
	case AssertLogCount:
		if a.Text == "" {
			return fmt.Errorf("assertions[%d]: text is required for log_count", index)
		}
		if a.Count < 0 {
			return fmt.Errorf("assertions[%d]: count must be non-negative for log_count", index)
		}
	case AssertRowCount:
		if a.Model == "" {
			return fmt.Errorf("assertions[%d]: model is required for row_count", index)
		}
		if a.Count < 0 {
			return fmt.Errorf("assertions[%d]: count must be non-negative for row_count", index)
		}
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}

	return nil
}
