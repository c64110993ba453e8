package harness

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/relfilter/internal/ir"
	"github.com/roach88/relfilter/internal/testutil"
)

// createTestSchema writes the shared blog schema into dir/schema and returns
// the schema directory.
func createTestSchema(t *testing.T, dir string) string {
	t.Helper()
	schemaDir := filepath.Join(dir, "schema")
	require.NoError(t, os.MkdirAll(schemaDir, 0755))
	src := "package blog\n" + testutil.BlogSchema
	require.NoError(t, os.WriteFile(filepath.Join(schemaDir, "blog.cue"), []byte(src), 0644))
	return schemaDir
}

// writeScenario writes content to dir/test.yaml next to a schema directory.
func writeScenario(t *testing.T, content string) string {
	t.Helper()
	dir := t.TempDir()
	createTestSchema(t, dir)
	path := filepath.Join(dir, "test.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestLoadScenario_ValidFile(t *testing.T) {
	path := writeScenario(t, `
name: test_scenario
description: "Test scenario for validation"
schema: schema
trace_id: trace-x
connectors:
  bookshelf: sql
seed:
  - model: application::tag.tag
    rows:
      - { id: 1, label: go }
queries:
  - name: by_label
    model: tag
    filter:
      where:
        - { field: label, operator: eq, value: go }
      limit: 5
    expect:
      rows: [1]
assertions:
  - type: row_count
    model: application::tag.tag
    count: 1
`)

	scenario, err := LoadScenario(path)
	require.NoError(t, err)

	assert.Equal(t, "test_scenario", scenario.Name)
	assert.Equal(t, "Test scenario for validation", scenario.Description)
	assert.Equal(t, filepath.Join(filepath.Dir(path), "schema"), scenario.Schema)
	assert.Equal(t, "trace-x", scenario.TraceID)
	assert.Equal(t, map[string]string{"bookshelf": "sql"}, scenario.Connectors)
	require.Len(t, scenario.Seed, 1)
	assert.Equal(t, "go", scenario.Seed[0].Rows[0]["label"])

	require.Len(t, scenario.Queries, 1)
	q := scenario.Queries[0]
	assert.Equal(t, "tag", q.Model)
	assert.Equal(t, []ir.WhereClause{{Field: "label", Operator: ir.OpEq, Value: "go"}}, q.Filter.Where)
	require.NotNil(t, q.Filter.Limit)
	assert.Equal(t, 5, *q.Filter.Limit)
	require.NotNil(t, q.Expect)
	assert.Equal(t, []any{1}, q.Expect.Rows)
	assert.Len(t, scenario.Assertions, 1)
}

func TestLoadScenario_MissingFile(t *testing.T) {
	_, err := LoadScenario("/nonexistent/scenario.yaml")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read scenario file")
}

func TestLoadScenario_UnknownField(t *testing.T) {
	path := writeScenario(t, `
name: test
description: "Test"
schema: schema
query:
  - name: typo
    model: tag
`)

	_, err := LoadScenario(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to parse YAML")
}

func TestLoadScenario_Validation(t *testing.T) {
	const query = `
queries:
  - name: q
    model: tag
`
	tests := []struct {
		name    string
		content string
		wantErr string
	}{
		{
			name:    "missing name",
			content: "description: d\nschema: schema\n" + query,
			wantErr: "name is required",
		},
		{
			name:    "missing description",
			content: "name: n\nschema: schema\n" + query,
			wantErr: "description is required",
		},
		{
			name:    "missing schema",
			content: "name: n\ndescription: d\n" + query,
			wantErr: "schema directory is required",
		},
		{
			name:    "schema not found",
			content: "name: n\ndescription: d\nschema: nowhere\n" + query,
			wantErr: "schema directory not found",
		},
		{
			name:    "no queries",
			content: "name: n\ndescription: d\nschema: schema\nqueries: []\n",
			wantErr: "queries list is required",
		},
		{
			name:    "query without name",
			content: "name: n\ndescription: d\nschema: schema\nqueries:\n  - model: tag\n",
			wantErr: "queries[0]: name is required",
		},
		{
			name:    "query without model",
			content: "name: n\ndescription: d\nschema: schema\nqueries:\n  - name: q\n",
			wantErr: "queries[0]: model is required",
		},
		{
			name:    "duplicate query name",
			content: "name: n\ndescription: d\nschema: schema\nqueries:\n  - {name: q, model: tag}\n  - {name: q, model: tag}\n",
			wantErr: `queries[1]: duplicate name "q"`,
		},
		{
			name:    "rows and no_rows",
			content: "name: n\ndescription: d\nschema: schema\nqueries:\n  - {name: q, model: tag, expect: {rows: [1], no_rows: true}}\n",
			wantErr: "mutually exclusive",
		},
		{
			name:    "seed without model",
			content: "name: n\ndescription: d\nschema: schema\nseed:\n  - rows: [{id: 1}]\n" + query,
			wantErr: "seed[0]: model is required",
		},
		{
			name:    "seed without rows",
			content: "name: n\ndescription: d\nschema: schema\nseed:\n  - model: application::tag.tag\n" + query,
			wantErr: "seed[0]: rows list is required",
		},
		{
			name:    "assertion without type",
			content: "name: n\ndescription: d\nschema: schema\n" + query + "assertions:\n  - text: x\n",
			wantErr: "assertions[0]: type is required",
		},
		{
			name:    "unknown assertion type",
			content: "name: n\ndescription: d\nschema: schema\n" + query + "assertions:\n  - type: trace_order\n",
			wantErr: `unknown assertion type "trace_order"`,
		},
		{
			name:    "log_contains without text",
			content: "name: n\ndescription: d\nschema: schema\n" + query + "assertions:\n  - type: log_contains\n",
			wantErr: "text is required for log_contains",
		},
		{
			name:    "log_count negative",
			content: "name: n\ndescription: d\nschema: schema\n" + query + "assertions:\n  - {type: log_count, text: x, count: -1}\n",
			wantErr: "count must be non-negative for log_count",
		},
		{
			name:    "row_count without model",
			content: "name: n\ndescription: d\nschema: schema\n" + query + "assertions:\n  - {type: row_count, count: 1}\n",
			wantErr: "model is required for row_count",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadScenario(writeScenario(t, tt.content))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestLoadScenarioWithBasePath_ResolvesSchema(t *testing.T) {
	base := t.TempDir()
	createTestSchema(t, base)

	scenarioDir := t.TempDir()
	path := filepath.Join(scenarioDir, "s.yaml")
	content := "name: n\ndescription: d\nschema: schema\nqueries:\n  - {name: q, model: tag}\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	// Relative to the scenario file the schema does not exist.
	_, err := LoadScenario(path)
	require.Error(t, err)

	scenario, err := LoadScenarioWithBasePath(path, base)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(base, "schema"), scenario.Schema)
}
