package cli

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// queryEnvelope is the JSON envelope of a successful query.
type queryEnvelope struct {
	Status  string      `json:"status"`
	Data    QueryResult `json:"data"`
	TraceID string      `json:"trace_id"`
}

func runQueryCommand(t *testing.T, opts *RootOptions, args ...string) (stdout, stderr string, err error) {
	t.Helper()
	buf := &bytes.Buffer{}
	errBuf := &bytes.Buffer{}
	cmd := NewQueryCommand(opts)
	cmd.SetOut(buf)
	cmd.SetErr(errBuf)
	cmd.SetArgs(args)
	err = cmd.Execute()
	return buf.String(), errBuf.String(), err
}

func TestQueryTextOutput(t *testing.T) {
	out, _, err := runQueryCommand(t, testOptions("text"), "tag", "-w", "label=go")
	require.NoError(t, err)

	assert.Contains(t, out, "✓ application::tag.tag -> sql")
	assert.Contains(t, out, `compiled:  {"where":[{"field":"label","operator":"eq","value":"go"}]}`)
	assert.Contains(t, out, `WHERE "tags"."label" = ?`)
	assert.Contains(t, out, `params:    ["go"]`)
}

func TestQueryJSONEnvelope(t *testing.T) {
	out, _, err := runQueryCommand(t, testOptions("json"), "article", "-w", "author.id=42")
	require.NoError(t, err)

	var resp queryEnvelope
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, "trace-cli", resp.TraceID)
	assert.Equal(t, "application::article.article", resp.Data.Model)
	assert.Equal(t, "sql", resp.Data.Backend)
	assert.NotEmpty(t, resp.Data.FilterID)
	assert.JSONEq(t, `{"where":[{"field":"author.userId","operator":"eq","value":42}]}`, string(resp.Data.Compiled))
	assert.Contains(t, resp.Data.Statement, `LEFT JOIN "users-permissions_user" AS "author"`)
	assert.Equal(t, []any{float64(42)}, resp.Data.Params)
}

func TestQueryFilterIDIsStable(t *testing.T) {
	// The same filter written two ways compiles to the same thing.
	out1, _, err := runQueryCommand(t, testOptions("json"), "article", "-w", "author.id=42")
	require.NoError(t, err)
	out2, _, err := runQueryCommand(t, testOptions("json"), "article", "-w", "author.userId=42")
	require.NoError(t, err)

	var a, b queryEnvelope
	require.NoError(t, json.Unmarshal([]byte(out1), &a))
	require.NoError(t, json.Unmarshal([]byte(out2), &b))
	assert.Equal(t, a.Data.FilterID, b.Data.FilterID)
}

func TestQueryDocumentModel(t *testing.T) {
	out, _, err := runQueryCommand(t, testOptions("json"), "comment", "-w", "likes_gt=3")
	require.NoError(t, err)

	var resp queryEnvelope
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "document", resp.Data.Backend)
	assert.Contains(t, resp.Data.Statement, `"aggregate":"comments"`)
	assert.Contains(t, resp.Data.Statement, `"$gt":3`)
	assert.Empty(t, resp.Data.Params)
}

func TestQueryFilterFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "filter.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
where:
  - { field: views, operator: gte, value: "3" }
sort:
  - { field: title, order: desc }
limit: 5
`), 0644))

	out, _, err := runQueryCommand(t, testOptions("json"), "article", "-f", path, "-w", "_limit=2")
	require.NoError(t, err)

	var resp queryEnvelope
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.JSONEq(t,
		`{"where":[{"field":"views","operator":"gte","value":3}],"sort":[{"field":"title","order":"desc"}],"limit":2}`,
		string(resp.Data.Compiled))
	assert.Contains(t, resp.Data.Statement, `ORDER BY "articles"."title" DESC`)
}

func TestQueryPluginModel(t *testing.T) {
	out, _, err := runQueryCommand(t, testOptions("text"), "user", "--plugin", "users-permissions", "-w", "username=alice")
	require.NoError(t, err)
	assert.Contains(t, out, "plugins::users-permissions.user -> sql")
}

func TestQueryDeepFilterWarning(t *testing.T) {
	_, stderr, err := runQueryCommand(t, testOptions("text"), "article", "-w", "author.company.name=Acme")
	require.NoError(t, err)
	assert.Contains(t, stderr, "level=WARN")
	assert.Contains(t, stderr, "deep filtering")
	assert.Contains(t, stderr, "relations=2")
}

func TestQueryErrors(t *testing.T) {
	tests := []struct {
		name     string
		opts     func() *RootOptions
		args     []string
		code     string
		exitCode int
	}{
		{
			name:     "invalid field path",
			args:     []string{"article", "-w", "nonexistentField=x"},
			code:     "INVALID_FIELD_PATH",
			exitCode: ExitFailure,
		},
		{
			name:     "type coercion",
			args:     []string{"article", "-w", "price_in=1", "-w", "price_in=x"},
			code:     "TYPE_COERCION",
			exitCode: ExitFailure,
		},
		{
			name:     "invalid parameter",
			args:     []string{"article", "-w", "_limit=ten"},
			code:     "INVALID_PARAMETER",
			exitCode: ExitFailure,
		},
		{
			name:     "unknown model",
			args:     []string{"invoice"},
			code:     "MODEL_NOT_FOUND",
			exitCode: ExitFailure,
		},
		{
			name: "unregistered connector",
			opts: func() *RootOptions {
				opts := testOptions("json")
				delete(opts.Config.Connectors, "mongoose")
				return opts
			},
			args:     []string{"comment", "-w", "nonexistentField=x"},
			code:     "UNREGISTERED_CONNECTOR",
			exitCode: ExitCommandError,
		},
		{
			name:     "missing schema",
			args:     []string{"article", "--schema", "/nonexistent/schema"},
			code:     ErrCodeNotFound,
			exitCode: ExitCommandError,
		},
		{
			name:     "missing filter file",
			args:     []string{"article", "-f", "/nonexistent/filter.yaml"},
			code:     ErrCodeBadInput,
			exitCode: ExitCommandError,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			opts := testOptions("json")
			if tt.opts != nil {
				opts = tt.opts()
			}
			out, _, err := runQueryCommand(t, opts, tt.args...)
			require.Error(t, err)
			assert.Equal(t, tt.exitCode, GetExitCode(err))

			var resp CLIResponse
			require.NoError(t, json.Unmarshal([]byte(out), &resp))
			assert.Equal(t, "error", resp.Status)
			require.NotNil(t, resp.Error)
			assert.Equal(t, tt.code, resp.Error.Code)
		})
	}
}

func TestQueryErrorText(t *testing.T) {
	out, _, err := runQueryCommand(t, testOptions("text"), "article", "-w", "nonexistentField=x")
	require.Error(t, err)
	assert.Contains(t, out, "Error [INVALID_FIELD_PATH]")
	assert.Contains(t, out, "nonexistentField")
}
