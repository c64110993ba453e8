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

const testSeed = `
- model: application::tag.tag
  rows:
    - { id: 1, label: go }
    - { id: 2, label: db }
- model: application::article.article
  rows:
    - { id: 1, title: Go Tips, views: 10, tags: [1, 2] }
    - { id: 2, title: SQL 101, views: 3, tags: [2] }
    - { id: 3, title: Drafts, views: 0 }
`

func writeSeed(t *testing.T, src string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "seed.yaml")
	require.NoError(t, os.WriteFile(path, []byte(src), 0644))
	return path
}

func runExecCommand(t *testing.T, opts *RootOptions, args ...string) (string, error) {
	t.Helper()
	buf := &bytes.Buffer{}
	cmd := NewExecCommand(opts)
	cmd.SetOut(buf)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs(args)
	err := cmd.Execute()
	return buf.String(), err
}

func TestExecRunsAgainstSeededStore(t *testing.T) {
	seed := writeSeed(t, testSeed)

	out, err := runExecCommand(t, testOptions("json"), "article", "--seed", seed, "-w", "tags.label=db")
	require.NoError(t, err)

	var resp struct {
		Status  string     `json:"status"`
		Data    ExecResult `json:"data"`
		TraceID string     `json:"trace_id"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, "trace-cli", resp.TraceID)
	assert.Equal(t, 2, resp.Data.Count)
	require.Len(t, resp.Data.Rows, 2)
	assert.Equal(t, float64(1), resp.Data.Rows[0]["id"])
	assert.Equal(t, float64(2), resp.Data.Rows[1]["id"])
	assert.Contains(t, resp.Data.Statement, "DISTINCT")
}

func TestExecTextOutput(t *testing.T) {
	seed := writeSeed(t, testSeed)

	out, err := runExecCommand(t, testOptions("text"), "article", "--seed", seed, "-w", "views_gte=3", "-w", "_sort=views:desc")
	require.NoError(t, err)
	assert.Contains(t, out, "✓ application::article.article: 2 row(s)")
	assert.Contains(t, out, `"title":"Go Tips"`)
	assert.Less(t, bytes.Index([]byte(out), []byte("Go Tips")), bytes.Index([]byte(out), []byte("SQL 101")))
}

func TestExecEmptyResult(t *testing.T) {
	out, err := runExecCommand(t, testOptions("json"), "tag", "-w", "label=none")
	require.NoError(t, err)

	var resp struct {
		Data ExecResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, 0, resp.Data.Count)
	assert.NotNil(t, resp.Data.Rows)
}

func TestExecPersistsToDatabaseFile(t *testing.T) {
	opts := testOptions("json")
	dbPath := filepath.Join(t.TempDir(), "blog.db")

	_, err := runExecCommand(t, opts, "tag", "--db", dbPath, "--seed", writeSeed(t, testSeed))
	require.NoError(t, err)

	// Second run reads what the first one inserted.
	out, err := runExecCommand(t, testOptions("json"), "tag", "--db", dbPath, "-w", "label=go")
	require.NoError(t, err)

	var resp struct {
		Data ExecResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, 1, resp.Data.Count)
}

func TestExecRejectsDocumentModels(t *testing.T) {
	out, err := runExecCommand(t, testOptions("json"), "comment", "-w", "likes_gt=3")
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))

	var resp CLIResponse
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	require.NotNil(t, resp.Error)
	assert.Equal(t, ErrCodeNotExecutable, resp.Error.Code)
}

func TestExecSeedErrors(t *testing.T) {
	tests := []struct {
		name string
		seed string
		code string
	}{
		{"unknown key", "- model: application::tag.tag\n  rowz: []\n", ErrCodeBadInput},
		{"missing model", "- rows:\n    - { id: 1 }\n", ErrCodeBadInput},
		{"bad value", "- model: application::article.article\n  rows:\n    - { id: 1, views: many }\n", ErrCodeWriteFailed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := runExecCommand(t, testOptions("json"), "tag", "--seed", writeSeed(t, tt.seed))
			require.Error(t, err)
			assert.Equal(t, ExitCommandError, GetExitCode(err))

			var resp CLIResponse
			require.NoError(t, json.Unmarshal([]byte(out), &resp))
			require.NotNil(t, resp.Error)
			assert.Equal(t, tt.code, resp.Error.Code)
		})
	}
}

func TestExecFilterErrorsMatchQuery(t *testing.T) {
	out, err := runExecCommand(t, testOptions("json"), "article", "-w", "nonexistentField=x")
	require.Error(t, err)

	var resp CLIResponse
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	require.NotNil(t, resp.Error)
	assert.Equal(t, "INVALID_FIELD_PATH", resp.Error.Code)
}
