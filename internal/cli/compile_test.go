package cli

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wdiesveld/tinyqueries/internal/catalog"
	"github.com/wdiesveld/tinyqueries/internal/compiler"
)

func TestCompileValidSources(t *testing.T) {
	out := filepath.Join(t.TempDir(), "compiled")

	output, err := execute(t, "compile", sourcesDir, out)
	require.NoError(t, err)
	assert.Contains(t, output, "Compiled 5 query(s), 1 alias(es)")
	assert.Contains(t, output, "Wrote compiled queries to "+out)

	store, err := catalog.OpenDir(out)
	require.NoError(t, err)
	assert.Equal(t, []string{
		"customers", "customers.active", "customers.get", "customers.rename", "customers.spent", "vip",
	}, store.IDs())
}

func TestCompileJSON(t *testing.T) {
	out := filepath.Join(t.TempDir(), "compiled")

	output, err := execute(t, "--format", "json", "compile", sourcesDir, out)
	require.NoError(t, err)

	var resp struct {
		Status string            `json:"status"`
		Data   CompilationResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(output), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, []string{"vip"}, resp.Data.Aliases)
	assert.Len(t, resp.Data.Queries, 5)
	assert.Equal(t, out, resp.Data.Output)
}

func TestCompileLabel(t *testing.T) {
	out := filepath.Join(t.TempDir(), "compiled")

	_, err := execute(t, "compile", sourcesDir, out, "--label", "staging")
	require.NoError(t, err)
	_, err = os.Stat(filepath.Join(out+"-staging", "interface", "vip.json"))
	require.NoError(t, err)

	_, err = execute(t, "compile", sourcesDir, out, "--label", "bad label")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestCompileDefaultsFromConfig(t *testing.T) {
	p := setupProject(t, "")
	require.NoError(t, os.RemoveAll(p.compiled))

	_, err := execute(t, "--config", p.config, "compile")
	require.NoError(t, err)
	_, err = os.Stat(filepath.Join(p.compiled, "sql", "customers.sql"))
	require.NoError(t, err)
}

func TestCompileErrors(t *testing.T) {
	src := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(src, "bad.cue"), []byte(`package queries

query: a: {operation: "upsert", sql: "SELECT 1"}
query: b: {sql: "SELECT 1", term: "a"}
`), 0o644))

	output, err := execute(t, "compile", src, filepath.Join(t.TempDir(), "out"))
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, output, "Compilation failed")
	assert.Contains(t, output, compiler.ErrCodeInvalidOp)
	assert.Contains(t, output, compiler.ErrCodeQuerySource)
}

func TestCompileErrorsJSON(t *testing.T) {
	output, err := execute(t, "--format", "json", "compile", filepath.Join(t.TempDir(), "missing"), t.TempDir())
	require.Error(t, err)

	var resp CLIResponse
	require.NoError(t, json.Unmarshal([]byte(output), &resp))
	assert.Equal(t, "error", resp.Status)
	assert.Equal(t, compiler.ErrCodeNotFound, resp.Error.Code)
}
