package cli

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wdiesveld/tinyqueries/internal/compiler"
)

func TestValidateValidSources(t *testing.T) {
	output, err := execute(t, "validate", sourcesDir)
	require.NoError(t, err)
	assert.Contains(t, output, "All queries valid")
}

func TestValidateReportsErrorsAndWarnings(t *testing.T) {
	src := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(src, "q.cue"), []byte(`package queries

query: users: sql: "SELECT 1 AS id"
query: a: term: "b"
query: b: term: "a"
query: c: term: "users(nope)"
`), 0o644))

	output, err := execute(t, "--format", "json", "validate", src)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))

	var result ValidationResult
	require.NoError(t, json.Unmarshal([]byte(output), &result))
	assert.False(t, result.Valid)
	require.Len(t, result.Errors, 1)
	assert.Equal(t, compiler.ErrUnknownReference, result.Errors[0].Code)
	assert.Equal(t, "c", result.Errors[0].Query)
	require.Len(t, result.Warnings, 1)
	assert.Equal(t, []string{"a", "b", "a"}, result.Warnings[0].Path)
}

func TestValidateMissingDirectory(t *testing.T) {
	output, err := execute(t, "validate", filepath.Join(t.TempDir(), "nope"))
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, output, "Error ["+compiler.ErrCodeNotFound+"]")
}

func TestToValidationError(t *testing.T) {
	got := toValidationError(&compiler.LoadError{Code: compiler.ErrCodeNoFiles, Message: "no CUE files"})
	assert.Equal(t, compiler.ValidationError{Field: "load", Code: compiler.ErrCodeNoFiles, Message: "no CUE files"}, got)

	got = toValidationError(assert.AnError)
	assert.Equal(t, compiler.ErrCodeGeneric, got.Code)
}
