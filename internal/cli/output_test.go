package cli

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wdiesveld/tinyqueries/internal/ir"
)

func TestOutputFormatter_JSON(t *testing.T) {
	buf := &bytes.Buffer{}
	formatter := &OutputFormatter{Format: "json", Writer: buf}

	require.NoError(t, formatter.Success(map[string]int{"count": 2}))
	var resp CLIResponse
	require.NoError(t, json.Unmarshal(buf.Bytes(), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, map[string]any{"count": float64(2)}, resp.Data)

	buf.Reset()
	require.NoError(t, formatter.Error("PARSE_ERROR", "unexpected (", map[string]string{"term": "a("}))
	resp = CLIResponse{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &resp))
	assert.Equal(t, "error", resp.Status)
	require.NotNil(t, resp.Error)
	assert.Equal(t, "PARSE_ERROR", resp.Error.Code)
	assert.Equal(t, "unexpected (", resp.Error.Message)
	assert.NotNil(t, resp.Error.Details)
}

func TestOutputFormatter_TextError(t *testing.T) {
	tests := []struct {
		name        string
		verbose     bool
		wantDetails bool
	}{
		{"quiet", false, false},
		{"verbose", true, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			buf := &bytes.Buffer{}
			formatter := &OutputFormatter{Format: "text", Writer: buf, Verbose: tt.verbose}

			require.NoError(t, formatter.Error("E101", "sql is required", "query.users"))
			assert.Contains(t, buf.String(), "Error [E101]: sql is required")
			assert.Equal(t, tt.wantDetails, bytes.Contains(buf.Bytes(), []byte("Details: query.users")))
		})
	}
}

func TestOutputFormatter_Result(t *testing.T) {
	rows := []ir.Row{{"name": "<ann>", "id": int64(1)}}

	tests := []struct {
		name      string
		format    string
		canonical bool
		want      string
	}{
		{"text", "text", false, "[\n  {\n    \"id\": 1,\n    \"name\": \"<ann>\"\n  }\n]\n"},
		{"canonical", "text", true, `[{"id":1,"name":"<ann>"}]` + "\n"},
		{"canonical wins over json", "json", true, `[{"id":1,"name":"<ann>"}]` + "\n"},
		{"json envelope", "json", false, `{"status":"ok","data":[{"id":1,"name":"\u003cann\u003e"}]}` + "\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			buf := &bytes.Buffer{}
			formatter := &OutputFormatter{Format: tt.format, Writer: buf}
			require.NoError(t, formatter.Result(rows, tt.canonical))
			assert.Equal(t, tt.want, buf.String())
		})
	}
}

func TestOutputFormatter_VerboseLog(t *testing.T) {
	out := &bytes.Buffer{}
	errOut := &bytes.Buffer{}

	(&OutputFormatter{Writer: out, ErrWriter: errOut}).VerboseLog("hidden")
	(&OutputFormatter{Writer: out, ErrWriter: errOut, Verbose: true}).VerboseLog("found %d file(s)", 2)
	(&OutputFormatter{Writer: out, Verbose: true}).VerboseLog("fallback")

	assert.Equal(t, "found 2 file(s)\n", errOut.String())
	assert.Equal(t, "fallback\n", out.String())
}

func TestExitError(t *testing.T) {
	cause := errors.New("boom")
	wrapped := fmt.Errorf("outer: %w", WrapExitError(ExitCommandError, "open failed", cause))

	assert.Equal(t, ExitCommandError, GetExitCode(wrapped))
	assert.ErrorIs(t, wrapped, cause)
	assert.Equal(t, "outer: open failed: boom", wrapped.Error())

	assert.Equal(t, ExitFailure, GetExitCode(cause))
	assert.Equal(t, "plain", NewExitError(ExitFailure, "plain").Error())
}
