package harness

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wdiesveld/tinyqueries/internal/ir"
)

func loadTestScenario(t *testing.T, name string) *Scenario {
	t.Helper()
	scenario, err := LoadScenario(filepath.Join("testdata", "scenarios", name+".yaml"))
	require.NoError(t, err)
	return scenario
}

func TestRun_Sources(t *testing.T) {
	result, err := Run(context.Background(), loadTestScenario(t, "customers"))
	require.NoError(t, err)
	assert.True(t, result.Pass, "errors: %v", result.Errors)

	require.Len(t, result.Trace, 5)
	assert.Equal(t, int64(1), result.Trace[0].Seq)
	assert.Equal(t, "MISSING_INTERFACE", result.Trace[4].Error)
	assert.Nil(t, result.Trace[4].Result)
}

func TestRun_InlineQueries(t *testing.T) {
	result, err := Run(context.Background(), loadTestScenario(t, "orders"))
	require.NoError(t, err)
	assert.True(t, result.Pass, "errors: %v", result.Errors)

	require.Len(t, result.Trace, 3)
	assert.Equal(t, StepRun, result.Trace[0].Type)
	assert.Equal(t, "Updated item", result.Trace[0].Result)
	assert.Equal(t, StepSelect1, result.Trace[2].Type)
	assert.Equal(t, ir.Row{"orderID": int64(1), "total": int64(10)}, result.Trace[2].Result)
}

func baseScenario() *Scenario {
	return &Scenario{
		Name:        "base",
		Description: "base",
		Schema: []string{
			"CREATE TABLE items (id INTEGER PRIMARY KEY, label TEXT NOT NULL)",
			"INSERT INTO items (id, label) VALUES (1, 'a'), (2, 'b')",
		},
		Queries: map[string]QueryDef{
			"items": {
				Interface: map[string]any{"keys": map[string]any{"itemID": "itemID"}},
				SQL:       "SELECT id AS itemID, label FROM items ORDER BY id",
			},
			"items.label": {
				Interface: map[string]any{
					"params": map[string]any{"itemID": map[string]any{"type": "int"}},
					"output": map[string]any{"rows": "first", "columns": "first"},
				},
				SQL: "SELECT label FROM items WHERE id = :itemID",
			},
		},
	}
}

func TestRun_ExpectMismatches(t *testing.T) {
	two := 2
	five := 5

	tests := []struct {
		name    string
		step    FlowStep
		wantErr string
	}{
		{
			name:    "count",
			step:    FlowStep{Term: "items", Expect: &ExpectClause{Count: &five}},
			wantErr: "count: expected 5, got 2",
		},
		{
			name:    "result",
			step:    FlowStep{Term: "items.label", Params: 1, Expect: &ExpectClause{Result: "b"}},
			wantErr: "result mismatch",
		},
		{
			name:    "unexpected error",
			step:    FlowStep{Term: "missing"},
			wantErr: "unexpected error",
		},
		{
			name:    "expected error on success",
			step:    FlowStep{Term: "items", Expect: &ExpectClause{Error: "PARSE_ERROR", Count: &two}},
			wantErr: "expected error PARSE_ERROR, got success",
		},
		{
			name:    "wrong error code",
			step:    FlowStep{Term: "items$", Expect: &ExpectClause{Error: "MISSING_INTERFACE"}},
			wantErr: "expected error MISSING_INTERFACE, got PARSE_ERROR",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			scenario := baseScenario()
			scenario.Flow = []FlowStep{tt.step}

			result, err := Run(context.Background(), scenario)
			require.NoError(t, err)
			assert.False(t, result.Pass)
			require.Len(t, result.Errors, 1)
			assert.Contains(t, result.Errors[0], tt.wantErr)
		})
	}
}

func TestRun_ExpectMatches(t *testing.T) {
	two := 2
	scenario := baseScenario()
	scenario.Flow = []FlowStep{
		{Term: "items", Expect: &ExpectClause{Count: &two}},
		{Term: "items.label", Params: 2, Expect: &ExpectClause{Result: "b"}},
		{Term: "items.label", Params: map[string]any{"itemID": 1}, Expect: &ExpectClause{Result: "a"}},
		{Term: "items(", Expect: &ExpectClause{Error: "PARSE_ERROR"}},
	}

	result, err := Run(context.Background(), scenario)
	require.NoError(t, err)
	assert.True(t, result.Pass, "errors: %v", result.Errors)
	assert.Len(t, result.Trace, 4)
}

func TestRun_Globals(t *testing.T) {
	scenario := baseScenario()
	scenario.Globals = map[string]any{"itemID": 2}
	scenario.Flow = []FlowStep{
		{Term: "items.label", Expect: &ExpectClause{Result: "b"}},
	}

	result, err := Run(context.Background(), scenario)
	require.NoError(t, err)
	assert.True(t, result.Pass, "errors: %v", result.Errors)
}

func TestRun_SetupErrors(t *testing.T) {
	t.Run("schema", func(t *testing.T) {
		scenario := baseScenario()
		scenario.Schema = append(scenario.Schema, "CREATE TABLE")
		scenario.Flow = []FlowStep{{Term: "items"}}

		_, err := Run(context.Background(), scenario)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "schema[2]")
	})

	t.Run("invalid query", func(t *testing.T) {
		scenario := baseScenario()
		scenario.Queries["broken"] = QueryDef{
			Interface: map[string]any{"operation": "upsert"},
			SQL:       "SELECT 1",
		}
		scenario.Flow = []FlowStep{{Term: "items"}}

		_, err := Run(context.Background(), scenario)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "queries.broken")
	})
}

func TestErrorCode(t *testing.T) {
	assert.Equal(t, "INTERNAL", errorCode(assert.AnError))
}

func TestLengthOf(t *testing.T) {
	tests := []struct {
		name  string
		value any
		want  int
		ok    bool
	}{
		{"nil", nil, 0, true},
		{"rows", []ir.Row{{}, {}}, 2, true},
		{"column", []any{1}, 1, true},
		{"row", ir.Row{"a": 1, "b": 2}, 2, true},
		{"assoc", ir.NewAssoc[any](), 0, true},
		{"scalar", "x", 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			n, ok := lengthOf(tt.value)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, n)
		})
	}
}
