package harness

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFindScenarios(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"b.yaml", "a.yml", "notes.txt", "sub/c.yaml"} {
		path := filepath.Join(dir, name)
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte("name: x\n"), 0o644))
	}

	files, err := FindScenarios(dir, "")
	require.NoError(t, err)
	assert.Equal(t, []string{
		filepath.Join(dir, "a.yml"),
		filepath.Join(dir, "b.yaml"),
		filepath.Join(dir, "sub", "c.yaml"),
	}, files)

	files, err = FindScenarios(dir, "[bc]")
	require.NoError(t, err)
	assert.Len(t, files, 2)

	_, err = FindScenarios(dir, "[")
	require.Error(t, err)
}

func TestRunSuite(t *testing.T) {
	suite, err := RunSuite(context.Background(), filepath.Join("testdata", "scenarios"), SuiteOptions{})
	require.NoError(t, err)

	assert.Equal(t, 2, suite.Total)
	assert.Equal(t, 2, suite.Passed, "failures: %+v", suite.Scenarios)
	assert.Equal(t, 0, suite.Failed)
	assert.Equal(t, "customers", suite.Scenarios[0].Name)
	assert.Equal(t, "orders", suite.Scenarios[1].Name)
}

func TestRunSuite_GoldenUpdateAndMismatch(t *testing.T) {
	dir := t.TempDir()
	data, err := os.ReadFile(filepath.Join("testdata", "scenarios", "orders.yaml"))
	require.NoError(t, err)
	writeScenario(t, dir, "orders.yaml", string(data))

	suite, err := RunSuite(context.Background(), dir, SuiteOptions{Update: true})
	require.NoError(t, err)
	require.Equal(t, 1, suite.Passed, "failures: %+v", suite.Scenarios)

	want, err := os.ReadFile(filepath.Join("testdata", "scenarios", "golden", "orders.golden"))
	require.NoError(t, err)
	got, err := os.ReadFile(GoldenPath(filepath.Join(dir, "orders.yaml")))
	require.NoError(t, err)
	assert.Equal(t, string(want), string(got))

	require.NoError(t, os.WriteFile(GoldenPath(filepath.Join(dir, "orders.yaml")), []byte("{}"), 0o644))
	suite, err = RunSuite(context.Background(), dir, SuiteOptions{})
	require.NoError(t, err)
	require.Equal(t, 1, suite.Failed)
	assert.Contains(t, suite.Scenarios[0].Errors[0], "trace does not match golden file")
}

func TestRunSuite_DefaultSources(t *testing.T) {
	dir := t.TempDir()
	writeScenario(t, dir, "vip.yaml", `
name: vip
description: Relies on the suite-wide sources
schema:
  - CREATE TABLE customers (id INTEGER PRIMARY KEY, name TEXT NOT NULL, active INTEGER NOT NULL)
  - INSERT INTO customers (id, name, active) VALUES (1, 'ann', 0), (2, 'ben', 1)
flow:
  - term: vip
    expect:
      result: [{customerID: 2, name: ben}]
`)
	writeScenario(t, dir, "broken.yaml", "name: broken\n")

	sources, err := filepath.Abs(filepath.Join("testdata", "sources"))
	require.NoError(t, err)

	suite, err := RunSuite(context.Background(), dir, SuiteOptions{Sources: sources})
	require.NoError(t, err)
	require.Equal(t, 2, suite.Total)
	assert.Equal(t, 1, suite.Passed)
	assert.Equal(t, 1, suite.Failed)

	broken := suite.Scenarios[0]
	assert.Equal(t, "broken.yaml", broken.Name)
	assert.Contains(t, broken.Errors[0], "failed to load scenario")
	assert.True(t, suite.Scenarios[1].Pass, "errors: %v", suite.Scenarios[1].Errors)
}
