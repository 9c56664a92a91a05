package cli

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/wdiesveld/tinyqueries/internal/compiler"
	"github.com/wdiesveld/tinyqueries/internal/store"
)

const shopSchema = `
CREATE TABLE customers (id INTEGER PRIMARY KEY, name TEXT NOT NULL, active INTEGER NOT NULL);
CREATE TABLE orders (id INTEGER PRIMARY KEY, customer_id INTEGER NOT NULL, total INTEGER NOT NULL);
INSERT INTO customers (id, name, active) VALUES (1, 'ann', 1), (2, 'ben', 0), (3, 'cid', 1);
INSERT INTO orders (id, customer_id, total) VALUES (1, 1, 10), (2, 1, 15), (3, 3, 7);
`

var sourcesDir = filepath.Join("testdata", "queries")

// project is a compiled query set, a seeded SQLite database and a config
// file pointing at both.
type project struct {
	dir      string
	compiled string
	config   string
}

func setupProject(t *testing.T, extraConfig string) *project {
	t.Helper()
	return setupProjectWith(t, "", extraConfig)
}

// setupProjectWith is setupProject with extra lines for the compiler
// section, each indented by two spaces.
func setupProjectWith(t *testing.T, compilerConfig, extraConfig string) *project {
	t.Helper()
	dir := t.TempDir()
	p := &project{
		dir:      dir,
		compiled: filepath.Join(dir, "compiled"),
		config:   filepath.Join(dir, "tinyq.yaml"),
	}

	loaded, errs := compiler.LoadSources(sourcesDir, compiler.LoadModeFailFast)
	require.Empty(t, errs)
	require.NoError(t, compiler.WriteCompiled(p.compiled, loaded.Entries))

	dsn := filepath.Join(dir, "app.db")
	st, err := store.Open(context.Background(), store.Config{Driver: "sqlite3", DSN: dsn})
	require.NoError(t, err)
	_, err = st.Exec(context.Background(), shopSchema, nil)
	require.NoError(t, err)
	require.NoError(t, st.Close())

	cfg := fmt.Sprintf(`database:
  driver: sqlite3
  dsn: %s
compiler:
  input: %s
  output: %s
%slog:
  level: error
%s`, dsn, sourcesDir, p.compiled, compilerConfig, extraConfig)
	require.NoError(t, os.WriteFile(p.config, []byte(cfg), 0o644))
	return p
}

// execute runs the root command with args and returns stdout.
func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	out := &bytes.Buffer{}
	cmd := NewRootCommand()
	cmd.SetOut(out)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}
