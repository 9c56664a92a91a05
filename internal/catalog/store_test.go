package catalog

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// writeCompiled lays out a compiled directory for the given queries.
func writeCompiled(t *testing.T, dir string, ifaces map[string]string, sql map[string]string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, interfaceDir), 0o755))
	require.NoError(t, os.MkdirAll(filepath.Join(dir, sqlDir), 0o755))
	for id, body := range ifaces {
		require.NoError(t, os.WriteFile(filepath.Join(dir, interfaceDir, id+".json"), []byte(body), 0o644))
	}
	for id, body := range sql {
		require.NoError(t, os.WriteFile(filepath.Join(dir, sqlDir, id+".sql"), []byte(body), 0o644))
	}
}

func TestDirStore(t *testing.T) {
	dir := t.TempDir()
	writeCompiled(t, dir,
		map[string]string{
			"user":          `{"params": {"id": {"type": "int"}}, "keys": {"user": "id"}}`,
			"user.messages": `{"params": {"user": {"type": "int"}}}`,
			"_project":      `{"name": "demo"}`,
		},
		map[string]string{
			"user":          "SELECT id, name FROM users WHERE id IN (:id)",
			"user.messages": "SELECT id, userID FROM messages WHERE userID IN (:user)",
		})

	s, err := OpenDir(dir)
	require.NoError(t, err)

	assert.Equal(t, []string{"user", "user.messages"}, s.IDs())

	iface, err := s.Interface("user.messages")
	require.NoError(t, err)
	assert.Equal(t, "user.messages", iface.ID)

	q, err := s.SQL("user")
	require.NoError(t, err)
	assert.Contains(t, q, ":id")

	_, err = s.Interface("nope")
	assert.True(t, IsNotFound(err))
	_, err = s.SQL("nope")
	assert.True(t, IsNotFound(err))
}

func TestDirStoreReloadSwapsSnapshot(t *testing.T) {
	dir := t.TempDir()
	writeCompiled(t, dir, map[string]string{"a": `{}`}, map[string]string{"a": "SELECT 1"})

	s, err := OpenDir(dir)
	require.NoError(t, err)
	_, err = s.Interface("b")
	require.Error(t, err)

	writeCompiled(t, dir, map[string]string{"b": `{}`}, map[string]string{"b": "SELECT 2"})
	require.NoError(t, s.Reload())

	_, err = s.Interface("b")
	assert.NoError(t, err)
}

func TestDirStoreReloadKeepsOldSnapshotOnError(t *testing.T) {
	dir := t.TempDir()
	writeCompiled(t, dir, map[string]string{"a": `{}`}, nil)
	s, err := OpenDir(dir)
	require.NoError(t, err)

	writeCompiled(t, dir, map[string]string{"broken": `{"output": `}, nil)
	assert.Error(t, s.Reload())

	_, err = s.Interface("a")
	assert.NoError(t, err)
}

func TestDirStoreLabel(t *testing.T) {
	base := filepath.Join(t.TempDir(), "queries")
	writeCompiled(t, base+"-beta", map[string]string{"a": `{}`}, nil)

	s, err := OpenDir(base, WithLabel("beta"))
	require.NoError(t, err)
	assert.Equal(t, base+"-beta", s.Path())

	_, err = OpenDir(base, WithLabel("no spaces"))
	assert.ErrorContains(t, err, "invalid query set label")

	_, err = OpenDir(filepath.Join(t.TempDir(), "missing"))
	assert.Error(t, err)
}

func TestMemStore(t *testing.T) {
	m := NewMemStore()
	require.NoError(t, m.Put("a", &Interface{Output: &OutputSpec{}}, "SELECT 1"))
	require.NoError(t, m.Put("alias", &Interface{Term: "a"}, ""))

	iface, err := m.Interface("a")
	require.NoError(t, err)
	assert.Equal(t, "a", iface.ID)
	assert.Equal(t, OpRead, iface.Operation)

	_, err = m.SQL("alias")
	assert.True(t, IsNotFound(err))
	assert.Equal(t, []string{"a", "alias"}, m.IDs())

	assert.Error(t, m.Put("x", nil, ""))
	assert.Error(t, m.Put("x", &Interface{Operation: "bogus"}, ""))
}

// replaceFile writes data next to path and renames it into place, the way
// the compiler publishes files, so a concurrent reload never reads a
// partial file.
func replaceFile(t *testing.T, path, data string) {
	t.Helper()
	tmp, err := os.CreateTemp(filepath.Dir(path), ".tmp-*")
	require.NoError(t, err)
	_, err = tmp.WriteString(data)
	require.NoError(t, err)
	require.NoError(t, tmp.Close())
	require.NoError(t, os.Rename(tmp.Name(), path))
}

func TestDirStoreWatch(t *testing.T) {
	dir := t.TempDir()
	writeCompiled(t, dir, map[string]string{"a": `{}`}, map[string]string{"a": "SELECT 1"})
	s, err := OpenDir(dir)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	reloaded := make(chan error, 16)
	done := make(chan error, 1)
	go func() { done <- s.Watch(ctx, func(err error) { reloaded <- err }) }()

	deadline := time.After(5 * time.Second)
	tick := time.NewTicker(100 * time.Millisecond)
	defer tick.Stop()
	for {
		select {
		case err := <-reloaded:
			require.NoError(t, err)
			_, err = s.Interface("b")
			if err != nil {
				continue
			}
			sql, err := s.SQL("b")
			require.NoError(t, err)
			assert.Equal(t, "SELECT 2", sql)
			cancel()
			assert.NoError(t, <-done)
			return
		case <-tick.C:
			// The watcher may not be registered yet; publish again until
			// a reload picks the change up.
			replaceFile(t, filepath.Join(dir, sqlDir, "b.sql"), "SELECT 2")
			replaceFile(t, filepath.Join(dir, interfaceDir, "b.json"), `{}`)
		case <-deadline:
			t.Fatal("store was not reloaded after a file change")
		}
	}
}
