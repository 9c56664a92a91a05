package engine

import (
	"context"
	"testing"

	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wdiesveld/tinyqueries/internal/catalog"
	"github.com/wdiesveld/tinyqueries/internal/ir"
)

func TestParse_Structure(t *testing.T) {
	eng, _ := newTestEngine(t)

	tests := []struct {
		term string
		kind Kind
		name string
	}{
		{"users", KindAtomic, "users"},
		{"  users\n", KindAtomic, "users"},
		{"users|users.active", KindMerge, "users"},
		{"users+stats", KindAttach, "users"},
		{"users;stats", KindAttach, "users"},
		{"users:active", KindFilter, "users"},
		{"users#active", KindFilter, "users"},
		{"users(messages)", KindTree, "users"},
		{"users.(active|inactive)", KindMerge, "users.active"},
		{"(users.active)", KindAtomic, "users.active"},
		{"admins", KindFilter, "users"},
	}
	for _, tt := range tests {
		t.Run(tt.term, func(t *testing.T) {
			q, err := eng.Query(tt.term)
			require.NoError(t, err)
			assert.Equal(t, tt.kind, q.Kind())
			assert.Equal(t, tt.name, q.Name())
			assert.Equal(t, tt.term, q.Term())
		})
	}
}

func TestParse_Meta(t *testing.T) {
	eng, _ := newTestEngine(t)

	q, err := eng.Query("users(messages)")
	require.NoError(t, err)
	b := q.root.meta()
	assert.Contains(t, b.keys, "userID")
	assert.NotContains(t, b.keys, "messageID")
	assert.Contains(t, b.params, "userID", "link parameters join the tree registry")
	assert.True(t, b.output.Fields.IsChild("messages"))

	f, err := eng.Query("users:active")
	require.NoError(t, err)
	bound := f.root.children()[0].(*atomic).bindings
	assert.Equal(t, map[string]string{"userID": "userID"}, bound)
}

func TestParse_ChildAlias(t *testing.T) {
	eng, mem := newTestEngine(t)
	iface, err := mem.Interface("users")
	require.NoError(t, err)
	aliased := *iface
	aliased.Aliases = map[string]string{"posts": "messages"}
	aliased.Root = "users"
	require.NoError(t, mem.Put("writers", &aliased, "SELECT id AS userID, name FROM users ORDER BY id"))

	q, err := eng.Query("writers(posts)")
	require.NoError(t, err)
	assert.Equal(t, "- writers [Tree]\n  - messages [Filter]\n    - messages [Atomic]\n    - messages.users [Atomic]\n", q.Explain())
}

func TestParse_AliasHeadChildAlias(t *testing.T) {
	eng, mem := newTestEngine(t)
	require.NoError(t, mem.Put("writers", &catalog.Interface{
		Term:    "users",
		Aliases: map[string]string{"posts": "messages"},
	}, ""))
	require.NoError(t, mem.Put("authors", &catalog.Interface{Term: "writers"}, ""))

	want, err := eng.Query("users(messages)")
	require.NoError(t, err)

	for _, tt := range []string{"writers(posts)", "authors(posts)"} {
		t.Run(tt, func(t *testing.T) {
			q, err := eng.Query(tt)
			require.NoError(t, err)
			assert.Equal(t, KindTree, q.Kind())
			assert.Equal(t, want.Explain(), q.Explain())
		})
	}
}

func TestParse_Params(t *testing.T) {
	eng, _ := newTestEngine(t)

	q, err := eng.Query("messages.users")
	require.NoError(t, err)
	require.NoError(t, q.Params(map[string]any{"userID": 1, "unknown": 2}))
	assert.Equal(t, Values{"userID": 1}, q.Values())

	q, err = eng.Query("users.stats")
	require.NoError(t, err)
	require.NoError(t, q.Params(7))
	assert.Equal(t, Values{"userID": 7}, q.Values())

	q, err = eng.Query("users.rename")
	require.NoError(t, err)
	err = q.Params(7)
	require.Error(t, err)
	assert.True(t, IsParamBindingError(err))

	q, err = eng.Query("users")
	require.NoError(t, err)
	require.NoError(t, q.Params(7))
	assert.Empty(t, q.Values())
}

func TestExplain_Golden(t *testing.T) {
	eng, _ := newTestEngine(t)
	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)

	q, err := eng.Query("users(messages)+stats")
	require.NoError(t, err)
	g.Assert(t, "explain_attach_tree", []byte(q.Explain()))

	out, err := q.Select(context.Background(), nil)
	require.NoError(t, err)
	data, err := ir.MarshalCanonical(out)
	require.NoError(t, err)
	g.Assert(t, "select_attach_tree", data)
}
