package engine

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/wdiesveld/tinyqueries/internal/catalog"
	"github.com/wdiesveld/tinyqueries/internal/store"
)

const fixtureSchema = `
CREATE TABLE users (id INTEGER PRIMARY KEY, name TEXT NOT NULL, profile TEXT);
CREATE TABLE messages (id INTEGER PRIMARY KEY, user_id INTEGER NOT NULL, text TEXT NOT NULL);
INSERT INTO users (id, name, profile) VALUES
	(1, 'ada', '{"city":"London","langs":["en"]}'),
	(2, 'bob', NULL),
	(3, 'carol', '{"city":"Paris"}');
INSERT INTO messages (id, user_id, text) VALUES
	(10, 1, 'hi'),
	(11, 1, 'yo'),
	(12, 2, 'hey');
`

type fixtureQuery struct {
	iface *catalog.Interface
	sql   string
}

func userFields() catalog.Fields {
	return catalog.Fields{
		"userID":   catalog.ScalarField{Type: catalog.KindInt},
		"name":     catalog.ScalarField{Type: catalog.KindString},
		"messages": catalog.ChildField{Child: "messages"},
	}
}

func fixtureQueries() map[string]fixtureQuery {
	userKey := map[string]catalog.FieldPath{"userID": catalog.Field("userID")}
	messageKey := map[string]catalog.FieldPath{"messageID": catalog.Field("messageID")}
	idParam := func() catalog.ParamSpec { return catalog.ParamSpec{Type: "int"} }

	return map[string]fixtureQuery{
		"users": {
			iface: &catalog.Interface{
				Keys:   userKey,
				Output: &catalog.OutputSpec{Fields: userFields()},
			},
			sql: `SELECT id AS userID, name, NULL AS messages FROM users ORDER BY id`,
		},
		"users.get": {
			iface: &catalog.Interface{
				Params: map[string]catalog.ParamSpec{"userID": idParam()},
				Keys:   userKey,
				Output: &catalog.OutputSpec{Rows: catalog.One, Fields: userFields()},
			},
			sql: `SELECT id AS userID, name FROM users WHERE id = :userID`,
		},
		"users.name": {
			iface: &catalog.Interface{
				Params: map[string]catalog.ParamSpec{"userID": idParam()},
				Output: &catalog.OutputSpec{Rows: catalog.One, Columns: catalog.One},
			},
			sql: `SELECT name FROM users WHERE id = :userID`,
		},
		"users.names": {
			iface: &catalog.Interface{
				Output: &catalog.OutputSpec{Columns: catalog.One},
			},
			sql: `SELECT name FROM users ORDER BY id`,
		},
		"users.profile": {
			iface: &catalog.Interface{
				Keys: userKey,
				Output: &catalog.OutputSpec{Fields: catalog.Fields{
					"userID":  catalog.ScalarField{Type: catalog.KindInt},
					"profile": catalog.JSONField{},
				}},
			},
			sql: `SELECT id AS userID, profile FROM users ORDER BY id`,
		},
		"users.active": {
			iface: &catalog.Interface{
				Keys:   userKey,
				Output: &catalog.OutputSpec{},
			},
			sql: `SELECT id AS userID FROM users WHERE name <> 'bob' ORDER BY id`,
		},
		"users.inactive": {
			iface: &catalog.Interface{
				Keys:   userKey,
				Output: &catalog.OutputSpec{},
			},
			sql: `SELECT id AS userID, name FROM users WHERE name = 'bob'`,
		},
		"users.stats": {
			iface: &catalog.Interface{
				Params: map[string]catalog.ParamSpec{"userID": idParam()},
				Keys:   userKey,
				Output: &catalog.OutputSpec{},
			},
			sql: `SELECT user_id AS userID, count(*) AS messageCount FROM messages
				WHERE user_id IN (:userID) GROUP BY user_id`,
		},
		"users.nokey": {
			iface: &catalog.Interface{Output: &catalog.OutputSpec{}},
			sql:   `SELECT 1 AS one`,
		},
		"users.rename": {
			iface: &catalog.Interface{
				Params:    map[string]catalog.ParamSpec{"userID": idParam(), "name": {Type: "string"}},
				Operation: catalog.OpUpdate,
				Output:    nil,
			},
			sql: `UPDATE users SET name = :name WHERE id = :userID`,
		},
		"messages": {
			iface: &catalog.Interface{
				Params: map[string]catalog.ParamSpec{"messageID": idParam()},
				Keys:   messageKey,
				Output: &catalog.OutputSpec{},
			},
			sql: `SELECT id AS messageID, text FROM messages WHERE id IN (:messageID) ORDER BY id`,
		},
		"messages.users": {
			iface: &catalog.Interface{
				Params: map[string]catalog.ParamSpec{"userID": idParam()},
				Keys: map[string]catalog.FieldPath{
					"messageID": catalog.Field("messageID"),
					"userID":    catalog.Field("userID"),
				},
				Output: &catalog.OutputSpec{},
			},
			sql: `SELECT id AS messageID, user_id AS userID FROM messages WHERE user_id IN (:userID) ORDER BY id`,
		},
		"admins": {
			iface: &catalog.Interface{Term: "users:active"},
		},
		"loop.a": {
			iface: &catalog.Interface{Term: "loop.b"},
		},
		"loop.b": {
			iface: &catalog.Interface{Term: "loop.a"},
		},
	}
}

// newTestEngine returns an engine over an in-memory SQLite database holding
// three users and their messages.
func newTestEngine(t *testing.T, opts ...Option) (*Engine, *catalog.MemStore) {
	t.Helper()
	ctx := context.Background()

	src, err := store.Open(ctx, store.Config{Driver: "sqlite3"})
	require.NoError(t, err)
	t.Cleanup(func() { src.Close() })
	_, err = src.Exec(ctx, fixtureSchema, nil)
	require.NoError(t, err)

	mem := catalog.NewMemStore()
	for id, q := range fixtureQueries() {
		require.NoError(t, mem.Put(id, q.iface, q.sql), id)
	}
	opts = append([]Option{WithRunIDGenerator(UUIDv7Generator{})}, opts...)
	return New(mem, src, opts...), mem
}
