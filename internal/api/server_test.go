package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wdiesveld/tinyqueries/internal/catalog"
	"github.com/wdiesveld/tinyqueries/internal/engine"
	"github.com/wdiesveld/tinyqueries/internal/store"
)

func setupTestServer(t *testing.T, opts ...engine.Option) *httptest.Server {
	t.Helper()
	ctx := context.Background()

	src, err := store.Open(ctx, store.Config{Driver: "sqlite3"})
	require.NoError(t, err)
	t.Cleanup(func() { src.Close() })
	_, err = src.Exec(ctx, `
		CREATE TABLE users (id INTEGER PRIMARY KEY, name TEXT NOT NULL);
		INSERT INTO users (id, name) VALUES (1, 'ada'), (2, 'bob');`, nil)
	require.NoError(t, err)

	userID := map[string]catalog.ParamSpec{"userID": {Type: "int", HasDefault: true}}
	mem := catalog.NewMemStore()
	require.NoError(t, mem.Put("users", &catalog.Interface{
		Params:       userID,
		DefaultParam: "userID",
		Keys:         map[string]catalog.FieldPath{"userID": catalog.Field("userID")},
		Output:       &catalog.OutputSpec{},
	}, `SELECT id AS userID, name FROM users WHERE (:userID IS NULL OR id = :userID) ORDER BY id`))
	require.NoError(t, mem.Put("users.name", &catalog.Interface{
		Params: map[string]catalog.ParamSpec{"userID": {Type: "int"}},
		Output: &catalog.OutputSpec{Rows: catalog.One, Columns: catalog.One},
	}, `SELECT name FROM users WHERE id = :userID`))
	require.NoError(t, mem.Put("users.create", &catalog.Interface{
		Params:    map[string]catalog.ParamSpec{"name": {Type: "string"}},
		Operation: catalog.OpCreate,
	}, `INSERT INTO users (name) VALUES (:name)`))

	eng := engine.New(mem, src, opts...)
	srv := httptest.NewServer(New(eng, WithCORSOrigins([]string{"https://app.example"})).Handler())
	t.Cleanup(srv.Close)
	return srv
}

func doRequest(t *testing.T, method, url, body string) (int, any) {
	t.Helper()
	req, err := http.NewRequest(method, url, strings.NewReader(body))
	require.NoError(t, err)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, "application/json; charset=utf-8", resp.Header.Get("Content-Type"))
	var out any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return resp.StatusCode, out
}

func errorCode(t *testing.T, out any) string {
	t.Helper()
	m, ok := out.(map[string]any)
	require.True(t, ok, "got %v", out)
	e, ok := m["error"].(map[string]any)
	require.True(t, ok, "got %v", out)
	return e["code"].(string)
}

func TestQueryEndpoint(t *testing.T) {
	srv := setupTestServer(t)

	status, out := doRequest(t, http.MethodGet, srv.URL+"/query?query=users", "")
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, []any{
		map[string]any{"userID": float64(1), "name": "ada"},
		map[string]any{"userID": float64(2), "name": "bob"},
	}, out)

	status, out = doRequest(t, http.MethodGet, srv.URL+"/query?query=users&param=2", "")
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, []any{map[string]any{"userID": float64(2), "name": "bob"}}, out)

	status, out = doRequest(t, http.MethodGet, srv.URL+"/query?query=users.name&userID=1", "")
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "ada", out)
}

func TestQueryEndpoint_Errors(t *testing.T) {
	srv := setupTestServer(t)

	tests := []struct {
		name   string
		url    string
		status int
		code   string
	}{
		{"empty query", "/query", http.StatusBadRequest, "BAD_REQUEST"},
		{"unknown query", "/query?query=nope", http.StatusNotFound, string(engine.CodeMissingInterface)},
		{"bad term", "/query?query=users%7C", http.StatusBadRequest, string(engine.CodeParse)},
		{"param without default", "/query?query=users.name&param=1", http.StatusBadRequest, string(engine.CodeParamBinding)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, out := doRequest(t, http.MethodGet, srv.URL+tt.url, "")
			assert.Equal(t, tt.status, status)
			assert.Equal(t, tt.code, errorCode(t, out))
		})
	}
}

func TestResourceEndpoint(t *testing.T) {
	srv := setupTestServer(t)

	status, out := doRequest(t, http.MethodGet, srv.URL+"/api/users/1", "")
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, map[string]any{"userID": float64(1), "name": "ada"}, out)

	status, out = doRequest(t, http.MethodPost, srv.URL+"/api/users", `{"name": "carol"}`)
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "Created item", out)

	status, out = doRequest(t, http.MethodPost, srv.URL+"/api/users", `[{"name": "dave"}, {"name": "erin"}]`)
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, []any{"Created item", "Created item"}, out)

	_, out = doRequest(t, http.MethodGet, srv.URL+"/api/users", "")
	assert.Len(t, out, 5)
}

func TestResourceEndpoint_InvalidPath(t *testing.T) {
	srv := setupTestServer(t)

	status, out := doRequest(t, http.MethodGet, srv.URL+"/api/us$ers", "")
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "BAD_REQUEST", errorCode(t, out))
}

func TestGlobalsCannotBeOverridden(t *testing.T) {
	srv := setupTestServer(t, engine.WithGlobals(engine.Values{"userID": 2}))

	status, out := doRequest(t, http.MethodGet, srv.URL+"/query?query=users.name&userID=1", "")
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "bob", out)
}

func TestProfiling(t *testing.T) {
	srv := setupTestServer(t)

	status, out := doRequest(t, http.MethodGet, srv.URL+"/query?query=users&_profiling=1", "")
	assert.Equal(t, http.StatusOK, status)
	m, ok := out.(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "users", m["query"])
	assert.Len(t, m["result"], 2)
	prof, ok := m["profiling"].(map[string]any)
	require.True(t, ok)
	assert.Contains(t, prof, "_total")
	assert.Contains(t, prof, "1:query")
}

func TestHealthAndCORS(t *testing.T) {
	srv := setupTestServer(t)

	status, out := doRequest(t, http.MethodGet, srv.URL+"/health", "")
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, map[string]any{"status": "ok"}, out)

	tests := []struct {
		name        string
		origin      string
		wantOrigin  string
		wantHeaders string
	}{
		{"allowed origin", "https://app.example", "https://app.example", "Authorization"},
		{"other origin", "https://evil.example", "", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, err := http.NewRequest(http.MethodOptions, srv.URL+"/query", nil)
			require.NoError(t, err)
			req.Header.Set("Origin", tt.origin)
			req.Header.Set("Access-Control-Request-Method", http.MethodPost)
			req.Header.Set("Access-Control-Request-Headers", "Authorization")
			resp, err := http.DefaultClient.Do(req)
			require.NoError(t, err)
			resp.Body.Close()

			assert.Equal(t, tt.wantOrigin, resp.Header.Get("Access-Control-Allow-Origin"))
			assert.Equal(t, tt.wantHeaders, resp.Header.Get("Access-Control-Allow-Headers"))
		})
	}

	req, err := http.NewRequest(http.MethodGet, srv.URL+"/health", nil)
	require.NoError(t, err)
	req.Header.Set("Origin", "https://app.example")
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "https://app.example", resp.Header.Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "X-Request-Id", resp.Header.Get("Access-Control-Expose-Headers"))
}
