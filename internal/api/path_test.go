package api

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPathToTerm(t *testing.T) {
	tests := []struct {
		path   string
		method string
		want   resource
	}{
		{"", http.MethodGet, resource{}},
		{"/users", http.MethodGet, resource{term: "users"}},
		{"/users/", http.MethodPost, resource{term: "users.create"}},
		{"/users/1", http.MethodGet, resource{term: "users", param: "1", hasParam: true, single: true}},
		{"users/1", http.MethodPut, resource{term: "users.update", param: "1", hasParam: true, single: true}},
		{"users/1", http.MethodPatch, resource{term: "users.update", param: "1", hasParam: true, single: true}},
		{"users/1", http.MethodDelete, resource{term: "users.delete", param: "1", hasParam: true, single: true}},
		{"/users/1/messages", http.MethodGet, resource{term: "(messages):users", param: "1", hasParam: true}},
		{"/users/1/messages", http.MethodPost, resource{term: "(messages.create):users", param: "1", hasParam: true}},
		{"/orgs/3/users/1", http.MethodGet, resource{term: "users", param: "1", hasParam: true, single: true}},
	}
	for _, tt := range tests {
		t.Run(tt.method+" "+tt.path, func(t *testing.T) {
			got, err := pathToTerm(tt.path, tt.method)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestPathToTerm_InvalidCharacters(t *testing.T) {
	_, err := pathToTerm("/us$ers/1", http.MethodGet)
	require.Error(t, err)

	// Odd words are parameter values and may hold anything.
	_, err = pathToTerm("/users/a$b", http.MethodGet)
	require.NoError(t, err)
}
