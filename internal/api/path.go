package api

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/wdiesveld/tinyqueries/internal/term"
)

// resource is a REST path translated to a term.
type resource struct {
	term string
	// param is the unnamed value taken from the path, if any.
	param    string
	hasParam bool
	// single selects the first row only.
	single bool
}

// pathToTerm translates a REST path. The HTTP method selects the query
// variant: PUT and PATCH add ".update", POST ".create" and DELETE
// ".delete".
//
//	/a       -> a
//	/a/1     -> a, param 1, single row
//	/a/1/b   -> (b):a, param 1
//	/x/2/a/1 -> a, param 1, single row
func pathToTerm(path, method string) (resource, error) {
	path = strings.Trim(path, "/")
	if path == "" {
		return resource{}, nil
	}

	words := strings.Split(path, "/")
	for i, w := range words {
		if i%2 != 0 {
			continue
		}
		if err := term.Validate(w); err != nil {
			return resource{}, fmt.Errorf("path contains invalid characters: %w", err)
		}
	}

	var suffix string
	switch method {
	case http.MethodPut, http.MethodPatch:
		suffix = ".update"
	case http.MethodPost:
		suffix = ".create"
	case http.MethodDelete:
		suffix = ".delete"
	}

	n := len(words)
	switch {
	case n == 1:
		return resource{term: path + suffix}, nil
	case n%2 == 0:
		return resource{term: words[n-2] + suffix, param: words[n-1], hasParam: true, single: true}, nil
	}
	return resource{
		term:     "(" + words[n-1] + suffix + "):" + words[n-3],
		param:    words[n-2],
		hasParam: true,
	}, nil
}
