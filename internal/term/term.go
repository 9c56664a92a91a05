// Package term holds the syntax layer of the query-term language:
// validation, depth-aware splitting and id/children extraction. Building
// query nodes from a term happens in the engine, which resolves ids against
// the compiled-query store while parsing.
//
// Operators, loosest binding first:
//
//	a|b      merge
//	a+b a;b  attach
//	a:b a#b  filter chain
//	a(b,c)   tree
//	a.(b|c)  namespace prefix
package term

import (
	"fmt"
	"regexp"
	"strings"
)

var (
	validChars = regexp.MustCompile(`^[\w.:#\-,()|+;\s]+$`)
	bareID     = regexp.MustCompile(`^[\w\-.]+$`)
	treeID     = regexp.MustCompile(`^([\w\-.]*)\s*\(`)
)

// SyntaxError describes a malformed term.
type SyntaxError struct {
	Term    string
	Message string
}

func (e *SyntaxError) Error() string {
	return fmt.Sprintf("cannot parse term %q: %s", e.Term, e.Message)
}

// Normalize replaces tabs, carriage returns and newlines by spaces.
func Normalize(s string) string {
	return strings.NewReplacer("\t", " ", "\r", " ", "\n", " ").Replace(s)
}

// Validate checks that s only contains characters allowed in a term.
func Validate(s string) error {
	if strings.TrimSpace(s) == "" {
		return &SyntaxError{Term: s, Message: "empty term"}
	}
	if !validChars.MatchString(s) {
		return &SyntaxError{Term: s, Message: "term contains invalid characters"}
	}
	return nil
}

// Split splits s on any of seps at parenthesis depth zero. Parts are
// trimmed. Unbalanced parentheses and empty parts are errors.
func Split(s string, seps ...byte) ([]string, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, &SyntaxError{Term: s, Message: "empty term"}
	}

	var (
		parts []string
		depth int
		start int
	)
	for i := 0; i < len(s); i++ {
		switch c := s[i]; {
		case c == '(':
			depth++
		case c == ')':
			depth--
			if depth < 0 {
				return nil, &SyntaxError{Term: s, Message: fmt.Sprintf("unmatched ')' at offset %d", i)}
			}
		case depth == 0 && isSep(c, seps):
			parts = append(parts, s[start:i])
			start = i + 1
		}
	}
	if depth != 0 {
		return nil, &SyntaxError{Term: s, Message: "unmatched '('"}
	}
	parts = append(parts, s[start:])

	for i, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			return nil, &SyntaxError{Term: s, Message: "empty operand"}
		}
		parts[i] = p
	}
	return parts, nil
}

func isSep(c byte, seps []byte) bool {
	for _, s := range seps {
		if c == s {
			return true
		}
	}
	return false
}

// ParseID splits a tree term into its id and children: "a(b(c),d)" gives
// "a" and "b(c),d", "a" gives "a" and "", "(b|c)" gives "" and "b|c".
// Both are empty when s is neither form, e.g. "a|b" or "(a)|(b)".
func ParseID(s string) (id, children string) {
	s = strings.TrimSpace(s)
	if bareID.MatchString(s) {
		return s, ""
	}
	m := treeID.FindStringSubmatchIndex(s)
	if m == nil || !strings.HasSuffix(s, ")") {
		return "", ""
	}
	open := m[1] - 1
	if closing(s, open) != len(s)-1 {
		return "", ""
	}
	return s[m[2]:m[3]], strings.TrimSpace(s[open+1 : len(s)-1])
}

// closing returns the index of the parenthesis matching the one at open,
// or -1.
func closing(s string, open int) int {
	depth := 0
	for i := open; i < len(s); i++ {
		switch s[i] {
		case '(':
			depth++
		case ')':
			depth--
			if depth == 0 {
				return i
			}
		}
	}
	return -1
}

// PrefixOf returns the namespace of a "prefix." id and whether id has that
// form.
func PrefixOf(id string) (string, bool) {
	if id == "" || !strings.HasSuffix(id, ".") {
		return "", false
	}
	return strings.TrimSuffix(id, "."), true
}

// Qualify prefixes term with a namespace: Qualify("a", "b") is "a.b".
func Qualify(prefix, term string) string {
	return prefix + "." + term
}

// ConvertAliases replaces the root id of each term by its alias, keeping
// any children: "a(b,c)" with alias a=d becomes "d(b,c)".
func ConvertAliases(terms []string, aliases map[string]string) []string {
	if len(aliases) == 0 {
		return terms
	}
	out := make([]string, len(terms))
	for i, t := range terms {
		id, children := ParseID(t)
		target, ok := aliases[id]
		switch {
		case id == "" || !ok:
			out[i] = t
		case children != "":
			out[i] = target + "(" + children + ")"
		default:
			out[i] = target
		}
	}
	return out
}
