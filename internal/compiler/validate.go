package compiler

import (
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/wdiesveld/tinyqueries/internal/catalog"
)

// Validation error codes (E120-E129)
const (
	ErrUnknownReference    = "E120" // alias term mentions an unknown id
	ErrUndeclaredDefault   = "E121" // defaultParam is not a declared param
	ErrUnknownChild        = "E122" // child field names an unknown query
	ErrUnknownAliasTarget  = "E123" // aliases entry maps to an unknown query
	ErrEmptySQL            = "E124" // sql is blank
	ErrKeyWithoutComponent = "E125" // tuple key has an empty column name
)

// ValidationError is a problem found across the compiled query set.
type ValidationError struct {
	Query   string `json:"query"`
	Field   string `json:"field"`
	Message string `json:"message"`
	Code    string `json:"code"`
	Line    int    `json:"line,omitempty"`
}

// Error implements the error interface.
func (e ValidationError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("[%s] line %d: %s %s: %s", e.Code, e.Line, e.Query, e.Field, e.Message)
	}
	return fmt.Sprintf("[%s] %s %s: %s", e.Code, e.Query, e.Field, e.Message)
}

var refPattern = regexp.MustCompile(`[\w\-]+(?:\.[\w\-]+)*\.?`)

// termRefs returns the ids a term mentions, in order of appearance.
// Namespace prefixes ("users.") are kept with their trailing dot.
func termRefs(t string) []string {
	return refPattern.FindAllString(t, -1)
}

// Validate checks the references between compiled queries. Each entry was
// already checked on its own by CompileQuery. Returns all errors found (does
// not fail-fast), ordered by query id.
func Validate(entries []Entry) []ValidationError {
	ids := make(map[string]bool, len(entries))
	childNames := make(map[string]bool)
	for _, e := range entries {
		ids[e.ID] = true
		for name := range e.Interface.ChildAliases() {
			childNames[name] = true
		}
	}

	sorted := make([]Entry, len(entries))
	copy(sorted, entries)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].ID < sorted[j].ID })

	var errs []ValidationError
	for _, e := range sorted {
		errs = append(errs, validateEntry(e, ids, childNames)...)
	}
	return errs
}

func validateEntry(e Entry, ids, childNames map[string]bool) []ValidationError {
	var errs []ValidationError
	add := func(field, code, format string, args ...any) {
		errs = append(errs, ValidationError{
			Query:   e.ID,
			Field:   field,
			Message: fmt.Sprintf(format, args...),
			Code:    code,
			Line:    e.Pos.Line(),
		})
	}
	iface := e.Interface

	if iface.IsAlias() {
		for _, ref := range termRefs(iface.Term) {
			if !resolvable(ref, ids, childNames) {
				add("term", ErrUnknownReference, "term %q mentions unknown query %s", iface.Term, ref)
			}
		}
	} else if strings.TrimSpace(e.SQL) == "" {
		add("sql", ErrEmptySQL, "sql must not be blank")
	}

	if iface.DefaultParam != "" {
		if _, ok := iface.Params[iface.DefaultParam]; !ok {
			add("defaultParam", ErrUndeclaredDefault, "defaultParam %s is not a declared param", iface.DefaultParam)
		}
	}

	if iface.Output != nil {
		for _, name := range sortedKeys(iface.Output.Fields) {
			c, ok := iface.Output.Fields[name].(catalog.ChildField)
			if ok && c.Child != "" && !ids[c.Child] {
				add("output.fields."+name, ErrUnknownChild, "child query %s does not exist", c.Child)
			}
		}
	}

	for _, name := range sortedKeys(iface.Aliases) {
		if target := iface.Aliases[name]; !ids[target] {
			add("aliases."+name, ErrUnknownAliasTarget, "alias %s maps to unknown query %s", name, target)
		}
	}

	for _, key := range sortedKeys(iface.Keys) {
		for _, col := range iface.Keys[key].Fields {
			if strings.TrimSpace(col) == "" {
				add("keys."+key, ErrKeyWithoutComponent, "key %s has an empty column name", key)
				break
			}
		}
	}
	return errs
}

// resolvable reports whether ref can name a query somewhere in the set.
// Terms are qualified while they are parsed, so besides an exact match a
// ref may be the last part of a qualified id, the namespace of one, or a
// child name declared by some query.
func resolvable(ref string, ids, childNames map[string]bool) bool {
	if ns, ok := strings.CutSuffix(ref, "."); ok {
		ref = ns
	}
	if ids[ref] || childNames[ref] {
		return true
	}
	for id := range ids {
		if strings.HasSuffix(id, "."+ref) || strings.HasPrefix(id, ref+".") {
			return true
		}
	}
	return false
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
