package compiler

import (
	"encoding/json"
	"fmt"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/errors"
	"cuelang.org/go/cue/token"

	"github.com/wdiesveld/tinyqueries/internal/catalog"
	"github.com/wdiesveld/tinyqueries/internal/term"
)

// Entry is one compiled query: its interface and, for non-alias queries,
// its SQL template.
type Entry struct {
	ID        string
	Interface *catalog.Interface
	SQL       string
	Pos       token.Pos
}

// CompileQuery parses a CUE value into a query interface and SQL template.
// Uses the CUE SDK's Go API directly.
//
// The CUE value should be the query struct itself, e.g.:
//
//	ctx := cuecontext.New()
//	v := ctx.CompileString(`query: "users": { sql: "SELECT * FROM users" }`)
//	iface, sql, err := CompileQuery(v.LookupPath(cue.ParsePath(`query."users"`)))
func CompileQuery(v cue.Value) (*catalog.Interface, string, error) {
	if err := v.Err(); err != nil {
		return nil, "", formatCUEError(err)
	}
	if !v.Exists() {
		return nil, "", &CompileError{Field: "query", Message: "query not found", Pos: v.Pos()}
	}

	var id string
	if labels := v.Path().Selectors(); len(labels) > 0 {
		id = labels[len(labels)-1].Unquoted()
	}

	sqlVal := v.LookupPath(cue.ParsePath("sql"))
	termVal := v.LookupPath(cue.ParsePath("term"))
	switch {
	case sqlVal.Exists() && termVal.Exists():
		return nil, "", &CompileError{Field: "sql", Message: "sql and term are mutually exclusive", Pos: termVal.Pos()}
	case !sqlVal.Exists() && !termVal.Exists():
		return nil, "", &CompileError{Field: "sql", Message: "either sql or term is required", Pos: v.Pos()}
	}

	var sql string
	if sqlVal.Exists() {
		s, err := sqlVal.String()
		if err != nil {
			return nil, "", formatCUEError(err)
		}
		sql = s
	} else {
		t, err := termVal.String()
		if err != nil {
			return nil, "", formatCUEError(err)
		}
		if err := term.Validate(t); err != nil {
			return nil, "", &CompileError{Field: "term", Message: err.Error(), Pos: termVal.Pos()}
		}
	}

	if err := checkParams(v.LookupPath(cue.ParsePath("params"))); err != nil {
		return nil, "", err
	}
	if err := checkOperation(v.LookupPath(cue.ParsePath("operation"))); err != nil {
		return nil, "", err
	}
	if fields := v.LookupPath(cue.ParsePath("output.fields")); fields.Exists() {
		if err := checkFields(fields, "output.fields"); err != nil {
			return nil, "", err
		}
	}

	iface, err := decodeInterface(v)
	if err != nil {
		return nil, "", err
	}
	iface.ID = id
	if err := iface.Validate(); err != nil {
		return nil, "", &CompileError{Field: "query", Message: err.Error(), Pos: v.Pos()}
	}
	return iface, sql, nil
}

// decodeInterface exports v as JSON without its sql field and decodes that
// the same way compiled interface files are read.
func decodeInterface(v cue.Value) (*catalog.Interface, error) {
	data, err := v.MarshalJSON()
	if err != nil {
		return nil, formatCUEError(err)
	}
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, &CompileError{Field: "query", Message: "query must be a struct", Pos: v.Pos()}
	}
	delete(raw, "sql")
	data, err = json.Marshal(raw)
	if err != nil {
		return nil, err
	}
	iface, err := catalog.ParseInterface(data)
	if err != nil {
		return nil, &CompileError{Field: "query", Message: err.Error(), Pos: v.Pos()}
	}
	return iface, nil
}

func checkParams(params cue.Value) error {
	if !params.Exists() {
		return nil
	}
	iter, err := params.Fields()
	if err != nil {
		return formatCUEError(err)
	}
	for iter.Next() {
		name := iter.Selector().Unquoted()
		p := iter.Value()

		if typeVal := p.LookupPath(cue.ParsePath("type")); typeVal.Exists() {
			typ, err := typeVal.String()
			if err != nil {
				return formatCUEError(err)
			}
			if !catalog.KnownParamType(typ) {
				return &CompileError{
					Field:   "params." + name + ".type",
					Message: fmt.Sprintf("unknown param type %q", typ),
					Pos:     typeVal.Pos(),
				}
			}
		}

		if splitVal := p.LookupPath(cue.ParsePath("split")); splitVal.Exists() {
			n, err := splitVal.Int64()
			if err != nil {
				return formatCUEError(err)
			}
			if n <= 0 {
				return &CompileError{
					Field:   "params." + name + ".split",
					Message: "split must be positive",
					Pos:     splitVal.Pos(),
				}
			}
		}
	}
	return nil
}

func checkOperation(v cue.Value) error {
	if !v.Exists() {
		return nil
	}
	op, err := v.String()
	if err != nil {
		return formatCUEError(err)
	}
	if !catalog.Operation(op).Valid() {
		return &CompileError{
			Field:   "operation",
			Message: fmt.Sprintf("invalid operation %q (want read, create, update or delete)", op),
			Pos:     v.Pos(),
		}
	}
	return nil
}

// checkFields walks output fields, which are either a type string or a
// struct with a type and, for objects, nested fields.
func checkFields(fields cue.Value, path string) error {
	iter, err := fields.Fields()
	if err != nil {
		return formatCUEError(err)
	}
	for iter.Next() {
		name := path + "." + iter.Selector().Unquoted()
		f := iter.Value()

		typeVal := f
		if f.Kind() == cue.StructKind {
			typeVal = f.LookupPath(cue.ParsePath("type"))
			if !typeVal.Exists() {
				if f.LookupPath(cue.ParsePath("child")).Exists() {
					continue
				}
				return &CompileError{Field: name, Message: "field type is required", Pos: f.Pos()}
			}
		}
		typ, err := extractTypeName(typeVal)
		if err != nil {
			return err
		}
		if _, err := catalog.NewFieldSpec(typ, nil, ""); err != nil {
			return &CompileError{Field: name, Message: err.Error(), Pos: typeVal.Pos()}
		}
		if nested := f.LookupPath(cue.ParsePath("fields")); f.Kind() == cue.StructKind && nested.Exists() {
			if err := checkFields(nested, name); err != nil {
				return err
			}
		}
	}
	return nil
}

// extractTypeName gets the type name of a field. Types are written as
// strings ("int", "json") so the query exports to JSON as is.
func extractTypeName(v cue.Value) (string, error) {
	s, err := v.String()
	if err != nil {
		return "", &CompileError{
			Field:   "type",
			Message: fmt.Sprintf("field type must be a string, got %v", v.IncompleteKind()),
			Pos:     v.Pos(),
		}
	}
	return s, nil
}

// CompileError represents a compilation error with source position.
type CompileError struct {
	Field   string
	Message string
	Pos     token.Pos
}

func (e *CompileError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s",
			e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(),
			e.Field, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// formatCUEError extracts position info from CUE errors.
func formatCUEError(err error) error {
	if err == nil {
		return nil
	}

	errs := errors.Errors(err)
	if len(errs) == 0 {
		return err
	}

	first := errs[0]
	if positions := errors.Positions(first); len(positions) > 0 {
		return &CompileError{
			Field:   "cue",
			Message: first.Error(),
			Pos:     positions[0],
		}
	}
	return err
}
