package engine

import (
	"errors"
	"strings"

	"github.com/wdiesveld/tinyqueries/internal/catalog"
	"github.com/wdiesveld/tinyqueries/internal/ir"
	"github.com/wdiesveld/tinyqueries/internal/rows"
)

// selectOutput executes n and shapes its result for the caller:
//   - scalar columns come back as a value or a list of values
//   - a One-row result comes back as a single row (or nil)
//   - otherwise rows are pivoted, then grouped or keyed by key if set
//
// key defaults to the declared output key.
func selectOutput(r *run, n node, values Values, key string, cleanupKeys bool) (any, error) {
	d, err := r.exec(n, values)
	if err != nil {
		return nil, err
	}
	out := n.meta().output
	if out == nil {
		return nil, nil
	}
	if key == "" {
		key = out.Key
	}

	if out.Columns == catalog.One {
		if out.Rows == catalog.One {
			if len(d.values) == 0 {
				return nil, nil
			}
			return d.values[0], nil
		}
		if d.values == nil {
			return []any{}, nil
		}
		return d.values, nil
	}

	list := d.rows
	if list == nil {
		list = []ir.Row{}
	}
	if cleanupKeys {
		removeKeyColumns(list, out, key)
	}
	removeChildPlaceholders(list, out)

	if out.Rows == catalog.One {
		if len(list) == 0 {
			return nil, nil
		}
		return list[0], nil
	}
	if p := out.Pivot; p != nil {
		list = rows.Rows2Columns(list, p.Key, p.Name, p.Value)
	}
	switch {
	case key != "" && out.Group:
		grouped, err := rows.GroupBy(list, key, true)
		return grouped, wrapRowsError(n.name(), err)
	case key != "":
		keyed, err := rows.ToAssoc(list, key)
		return keyed, wrapRowsError(n.name(), err)
	}
	return list, nil
}

// rowsOf executes n for use inside a composite: mapping rows with child
// placeholders removed and pivoting applied, never keyed.
func rowsOf(r *run, n node, values Values, cleanupKeys bool, keep string) ([]ir.Row, error) {
	d, err := r.exec(n, values)
	if err != nil {
		return nil, err
	}
	out := n.meta().output
	if out == nil {
		return nil, nil
	}
	if out.Columns == catalog.One {
		return nil, NewShapeMismatchError(n.name(), "query selects a single column; rows are needed to combine it")
	}
	if cleanupKeys {
		removeKeyColumns(d.rows, out, keep)
	}
	removeChildPlaceholders(d.rows, out)
	if p := out.Pivot; p != nil && out.Rows == catalog.Many {
		return rows.Rows2Columns(d.rows, p.Key, p.Name, p.Value), nil
	}
	return d.rows, nil
}

// indexRows keys rows by key k of n. Later rows replace earlier ones with
// the same key value.
func indexRows(n node, k string, list []ir.Row) (*ir.Assoc[ir.Row], error) {
	b := n.meta()
	if path, ok := b.keys[k]; !ok || !path.Tuple {
		assoc, err := rows.ToAssoc(list, b.keyField(k))
		return assoc, wrapRowsError(n.name(), err)
	}
	out := ir.NewAssoc[ir.Row]()
	for _, row := range list {
		key, ok := b.rowKey(k, row)
		if !ok {
			return nil, NewShapeMismatchError(n.name(), "key "+k+" is not present in rows")
		}
		out.Set(key, row)
	}
	return out, nil
}

// removeKeyColumns drops the "__" helper columns that are not the active
// key, the output key or a declared field.
func removeKeyColumns(list []ir.Row, out *catalog.OutputSpec, key string) {
	if len(list) == 0 || list[0] == nil {
		return
	}
	var drop []string
	for col := range list[0] {
		if strings.HasPrefix(col, "__") && col != key && col != out.Key && !out.Fields.Has(col) {
			drop = append(drop, col)
		}
	}
	deleteColumns(list, drop)
}

// removeChildPlaceholders drops null columns declared as child fields.
// They only exist to be filled by tree nesting.
func removeChildPlaceholders(list []ir.Row, out *catalog.OutputSpec) {
	if len(list) == 0 || list[0] == nil {
		return
	}
	var drop []string
	for col, v := range list[0] {
		if v == nil && out.Fields.IsChild(col) {
			drop = append(drop, col)
		}
	}
	deleteColumns(list, drop)
}

func deleteColumns(list []ir.Row, cols []string) {
	if len(cols) == 0 {
		return
	}
	for _, row := range list {
		for _, c := range cols {
			delete(row, c)
		}
	}
}

func wrapRowsError(name string, err error) error {
	if err == nil {
		return nil
	}
	var mk *rows.MissingKeyError
	if errors.As(err, &mk) {
		return &Error{Code: CodeShapeMismatch, Message: "key field missing from rows", QueryID: name, Err: err}
	}
	var mt *rows.MergeTypeError
	if errors.As(err, &mt) {
		return NewMergeTypeError(name, err)
	}
	return err
}
