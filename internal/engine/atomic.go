package engine

import (
	"maps"
	"slices"

	"github.com/wdiesveld/tinyqueries/internal/catalog"
	"github.com/wdiesveld/tinyqueries/internal/ir"
	"github.com/wdiesveld/tinyqueries/internal/querysql"
	"github.com/wdiesveld/tinyqueries/internal/rows"
)

// pageParam is the request parameter that selects a page of a paged query.
const pageParam = "page"

// limitStartParam receives the first row offset of the selected page.
const limitStartParam = "__limitStart"

// atomic runs a single compiled query.
type atomic struct {
	base
	id    string
	iface *catalog.Interface
	// bindings maps key parameters set by a parent node to the field they
	// filter on.
	bindings map[string]string
}

func newAtomic(iface *catalog.Interface) *atomic {
	a := &atomic{
		id:       iface.ID,
		iface:    iface,
		bindings: make(map[string]string),
	}
	a.keys = maps.Clone(iface.Keys)
	if a.keys == nil {
		a.keys = make(map[string]catalog.FieldPath)
	}
	a.params = maps.Clone(iface.Params)
	if a.params == nil {
		a.params = make(map[string]catalog.ParamSpec)
	}
	a.defaultParam = iface.DefaultParam
	a.operation = iface.Operation
	a.root = iface.Root
	a.output = iface.Output.Clone()
	return a
}

func (a *atomic) kind() Kind       { return KindAtomic }
func (a *atomic) name() string     { return a.id }
func (a *atomic) children() []node { return nil }

func (a *atomic) bind(param, field string) {
	if field == "" {
		field = a.keyField(param)
	}
	a.bindings[param] = field
}

// accept keeps declared parameters, bound key parameters and, for paged
// queries, the page number.
func (a *atomic) accept(values Values) Values {
	out := a.base.accept(values)
	for param := range a.bindings {
		if v, ok := values[param]; ok {
			out[param] = v
		}
	}
	if a.iface.Paging > 0 {
		if v, ok := values[pageParam]; ok {
			out[pageParam] = v
		}
	}
	return out
}

func (a *atomic) execute(r *run, values Values) (data, error) {
	r.prof.Begin("query::" + a.id)
	defer r.prof.End()

	vals := a.accept(values)
	a.fillDefaults(vals, r.globals)

	var (
		out data
		err error
	)
	if name, size, list, ok := a.splitParam(vals); ok {
		for k := 0; k < len(list); k += size {
			batch := maps.Clone(vals)
			batch[name] = list[k:min(k+size, len(list))]
			d, err := a.fetch(r, batch)
			if err != nil {
				return data{}, err
			}
			out.rows = append(out.rows, d.rows...)
			out.values = append(out.values, d.values...)
			out.affected += d.affected
		}
	} else if out, err = a.fetch(r, vals); err != nil {
		return data{}, err
	}

	out.rows = a.filterBound(out.rows, vals)
	return out, nil
}

// fillDefaults adds declared defaults for absent parameters, then globals
// for absent or nil ones, then the paging offset.
func (a *atomic) fillDefaults(vals, globals Values) {
	for name, spec := range a.iface.Params {
		if _, ok := vals[name]; !ok && spec.HasDefault {
			vals[name] = spec.Default
		}
	}
	for name, v := range globals {
		if cur, ok := vals[name]; !ok || cur == nil {
			vals[name] = v
		}
	}
	if paging := a.iface.Paging; paging > 0 {
		page, _ := ir.ToInt(vals[pageParam])
		delete(vals, pageParam)
		vals[limitStartParam] = page * int64(paging)
	}
}

// splitParam returns the first parameter, by name, that declares a split
// size and has a list value.
func (a *atomic) splitParam(vals Values) (string, int, []any, bool) {
	for _, name := range slices.Sorted(maps.Keys(a.iface.Params)) {
		size := a.iface.Params[name].Split
		if size <= 0 {
			continue
		}
		if list, ok := querysql.AsList(vals[name]); ok {
			return name, size, list, true
		}
	}
	return "", 0, nil, false
}

// fetch renders the SQL, runs it in the shape the output declares and
// post-processes mapping rows.
func (a *atomic) fetch(r *run, vals Values) (data, error) {
	tmpl, err := r.eng.store.SQL(a.id)
	if err != nil {
		if catalog.IsNotFound(err) {
			return data{}, NewMissingInterfaceError(a.id, err)
		}
		return data{}, NewRowSourceError(a.id, err)
	}
	types := make(map[string]string, len(a.iface.Params))
	for name, spec := range a.iface.Params {
		types[name] = spec.Type
	}
	query, args, err := querysql.Render(tmpl, vals, types, r.eng.source.Dialect())
	if err != nil {
		return data{}, &Error{Code: CodeParamBinding, Message: "cannot bind parameters", QueryID: a.id, Err: err}
	}

	src := r.eng.source
	out := a.output
	var d data

	r.prof.Begin("db::select")
	switch {
	case out == nil:
		d.affected, err = src.Exec(r.ctx, query, args)
	case out.Rows == catalog.One && out.Columns == catalog.One:
		var v any
		if v, err = src.SelectValue(r.ctx, query, args); err == nil && v != nil {
			d.values = []any{v}
		}
	case out.Rows == catalog.One:
		var row ir.Row
		if row, err = src.SelectRow(r.ctx, query, args); err == nil && row != nil {
			d.rows = []ir.Row{row}
		}
	case out.Columns == catalog.One:
		d.values, err = src.SelectColumn(r.ctx, query, args)
	default:
		d.rows, err = src.SelectRows(r.ctx, query, args)
	}
	r.prof.End()
	if err != nil {
		return data{}, NewRowSourceError(a.id, err)
	}

	if len(d.rows) > 0 {
		if d.rows, err = a.postProcess(r, d.rows); err != nil {
			return data{}, err
		}
	}
	return d, nil
}

// postProcess nests dotted fields, applies the declared field types and
// runs the registered callback.
func (a *atomic) postProcess(r *run, list []ir.Row) ([]ir.Row, error) {
	r.prof.Begin("query::postprocess")
	defer r.prof.End()

	nested := r.eng.nested
	if a.output.Nested != nil {
		nested = *a.output.Nested
	}
	if nested {
		rows.NestDottedFields(list)
	}
	applyTyping(list, a.output.Fields)

	if cb := r.eng.callback(a.id); cb != nil {
		out, err := cb(list)
		if err != nil {
			return nil, &Error{Code: CodeRowSource, Message: "callback failed", QueryID: a.id, Err: err}
		}
		list = out
	}
	return list, nil
}

// filterBound narrows rows on bound key parameters the SQL does not
// declare.
func (a *atomic) filterBound(list []ir.Row, vals Values) []ir.Row {
	if len(list) == 0 {
		return list
	}
	for _, param := range slices.Sorted(maps.Keys(a.bindings)) {
		if _, declared := a.iface.Params[param]; declared {
			continue
		}
		v, ok := vals[param]
		if !ok || v == nil {
			continue
		}
		allowed := make(map[string]bool)
		if items, isList := querysql.AsList(v); isList {
			for _, item := range items {
				allowed[ir.KeyOf(item)] = true
			}
		} else {
			allowed[ir.KeyOf(v)] = true
		}

		field := a.bindings[param]
		list = slices.DeleteFunc(list, func(row ir.Row) bool {
			var k string
			if field == a.keyField(param) {
				k, _ = a.rowKey(param, row)
			} else {
				k = ir.KeyOf(row[field])
			}
			return !allowed[k]
		})
	}
	return list
}
