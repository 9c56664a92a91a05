package engine

import (
	"github.com/wdiesveld/tinyqueries/internal/catalog"
	"github.com/wdiesveld/tinyqueries/internal/ir"
	"github.com/wdiesveld/tinyqueries/internal/rows"
)

// merge unions the results of its children.
type merge struct {
	base
	kids []node
}

func newMerge(kids []node) *merge {
	m := &merge{kids: kids}
	inherit(&m.base, kids)

	// The default parameter only carries over when every child agrees.
	dp := kids[0].meta().defaultParam
	for _, k := range kids[1:] {
		if k.meta().defaultParam != dp {
			dp = ""
			break
		}
	}
	m.defaultParam = dp

	if out := kids[0].meta().output.Clone(); out != nil {
		out.Key = ""
		out.Group = false
		out.Pivot = nil
		out.Rows = catalog.Many
		m.output = out
	}
	return m
}

func (m *merge) kind() Kind       { return KindMerge }
func (m *merge) name() string     { return m.kids[0].name() }
func (m *merge) children() []node { return m.kids }

func (m *merge) bind(param, field string) {
	for _, k := range m.kids {
		k.bind(param, field)
	}
}

// execute merges keyed results when the children share a key and falls
// back to concatenation when they do not.
func (m *merge) execute(r *run, values Values) (data, error) {
	vals := m.accept(values)

	key, err := combineKey(m, m.kids...)
	if err != nil {
		key = ""
	}

	var out data
	if key != "" {
		out.rows, err = m.mergeByKey(r, vals, key)
	} else {
		out, err = m.mergePlain(r, vals)
	}
	if err != nil {
		return data{}, err
	}

	if n := m.maxResults; n > 0 {
		if len(out.rows) > n {
			out.rows = out.rows[:n]
		}
		if len(out.values) > n {
			out.values = out.values[:n]
		}
	}
	return out, nil
}

func (m *merge) mergeByKey(r *run, vals Values, key string) ([]ir.Row, error) {
	acc := ir.NewAssoc[ir.Row]()
	for _, k := range m.kids {
		list, err := rowsOf(r, k, vals, false, "")
		if err != nil {
			return nil, err
		}
		keyed, err := indexRows(k, key, list)
		if err != nil {
			return nil, err
		}
		if err := rows.MergeAssocs(acc, keyed, m.orderBy, m.orderDir); err != nil {
			return nil, NewMergeTypeError(m.name(), err)
		}
	}
	return rows.ToIndexed(acc), nil
}

func (m *merge) mergePlain(r *run, vals Values) (data, error) {
	var out data
	for _, k := range m.kids {
		if k.meta().columnsOne() {
			d, err := r.exec(k, vals)
			if err != nil {
				return data{}, err
			}
			out.values = rows.MergeValues(out.values, d.values)
			continue
		}
		list, err := rowsOf(r, k, vals, true, "")
		if err != nil {
			return data{}, err
		}
		out.rows = rows.MergeArrays(out.rows, list, m.orderBy, m.orderDir)
	}
	if len(out.rows) > 0 && len(out.values) > 0 {
		return data{}, NewShapeMismatchError(m.name(), "cannot merge rows with single-column results")
	}
	return out, nil
}
