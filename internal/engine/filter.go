package engine

import (
	"maps"

	"github.com/wdiesveld/tinyqueries/internal/catalog"
	"github.com/wdiesveld/tinyqueries/internal/ir"
)

// filter narrows the rows of its last child by each preceding child,
// right to left.
type filter struct {
	base
	kids []node
}

func newFilter(kids []node) *filter {
	f := &filter{kids: kids}
	inherit(&f.base, kids)
	f.defaultParam = kids[len(kids)-1].meta().defaultParam

	if first := kids[0].meta().output; first != nil {
		f.output = &catalog.OutputSpec{
			Rows:    catalog.Many,
			Columns: first.Columns,
			Fields:  first.Fields.Clone(),
		}
		if first.Nested != nil {
			nested := *first.Nested
			f.output.Nested = &nested
		}
	}

	if key, err := match(kids...); err == nil {
		for _, k := range kids[:len(kids)-1] {
			k.bind(key, "")
		}
	}
	return f
}

func (f *filter) kind() Kind       { return KindFilter }
func (f *filter) name() string     { return f.kids[0].name() }
func (f *filter) children() []node { return f.kids }

func (f *filter) bind(param, field string) {
	f.kids[0].bind(param, field)
}

// accept passes every value on; the children pick their own parameters.
func (f *filter) accept(values Values) Values {
	return maps.Clone(values)
}

// single resolves an unnamed value against the last child. A path like
// "a/1/b" becomes "b:a" with value 1, which only the link query "b.a" can
// take unambiguously.
func (f *filter) single(value any) (Values, error) {
	return f.kids[len(f.kids)-1].single(value)
}

func (f *filter) execute(r *run, values Values) (data, error) {
	vals := f.accept(values)
	if vals == nil {
		vals = make(Values)
	}

	key, err := combineKey(f, f.kids...)
	if err != nil {
		return data{}, err
	}

	last := f.kids[len(f.kids)-1]
	list, err := rowsOf(r, last, vals, false, "")
	if err != nil {
		return data{}, err
	}

	for i := len(f.kids) - 2; i >= 0; i-- {
		if len(list) == 0 {
			return data{rows: list}, nil
		}
		keyValues, err := last.meta().keyValues(last.name(), key, list)
		if err != nil {
			return data{}, err
		}
		child := f.kids[i]
		if limit := r.eng.maxFilterSize; limit > 0 && len(keyValues) > limit && !splits(child, key) {
			return data{}, NewBatchSizeExceededError(f.name(), len(keyValues), limit)
		}
		vals[key] = keyValues

		childRows, err := rowsOf(r, child, vals, false, "")
		if err != nil {
			return data{}, err
		}
		keyed, err := indexRows(child, key, childRows)
		if err != nil {
			return data{}, err
		}

		matched := make(map[string]bool, len(list))
		kept := list[:0]
		for _, row := range list {
			k, _ := last.meta().rowKey(key, row)
			hit, ok := keyed.Get(k)
			if !ok {
				continue
			}
			for field, v := range hit {
				row[field] = v
			}
			matched[k] = true
			kept = append(kept, row)
		}
		list = kept

		for _, entry := range keyed.Entries() {
			if !matched[entry.Key] {
				list = append(list, entry.Value.(ir.Row))
			}
		}
	}
	return data{rows: list}, nil
}

// splits reports whether n declares key as a split parameter, which
// batches oversized value lists itself.
func splits(n node, key string) bool {
	spec, ok := n.meta().params[key]
	return ok && spec.Split > 0
}
