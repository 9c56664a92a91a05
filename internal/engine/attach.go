package engine

import (
	"maps"
	"slices"

	"github.com/wdiesveld/tinyqueries/internal/rows"
)

// attach left-joins every child onto the rows of the first.
type attach struct {
	base
	kids []node
}

func newAttach(kids []node) *attach {
	a := &attach{kids: kids}
	inherit(&a.base, kids)
	first := kids[0].meta()
	a.defaultParam = first.defaultParam
	a.output = first.output.Clone()

	if key, err := match(kids...); err == nil {
		for _, k := range kids[1:] {
			k.bind(key, "")
		}
	}
	return a
}

func (a *attach) kind() Kind       { return KindAttach }
func (a *attach) name() string     { return a.kids[0].name() }
func (a *attach) children() []node { return a.kids }

func (a *attach) bind(param, field string) {
	a.kids[0].bind(param, field)
}

// execute runs the base once, then every other child once with the
// distinct base key values as a list parameter.
func (a *attach) execute(r *run, values Values) (data, error) {
	vals := a.accept(values)

	key, err := combineKey(a, a.kids...)
	if err != nil {
		return data{}, err
	}

	baseNode := a.kids[0]
	list, err := rowsOf(r, baseNode, vals, false, "")
	if err != nil || len(list) == 0 {
		return data{rows: list}, err
	}

	keyValues, err := baseNode.meta().keyValues(baseNode.name(), key, list)
	if err != nil {
		return data{}, err
	}
	params := maps.Clone(vals)
	params[key] = keyValues

	for _, child := range a.kids[1:] {
		childRows, err := rowsOf(r, child, params, false, "")
		if err != nil {
			return data{}, err
		}
		keyed, err := indexRows(child, key, childRows)
		if err != nil {
			return data{}, err
		}
		for _, row := range list {
			k, _ := baseNode.meta().rowKey(key, row)
			hit, ok := keyed.Get(k)
			if !ok {
				continue
			}
			for _, field := range slices.Sorted(maps.Keys(hit)) {
				if err := rows.MergeField(row, field, hit[field]); err != nil {
					return data{}, NewMergeTypeError(a.name(), err)
				}
			}
		}
	}
	return data{rows: list}, nil
}
