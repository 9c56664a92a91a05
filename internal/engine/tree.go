package engine

import (
	"maps"

	"github.com/wdiesveld/tinyqueries/internal/catalog"
	"github.com/wdiesveld/tinyqueries/internal/ir"
	"github.com/wdiesveld/tinyqueries/internal/rows"
)

// tree nests the rows of each child under the matching rows of head.
// Every child is a filter "(child):link" built by the parser.
type tree struct {
	base
	head node
	kids []node
}

// newTree copies the meta information of head. Children are added with
// link.
func newTree(head node) *tree {
	t := &tree{head: head}
	hb := head.meta()
	t.keys = maps.Clone(hb.keys)
	t.params = maps.Clone(hb.params)
	t.defaultParam = hb.defaultParam
	t.operation = hb.operation
	t.root = hb.root
	if out := hb.output; out != nil {
		t.output = &catalog.OutputSpec{
			Rows:    out.Rows,
			Columns: out.Columns,
			Fields:  out.Fields.Clone(),
		}
		if out.Nested != nil {
			nested := *out.Nested
			t.output.Nested = &nested
		}
	}
	return t
}

// link adds a child. Parameters of the child join the registry so they
// can be bound through the tree; the head's own specs take precedence.
func (t *tree) link(kid node) {
	t.kids = append(t.kids, kid)
	params := maps.Clone(kid.meta().params)
	maps.Copy(params, t.head.meta().params)
	maps.Copy(t.params, params)
}

func (t *tree) kind() Kind       { return KindTree }
func (t *tree) name() string     { return t.head.name() }
func (t *tree) children() []node { return t.kids }

func (t *tree) bind(param, field string) {
	t.head.bind(param, field)
}

func (t *tree) execute(r *run, values Values) (data, error) {
	vals := t.accept(values)

	if t.head.meta().output == nil || t.head.meta().columnsOne() {
		return r.exec(t.head, vals)
	}
	list, err := rowsOf(r, t.head, vals, false, "")
	if err != nil {
		return data{}, err
	}
	for _, kid := range t.kids {
		if err := t.bindChild(r, vals, list, kid); err != nil {
			return data{}, err
		}
	}
	return data{rows: list}, nil
}

// bindChild runs kid once for the distinct key values of parents and
// stores each parent's matching child rows under the child's prefix.
func (t *tree) bindChild(r *run, vals Values, parents []ir.Row, kid node) error {
	if len(parents) == 0 {
		return nil
	}

	keyName, err := match(t.head, kid)
	if err != nil {
		if len(t.keys) != 1 {
			return err
		}
		for k := range t.keys {
			keyName = k
		}
	}

	kb := kid.meta()
	paramID := kb.defaultParam
	if paramID == "" {
		if f, ok := kid.(*filter); ok && len(f.kids) == 2 {
			if link := f.kids[1].meta().params; len(link) == 1 {
				for name := range link {
					paramID = name
				}
			}
		}
	}
	if paramID == "" {
		paramID = keyName
	}

	parentValues, err := t.keyValues(t.name(), keyName, parents)
	if err != nil {
		return err
	}
	params := maps.Clone(vals)
	params[keyName] = parentValues
	params[paramID] = parentValues

	groupField := paramID
	if _, ok := kb.keys[keyName]; ok {
		groupField = kb.keyField(keyName)
	}
	childRows, err := rowsOf(r, kid, params, true, groupField)
	if err != nil {
		return err
	}
	groups, err := rows.GroupBy(childRows, groupField, true)
	if err != nil {
		return wrapRowsError(kid.name(), err)
	}

	field := prefixOf(kid)
	for _, row := range parents {
		k, _ := t.rowKey(keyName, row)
		group, ok := groups.Get(k)
		if !ok {
			group = []ir.Row{}
		}
		row[field] = group
	}
	return nil
}
