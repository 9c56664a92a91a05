package engine

import (
	"maps"
	"slices"
	"strings"

	"github.com/wdiesveld/tinyqueries/internal/catalog"
	"github.com/wdiesveld/tinyqueries/internal/ir"
)

// Kind names a node variant.
type Kind string

const (
	KindAtomic Kind = "Atomic"
	KindMerge  Kind = "Merge"
	KindAttach Kind = "Attach"
	KindFilter Kind = "Filter"
	KindTree   Kind = "Tree"
)

// node is implemented by the five variants. Each composite owns its
// children exclusively.
type node interface {
	meta() *base
	kind() Kind
	name() string
	children() []node
	execute(r *run, values Values) (data, error)
	bind(param, field string)
	accept(values Values) Values
	single(value any) (Values, error)
}

// data is the intermediate result of a node. A One-row result holds at
// most one entry.
type data struct {
	rows     []ir.Row
	values   []any
	affected int64
}

// base holds the meta information every variant carries.
type base struct {
	keys         map[string]catalog.FieldPath
	params       map[string]catalog.ParamSpec
	defaultParam string
	operation    catalog.Operation
	root         string
	// output is nil for queries that return nothing.
	output *catalog.OutputSpec

	// keyOverride is the combination key set with Query.Key.
	keyOverride string
	orderBy     string
	orderDir    ir.Direction
	maxResults  int
}

func (b *base) meta() *base { return b }

// accept keeps the values of declared parameters.
func (b *base) accept(values Values) Values {
	out := make(Values, len(values))
	for name := range b.params {
		if v, ok := values[name]; ok {
			out[name] = v
		}
	}
	return out
}

// single binds one unnamed value: to the default parameter, else to the
// only parameter without a default, else to the only parameter.
func (b *base) single(value any) (Values, error) {
	if b.defaultParam != "" {
		return Values{b.defaultParam: value}, nil
	}

	var required []string
	for _, name := range slices.Sorted(maps.Keys(b.params)) {
		if !b.params[name].HasDefault {
			required = append(required, name)
		}
	}
	switch len(required) {
	case 1:
		return Values{required[0]: value}, nil
	case 0:
	default:
		return nil, NewParamBindingError("", "cannot bind a single value; the query has parameters "+
			strings.Join(required, ", ")+" without default value")
	}

	switch len(b.params) {
	case 0:
		return Values{}, nil
	case 1:
		for name := range b.params {
			return Values{name: value}, nil
		}
	}
	return nil, NewParamBindingError("", "cannot bind a single value; the query has parameters "+
		strings.Join(slices.Sorted(maps.Keys(b.params)), ", ")+" which all have a default value")
}

func (b *base) columnsOne() bool {
	return b.output != nil && b.output.Columns == catalog.One
}

func (b *base) rowsOne() bool {
	return b.output != nil && b.output.Rows == catalog.One
}

// keyField returns the column holding key k: "__k" for composite keys, the
// mapped field otherwise, and k itself when k is not a declared key.
func (b *base) keyField(k string) string {
	path, ok := b.keys[k]
	if !ok {
		return k
	}
	if path.Tuple {
		return "__" + k
	}
	return path.Single()
}

// rowKey returns the normalized value of key k in row.
func (b *base) rowKey(k string, row ir.Row) (string, bool) {
	path, ok := b.keys[k]
	if ok && path.Tuple {
		tuple := make([]any, len(path.Fields))
		complete := true
		for i, f := range path.Fields {
			v, present := row[f]
			if !present {
				complete = false
				break
			}
			tuple[i] = v
		}
		if complete {
			return ir.KeyOf(tuple), true
		}
	}
	v, present := row[b.keyField(k)]
	return ir.KeyOf(v), present
}

// keyValues collects the distinct values of key k in rows. Composite keys
// give one []any tuple per row.
func (b *base) keyValues(name, k string, rows []ir.Row) ([]any, error) {
	path, ok := b.keys[k]
	if !ok {
		return nil, NewShapeMismatchError(name, "key "+k+" is not present in "+name)
	}
	values := []any{}
	if len(rows) == 0 {
		return values, nil
	}
	for _, f := range path.Fields {
		if _, present := rows[0][f]; !present {
			return nil, NewShapeMismatchError(name, "field "+f+" is not present in rows")
		}
	}

	seen := make(map[string]bool, len(rows))
	for _, row := range rows {
		var v any
		if path.Tuple {
			tuple := make([]any, len(path.Fields))
			for i, f := range path.Fields {
				tuple[i] = row[f]
			}
			v = tuple
		} else {
			v = row[path.Single()]
		}
		k := ir.KeyOf(v)
		if seen[k] {
			continue
		}
		seen[k] = true
		values = append(values, v)
	}
	return values, nil
}

// prefixOf returns the namespace of n: its root override, else the first
// dot segment of its name.
func prefixOf(n node) string {
	if root := n.meta().root; root != "" {
		return root
	}
	name, _, _ := strings.Cut(n.name(), ".")
	return name
}

// match resolves the single key name shared by all nodes.
func match(nodes ...node) (string, error) {
	var common []string
	names := make([]string, len(nodes))
	for i, n := range nodes {
		names[i] = n.name()
		keys := slices.Sorted(maps.Keys(n.meta().keys))
		if i == 0 {
			common = keys
			continue
		}
		common = slices.DeleteFunc(common, func(k string) bool { return !slices.Contains(keys, k) })
	}
	if len(common) != 1 {
		return "", NewKeyResolutionError(names, common)
	}
	return common[0], nil
}

// combineKey returns the explicit key of n, else the key shared by nodes.
func combineKey(n node, nodes ...node) (string, error) {
	if k := n.meta().keyOverride; k != "" {
		return k, nil
	}
	return match(nodes...)
}

// inherit computes the meta information shared by all composites: the
// union of keys and parameters, operation and root of the first child.
func inherit(b *base, kids []node) {
	b.keys = make(map[string]catalog.FieldPath)
	b.params = make(map[string]catalog.ParamSpec)
	for _, k := range kids {
		maps.Copy(b.keys, k.meta().keys)
		maps.Copy(b.params, k.meta().params)
	}
	first := kids[0].meta()
	b.operation = first.operation
	b.root = first.root
}

func childNames(kids []node) []string {
	names := make([]string, len(kids))
	for i, k := range kids {
		names[i] = k.name()
	}
	return names
}

// walk calls fn for n and every descendant, tree heads included.
func walk(n node, fn func(node)) {
	fn(n)
	if t, ok := n.(*tree); ok {
		walk(t.head, fn)
	}
	for _, c := range n.children() {
		walk(c, fn)
	}
}
