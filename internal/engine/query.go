package engine

import (
	"context"
	"fmt"
	"maps"
	"strings"

	"github.com/wdiesveld/tinyqueries/internal/catalog"
	"github.com/wdiesveld/tinyqueries/internal/ir"
)

// Query is a parsed term with its bound parameter values. The setters
// return the query so calls can be chained:
//
//	q, _ := eng.Query("users(messages)")
//	q.Key("userID").Order("name", ir.Asc)
//
// A Query is not safe for concurrent use.
type Query struct {
	eng    *Engine
	term   string
	root   node
	values Values
}

// Term returns the term the query was parsed from.
func (q *Query) Term() string { return q.term }

// Name returns the name of the root node.
func (q *Query) Name() string { return q.root.name() }

// Kind returns the variant of the root node.
func (q *Query) Kind() Kind { return q.root.kind() }

// Operation returns what the query does to the database.
func (q *Query) Operation() catalog.Operation { return q.root.meta().operation }

// Output returns the output shape, nil for statements.
func (q *Query) Output() *catalog.OutputSpec { return q.root.meta().output }

// DefaultParam returns the parameter an unnamed value binds to, if the
// query declares one.
func (q *Query) DefaultParam() string { return q.root.meta().defaultParam }

// Values returns a copy of the bound parameter values.
func (q *Query) Values() Values { return maps.Clone(q.values) }

// Params binds parameter values. A map binds by name, keeping only the
// parameters the query knows; any other value is bound as the single
// unnamed parameter. nil is a no-op.
func (q *Query) Params(v any) error {
	switch val := v.(type) {
	case nil:
		return nil
	case map[string]any:
		maps.Copy(q.values, q.root.accept(val))
		return nil
	}
	vals, err := q.root.single(v)
	if err != nil {
		return err
	}
	maps.Copy(q.values, vals)
	return nil
}

// Key sets the field used as combination key and as key of the output.
func (q *Query) Key(field string) *Query {
	b := q.root.meta()
	b.keyOverride = field
	if b.output != nil {
		b.output.Key = field
	}
	return q
}

// Order sets the field composites use to order merged rows.
func (q *Query) Order(field string, dir ir.Direction) *Query {
	b := q.root.meta()
	b.orderBy = field
	b.orderDir = dir
	return q
}

// Max limits the number of results of a merge. Zero means no limit.
func (q *Query) Max(n int) *Query {
	q.root.meta().maxResults = n
	return q
}

// Group makes a keyed output group rows per key value.
func (q *Query) Group(group bool) *Query {
	if out := q.root.meta().output; out != nil {
		out.Group = group
	}
	return q
}

// Nested sets dotted-field nesting for the query and all its descendants.
func (q *Query) Nested(nested bool) *Query {
	walk(q.root, func(n node) {
		if out := n.meta().output; out != nil {
			v := nested
			out.Nested = &v
		}
	})
	return q
}

// Select executes the query and returns its output shaped by the output
// spec: a value, a list of values, a row, a list of rows or a keyed
// mapping.
func (q *Query) Select(ctx context.Context, env *Env) (any, error) {
	r := q.eng.newRun(ctx, env)
	r.logger.Debug("select", "term", q.term)
	return selectOutput(r, q.root, q.values, "", true)
}

// Select1 is like Select but returns only the first row, or the first
// entry of a keyed output.
func (q *Query) Select1(ctx context.Context, env *Env) (any, error) {
	out, err := q.Select(ctx, env)
	if err != nil || q.root.meta().rowsOne() {
		return out, err
	}
	switch v := out.(type) {
	case []ir.Row:
		if len(v) > 0 {
			return v[0], nil
		}
	case []any:
		if len(v) > 0 {
			return v[0], nil
		}
	case *ir.Assoc[ir.Row]:
		if v.Len() > 0 {
			_, row := v.At(0)
			return row, nil
		}
	case *ir.Assoc[[]ir.Row]:
		if v.Len() > 0 {
			_, group := v.At(0)
			return group, nil
		}
	}
	return nil, nil
}

// Run selects for read queries. Other operations are executed and yield a
// status message.
func (q *Query) Run(ctx context.Context, env *Env) (any, error) {
	op := q.root.meta().operation
	if op == "" || op == catalog.OpRead {
		return q.Select(ctx, env)
	}

	r := q.eng.newRun(ctx, env)
	r.logger.Debug("run", "term", q.term, "operation", op)
	if _, err := r.exec(q.root, q.values); err != nil {
		return nil, err
	}
	switch op {
	case catalog.OpCreate:
		return "Created item", nil
	case catalog.OpUpdate:
		return "Updated item", nil
	case catalog.OpDelete:
		return "Deleted item", nil
	}
	return nil, fmt.Errorf("unknown operation %q", op)
}

// Explain renders the node tree, one node per line, children indented by
// two spaces:
//
//	fmt.Print(q.Explain()) // q from "users(messages)"
//	// - users [Tree]
//	//   - messages [Filter]
//	//     - messages [Atomic]
//	//     - messages.users [Atomic]
func (q *Query) Explain() string {
	var sb strings.Builder
	explain(&sb, q.root, 0)
	return sb.String()
}

func explain(sb *strings.Builder, n node, depth int) {
	fmt.Fprintf(sb, "%s- %s [%s]\n", strings.Repeat("  ", depth), n.name(), n.kind())
	for _, c := range n.children() {
		explain(sb, c, depth+1)
	}
}
