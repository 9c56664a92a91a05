package rows

import (
	"strings"

	"github.com/wdiesveld/tinyqueries/internal/ir"
)

// NestDottedFields turns dotted column names into nested objects in place:
// {"user.name": "Bob"} becomes {"user": {"name": "Bob"}}. Only columns found
// in the first row are considered. Nested objects whose leaves are all nil
// (typically from an empty left join) collapse to nil.
func NestDottedFields(rows []ir.Row) {
	if len(rows) == 0 {
		return
	}

	mapping := make(map[string][]string)
	var dotted []string
	for _, col := range sortedKeys(rows[0]) {
		parts := strings.Split(col, ".")
		if len(parts) > 1 {
			mapping[col] = parts
			dotted = append(dotted, col)
		}
	}

	for _, col := range dotted {
		path := mapping[col]
		for _, row := range rows {
			value, ok := row[col]
			delete(row, col)
			if !ok {
				continue
			}
			nestField(row, path, value)
		}
	}

	var nested []string
	for col, v := range rows[0] {
		if m, ok := ir.AsMapping(v); ok && len(m) > 0 {
			nested = append(nested, col)
		}
	}
	for _, col := range nested {
		for _, row := range rows {
			row[col] = ReduceNulls(row[col])
		}
	}
}

func nestField(row map[string]any, path []string, value any) {
	head := path[0]
	if len(path) == 1 {
		row[head] = value
		return
	}
	child, ok := ir.AsMapping(row[head])
	if !ok {
		child = make(map[string]any)
		row[head] = child
	}
	nestField(child, path[1:], value)
}

// ReduceNulls collapses mappings whose leaves are all nil to nil,
// recursively. Non-mapping values are returned unchanged.
func ReduceNulls(v any) any {
	m, ok := ir.AsMapping(v)
	if !ok {
		return v
	}
	allNil := true
	for k, sub := range m {
		reduced := ReduceNulls(sub)
		m[k] = reduced
		if reduced != nil {
			allNil = false
		}
	}
	if allNil {
		return nil
	}
	return m
}

// FixGroupConcatArray handles the left-join artifact of aggregated JSON
// arrays: a one-element array whose element reduces to nil becomes empty.
func FixGroupConcatArray(v any) any {
	list, ok := v.([]any)
	if !ok || len(list) != 1 {
		return v
	}
	list[0] = ReduceNulls(list[0])
	if list[0] == nil {
		return []any{}
	}
	return list
}
