// Package engine parses query terms into trees of query nodes and runs them.
//
// A term like "a:b+c(d|e)" composes compiled queries with five node
// variants:
//
//	Atomic  one compiled SQL query
//	Merge   a|b  union of results, keyed on the common key when there is one
//	Attach  a+b  left join of b onto a on their common key
//	Filter  a:b  b narrowed to the rows that also appear in a
//	Tree    a(b) every row of a gets the matching rows of b as a list
//
// Composite nodes find the field to combine on through key resolution: the
// key names declared by every node involved must have exactly one name in
// common, unless a key is set explicitly with Query.Key.
//
// Execution is synchronous. The only blocking calls are the RowSource
// queries; the compiled-query store is shared read-only between runs.
package engine
