// Package rows implements the pure row transforms used to combine query
// results: keyed indexing, grouping, ordered merging, deep field merging,
// pivoting and dotted-column nesting.
//
// All functions operate on ir.Row values and never touch a database.
package rows
