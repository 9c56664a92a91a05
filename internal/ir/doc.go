// Package ir provides the value model shared by every tinyqueries package.
//
// Query results are plain Go values: rows are map[string]any, lists are
// slices, and keyed results are insertion-ordered Assoc maps. ir imports
// nothing internal so that rows, catalog and engine can all depend on it.
//
// Key design constraints:
//   - Key values are compared through KeyOf, so 1, int64(1) and "1" address
//     the same entry of an Assoc
//   - Ordering comparisons go through Compare, which is numeric when both
//     sides are numeric and lexical otherwise
//   - MarshalCanonical is the only serialization used for result comparison
package ir
