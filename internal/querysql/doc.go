// Package querysql renders compiled SQL templates into executable
// statements.
//
// Templates use named placeholders (:name). Scalar values become driver
// placeholders with typed arguments and are never interpolated. Array
// values expand inline to escaped literal lists, which is what IN (...)
// filters need; arrays of arrays expand to tuples, and :name[i] selects the
// i-th member of each tuple.
package querysql
