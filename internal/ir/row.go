package ir

// Row is one result record, column name to value. Nested objects inside a
// row use the same representation.
type Row = map[string]any

// AsMapping returns v as a field mapping if it is one.
func AsMapping(v any) (map[string]any, bool) {
	m, ok := v.(map[string]any)
	return m, ok
}

// IsMapping reports whether v is a field mapping (a row or nested object).
func IsMapping(v any) bool {
	_, ok := v.(map[string]any)
	return ok
}

// CloneRow returns a shallow copy of r.
func CloneRow(r Row) Row {
	if r == nil {
		return nil
	}
	out := make(Row, len(r))
	for k, v := range r {
		out[k] = v
	}
	return out
}

// RowsToAny converts a row list to a generic list.
func RowsToAny(rows []Row) []any {
	out := make([]any, len(rows))
	for i, r := range rows {
		out[i] = r
	}
	return out
}
