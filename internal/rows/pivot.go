package rows

import "github.com/wdiesveld/tinyqueries/internal/ir"

// Rows2Columns pivots rows: per distinct value of keyField one output row is
// produced holding the key plus a column named by nameField with the value
// of valueField. Output order follows first occurrence of each key.
func Rows2Columns(rows []ir.Row, keyField, nameField, valueField string) []ir.Row {
	pivot := ir.NewAssoc[ir.Row]()
	for _, row := range rows {
		id := ir.KeyOf(row[keyField])
		out, ok := pivot.Get(id)
		if !ok {
			out = ir.Row{keyField: row[keyField]}
			pivot.Set(id, out)
		}
		out[columnName(row[nameField])] = row[valueField]
	}
	return pivot.Values()
}

func columnName(v any) string {
	return ir.KeyOf(v)
}
