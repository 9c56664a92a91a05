package rows

import (
	"fmt"

	"github.com/wdiesveld/tinyqueries/internal/ir"
)

// MissingKeyError is returned when the key column is not present in the
// first row of a list.
type MissingKeyError struct {
	Op  string
	Key string
}

func (e *MissingKeyError) Error() string {
	return fmt.Sprintf("%s: key %q not present in rows", e.Op, e.Key)
}

// ToAssoc indexes rows by the value of key. A later row with a duplicate
// key value replaces the earlier one but keeps its position.
func ToAssoc(rows []ir.Row, key string) (*ir.Assoc[ir.Row], error) {
	out := ir.NewAssoc[ir.Row]()
	if len(rows) == 0 {
		return out, nil
	}
	if _, ok := rows[0][key]; !ok {
		return nil, &MissingKeyError{Op: "toAssoc", Key: key}
	}
	for _, row := range rows {
		out.Set(ir.KeyOf(row[key]), row)
	}
	return out, nil
}

// GroupBy collects rows per value of key, preserving first-seen order of
// key values and input order within a group. With deleteKey the key column
// is removed from the grouped rows.
func GroupBy(rows []ir.Row, key string, deleteKey bool) (*ir.Assoc[[]ir.Row], error) {
	out := ir.NewAssoc[[]ir.Row]()
	if len(rows) == 0 {
		return out, nil
	}
	if _, ok := rows[0][key]; !ok {
		return nil, &MissingKeyError{Op: "groupBy", Key: key}
	}
	for _, row := range rows {
		k := ir.KeyOf(row[key])
		if deleteKey {
			row = ir.CloneRow(row)
			delete(row, key)
		}
		group, _ := out.Get(k)
		out.Set(k, append(group, row))
	}
	return out, nil
}

// ToIndexed returns the values of a keyed mapping in order.
func ToIndexed[V any](assoc *ir.Assoc[V]) []V {
	if assoc == nil {
		return nil
	}
	return assoc.Values()
}
