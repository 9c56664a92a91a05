package rows

import (
	"fmt"
	"slices"

	"github.com/wdiesveld/tinyqueries/internal/ir"
)

// MergeTypeError is returned by MergeField when one side is a mapping and
// the other is not.
type MergeTypeError struct {
	Field string
}

func (e *MergeTypeError) Error() string {
	return fmt.Sprintf("cannot merge field %q: types are different", e.Field)
}

// MergeField merges value into target[key]:
//   - absent key: set
//   - nil value: no-op
//   - nil existing value: set
//   - both mappings: merge recursively per sub-key
//   - neither a mapping: overwrite
//   - otherwise: *MergeTypeError
func MergeField(target ir.Row, key string, value any) error {
	existing, ok := target[key]
	if !ok {
		target[key] = value
		return nil
	}
	if value == nil {
		return nil
	}
	if existing == nil {
		target[key] = value
		return nil
	}

	dst, dstMap := ir.AsMapping(existing)
	src, srcMap := ir.AsMapping(value)
	switch {
	case !dstMap && !srcMap:
		target[key] = value
		return nil
	case dstMap && srcMap:
		for _, sub := range sortedKeys(src) {
			if err := MergeField(dst, sub, src[sub]); err != nil {
				return err
			}
		}
		return nil
	}
	return &MergeTypeError{Field: key}
}

// MergeAssocs merges source into target. Entries present in both are merged
// field by field. New entries are appended, or, when orderBy is set,
// inserted before the first target entry that does not sort strictly before
// them.
func MergeAssocs(target, source *ir.Assoc[ir.Row], orderBy string, dir ir.Direction) error {
	for _, key := range source.Keys() {
		item, _ := source.Get(key)
		if existing, ok := target.Get(key); ok {
			for _, field := range sortedKeys(item) {
				if err := MergeField(existing, field, item[field]); err != nil {
					return err
				}
			}
			continue
		}
		if orderBy == "" {
			target.Set(key, item)
			continue
		}
		k := 0
		for _, cur := range target.Values() {
			if !dir.Before(cur[orderBy], item[orderBy]) {
				break
			}
			k++
		}
		target.Insert(k, key, item)
	}
	return nil
}

// MergeArrays appends source to target, or with orderBy inserts each source
// row before the first target row that does not sort strictly before it.
func MergeArrays(target, source []ir.Row, orderBy string, dir ir.Direction) []ir.Row {
	if orderBy == "" {
		return append(target, source...)
	}
	for _, item := range source {
		k := 0
		for k < len(target) && dir.Before(target[k][orderBy], item[orderBy]) {
			k++
		}
		target = slices.Insert(target, k, item)
	}
	return target
}

// MergeValues concatenates scalar lists.
func MergeValues(target, source []any) []any {
	return append(target, source...)
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}
