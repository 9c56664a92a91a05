package engine

import (
	"bytes"
	"encoding/json"
	"maps"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/wdiesveld/tinyqueries/internal/catalog"
	"github.com/wdiesveld/tinyqueries/internal/ir"
	"github.com/wdiesveld/tinyqueries/internal/rows"
)

const (
	dateLayout     = "2006-01-02"
	dateTimeLayout = "2006-01-02 15:04:05"
)

// applyTyping casts every declared field of every row. Nil values stay nil.
func applyTyping(list []ir.Row, fields catalog.Fields) {
	for _, name := range slices.Sorted(maps.Keys(fields)) {
		spec := fields[name]
		if _, child := spec.(catalog.ChildField); child {
			continue
		}
		for _, row := range list {
			if v, ok := row[name]; ok && v != nil {
				row[name] = castValue(v, spec)
			}
		}
	}
}

func castValue(v any, spec catalog.FieldSpec) any {
	switch f := spec.(type) {
	case catalog.ScalarField:
		return castScalar(v, f.Type)
	case catalog.JSONField:
		return decodeJSONField(v)
	case catalog.ObjectField:
		m, ok := ir.AsMapping(v)
		if !ok {
			return v
		}
		for name, sub := range f.Fields {
			if x, ok := m[name]; ok && x != nil {
				m[name] = castValue(x, sub)
			}
		}
		return m
	}
	return v
}

func castScalar(v any, kind catalog.Kind) any {
	switch kind {
	case catalog.KindInt:
		n, _ := ir.ToInt(v)
		return n
	case catalog.KindFloat:
		f, _ := ir.ToFloat(v)
		return f
	case catalog.KindString:
		switch val := v.(type) {
		case string:
			return val
		case time.Time:
			return val.Format(dateTimeLayout)
		}
		return ir.KeyOf(v)
	case catalog.KindBoolean:
		if s, ok := v.(string); ok {
			if b, err := strconv.ParseBool(strings.TrimSpace(s)); err == nil {
				return b
			}
		}
		f, _ := ir.ToFloat(v)
		return f != 0
	case catalog.KindDate:
		if t, ok := v.(time.Time); ok {
			return t.Format(dateLayout)
		}
	case catalog.KindDateTime:
		if t, ok := v.(time.Time); ok {
			return t.Format(dateTimeLayout)
		}
	}
	return v
}

// decodeJSONField decodes JSON text and normalizes the empty left-join
// array artifact. Text that is not valid JSON decodes to nil.
func decodeJSONField(v any) any {
	var raw []byte
	switch val := v.(type) {
	case string:
		raw = []byte(val)
	case []byte:
		raw = val
	default:
		return v
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var out any
	if err := dec.Decode(&out); err != nil {
		return nil
	}
	return rows.FixGroupConcatArray(catalog.NormalizeJSON(out))
}
