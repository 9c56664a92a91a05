package querysql

import (
	"fmt"
	"reflect"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/wdiesveld/tinyqueries/internal/ir"
)

var (
	digitsOnly   = regexp.MustCompile(`^\d+$`)
	digitsTuple  = regexp.MustCompile(`^\([\d,]+\)$`)
	literalNULL  = "NULL"
	literalTrue  = "1"
	literalFalse = "0"
)

// Literal encodes one value for inline use. Numbers, digit strings and
// digit tuples like "(1,2)" stay unquoted; every other string is quoted.
func (d Dialect) Literal(v any) (string, error) {
	switch val := v.(type) {
	case nil:
		return literalNULL, nil
	case string:
		if digitsOnly.MatchString(val) || digitsTuple.MatchString(val) {
			return val, nil
		}
		return d.Quote(val), nil
	case []byte:
		return d.Literal(string(val))
	case bool:
		if d.Positional {
			return strings.ToUpper(strconv.FormatBool(val)), nil
		}
		if val {
			return literalTrue, nil
		}
		return literalFalse, nil
	case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64:
		return fmt.Sprint(val), nil
	case float32:
		return strconv.FormatFloat(float64(val), 'g', -1, 32), nil
	case float64:
		return strconv.FormatFloat(val, 'g', -1, 64), nil
	case time.Time:
		return d.Quote(val.Format("2006-01-02 15:04:05")), nil
	}
	if _, ok := AsList(v); ok {
		return "", fmt.Errorf("cannot encode nested list %v as a literal", v)
	}
	return d.Quote(ir.KeyOf(v)), nil
}

// LiteralList encodes values as a comma separated literal list. An empty
// list encodes as NULL so "IN (NULL)" matches nothing.
func (d Dialect) LiteralList(values []any) (string, error) {
	if len(values) == 0 {
		return literalNULL, nil
	}
	parts := make([]string, len(values))
	for i, v := range values {
		lit, err := d.Literal(v)
		if err != nil {
			return "", err
		}
		parts[i] = lit
	}
	return strings.Join(parts, ","), nil
}

// AsList returns v as a generic list when it is any slice or array other
// than []byte.
func AsList(v any) ([]any, bool) {
	switch val := v.(type) {
	case nil, []byte, string:
		return nil, false
	case []any:
		return val, true
	case []string:
		out := make([]any, len(val))
		for i, s := range val {
			out[i] = s
		}
		return out, true
	case []int64:
		out := make([]any, len(val))
		for i, n := range val {
			out[i] = n
		}
		return out, true
	}
	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
		return nil, false
	}
	out := make([]any, rv.Len())
	for i := range out {
		out[i] = rv.Index(i).Interface()
	}
	return out, true
}
