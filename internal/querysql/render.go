package querysql

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/wdiesveld/tinyqueries/internal/ir"
)

// Render expands the placeholders of tmpl.
//
// values holds every value available to the statement (explicit,
// defaulted and global). types maps declared parameter names to their
// declared type ("int", "string", ...); declared parameters without a value
// bind NULL. Unknown placeholders are left untouched.
func Render(tmpl string, values map[string]any, types map[string]string, d Dialect) (string, []any, error) {
	var (
		out   strings.Builder
		args  []any
		quote byte
	)
	out.Grow(len(tmpl))

	for i := 0; i < len(tmpl); i++ {
		c := tmpl[i]

		if quote != 0 {
			out.WriteByte(c)
			if c == quote {
				quote = 0
			}
			continue
		}
		if c == '\'' || c == '"' {
			quote = c
			out.WriteByte(c)
			continue
		}
		if end := commentEnd(tmpl, i); end > i {
			out.WriteString(tmpl[i:end])
			i = end - 1
			continue
		}
		if c != ':' || i+1 >= len(tmpl) || !isIdentStart(tmpl[i+1]) || (i > 0 && tmpl[i-1] == ':') {
			out.WriteByte(c)
			continue
		}

		end := i + 1
		for end < len(tmpl) && isIdentChar(tmpl[end]) {
			end++
		}
		name := tmpl[i+1 : end]
		index := -1
		if end < len(tmpl) && tmpl[end] == '[' {
			if close := strings.IndexByte(tmpl[end:], ']'); close > 0 {
				if n, err := strconv.Atoi(tmpl[end+1 : end+close]); err == nil {
					index = n
					end += close + 1
				}
			}
		}

		text, bound, err := expand(name, index, values, types, d, len(args))
		if err != nil {
			return "", nil, err
		}
		if text == "" {
			out.WriteString(tmpl[i:end])
		} else {
			out.WriteString(text)
			args = append(args, bound...)
		}
		i = end - 1
	}
	return out.String(), args, nil
}

// expand returns the replacement text for one placeholder and the
// arguments it binds. Empty text means leave the placeholder as written.
func expand(name string, index int, values map[string]any, types map[string]string, d Dialect, nargs int) (string, []any, error) {
	value, ok := values[name]
	typ, declared := types[name]
	if !ok && !declared {
		return "", nil, nil
	}

	if list, isList := AsList(value); isList {
		if IsTupleList(list) {
			return tupleLiteral(name, list, index, d)
		}
		if index >= 0 {
			return "", nil, fmt.Errorf("param %s: index [%d] used on a list that is not a list of tuples", name, index)
		}
		lit, err := d.LiteralList(list)
		if err != nil {
			return "", nil, fmt.Errorf("param %s: %w", name, err)
		}
		return lit, nil, nil
	}
	if index >= 0 {
		return "", nil, nil
	}

	arg, err := bindValue(name, typ, value)
	if err != nil {
		return "", nil, err
	}
	return d.Placeholder(nargs + 1), []any{arg}, nil
}

// IsTupleList reports whether list is a list of lists.
func IsTupleList(list []any) bool {
	if len(list) == 0 {
		return false
	}
	_, ok := AsList(list[0])
	return ok
}

func tupleLiteral(name string, list []any, index int, d Dialect) (string, []any, error) {
	if index < 0 {
		tuples := make([]string, len(list))
		for i, t := range list {
			members, ok := AsList(t)
			if !ok {
				return "", nil, fmt.Errorf("param %s: element %d is not a tuple", name, i)
			}
			lit, err := d.LiteralList(members)
			if err != nil {
				return "", nil, fmt.Errorf("param %s: %w", name, err)
			}
			tuples[i] = "(" + lit + ")"
		}
		return strings.Join(tuples, ","), nil, nil
	}

	column := make([]any, 0, len(list))
	for i, t := range list {
		members, ok := AsList(t)
		if !ok || index >= len(members) {
			return "", nil, fmt.Errorf("param %s: element %d has no member [%d]", name, i, index)
		}
		column = append(column, members[index])
	}
	lit, err := d.LiteralList(column)
	if err != nil {
		return "", nil, fmt.Errorf("param %s: %w", name, err)
	}
	return lit, nil, nil
}

// bindValue converts a scalar to the driver argument for its declared type.
func bindValue(name, typ string, value any) (any, error) {
	if value == nil {
		return nil, nil
	}
	switch typ {
	case "int":
		n, ok := ir.ToInt(value)
		if !ok {
			return nil, fmt.Errorf("param %s: cannot use %v as int", name, value)
		}
		return n, nil
	case "string":
		if s, ok := value.(string); ok {
			return s, nil
		}
		return ir.KeyOf(value), nil
	}
	return value, nil
}

// commentEnd returns the index just past the comment starting at i, or i
// when none starts there. Line comments end after their newline; an
// unterminated block comment runs to the end of tmpl.
func commentEnd(tmpl string, i int) int {
	rest := tmpl[i:]
	switch {
	case strings.HasPrefix(rest, "--"):
		if nl := strings.IndexByte(rest, '\n'); nl >= 0 {
			return i + nl + 1
		}
		return len(tmpl)
	case strings.HasPrefix(rest, "/*"):
		if close := strings.Index(rest[2:], "*/"); close >= 0 {
			return i + 2 + close + 2
		}
		return len(tmpl)
	}
	return i
}

func isIdentStart(c byte) bool {
	return c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func isIdentChar(c byte) bool {
	return isIdentStart(c) || (c >= '0' && c <= '9')
}
