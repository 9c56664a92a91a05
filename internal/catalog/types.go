package catalog

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
)

// Operation is what a query does to the database.
type Operation string

const (
	OpRead   Operation = "read"
	OpCreate Operation = "create"
	OpUpdate Operation = "update"
	OpDelete Operation = "delete"
)

// Valid reports whether op is a known operation.
func (op Operation) Valid() bool {
	switch op {
	case OpRead, OpCreate, OpUpdate, OpDelete:
		return true
	}
	return false
}

// Cardinality is the number of rows or columns a query yields.
// The zero value is Many.
type Cardinality int

const (
	Many Cardinality = iota
	One
)

func (c Cardinality) String() string {
	if c == One {
		return "first"
	}
	return "all"
}

// MarshalJSON encodes One as "first" and Many as "all".
func (c Cardinality) MarshalJSON() ([]byte, error) {
	return json.Marshal(c.String())
}

// UnmarshalJSON accepts "first"/"one" and "all"/"many".
func (c *Cardinality) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("cardinality must be a string: %w", err)
	}
	v, err := ParseCardinality(s)
	if err != nil {
		return err
	}
	*c = v
	return nil
}

// ParseCardinality parses the textual cardinality forms.
func ParseCardinality(s string) (Cardinality, error) {
	switch s {
	case "", "all", "many":
		return Many, nil
	case "first", "one":
		return One, nil
	}
	return Many, fmt.Errorf("invalid cardinality %q (want first or all)", s)
}

// ParamSpec declares one query parameter.
type ParamSpec struct {
	Type       string `json:"type,omitempty"`
	Default    any    `json:"default,omitempty"`
	HasDefault bool   `json:"-"`
	// Split is the batch size used when an array value is passed.
	Split int `json:"split,omitempty"`
}

// UnmarshalJSON records whether a default was present, since a null
// default is still a default.
func (p *ParamSpec) UnmarshalJSON(data []byte) error {
	var raw struct {
		Type    string          `json:"type"`
		Default json.RawMessage `json:"default"`
		Split   int             `json:"split"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*p = ParamSpec{Type: raw.Type, Split: raw.Split}
	if raw.Default != nil {
		p.HasDefault = true
		if err := decodeValue(raw.Default, &p.Default); err != nil {
			return fmt.Errorf("default: %w", err)
		}
	}
	return nil
}

// MarshalJSON writes the default whenever HasDefault is set.
func (p ParamSpec) MarshalJSON() ([]byte, error) {
	out := map[string]any{}
	if p.Type != "" {
		out["type"] = p.Type
	}
	if p.HasDefault {
		out["default"] = p.Default
	}
	if p.Split > 0 {
		out["split"] = p.Split
	}
	return json.Marshal(out)
}

// FieldPath is the output column, or ordered tuple of columns, a key
// maps to.
type FieldPath struct {
	Fields []string
	Tuple  bool
}

// Field returns a single-column path.
func Field(name string) FieldPath { return FieldPath{Fields: []string{name}} }

// Tuple returns a composite path.
func Tuple(names ...string) FieldPath { return FieldPath{Fields: names, Tuple: true} }

// Single returns the column of a non-tuple path.
func (f FieldPath) Single() string {
	if f.Tuple || len(f.Fields) == 0 {
		return ""
	}
	return f.Fields[0]
}

func (f FieldPath) String() string {
	if !f.Tuple {
		return f.Single()
	}
	return fmt.Sprintf("%v", f.Fields)
}

// MarshalJSON writes a string for single paths and an array for tuples.
func (f FieldPath) MarshalJSON() ([]byte, error) {
	if f.Tuple {
		return json.Marshal(f.Fields)
	}
	return json.Marshal(f.Single())
}

// UnmarshalJSON accepts a column name or an array of column names.
func (f *FieldPath) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '[' {
		var names []string
		if err := json.Unmarshal(data, &names); err != nil {
			return err
		}
		*f = Tuple(names...)
		return nil
	}
	var name string
	if err := json.Unmarshal(data, &name); err != nil {
		return fmt.Errorf("key field must be a string or an array of strings: %w", err)
	}
	*f = Field(name)
	return nil
}

// Pivot configures the rows-to-columns transform.
type Pivot struct {
	Key   string `json:"key"`
	Name  string `json:"name"`
	Value string `json:"value"`
}

// OutputSpec describes the shape of a query result.
type OutputSpec struct {
	Key     string      `json:"key,omitempty"`
	Group   bool        `json:"group,omitempty"`
	Rows    Cardinality `json:"rows"`
	Columns Cardinality `json:"columns"`
	// Nested nil means the engine default applies.
	Nested *bool  `json:"nested,omitempty"`
	Fields Fields `json:"fields,omitempty"`
	Pivot  *Pivot `json:"rows2columns,omitempty"`
}

// Clone returns a deep copy of o.
func (o *OutputSpec) Clone() *OutputSpec {
	if o == nil {
		return nil
	}
	c := *o
	if o.Nested != nil {
		n := *o.Nested
		c.Nested = &n
	}
	if o.Pivot != nil {
		p := *o.Pivot
		c.Pivot = &p
	}
	c.Fields = o.Fields.Clone()
	return &c
}

// Interface is the compiled description of one query.
type Interface struct {
	ID           string               `json:"id,omitempty"`
	Params       map[string]ParamSpec `json:"params,omitempty"`
	Output       *OutputSpec          `json:"output"`
	Keys         map[string]FieldPath `json:"keys,omitempty"`
	DefaultParam string               `json:"defaultParam,omitempty"`
	Operation    Operation            `json:"operation,omitempty"`
	Root         string               `json:"root,omitempty"`
	// Term makes the query an alias for another term.
	Term string `json:"term,omitempty"`
	// Aliases maps child names used in terms to query ids.
	Aliases    map[string]string `json:"aliases,omitempty"`
	Paging     int               `json:"paging,omitempty"`
	MaxResults int               `json:"maxResults,omitempty"`
}

// UnmarshalJSON maps "output": false (or null) to a nil Output, meaning
// the query is a statement without a result set. A missing output gets the
// default all-rows all-columns shape.
func (i *Interface) UnmarshalJSON(data []byte) error {
	type plain Interface
	var raw struct {
		plain
		Output json.RawMessage `json:"output"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*i = Interface(raw.plain)

	out := bytes.TrimSpace(raw.Output)
	switch {
	case out == nil:
		i.Output = &OutputSpec{}
	case bytes.Equal(out, []byte("false")), bytes.Equal(out, []byte("null")):
		i.Output = nil
	default:
		var spec OutputSpec
		if err := json.Unmarshal(out, &spec); err != nil {
			return fmt.Errorf("output: %w", err)
		}
		i.Output = &spec
	}
	if i.Operation == "" {
		i.Operation = OpRead
	}
	return nil
}

// MarshalJSON writes a nil Output as false.
func (i Interface) MarshalJSON() ([]byte, error) {
	type plain Interface
	var output any = false
	if i.Output != nil {
		output = i.Output
	}
	return json.Marshal(struct {
		plain
		Output any `json:"output"`
	}{plain(i), output})
}

// IsAlias reports whether the query stands for another term.
func (i *Interface) IsAlias() bool { return i.Term != "" }

// ChildAliases returns the child-name rewrites declared by the interface:
// explicit aliases plus child fields whose query id differs from the field
// name.
func (i *Interface) ChildAliases() map[string]string {
	out := make(map[string]string, len(i.Aliases))
	for k, v := range i.Aliases {
		out[k] = v
	}
	if i.Output != nil {
		for name, spec := range i.Output.Fields {
			if c, ok := spec.(ChildField); ok && c.Child != "" && c.Child != name {
				out[name] = c.Child
			}
		}
	}
	return out
}

// ParamNames returns the declared parameter names, sorted.
func (i *Interface) ParamNames() []string {
	names := make([]string, 0, len(i.Params))
	for n := range i.Params {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Validate checks the interface for internal consistency.
func (i *Interface) Validate() error {
	if i.Operation != "" && !i.Operation.Valid() {
		return fmt.Errorf("query %s: invalid operation %q", i.ID, i.Operation)
	}
	for name, p := range i.Params {
		if p.Split < 0 {
			return fmt.Errorf("query %s: param %s: split must be positive", i.ID, name)
		}
		if p.Type != "" && !KnownParamType(p.Type) {
			return fmt.Errorf("query %s: param %s: unknown type %q", i.ID, name, p.Type)
		}
	}
	for key, path := range i.Keys {
		if len(path.Fields) == 0 {
			return fmt.Errorf("query %s: key %s maps to no field", i.ID, key)
		}
	}
	if i.Output != nil {
		if p := i.Output.Pivot; p != nil && (p.Key == "" || p.Name == "" || p.Value == "") {
			return fmt.Errorf("query %s: rows2columns needs key, name and value", i.ID)
		}
	}
	return nil
}

// KnownParamType reports whether t is an accepted parameter type.
func KnownParamType(t string) bool {
	switch t {
	case "int", "string", "float", "number", "boolean", "bool", "date", "datetime", "json":
		return true
	}
	return false
}

// decodeValue decodes JSON into v using int64 for integral numbers.
func decodeValue(data []byte, v *any) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var raw any
	if err := dec.Decode(&raw); err != nil {
		return err
	}
	*v = NormalizeJSON(raw)
	return nil
}

// NormalizeJSON converts json.Number values (from a UseNumber decoder) to
// int64 when integral and float64 otherwise, recursively.
func NormalizeJSON(v any) any {
	switch val := v.(type) {
	case json.Number:
		if n, err := val.Int64(); err == nil {
			return n
		}
		f, _ := val.Float64()
		return f
	case []any:
		for i := range val {
			val[i] = NormalizeJSON(val[i])
		}
		return val
	case map[string]any:
		for k := range val {
			val[k] = NormalizeJSON(val[k])
		}
		return val
	}
	return v
}
