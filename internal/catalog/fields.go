package catalog

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Kind is the declared type of an output field.
type Kind string

const (
	KindInt      Kind = "int"
	KindFloat    Kind = "float"
	KindString   Kind = "string"
	KindBoolean  Kind = "boolean"
	KindDate     Kind = "date"
	KindDateTime Kind = "datetime"
	KindJSON     Kind = "json"
	KindObject   Kind = "object"
	KindChild    Kind = "child"
)

// normalizeKind maps accepted spellings onto a Kind.
func normalizeKind(s string) (Kind, bool) {
	switch s {
	case "int", "integer":
		return KindInt, true
	case "float", "number":
		return KindFloat, true
	case "string", "":
		return KindString, true
	case "boolean", "bool":
		return KindBoolean, true
	case "date":
		return KindDate, true
	case "datetime":
		return KindDateTime, true
	case "json":
		return KindJSON, true
	case "object":
		return KindObject, true
	case "child":
		return KindChild, true
	}
	return "", false
}

// FieldSpec is the type specification of one output field. It is a closed
// set of variants: ScalarField, JSONField, ObjectField and ChildField.
type FieldSpec interface {
	Kind() Kind
	fieldSpec()
}

// ScalarField is a column cast to a scalar kind.
type ScalarField struct {
	Type Kind
}

// JSONField is a column holding JSON text that is decoded.
type JSONField struct{}

// ObjectField is a nested object with typed sub-fields.
type ObjectField struct {
	Fields Fields
}

// ChildField is a placeholder filled by a child query of a tree.
type ChildField struct {
	Child string
}

func (f ScalarField) Kind() Kind { return f.Type }
func (JSONField) Kind() Kind     { return KindJSON }
func (ObjectField) Kind() Kind   { return KindObject }
func (ChildField) Kind() Kind    { return KindChild }

func (ScalarField) fieldSpec() {}
func (JSONField) fieldSpec()   {}
func (ObjectField) fieldSpec() {}
func (ChildField) fieldSpec()  {}

// Fields maps output field names to their specs.
type Fields map[string]FieldSpec

// Clone returns a deep copy.
func (fs Fields) Clone() Fields {
	if fs == nil {
		return nil
	}
	out := make(Fields, len(fs))
	for k, v := range fs {
		if o, ok := v.(ObjectField); ok {
			v = ObjectField{Fields: o.Fields.Clone()}
		}
		out[k] = v
	}
	return out
}

// Has reports whether name is a registered field.
func (fs Fields) Has(name string) bool {
	_, ok := fs[name]
	return ok
}

// IsChild reports whether name is registered as a child placeholder.
func (fs Fields) IsChild(name string) bool {
	_, ok := fs[name].(ChildField)
	return ok
}

// UnmarshalJSON decodes each field from either a type string ("int") or an
// object ({"type": "child", "child": "messages"}).
func (fs *Fields) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	out := make(Fields, len(raw))
	for name, msg := range raw {
		spec, err := decodeFieldSpec(msg)
		if err != nil {
			return fmt.Errorf("field %s: %w", name, err)
		}
		out[name] = spec
	}
	*fs = out
	return nil
}

// MarshalJSON writes scalars and json fields as type strings and the other
// variants as objects.
func (fs Fields) MarshalJSON() ([]byte, error) {
	out := make(map[string]any, len(fs))
	for name, spec := range fs {
		switch f := spec.(type) {
		case ScalarField:
			out[name] = string(f.Type)
		case JSONField:
			out[name] = string(KindJSON)
		case ObjectField:
			out[name] = map[string]any{"type": KindObject, "fields": f.Fields}
		case ChildField:
			out[name] = map[string]any{"type": KindChild, "child": f.Child}
		}
	}
	return json.Marshal(out)
}

func decodeFieldSpec(msg json.RawMessage) (FieldSpec, error) {
	msg = bytes.TrimSpace(msg)
	if len(msg) > 0 && msg[0] == '"' {
		var s string
		if err := json.Unmarshal(msg, &s); err != nil {
			return nil, err
		}
		return NewFieldSpec(s, nil, "")
	}

	var obj struct {
		Type   string `json:"type"`
		Fields Fields `json:"fields"`
		Child  string `json:"child"`
	}
	if err := json.Unmarshal(msg, &obj); err != nil {
		return nil, err
	}
	if obj.Type == "" && obj.Child != "" {
		obj.Type = string(KindChild)
	}
	return NewFieldSpec(obj.Type, obj.Fields, obj.Child)
}

// NewFieldSpec builds the variant for a type name.
func NewFieldSpec(typ string, fields Fields, child string) (FieldSpec, error) {
	kind, ok := normalizeKind(typ)
	if !ok {
		return nil, fmt.Errorf("unknown field type %q", typ)
	}
	switch kind {
	case KindJSON:
		return JSONField{}, nil
	case KindObject:
		return ObjectField{Fields: fields}, nil
	case KindChild:
		return ChildField{Child: child}, nil
	}
	return ScalarField{Type: kind}, nil
}
