package rows

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/wdiesveld/tinyqueries/internal/ir"
)

func TestNestDottedFields(t *testing.T) {
	in := []ir.Row{
		{"user.name": "Bob", "user.email": nil, "age": 30},
		{"user.name": nil, "user.email": nil, "age": 31},
	}

	NestDottedFields(in)

	assert.Equal(t, ir.Row{"user": map[string]any{"name": "Bob", "email": nil}, "age": 30}, in[0])
	assert.Equal(t, ir.Row{"user": nil, "age": 31}, in[1])
}

func TestNestDottedFieldsDeep(t *testing.T) {
	in := []ir.Row{{"a.b.c.d.e": 1, "a.b.x": 2}}

	NestDottedFields(in)

	want := ir.Row{"a": map[string]any{"b": map[string]any{
		"c": map[string]any{"d": map[string]any{"e": 1}},
		"x": 2,
	}}}
	assert.Equal(t, want, in[0])
}

func TestNestDottedFieldsEmpty(t *testing.T) {
	NestDottedFields(nil)
	in := []ir.Row{{"plain": 1}}
	NestDottedFields(in)
	assert.Equal(t, ir.Row{"plain": 1}, in[0])
}

func TestReduceNulls(t *testing.T) {
	v := map[string]any{"a": nil, "b": map[string]any{"c": nil}}
	assert.Nil(t, ReduceNulls(v))

	v = map[string]any{"a": nil, "b": map[string]any{"c": 1}}
	assert.Equal(t, map[string]any{"a": nil, "b": map[string]any{"c": 1}}, ReduceNulls(v))

	assert.Equal(t, "x", ReduceNulls("x"))
}

func TestFixGroupConcatArray(t *testing.T) {
	assert.Equal(t, []any{}, FixGroupConcatArray([]any{map[string]any{"id": nil}}))
	assert.Equal(t, []any{map[string]any{"id": 1}}, FixGroupConcatArray([]any{map[string]any{"id": 1}}))
	assert.Equal(t, []any{1, 2}, FixGroupConcatArray([]any{1, 2}))
	assert.Equal(t, "s", FixGroupConcatArray("s"))
}
