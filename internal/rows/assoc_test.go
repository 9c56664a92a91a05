package rows

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wdiesveld/tinyqueries/internal/ir"
)

func TestToAssocLastWriteWins(t *testing.T) {
	in := []ir.Row{
		{"id": int64(1), "v": "a"},
		{"id": int64(2), "v": "b"},
		{"id": int64(1), "v": "c"},
	}

	out, err := ToAssoc(in, "id")
	require.NoError(t, err)

	assert.Equal(t, []string{"1", "2"}, out.Keys())
	first, _ := out.Get("1")
	assert.Equal(t, "c", first["v"])
}

func TestToAssocMissingKey(t *testing.T) {
	_, err := ToAssoc([]ir.Row{{"x": 1}}, "id")
	var mk *MissingKeyError
	require.ErrorAs(t, err, &mk)
	assert.Equal(t, "id", mk.Key)

	out, err := ToAssoc(nil, "id")
	require.NoError(t, err)
	assert.Equal(t, 0, out.Len())
}

func TestGroupBy(t *testing.T) {
	in := []ir.Row{
		{"k": "b", "n": 1},
		{"k": "a", "n": 2},
		{"k": "b", "n": 3},
	}

	out, err := GroupBy(in, "k", true)
	require.NoError(t, err)

	assert.Equal(t, []string{"b", "a"}, out.Keys())
	b, _ := out.Get("b")
	assert.Equal(t, []ir.Row{{"n": 1}, {"n": 3}}, b)

	// Input rows are not modified.
	assert.Contains(t, in[0], "k")
}

func TestGroupByKeepsKey(t *testing.T) {
	out, err := GroupBy([]ir.Row{{"k": 1, "n": 1}}, "k", false)
	require.NoError(t, err)
	g, _ := out.Get("1")
	assert.Equal(t, []ir.Row{{"k": 1, "n": 1}}, g)

	_, err = GroupBy([]ir.Row{{"n": 1}}, "k", false)
	assert.Error(t, err)
}

func TestToIndexed(t *testing.T) {
	a := ir.NewAssoc[ir.Row]()
	a.Set("x", ir.Row{"n": 1})
	a.Set("y", ir.Row{"n": 2})
	assert.Equal(t, []ir.Row{{"n": 1}, {"n": 2}}, ToIndexed(a))
	assert.Nil(t, ToIndexed[ir.Row](nil))
}
