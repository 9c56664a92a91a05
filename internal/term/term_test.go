package term

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSplit(t *testing.T) {
	tests := []struct {
		name string
		in   string
		seps string
		want []string
	}{
		{"single", "a", "|", []string{"a"}},
		{"merge", "a|b|c", "|", []string{"a", "b", "c"}},
		{"nested parens", "a(b|c)|d", "|", []string{"a(b|c)", "d"}},
		{"two separators", "a+b;c", "+;", []string{"a", "b", "c"}},
		{"trims parts", " a : b ", ":#", []string{"a", "b"}},
		{"deep", "x((a|b)|c)|y", "|", []string{"x((a|b)|c)", "y"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Split(tt.in, []byte(tt.seps)...)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestSplitErrors(t *testing.T) {
	for _, in := range []string{"", "a(b", "a)b(", "a||b", "a|"} {
		t.Run(in, func(t *testing.T) {
			_, err := Split(in, '|')
			var se *SyntaxError
			assert.ErrorAs(t, err, &se)
		})
	}
}

func TestParseID(t *testing.T) {
	tests := []struct {
		in       string
		id, kids string
	}{
		{"a", "a", ""},
		{" user.messages ", "user.messages", ""},
		{"a(b(c),d)", "a", "b(c),d"},
		{"a (b)", "a", "b"},
		{"(b|c)", "", "b|c"},
		{"a.(b|c)", "a.", "b|c"},
		{"a|b", "", ""},
		{"(a)|(b)", "", ""},
		{"a(b)|c(d)", "", ""},
		{"a()", "a", ""},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			id, kids := ParseID(tt.in)
			assert.Equal(t, tt.id, id)
			assert.Equal(t, tt.kids, kids)
		})
	}
}

func TestValidate(t *testing.T) {
	assert.NoError(t, Validate("a:b+c(d|e)"))
	assert.NoError(t, Validate("x-y.z # w ; v"))
	assert.Error(t, Validate("a; DROP TABLE 'x'"))
	assert.Error(t, Validate("   "))
}

func TestNormalize(t *testing.T) {
	assert.Equal(t, "a |  b", Normalize("a\t|\r\nb"))
}

func TestPrefixOf(t *testing.T) {
	p, ok := PrefixOf("a.")
	assert.True(t, ok)
	assert.Equal(t, "a", p)

	_, ok = PrefixOf("a")
	assert.False(t, ok)
	assert.Equal(t, "a.b", Qualify("a", "b"))
}

func TestConvertAliases(t *testing.T) {
	got := ConvertAliases([]string{"msgs(author)", "tags", "other"}, map[string]string{
		"msgs": "messages",
		"tags": "user.tags",
	})
	assert.Equal(t, []string{"messages(author)", "user.tags", "other"}, got)

	in := []string{"a"}
	assert.Equal(t, in, ConvertAliases(in, nil))
}
