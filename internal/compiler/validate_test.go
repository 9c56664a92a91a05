package compiler

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wdiesveld/tinyqueries/internal/catalog"
)

func sqlEntry(id string, iface *catalog.Interface) Entry {
	if iface == nil {
		iface = &catalog.Interface{Output: &catalog.OutputSpec{}, Operation: catalog.OpRead}
	}
	iface.ID = id
	return Entry{ID: id, Interface: iface, SQL: "SELECT * FROM " + id}
}

func aliasEntry(id, t string) Entry {
	return Entry{ID: id, Interface: &catalog.Interface{ID: id, Term: t}}
}

func TestValidateValidSet(t *testing.T) {
	entries := []Entry{
		sqlEntry("users", nil),
		sqlEntry("users.active", nil),
		sqlEntry("messages", nil),
		aliasEntry("admins", "users:active"),
		aliasEntry("inbox", "users(messages)"),
		aliasEntry("both", "users.(active|messages)"),
	}
	assert.Empty(t, Validate(entries))
}

func TestValidateUnknownReference(t *testing.T) {
	errs := Validate([]Entry{
		sqlEntry("users", nil),
		aliasEntry("broken", "users(letters)"),
	})
	require.Len(t, errs, 1)
	assert.Equal(t, ErrUnknownReference, errs[0].Code)
	assert.Equal(t, "broken", errs[0].Query)
	assert.Contains(t, errs[0].Message, "letters")
}

func TestValidateChildNamesResolve(t *testing.T) {
	writers := &catalog.Interface{
		Output:  &catalog.OutputSpec{},
		Aliases: map[string]string{"posts": "messages"},
	}
	errs := Validate([]Entry{
		sqlEntry("messages", nil),
		sqlEntry("writers", writers),
		aliasEntry("feed", "writers(posts)"),
	})
	assert.Empty(t, errs)
}

func TestValidateCollectsAllErrors(t *testing.T) {
	bad := &catalog.Interface{
		Params:       map[string]catalog.ParamSpec{"id": {Type: "int"}},
		DefaultParam: "userID",
		Output: &catalog.OutputSpec{Fields: catalog.Fields{
			"posts": catalog.ChildField{Child: "letters"},
		}},
		Aliases: map[string]string{"inbox": "mailbox"},
	}
	entry := sqlEntry("bad", bad)
	entry.SQL = "   "

	errs := Validate([]Entry{entry})
	codes := make([]string, 0, len(errs))
	for _, e := range errs {
		codes = append(codes, e.Code)
	}
	assert.Equal(t, []string{ErrEmptySQL, ErrUndeclaredDefault, ErrUnknownChild, ErrUnknownAliasTarget}, codes)
}

func TestValidateOrderedByQuery(t *testing.T) {
	errs := Validate([]Entry{
		aliasEntry("zeta", "missing"),
		aliasEntry("alpha", "missing"),
	})
	require.Len(t, errs, 2)
	assert.Equal(t, "alpha", errs[0].Query)
	assert.Equal(t, "zeta", errs[1].Query)
}

func TestValidationErrorFormat(t *testing.T) {
	err := ValidationError{Query: "q", Field: "sql", Message: "sql must not be blank", Code: ErrEmptySQL}
	assert.Equal(t, "[E124] q sql: sql must not be blank", err.Error())

	err.Line = 7
	assert.Equal(t, "[E124] line 7: q sql: sql must not be blank", err.Error())
}

func TestTermRefs(t *testing.T) {
	tests := []struct {
		term string
		want []string
	}{
		{"users", []string{"users"}},
		{"users(messages,stats)", []string{"users", "messages", "stats"}},
		{"users.(active|inactive)", []string{"users.", "active", "inactive"}},
		{"a:b.c+d", []string{"a", "b.c", "d"}},
	}
	for _, tt := range tests {
		t.Run(tt.term, func(t *testing.T) {
			assert.Equal(t, tt.want, termRefs(tt.term))
		})
	}
}
