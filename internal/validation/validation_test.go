package validation

import (
	"errors"
	"testing"

	"github.com/shelfkeeper/apiserver/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func intPtr(v int) *int       { return &v }
func strPtr(v string) *string { return &v }

func validBook() types.BookInput {
	return types.BookInput{
		Title:  "Dune",
		Author: "Herbert",
		Date:   "1965-01-01",
		Genre:  []string{"scifi"},
		Pages:  intPtr(412),
	}
}

func fieldsOf(t *testing.T, err error) map[string][]string {
	t.Helper()
	var verr *Error
	require.True(t, errors.As(err, &verr), "expected *validation.Error, got %v", err)
	return verr.Fields
}

func TestStruct_ValidBook(t *testing.T) {
	in := validBook()
	assert.NoError(t, New().Struct(in))
}

func TestStruct_MissingTitleReportsOnlyTitle(t *testing.T) {
	in := validBook()
	in.Title = ""

	fields := fieldsOf(t, New().Struct(in))
	assert.Equal(t, map[string][]string{"title": {"is required"}}, fields)
}

func TestStruct_BookFieldRules(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*types.BookInput)
		field  string
		msg    string
	}{
		{"no author", func(b *types.BookInput) { b.Author = "" }, "author", "is required"},
		{"no date", func(b *types.BookInput) { b.Date = "" }, "date", "is required"},
		{"bad date", func(b *types.BookInput) { b.Date = "someday" }, "date", "must be a date in YYYY-MM-DD or RFC 3339 format"},
		{"nil genre", func(b *types.BookInput) { b.Genre = nil }, "genre", "is required"},
		{"empty genre", func(b *types.BookInput) { b.Genre = []string{} }, "genre", "must contain at least 1 items"},
		{"blank genre entry", func(b *types.BookInput) { b.Genre = []string{"scifi", ""} }, "genre", "must not contain empty values"},
		{"zero pages", func(b *types.BookInput) { b.Pages = intPtr(0) }, "pages", "must be at least 1"},
		{"negative pages", func(b *types.BookInput) { b.Pages = intPtr(-3) }, "pages", "must be at least 1"},
	}

	v := New()
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			in := validBook()
			tc.mutate(&in)
			fields := fieldsOf(t, v.Struct(in))
			assert.Len(t, fields, 1)
			assert.Equal(t, []string{tc.msg}, fields[tc.field])
		})
	}
}

func TestStruct_PagesOptional(t *testing.T) {
	in := validBook()
	in.Pages = nil
	assert.NoError(t, New().Struct(in))
}

func TestStruct_MultipleMissingFields(t *testing.T) {
	fields := fieldsOf(t, New().Struct(types.BookInput{}))
	assert.ElementsMatch(t, []string{"title", "author", "date", "genre"}, keys(fields))
}

func TestStruct_PatchSameRulesWhenPresent(t *testing.T) {
	v := New()

	assert.NoError(t, v.Struct(types.BookPatch{}))
	assert.NoError(t, v.Struct(types.BookPatch{Title: strPtr("Dune Messiah"), Pages: intPtr(256)}))

	empty := []string{}
	fields := fieldsOf(t, v.Struct(types.BookPatch{
		Title: strPtr(""),
		Date:  strPtr("tomorrow"),
		Genre: &empty,
		Pages: intPtr(0),
	}))
	assert.Equal(t, []string{"must not be empty"}, fields["title"])
	assert.Equal(t, []string{"must be a date in YYYY-MM-DD or RFC 3339 format"}, fields["date"])
	assert.Equal(t, []string{"must contain at least 1 items"}, fields["genre"])
	assert.Equal(t, []string{"must be at least 1"}, fields["pages"])
	assert.Len(t, fields, 4)
}

func TestStruct_Register(t *testing.T) {
	v := New()

	assert.NoError(t, v.Struct(types.RegisterRequest{Email: "a@x.com", Password: "secret123"}))

	fields := fieldsOf(t, v.Struct(types.RegisterRequest{Email: "nope", Password: "123"}))
	assert.Equal(t, []string{"must be a valid email address"}, fields["email"])
	assert.Equal(t, []string{"must contain at least 6 characters"}, fields["password"])

	fields = fieldsOf(t, v.Struct(types.RegisterRequest{}))
	assert.Equal(t, []string{"is required"}, fields["email"])
	assert.Equal(t, []string{"is required"}, fields["password"])
}

func TestErrorString(t *testing.T) {
	e := FieldError("b", "bad")
	e.Add("a", "worse")
	e.Add("a", "worst")
	assert.Equal(t, "validation failed: a: worse, worst; b: bad", e.Error())
}

func TestErrorMergeKeepsExistingFields(t *testing.T) {
	e := FieldError("pages", "must be an integer")
	other := FieldError("pages", "is required")
	other.Add("author", "is required")

	e.Merge(other)
	e.Merge(nil)
	assert.Equal(t, map[string][]string{
		"pages":  {"must be an integer"},
		"author": {"is required"},
	}, e.Fields)
}

func keys(m map[string][]string) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	return out
}
