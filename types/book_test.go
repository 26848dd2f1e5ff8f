package types

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseBookDate(t *testing.T) {
	tests := []struct {
		in   string
		want time.Time
	}{
		{"1965-01-01", time.Date(1965, 1, 1, 0, 0, 0, 0, time.UTC)},
		{" 1965-08-01 ", time.Date(1965, 8, 1, 0, 0, 0, 0, time.UTC)},
		{"1965-01-01T10:00:00+02:00", time.Date(1965, 1, 1, 8, 0, 0, 0, time.UTC)},
		{"1965-01-01T00:00:00.000Z", time.Date(1965, 1, 1, 0, 0, 0, 0, time.UTC)},
	}
	for _, tc := range tests {
		got, err := ParseBookDate(tc.in)
		require.NoError(t, err, tc.in)
		assert.True(t, tc.want.Equal(got), "%s: got %v", tc.in, got)
	}

	for _, bad := range []string{"", "yesterday", "01/01/1965", "1965-13-01"} {
		_, err := ParseBookDate(bad)
		assert.ErrorIs(t, err, ErrInvalidDate, bad)
	}
}

func TestBookInputNormalize(t *testing.T) {
	in := BookInput{
		Title:     "  Dune ",
		Author:    "\tHerbert",
		Date:      " 1965-01-01",
		Genre:     []string{" scifi ", "classic"},
		Editorial: " Chilton  ",
	}
	in.Normalize()

	assert.Equal(t, "Dune", in.Title)
	assert.Equal(t, "Herbert", in.Author)
	assert.Equal(t, "1965-01-01", in.Date)
	assert.Equal(t, []string{"scifi", "classic"}, in.Genre)
	assert.Equal(t, "Chilton", in.Editorial)
}

func TestBookPatch(t *testing.T) {
	var p BookPatch
	assert.True(t, p.Empty())
	p.Normalize()

	title := "  Children of Dune "
	genre := []string{" scifi"}
	p = BookPatch{Title: &title, Genre: &genre}
	p.Normalize()

	assert.False(t, p.Empty())
	assert.Equal(t, "Children of Dune", *p.Title)
	assert.Equal(t, []string{"scifi"}, *p.Genre)
	assert.Nil(t, p.Author)
}

func TestUserPublic(t *testing.T) {
	u := User{ID: "u1", Username: "ann", Email: "a@x.com", PasswordHash: "hash", Role: DefaultRole}
	assert.Equal(t, PublicUser{ID: "u1", Username: "ann", Email: "a@x.com"}, u.Public())
}

func TestRegisterRequestNormalize(t *testing.T) {
	r := RegisterRequest{Username: "  ann ", Email: " A@X.com ", Password: " secret "}
	r.Normalize()
	assert.Equal(t, "ann", r.Username)
	assert.Equal(t, "a@x.com", r.Email)
	assert.Equal(t, " secret ", r.Password)

	l := LoginRequest{Email: "A@x.COM"}
	l.Normalize()
	assert.Equal(t, "a@x.com", l.Email)
}
