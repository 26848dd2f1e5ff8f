package types

import (
	"errors"
	"strings"
	"time"
)

// Book represents a single entry of the catalog.
type Book struct {
	// ID is the unique identifier of the book, generated by the store.
	ID string `json:"id" db:"id"`

	// Title is the human-readable title of the book.
	Title string `json:"title" db:"title"`

	// Author is the name of the book's author.
	Author string `json:"author" db:"author"`

	// Date is the publication date of the book.
	Date time.Time `json:"date" db:"date"`

	// Genre lists the genres the book belongs to. Filtering by genre
	// matches any element exactly.
	Genre []string `json:"genre" db:"genre"`

	// Pages is the number of pages. Nil when unknown.
	Pages *int `json:"pages,omitempty" db:"pages"`

	// Editorial is the publishing house.
	Editorial string `json:"editorial,omitempty" db:"editorial"`

	// OwnerID references the user who created the book.
	OwnerID string `json:"-" db:"owner_id"`

	// Owner holds the resolved public fields of the owning user.
	// Populated on every read.
	Owner *PublicUser `json:"owner,omitempty" db:"-"`

	// CoverKey is the object storage key of the uploaded cover image,
	// empty when the book has no cover.
	CoverKey string `json:"cover_key,omitempty" db:"cover_key"`

	// CreatedAt is the timestamp at which the book was created.
	CreatedAt time.Time `json:"created_at" db:"created_at"`

	// UpdatedAt is the timestamp of the most recent update to the book.
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// BookInput is the full schema used when creating a book.
type BookInput struct {
	Title     string   `json:"title" validate:"required,max=256"`
	Author    string   `json:"author" validate:"required,max=256"`
	Date      string   `json:"date" validate:"required,bookdate"`
	Genre     []string `json:"genre" validate:"required,min=1,dive,required,max=64"`
	Pages     *int     `json:"pages" validate:"omitempty,min=1"`
	Editorial string   `json:"editorial" validate:"max=256"`
}

// Normalize trims every string field in place.
func (in *BookInput) Normalize() {
	in.Title = strings.TrimSpace(in.Title)
	in.Author = strings.TrimSpace(in.Author)
	in.Date = strings.TrimSpace(in.Date)
	in.Editorial = strings.TrimSpace(in.Editorial)
	trimAll(in.Genre)
}

// BookPatch is the partial schema used when updating a book. Every field is
// optional; a nil field is left untouched, a present field must satisfy the
// same rules as in BookInput.
type BookPatch struct {
	Title     *string   `json:"title" validate:"omitempty,min=1,max=256"`
	Author    *string   `json:"author" validate:"omitempty,min=1,max=256"`
	Date      *string   `json:"date" validate:"omitempty,bookdate"`
	Genre     *[]string `json:"genre" validate:"omitempty,min=1,dive,required,max=64"`
	Pages     *int      `json:"pages" validate:"omitempty,min=1"`
	Editorial *string   `json:"editorial" validate:"omitempty,max=256"`
}

// Normalize trims every present string field in place.
func (p *BookPatch) Normalize() {
	trimPtr(p.Title)
	trimPtr(p.Author)
	trimPtr(p.Date)
	trimPtr(p.Editorial)
	if p.Genre != nil {
		trimAll(*p.Genre)
	}
}

// Empty reports whether the patch carries no fields.
func (p BookPatch) Empty() bool {
	return p.Title == nil && p.Author == nil && p.Date == nil &&
		p.Genre == nil && p.Pages == nil && p.Editorial == nil
}

// BookFilter narrows a book listing. Nil fields do not filter.
type BookFilter struct {
	// Author matches books whose author contains the value, ignoring case.
	Author *string

	// Genre matches books having exactly this genre among their genres.
	Genre *string

	// MinPages matches books with at least this many pages.
	MinPages *int
}

// ErrInvalidDate is returned by ParseBookDate for unrecognized layouts.
var ErrInvalidDate = errors.New("invalid date")

var bookDateLayouts = []string{
	"2006-01-02",
	time.RFC3339,
	time.RFC3339Nano,
}

// ParseBookDate parses a publication date given either as a calendar date
// (YYYY-MM-DD) or as an RFC 3339 timestamp. The result is in UTC.
func ParseBookDate(value string) (time.Time, error) {
	value = strings.TrimSpace(value)
	for _, layout := range bookDateLayouts {
		if t, err := time.Parse(layout, value); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, ErrInvalidDate
}

func trimPtr(s *string) {
	if s != nil {
		*s = strings.TrimSpace(*s)
	}
}

func trimAll(values []string) {
	for i := range values {
		values[i] = strings.TrimSpace(values[i])
	}
}

// BookUpdate is a set of typed changes applied to a stored book. Nil fields
// are left untouched.
type BookUpdate struct {
	Title     *string
	Author    *string
	Date      *time.Time
	Genre     []string
	Pages     *int
	Editorial *string
	CoverKey  *string
}
