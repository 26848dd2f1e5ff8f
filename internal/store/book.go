package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/shelfkeeper/apiserver/types"
)

// bookColumns selects a book joined with the public fields of its owner.
// Queries using it alias the book relation as "b" and users as "u".
const bookColumns = `
	b.id, b.title, b.author, b.date, b.genre, b.pages, b.editorial, b.owner_id, b.cover_key,
	b.created_at, b.updated_at, u.id, u.username, u.email`

// BookRepository handles persistence for books.
type BookRepository struct {
	db *sql.DB
}

func NewBookRepository(db *sql.DB) *BookRepository {
	return &BookRepository{db: db}
}

// ValidID reports whether id is a well-formed book identifier (a UUID).
func (r *BookRepository) ValidID(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}

func (r *BookRepository) List(ctx context.Context, filter types.BookFilter) ([]types.Book, error) {
	var (
		conds []string
		args  []any
	)
	if filter.Author != nil {
		args = append(args, "%"+escapeLike(*filter.Author)+"%")
		conds = append(conds, fmt.Sprintf(`b.author ILIKE $%d ESCAPE '\'`, len(args)))
	}
	if filter.Genre != nil {
		args = append(args, *filter.Genre)
		conds = append(conds, fmt.Sprintf("$%d = ANY(b.genre)", len(args)))
	}
	if filter.MinPages != nil {
		args = append(args, *filter.MinPages)
		conds = append(conds, fmt.Sprintf("b.pages >= $%d", len(args)))
	}

	query := `SELECT ` + bookColumns + `
		FROM books b
		LEFT JOIN users u ON u.id = b.owner_id`
	if len(conds) > 0 {
		query += "\n\t\tWHERE " + strings.Join(conds, " AND ")
	}
	query += "\n\t\tORDER BY b.created_at, b.id"

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	books := make([]types.Book, 0)
	for rows.Next() {
		book, err := scanBook(rows)
		if err != nil {
			return nil, err
		}
		books = append(books, book)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return books, nil
}

func (r *BookRepository) Get(ctx context.Context, id string) (types.Book, error) {
	if !r.ValidID(id) {
		return types.Book{}, ErrNotFound
	}
	query := `SELECT ` + bookColumns + `
		FROM books b
		LEFT JOIN users u ON u.id = b.owner_id
		WHERE b.id = $1`
	return scanOne(r.db.QueryRowContext(ctx, query, id))
}

func (r *BookRepository) Create(ctx context.Context, book types.Book) (types.Book, error) {
	now := time.Now().UTC()
	book.CreatedAt = now
	book.UpdatedAt = now

	query := `
		WITH b AS (
			INSERT INTO books (title, author, date, genre, pages, editorial, owner_id, cover_key, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
			RETURNING *
		)
		SELECT ` + bookColumns + `
		FROM b
		LEFT JOIN users u ON u.id = b.owner_id`
	return scanOne(r.db.QueryRowContext(
		ctx,
		query,
		book.Title,
		book.Author,
		book.Date,
		pq.Array(book.Genre),
		nullInt(book.Pages),
		book.Editorial,
		book.OwnerID,
		book.CoverKey,
		book.CreatedAt,
		book.UpdatedAt,
	))
}

// Update applies the non-nil fields of changes and returns the stored
// result. Unknown ids yield ErrNotFound.
func (r *BookRepository) Update(ctx context.Context, id string, changes types.BookUpdate) (types.Book, error) {
	if !r.ValidID(id) {
		return types.Book{}, ErrNotFound
	}

	var (
		sets []string
		args []any
	)
	set := func(column string, value any) {
		args = append(args, value)
		sets = append(sets, fmt.Sprintf("%s = $%d", column, len(args)))
	}
	if changes.Title != nil {
		set("title", *changes.Title)
	}
	if changes.Author != nil {
		set("author", *changes.Author)
	}
	if changes.Date != nil {
		set("date", *changes.Date)
	}
	if changes.Genre != nil {
		set("genre", pq.Array(changes.Genre))
	}
	if changes.Pages != nil {
		set("pages", *changes.Pages)
	}
	if changes.Editorial != nil {
		set("editorial", *changes.Editorial)
	}
	if changes.CoverKey != nil {
		set("cover_key", *changes.CoverKey)
	}
	set("updated_at", time.Now().UTC())
	args = append(args, id)

	query := `
		WITH b AS (
			UPDATE books
			SET ` + strings.Join(sets, ", ") + `
			WHERE id = $` + fmt.Sprint(len(args)) + `
			RETURNING *
		)
		SELECT ` + bookColumns + `
		FROM b
		LEFT JOIN users u ON u.id = b.owner_id`
	return scanOne(r.db.QueryRowContext(ctx, query, args...))
}

// Delete removes a book and returns it as it was before removal.
func (r *BookRepository) Delete(ctx context.Context, id string) (types.Book, error) {
	if !r.ValidID(id) {
		return types.Book{}, ErrNotFound
	}
	query := `
		WITH b AS (
			DELETE FROM books
			WHERE id = $1
			RETURNING *
		)
		SELECT ` + bookColumns + `
		FROM b
		LEFT JOIN users u ON u.id = b.owner_id`
	return scanOne(r.db.QueryRowContext(ctx, query, id))
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanOne(row *sql.Row) (types.Book, error) {
	book, err := scanBook(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return types.Book{}, ErrNotFound
		}
		return types.Book{}, err
	}
	return book, nil
}

func scanBook(row rowScanner) (types.Book, error) {
	var (
		book                           types.Book
		genre                          pq.StringArray
		pages                          sql.NullInt64
		ownerID, ownerName, ownerEmail sql.NullString
	)
	if err := row.Scan(
		&book.ID,
		&book.Title,
		&book.Author,
		&book.Date,
		&genre,
		&pages,
		&book.Editorial,
		&book.OwnerID,
		&book.CoverKey,
		&book.CreatedAt,
		&book.UpdatedAt,
		&ownerID,
		&ownerName,
		&ownerEmail,
	); err != nil {
		return types.Book{}, err
	}

	book.Genre = []string(genre)
	if book.Genre == nil {
		book.Genre = []string{}
	}
	if pages.Valid {
		p := int(pages.Int64)
		book.Pages = &p
	}
	if ownerID.Valid {
		book.Owner = &types.PublicUser{
			ID:       ownerID.String,
			Username: ownerName.String,
			Email:    ownerEmail.String,
		}
	}
	return book, nil
}

func nullInt(v *int) sql.NullInt64 {
	if v == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: int64(*v), Valid: true}
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// escapeLike makes s safe for use inside a LIKE pattern.
func escapeLike(s string) string {
	return likeEscaper.Replace(s)
}
