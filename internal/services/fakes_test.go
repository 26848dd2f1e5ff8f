package services

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/shelfkeeper/apiserver/internal/storage"
	"github.com/shelfkeeper/apiserver/internal/store"
	"github.com/shelfkeeper/apiserver/types"
)

type fakeUserRepo struct {
	mu     sync.Mutex
	users  map[string]types.User
	nextID int
	err    error
}

func newFakeUserRepo() *fakeUserRepo {
	return &fakeUserRepo{users: make(map[string]types.User)}
}

func (r *fakeUserRepo) GetByID(_ context.Context, id string) (types.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return types.User{}, r.err
	}
	for _, u := range r.users {
		if u.ID == id {
			return u, nil
		}
	}
	return types.User{}, store.ErrNotFound
}

func (r *fakeUserRepo) GetByEmail(_ context.Context, email string) (types.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return types.User{}, r.err
	}
	u, ok := r.users[email]
	if !ok {
		return types.User{}, store.ErrNotFound
	}
	return u, nil
}

func (r *fakeUserRepo) Create(_ context.Context, user types.User) (types.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.users[user.Email]; ok {
		return types.User{}, store.ErrDuplicate
	}
	r.nextID++
	user.ID = fmt.Sprintf("u%d", r.nextID)
	r.users[user.Email] = user
	return user, nil
}

// fakeBookRepo accepts ids of the form "b<n>".
type fakeBookRepo struct {
	mu     sync.Mutex
	books  []types.Book
	nextID int
	owners map[string]types.PublicUser
}

func newFakeBookRepo() *fakeBookRepo {
	return &fakeBookRepo{owners: make(map[string]types.PublicUser)}
}

func (r *fakeBookRepo) ValidID(id string) bool {
	return strings.HasPrefix(id, "b") && len(id) > 1
}

func (r *fakeBookRepo) List(_ context.Context, filter types.BookFilter) ([]types.Book, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]types.Book, 0)
	for _, b := range r.books {
		if filter.Author != nil && !strings.Contains(strings.ToLower(b.Author), strings.ToLower(*filter.Author)) {
			continue
		}
		if filter.MinPages != nil && (b.Pages == nil || *b.Pages < *filter.MinPages) {
			continue
		}
		out = append(out, r.resolve(b))
	}
	return out, nil
}

func (r *fakeBookRepo) Get(_ context.Context, id string) (types.Book, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	i := r.index(id)
	if i < 0 {
		return types.Book{}, store.ErrNotFound
	}
	return r.resolve(r.books[i]), nil
}

func (r *fakeBookRepo) Create(_ context.Context, book types.Book) (types.Book, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextID++
	book.ID = fmt.Sprintf("b%d", r.nextID)
	r.books = append(r.books, book)
	return r.resolve(book), nil
}

func (r *fakeBookRepo) Update(_ context.Context, id string, c types.BookUpdate) (types.Book, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	i := r.index(id)
	if i < 0 {
		return types.Book{}, store.ErrNotFound
	}
	b := &r.books[i]
	if c.Title != nil {
		b.Title = *c.Title
	}
	if c.Author != nil {
		b.Author = *c.Author
	}
	if c.Date != nil {
		b.Date = *c.Date
	}
	if c.Genre != nil {
		b.Genre = c.Genre
	}
	if c.Pages != nil {
		b.Pages = c.Pages
	}
	if c.Editorial != nil {
		b.Editorial = *c.Editorial
	}
	if c.CoverKey != nil {
		b.CoverKey = *c.CoverKey
	}
	return r.resolve(*b), nil
}

func (r *fakeBookRepo) Delete(_ context.Context, id string) (types.Book, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	i := r.index(id)
	if i < 0 {
		return types.Book{}, store.ErrNotFound
	}
	b := r.books[i]
	r.books = append(r.books[:i], r.books[i+1:]...)
	return r.resolve(b), nil
}

func (r *fakeBookRepo) index(id string) int {
	for i, b := range r.books {
		if b.ID == id {
			return i
		}
	}
	return -1
}

func (r *fakeBookRepo) resolve(b types.Book) types.Book {
	if owner, ok := r.owners[b.OwnerID]; ok {
		b.Owner = &owner
	}
	return b
}

type fakeCovers struct {
	mu      sync.Mutex
	objects map[string][]byte
	putErr  error
}

func newFakeCovers() *fakeCovers {
	return &fakeCovers{objects: make(map[string][]byte)}
}

func (c *fakeCovers) Put(_ context.Context, key string, r io.Reader, _ int64, _ string) error {
	if c.putErr != nil {
		return c.putErr
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.objects[key] = data
	return nil
}

func (c *fakeCovers) Get(_ context.Context, key string) (io.ReadCloser, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	data, ok := c.objects[key]
	if !ok {
		return nil, storage.ErrObjectNotFound
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

func (c *fakeCovers) Delete(_ context.Context, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.objects, key)
	return nil
}

type fakeEvents struct {
	mu     sync.Mutex
	events []types.BookEvent
	err    error
}

func (e *fakeEvents) PublishBookEvent(_ context.Context, event types.BookEvent) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.err != nil {
		return e.err
	}
	e.events = append(e.events, event)
	return nil
}

func (e *fakeEvents) kinds() []types.BookEventType {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]types.BookEventType, 0, len(e.events))
	for _, ev := range e.events {
		out = append(out, ev.Type)
	}
	return out
}

var fixedNow = time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
