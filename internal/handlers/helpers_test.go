package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"github.com/shelfkeeper/apiserver/internal/auth"
	"github.com/shelfkeeper/apiserver/internal/services"
	"github.com/shelfkeeper/apiserver/internal/storage"
	"github.com/shelfkeeper/apiserver/internal/store"
	"github.com/shelfkeeper/apiserver/internal/validation"
	"github.com/shelfkeeper/apiserver/types"
	"github.com/stretchr/testify/require"
)

// memoryStore backs both repositories. Book ids look like "b<n>".
type memoryStore struct {
	mu     sync.Mutex
	users  []types.User
	books  []types.Book
	nextID int
	fail   error
}

type memoryUsers struct{ s *memoryStore }

func (m memoryUsers) GetByID(_ context.Context, id string) (types.User, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	for _, u := range m.s.users {
		if u.ID == id {
			return u, nil
		}
	}
	return types.User{}, store.ErrNotFound
}

func (m memoryUsers) GetByEmail(_ context.Context, email string) (types.User, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	for _, u := range m.s.users {
		if u.Email == email {
			return u, nil
		}
	}
	return types.User{}, store.ErrNotFound
}

func (m memoryUsers) Create(_ context.Context, user types.User) (types.User, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	m.s.nextID++
	user.ID = fmt.Sprintf("u%d", m.s.nextID)
	m.s.users = append(m.s.users, user)
	return user, nil
}

type memoryBooks struct{ s *memoryStore }

func (m memoryBooks) ValidID(id string) bool {
	return strings.HasPrefix(id, "b") && len(id) > 1
}

func (m memoryBooks) List(_ context.Context, filter types.BookFilter) ([]types.Book, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	if m.s.fail != nil {
		return nil, m.s.fail
	}
	out := make([]types.Book, 0)
	for _, b := range m.s.books {
		if filter.MinPages != nil && (b.Pages == nil || *b.Pages < *filter.MinPages) {
			continue
		}
		if filter.Genre != nil && !contains(b.Genre, *filter.Genre) {
			continue
		}
		out = append(out, m.resolve(b))
	}
	return out, nil
}

func (m memoryBooks) Get(_ context.Context, id string) (types.Book, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	for _, b := range m.s.books {
		if b.ID == id {
			return m.resolve(b), nil
		}
	}
	return types.Book{}, store.ErrNotFound
}

func (m memoryBooks) Create(_ context.Context, book types.Book) (types.Book, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	m.s.nextID++
	book.ID = fmt.Sprintf("b%d", m.s.nextID)
	m.s.books = append(m.s.books, book)
	return m.resolve(book), nil
}

func (m memoryBooks) Update(_ context.Context, id string, c types.BookUpdate) (types.Book, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	for i := range m.s.books {
		b := &m.s.books[i]
		if b.ID != id {
			continue
		}
		if c.Title != nil {
			b.Title = *c.Title
		}
		if c.Pages != nil {
			b.Pages = c.Pages
		}
		if c.CoverKey != nil {
			b.CoverKey = *c.CoverKey
		}
		return m.resolve(*b), nil
	}
	return types.Book{}, store.ErrNotFound
}

func (m memoryBooks) Delete(_ context.Context, id string) (types.Book, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	for i, b := range m.s.books {
		if b.ID == id {
			m.s.books = append(m.s.books[:i], m.s.books[i+1:]...)
			return m.resolve(b), nil
		}
	}
	return types.Book{}, store.ErrNotFound
}

// resolve must be called with the lock held.
func (m memoryBooks) resolve(b types.Book) types.Book {
	for _, u := range m.s.users {
		if u.ID == b.OwnerID {
			owner := u.Public()
			b.Owner = &owner
		}
	}
	return b
}

func contains(values []string, v string) bool {
	for _, value := range values {
		if value == v {
			return true
		}
	}
	return false
}

type memoryObjects struct {
	mu      sync.Mutex
	objects map[string][]byte
}

func (m *memoryObjects) Put(_ context.Context, key string, r io.Reader, _ int64, _ string) error {
	data, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.objects[key] = data
	return nil
}

func (m *memoryObjects) Get(_ context.Context, key string) (io.ReadCloser, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	data, ok := m.objects[key]
	if !ok {
		return nil, storage.ErrObjectNotFound
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

func (m *memoryObjects) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.objects, key)
	return nil
}

type testAPI struct {
	router http.Handler
	store  *memoryStore
	tokens *auth.TokenIssuer
}

type apiOptions struct {
	covers services.CoverStorage
}

func newTestAPI(t *testing.T, opts apiOptions) *testAPI {
	t.Helper()
	st := &memoryStore{}
	tokens := auth.NewTokenIssuer("handler-test-secret", "test", 10*time.Minute)
	v := validation.New()

	userService := services.NewUserService(memoryUsers{st}, tokens, v)
	bookService := services.NewBookService(memoryBooks{st}, v, opts.covers, nil, zerolog.Nop())

	requireAuth := RequireAuth(tokens)
	r := chi.NewRouter()
	r.Get("/healthz", Healthz)
	r.Route("/api/auth", func(r chi.Router) {
		AuthRouter(r, userService, requireAuth)
	})
	r.Route("/api/books", func(r chi.Router) {
		BookRouter(r, bookService, requireAuth)
	})

	return &testAPI{router: r, store: st, tokens: tokens}
}

func (a *testAPI) do(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	switch b := body.(type) {
	case nil:
	case string:
		reader = strings.NewReader(b)
	default:
		data, err := json.Marshal(b)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	}

	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	a.router.ServeHTTP(rec, req)
	return rec
}

// login registers an account and returns a token for it.
func (a *testAPI) login(t *testing.T, email string) string {
	t.Helper()
	rec := a.do(t, http.MethodPost, "/api/auth/register", "", map[string]any{"email": email, "password": "secret123"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = a.do(t, http.MethodPost, "/api/auth/login", "", map[string]any{"email": email, "password": "secret123"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp Response
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.NotEmpty(t, resp.Token)
	return resp.Token
}

type bookEnvelope struct {
	Success bool       `json:"success"`
	Data    types.Book `json:"data"`
}

type booksEnvelope struct {
	Success bool         `json:"success"`
	Data    []types.Book `json:"data"`
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) ErrorResponse {
	t.Helper()
	var resp ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp), rec.Body.String())
	return resp
}
