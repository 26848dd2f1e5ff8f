package services

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shelfkeeper/apiserver/internal/auth"
	"github.com/shelfkeeper/apiserver/internal/storage"
	"github.com/shelfkeeper/apiserver/internal/store"
	"github.com/shelfkeeper/apiserver/internal/validation"
	"github.com/shelfkeeper/apiserver/types"
)

// MaxCoverBytes is the largest accepted cover image.
const MaxCoverBytes = 5 << 20

var coverTypes = map[string]bool{
	"image/jpeg": true,
	"image/png":  true,
	"image/webp": true,
	"image/gif":  true,
}

// BookRepository defines persistence operations for books.
type BookRepository interface {
	ValidID(id string) bool
	List(ctx context.Context, filter types.BookFilter) ([]types.Book, error)
	Get(ctx context.Context, id string) (types.Book, error)
	Create(ctx context.Context, book types.Book) (types.Book, error)
	Update(ctx context.Context, id string, changes types.BookUpdate) (types.Book, error)
	Delete(ctx context.Context, id string) (types.Book, error)
}

// CoverStorage stores cover images by key.
type CoverStorage interface {
	Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) error
	Get(ctx context.Context, key string) (io.ReadCloser, error)
	Delete(ctx context.Context, key string) error
}

// EventPublisher announces committed catalog changes.
type EventPublisher interface {
	PublishBookEvent(ctx context.Context, event types.BookEvent) error
}

// BookService encapsulates book use-cases. Covers and events are optional;
// a nil CoverStorage disables cover operations and a nil EventPublisher
// disables events.
type BookService struct {
	repo      BookRepository
	validator *validation.Validator
	covers    CoverStorage
	events    EventPublisher
	logger    zerolog.Logger
	now       func() time.Time
}

func NewBookService(
	repo BookRepository,
	validator *validation.Validator,
	covers CoverStorage,
	events EventPublisher,
	logger zerolog.Logger,
) *BookService {
	return &BookService{
		repo:      repo,
		validator: validator,
		covers:    covers,
		events:    events,
		logger:    logger,
		now:       time.Now,
	}
}

// List returns the books matching filter. MinPages is a plain lower bound;
// a negative value matches every book with a known page count.
func (s *BookService) List(ctx context.Context, filter types.BookFilter) ([]types.Book, error) {
	return s.repo.List(ctx, filter)
}

// Create validates in and stores a book owned by the caller.
func (s *BookService) Create(ctx context.Context, caller auth.Identity, in types.BookInput) (types.Book, error) {
	in.Normalize()
	if err := s.validator.Struct(in); err != nil {
		return types.Book{}, err
	}
	date, err := types.ParseBookDate(in.Date)
	if err != nil {
		return types.Book{}, validation.FieldError("date", "must be a date in YYYY-MM-DD or RFC 3339 format")
	}

	created, err := s.repo.Create(ctx, types.Book{
		Title:     in.Title,
		Author:    in.Author,
		Date:      date,
		Genre:     in.Genre,
		Pages:     in.Pages,
		Editorial: in.Editorial,
		OwnerID:   caller.UserID,
	})
	if err != nil {
		return types.Book{}, fmt.Errorf("create book: %w", err)
	}

	s.publish(ctx, types.BookCreated, caller, created)
	return created, nil
}

// Update applies the fields present in patch to the book with the given id.
func (s *BookService) Update(ctx context.Context, caller auth.Identity, id string, patch types.BookPatch) (types.Book, error) {
	if !s.repo.ValidID(id) {
		return types.Book{}, ErrInvalidID
	}
	patch.Normalize()
	if err := s.validator.Struct(patch); err != nil {
		return types.Book{}, err
	}

	if patch.Empty() {
		return s.get(ctx, id)
	}

	changes := types.BookUpdate{
		Title:     patch.Title,
		Author:    patch.Author,
		Pages:     patch.Pages,
		Editorial: patch.Editorial,
	}
	if patch.Date != nil {
		date, err := types.ParseBookDate(*patch.Date)
		if err != nil {
			return types.Book{}, validation.FieldError("date", "must be a date in YYYY-MM-DD or RFC 3339 format")
		}
		changes.Date = &date
	}
	if patch.Genre != nil {
		changes.Genre = *patch.Genre
	}

	updated, err := s.repo.Update(ctx, id, changes)
	if err != nil {
		return types.Book{}, mapStoreError(err, "update book")
	}

	s.publish(ctx, types.BookUpdated, caller, updated)
	return updated, nil
}

// Delete removes the book with the given id and returns it.
func (s *BookService) Delete(ctx context.Context, caller auth.Identity, id string) (types.Book, error) {
	if !s.repo.ValidID(id) {
		return types.Book{}, ErrInvalidID
	}

	deleted, err := s.repo.Delete(ctx, id)
	if err != nil {
		return types.Book{}, mapStoreError(err, "delete book")
	}

	if deleted.CoverKey != "" && s.covers != nil {
		if err := s.covers.Delete(ctx, deleted.CoverKey); err != nil {
			s.logger.Warn().Err(err).Str("book_id", id).Str("key", deleted.CoverKey).Msg("failed to remove cover object")
		}
	}

	s.publish(ctx, types.BookDeleted, caller, deleted)
	return deleted, nil
}

// SetCover stores data as the cover image of the book with the given id.
// The image type is sniffed from the content, not taken from the client.
func (s *BookService) SetCover(ctx context.Context, caller auth.Identity, id string, data []byte) (types.Book, error) {
	if s.covers == nil {
		return types.Book{}, ErrStorageDisabled
	}
	if !s.repo.ValidID(id) {
		return types.Book{}, ErrInvalidID
	}
	if len(data) == 0 {
		return types.Book{}, validation.FieldError("cover", "is required")
	}
	if len(data) > MaxCoverBytes {
		return types.Book{}, validation.FieldError("cover", fmt.Sprintf("must be at most %d bytes", MaxCoverBytes))
	}
	contentType := http.DetectContentType(data)
	if !coverTypes[contentType] {
		return types.Book{}, validation.FieldError("cover", "must be a JPEG, PNG, WebP or GIF image")
	}

	if _, err := s.get(ctx, id); err != nil {
		return types.Book{}, err
	}

	key := coverKey(id)
	if err := s.covers.Put(ctx, key, bytes.NewReader(data), int64(len(data)), contentType); err != nil {
		return types.Book{}, fmt.Errorf("store cover: %w", err)
	}

	updated, err := s.repo.Update(ctx, id, types.BookUpdate{CoverKey: &key})
	if err != nil {
		return types.Book{}, mapStoreError(err, "update book cover")
	}

	s.publish(ctx, types.BookUpdated, caller, updated)
	return updated, nil
}

// Cover returns the cover image of the book with the given id and its
// content type.
func (s *BookService) Cover(ctx context.Context, id string) ([]byte, string, error) {
	if s.covers == nil {
		return nil, "", ErrStorageDisabled
	}
	if !s.repo.ValidID(id) {
		return nil, "", ErrInvalidID
	}

	book, err := s.get(ctx, id)
	if err != nil {
		return nil, "", err
	}
	if book.CoverKey == "" {
		return nil, "", ErrNoCover
	}

	rc, err := s.covers.Get(ctx, book.CoverKey)
	if err != nil {
		if errors.Is(err, storage.ErrObjectNotFound) {
			return nil, "", ErrNoCover
		}
		return nil, "", fmt.Errorf("open cover: %w", err)
	}
	defer rc.Close()

	data, err := io.ReadAll(io.LimitReader(rc, MaxCoverBytes+1))
	if err != nil {
		return nil, "", fmt.Errorf("read cover: %w", err)
	}
	return data, http.DetectContentType(data), nil
}

func (s *BookService) get(ctx context.Context, id string) (types.Book, error) {
	book, err := s.repo.Get(ctx, id)
	if err != nil {
		return types.Book{}, mapStoreError(err, "get book")
	}
	return book, nil
}

// publish emits an event for a committed change. Failures are logged and
// never surface to the caller.
func (s *BookService) publish(ctx context.Context, kind types.BookEventType, caller auth.Identity, book types.Book) {
	if s.events == nil {
		return
	}
	event := types.BookEvent{
		ID:     uuid.NewString(),
		Type:   kind,
		BookID: book.ID,
		UserID: caller.UserID,
		Title:  book.Title,
		At:     s.now().UTC(),
	}
	if err := s.events.PublishBookEvent(ctx, event); err != nil {
		s.logger.Error().Err(err).
			Str("event_type", string(kind)).
			Str("book_id", book.ID).
			Msg("failed to publish book event")
	}
}

func coverKey(bookID string) string {
	return "covers/" + bookID
}

func mapStoreError(err error, op string) error {
	if errors.Is(err, store.ErrNotFound) {
		return ErrNotFound
	}
	return fmt.Errorf("%s: %w", op, err)
}
