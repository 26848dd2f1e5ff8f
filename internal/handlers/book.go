package handlers

import (
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/shelfkeeper/apiserver/internal/services"
	"github.com/shelfkeeper/apiserver/internal/validation"
	"github.com/shelfkeeper/apiserver/types"
)

const (
	formFieldCover     = "cover"
	maxMultipartMemory = services.MaxCoverBytes + 1<<20
)

var errUploadTooLarge = errors.New("uploaded file too large")

// BookHandler provides HTTP handlers for books.
type BookHandler struct {
	bookService *services.BookService
}

// NewBookHandler constructs a handler with the provided service.
func NewBookHandler(bookService *services.BookService) *BookHandler {
	return &BookHandler{bookService: bookService}
}

// BookRouter registers book routes on the given router. Every route
// requires authentication.
func BookRouter(r chi.Router, bookService *services.BookService, authMiddleware func(http.Handler) http.Handler) {
	handler := NewBookHandler(bookService)

	r.Group(func(r chi.Router) {
		r.Use(authMiddleware)

		r.Get("/", handler.ListBooks)
		r.Post("/", handler.CreateBook)
		r.Patch("/{bookID}", handler.UpdateBook)
		r.Delete("/{bookID}", handler.DeleteBook)
		r.Put("/{bookID}/cover", handler.UploadCover)
		r.Get("/{bookID}/cover", handler.GetCover)
	})
}

func (h *BookHandler) ListBooks(w http.ResponseWriter, r *http.Request) {
	filter, err := parseBookFilter(r)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	books, err := h.bookService.List(r.Context(), filter)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	writeData(w, http.StatusOK, books)
}

func (h *BookHandler) CreateBook(w http.ResponseWriter, r *http.Request) {
	identity, ok := identityOrReject(w, r)
	if !ok {
		return
	}

	var in types.BookInput
	if err := decodeJSON(w, r, &in); err != nil {
		writeServiceError(w, r, err)
		return
	}

	created, err := h.bookService.Create(r.Context(), identity, in)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	writeData(w, http.StatusCreated, created)
}

func (h *BookHandler) UpdateBook(w http.ResponseWriter, r *http.Request) {
	identity, ok := identityOrReject(w, r)
	if !ok {
		return
	}

	var patch types.BookPatch
	if err := decodeJSON(w, r, &patch); err != nil {
		writeServiceError(w, r, err)
		return
	}

	updated, err := h.bookService.Update(r.Context(), identity, chi.URLParam(r, "bookID"), patch)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	writeData(w, http.StatusCreated, updated)
}

func (h *BookHandler) DeleteBook(w http.ResponseWriter, r *http.Request) {
	identity, ok := identityOrReject(w, r)
	if !ok {
		return
	}

	deleted, err := h.bookService.Delete(r.Context(), identity, chi.URLParam(r, "bookID"))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	writeData(w, http.StatusCreated, deleted)
}

// UploadCover stores the multipart "cover" file as the book's cover image.
func (h *BookHandler) UploadCover(w http.ResponseWriter, r *http.Request) {
	identity, ok := identityOrReject(w, r)
	if !ok {
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxMultipartMemory)
	if err := r.ParseMultipartForm(maxMultipartMemory); err != nil {
		writeServiceError(w, r, validation.FieldError(formFieldCover, "must be sent as multipart/form-data within 5 MiB"))
		return
	}

	data, err := parseCoverFile(r.MultipartForm)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	updated, err := h.bookService.SetCover(r.Context(), identity, chi.URLParam(r, "bookID"), data)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	writeData(w, http.StatusCreated, updated)
}

func (h *BookHandler) GetCover(w http.ResponseWriter, r *http.Request) {
	data, contentType, err := h.bookService.Cover(r.Context(), chi.URLParam(r, "bookID"))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	w.Header().Set("Cache-Control", "private, max-age=300")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

// parseBookFilter reads the optional author, genre and minPages query
// parameters. Blank values do not filter.
func parseBookFilter(r *http.Request) (types.BookFilter, error) {
	query := r.URL.Query()
	var filter types.BookFilter

	if author := strings.TrimSpace(query.Get("author")); author != "" {
		filter.Author = &author
	}
	if genre := strings.TrimSpace(query.Get("genre")); genre != "" {
		filter.Genre = &genre
	}
	if raw := strings.TrimSpace(query.Get("minPages")); raw != "" {
		minPages, err := strconv.Atoi(raw)
		if err != nil {
			return types.BookFilter{}, validation.FieldError("minPages", "must be an integer")
		}
		filter.MinPages = &minPages
	}
	return filter, nil
}

func parseCoverFile(form *multipart.Form) ([]byte, error) {
	if form == nil {
		return nil, validation.FieldError(formFieldCover, "is required")
	}

	files := form.File[formFieldCover]
	if len(files) == 0 {
		return nil, validation.FieldError(formFieldCover, "is required")
	}
	if len(files) > 1 {
		return nil, validation.FieldError(formFieldCover, "must be a single file")
	}

	file, err := files[0].Open()
	if err != nil {
		return nil, fmt.Errorf("open cover upload: %w", err)
	}
	data, err := readFileLimited(file, services.MaxCoverBytes)
	_ = file.Close()
	if err != nil {
		if errors.Is(err, errUploadTooLarge) {
			return nil, validation.FieldError(formFieldCover, "must be at most 5 MiB")
		}
		return nil, err
	}
	return data, nil
}

func readFileLimited(reader io.Reader, limit int64) ([]byte, error) {
	limited := io.LimitReader(reader, limit+1)
	data, err := io.ReadAll(limited)
	if err != nil {
		return nil, fmt.Errorf("read upload: %w", err)
	}
	if int64(len(data)) > limit {
		return nil, errUploadTooLarge
	}
	return data, nil
}
