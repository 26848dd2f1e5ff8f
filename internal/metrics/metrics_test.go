package metrics

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHTTPMetricsMiddlewareUsesRoutePattern(t *testing.T) {
	Init()
	Init()

	r := chi.NewRouter()
	r.Use(HTTPMetricsMiddleware)
	r.Delete("/api/books/{id}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusCreated)
	})

	before := testutil.ToFloat64(httpRequestsTotal.WithLabelValues(http.MethodDelete, "/api/books/{id}", "201"))
	for _, id := range []string{"a", "b"} {
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, httptest.NewRequest(http.MethodDelete, "/api/books/"+id, nil))
		require.Equal(t, http.StatusCreated, rec.Code)
	}
	after := testutil.ToFloat64(httpRequestsTotal.WithLabelValues(http.MethodDelete, "/api/books/{id}", "201"))
	assert.Equal(t, 2.0, after-before)
}

func TestRecordEventPublish(t *testing.T) {
	before := testutil.ToFloat64(bookEventsPublishedTotal.WithLabelValues("book.created", "error"))
	RecordEventPublish("book.created", errors.New("boom"))
	RecordEventPublish("book.created", nil)
	assert.Equal(t, 1.0, testutil.ToFloat64(bookEventsPublishedTotal.WithLabelValues("book.created", "error"))-before)
}

func TestHandlerExposesMetrics(t *testing.T) {
	Init()
	RecordEventPublish("book.deleted", nil)

	rec := httptest.NewRecorder()
	Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, strings.Contains(rec.Body.String(), "book_events_published_total"))
}
