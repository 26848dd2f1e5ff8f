package metrics

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// HTTP metrics
	httpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_server_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "route", "status_code"},
	)

	httpRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_server_requests_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route", "status_code"},
	)

	// Broker metrics
	bookEventsPublishedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "book_events_published_total",
			Help: "Total number of book events handed to the message broker",
		},
		[]string{"type", "status"},
	)

	registerOnce sync.Once
)

// Init registers the metrics with the default registry. Repeated calls are
// no-ops.
func Init() {
	registerOnce.Do(func() {
		prometheus.MustRegister(
			httpRequestsTotal,
			httpRequestDuration,
			bookEventsPublishedTotal,
		)
	})
}

// HTTPMetricsMiddleware records HTTP metrics labelled with the matched chi
// route pattern, so path parameters do not explode label cardinality.
func HTTPMetricsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r)

		route := ""
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			route = rctx.RoutePattern()
		}
		if route == "" {
			route = "unmatched"
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		statusCode := strconv.Itoa(status)

		httpRequestsTotal.WithLabelValues(r.Method, route, statusCode).Inc()
		httpRequestDuration.WithLabelValues(r.Method, route, statusCode).Observe(time.Since(start).Seconds())
	})
}

// RecordEventPublish counts a publish attempt of the given event type.
func RecordEventPublish(eventType string, err error) {
	status := "ok"
	if err != nil {
		status = "error"
	}
	bookEventsPublishedTotal.WithLabelValues(eventType, status).Inc()
}

// Handler returns the Prometheus exposition handler.
func Handler() http.Handler {
	return promhttp.Handler()
}
