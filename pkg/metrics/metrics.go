package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cafe_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "cafe_http_request_duration_seconds",
			Help:    "Duration of HTTP requests",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
		[]string{"method", "path", "status"},
	)

	orderOperations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cafe_order_operations_total",
			Help: "Order operations by outcome kind",
		},
		[]string{"operation", "outcome"},
	)

	stockHoldsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cafe_stock_holds_total",
			Help: "Stock reservations and releases",
		},
		[]string{"action"},
	)
)

// Middleware records request counts and latency keyed by the chi route pattern.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r)

		path := r.URL.Path
		if rc := chi.RouteContext(r.Context()); rc != nil && rc.RoutePattern() != "" {
			path = rc.RoutePattern()
		}
		status := strconv.Itoa(ww.Status())
		httpRequestsTotal.WithLabelValues(r.Method, path, status).Inc()
		httpRequestDuration.WithLabelValues(r.Method, path, status).Observe(time.Since(start).Seconds())
	})
}

// RecordOperation counts one order operation; outcome is "success" or an error kind.
func RecordOperation(operation, outcome string) {
	orderOperations.WithLabelValues(operation, outcome).Inc()
}

// Operations is the counter behind RecordOperation, labelled by operation
// and outcome.
func Operations() *prometheus.CounterVec {
	return orderOperations
}

func RecordStock(action string, n int) {
	stockHoldsTotal.WithLabelValues(action).Add(float64(n))
}
