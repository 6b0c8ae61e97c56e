package httpapi

import (
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "lending_http_requests_total",
			Help: "Total number of HTTP requests to the lending API",
		},
		[]string{"method", "path", "status"},
	)

	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "lending_http_request_duration_seconds",
			Help:    "Duration of HTTP requests to the lending API in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)
)

// statusRecorder wraps a ResponseWriter to capture the status code and the
// number of bytes written.
type statusRecorder struct {
	http.ResponseWriter
	statusCode int
	written    int64
}

func newStatusRecorder(w http.ResponseWriter) *statusRecorder {
	return &statusRecorder{ResponseWriter: w, statusCode: http.StatusOK}
}

func (rec *statusRecorder) WriteHeader(code int) {
	rec.statusCode = code
	rec.ResponseWriter.WriteHeader(code)
}

func (rec *statusRecorder) Write(b []byte) (int, error) {
	n, err := rec.ResponseWriter.Write(b)
	rec.written += int64(n)

	return n, err
}

// Unwrap gives http.ResponseController access to the original ResponseWriter.
func (rec *statusRecorder) Unwrap() http.ResponseWriter {
	return rec.ResponseWriter
}

// RequestLogger returns a middleware that logs every HTTP request with
// method, path, status, duration, response size, and remote address. The
// log level follows the status code: info below 400, warn for 4xx, error
// for 5xx.
func RequestLogger(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			recorder := newStatusRecorder(w)

			next.ServeHTTP(recorder, r)

			level := slog.LevelInfo
			switch {
			case recorder.statusCode >= 500:
				level = slog.LevelError
			case recorder.statusCode >= 400:
				level = slog.LevelWarn
			}

			logger.LogAttrs(r.Context(), level, "http request",
				slog.String("method", r.Method),
				slog.String("path", r.URL.Path),
				slog.Int("status", recorder.statusCode),
				slog.Duration("duration", time.Since(start)),
				slog.Int64("bytes", recorder.written),
				slog.String("remote_addr", r.RemoteAddr),
			)
		})
	}
}

// MetricsMiddleware returns a middleware that records request counts and
// durations per method and normalized path.
func MetricsMiddleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			normalizedPath := normalizePath(r.URL.Path)

			recorder := newStatusRecorder(w)
			next.ServeHTTP(recorder, r)

			status := strconv.Itoa(recorder.statusCode)
			httpRequestsTotal.WithLabelValues(r.Method, normalizedPath, status).Inc()
			httpRequestDuration.WithLabelValues(r.Method, normalizedPath).Observe(time.Since(start).Seconds())
		})
	}
}

// normalizePath collapses ID path segments to placeholders so that label
// cardinality stays bounded.
//
//	/loans/5f0c…/return -> /loans/{loanID}/return
//	/copies/5f0c…       -> /copies/{copyID}
func normalizePath(path string) string {
	switch path {
	case routeLoans, routeLoansActive, routeLoansOverdue,
		routeSanctions, routeCopies,
		routeHealthLive, routeHealthReady, routeMetrics:
		return path
	}

	switch {
	case strings.HasPrefix(path, routeLoans+"/") && strings.HasSuffix(path, "/return"):
		return routeLoans + "/{loanID}/return"
	case strings.HasPrefix(path, routeCopies+"/"):
		return routeCopies + "/{copyID}"
	case strings.HasPrefix(path, routeSanctions+"/"):
		return routeSanctions + "/{borrowerID}"
	}

	return path
}
