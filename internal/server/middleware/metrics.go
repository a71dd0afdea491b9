package middleware

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/docgate/docgate/internal/observability"
)

// HTTP metric names. The telemetry system prefixes them with the namespace.
const (
	HTTPRequestsTotal     = "http_requests_total"
	HTTPRequestDuration   = "http_request_duration_ms"
	HTTPRequestSizeBytes  = "http_request_size_bytes"
	HTTPResponseSizeBytes = "http_response_size_bytes"
	HTTPErrorsTotal       = "http_errors_total"
	RelayDocumentsTotal   = "relay_documents_total"
)

const documentsRoute = "/v1/documents"

// knownRoutes bounds label cardinality when chi has no route pattern,
// which happens for 404s and middleware-level rejections.
var knownRoutes = map[string]string{
	"/health":         "/health/*",
	"/health/live":    "/health/*",
	"/health/ready":   "/health/*",
	"/health/startup": "/health/*",
	"/version":        "/version",
	"/metrics":        "/metrics",
	documentsRoute:    documentsRoute,
	"/admin/signal":   "/admin/signal",
	"/":               "/",
}

// statusRecorder captures the status code and body size written downstream.
type statusRecorder struct {
	http.ResponseWriter
	status      int
	wroteHeader bool
	written     int64
}

func (rw *statusRecorder) WriteHeader(code int) {
	if !rw.wroteHeader {
		rw.status = code
		rw.wroteHeader = true
	}
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *statusRecorder) Write(b []byte) (int, error) {
	if !rw.wroteHeader {
		rw.wroteHeader = true
	}
	n, err := rw.ResponseWriter.Write(b)
	rw.written += int64(n)
	return n, err
}

// Unwrap lets http.ResponseController reach the underlying writer.
func (rw *statusRecorder) Unwrap() http.ResponseWriter {
	return rw.ResponseWriter
}

func getEndpointPattern(r *http.Request) string {
	if rctx := chi.RouteContext(r.Context()); rctx != nil {
		if pattern := rctx.RoutePattern(); pattern != "" {
			return pattern
		}
	}
	if pattern, ok := knownRoutes[r.URL.Path]; ok {
		return pattern
	}
	return "/unknown"
}

func errorClass(status int) string {
	if status >= 500 {
		return "server_error"
	}
	return "client_error"
}

// RequestMetrics emits request counters, latency, and payload sizes, and logs
// one line per request. Document submissions are also counted by outcome.
func RequestMetrics(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sys := observability.TelemetrySystem
		if sys == nil {
			next.ServeHTTP(w, r)
			return
		}

		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		elapsed := time.Since(start)

		endpoint := getEndpointPattern(r)
		status := strconv.Itoa(rec.status)
		requestSize := r.ContentLength
		if requestSize < 0 {
			requestSize = 0
		}

		labels := map[string]string{"method": r.Method, "endpoint": endpoint, "status": status}
		sizeLabels := map[string]string{"method": r.Method, "endpoint": endpoint}

		_ = sys.Counter(HTTPRequestsTotal, 1, labels)
		_ = sys.Histogram(HTTPRequestDuration, elapsed, labels)
		_ = sys.Gauge(HTTPRequestSizeBytes, float64(requestSize), sizeLabels)
		_ = sys.Gauge(HTTPResponseSizeBytes, float64(rec.written), sizeLabels)

		if rec.status >= 400 {
			_ = sys.Counter(HTTPErrorsTotal, 1, map[string]string{
				"method":     r.Method,
				"endpoint":   endpoint,
				"status":     status,
				"error_type": errorClass(rec.status),
			})
		}

		if endpoint == documentsRoute && r.Method == http.MethodPost {
			outcome := "accepted"
			if rec.status >= 400 {
				outcome = "refused"
			}
			_ = sys.Counter(RelayDocumentsTotal, 1, map[string]string{"outcome": outcome, "status": status})
		}

		if observability.ServerLogger != nil {
			observability.ServerLogger.Info("HTTP request completed",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.String("endpoint", endpoint),
				zap.Int("status", rec.status),
				zap.Duration("duration", elapsed),
				zap.Int64("request_size", requestSize),
				zap.Int64("response_size", rec.written),
				zap.String("request_id", GetRequestID(r.Context())),
			)
		}
	})
}
