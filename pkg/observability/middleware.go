package observability

import (
	"net/http"
	"strconv"
	"strings"
	"time"
)

// MetricsMiddleware wraps an HTTP handler to record request metrics.
//
// It captures:
//   - missive_requests_total (counter): incremented per request with method, status class, and route labels
//   - missive_request_duration_seconds (histogram): request duration with method and route labels
//   - missive_requests_active (gauge): incremented while a request is in flight
func MetricsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		ActiveRequests.Inc()
		defer ActiveRequests.Dec()

		sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(sw, r)

		duration := time.Since(start).Seconds()
		route := RouteGroup(r.URL.Path)

		// Build a status class label like "2xx", "4xx", "5xx".
		statusStr := strconv.Itoa(sw.status/100) + "xx"

		RequestsTotal.WithLabelValues(r.Method, statusStr, route).Inc()
		RequestDuration.WithLabelValues(r.Method, route).Observe(duration)
	})
}

// RouteGroup maps a request path to a low-cardinality label. Path
// parameters (project and message ids) never reach the label.
func RouteGroup(path string) string {
	switch {
	case strings.HasPrefix(path, "/admin/message"):
		return "admin_message"
	case strings.HasPrefix(path, "/project"):
		return "project"
	case strings.HasPrefix(path, "/message/") && strings.HasSuffix(path, "/image"):
		return "attachment"
	case strings.HasPrefix(path, "/message/") && strings.HasSuffix(path, "/password"):
		return "password"
	case strings.HasPrefix(path, "/message/"):
		return "message"
	case strings.HasPrefix(path, "/dev/"):
		return "dev"
	case path == "/healthz" || path == "/readyz" || path == "/metrics":
		return "ops"
	default:
		return "other"
	}
}

// statusWriter wraps http.ResponseWriter to capture the status code.
type statusWriter struct {
	http.ResponseWriter
	status  int
	written bool
}

// WriteHeader captures the status code and delegates to the underlying writer.
func (w *statusWriter) WriteHeader(status int) {
	if !w.written {
		w.status = status
		w.written = true
	}
	w.ResponseWriter.WriteHeader(status)
}

// Write delegates to the underlying writer and marks the status as written.
func (w *statusWriter) Write(b []byte) (int, error) {
	if !w.written {
		w.written = true
	}
	return w.ResponseWriter.Write(b)
}

// Flush delegates to the underlying writer if it implements http.Flusher.
// Attachment downloads flush while copying.
func (w *statusWriter) Flush() {
	if f, ok := w.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

// Unwrap returns the underlying ResponseWriter, enabling http.ResponseController
// and similar utilities to access the original writer.
func (w *statusWriter) Unwrap() http.ResponseWriter {
	return w.ResponseWriter
}
