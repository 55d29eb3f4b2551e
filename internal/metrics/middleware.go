package metrics

import (
	"net/http"
	"strconv"
	"strings"
	"time"
)

// responseWriter wraps http.ResponseWriter to capture status code
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// Middleware instruments HTTP handlers with request metrics
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		wrapped := &responseWriter{
			ResponseWriter: w,
			statusCode:     http.StatusOK, // Default to 200 if WriteHeader not called
		}

		next.ServeHTTP(wrapped, r)

		duration := time.Since(start).Seconds()
		path := normalizePath(r.URL.Path)
		method := r.Method
		status := strconv.Itoa(wrapped.statusCode)

		HTTPRequestDuration.WithLabelValues(method, path).Observe(duration)
		HTTPRequestsTotal.WithLabelValues(method, path, status).Inc()
	})
}

// normalizePath normalizes URL paths for metric labels to avoid cardinality
// explosion: dynamic segments (upload ids, filenames) become placeholders.
func normalizePath(path string) string {
	switch {
	case path == "/":
		return "/"
	case path == "/status":
		return "/status"
	case path == "/health":
		return "/health"
	case path == "/metrics":
		return "/metrics"
	case path == "/upload":
		return "/upload"

	case strings.HasPrefix(path, "/v/"):
		if strings.HasSuffix(path, "/password") {
			return "/v/:id/password"
		}
		return "/v/:id"

	case strings.HasPrefix(path, "/media/"):
		return "/media/:id/:filename"

	case strings.HasPrefix(path, "/dashboard/"):
		for _, action := range []string{"expiration", "views", "password", "countdown", "delete"} {
			if strings.HasSuffix(path, "/"+action) {
				return "/dashboard/:id/" + action
			}
		}
		return "/dashboard/:id"

	default:
		return "/other"
	}
}
