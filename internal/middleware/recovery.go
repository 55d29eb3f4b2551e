package middleware

import (
	"log/slog"
	"net/http"
	"runtime/debug"

	"github.com/fadedrop/fadedrop/internal/metrics"
)

// RecoveryMiddleware recovers from panics and returns a plain-text 500.
// The template renderer is not available this far down the chain, and a
// panic may fire mid-render anyway, so the fallback stays renderer-free.
func RecoveryMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if err := recover(); err != nil {
				slog.Error("panic recovered",
					"error", err,
					"path", r.URL.Path,
					"method", r.Method,
					"stack", string(debug.Stack()),
				)

				metrics.ErrorsTotal.WithLabelValues("panic").Inc()

				http.Error(w, "Internal server error", http.StatusInternalServerError)
			}
		}()

		next.ServeHTTP(w, r)
	})
}
