package handlers

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/fadedrop/fadedrop/internal/lifecycle"
	"github.com/fadedrop/fadedrop/internal/models"
	"github.com/fadedrop/fadedrop/internal/web"
)

// setHealthCacheHeaders sets appropriate cache-control headers for health
// endpoints. Health checks should never be cached.
func setHealthCacheHeaders(w http.ResponseWriter) {
	w.Header().Set("Cache-Control", "no-store, no-cache, must-revalidate, max-age=0")
	w.Header().Set("Pragma", "no-cache")
	w.Header().Set("Expires", "0")
}

// HealthHandler returns service health as JSON for probes.
func HealthHandler(ctrl *lifecycle.Controller, startTime time.Time) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		setHealthCacheHeaders(w)

		stats, err := ctrl.Store().Stats(r.Context())
		if err != nil {
			slog.Error("health check failed to read store", "error", err)
			sendError(w, "Store unavailable", "STORE_UNAVAILABLE", http.StatusServiceUnavailable)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(models.HealthResponse{
			Status:         "ok",
			UptimeSeconds:  int64(time.Since(startTime).Seconds()),
			ActiveUploads:  stats.Active,
			DeletedUploads: stats.Deleted,
		})
	}
}

// StatusPageHandler renders the human-readable status page.
func StatusPageHandler(ctrl *lifecycle.Controller, renderer *web.Renderer, startTime time.Time) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		stats, err := ctrl.Store().Stats(r.Context())
		if err != nil {
			slog.Error("status page failed to read store", "error", err)
			renderer.Render(w, http.StatusServiceUnavailable, "error.html", web.ErrorData{
				Status:  http.StatusServiceUnavailable,
				Message: "Status temporarily unavailable.",
			})
			return
		}

		renderer.Render(w, http.StatusOK, "status.html", web.StatusData{
			Uptime:  time.Since(startTime).Round(time.Second).String(),
			Active:  stats.Active,
			Deleted: stats.Deleted,
		})
	}
}
