package handlers

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/fadedrop/fadedrop/internal/config"
	"github.com/fadedrop/fadedrop/internal/models"
)

// sendError writes a JSON error response for API-style endpoints.
func sendError(w http.ResponseWriter, message, code string, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(models.ErrorResponse{
		Error: message,
		Code:  code,
	})
}

// baseURL returns the externally visible base URL for building share links.
// Respects PUBLIC_URL config and reverse proxy headers.
func baseURL(r *http.Request, cfg *config.Config) string {
	if cfg.PublicURL != "" {
		return strings.TrimSuffix(cfg.PublicURL, "/")
	}
	return getScheme(r) + "://" + getHost(r)
}

// buildViewURL constructs the full public view URL for an upload.
func buildViewURL(r *http.Request, cfg *config.Config, uploadID string) string {
	return baseURL(r, cfg) + "/v/" + uploadID
}

// buildDashboardURL constructs the full private dashboard URL for an upload.
func buildDashboardURL(r *http.Request, cfg *config.Config, uploadID, dashboardKey string) string {
	return baseURL(r, cfg) + "/dashboard/" + uploadID + "?key=" + dashboardKey
}

// getScheme returns the scheme (http/https) respecting reverse proxy headers
func getScheme(r *http.Request) string {
	// Check X-Forwarded-Proto first (set by reverse proxies)
	if proto := r.Header.Get("X-Forwarded-Proto"); proto != "" {
		return proto
	}

	// Check if TLS is terminated at this server
	if r.TLS != nil {
		return "https"
	}

	return "http"
}

// getHost returns the host respecting reverse proxy headers
func getHost(r *http.Request) string {
	// Check X-Forwarded-Host first (set by reverse proxies)
	if host := r.Header.Get("X-Forwarded-Host"); host != "" {
		return host
	}

	// Fall back to Host header
	return r.Host
}

// statusLabel maps a record's lifecycle state to the dashboard status text.
func statusLabel(u *models.Upload, expired, limitReached bool) string {
	switch {
	case u.Deleted && u.DeletedReason == models.DeletedManual:
		return "Deleted by uploader"
	case u.Deleted:
		return "Automatically deleted"
	case limitReached:
		return "View limit reached"
	case expired:
		return "Expired"
	default:
		return "Active"
	}
}
