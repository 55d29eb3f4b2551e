// Package auth implements the access control gate: dashboard capability
// keys and viewer password-epoch cookies.
package auth

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/fadedrop/fadedrop/internal/models"
	"github.com/fadedrop/fadedrop/internal/utils"
)

// ErrUnauthorized is returned when a dashboard key or viewer token does not
// grant access to a record.
var ErrUnauthorized = errors.New("unauthorized")

const (
	viewerCookiePrefix = "fadedrop_view_"

	// Viewer cookie lifetime bounds. The cookie should not outlive the
	// upload, but a zero or near-zero Max-Age would break the flow right
	// after submitting a correct password. The 6h value is only a fallback
	// for records with no auto-delete time.
	viewerCookieMinAge     = 60 * time.Second
	viewerCookieDefaultAge = 6 * time.Hour
)

// AuthorizeDashboard reports whether the supplied key grants management
// access to the record. Failed attempts are logged with the upload id for
// audit; the key itself is only ever logged masked.
func AuthorizeDashboard(upload *models.Upload, suppliedKey string) bool {
	if suppliedKey != "" && suppliedKey == upload.DashboardKey {
		return true
	}

	slog.Warn("unauthorized dashboard access attempt",
		"upload_id", upload.ID,
		"supplied_key", utils.MaskKey(suppliedKey),
		"timestamp", time.Now().UTC().Format(time.RFC3339),
	)
	return false
}

// AuthorizeViewer reports whether the cookie token grants view access.
// Unprotected uploads are always viewable. Protected uploads require the
// token to match the current password version; rotating the password
// invalidates every previously issued cookie.
func AuthorizeViewer(upload *models.Upload, cookieToken string) bool {
	if upload.Password == nil {
		return true
	}
	return upload.PasswordVersion != "" && cookieToken == upload.PasswordVersion
}

// IssueViewerToken returns the token a viewer cookie must carry to pass
// AuthorizeViewer: the current password version.
func IssueViewerToken(upload *models.Upload) string {
	return upload.PasswordVersion
}

// CookieName returns the viewer cookie name for an upload. Scoping the name
// by id keeps cookies for different uploads independent.
func CookieName(uploadID string) string {
	return viewerCookiePrefix + uploadID
}

// ViewerCookieMaxAge computes the cookie lifetime in seconds: the full time
// until the upload's auto-delete, so a viewer of a long-lived protected link
// stays authorized until the content is gone. A 60s floor keeps a correct
// password submission from yielding an already-dead cookie; the 6h default
// applies only when the record carries no auto-delete time.
func ViewerCookieMaxAge(upload *models.Upload, now time.Time) int {
	age := viewerCookieDefaultAge
	if !upload.Expiration.AutoDeleteAt.IsZero() {
		age = upload.Expiration.AutoDeleteAt.Sub(now)
	}

	if age < viewerCookieMinAge {
		age = viewerCookieMinAge
	}

	return int(age / time.Second)
}

// SetViewerCookie writes the viewer-auth cookie for an upload. The token is
// a capability, not a secret beyond normal transport security, so HttpOnly
// plus SameSite=Lax is the appropriate scope.
func SetViewerCookie(w http.ResponseWriter, upload *models.Upload, token string, now time.Time) {
	http.SetCookie(w, &http.Cookie{
		Name:     CookieName(upload.ID),
		Value:    token,
		Path:     "/",
		MaxAge:   ViewerCookieMaxAge(upload, now),
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
}

// ViewerToken extracts the viewer cookie token from a request, if any.
func ViewerToken(r *http.Request, uploadID string) string {
	cookie, err := r.Cookie(CookieName(uploadID))
	if err != nil {
		return ""
	}
	return cookie.Value
}
