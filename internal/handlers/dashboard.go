package handlers

import (
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/fadedrop/fadedrop/internal/auth"
	"github.com/fadedrop/fadedrop/internal/config"
	"github.com/fadedrop/fadedrop/internal/lifecycle"
	"github.com/fadedrop/fadedrop/internal/metrics"
	"github.com/fadedrop/fadedrop/internal/models"
	"github.com/fadedrop/fadedrop/internal/store"
	"github.com/fadedrop/fadedrop/internal/web"
)

// dashboardMessages maps redirect feedback codes to success banners.
var dashboardMessages = map[string]string{
	"expMessage=extended": "Expiration extended.",
	"viewMessage=set":     "View limit updated.",
	"viewMessage=removed": "View limit removed.",
	"pwMessage=set":       "Password set. Existing viewer sessions were signed out.",
	"pwMessage=changed":   "Password changed. Existing viewer sessions were signed out.",
	"pwMessage=removed":   "Password removed.",
	"cdMessage=shown":     "Viewers will now see the countdown.",
	"cdMessage=hidden":    "The countdown is now hidden from viewers.",
	"delMessage=deleted":  "Upload deleted. The share link no longer works.",
}

// dashboardErrors maps redirect feedback codes to error banners.
var dashboardErrors = map[string]string{
	"expError=invalid":        "That extension amount is not allowed.",
	"expError=tooFar":         "Expiration cannot be more than 30 days from now.",
	"viewError=invalid":       "View limit must be a number between 1 and 100000.",
	"viewError=mode":          "Invalid view limit action.",
	"pwError=empty":           "Password cannot be empty.",
	"pwError=currentRequired": "Enter the current password first.",
	"pwError=currentInvalid":  "The current password is wrong.",
	"pwError=mode":            "Invalid password action.",
	"cdError=invalid":         "Invalid countdown action.",
	"anyError=alreadyDeleted": "This upload was already deleted.",
}

// feedbackBanners extracts the success and error banners from the redirect
// query parameters.
func feedbackBanners(q url.Values) (message, errorMessage string) {
	for code, text := range dashboardMessages {
		if k, v, _ := strings.Cut(code, "="); q.Get(k) == v {
			message = text
		}
	}
	for code, text := range dashboardErrors {
		if k, v, _ := strings.Cut(code, "="); q.Get(k) == v {
			errorMessage = text
		}
	}
	return message, errorMessage
}

// extendLabel humanizes an allow-listed increment for the dashboard form.
func extendLabel(d time.Duration) string {
	if d < 24*time.Hour {
		h := int(d / time.Hour)
		if h == 1 {
			return "1 hour"
		}
		return strconv.Itoa(h) + " hours"
	}
	days := int(d / (24 * time.Hour))
	if days == 1 {
		return "1 day"
	}
	return strconv.Itoa(days) + " days"
}

// DashboardHandler renders the management page for an upload.
// Unknown ids get a distinct not-found page here; the mutation subroutes
// below intentionally do not make that distinction.
func DashboardHandler(ctrl *lifecycle.Controller, renderer *web.Renderer, cfg *config.Config) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := r.PathValue("id")
		key := r.URL.Query().Get("key")

		upload, err := ctrl.Dashboard(r.Context(), id, key)
		if err != nil {
			switch {
			case errors.Is(err, store.ErrNotFound):
				renderer.Render(w, http.StatusNotFound, "gone.html", notFoundData)
			case errors.Is(err, auth.ErrUnauthorized):
				renderer.Render(w, http.StatusUnauthorized, "error.html", web.ErrorData{
					Status:  http.StatusUnauthorized,
					Message: "This dashboard link is not valid.",
				})
			default:
				slog.Error("dashboard load failed", "upload_id", id, "error", err)
				renderer.Render(w, http.StatusInternalServerError, "error.html", web.ErrorData{
					Status:  http.StatusInternalServerError,
					Message: "Something went wrong. Please try again.",
				})
			}
			return
		}

		now := time.Now()
		message, errorMessage := feedbackBanners(r.URL.Query())

		files := upload.MediaFiles()
		rows := make([]web.DashboardFile, 0, len(files))
		for _, f := range files {
			rows = append(rows, web.DashboardFile{
				Name: f.OriginalFilename,
				Size: f.Size,
				Mime: f.MimeType,
			})
		}

		options := make([]web.ExtendOption, 0, 8)
		for _, inc := range lifecycle.ExtendIncrements() {
			options = append(options, web.ExtendOption{
				Millis: inc.Milliseconds(),
				Label:  extendLabel(inc),
			})
		}

		renderer.Render(w, http.StatusOK, "dashboard.html", web.DashboardData{
			UploadID:     upload.ID,
			ViewURL:      buildViewURL(r, cfg, upload.ID),
			StatusLabel:  statusLabel(upload, lifecycle.IsExpired(upload, now), upload.ViewLimitReached()),
			Deleted:      upload.Deleted,
			MediaType:    string(upload.MediaType),
			Files:        rows,
			CreatedAt:    upload.CreatedAt.UTC().Format(time.RFC1123),
			ExpiresAt:    upload.Expiration.ExpiresAt.UTC().Format(time.RFC1123),
			TimeLeft:     web.TimeRemaining(upload.Expiration.ExpiresAt.Sub(now)),
			ViewCount:    upload.ViewCount,
			MaxViews:     upload.MaxViews,
			HasPassword:  upload.Password != nil,
			CountdownOn:  upload.CountdownVisible,
			ExtendKey:    key,
			Increments:   options,
			Message:      message,
			ErrorMessage: errorMessage,
		})
	}
}

// redirectDashboard sends the browser back to the dashboard with a
// feedback code in the query string.
func redirectDashboard(w http.ResponseWriter, r *http.Request, id, key, code string) {
	http.Redirect(w, r, "/dashboard/"+id+"?key="+url.QueryEscape(key)+"&"+code, http.StatusSeeOther)
}

// mutationError writes the unified response for failed dashboard mutations.
// Unknown id and wrong key produce the same generic 401, so the mutation
// endpoints cannot be used to probe which ids exist.
func mutationError(renderer *web.Renderer, w http.ResponseWriter) {
	renderer.Render(w, http.StatusUnauthorized, "error.html", web.ErrorData{
		Status:  http.StatusUnauthorized,
		Message: "This dashboard link is not valid.",
	})
}

// handleMutation runs one dashboard mutation and translates its outcome
// into a redirect-with-feedback or the unified 401.
func handleMutation(renderer *web.Renderer, w http.ResponseWriter, r *http.Request, id, key string,
	op func() error, successCode string, errCodes map[error]string) {

	err := op()
	if err == nil {
		redirectDashboard(w, r, id, key, successCode)
		return
	}

	if errors.Is(err, store.ErrNotFound) || errors.Is(err, auth.ErrUnauthorized) {
		mutationError(renderer, w)
		return
	}
	if errors.Is(err, lifecycle.ErrAlreadyDeleted) {
		redirectDashboard(w, r, id, key, "anyError=alreadyDeleted")
		return
	}
	for sentinel, code := range errCodes {
		if errors.Is(err, sentinel) {
			redirectDashboard(w, r, id, key, code)
			return
		}
	}

	slog.Error("dashboard mutation failed", "upload_id", id, "error", err)
	renderer.Render(w, http.StatusInternalServerError, "error.html", web.ErrorData{
		Status:  http.StatusInternalServerError,
		Message: "Something went wrong. Please try again.",
	})
}

// ExtendExpirationHandler handles POST /dashboard/{id}/expiration.
func ExtendExpirationHandler(ctrl *lifecycle.Controller, renderer *web.Renderer) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := r.PathValue("id")
		key := r.URL.Query().Get("key")

		millis, parseErr := strconv.ParseInt(r.FormValue("extendBy"), 10, 64)
		if parseErr != nil {
			redirectDashboard(w, r, id, key, "expError=invalid")
			return
		}
		increment := time.Duration(millis) * time.Millisecond

		handleMutation(renderer, w, r, id, key,
			func() error {
				_, err := ctrl.ExtendExpiration(r.Context(), id, key, increment)
				return err
			},
			"expMessage=extended",
			map[error]string{
				lifecycle.ErrInvalidIncrement: "expError=invalid",
				lifecycle.ErrTooFarInFuture:   "expError=tooFar",
			})
	}
}

// SetViewLimitHandler handles POST /dashboard/{id}/views.
func SetViewLimitHandler(ctrl *lifecycle.Controller, renderer *web.Renderer) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := r.PathValue("id")
		key := r.URL.Query().Get("key")
		mode := r.FormValue("mode")

		value, _ := strconv.Atoi(r.FormValue("maxViews"))

		successCode := "viewMessage=set"
		if mode == "remove" {
			successCode = "viewMessage=removed"
		}

		handleMutation(renderer, w, r, id, key,
			func() error {
				_, err := ctrl.SetMaxViews(r.Context(), id, key, mode, value)
				return err
			},
			successCode,
			map[error]string{
				lifecycle.ErrInvalidViewLimit: "viewError=invalid",
				lifecycle.ErrInvalidViewMode:  "viewError=mode",
			})
	}
}

// SetPasswordHandler handles POST /dashboard/{id}/password.
func SetPasswordHandler(ctrl *lifecycle.Controller, renderer *web.Renderer) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := r.PathValue("id")
		key := r.URL.Query().Get("key")
		mode := r.FormValue("mode")

		successCode := "pwMessage=set"
		switch mode {
		case "change":
			successCode = "pwMessage=changed"
		case "remove":
			successCode = "pwMessage=removed"
		}

		handleMutation(renderer, w, r, id, key,
			func() error {
				_, err := ctrl.SetPassword(r.Context(), id, key, mode,
					r.FormValue("password"), r.FormValue("currentPassword"))
				return err
			},
			successCode,
			map[error]string{
				lifecycle.ErrEmptyPassword:           "pwError=empty",
				lifecycle.ErrCurrentPasswordRequired: "pwError=currentRequired",
				lifecycle.ErrCurrentPasswordInvalid:  "pwError=currentInvalid",
				lifecycle.ErrInvalidPasswordMode:     "pwError=mode",
			})
	}
}

// SetCountdownHandler handles POST /dashboard/{id}/countdown.
func SetCountdownHandler(ctrl *lifecycle.Controller, renderer *web.Renderer) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := r.PathValue("id")
		key := r.URL.Query().Get("key")
		mode := r.FormValue("countdownMode")

		successCode := "cdMessage=shown"
		if mode == "hide" {
			successCode = "cdMessage=hidden"
		}

		handleMutation(renderer, w, r, id, key,
			func() error {
				_, err := ctrl.SetCountdownVisibility(r.Context(), id, key, mode)
				return err
			},
			successCode,
			map[error]string{
				lifecycle.ErrInvalidCountdownMode: "cdError=invalid",
			})
	}
}

// DeleteHandler handles POST /dashboard/{id}/delete.
func DeleteHandler(ctrl *lifecycle.Controller, renderer *web.Renderer) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := r.PathValue("id")
		key := r.URL.Query().Get("key")

		handleMutation(renderer, w, r, id, key,
			func() error {
				upload, err := ctrl.ManualDelete(r.Context(), id, key)
				if err == nil && upload.DeletedReason == models.DeletedManual {
					metrics.ManualDeletionsTotal.Inc()
				}
				return err
			},
			"delMessage=deleted",
			nil)
	}
}
