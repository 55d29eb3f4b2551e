package handlers

import (
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/fadedrop/fadedrop/internal/auth"
	"github.com/fadedrop/fadedrop/internal/lifecycle"
	"github.com/fadedrop/fadedrop/internal/metrics"
	"github.com/fadedrop/fadedrop/internal/models"
	"github.com/fadedrop/fadedrop/internal/storage"
	"github.com/fadedrop/fadedrop/internal/store"
	"github.com/fadedrop/fadedrop/internal/web"
)

// goneData maps a Gone reason to the viewer-facing page content.
func goneData(reason lifecycle.GoneReason) web.GoneData {
	switch reason {
	case lifecycle.GoneExpired:
		return web.GoneData{
			Title:   "This link has expired",
			Message: "The content is no longer available.",
		}
	case lifecycle.GoneViewLimit:
		return web.GoneData{
			Title:   "View limit reached",
			Message: "This link has been viewed as many times as its owner allowed.",
		}
	case lifecycle.GoneDeletedManual:
		return web.GoneData{
			Title:   "This content was deleted",
			Message: "The uploader removed this content.",
		}
	default:
		return web.GoneData{
			Title:   "This content is gone",
			Message: "The content expired and has been deleted.",
		}
	}
}

// notFoundData is the page for ids that never existed (or whose records
// are long gone). Kept close to the deleted page so the two don't leak
// much signal about which case applies.
var notFoundData = web.GoneData{
	Title:   "Link not found",
	Message: "This link does not exist or is no longer available.",
}

// ViewHandler serves the public view page. A successful render counts as
// exactly one view; every denied outcome leaves the count untouched.
func ViewHandler(ctrl *lifecycle.Controller, renderer *web.Renderer) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := r.PathValue("id")
		token := auth.ViewerToken(r, id)

		upload, err := ctrl.View(r.Context(), id, token)
		if err != nil {
			switch {
			case errors.Is(err, store.ErrNotFound):
				metrics.ViewsTotal.WithLabelValues("gone").Inc()
				renderer.Render(w, http.StatusNotFound, "gone.html", notFoundData)
			case errors.Is(err, lifecycle.ErrPasswordRequired):
				metrics.ViewsTotal.WithLabelValues("password_required").Inc()
				renderer.Render(w, http.StatusOK, "password.html", web.PasswordData{
					UploadID: id,
					Error:    r.URL.Query().Get("error") == "invalid",
				})
			default:
				if ge, ok := lifecycle.AsGone(err); ok {
					metrics.ViewsTotal.WithLabelValues("gone").Inc()
					renderer.Render(w, http.StatusGone, "gone.html", goneData(ge.Reason))
					return
				}
				slog.Error("view failed", "upload_id", id, "error", err)
				renderer.Render(w, http.StatusInternalServerError, "error.html", web.ErrorData{
					Status:  http.StatusInternalServerError,
					Message: "Something went wrong. Please try again.",
				})
			}
			return
		}

		metrics.ViewsTotal.WithLabelValues("success").Inc()

		mediaFiles := upload.MediaFiles()
		viewFiles := make([]web.ViewFile, 0, len(mediaFiles))
		for _, f := range mediaFiles {
			viewFiles = append(viewFiles, web.ViewFile{
				URL:      "/media/" + upload.ID + "/" + f.StoredFilename,
				Name:     f.OriginalFilename,
				MimeType: f.MimeType,
			})
		}

		renderer.Render(w, http.StatusOK, "view.html", web.ViewData{
			UploadID:         upload.ID,
			MediaType:        string(upload.MediaType),
			Files:            viewFiles,
			CountdownVisible: upload.CountdownVisible,
			TimeLeft:         web.TimeRemaining(time.Until(upload.Expiration.ExpiresAt)),
		})
	}
}

// ViewPasswordHandler checks a submitted viewer password and, on success,
// issues the password-epoch cookie and redirects back to the view page.
func ViewPasswordHandler(ctrl *lifecycle.Controller, renderer *web.Renderer) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := r.PathValue("id")

		_, upload, err := ctrl.VerifyViewerPassword(r.Context(), id, r.FormValue("password"))
		if err != nil {
			switch {
			case errors.Is(err, store.ErrNotFound):
				renderer.Render(w, http.StatusNotFound, "gone.html", notFoundData)
			case errors.Is(err, lifecycle.ErrInvalidPassword):
				metrics.ViewsTotal.WithLabelValues("password_failed").Inc()
				http.Redirect(w, r, "/v/"+id+"?error=invalid", http.StatusSeeOther)
			default:
				if ge, ok := lifecycle.AsGone(err); ok {
					renderer.Render(w, http.StatusGone, "gone.html", goneData(ge.Reason))
					return
				}
				slog.Error("password check failed", "upload_id", id, "error", err)
				renderer.Render(w, http.StatusInternalServerError, "error.html", web.ErrorData{
					Status:  http.StatusInternalServerError,
					Message: "Something went wrong. Please try again.",
				})
			}
			return
		}

		if token := auth.IssueViewerToken(upload); token != "" {
			auth.SetViewerCookie(w, upload, token, time.Now())
		}
		http.Redirect(w, r, "/v/"+id, http.StatusSeeOther)
	}
}

// MediaHandler streams stored bytes to an authorized viewer. Loading a
// page with several images issues several media requests but still counts
// as the single view recorded by ViewHandler.
func MediaHandler(ctrl *lifecycle.Controller, files storage.Backend) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := r.PathValue("id")
		filename := r.PathValue("filename")
		token := auth.ViewerToken(r, id)

		upload, err := ctrl.Peek(r.Context(), id, token)
		if err != nil {
			switch {
			case errors.Is(err, store.ErrNotFound):
				http.NotFound(w, r)
			case errors.Is(err, lifecycle.ErrPasswordRequired):
				http.Error(w, "Unauthorized", http.StatusUnauthorized)
			default:
				if _, ok := lifecycle.AsGone(err); ok {
					http.Error(w, "Gone", http.StatusGone)
					return
				}
				slog.Error("media access failed", "upload_id", id, "error", err)
				http.Error(w, "Internal server error", http.StatusInternalServerError)
			}
			return
		}

		var meta *models.FileMeta
		for _, f := range upload.MediaFiles() {
			if f.StoredFilename == filename {
				meta = &f
				break
			}
		}
		if meta == nil {
			http.NotFound(w, r)
			return
		}

		rc, size, err := files.Retrieve(r.Context(), meta.StoredPath)
		if err != nil {
			if errors.Is(err, storage.ErrNotFound) {
				http.NotFound(w, r)
				return
			}
			slog.Error("failed to retrieve stored file", "path", meta.StoredPath, "error", err)
			http.Error(w, "Internal server error", http.StatusInternalServerError)
			return
		}
		defer rc.Close()

		w.Header().Set("Content-Type", meta.MimeType)
		if size > 0 {
			w.Header().Set("Content-Length", strconv.FormatInt(size, 10))
		}
		w.Header().Set("Cache-Control", "private, no-store")

		if _, err := io.Copy(w, rc); err != nil {
			slog.Debug("media stream interrupted", "upload_id", id, "error", err)
		}
	}
}
