package handlers

import (
	"errors"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"

	"github.com/fadedrop/fadedrop/internal/config"
	"github.com/fadedrop/fadedrop/internal/lifecycle"
	"github.com/fadedrop/fadedrop/internal/metrics"
	"github.com/fadedrop/fadedrop/internal/models"
	"github.com/fadedrop/fadedrop/internal/storage"
	"github.com/fadedrop/fadedrop/internal/utils"
	"github.com/fadedrop/fadedrop/internal/web"
)

// maxUploadBytes caps the whole multipart body: the largest allowed file
// (500MB video) plus form overhead.
const maxUploadBytes = 510 << 20

// multipartMemory is the in-memory threshold for multipart parsing; larger
// parts spill to temp files.
const multipartMemory = 32 << 20

// HomeHandler serves the upload form.
func HomeHandler(renderer *web.Renderer) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		renderer.Render(w, http.StatusOK, "home.html", web.HomeData{})
	}
}

// UploadHandler handles upload form submissions: it streams the files into
// storage, then hands the metadata to the lifecycle controller, which owns
// validation and record creation (and removes the stored files again if it
// rejects the request).
func UploadHandler(ctrl *lifecycle.Controller, files storage.Backend, renderer *web.Renderer, cfg *config.Config) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
		if err := r.ParseMultipartForm(multipartMemory); err != nil {
			metrics.UploadsTotal.WithLabelValues("validation_failed").Inc()
			renderer.Render(w, http.StatusBadRequest, "home.html", web.HomeData{
				Error: "Upload too large or malformed form data.",
			})
			return
		}
		defer r.MultipartForm.RemoveAll()

		mediaType, ok := models.ParseMediaType(r.FormValue("mediaType"))
		if !ok {
			metrics.UploadsTotal.WithLabelValues("validation_failed").Inc()
			renderer.Render(w, http.StatusBadRequest, "home.html", web.HomeData{
				Error: "Choose a media type: images, video or audio.",
			})
			return
		}

		headers := r.MultipartForm.File[string(mediaType)]

		var stored []models.FileMeta
		cleanup := func() {
			for _, f := range stored {
				if err := files.Delete(r.Context(), f.StoredPath); err != nil {
					slog.Error("failed to clean up stored file", "path", f.StoredPath, "error", err)
				}
			}
		}

		for _, header := range headers {
			meta, err := storeUploadedFile(r, files, mediaType, header)
			if err != nil {
				cleanup()

				var vErr *utils.ValidationError
				if errors.As(err, &vErr) {
					metrics.UploadsTotal.WithLabelValues("validation_failed").Inc()
					renderer.Render(w, http.StatusBadRequest, "home.html", web.HomeData{Error: vErr.Message})
					return
				}

				slog.Error("failed to store uploaded file", "filename", header.Filename, "error", err)
				metrics.UploadsTotal.WithLabelValues("failure").Inc()
				renderer.Render(w, http.StatusInternalServerError, "error.html", web.ErrorData{
					Status:  http.StatusInternalServerError,
					Message: "Something went wrong storing your upload. Please try again.",
				})
				return
			}
			stored = append(stored, meta)
			metrics.UploadSizeBytes.Observe(float64(meta.Size))
		}

		expiresValue, _ := strconv.Atoi(r.FormValue("expiresValue"))

		upload, err := ctrl.CreateUpload(r.Context(), lifecycle.CreateParams{
			MediaType:    mediaType,
			Files:        stored,
			ExpiresValue: expiresValue,
			ExpiresUnit:  r.FormValue("expiresUnit"),
			Password:     r.FormValue("password"),
		})
		if err != nil {
			// CreateUpload already removed the stored files.
			var vErr *utils.ValidationError
			if errors.As(err, &vErr) {
				metrics.UploadsTotal.WithLabelValues("validation_failed").Inc()
				renderer.Render(w, http.StatusBadRequest, "home.html", web.HomeData{Error: vErr.Message})
				return
			}

			slog.Error("failed to create upload", "error", err)
			metrics.UploadsTotal.WithLabelValues("failure").Inc()
			renderer.Render(w, http.StatusInternalServerError, "error.html", web.ErrorData{
				Status:  http.StatusInternalServerError,
				Message: "Something went wrong creating your link. Please try again.",
			})
			return
		}

		metrics.UploadsTotal.WithLabelValues("success").Inc()

		renderer.Render(w, http.StatusOK, "created.html", web.CreatedData{
			UploadID:     upload.ID,
			ViewURL:      buildViewURL(r, cfg, upload.ID),
			DashboardURL: buildDashboardURL(r, cfg, upload.ID, upload.DashboardKey),
			ExpiresLabel: web.TimeRemaining(time.Until(upload.Expiration.ExpiresAt)),
		})
	}
}

// storeUploadedFile sniffs, validates and stores one multipart file,
// returning its metadata. The content type comes from the actual bytes;
// the client-declared header is ignored.
func storeUploadedFile(r *http.Request, files storage.Backend, mediaType models.MediaType, header *multipart.FileHeader) (models.FileMeta, error) {
	file, err := header.Open()
	if err != nil {
		return models.FileMeta{}, err
	}
	defer file.Close()

	detected, err := mimetype.DetectReader(file)
	if err != nil {
		return models.FileMeta{}, err
	}
	if _, err := file.Seek(0, io.SeekStart); err != nil {
		return models.FileMeta{}, err
	}

	if err := utils.ValidateFile(mediaType, header.Filename, header.Size, detected.String()); err != nil {
		return models.FileMeta{}, err
	}

	ext := strings.ToLower(filepath.Ext(header.Filename))
	storedName := uuid.NewString() + ext
	key := string(mediaType) + "/" + storedName

	path, err := files.Store(r.Context(), key, file, header.Size)
	if err != nil {
		return models.FileMeta{}, err
	}

	return models.FileMeta{
		FieldName:        string(mediaType),
		StoredFilename:   storedName,
		StoredPath:       path,
		OriginalFilename: header.Filename,
		MimeType:         detected.String(),
		Size:             header.Size,
	}, nil
}
