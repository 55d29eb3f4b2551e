package utils

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/fadedrop/fadedrop/internal/models"
)

// ValidationError is a user-facing upload validation failure. It is safe to
// render its message back to the uploader.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

// NewValidationError creates a ValidationError with the given message.
func NewValidationError(format string, args ...any) *ValidationError {
	return &ValidationError{Message: fmt.Sprintf(format, args...)}
}

// MediaRules describes the per-media-type upload constraints.
type MediaRules struct {
	MinFiles    int
	MaxFiles    int
	MaxFileSize int64
	MimePrefix  string
	Extensions  map[string]bool
}

var mediaRules = map[models.MediaType]MediaRules{
	models.MediaImages: {
		MinFiles:    1,
		MaxFiles:    10,
		MaxFileSize: 15 << 20, // 15MB
		MimePrefix:  "image/",
		Extensions:  extSet(".jpg", ".jpeg", ".png", ".gif", ".webp", ".avif", ".bmp"),
	},
	models.MediaVideo: {
		MinFiles:    1,
		MaxFiles:    1,
		MaxFileSize: 500 << 20, // 500MB
		MimePrefix:  "video/",
		Extensions:  extSet(".mp4", ".webm", ".mov", ".mkv", ".m4v"),
	},
	models.MediaAudio: {
		MinFiles:    1,
		MaxFiles:    2,
		MaxFileSize: 50 << 20, // 50MB
		MimePrefix:  "audio/",
		Extensions:  extSet(".mp3", ".wav", ".ogg", ".oga", ".m4a", ".flac", ".aac"),
	},
}

func extSet(exts ...string) map[string]bool {
	set := make(map[string]bool, len(exts))
	for _, e := range exts {
		set[e] = true
	}
	return set
}

// RulesFor returns the upload constraints for a media type.
func RulesFor(mediaType models.MediaType) (MediaRules, bool) {
	rules, ok := mediaRules[mediaType]
	return rules, ok
}

// ValidateFileCount checks the number of files against the media type's
// allowed range.
func ValidateFileCount(mediaType models.MediaType, count int) error {
	rules, ok := mediaRules[mediaType]
	if !ok {
		return NewValidationError("unsupported media type %q", mediaType)
	}
	if count < rules.MinFiles {
		return NewValidationError("please choose at least one file to upload")
	}
	if count > rules.MaxFiles {
		switch mediaType {
		case models.MediaVideo:
			return NewValidationError("you can upload only 1 video file per upload")
		case models.MediaAudio:
			return NewValidationError("you can upload up to 2 audio files per upload")
		default:
			return NewValidationError("you can upload up to 10 images per upload")
		}
	}
	return nil
}

// ValidateFile checks one file's size, extension and sniffed content type
// against the media type's allow-lists. detectedMIME is the content type
// sniffed from the actual bytes, not the client-declared header.
func ValidateFile(mediaType models.MediaType, filename string, size int64, detectedMIME string) error {
	rules, ok := mediaRules[mediaType]
	if !ok {
		return NewValidationError("unsupported media type %q", mediaType)
	}

	if size <= 0 {
		return NewValidationError("%s is empty", filename)
	}
	if size > rules.MaxFileSize {
		return NewValidationError("%s exceeds the %dMB limit for %s uploads",
			filename, rules.MaxFileSize>>20, mediaType)
	}

	ext := strings.ToLower(filepath.Ext(filename))
	if !rules.Extensions[ext] {
		return NewValidationError("%s has an unsupported file extension for %s uploads", filename, mediaType)
	}

	if !strings.HasPrefix(detectedMIME, rules.MimePrefix) {
		return NewValidationError("%s does not look like a %s file", filename, strings.TrimSuffix(rules.MimePrefix, "/"))
	}

	return nil
}

// ValidateStoredFilename rejects stored filenames that could escape the
// storage directory. Stored names are generated server-side, so anything
// else indicates corruption or tampering.
func ValidateStoredFilename(filename string) error {
	if filename == "" {
		return fmt.Errorf("empty stored filename")
	}
	if strings.Contains(filename, "..") || strings.ContainsAny(filename, "/\\") {
		return fmt.Errorf("invalid stored filename: %s", filename)
	}
	return nil
}
