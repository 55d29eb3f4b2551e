package models

import "time"

// MediaType identifies what kind of media an upload holds.
// Fixed at creation.
type MediaType string

const (
	MediaImages MediaType = "images"
	MediaVideo  MediaType = "video"
	MediaAudio  MediaType = "audio"
)

// ParseMediaType returns the MediaType for a form value, or false if the
// value is not one of the supported types.
func ParseMediaType(s string) (MediaType, bool) {
	switch MediaType(s) {
	case MediaImages, MediaVideo, MediaAudio:
		return MediaType(s), true
	}
	return "", false
}

// DeletedReason records why an upload reached its terminal state.
type DeletedReason string

const (
	DeletedManual DeletedReason = "manual"
	DeletedAuto   DeletedReason = "auto"
)

// FileMeta describes one stored file belonging to an upload.
type FileMeta struct {
	FieldName        string `json:"field_name"`
	StoredFilename   string `json:"stored_filename"`
	StoredPath       string `json:"stored_path"`
	OriginalFilename string `json:"original_filename"`
	MimeType         string `json:"mime_type"`
	Size             int64  `json:"size"`
}

// Expiration holds the expiry schedule of an upload.
// AutoDeleteAt is ExpiresAt plus the configured grace period unless the
// upload was extended afterwards.
type Expiration struct {
	Value        int           `json:"value"`
	Unit         string        `json:"unit"` // "minutes", "hours" or "days"
	Duration     time.Duration `json:"duration_ms"`
	ExpiresAt    time.Time     `json:"expires_at"`
	AutoDeleteAt time.Time     `json:"auto_delete_at"`
}

// PasswordHash stores a derived password together with every parameter
// needed to re-verify it later. Parameters are kept per record so they can
// change over the lifetime of the system without invalidating old records.
type PasswordHash struct {
	Algorithm  string `json:"algorithm"`
	Iterations int    `json:"iterations"`
	KeyLen     int    `json:"keylen"`
	Digest     string `json:"digest"`
	Salt       string `json:"salt"`
	Hash       string `json:"hash"`
}

// Upload is the full state describing one shareable upload. It is owned by
// the upload store and mutated only through lifecycle operations.
type Upload struct {
	ID               string        `json:"id"`
	DashboardKey     string        `json:"dashboard_key"`
	MediaType        MediaType     `json:"media_type"`
	Files            []FileMeta    `json:"files"`
	Expiration       Expiration    `json:"expiration"`
	Password         *PasswordHash `json:"password,omitempty"`
	PasswordVersion  string        `json:"password_version,omitempty"` // empty = no password epoch
	CreatedAt        time.Time     `json:"created_at"`
	CountdownVisible bool          `json:"countdown_visible"`
	ViewCount        int           `json:"view_count"`
	MaxViews         *int          `json:"max_views,omitempty"` // nil = unlimited
	Deleted          bool          `json:"deleted"`
	DeletedAt        *time.Time    `json:"deleted_at,omitempty"`
	DeletedReason    DeletedReason `json:"deleted_reason,omitempty"`
}

// Clone returns a deep copy of the upload so callers outside the store's
// per-record critical section can never alias store-owned state.
func (u *Upload) Clone() *Upload {
	cp := *u
	if u.Files != nil {
		cp.Files = make([]FileMeta, len(u.Files))
		copy(cp.Files, u.Files)
	}
	if u.Password != nil {
		pw := *u.Password
		cp.Password = &pw
	}
	if u.MaxViews != nil {
		mv := *u.MaxViews
		cp.MaxViews = &mv
	}
	if u.DeletedAt != nil {
		at := *u.DeletedAt
		cp.DeletedAt = &at
	}
	return &cp
}

// MediaFiles returns the files that belong to the upload's media type.
// Files uploaded under a different form field are never served.
func (u *Upload) MediaFiles() []FileMeta {
	out := make([]FileMeta, 0, len(u.Files))
	for _, f := range u.Files {
		if f.FieldName == string(u.MediaType) {
			out = append(out, f)
		}
	}
	return out
}

// ViewLimitReached reports whether the view limit, if any, has been used up.
func (u *Upload) ViewLimitReached() bool {
	return u.MaxViews != nil && *u.MaxViews > 0 && u.ViewCount >= *u.MaxViews
}
