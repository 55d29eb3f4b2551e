// Package lifecycle implements the upload lifecycle state machine: record
// creation, expiry and grace-period auto-deletion, view counting, and the
// dashboard mutation operations. Every operation runs inside the store's
// per-record critical section, so concurrent accesses to one upload
// serialize and the state machine's invariants hold under load.
package lifecycle

import (
	"context"
	"log/slog"
	"time"

	"github.com/fadedrop/fadedrop/internal/auth"
	"github.com/fadedrop/fadedrop/internal/metrics"
	"github.com/fadedrop/fadedrop/internal/models"
	"github.com/fadedrop/fadedrop/internal/storage"
	"github.com/fadedrop/fadedrop/internal/store"
	"github.com/fadedrop/fadedrop/internal/utils"
)

const (
	uploadIDBytes        = 10
	dashboardKeyBytes    = 12
	passwordVersionBytes = 8

	maxViewLimit = 100000
)

// Controller orchestrates all upload lifecycle transitions.
type Controller struct {
	store       store.UploadStore
	files       storage.Backend
	grace       time.Duration
	minDuration time.Duration
	allowMin    bool

	// Now is the clock used for all lifecycle decisions. Tests override it.
	Now func() time.Time
}

// NewController creates a Controller.
func NewController(st store.UploadStore, files storage.Backend, grace, minDuration time.Duration, allowMinutes bool) *Controller {
	return &Controller{
		store:       st,
		files:       files,
		grace:       grace,
		minDuration: minDuration,
		allowMin:    allowMinutes,
		Now:         time.Now,
	}
}

// Store exposes the underlying record store for read-only callers such as
// the health handler and the metrics collector.
func (c *Controller) Store() store.UploadStore {
	return c.store
}

// CreateParams carries everything the upload form submits. Files have
// already been written to storage by the handler; CreateUpload removes them
// again if validation fails, so a rejected request never leaves orphans.
type CreateParams struct {
	MediaType    models.MediaType
	Files        []models.FileMeta
	ExpiresValue int
	ExpiresUnit  string
	Password     string
}

// CreateUpload validates the request, builds the record and inserts it.
func (c *Controller) CreateUpload(ctx context.Context, params CreateParams) (*models.Upload, error) {
	now := c.Now()

	cleanup := func() { c.deleteFiles(ctx, params.Files) }

	media := make([]models.FileMeta, 0, len(params.Files))
	for _, f := range params.Files {
		if f.FieldName == string(params.MediaType) {
			media = append(media, f)
		}
	}

	if err := utils.ValidateFileCount(params.MediaType, len(media)); err != nil {
		cleanup()
		return nil, err
	}
	for _, f := range media {
		if err := utils.ValidateFile(params.MediaType, f.OriginalFilename, f.Size, f.MimeType); err != nil {
			cleanup()
			return nil, err
		}
	}

	expiration, err := BuildExpiration(params.ExpiresValue, params.ExpiresUnit, now, c.minDuration, c.grace, c.allowMin)
	if err != nil {
		cleanup()
		return nil, err
	}

	id, err := utils.GenerateHexToken(uploadIDBytes)
	if err != nil {
		cleanup()
		return nil, err
	}
	dashboardKey, err := utils.GenerateKey(dashboardKeyBytes)
	if err != nil {
		cleanup()
		return nil, err
	}

	upload := &models.Upload{
		ID:           id,
		DashboardKey: dashboardKey,
		MediaType:    params.MediaType,
		Files:        params.Files,
		Expiration:   expiration,
		CreatedAt:    now,
	}

	if params.Password != "" {
		hash, err := utils.HashPassword(params.Password)
		if err != nil {
			cleanup()
			return nil, err
		}
		version, err := utils.GenerateHexToken(passwordVersionBytes)
		if err != nil {
			cleanup()
			return nil, err
		}
		upload.Password = hash
		upload.PasswordVersion = version
	}

	if err := c.store.Insert(ctx, upload); err != nil {
		cleanup()
		return nil, err
	}

	slog.Info("upload created",
		"upload_id", upload.ID,
		"media_type", upload.MediaType,
		"files", len(media),
		"expires_at", expiration.ExpiresAt.UTC().Format(time.RFC3339),
		"password_protected", upload.Password != nil,
	)

	return upload, nil
}

// reconcile applies the auto-delete transition when due. Idempotent: a
// record that is already deleted, or not yet past its auto-delete time, is
// left untouched. Returns whether a transition occurred.
func (c *Controller) reconcile(ctx context.Context, u *models.Upload, now time.Time) bool {
	if u.Deleted || !IsPastAutoDelete(u, now, c.grace) {
		return false
	}

	c.deleteFiles(ctx, u.Files)

	deletedAt := now
	u.Deleted = true
	u.DeletedAt = &deletedAt
	u.DeletedReason = models.DeletedAuto
	u.Password = nil
	u.PasswordVersion = ""
	u.MaxViews = nil

	metrics.ReconcileDeletionsTotal.Inc()
	slog.Info("upload auto-deleted", "upload_id", u.ID)
	return true
}

// deleteFiles removes stored files best-effort. Failures are logged and
// never propagated; a slow or failing filesystem must not block state
// transitions, and a missing file is already the desired outcome.
func (c *Controller) deleteFiles(ctx context.Context, files []models.FileMeta) {
	for _, f := range files {
		if f.StoredPath == "" {
			continue
		}
		if err := c.files.Delete(ctx, f.StoredPath); err != nil {
			slog.Error("failed to delete stored file", "path", f.StoredPath, "error", err)
		}
	}
}

// Reconcile runs the lazy auto-delete check for one upload and persists any
// transition. Returns the (possibly transitioned) record.
func (c *Controller) Reconcile(ctx context.Context, id string) (*models.Upload, error) {
	now := c.Now()
	return c.store.Update(ctx, id, func(u *models.Upload) error {
		c.reconcile(ctx, u, now)
		return nil
	})
}

// View authorizes and records one content view. On success the view count
// is incremented exactly once and the updated record is returned. Denied
// views (gone, expired, limit reached, password gated) never change the
// count.
//
// Reconciliation runs as its own persisted step first: its transition must
// stick even when the view itself is denied, and a failed Update discards
// all record changes.
func (c *Controller) View(ctx context.Context, id, viewerToken string) (*models.Upload, error) {
	now := c.Now()
	if _, err := c.Reconcile(ctx, id); err != nil {
		return nil, err
	}

	return c.store.Update(ctx, id, func(u *models.Upload) error {
		if err := viewability(u, now); err != nil {
			return err
		}
		if !auth.AuthorizeViewer(u, viewerToken) {
			return ErrPasswordRequired
		}

		u.ViewCount++
		return nil
	})
}

// Peek returns the record after lazy reconciliation and the same
// viewability checks as View, but without counting a view. The media file
// endpoints use it so that loading a page with three images still counts
// as one view.
func (c *Controller) Peek(ctx context.Context, id, viewerToken string) (*models.Upload, error) {
	now := c.Now()
	upload, err := c.Reconcile(ctx, id)
	if err != nil {
		return nil, err
	}

	if err := viewability(upload, now); err != nil {
		return nil, err
	}
	if !auth.AuthorizeViewer(upload, viewerToken) {
		return nil, ErrPasswordRequired
	}

	return upload, nil
}

// viewability maps terminal and gating states to their Gone reasons.
func viewability(u *models.Upload, now time.Time) error {
	if u.Deleted {
		if u.DeletedReason == models.DeletedManual {
			return goneForUpload(GoneDeletedManual)
		}
		return goneForUpload(GoneDeletedAuto)
	}
	if IsExpired(u, now) {
		return goneForUpload(GoneExpired)
	}
	if u.ViewLimitReached() {
		return goneForUpload(GoneViewLimit)
	}
	return nil
}

// VerifyViewerPassword checks a submitted password and, on success, returns
// the token the viewer cookie must carry. If the record somehow has a
// password but no version token, one is generated on the spot.
func (c *Controller) VerifyViewerPassword(ctx context.Context, id, password string) (string, *models.Upload, error) {
	now := c.Now()
	if _, err := c.Reconcile(ctx, id); err != nil {
		return "", nil, err
	}

	var token string
	upload, err := c.store.Update(ctx, id, func(u *models.Upload) error {
		if err := viewability(u, now); err != nil {
			return err
		}
		if u.Password == nil {
			// Not password protected; nothing to verify.
			token = ""
			return nil
		}
		if !utils.VerifyPassword(password, u.Password) {
			slog.Warn("invalid viewer password attempt",
				"upload_id", u.ID,
				"timestamp", now.UTC().Format(time.RFC3339),
			)
			return ErrInvalidPassword
		}

		if u.PasswordVersion == "" {
			version, err := utils.GenerateHexToken(passwordVersionBytes)
			if err != nil {
				return err
			}
			u.PasswordVersion = version
		}
		token = u.PasswordVersion
		return nil
	})
	if err != nil {
		return "", nil, err
	}
	return token, upload, nil
}

// Dashboard returns the record for the management page after lazy
// reconciliation and capability key authorization.
func (c *Controller) Dashboard(ctx context.Context, id, key string) (*models.Upload, error) {
	upload, err := c.Reconcile(ctx, id)
	if err != nil {
		return nil, err
	}
	if !auth.AuthorizeDashboard(upload, key) {
		return nil, auth.ErrUnauthorized
	}
	return upload, nil
}

// mutate runs a dashboard mutation with reconciliation persisted first and
// key authorization applied inside the record's critical section. All
// dashboard writes flow through here.
func (c *Controller) mutate(ctx context.Context, id, key string, fn func(u *models.Upload, now time.Time) error) (*models.Upload, error) {
	now := c.Now()
	if _, err := c.Reconcile(ctx, id); err != nil {
		return nil, err
	}

	return c.store.Update(ctx, id, func(u *models.Upload) error {
		if !auth.AuthorizeDashboard(u, key) {
			return auth.ErrUnauthorized
		}
		return fn(u, now)
	})
}

// ExtendExpiration pushes the expiry forward by one of the allow-listed
// increments, reactivating an expired-but-not-deleted record.
func (c *Controller) ExtendExpiration(ctx context.Context, id, key string, increment time.Duration) (*models.Upload, error) {
	return c.mutate(ctx, id, key, func(u *models.Upload, now time.Time) error {
		if err := Extend(u, increment, now, c.grace); err != nil {
			return err
		}
		slog.Info("expiration extended",
			"upload_id", u.ID,
			"increment", increment.String(),
			"expires_at", u.Expiration.ExpiresAt.UTC().Format(time.RFC3339),
		)
		return nil
	})
}

// SetMaxViews sets or removes the view limit.
func (c *Controller) SetMaxViews(ctx context.Context, id, key, mode string, value int) (*models.Upload, error) {
	return c.mutate(ctx, id, key, func(u *models.Upload, now time.Time) error {
		if u.Deleted {
			return ErrAlreadyDeleted
		}
		switch mode {
		case "remove":
			u.MaxViews = nil
			return nil
		case "set":
			if value < 1 || value > maxViewLimit {
				return ErrInvalidViewLimit
			}
			limit := value
			u.MaxViews = &limit
			return nil
		default:
			return ErrInvalidViewMode
		}
	})
}

// SetPassword sets, changes or removes the password. Changing or removing
// an existing password requires the current one. Setting or changing
// rotates the password version, invalidating every existing viewer cookie.
func (c *Controller) SetPassword(ctx context.Context, id, key, mode, newPassword, currentPassword string) (*models.Upload, error) {
	return c.mutate(ctx, id, key, func(u *models.Upload, now time.Time) error {
		if u.Deleted {
			return ErrAlreadyDeleted
		}

		verifyCurrent := func() error {
			if u.Password == nil {
				return nil
			}
			if currentPassword == "" {
				return ErrCurrentPasswordRequired
			}
			if !utils.VerifyPassword(currentPassword, u.Password) {
				return ErrCurrentPasswordInvalid
			}
			return nil
		}

		switch mode {
		case "remove":
			if err := verifyCurrent(); err != nil {
				return err
			}
			u.Password = nil
			u.PasswordVersion = ""
			return nil

		case "set", "change":
			if newPassword == "" {
				return ErrEmptyPassword
			}
			if err := verifyCurrent(); err != nil {
				return err
			}
			hash, err := utils.HashPassword(newPassword)
			if err != nil {
				return err
			}
			version, err := utils.GenerateHexToken(passwordVersionBytes)
			if err != nil {
				return err
			}
			u.Password = hash
			u.PasswordVersion = version
			return nil

		default:
			return ErrInvalidPasswordMode
		}
	})
}

// SetCountdownVisibility toggles the viewer-facing countdown display.
func (c *Controller) SetCountdownVisibility(ctx context.Context, id, key, mode string) (*models.Upload, error) {
	return c.mutate(ctx, id, key, func(u *models.Upload, now time.Time) error {
		if u.Deleted {
			return ErrAlreadyDeleted
		}
		switch mode {
		case "show":
			u.CountdownVisible = true
		case "hide":
			u.CountdownVisible = false
		default:
			return ErrInvalidCountdownMode
		}
		return nil
	})
}

// ManualDelete deletes the upload on the uploader's request. Idempotent: a
// second delete reports ErrAlreadyDeleted without touching deletedAt.
func (c *Controller) ManualDelete(ctx context.Context, id, key string) (*models.Upload, error) {
	return c.mutate(ctx, id, key, func(u *models.Upload, now time.Time) error {
		if u.Deleted {
			return ErrAlreadyDeleted
		}

		c.deleteFiles(ctx, u.Files)

		deletedAt := now
		u.Deleted = true
		u.DeletedAt = &deletedAt
		u.DeletedReason = models.DeletedManual
		u.Password = nil
		u.PasswordVersion = ""
		u.MaxViews = nil

		slog.Info("upload deleted by uploader", "upload_id", u.ID)
		return nil
	})
}
