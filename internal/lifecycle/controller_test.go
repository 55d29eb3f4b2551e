package lifecycle

import (
	"bytes"
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/fadedrop/fadedrop/internal/auth"
	"github.com/fadedrop/fadedrop/internal/models"
	"github.com/fadedrop/fadedrop/internal/storage/mock"
	"github.com/fadedrop/fadedrop/internal/store"
	"github.com/fadedrop/fadedrop/internal/store/memory"
	"github.com/fadedrop/fadedrop/internal/utils"
)

const testGrace = 24 * time.Hour

func newTestController(t *testing.T) (*Controller, *mock.Backend) {
	t.Helper()
	st := memory.New()
	t.Cleanup(func() { st.Close() })
	files := mock.New()
	return NewController(st, files, testGrace, time.Minute, true), files
}

// storeFile puts content into mock storage and returns matching metadata,
// mirroring what the upload handler does before calling CreateUpload.
func storeFile(t *testing.T, files *mock.Backend, field, name, mime string, content []byte) models.FileMeta {
	t.Helper()
	key := field + "/" + name
	path, err := files.Store(context.Background(), key, bytes.NewReader(content), int64(len(content)))
	if err != nil {
		t.Fatalf("failed to store test file: %v", err)
	}
	return models.FileMeta{
		FieldName:        field,
		StoredFilename:   name,
		StoredPath:       path,
		OriginalFilename: name,
		MimeType:         mime,
		Size:             int64(len(content)),
	}
}

func createImageUpload(t *testing.T, ctrl *Controller, files *mock.Backend, password string) *models.Upload {
	t.Helper()
	meta := storeFile(t, files, "images", "photo.png", "image/png", []byte("png-bytes"))
	upload, err := ctrl.CreateUpload(context.Background(), CreateParams{
		MediaType:    models.MediaImages,
		Files:        []models.FileMeta{meta},
		ExpiresValue: 6,
		ExpiresUnit:  "hours",
		Password:     password,
	})
	if err != nil {
		t.Fatalf("CreateUpload failed: %v", err)
	}
	return upload
}

func TestCreateUpload(t *testing.T) {
	ctrl, files := newTestController(t)

	upload := createImageUpload(t, ctrl, files, "")

	if len(upload.ID) != 20 {
		t.Errorf("id length = %d, want 20 hex chars", len(upload.ID))
	}
	if upload.DashboardKey == "" {
		t.Error("dashboard key missing")
	}
	if upload.Password != nil || upload.PasswordVersion != "" {
		t.Error("unprotected upload has password state")
	}
	if upload.Expiration.Duration != 6*time.Hour {
		t.Errorf("duration = %v, want 6h", upload.Expiration.Duration)
	}
	if want := upload.Expiration.ExpiresAt.Add(testGrace); !upload.Expiration.AutoDeleteAt.Equal(want) {
		t.Errorf("autoDeleteAt = %v, want %v", upload.Expiration.AutoDeleteAt, want)
	}

	stored, err := ctrl.Store().Get(context.Background(), upload.ID)
	if err != nil {
		t.Fatalf("stored record missing: %v", err)
	}
	if stored.DashboardKey != upload.DashboardKey {
		t.Error("stored record does not match returned record")
	}
}

func TestCreateUploadPasswordProtected(t *testing.T) {
	ctrl, files := newTestController(t)

	upload := createImageUpload(t, ctrl, files, "hunter2")

	if upload.Password == nil {
		t.Fatal("password hash missing")
	}
	if !utils.VerifyPassword("hunter2", upload.Password) {
		t.Error("stored hash does not verify the original password")
	}
	if len(upload.PasswordVersion) != 16 {
		t.Errorf("password version length = %d, want 16 hex chars", len(upload.PasswordVersion))
	}
}

func TestCreateUploadValidationCleansUpFiles(t *testing.T) {
	ctrl, files := newTestController(t)

	// Two video files is over the limit; the already-stored files must be
	// removed when the request is rejected.
	metas := []models.FileMeta{
		storeFile(t, files, "video", "a.mp4", "video/mp4", []byte("v1")),
		storeFile(t, files, "video", "b.mp4", "video/mp4", []byte("v2")),
	}

	_, err := ctrl.CreateUpload(context.Background(), CreateParams{
		MediaType:    models.MediaVideo,
		Files:        metas,
		ExpiresValue: 1,
		ExpiresUnit:  "hours",
	})

	var ve *utils.ValidationError
	if !errors.As(err, &ve) {
		t.Fatalf("error = %v, want validation error", err)
	}
	if files.FileCount() != 0 {
		t.Errorf("stored files after rejected upload = %d, want 0", files.FileCount())
	}
}

func TestCreateUploadRejectsBadExpiration(t *testing.T) {
	ctrl, files := newTestController(t)
	meta := storeFile(t, files, "images", "p.png", "image/png", []byte("x"))

	_, err := ctrl.CreateUpload(context.Background(), CreateParams{
		MediaType:    models.MediaImages,
		Files:        []models.FileMeta{meta},
		ExpiresValue: 31,
		ExpiresUnit:  "days",
	})
	var ve *utils.ValidationError
	if !errors.As(err, &ve) {
		t.Fatalf("error = %v, want validation error", err)
	}
	if files.FileCount() != 0 {
		t.Error("rejected upload left stored files behind")
	}
}

func TestViewCountsOncePerRender(t *testing.T) {
	ctrl, files := newTestController(t)
	upload := createImageUpload(t, ctrl, files, "")

	for i := 1; i <= 3; i++ {
		got, err := ctrl.View(context.Background(), upload.ID, "")
		if err != nil {
			t.Fatalf("view %d failed: %v", i, err)
		}
		if got.ViewCount != i {
			t.Errorf("view count after view %d = %d", i, got.ViewCount)
		}
	}

	// Peek serves the media files for an already-counted render and must
	// not move the counter.
	got, err := ctrl.Peek(context.Background(), upload.ID, "")
	if err != nil {
		t.Fatalf("peek failed: %v", err)
	}
	if got.ViewCount != 3 {
		t.Errorf("view count after peek = %d, want 3", got.ViewCount)
	}
}

func TestViewPasswordGate(t *testing.T) {
	ctrl, files := newTestController(t)
	upload := createImageUpload(t, ctrl, files, "secret")

	if _, err := ctrl.View(context.Background(), upload.ID, ""); !errors.Is(err, ErrPasswordRequired) {
		t.Fatalf("view without token: error = %v, want ErrPasswordRequired", err)
	}
	if _, err := ctrl.View(context.Background(), upload.ID, "bogus"); !errors.Is(err, ErrPasswordRequired) {
		t.Fatalf("view with wrong token: error = %v, want ErrPasswordRequired", err)
	}

	token, _, err := ctrl.VerifyViewerPassword(context.Background(), upload.ID, "secret")
	if err != nil {
		t.Fatalf("password verification failed: %v", err)
	}
	if token != upload.PasswordVersion {
		t.Errorf("issued token = %q, want current password version %q", token, upload.PasswordVersion)
	}

	got, err := ctrl.View(context.Background(), upload.ID, token)
	if err != nil {
		t.Fatalf("view with valid token failed: %v", err)
	}
	if got.ViewCount != 1 {
		t.Errorf("view count = %d, want 1 (denied attempts must not count)", got.ViewCount)
	}
}

func TestVerifyViewerPasswordWrong(t *testing.T) {
	ctrl, files := newTestController(t)
	upload := createImageUpload(t, ctrl, files, "secret")

	_, _, err := ctrl.VerifyViewerPassword(context.Background(), upload.ID, "wrong")
	if !errors.Is(err, ErrInvalidPassword) {
		t.Fatalf("error = %v, want ErrInvalidPassword", err)
	}
}

func TestPasswordRotationInvalidatesToken(t *testing.T) {
	ctrl, files := newTestController(t)
	upload := createImageUpload(t, ctrl, files, "first")

	token, _, err := ctrl.VerifyViewerPassword(context.Background(), upload.ID, "first")
	if err != nil {
		t.Fatalf("password verification failed: %v", err)
	}

	if _, err := ctrl.SetPassword(context.Background(), upload.ID, upload.DashboardKey, "change", "second", "first"); err != nil {
		t.Fatalf("password change failed: %v", err)
	}

	if _, err := ctrl.View(context.Background(), upload.ID, token); !errors.Is(err, ErrPasswordRequired) {
		t.Errorf("old token still accepted after password change: %v", err)
	}
}

func TestViewLimit(t *testing.T) {
	ctrl, files := newTestController(t)
	upload := createImageUpload(t, ctrl, files, "")

	if _, err := ctrl.SetMaxViews(context.Background(), upload.ID, upload.DashboardKey, "set", 2); err != nil {
		t.Fatalf("set view limit failed: %v", err)
	}

	for i := 0; i < 2; i++ {
		if _, err := ctrl.View(context.Background(), upload.ID, ""); err != nil {
			t.Fatalf("view %d failed: %v", i+1, err)
		}
	}

	_, err := ctrl.View(context.Background(), upload.ID, "")
	ge, ok := AsGone(err)
	if !ok || ge.Reason != GoneViewLimit {
		t.Fatalf("error = %v, want gone with view_limit", err)
	}

	got, err := ctrl.Store().Get(context.Background(), upload.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.ViewCount != 2 {
		t.Errorf("view count = %d, want 2 (denied view must not count)", got.ViewCount)
	}
}

func TestViewLimitUnderConcurrency(t *testing.T) {
	ctrl, files := newTestController(t)
	upload := createImageUpload(t, ctrl, files, "")

	const limit = 5
	if _, err := ctrl.SetMaxViews(context.Background(), upload.ID, upload.DashboardKey, "set", limit); err != nil {
		t.Fatal(err)
	}

	const attempts = 50
	var wg sync.WaitGroup
	var mu sync.Mutex
	granted := 0

	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := ctrl.View(context.Background(), upload.ID, ""); err == nil {
				mu.Lock()
				granted++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if granted != limit {
		t.Errorf("granted views = %d, want exactly %d", granted, limit)
	}

	got, err := ctrl.Store().Get(context.Background(), upload.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.ViewCount != limit {
		t.Errorf("final view count = %d, want %d", got.ViewCount, limit)
	}
}

func TestViewExpired(t *testing.T) {
	ctrl, files := newTestController(t)
	upload := createImageUpload(t, ctrl, files, "")

	// Past expiry but inside the grace window: gone for viewers, record and
	// files still intact.
	ctrl.Now = func() time.Time { return upload.Expiration.ExpiresAt.Add(time.Hour) }

	_, err := ctrl.View(context.Background(), upload.ID, "")
	ge, ok := AsGone(err)
	if !ok || ge.Reason != GoneExpired {
		t.Fatalf("error = %v, want gone with expired", err)
	}
	if files.FileCount() != 1 {
		t.Error("files removed during grace window")
	}
}

func TestAutoDeleteAfterGrace(t *testing.T) {
	ctrl, files := newTestController(t)
	upload := createImageUpload(t, ctrl, files, "pw")

	ctrl.Now = func() time.Time { return upload.Expiration.AutoDeleteAt.Add(time.Second) }

	_, err := ctrl.View(context.Background(), upload.ID, "")
	ge, ok := AsGone(err)
	if !ok || ge.Reason != GoneDeletedAuto {
		t.Fatalf("error = %v, want gone with deleted_auto", err)
	}

	// The transition must persist even though the view itself was denied.
	got, err := ctrl.Store().Get(context.Background(), upload.ID)
	if err != nil {
		t.Fatal(err)
	}
	if !got.Deleted || got.DeletedReason != models.DeletedAuto {
		t.Errorf("record not auto-deleted: deleted=%v reason=%q", got.Deleted, got.DeletedReason)
	}
	if got.Password != nil || got.PasswordVersion != "" || got.MaxViews != nil {
		t.Error("password and limit state not cleared on auto-delete")
	}
	if got.DeletedAt == nil {
		t.Error("deletedAt not set")
	}
	if files.FileCount() != 0 {
		t.Errorf("stored files after auto-delete = %d, want 0", files.FileCount())
	}
}

func TestExtendReactivatesExpired(t *testing.T) {
	ctrl, files := newTestController(t)
	upload := createImageUpload(t, ctrl, files, "")

	frozen := upload.Expiration.ExpiresAt.Add(2 * time.Hour)
	ctrl.Now = func() time.Time { return frozen }

	got, err := ctrl.ExtendExpiration(context.Background(), upload.ID, upload.DashboardKey, 6*time.Hour)
	if err != nil {
		t.Fatalf("extend failed: %v", err)
	}
	if want := frozen.Add(6 * time.Hour); !got.Expiration.ExpiresAt.Equal(want) {
		t.Errorf("expiresAt = %v, want %v (base is now, not the stale expiry)", got.Expiration.ExpiresAt, want)
	}

	if _, err := ctrl.View(context.Background(), upload.ID, ""); err != nil {
		t.Errorf("view after reactivation failed: %v", err)
	}
}

func TestExtendDoesNotResurrectAutoDeleted(t *testing.T) {
	ctrl, files := newTestController(t)
	upload := createImageUpload(t, ctrl, files, "")

	ctrl.Now = func() time.Time { return upload.Expiration.AutoDeleteAt.Add(time.Second) }

	_, err := ctrl.ExtendExpiration(context.Background(), upload.ID, upload.DashboardKey, 6*time.Hour)
	if !errors.Is(err, ErrAlreadyDeleted) {
		t.Fatalf("error = %v, want ErrAlreadyDeleted (reconcile runs before the extension)", err)
	}
}

func TestDashboardAuthorization(t *testing.T) {
	ctrl, files := newTestController(t)
	upload := createImageUpload(t, ctrl, files, "")

	if _, err := ctrl.Dashboard(context.Background(), upload.ID, upload.DashboardKey); err != nil {
		t.Errorf("dashboard with correct key failed: %v", err)
	}
	if _, err := ctrl.Dashboard(context.Background(), upload.ID, "wrong-key"); !errors.Is(err, auth.ErrUnauthorized) {
		t.Errorf("wrong key: error = %v, want ErrUnauthorized", err)
	}
	if _, err := ctrl.Dashboard(context.Background(), upload.ID, ""); !errors.Is(err, auth.ErrUnauthorized) {
		t.Errorf("empty key: error = %v, want ErrUnauthorized", err)
	}
	if _, err := ctrl.Dashboard(context.Background(), "ffffffffffffffffffff", upload.DashboardKey); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("unknown id: error = %v, want ErrNotFound", err)
	}
}

func TestSetMaxViews(t *testing.T) {
	ctrl, files := newTestController(t)
	upload := createImageUpload(t, ctrl, files, "")
	ctx := context.Background()

	tests := []struct {
		name    string
		mode    string
		value   int
		wantErr error
	}{
		{"set valid", "set", 10, nil},
		{"set minimum", "set", 1, nil},
		{"set maximum", "set", 100000, nil},
		{"zero", "set", 0, ErrInvalidViewLimit},
		{"negative", "set", -1, ErrInvalidViewLimit},
		{"over maximum", "set", 100001, ErrInvalidViewLimit},
		{"bad mode", "clamp", 5, ErrInvalidViewMode},
		{"remove", "remove", 0, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ctrl.SetMaxViews(ctx, upload.ID, upload.DashboardKey, tt.mode, tt.value)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("error = %v, want %v", err, tt.wantErr)
			}
			if err != nil {
				return
			}
			if tt.mode == "remove" {
				if got.MaxViews != nil {
					t.Error("limit not removed")
				}
			} else if got.MaxViews == nil || *got.MaxViews != tt.value {
				t.Errorf("maxViews = %v, want %d", got.MaxViews, tt.value)
			}
		})
	}
}

func TestSetPasswordModes(t *testing.T) {
	ctx := context.Background()

	t.Run("set on unprotected", func(t *testing.T) {
		ctrl, files := newTestController(t)
		upload := createImageUpload(t, ctrl, files, "")
		got, err := ctrl.SetPassword(ctx, upload.ID, upload.DashboardKey, "set", "newpw", "")
		if err != nil {
			t.Fatalf("set failed: %v", err)
		}
		if got.Password == nil || got.PasswordVersion == "" {
			t.Error("password state not set")
		}
	})

	t.Run("empty password rejected", func(t *testing.T) {
		ctrl, files := newTestController(t)
		upload := createImageUpload(t, ctrl, files, "")
		_, err := ctrl.SetPassword(ctx, upload.ID, upload.DashboardKey, "set", "", "")
		if !errors.Is(err, ErrEmptyPassword) {
			t.Errorf("error = %v, want ErrEmptyPassword", err)
		}
	})

	t.Run("change requires current", func(t *testing.T) {
		ctrl, files := newTestController(t)
		upload := createImageUpload(t, ctrl, files, "old")
		_, err := ctrl.SetPassword(ctx, upload.ID, upload.DashboardKey, "change", "new", "")
		if !errors.Is(err, ErrCurrentPasswordRequired) {
			t.Errorf("error = %v, want ErrCurrentPasswordRequired", err)
		}
		_, err = ctrl.SetPassword(ctx, upload.ID, upload.DashboardKey, "change", "new", "wrong")
		if !errors.Is(err, ErrCurrentPasswordInvalid) {
			t.Errorf("error = %v, want ErrCurrentPasswordInvalid", err)
		}
	})

	t.Run("change rotates version", func(t *testing.T) {
		ctrl, files := newTestController(t)
		upload := createImageUpload(t, ctrl, files, "old")
		got, err := ctrl.SetPassword(ctx, upload.ID, upload.DashboardKey, "change", "new", "old")
		if err != nil {
			t.Fatalf("change failed: %v", err)
		}
		if got.PasswordVersion == upload.PasswordVersion {
			t.Error("password version not rotated")
		}
		if !utils.VerifyPassword("new", got.Password) {
			t.Error("new password does not verify")
		}
	})

	t.Run("remove requires current", func(t *testing.T) {
		ctrl, files := newTestController(t)
		upload := createImageUpload(t, ctrl, files, "old")
		_, err := ctrl.SetPassword(ctx, upload.ID, upload.DashboardKey, "remove", "", "wrong")
		if !errors.Is(err, ErrCurrentPasswordInvalid) {
			t.Errorf("error = %v, want ErrCurrentPasswordInvalid", err)
		}
		got, err := ctrl.SetPassword(ctx, upload.ID, upload.DashboardKey, "remove", "", "old")
		if err != nil {
			t.Fatalf("remove failed: %v", err)
		}
		if got.Password != nil || got.PasswordVersion != "" {
			t.Error("password state not cleared")
		}
	})

	t.Run("bad mode", func(t *testing.T) {
		ctrl, files := newTestController(t)
		upload := createImageUpload(t, ctrl, files, "")
		_, err := ctrl.SetPassword(ctx, upload.ID, upload.DashboardKey, "rotate", "x", "")
		if !errors.Is(err, ErrInvalidPasswordMode) {
			t.Errorf("error = %v, want ErrInvalidPasswordMode", err)
		}
	})
}

func TestSetCountdownVisibility(t *testing.T) {
	ctrl, files := newTestController(t)
	upload := createImageUpload(t, ctrl, files, "")
	ctx := context.Background()

	got, err := ctrl.SetCountdownVisibility(ctx, upload.ID, upload.DashboardKey, "show")
	if err != nil || !got.CountdownVisible {
		t.Fatalf("show failed: err=%v visible=%v", err, got.CountdownVisible)
	}
	got, err = ctrl.SetCountdownVisibility(ctx, upload.ID, upload.DashboardKey, "hide")
	if err != nil || got.CountdownVisible {
		t.Fatalf("hide failed: err=%v visible=%v", err, got.CountdownVisible)
	}
	if _, err := ctrl.SetCountdownVisibility(ctx, upload.ID, upload.DashboardKey, "blink"); !errors.Is(err, ErrInvalidCountdownMode) {
		t.Errorf("error = %v, want ErrInvalidCountdownMode", err)
	}
}

func TestManualDelete(t *testing.T) {
	ctrl, files := newTestController(t)
	upload := createImageUpload(t, ctrl, files, "pw")
	ctx := context.Background()

	got, err := ctrl.ManualDelete(ctx, upload.ID, upload.DashboardKey)
	if err != nil {
		t.Fatalf("delete failed: %v", err)
	}
	if !got.Deleted || got.DeletedReason != models.DeletedManual || got.DeletedAt == nil {
		t.Errorf("terminal state wrong: deleted=%v reason=%q at=%v", got.Deleted, got.DeletedReason, got.DeletedAt)
	}
	if got.Password != nil || got.PasswordVersion != "" {
		t.Error("password state not cleared on delete")
	}
	if files.FileCount() != 0 {
		t.Errorf("stored files after delete = %d, want 0", files.FileCount())
	}

	firstDeletedAt := *got.DeletedAt

	// Second delete is reported, and the original deletion time stands.
	_, err = ctrl.ManualDelete(ctx, upload.ID, upload.DashboardKey)
	if !errors.Is(err, ErrAlreadyDeleted) {
		t.Fatalf("second delete: error = %v, want ErrAlreadyDeleted", err)
	}
	again, err := ctrl.Store().Get(ctx, upload.ID)
	if err != nil {
		t.Fatal(err)
	}
	if !again.DeletedAt.Equal(firstDeletedAt) {
		t.Error("deletedAt changed on repeated delete")
	}

	// Viewers see the manual-delete reason.
	_, err = ctrl.View(ctx, upload.ID, "")
	ge, ok := AsGone(err)
	if !ok || ge.Reason != GoneDeletedManual {
		t.Errorf("view after delete: error = %v, want gone with deleted_manual", err)
	}
}

func TestMutationsRejectWrongKey(t *testing.T) {
	ctrl, files := newTestController(t)
	upload := createImageUpload(t, ctrl, files, "")
	ctx := context.Background()

	ops := map[string]func() error{
		"extend": func() error {
			_, err := ctrl.ExtendExpiration(ctx, upload.ID, "bad", time.Hour)
			return err
		},
		"views": func() error {
			_, err := ctrl.SetMaxViews(ctx, upload.ID, "bad", "set", 5)
			return err
		},
		"password": func() error {
			_, err := ctrl.SetPassword(ctx, upload.ID, "bad", "set", "x", "")
			return err
		},
		"countdown": func() error {
			_, err := ctrl.SetCountdownVisibility(ctx, upload.ID, "bad", "show")
			return err
		},
		"delete": func() error {
			_, err := ctrl.ManualDelete(ctx, upload.ID, "bad")
			return err
		},
	}

	for name, op := range ops {
		if err := op(); !errors.Is(err, auth.ErrUnauthorized) {
			t.Errorf("%s with wrong key: error = %v, want ErrUnauthorized", name, err)
		}
	}
}

func TestSweepOnce(t *testing.T) {
	ctrl, files := newTestController(t)

	live := createImageUpload(t, ctrl, files, "")
	stale := createImageUpload(t, ctrl, files, "")

	// Push only the second record past its auto-delete time.
	_, err := ctrl.Store().Update(context.Background(), stale.ID, func(u *models.Upload) error {
		u.Expiration.ExpiresAt = time.Now().Add(-48 * time.Hour)
		u.Expiration.AutoDeleteAt = time.Now().Add(-time.Hour)
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}

	n, err := ctrl.SweepOnce(context.Background())
	if err != nil {
		t.Fatalf("sweep failed: %v", err)
	}
	if n != 1 {
		t.Errorf("auto-deleted = %d, want 1", n)
	}

	got, err := ctrl.Store().Get(context.Background(), stale.ID)
	if err != nil {
		t.Fatal(err)
	}
	if !got.Deleted || got.DeletedReason != models.DeletedAuto {
		t.Error("stale record not auto-deleted by sweep")
	}

	kept, err := ctrl.Store().Get(context.Background(), live.ID)
	if err != nil {
		t.Fatal(err)
	}
	if kept.Deleted {
		t.Error("live record deleted by sweep")
	}

	// A second pass finds nothing to do.
	n, err = ctrl.SweepOnce(context.Background())
	if err != nil || n != 0 {
		t.Errorf("second sweep: n=%d err=%v, want 0, nil", n, err)
	}
}
