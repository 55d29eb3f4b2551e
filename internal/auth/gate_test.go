package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/fadedrop/fadedrop/internal/models"
)

func TestAuthorizeDashboard(t *testing.T) {
	upload := &models.Upload{ID: "abc123", DashboardKey: "the-key"}

	if !AuthorizeDashboard(upload, "the-key") {
		t.Error("correct key rejected")
	}
	if AuthorizeDashboard(upload, "wrong") {
		t.Error("wrong key accepted")
	}
	if AuthorizeDashboard(upload, "") {
		t.Error("empty key accepted")
	}

	// An empty supplied key against an empty stored key must still fail;
	// a record without a key grants management access to nobody.
	if AuthorizeDashboard(&models.Upload{ID: "x"}, "") {
		t.Error("empty-vs-empty key accepted")
	}
}

func TestAuthorizeViewer(t *testing.T) {
	unprotected := &models.Upload{ID: "a"}
	if !AuthorizeViewer(unprotected, "") {
		t.Error("unprotected upload requires a token")
	}

	protected := &models.Upload{
		ID:              "b",
		Password:        &models.PasswordHash{Hash: "h"},
		PasswordVersion: "v1",
	}
	if !AuthorizeViewer(protected, "v1") {
		t.Error("matching token rejected")
	}
	if AuthorizeViewer(protected, "v0") {
		t.Error("stale token accepted")
	}
	if AuthorizeViewer(protected, "") {
		t.Error("missing token accepted")
	}

	// Password set but no version: nothing can match until a version is
	// issued, including the empty token.
	noVersion := &models.Upload{ID: "c", Password: &models.PasswordHash{Hash: "h"}}
	if AuthorizeViewer(noVersion, "") {
		t.Error("empty token accepted against empty version")
	}
}

func TestIssueViewerToken(t *testing.T) {
	protected := &models.Upload{ID: "a", PasswordVersion: "v1"}
	if got := IssueViewerToken(protected); got != "v1" {
		t.Errorf("token = %q, want v1", got)
	}
	if got := IssueViewerToken(&models.Upload{ID: "b"}); got != "" {
		t.Errorf("token for unprotected upload = %q, want empty", got)
	}
}

func TestViewerCookieMaxAge(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name         string
		autoDeleteAt time.Time
		want         int
	}{
		// The cookie lasts until auto-delete, not just a fixed window;
		// a viewer of a week-long link must not be re-prompted midway.
		{"two days out", now.Add(48 * time.Hour), 48 * 3600},
		{"seven days out", now.Add(7 * 24 * time.Hour), 7 * 24 * 3600},
		{"sooner than default", now.Add(30 * time.Minute), 30 * 60},
		{"inside the floor", now.Add(10 * time.Second), 60},
		{"already past", now.Add(-time.Hour), 60},
		{"zero falls back to default", time.Time{}, 6 * 3600},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			u := &models.Upload{Expiration: models.Expiration{AutoDeleteAt: tt.autoDeleteAt}}
			if got := ViewerCookieMaxAge(u, now); got != tt.want {
				t.Errorf("max age = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestSetViewerCookieAndReadBack(t *testing.T) {
	now := time.Now()
	upload := &models.Upload{
		ID:         "abc123",
		Expiration: models.Expiration{AutoDeleteAt: now.Add(time.Hour)},
	}

	rr := httptest.NewRecorder()
	SetViewerCookie(rr, upload, "tok-v1", now)

	res := rr.Result()
	cookies := res.Cookies()
	if len(cookies) != 1 {
		t.Fatalf("cookies set = %d, want 1", len(cookies))
	}
	c := cookies[0]
	if c.Name != "fadedrop_view_abc123" {
		t.Errorf("cookie name = %q", c.Name)
	}
	if c.Value != "tok-v1" {
		t.Errorf("cookie value = %q", c.Value)
	}
	if !c.HttpOnly {
		t.Error("cookie not HttpOnly")
	}
	if c.SameSite != http.SameSiteLaxMode {
		t.Errorf("SameSite = %v, want Lax", c.SameSite)
	}
	if c.Path != "/" {
		t.Errorf("path = %q, want /", c.Path)
	}

	// A request carrying the cookie round-trips the token.
	req := httptest.NewRequest(http.MethodGet, "/v/abc123", nil)
	req.AddCookie(&http.Cookie{Name: c.Name, Value: c.Value})
	if got := ViewerToken(req, "abc123"); got != "tok-v1" {
		t.Errorf("ViewerToken = %q, want tok-v1", got)
	}
	if got := ViewerToken(req, "other"); got != "" {
		t.Errorf("ViewerToken for other upload = %q, want empty", got)
	}
}
