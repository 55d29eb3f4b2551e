// Package testutil provides shared fixtures and helpers for package tests.
package testutil

import (
	"bytes"
	"io"
	"mime/multipart"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/fadedrop/fadedrop/internal/config"
	"github.com/fadedrop/fadedrop/internal/lifecycle"
	"github.com/fadedrop/fadedrop/internal/storage/mock"
	"github.com/fadedrop/fadedrop/internal/store/memory"
)

// Minimal valid media payloads. Content sniffing recognizes these by their
// magic bytes, so handler tests can exercise the real MIME checks.
var (
	// GIFBytes is a 1x1 transparent GIF.
	GIFBytes = []byte("GIF89a\x01\x00\x01\x00\x80\x00\x00\x00\x00\x00\xff\xff\xff\x21\xf9\x04\x01\x00\x00\x00\x00\x2c\x00\x00\x00\x00\x01\x00\x01\x00\x00\x02\x02\x44\x01\x00\x3b")

	// PNGBytes starts with the PNG signature and an IHDR chunk header.
	PNGBytes = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\x0dIHDR\x00\x00\x00\x01\x00\x00\x00\x01\x08\x06\x00\x00\x00\x1f\x15\xc4\x89")

	// MP3Bytes carries an ID3v2 header.
	MP3Bytes = []byte("ID3\x03\x00\x00\x00\x00\x00\x00fadedrop-test-audio")

	// MP4Bytes carries an ftyp box for ISO media.
	MP4Bytes = []byte("\x00\x00\x00\x18ftypisom\x00\x00\x02\x00isomiso2mp41fadedrop")
)

// SetupTestConfig returns a config suitable for handler tests: in-memory
// backends, a temp upload dir, and minute expirations enabled so tests can
// use short lifetimes.
func SetupTestConfig(t *testing.T) *config.Config {
	t.Helper()

	t.Setenv("PORT", "8080")
	t.Setenv("UPLOAD_DIR", t.TempDir())
	t.Setenv("STORE_BACKEND", "memory")
	t.Setenv("STORAGE_BACKEND", "filesystem")
	t.Setenv("PUBLIC_URL", "")
	t.Setenv("ENABLE_MINUTE_EXPIRATION", "true")

	cfg, err := config.Load()
	if err != nil {
		t.Fatalf("failed to load config: %v", err)
	}
	return cfg
}

// SetupController builds a controller over an in-memory store and mock file
// storage. Both are returned so tests can inspect them directly.
func SetupController(t *testing.T) (*lifecycle.Controller, *mock.Backend) {
	t.Helper()

	st := memory.New()
	t.Cleanup(func() { st.Close() })

	files := mock.New()
	ctrl := lifecycle.NewController(st, files, 24*time.Hour, time.Minute, true)
	return ctrl, files
}

// MultipartFile is one file part for BuildUploadForm.
type MultipartFile struct {
	Field    string // form field: "images", "video", or "audio"
	Filename string
	Content  []byte
}

// BuildUploadForm assembles a multipart upload request body. Returns the
// body and the content type header value.
func BuildUploadForm(t *testing.T, fields map[string]string, files []MultipartFile) (*bytes.Buffer, string) {
	t.Helper()

	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)

	for key, val := range fields {
		if err := writer.WriteField(key, val); err != nil {
			t.Fatalf("failed to write form field %s: %v", key, err)
		}
	}

	for _, f := range files {
		part, err := writer.CreateFormFile(f.Field, f.Filename)
		if err != nil {
			t.Fatalf("failed to create form file: %v", err)
		}
		if _, err := io.Copy(part, bytes.NewReader(f.Content)); err != nil {
			t.Fatalf("failed to write file content: %v", err)
		}
	}

	if err := writer.Close(); err != nil {
		t.Fatalf("failed to close multipart writer: %v", err)
	}

	return body, writer.FormDataContentType()
}

// AssertStatusCode checks that the HTTP response status code matches expected
func AssertStatusCode(t *testing.T, rr *httptest.ResponseRecorder, wantStatus int) {
	t.Helper()

	if rr.Code != wantStatus {
		t.Errorf("status code = %d, want %d\nBody: %s", rr.Code, wantStatus, rr.Body.String())
	}
}

// AssertNoError fails the test if err is not nil
func AssertNoError(t *testing.T, err error) {
	t.Helper()

	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

// AssertError fails the test if err is nil
func AssertError(t *testing.T, err error) {
	t.Helper()

	if err == nil {
		t.Fatal("expected error but got nil")
	}
}

// AssertContains fails the test if haystack doesn't contain needle
func AssertContains(t *testing.T, haystack, needle string) {
	t.Helper()

	if !bytes.Contains([]byte(haystack), []byte(needle)) {
		t.Errorf("expected %q to contain %q", haystack, needle)
	}
}

// AssertNotContains fails the test if haystack contains needle
func AssertNotContains(t *testing.T, haystack, needle string) {
	t.Helper()

	if bytes.Contains([]byte(haystack), []byte(needle)) {
		t.Errorf("expected %q to not contain %q", haystack, needle)
	}
}
