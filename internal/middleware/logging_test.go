package middleware

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
)

// captureLogs redirects the default slog logger into a buffer for the
// duration of the test.
func captureLogs(t *testing.T, level slog.Level) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	prev := slog.Default()
	slog.SetDefault(slog.New(slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: level})))
	t.Cleanup(func() { slog.SetDefault(prev) })
	return &buf
}

func TestLoggingMiddlewareRecordsStatus(t *testing.T) {
	buf := captureLogs(t, slog.LevelInfo)

	handler := LoggingMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusGone)
	}))

	req := httptest.NewRequest(http.MethodGet, "/v/a1b2c3", nil)
	handler.ServeHTTP(httptest.NewRecorder(), req)

	var line struct {
		Msg    string `json:"msg"`
		Method string `json:"method"`
		Path   string `json:"path"`
		Status int    `json:"status"`
	}
	if err := json.Unmarshal(buf.Bytes(), &line); err != nil {
		t.Fatalf("log line is not JSON: %v (%s)", err, buf.String())
	}
	if line.Msg != "http request" {
		t.Errorf("msg = %q, want http request", line.Msg)
	}
	if line.Method != http.MethodGet || line.Path != "/v/a1b2c3" {
		t.Errorf("method/path = %s %s", line.Method, line.Path)
	}
	if line.Status != http.StatusGone {
		t.Errorf("status = %d, want %d", line.Status, http.StatusGone)
	}
}

func TestLoggingMiddlewareImplicitOK(t *testing.T) {
	buf := captureLogs(t, slog.LevelInfo)

	// Handler writes a body without calling WriteHeader.
	handler := LoggingMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("hi"))
	}))

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/", nil))

	if rr.Body.String() != "hi" {
		t.Errorf("body = %q, want hi", rr.Body.String())
	}

	var line struct {
		Status int `json:"status"`
	}
	if err := json.Unmarshal(buf.Bytes(), &line); err != nil {
		t.Fatalf("log line is not JSON: %v (%s)", err, buf.String())
	}
	if line.Status != http.StatusOK {
		t.Errorf("status = %d, want 200", line.Status)
	}
}

func TestLoggingMiddlewareQuietPaths(t *testing.T) {
	buf := captureLogs(t, slog.LevelInfo)

	handler := LoggingMiddleware(okHandler())
	for _, path := range []string{"/health", "/metrics"} {
		handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, path, nil))
	}

	if buf.Len() != 0 {
		t.Errorf("health/metrics polls logged at info: %s", buf.String())
	}

	// The same requests appear once the level drops to debug.
	debugBuf := captureLogs(t, slog.LevelDebug)
	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/health", nil))
	if debugBuf.Len() == 0 {
		t.Error("health poll not logged at debug")
	}
}
