package handlers

import (
	"net/http"
	"testing"
	"time"

	"github.com/fadedrop/fadedrop/internal/lifecycle"
	"github.com/fadedrop/fadedrop/internal/storage/mock"
	"github.com/fadedrop/fadedrop/internal/testutil"
	"github.com/fadedrop/fadedrop/internal/web"
)

// testServer wires the full route table over in-memory backends, the same
// shape main builds, so handler tests exercise real routing and PathValue.
type testServer struct {
	mux   *http.ServeMux
	ctrl  *lifecycle.Controller
	files *mock.Backend
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()

	cfg := testutil.SetupTestConfig(t)
	ctrl, files := testutil.SetupController(t)

	renderer, err := web.NewRenderer()
	if err != nil {
		t.Fatalf("failed to build renderer: %v", err)
	}

	startTime := time.Now()

	mux := http.NewServeMux()
	mux.HandleFunc("GET /{$}", HomeHandler(renderer))
	mux.HandleFunc("POST /upload", UploadHandler(ctrl, files, renderer, cfg))
	mux.HandleFunc("GET /v/{id}", ViewHandler(ctrl, renderer))
	mux.HandleFunc("POST /v/{id}/password", ViewPasswordHandler(ctrl, renderer))
	mux.HandleFunc("GET /media/{id}/{filename}", MediaHandler(ctrl, files))
	mux.HandleFunc("GET /dashboard/{id}", DashboardHandler(ctrl, renderer, cfg))
	mux.HandleFunc("POST /dashboard/{id}/expiration", ExtendExpirationHandler(ctrl, renderer))
	mux.HandleFunc("POST /dashboard/{id}/views", SetViewLimitHandler(ctrl, renderer))
	mux.HandleFunc("POST /dashboard/{id}/password", SetPasswordHandler(ctrl, renderer))
	mux.HandleFunc("POST /dashboard/{id}/countdown", SetCountdownHandler(ctrl, renderer))
	mux.HandleFunc("POST /dashboard/{id}/delete", DeleteHandler(ctrl, renderer))
	mux.HandleFunc("GET /status", StatusPageHandler(ctrl, renderer, startTime))
	mux.HandleFunc("GET /health", HealthHandler(ctrl, startTime))

	return &testServer{mux: mux, ctrl: ctrl, files: files}
}
