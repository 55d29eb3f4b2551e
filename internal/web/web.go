// Package web renders the HTML pages. Templates are embedded in the binary
// and carry no lifecycle logic; handlers hand them fully computed data.
package web

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"log/slog"
	"net/http"
	"time"
)

//go:embed templates/*.html
var content embed.FS

// Renderer holds the parsed template set.
type Renderer struct {
	templates *template.Template
}

// NewRenderer parses the embedded templates.
func NewRenderer() (*Renderer, error) {
	tmpl, err := template.ParseFS(content, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("failed to parse templates: %w", err)
	}
	return &Renderer{templates: tmpl}, nil
}

// Render writes the named page with the given status code. The template
// executes into a buffer first so an execution error can still become a
// clean 500 instead of a half-written page.
func (r *Renderer) Render(w http.ResponseWriter, status int, name string, data any) {
	var buf bytes.Buffer
	if err := r.templates.ExecuteTemplate(&buf, name, data); err != nil {
		slog.Error("template execution failed", "template", name, "error", err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	buf.WriteTo(w)
}

// TimeRemaining humanizes the time until a deadline, e.g. "3 days left",
// "Expires in 5 minutes", "Expired".
func TimeRemaining(until time.Duration) string {
	switch {
	case until <= 0:
		return "Expired"
	case until < time.Minute:
		return "Less than a minute left"
	case until < time.Hour:
		m := int(until / time.Minute)
		if m == 1 {
			return "1 minute left"
		}
		return fmt.Sprintf("%d minutes left", m)
	case until < 24*time.Hour:
		h := int(until / time.Hour)
		if h == 1 {
			return "1 hour left"
		}
		return fmt.Sprintf("%d hours left", h)
	default:
		d := int(until / (24 * time.Hour))
		if d == 1 {
			return "1 day left"
		}
		return fmt.Sprintf("%d days left", d)
	}
}

// HomeData fills the upload form page.
type HomeData struct {
	Error string
}

// CreatedData fills the link-ready page shown after a successful upload.
type CreatedData struct {
	UploadID     string
	ViewURL      string
	DashboardURL string
	ExpiresLabel string
}

// ViewFile is one renderable media file.
type ViewFile struct {
	URL      string
	Name     string
	MimeType string
}

// ViewData fills the viewer page.
type ViewData struct {
	UploadID         string
	MediaType        string
	Files            []ViewFile
	CountdownVisible bool
	TimeLeft         string
}

// PasswordData fills the viewer password prompt.
type PasswordData struct {
	UploadID string
	Error    bool
}

// GoneData fills the gone/expired/limit page.
type GoneData struct {
	Title   string
	Message string
}

// DashboardFile is one row of the dashboard file table.
type DashboardFile struct {
	Name string
	Size int64
	Mime string
}

// DashboardData fills the management page.
type DashboardData struct {
	UploadID     string
	ViewURL      string
	StatusLabel  string
	Deleted      bool
	MediaType    string
	Files        []DashboardFile
	CreatedAt    string
	ExpiresAt    string
	TimeLeft     string
	ViewCount    int
	MaxViews     *int
	HasPassword  bool
	CountdownOn  bool
	ExtendKey    string // dashboard key, echoed into form actions
	Increments   []ExtendOption
	Message      string // success feedback banner
	ErrorMessage string // error feedback banner
}

// ExtendOption is one allow-listed extension choice. The wire value is the
// increment in milliseconds.
type ExtendOption struct {
	Millis int64
	Label  string
}

// ErrorData fills the generic error page.
type ErrorData struct {
	Status  int
	Message string
}

// StatusData fills the service status page.
type StatusData struct {
	Uptime  string
	Active  int
	Deleted int
}
