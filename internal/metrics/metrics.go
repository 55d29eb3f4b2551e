package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Counter metrics (monotonically increasing)
var (
	// UploadsTotal counts upload submissions by status (success, validation_failed, failure)
	UploadsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fadedrop_uploads_total",
			Help: "Total number of upload submissions",
		},
		[]string{"status"},
	)

	// ViewsTotal counts view requests by status (success, gone, password_required, password_failed)
	ViewsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fadedrop_views_total",
			Help: "Total number of view requests",
		},
		[]string{"status"},
	)

	// ReconcileDeletionsTotal counts uploads auto-deleted after the grace period
	ReconcileDeletionsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "fadedrop_reconcile_deletions_total",
			Help: "Total number of uploads auto-deleted after the grace period",
		},
	)

	// ManualDeletionsTotal counts uploads deleted by their uploader
	ManualDeletionsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "fadedrop_manual_deletions_total",
			Help: "Total number of uploads deleted by their uploader",
		},
	)

	// HTTPRequestsTotal counts total HTTP requests by method, path, and status code
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fadedrop_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	// ErrorsTotal counts application errors by type
	ErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fadedrop_errors_total",
			Help: "Total number of application errors",
		},
		[]string{"type"},
	)
)

// Histogram metrics (distributions)
var (
	// HTTPRequestDuration tracks HTTP request latency by method and path
	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "fadedrop_http_request_duration_seconds",
			Help:    "HTTP request latency in seconds",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10, 30, 60},
		},
		[]string{"method", "path"},
	)

	// UploadSizeBytes tracks distribution of uploaded file sizes
	UploadSizeBytes = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name: "fadedrop_upload_size_bytes",
			Help: "Distribution of uploaded file sizes in bytes",
			Buckets: []float64{
				1024,              // 1 KB
				100 * 1024,        // 100 KB
				1024 * 1024,       // 1 MB
				10 * 1024 * 1024,  // 10 MB
				50 * 1024 * 1024,  // 50 MB
				100 * 1024 * 1024, // 100 MB
				500 * 1024 * 1024, // 500 MB
			},
		},
	)
)
