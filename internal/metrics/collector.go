package metrics

import (
	"context"
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/fadedrop/fadedrop/internal/store"
)

// StoreCollector collects upload record gauges from the store on each scrape
type StoreCollector struct {
	store store.UploadStore

	activeUploads  *prometheus.Desc
	deletedUploads *prometheus.Desc
}

// NewStoreCollector creates a new collector
func NewStoreCollector(st store.UploadStore) *StoreCollector {
	return &StoreCollector{
		store: st,
		activeUploads: prometheus.NewDesc(
			"fadedrop_active_uploads",
			"Number of uploads not yet deleted",
			nil, nil,
		),
		deletedUploads: prometheus.NewDesc(
			"fadedrop_deleted_uploads",
			"Number of uploads in the deleted terminal state",
			nil, nil,
		),
	}
}

// Describe sends metric descriptors to Prometheus
func (c *StoreCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.activeUploads
	ch <- c.deletedUploads
}

// Collect fetches current counts from the store and sends to Prometheus
func (c *StoreCollector) Collect(ch chan<- prometheus.Metric) {
	stats, err := c.store.Stats(context.Background())
	if err != nil {
		slog.Error("failed to collect store metrics", "error", err)
		// Send zero values on error to avoid scrape failure
		stats = store.Stats{}
	}

	ch <- prometheus.MustNewConstMetric(
		c.activeUploads,
		prometheus.GaugeValue,
		float64(stats.Active),
	)

	ch <- prometheus.MustNewConstMetric(
		c.deletedUploads,
		prometheus.GaugeValue,
		float64(stats.Deleted),
	)
}
