package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/fadedrop/fadedrop/internal/config"
	"github.com/fadedrop/fadedrop/internal/handlers"
	"github.com/fadedrop/fadedrop/internal/lifecycle"
	"github.com/fadedrop/fadedrop/internal/metrics"
	"github.com/fadedrop/fadedrop/internal/middleware"
	"github.com/fadedrop/fadedrop/internal/storage"
	"github.com/fadedrop/fadedrop/internal/storage/filesystem"
	"github.com/fadedrop/fadedrop/internal/storage/s3"
	"github.com/fadedrop/fadedrop/internal/store"
	"github.com/fadedrop/fadedrop/internal/store/memory"
	"github.com/fadedrop/fadedrop/internal/store/postgres"
	"github.com/fadedrop/fadedrop/internal/store/sqlite"
	"github.com/fadedrop/fadedrop/internal/web"
)

func main() {
	// Setup structured logging
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	slog.Info("starting fadedrop",
		"port", cfg.Port,
		"store_backend", cfg.StoreBackend,
		"storage_backend", cfg.StorageBackend,
		"grace_period", cfg.GracePeriod.String(),
		"sweep_interval", cfg.SweepInterval.String(),
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Initialize the record store
	uploads, err := openStore(ctx, cfg)
	if err != nil {
		slog.Error("failed to initialize record store", "error", err)
		os.Exit(1)
	}
	defer uploads.Close()

	// Initialize file storage
	files, err := openStorage(ctx, cfg)
	if err != nil {
		slog.Error("failed to initialize file storage", "error", err)
		os.Exit(1)
	}

	// Parse page templates
	renderer, err := web.NewRenderer()
	if err != nil {
		slog.Error("failed to initialize templates", "error", err)
		os.Exit(1)
	}

	ctrl := lifecycle.NewController(uploads, files, cfg.GracePeriod, cfg.MinExpiration, cfg.EnableMinuteExpiration)

	// Register the store gauges alongside the promauto defaults
	prometheus.MustRegister(metrics.NewStoreCollector(uploads))

	// Record start time for health checks
	startTime := time.Now()

	// Setup HTTP router
	mux := http.NewServeMux()

	mux.HandleFunc("GET /{$}", handlers.HomeHandler(renderer))
	mux.HandleFunc("POST /upload", handlers.UploadHandler(ctrl, files, renderer, cfg))

	mux.HandleFunc("GET /v/{id}", handlers.ViewHandler(ctrl, renderer))
	mux.HandleFunc("POST /v/{id}/password", handlers.ViewPasswordHandler(ctrl, renderer))
	mux.HandleFunc("GET /media/{id}/{filename}", handlers.MediaHandler(ctrl, files))

	mux.HandleFunc("GET /dashboard/{id}", handlers.DashboardHandler(ctrl, renderer, cfg))
	mux.HandleFunc("POST /dashboard/{id}/expiration", handlers.ExtendExpirationHandler(ctrl, renderer))
	mux.HandleFunc("POST /dashboard/{id}/views", handlers.SetViewLimitHandler(ctrl, renderer))
	mux.HandleFunc("POST /dashboard/{id}/password", handlers.SetPasswordHandler(ctrl, renderer))
	mux.HandleFunc("POST /dashboard/{id}/countdown", handlers.SetCountdownHandler(ctrl, renderer))
	mux.HandleFunc("POST /dashboard/{id}/delete", handlers.DeleteHandler(ctrl, renderer))

	mux.HandleFunc("GET /status", handlers.StatusPageHandler(ctrl, renderer, startTime))
	mux.HandleFunc("GET /health", handlers.HealthHandler(ctrl, startTime))
	mux.Handle("GET /metrics", promhttp.Handler())

	// Setup rate limiter
	rateLimiter := middleware.NewRateLimiter(cfg.RateLimitUpload, cfg.RateLimitView)
	defer rateLimiter.Stop()

	// Middleware chain: recovery -> logging -> security headers -> metrics -> rate limit
	handler := middleware.RecoveryMiddleware(
		middleware.LoggingMiddleware(
			middleware.SecurityHeadersMiddleware(
				metrics.Middleware(
					middleware.RateLimitMiddleware(rateLimiter)(mux),
				),
			),
		),
	)

	// Setup HTTP server
	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      handler,
		ReadTimeout:  15 * time.Minute, // large media uploads
		WriteTimeout: 15 * time.Minute,
		IdleTimeout:  60 * time.Second,
	}

	// Start the background sweep worker
	go ctrl.RunSweeper(ctx, cfg.SweepInterval)

	// Start HTTP server in a goroutine
	serverErrors := make(chan error, 1)
	go func() {
		slog.Info("http server listening", "address", server.Addr)
		serverErrors <- server.ListenAndServe()
	}()

	// Setup graceful shutdown
	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	// Wait for shutdown signal or server error
	select {
	case err := <-serverErrors:
		slog.Error("server error", "error", err)
		os.Exit(1)

	case sig := <-shutdown:
		slog.Info("shutdown signal received", "signal", sig)

		// Stop the sweep worker
		cancel()

		// Give outstanding requests 10 seconds to complete
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			slog.Error("graceful shutdown failed", "error", err)
			if err := server.Close(); err != nil {
				slog.Error("server close failed", "error", err)
			}
			os.Exit(1)
		}

		slog.Info("server shutdown complete")
	}
}

// openStore selects the record store backend from configuration.
func openStore(ctx context.Context, cfg *config.Config) (store.UploadStore, error) {
	switch cfg.StoreBackend {
	case "sqlite":
		st, err := sqlite.Open(cfg.DBPath)
		if err != nil {
			return nil, err
		}
		slog.Info("sqlite store initialized", "path", cfg.DBPath)
		return st, nil
	case "postgres":
		st, err := postgres.Open(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, err
		}
		slog.Info("postgres store initialized")
		return st, nil
	default:
		slog.Info("in-memory store initialized")
		return memory.New(), nil
	}
}

// openStorage selects the file storage backend from configuration.
func openStorage(ctx context.Context, cfg *config.Config) (storage.Backend, error) {
	if cfg.StorageBackend == "s3" {
		return s3.New(ctx, s3.S3Config{
			Bucket:          cfg.S3Bucket,
			Region:          cfg.S3Region,
			Endpoint:        cfg.S3Endpoint,
			AccessKeyID:     cfg.S3AccessKeyID,
			SecretAccessKey: cfg.S3SecretAccessKey,
			PathStyle:       cfg.S3PathStyle,
		})
	}

	fs, err := filesystem.New(cfg.UploadDir)
	if err != nil {
		return nil, err
	}
	slog.Info("upload directory ready", "path", cfg.UploadDir)
	return fs, nil
}
