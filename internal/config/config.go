package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all application configuration
type Config struct {
	Port      string
	PublicURL string // Optional: override auto-detected URL for reverse proxy setups

	StoreBackend string // "memory", "sqlite" or "postgres"
	DBPath       string // SQLite database path
	DatabaseURL  string // Postgres connection string

	StorageBackend string // "filesystem" or "s3"
	UploadDir      string

	S3Bucket          string
	S3Region          string
	S3Endpoint        string // Custom endpoint for MinIO or other S3-compatible services
	S3AccessKeyID     string
	S3SecretAccessKey string
	S3PathStyle       bool // Path-style addressing (required for MinIO)

	GracePeriod   time.Duration // Extra time after expiry before auto-delete
	SweepInterval time.Duration // Background reconcile interval
	MinExpiration time.Duration // Smallest accepted upload duration

	// EnableMinuteExpiration enables the "minutes" expiration unit.
	// Meant for test environments; production keeps hours/days only.
	EnableMinuteExpiration bool

	RateLimitUpload int // Upload requests per hour per IP
	RateLimitView   int // View requests per hour per IP
}

// Load reads configuration from the environment (and an optional .env file)
// with sensible defaults.
func Load() (*Config, error) {
	// A missing .env file is not an error; env vars always win.
	_ = godotenv.Load()

	cfg := &Config{
		Port:      getEnv("PORT", "3000"),
		PublicURL: getEnv("PUBLIC_URL", ""),

		StoreBackend: getEnv("STORE_BACKEND", "memory"),
		DBPath:       getEnv("DB_PATH", "./fadedrop.db"),
		DatabaseURL:  getEnv("DATABASE_URL", ""),

		StorageBackend: getEnv("STORAGE_BACKEND", "filesystem"),
		UploadDir:      getEnv("UPLOAD_DIR", "./uploads"),

		S3Bucket:          getEnv("S3_BUCKET", ""),
		S3Region:          getEnv("S3_REGION", ""),
		S3Endpoint:        getEnv("S3_ENDPOINT", ""),
		S3AccessKeyID:     getEnv("S3_ACCESS_KEY_ID", ""),
		S3SecretAccessKey: getEnv("S3_SECRET_ACCESS_KEY", ""),
		S3PathStyle:       getEnvBool("S3_PATH_STYLE", false),

		GracePeriod:   getEnvDuration("GRACE_PERIOD", 24*time.Hour),
		SweepInterval: getEnvDuration("SWEEP_INTERVAL", 30*time.Second),
		MinExpiration: getEnvDuration("MIN_EXPIRATION", time.Minute),

		EnableMinuteExpiration: getEnvBool("ENABLE_MINUTE_EXPIRATION", false),

		RateLimitUpload: getEnvInt("RATE_LIMIT_UPLOAD", 20),
		RateLimitView:   getEnvInt("RATE_LIMIT_VIEW", 300),
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// validate ensures configuration values are sensible
func (c *Config) validate() error {
	if c.Port == "" {
		return fmt.Errorf("PORT cannot be empty")
	}

	switch c.StoreBackend {
	case "memory":
	case "sqlite":
		if c.DBPath == "" {
			return fmt.Errorf("DB_PATH cannot be empty with STORE_BACKEND=sqlite")
		}
	case "postgres":
		if c.DatabaseURL == "" {
			return fmt.Errorf("DATABASE_URL cannot be empty with STORE_BACKEND=postgres")
		}
	default:
		return fmt.Errorf("STORE_BACKEND must be memory, sqlite or postgres, got %q", c.StoreBackend)
	}

	switch c.StorageBackend {
	case "filesystem":
		if c.UploadDir == "" {
			return fmt.Errorf("UPLOAD_DIR cannot be empty with STORAGE_BACKEND=filesystem")
		}
	case "s3":
		if c.S3Bucket == "" {
			return fmt.Errorf("S3_BUCKET cannot be empty with STORAGE_BACKEND=s3")
		}
	default:
		return fmt.Errorf("STORAGE_BACKEND must be filesystem or s3, got %q", c.StorageBackend)
	}

	if c.GracePeriod < 0 {
		return fmt.Errorf("GRACE_PERIOD must be zero or positive, got %s", c.GracePeriod)
	}

	if c.SweepInterval <= 0 {
		return fmt.Errorf("SWEEP_INTERVAL must be positive, got %s", c.SweepInterval)
	}

	if c.MinExpiration <= 0 {
		return fmt.Errorf("MIN_EXPIRATION must be positive, got %s", c.MinExpiration)
	}

	if c.RateLimitUpload <= 0 {
		return fmt.Errorf("RATE_LIMIT_UPLOAD must be positive, got %d", c.RateLimitUpload)
	}

	if c.RateLimitView <= 0 {
		return fmt.Errorf("RATE_LIMIT_VIEW must be positive, got %d", c.RateLimitView)
	}

	return nil
}

// getEnv retrieves an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvInt retrieves an integer environment variable or returns a default value
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

// getEnvBool retrieves a boolean environment variable or returns a default value
func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

// getEnvDuration retrieves a duration environment variable (Go duration
// syntax, e.g. "24h", "90s") or returns a default value
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
