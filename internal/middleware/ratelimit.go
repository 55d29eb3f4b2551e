package middleware

import (
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"
)

// requestRecord tracks requests for an IP
type requestRecord struct {
	timestamps []time.Time
	mu         sync.Mutex
}

// RateLimiter manages per-IP hourly rate limits for the upload and view
// endpoints. Everything else (health, metrics, media assets already gated
// by the view page) passes through.
type RateLimiter struct {
	uploadLimit int
	viewLimit   int
	records     sync.Map // map[string]*requestRecord
	cleanup     *time.Ticker
}

// NewRateLimiter creates a new rate limiter with per-hour limits.
func NewRateLimiter(uploadLimit, viewLimit int) *RateLimiter {
	rl := &RateLimiter{
		uploadLimit: uploadLimit,
		viewLimit:   viewLimit,
		cleanup:     time.NewTicker(1 * time.Hour),
	}

	// Start cleanup goroutine to remove old entries
	go rl.cleanupOldEntries()

	return rl
}

// cleanupOldEntries removes entries older than 1 hour
func (rl *RateLimiter) cleanupOldEntries() {
	for range rl.cleanup.C {
		now := time.Now()
		rl.records.Range(func(key, value interface{}) bool {
			record := value.(*requestRecord)
			record.mu.Lock()
			defer record.mu.Unlock()

			cutoff := now.Add(-1 * time.Hour)
			newTimestamps := record.timestamps[:0] // Reuse backing array
			for _, ts := range record.timestamps {
				if ts.After(cutoff) {
					newTimestamps = append(newTimestamps, ts)
				}
			}
			record.timestamps = newTimestamps

			// Remove empty records
			if len(record.timestamps) == 0 {
				rl.records.Delete(key)
			}

			return true
		})
	}
}

// Stop stops the cleanup goroutine
func (rl *RateLimiter) Stop() {
	rl.cleanup.Stop()
}

// checkLimit checks if the request is within rate limits
func (rl *RateLimiter) checkLimit(ip string, limit int) bool {
	now := time.Now()
	oneHourAgo := now.Add(-1 * time.Hour)

	value, _ := rl.records.LoadOrStore(ip, &requestRecord{
		timestamps: make([]time.Time, 0),
	})
	record := value.(*requestRecord)

	record.mu.Lock()
	defer record.mu.Unlock()

	newTimestamps := record.timestamps[:0] // Reuse backing array
	for _, ts := range record.timestamps {
		if ts.After(oneHourAgo) {
			newTimestamps = append(newTimestamps, ts)
		}
	}
	record.timestamps = newTimestamps

	if len(record.timestamps) >= limit {
		return false
	}

	record.timestamps = append(record.timestamps, now)
	return true
}

// RateLimitMiddleware creates a middleware that enforces rate limits
func RateLimitMiddleware(rl *RateLimiter) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			var limit int
			var limitType string

			switch {
			case r.Method == http.MethodPost && r.URL.Path == "/upload":
				limit = rl.uploadLimit
				limitType = "upload"
			case strings.HasPrefix(r.URL.Path, "/v/"):
				limit = rl.viewLimit
				limitType = "view"
			default:
				next.ServeHTTP(w, r)
				return
			}

			ip := getClientIP(r)
			if !rl.checkLimit(ip, limit) {
				slog.Warn("rate limit exceeded",
					"ip", ip,
					"limit_type", limitType,
					"limit", limit,
					"path", r.URL.Path,
				)

				w.Header().Set("Content-Type", "application/json")
				w.Header().Set("Retry-After", "3600") // 1 hour in seconds
				w.WriteHeader(http.StatusTooManyRequests)
				w.Write([]byte(`{"error":"Rate limit exceeded. Please try again later.","code":"RATE_LIMIT_EXCEEDED"}`))
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
