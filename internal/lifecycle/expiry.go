package lifecycle

import (
	"time"

	"github.com/fadedrop/fadedrop/internal/models"
	"github.com/fadedrop/fadedrop/internal/utils"
)

// MaxExpirationFromNow caps how far in the future any upload may expire,
// both at creation and after extensions.
const MaxExpirationFromNow = 30 * 24 * time.Hour

// extendIncrements is the allow-list of accepted extension amounts.
var extendIncrements = map[time.Duration]bool{
	1 * time.Hour:       true,
	2 * time.Hour:       true,
	6 * time.Hour:       true,
	12 * time.Hour:      true,
	24 * time.Hour:      true,
	3 * 24 * time.Hour:  true,
	7 * 24 * time.Hour:  true,
	30 * 24 * time.Hour: true,
}

// ExtendIncrements returns the accepted extension amounts in ascending
// order, for rendering the dashboard form.
func ExtendIncrements() []time.Duration {
	return []time.Duration{
		1 * time.Hour,
		2 * time.Hour,
		6 * time.Hour,
		12 * time.Hour,
		24 * time.Hour,
		3 * 24 * time.Hour,
		7 * 24 * time.Hour,
		30 * 24 * time.Hour,
	}
}

// IsExpired reports whether the upload's expiry has passed.
func IsExpired(u *models.Upload, now time.Time) bool {
	return !now.Before(u.Expiration.ExpiresAt)
}

// IsPastAutoDelete reports whether the upload is past its auto-delete time.
// Falls back to expiresAt+grace when autoDeleteAt was never set.
func IsPastAutoDelete(u *models.Upload, now time.Time, grace time.Duration) bool {
	autoDeleteAt := u.Expiration.AutoDeleteAt
	if autoDeleteAt.IsZero() {
		autoDeleteAt = u.Expiration.ExpiresAt.Add(grace)
	}
	return !now.Before(autoDeleteAt)
}

// BuildExpiration turns a value+unit pair from the upload form into an
// expiration schedule. Units are hours and days; minutes only when enabled
// by configuration. Malformed or out-of-range durations are rejected, not
// clamped.
func BuildExpiration(value int, unit string, now time.Time, minDuration, grace time.Duration, allowMinutes bool) (models.Expiration, error) {
	if value <= 0 {
		return models.Expiration{}, utils.NewValidationError("expiration value must be positive")
	}

	var per time.Duration
	switch unit {
	case "hours":
		per = time.Hour
	case "days":
		per = 24 * time.Hour
	case "minutes":
		if !allowMinutes {
			return models.Expiration{}, utils.NewValidationError("unsupported expiration unit %q", unit)
		}
		per = time.Minute
	default:
		return models.Expiration{}, utils.NewValidationError("unsupported expiration unit %q", unit)
	}

	duration := time.Duration(value) * per
	if duration < minDuration {
		return models.Expiration{}, utils.NewValidationError("expiration must be at least %s", minDuration)
	}
	if duration > MaxExpirationFromNow {
		return models.Expiration{}, utils.NewValidationError("expiration cannot exceed 30 days")
	}

	expiresAt := now.Add(duration)
	return models.Expiration{
		Value:        value,
		Unit:         unit,
		Duration:     duration,
		ExpiresAt:    expiresAt,
		AutoDeleteAt: expiresAt.Add(grace),
	}, nil
}

// Extend pushes the upload's expiry forward by one of the allow-listed
// increments. The base is the later of the current expiry and now, so
// extending an already-expired (but not yet auto-deleted) link restarts the
// clock from now rather than from the stale past expiry. Mutates u.
func Extend(u *models.Upload, increment time.Duration, now time.Time, grace time.Duration) error {
	if u.Deleted {
		return ErrAlreadyDeleted
	}
	if !extendIncrements[increment] {
		return ErrInvalidIncrement
	}

	base := u.Expiration.ExpiresAt
	if base.Before(now) {
		base = now
	}

	newExpiresAt := base.Add(increment)
	if newExpiresAt.After(now.Add(MaxExpirationFromNow)) {
		return ErrTooFarInFuture
	}

	u.Expiration.ExpiresAt = newExpiresAt
	u.Expiration.AutoDeleteAt = newExpiresAt.Add(grace)
	// The stored duration tracks the full current lifetime, not the
	// originally requested one.
	u.Expiration.Duration = newExpiresAt.Sub(u.CreatedAt)

	// Reactivation path: an extension on a live record clears any stale
	// terminal markers left by older data.
	u.Deleted = false
	u.DeletedAt = nil
	u.DeletedReason = ""

	return nil
}
