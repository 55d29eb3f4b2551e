package lifecycle

import (
	"context"
	"log/slog"
	"time"

	"github.com/fadedrop/fadedrop/internal/models"
)

// RunSweeper reconciles every record on a fixed interval until the context
// is cancelled. Lazy reconciliation alone would never free storage for
// links nobody visits again.
func (c *Controller) RunSweeper(ctx context.Context, interval time.Duration) {
	slog.Info("sweep worker started", "interval", interval.String())

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			slog.Info("sweep worker stopped")
			return
		case <-ticker.C:
			if n, err := c.SweepOnce(ctx); err != nil {
				slog.Error("sweep failed", "error", err)
			} else if n > 0 {
				slog.Info("sweep completed", "auto_deleted", n)
			}
		}
	}
}

// SweepOnce runs one pass over all records and returns how many were
// auto-deleted. Each candidate transitions through the same per-record
// critical section as request-triggered reconciliation, so a sweep racing
// a request is harmless: the loser observes deleted=true and no-ops.
func (c *Controller) SweepOnce(ctx context.Context) (int, error) {
	now := c.Now()

	var candidates []string
	err := c.store.ForEach(ctx, func(u *models.Upload) error {
		if !u.Deleted && IsPastAutoDelete(u, now, c.grace) {
			candidates = append(candidates, u.ID)
		}
		return nil
	})
	if err != nil {
		return 0, err
	}

	deleted := 0
	for _, id := range candidates {
		upload, err := c.Reconcile(ctx, id)
		if err != nil {
			slog.Error("sweep reconcile failed", "upload_id", id, "error", err)
			continue
		}
		if upload.Deleted && upload.DeletedReason == models.DeletedAuto {
			deleted++
		}
	}

	return deleted, nil
}
