// Package store defines the persistence interface for upload records.
// Implementations exist for in-memory, SQLite and PostgreSQL backends.
package store

import (
	"context"
	"errors"

	"github.com/fadedrop/fadedrop/internal/models"
)

// ErrNotFound is returned when no upload exists for the given ID.
var ErrNotFound = errors.New("upload not found")

// Stats summarizes the store contents for health reporting.
type Stats struct {
	Active  int
	Deleted int
}

// UploadStore is the persistence interface for upload records.
//
// Get and ForEach return copies; mutating a returned record never changes
// stored state. All mutations go through Update, which runs fn inside the
// record's critical section so concurrent lifecycle operations on the same
// upload serialize. Two Updates on different IDs may run in parallel.
type UploadStore interface {
	// Insert stores a new upload record. The ID must not already exist.
	Insert(ctx context.Context, upload *models.Upload) error

	// Get returns a copy of the upload with the given ID, or ErrNotFound.
	Get(ctx context.Context, id string) (*models.Upload, error)

	// Update applies fn to the stored record under the record's lock and
	// persists the result. If fn returns an error the record is left
	// unchanged and the error is returned. On success Update returns a
	// copy of the updated record. Returns ErrNotFound for unknown IDs.
	Update(ctx context.Context, id string, fn func(*models.Upload) error) (*models.Upload, error)

	// ForEach calls fn with a copy of every stored record, including
	// deleted ones. Iteration stops on the first error.
	ForEach(ctx context.Context, fn func(*models.Upload) error) error

	// Stats returns counts of active and deleted uploads.
	Stats(ctx context.Context) (Stats, error)

	// Close releases any resources held by the store.
	Close() error
}
