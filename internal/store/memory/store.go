// Package memory implements an in-memory store.UploadStore. It is the
// default backend; records do not survive a restart, matching the
// ephemeral nature of the links themselves.
package memory

import (
	"context"
	"fmt"
	"sync"

	"github.com/fadedrop/fadedrop/internal/models"
	"github.com/fadedrop/fadedrop/internal/store"
)

// entry pairs a record with its own mutex so lifecycle operations on one
// upload serialize without blocking the rest of the map.
type entry struct {
	mu     sync.Mutex
	upload *models.Upload
}

// Store implements store.UploadStore backed by a map.
type Store struct {
	mu      sync.RWMutex
	uploads map[string]*entry
}

// New creates an empty in-memory store.
func New() *Store {
	return &Store{
		uploads: make(map[string]*entry),
	}
}

// Insert stores a new upload record.
func (s *Store) Insert(ctx context.Context, upload *models.Upload) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.uploads[upload.ID]; exists {
		return fmt.Errorf("upload %s already exists", upload.ID)
	}

	s.uploads[upload.ID] = &entry{upload: upload.Clone()}
	return nil
}

// Get returns a copy of the upload with the given ID.
func (s *Store) Get(ctx context.Context, id string) (*models.Upload, error) {
	s.mu.RLock()
	e, ok := s.uploads[id]
	s.mu.RUnlock()

	if !ok {
		return nil, store.ErrNotFound
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	return e.upload.Clone(), nil
}

// Update applies fn to the stored record under the record's lock.
func (s *Store) Update(ctx context.Context, id string, fn func(*models.Upload) error) (*models.Upload, error) {
	s.mu.RLock()
	e, ok := s.uploads[id]
	s.mu.RUnlock()

	if !ok {
		return nil, store.ErrNotFound
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	// fn works on a copy so a failed mutation leaves the record untouched.
	working := e.upload.Clone()
	if err := fn(working); err != nil {
		return nil, err
	}

	e.upload = working
	return working.Clone(), nil
}

// ForEach calls fn with a copy of every stored record.
func (s *Store) ForEach(ctx context.Context, fn func(*models.Upload) error) error {
	s.mu.RLock()
	entries := make([]*entry, 0, len(s.uploads))
	for _, e := range s.uploads {
		entries = append(entries, e)
	}
	s.mu.RUnlock()

	for _, e := range entries {
		e.mu.Lock()
		cp := e.upload.Clone()
		e.mu.Unlock()

		if err := fn(cp); err != nil {
			return err
		}
	}

	return nil
}

// Stats returns counts of active and deleted uploads.
func (s *Store) Stats(ctx context.Context) (store.Stats, error) {
	var stats store.Stats
	err := s.ForEach(ctx, func(u *models.Upload) error {
		if u.Deleted {
			stats.Deleted++
		} else {
			stats.Active++
		}
		return nil
	})
	return stats, err
}

// Close is a no-op for the in-memory store.
func (s *Store) Close() error {
	return nil
}
