// Package mock provides an in-memory implementation of the storage.Backend
// interface for testing. It allows tests to run without filesystem or
// network operations and supports error injection.
package mock

import (
	"bytes"
	"context"
	"io"
	"sync"

	"github.com/fadedrop/fadedrop/internal/storage"
)

// Backend is a mock implementation of storage.Backend for testing.
type Backend struct {
	mu    sync.RWMutex
	files map[string][]byte // path -> content

	// Error injection for testing
	StoreError    error
	RetrieveError error
	DeleteError   error
	ExistsError   error
}

// New creates a mock Backend with empty storage.
func New() *Backend {
	return &Backend{
		files: make(map[string][]byte),
	}
}

// Store writes data to in-memory storage.
func (m *Backend) Store(ctx context.Context, key string, reader io.Reader, size int64) (string, error) {
	if m.StoreError != nil {
		return "", m.StoreError
	}

	data, err := io.ReadAll(reader)
	if err != nil {
		return "", storage.NewStorageError("Store", key, err)
	}

	m.mu.Lock()
	m.files[key] = data
	m.mu.Unlock()

	return key, nil
}

// Retrieve returns a reader for stored content.
func (m *Backend) Retrieve(ctx context.Context, path string) (io.ReadCloser, int64, error) {
	if m.RetrieveError != nil {
		return nil, 0, m.RetrieveError
	}

	m.mu.RLock()
	data, ok := m.files[path]
	m.mu.RUnlock()

	if !ok {
		return nil, 0, storage.NewStorageError("Retrieve", path, storage.ErrNotFound)
	}

	return io.NopCloser(bytes.NewReader(data)), int64(len(data)), nil
}

// Delete removes stored content. Missing paths are not an error.
func (m *Backend) Delete(ctx context.Context, path string) error {
	if m.DeleteError != nil {
		return m.DeleteError
	}

	m.mu.Lock()
	delete(m.files, path)
	m.mu.Unlock()

	return nil
}

// Exists reports whether a path holds content.
func (m *Backend) Exists(ctx context.Context, path string) (bool, error) {
	if m.ExistsError != nil {
		return false, m.ExistsError
	}

	m.mu.RLock()
	_, ok := m.files[path]
	m.mu.RUnlock()

	return ok, nil
}

// FileCount returns the number of stored files. Test helper.
func (m *Backend) FileCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.files)
}

// Content returns the stored bytes for a path. Test helper.
func (m *Backend) Content(path string) ([]byte, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	data, ok := m.files[path]
	return data, ok
}
