// Package storage provides abstraction for media file storage operations.
// This enables support for different storage backends (local filesystem, S3)
// without changing the handler code.
package storage

import (
	"context"
	"errors"
	"io"
)

// ErrNotFound is wrapped by backends when the requested file does not exist.
var ErrNotFound = errors.New("file not found")

// Backend defines the interface for media file storage operations.
// Implementations can support local filesystem, S3, or other providers.
// Paths are backend-relative keys of the form "<mediaType>/<storedFilename>".
type Backend interface {
	// Store writes data from the reader to storage under the given key.
	// Returns the storage path used for later Retrieve/Delete calls.
	// The size parameter, when positive, is validated against the bytes
	// actually written.
	Store(ctx context.Context, key string, reader io.Reader, size int64) (path string, err error)

	// Retrieve returns a reader for the stored file along with its size.
	// The caller is responsible for closing the returned ReadCloser.
	Retrieve(ctx context.Context, path string) (io.ReadCloser, int64, error)

	// Delete removes a file from storage. Deleting a file that is already
	// gone is not an error; cleanup must be idempotent.
	Delete(ctx context.Context, path string) error

	// Exists checks if a file exists in storage.
	Exists(ctx context.Context, path string) (bool, error)
}

// StorageError represents errors from storage operations with additional context.
type StorageError struct {
	Op      string // Operation that failed (e.g., "Store", "Retrieve", "Delete")
	Path    string // Path or key involved
	Err     error  // Underlying error
	Message string // Human-readable message
}

func (e *StorageError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	if e.Path != "" {
		return e.Op + " " + e.Path + ": " + e.Err.Error()
	}
	return e.Op + ": " + e.Err.Error()
}

func (e *StorageError) Unwrap() error {
	return e.Err
}

// NewStorageError creates a new StorageError with the given details.
func NewStorageError(op, path string, err error) *StorageError {
	return &StorageError{
		Op:   op,
		Path: path,
		Err:  err,
	}
}

// NewStorageErrorWithMessage creates a new StorageError with a custom message.
func NewStorageErrorWithMessage(op, path string, err error, message string) *StorageError {
	return &StorageError{
		Op:      op,
		Path:    path,
		Err:     err,
		Message: message,
	}
}
