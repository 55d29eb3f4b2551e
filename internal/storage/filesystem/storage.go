// Package filesystem implements the storage.Backend interface for local
// filesystem storage. Files are laid out as <baseDir>/<mediaType>/<filename>.
package filesystem

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/fadedrop/fadedrop/internal/storage"
)

// FilesystemStorage implements storage.Backend for local filesystem storage.
type FilesystemStorage struct {
	baseDir    string // Base directory for all storage operations
	absBaseDir string // Absolute path of baseDir for path validation
}

// New creates a FilesystemStorage rooted at baseDir, creating the directory
// if it does not exist.
func New(baseDir string) (*FilesystemStorage, error) {
	if err := os.MkdirAll(baseDir, 0755); err != nil {
		return nil, storage.NewStorageError("New", baseDir, err)
	}

	absBaseDir, err := filepath.Abs(baseDir)
	if err != nil {
		return nil, storage.NewStorageError("New", baseDir, err)
	}

	return &FilesystemStorage{
		baseDir:    baseDir,
		absBaseDir: absBaseDir,
	}, nil
}

// validatePath validates that the key doesn't escape the base directory.
// Returns the safe full path or an error if path traversal is detected.
func (fs *FilesystemStorage) validatePath(key string) (string, error) {
	cleanKey := filepath.Clean(key)

	if filepath.IsAbs(cleanKey) {
		return "", fmt.Errorf("absolute paths not allowed: %s", key)
	}

	if strings.HasPrefix(cleanKey, "..") || strings.Contains(cleanKey, string(filepath.Separator)+"..") {
		return "", fmt.Errorf("path traversal not allowed: %s", key)
	}

	fullPath := filepath.Join(fs.baseDir, cleanKey)

	absPath, err := filepath.Abs(fullPath)
	if err != nil {
		return "", fmt.Errorf("invalid path: %w", err)
	}

	// The resolved path must stay within baseDir.
	if !strings.HasPrefix(absPath, fs.absBaseDir+string(filepath.Separator)) && absPath != fs.absBaseDir {
		return "", fmt.Errorf("path escape attempt: %s", key)
	}

	return fullPath, nil
}

// Store writes data from the reader to storage under the given key.
// Uses atomic write pattern (temp file then rename) for safety.
func (fs *FilesystemStorage) Store(ctx context.Context, key string, reader io.Reader, size int64) (string, error) {
	filePath, err := fs.validatePath(key)
	if err != nil {
		return "", storage.NewStorageErrorWithMessage("Store", key, err, "path validation failed")
	}

	if err := os.MkdirAll(filepath.Dir(filePath), 0755); err != nil {
		return "", storage.NewStorageError("Store", key, err)
	}

	tempPath := filePath + ".tmp"

	tempFile, err := os.Create(tempPath)
	if err != nil {
		return "", storage.NewStorageError("Store", key, err)
	}

	var succeeded bool
	defer func() {
		tempFile.Close()
		if !succeeded {
			os.Remove(tempPath)
		}
	}()

	written, err := io.Copy(tempFile, reader)
	if err != nil {
		return "", storage.NewStorageError("Store", key, err)
	}

	if size > 0 && written != size {
		return "", storage.NewStorageErrorWithMessage("Store", key, nil,
			fmt.Sprintf("size mismatch: expected %d bytes, wrote %d bytes", size, written))
	}

	if err := tempFile.Close(); err != nil {
		return "", storage.NewStorageError("Store", key, err)
	}

	if err := os.Rename(tempPath, filePath); err != nil {
		return "", storage.NewStorageError("Store", key, err)
	}

	succeeded = true
	slog.Debug("file stored", "key", key, "size", written)

	return key, nil
}

// Retrieve returns a reader for the stored file along with its size.
func (fs *FilesystemStorage) Retrieve(ctx context.Context, path string) (io.ReadCloser, int64, error) {
	filePath, err := fs.validatePath(path)
	if err != nil {
		return nil, 0, storage.NewStorageErrorWithMessage("Retrieve", path, err, "path validation failed")
	}

	file, err := os.Open(filePath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, 0, storage.NewStorageError("Retrieve", path, storage.ErrNotFound)
		}
		return nil, 0, storage.NewStorageError("Retrieve", path, err)
	}

	info, err := file.Stat()
	if err != nil {
		file.Close()
		return nil, 0, storage.NewStorageError("Retrieve", path, err)
	}

	return file, info.Size(), nil
}

// Delete removes a file from storage. A missing file is not an error.
func (fs *FilesystemStorage) Delete(ctx context.Context, path string) error {
	filePath, err := fs.validatePath(path)
	if err != nil {
		return storage.NewStorageErrorWithMessage("Delete", path, err, "path validation failed")
	}

	if err := os.Remove(filePath); err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return storage.NewStorageError("Delete", path, err)
	}

	slog.Debug("file deleted", "path", path)
	return nil
}

// Exists checks if a file exists in storage.
func (fs *FilesystemStorage) Exists(ctx context.Context, path string) (bool, error) {
	filePath, err := fs.validatePath(path)
	if err != nil {
		return false, storage.NewStorageErrorWithMessage("Exists", path, err, "path validation failed")
	}

	_, err = os.Stat(filePath)
	if err == nil {
		return true, nil
	}
	if os.IsNotExist(err) {
		return false, nil
	}
	return false, storage.NewStorageError("Exists", path, err)
}

// BaseDir returns the base directory.
func (fs *FilesystemStorage) BaseDir() string {
	return fs.baseDir
}
