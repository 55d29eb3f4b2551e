// Package sqlite implements store.UploadStore on SQLite via modernc.org/sqlite.
// Records are stored as JSON documents with indexed lifecycle columns, which
// keeps the schema stable while the record shape evolves.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/fadedrop/fadedrop/internal/database"
	"github.com/fadedrop/fadedrop/internal/models"
	"github.com/fadedrop/fadedrop/internal/store"
)

// Store implements store.UploadStore for SQLite.
type Store struct {
	db    *sql.DB
	locks *store.KeyedMutex
}

// Open opens (or creates) the SQLite database at dbPath.
func Open(dbPath string) (*Store, error) {
	db, err := database.Initialize(dbPath)
	if err != nil {
		return nil, err
	}

	return &Store{
		db:    db,
		locks: store.NewKeyedMutex(),
	}, nil
}

// NewWithDB wraps an existing database handle. Used by tests.
func NewWithDB(db *sql.DB) *Store {
	return &Store{
		db:    db,
		locks: store.NewKeyedMutex(),
	}
}

// Insert stores a new upload record.
func (s *Store) Insert(ctx context.Context, upload *models.Upload) error {
	data, err := json.Marshal(upload)
	if err != nil {
		return fmt.Errorf("failed to marshal upload %s: %w", upload.ID, err)
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO uploads (id, data, deleted, auto_delete_at, created_at) VALUES (?, ?, ?, ?, ?)`,
		upload.ID, string(data), boolToInt(upload.Deleted),
		upload.Expiration.AutoDeleteAt.UTC(), upload.CreatedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("failed to insert upload %s: %w", upload.ID, err)
	}

	return nil
}

// Get returns the upload with the given ID.
func (s *Store) Get(ctx context.Context, id string) (*models.Upload, error) {
	var data string
	err := s.db.QueryRowContext(ctx,
		`SELECT data FROM uploads WHERE id = ?`, id,
	).Scan(&data)
	if err == sql.ErrNoRows {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query upload %s: %w", id, err)
	}

	return unmarshalUpload(id, data)
}

// Update applies fn to the stored record inside the record's critical
// section and persists the result. The keyed mutex serializes concurrent
// Updates for the same ID across the read-modify-write cycle.
func (s *Store) Update(ctx context.Context, id string, fn func(*models.Upload) error) (*models.Upload, error) {
	s.locks.Lock(id)
	defer s.locks.Unlock(id)

	upload, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	if err := fn(upload); err != nil {
		return nil, err
	}

	data, err := json.Marshal(upload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal upload %s: %w", id, err)
	}

	_, err = s.db.ExecContext(ctx,
		`UPDATE uploads SET data = ?, deleted = ?, auto_delete_at = ? WHERE id = ?`,
		string(data), boolToInt(upload.Deleted), upload.Expiration.AutoDeleteAt.UTC(), id,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to update upload %s: %w", id, err)
	}

	return upload, nil
}

// ForEach calls fn with every stored record.
func (s *Store) ForEach(ctx context.Context, fn func(*models.Upload) error) error {
	rows, err := s.db.QueryContext(ctx, `SELECT id, data FROM uploads`)
	if err != nil {
		return fmt.Errorf("failed to query uploads: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var id, data string
		if err := rows.Scan(&id, &data); err != nil {
			return fmt.Errorf("failed to scan upload row: %w", err)
		}

		upload, err := unmarshalUpload(id, data)
		if err != nil {
			return err
		}

		if err := fn(upload); err != nil {
			return err
		}
	}

	return rows.Err()
}

// Stats returns counts of active and deleted uploads.
func (s *Store) Stats(ctx context.Context) (store.Stats, error) {
	var stats store.Stats
	err := s.db.QueryRowContext(ctx,
		`SELECT
			COUNT(*) FILTER (WHERE deleted = 0),
			COUNT(*) FILTER (WHERE deleted = 1)
		FROM uploads`,
	).Scan(&stats.Active, &stats.Deleted)
	if err != nil {
		return store.Stats{}, fmt.Errorf("failed to count uploads: %w", err)
	}
	return stats, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func unmarshalUpload(id, data string) (*models.Upload, error) {
	var upload models.Upload
	if err := json.Unmarshal([]byte(data), &upload); err != nil {
		return nil, fmt.Errorf("failed to unmarshal upload %s: %w", id, err)
	}
	return &upload, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
