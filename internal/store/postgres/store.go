// Package postgres implements store.UploadStore on PostgreSQL via pgx.
// Records are stored as JSONB documents with indexed lifecycle columns.
package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/fadedrop/fadedrop/internal/models"
	"github.com/fadedrop/fadedrop/internal/store"
)

const schema = `
CREATE TABLE IF NOT EXISTS uploads (
    id TEXT PRIMARY KEY,
    data JSONB NOT NULL,
    deleted BOOLEAN NOT NULL DEFAULT FALSE,
    auto_delete_at TIMESTAMPTZ NOT NULL,
    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE INDEX IF NOT EXISTS idx_uploads_deleted ON uploads(deleted);
CREATE INDEX IF NOT EXISTS idx_uploads_auto_delete_at ON uploads(auto_delete_at);
`

// Store implements store.UploadStore for PostgreSQL.
type Store struct {
	pool  *pgxpool.Pool
	locks *store.KeyedMutex
}

// Open connects to PostgreSQL with a pooled connection and creates the
// schema if needed.
func Open(ctx context.Context, connString string) (*Store, error) {
	config, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, fmt.Errorf("failed to parse connection string: %w", err)
	}

	config.MaxConns = 25
	config.MinConns = 5
	config.MaxConnLifetime = time.Hour
	config.MaxConnIdleTime = 30 * time.Minute
	config.HealthCheckPeriod = 1 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	if _, err := pool.Exec(ctx, schema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}

	return &Store{
		pool:  pool,
		locks: store.NewKeyedMutex(),
	}, nil
}

// Insert stores a new upload record.
func (s *Store) Insert(ctx context.Context, upload *models.Upload) error {
	data, err := json.Marshal(upload)
	if err != nil {
		return fmt.Errorf("failed to marshal upload %s: %w", upload.ID, err)
	}

	_, err = s.pool.Exec(ctx,
		`INSERT INTO uploads (id, data, deleted, auto_delete_at, created_at) VALUES ($1, $2, $3, $4, $5)`,
		upload.ID, data, upload.Deleted, upload.Expiration.AutoDeleteAt.UTC(), upload.CreatedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("failed to insert upload %s: %w", upload.ID, err)
	}

	return nil
}

// Get returns the upload with the given ID.
func (s *Store) Get(ctx context.Context, id string) (*models.Upload, error) {
	var data []byte
	err := s.pool.QueryRow(ctx,
		`SELECT data FROM uploads WHERE id = $1`, id,
	).Scan(&data)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query upload %s: %w", id, err)
	}

	return unmarshalUpload(id, data)
}

// Update applies fn to the stored record inside the record's critical
// section and persists the result. The keyed mutex serializes concurrent
// Updates for the same ID; the service owns its records, so no other
// writer exists outside this process.
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

	_, err = s.pool.Exec(ctx,
		`UPDATE uploads SET data = $1, deleted = $2, auto_delete_at = $3 WHERE id = $4`,
		data, upload.Deleted, upload.Expiration.AutoDeleteAt.UTC(), id,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to update upload %s: %w", id, err)
	}

	return upload, nil
}

// ForEach calls fn with every stored record.
func (s *Store) ForEach(ctx context.Context, fn func(*models.Upload) error) error {
	rows, err := s.pool.Query(ctx, `SELECT id, data FROM uploads`)
	if err != nil {
		return fmt.Errorf("failed to query uploads: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var id string
		var data []byte
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
	err := s.pool.QueryRow(ctx,
		`SELECT
			COUNT(*) FILTER (WHERE NOT deleted),
			COUNT(*) FILTER (WHERE deleted)
		FROM uploads`,
	).Scan(&stats.Active, &stats.Deleted)
	if err != nil {
		return store.Stats{}, fmt.Errorf("failed to count uploads: %w", err)
	}
	return stats, nil
}

// Close closes the connection pool.
func (s *Store) Close() error {
	s.pool.Close()
	return nil
}

func unmarshalUpload(id string, data []byte) (*models.Upload, error) {
	var upload models.Upload
	if err := json.Unmarshal(data, &upload); err != nil {
		return nil, fmt.Errorf("failed to unmarshal upload %s: %w", id, err)
	}
	return &upload, nil
}
