package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog/log"
	"github.com/wolfeidau/fpconsole/internal/store"
)

// Store implements store.Store using a PostgreSQL table.
type Store struct {
	pool *pgxpool.Pool
	ttl  time.Duration
}

// NewStore creates a record store on an existing pool.
func NewStore(pool *pgxpool.Pool, ttl time.Duration) *Store {
	return &Store{pool: pool, ttl: ttl}
}

// Open creates the pool, optionally migrates, and returns the store.
func Open(ctx context.Context, cfg Config) (*Store, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid postgres config: %w", err)
	}

	pool, err := NewPool(ctx, &cfg.Pool)
	if err != nil {
		return nil, err
	}

	if cfg.AutoMigrate {
		if err := runMigrations(ctx, pool); err != nil {
			pool.Close()
			return nil, err
		}
	}

	return NewStore(pool, cfg.TTL), nil
}

// Get retrieves a record by key. Expired records are reported as missing.
func (s *Store) Get(ctx context.Context, key string) ([]byte, error) {
	query := `
		SELECT value
		FROM console_records
		WHERE key = $1 AND (expires_at IS NULL OR expires_at > now())
	`

	var value []byte
	if err := s.pool.QueryRow(ctx, query, key).Scan(&value); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get record: %w", mapPostgresError(err))
	}

	return value, nil
}

// Put upserts a record, refreshing its expiry.
func (s *Store) Put(ctx context.Context, key string, value []byte) error {
	query := `
		INSERT INTO console_records (key, value, updated_at, expires_at)
		VALUES ($1, $2, now(), $3)
		ON CONFLICT (key) DO UPDATE
		SET value = EXCLUDED.value, updated_at = EXCLUDED.updated_at, expires_at = EXCLUDED.expires_at
	`

	var expiresAt *time.Time
	if s.ttl > 0 {
		t := time.Now().Add(s.ttl)
		expiresAt = &t
	}

	if _, err := s.pool.Exec(ctx, query, key, value, expiresAt); err != nil {
		return fmt.Errorf("failed to put record: %w", mapPostgresError(err))
	}

	return nil
}

// Delete deletes a record by key.
func (s *Store) Delete(ctx context.Context, key string) error {
	result, err := s.pool.Exec(ctx, `DELETE FROM console_records WHERE key = $1`, key)
	if err != nil {
		return fmt.Errorf("failed to delete record: %w", mapPostgresError(err))
	}

	if result.RowsAffected() > 0 {
		log.Debug().Str("key", key).Msg("Deleted record")
	}

	return nil
}

// DeleteExpired deletes all expired records (cleanup job).
func (s *Store) DeleteExpired(ctx context.Context) (int, error) {
	result, err := s.pool.Exec(ctx, `DELETE FROM console_records WHERE expires_at < now()`)
	if err != nil {
		return 0, fmt.Errorf("failed to delete expired records: %w", mapPostgresError(err))
	}

	count := int(result.RowsAffected())
	if count > 0 {
		log.Info().Int("count", count).Msg("Deleted expired records")
	}

	return count, nil
}

// Close releases the pool.
func (s *Store) Close() {
	s.pool.Close()
}
