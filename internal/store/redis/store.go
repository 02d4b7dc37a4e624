package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
	"github.com/wolfeidau/fpconsole/internal/store"
)

// DefaultPrefix is prepended to every key written by the store.
const DefaultPrefix = "fpconsole:"

// ErrRedisUnavailable wraps connectivity failures so callers can tell them apart from missing keys.
var ErrRedisUnavailable = errors.New("redis unavailable")

// Config holds the redis store settings.
type Config struct {
	// URL is a redis connection URL, e.g. redis://localhost:6379/0
	URL string

	// Prefix is prepended to keys. Defaults to DefaultPrefix.
	Prefix string

	// TTL expires records that are not rewritten. Zero keeps them forever.
	TTL time.Duration
}

// Store implements store.Store on top of redis.
type Store struct {
	rdb    goredis.UniversalClient
	prefix string
	ttl    time.Duration
}

// NewStore wraps an existing redis client.
func NewStore(rdb goredis.UniversalClient, prefix string, ttl time.Duration) *Store {
	if prefix == "" {
		prefix = DefaultPrefix
	}
	return &Store{rdb: rdb, prefix: prefix, ttl: ttl}
}

// Open connects to redis using cfg and verifies connectivity.
func Open(ctx context.Context, cfg Config) (*Store, error) {
	if cfg.URL == "" {
		return nil, fmt.Errorf("redis URL is required")
	}

	opts, err := goredis.ParseURL(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse redis URL: %w", err)
	}

	rdb := goredis.NewClient(opts)
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	log.Info().Str("addr", opts.Addr).Int("db", opts.DB).Msg("redis store connected")

	return NewStore(rdb, cfg.Prefix, cfg.TTL), nil
}

// Get retrieves a record by key.
func (s *Store) Get(ctx context.Context, key string) ([]byte, error) {
	value, err := s.rdb.Get(ctx, s.prefix+key).Bytes()
	if err != nil {
		if errors.Is(err, goredis.Nil) {
			return nil, store.ErrNotFound
		}
		return nil, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return value, nil
}

// Put stores a record under key, refreshing its TTL.
func (s *Store) Put(ctx context.Context, key string, value []byte) error {
	if err := s.rdb.Set(ctx, s.prefix+key, value, s.ttl).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return nil
}

// Delete removes a record by key.
func (s *Store) Delete(ctx context.Context, key string) error {
	if err := s.rdb.Del(ctx, s.prefix+key).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return nil
}

// Close releases the underlying client.
func (s *Store) Close() error {
	return s.rdb.Close()
}
