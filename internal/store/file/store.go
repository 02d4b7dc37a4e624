package file

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/minio/crc64nvme"
	"github.com/mr-tron/base58"
	"github.com/rs/zerolog/log"
	"github.com/wolfeidau/fpconsole/internal/store"
)

const recordVersion = 1

// record is the on-disk envelope of one key.
type record struct {
	Version   int       `json:"version"`
	Checksum  string    `json:"checksum"`
	Data      []byte    `json:"data"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Store implements store.Store with one JSON file per key on the local filesystem.
type Store struct {
	baseDir string

	// serialises writers within this process; the rename keeps readers safe
	mu sync.Mutex
}

// NewStore creates a new file store.
// If baseDir is empty, uses ~/.fpconsole/state/
func NewStore(baseDir string) (*Store, error) {
	if baseDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("failed to get home directory: %w", err)
		}
		baseDir = filepath.Join(home, ".fpconsole", "state")
	}

	// Create directory with 0700 permissions
	if err := os.MkdirAll(baseDir, 0700); err != nil {
		return nil, fmt.Errorf("failed to create state directory: %w", err)
	}

	log.Debug().Str("baseDir", baseDir).Msg("file store initialized")

	return &Store{baseDir: baseDir}, nil
}

// Dir returns the directory holding the records.
func (s *Store) Dir() string {
	return s.baseDir
}

// Get reads the record stored under key.
func (s *Store) Get(ctx context.Context, key string) ([]byte, error) {
	data, err := os.ReadFile(s.path(key))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, store.ErrNotFound
		}
		return nil, fmt.Errorf("failed to read record: %w", err)
	}

	var rec record
	if err := json.Unmarshal(data, &rec); err != nil {
		log.Debug().Str("key", key).Err(err).Msg("record envelope unreadable")
		return nil, fmt.Errorf("%w: %v", store.ErrCorrupt, err)
	}

	if rec.Version != recordVersion {
		return nil, fmt.Errorf("%w: unsupported version %d", store.ErrCorrupt, rec.Version)
	}

	if rec.Checksum != checksum(rec.Data) {
		log.Debug().Str("key", key).Msg("record checksum mismatch")
		return nil, fmt.Errorf("%w: checksum mismatch", store.ErrCorrupt)
	}

	return rec.Data, nil
}

// Put writes the record atomically.
func (s *Store) Put(ctx context.Context, key string, value []byte) error {
	data, err := json.MarshalIndent(record{
		Version:   recordVersion,
		Checksum:  checksum(value),
		Data:      value,
		UpdatedAt: time.Now().UTC(),
	}, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal record: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	// Write to temp file first
	path := s.path(key)
	tempPath := path + ".tmp"

	if err := os.WriteFile(tempPath, data, 0600); err != nil {
		return fmt.Errorf("failed to write record: %w", err)
	}

	// Atomic rename
	if err := os.Rename(tempPath, path); err != nil {
		os.Remove(tempPath)
		return fmt.Errorf("failed to save record: %w", err)
	}

	return nil
}

// Delete removes the record file.
func (s *Store) Delete(ctx context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.Remove(s.path(key)); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to remove record: %w", err)
	}
	return nil
}

func (s *Store) path(key string) string {
	return filepath.Join(s.baseDir, url.PathEscape(key)+".json")
}

// checksum returns the base58 encoded CRC64-NVME of data.
func checksum(data []byte) string {
	h := crc64nvme.New()
	h.Write(data)

	var sum [8]byte
	binary.BigEndian.PutUint64(sum[:], h.Sum64())
	return base58.Encode(sum[:])
}
