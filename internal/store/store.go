package store

import (
	"context"
	"errors"
	"strings"
)

// Sentinel errors for common error conditions
var (
	// ErrNotFound is returned when no record is stored under a key.
	ErrNotFound = errors.New("record not found")

	// ErrCorrupt is returned when a stored record cannot be read back intact.
	ErrCorrupt = errors.New("record corrupt")
)

// Well known keys.
const (
	// SessionKey holds the serialized session (user identity and profile).
	SessionKey = "user"

	// CookieKey holds the backend cookies of a client.
	CookieKey = "cookies"
)

// Store persists opaque records under string keys.
//
// It is the client-held state of the console: the session record and the
// credential-bearing cookies. Implementations must make Delete idempotent.
type Store interface {
	// Get returns the record stored under key, ErrNotFound if there is none,
	// or ErrCorrupt if it exists but cannot be read intact.
	Get(ctx context.Context, key string) ([]byte, error)

	// Put stores value under key, replacing any previous record.
	Put(ctx context.Context, key string, value []byte) error

	// Delete removes the record under key. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error
}

// Namespaced returns a Store that prefixes every key with ns and a slash.
// It lets many workspaces share one backing store.
func Namespaced(s Store, ns string) Store {
	ns = strings.Trim(ns, "/")
	if ns == "" {
		return s
	}
	return &namespaced{inner: s, prefix: ns + "/"}
}

type namespaced struct {
	inner  Store
	prefix string
}

func (n *namespaced) Get(ctx context.Context, key string) ([]byte, error) {
	return n.inner.Get(ctx, n.prefix+key)
}

func (n *namespaced) Put(ctx context.Context, key string, value []byte) error {
	return n.inner.Put(ctx, n.prefix+key, value)
}

func (n *namespaced) Delete(ctx context.Context, key string) error {
	return n.inner.Delete(ctx, n.prefix+key)
}
