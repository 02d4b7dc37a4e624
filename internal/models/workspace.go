package models

import (
	"time"

	"github.com/google/uuid"
)

// Workspace is one browser's slot on the console server. Its ID is the only value
// stored in the console cookie; the session and backend cookies live in the store.
type Workspace struct {
	ID uuid.UUID // UUIDv7

	CreatedAt  time.Time
	LastUsedAt time.Time

	// Optional audit metadata
	UserAgent string
	IPAddress string
}

// IsIdle returns true if the workspace has not been used within ttl.
func (w *Workspace) IsIdle(now time.Time, ttl time.Duration) bool {
	return now.Sub(w.LastUsedAt) > ttl
}
