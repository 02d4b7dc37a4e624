// Package api holds the backend resource modules. Each is a thin wrapper over the
// shared HTTP client and owns no state of its own.
package api

import (
	"context"
	"net/url"
	"strconv"
)

// Doer is the part of the HTTP client the resource modules need.
type Doer interface {
	Do(ctx context.Context, method, path string, query url.Values, body, out any) error
}

// API groups the resource modules over one client.
type API struct {
	Fingerprints *Fingerprints
	Tasks        *Tasks
	Users        *Users
	Logs         *Logs
}

// New creates the resource modules over c.
func New(c Doer) *API {
	return &API{
		Fingerprints: &Fingerprints{c: c},
		Tasks:        &Tasks{c: c},
		Users:        &Users{c: c},
		Logs:         &Logs{c: c},
	}
}

func itoa(id int64) string {
	return strconv.FormatInt(id, 10)
}
