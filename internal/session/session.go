package session

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/wolfeidau/fpconsole/internal/models"
)

// Session is the client-held view of the authenticated user.
// The zero value is the anonymous session.
type Session struct {
	User *models.User
}

// Anonymous returns a session with no user.
func Anonymous() *Session {
	return &Session{}
}

// IsAuthenticated returns true if the session carries a user.
func (s *Session) IsAuthenticated() bool {
	return s != nil && s.User != nil
}

// IsAdmin returns true if the session user has the admin role.
func (s *Session) IsAdmin() bool {
	return s.IsAuthenticated() && s.User.IsAdmin()
}

// Username returns the session username, empty when anonymous.
func (s *Session) Username() string {
	if !s.IsAuthenticated() {
		return ""
	}
	return s.User.Username
}

// Decode parses a persisted session record. It reports false for anything that is
// not a JSON object naming a user, so callers can treat the record as absent.
func Decode(data []byte) (*Session, bool) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return nil, false
	}

	var user models.User
	if err := json.Unmarshal(trimmed, &user); err != nil {
		return nil, false
	}
	if user.Username == "" {
		return nil, false
	}

	return &Session{User: &user}, true
}

// Encode serializes the session user for persistence.
func Encode(s *Session) ([]byte, error) {
	if !s.IsAuthenticated() {
		return nil, fmt.Errorf("cannot encode anonymous session")
	}
	return json.Marshal(s.User)
}
