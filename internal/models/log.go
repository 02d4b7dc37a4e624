package models

import "time"

// LogEntry is one system activity record.
type LogEntry struct {
	ID        int64      `json:"id"`
	User      string     `json:"user,omitempty"`
	Action    string     `json:"action"`
	Detail    string     `json:"details,omitempty"`
	IPAddress string     `json:"ip_address,omitempty"`
	CreatedAt *time.Time `json:"created_at,omitempty"`
}

// ActionType is one entry of the log action vocabulary.
type ActionType struct {
	Value   string `json:"value"`
	Display string `json:"display"`
}
