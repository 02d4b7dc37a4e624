package models

import (
	"encoding/json"
	"time"
)

// Review states of a fingerprint record.
const (
	FingerprintPending  = "pending"
	FingerprintApproved = "approved"
	FingerprintRejected = "rejected"
)

// Fingerprint is a submitted biometric sample awaiting or having completed admin review.
type Fingerprint struct {
	ID          int64           `json:"id"`
	Keyword     string          `json:"keyword"`
	Description string          `json:"description,omitempty"`
	Status      string          `json:"status,omitempty"`
	SubmittedBy string          `json:"submitted_by,omitempty"`
	ReviewedBy  string          `json:"reviewed_by,omitempty"`
	ReviewNote  string          `json:"review_comment,omitempty"`
	Data        json.RawMessage `json:"data,omitempty"`
	CreatedAt   *time.Time      `json:"created_at,omitempty"`
	UpdatedAt   *time.Time      `json:"updated_at,omitempty"`
}

// ReviewDecision is the body of an approval call.
type ReviewDecision struct {
	Status  string `json:"status"`
	Comment string `json:"review_comment,omitempty"`
}
