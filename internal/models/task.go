package models

import (
	"encoding/json"
	"time"
)

// Task states reported by /tasks/{id}/status/.
const (
	TaskPending   = "pending"
	TaskRunning   = "running"
	TaskCompleted = "completed"
	TaskFailed    = "failed"
)

// Task is a recognition job that processes submitted fingerprints.
type Task struct {
	ID           int64      `json:"id"`
	Name         string     `json:"name"`
	Status       string     `json:"status"`
	Progress     float64    `json:"progress,omitempty"`
	Fingerprints []int64    `json:"fingerprints,omitempty"`
	CreatedBy    string     `json:"created_by,omitempty"`
	CreatedAt    *time.Time `json:"created_at,omitempty"`
	CompletedAt  *time.Time `json:"completed_at,omitempty"`
	ErrorMessage string     `json:"error_message,omitempty"`
}

// IsTerminal returns true once the task will not change state without a restart.
func (t *Task) IsTerminal() bool {
	return t.Status == TaskCompleted || t.Status == TaskFailed
}

// TaskInput is the body of a create task call.
type TaskInput struct {
	Name         string  `json:"name"`
	Fingerprints []int64 `json:"fingerprints,omitempty"`
	Description  string  `json:"description,omitempty"`
}

// TaskStatus is the payload of the status poll endpoint.
type TaskStatus struct {
	ID       int64   `json:"id"`
	Status   string  `json:"status"`
	Progress float64 `json:"progress,omitempty"`
	Message  string  `json:"message,omitempty"`
}

// TaskResult is one recognition outcome produced by a task.
type TaskResult struct {
	ID            int64      `json:"id"`
	TaskID        int64      `json:"task"`
	FingerprintID int64      `json:"fingerprint,omitempty"`
	Keyword       string     `json:"keyword,omitempty"`
	Score         float64    `json:"score"`
	Matched       bool       `json:"matched"`
	CreatedAt     *time.Time `json:"created_at,omitempty"`
}

// Report is the analysis artifact of a task. Its body is passed through untouched.
type Report struct {
	TaskID  int64           `json:"task_id"`
	Summary string          `json:"summary,omitempty"`
	Content json.RawMessage `json:"content,omitempty"`
}
