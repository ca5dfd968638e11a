package models

import "time"

// JobStatus enumerates the states a generation job moves through.
type JobStatus string

const (
	JobPending   JobStatus = "pending"
	JobRunning   JobStatus = "running"
	JobCompleted JobStatus = "completed"
	JobFailed    JobStatus = "failed"
)

// Terminal reports whether a job can no longer change state.
func (s JobStatus) Terminal() bool {
	return s == JobCompleted || s == JobFailed
}

// Job tracks one generation run through the pipeline. A job is created on
// submission, mutated only by the worker that owns it, and immutable once
// terminal. Progress is monotonically non-decreasing.
type Job struct {
	ID         string             `json:"id"`
	TopicID    string             `json:"topic_id"`
	UserID     string             `json:"user_id,omitempty"`
	TemplateID string             `json:"template_id,omitempty"`
	Options    GenerationSettings `json:"options"`

	Status   JobStatus `json:"status"`
	Progress int       `json:"progress"` // 0-100
	Stage    string    `json:"stage,omitempty"`

	Result *Article `json:"result,omitempty"`
	Error  string   `json:"error,omitempty"`

	StartedAt time.Time     `json:"started_at"`
	Duration  time.Duration `json:"duration"`
}
