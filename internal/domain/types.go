package domain

import "time"

// Record statuses written by the executor. Backfilled is the default status for
// records synthesized by the backfill tool; callers may supply custom values.
const (
	StatusCompleted  = "completed"
	StatusFailed     = "failed"
	StatusSkipped    = "skipped"
	StatusBackfilled = "backfilled"
)

// Task is a recurring inspection definition. The store owns it; the scheduler
// registry holds a read-mostly snapshot alongside the live timer handle.
type Task struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	Cycle       string    `json:"cycle"`
	Enabled     bool      `json:"enabled"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Record is the outcome of one firing. Append-only.
type Record struct {
	ID         string    `json:"id"`
	TaskID     string    `json:"task_id"`
	Status     string    `json:"status"`
	Result     string    `json:"result"`
	ExecutedAt time.Time `json:"executed_at"`
	CreatedAt  time.Time `json:"created_at"`
}
