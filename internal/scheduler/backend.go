package scheduler

import (
	"context"

	"inspectd/internal/domain"
)

// Backend is the scheduling capability the rest of the system is written
// against: arming, disarming and enumerating live schedules. The lock-based
// Registry is the in-process implementation; a managed-queue deployment can
// supply its own.
type Backend interface {
	// LoadAndScheduleAll fetches every enabled task from the store and arms it,
	// and disarms anything armed that is no longer enabled. Called at startup
	// and on periodic resync.
	LoadAndScheduleAll(ctx context.Context) error
	// Schedule (re)arms a task: any existing timer for the id is cancelled
	// first.
	Schedule(task domain.Task) error
	// Cancel stops and removes the task's timer. No-op if absent.
	Cancel(taskID string)
	// Add arms the task if it is enabled, otherwise does nothing.
	Add(task domain.Task) error
	// Update re-arms the task with its new definition, or disarms it if it was
	// disabled.
	Update(task domain.Task) error
	// Remove is Cancel by another name, used when a task is deleted.
	Remove(taskID string)
	// ScheduledIDs returns the ids of all currently armed tasks.
	ScheduledIDs() []string
	// Close cancels every timer and stops the backend.
	Close()
}
