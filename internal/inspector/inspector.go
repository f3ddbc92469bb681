// Package inspector defines the inspection callback the executor invokes per
// firing.
package inspector

import (
	"context"
	"time"

	"inspectd/internal/domain"
)

// Inspector runs the inspection logic for one task. The returned value is
// serialized into the execution record's result payload; an error marks the
// firing as failed.
type Inspector interface {
	Inspect(ctx context.Context, task domain.Task) (any, error)
}

// Func adapts a plain function to Inspector.
type Func func(ctx context.Context, task domain.Task) (any, error)

func (f Func) Inspect(ctx context.Context, task domain.Task) (any, error) {
	return f(ctx, task)
}

// Summary is the payload produced by Noop.
type Summary struct {
	TaskID     string    `json:"task_id"`
	TaskName   string    `json:"task_name"`
	ExecutedAt time.Time `json:"executed_at"`
	Detail     string    `json:"detail"`
}

// Noop reports success without inspecting anything. Stands in wherever a real
// probe has not been wired yet.
type Noop struct{}

func (Noop) Inspect(_ context.Context, task domain.Task) (any, error) {
	return Summary{
		TaskID:     task.ID,
		TaskName:   task.Name,
		ExecutedAt: time.Now(),
		Detail:     "inspection completed",
	}, nil
}
