package scheduler

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog/log"

	"inspectd/internal/cycle"
	"inspectd/internal/domain"
	"inspectd/internal/store"
)

// Registry is the per-instance scheduling backend: it maps task ids to live
// cron entries on a single runner pinned to the process timezone. The task
// snapshot and the entry handle live in separate maps so a cancel always drops
// the handle before any lookup can observe a stale one.
//
// The maps are private to this instance and are not synchronized across the
// fleet; drift against the store is repaired by LoadAndScheduleAll and by the
// Reconciler.
type Registry struct {
	repo store.Repository
	exec *Executor

	mu      sync.Mutex
	cron    *cron.Cron
	tasks   map[string]domain.Task
	entries map[string]cron.EntryID
}

func NewRegistry(repo store.Repository, exec *Executor, loc *time.Location) *Registry {
	r := &Registry{
		repo:    repo,
		exec:    exec,
		cron:    cron.New(cron.WithLocation(loc)),
		tasks:   make(map[string]domain.Task),
		entries: make(map[string]cron.EntryID),
	}
	r.cron.Start()
	return r
}

func (r *Registry) LoadAndScheduleAll(ctx context.Context) error {
	enabled := true
	tasks, err := r.repo.ListTasks(ctx, store.TaskFilter{Enabled: &enabled})
	if err != nil {
		return fmt.Errorf("load tasks: %w", err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	want := make(map[string]struct{}, len(tasks))
	armed := 0
	for _, t := range tasks {
		want[t.ID] = struct{}{}
		if err := r.scheduleLocked(t); err != nil {
			log.Error().Err(err).Str("task_id", t.ID).Msg("failed to arm task")
			continue
		}
		armed++
	}
	// disarm anything that is no longer enabled in the store
	for id := range r.entries {
		if _, ok := want[id]; !ok {
			r.cancelLocked(id)
		}
	}

	log.Info().Int("armed", armed).Int("total", len(tasks)).Msg("schedule loaded")
	return nil
}

func (r *Registry) Schedule(task domain.Task) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.scheduleLocked(task)
}

func (r *Registry) scheduleLocked(task domain.Task) error {
	r.cancelLocked(task.ID)

	expr := cycle.Translate(task.Cycle)
	t := task
	id, err := r.cron.AddFunc(expr, func() { r.exec.Execute(context.Background(), t) })
	if err != nil {
		return fmt.Errorf("arm task %s: %w", task.ID, err)
	}
	r.entries[task.ID] = id
	r.tasks[task.ID] = task

	log.Info().
		Str("task_id", task.ID).
		Str("task_name", task.Name).
		Str("cron_expr", expr).
		Msg("task armed")
	return nil
}

func (r *Registry) Cancel(taskID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.cancelLocked(taskID)
}

func (r *Registry) cancelLocked(taskID string) {
	id, ok := r.entries[taskID]
	if !ok {
		return
	}
	delete(r.entries, taskID)
	delete(r.tasks, taskID)
	r.cron.Remove(id)
	log.Info().Str("task_id", taskID).Msg("task disarmed")
}

func (r *Registry) Add(task domain.Task) error {
	if !task.Enabled {
		return nil
	}
	return r.Schedule(task)
}

func (r *Registry) Update(task domain.Task) error {
	if !task.Enabled {
		r.Cancel(task.ID)
		return nil
	}
	return r.Schedule(task)
}

func (r *Registry) Remove(taskID string) {
	r.Cancel(taskID)
}

func (r *Registry) ScheduledIDs() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	ids := make([]string, 0, len(r.entries))
	for id := range r.entries {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

func (r *Registry) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for id := range r.entries {
		r.cancelLocked(id)
	}
	r.cron.Stop()
}
