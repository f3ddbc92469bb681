package scheduler

import (
	"context"
	"fmt"
	"sort"

	"github.com/rs/zerolog/log"

	"inspectd/internal/store"
)

// Drift is the difference between the durable enabled task set and the live
// schedule.
type Drift struct {
	Missing []string `json:"missing"` // enabled in the store, not armed
	Extra   []string `json:"extra"`   // armed, not enabled in the store
}

func (d Drift) InSync() bool { return len(d.Missing) == 0 && len(d.Extra) == 0 }

// Report summarizes one recovery run.
type Report struct {
	Drift     Drift `json:"drift"`
	Recovered int   `json:"recovered"`
	Failed    int   `json:"failed"`
	Scheduled int   `json:"scheduled"` // live schedule size after the run
}

// Reconciler compares the store's enabled tasks against the live schedule and
// re-arms whatever is missing. Mutation only happens once the confirm callback
// approves the detected drift.
type Reconciler struct {
	repo    store.Repository
	backend Backend
}

func NewReconciler(repo store.Repository, backend Backend) *Reconciler {
	return &Reconciler{repo: repo, backend: backend}
}

// Diff computes the drift without mutating anything.
func (r *Reconciler) Diff(ctx context.Context) (Drift, error) {
	enabled := true
	tasks, err := r.repo.ListTasks(ctx, store.TaskFilter{Enabled: &enabled})
	if err != nil {
		return Drift{}, fmt.Errorf("list enabled tasks: %w", err)
	}

	durable := make(map[string]struct{}, len(tasks))
	for _, t := range tasks {
		durable[t.ID] = struct{}{}
	}
	live := make(map[string]struct{})
	for _, id := range r.backend.ScheduledIDs() {
		live[id] = struct{}{}
	}

	var d Drift
	for id := range durable {
		if _, ok := live[id]; !ok {
			d.Missing = append(d.Missing, id)
		}
	}
	for id := range live {
		if _, ok := durable[id]; !ok {
			d.Extra = append(d.Extra, id)
		}
	}
	sort.Strings(d.Missing)
	sort.Strings(d.Extra)
	return d, nil
}

// Recover re-arms every missing task individually; one task's failure does not
// abort the rest. If nothing is missing, or confirm declines, no state is
// mutated and the report reflects the drift as found.
func (r *Reconciler) Recover(ctx context.Context, confirm func(Drift) bool) (Report, error) {
	drift, err := r.Diff(ctx)
	if err != nil {
		return Report{}, err
	}
	rep := Report{Drift: drift, Scheduled: len(r.backend.ScheduledIDs())}

	if len(drift.Missing) == 0 {
		log.Info().Int("extra", len(drift.Extra)).Msg("schedule in sync with store")
		return rep, nil
	}
	if confirm != nil && !confirm(drift) {
		log.Info().Msg("recovery declined")
		return rep, nil
	}

	enabled := true
	tasks, err := r.repo.ListTasks(ctx, store.TaskFilter{Enabled: &enabled})
	if err != nil {
		return rep, fmt.Errorf("list enabled tasks: %w", err)
	}
	byID := make(map[string]int, len(tasks))
	for i, t := range tasks {
		byID[t.ID] = i
	}

	for _, id := range drift.Missing {
		i, ok := byID[id]
		if !ok {
			// deleted between diff and recover
			continue
		}
		if err := r.backend.Add(tasks[i]); err != nil {
			rep.Failed++
			log.Error().Err(err).Str("task_id", id).Msg("failed to re-arm task")
			continue
		}
		rep.Recovered++
		log.Info().Str("task_id", id).Msg("task re-armed")
	}

	rep.Scheduled = len(r.backend.ScheduledIDs())
	log.Info().
		Int("recovered", rep.Recovered).
		Int("failed", rep.Failed).
		Int("scheduled", rep.Scheduled).
		Msg("recovery finished")
	return rep, nil
}
