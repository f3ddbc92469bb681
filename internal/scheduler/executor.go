package scheduler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"inspectd/internal/domain"
	"inspectd/internal/inspector"
	"inspectd/internal/lock"
	"inspectd/internal/store"
)

// DefaultLeaseTTL bounds how long a dead holder's lease can linger.
const DefaultLeaseTTL = 30 * time.Second

// LockKey is the lease key for a task's firings.
func LockKey(taskID string) string { return "task_lock:" + taskID }

// Executor runs the per-firing state machine: take the lease, re-validate the
// task against the store, run the inspection while renewing the lease, record
// the outcome, release. A skip is the expected outcome whenever another
// instance holds the lease for the same occurrence.
type Executor struct {
	repo     store.Repository
	locker   lock.Locker
	insp     inspector.Inspector
	leaseTTL time.Duration
}

func NewExecutor(repo store.Repository, locker lock.Locker, insp inspector.Inspector, leaseTTL time.Duration) *Executor {
	if leaseTTL <= 0 {
		leaseTTL = DefaultLeaseTTL
	}
	return &Executor{repo: repo, locker: locker, insp: insp, leaseTTL: leaseTTL}
}

// Execute handles one firing of task. It never returns an error: every failure
// mode ends in a log line and, once the lease is held and the task validated,
// exactly one execution record.
func (e *Executor) Execute(ctx context.Context, task domain.Task) {
	key := LockKey(task.ID)

	acquired, err := e.locker.Acquire(ctx, key, e.leaseTTL)
	if err != nil {
		// can't confirm exclusivity, same as losing the race
		log.Error().Err(err).Str("task_id", task.ID).Msg("lease acquisition failed, skipping firing")
		return
	}
	if !acquired {
		log.Info().Str("task_id", task.ID).Msg("lease held by another instance, skipping firing")
		return
	}
	defer func() {
		if err := e.locker.Release(ctx, key); err != nil {
			log.Warn().Err(err).Str("task_id", task.ID).Msg("lease release failed, lease will self-expire")
		}
	}()

	// Re-fetch so a disable or delete between arming and firing is honored.
	current, err := e.repo.GetTask(ctx, task.ID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			log.Info().Str("task_id", task.ID).Msg("task deleted since arming, skipping")
		} else {
			log.Error().Err(err).Str("task_id", task.ID).Msg("task re-fetch failed, skipping firing")
		}
		return
	}
	if !current.Enabled {
		log.Info().Str("task_id", task.ID).Msg("task disabled since arming, skipping")
		return
	}

	log.Info().Str("task_id", current.ID).Str("task_name", current.Name).Msg("executing task")

	stopRenew := e.renewLoop(ctx, key, current.ID)
	result, inspErr := e.inspect(ctx, current)
	stopRenew()

	rec := domain.Record{TaskID: current.ID, ExecutedAt: time.Now()}
	if inspErr != nil {
		rec.Status = domain.StatusFailed
		rec.Result = fmt.Sprintf("inspection failed: %v", inspErr)
		log.Error().Err(inspErr).Str("task_id", current.ID).Msg("inspection failed")
	} else {
		rec.Status = domain.StatusCompleted
		if payload, err := json.Marshal(result); err == nil {
			rec.Result = string(payload)
		} else {
			rec.Result = fmt.Sprintf("%v", result)
		}
		log.Info().Str("task_id", current.ID).Msg("task executed")
	}

	if _, err := e.repo.CreateRecord(ctx, rec); err != nil {
		log.Error().Err(err).Str("task_id", current.ID).Msg("failed to write execution record")
	}
}

// inspect shields the scheduler from a panicking callback.
func (e *Executor) inspect(ctx context.Context, task domain.Task) (result any, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("inspection panic: %v", r)
		}
	}()
	return e.insp.Inspect(ctx, task)
}

// renewLoop keeps the lease alive at half-TTL intervals while the inspection
// runs. The returned stop function is idempotent and must be called before the
// lease is released on every exit path.
func (e *Executor) renewLoop(ctx context.Context, key, taskID string) (stop func()) {
	done := make(chan struct{})
	var once sync.Once
	go func() {
		t := time.NewTicker(e.leaseTTL / 2)
		defer t.Stop()
		for {
			select {
			case <-done:
				return
			case <-t.C:
				ok, err := e.locker.Renew(ctx, key, e.leaseTTL)
				if err != nil {
					log.Warn().Err(err).Str("task_id", taskID).Msg("lease renewal failed")
				} else if !ok {
					log.Warn().Str("task_id", taskID).Msg("lease no longer held, stopping renewal")
					return
				}
			}
		}
	}()
	return func() { once.Do(func() { close(done) }) }
}
