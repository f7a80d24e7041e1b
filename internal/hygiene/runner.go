package hygiene

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/compace/hygiene/internal/lock"
	"github.com/compace/hygiene/internal/metrics"
)

// LockName is the exclusive task domain all hygiene passes share.
const LockName = "hygiene_worker"

// Runner is the worker entry point: it serializes runs behind the store
// lock, dispatches to the selected pass, and guarantees the lock is released
// whether the pass succeeds or fails.
type Runner struct {
	locks    *lock.Manager
	dedup    *DedupPass
	urlCheck *URLCheckPass
	lockTTL  time.Duration
	logger   *zap.Logger
}

// NewRunner constructs a Runner. lockTTL <= 0 selects the lock default.
func NewRunner(locks *lock.Manager, dedup *DedupPass, urlCheck *URLCheckPass, lockTTL time.Duration, logger *zap.Logger) *Runner {
	if lockTTL <= 0 {
		lockTTL = lock.DefaultTTL
	}
	return &Runner{
		locks:    locks,
		dedup:    dedup,
		urlCheck: urlCheck,
		lockTTL:  lockTTL,
		logger:   logger,
	}
}

// Run executes one pass under the worker lock. A held lock surfaces as
// lock.ErrBusy so callers can report contention distinctly from failure.
// Unknown tasks are a no-op reporting zero processed.
func (r *Runner) Run(ctx context.Context, task Task, limit int) (RunResult, error) {
	token, err := r.locks.Acquire(ctx, LockName, r.lockTTL)
	if err != nil {
		if errors.Is(err, lock.ErrBusy) {
			metrics.RecordLockContention()
			return RunResult{}, err
		}
		return RunResult{}, fmt.Errorf("acquire worker lock: %w", err)
	}
	defer r.locks.Release(ctx, LockName, token)

	result, err := r.dispatch(ctx, task, limit)
	outcome := "ok"
	if err != nil {
		outcome = "error"
		r.logger.Error("hygiene run failed", zap.String("task", string(task)), zap.Error(err))
	}
	metrics.RecordRun(string(task), outcome)
	metrics.AddProcessed(string(task), result.Processed)
	return result, err
}

func (r *Runner) dispatch(ctx context.Context, task Task, limit int) (RunResult, error) {
	switch task {
	case TaskDedupe:
		return r.dedup.Run(ctx)
	case TaskURLCheck:
		return r.urlCheck.Run(ctx, limit)
	default:
		return RunResult{Details: fmt.Sprintf("unknown task %q", task)}, nil
	}
}
