package hygiene_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/compace/hygiene/internal/hygiene"
	"github.com/compace/hygiene/internal/lock"
	"github.com/compace/hygiene/internal/storage/memory"
)

type tickingIDs struct{ n int }

func (g *tickingIDs) NewID() (string, error) {
	g.n++
	return string(rune('0'+g.n)) + "-token", nil
}

// countErrStore fails the dedup pass at its first store call.
type countErrStore struct {
	hygiene.CompetitionStore
}

func (countErrStore) CountUnnormalized(context.Context) (int, error) {
	return 0, errors.New("store unavailable")
}

func newRunner(store hygiene.CompetitionStore, locks *lock.Manager) *hygiene.Runner {
	logger := zap.NewNop()
	dedup := hygiene.NewDedupPass(store, 20, logger)
	urlCheck := hygiene.NewURLCheckPass(store, &fakeProber{}, fixedClock{now: baseTime}, hygiene.URLCheckConfig{}, logger)
	return hygiene.NewRunner(locks, dedup, urlCheck, time.Minute, logger)
}

func newLockManager(lockStore lock.Store) *lock.Manager {
	return lock.NewManager(lockStore, fixedClock{now: baseTime}, &tickingIDs{}, zap.NewNop())
}

func TestRunnerReportsBusyWhileLockHeld(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	lockStore := memory.NewLockStore()
	locks := newLockManager(lockStore)
	runner := newRunner(memory.NewCompetitionStore(), locks)

	_, err := locks.Acquire(ctx, hygiene.LockName, time.Minute)
	require.NoError(t, err)

	_, err = runner.Run(ctx, hygiene.TaskDedupe, 0)
	require.ErrorIs(t, err, lock.ErrBusy)
}

func TestRunnerReleasesLockAfterSuccess(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	locks := newLockManager(memory.NewLockStore())
	runner := newRunner(memory.NewCompetitionStore(), locks)

	_, err := runner.Run(ctx, hygiene.TaskDedupe, 0)
	require.NoError(t, err)

	// Lock is free again immediately.
	_, err = runner.Run(ctx, hygiene.TaskURLCheck, 0)
	require.NoError(t, err)
}

func TestRunnerReleasesLockAfterPassFailure(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	locks := newLockManager(memory.NewLockStore())
	failing := countErrStore{CompetitionStore: memory.NewCompetitionStore()}
	runner := newRunner(failing, locks)

	_, err := runner.Run(ctx, hygiene.TaskDedupe, 0)
	require.Error(t, err)
	require.NotErrorIs(t, err, lock.ErrBusy)

	// The failure did not leak the lock.
	token, err := locks.Acquire(ctx, hygiene.LockName, time.Minute)
	require.NoError(t, err)
	require.NotEmpty(t, token)
}

func TestRunnerUnknownTaskIsNoOp(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	locks := newLockManager(memory.NewLockStore())
	store := memory.NewCompetitionStore()
	runner := newRunner(store, locks)

	seedComp(t, store, hygiene.Competition{ID: "a", Title: "Untouched", CreatedAt: baseTime})

	result, err := runner.Run(ctx, hygiene.Task("scrub"), 0)
	require.NoError(t, err)
	require.Zero(t, result.Processed)
	require.Contains(t, result.Details, "unknown task")

	a, err := store.Get(ctx, "a")
	require.NoError(t, err)
	require.Nil(t, a.CanonicalTitle)
}

func TestRunnerDispatchesURLCheckLimit(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	locks := newLockManager(memory.NewLockStore())
	store := memory.NewCompetitionStore()
	runner := newRunner(store, locks)

	for i, id := range []string{"a", "b", "c"} {
		seedComp(t, store, hygiene.Competition{
			ID: id, Title: "Contest " + id,
			OfficialURL: "https://" + id + ".org",
			CreatedAt:   baseTime.Add(time.Duration(i) * time.Minute),
		})
	}

	result, err := runner.Run(ctx, hygiene.TaskURLCheck, 2)
	require.NoError(t, err)
	require.Equal(t, 2, result.Processed)
}
