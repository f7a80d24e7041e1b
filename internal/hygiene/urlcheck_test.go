package hygiene_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/compace/hygiene/internal/hygiene"
	"github.com/compace/hygiene/internal/storage/memory"
)

type fixedClock struct{ now time.Time }

func (c fixedClock) Now() time.Time { return c.now }

// fakeProber returns canned results per URL and counts calls.
type fakeProber struct {
	mu      sync.Mutex
	results map[string]hygiene.ProbeResult
	errs    map[string]error
	calls   int
}

func (p *fakeProber) Probe(_ context.Context, rawURL string) (hygiene.ProbeResult, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls++
	if err, ok := p.errs[rawURL]; ok {
		return hygiene.ProbeResult{}, err
	}
	if res, ok := p.results[rawURL]; ok {
		return res, nil
	}
	return hygiene.ProbeResult{StatusCode: 200, FinalURL: rawURL}, nil
}

func (p *fakeProber) callCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.calls
}

func newURLCheckPass(store *memory.CompetitionStore, prober hygiene.Prober) *hygiene.URLCheckPass {
	return hygiene.NewURLCheckPass(store, prober, fixedClock{now: baseTime}, hygiene.URLCheckConfig{
		DefaultLimit: 25,
	}, zap.NewNop())
}

func TestURLCheckHealthyRecord(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	store := memory.NewCompetitionStore()
	prober := &fakeProber{results: map[string]hygiene.ProbeResult{
		"https://fair.org": {StatusCode: 200, FinalURL: "https://fair.org/home"},
	}}
	pass := newURLCheckPass(store, prober)

	seedComp(t, store, hygiene.Competition{
		ID: "a", Title: "Science Fair",
		OfficialURL:  "https://fair.org",
		QualityFlags: hygiene.AddFlag("", hygiene.FlagBrokenURL),
		CreatedAt:    baseTime,
	})

	result, err := pass.Run(ctx, 0)
	require.NoError(t, err)
	require.Equal(t, 1, result.Processed)

	a, err := store.Get(ctx, "a")
	require.NoError(t, err)
	require.NotNil(t, a.URLStatusCode)
	require.Equal(t, 200, *a.URLStatusCode)
	require.Equal(t, "https://fair.org/home", a.URLFinal)
	require.NotNil(t, a.URLCheckedAt)
	require.Equal(t, baseTime, *a.URLCheckedAt)
	require.False(t, hygiene.HasFlag(a.QualityFlags, hygiene.FlagBrokenURL))
	require.Equal(t, hygiene.EnrichmentReady, a.EnrichmentState)
}

func TestURLCheckBrokenStatus(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	store := memory.NewCompetitionStore()
	prober := &fakeProber{results: map[string]hygiene.ProbeResult{
		"https://gone.org": {StatusCode: 404, FinalURL: "https://gone.org"},
	}}
	pass := newURLCheckPass(store, prober)

	seedComp(t, store, hygiene.Competition{
		ID: "a", Title: "Defunct Contest",
		OfficialURL: "https://gone.org",
		CreatedAt:   baseTime,
	})

	_, err := pass.Run(ctx, 0)
	require.NoError(t, err)

	a, err := store.Get(ctx, "a")
	require.NoError(t, err)
	require.Equal(t, 404, *a.URLStatusCode)
	require.True(t, hygiene.HasFlag(a.QualityFlags, hygiene.FlagBrokenURL))
	require.Equal(t, hygiene.EnrichmentNeedsReview, a.EnrichmentState)
}

func TestURLCheckNetworkFailureRecordsStatusZero(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	store := memory.NewCompetitionStore()
	prober := &fakeProber{errs: map[string]error{
		"https://unreachable.org": errors.New("dial tcp: connection refused"),
	}}
	pass := newURLCheckPass(store, prober)

	seedComp(t, store, hygiene.Competition{
		ID: "a", Title: "Flaky Contest",
		OfficialURL: "https://unreachable.org",
		CreatedAt:   baseTime,
	})

	result, err := pass.Run(ctx, 0)
	require.NoError(t, err)
	require.Equal(t, 1, result.Processed)

	a, err := store.Get(ctx, "a")
	require.NoError(t, err)
	require.Equal(t, 0, *a.URLStatusCode)
	require.Empty(t, a.URLFinal)
	require.True(t, hygiene.HasFlag(a.QualityFlags, hygiene.FlagBrokenURL))
	require.Equal(t, hygiene.EnrichmentNeedsReview, a.EnrichmentState)
}

func TestURLCheckMissingURLSkipsNetwork(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	store := memory.NewCompetitionStore()
	prober := &fakeProber{}
	pass := newURLCheckPass(store, prober)

	seedComp(t, store, hygiene.Competition{
		ID: "a", Title: "No URL Contest", CreatedAt: baseTime,
	})

	result, err := pass.Run(ctx, 0)
	require.NoError(t, err)
	require.Equal(t, 1, result.Processed)
	require.Zero(t, prober.callCount())

	a, err := store.Get(ctx, "a")
	require.NoError(t, err)
	require.True(t, hygiene.HasFlag(a.QualityFlags, hygiene.FlagBrokenURL))
	require.Equal(t, hygiene.EnrichmentNeedsReview, a.EnrichmentState)
}

func TestURLCheckFallsBackToApplyURL(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	store := memory.NewCompetitionStore()
	prober := &fakeProber{results: map[string]hygiene.ProbeResult{
		"https://apply.example.org": {StatusCode: 200, FinalURL: "https://apply.example.org"},
	}}
	pass := newURLCheckPass(store, prober)

	seedComp(t, store, hygiene.Competition{
		ID: "a", Title: "Apply Only",
		ApplyURL:  "https://apply.example.org",
		CreatedAt: baseTime,
	})

	_, err := pass.Run(ctx, 0)
	require.NoError(t, err)
	require.Equal(t, 1, prober.callCount())

	a, err := store.Get(ctx, "a")
	require.NoError(t, err)
	require.Equal(t, hygiene.EnrichmentReady, a.EnrichmentState)
}

func TestURLCheckOneFailureDoesNotAbortBatch(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	store := memory.NewCompetitionStore()
	prober := &fakeProber{errs: map[string]error{
		"https://bad.org": errors.New("timeout"),
	}}
	pass := newURLCheckPass(store, prober)

	seedComp(t, store, hygiene.Competition{
		ID: "a", Title: "Bad", OfficialURL: "https://bad.org", CreatedAt: baseTime,
	})
	seedComp(t, store, hygiene.Competition{
		ID: "b", Title: "Good", OfficialURL: "https://good.org", CreatedAt: baseTime.Add(time.Minute),
	})

	result, err := pass.Run(ctx, 0)
	require.NoError(t, err)
	require.Equal(t, 2, result.Processed)

	b, err := store.Get(ctx, "b")
	require.NoError(t, err)
	require.Equal(t, hygiene.EnrichmentReady, b.EnrichmentState)
}

func TestURLCheckRespectsLimitAndSkipsDuplicates(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	store := memory.NewCompetitionStore()
	prober := &fakeProber{}
	pass := newURLCheckPass(store, prober)

	master := "m"
	seedComp(t, store, hygiene.Competition{
		ID: "m", Title: "Master", OfficialURL: "https://one.org", CreatedAt: baseTime,
	})
	seedComp(t, store, hygiene.Competition{
		ID: "dup", Title: "Duplicate", OfficialURL: "https://one.org",
		DuplicateOfID: &master, CreatedAt: baseTime.Add(time.Minute),
	})
	seedComp(t, store, hygiene.Competition{
		ID: "x", Title: "Second", OfficialURL: "https://two.org", CreatedAt: baseTime.Add(2 * time.Minute),
	})

	result, err := pass.Run(ctx, 1)
	require.NoError(t, err)
	require.Equal(t, 1, result.Processed)
	require.Equal(t, 1, prober.callCount())

	// The duplicate is never a candidate even with room in the batch.
	result, err = pass.Run(ctx, 10)
	require.NoError(t, err)
	require.Equal(t, 1, result.Processed)

	dup, err := store.Get(ctx, "dup")
	require.NoError(t, err)
	require.Nil(t, dup.URLCheckedAt)
}
