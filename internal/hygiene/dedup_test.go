package hygiene_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/compace/hygiene/internal/hygiene"
	"github.com/compace/hygiene/internal/storage/memory"
)

var baseTime = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func seedComp(t *testing.T, store *memory.CompetitionStore, comp hygiene.Competition) {
	t.Helper()
	if comp.QualityFlags == "" {
		comp.QualityFlags = "[]"
	}
	if comp.Status == "" {
		comp.Status = hygiene.StatusApproved
	}
	if comp.EnrichmentState == "" {
		comp.EnrichmentState = hygiene.EnrichmentNew
	}
	require.NoError(t, store.Create(context.Background(), comp))
}

func TestDedupNormalizesThenMarksDuplicates(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	store := memory.NewCompetitionStore()
	pass := hygiene.NewDedupPass(store, 20, zap.NewNop())

	seedComp(t, store, hygiene.Competition{
		ID: "a", Title: "Science Fair 2025",
		OfficialURL: "https://fair.org",
		CreatedAt:   baseTime,
	})
	seedComp(t, store, hygiene.Competition{
		ID: "b", Title: "Science Fair 2026",
		OfficialURL: "https://www.fair.org",
		CreatedAt:   baseTime.Add(time.Hour),
	})

	// First invocation normalizes; duplicates are untouched until the
	// normalize phase drains.
	result, err := pass.Run(ctx)
	require.NoError(t, err)
	require.Equal(t, 2, result.Processed)

	a, err := store.Get(ctx, "a")
	require.NoError(t, err)
	b, err := store.Get(ctx, "b")
	require.NoError(t, err)
	require.NotNil(t, a.CanonicalTitle)
	require.NotNil(t, b.CanonicalTitle)
	require.Equal(t, *a.CanonicalTitle, *b.CanonicalTitle)
	require.Equal(t, "fair.org", *a.CanonicalHost)
	require.Equal(t, "fair.org", *b.CanonicalHost)
	require.Nil(t, a.DuplicateOfID)
	require.Nil(t, b.DuplicateOfID)

	// Second invocation groups. The earlier-created record is the master.
	result, err = pass.Run(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, result.Processed)

	a, err = store.Get(ctx, "a")
	require.NoError(t, err)
	b, err = store.Get(ctx, "b")
	require.NoError(t, err)
	require.Nil(t, a.DuplicateOfID)
	require.NotNil(t, b.DuplicateOfID)
	require.Equal(t, "a", *b.DuplicateOfID)
	require.Equal(t, hygiene.StatusRejected, b.Status)
	require.Equal(t, hygiene.EnrichmentNeedsReview, b.EnrichmentState)
	require.True(t, hygiene.HasFlag(b.QualityFlags, hygiene.FlagDuplicate))
	require.Contains(t, b.AdminNotes, "Science Fair 2025")
	require.Contains(t, b.AdminNotes, "(a)")
}

func TestDedupNormalizeBatchesAreBounded(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	store := memory.NewCompetitionStore()
	pass := hygiene.NewDedupPass(store, 2, zap.NewNop())

	for i, id := range []string{"c1", "c2", "c3"} {
		seedComp(t, store, hygiene.Competition{
			ID: id, Title: "Contest " + id,
			OfficialURL: "https://" + id + ".org",
			CreatedAt:   baseTime.Add(time.Duration(i) * time.Minute),
		})
	}

	result, err := pass.Run(ctx)
	require.NoError(t, err)
	require.Equal(t, 2, result.Processed)

	// One record remains unnormalized, so the next run stays in the
	// normalize phase.
	result, err = pass.Run(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, result.Processed)

	n, err := store.CountUnnormalized(ctx)
	require.NoError(t, err)
	require.Zero(t, n)
}

func TestDedupGroupingIsIdempotent(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	store := memory.NewCompetitionStore()
	pass := hygiene.NewDedupPass(store, 20, zap.NewNop())

	seedComp(t, store, hygiene.Competition{
		ID: "a", Title: "Robotics Challenge 2025",
		OfficialURL: "https://robots.example.org",
		CreatedAt:   baseTime,
	})
	seedComp(t, store, hygiene.Competition{
		ID: "b", Title: "Robotics Challenge 2026",
		OfficialURL: "robots.example.org",
		CreatedAt:   baseTime.Add(time.Hour),
	})

	_, err := pass.Run(ctx)
	require.NoError(t, err)
	result, err := pass.Run(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, result.Processed)

	// Re-running after resolution marks nothing further.
	result, err = pass.Run(ctx)
	require.NoError(t, err)
	require.Zero(t, result.Processed)
}

func TestDedupSkipsRecordsWithoutCanonicalHost(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	store := memory.NewCompetitionStore()
	pass := hygiene.NewDedupPass(store, 20, zap.NewNop())

	// Same canonical title, but neither record has a usable URL, so no
	// grouping key exists and neither is marked.
	seedComp(t, store, hygiene.Competition{
		ID: "a", Title: "Essay Contest 2025", CreatedAt: baseTime,
	})
	seedComp(t, store, hygiene.Competition{
		ID: "b", Title: "Essay Contest 2026", CreatedAt: baseTime.Add(time.Hour),
	})

	_, err := pass.Run(ctx)
	require.NoError(t, err)
	result, err := pass.Run(ctx)
	require.NoError(t, err)
	require.Zero(t, result.Processed)

	b, err := store.Get(ctx, "b")
	require.NoError(t, err)
	require.Nil(t, b.DuplicateOfID)
}

func TestDedupMergesFlagsOnDuplicates(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	store := memory.NewCompetitionStore()
	pass := hygiene.NewDedupPass(store, 20, zap.NewNop())

	seedComp(t, store, hygiene.Competition{
		ID: "a", Title: "Coding Cup 2025",
		OfficialURL: "https://cup.dev",
		CreatedAt:   baseTime,
	})
	seedComp(t, store, hygiene.Competition{
		ID: "b", Title: "Coding Cup 2026",
		OfficialURL:  "https://cup.dev",
		QualityFlags: hygiene.AddFlag("", hygiene.FlagBrokenURL),
		CreatedAt:    baseTime.Add(time.Hour),
	})

	_, err := pass.Run(ctx)
	require.NoError(t, err)
	_, err = pass.Run(ctx)
	require.NoError(t, err)

	// An earlier quality signal survives duplicate marking.
	b, err := store.Get(ctx, "b")
	require.NoError(t, err)
	require.True(t, hygiene.HasFlag(b.QualityFlags, hygiene.FlagBrokenURL))
	require.True(t, hygiene.HasFlag(b.QualityFlags, hygiene.FlagDuplicate))
}

func TestDedupResolvedDuplicatesStayOutOfGroups(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	store := memory.NewCompetitionStore()
	pass := hygiene.NewDedupPass(store, 20, zap.NewNop())

	for i, id := range []string{"a", "b", "c"} {
		seedComp(t, store, hygiene.Competition{
			ID: id, Title: "Quiz Bowl 2025",
			OfficialURL: "https://quizbowl.org",
			CreatedAt:   baseTime.Add(time.Duration(i) * time.Hour),
		})
	}

	_, err := pass.Run(ctx)
	require.NoError(t, err)
	result, err := pass.Run(ctx)
	require.NoError(t, err)
	require.Equal(t, 2, result.Processed)

	// b and c both point at a; a remains the sole master.
	for _, id := range []string{"b", "c"} {
		c, err := store.Get(ctx, id)
		require.NoError(t, err)
		require.NotNil(t, c.DuplicateOfID)
		require.Equal(t, "a", *c.DuplicateOfID)
	}
}
