package hygiene

import (
	"context"
	"fmt"

	"go.uber.org/zap"
)

// DefaultNormalizeBatch bounds how many records one invocation normalizes,
// so a single run stays well under the lock TTL.
const DefaultNormalizeBatch = 20

// DedupPass backfills canonical fields and marks duplicate records.
//
// It is a two-phase job whose phase is re-derived from the data on every
// invocation: as long as unnormalized records remain, a run normalizes one
// batch and stops; once the store reports zero unnormalized records, a run
// groups by canonical key and marks duplicates. Callers re-invoke until the
// normalize phase reports zero processed.
type DedupPass struct {
	store     CompetitionStore
	batchSize int
	logger    *zap.Logger
}

// NewDedupPass constructs a DedupPass. batchSize <= 0 selects the default.
func NewDedupPass(store CompetitionStore, batchSize int, logger *zap.Logger) *DedupPass {
	if batchSize <= 0 {
		batchSize = DefaultNormalizeBatch
	}
	return &DedupPass{store: store, batchSize: batchSize, logger: logger}
}

// Run executes one dedup invocation and reports how many records it touched.
func (p *DedupPass) Run(ctx context.Context) (RunResult, error) {
	remaining, err := p.store.CountUnnormalized(ctx)
	if err != nil {
		return RunResult{}, fmt.Errorf("count unnormalized: %w", err)
	}
	if remaining > 0 {
		return p.normalizeBatch(ctx)
	}
	return p.markDuplicates(ctx)
}

func (p *DedupPass) normalizeBatch(ctx context.Context) (RunResult, error) {
	batch, err := p.store.ListUnnormalized(ctx, p.batchSize)
	if err != nil {
		return RunResult{}, fmt.Errorf("list unnormalized: %w", err)
	}

	normalized := 0
	for _, c := range batch {
		title := NormalizeTitle(c.Title)
		var host *string
		if h := firstHost(c.OfficialURL, c.ApplyURL); h != "" {
			host = &h
		}
		if err := p.store.SetCanonical(ctx, c.ID, title, host); err != nil {
			// One bad row must not abort the batch.
			p.logger.Warn("normalize record failed", zap.String("id", c.ID), zap.Error(err))
			continue
		}
		normalized++
	}

	p.logger.Info("normalized batch", zap.Int("count", normalized))
	return RunResult{
		Processed: normalized,
		Details:   fmt.Sprintf("Normalized batch of %d. Run again to continue/finish.", normalized),
	}, nil
}

func (p *DedupPass) markDuplicates(ctx context.Context) (RunResult, error) {
	// Candidates arrive ordered by creation time then id, so group order is
	// stable and the earliest-created member is always the master.
	candidates, err := p.store.ListGroupCandidates(ctx)
	if err != nil {
		return RunResult{}, fmt.Errorf("list group candidates: %w", err)
	}

	groups := make(map[string][]Competition)
	var keys []string
	for _, c := range candidates {
		if c.CanonicalTitle == nil || *c.CanonicalTitle == "" || c.CanonicalHost == nil || *c.CanonicalHost == "" {
			continue
		}
		key := *c.CanonicalTitle + "|" + *c.CanonicalHost
		if _, seen := groups[key]; !seen {
			keys = append(keys, key)
		}
		groups[key] = append(groups[key], c)
	}

	marked := 0
	for _, key := range keys {
		group := groups[key]
		if len(group) < 2 {
			continue
		}
		master := group[0]
		for _, other := range group[1:] {
			if other.DuplicateOfID != nil {
				continue
			}
			upd := DuplicateUpdate{
				MasterID:        master.ID,
				Status:          StatusRejected,
				QualityFlags:    AddFlag(other.QualityFlags, FlagDuplicate),
				EnrichmentState: EnrichmentNeedsReview,
				Note:            fmt.Sprintf("Auto-detected duplicate of %s (%s)", master.Title, master.ID),
			}
			if err := p.store.MarkDuplicate(ctx, other.ID, upd); err != nil {
				p.logger.Warn("mark duplicate failed",
					zap.String("id", other.ID),
					zap.String("master_id", master.ID),
					zap.Error(err))
				continue
			}
			marked++
		}
	}

	p.logger.Info("duplicate analysis complete", zap.Int("marked", marked))
	return RunResult{
		Processed: marked,
		Details:   fmt.Sprintf("Duplicate analysis complete. Marked %d duplicates.", marked),
	}, nil
}

func firstHost(urls ...string) string {
	for _, u := range urls {
		if h := CanonicalHost(u); h != "" {
			return h
		}
	}
	return ""
}
