package hygiene

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/compace/hygiene/internal/metrics"
)

// DefaultURLCheckLimit caps how many candidates one invocation probes.
const DefaultURLCheckLimit = 25

// URLCheckPass probes candidate record URLs and records their health.
//
// Candidates are non-duplicate records that are either brand new or have
// never had their URL checked. Each candidate is handled sequentially and
// independently; a probe or store failure on one record never aborts the
// batch.
type URLCheckPass struct {
	store        CompetitionStore
	prober       Prober
	clock        Clock
	limiter      *rate.Limiter
	defaultLimit int
	logger       *zap.Logger
}

// URLCheckConfig tunes the pass.
type URLCheckConfig struct {
	// DefaultLimit is used when a run does not specify a candidate cap.
	DefaultLimit int
	// ProbeRPS paces outbound probes across the batch. <= 0 disables pacing.
	ProbeRPS float64
}

// NewURLCheckPass constructs a URLCheckPass.
func NewURLCheckPass(store CompetitionStore, prober Prober, clock Clock, cfg URLCheckConfig, logger *zap.Logger) *URLCheckPass {
	limit := cfg.DefaultLimit
	if limit <= 0 {
		limit = DefaultURLCheckLimit
	}
	r := rate.Inf
	if cfg.ProbeRPS > 0 {
		r = rate.Limit(cfg.ProbeRPS)
	}
	return &URLCheckPass{
		store:        store,
		prober:       prober,
		clock:        clock,
		limiter:      rate.NewLimiter(r, 1),
		defaultLimit: limit,
		logger:       logger,
	}
}

// Run probes up to limit candidates and reports how many records were
// updated. limit <= 0 selects the configured default.
func (p *URLCheckPass) Run(ctx context.Context, limit int) (RunResult, error) {
	if limit <= 0 {
		limit = p.defaultLimit
	}
	candidates, err := p.store.ListURLCheckCandidates(ctx, limit)
	if err != nil {
		return RunResult{}, fmt.Errorf("list url check candidates: %w", err)
	}

	processed := 0
	for _, c := range candidates {
		upd := p.checkOne(ctx, c)
		if err := p.store.RecordURLCheck(ctx, c.ID, upd); err != nil {
			p.logger.Warn("record url check failed", zap.String("id", c.ID), zap.Error(err))
			continue
		}
		processed++
	}

	p.logger.Info("url check complete", zap.Int("checked", processed))
	return RunResult{
		Processed: processed,
		Details:   fmt.Sprintf("Checked %d URLs.", processed),
	}, nil
}

func (p *URLCheckPass) checkOne(ctx context.Context, c Competition) URLCheckUpdate {
	var (
		status int
		final  string
		broken bool
	)

	if rawURL := c.PrimaryURL(); rawURL == "" {
		// No URL at all: broken, and no network call is made.
		broken = true
	} else {
		if err := p.limiter.Wait(ctx); err != nil {
			broken = true
		} else {
			start := time.Now()
			res, err := p.prober.Probe(ctx, rawURL)
			metrics.ObserveProbe(time.Since(start), err == nil)
			if err != nil {
				// Network failure (DNS, timeout, refused) records status 0.
				p.logger.Warn("probe failed", zap.String("id", c.ID), zap.String("url", rawURL), zap.Error(err))
				broken = true
			} else {
				status = res.StatusCode
				final = res.FinalURL
				broken = status >= 400
			}
		}
	}

	flags := RemoveFlag(c.QualityFlags, FlagBrokenURL)
	state := EnrichmentReady
	if broken {
		flags = AddFlag(c.QualityFlags, FlagBrokenURL)
		state = EnrichmentNeedsReview
	}
	return URLCheckUpdate{
		StatusCode:      status,
		FinalURL:        final,
		CheckedAt:       p.clock.Now(),
		QualityFlags:    flags,
		EnrichmentState: state,
	}
}
