// Package hygiene implements the catalog data-hygiene worker: canonical
// normalization of competition records, duplicate detection, and URL health
// checking, all serialized behind a store-backed lock.
package hygiene

import (
	"context"
	"time"
)

// ModerationStatus is the moderation lifecycle of a competition record.
type ModerationStatus string

// Moderation statuses.
const (
	StatusPending  ModerationStatus = "PENDING"
	StatusApproved ModerationStatus = "APPROVED"
	StatusRejected ModerationStatus = "REJECTED"
)

// EnrichmentState tracks how far a record has moved through the enrichment
// pipeline.
type EnrichmentState string

// Enrichment states.
const (
	EnrichmentNew         EnrichmentState = "NEW"
	EnrichmentReady       EnrichmentState = "READY_TO_ENRICH"
	EnrichmentNeedsReview EnrichmentState = "NEEDS_REVIEW"
	EnrichmentDone        EnrichmentState = "ENRICHED"
)

// Quality flags recorded on competition rows.
const (
	FlagBrokenURL = "BROKEN_URL"
	FlagDuplicate = "DUPLICATE"
)

// Task selects which hygiene pass a run executes.
type Task string

// Known tasks.
const (
	TaskDedupe   Task = "dedupe"
	TaskURLCheck Task = "urlcheck"
)

// Competition is a catalog record. The hygiene passes mutate the canonical,
// duplicate, quality, and URL-health fields; submission and moderation own
// the rest.
type Competition struct {
	ID          string
	Title       string
	Track       string
	OfficialURL string
	ApplyURL    string
	Source      string

	// CanonicalTitle is nil until the record has been through the
	// normalization phase; its nil-ness is the phase sentinel.
	CanonicalTitle *string
	CanonicalHost  *string

	// DuplicateOfID points at the master record when this row has been
	// identified as a duplicate.
	DuplicateOfID *string

	// QualityFlags is a JSON-encoded string set, e.g. ["BROKEN_URL"].
	QualityFlags string

	EnrichmentState EnrichmentState
	Status          ModerationStatus

	URLStatusCode *int
	URLFinal      string
	URLCheckedAt  *time.Time

	AdminNotes string
	Deadline   *time.Time
	CreatedAt  time.Time
}

// PrimaryURL returns the URL the health check should probe: the official
// URL, falling back to the application URL.
func (c Competition) PrimaryURL() string {
	if c.OfficialURL != "" {
		return c.OfficialURL
	}
	return c.ApplyURL
}

// RunResult summarizes a completed pass.
type RunResult struct {
	Processed int    `json:"processed"`
	Details   string `json:"details"`
}

// DuplicateUpdate carries the field mutations applied to a record identified
// as a duplicate of a master.
type DuplicateUpdate struct {
	MasterID        string
	Status          ModerationStatus
	QualityFlags    string
	EnrichmentState EnrichmentState
	Note            string
}

// URLCheckUpdate carries the outcome of a URL health probe for one record.
type URLCheckUpdate struct {
	StatusCode      int
	FinalURL        string
	CheckedAt       time.Time
	QualityFlags    string
	EnrichmentState EnrichmentState
}

// CatalogFilter narrows public catalog listings.
type CatalogFilter struct {
	Query string
	Track string
	Limit int
}

// CompetitionStore is the typed persistence surface the service depends on.
type CompetitionStore interface {
	// Hygiene queries.
	ListUnnormalized(ctx context.Context, limit int) ([]Competition, error)
	CountUnnormalized(ctx context.Context) (int, error)
	ListGroupCandidates(ctx context.Context) ([]Competition, error)
	SetCanonical(ctx context.Context, id string, canonicalTitle string, canonicalHost *string) error
	MarkDuplicate(ctx context.Context, id string, upd DuplicateUpdate) error
	ListURLCheckCandidates(ctx context.Context, limit int) ([]Competition, error)
	RecordURLCheck(ctx context.Context, id string, upd URLCheckUpdate) error

	// Catalog and moderation queries.
	Create(ctx context.Context, comp Competition) error
	Get(ctx context.Context, id string) (Competition, error)
	ListApproved(ctx context.Context, filter CatalogFilter) ([]Competition, error)
	ListByStatus(ctx context.Context, status ModerationStatus, limit int) ([]Competition, error)
	SetStatus(ctx context.Context, id string, status ModerationStatus, note string) error
}

// ProbeResult is the observable outcome of one URL probe.
type ProbeResult struct {
	StatusCode int
	FinalURL   string
}

// Prober issues a single GET against a candidate URL, following redirects,
// and reports the final status and URL.
type Prober interface {
	Probe(ctx context.Context, rawURL string) (ProbeResult, error)
}

// Clock abstracts time for deterministic tests.
type Clock interface {
	Now() time.Time
}

// IDGenerator produces unique identifiers for new records and lock tokens.
type IDGenerator interface {
	NewID() (string, error)
}
