package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/compace/hygiene/internal/hygiene"
)

// competitionColumns is the scan order shared by every SELECT in this store.
const competitionColumns = `
	id,
	title,
	track,
	official_url,
	apply_url,
	source,
	canonical_title,
	canonical_host,
	duplicate_of_id,
	quality_flags,
	enrichment_state,
	status,
	url_status_code,
	url_final,
	url_checked_at,
	admin_notes,
	deadline,
	created_at`

// CompetitionStore implements hygiene.CompetitionStore on Postgres.
type CompetitionStore struct {
	pool Pool
}

// NewCompetitionStore constructs a store over an existing pool.
func NewCompetitionStore(pool Pool) (*CompetitionStore, error) {
	if pool == nil {
		return nil, fmt.Errorf("pool is required")
	}
	return &CompetitionStore{pool: pool}, nil
}

// ListUnnormalized returns up to limit records whose canonical fields have
// not been backfilled yet, oldest first.
func (s *CompetitionStore) ListUnnormalized(ctx context.Context, limit int) ([]hygiene.Competition, error) {
	query := `SELECT ` + competitionColumns + `
FROM competitions
WHERE canonical_title IS NULL
ORDER BY created_at, id
LIMIT $1`
	return s.list(ctx, query, limit)
}

// CountUnnormalized reports how many records still need normalization.
func (s *CompetitionStore) CountUnnormalized(ctx context.Context) (int, error) {
	var n int
	err := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM competitions WHERE canonical_title IS NULL`).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count unnormalized: %w", err)
	}
	return n, nil
}

// ListGroupCandidates returns all records not yet resolved as duplicates,
// ordered by creation time then id so grouping is deterministic.
func (s *CompetitionStore) ListGroupCandidates(ctx context.Context) ([]hygiene.Competition, error) {
	query := `SELECT ` + competitionColumns + `
FROM competitions
WHERE duplicate_of_id IS NULL
ORDER BY created_at, id`
	return s.list(ctx, query)
}

// SetCanonical backfills the canonical comparison fields on one record.
func (s *CompetitionStore) SetCanonical(ctx context.Context, id string, canonicalTitle string, canonicalHost *string) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE competitions SET canonical_title = $2, canonical_host = $3 WHERE id = $1`,
		id, canonicalTitle, canonicalHost)
	if err != nil {
		return fmt.Errorf("set canonical: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return hygiene.ErrNotFound
	}
	return nil
}

// MarkDuplicate resolves one record as a duplicate of its master.
func (s *CompetitionStore) MarkDuplicate(ctx context.Context, id string, upd hygiene.DuplicateUpdate) error {
	tag, err := s.pool.Exec(ctx, `
UPDATE competitions SET
	duplicate_of_id = $2,
	status = $3,
	quality_flags = $4,
	enrichment_state = $5,
	admin_notes = CASE WHEN admin_notes = '' THEN $6 ELSE admin_notes || E'\n' || $6 END
WHERE id = $1`,
		id, upd.MasterID, string(upd.Status), upd.QualityFlags, string(upd.EnrichmentState), upd.Note)
	if err != nil {
		return fmt.Errorf("mark duplicate: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return hygiene.ErrNotFound
	}
	return nil
}

// ListURLCheckCandidates returns non-duplicate records that are new or have
// never been URL-checked, oldest first.
func (s *CompetitionStore) ListURLCheckCandidates(ctx context.Context, limit int) ([]hygiene.Competition, error) {
	query := `SELECT ` + competitionColumns + `
FROM competitions
WHERE duplicate_of_id IS NULL
  AND (enrichment_state = $1 OR url_checked_at IS NULL)
ORDER BY created_at, id
LIMIT $2`
	return s.list(ctx, query, string(hygiene.EnrichmentNew), limit)
}

// RecordURLCheck persists a URL probe outcome on one record.
func (s *CompetitionStore) RecordURLCheck(ctx context.Context, id string, upd hygiene.URLCheckUpdate) error {
	tag, err := s.pool.Exec(ctx, `
UPDATE competitions SET
	url_status_code = $2,
	url_final = $3,
	url_checked_at = $4,
	quality_flags = $5,
	enrichment_state = $6
WHERE id = $1`,
		id, upd.StatusCode, upd.FinalURL, upd.CheckedAt, upd.QualityFlags, string(upd.EnrichmentState))
	if err != nil {
		return fmt.Errorf("record url check: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return hygiene.ErrNotFound
	}
	return nil
}

// Create inserts a newly submitted record.
func (s *CompetitionStore) Create(ctx context.Context, comp hygiene.Competition) error {
	_, err := s.pool.Exec(ctx, `
INSERT INTO competitions (
	id, title, track, official_url, apply_url, source,
	canonical_title, canonical_host, duplicate_of_id,
	quality_flags, enrichment_state, status,
	url_status_code, url_final, url_checked_at,
	admin_notes, deadline, created_at
) VALUES (
	$1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18
)`,
		comp.ID, comp.Title, comp.Track, comp.OfficialURL, comp.ApplyURL, comp.Source,
		comp.CanonicalTitle, comp.CanonicalHost, comp.DuplicateOfID,
		comp.QualityFlags, string(comp.EnrichmentState), string(comp.Status),
		comp.URLStatusCode, comp.URLFinal, comp.URLCheckedAt,
		comp.AdminNotes, comp.Deadline, comp.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert competition: %w", err)
	}
	return nil
}

// Get fetches a record by id.
func (s *CompetitionStore) Get(ctx context.Context, id string) (hygiene.Competition, error) {
	query := `SELECT ` + competitionColumns + ` FROM competitions WHERE id = $1`
	comp, err := scanCompetition(s.pool.QueryRow(ctx, query, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return hygiene.Competition{}, hygiene.ErrNotFound
	}
	if err != nil {
		return hygiene.Competition{}, fmt.Errorf("get competition: %w", err)
	}
	return comp, nil
}

// ListApproved returns approved, non-duplicate records for the public
// catalog, newest first. Filter.Query matches title substrings.
func (s *CompetitionStore) ListApproved(ctx context.Context, filter hygiene.CatalogFilter) ([]hygiene.Competition, error) {
	limit := filter.Limit
	if limit <= 0 {
		limit = 50
	}
	query := `SELECT ` + competitionColumns + `
FROM competitions
WHERE status = $1
  AND duplicate_of_id IS NULL
  AND ($2 = '' OR title ILIKE '%' || $2 || '%')
  AND ($3 = '' OR track = $3)
ORDER BY created_at DESC
LIMIT $4`
	return s.list(ctx, query, string(hygiene.StatusApproved), filter.Query, filter.Track, limit)
}

// ListByStatus returns the moderation queue for a status, newest first.
func (s *CompetitionStore) ListByStatus(ctx context.Context, status hygiene.ModerationStatus, limit int) ([]hygiene.Competition, error) {
	if limit <= 0 {
		limit = 50
	}
	query := `SELECT ` + competitionColumns + `
FROM competitions
WHERE status = $1
ORDER BY created_at DESC
LIMIT $2`
	return s.list(ctx, query, string(status), limit)
}

// SetStatus updates moderation status and appends a note.
func (s *CompetitionStore) SetStatus(ctx context.Context, id string, status hygiene.ModerationStatus, note string) error {
	tag, err := s.pool.Exec(ctx, `
UPDATE competitions SET
	status = $2,
	admin_notes = CASE
		WHEN $3 = '' THEN admin_notes
		WHEN admin_notes = '' THEN $3
		ELSE admin_notes || E'\n' || $3
	END
WHERE id = $1`,
		id, string(status), note)
	if err != nil {
		return fmt.Errorf("set status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return hygiene.ErrNotFound
	}
	return nil
}

func (s *CompetitionStore) list(ctx context.Context, query string, args ...any) ([]hygiene.Competition, error) {
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query competitions: %w", err)
	}
	defer rows.Close()

	var out []hygiene.Competition
	for rows.Next() {
		comp, err := scanCompetition(rows)
		if err != nil {
			return nil, fmt.Errorf("scan competition: %w", err)
		}
		out = append(out, comp)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate competitions: %w", err)
	}
	return out, nil
}

func scanCompetition(row pgx.Row) (hygiene.Competition, error) {
	var (
		c               hygiene.Competition
		enrichmentState string
		status          string
	)
	err := row.Scan(
		&c.ID,
		&c.Title,
		&c.Track,
		&c.OfficialURL,
		&c.ApplyURL,
		&c.Source,
		&c.CanonicalTitle,
		&c.CanonicalHost,
		&c.DuplicateOfID,
		&c.QualityFlags,
		&enrichmentState,
		&status,
		&c.URLStatusCode,
		&c.URLFinal,
		&c.URLCheckedAt,
		&c.AdminNotes,
		&c.Deadline,
		&c.CreatedAt,
	)
	if err != nil {
		return hygiene.Competition{}, err
	}
	c.EnrichmentState = hygiene.EnrichmentState(enrichmentState)
	c.Status = hygiene.ModerationStatus(status)
	return c, nil
}
