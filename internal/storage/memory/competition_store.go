// Package memory provides in-memory store implementations for development
// and testing.
package memory

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/compace/hygiene/internal/hygiene"
)

// CompetitionStore is an in-memory hygiene.CompetitionStore.
type CompetitionStore struct {
	mu    sync.RWMutex
	comps map[string]hygiene.Competition
}

// NewCompetitionStore constructs a CompetitionStore.
func NewCompetitionStore() *CompetitionStore {
	return &CompetitionStore{comps: make(map[string]hygiene.Competition)}
}

// ListUnnormalized returns up to limit records with no canonical title,
// oldest first.
func (s *CompetitionStore) ListUnnormalized(_ context.Context, limit int) ([]hygiene.Competition, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := s.selectSorted(func(c hygiene.Competition) bool {
		return c.CanonicalTitle == nil
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// CountUnnormalized reports how many records lack a canonical title.
func (s *CompetitionStore) CountUnnormalized(_ context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n := 0
	for _, c := range s.comps {
		if c.CanonicalTitle == nil {
			n++
		}
	}
	return n, nil
}

// ListGroupCandidates returns records not resolved as duplicates, ordered by
// creation time then id.
func (s *CompetitionStore) ListGroupCandidates(_ context.Context) ([]hygiene.Competition, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.selectSorted(func(c hygiene.Competition) bool {
		return c.DuplicateOfID == nil
	}), nil
}

// SetCanonical backfills canonical fields on one record.
func (s *CompetitionStore) SetCanonical(_ context.Context, id string, canonicalTitle string, canonicalHost *string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.comps[id]
	if !ok {
		return hygiene.ErrNotFound
	}
	title := canonicalTitle
	c.CanonicalTitle = &title
	c.CanonicalHost = cloneString(canonicalHost)
	s.comps[id] = c
	return nil
}

// MarkDuplicate resolves one record as a duplicate of its master.
func (s *CompetitionStore) MarkDuplicate(_ context.Context, id string, upd hygiene.DuplicateUpdate) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.comps[id]
	if !ok {
		return hygiene.ErrNotFound
	}
	master := upd.MasterID
	c.DuplicateOfID = &master
	c.Status = upd.Status
	c.QualityFlags = upd.QualityFlags
	c.EnrichmentState = upd.EnrichmentState
	c.AdminNotes = appendNote(c.AdminNotes, upd.Note)
	s.comps[id] = c
	return nil
}

// ListURLCheckCandidates returns non-duplicate records that are new or never
// URL-checked, oldest first.
func (s *CompetitionStore) ListURLCheckCandidates(_ context.Context, limit int) ([]hygiene.Competition, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := s.selectSorted(func(c hygiene.Competition) bool {
		return c.DuplicateOfID == nil &&
			(c.EnrichmentState == hygiene.EnrichmentNew || c.URLCheckedAt == nil)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// RecordURLCheck persists a probe outcome on one record.
func (s *CompetitionStore) RecordURLCheck(_ context.Context, id string, upd hygiene.URLCheckUpdate) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.comps[id]
	if !ok {
		return hygiene.ErrNotFound
	}
	status := upd.StatusCode
	checked := upd.CheckedAt
	c.URLStatusCode = &status
	c.URLFinal = upd.FinalURL
	c.URLCheckedAt = &checked
	c.QualityFlags = upd.QualityFlags
	c.EnrichmentState = upd.EnrichmentState
	s.comps[id] = c
	return nil
}

// Create stores a new record.
func (s *CompetitionStore) Create(_ context.Context, comp hygiene.Competition) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.comps[comp.ID] = comp
	return nil
}

// Get fetches a record by id.
func (s *CompetitionStore) Get(_ context.Context, id string) (hygiene.Competition, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.comps[id]
	if !ok {
		return hygiene.Competition{}, hygiene.ErrNotFound
	}
	return c, nil
}

// ListApproved returns approved non-duplicate records, newest first.
func (s *CompetitionStore) ListApproved(_ context.Context, filter hygiene.CatalogFilter) ([]hygiene.Competition, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	q := strings.ToLower(filter.Query)
	out := s.selectSorted(func(c hygiene.Competition) bool {
		if c.Status != hygiene.StatusApproved || c.DuplicateOfID != nil {
			return false
		}
		if q != "" && !strings.Contains(strings.ToLower(c.Title), q) {
			return false
		}
		if filter.Track != "" && c.Track != filter.Track {
			return false
		}
		return true
	})
	reverse(out)
	limit := filter.Limit
	if limit <= 0 {
		limit = 50
	}
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// ListByStatus returns the moderation queue for a status, newest first.
func (s *CompetitionStore) ListByStatus(_ context.Context, status hygiene.ModerationStatus, limit int) ([]hygiene.Competition, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := s.selectSorted(func(c hygiene.Competition) bool {
		return c.Status == status
	})
	reverse(out)
	if limit <= 0 {
		limit = 50
	}
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// SetStatus updates moderation status and appends a note.
func (s *CompetitionStore) SetStatus(_ context.Context, id string, status hygiene.ModerationStatus, note string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.comps[id]
	if !ok {
		return hygiene.ErrNotFound
	}
	c.Status = status
	c.AdminNotes = appendNote(c.AdminNotes, note)
	s.comps[id] = c
	return nil
}

// selectSorted filters records and orders them by creation time then id,
// matching the SQL store's deterministic ordering.
func (s *CompetitionStore) selectSorted(keep func(hygiene.Competition) bool) []hygiene.Competition {
	var out []hygiene.Competition
	for _, c := range s.comps {
		if keep(c) {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out
}

func appendNote(notes, note string) string {
	if note == "" {
		return notes
	}
	if notes == "" {
		return note
	}
	return notes + "\n" + note
}

func cloneString(s *string) *string {
	if s == nil {
		return nil
	}
	v := *s
	return &v
}

func reverse(comps []hygiene.Competition) {
	for i, j := 0, len(comps)-1; i < j; i, j = i+1, j-1 {
		comps[i], comps[j] = comps[j], comps[i]
	}
}
