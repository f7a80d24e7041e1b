package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/compace/hygiene/internal/hygiene"
	"github.com/compace/hygiene/internal/lock"
)

type runWorkerRequest struct {
	Task  string `json:"task"`
	Limit int    `json:"limit"`
}

type runWorkerResponse struct {
	Success   bool   `json:"success"`
	Processed int    `json:"processed"`
	Details   string `json:"details"`
}

func (s *Server) runWorker(w http.ResponseWriter, r *http.Request) {
	var req runWorkerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}

	result, err := s.runner.Run(r.Context(), hygiene.Task(req.Task), req.Limit)
	if err != nil {
		if errors.Is(err, lock.ErrBusy) {
			s.writeError(w, http.StatusTooManyRequests, "worker is busy (locked)")
			return
		}
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.writeJSON(w, http.StatusOK, runWorkerResponse{
		Success:   true,
		Processed: result.Processed,
		Details:   result.Details,
	})
}

type competitionResponse struct {
	ID              string     `json:"id"`
	Title           string     `json:"title"`
	Track           string     `json:"track,omitempty"`
	OfficialURL     string     `json:"official_url,omitempty"`
	ApplyURL        string     `json:"apply_url,omitempty"`
	Status          string     `json:"status"`
	EnrichmentState string     `json:"enrichment_state"`
	QualityFlags    string     `json:"quality_flags"`
	DuplicateOfID   *string    `json:"duplicate_of_id,omitempty"`
	URLStatusCode   *int       `json:"url_status_code,omitempty"`
	Deadline        *time.Time `json:"deadline,omitempty"`
	CreatedAt       time.Time  `json:"created_at"`
}

type submitCompetitionRequest struct {
	Title       string     `json:"title"`
	Track       string     `json:"track"`
	OfficialURL string     `json:"official_url"`
	ApplyURL    string     `json:"apply_url"`
	Deadline    *time.Time `json:"deadline"`
}

func (s *Server) listCompetitions(w http.ResponseWriter, r *http.Request) {
	filter := hygiene.CatalogFilter{
		Query: r.URL.Query().Get("q"),
		Track: r.URL.Query().Get("track"),
	}
	comps, err := s.store.ListApproved(r.Context(), filter)
	if err != nil {
		s.logger.Error("list competitions failed", zap.Error(err))
		s.writeError(w, http.StatusInternalServerError, "failed to list competitions")
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"competitions": toResponses(comps)})
}

func (s *Server) getCompetition(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "comp_id")
	comp, err := s.store.Get(r.Context(), id)
	if err != nil {
		if errors.Is(err, hygiene.ErrNotFound) {
			s.writeError(w, http.StatusNotFound, "competition not found")
			return
		}
		s.logger.Error("get competition failed", zap.String("id", id), zap.Error(err))
		s.writeError(w, http.StatusInternalServerError, "failed to fetch competition")
		return
	}
	if comp.Status == hygiene.StatusRejected {
		s.writeError(w, http.StatusNotFound, "competition not found")
		return
	}
	s.writeJSON(w, http.StatusOK, toResponse(comp))
}

// submitCompetition accepts a public submission. The record enters the
// moderation queue PENDING with canonical fields unset, so the next dedup
// run normalizes and screens it.
func (s *Server) submitCompetition(w http.ResponseWriter, r *http.Request) {
	var req submitCompetitionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	if req.Title == "" {
		s.writeError(w, http.StatusBadRequest, "title is required")
		return
	}

	id, err := s.idGen.NewID()
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, "failed to generate id")
		return
	}
	comp := hygiene.Competition{
		ID:              id,
		Title:           req.Title,
		Track:           req.Track,
		OfficialURL:     req.OfficialURL,
		ApplyURL:        req.ApplyURL,
		Source:          "submission",
		QualityFlags:    "[]",
		EnrichmentState: hygiene.EnrichmentNew,
		Status:          hygiene.StatusPending,
		Deadline:        req.Deadline,
		CreatedAt:       s.clock.Now(),
	}
	if err := s.store.Create(r.Context(), comp); err != nil {
		s.logger.Error("create competition failed", zap.Error(err))
		s.writeError(w, http.StatusInternalServerError, "failed to create competition")
		return
	}
	s.writeJSON(w, http.StatusCreated, toResponse(comp))
}

func (s *Server) listModerationQueue(w http.ResponseWriter, r *http.Request) {
	status := hygiene.ModerationStatus(r.URL.Query().Get("status"))
	if status == "" {
		status = hygiene.StatusPending
	}
	comps, err := s.store.ListByStatus(r.Context(), status, 0)
	if err != nil {
		s.logger.Error("list moderation queue failed", zap.Error(err))
		s.writeError(w, http.StatusInternalServerError, "failed to list competitions")
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"competitions": toResponses(comps)})
}

func (s *Server) approveCompetition(w http.ResponseWriter, r *http.Request) {
	s.moderate(w, r, hygiene.StatusApproved, "Approved via admin API")
}

func (s *Server) rejectCompetition(w http.ResponseWriter, r *http.Request) {
	s.moderate(w, r, hygiene.StatusRejected, "Rejected via admin API")
}

func (s *Server) moderate(w http.ResponseWriter, r *http.Request, status hygiene.ModerationStatus, note string) {
	id := chi.URLParam(r, "comp_id")
	if err := s.store.SetStatus(r.Context(), id, status, note); err != nil {
		if errors.Is(err, hygiene.ErrNotFound) {
			s.writeError(w, http.StatusNotFound, "competition not found")
			return
		}
		s.logger.Error("moderate competition failed", zap.String("id", id), zap.Error(err))
		s.writeError(w, http.StatusInternalServerError, "failed to update competition")
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]string{"id": id, "status": string(status)})
}

func toResponse(c hygiene.Competition) competitionResponse {
	return competitionResponse{
		ID:              c.ID,
		Title:           c.Title,
		Track:           c.Track,
		OfficialURL:     c.OfficialURL,
		ApplyURL:        c.ApplyURL,
		Status:          string(c.Status),
		EnrichmentState: string(c.EnrichmentState),
		QualityFlags:    c.QualityFlags,
		DuplicateOfID:   c.DuplicateOfID,
		URLStatusCode:   c.URLStatusCode,
		Deadline:        c.Deadline,
		CreatedAt:       c.CreatedAt,
	}
}

func toResponses(comps []hygiene.Competition) []competitionResponse {
	out := make([]competitionResponse, 0, len(comps))
	for _, c := range comps {
		out = append(out, toResponse(c))
	}
	return out
}
