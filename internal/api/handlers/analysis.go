package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/mindprint-labs/mindprint/internal/api/middleware"
	"github.com/mindprint-labs/mindprint/internal/domain"
	"github.com/mindprint-labs/mindprint/internal/service"
)

type AnalysisHandler struct {
	history    *service.HistoryService
	generation *service.GenerationService
}

func NewAnalysisHandler(history *service.HistoryService, generation *service.GenerationService) *AnalysisHandler {
	return &AnalysisHandler{history: history, generation: generation}
}

type createAnalysisRequest struct {
	SourceAssessmentID string                    `json:"sourceAssessmentId,omitempty"`
	Answers            []domain.AssessmentAnswer `json:"answers"`
}

type historyResponse struct {
	Analyses []domain.Analysis `json:"analyses"`
	Count    int               `json:"count"`
}

type refreshResponse struct {
	Merged int `json:"merged"`
}

type relatedResponse struct {
	Related []domain.AnalysisWithAffinity `json:"related"`
	Count   int                           `json:"count"`
}

func (h *AnalysisHandler) Create(w http.ResponseWriter, r *http.Request) {
	owner := middleware.OwnerFromContext(r.Context())

	var req createAnalysisRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	a, err := h.generation.CreateAnalysis(r.Context(), owner, req.SourceAssessmentID, req.Answers)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrOwnerRequired), errors.Is(err, service.ErrAnswersRequired):
			writeError(w, http.StatusBadRequest, err.Error())
		default:
			writeError(w, http.StatusInternalServerError, "failed to create analysis")
		}
		return
	}

	writeJSON(w, http.StatusCreated, a)
}

// List returns the owner's analysis history, refreshing it from the store
// first. The refresh is cooldown-coalesced, so repeated page loads serve
// the in-memory collection.
func (h *AnalysisHandler) List(w http.ResponseWriter, r *http.Request) {
	owner := middleware.OwnerFromContext(r.Context())

	if _, err := h.history.Refresh(r.Context(), owner, false); err != nil {
		// Last known history is still served below; surface only when there
		// is nothing to fall back on.
		if len(h.history.History(owner)) == 0 {
			writeError(w, http.StatusBadGateway, "failed to fetch analysis history")
			return
		}
	}

	analyses := h.history.History(owner)
	writeJSON(w, http.StatusOK, historyResponse{Analyses: analyses, Count: len(analyses)})
}

func (h *AnalysisHandler) Current(w http.ResponseWriter, r *http.Request) {
	owner := middleware.OwnerFromContext(r.Context())

	current, ok := h.history.Current(owner)
	if !ok {
		if _, err := h.history.Refresh(r.Context(), owner, false); err == nil {
			current, ok = h.history.Current(owner)
		}
	}
	if !ok {
		writeError(w, http.StatusNotFound, "no analysis available")
		return
	}
	writeJSON(w, http.StatusOK, current)
}

func (h *AnalysisHandler) Select(w http.ResponseWriter, r *http.Request) {
	owner := middleware.OwnerFromContext(r.Context())
	id := chi.URLParam(r, "id")

	if !h.history.Select(owner, id) {
		writeError(w, http.StatusNotFound, "analysis not in history")
		return
	}
	current, _ := h.history.Current(owner)
	writeJSON(w, http.StatusOK, current)
}

func (h *AnalysisHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	owner := middleware.OwnerFromContext(r.Context())
	force, _ := strconv.ParseBool(r.URL.Query().Get("force"))

	merged, err := h.history.Refresh(r.Context(), owner, force)
	if err != nil {
		writeError(w, http.StatusBadGateway, "failed to refresh analysis history")
		return
	}
	writeJSON(w, http.StatusOK, refreshResponse{Merged: merged})
}

func (h *AnalysisHandler) GetByID(w http.ResponseWriter, r *http.Request) {
	owner := middleware.OwnerFromContext(r.Context())
	id := chi.URLParam(r, "id")

	a, err := h.history.FetchByID(r.Context(), id)
	if err != nil {
		if errors.Is(err, service.ErrAnalysisNotFound) {
			writeError(w, http.StatusNotFound, err.Error())
			return
		}
		writeError(w, http.StatusBadGateway, "failed to fetch analysis")
		return
	}
	// Owned analyses are scoped; ownerless legacy rows stay reachable.
	if a.OwnerID != "" && a.OwnerID != owner {
		writeError(w, http.StatusNotFound, "analysis not found")
		return
	}

	writeJSON(w, http.StatusOK, a)
}

func (h *AnalysisHandler) Related(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	limit := 0
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		if n, err := strconv.Atoi(limitStr); err == nil && n > 0 && n <= 20 {
			limit = n
		}
	}

	related, err := h.generation.Related(r.Context(), id, limit)
	if err != nil {
		if errors.Is(err, service.ErrAnalysisIDEmpty) {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to find related analyses")
		return
	}

	writeJSON(w, http.StatusOK, relatedResponse{Related: related, Count: len(related)})
}

// Shared serves the unauthenticated shared-link view of one analysis. The
// id acts as the capability; anyone holding the full identifier (or its
// trailing fragment) can read the profile.
func (h *AnalysisHandler) Shared(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	a, err := h.history.FetchByID(r.Context(), id)
	if err != nil {
		if errors.Is(err, service.ErrAnalysisNotFound) {
			writeError(w, http.StatusNotFound, err.Error())
			return
		}
		writeError(w, http.StatusBadGateway, "failed to fetch analysis")
		return
	}

	writeJSON(w, http.StatusOK, a)
}
