package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"estatedesk/crm-service/internal/models"
	"estatedesk/crm-service/internal/store"
)

type visitRequest struct {
	LeadID      string `json:"lead_id"`
	Property    string `json:"property"`
	ScheduledAt string `json:"scheduled_at"`
	Notes       string `json:"notes"`
}

type visitUpdateRequest struct {
	Status string `json:"status"`
	Notes  string `json:"notes"`
}

func (h *Handler) handleVisits(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		h.listVisits(w, r)
	case http.MethodPost:
		h.createVisit(w, r)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func (h *Handler) listVisits(w http.ResponseWriter, r *http.Request) {
	leadID := strings.TrimSpace(r.URL.Query().Get("lead_id"))
	visits, err := h.store.ListVisits(r.Context(), leadID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal_error", "internal server error")
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"visits": visits})
}

func (h *Handler) createVisit(w http.ResponseWriter, r *http.Request) {
	ident, ok := requireIdentity(w, r)
	if !ok {
		return
	}

	var req visitRequest
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json", "invalid JSON payload")
		return
	}

	req.LeadID = strings.TrimSpace(req.LeadID)
	req.Property = strings.TrimSpace(req.Property)
	if req.LeadID == "" || req.Property == "" || req.ScheduledAt == "" {
		writeError(w, http.StatusBadRequest, "invalid_request", "lead_id, property, and scheduled_at are required")
		return
	}

	scheduledAt, err := time.Parse(time.RFC3339, req.ScheduledAt)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "scheduled_at must be RFC 3339")
		return
	}

	visit, err := h.store.CreateVisit(r.Context(), store.VisitInput{
		LeadID:      req.LeadID,
		Property:    req.Property,
		ScheduledAt: scheduledAt,
		Notes:       req.Notes,
		AgentID:     ident.User.UserID,
	})
	if err != nil {
		if errors.Is(err, store.ErrLeadNotFound) {
			writeError(w, http.StatusNotFound, "not_found", "lead not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "internal_error", "internal server error")
		return
	}
	writeJSON(w, http.StatusCreated, visit)
}

func (h *Handler) handleVisit(w http.ResponseWriter, r *http.Request) {
	visitID := strings.TrimPrefix(r.URL.Path, "/api/visits/")
	if visitID == "" || strings.Contains(visitID, "/") {
		writeError(w, http.StatusNotFound, "not_found", "visit not found")
		return
	}
	if r.Method != http.MethodPatch {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	var req visitUpdateRequest
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json", "invalid JSON payload")
		return
	}

	switch req.Status {
	case models.VisitStatusScheduled, models.VisitStatusCompleted, models.VisitStatusCancelled:
	default:
		writeError(w, http.StatusBadRequest, "invalid_request", "unknown visit status")
		return
	}

	visit, err := h.store.UpdateVisitStatus(r.Context(), visitID, req.Status, req.Notes)
	if err != nil {
		if errors.Is(err, store.ErrVisitNotFound) {
			writeError(w, http.StatusNotFound, "not_found", "visit not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "internal_error", "internal server error")
		return
	}
	writeJSON(w, http.StatusOK, visit)
}
