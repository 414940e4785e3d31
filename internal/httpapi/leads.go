package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"estatedesk/crm-service/internal/models"
	"estatedesk/crm-service/internal/store"
)

type leadRequest struct {
	Name    string `json:"name"`
	Phone   string `json:"phone"`
	Email   string `json:"email"`
	Source  string `json:"source"`
	Budget  int64  `json:"budget"`
	Notes   string `json:"notes"`
	AgentID string `json:"agent_id"`
}

type leadUpdateRequest struct {
	Status  *string `json:"status"`
	Budget  *int64  `json:"budget"`
	Notes   *string `json:"notes"`
	AgentID *string `json:"agent_id"`
}

func (h *Handler) handleLeads(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		h.listLeads(w, r)
	case http.MethodPost:
		h.createLead(w, r)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func (h *Handler) listLeads(w http.ResponseWriter, r *http.Request) {
	filter := store.LeadFilter{
		Status:  strings.TrimSpace(r.URL.Query().Get("status")),
		AgentID: strings.TrimSpace(r.URL.Query().Get("agent_id")),
	}
	if filter.Status != "" && !isValidLeadStatus(filter.Status) {
		writeError(w, http.StatusBadRequest, "invalid_request", "unknown lead status")
		return
	}

	leads, err := h.store.ListLeads(r.Context(), filter)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal_error", "internal server error")
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"leads": leads})
}

func (h *Handler) createLead(w http.ResponseWriter, r *http.Request) {
	ident, ok := requireIdentity(w, r)
	if !ok {
		return
	}

	var req leadRequest
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json", "invalid JSON payload")
		return
	}

	req.Name = strings.TrimSpace(req.Name)
	req.Phone = strings.TrimSpace(req.Phone)
	if req.Name == "" || req.Phone == "" {
		writeError(w, http.StatusBadRequest, "invalid_request", "name and phone are required")
		return
	}

	agentID := strings.TrimSpace(req.AgentID)
	if agentID == "" {
		agentID = ident.User.UserID
	}

	lead, err := h.store.CreateLead(r.Context(), store.LeadInput{
		Name:    req.Name,
		Phone:   req.Phone,
		Email:   strings.TrimSpace(req.Email),
		Source:  strings.TrimSpace(req.Source),
		Budget:  req.Budget,
		Notes:   req.Notes,
		AgentID: agentID,
	})
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal_error", "internal server error")
		return
	}
	writeJSON(w, http.StatusCreated, lead)
}

func (h *Handler) handleLead(w http.ResponseWriter, r *http.Request) {
	leadID := strings.TrimPrefix(r.URL.Path, "/api/leads/")
	if leadID == "" || strings.Contains(leadID, "/") {
		writeError(w, http.StatusNotFound, "not_found", "lead not found")
		return
	}

	switch r.Method {
	case http.MethodGet:
		h.getLead(w, r, leadID)
	case http.MethodPatch:
		h.updateLead(w, r, leadID)
	case http.MethodDelete:
		h.deleteLead(w, r, leadID)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func (h *Handler) getLead(w http.ResponseWriter, r *http.Request, leadID string) {
	lead, err := h.store.GetLead(r.Context(), leadID)
	if err != nil {
		if errors.Is(err, store.ErrLeadNotFound) {
			writeError(w, http.StatusNotFound, "not_found", "lead not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "internal_error", "internal server error")
		return
	}
	writeJSON(w, http.StatusOK, lead)
}

func (h *Handler) updateLead(w http.ResponseWriter, r *http.Request, leadID string) {
	var req leadUpdateRequest
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json", "invalid JSON payload")
		return
	}

	if req.Status != nil && !isValidLeadStatus(*req.Status) {
		writeError(w, http.StatusBadRequest, "invalid_request", "unknown lead status")
		return
	}
	if req.AgentID != nil && strings.TrimSpace(*req.AgentID) == "" {
		writeError(w, http.StatusBadRequest, "invalid_request", "agent_id must not be empty")
		return
	}

	lead, err := h.store.UpdateLead(r.Context(), leadID, store.LeadUpdate{
		Status:  req.Status,
		Budget:  req.Budget,
		Notes:   req.Notes,
		AgentID: req.AgentID,
	})
	if err != nil {
		if errors.Is(err, store.ErrLeadNotFound) {
			writeError(w, http.StatusNotFound, "not_found", "lead not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "internal_error", "internal server error")
		return
	}
	writeJSON(w, http.StatusOK, lead)
}

func (h *Handler) deleteLead(w http.ResponseWriter, r *http.Request, leadID string) {
	ident, ok := requireIdentity(w, r)
	if !ok {
		return
	}
	if !ident.Perms.CanDeleteLeads {
		writeError(w, http.StatusForbidden, "access_denied", "lead deletion requires admin role")
		return
	}

	if err := h.store.DeleteLead(r.Context(), leadID); err != nil {
		if errors.Is(err, store.ErrLeadNotFound) {
			writeError(w, http.StatusNotFound, "not_found", "lead not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "internal_error", "internal server error")
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

func isValidLeadStatus(status string) bool {
	switch status {
	case models.LeadStatusNew, models.LeadStatusContacted, models.LeadStatusVisitScheduled,
		models.LeadStatusNegotiating, models.LeadStatusClosed, models.LeadStatusLost:
		return true
	default:
		return false
	}
}
