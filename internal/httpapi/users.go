package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"estatedesk/crm-service/internal/models"
	"estatedesk/crm-service/internal/store"
)

type roleUpdateRequest struct {
	Role string `json:"role"`
}

func (h *Handler) handleUsers(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	ident, ok := requireIdentity(w, r)
	if !ok {
		return
	}
	if !ident.Perms.CanManageUsers {
		writeError(w, http.StatusForbidden, "access_denied", "user management not permitted")
		return
	}

	users, err := h.store.ListUsers(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal_error", "internal server error")
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"users": users})
}

func (h *Handler) handleUserRole(w http.ResponseWriter, r *http.Request) {
	userID := strings.TrimPrefix(r.URL.Path, "/api/users/")
	if userID == "" || strings.Contains(userID, "/") {
		writeError(w, http.StatusNotFound, "not_found", "user not found")
		return
	}
	if r.Method != http.MethodPatch {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	ident, ok := requireIdentity(w, r)
	if !ok {
		return
	}
	if !ident.Perms.CanManageUsers {
		writeError(w, http.StatusForbidden, "access_denied", "user management not permitted")
		return
	}

	var req roleUpdateRequest
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json", "invalid JSON payload")
		return
	}
	if req.Role != models.RoleAdmin && req.Role != models.RoleAgent {
		writeError(w, http.StatusBadRequest, "invalid_request", "role must be admin or agent")
		return
	}

	user, err := h.store.UpdateUserRole(r.Context(), userID, req.Role)
	if err != nil {
		if errors.Is(err, store.ErrUserNotFound) {
			writeError(w, http.StatusNotFound, "not_found", "user not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "internal_error", "internal server error")
		return
	}
	writeJSON(w, http.StatusOK, user)
}
