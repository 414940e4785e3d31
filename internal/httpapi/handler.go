package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"estatedesk/crm-service/internal/models"
	"estatedesk/crm-service/internal/permissions"
	"estatedesk/crm-service/internal/store"
	"estatedesk/crm-service/internal/token"
)

type Handler struct {
	store  store.Store
	tokens *token.Service
}

type registerRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
	Role     string `json:"role"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type userPayload struct {
	models.User
	Permissions permissions.Set `json:"permissions"`
}

type userResponse struct {
	User *userPayload `json:"user"`
}

type errorResponse struct {
	Error responseError `json:"error"`
}

type responseError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func NewHandler(store store.Store, tokens *token.Service) *Handler {
	return &Handler{store: store, tokens: tokens}
}

func (h *Handler) Routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", h.handleHealth)
	mux.HandleFunc("/api/auth/register", h.handleRegister)
	mux.HandleFunc("/api/auth/login", h.handleLogin)
	mux.HandleFunc("/api/auth/refresh", h.handleRefresh)
	mux.HandleFunc("/api/auth/logout", h.handleLogout)
	mux.HandleFunc("/api/auth/me", h.handleMe)
	mux.HandleFunc("/api/leads", h.handleLeads)
	mux.HandleFunc("/api/leads/", h.handleLead)
	mux.HandleFunc("/api/visits", h.handleVisits)
	mux.HandleFunc("/api/visits/", h.handleVisit)
	mux.HandleFunc("/api/expenses", h.handleExpenses)
	mux.HandleFunc("/api/users", h.handleUsers)
	mux.HandleFunc("/api/users/", h.handleUserRole)
	return h.sessionMiddleware(mux)
}

func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Handler) handleRegister(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	var req registerRequest
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json", "invalid JSON payload")
		return
	}

	req.Name = strings.TrimSpace(req.Name)
	req.Email = strings.TrimSpace(req.Email)
	if req.Name == "" || req.Email == "" || req.Password == "" {
		writeError(w, http.StatusBadRequest, "invalid_request", "name, email, and password are required")
		return
	}

	// Only an authenticated admin may choose a role; everyone else
	// registers as an agent.
	role := models.RoleAgent
	if req.Role != "" {
		ident, ok := h.resolveIdentity(r)
		if !ok || !ident.Perms.CanManageUsers {
			writeError(w, http.StatusForbidden, "access_denied", "role assignment requires user management permission")
			return
		}
		if req.Role != models.RoleAdmin && req.Role != models.RoleAgent {
			writeError(w, http.StatusBadRequest, "invalid_request", "role must be admin or agent")
			return
		}
		role = req.Role
	}

	user, err := h.store.CreateUser(r.Context(), store.CreateUserInput{
		Name:     req.Name,
		Email:    req.Email,
		Password: req.Password,
		Role:     role,
	})
	if err != nil {
		if errors.Is(err, store.ErrEmailTaken) {
			writeError(w, http.StatusConflict, "email_taken", "email already registered")
			return
		}
		writeError(w, http.StatusInternalServerError, "internal_error", "internal server error")
		return
	}

	writeJSON(w, http.StatusCreated, userResponse{User: newUserPayload(user)})
}

func (h *Handler) handleLogin(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	var req loginRequest
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json", "invalid JSON payload")
		return
	}

	req.Email = strings.TrimSpace(req.Email)
	if req.Email == "" || req.Password == "" {
		writeError(w, http.StatusBadRequest, "invalid_request", "email and password are required")
		return
	}

	user, err := h.store.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		if errors.Is(err, store.ErrInvalidCredentials) {
			writeError(w, http.StatusUnauthorized, "invalid_credentials", "invalid credentials")
			return
		}
		writeError(w, http.StatusInternalServerError, "internal_error", "internal server error")
		return
	}

	access, accessExpiry, err := h.issueToken(r, user.UserID, models.TokenTypeAccess)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal_error", "internal server error")
		return
	}
	refresh, refreshExpiry, err := h.issueToken(r, user.UserID, models.TokenTypeRefresh)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal_error", "internal server error")
		return
	}

	setSessionCookie(w, access, accessExpiry)
	setRefreshCookie(w, refresh, refreshExpiry)
	writeJSON(w, http.StatusOK, userResponse{User: newUserPayload(user)})
}

// handleRefresh exchanges a valid refresh token for a fresh access token.
func (h *Handler) handleRefresh(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	cookie, err := r.Cookie(refreshCookieName)
	if err != nil || cookie.Value == "" {
		writeError(w, http.StatusUnauthorized, "unauthorized", "missing refresh token")
		return
	}

	claims, err := h.tokens.Verify(cookie.Value)
	if err != nil || claims.Type != models.TokenTypeRefresh {
		writeError(w, http.StatusUnauthorized, "unauthorized", "invalid refresh token")
		return
	}
	valid, err := h.store.IsTokenValid(r.Context(), cookie.Value)
	if err != nil || !valid {
		writeError(w, http.StatusUnauthorized, "unauthorized", "invalid refresh token")
		return
	}
	user, err := h.store.GetUser(r.Context(), claims.UserID)
	if err != nil {
		writeError(w, http.StatusUnauthorized, "unauthorized", "invalid refresh token")
		return
	}

	access, accessExpiry, err := h.issueToken(r, user.UserID, models.TokenTypeAccess)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal_error", "internal server error")
		return
	}

	setSessionCookie(w, access, accessExpiry)
	writeJSON(w, http.StatusOK, userResponse{User: newUserPayload(user)})
}

func (h *Handler) issueToken(r *http.Request, userID, kind string) (string, time.Time, error) {
	raw, expiresAt, err := h.tokens.Issue(userID, kind)
	if err != nil {
		return "", time.Time{}, err
	}
	if err := h.store.SaveToken(r.Context(), models.TokenRecord{
		Token:     raw,
		UserID:    userID,
		Type:      kind,
		ExpiresAt: expiresAt,
	}); err != nil {
		return "", time.Time{}, err
	}
	return raw, expiresAt, nil
}

// handleLogout revokes the persisted token record (best effort) and clears
// the cookie. It always succeeds, even with no active session.
func (h *Handler) handleLogout(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	if cookie, err := r.Cookie(sessionCookieName); err == nil && cookie.Value != "" {
		_ = h.store.RevokeToken(r.Context(), cookie.Value)
	}
	if cookie, err := r.Cookie(refreshCookieName); err == nil && cookie.Value != "" {
		_ = h.store.RevokeToken(r.Context(), cookie.Value)
	}

	clearSessionCookie(w)
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

// handleMe reports the caller's identity. "Not logged in" is a normal
// response shape, not an error: every resolution failure yields a null user
// with status 200.
func (h *Handler) handleMe(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	ident, ok := h.resolveIdentity(r)
	if !ok {
		writeJSON(w, http.StatusOK, userResponse{User: nil})
		return
	}

	writeJSON(w, http.StatusOK, userResponse{User: newUserPayload(ident.User)})
}

func newUserPayload(user models.User) *userPayload {
	return &userPayload{User: user, Permissions: permissions.ForRole(user.Role)}
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, errorResponse{Error: responseError{Code: code, Message: message}})
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload == nil {
		return
	}
	_ = json.NewEncoder(w).Encode(payload)
}

func parseDate(value string) (time.Time, error) {
	return time.Parse("2006-01-02", value)
}
