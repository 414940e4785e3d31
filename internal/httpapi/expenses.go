package httpapi

import (
	"encoding/json"
	"net/http"
	"strings"

	"estatedesk/crm-service/internal/store"
)

type expenseRequest struct {
	Description string `json:"description"`
	AmountCents int64  `json:"amount_cents"`
	Category    string `json:"category"`
	IncurredOn  string `json:"incurred_on"`
}

func (h *Handler) handleExpenses(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		h.listExpenses(w, r)
	case http.MethodPost:
		h.createExpense(w, r)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func (h *Handler) listExpenses(w http.ResponseWriter, r *http.Request) {
	ident, ok := requireIdentity(w, r)
	if !ok {
		return
	}
	if !ident.Perms.CanViewExpenses {
		writeError(w, http.StatusForbidden, "access_denied", "expense viewing not permitted")
		return
	}

	expenses, err := h.store.ListExpenses(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal_error", "internal server error")
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"expenses": expenses})
}

func (h *Handler) createExpense(w http.ResponseWriter, r *http.Request) {
	ident, ok := requireIdentity(w, r)
	if !ok {
		return
	}

	var req expenseRequest
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json", "invalid JSON payload")
		return
	}

	req.Description = strings.TrimSpace(req.Description)
	if req.Description == "" || req.AmountCents <= 0 || req.IncurredOn == "" {
		writeError(w, http.StatusBadRequest, "invalid_request", "description, amount_cents, and incurred_on are required")
		return
	}

	incurredOn, err := parseDate(req.IncurredOn)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "incurred_on must be YYYY-MM-DD")
		return
	}

	expense, err := h.store.CreateExpense(r.Context(), store.ExpenseInput{
		Description: req.Description,
		AmountCents: req.AmountCents,
		Category:    strings.TrimSpace(req.Category),
		IncurredOn:  incurredOn,
		UserID:      ident.User.UserID,
	})
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal_error", "internal server error")
		return
	}
	writeJSON(w, http.StatusCreated, expense)
}
