package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"estatedesk/crm-service/internal/models"
	"estatedesk/crm-service/internal/store"
	"estatedesk/crm-service/internal/token"
)

type fakeStore struct {
	loginFn        func(ctx context.Context, email, password string) (models.User, error)
	createUserFn   func(ctx context.Context, input store.CreateUserInput) (models.User, error)
	getUserFn      func(ctx context.Context, userID string) (models.User, error)
	listUsersFn    func(ctx context.Context) ([]models.User, error)
	updateRoleFn   func(ctx context.Context, userID, role string) (models.User, error)
	saveTokenFn    func(ctx context.Context, record models.TokenRecord) error
	revokeTokenFn  func(ctx context.Context, raw string) error
	isTokenValidFn func(ctx context.Context, raw string) (bool, error)
	createLeadFn   func(ctx context.Context, input store.LeadInput) (models.Lead, error)
	getLeadFn      func(ctx context.Context, leadID string) (models.Lead, error)
	listLeadsFn    func(ctx context.Context, filter store.LeadFilter) ([]models.Lead, error)
	updateLeadFn   func(ctx context.Context, leadID string, update store.LeadUpdate) (models.Lead, error)
	deleteLeadFn   func(ctx context.Context, leadID string) error
	createVisitFn  func(ctx context.Context, input store.VisitInput) (models.SiteVisit, error)
	listVisitsFn   func(ctx context.Context, leadID string) ([]models.SiteVisit, error)
	updateVisitFn  func(ctx context.Context, visitID, status, notes string) (models.SiteVisit, error)
	createExpFn    func(ctx context.Context, input store.ExpenseInput) (models.Expense, error)
	listExpFn      func(ctx context.Context) ([]models.Expense, error)
}

func (f fakeStore) Login(ctx context.Context, email, password string) (models.User, error) {
	if f.loginFn == nil {
		return models.User{}, store.ErrInvalidCredentials
	}
	return f.loginFn(ctx, email, password)
}

func (f fakeStore) CreateUser(ctx context.Context, input store.CreateUserInput) (models.User, error) {
	if f.createUserFn == nil {
		return models.User{}, nil
	}
	return f.createUserFn(ctx, input)
}

func (f fakeStore) GetUser(ctx context.Context, userID string) (models.User, error) {
	if f.getUserFn == nil {
		return models.User{}, store.ErrUserNotFound
	}
	return f.getUserFn(ctx, userID)
}

func (f fakeStore) ListUsers(ctx context.Context) ([]models.User, error) {
	if f.listUsersFn == nil {
		return nil, nil
	}
	return f.listUsersFn(ctx)
}

func (f fakeStore) UpdateUserRole(ctx context.Context, userID, role string) (models.User, error) {
	if f.updateRoleFn == nil {
		return models.User{}, store.ErrUserNotFound
	}
	return f.updateRoleFn(ctx, userID, role)
}

func (f fakeStore) SaveToken(ctx context.Context, record models.TokenRecord) error {
	if f.saveTokenFn == nil {
		return nil
	}
	return f.saveTokenFn(ctx, record)
}

func (f fakeStore) RevokeToken(ctx context.Context, raw string) error {
	if f.revokeTokenFn == nil {
		return nil
	}
	return f.revokeTokenFn(ctx, raw)
}

func (f fakeStore) IsTokenValid(ctx context.Context, raw string) (bool, error) {
	if f.isTokenValidFn == nil {
		return true, nil
	}
	return f.isTokenValidFn(ctx, raw)
}

func (f fakeStore) PurgeExpiredTokens(ctx context.Context, expiredBefore time.Time) (int64, error) {
	return 0, nil
}

func (f fakeStore) CreateLead(ctx context.Context, input store.LeadInput) (models.Lead, error) {
	if f.createLeadFn == nil {
		return models.Lead{}, nil
	}
	return f.createLeadFn(ctx, input)
}

func (f fakeStore) GetLead(ctx context.Context, leadID string) (models.Lead, error) {
	if f.getLeadFn == nil {
		return models.Lead{}, store.ErrLeadNotFound
	}
	return f.getLeadFn(ctx, leadID)
}

func (f fakeStore) ListLeads(ctx context.Context, filter store.LeadFilter) ([]models.Lead, error) {
	if f.listLeadsFn == nil {
		return nil, nil
	}
	return f.listLeadsFn(ctx, filter)
}

func (f fakeStore) UpdateLead(ctx context.Context, leadID string, update store.LeadUpdate) (models.Lead, error) {
	if f.updateLeadFn == nil {
		return models.Lead{}, store.ErrLeadNotFound
	}
	return f.updateLeadFn(ctx, leadID, update)
}

func (f fakeStore) DeleteLead(ctx context.Context, leadID string) error {
	if f.deleteLeadFn == nil {
		return store.ErrLeadNotFound
	}
	return f.deleteLeadFn(ctx, leadID)
}

func (f fakeStore) CreateVisit(ctx context.Context, input store.VisitInput) (models.SiteVisit, error) {
	if f.createVisitFn == nil {
		return models.SiteVisit{}, store.ErrLeadNotFound
	}
	return f.createVisitFn(ctx, input)
}

func (f fakeStore) ListVisits(ctx context.Context, leadID string) ([]models.SiteVisit, error) {
	if f.listVisitsFn == nil {
		return nil, nil
	}
	return f.listVisitsFn(ctx, leadID)
}

func (f fakeStore) UpdateVisitStatus(ctx context.Context, visitID, status, notes string) (models.SiteVisit, error) {
	if f.updateVisitFn == nil {
		return models.SiteVisit{}, store.ErrVisitNotFound
	}
	return f.updateVisitFn(ctx, visitID, status, notes)
}

func (f fakeStore) CreateExpense(ctx context.Context, input store.ExpenseInput) (models.Expense, error) {
	if f.createExpFn == nil {
		return models.Expense{}, nil
	}
	return f.createExpFn(ctx, input)
}

func (f fakeStore) ListExpenses(ctx context.Context) ([]models.Expense, error) {
	if f.listExpFn == nil {
		return nil, nil
	}
	return f.listExpFn(ctx)
}

const testSecret = "test-secret"

func newTestHandler(st store.Store) *Handler {
	return NewHandler(st, token.NewService([]byte(testSecret), time.Hour, 24*time.Hour))
}

func sessionCookie(t *testing.T, userID string) *http.Cookie {
	t.Helper()
	return &http.Cookie{Name: sessionCookieName, Value: issueRaw(t, userID, models.TokenTypeAccess)}
}

func issueRaw(t *testing.T, userID, kind string) string {
	t.Helper()
	svc := token.NewService([]byte(testSecret), time.Hour, 24*time.Hour)
	raw, _, err := svc.Issue(userID, kind)
	if err != nil {
		t.Fatalf("issue token: %v", err)
	}
	return raw
}

func agentStore() fakeStore {
	return fakeStore{
		getUserFn: func(ctx context.Context, userID string) (models.User, error) {
			return models.User{UserID: userID, Name: "Asha Rao", Email: "asha@example.com", Role: models.RoleAgent}, nil
		},
	}
}

func adminStore() fakeStore {
	return fakeStore{
		getUserFn: func(ctx context.Context, userID string) (models.User, error) {
			return models.User{UserID: userID, Name: "Root", Email: "root@example.com", Role: models.RoleAdmin}, nil
		},
	}
}

func TestMeNoCookie(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/api/auth/me", nil)
	resp := httptest.NewRecorder()

	newTestHandler(fakeStore{}).Routes().ServeHTTP(resp, req)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", resp.Code)
	}
	if body := strings.TrimSpace(resp.Body.String()); body != `{"user":null}` {
		t.Fatalf("expected null user body, got %s", body)
	}
}

func TestMeWrongSignature(t *testing.T) {
	other := token.NewService([]byte("other-secret"), time.Hour, 24*time.Hour)
	raw, _, err := other.Issue("user-1", models.TokenTypeAccess)
	if err != nil {
		t.Fatalf("issue token: %v", err)
	}

	req := httptest.NewRequest(http.MethodGet, "/api/auth/me", nil)
	req.AddCookie(&http.Cookie{Name: sessionCookieName, Value: raw})
	resp := httptest.NewRecorder()

	newTestHandler(agentStore()).Routes().ServeHTTP(resp, req)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", resp.Code)
	}
	if body := strings.TrimSpace(resp.Body.String()); body != `{"user":null}` {
		t.Fatalf("expected null user for bad signature, got %s", body)
	}
}

func TestMeExpiredToken(t *testing.T) {
	expired := token.NewService([]byte(testSecret), -time.Minute, 24*time.Hour)
	raw, _, err := expired.Issue("user-1", models.TokenTypeAccess)
	if err != nil {
		t.Fatalf("issue token: %v", err)
	}

	req := httptest.NewRequest(http.MethodGet, "/api/auth/me", nil)
	req.AddCookie(&http.Cookie{Name: sessionCookieName, Value: raw})
	resp := httptest.NewRecorder()

	newTestHandler(agentStore()).Routes().ServeHTTP(resp, req)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", resp.Code)
	}
	if body := strings.TrimSpace(resp.Body.String()); body != `{"user":null}` {
		t.Fatalf("expected null user for expired token, got %s", body)
	}
}

func TestMeRevokedToken(t *testing.T) {
	st := agentStore()
	st.isTokenValidFn = func(ctx context.Context, raw string) (bool, error) {
		return false, nil
	}

	req := httptest.NewRequest(http.MethodGet, "/api/auth/me", nil)
	req.AddCookie(sessionCookie(t, "user-1"))
	resp := httptest.NewRecorder()

	newTestHandler(st).Routes().ServeHTTP(resp, req)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", resp.Code)
	}
	if body := strings.TrimSpace(resp.Body.String()); body != `{"user":null}` {
		t.Fatalf("expected null user for revoked token, got %s", body)
	}
}

func TestMeStoreErrorDegradesToAnonymous(t *testing.T) {
	validityErr := agentStore()
	validityErr.isTokenValidFn = func(ctx context.Context, raw string) (bool, error) {
		return false, errors.New("db unreachable")
	}
	lookupErr := agentStore()
	lookupErr.getUserFn = func(ctx context.Context, userID string) (models.User, error) {
		return models.User{}, errors.New("db unreachable")
	}

	for name, st := range map[string]fakeStore{"validity": validityErr, "lookup": lookupErr} {
		req := httptest.NewRequest(http.MethodGet, "/api/auth/me", nil)
		req.AddCookie(sessionCookie(t, "user-1"))
		resp := httptest.NewRecorder()

		newTestHandler(st).Routes().ServeHTTP(resp, req)
		if resp.Code != http.StatusOK {
			t.Fatalf("%s error: expected status 200, got %d", name, resp.Code)
		}
		if body := strings.TrimSpace(resp.Body.String()); body != `{"user":null}` {
			t.Fatalf("%s error: expected null user, got %s", name, body)
		}
	}
}

func TestMeRejectsRefreshTokenCookie(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/api/auth/me", nil)
	req.AddCookie(&http.Cookie{Name: sessionCookieName, Value: issueRaw(t, "user-1", models.TokenTypeRefresh)})
	resp := httptest.NewRecorder()

	newTestHandler(agentStore()).Routes().ServeHTTP(resp, req)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", resp.Code)
	}
	if body := strings.TrimSpace(resp.Body.String()); body != `{"user":null}` {
		t.Fatalf("refresh token must not authenticate a session, got %s", body)
	}
}

func TestMeAgentProjection(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/api/auth/me", nil)
	req.AddCookie(sessionCookie(t, "user-1"))
	resp := httptest.NewRecorder()

	newTestHandler(agentStore()).Routes().ServeHTTP(resp, req)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", resp.Code)
	}

	var payload struct {
		User map[string]interface{} `json:"user"`
	}
	if err := json.Unmarshal(resp.Body.Bytes(), &payload); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if payload.User == nil {
		t.Fatalf("expected user payload, got null")
	}
	if payload.User["name"] != "Asha Rao" || payload.User["email"] != "asha@example.com" {
		t.Fatalf("unexpected projection: %v", payload.User)
	}
	if _, ok := payload.User["password_hash"]; ok {
		t.Fatalf("hashed secret must never be in the response")
	}
	perms, ok := payload.User["permissions"].(map[string]interface{})
	if !ok {
		t.Fatalf("expected permissions in user payload")
	}
	if perms["canManageUsers"] != false {
		t.Fatalf("agent must not manage users, got %v", perms["canManageUsers"])
	}
	if perms["canViewExpenses"] != true {
		t.Fatalf("agent must view expenses, got %v", perms["canViewExpenses"])
	}
}

func TestLogoutNoCookie(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/api/auth/logout", nil)
	resp := httptest.NewRecorder()

	newTestHandler(fakeStore{}).Routes().ServeHTTP(resp, req)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", resp.Code)
	}
	if body := strings.TrimSpace(resp.Body.String()); body != `{"success":true}` {
		t.Fatalf("expected success body, got %s", body)
	}
}

func TestLogoutRevokesAndClearsCookies(t *testing.T) {
	var revoked []string
	st := agentStore()
	st.revokeTokenFn = func(ctx context.Context, raw string) error {
		revoked = append(revoked, raw)
		return nil
	}

	access := sessionCookie(t, "user-1")
	refresh := &http.Cookie{Name: refreshCookieName, Value: issueRaw(t, "user-1", models.TokenTypeRefresh)}
	req := httptest.NewRequest(http.MethodPost, "/api/auth/logout", nil)
	req.AddCookie(access)
	req.AddCookie(refresh)
	resp := httptest.NewRecorder()

	newTestHandler(st).Routes().ServeHTTP(resp, req)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", resp.Code)
	}
	if len(revoked) != 2 || revoked[0] != access.Value || revoked[1] != refresh.Value {
		t.Fatalf("expected both presented tokens revoked, got %v", revoked)
	}

	cleared := map[string]bool{}
	for _, set := range resp.Result().Cookies() {
		if set.MaxAge < 0 {
			cleared[set.Name] = true
		}
	}
	if !cleared[sessionCookieName] || !cleared[refreshCookieName] {
		t.Fatalf("expected Set-Cookie clearing both session cookies, got %v", cleared)
	}
}

func TestLoginSuccessSetsCookies(t *testing.T) {
	var saved []models.TokenRecord
	st := fakeStore{
		loginFn: func(ctx context.Context, email, password string) (models.User, error) {
			return models.User{UserID: "user-1", Name: "Asha Rao", Email: email, Role: models.RoleAgent}, nil
		},
		saveTokenFn: func(ctx context.Context, record models.TokenRecord) error {
			saved = append(saved, record)
			return nil
		},
	}

	body, _ := json.Marshal(map[string]string{"email": "asha@example.com", "password": "secret"})
	req := httptest.NewRequest(http.MethodPost, "/api/auth/login", bytes.NewReader(body))
	resp := httptest.NewRecorder()

	newTestHandler(st).Routes().ServeHTTP(resp, req)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", resp.Code)
	}
	if len(saved) != 2 {
		t.Fatalf("expected access and refresh records persisted, got %d", len(saved))
	}
	if saved[0].Type != models.TokenTypeAccess || saved[1].Type != models.TokenTypeRefresh {
		t.Fatalf("unexpected record types: %s, %s", saved[0].Type, saved[1].Type)
	}
	if saved[0].UserID != "user-1" || saved[0].Token == "" {
		t.Fatalf("expected persisted access record, got %+v", saved[0])
	}

	cookies := map[string]*http.Cookie{}
	for _, set := range resp.Result().Cookies() {
		cookies[set.Name] = set
	}
	sessionSet := cookies[sessionCookieName]
	if sessionSet == nil || sessionSet.Value != saved[0].Token {
		t.Fatalf("expected session cookie carrying the issued access token")
	}
	if !sessionSet.HttpOnly {
		t.Fatalf("session cookie must be HTTP-only")
	}
	refreshSet := cookies[refreshCookieName]
	if refreshSet == nil || refreshSet.Value != saved[1].Token {
		t.Fatalf("expected refresh cookie carrying the issued refresh token")
	}
	if !refreshSet.HttpOnly {
		t.Fatalf("refresh cookie must be HTTP-only")
	}
}

func TestLoginInvalidCredentials(t *testing.T) {
	body, _ := json.Marshal(map[string]string{"email": "asha@example.com", "password": "wrong"})
	req := httptest.NewRequest(http.MethodPost, "/api/auth/login", bytes.NewReader(body))
	resp := httptest.NewRecorder()

	newTestHandler(fakeStore{}).Routes().ServeHTTP(resp, req)
	if resp.Code != http.StatusUnauthorized {
		t.Fatalf("expected status 401, got %d", resp.Code)
	}
}

func TestRegisterDuplicateEmail(t *testing.T) {
	st := fakeStore{
		createUserFn: func(ctx context.Context, input store.CreateUserInput) (models.User, error) {
			return models.User{}, store.ErrEmailTaken
		},
	}

	body, _ := json.Marshal(map[string]string{"name": "Asha", "email": "asha@example.com", "password": "secret"})
	req := httptest.NewRequest(http.MethodPost, "/api/auth/register", bytes.NewReader(body))
	resp := httptest.NewRecorder()

	newTestHandler(st).Routes().ServeHTTP(resp, req)
	if resp.Code != http.StatusConflict {
		t.Fatalf("expected status 409, got %d", resp.Code)
	}
}

func TestRegisterDefaultsToAgentRole(t *testing.T) {
	var created store.CreateUserInput
	st := fakeStore{
		createUserFn: func(ctx context.Context, input store.CreateUserInput) (models.User, error) {
			created = input
			return models.User{UserID: "user-9", Name: input.Name, Email: input.Email, Role: input.Role}, nil
		},
	}

	body, _ := json.Marshal(map[string]string{"name": "Asha", "email": "asha@example.com", "password": "secret"})
	req := httptest.NewRequest(http.MethodPost, "/api/auth/register", bytes.NewReader(body))
	resp := httptest.NewRecorder()

	newTestHandler(st).Routes().ServeHTTP(resp, req)
	if resp.Code != http.StatusCreated {
		t.Fatalf("expected status 201, got %d", resp.Code)
	}
	if created.Role != models.RoleAgent {
		t.Fatalf("expected agent role, got %q", created.Role)
	}
}

func TestRefreshIssuesNewAccessToken(t *testing.T) {
	var saved []models.TokenRecord
	st := agentStore()
	st.saveTokenFn = func(ctx context.Context, record models.TokenRecord) error {
		saved = append(saved, record)
		return nil
	}

	req := httptest.NewRequest(http.MethodPost, "/api/auth/refresh", nil)
	req.AddCookie(&http.Cookie{Name: refreshCookieName, Value: issueRaw(t, "user-1", models.TokenTypeRefresh)})
	resp := httptest.NewRecorder()

	newTestHandler(st).Routes().ServeHTTP(resp, req)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", resp.Code, resp.Body.String())
	}
	if len(saved) != 1 || saved[0].Type != models.TokenTypeAccess || saved[0].UserID != "user-1" {
		t.Fatalf("expected one persisted access record, got %+v", saved)
	}

	var sessionSet *http.Cookie
	for _, set := range resp.Result().Cookies() {
		if set.Name == sessionCookieName {
			sessionSet = set
		}
	}
	if sessionSet == nil || sessionSet.Value != saved[0].Token {
		t.Fatalf("expected session cookie carrying the new access token")
	}
}

func TestRefreshRejectsAccessToken(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/api/auth/refresh", nil)
	req.AddCookie(&http.Cookie{Name: refreshCookieName, Value: issueRaw(t, "user-1", models.TokenTypeAccess)})
	resp := httptest.NewRecorder()

	newTestHandler(agentStore()).Routes().ServeHTTP(resp, req)
	if resp.Code != http.StatusUnauthorized {
		t.Fatalf("expected status 401, got %d", resp.Code)
	}
}

func TestRefreshRejectsRevokedToken(t *testing.T) {
	st := agentStore()
	st.isTokenValidFn = func(ctx context.Context, raw string) (bool, error) {
		return false, nil
	}

	req := httptest.NewRequest(http.MethodPost, "/api/auth/refresh", nil)
	req.AddCookie(&http.Cookie{Name: refreshCookieName, Value: issueRaw(t, "user-1", models.TokenTypeRefresh)})
	resp := httptest.NewRecorder()

	newTestHandler(st).Routes().ServeHTTP(resp, req)
	if resp.Code != http.StatusUnauthorized {
		t.Fatalf("expected status 401, got %d", resp.Code)
	}
}

func TestRegisterRoleAssignmentRequiresAdmin(t *testing.T) {
	body, _ := json.Marshal(map[string]string{"name": "Eve", "email": "eve@example.com", "password": "secret", "role": "admin"})
	req := httptest.NewRequest(http.MethodPost, "/api/auth/register", bytes.NewReader(body))
	req.AddCookie(sessionCookie(t, "user-1"))
	resp := httptest.NewRecorder()

	newTestHandler(agentStore()).Routes().ServeHTTP(resp, req)
	if resp.Code != http.StatusForbidden {
		t.Fatalf("expected status 403, got %d", resp.Code)
	}
}
