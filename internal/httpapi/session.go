package httpapi

import (
	"context"
	"net/http"
	"time"

	"estatedesk/crm-service/internal/models"
	"estatedesk/crm-service/internal/permissions"
)

const (
	sessionCookieName = "token"
	refreshCookieName = "refresh_token"
)

type identityContextKey struct{}

type identity struct {
	User  models.User
	Perms permissions.Set
}

// resolveIdentity resolves the caller from the session cookie. All failure
// modes collapse to anonymous.
func (h *Handler) resolveIdentity(r *http.Request) (identity, bool) {
	cookie, err := r.Cookie(sessionCookieName)
	if err != nil || cookie.Value == "" {
		return identity{}, false
	}

	claims, err := h.tokens.Verify(cookie.Value)
	if err != nil || claims.Type != models.TokenTypeAccess {
		return identity{}, false
	}

	valid, err := h.store.IsTokenValid(r.Context(), cookie.Value)
	if err != nil || !valid {
		return identity{}, false
	}

	user, err := h.store.GetUser(r.Context(), claims.UserID)
	if err != nil {
		return identity{}, false
	}

	return identity{User: user, Perms: permissions.ForRole(user.Role)}, true
}

// sessionMiddleware guards the CRM routes. Auth endpoints resolve the
// session themselves.
func (h *Handler) sessionMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if isPublicEndpoint(r) {
			next.ServeHTTP(w, r)
			return
		}

		ident, ok := h.resolveIdentity(r)
		if !ok {
			writeError(w, http.StatusUnauthorized, "unauthorized", "authentication required")
			return
		}

		ctx := context.WithValue(r.Context(), identityContextKey{}, ident)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func identityFromContext(ctx context.Context) (identity, bool) {
	value := ctx.Value(identityContextKey{})
	if value == nil {
		return identity{}, false
	}
	ident, ok := value.(identity)
	if !ok {
		return identity{}, false
	}
	return ident, true
}

func requireIdentity(w http.ResponseWriter, r *http.Request) (identity, bool) {
	ident, ok := identityFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized", "authentication required")
		return identity{}, false
	}
	return ident, true
}

func isPublicEndpoint(r *http.Request) bool {
	switch r.URL.Path {
	case "/healthz":
		return true
	case "/api/auth/register", "/api/auth/login", "/api/auth/refresh", "/api/auth/logout", "/api/auth/me":
		return true
	default:
		return r.Method == http.MethodOptions
	}
}

func setSessionCookie(w http.ResponseWriter, raw string, expiresAt time.Time) {
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookieName,
		Value:    raw,
		Path:     "/",
		Expires:  expiresAt,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
}

func setRefreshCookie(w http.ResponseWriter, raw string, expiresAt time.Time) {
	http.SetCookie(w, &http.Cookie{
		Name:     refreshCookieName,
		Value:    raw,
		Path:     "/",
		Expires:  expiresAt,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
}

func clearSessionCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	http.SetCookie(w, &http.Cookie{
		Name:     refreshCookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
}
