package token

import (
	"errors"
	"testing"
	"time"

	"estatedesk/crm-service/internal/models"

	"github.com/stretchr/testify/require"
)

func TestIssueAndVerify(t *testing.T) {
	t.Parallel()

	svc := NewService([]byte("super-secret"), time.Hour, 24*time.Hour)

	raw, expiresAt, err := svc.Issue("user-1", models.TokenTypeAccess)
	require.NoError(t, err)
	require.True(t, expiresAt.After(time.Now()))

	claims, err := svc.Verify(raw)
	require.NoError(t, err)
	require.Equal(t, "user-1", claims.UserID)
	require.Equal(t, models.TokenTypeAccess, claims.Type)
}

func TestIssueBackToBackTokensDiffer(t *testing.T) {
	t.Parallel()

	svc := NewService([]byte("super-secret"), time.Hour, 24*time.Hour)

	first, _, err := svc.Issue("user-1", models.TokenTypeAccess)
	require.NoError(t, err)
	second, _, err := svc.Issue("user-1", models.TokenTypeAccess)
	require.NoError(t, err)
	require.NotEqual(t, first, second, "same-second logins must not collide on the tokens primary key")
}

func TestVerifyExpired(t *testing.T) {
	t.Parallel()

	svc := NewService([]byte("secret"), -time.Minute, 24*time.Hour)
	raw, _, err := svc.Issue("user-1", models.TokenTypeAccess)
	require.NoError(t, err)

	_, err = svc.Verify(raw)
	require.True(t, errors.Is(err, ErrExpired), "got %v", err)
}

func TestVerifyWrongSecret(t *testing.T) {
	t.Parallel()

	issuer := NewService([]byte("right-secret"), time.Hour, 24*time.Hour)
	raw, _, err := issuer.Issue("user-2", models.TokenTypeAccess)
	require.NoError(t, err)

	verifier := NewService([]byte("wrong-secret"), time.Hour, 24*time.Hour)
	_, err = verifier.Verify(raw)
	require.True(t, errors.Is(err, ErrInvalidSignature), "got %v", err)
}

func TestVerifyMalformed(t *testing.T) {
	t.Parallel()

	svc := NewService([]byte("k"), time.Hour, 24*time.Hour)
	for _, raw := range []string{"", "not-a-jwt", "a.b.c"} {
		_, err := svc.Verify(raw)
		require.True(t, errors.Is(err, ErrMalformed), "raw %q: got %v", raw, err)
	}
}

func TestRefreshTokenUsesRefreshTTL(t *testing.T) {
	t.Parallel()

	svc := NewService([]byte("secret"), time.Minute, 10*time.Hour)
	_, accessExp, err := svc.Issue("user-3", models.TokenTypeAccess)
	require.NoError(t, err)
	_, refreshExp, err := svc.Issue("user-3", models.TokenTypeRefresh)
	require.NoError(t, err)
	require.True(t, refreshExp.After(accessExp.Add(9*time.Hour)))
}
