// Package token issues and verifies the signed session tokens carried in the
// `token` cookie. Verification is a pure cryptographic/structural check; the
// persisted validity flag lives in the store and is consulted separately.
package token

import (
	"errors"
	"time"

	"estatedesk/crm-service/internal/models"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

var (
	ErrMalformed        = errors.New("token malformed")
	ErrInvalidSignature = errors.New("token signature invalid")
	ErrExpired          = errors.New("token expired")
)

type Claims struct {
	jwt.RegisteredClaims
	UserID string `json:"uid"`
	Type   string `json:"typ"`
}

type Service struct {
	secret     []byte
	accessTTL  time.Duration
	refreshTTL time.Duration
}

func NewService(secret []byte, accessTTL, refreshTTL time.Duration) *Service {
	return &Service{secret: secret, accessTTL: accessTTL, refreshTTL: refreshTTL}
}

// Issue signs a token of the given kind for the user and returns the raw
// string together with its expiry.
func (s *Service) Issue(userID, kind string) (string, time.Time, error) {
	ttl := s.accessTTL
	if kind == models.TokenTypeRefresh {
		ttl = s.refreshTTL
	}
	now := time.Now().UTC()
	expiresAt := now.Add(ttl)

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
		UserID: userID,
		Type:   kind,
	})

	raw, err := token.SignedString(s.secret)
	if err != nil {
		return "", time.Time{}, err
	}
	return raw, expiresAt, nil
}

// Verify checks the signature, structure, and expiry of a raw token. It never
// consults the database.
func (s *Service) Verify(raw string) (Claims, error) {
	claims := Claims{}
	parsed, err := jwt.ParseWithClaims(raw, &claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrSignatureInvalid
		}
		return s.secret, nil
	})
	if err != nil {
		switch {
		case errors.Is(err, jwt.ErrTokenExpired):
			return Claims{}, ErrExpired
		case errors.Is(err, jwt.ErrTokenSignatureInvalid):
			return Claims{}, ErrInvalidSignature
		default:
			return Claims{}, ErrMalformed
		}
	}
	if !parsed.Valid || claims.UserID == "" {
		return Claims{}, ErrMalformed
	}
	return claims, nil
}
