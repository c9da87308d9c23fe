// Package token verifies the bearer tokens sent to the JSON API.
package token

import (
	"context"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	apperrors "github.com/jrsteele09/campus-market/internal/errors"
)

// Claims are the verified facts about a bearer token.
type Claims struct {
	Subject   string    `json:"sub"`
	Email     string    `json:"email,omitempty"`
	Role      string    `json:"role,omitempty"`
	ID        string    `json:"jti,omitempty"`
	ExpiresAt time.Time `json:"exp"`
}

// Verifier checks a raw access token and returns its claims. Invalid tokens
// yield errors wrapping errors.ErrInvalidToken or errors.ErrTokenExpired.
type Verifier interface {
	Verify(ctx context.Context, rawToken string) (*Claims, error)
}

// BearerToken extracts the token from an Authorization header value.
func BearerToken(header string) (string, bool) {
	scheme, raw, ok := strings.Cut(strings.TrimSpace(header), " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	raw = strings.TrimSpace(raw)
	return raw, raw != ""
}

func claimsFromMap(m jwt.MapClaims) (*Claims, error) {
	sub, _ := m.GetSubject()
	if sub == "" {
		return nil, apperrors.Wrapf(apperrors.ErrInvalidToken, "token has no subject")
	}
	c := &Claims{Subject: sub}
	c.Email, _ = m["email"].(string)
	c.Role, _ = m["role"].(string)
	c.ID, _ = m["jti"].(string)
	if exp, err := m.GetExpirationTime(); err == nil && exp != nil {
		c.ExpiresAt = exp.Time
	}
	return c, nil
}

// classify maps jwt library failures onto the token sentinels.
func classify(err error) error {
	if apperrors.Is(err, jwt.ErrTokenExpired) {
		return apperrors.Wrapf(apperrors.ErrTokenExpired, "%v", err)
	}
	return apperrors.Wrapf(apperrors.ErrInvalidToken, "%v", err)
}
