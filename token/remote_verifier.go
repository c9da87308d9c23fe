package token

import (
	"context"
	"net/http"

	"github.com/golang-jwt/jwt/v5"
	"github.com/jrsteele09/campus-market/identity"
	apperrors "github.com/jrsteele09/campus-market/internal/errors"
	"github.com/pkg/errors"
)

var _ Verifier = (*RemoteVerifier)(nil)

// RemoteVerifier asks the identity provider who owns a token. It is used when
// no signing secret or key set is configured; the introspector is built with
// the server-only service role key.
type RemoteVerifier struct {
	introspector identity.TokenIntrospector
}

func NewRemoteVerifier(introspector identity.TokenIntrospector) (*RemoteVerifier, error) {
	if introspector == nil {
		return nil, errors.New("[NewRemoteVerifier] introspector is required")
	}
	return &RemoteVerifier{introspector: introspector}, nil
}

func (v *RemoteVerifier) Verify(ctx context.Context, rawToken string) (*Claims, error) {
	// the provider checks the signature; the payload is only read for jti and exp
	parsed, _, err := jwt.NewParser().ParseUnverified(rawToken, jwt.MapClaims{})
	if err != nil {
		return nil, classify(err)
	}

	user, err := v.introspector.GetUser(ctx, rawToken)
	if err != nil {
		var providerErr *identity.Error
		if errors.As(err, &providerErr) && (providerErr.Status == http.StatusUnauthorized || providerErr.Status == http.StatusForbidden || providerErr.Status == http.StatusNotFound) {
			return nil, apperrors.Wrapf(apperrors.ErrInvalidToken, "%v", err)
		}
		return nil, errors.Wrap(err, "[RemoteVerifier.Verify] get user")
	}

	claims := &Claims{Subject: user.ID, Email: user.Email, Role: user.Role}
	if mc, ok := parsed.Claims.(jwt.MapClaims); ok {
		claims.ID, _ = mc["jti"].(string)
		if exp, err := mc.GetExpirationTime(); err == nil && exp != nil {
			claims.ExpiresAt = exp.Time
		}
	}
	return claims, nil
}
