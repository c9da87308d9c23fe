package token

import (
	"context"
	"strings"
	"time"

	"github.com/coreos/go-oidc/v3/oidc"
	"github.com/golang-jwt/jwt/v5"
	"github.com/pkg/errors"
)

const jwksPath = "/.well-known/jwks.json"

var _ Verifier = (*JWKSVerifier)(nil)

// JWKSVerifier checks asymmetrically signed tokens against the provider's
// published key set. Keys are fetched on demand and cached by go-oidc.
type JWKSVerifier struct {
	verifier *oidc.IDTokenVerifier
}

// NewJWKSVerifier fetches keys from issuer's well-known JWKS document. An empty
// audience skips the aud check.
func NewJWKSVerifier(ctx context.Context, issuer, audience string) (*JWKSVerifier, error) {
	if issuer == "" {
		return nil, errors.New("[NewJWKSVerifier] issuer is required")
	}
	keySet := oidc.NewRemoteKeySet(ctx, strings.TrimRight(issuer, "/")+jwksPath)
	return newJWKSVerifier(keySet, issuer, audience, time.Now), nil
}

func newJWKSVerifier(keySet oidc.KeySet, issuer, audience string, nowTime func() time.Time) *JWKSVerifier {
	return &JWKSVerifier{
		verifier: oidc.NewVerifier(issuer, keySet, &oidc.Config{
			ClientID:             audience,
			SkipClientIDCheck:    audience == "",
			SupportedSigningAlgs: []string{oidc.RS256, oidc.ES256},
			Now:                  nowTime,
		}),
	}
}

func (v *JWKSVerifier) Verify(ctx context.Context, rawToken string) (*Claims, error) {
	idToken, err := v.verifier.Verify(ctx, rawToken)
	if err != nil {
		var expired *oidc.TokenExpiredError
		if errors.As(err, &expired) {
			return nil, classify(jwt.ErrTokenExpired)
		}
		return nil, classify(err)
	}

	var claims jwt.MapClaims
	if err := idToken.Claims(&claims); err != nil {
		return nil, classify(err)
	}
	return claimsFromMap(claims)
}
