package server

import (
	"context"
	"net/http"

	apperrors "github.com/jrsteele09/campus-market/internal/errors"
	"github.com/jrsteele09/campus-market/token"
	"github.com/rs/zerolog/log"
)

// ContextKey is a custom type for context keys to avoid collisions
type ContextKey string

const (
	// ContextKeyClaims stores the verified access token claims
	ContextKeyClaims ContextKey = "claims"
)

// RequireAuth is middleware that validates a Bearer access token
// Used for API routes that expect the provider's access token in the Authorization header
func (s *Server) RequireAuth() func(http.HandlerFunc) http.HandlerFunc {
	return func(next http.HandlerFunc) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			raw, ok := token.BearerToken(r.Header.Get("Authorization"))
			if !ok {
				writeError(w, http.StatusUnauthorized, "Authentication required")
				return
			}

			claims, err := s.verifier.Verify(r.Context(), raw)
			switch {
			case err == nil:
			case apperrors.Is(err, apperrors.ErrTokenExpired):
				writeError(w, http.StatusUnauthorized, "Token expired")
				return
			case apperrors.Is(err, apperrors.ErrInvalidToken):
				writeError(w, http.StatusUnauthorized, "Invalid token")
				return
			default:
				log.Err(err).Msg("token verification failed")
				writeError(w, http.StatusUnauthorized, "Unable to verify token")
				return
			}

			ctx := context.WithValue(r.Context(), ContextKeyClaims, claims)
			next(w, r.WithContext(ctx))
		}
	}
}

// ClaimsFromContext returns the claims stored by RequireAuth.
func ClaimsFromContext(ctx context.Context) (*token.Claims, bool) {
	claims, ok := ctx.Value(ContextKeyClaims).(*token.Claims)
	return claims, ok && claims != nil
}
