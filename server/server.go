package server

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/go-chi/cors"
	gsessions "github.com/gorilla/sessions"
	"github.com/jrsteele09/campus-market/identity"
	"github.com/jrsteele09/campus-market/internal/config"
	"github.com/jrsteele09/campus-market/listings"
	"github.com/jrsteele09/campus-market/onboarding"
	"github.com/jrsteele09/campus-market/profiles"
	"github.com/jrsteele09/campus-market/server/loginsession"
	"github.com/jrsteele09/campus-market/storage"
	"github.com/jrsteele09/campus-market/throttle"
	"github.com/jrsteele09/campus-market/token"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

// ProviderFactory returns a fresh identity provider client for one browser.
type ProviderFactory func() (identity.Provider, error)

// TokenRevoker invalidates an access token before it expires.
type TokenRevoker interface {
	Revoke(ctx context.Context, rawToken string) error
}

// Dependencies are the collaborators of the HTTP server. Revoker and Uploads
// are optional.
type Dependencies struct {
	Providers     ProviderFactory
	Limiter       throttle.Limiter
	Profiles      profiles.Repo
	Listings      *listings.Service
	Verifier      token.Verifier
	Revoker       TokenRevoker
	LoginSessions loginsession.Repo
	CookieStore   gsessions.Store
	Uploads       *storage.MemoryStore
}

type Server struct {
	env           string // Environment (e.g., "DEV", "PROD")
	mux           *http.ServeMux
	routes        []string
	config        config.Config
	providers     ProviderFactory
	limiter       throttle.Limiter
	profiles      profiles.Repo
	gate          *onboarding.Gate
	listings      *listings.Service
	verifier      token.Verifier
	revoker       TokenRevoker
	loginSessions loginsession.Repo
	cookies       gsessions.Store
	uploads       *storage.MemoryStore
	cors          *cors.Cors
}

func New(config config.Config, deps Dependencies) (*Server, error) {
	if config == nil {
		return nil, errors.New("[server.New] config is required")
	}
	switch {
	case deps.Providers == nil:
		return nil, errors.New("[server.New] provider factory is required")
	case deps.Limiter == nil:
		return nil, errors.New("[server.New] limiter is required")
	case deps.Profiles == nil:
		return nil, errors.New("[server.New] profile repo is required")
	case deps.Listings == nil:
		return nil, errors.New("[server.New] listings service is required")
	case deps.Verifier == nil:
		return nil, errors.New("[server.New] token verifier is required")
	case deps.LoginSessions == nil:
		return nil, errors.New("[server.New] login session repo is required")
	case deps.CookieStore == nil:
		return nil, errors.New("[server.New] cookie store is required")
	}

	gate, err := onboarding.NewGate(deps.Profiles)
	if err != nil {
		return nil, fmt.Errorf("[server.New] failed to create onboarding gate: %w", err)
	}

	s := &Server{
		env:           config.GetEnv(),
		mux:           http.NewServeMux(),
		config:        config,
		providers:     deps.Providers,
		limiter:       deps.Limiter,
		profiles:      deps.Profiles,
		gate:          gate,
		listings:      deps.Listings,
		verifier:      deps.Verifier,
		revoker:       deps.Revoker,
		loginSessions: deps.LoginSessions,
		cookies:       deps.CookieStore,
		uploads:       deps.Uploads,
		cors: cors.New(cors.Options{
			AllowedOrigins:   config.GetAllowedOrigins().List(),
			AllowedMethods:   config.GetAllowedMethods(),
			AllowedHeaders:   config.GetAllowedHeaders(),
			AllowCredentials: true,
			MaxAge:           300,
		}),
	}

	s.initRoutes()
	s.logRoutes()

	return s, nil
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

func (s *Server) RegisterRouteHandler(pattern string, handler http.Handler) {
	s.routes = append(s.routes, pattern)
	s.mux.Handle(pattern, handler)
}

func (s *Server) RegisterRouteFunc(pattern string, handler func(http.ResponseWriter, *http.Request)) {
	s.routes = append(s.routes, pattern)
	s.mux.HandleFunc(pattern, handler)
}

func (s *Server) logRoutes() {
	if s.env != "DEV" {
		return // Skip logging in non-development environments
	}
	for _, route := range s.routes {
		parts := strings.SplitN(route, " ", 2)

		if len(parts) > 1 {
			logRoute(parts[0], parts[1])
		} else {
			logRoute("", parts[0])
		}
	}
}

func logRoute(method, path string) {
	log.Info().Msgf("[%-19s] %s", colouredMethod(method), path)
}

func logError(method, path, error string) {
	log.Error().Msgf("[%-19s] %s %s", colouredMethod(method), path, Red+error+ResetColor)
}

func colouredMethod(method string) string {
	paddedMethod := fmt.Sprintf(" %-7s", method)
	if color, ok := methodColors[method]; ok {
		return color + paddedMethod + ResetColor
	}
	return Gray + paddedMethod + ResetColor
}

// Helper function to determine the scheme (http/https)
func getScheme(r *http.Request) string {
	if r.TLS != nil {
		return "https"
	}
	if scheme := r.Header.Get("X-Forwarded-Proto"); scheme != "" {
		return scheme
	}
	return "http"
}
