package server

import (
	"context"
	"net/http"

	"github.com/google/uuid"
	gsessions "github.com/gorilla/sessions"
	"github.com/jrsteele09/campus-market/auth"
	"github.com/jrsteele09/campus-market/onboarding"
	"github.com/jrsteele09/campus-market/server/loginsession"
	"github.com/jrsteele09/campus-market/sessions"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

const (
	// SessionCookieName is the signed cookie that carries the browser session id
	SessionCookieName = "campus_market_session"
	sessionIDKey      = "sid"
)

// NewCookieStore builds the signed cookie store used for browser sessions.
func NewCookieStore(secret string, maxAgeSeconds int, secure bool) *gsessions.CookieStore {
	store := gsessions.NewCookieStore([]byte(secret))
	store.Options = &gsessions.Options{
		Path:     "/",
		MaxAge:   maxAgeSeconds,
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
	}
	return store
}

func (s *Server) browserSessionID(r *http.Request) string {
	cookie, err := s.cookies.Get(r, SessionCookieName)
	if err != nil || cookie == nil {
		return ""
	}
	id, _ := cookie.Values[sessionIDKey].(string)
	return id
}

// currentOrchestrator returns the orchestrator of the calling browser, or nil
// when the browser has no live session.
func (s *Server) currentOrchestrator(r *http.Request) *auth.Orchestrator {
	id := s.browserSessionID(r)
	if id == "" {
		return nil
	}
	session, err := s.loginSessions.Get(id)
	if err != nil {
		return nil
	}
	return session.Orchestrator
}

// ensureOrchestrator returns the browser's orchestrator, creating and
// initialising a new one with its own provider client when needed.
func (s *Server) ensureOrchestrator(w http.ResponseWriter, r *http.Request) (*auth.Orchestrator, error) {
	if o := s.currentOrchestrator(r); o != nil {
		return o, nil
	}

	provider, err := s.providers()
	if err != nil {
		return nil, errors.Wrap(err, "[Server.ensureOrchestrator] create provider")
	}
	adapter, err := sessions.NewAdapter(provider)
	if err != nil {
		return nil, errors.Wrap(err, "[Server.ensureOrchestrator] create session adapter")
	}
	o, err := auth.NewOrchestrator(
		auth.Dependencies{Sessions: adapter, Limiter: s.limiter, Profiles: s.profiles},
		auth.WithBaseURL(s.config.GetBaseURL()),
		auth.WithSessionInitTimeout(s.config.GetSessionInitTimeout()),
	)
	if err != nil {
		return nil, errors.Wrap(err, "[Server.ensureOrchestrator] create orchestrator")
	}
	o.Init(r.Context())
	s.followOnboarding(o)

	id := uuid.NewString()
	if err := s.loginSessions.Upsert(id, &loginsession.Session{Orchestrator: o}); err != nil {
		o.Close()
		return nil, errors.Wrap(err, "[Server.ensureOrchestrator] store session")
	}

	// a cookie that fails to decode still yields a fresh session
	cookie, _ := s.cookies.Get(r, SessionCookieName)
	if cookie == nil {
		_ = s.loginSessions.Delete(id)
		return nil, errors.New("[Server.ensureOrchestrator] cookie store returned no session")
	}
	cookie.Values[sessionIDKey] = id
	if err := cookie.Save(r, w); err != nil {
		_ = s.loginSessions.Delete(id)
		return nil, errors.Wrap(err, "[Server.ensureOrchestrator] save cookie")
	}
	return o, nil
}

// followOnboarding re-runs the onboarding gate on every identity change of o
// until o is closed.
func (s *Server) followOnboarding(o *auth.Orchestrator) {
	states, unsubscribe := o.Subscribe()
	go func() {
		defer unsubscribe()
		s.gate.Follow(context.Background(), states, func(decision onboarding.Decision) {
			onboardingDecisions.WithLabelValues(string(decision.State)).Inc()
			log.Debug().Str("user_id", decision.UserID).Str("state", string(decision.State)).Msg("onboarding decision")
		})
	}()
}

// endBrowserSession drops the orchestrator and expires the cookie.
func (s *Server) endBrowserSession(w http.ResponseWriter, r *http.Request) {
	if id := s.browserSessionID(r); id != "" {
		if err := s.loginSessions.Delete(id); err != nil {
			log.Err(err).Msg("failed to delete browser session")
		}
	}

	cookie, _ := s.cookies.Get(r, SessionCookieName)
	if cookie == nil {
		return
	}
	delete(cookie.Values, sessionIDKey)
	if cookie.Options == nil {
		cookie.Options = &gsessions.Options{Path: "/"}
	}
	cookie.Options.MaxAge = -1
	if err := cookie.Save(r, w); err != nil {
		log.Err(err).Msg("failed to expire session cookie")
	}
}
