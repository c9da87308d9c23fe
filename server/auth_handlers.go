package server

import (
	"context"
	"net/http"
	"time"

	"github.com/jrsteele09/campus-market/auth"
	apperrors "github.com/jrsteele09/campus-market/internal/errors"
	"github.com/jrsteele09/campus-market/onboarding"
	"github.com/jrsteele09/campus-market/users"
	"github.com/rs/zerolog/log"
)

// PasswordUpdatePagePath is the page the recovery link lands on once the
// recovery session is established.
const PasswordUpdatePagePath = "/update-password"

type credentialsRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	FullName string `json:"full_name,omitempty"`
}

type emailRequest struct {
	Email string `json:"email"`
}

type passwordRequest struct {
	Password string `json:"password"`
}

// authView is what the browser learns about its session. The access token is
// the one the browser presents to the bearer protected API.
type authView struct {
	User        *users.User          `json:"user"`
	AccessToken string               `json:"access_token,omitempty"`
	ExpiresAt   *time.Time           `json:"expires_at,omitempty"`
	Initialized bool                 `json:"initialized"`
	Error       *apperrors.AuthError `json:"error,omitempty"`
	Onboarding  *onboarding.Decision `json:"onboarding,omitempty"`
}

func newAuthView(state auth.State) authView {
	view := authView{
		User:        state.User,
		Initialized: state.Initialized,
		Error:       state.Error,
	}
	if state.Session != nil {
		view.AccessToken = state.Session.AccessToken
		view.ExpiresAt = state.Session.ExpiresAt
	}
	return view
}

// signUpView is the sign up result plus, when a session was issued, where
// onboarding sends the new user.
type signUpView struct {
	auth.SignUpResult
	Onboarding *onboarding.Decision `json:"onboarding,omitempty"`
}

// decideOnboarding runs the gate for user. A failed check is logged and still
// returned so the caller sees the checking state.
func (s *Server) decideOnboarding(ctx context.Context, user *users.User) *onboarding.Decision {
	if user == nil {
		return nil
	}
	decision, err := s.gate.Decide(ctx, user)
	if err != nil {
		log.Err(err).Str("user_id", user.ID).Msg("onboarding check failed")
	}
	return &decision
}

func (s *Server) LoginHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req credentialsRequest
		if err := decodeJSON(w, r, &req); err != nil {
			writeError(w, http.StatusBadRequest, "Invalid request body")
			return
		}

		o, err := s.ensureOrchestrator(w, r)
		if err != nil {
			log.Err(err).Msg("failed to start browser session")
			writeError(w, http.StatusInternalServerError, "Failed to start session")
			return
		}

		if err := o.Login(r.Context(), req.Email, req.Password); err != nil {
			writeAuthError(w, err)
			return
		}
		view := newAuthView(o.State())
		view.Onboarding = s.decideOnboarding(r.Context(), view.User)
		writeJSON(w, http.StatusOK, view)
	}
}

func (s *Server) SignupHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req credentialsRequest
		if err := decodeJSON(w, r, &req); err != nil {
			writeError(w, http.StatusBadRequest, "Invalid request body")
			return
		}

		o, err := s.ensureOrchestrator(w, r)
		if err != nil {
			log.Err(err).Msg("failed to start browser session")
			writeError(w, http.StatusInternalServerError, "Failed to start session")
			return
		}

		result, err := o.SignUp(r.Context(), req.Email, req.Password, req.FullName)
		if err != nil {
			writeAuthError(w, err)
			return
		}
		view := signUpView{SignUpResult: result}
		if !result.ConfirmationRequired {
			view.Onboarding = s.decideOnboarding(r.Context(), o.State().User)
		}
		writeJSON(w, http.StatusCreated, view)
	}
}

// LogoutHandler signs the browser out, revokes its access token and drops
// the browser session even when the provider call fails.
func (s *Server) LogoutHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		o := s.currentOrchestrator(r)
		if o == nil {
			s.endBrowserSession(w, r)
			writeJSON(w, http.StatusOK, authView{Initialized: true})
			return
		}

		state := o.State()
		logoutErr := o.Logout(r.Context())
		if state.Session != nil && s.revoker != nil {
			if err := s.revoker.Revoke(r.Context(), state.Session.AccessToken); err != nil {
				log.Err(err).Msg("failed to revoke access token")
			}
		}
		s.endBrowserSession(w, r)

		if logoutErr != nil {
			writeAuthError(w, logoutErr)
			return
		}
		writeJSON(w, http.StatusOK, authView{Initialized: true})
	}
}

func (s *Server) ResetPasswordHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req emailRequest
		if err := decodeJSON(w, r, &req); err != nil {
			writeError(w, http.StatusBadRequest, "Invalid request body")
			return
		}

		o, err := s.ensureOrchestrator(w, r)
		if err != nil {
			log.Err(err).Msg("failed to start browser session")
			writeError(w, http.StatusInternalServerError, "Failed to start session")
			return
		}

		if err := o.ResetPassword(r.Context(), req.Email); err != nil {
			writeAuthError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"message": "Check your email for a password reset link"})
	}
}

// RecoveryLinkHandler is where the password reset email lands. The code in
// the link establishes the recovery session used by UpdatePasswordHandler.
func (s *Server) RecoveryLinkHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if desc := r.URL.Query().Get("error_description"); desc != "" {
			redirectWithError(w, r, onboarding.LoginPath, desc)
			return
		}

		o, err := s.ensureOrchestrator(w, r)
		if err != nil {
			log.Err(err).Msg("failed to start browser session")
			redirectWithError(w, r, onboarding.LoginPath, "Failed to start session")
			return
		}

		if err := o.CompleteOAuth(r.Context(), r.URL.Query().Get("code")); err != nil {
			redirectWithError(w, r, onboarding.LoginPath, apperrors.Classify(err).Message)
			return
		}
		http.Redirect(w, r, PasswordUpdatePagePath, http.StatusSeeOther)
	}
}

func (s *Server) UpdatePasswordHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req passwordRequest
		if err := decodeJSON(w, r, &req); err != nil {
			writeError(w, http.StatusBadRequest, "Invalid request body")
			return
		}

		o := s.currentOrchestrator(r)
		if o == nil || !o.State().Authenticated() {
			writeError(w, http.StatusUnauthorized, "You must be signed in to update your password")
			return
		}

		if err := o.UpdatePassword(r.Context(), req.Password); err != nil {
			writeAuthError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, newAuthView(o.State()))
	}
}

// GoogleSignInHandler redirects the browser to the provider's Google consent page.
func (s *Server) GoogleSignInHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		o, err := s.ensureOrchestrator(w, r)
		if err != nil {
			log.Err(err).Msg("failed to start browser session")
			redirectWithError(w, r, onboarding.LoginPath, "Failed to start session")
			return
		}

		redirectURL, err := o.SignInWithGoogle(r.Context())
		if err != nil {
			redirectWithError(w, r, onboarding.LoginPath, apperrors.Classify(err).Message)
			return
		}
		http.Redirect(w, r, redirectURL, http.StatusFound)
	}
}

// OAuthCallbackHandler completes OAuth and email confirmation links, then
// sends the browser wherever the onboarding gate decides.
func (s *Server) OAuthCallbackHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if desc := r.URL.Query().Get("error_description"); desc != "" {
			redirectWithError(w, r, onboarding.LoginPath, desc)
			return
		}

		o, err := s.ensureOrchestrator(w, r)
		if err != nil {
			log.Err(err).Msg("failed to start browser session")
			redirectWithError(w, r, onboarding.LoginPath, "Failed to start session")
			return
		}

		if err := o.CompleteOAuth(r.Context(), r.URL.Query().Get("code")); err != nil {
			redirectWithError(w, r, onboarding.LoginPath, apperrors.Classify(err).Message)
			return
		}

		decision, err := s.gate.Decide(r.Context(), o.State().User)
		if err != nil {
			log.Err(err).Str("user_id", decision.UserID).Msg("onboarding check failed after sign in")
			http.Redirect(w, r, onboarding.HomePath, http.StatusSeeOther)
			return
		}
		http.Redirect(w, r, decision.Redirect, http.StatusSeeOther)
	}
}

// MeHandler reports the browser's auth state and, when signed in, where
// onboarding would send the user.
func (s *Server) MeHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		o := s.currentOrchestrator(r)
		if o == nil {
			writeJSON(w, http.StatusOK, authView{Initialized: true})
			return
		}

		view := newAuthView(o.State())
		view.Onboarding = s.decideOnboarding(r.Context(), view.User)
		writeJSON(w, http.StatusOK, view)
	}
}
