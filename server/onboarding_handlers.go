package server

import (
	"net/http"

	"github.com/jrsteele09/campus-market/onboarding"
	"github.com/jrsteele09/campus-market/profiles"
	"github.com/jrsteele09/campus-market/users"
	"github.com/rs/zerolog/log"
)

type onboardingView struct {
	onboarding.Result
	User     *users.User `json:"user,omitempty"`
	Redirect string      `json:"redirect,omitempty"`
}

// onboardingStatus is the gate decision plus the stored profile, if any.
type onboardingStatus struct {
	onboarding.Decision
	Profile *profiles.Profile `json:"profile,omitempty"`
}

func (s *Server) OnboardingStatusHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var user *users.User
		if o := s.currentOrchestrator(r); o != nil {
			user = o.State().User
		}

		decision, err := s.gate.Decide(r.Context(), user)
		if err != nil {
			log.Err(err).Str("user_id", decision.UserID).Msg("onboarding check failed")
			writeError(w, http.StatusInternalServerError, "Failed to check onboarding status")
			return
		}
		status := onboardingStatus{Decision: decision}
		if user != nil {
			profile, err := s.gate.GetUserProfile(r.Context(), user.ID)
			if err != nil {
				log.Err(err).Str("user_id", user.ID).Msg("failed to read profile")
				writeError(w, http.StatusInternalServerError, "Failed to check onboarding status")
				return
			}
			status.Profile = profile
		}
		writeJSON(w, http.StatusOK, status)
	}
}

// CompleteOnboardingHandler saves the onboarding form and merges the stored
// profile into the browser's user.
func (s *Server) CompleteOnboardingHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		o := s.currentOrchestrator(r)
		if o == nil || !o.State().Authenticated() {
			writeError(w, http.StatusUnauthorized, "You must be signed in to complete onboarding")
			return
		}

		var fields onboarding.Fields
		if err := decodeJSON(w, r, &fields); err != nil {
			writeError(w, http.StatusBadRequest, "Invalid request body")
			return
		}

		result, profile := s.gate.CompleteOnboarding(r.Context(), o.State().User.ID, fields)
		if !result.Success {
			status := http.StatusBadRequest
			if result.Error == onboarding.SaveFailedMsg {
				status = http.StatusInternalServerError
			}
			writeError(w, status, result.Error)
			return
		}

		o.ApplyProfile(profile)
		writeJSON(w, http.StatusOK, onboardingView{
			Result:   result,
			User:     o.State().User,
			Redirect: onboarding.HomePath,
		})
	}
}
