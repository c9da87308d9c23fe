// Package onboarding decides whether a signed in user must finish profile
// setup before using the marketplace. The persisted profile row is the only
// source of truth; flags cached on the user are ignored.
package onboarding

import (
	"context"
	"strings"

	"github.com/jrsteele09/campus-market/auth"
	apperrors "github.com/jrsteele09/campus-market/internal/errors"
	"github.com/jrsteele09/campus-market/profiles"
	"github.com/jrsteele09/campus-market/users"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

const SaveFailedMsg = "Failed to save your profile. Please try again."

const (
	OnboardingPath = "/onboarding"
	HomePath       = "/"
	LoginPath      = "/login"
)

// State is a node of the onboarding state machine.
type State string

const (
	StateUnauthenticated    State = "unauthenticated"
	StateCheckingOnboarding State = "checking_onboarding"
	StateIncomplete         State = "incomplete"
	StateComplete           State = "complete"
)

// Decision is where the user should be sent next.
type Decision struct {
	State    State  `json:"state"`
	UserID   string `json:"user_id,omitempty"`
	Redirect string `json:"redirect,omitempty"`
}

// Fields are the values collected by the onboarding form. They are stored
// exactly as submitted.
type Fields struct {
	DisplayName string `json:"display_name"`
	Bio         string `json:"bio"`
	School      string `json:"school"`
	Program     string `json:"program"`
	AvatarURL   string `json:"avatar_url"`
}

// Result reports the outcome of CompleteOnboarding.
type Result struct {
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
}

type Gate struct {
	profiles profiles.Repo
}

func NewGate(repo profiles.Repo) (*Gate, error) {
	if repo == nil {
		return nil, errors.New("[NewGate] profile repo is required")
	}
	return &Gate{profiles: repo}, nil
}

// HasCompletedOnboarding reads the completion flag of the persisted profile.
// A user with no profile row has not completed onboarding.
func (g *Gate) HasCompletedOnboarding(ctx context.Context, userID string) (bool, error) {
	profile, err := g.profiles.Get(ctx, userID)
	if apperrors.Is(err, apperrors.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, errors.Wrap(err, "[Gate.HasCompletedOnboarding] get profile")
	}
	return profile.OnboardingCompleted, nil
}

// GetUserProfile returns the persisted profile, or nil when none exists.
func (g *Gate) GetUserProfile(ctx context.Context, userID string) (*profiles.Profile, error) {
	profile, err := g.profiles.Get(ctx, userID)
	if apperrors.Is(err, apperrors.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, "[Gate.GetUserProfile] get profile")
	}
	return profile, nil
}

// CompleteOnboarding writes the fields together with the completion flag in
// one upsert. A store failure is the only way it fails for a signed in user.
func (g *Gate) CompleteOnboarding(ctx context.Context, userID string, fields Fields) (Result, *profiles.Profile) {
	if strings.TrimSpace(userID) == "" {
		return Result{Error: "You must be signed in to complete onboarding"}, nil
	}

	profile := &profiles.Profile{
		ID:                  userID,
		DisplayName:         fields.DisplayName,
		Bio:                 fields.Bio,
		School:              fields.School,
		Program:             fields.Program,
		AvatarURL:           fields.AvatarURL,
		OnboardingCompleted: true,
	}
	if err := g.profiles.Upsert(ctx, profile); err != nil {
		log.Err(err).Str("user_id", userID).Msg("failed to save onboarding profile")
		return Result{Error: SaveFailedMsg}, nil
	}
	return Result{Success: true}, profile
}

// Decide runs the state machine for user. It always reads the store.
func (g *Gate) Decide(ctx context.Context, user *users.User) (Decision, error) {
	if user == nil {
		return Decision{State: StateUnauthenticated, Redirect: LoginPath}, nil
	}

	completed, err := g.HasCompletedOnboarding(ctx, user.ID)
	if err != nil {
		return Decision{State: StateCheckingOnboarding, UserID: user.ID}, err
	}
	if !completed {
		return Decision{State: StateIncomplete, UserID: user.ID, Redirect: OnboardingPath}, nil
	}
	return Decision{State: StateComplete, UserID: user.ID, Redirect: HomePath}, nil
}

// Follow re-evaluates the decision whenever the user identity in states
// changes and passes each result to fn. Token refreshes for the same user do
// not trigger a new decision. It returns when states closes or ctx is done.
func (g *Gate) Follow(ctx context.Context, states <-chan auth.State, fn func(Decision)) {
	lastUserID := ""
	first := true
	for {
		select {
		case <-ctx.Done():
			return
		case state, ok := <-states:
			if !ok {
				return
			}
			if !state.Initialized || state.Loading {
				continue
			}
			userID := ""
			if state.User != nil {
				userID = state.User.ID
			}
			if !first && userID == lastUserID {
				continue
			}
			first = false
			lastUserID = userID

			if userID != "" {
				fn(Decision{State: StateCheckingOnboarding, UserID: userID})
			}
			decision, err := g.Decide(ctx, state.User)
			if err != nil {
				log.Err(err).Str("user_id", userID).Msg("onboarding check failed")
				continue
			}
			fn(decision)
		}
	}
}
