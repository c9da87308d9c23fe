package sessions

import (
	"time"

	"github.com/jrsteele09/campus-market/identity"
	"github.com/jrsteele09/campus-market/internal/utils"
	"github.com/jrsteele09/campus-market/users"
)

// MapUser converts a provider user into the local user shape. Missing
// metadata maps to zero values.
func MapUser(u *identity.User) *users.User {
	if u == nil {
		return nil
	}
	return &users.User{
		ID:                  u.ID,
		Email:               u.Email,
		FullName:            firstString(u.UserMetadata, "full_name", "name"),
		DisplayName:         firstString(u.UserMetadata, "display_name"),
		Bio:                 firstString(u.UserMetadata, "bio"),
		School:              firstString(u.UserMetadata, "school"),
		Program:             firstString(u.UserMetadata, "program"),
		AvatarURL:           firstString(u.UserMetadata, "avatar_url", "picture"),
		Provider:            mapProvider(u.AppMetadata),
		OnboardingCompleted: boolValue(u.UserMetadata, "onboarding_completed"),
		CreatedAt:           u.CreatedAt,
		UpdatedAt:           u.UpdatedAt,
	}
}

// MapSession converts a provider session. A payload without an access token
// maps to nil so the user/token pairing always holds.
func MapSession(s *identity.Session) *Session {
	if s == nil || s.AccessToken == "" || s.User == nil {
		return nil
	}
	session := &Session{
		User:         MapUser(s.User),
		AccessToken:  s.AccessToken,
		RefreshToken: s.RefreshToken,
	}
	if s.ExpiresAt > 0 {
		session.ExpiresAt = utils.Ptr(time.Unix(s.ExpiresAt, 0))
	}
	return session
}

// mapProvider reads the sign-in provider, falling back to the first linked
// provider for accounts created before "provider" was recorded.
func mapProvider(appMetadata map[string]any) users.AuthProvider {
	provider := firstString(appMetadata, "provider")
	if provider == "" {
		if linked, ok := appMetadata["providers"].([]any); ok {
			if names := utils.ToStringSlice(linked); len(names) > 0 {
				provider = names[0]
			}
		}
	}
	switch provider {
	case "google":
		return users.AuthProviderGoogle
	case "email":
		return users.AuthProviderEmail
	default:
		return ""
	}
}

func firstString(m map[string]any, keys ...string) string {
	for _, key := range keys {
		if v, ok := m[key].(string); ok && v != "" {
			return v
		}
	}
	return ""
}

func boolValue(m map[string]any, key string) bool {
	v, _ := m[key].(bool)
	return v
}
