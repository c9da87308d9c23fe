package profiles

import (
	"time"

	"github.com/jrsteele09/campus-market/users"
)

// Profile is the persisted, user-editable part of an account. ID is the
// identity provider's user id.
type Profile struct {
	ID                  string    `json:"id"`
	DisplayName         string    `json:"display_name"`
	Bio                 string    `json:"bio,omitempty"`
	School              string    `json:"school"`
	Program             string    `json:"program,omitempty"`
	AvatarURL           string    `json:"avatar_url,omitempty"`
	OnboardingCompleted bool      `json:"onboarding_completed"`
	CreatedAt           time.Time `json:"created_at"`
	UpdatedAt           time.Time `json:"updated_at"`
}

// ApplyTo merges the profile into user. The onboarding flag only moves from
// false to true.
func (p *Profile) ApplyTo(user *users.User) {
	if p == nil || user == nil {
		return
	}
	if p.DisplayName != "" {
		user.DisplayName = p.DisplayName
	}
	if p.Bio != "" {
		user.Bio = p.Bio
	}
	if p.School != "" {
		user.School = p.School
	}
	if p.Program != "" {
		user.Program = p.Program
	}
	if p.AvatarURL != "" {
		user.AvatarURL = p.AvatarURL
	}
	user.OnboardingCompleted = user.OnboardingCompleted || p.OnboardingCompleted
}
