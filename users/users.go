package users

import (
	"time"

	"golang.org/x/crypto/bcrypt"
)

// AuthProvider records how the account signs in.
type AuthProvider string

const (
	AuthProviderEmail  AuthProvider = "email"
	AuthProviderGoogle AuthProvider = "google"
)

type User struct {
	ID                  string       `json:"id"`
	Email               string       `json:"email"`
	FullName            string       `json:"full_name,omitempty"`
	DisplayName         string       `json:"display_name,omitempty"`
	Bio                 string       `json:"bio,omitempty"`
	School              string       `json:"school,omitempty"`
	Program             string       `json:"program,omitempty"`
	AvatarURL           string       `json:"avatar_url,omitempty"`
	Provider            AuthProvider `json:"provider,omitempty"`
	OnboardingCompleted bool         `json:"onboarding_completed"`
	CreatedAt           *time.Time   `json:"created_at,omitempty"`
	UpdatedAt           *time.Time   `json:"updated_at,omitempty"`
}

// Clone returns a copy that can be handed to subscribers.
func (u *User) Clone() *User {
	if u == nil {
		return nil
	}
	cp := *u
	if u.CreatedAt != nil {
		t := *u.CreatedAt
		cp.CreatedAt = &t
	}
	if u.UpdatedAt != nil {
		t := *u.UpdatedAt
		cp.UpdatedAt = &t
	}
	return &cp
}

// Name returns the best available name for display.
func (u *User) Name() string {
	switch {
	case u.DisplayName != "":
		return u.DisplayName
	case u.FullName != "":
		return u.FullName
	default:
		return u.Email
	}
}

func HashPassword(password string) (string, error) {
	bytes, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	return string(bytes), err
}

func CheckPasswordHash(password, hash string) bool {
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
	return err == nil
}
