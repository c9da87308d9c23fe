// Package fakeprovider is an in-memory identity provider. A Directory holds the
// accounts shared by every browser; each browser gets its own Client.
package fakeprovider

import (
	"context"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/jrsteele09/campus-market/identity"
	"github.com/jrsteele09/campus-market/users"
	"github.com/pkg/errors"
)

const (
	defaultTokenTTL   = time.Hour
	defaultOAuthEmail = "google.student@example.com"
	minPasswordLength = 6
	tokenAudience     = "authenticated"
)

var _ identity.TokenIntrospector = (*Directory)(nil)

type account struct {
	user         identity.User
	passwordHash string
	confirmed    bool
}

// Claims are the access token claims minted by the directory.
type Claims struct {
	Email string `json:"email"`
	Role  string `json:"role"`
	jwt.RegisteredClaims
}

type Directory struct {
	mu                  sync.RWMutex
	byEmail             map[string]*account
	byID                map[string]*account
	refreshTokens       map[string]string // refresh token -> user id
	oauthCodes          map[string]string // auth code -> email
	passwordResets      []string
	secret              []byte
	tokenTTL            time.Duration
	requireConfirmation bool
	oauthEmail          string
	nowTime             func() time.Time
}

type DirectoryOption func(*Directory)

// WithRequireConfirmation makes SignUp return no session until ConfirmEmail is called.
func WithRequireConfirmation(required bool) DirectoryOption {
	return func(d *Directory) {
		d.requireConfirmation = required
	}
}

func WithTokenTTL(ttl time.Duration) DirectoryOption {
	return func(d *Directory) {
		d.tokenTTL = ttl
	}
}

// WithOAuthEmail sets the account used to complete Google sign in.
func WithOAuthEmail(email string) DirectoryOption {
	return func(d *Directory) {
		d.oauthEmail = email
	}
}

// WithNowTime sets the clock (primarily for testing)
func WithNowTime(nowFunc func() time.Time) DirectoryOption {
	return func(d *Directory) {
		d.nowTime = nowFunc
	}
}

func NewDirectory(secret string, options ...DirectoryOption) *Directory {
	d := &Directory{
		byEmail:       make(map[string]*account),
		byID:          make(map[string]*account),
		refreshTokens: make(map[string]string),
		oauthCodes:    make(map[string]string),
		secret:        []byte(secret),
		tokenTTL:      defaultTokenTTL,
		oauthEmail:    defaultOAuthEmail,
		nowTime:       time.Now,
	}
	for _, opt := range options {
		opt(d)
	}
	return d
}

// NewClient returns a provider for one browser session.
func (d *Directory) NewClient() *Client {
	return &Client{dir: d, listeners: identity.NewListeners(), failures: make(map[Op]error), delays: make(map[Op]time.Duration)}
}

// AddUser seeds a confirmed email/password account.
func (d *Directory) AddUser(email, password string, metadata map[string]any) (*identity.User, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	acc, err := d.createLocked(email, password, "email", metadata)
	if err != nil {
		return nil, err
	}
	acc.confirmed = true
	user := acc.user
	return &user, nil
}

// ConfirmEmail simulates the user clicking the confirmation link.
func (d *Directory) ConfirmEmail(email string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if acc, ok := d.byEmail[normalise(email)]; ok {
		acc.confirmed = true
		now := d.nowTime()
		acc.user.EmailConfirmedAt = &now
	}
}

// PasswordResets lists the addresses a reset email was requested for.
func (d *Directory) PasswordResets() []string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return append([]string(nil), d.passwordResets...)
}

// GetUser validates an access token minted by this directory.
func (d *Directory) GetUser(_ context.Context, accessToken string) (*identity.User, error) {
	claims := &Claims{}
	_, err := jwt.ParseWithClaims(accessToken, claims, func(t *jwt.Token) (any, error) {
		return d.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithTimeFunc(d.nowTime))
	if err != nil {
		return nil, &identity.Error{Status: http.StatusUnauthorized, Code: "bad_jwt", Message: err.Error()}
	}

	d.mu.RLock()
	defer d.mu.RUnlock()
	acc, ok := d.byID[claims.Subject]
	if !ok {
		return nil, &identity.Error{Status: http.StatusNotFound, Code: "user_not_found", Message: "User not found"}
	}
	user := acc.user
	return &user, nil
}

func (d *Directory) createLocked(email, password, provider string, metadata map[string]any) (*account, error) {
	key := normalise(email)
	if _, exists := d.byEmail[key]; exists {
		return nil, &identity.Error{Status: http.StatusUnprocessableEntity, Code: "user_already_exists", Message: "User already registered"}
	}

	var hash string
	if provider == "email" {
		if len(password) < minPasswordLength {
			return nil, &identity.Error{Status: http.StatusUnprocessableEntity, Code: "weak_password", Message: "Password should be at least 6 characters."}
		}
		var err error
		if hash, err = users.HashPassword(password); err != nil {
			return nil, errors.Wrap(err, "[Directory.create] hash password")
		}
	}

	now := d.nowTime()
	userMetadata := map[string]any{}
	for k, v := range metadata {
		userMetadata[k] = v
	}
	acc := &account{
		user: identity.User{
			ID:           uuid.NewString(),
			Email:        key,
			Role:         tokenAudience,
			CreatedAt:    &now,
			UpdatedAt:    &now,
			AppMetadata:  map[string]any{"provider": provider},
			UserMetadata: userMetadata,
		},
		passwordHash: hash,
	}
	d.byEmail[key] = acc
	d.byID[acc.user.ID] = acc
	return acc, nil
}

func (d *Directory) issueSessionLocked(acc *account) (*identity.Session, error) {
	now := d.nowTime()
	expires := now.Add(d.tokenTTL)
	claims := Claims{
		Email: acc.user.Email,
		Role:  tokenAudience,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   acc.user.ID,
			Audience:  jwt.ClaimStrings{tokenAudience},
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expires),
			ID:        uuid.NewString(),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(d.secret)
	if err != nil {
		return nil, errors.Wrap(err, "[Directory.issueSession] sign token")
	}

	refresh := uuid.NewString()
	d.refreshTokens[refresh] = acc.user.ID
	user := acc.user
	return &identity.Session{
		AccessToken:  signed,
		TokenType:    "bearer",
		ExpiresIn:    int64(d.tokenTTL.Seconds()),
		ExpiresAt:    expires.Unix(),
		RefreshToken: refresh,
		User:         &user,
	}, nil
}

func normalise(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
