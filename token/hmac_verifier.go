package token

import (
	"context"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/pkg/errors"
)

var _ Verifier = (*HMACVerifier)(nil)

// HMACVerifier checks HS256 tokens signed with the project's shared JWT secret.
type HMACVerifier struct {
	secret   []byte
	audience string
	nowTime  func() time.Time
}

type HMACOption func(*HMACVerifier)

// WithAudience requires the aud claim to contain audience.
func WithAudience(audience string) HMACOption {
	return func(v *HMACVerifier) {
		v.audience = audience
	}
}

// WithNowTime sets the clock (primarily for testing)
func WithNowTime(nowFunc func() time.Time) HMACOption {
	return func(v *HMACVerifier) {
		v.nowTime = nowFunc
	}
}

func NewHMACVerifier(secret string, options ...HMACOption) (*HMACVerifier, error) {
	if secret == "" {
		return nil, errors.New("[NewHMACVerifier] secret is required")
	}
	v := &HMACVerifier{secret: []byte(secret), nowTime: time.Now}
	for _, opt := range options {
		opt(v)
	}
	return v, nil
}

func (v *HMACVerifier) Verify(_ context.Context, rawToken string) (*Claims, error) {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(v.nowTime),
		jwt.WithExpirationRequired(),
	}
	if v.audience != "" {
		opts = append(opts, jwt.WithAudience(v.audience))
	}

	claims := jwt.MapClaims{}
	if _, err := jwt.ParseWithClaims(rawToken, claims, v.verificationKey, opts...); err != nil {
		return nil, classify(err)
	}
	return claimsFromMap(claims)
}

func (v *HMACVerifier) verificationKey(token *jwt.Token) (any, error) {
	if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
		return nil, errors.Errorf("unexpected signing method: %v", token.Header["alg"])
	}
	return v.secret, nil
}
