package token

import (
	"context"
	"sync"
	"time"

	apperrors "github.com/jrsteele09/campus-market/internal/errors"
	"github.com/pkg/errors"
)

// RevokedTokenCache remembers access tokens signed out before they expire.
type RevokedTokenCache interface {
	Add(jti string, exp time.Time) error
	IsRevoked(jti string) bool
	Cleanup() int
}

// InMemoryRevokedTokenCache is a process-local RevokedTokenCache.
type InMemoryRevokedTokenCache struct {
	revoked map[string]time.Time
	mu      sync.RWMutex
	nowTime func() time.Time
}

func NewInMemoryRevokedTokenCache(nowTime func() time.Time) *InMemoryRevokedTokenCache {
	if nowTime == nil {
		nowTime = time.Now
	}
	return &InMemoryRevokedTokenCache{
		revoked: make(map[string]time.Time),
		nowTime: nowTime,
	}
}

func (c *InMemoryRevokedTokenCache) Add(jti string, exp time.Time) error {
	if jti == "" {
		return errors.New("[InMemoryRevokedTokenCache.Add] jti is required")
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.revoked[jti] = exp
	return nil
}

func (c *InMemoryRevokedTokenCache) IsRevoked(jti string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, exists := c.revoked[jti]
	return exists
}

// Cleanup removes entries whose token has expired anyway and returns how many
// were removed.
func (c *InMemoryRevokedTokenCache) Cleanup() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	now := c.nowTime()
	removed := 0
	for jti, exp := range c.revoked {
		if now.After(exp) {
			delete(c.revoked, jti)
			removed++
		}
	}
	return removed
}

var _ Verifier = (*RevocationChecker)(nil)

// RevocationChecker rejects tokens present in the revoked cache.
type RevocationChecker struct {
	next  Verifier
	cache RevokedTokenCache
}

func NewRevocationChecker(next Verifier, cache RevokedTokenCache) (*RevocationChecker, error) {
	if next == nil {
		return nil, errors.New("[NewRevocationChecker] verifier is required")
	}
	if cache == nil {
		return nil, errors.New("[NewRevocationChecker] cache is required")
	}
	return &RevocationChecker{next: next, cache: cache}, nil
}

func (r *RevocationChecker) Verify(ctx context.Context, rawToken string) (*Claims, error) {
	claims, err := r.next.Verify(ctx, rawToken)
	if err != nil {
		return nil, err
	}
	if claims.ID != "" && r.cache.IsRevoked(claims.ID) {
		return nil, apperrors.Wrapf(apperrors.ErrInvalidToken, "token has been revoked")
	}
	return claims, nil
}

// Revoke records rawToken as revoked until it expires. Tokens that no longer
// verify are ignored.
func (r *RevocationChecker) Revoke(ctx context.Context, rawToken string) error {
	claims, err := r.next.Verify(ctx, rawToken)
	if err != nil {
		return nil
	}
	if claims.ID == "" {
		return nil
	}
	return r.cache.Add(claims.ID, claims.ExpiresAt)
}

// StartCleanup prunes the cache every interval until ctx is done.
func (r *RevocationChecker) StartCleanup(ctx context.Context, interval time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				r.cache.Cleanup()
			}
		}
	}()
}
