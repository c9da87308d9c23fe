package fakeprovider

import (
	"context"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jrsteele09/campus-market/identity"
	"github.com/jrsteele09/campus-market/users"
)

// Op names a provider call for failure injection.
type Op string

const (
	OpSignIn     Op = "sign_in"
	OpSignUp     Op = "sign_up"
	OpSignOut    Op = "sign_out"
	OpGetSession Op = "get_session"
	OpRefresh    Op = "refresh"
	OpReset      Op = "reset"
	OpUpdate     Op = "update"
	OpOAuth      Op = "oauth"
	OpExchange   Op = "exchange"
)

var _ identity.Provider = (*Client)(nil)

type Client struct {
	dir       *Directory
	listeners *identity.Listeners

	mu           sync.Mutex
	session      *identity.Session
	pendingOAuth bool
	failures     map[Op]error
	delays       map[Op]time.Duration
}

// Fail makes every call to op return err until cleared with a nil err.
func (c *Client) Fail(op Op, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err == nil {
		delete(c.failures, op)
		return
	}
	c.failures[op] = err
}

// Delay makes op block for d, or until its context is done.
func (c *Client) Delay(op Op, d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.delays[op] = d
}

// Emit pushes an event to listeners as if the provider had sent it.
func (c *Client) Emit(event identity.Event, session *identity.Session) {
	c.listeners.Emit(event, session)
}

func (c *Client) Listeners() int {
	return c.listeners.Len()
}

func (c *Client) before(ctx context.Context, op Op) error {
	c.mu.Lock()
	delay := c.delays[op]
	err := c.failures[op]
	c.mu.Unlock()

	if delay > 0 {
		timer := time.NewTimer(delay)
		defer timer.Stop()
		select {
		case <-timer.C:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return err
}

func (c *Client) setSession(session *identity.Session, event identity.Event) {
	c.mu.Lock()
	c.session = session
	c.mu.Unlock()
	c.listeners.Emit(event, session)
}

func (c *Client) SignInWithPassword(ctx context.Context, email, password string) (*identity.Session, error) {
	if err := c.before(ctx, OpSignIn); err != nil {
		return nil, err
	}

	c.dir.mu.Lock()
	acc, ok := c.dir.byEmail[normalise(email)]
	if !ok || acc.passwordHash == "" || !users.CheckPasswordHash(password, acc.passwordHash) {
		c.dir.mu.Unlock()
		return nil, &identity.Error{Status: http.StatusBadRequest, Code: "invalid_credentials", Message: "Invalid login credentials"}
	}
	if !acc.confirmed {
		c.dir.mu.Unlock()
		return nil, &identity.Error{Status: http.StatusBadRequest, Code: "email_not_confirmed", Message: "Email not confirmed"}
	}
	session, err := c.dir.issueSessionLocked(acc)
	c.dir.mu.Unlock()
	if err != nil {
		return nil, err
	}

	c.setSession(session, identity.EventSignedIn)
	return session, nil
}

func (c *Client) SignUp(ctx context.Context, params identity.SignUpParams) (*identity.User, *identity.Session, error) {
	if err := c.before(ctx, OpSignUp); err != nil {
		return nil, nil, err
	}

	c.dir.mu.Lock()
	acc, err := c.dir.createLocked(params.Email, params.Password, "email", params.Data)
	if err != nil {
		c.dir.mu.Unlock()
		return nil, nil, err
	}
	user := acc.user
	if c.dir.requireConfirmation {
		c.dir.mu.Unlock()
		return &user, nil, nil
	}
	acc.confirmed = true
	session, err := c.dir.issueSessionLocked(acc)
	c.dir.mu.Unlock()
	if err != nil {
		return nil, nil, err
	}

	c.setSession(session, identity.EventSignedIn)
	return &user, session, nil
}

func (c *Client) SignOut(ctx context.Context) error {
	if err := c.before(ctx, OpSignOut); err != nil {
		return err
	}
	c.mu.Lock()
	session := c.session
	c.mu.Unlock()
	if session != nil {
		c.dir.mu.Lock()
		delete(c.dir.refreshTokens, session.RefreshToken)
		c.dir.mu.Unlock()
	}
	c.setSession(nil, identity.EventSignedOut)
	return nil
}

func (c *Client) GetSession(ctx context.Context) (*identity.Session, error) {
	if err := c.before(ctx, OpGetSession); err != nil {
		return nil, err
	}
	c.mu.Lock()
	session := c.session
	c.mu.Unlock()

	if session != nil && session.Expired(c.dir.nowTime(), 0) {
		return c.RefreshSession(ctx)
	}
	return session, nil
}

func (c *Client) RefreshSession(ctx context.Context) (*identity.Session, error) {
	if err := c.before(ctx, OpRefresh); err != nil {
		return nil, err
	}
	c.mu.Lock()
	current := c.session
	c.mu.Unlock()
	if current == nil {
		return nil, &identity.Error{Status: http.StatusUnauthorized, Code: "refresh_token_not_found", Message: "Invalid Refresh Token: Refresh Token Not Found"}
	}

	c.dir.mu.Lock()
	userID, ok := c.dir.refreshTokens[current.RefreshToken]
	acc := c.dir.byID[userID]
	if !ok || acc == nil {
		c.dir.mu.Unlock()
		c.setSession(nil, identity.EventSignedOut)
		return nil, &identity.Error{Status: http.StatusUnauthorized, Code: "refresh_token_not_found", Message: "Invalid Refresh Token: Refresh Token Not Found"}
	}
	delete(c.dir.refreshTokens, current.RefreshToken)
	session, err := c.dir.issueSessionLocked(acc)
	c.dir.mu.Unlock()
	if err != nil {
		return nil, err
	}

	c.setSession(session, identity.EventTokenRefreshed)
	return session, nil
}

func (c *Client) ResetPasswordForEmail(ctx context.Context, email, _ string) error {
	if err := c.before(ctx, OpReset); err != nil {
		return err
	}
	c.dir.mu.Lock()
	defer c.dir.mu.Unlock()
	c.dir.passwordResets = append(c.dir.passwordResets, normalise(email))
	return nil
}

func (c *Client) UpdatePassword(ctx context.Context, password string) (*identity.User, error) {
	if err := c.before(ctx, OpUpdate); err != nil {
		return nil, err
	}
	c.mu.Lock()
	session := c.session
	c.mu.Unlock()
	if session == nil || session.User == nil {
		return nil, &identity.Error{Status: http.StatusUnauthorized, Code: "session_not_found", Message: "Auth session missing!"}
	}
	if len(password) < minPasswordLength {
		return nil, &identity.Error{Status: http.StatusUnprocessableEntity, Code: "weak_password", Message: "Password should be at least 6 characters."}
	}
	hash, err := users.HashPassword(password)
	if err != nil {
		return nil, err
	}

	c.dir.mu.Lock()
	acc, ok := c.dir.byID[session.User.ID]
	if !ok {
		c.dir.mu.Unlock()
		return nil, &identity.Error{Status: http.StatusNotFound, Code: "user_not_found", Message: "User not found"}
	}
	acc.passwordHash = hash
	now := c.dir.nowTime()
	acc.user.UpdatedAt = &now
	user := acc.user
	c.dir.mu.Unlock()

	updated := *session
	updated.User = &user
	c.setSession(&updated, identity.EventUserUpdated)
	return &user, nil
}

// OAuthURL skips the consent screen: the returned URL is redirectTo carrying
// a code for the directory's OAuth account.
func (c *Client) OAuthURL(ctx context.Context, provider, redirectTo string) (string, error) {
	if err := c.before(ctx, OpOAuth); err != nil {
		return "", err
	}
	code := uuid.NewString()

	c.dir.mu.Lock()
	c.dir.oauthCodes[code] = c.dir.oauthEmail
	c.dir.mu.Unlock()

	c.mu.Lock()
	c.pendingOAuth = true
	c.mu.Unlock()

	target, err := url.Parse(redirectTo)
	if err != nil {
		return "", err
	}
	query := target.Query()
	query.Set("code", code)
	query.Set("provider", provider)
	target.RawQuery = query.Encode()
	return target.String(), nil
}

func (c *Client) ExchangeCodeForSession(ctx context.Context, code string) (*identity.Session, error) {
	if err := c.before(ctx, OpExchange); err != nil {
		return nil, err
	}
	c.mu.Lock()
	pending := c.pendingOAuth
	c.pendingOAuth = false
	c.mu.Unlock()

	c.dir.mu.Lock()
	email, ok := c.dir.oauthCodes[code]
	delete(c.dir.oauthCodes, code)
	if !pending || !ok {
		c.dir.mu.Unlock()
		return nil, &identity.Error{Status: http.StatusBadRequest, Code: "flow_state_not_found", Message: "invalid flow state, no valid flow state found"}
	}

	acc, exists := c.dir.byEmail[email]
	if !exists {
		var err error
		acc, err = c.dir.createLocked(email, "", "google", map[string]any{"full_name": "Google Student"})
		if err != nil {
			c.dir.mu.Unlock()
			return nil, err
		}
		acc.confirmed = true
	}
	session, err := c.dir.issueSessionLocked(acc)
	c.dir.mu.Unlock()
	if err != nil {
		return nil, err
	}

	c.setSession(session, identity.EventSignedIn)
	return session, nil
}

func (c *Client) OnAuthStateChange(listener identity.Listener) identity.Subscription {
	return c.listeners.Add(listener)
}
