// Package gotrue is a client for the hosted auth REST API used by the
// marketplace's backend-as-a-service project.
package gotrue

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/jrsteele09/campus-market/identity"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"golang.org/x/oauth2"
)

const (
	authPath          = "/auth/v1"
	defaultTimeout    = 10 * time.Second
	refreshSkew       = 30 * time.Second
	codeChallengeS256 = "s256"
)

var (
	_ identity.Provider          = (*Client)(nil)
	_ identity.TokenIntrospector = (*Client)(nil)
)

// Client talks to one project's auth API on behalf of a single browser
// session. It keeps the current session and the pending PKCE verifier in
// memory and notifies listeners when the session changes.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	nowTime    func() time.Time
	listeners  *identity.Listeners

	mu           sync.Mutex
	session      *identity.Session
	codeVerifier string
}

type Option func(*Client)

func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *Client) {
		c.httpClient = httpClient
	}
}

// WithNowTime sets the clock (primarily for testing)
func WithNowTime(nowFunc func() time.Time) Option {
	return func(c *Client) {
		c.nowTime = nowFunc
	}
}

func New(projectURL, apiKey string, options ...Option) (*Client, error) {
	if projectURL == "" {
		return nil, errors.New("[gotrue.New] project URL is required")
	}
	if apiKey == "" {
		return nil, errors.New("[gotrue.New] api key is required")
	}
	if _, err := url.ParseRequestURI(projectURL); err != nil {
		return nil, errors.Wrap(err, "[gotrue.New] invalid project URL")
	}

	c := &Client{
		baseURL:    strings.TrimRight(projectURL, "/") + authPath,
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: defaultTimeout},
		nowTime:    time.Now,
		listeners:  identity.NewListeners(),
	}
	for _, opt := range options {
		opt(c)
	}
	return c, nil
}

type passwordGrant struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (c *Client) SignInWithPassword(ctx context.Context, email, password string) (*identity.Session, error) {
	var session identity.Session
	query := url.Values{"grant_type": {"password"}}
	if err := c.do(ctx, http.MethodPost, "/token", query, passwordGrant{Email: email, Password: password}, "", &session); err != nil {
		return nil, err
	}
	c.setSession(&session, identity.EventSignedIn)
	return &session, nil
}

type signUpRequest struct {
	Email    string         `json:"email"`
	Password string         `json:"password"`
	Data     map[string]any `json:"data,omitempty"`
}

func (c *Client) SignUp(ctx context.Context, params identity.SignUpParams) (*identity.User, *identity.Session, error) {
	query := url.Values{}
	if params.RedirectTo != "" {
		query.Set("redirect_to", params.RedirectTo)
	}

	var raw json.RawMessage
	body := signUpRequest{Email: params.Email, Password: params.Password, Data: params.Data}
	if err := c.do(ctx, http.MethodPost, "/signup", query, body, "", &raw); err != nil {
		return nil, nil, err
	}

	// auto-confirmed projects answer with a session, others with the bare user
	var session identity.Session
	if err := json.Unmarshal(raw, &session); err == nil && session.AccessToken != "" {
		c.setSession(&session, identity.EventSignedIn)
		return session.User, &session, nil
	}

	var user identity.User
	if err := json.Unmarshal(raw, &user); err != nil {
		return nil, nil, errors.Wrap(err, "[Client.SignUp] decode user")
	}
	return &user, nil, nil
}

// SignOut revokes the session remotely and always clears it locally.
func (c *Client) SignOut(ctx context.Context) error {
	c.mu.Lock()
	session := c.session
	c.mu.Unlock()

	var err error
	if session != nil && session.AccessToken != "" {
		err = c.do(ctx, http.MethodPost, "/logout", nil, nil, session.AccessToken, nil)
	}
	c.setSession(nil, identity.EventSignedOut)
	return err
}

// GetSession returns the current session, refreshing it first when the
// access token has expired.
func (c *Client) GetSession(ctx context.Context) (*identity.Session, error) {
	c.mu.Lock()
	session := c.session
	c.mu.Unlock()

	if session == nil {
		return nil, nil
	}
	if session.Expired(c.nowTime(), refreshSkew) {
		return c.RefreshSession(ctx)
	}
	return session, nil
}

type refreshGrant struct {
	RefreshToken string `json:"refresh_token"`
}

func (c *Client) RefreshSession(ctx context.Context) (*identity.Session, error) {
	c.mu.Lock()
	current := c.session
	c.mu.Unlock()

	if current == nil || current.RefreshToken == "" {
		return nil, &identity.Error{Status: http.StatusUnauthorized, Code: "refresh_token_not_found", Message: "no refresh token"}
	}

	var session identity.Session
	query := url.Values{"grant_type": {"refresh_token"}}
	if err := c.do(ctx, http.MethodPost, "/token", query, refreshGrant{RefreshToken: current.RefreshToken}, "", &session); err != nil {
		var providerErr *identity.Error
		if errors.As(err, &providerErr) && providerErr.Status >= 400 && providerErr.Status < 500 {
			c.setSession(nil, identity.EventSignedOut)
		}
		return nil, err
	}
	c.setSession(&session, identity.EventTokenRefreshed)
	return &session, nil
}

type recoverRequest struct {
	Email string `json:"email"`
}

func (c *Client) ResetPasswordForEmail(ctx context.Context, email, redirectTo string) error {
	query := url.Values{}
	if redirectTo != "" {
		query.Set("redirect_to", redirectTo)
	}
	return c.do(ctx, http.MethodPost, "/recover", query, recoverRequest{Email: email}, "", nil)
}

type updateUserRequest struct {
	Password string `json:"password"`
}

func (c *Client) UpdatePassword(ctx context.Context, password string) (*identity.User, error) {
	session, err := c.GetSession(ctx)
	if err != nil {
		return nil, err
	}
	if session == nil {
		return nil, &identity.Error{Status: http.StatusUnauthorized, Code: "session_not_found", Message: "Auth session missing!"}
	}

	var user identity.User
	if err := c.do(ctx, http.MethodPut, "/user", nil, updateUserRequest{Password: password}, session.AccessToken, &user); err != nil {
		return nil, err
	}

	c.mu.Lock()
	if c.session != nil {
		updated := *c.session
		updated.User = &user
		c.session = &updated
	}
	current := c.session
	c.mu.Unlock()
	c.listeners.Emit(identity.EventUserUpdated, current)
	return &user, nil
}

// OAuthURL starts a PKCE flow for provider and returns the URL the browser
// must visit. The verifier is kept until ExchangeCodeForSession.
func (c *Client) OAuthURL(_ context.Context, provider, redirectTo string) (string, error) {
	if provider == "" {
		return "", errors.New("[Client.OAuthURL] provider is required")
	}
	verifier := oauth2.GenerateVerifier()

	c.mu.Lock()
	c.codeVerifier = verifier
	c.mu.Unlock()

	query := url.Values{
		"provider":              {provider},
		"code_challenge":        {oauth2.S256ChallengeFromVerifier(verifier)},
		"code_challenge_method": {codeChallengeS256},
	}
	if redirectTo != "" {
		query.Set("redirect_to", redirectTo)
	}
	return c.baseURL + "/authorize?" + query.Encode(), nil
}

type pkceGrant struct {
	AuthCode     string `json:"auth_code"`
	CodeVerifier string `json:"code_verifier"`
}

func (c *Client) ExchangeCodeForSession(ctx context.Context, code string) (*identity.Session, error) {
	c.mu.Lock()
	verifier := c.codeVerifier
	c.mu.Unlock()

	if verifier == "" {
		return nil, &identity.Error{Status: http.StatusBadRequest, Code: "flow_state_not_found", Message: "no pending sign in for this session"}
	}

	var session identity.Session
	query := url.Values{"grant_type": {"pkce"}}
	if err := c.do(ctx, http.MethodPost, "/token", query, pkceGrant{AuthCode: code, CodeVerifier: verifier}, "", &session); err != nil {
		return nil, err
	}

	c.mu.Lock()
	c.codeVerifier = ""
	c.mu.Unlock()

	c.setSession(&session, identity.EventSignedIn)
	return &session, nil
}

// GetUser validates accessToken with the provider and returns its user.
func (c *Client) GetUser(ctx context.Context, accessToken string) (*identity.User, error) {
	var user identity.User
	if err := c.do(ctx, http.MethodGet, "/user", nil, nil, accessToken, &user); err != nil {
		return nil, err
	}
	return &user, nil
}

func (c *Client) OnAuthStateChange(listener identity.Listener) identity.Subscription {
	return c.listeners.Add(listener)
}

func (c *Client) setSession(session *identity.Session, event identity.Event) {
	c.mu.Lock()
	if session != nil && session.ExpiresAt == 0 && session.ExpiresIn > 0 {
		session.ExpiresAt = c.nowTime().Unix() + session.ExpiresIn
	}
	c.session = session
	c.mu.Unlock()
	c.listeners.Emit(event, session)
}

type errorResponse struct {
	Code             any    `json:"code"`
	ErrorCode        string `json:"error_code"`
	Msg              string `json:"msg"`
	Message          string `json:"message"`
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description"`
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values, body any, bearer string, out any) error {
	endpoint := c.baseURL + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return errors.Wrap(err, "[Client.do] encode body")
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return errors.Wrap(err, "[Client.do] build request")
	}
	req.Header.Set("apikey", c.apiKey)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if bearer == "" {
		bearer = c.apiKey
	}
	req.Header.Set("Authorization", "Bearer "+bearer)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		// *url.Error is kept in the chain so callers can classify it as a network failure
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return errors.Wrap(err, "[Client.do] read body")
	}

	if resp.StatusCode >= http.StatusBadRequest {
		return decodeError(resp.StatusCode, data)
	}

	if out == nil || len(data) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		log.Debug().Str("path", path).Msg("unexpected auth response body")
		return errors.Wrap(err, "[Client.do] decode response")
	}
	return nil
}

func decodeError(status int, data []byte) error {
	providerErr := &identity.Error{Status: status}
	var body errorResponse
	if err := json.Unmarshal(data, &body); err != nil {
		providerErr.Message = strings.TrimSpace(string(data))
		return providerErr
	}

	providerErr.Code = body.ErrorCode
	if providerErr.Code == "" {
		if code, ok := body.Code.(string); ok {
			providerErr.Code = code
		} else {
			providerErr.Code = body.Error
		}
	}

	for _, msg := range []string{body.Msg, body.Message, body.ErrorDescription, body.Error} {
		if msg != "" {
			providerErr.Message = msg
			break
		}
	}
	if status == http.StatusTooManyRequests && providerErr.Code == "" {
		providerErr.Code = "over_request_rate_limit"
	}
	return providerErr
}
