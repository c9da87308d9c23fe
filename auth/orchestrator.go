package auth

import (
	"context"
	"fmt"
	"math"
	"strings"
	"sync"
	"time"

	"github.com/jrsteele09/campus-market/credentials"
	"github.com/jrsteele09/campus-market/identity"
	apperrors "github.com/jrsteele09/campus-market/internal/errors"
	"github.com/jrsteele09/campus-market/profiles"
	"github.com/jrsteele09/campus-market/sessions"
	"github.com/jrsteele09/campus-market/throttle"
	"github.com/jrsteele09/campus-market/users"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

const (
	DefaultSessionInitTimeout = 3 * time.Second
	enrichmentTimeout         = 10 * time.Second

	CallbackPath      = "/auth/callback"
	ResetPasswordPath = "/auth/reset-password"
)

// Dependencies holds the collaborators of an Orchestrator. Profiles is
// optional; without it users are not enriched.
type Dependencies struct {
	Sessions *sessions.Adapter
	Limiter  throttle.Limiter
	Profiles profiles.Repo
}

// Orchestrator owns the authentication state of one browser session. Every
// operation moves Loading true then false and records its failure in
// State.Error as well as returning it.
type Orchestrator struct {
	deps        Dependencies
	baseURL     string
	initTimeout time.Duration

	mu          sync.Mutex
	state       State
	closed      bool
	subscribers map[int]chan State
	nextSubID   int
	enrichedFor string

	initOnce   sync.Once
	sessionSub sessions.Subscription
}

type Option func(*Orchestrator)

// WithSessionInitTimeout bounds the initial session fetch in Init.
func WithSessionInitTimeout(d time.Duration) Option {
	return func(o *Orchestrator) {
		o.initTimeout = d
	}
}

// WithBaseURL sets the origin used for confirmation, OAuth and reset redirects.
func WithBaseURL(baseURL string) Option {
	return func(o *Orchestrator) {
		o.baseURL = strings.TrimRight(baseURL, "/")
	}
}

func NewOrchestrator(deps Dependencies, options ...Option) (*Orchestrator, error) {
	if deps.Sessions == nil {
		return nil, errors.New("[NewOrchestrator] Sessions adapter is required")
	}
	if deps.Limiter == nil {
		return nil, errors.New("[NewOrchestrator] Limiter is required")
	}

	o := &Orchestrator{
		deps:        deps,
		baseURL:     "http://localhost:8080",
		initTimeout: DefaultSessionInitTimeout,
		subscribers: make(map[int]chan State),
	}
	for _, opt := range options {
		opt(o)
	}
	return o, nil
}

// State returns a snapshot of the current state.
func (o *Orchestrator) State() State {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.state.clone()
}

// Subscribe returns a channel that always holds the latest state. The current
// state is delivered immediately. Call the returned func to unsubscribe.
func (o *Orchestrator) Subscribe() (<-chan State, func()) {
	o.mu.Lock()
	defer o.mu.Unlock()

	ch := make(chan State, 1)
	if o.closed {
		close(ch)
		return ch, func() {}
	}
	id := o.nextSubID
	o.nextSubID++
	o.subscribers[id] = ch
	ch <- o.state.clone()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			o.mu.Lock()
			defer o.mu.Unlock()
			if sub, ok := o.subscribers[id]; ok {
				delete(o.subscribers, id)
				close(sub)
			}
		})
	}
}

// Init subscribes to provider session changes and loads the current session.
// The fetch is bounded by the session init timeout; on timeout the
// orchestrator proceeds as signed out. Only the first call has any effect.
func (o *Orchestrator) Init(ctx context.Context) {
	o.initOnce.Do(func() {
		sub, err := o.deps.Sessions.Subscribe(o.onSessionChanged)
		if err != nil {
			log.Err(err).Msg("failed to subscribe to session changes")
		} else {
			o.mu.Lock()
			o.sessionSub = sub
			o.mu.Unlock()
		}

		o.update(func(s *State) { s.Loading = true })

		fetchCtx, cancel := context.WithTimeout(ctx, o.initTimeout)
		defer cancel()
		session := o.deps.Sessions.GetCurrentSession(fetchCtx)
		if fetchCtx.Err() == context.DeadlineExceeded {
			log.Warn().Dur("timeout", o.initTimeout).Msg("initial session fetch timed out")
		}

		o.update(func(s *State) {
			if session != nil {
				s.Session = session
				s.User = session.User.Clone()
			}
			s.Loading = false
			s.Initialized = true
		})
		if session != nil {
			o.enrich(session.User)
		}
	})
}

// Close marks the orchestrator as torn down. Results of operations still in
// flight are discarded and subscriber channels are closed.
func (o *Orchestrator) Close() {
	o.mu.Lock()
	if o.closed {
		o.mu.Unlock()
		return
	}
	o.closed = true
	sub := o.sessionSub
	for id, ch := range o.subscribers {
		close(ch)
		delete(o.subscribers, id)
	}
	o.mu.Unlock()

	if sub != nil {
		sub.Unsubscribe()
	}
}

func (o *Orchestrator) Closed() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.closed
}

func (o *Orchestrator) Login(ctx context.Context, email, password string) error {
	o.begin()

	if strings.TrimSpace(email) == "" || password == "" {
		return o.fail(apperrors.NewAuthError(apperrors.CodeInvalidInput, credentials.MissingCredentialMsg, nil))
	}
	if !credentials.ValidateEmail(email) {
		return o.fail(apperrors.NewAuthError(apperrors.CodeInvalidEmail, credentials.InvalidEmailMsg, nil))
	}

	identifier := strings.ToLower(strings.TrimSpace(email))
	result, err := o.deps.Limiter.RecordAttempt(ctx, identifier)
	if err != nil {
		// fail open
		log.Err(err).Str("identifier", identifier).Msg("attempt throttle unavailable")
		result = throttle.Result{Allowed: true}
	}
	if !result.Allowed {
		return o.fail(apperrors.NewAuthError(apperrors.CodeRateLimitExceeded, lockoutMessage(result.RemainingLockout), nil))
	}

	session, err := o.deps.Sessions.SignInWithPassword(ctx, email, password)
	if err != nil {
		return o.fail(apperrors.Classify(err))
	}

	if err := o.deps.Limiter.Reset(ctx, identifier); err != nil {
		log.Err(err).Str("identifier", identifier).Msg("failed to reset attempt throttle")
	}
	o.authenticated(session)
	return nil
}

func lockoutMessage(remaining time.Duration) string {
	seconds := int(math.Ceil(remaining.Seconds()))
	return fmt.Sprintf("Too many login attempts. Please try again in %d seconds.", seconds)
}

// SignUp creates an account. When the provider issues a session the caller is
// signed in; otherwise the result reports that email confirmation is pending
// and the state is left signed out.
func (o *Orchestrator) SignUp(ctx context.Context, email, password, fullName string) (SignUpResult, error) {
	o.begin()

	if !credentials.ValidateEmail(email) {
		return SignUpResult{}, o.fail(apperrors.NewAuthError(apperrors.CodeInvalidEmail, credentials.InvalidEmailMsg, nil))
	}
	if result := credentials.ValidatePassword(password); !result.Valid {
		return SignUpResult{}, o.fail(apperrors.NewAuthError(apperrors.CodeWeakPassword, result.Message, nil))
	}
	if !credentials.ValidateFullName(fullName) {
		return SignUpResult{}, o.fail(apperrors.NewAuthError(apperrors.CodeInvalidInput, credentials.FullNameTooShortMsg, nil))
	}

	user, session, err := o.deps.Sessions.SignUp(ctx, identity.SignUpParams{
		Email:      email,
		Password:   password,
		RedirectTo: o.baseURL + CallbackPath,
		Data:       map[string]any{"full_name": strings.TrimSpace(fullName)},
	})
	if err != nil {
		return SignUpResult{}, o.fail(apperrors.Classify(err))
	}

	if session != nil {
		o.authenticated(session)
		return SignUpResult{User: session.User.Clone()}, nil
	}

	o.update(func(s *State) { s.Loading = false })
	return SignUpResult{User: user, ConfirmationRequired: true}, nil
}

// SignInWithGoogle returns the URL the browser must be sent to. The session
// is resolved later by CompleteOAuth.
func (o *Orchestrator) SignInWithGoogle(ctx context.Context) (string, error) {
	o.begin()

	redirectURL, err := o.deps.Sessions.OAuthURL(ctx, users.AuthProviderGoogle, o.baseURL+CallbackPath)
	if err != nil {
		return "", o.fail(apperrors.Classify(err))
	}
	o.update(func(s *State) { s.Loading = false })
	return redirectURL, nil
}

// CompleteOAuth exchanges the code from the OAuth callback for a session.
func (o *Orchestrator) CompleteOAuth(ctx context.Context, code string) error {
	o.begin()

	if code == "" {
		return o.fail(apperrors.NewAuthError(apperrors.CodeInvalidInput, "Missing authorization code", nil))
	}
	session, err := o.deps.Sessions.ExchangeCode(ctx, code)
	if err != nil {
		return o.fail(apperrors.Classify(err))
	}
	if session == nil {
		return o.fail(apperrors.NewAuthError(apperrors.CodeSessionExpired, "", nil))
	}
	o.authenticated(session)
	return nil
}

// Logout always clears the local user and session, even when the provider
// call fails.
func (o *Orchestrator) Logout(ctx context.Context) error {
	o.begin()

	if err := o.deps.Sessions.SignOut(ctx); err != nil {
		log.Err(err).Msg("provider sign out failed, clearing local session anyway")
	}

	o.mu.Lock()
	o.enrichedFor = ""
	o.mu.Unlock()

	o.update(func(s *State) {
		s.User = nil
		s.Session = nil
		s.Loading = false
		s.Error = nil
	})
	return nil
}

func (o *Orchestrator) ResetPassword(ctx context.Context, email string) error {
	o.begin()

	if strings.TrimSpace(email) == "" {
		return o.fail(apperrors.NewAuthError(apperrors.CodeInvalidInput, "Email is required", nil))
	}
	if !credentials.ValidateEmail(email) {
		return o.fail(apperrors.NewAuthError(apperrors.CodeInvalidEmail, credentials.InvalidEmailMsg, nil))
	}

	if err := o.deps.Sessions.ResetPasswordForEmail(ctx, email, o.baseURL+ResetPasswordPath); err != nil {
		return o.fail(apperrors.Classify(err))
	}
	o.update(func(s *State) { s.Loading = false })
	return nil
}

// UpdatePassword changes the signed in user's password.
func (o *Orchestrator) UpdatePassword(ctx context.Context, newPassword string) error {
	o.begin()

	if !o.State().Authenticated() {
		return o.fail(apperrors.NewAuthError(apperrors.CodeSessionExpired, "", nil))
	}
	if result := credentials.ValidatePassword(newPassword); !result.Valid {
		return o.fail(apperrors.NewAuthError(apperrors.CodeWeakPassword, result.Message, nil))
	}

	if _, err := o.deps.Sessions.UpdatePassword(ctx, newPassword); err != nil {
		return o.fail(apperrors.Classify(err))
	}
	o.update(func(s *State) { s.Loading = false })
	return nil
}

func (o *Orchestrator) ClearError() {
	o.update(func(s *State) { s.Error = nil })
}

// ApplyProfile merges a persisted profile into the current user when the ids match.
func (o *Orchestrator) ApplyProfile(profile *profiles.Profile) {
	o.update(func(s *State) {
		if s.User == nil || profile == nil || s.User.ID != profile.ID {
			return
		}
		profile.ApplyTo(s.User)
		if s.Session != nil {
			profile.ApplyTo(s.Session.User)
		}
	})
}

func (o *Orchestrator) onSessionChanged(event identity.Event, session *sessions.Session) {
	switch event {
	case identity.EventSignedOut:
		o.mu.Lock()
		o.enrichedFor = ""
		o.mu.Unlock()
		o.update(func(s *State) {
			s.User = nil
			s.Session = nil
		})
	default:
		if session == nil {
			return
		}
		o.update(func(s *State) {
			s.User = mergeUser(s.User, session.User)
			s.Session = session
			s.Session.User = s.User.Clone()
		})
		o.enrich(session.User)
	}
}

// mergeUser keeps profile data already loaded for the same account.
func mergeUser(current, incoming *users.User) *users.User {
	merged := incoming.Clone()
	if current == nil || merged == nil || current.ID != merged.ID {
		return merged
	}
	if merged.DisplayName == "" {
		merged.DisplayName = current.DisplayName
	}
	if merged.Bio == "" {
		merged.Bio = current.Bio
	}
	if merged.School == "" {
		merged.School = current.School
	}
	if merged.Program == "" {
		merged.Program = current.Program
	}
	if merged.AvatarURL == "" {
		merged.AvatarURL = current.AvatarURL
	}
	merged.OnboardingCompleted = merged.OnboardingCompleted || current.OnboardingCompleted
	return merged
}

func (o *Orchestrator) authenticated(session *sessions.Session) {
	o.update(func(s *State) {
		s.User = mergeUser(s.User, session.User)
		s.Session = session
		s.Session.User = s.User.Clone()
		s.Loading = false
		s.Error = nil
	})
	o.enrich(session.User)
}

// enrich loads the persisted profile in the background. Failures are logged
// and leave the last known user in place.
func (o *Orchestrator) enrich(user *users.User) {
	if o.deps.Profiles == nil || user == nil {
		return
	}
	o.mu.Lock()
	if o.closed || o.enrichedFor == user.ID {
		o.mu.Unlock()
		return
	}
	o.enrichedFor = user.ID
	o.mu.Unlock()

	userID := user.ID
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), enrichmentTimeout)
		defer cancel()

		profile, err := o.deps.Profiles.Get(ctx, userID)
		if err != nil {
			if !apperrors.Is(err, apperrors.ErrNotFound) {
				log.Warn().Err(err).Str("user_id", userID).Msg("failed to load user profile")
			}
			return
		}
		o.ApplyProfile(profile)
	}()
}

func (o *Orchestrator) begin() {
	o.update(func(s *State) {
		s.Loading = true
		s.Error = nil
	})
}

// fail records err in the state and returns it.
func (o *Orchestrator) fail(err *apperrors.AuthError) error {
	o.update(func(s *State) {
		s.Loading = false
		s.Error = err
	})
	return err
}

// update applies fn and publishes the new state. Nothing is written once the
// orchestrator is closed.
func (o *Orchestrator) update(fn func(s *State)) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.closed {
		return false
	}
	fn(&o.state)
	snapshot := o.state.clone()
	for _, ch := range o.subscribers {
		select {
		case <-ch:
		default:
		}
		ch <- snapshot
	}
	return true
}
