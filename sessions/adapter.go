package sessions

import (
	"context"
	"sync"

	"github.com/jrsteele09/campus-market/identity"
	"github.com/jrsteele09/campus-market/users"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

var ErrAlreadySubscribed = errors.New("session changes are already subscribed")

// Handler receives mapped session-changed events. session is nil on sign out.
type Handler func(event identity.Event, session *Session)

// Subscription cancels a Subscribe registration. Unsubscribe is idempotent.
type Subscription interface {
	Unsubscribe()
}

// Adapter wraps the identity provider and converts its payloads into local
// User and Session values.
type Adapter struct {
	provider identity.Provider

	mu  sync.Mutex
	sub *adapterSubscription
}

func NewAdapter(provider identity.Provider) (*Adapter, error) {
	if provider == nil {
		return nil, errors.New("[NewAdapter] provider is required")
	}
	return &Adapter{provider: provider}, nil
}

// GetCurrentSession returns nil on any provider failure.
func (a *Adapter) GetCurrentSession(ctx context.Context) *Session {
	session, err := a.provider.GetSession(ctx)
	if err != nil {
		log.Err(err).Msg("failed to get current session")
		return nil
	}
	return MapSession(session)
}

// GetCurrentUser returns nil on any provider failure.
func (a *Adapter) GetCurrentUser(ctx context.Context) *users.User {
	session := a.GetCurrentSession(ctx)
	if session == nil {
		return nil
	}
	return session.User
}

func (a *Adapter) SignInWithPassword(ctx context.Context, email, password string) (*Session, error) {
	session, err := a.provider.SignInWithPassword(ctx, email, password)
	if err != nil {
		return nil, err
	}
	mapped := MapSession(session)
	if mapped == nil {
		return nil, errors.New("[Adapter.SignInWithPassword] provider returned no session")
	}
	return mapped, nil
}

// SignUp returns a nil session when the provider requires email confirmation.
func (a *Adapter) SignUp(ctx context.Context, params identity.SignUpParams) (*users.User, *Session, error) {
	user, session, err := a.provider.SignUp(ctx, params)
	if err != nil {
		return nil, nil, err
	}
	return MapUser(user), MapSession(session), nil
}

func (a *Adapter) SignOut(ctx context.Context) error {
	return a.provider.SignOut(ctx)
}

func (a *Adapter) ResetPasswordForEmail(ctx context.Context, email, redirectTo string) error {
	return a.provider.ResetPasswordForEmail(ctx, email, redirectTo)
}

func (a *Adapter) UpdatePassword(ctx context.Context, password string) (*users.User, error) {
	user, err := a.provider.UpdatePassword(ctx, password)
	if err != nil {
		return nil, err
	}
	return MapUser(user), nil
}

func (a *Adapter) OAuthURL(ctx context.Context, provider users.AuthProvider, redirectTo string) (string, error) {
	return a.provider.OAuthURL(ctx, string(provider), redirectTo)
}

func (a *Adapter) ExchangeCode(ctx context.Context, code string) (*Session, error) {
	session, err := a.provider.ExchangeCodeForSession(ctx, code)
	if err != nil {
		return nil, err
	}
	return MapSession(session), nil
}

// Subscribe registers handler for session changes. Only one subscription may
// be active per adapter.
func (a *Adapter) Subscribe(handler Handler) (Subscription, error) {
	if handler == nil {
		return nil, errors.New("[Adapter.Subscribe] handler is required")
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	if a.sub != nil {
		return nil, ErrAlreadySubscribed
	}

	sub := &adapterSubscription{adapter: a}
	sub.inner = a.provider.OnAuthStateChange(func(event identity.Event, session *identity.Session) {
		handler(event, MapSession(session))
	})
	a.sub = sub
	return sub, nil
}

// Close tears down any active subscription.
func (a *Adapter) Close() {
	a.mu.Lock()
	sub := a.sub
	a.mu.Unlock()
	if sub != nil {
		sub.Unsubscribe()
	}
}

func (a *Adapter) Subscribed() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.sub != nil
}

type adapterSubscription struct {
	once    sync.Once
	adapter *Adapter
	inner   identity.Subscription
}

func (s *adapterSubscription) Unsubscribe() {
	s.once.Do(func() {
		s.inner.Unsubscribe()
		s.adapter.mu.Lock()
		if s.adapter.sub == s {
			s.adapter.sub = nil
		}
		s.adapter.mu.Unlock()
	})
}
