package auth_test

import (
	"context"
	"errors"
	"net/url"
	"sync"
	"testing"
	"time"

	"github.com/jrsteele09/campus-market/auth"
	"github.com/jrsteele09/campus-market/identity"
	"github.com/jrsteele09/campus-market/identity/fakeprovider"
	apperrors "github.com/jrsteele09/campus-market/internal/errors"
	"github.com/jrsteele09/campus-market/profiles"
	profilerepofake "github.com/jrsteele09/campus-market/profiles/repofake"
	"github.com/jrsteele09/campus-market/sessions"
	"github.com/jrsteele09/campus-market/throttle"
	"github.com/jrsteele09/campus-market/users"
	"github.com/stretchr/testify/require"
)

const (
	testUserEmail    = "student@campus.edu"
	testUserPassword = "Passw0rd1"
	testUserName     = "Sam Student"
	testBaseURL      = "http://market.test"
)

// testFixture holds all test dependencies
type testFixture struct {
	dir          *fakeprovider.Directory
	provider     *fakeprovider.Client
	adapter      *sessions.Adapter
	throttle     *throttle.Throttle
	profiles     *profilerepofake.FakeProfileRepo
	orchestrator *auth.Orchestrator
	userID       string
}

type fixtureConfig struct {
	directoryOptions []fakeprovider.DirectoryOption
	options          []auth.Option
	skipInit         bool
}

func setupTestFixture(t *testing.T, configs ...func(*fixtureConfig)) *testFixture {
	t.Helper()

	cfg := &fixtureConfig{}
	for _, c := range configs {
		c(cfg)
	}

	dir := fakeprovider.NewDirectory("test-secret", cfg.directoryOptions...)
	user, err := dir.AddUser(testUserEmail, testUserPassword, map[string]any{"full_name": testUserName})
	require.NoError(t, err)

	provider := dir.NewClient()
	adapter, err := sessions.NewAdapter(provider)
	require.NoError(t, err)

	now := time.Date(2024, 9, 1, 9, 0, 0, 0, time.UTC)
	th := throttle.New(throttle.WithNowFunc(func() time.Time { return now }))
	profileRepo := profilerepofake.NewFakeProfileRepo()

	options := append([]auth.Option{auth.WithBaseURL(testBaseURL)}, cfg.options...)
	o, err := auth.NewOrchestrator(auth.Dependencies{
		Sessions: adapter,
		Limiter:  th,
		Profiles: profileRepo,
	}, options...)
	require.NoError(t, err)
	t.Cleanup(o.Close)

	if !cfg.skipInit {
		o.Init(context.Background())
	}

	return &testFixture{
		dir:          dir,
		provider:     provider,
		adapter:      adapter,
		throttle:     th,
		profiles:     profileRepo,
		orchestrator: o,
		userID:       user.ID,
	}
}

func requireAuthError(t *testing.T, err error, code apperrors.Code) *apperrors.AuthError {
	t.Helper()
	require.Error(t, err)
	var authErr *apperrors.AuthError
	require.ErrorAs(t, err, &authErr)
	require.Equal(t, code, authErr.Code)
	return authErr
}

func TestNewOrchestrator_RequiresDependencies(t *testing.T) {
	_, err := auth.NewOrchestrator(auth.Dependencies{})
	require.Error(t, err)

	adapter, err := sessions.NewAdapter(fakeprovider.NewDirectory("s").NewClient())
	require.NoError(t, err)
	_, err = auth.NewOrchestrator(auth.Dependencies{Sessions: adapter})
	require.Error(t, err)
}

func TestOrchestrator_Login(t *testing.T) {
	ctx := context.Background()

	t.Run("success", func(t *testing.T) {
		f := setupTestFixture(t)
		require.NoError(t, f.orchestrator.Login(ctx, testUserEmail, testUserPassword))

		state := f.orchestrator.State()
		require.True(t, state.Authenticated())
		require.False(t, state.Loading)
		require.Nil(t, state.Error)
		require.Equal(t, f.userID, state.User.ID)
		require.Equal(t, testUserName, state.User.FullName)
		require.Equal(t, users.AuthProviderEmail, state.User.Provider)
		require.NotEmpty(t, state.Session.AccessToken)

		_, tracked := f.throttle.Get(testUserEmail)
		require.False(t, tracked, "successful login resets the throttle")
	})

	t.Run("empty fields", func(t *testing.T) {
		f := setupTestFixture(t)
		requireAuthError(t, f.orchestrator.Login(ctx, "", testUserPassword), apperrors.CodeInvalidInput)
		requireAuthError(t, f.orchestrator.Login(ctx, testUserEmail, ""), apperrors.CodeInvalidInput)
		require.Zero(t, f.throttle.Len(), "validation happens before throttling")

		state := f.orchestrator.State()
		require.False(t, state.Loading)
		require.Equal(t, apperrors.CodeInvalidInput, state.Error.Code)
	})

	t.Run("malformed email", func(t *testing.T) {
		f := setupTestFixture(t)
		authErr := requireAuthError(t, f.orchestrator.Login(ctx, "not-an-email", testUserPassword), apperrors.CodeInvalidEmail)
		require.Equal(t, "Please enter a valid email address", authErr.Message)
		require.Zero(t, f.throttle.Len())
	})

	t.Run("wrong password", func(t *testing.T) {
		f := setupTestFixture(t)
		requireAuthError(t, f.orchestrator.Login(ctx, testUserEmail, "WrongPass1"), apperrors.CodeInvalidCredentials)

		state := f.orchestrator.State()
		require.Nil(t, state.User)
		require.Nil(t, state.Session)
		require.Equal(t, apperrors.CodeInvalidCredentials, state.Error.Code)
	})

	t.Run("locked after five failures", func(t *testing.T) {
		f := setupTestFixture(t)
		for i := 0; i < 5; i++ {
			requireAuthError(t, f.orchestrator.Login(ctx, testUserEmail, "WrongPass1"), apperrors.CodeInvalidCredentials)
		}

		authErr := requireAuthError(t, f.orchestrator.Login(ctx, testUserEmail, testUserPassword), apperrors.CodeRateLimitExceeded)
		require.Equal(t, "Too many login attempts. Please try again in 1800 seconds.", authErr.Message)
		require.Nil(t, f.orchestrator.State().User, "correct credentials are not checked while locked")
	})

	t.Run("identifier is case insensitive", func(t *testing.T) {
		f := setupTestFixture(t)
		for i := 0; i < 5; i++ {
			_ = f.orchestrator.Login(ctx, "Student@Campus.edu", "WrongPass1")
		}
		requireAuthError(t, f.orchestrator.Login(ctx, testUserEmail, testUserPassword), apperrors.CodeRateLimitExceeded)
	})

	t.Run("provider outage is reported as a classified error", func(t *testing.T) {
		f := setupTestFixture(t)
		f.provider.Fail(fakeprovider.OpSignIn, &url.Error{Op: "Post", URL: "https://x", Err: errors.New("connection refused")})
		requireAuthError(t, f.orchestrator.Login(ctx, testUserEmail, testUserPassword), apperrors.CodeNetworkError)
	})
}

func TestOrchestrator_SignUp(t *testing.T) {
	ctx := context.Background()

	t.Run("confirmation required leaves state signed out", func(t *testing.T) {
		f := setupTestFixture(t, func(c *fixtureConfig) {
			c.directoryOptions = []fakeprovider.DirectoryOption{fakeprovider.WithRequireConfirmation(true)}
		})
		result, err := f.orchestrator.SignUp(ctx, "new@campus.edu", "NewPassw0rd", "New Student")
		require.NoError(t, err)
		require.True(t, result.ConfirmationRequired)
		require.Equal(t, "new@campus.edu", result.User.Email)
		require.Equal(t, "New Student", result.User.FullName)

		state := f.orchestrator.State()
		require.False(t, state.Authenticated())
		require.False(t, state.Loading)
		require.Nil(t, state.Error)
	})

	t.Run("issued session signs the user in", func(t *testing.T) {
		f := setupTestFixture(t)
		result, err := f.orchestrator.SignUp(ctx, "new@campus.edu", "NewPassw0rd", "New Student")
		require.NoError(t, err)
		require.False(t, result.ConfirmationRequired)
		require.True(t, f.orchestrator.State().Authenticated())
	})

	t.Run("validation order", func(t *testing.T) {
		f := setupTestFixture(t)
		_, err := f.orchestrator.SignUp(ctx, "bad", "short", "X")
		requireAuthError(t, err, apperrors.CodeInvalidEmail)

		_, err = f.orchestrator.SignUp(ctx, "new@campus.edu", "alllowercase1", "X")
		authErr := requireAuthError(t, err, apperrors.CodeWeakPassword)
		require.Equal(t, "Password must contain at least one uppercase letter", authErr.Message)

		_, err = f.orchestrator.SignUp(ctx, "new@campus.edu", "NewPassw0rd", "X")
		authErr = requireAuthError(t, err, apperrors.CodeInvalidInput)
		require.Equal(t, "Full name must be at least 2 characters long", authErr.Message)
	})

	t.Run("existing account", func(t *testing.T) {
		f := setupTestFixture(t)
		_, err := f.orchestrator.SignUp(ctx, testUserEmail, "NewPassw0rd", "Someone")
		requireAuthError(t, err, apperrors.CodeUserAlreadyExists)
	})
}

func TestOrchestrator_Logout(t *testing.T) {
	ctx := context.Background()

	t.Run("clears state", func(t *testing.T) {
		f := setupTestFixture(t)
		require.NoError(t, f.orchestrator.Login(ctx, testUserEmail, testUserPassword))
		require.NoError(t, f.orchestrator.Logout(ctx))

		state := f.orchestrator.State()
		require.Nil(t, state.User)
		require.Nil(t, state.Session)
		require.False(t, state.Loading)
	})

	t.Run("clears state even when the provider fails", func(t *testing.T) {
		f := setupTestFixture(t)
		require.NoError(t, f.orchestrator.Login(ctx, testUserEmail, testUserPassword))
		f.provider.Fail(fakeprovider.OpSignOut, errors.New("provider down"))

		require.NoError(t, f.orchestrator.Logout(ctx))
		state := f.orchestrator.State()
		require.Nil(t, state.User)
		require.Nil(t, state.Session)
		require.Nil(t, state.Error)
	})
}

func TestOrchestrator_ResetPassword(t *testing.T) {
	ctx := context.Background()
	f := setupTestFixture(t)

	requireAuthError(t, f.orchestrator.ResetPassword(ctx, ""), apperrors.CodeInvalidInput)
	requireAuthError(t, f.orchestrator.ResetPassword(ctx, "nope"), apperrors.CodeInvalidEmail)
	require.Empty(t, f.dir.PasswordResets())

	require.NoError(t, f.orchestrator.ResetPassword(ctx, testUserEmail))
	require.Equal(t, []string{testUserEmail}, f.dir.PasswordResets())
	require.Nil(t, f.orchestrator.State().Error)
}

func TestOrchestrator_UpdatePassword(t *testing.T) {
	ctx := context.Background()
	f := setupTestFixture(t)

	requireAuthError(t, f.orchestrator.UpdatePassword(ctx, "N3wPassword"), apperrors.CodeSessionExpired)

	require.NoError(t, f.orchestrator.Login(ctx, testUserEmail, testUserPassword))
	requireAuthError(t, f.orchestrator.UpdatePassword(ctx, "weak"), apperrors.CodeWeakPassword)
	require.NoError(t, f.orchestrator.UpdatePassword(ctx, "N3wPassword"))

	require.NoError(t, f.orchestrator.Logout(ctx))
	require.NoError(t, f.orchestrator.Login(ctx, testUserEmail, "N3wPassword"))
}

func TestOrchestrator_ClearError(t *testing.T) {
	f := setupTestFixture(t)
	_ = f.orchestrator.Login(context.Background(), "", "")
	require.NotNil(t, f.orchestrator.State().Error)
	f.orchestrator.ClearError()
	require.Nil(t, f.orchestrator.State().Error)
}

func TestOrchestrator_GoogleSignIn(t *testing.T) {
	ctx := context.Background()
	f := setupTestFixture(t, func(c *fixtureConfig) {
		c.directoryOptions = []fakeprovider.DirectoryOption{fakeprovider.WithOAuthEmail("g@campus.edu")}
	})

	redirect, err := f.orchestrator.SignInWithGoogle(ctx)
	require.NoError(t, err)
	require.False(t, f.orchestrator.State().Authenticated(), "nothing is resolved before the callback")

	parsed, err := url.Parse(redirect)
	require.NoError(t, err)
	require.Equal(t, "/auth/callback", parsed.Path)

	requireAuthError(t, f.orchestrator.CompleteOAuth(ctx, ""), apperrors.CodeInvalidInput)
	require.NoError(t, f.orchestrator.CompleteOAuth(ctx, parsed.Query().Get("code")))

	state := f.orchestrator.State()
	require.True(t, state.Authenticated())
	require.Equal(t, users.AuthProviderGoogle, state.User.Provider)
	require.Equal(t, "g@campus.edu", state.User.Email)
}

func TestOrchestrator_Subscribe(t *testing.T) {
	f := setupTestFixture(t)
	states, unsubscribe := f.orchestrator.Subscribe()

	initial := <-states
	require.True(t, initial.Initialized)
	require.False(t, initial.Authenticated())

	require.NoError(t, f.orchestrator.Login(context.Background(), testUserEmail, testUserPassword))
	latest := <-states
	require.True(t, latest.Authenticated(), "channel holds the latest state")

	unsubscribe()
	unsubscribe()
	_, open := <-states
	require.False(t, open)
}

func TestOrchestrator_ProviderEvents(t *testing.T) {
	ctx := context.Background()
	f := setupTestFixture(t)
	require.NoError(t, f.orchestrator.Login(ctx, testUserEmail, testUserPassword))

	session, err := f.provider.RefreshSession(ctx)
	require.NoError(t, err)
	require.Equal(t, session.AccessToken, f.orchestrator.State().Session.AccessToken, "refresh events replace the session")

	f.provider.Emit(identity.EventSignedOut, nil)
	state := f.orchestrator.State()
	require.Nil(t, state.User)
	require.Nil(t, state.Session)
}

func TestOrchestrator_Init(t *testing.T) {
	t.Run("restores an existing provider session", func(t *testing.T) {
		f := setupTestFixture(t, func(c *fixtureConfig) { c.skipInit = true })
		_, err := f.provider.SignInWithPassword(context.Background(), testUserEmail, testUserPassword)
		require.NoError(t, err)

		f.orchestrator.Init(context.Background())
		state := f.orchestrator.State()
		require.True(t, state.Initialized)
		require.True(t, state.Authenticated())
		require.True(t, f.adapter.Subscribed())
	})

	t.Run("times out and proceeds signed out", func(t *testing.T) {
		f := setupTestFixture(t, func(c *fixtureConfig) {
			c.skipInit = true
			c.options = []auth.Option{auth.WithSessionInitTimeout(20 * time.Millisecond)}
		})
		f.provider.Delay(fakeprovider.OpGetSession, 5*time.Second)

		start := time.Now()
		f.orchestrator.Init(context.Background())
		require.Less(t, time.Since(start), 2*time.Second)

		state := f.orchestrator.State()
		require.True(t, state.Initialized)
		require.False(t, state.Loading)
		require.False(t, state.Authenticated())
	})

	t.Run("only subscribes once", func(t *testing.T) {
		f := setupTestFixture(t)
		f.orchestrator.Init(context.Background())
		require.Equal(t, 1, f.provider.Listeners())
	})
}

func TestOrchestrator_CloseDiscardsLateResults(t *testing.T) {
	f := setupTestFixture(t)
	f.provider.Delay(fakeprovider.OpSignIn, 100*time.Millisecond)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		_ = f.orchestrator.Login(context.Background(), testUserEmail, testUserPassword)
	}()

	require.Eventually(t, func() bool { return f.orchestrator.State().Loading }, time.Second, time.Millisecond)
	f.orchestrator.Close()
	wg.Wait()

	require.True(t, f.orchestrator.Closed())
	require.Nil(t, f.orchestrator.State().User)
	require.Zero(t, f.provider.Listeners(), "close tears down the session subscription")

	states, _ := f.orchestrator.Subscribe()
	_, open := <-states
	require.False(t, open)
}

func TestOrchestrator_ProfileEnrichment(t *testing.T) {
	ctx := context.Background()

	t.Run("merges the persisted profile", func(t *testing.T) {
		f := setupTestFixture(t)
		require.NoError(t, f.profiles.Upsert(ctx, &profiles.Profile{
			ID:                  f.userID,
			DisplayName:         "Sammy",
			School:              "North Campus",
			OnboardingCompleted: true,
		}))

		require.NoError(t, f.orchestrator.Login(ctx, testUserEmail, testUserPassword))
		require.Eventually(t, func() bool {
			user := f.orchestrator.State().User
			return user != nil && user.DisplayName == "Sammy" && user.OnboardingCompleted
		}, time.Second, 5*time.Millisecond)
		require.Equal(t, "North Campus", f.orchestrator.State().User.School)
	})

	t.Run("failures keep the last known user", func(t *testing.T) {
		f := setupTestFixture(t)
		f.profiles.SetError(errors.New("db down"))

		require.NoError(t, f.orchestrator.Login(ctx, testUserEmail, testUserPassword))
		require.Never(t, func() bool {
			state := f.orchestrator.State()
			return state.User == nil || state.Error != nil
		}, 50*time.Millisecond, 5*time.Millisecond)
	})
}
