package fakeprovider_test

import (
	"context"
	"net/url"
	"testing"
	"time"

	"github.com/jrsteele09/campus-market/identity"
	"github.com/jrsteele09/campus-market/identity/fakeprovider"
	"github.com/stretchr/testify/require"
)

const secret = "test-secret"

func TestClient_SignUpAndSignIn(t *testing.T) {
	ctx := context.Background()
	dir := fakeprovider.NewDirectory(secret)
	client := dir.NewClient()

	user, session, err := client.SignUp(ctx, identity.SignUpParams{Email: "New@Campus.edu", Password: "Passw0rd!"})
	require.NoError(t, err)
	require.NotNil(t, session)
	require.Equal(t, "new@campus.edu", user.Email)

	_, _, err = client.SignUp(ctx, identity.SignUpParams{Email: "new@campus.edu", Password: "Passw0rd!"})
	var providerErr *identity.Error
	require.ErrorAs(t, err, &providerErr)
	require.Equal(t, "user_already_exists", providerErr.Code)

	other := dir.NewClient()
	_, err = other.SignInWithPassword(ctx, "new@campus.edu", "wrong")
	require.ErrorAs(t, err, &providerErr)
	require.Equal(t, "invalid_credentials", providerErr.Code)

	session, err = other.SignInWithPassword(ctx, "new@campus.edu", "Passw0rd!")
	require.NoError(t, err)

	introspected, err := dir.GetUser(ctx, session.AccessToken)
	require.NoError(t, err)
	require.Equal(t, user.ID, introspected.ID)
}

func TestClient_RequireConfirmation(t *testing.T) {
	ctx := context.Background()
	dir := fakeprovider.NewDirectory(secret, fakeprovider.WithRequireConfirmation(true))
	client := dir.NewClient()

	_, session, err := client.SignUp(ctx, identity.SignUpParams{Email: "a@b.co", Password: "Passw0rd!"})
	require.NoError(t, err)
	require.Nil(t, session)

	_, err = client.SignInWithPassword(ctx, "a@b.co", "Passw0rd!")
	require.Error(t, err)

	dir.ConfirmEmail("a@b.co")
	_, err = client.SignInWithPassword(ctx, "a@b.co", "Passw0rd!")
	require.NoError(t, err)
}

func TestClient_OAuthFlow(t *testing.T) {
	ctx := context.Background()
	dir := fakeprovider.NewDirectory(secret, fakeprovider.WithOAuthEmail("g@campus.edu"))
	client := dir.NewClient()

	authURL, err := client.OAuthURL(ctx, "google", "http://localhost:8080/auth/callback")
	require.NoError(t, err)
	parsed, err := url.Parse(authURL)
	require.NoError(t, err)

	session, err := client.ExchangeCodeForSession(ctx, parsed.Query().Get("code"))
	require.NoError(t, err)
	require.Equal(t, "g@campus.edu", session.User.Email)
	require.Equal(t, "google", session.User.AppMetadata["provider"])

	_, err = client.ExchangeCodeForSession(ctx, parsed.Query().Get("code"))
	require.Error(t, err, "codes are single use")
}

func TestClient_RefreshOnExpiry(t *testing.T) {
	ctx := context.Background()
	now := time.Unix(1_700_000_000, 0)
	dir := fakeprovider.NewDirectory(secret,
		fakeprovider.WithNowTime(func() time.Time { return now }),
		fakeprovider.WithTokenTTL(time.Minute),
	)
	_, err := dir.AddUser("a@b.co", "Passw0rd!", nil)
	require.NoError(t, err)

	client := dir.NewClient()
	first, err := client.SignInWithPassword(ctx, "a@b.co", "Passw0rd!")
	require.NoError(t, err)

	now = now.Add(2 * time.Minute)
	second, err := client.GetSession(ctx)
	require.NoError(t, err)
	require.NotEqual(t, first.AccessToken, second.AccessToken)
	require.NotEqual(t, first.RefreshToken, second.RefreshToken)
}

func TestClient_FailureInjection(t *testing.T) {
	ctx := context.Background()
	dir := fakeprovider.NewDirectory(secret)
	client := dir.NewClient()

	client.Fail(fakeprovider.OpSignOut, context.Canceled)
	require.ErrorIs(t, client.SignOut(ctx), context.Canceled)
	client.Fail(fakeprovider.OpSignOut, nil)
	require.NoError(t, client.SignOut(ctx))

	client.Delay(fakeprovider.OpGetSession, time.Second)
	timeout, cancel := context.WithTimeout(ctx, 10*time.Millisecond)
	defer cancel()
	_, err := client.GetSession(timeout)
	require.ErrorIs(t, err, context.DeadlineExceeded)
}
