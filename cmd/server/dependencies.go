package main

import (
	"context"
	"crypto/rand"
	"database/sql"
	"encoding/hex"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/jrsteele09/campus-market/identity"
	"github.com/jrsteele09/campus-market/identity/fakeprovider"
	"github.com/jrsteele09/campus-market/identity/gotrue"
	"github.com/jrsteele09/campus-market/internal/config"
	"github.com/jrsteele09/campus-market/internal/migrations"
	"github.com/jrsteele09/campus-market/listings"
	listingsfake "github.com/jrsteele09/campus-market/listings/repofake"
	"github.com/jrsteele09/campus-market/profiles"
	profilesfake "github.com/jrsteele09/campus-market/profiles/repofake"
	"github.com/jrsteele09/campus-market/server"
	"github.com/jrsteele09/campus-market/server/loginsession"
	"github.com/jrsteele09/campus-market/storage"
	"github.com/jrsteele09/campus-market/throttle"
	"github.com/jrsteele09/campus-market/token"
	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

const (
	revocationCleanupInterval = 10 * time.Minute
	loginSessionSweepInterval = 10 * time.Minute
	// signs tokens minted by the in-memory provider when MARKET_JWT_SECRET is unset
	devJWTSecret = "campus-market-dev-jwt-secret-at-least-32-characters"
)

// buildDependencies selects the backing implementations from the
// configuration. The returned cleanup releases connections and stops the
// background sweepers.
func buildDependencies(ctx context.Context, c config.Config) (server.Dependencies, func(), error) {
	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}
	fail := func(err error) (server.Dependencies, func(), error) {
		cleanup()
		return server.Dependencies{}, func() {}, err
	}

	profileRepo, listingRepo, closeDB, err := buildRepositories(ctx, c)
	if err != nil {
		return fail(err)
	}
	closers = append(closers, closeDB)

	store, uploads, err := buildObjectStore(ctx, c)
	if err != nil {
		return fail(err)
	}

	listingService, err := listings.NewService(listingRepo, store)
	if err != nil {
		return fail(err)
	}

	limiter, closeLimiter, err := buildLimiter(ctx, c)
	if err != nil {
		return fail(err)
	}
	closers = append(closers, closeLimiter)

	providers, introspector, err := buildProviders(c)
	if err != nil {
		return fail(err)
	}

	checker, err := buildVerifier(ctx, c, introspector)
	if err != nil {
		return fail(err)
	}
	checker.StartCleanup(ctx, revocationCleanupInterval)

	loginSessions := loginsession.NewInMemoryLoginSessionRepo(loginsession.WithMaxIdle(c.GetMaxSessionAge()))
	loginSessions.StartSweeper(ctx, loginSessionSweepInterval)

	secret, err := sessionSecret(c)
	if err != nil {
		return fail(err)
	}

	return server.Dependencies{
		Providers:     providers,
		Limiter:       limiter,
		Profiles:      profileRepo,
		Listings:      listingService,
		Verifier:      checker,
		Revoker:       checker,
		LoginSessions: loginSessions,
		CookieStore:   server.NewCookieStore(secret, int(c.GetMaxSessionAge().Seconds()), c.GetSecureCookies()),
		Uploads:       uploads,
	}, cleanup, nil
}

// buildRepositories opens Postgres and applies migrations when DATABASE_URL is
// set, otherwise it returns the in-memory repositories.
func buildRepositories(ctx context.Context, c config.Config) (profiles.Repo, listings.Repo, func(), error) {
	if c.GetDatabaseURL() == "" {
		log.Warn().Msg("DATABASE_URL not set, using in-memory repositories")
		profileRepo := profilesfake.NewFakeProfileRepo()
		return profileRepo, listingsfake.NewFakeListingRepo(profileRepo), func() {}, nil
	}

	db, err := sql.Open("pgx", c.GetDatabaseURL())
	if err != nil {
		return nil, nil, nil, errors.Wrap(err, "[buildRepositories] open database")
	}
	closeDB := func() {
		if err := db.Close(); err != nil {
			log.Err(err).Msg("failed to close database")
		}
	}
	if err := db.PingContext(ctx); err != nil {
		closeDB()
		return nil, nil, nil, errors.Wrap(err, "[buildRepositories] ping database")
	}
	if err := migrations.Run(ctx, db); err != nil {
		closeDB()
		return nil, nil, nil, err
	}
	return profiles.NewPostgresRepository(db), listings.NewPostgresRepository(db), closeDB, nil
}

// buildObjectStore returns the listing image store. The MemoryStore is also
// returned so the server can serve its objects under /uploads.
func buildObjectStore(ctx context.Context, c config.Config) (storage.ObjectStore, *storage.MemoryStore, error) {
	if c.GetS3Bucket() == "" {
		memory := storage.NewMemoryStore(c.GetBaseURL() + server.RouteUploadsPrefix)
		return memory, memory, nil
	}
	s3Store, err := storage.NewS3Store(ctx, storage.S3Config{
		Bucket:        c.GetS3Bucket(),
		Region:        c.GetS3Region(),
		Endpoint:      c.GetS3Endpoint(),
		AccessKey:     c.GetS3AccessKey(),
		SecretKey:     c.GetS3SecretKey(),
		PublicBaseURL: c.GetS3PublicURL(),
		UsePathStyle:  c.GetS3UsePathStyle(),
	})
	if err != nil {
		return nil, nil, err
	}
	return s3Store, nil, nil
}

func buildLimiter(ctx context.Context, c config.Config) (throttle.Limiter, func(), error) {
	options := []throttle.Option{
		throttle.WithMaxAttempts(c.GetMaxAttempts()),
		throttle.WithWindow(c.GetAttemptWindow()),
		throttle.WithLockout(c.GetLockoutDuration()),
		throttle.WithSweepInterval(c.GetThrottleSweepInterval()),
	}

	if c.GetRedisAddr() != "" {
		client := redis.NewClient(&redis.Options{Addr: c.GetRedisAddr()})
		closeClient := func() {
			if err := client.Close(); err != nil {
				log.Err(err).Msg("failed to close redis client")
			}
		}
		if err := client.Ping(ctx).Err(); err != nil {
			closeClient()
			return nil, nil, errors.Wrap(err, "[buildLimiter] ping redis")
		}
		limiter, err := throttle.NewRedis(client, options...)
		if err != nil {
			closeClient()
			return nil, nil, err
		}
		return limiter, closeClient, nil
	}

	limiter := throttle.New(options...)
	limiter.StartSweeper(ctx)
	return limiter, limiter.Close, nil
}

// buildProviders returns the per-browser provider factory and the server-side
// introspector used to verify tokens remotely.
func buildProviders(c config.Config) (server.ProviderFactory, identity.TokenIntrospector, error) {
	if c.GetIdentityProvider() == config.IdentityProviderGoTrue {
		factory := func() (identity.Provider, error) {
			return gotrue.New(c.GetProjectURL(), c.GetAnonKey())
		}
		introspectKey := c.GetServiceRoleKey()
		if introspectKey == "" {
			introspectKey = c.GetAnonKey()
		}
		introspector, err := gotrue.New(c.GetProjectURL(), introspectKey)
		if err != nil {
			return nil, nil, err
		}
		return factory, introspector, nil
	}

	log.Warn().Msg("using the in-memory identity provider")
	dir := fakeprovider.NewDirectory(jwtSecret(c))
	factory := func() (identity.Provider, error) {
		return dir.NewClient(), nil
	}
	return factory, dir, nil
}

// buildVerifier prefers local verification: the shared secret, then the
// issuer's key set, then asking the provider.
func buildVerifier(ctx context.Context, c config.Config, introspector identity.TokenIntrospector) (*token.RevocationChecker, error) {
	var (
		verifier token.Verifier
		err      error
	)
	switch {
	case c.GetJWTSecret() != "" || c.GetIdentityProvider() == config.IdentityProviderMemory:
		verifier, err = token.NewHMACVerifier(jwtSecret(c), token.WithAudience(c.GetJWTAudience()))
	case c.GetJWKSIssuer() != "":
		verifier, err = token.NewJWKSVerifier(ctx, c.GetJWKSIssuer(), c.GetJWTAudience())
	default:
		verifier, err = token.NewRemoteVerifier(introspector)
	}
	if err != nil {
		return nil, err
	}
	return token.NewRevocationChecker(verifier, token.NewInMemoryRevokedTokenCache(nil))
}

func jwtSecret(c config.Config) string {
	if c.GetJWTSecret() != "" {
		return c.GetJWTSecret()
	}
	return devJWTSecret
}

// sessionSecret signs the browser session cookie. DEV without SESSION_SECRET
// gets a random key, so browser sessions do not survive a restart.
func sessionSecret(c config.Config) (string, error) {
	if c.GetSessionSecret() != "" {
		return c.GetSessionSecret(), nil
	}
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", errors.Wrap(err, "[sessionSecret] generate key")
	}
	log.Warn().Msg("SESSION_SECRET not set, generated a temporary key")
	return hex.EncodeToString(buf), nil
}
