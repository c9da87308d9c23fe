package server

import (
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func (s *Server) initRoutes() {
	// AUTH (browser session)
	s.RegisterRouteHandler("POST "+RouteAuthLogin, ChainMiddleware(s.LoginHandler(), s.BrowserMiddleware()...))
	s.RegisterRouteHandler("POST "+RouteAuthSignup, ChainMiddleware(s.SignupHandler(), s.BrowserMiddleware()...))
	s.RegisterRouteHandler("POST "+RouteAuthLogout, ChainMiddleware(s.LogoutHandler(), s.BrowserMiddleware()...))
	s.RegisterRouteHandler("GET "+RouteAuthGoogle, ChainMiddleware(s.GoogleSignInHandler(), s.BrowserMiddleware()...))
	s.RegisterRouteHandler("GET "+RouteAuthCallback, ChainMiddleware(s.OAuthCallbackHandler(), s.BrowserMiddleware()...))
	s.RegisterRouteHandler("GET "+RouteAuthMe, ChainMiddleware(s.MeHandler(), s.BrowserMiddleware()...))

	// PASSWORDS
	s.RegisterRouteHandler("POST "+RouteResetPassword, ChainMiddleware(s.ResetPasswordHandler(), s.BrowserMiddleware()...))
	s.RegisterRouteHandler("GET "+RouteResetPassword, ChainMiddleware(s.RecoveryLinkHandler(), s.BrowserMiddleware()...))
	s.RegisterRouteHandler("POST "+RouteUpdatePassword, ChainMiddleware(s.UpdatePasswordHandler(), s.BrowserMiddleware()...))

	// ONBOARDING
	s.RegisterRouteHandler("GET "+RouteOnboardingStatus, ChainMiddleware(s.OnboardingStatusHandler(), s.BrowserMiddleware()...))
	s.RegisterRouteHandler("POST "+RouteOnboarding, ChainMiddleware(s.CompleteOnboardingHandler(), s.BrowserMiddleware()...))

	// API routes
	s.RegisterRouteHandler("GET "+RouteAPIItems, ChainMiddleware(s.ListItemsHandler(), s.APIMiddleware()...))
	s.RegisterRouteHandler("GET "+RouteAPIItem, ChainMiddleware(s.GetItemHandler(), s.APIMiddleware()...))
	s.RegisterRouteHandler("GET "+RouteAPISchools, ChainMiddleware(s.ListSchoolsHandler(), s.APIMiddleware()...))
	s.RegisterRouteHandler("POST "+RouteAPIListings, ChainMiddleware(s.CreateListingHandler(), s.APIMiddleware(s.RequireAuth())...))

	// CORS preflight for every route
	s.RegisterRouteHandler("OPTIONS /", ChainMiddleware(s.PreflightHandler(), s.APIMiddleware()...))

	if s.uploads != nil {
		s.RegisterRouteHandler("GET "+RouteUploads, ChainMiddleware(s.UploadHandler(), s.APIMiddleware()...))
	}

	s.RegisterRouteFunc("GET "+RouteHealth, s.HealthHandler())
	s.RegisterRouteHandler("GET "+RouteMetrics, promhttp.Handler())
}
