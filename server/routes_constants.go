package server

// Route path constants
// All application routes are defined here to ensure consistency and prevent typos
const (
	// Auth Routes - browser session
	RouteAuthLogin    = "/auth/login"
	RouteAuthSignup   = "/auth/signup"
	RouteAuthLogout   = "/auth/logout"
	RouteAuthGoogle   = "/auth/google"
	RouteAuthCallback = "/auth/callback"
	RouteAuthMe       = "/auth/me"

	// Auth Routes - Password Management
	RouteResetPassword  = "/auth/reset-password"
	RouteUpdatePassword = "/auth/update-password"

	// Onboarding Routes
	RouteOnboarding       = "/onboarding"
	RouteOnboardingStatus = "/onboarding/status"

	// API Routes
	RouteAPIItems    = "/api/items"
	RouteAPIItem     = "/api/items/{id}"
	RouteAPIListings = "/api/listings"
	RouteAPISchools  = "/api/schools"

	// Operational Routes
	RouteHealth  = "/healthz"
	RouteMetrics = "/metrics"

	// Locally stored uploads (memory object store only)
	RouteUploadsPrefix = "/uploads/"
	RouteUploads       = RouteUploadsPrefix + "{key...}"
)
