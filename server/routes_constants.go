package server

// Route path constants
// All application routes are defined here to ensure consistency and prevent typos
const (
	// Auth Routes
	RouteAuthLogin    = "/api/auth/login"
	RouteAuthRegister = "/api/auth/register"
	RouteAuthExchange = "/api/auth/oauth/exchange"
	RouteAuthLogout   = "/api/auth/logout"

	// API Routes
	RouteAPIMe               = "/api/me"
	RouteAPIValidatePassword = "/api/validate-password"
	RouteAPIPreflight        = "/api/{path...}"

	// Admin Routes
	RouteAdminOverview = "/api/admin/overview"

	RouteHealth = "/healthz"
)
