package usercontext

// Shared Locals/session keys used across controllers and middlewares
const (
	AuthKey          = "authenticated"
	KeyUserID        = "user_id"
	KeyUsername      = "username"
	KeyIsAdmin       = "isAdmin"
	KeyFromProtected = "from_protected"
	// KeyUserPlan caches the effective plan in the session so request
	// middleware can skip a user lookup. Invalidated by writing a fresh
	// value after login and after every entitlement resync.
	KeyUserPlan = "user_plan"
)
