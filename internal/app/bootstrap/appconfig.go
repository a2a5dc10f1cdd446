// internal/app/bootstrap/appconfig.go
package bootstrap

import "time"

// AppConfig holds topaz-specific configuration.
//
// WAFFLE's CoreConfig covers the framework settings (ports, TLS, logging,
// CORS, body limits). Everything here is loaded in LoadConfig and handed to
// the remaining lifecycle hooks.
type AppConfig struct {
	// MongoDB connection configuration
	MongoURI      string // MongoDB connection string (e.g., mongodb://localhost:27017)
	MongoDatabase string // Database name within MongoDB

	// Session cookie configuration
	SessionKey    string // Secret key for signing session cookies (must be strong in production)
	SessionName   string // Cookie name for sessions (default: topaz-session)
	SessionDomain string // Cookie domain (blank means current host)

	// Shared HS256 secret of the auth service that issues sign-in tokens
	JWTSecret string

	// Navigation
	LandingPath       string        // Where "" and unknown paths land (default: /patients)
	LoginPath         string        // Where the sign-in guard sends denied navigations
	GuardTimeout      time.Duration // Bound on one guard decision
	ModuleLoadTimeout time.Duration // Bound on one deferred module fetch
	MaxRedirects      int           // Longest redirect chain one navigation may follow
	NavigatorIdleTTL  time.Duration // Idle time before a client's navigator is dropped

	// Session activity
	SessionInactiveThreshold time.Duration // Idle time before a session is closed
	SessionCleanupInterval   time.Duration // How often the sweeper runs
}
