// internal/app/bootstrap/config.go
package bootstrap

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dalemusser/waffle/config"
	wafflemongo "github.com/dalemusser/waffle/pantry/mongo"
	"go.uber.org/zap"
)

const (
	devSessionKey = "dev-only-change-me-please-0123456789ABCDEF"
	devJWTSecret  = "dev-only-jwt-secret-change-me"

	minProdKeyLen = 32
)

// appConfigKeys defines the configuration keys for topaz.
// These are loaded via WAFFLE's config system with support for:
//   - Config files: mongo_uri, landing_path, etc.
//   - Environment variables: TOPAZ_MONGO_URI, TOPAZ_LANDING_PATH, etc.
//   - Command-line flags: --mongo_uri, --landing_path, etc.
var appConfigKeys = []config.AppKey{
	{Name: "mongo_uri", Default: "mongodb://localhost:27017", Desc: "MongoDB connection URI"},
	{Name: "mongo_database", Default: "topaz", Desc: "MongoDB database name"},
	{Name: "session_key", Default: devSessionKey, Desc: "Session signing key (must be strong in production)"},
	{Name: "session_name", Default: "topaz-session", Desc: "Session cookie name"},
	{Name: "session_domain", Default: "", Desc: "Session cookie domain (blank means current host)"},
	{Name: "jwt_secret", Default: devJWTSecret, Desc: "HS256 secret shared with the auth service"},

	// Navigation
	{Name: "landing_path", Default: "/patients", Desc: "Default and wildcard redirect target"},
	{Name: "login_path", Default: "/login", Desc: "Sign-in page that denied navigations are sent to"},
	{Name: "guard_timeout", Default: "5s", Desc: "Timeout for one guard decision"},
	{Name: "module_load_timeout", Default: "10s", Desc: "Timeout for one deferred module fetch"},
	{Name: "max_redirects", Default: 10, Desc: "Maximum redirects followed by one navigation"},
	{Name: "navigator_idle_ttl", Default: "30m", Desc: "Idle time before a client's navigator is dropped"},

	// Session activity
	{Name: "session_inactive_threshold", Default: "30m", Desc: "Idle time before a session is closed"},
	{Name: "session_cleanup_interval", Default: "1m", Desc: "How often inactive sessions are swept"},
}

// LoadConfig loads WAFFLE core config and app-specific config.
//
// WAFFLE's config.LoadWithAppConfig merges .env files, config files,
// TOPAZ_* environment variables and flags with precedence
// flags > env > files > defaults.
func LoadConfig(logger *zap.Logger) (*config.CoreConfig, AppConfig, error) {
	coreCfg, appValues, err := config.LoadWithAppConfig(logger, "TOPAZ", appConfigKeys)
	if err != nil {
		return nil, AppConfig{}, err
	}

	appCfg := AppConfig{
		MongoURI:      appValues.String("mongo_uri"),
		MongoDatabase: appValues.String("mongo_database"),
		SessionKey:    appValues.String("session_key"),
		SessionName:   appValues.String("session_name"),
		SessionDomain: appValues.String("session_domain"),
		JWTSecret:     appValues.String("jwt_secret"),

		LandingPath:       appValues.String("landing_path"),
		LoginPath:         appValues.String("login_path"),
		GuardTimeout:      appValues.Duration("guard_timeout", 5*time.Second),
		ModuleLoadTimeout: appValues.Duration("module_load_timeout", 10*time.Second),
		MaxRedirects:      appValues.Int("max_redirects"),
		NavigatorIdleTTL:  appValues.Duration("navigator_idle_ttl", 30*time.Minute),

		SessionInactiveThreshold: appValues.Duration("session_inactive_threshold", 30*time.Minute),
		SessionCleanupInterval:   appValues.Duration("session_cleanup_interval", time.Minute),
	}

	return coreCfg, appCfg, nil
}

// ValidateConfig performs app-specific config validation. Returning an
// error aborts startup.
func ValidateConfig(coreCfg *config.CoreConfig, appCfg AppConfig, logger *zap.Logger) error {
	if err := wafflemongo.ValidateURI(appCfg.MongoURI); err != nil {
		logger.Error("invalid MongoDB URI", zap.Error(err))
		return fmt.Errorf("invalid MongoDB URI: %w", err)
	}
	if strings.TrimSpace(appCfg.MongoDatabase) == "" {
		return errors.New("mongo_database is required")
	}

	prod := coreCfg != nil && coreCfg.Env == "prod"

	if appCfg.SessionName == "" {
		return errors.New("session_name is required")
	}
	if prod && (len(appCfg.SessionKey) < minProdKeyLen || appCfg.SessionKey == devSessionKey) {
		return fmt.Errorf("session_key must be at least %d characters and not the development default in prod", minProdKeyLen)
	}

	if appCfg.JWTSecret == "" {
		return errors.New("jwt_secret is required")
	}
	if prod && appCfg.JWTSecret == devJWTSecret {
		return errors.New("jwt_secret must not be the development default in prod")
	}

	for name, p := range map[string]string{"landing_path": appCfg.LandingPath, "login_path": appCfg.LoginPath} {
		if !strings.HasPrefix(p, "/") || strings.HasPrefix(p, "//") {
			return fmt.Errorf("%s must be an absolute path, got %q", name, p)
		}
	}
	if appCfg.LandingPath == appCfg.LoginPath {
		return errors.New("landing_path and login_path must differ")
	}

	if appCfg.MaxRedirects < 1 {
		return fmt.Errorf("max_redirects must be at least 1, got %d", appCfg.MaxRedirects)
	}
	if appCfg.SessionCleanupInterval <= 0 {
		return errors.New("session_cleanup_interval must be positive")
	}

	return nil
}
