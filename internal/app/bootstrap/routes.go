// internal/app/bootstrap/routes.go
package bootstrap

import (
	"net/http"

	errorsfeature "github.com/dalemusser/topaz/internal/app/features/errors"
	healthfeature "github.com/dalemusser/topaz/internal/app/features/health"
	heartbeatfeature "github.com/dalemusser/topaz/internal/app/features/heartbeat"
	loginfeature "github.com/dalemusser/topaz/internal/app/features/login"
	logoutfeature "github.com/dalemusser/topaz/internal/app/features/logout"
	"github.com/dalemusser/topaz/internal/app/features/patients"
	registerfeature "github.com/dalemusser/topaz/internal/app/features/register"
	"github.com/dalemusser/topaz/internal/app/features/shell"
	"github.com/dalemusser/topaz/internal/app/store/sessions"
	"github.com/dalemusser/topaz/internal/app/system/auth"
	"github.com/dalemusser/topaz/internal/app/system/navigation"
	"github.com/dalemusser/topaz/internal/app/system/workers"
	"github.com/dalemusser/waffle/config"
	"github.com/dalemusser/waffle/pantry/fileserver"
	"github.com/dalemusser/waffle/pantry/templates"
	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// BuildHandler constructs the root HTTP handler.
//
// Fixed endpoints are mounted first. Every other GET goes to the navigation
// shell, which resolves the path against RouteTable and renders the
// resulting view.
func BuildHandler(coreCfg *config.CoreConfig, appCfg AppConfig, deps DBDeps, logger *zap.Logger) (http.Handler, error) {
	// Secure cookies are enabled in production mode.
	secure := coreCfg.Env == "prod"
	sessionMgr, err := auth.NewSessionManager(appCfg.SessionKey, appCfg.SessionName, appCfg.SessionDomain, appCfg.SessionInactiveThreshold, secure, logger)
	if err != nil {
		logger.Error("session manager init failed", zap.Error(err))
		return nil, err
	}

	tokens, err := auth.NewTokenVerifier(appCfg.JWTSecret)
	if err != nil {
		logger.Error("token verifier init failed", zap.Error(err))
		return nil, err
	}

	// Dev mode enables template reloading.
	eng := templates.New(coreCfg.Env == "dev")
	if err := eng.Boot(logger); err != nil {
		logger.Error("template engine boot failed", zap.Error(err))
		return nil, err
	}
	templates.UseEngine(eng, logger)

	registry, metrics := initMetrics()
	sessStore := sessions.New(deps.MongoDatabase)

	// Views the navigation shell can render. The patients views are added
	// by the module loader the first time the module is entered.
	views := shell.NewViews()

	loginHandler := loginfeature.NewHandler(tokens, sessStore, sessionMgr, loginLimiter(), appCfg.LandingPath, logger)
	views.RegisterFunc(loginfeature.ViewID, loginHandler.ServeLogin)

	registerHandler := registerfeature.NewHandler(appCfg.LoginPath)
	views.RegisterFunc(registerfeature.ViewID, registerHandler.ServeRegister)

	modules := navigation.Modules{
		patients.Ref: patients.Loader(patients.NewHandler(logger), views),
	}

	guard := auth.NewGuard(tokens, sessStore, appCfg.LoginPath, logger)
	resolver, err := newResolver(appCfg, guard, modules, metrics, logger)
	if err != nil {
		logger.Error("route table rejected", zap.Error(err))
		return nil, err
	}
	navs := navigation.NewNavigators(resolver, logger)

	startSweeper(workers.NewSweeper(sessStore, navs, logger,
		appCfg.SessionCleanupInterval, appCfg.SessionInactiveThreshold, appCfg.NavigatorIdleTTL))

	errorsHandler := errorsfeature.NewHandler(appCfg.LandingPath)

	r := chi.NewRouter()

	// Loads SessionUser into context if signed in.
	r.Use(sessionMgr.LoadSessionUser)

	healthHandler := healthfeature.NewHandler(deps.MongoClient, resolver, navs, []navigation.ModuleRef{patients.Ref}, logger)
	r.Mount("/health", healthfeature.Routes(healthHandler))

	r.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))

	// Static assets with pre-compressed file support (gzip/brotli)
	r.Handle("/static/*", fileserver.Handler("/static", "public"))

	// POST only. GET on these paths falls through to navigation.
	r.Post(appCfg.LoginPath, loginHandler.HandleLoginPost)
	logoutHandler := logoutfeature.NewHandler(sessionMgr, sessStore, appCfg.LoginPath, logger)
	r.Post("/logout", logoutHandler.HandleLogout)

	heartbeatHandler := heartbeatfeature.NewHandler(sessStore, logger)
	r.Mount("/api/heartbeat", heartbeatfeature.Routes(heartbeatHandler))

	shellHandler := shell.NewHandler(navs, views, sessionMgr, errorsHandler, sessStore, logger)
	r.Mount("/", shell.Routes(shellHandler))

	logger.Info("navigation ready",
		zap.String("landing_path", appCfg.LandingPath),
		zap.String("login_path", appCfg.LoginPath))

	return r, nil
}
