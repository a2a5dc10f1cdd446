// internal/app/bootstrap/routetable.go
package bootstrap

import (
	"strings"

	loginfeature "github.com/dalemusser/topaz/internal/app/features/login"
	"github.com/dalemusser/topaz/internal/app/features/patients"
	registerfeature "github.com/dalemusser/topaz/internal/app/features/register"
	"github.com/dalemusser/topaz/internal/app/system/auth"
	"github.com/dalemusser/topaz/internal/app/system/navigation"
	"github.com/dalemusser/topaz/internal/app/system/timeouts"
	"go.uber.org/zap"
)

// RouteTable is the root navigation table. Order matters: the first
// matching entry wins.
//
//	/login        sign-in view, never guarded
//	/register     registration view
//	/patients/**  deferred patients module, signed-in only
//	""            landing redirect
//	**            everything else redirects to the landing path
func RouteTable(appCfg AppConfig) (*navigation.Table, error) {
	return navigation.NewTable(
		navigation.View(strings.TrimPrefix(appCfg.LoginPath, "/"), loginfeature.ViewID),
		navigation.View("register", registerfeature.ViewID),
		navigation.Lazy("patients", patients.Ref, patients.Export).Guarded(auth.GuardID),
		navigation.RedirectTo("", appCfg.LandingPath),
		navigation.Wildcard(appCfg.LandingPath),
	)
}

// newResolver builds the resolver over RouteTable. Table and wiring errors
// are configuration errors and abort startup.
func newResolver(appCfg AppConfig, guard navigation.Guard, loader navigation.ModuleLoader, m *navigation.Metrics, logger *zap.Logger) (*navigation.Resolver, error) {
	tbl, err := RouteTable(appCfg)
	if err != nil {
		return nil, err
	}
	return navigation.NewResolver(tbl, navigation.Options{
		Guards:       map[string]navigation.Guard{auth.GuardID: guard},
		Loader:       loader,
		DenyFallback: appCfg.LoginPath,
		MaxRedirects: appCfg.MaxRedirects,
		GuardTimeout: timeouts.Guard(),
		LoadTimeout:  timeouts.ModuleLoad(),
		Metrics:      m,
	}, logger)
}
