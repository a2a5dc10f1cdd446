// internal/app/bootstrap/startup.go
package bootstrap

import (
	"context"
	"sync"
	"time"

	"github.com/dalemusser/topaz/internal/app/resources"
	"github.com/dalemusser/topaz/internal/app/system/navigation"
	"github.com/dalemusser/topaz/internal/app/system/ratelimit"
	"github.com/dalemusser/topaz/internal/app/system/timeouts"
	"github.com/dalemusser/topaz/internal/app/system/workers"
	"github.com/dalemusser/waffle/config"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"
)

// state is what Startup and BuildHandler create for the process lifetime.
var state struct {
	mu       sync.Mutex
	registry *prometheus.Registry
	metrics  *navigation.Metrics
	sweeper  *workers.Sweeper
	limiter  *ratelimit.Limiter
}

// Token exchanges allowed per client IP per minute.
const loginAttemptsPerMinute = 10

// Startup runs one-time initialization after the database is ready and
// before the handler is built.
func Startup(ctx context.Context, coreCfg *config.CoreConfig, appCfg AppConfig, deps DBDeps, logger *zap.Logger) error {
	timeouts.Configure(timeouts.Config{
		Guard:      appCfg.GuardTimeout,
		ModuleLoad: appCfg.ModuleLoadTimeout,
	})
	cur := timeouts.Current()
	logger.Info("timeouts configured",
		zap.Duration("ping", cur.Ping),
		zap.Duration("short", cur.Short),
		zap.Duration("sweep", cur.Sweep),
		zap.Duration("guard", cur.Guard),
		zap.Duration("module_load", cur.ModuleLoad))

	resources.LoadSharedTemplates()
	initMetrics()
	return nil
}

// initMetrics creates the process registry once.
func initMetrics() (*prometheus.Registry, *navigation.Metrics) {
	state.mu.Lock()
	defer state.mu.Unlock()
	if state.registry == nil {
		reg := prometheus.NewRegistry()
		reg.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
		state.registry = reg
		state.metrics = navigation.NewMetrics(reg)
	}
	return state.registry, state.metrics
}

// loginLimiter returns the process-wide limiter for POST /login.
func loginLimiter() *ratelimit.Limiter {
	state.mu.Lock()
	defer state.mu.Unlock()
	if state.limiter == nil {
		state.limiter = ratelimit.New(loginAttemptsPerMinute, time.Minute)
	}
	return state.limiter
}

func startSweeper(w *workers.Sweeper) {
	state.mu.Lock()
	prev := state.sweeper
	state.sweeper = w
	state.mu.Unlock()

	if prev != nil {
		prev.Stop()
	}
	w.Start()
}

// stopBackground stops the sweeper and the login limiter's cleanup loop.
func stopBackground() {
	state.mu.Lock()
	w, l := state.sweeper, state.limiter
	state.sweeper, state.limiter = nil, nil
	state.mu.Unlock()

	if w != nil {
		w.Stop()
	}
	if l != nil {
		l.Stop()
	}
}
