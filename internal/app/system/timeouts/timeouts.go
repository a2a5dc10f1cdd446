// Package timeouts holds the process-wide deadlines used for I/O and
// navigation work.
//
// Handlers and workers read the current values through the getters and wrap
// their contexts with context.WithTimeout (or WithTimeout below, which also
// logs when the deadline fires). Values are set once at startup from the app
// config with Configure; anything not configured keeps its default.
//
// Which one to use:
//   - Ping: health checks
//   - Short: single session lookups and activity updates
//   - Sweep: the background cleanup pass over the sessions collection
//   - Guard: one guard decision during navigation
//   - ModuleLoad: one deferred module fetch
package timeouts

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Defaults used until Configure is called.
const (
	DefaultPing       = 2 * time.Second
	DefaultShort      = 5 * time.Second
	DefaultSweep      = 30 * time.Second
	DefaultGuard      = 5 * time.Second
	DefaultModuleLoad = 10 * time.Second
)

// Config holds timeout values. Zero fields are ignored by Configure.
type Config struct {
	Ping       time.Duration
	Short      time.Duration
	Sweep      time.Duration
	Guard      time.Duration
	ModuleLoad time.Duration
}

func defaults() Config {
	return Config{
		Ping:       DefaultPing,
		Short:      DefaultShort,
		Sweep:      DefaultSweep,
		Guard:      DefaultGuard,
		ModuleLoad: DefaultModuleLoad,
	}
}

var (
	mu      sync.RWMutex
	current = defaults()
)

func get(pick func(Config) time.Duration) time.Duration {
	mu.RLock()
	defer mu.RUnlock()
	return pick(current)
}

// Ping is the deadline for health-check pings.
func Ping() time.Duration { return get(func(c Config) time.Duration { return c.Ping }) }

// Short is the deadline for single-document session reads and writes.
func Short() time.Duration { return get(func(c Config) time.Duration { return c.Short }) }

// Sweep is the deadline for one cleanup pass.
func Sweep() time.Duration { return get(func(c Config) time.Duration { return c.Sweep }) }

// Guard is the deadline for one guard decision.
func Guard() time.Duration { return get(func(c Config) time.Duration { return c.Guard }) }

// ModuleLoad is the deadline for fetching one deferred module.
func ModuleLoad() time.Duration { return get(func(c Config) time.Duration { return c.ModuleLoad }) }

// Configure overrides the non-zero fields of cfg.
//
//	timeouts.Configure(timeouts.Config{
//	    Guard:      appCfg.GuardTimeout,
//	    ModuleLoad: appCfg.ModuleLoadTimeout,
//	})
func Configure(cfg Config) {
	mu.Lock()
	defer mu.Unlock()
	if cfg.Ping > 0 {
		current.Ping = cfg.Ping
	}
	if cfg.Short > 0 {
		current.Short = cfg.Short
	}
	if cfg.Sweep > 0 {
		current.Sweep = cfg.Sweep
	}
	if cfg.Guard > 0 {
		current.Guard = cfg.Guard
	}
	if cfg.ModuleLoad > 0 {
		current.ModuleLoad = cfg.ModuleLoad
	}
}

// Reset restores the defaults. Tests use it to undo Configure.
func Reset() {
	mu.Lock()
	defer mu.Unlock()
	current = defaults()
}

// Current returns a snapshot of every value, for startup logging.
func Current() Config {
	mu.RLock()
	defer mu.RUnlock()
	return current
}

// WithTimeout is context.WithTimeout whose cancel func logs a warning when the
// deadline was what ended the operation.
//
//	ctx, cancel := timeouts.WithTimeout(r.Context(), timeouts.Short(), h.Log, "session touch")
//	defer cancel()
func WithTimeout(parent context.Context, timeout time.Duration, log *zap.Logger, operation string) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithTimeout(parent, timeout)
	return ctx, func() {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) && log != nil {
			log.Warn("operation timed out",
				zap.String("operation", operation),
				zap.Duration("timeout", timeout))
		}
		cancel()
	}
}
