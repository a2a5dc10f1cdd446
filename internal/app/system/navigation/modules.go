package navigation

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

// Bundle is a loaded module: a set of named sub-route tables.
type Bundle struct {
	Ref     ModuleRef
	Exports map[string]*Table
}

// Routes returns the sub-table published under export.
func (b Bundle) Routes(export string) (*Table, bool) {
	t, ok := b.Exports[export]
	return t, ok && t != nil
}

// ModuleLoader fetches and initializes a module bundle.
type ModuleLoader interface {
	Load(ctx context.Context, ref ModuleRef) (Bundle, error)
}

// LoaderFunc adapts a function to ModuleLoader.
type LoaderFunc func(ctx context.Context, ref ModuleRef) (Bundle, error)

// Load calls f.
func (f LoaderFunc) Load(ctx context.Context, ref ModuleRef) (Bundle, error) {
	return f(ctx, ref)
}

// Modules dispatches loads to a per-reference loader.
type Modules map[ModuleRef]LoaderFunc

// Load runs the loader registered for ref.
func (m Modules) Load(ctx context.Context, ref ModuleRef) (Bundle, error) {
	fn, ok := m[ref]
	if !ok {
		return Bundle{}, fmt.Errorf("no loader registered for module %q", ref)
	}
	return fn(ctx, ref)
}

// Knows reports whether a loader is registered for ref.
func (m Modules) Knows(ref ModuleRef) bool {
	_, ok := m[ref]
	return ok
}

// moduleCache memoizes loaded bundles by reference. A reference is fetched
// at most once while it succeeds; concurrent first requests share a single
// fetch. Failed fetches are not stored.
type moduleCache struct {
	loader  ModuleLoader
	timeout time.Duration
	log     *zap.Logger
	metrics *Metrics

	mu      sync.RWMutex
	bundles map[ModuleRef]Bundle
	sf      singleflight.Group
}

func newModuleCache(loader ModuleLoader, timeout time.Duration, m *Metrics, logger *zap.Logger) *moduleCache {
	return &moduleCache{
		loader:  loader,
		timeout: timeout,
		log:     logger,
		metrics: m,
		bundles: make(map[ModuleRef]Bundle),
	}
}

func (c *moduleCache) get(ref ModuleRef) (Bundle, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	b, ok := c.bundles[ref]
	return b, ok
}

// loaded reports whether ref has been fetched successfully.
func (c *moduleCache) loaded(ref ModuleRef) bool {
	_, ok := c.get(ref)
	return ok
}

// load returns the bundle for ref, fetching it on first use. The fetch runs
// on a context detached from ctx so a superseded navigation does not abort a
// load other navigations are waiting on; ctx still bounds how long this
// caller waits.
func (c *moduleCache) load(ctx context.Context, ref ModuleRef) (Bundle, error) {
	if b, ok := c.get(ref); ok {
		c.metrics.incModuleCache("hit")
		return b, nil
	}
	c.metrics.incModuleCache("miss")

	ch := c.sf.DoChan(string(ref), func() (any, error) {
		if b, ok := c.get(ref); ok {
			return b, nil
		}

		lctx := context.WithoutCancel(ctx)
		if c.timeout > 0 {
			var cancel context.CancelFunc
			lctx, cancel = context.WithTimeout(lctx, c.timeout)
			defer cancel()
		}

		start := time.Now()
		b, err := c.loader.Load(lctx, ref)
		c.metrics.observeModuleLoad(ref, time.Since(start), err)
		if err != nil {
			c.log.Warn("module load failed",
				zap.String("module", string(ref)),
				zap.Duration("elapsed", time.Since(start)),
				zap.Error(err))
			return nil, err
		}
		if b.Ref == "" {
			b.Ref = ref
		}

		c.mu.Lock()
		c.bundles[ref] = b
		c.mu.Unlock()

		c.log.Info("module loaded",
			zap.String("module", string(ref)),
			zap.Int("exports", len(b.Exports)),
			zap.Duration("elapsed", time.Since(start)))
		return b, nil
	})

	select {
	case <-ctx.Done():
		return Bundle{}, &ModuleLoadFailure{Ref: ref, Err: ctx.Err()}
	case res := <-ch:
		if res.Shared {
			c.metrics.incModuleCache("shared")
		}
		if res.Err != nil {
			return Bundle{}, &ModuleLoadFailure{Ref: ref, Err: res.Err}
		}
		return res.Val.(Bundle), nil
	}
}
