package navigation

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Navigator sequences navigations for one client. Each navigation gets a
// generation number; starting a new one cancels the context of the one in
// flight, and a navigation that finishes after a newer one has started is
// discarded instead of applied.
type Navigator struct {
	resolver *Resolver
	metrics  *Metrics
	log      *zap.Logger

	mu       sync.Mutex
	gen      uint64
	cancel   context.CancelFunc
	lastUsed time.Time
}

// NewNavigator returns a Navigator backed by r.
func NewNavigator(r *Resolver, logger *zap.Logger) *Navigator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Navigator{
		resolver: r,
		metrics:  r.metrics,
		log:      logger,
		lastUsed: time.Now(),
	}
}

// Generation returns the number of the most recently started navigation.
func (n *Navigator) Generation() uint64 {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.gen
}

func (n *Navigator) begin(ctx context.Context) (context.Context, uint64, context.CancelFunc) {
	n.mu.Lock()
	defer n.mu.Unlock()

	if n.cancel != nil {
		n.cancel()
	}
	n.gen++
	cctx, cancel := context.WithCancel(ctx)
	n.cancel = cancel
	n.lastUsed = time.Now()
	return cctx, n.gen, cancel
}

// Navigate resolves req and, if no newer navigation has started meanwhile,
// passes the result to apply. apply runs while the navigator is locked, so a
// newer navigation cannot begin until it returns. A stale navigation returns
// ErrSuperseded without calling apply.
func (n *Navigator) Navigate(ctx context.Context, req Request, apply func(Result) error) (Result, error) {
	cctx, gen, cancel := n.begin(ctx)
	defer cancel()

	res, err := n.resolver.Resolve(cctx, req)

	n.mu.Lock()
	defer n.mu.Unlock()

	if gen != n.gen {
		n.metrics.incSuperseded()
		n.log.Debug("navigation superseded",
			zap.String("path", req.Path),
			zap.Uint64("generation", gen),
			zap.Uint64("latest", n.gen))
		return res, ErrSuperseded
	}
	n.cancel = nil

	if err != nil {
		return res, err
	}
	if apply != nil {
		if err := apply(res); err != nil {
			return res, err
		}
	}
	return res, nil
}

func (n *Navigator) idleSince() time.Time {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.lastUsed
}

// Navigators keeps one Navigator per client id.
type Navigators struct {
	resolver *Resolver
	log      *zap.Logger

	mu    sync.Mutex
	byKey map[string]*Navigator
}

// NewNavigators returns an empty registry backed by r.
func NewNavigators(r *Resolver, logger *zap.Logger) *Navigators {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Navigators{
		resolver: r,
		log:      logger,
		byKey:    make(map[string]*Navigator),
	}
}

// For returns the Navigator for clientID, creating it on first use.
func (ns *Navigators) For(clientID string) *Navigator {
	ns.mu.Lock()
	defer ns.mu.Unlock()
	n, ok := ns.byKey[clientID]
	if !ok {
		n = NewNavigator(ns.resolver, ns.log)
		ns.byKey[clientID] = n
	}
	return n
}

// Len returns the number of tracked clients.
func (ns *Navigators) Len() int {
	ns.mu.Lock()
	defer ns.mu.Unlock()
	return len(ns.byKey)
}

// Prune drops navigators idle for longer than ttl and returns how many were
// removed.
func (ns *Navigators) Prune(ttl time.Duration) int {
	cutoff := time.Now().Add(-ttl)

	ns.mu.Lock()
	defer ns.mu.Unlock()

	removed := 0
	for k, n := range ns.byKey {
		if n.idleSince().Before(cutoff) {
			delete(ns.byKey, k)
			removed++
		}
	}
	return removed
}
