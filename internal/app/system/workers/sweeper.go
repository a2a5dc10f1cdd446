// internal/app/system/workers/sweeper.go
package workers

import (
	"context"
	"sync"
	"time"

	"github.com/dalemusser/topaz/internal/app/system/timeouts"
	"go.uber.org/zap"
)

// InactiveCloser closes sessions idle for longer than a threshold.
type InactiveCloser interface {
	CloseInactive(ctx context.Context, threshold time.Duration) (int64, error)
}

// NavigatorPruner drops per-client navigators idle for longer than a TTL.
type NavigatorPruner interface {
	Prune(ttl time.Duration) int
}

// Sweeper is a background worker that, on every tick, closes inactive
// sessions and forgets idle client navigators.
type Sweeper struct {
	sessions          InactiveCloser
	navs              NavigatorPruner
	log               *zap.Logger
	interval          time.Duration
	inactiveThreshold time.Duration
	navigatorTTL      time.Duration
	stopCh            chan struct{}
	stopOnce          sync.Once
	wg                sync.WaitGroup
}

// NewSweeper creates the worker. Either of sess and navs may be nil.
//
//   - interval: how often to sweep (e.g., 1 minute)
//   - inactiveThreshold: idle time before a session is closed (e.g., 30 minutes)
//   - navigatorTTL: idle time before a client's navigator is dropped
func NewSweeper(sess InactiveCloser, navs NavigatorPruner, logger *zap.Logger, interval, inactiveThreshold, navigatorTTL time.Duration) *Sweeper {
	return &Sweeper{
		sessions:          sess,
		navs:              navs,
		log:               logger,
		interval:          interval,
		inactiveThreshold: inactiveThreshold,
		navigatorTTL:      navigatorTTL,
		stopCh:            make(chan struct{}),
	}
}

// Start begins the background loop.
func (w *Sweeper) Start() {
	w.wg.Add(1)
	go w.run()
	w.log.Info("sweeper started",
		zap.Duration("interval", w.interval),
		zap.Duration("inactive_threshold", w.inactiveThreshold),
		zap.Duration("navigator_ttl", w.navigatorTTL))
}

// Stop signals the worker to stop and waits for it to finish. Safe to call
// more than once.
func (w *Sweeper) Stop() {
	w.stopOnce.Do(func() {
		close(w.stopCh)
		w.wg.Wait()
		w.log.Info("sweeper stopped")
	})
}

func (w *Sweeper) run() {
	defer w.wg.Done()

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-w.stopCh:
			return
		case <-ticker.C:
			w.Sweep()
		}
	}
}

// Sweep runs one pass.
func (w *Sweeper) Sweep() {
	if w.sessions != nil {
		w.closeInactive()
	}
	if w.navs != nil && w.navigatorTTL > 0 {
		if n := w.navs.Prune(w.navigatorTTL); n > 0 {
			w.log.Debug("pruned idle navigators", zap.Int("count", n))
		}
	}
}

func (w *Sweeper) closeInactive() {
	ctx, cancel := timeouts.WithTimeout(context.Background(), timeouts.Sweep(), w.log, "close inactive sessions")
	defer cancel()

	count, err := w.sessions.CloseInactive(ctx, w.inactiveThreshold)
	if err != nil {
		w.log.Error("failed to close inactive sessions", zap.Error(err))
		return
	}
	if count > 0 {
		w.log.Info("closed inactive sessions", zap.Int64("count", count))
	}
}
