package navigation_test

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/dalemusser/topaz/internal/app/system/navigation"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// blockingResolver builds a resolver whose "slow" entry waits on a guard
// that signals when it starts and returns once release is closed.
func blockingResolver(t *testing.T, honorCancel bool) (*navigation.Resolver, chan struct{}, chan struct{}) {
	t.Helper()
	started := make(chan struct{}, 1)
	release := make(chan struct{})

	slow := navigation.GuardFunc(func(ctx context.Context, _ navigation.Context) (navigation.Decision, error) {
		started <- struct{}{}
		if honorCancel {
			select {
			case <-release:
			case <-ctx.Done():
				return navigation.Decision{}, ctx.Err()
			}
		} else {
			<-release
		}
		return navigation.Approve(), nil
	})

	tbl := navigation.MustTable(
		navigation.View("slow", "slow.view").Guarded("slow"),
		navigation.View("fast", "fast.view"),
	)
	r, err := navigation.NewResolver(tbl, navigation.Options{
		Guards:  map[string]navigation.Guard{"slow": slow},
		Metrics: navigation.NewMetrics(nil),
	}, zap.NewNop())
	require.NoError(t, err)
	return r, started, release
}

func TestNavigator_NewerNavigationSupersedes(t *testing.T) {
	for _, honorCancel := range []bool{true, false} {
		name := "guard honors cancellation"
		if !honorCancel {
			name = "guard ignores cancellation"
		}
		t.Run(name, func(t *testing.T) {
			r, started, release := blockingResolver(t, honorCancel)
			nav := navigation.NewNavigator(r, zap.NewNop())

			var applied []string
			apply := func(res navigation.Result) error {
				applied = append(applied, res.View)
				return nil
			}

			type navResult struct {
				res navigation.Result
				err error
			}
			first := make(chan navResult, 1)
			go func() {
				res, err := nav.Navigate(context.Background(), navigation.NewRequest("/slow"), apply)
				first <- navResult{res, err}
			}()
			<-started

			second := make(chan navResult, 1)
			go func() {
				res, err := nav.Navigate(context.Background(), navigation.NewRequest("/fast"), apply)
				second <- navResult{res, err}
			}()
			require.Eventually(t, func() bool { return nav.Generation() == 2 }, time.Second, time.Millisecond)
			close(release)

			got1 := <-first
			got2 := <-second

			assert.ErrorIs(t, got1.err, navigation.ErrSuperseded)
			require.NoError(t, got2.err)
			assert.Equal(t, "fast.view", got2.res.View)
			assert.Equal(t, []string{"fast.view"}, applied)
		})
	}
}

func TestNavigator_SequentialNavigationsApply(t *testing.T) {
	f := newFixture(t, true)
	nav := navigation.NewNavigator(f.resolver, zap.NewNop())

	var count atomic.Int32
	apply := func(navigation.Result) error {
		count.Add(1)
		return nil
	}

	for _, p := range []string{"/login", "/patients", "/patients/3"} {
		_, err := nav.Navigate(context.Background(), navigation.NewRequest(p), apply)
		require.NoError(t, err, p)
	}
	assert.Equal(t, int32(3), count.Load())
	assert.Equal(t, uint64(3), nav.Generation())
}

func TestNavigator_ErrorSkipsApply(t *testing.T) {
	f := newFixture(t, true)
	f.loader.fail.Store(true)
	nav := navigation.NewNavigator(f.resolver, zap.NewNop())

	called := false
	_, err := nav.Navigate(context.Background(), navigation.NewRequest("/patients"), func(navigation.Result) error {
		called = true
		return nil
	})
	assert.ErrorIs(t, err, navigation.ErrModuleLoad)
	assert.False(t, called)
}

func TestNavigators_ForAndPrune(t *testing.T) {
	f := newFixture(t, true)
	ns := navigation.NewNavigators(f.resolver, zap.NewNop())

	a := ns.For("client-a")
	assert.Same(t, a, ns.For("client-a"))
	b := ns.For("client-b")
	assert.NotSame(t, a, b)
	assert.Equal(t, 2, ns.Len())

	assert.Zero(t, ns.Prune(time.Hour))
	assert.Equal(t, 2, ns.Len())

	time.Sleep(5 * time.Millisecond)
	assert.Equal(t, 2, ns.Prune(time.Millisecond))
	assert.Zero(t, ns.Len())
}
