package navigation_test

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"

	"github.com/dalemusser/topaz/internal/app/system/navigation"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const (
	patientsRef    navigation.ModuleRef = "patients"
	patientsExport                      = "PatientsModule"
)

// countingGuard approves or denies and records how often it ran.
type countingGuard struct {
	allow    atomic.Bool
	redirect string
	calls    atomic.Int32
}

func newCountingGuard(allow bool, redirect string) *countingGuard {
	g := &countingGuard{redirect: redirect}
	g.allow.Store(allow)
	return g
}

func (g *countingGuard) CanActivate(ctx context.Context, nc navigation.Context) (navigation.Decision, error) {
	g.calls.Add(1)
	if g.allow.Load() {
		return navigation.Approve(), nil
	}
	return navigation.Deny(g.redirect), nil
}

// countingLoader serves the patients bundle and records fetches.
type countingLoader struct {
	calls atomic.Int32
	fail  atomic.Bool
	gate  chan struct{}
}

func (l *countingLoader) Load(ctx context.Context, ref navigation.ModuleRef) (navigation.Bundle, error) {
	l.calls.Add(1)
	if l.gate != nil {
		select {
		case <-l.gate:
		case <-ctx.Done():
			return navigation.Bundle{}, ctx.Err()
		}
	}
	if l.fail.Load() {
		return navigation.Bundle{}, errors.New("bundle unavailable")
	}
	return navigation.Bundle{
		Ref: ref,
		Exports: map[string]*navigation.Table{
			patientsExport: navigation.MustTable(
				navigation.View("", "patients.list"),
				navigation.View("new", "patients.new"),
				navigation.RedirectTo("index", "overview"),
				navigation.View("overview", "patients.list"),
				navigation.View(":id", "patients.detail"),
				navigation.View(":id/edit", "patients.edit"),
			),
		},
	}, nil
}

// appTable mirrors the application's root route declaration.
func appTable(t *testing.T) *navigation.Table {
	t.Helper()
	tbl, err := navigation.NewTable(
		navigation.View("login", "auth.login"),
		navigation.View("register", "auth.register"),
		navigation.Lazy("patients", patientsRef, patientsExport).Guarded("auth"),
		navigation.RedirectTo("", "/patients"),
		navigation.Wildcard("/patients"),
	)
	require.NoError(t, err)
	return tbl
}

type fixture struct {
	resolver *navigation.Resolver
	guard    *countingGuard
	loader   *countingLoader
}

func newFixture(t *testing.T, authenticated bool) *fixture {
	t.Helper()
	f := &fixture{
		guard:  newCountingGuard(authenticated, "/login"),
		loader: &countingLoader{},
	}
	r, err := navigation.NewResolver(appTable(t), navigation.Options{
		Guards:  map[string]navigation.Guard{"auth": f.guard},
		Loader:  f.loader,
		Metrics: navigation.NewMetrics(nil),
	}, zap.NewNop())
	require.NoError(t, err)
	f.resolver = r
	return f
}
