package bootstrap

import (
	"context"
	"errors"
	"testing"

	loginfeature "github.com/dalemusser/topaz/internal/app/features/login"
	"github.com/dalemusser/topaz/internal/app/features/patients"
	registerfeature "github.com/dalemusser/topaz/internal/app/features/register"
	"github.com/dalemusser/topaz/internal/app/features/shell"
	"github.com/dalemusser/topaz/internal/app/system/auth"
	"github.com/dalemusser/topaz/internal/app/system/navigation"
	"go.uber.org/zap"
)

type stubSessions map[string]bool

func (s stubSessions) IsActive(_ context.Context, id string) (bool, error) {
	return s[id], nil
}

type testNav struct {
	resolver *navigation.Resolver
	views    *shell.Views
	loads    int
}

func newTestNav(t *testing.T) *testNav {
	t.Helper()
	tn := &testNav{views: shell.NewViews()}
	load := patients.Loader(patients.NewHandler(zap.NewNop()), tn.views)
	modules := navigation.Modules{
		patients.Ref: func(ctx context.Context, ref navigation.ModuleRef) (navigation.Bundle, error) {
			tn.loads++
			return load(ctx, ref)
		},
	}

	guard := auth.NewGuard(nil, stubSessions{"sess-1": true}, "/login", zap.NewNop())
	r, err := newResolver(validAppConfig(), guard, modules, navigation.NewMetrics(nil), zap.NewNop())
	if err != nil {
		t.Fatalf("newResolver failed: %v", err)
	}
	tn.resolver = r
	return tn
}

func signedIn(path string) navigation.Request {
	req := navigation.NewRequest(path)
	req.Meta = map[string]string{auth.MetaSessionID: "sess-1", auth.MetaUserID: "user-1"}
	return req
}

func TestRouteTable_Resolution(t *testing.T) {
	tests := []struct {
		name     string
		req      navigation.Request
		wantView string
		wantPath string
	}{
		{"login renders", navigation.NewRequest("/login"), loginfeature.ViewID, "/login"},
		{"register renders", navigation.NewRequest("/register"), registerfeature.ViewID, "/register"},
		{"empty path lands", signedIn(""), patients.ViewList, "/patients"},
		{"root lands", signedIn("/"), patients.ViewList, "/patients"},
		{"unknown path lands", signedIn("/unknown/path"), patients.ViewList, "/patients"},
		{"detail signed in", signedIn("/patients/42"), patients.ViewDetail, "/patients/42"},
		{"edit signed in", signedIn("/patients/42/edit"), patients.ViewEdit, "/patients/42/edit"},
		{"unknown path inside patients lands", signedIn("/patients/1/2/3"), patients.ViewList, "/patients"},
		{"extra segment after edit lands", signedIn("/patients/42/edit/extra"), patients.ViewList, "/patients"},
		{"detail signed out", navigation.NewRequest("/patients/42"), loginfeature.ViewID, "/login?return=%2Fpatients%2F42"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tn := newTestNav(t)
			res, err := tn.resolver.Resolve(context.Background(), tt.req)
			if err != nil {
				t.Fatalf("Resolve failed: %v", err)
			}
			if res.View != tt.wantView {
				t.Errorf("view: got %q, want %q", res.View, tt.wantView)
			}
			if res.Path != tt.wantPath {
				t.Errorf("path: got %q, want %q", res.Path, tt.wantPath)
			}
		})
	}
}

func TestRouteTable_SignedOutNeverLoadsPatients(t *testing.T) {
	tn := newTestNav(t)
	for _, p := range []string{"/patients", "/patients/42", "/patients/new", "/nowhere"} {
		if _, err := tn.resolver.Resolve(context.Background(), navigation.NewRequest(p)); err != nil {
			t.Fatalf("Resolve(%s) failed: %v", p, err)
		}
	}
	if tn.loads != 0 {
		t.Errorf("patients module loaded %d times while signed out", tn.loads)
	}
	if tn.resolver.ModuleLoaded(patients.Ref) {
		t.Error("patients module reported loaded")
	}
	if _, ok := tn.views.Lookup(patients.ViewList); ok {
		t.Error("patients views registered while signed out")
	}
}

func TestRouteTable_PatientsLoadOnce(t *testing.T) {
	tn := newTestNav(t)
	for _, p := range []string{"/patients", "/patients/1", "/patients/2/edit", "/patients/new"} {
		if _, err := tn.resolver.Resolve(context.Background(), signedIn(p)); err != nil {
			t.Fatalf("Resolve(%s) failed: %v", p, err)
		}
	}
	if tn.loads != 1 {
		t.Errorf("loads: got %d, want 1", tn.loads)
	}
}

func TestRouteTable_CustomPaths(t *testing.T) {
	cfg := validAppConfig()
	cfg.LoginPath = "/signin"
	cfg.LandingPath = "/register"

	r, err := newResolver(cfg, auth.NewGuard(nil, stubSessions{}, cfg.LoginPath, zap.NewNop()), navigation.Modules{
		patients.Ref: patients.Loader(patients.NewHandler(zap.NewNop()), shell.NewViews()),
	}, nil, zap.NewNop())
	if err != nil {
		t.Fatalf("newResolver failed: %v", err)
	}

	res, err := r.Resolve(context.Background(), navigation.NewRequest("/elsewhere"))
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if res.View != registerfeature.ViewID {
		t.Errorf("view: got %q, want %q", res.View, registerfeature.ViewID)
	}

	res, err = r.Resolve(context.Background(), navigation.NewRequest("/signin"))
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if res.View != loginfeature.ViewID {
		t.Errorf("view: got %q, want %q", res.View, loginfeature.ViewID)
	}
}

func TestNewResolver_WithoutLoaderIsConfigurationError(t *testing.T) {
	_, err := newResolver(validAppConfig(), auth.NewGuard(nil, nil, "/login", nil), nil, nil, zap.NewNop())
	if !errors.Is(err, navigation.ErrConfiguration) {
		t.Fatalf("expected ErrConfiguration, got %v", err)
	}
}
