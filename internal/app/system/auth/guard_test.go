package auth_test

import (
	"context"
	"errors"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/dalemusser/topaz/internal/app/system/auth"
	"github.com/dalemusser/topaz/internal/app/system/navigation"
	"go.uber.org/zap"
)

type fakeSessions struct {
	active map[string]bool
	err    error
	calls  int
}

func (f *fakeSessions) IsActive(_ context.Context, id string) (bool, error) {
	f.calls++
	if f.err != nil {
		return false, f.err
	}
	return f.active[id], nil
}

func navCtx(path string, meta map[string]string) navigation.Context {
	return navigation.Context{Path: path, Target: path, Meta: meta}
}

func TestGuard_CanActivate(t *testing.T) {
	v := newTestVerifier(t)
	good, err := v.Sign("user-1", "", time.Hour)
	if err != nil {
		t.Fatalf("Sign failed: %v", err)
	}
	sess := &fakeSessions{active: map[string]bool{"open": true}}
	g := auth.NewGuard(v, sess, "/login", zap.NewNop())

	tests := []struct {
		name      string
		meta      map[string]string
		wantAllow bool
	}{
		{"valid bearer token", map[string]string{auth.MetaAuthorization: "Bearer " + good}, true},
		{"invalid bearer token", map[string]string{auth.MetaAuthorization: "Bearer nope"}, false},
		{"open session", map[string]string{auth.MetaSessionID: "open"}, true},
		{"closed session", map[string]string{auth.MetaSessionID: "closed"}, false},
		{"no credentials", nil, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dec, err := g.CanActivate(context.Background(), navCtx("/patients/42", tt.meta))
			if err != nil {
				t.Fatalf("CanActivate error: %v", err)
			}
			if dec.Allow != tt.wantAllow {
				t.Errorf("Allow: got %v, want %v", dec.Allow, tt.wantAllow)
			}
			if !tt.wantAllow {
				want := "/login?return=" + url.QueryEscape("/patients/42")
				if dec.Redirect != want {
					t.Errorf("Redirect: got %q, want %q", dec.Redirect, want)
				}
			}
		})
	}
}

func TestGuard_BearerTakesPrecedence(t *testing.T) {
	v := newTestVerifier(t)
	good, _ := v.Sign("user-1", "", time.Hour)
	sess := &fakeSessions{}
	g := auth.NewGuard(v, sess, "/login", zap.NewNop())

	_, err := g.CanActivate(context.Background(), navCtx("/patients", map[string]string{
		auth.MetaAuthorization: "Bearer " + good,
		auth.MetaSessionID:     "open",
	}))
	if err != nil {
		t.Fatalf("CanActivate error: %v", err)
	}
	if sess.calls != 0 {
		t.Errorf("session store consulted %d times; want 0", sess.calls)
	}
}

func TestGuard_SessionLookupFailure(t *testing.T) {
	boom := errors.New("mongo down")
	g := auth.NewGuard(nil, &fakeSessions{err: boom}, "/login", zap.NewNop())

	dec, err := g.CanActivate(context.Background(), navCtx("/patients", map[string]string{auth.MetaSessionID: "x"}))
	if !errors.Is(err, boom) {
		t.Fatalf("expected wrapped lookup error, got %v", err)
	}
	if dec.Allow || dec.Redirect != "" {
		t.Errorf("expected empty decision on failure, got %+v", dec)
	}
}

func TestGuard_LoginRedirectKeepsQuery(t *testing.T) {
	g := auth.NewGuard(nil, nil, "/login", zap.NewNop())

	nc := navigation.Context{
		Path:   "/patients",
		Target: "/patients",
		Query:  url.Values{"page": {"2"}},
	}
	want := "/login?return=" + url.QueryEscape("/patients?page=2")
	if got := g.LoginRedirect(nc); got != want {
		t.Errorf("LoginRedirect: got %q, want %q", got, want)
	}

	// The query belongs to the requested path, not to a redirect target.
	nc.Target = "/patients/overview"
	want = "/login?return=" + url.QueryEscape("/patients/overview")
	if got := g.LoginRedirect(nc); got != want {
		t.Errorf("LoginRedirect: got %q, want %q", got, want)
	}
}

func TestRequestMeta(t *testing.T) {
	req := httptest.NewRequest("GET", "/patients", nil)
	req.Header.Set("Authorization", "Bearer t")
	req = auth.WithTestUser(req, &auth.SessionUser{ID: "u1", SessionID: "s1"})

	meta := auth.RequestMeta(req)
	if meta[auth.MetaAuthorization] != "Bearer t" {
		t.Errorf("authorization: got %q", meta[auth.MetaAuthorization])
	}
	if meta[auth.MetaUserID] != "u1" || meta[auth.MetaSessionID] != "s1" {
		t.Errorf("user meta: got %v", meta)
	}

	empty := auth.RequestMeta(httptest.NewRequest("GET", "/", nil))
	if len(empty) != 0 {
		t.Errorf("expected empty meta, got %v", empty)
	}
}

func TestGuard_InResolver(t *testing.T) {
	g := auth.NewGuard(nil, &fakeSessions{}, "/login", zap.NewNop())
	tbl := navigation.MustTable(
		navigation.View("login", "auth.login"),
		navigation.View("patients", "patients.list").Guarded(auth.GuardID),
	)
	r, err := navigation.NewResolver(tbl, navigation.Options{
		Guards: map[string]navigation.Guard{auth.GuardID: g},
	}, zap.NewNop())
	if err != nil {
		t.Fatalf("NewResolver failed: %v", err)
	}

	res, err := r.Resolve(context.Background(), navigation.NewRequest("/patients"))
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if res.View != "auth.login" {
		t.Errorf("View: got %q, want auth.login", res.View)
	}
	if res.Path != "/login?return=%2Fpatients" {
		t.Errorf("Path: got %q", res.Path)
	}
}
