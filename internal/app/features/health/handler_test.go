package health_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/dalemusser/topaz/internal/app/features/health"
	"github.com/dalemusser/topaz/internal/app/system/navigation"
	"github.com/dalemusser/topaz/internal/testutil"
	"go.mongodb.org/mongo-driver/mongo/readpref"
	"go.uber.org/zap"
)

type fakePinger struct{ err error }

func (f fakePinger) Ping(context.Context, *readpref.ReadPref) error { return f.err }

type healthBody struct {
	Status     string          `json:"status"`
	Database   string          `json:"database"`
	Error      string          `json:"error"`
	Navigators int             `json:"navigators"`
	Modules    map[string]bool `json:"modules"`
}

func testResolver(t *testing.T) *navigation.Resolver {
	t.Helper()
	tbl := navigation.MustTable(navigation.Lazy("patients", "patients", "PatientsModule"))
	loader := navigation.Modules{"patients": func(context.Context, navigation.ModuleRef) (navigation.Bundle, error) {
		return navigation.Bundle{Exports: map[string]*navigation.Table{
			"PatientsModule": navigation.MustTable(navigation.View("", "patients.list")),
		}}, nil
	}}
	r, err := navigation.NewResolver(tbl, navigation.Options{Loader: loader}, zap.NewNop())
	if err != nil {
		t.Fatalf("NewResolver failed: %v", err)
	}
	return r
}

func serve(t *testing.T, h *health.Handler) (*httptest.ResponseRecorder, healthBody) {
	t.Helper()
	rec := httptest.NewRecorder()
	h.Serve(rec, httptest.NewRequest("GET", "/health", nil))

	if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("Content-Type: got %q, want %q", ct, "application/json")
	}
	var body healthBody
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("failed to parse response: %v", err)
	}
	return rec, body
}

func TestServe_ReportsNavigationState(t *testing.T) {
	r := testResolver(t)
	navs := navigation.NewNavigators(r, zap.NewNop())
	navs.For("a")
	navs.For("b")

	h := health.NewHandler(fakePinger{}, r, navs, []navigation.ModuleRef{"patients"}, zap.NewNop())

	rec, body := serve(t, h)
	if rec.Code != http.StatusOK {
		t.Errorf("expected status %d, got %d", http.StatusOK, rec.Code)
	}
	if body.Navigators != 2 {
		t.Errorf("navigators: got %d, want 2", body.Navigators)
	}
	if loaded, ok := body.Modules["patients"]; !ok || loaded {
		t.Errorf("modules: got %v, want patients=false", body.Modules)
	}

	if _, err := r.Resolve(context.Background(), navigation.NewRequest("/patients")); err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	_, body = serve(t, h)
	if !body.Modules["patients"] {
		t.Errorf("modules after load: got %v, want patients=true", body.Modules)
	}
}

func TestServe_DatabaseDown(t *testing.T) {
	h := health.NewHandler(fakePinger{err: errors.New("no reachable servers")}, nil, nil, nil, zap.NewNop())

	rec, body := serve(t, h)
	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("expected status %d, got %d", http.StatusServiceUnavailable, rec.Code)
	}
	if body.Status != "error" || body.Database != "disconnected" {
		t.Errorf("body: got %+v", body)
	}
	if body.Error != "no reachable servers" {
		t.Errorf("error: got %q", body.Error)
	}
}

func TestServe_DatabaseConnected(t *testing.T) {
	db := testutil.SetupTestDB(t)
	h := health.NewHandler(db.Client(), nil, nil, nil, zap.NewNop())

	rec, body := serve(t, h)
	if rec.Code != http.StatusOK {
		t.Errorf("expected status %d, got %d", http.StatusOK, rec.Code)
	}
	if body.Status != "ok" || body.Database != "connected" {
		t.Errorf("body: got %+v", body)
	}
}
