package login_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/dalemusser/topaz/internal/app/features/login"
	"github.com/dalemusser/topaz/internal/app/store/sessions"
	"github.com/dalemusser/topaz/internal/app/system/auth"
	"github.com/dalemusser/topaz/internal/app/system/ratelimit"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

const testSecret = "test-jwt-secret"

type fakeSessions struct {
	created []sessions.Session
	err     error
}

func (f *fakeSessions) Create(_ context.Context, subject, name, ip, ua, createdBy string) (sessions.Session, error) {
	if f.err != nil {
		return sessions.Session{}, f.err
	}
	s := sessions.Session{
		ID:        primitive.NewObjectID(),
		Subject:   subject,
		Name:      name,
		IP:        ip,
		UserAgent: ua,
		CreatedBy: createdBy,
	}
	f.created = append(f.created, s)
	return s, nil
}

func newTestHandler(t *testing.T) (*login.Handler, *fakeSessions, *auth.TokenVerifier) {
	t.Helper()
	logger := zap.NewNop()

	sessionMgr, err := auth.NewSessionManager("test-session-key-for-testing-only-32", "test-session", "", 24*time.Hour, false, logger)
	if err != nil {
		t.Fatalf("NewSessionManager failed: %v", err)
	}
	tokens, err := auth.NewTokenVerifier(testSecret)
	if err != nil {
		t.Fatalf("NewTokenVerifier failed: %v", err)
	}
	store := &fakeSessions{}
	return login.NewHandler(tokens, store, sessionMgr, nil, "/patients", logger), store, tokens
}

func postForm(h *login.Handler, form url.Values) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/login", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.RemoteAddr = "10.1.2.3:5555"
	rec := httptest.NewRecorder()

	// Error paths render a template, which has no engine in tests.
	func() {
		defer func() { recover() }()
		h.HandleLoginPost(rec, req)
	}()
	return rec
}

func hasSessionCookie(rec *httptest.ResponseRecorder) bool {
	for _, c := range rec.Result().Cookies() {
		if c.Name == "test-session" && c.Value != "" {
			return true
		}
	}
	return false
}

func TestHandleLoginPost_Success(t *testing.T) {
	h, store, tokens := newTestHandler(t)
	tok, err := tokens.Sign("user-7", "Dr. Seven", time.Hour)
	if err != nil {
		t.Fatalf("Sign failed: %v", err)
	}

	rec := postForm(h, url.Values{"token": {tok}})

	if rec.Code != http.StatusSeeOther {
		t.Fatalf("expected status %d, got %d", http.StatusSeeOther, rec.Code)
	}
	if loc := rec.Header().Get("Location"); loc != "/patients" {
		t.Errorf("Location: got %q, want %q", loc, "/patients")
	}
	if !hasSessionCookie(rec) {
		t.Error("expected session cookie to be set")
	}

	if len(store.created) != 1 {
		t.Fatalf("sessions created: got %d, want 1", len(store.created))
	}
	s := store.created[0]
	if s.Subject != "user-7" || s.Name != "Dr. Seven" {
		t.Errorf("session identity: got %q/%q", s.Subject, s.Name)
	}
	if s.IP != "10.1.2.3" {
		t.Errorf("IP: got %q, want %q", s.IP, "10.1.2.3")
	}
	if s.CreatedBy != sessions.CreatedByToken {
		t.Errorf("CreatedBy: got %q", s.CreatedBy)
	}
}

func TestHandleLoginPost_ReturnURL(t *testing.T) {
	h, _, tokens := newTestHandler(t)
	tok, _ := tokens.Sign("user-7", "", time.Hour)

	tests := []struct {
		name string
		ret  string
		want string
	}{
		{"local path", "/patients/42", "/patients/42"},
		{"external url", "https://evil.example.com/", "/patients"},
		{"empty", "", "/patients"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := postForm(h, url.Values{"token": {tok}, "return": {tt.ret}})
			if rec.Code != http.StatusSeeOther {
				t.Fatalf("expected status %d, got %d", http.StatusSeeOther, rec.Code)
			}
			if loc := rec.Header().Get("Location"); loc != tt.want {
				t.Errorf("Location: got %q, want %q", loc, tt.want)
			}
		})
	}
}

func TestHandleLoginPost_BearerHeader(t *testing.T) {
	h, store, tokens := newTestHandler(t)
	tok, _ := tokens.Sign("user-9", "", time.Hour)

	req := httptest.NewRequest(http.MethodPost, "/login", nil)
	req.Header.Set("Authorization", "Bearer "+tok)
	rec := httptest.NewRecorder()
	h.HandleLoginPost(rec, req)

	if rec.Code != http.StatusSeeOther {
		t.Fatalf("expected status %d, got %d", http.StatusSeeOther, rec.Code)
	}
	if len(store.created) != 1 || store.created[0].Subject != "user-9" {
		t.Errorf("expected a session for user-9, got %+v", store.created)
	}
}

func TestHandleLoginPost_Rejected(t *testing.T) {
	h, store, _ := newTestHandler(t)

	other, _ := auth.NewTokenVerifier("some-other-secret")
	forged, _ := other.Sign("user-1", "", time.Hour)
	mine, _ := auth.NewTokenVerifier(testSecret)
	expired, _ := mine.Sign("user-1", "", -time.Hour)

	tests := []struct {
		name  string
		token string
		want  int
	}{
		{"missing", "", http.StatusBadRequest},
		{"garbage", "not-a-token", http.StatusUnauthorized},
		{"wrong secret", forged, http.StatusUnauthorized},
		{"expired", expired, http.StatusUnauthorized},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := postForm(h, url.Values{"token": {tt.token}})
			if rec.Code != tt.want {
				t.Errorf("status: got %d, want %d", rec.Code, tt.want)
			}
			if hasSessionCookie(rec) {
				t.Error("session cookie should not be set")
			}
		})
	}
	if len(store.created) != 0 {
		t.Errorf("no session should be created, got %d", len(store.created))
	}
}

func TestHandleLoginPost_StoreFailure(t *testing.T) {
	h, store, tokens := newTestHandler(t)
	store.err = errors.New("mongo down")
	tok, _ := tokens.Sign("user-7", "", time.Hour)

	rec := postForm(h, url.Values{"token": {tok}})

	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("status: got %d, want %d", rec.Code, http.StatusServiceUnavailable)
	}
	if hasSessionCookie(rec) {
		t.Error("session cookie should not be set")
	}
}

func TestHandleLoginPost_RateLimited(t *testing.T) {
	h, store, tokens := newTestHandler(t)
	h.Limiter = ratelimit.New(2, time.Minute)
	t.Cleanup(h.Limiter.Stop)

	postForm(h, url.Values{"token": {"bad"}})
	postForm(h, url.Values{"token": {"bad"}})

	tok, _ := tokens.Sign("user-7", "", time.Hour)
	rec := postForm(h, url.Values{"token": {tok}})
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("status: got %d, want %d", rec.Code, http.StatusTooManyRequests)
	}
	if len(store.created) != 0 {
		t.Error("no session should be created while limited")
	}
}

func TestHandleLoginPost_SuccessResetsLimit(t *testing.T) {
	h, _, tokens := newTestHandler(t)
	h.Limiter = ratelimit.New(2, time.Minute)
	t.Cleanup(h.Limiter.Stop)

	tok, _ := tokens.Sign("user-7", "", time.Hour)
	postForm(h, url.Values{"token": {"bad"}})
	if rec := postForm(h, url.Values{"token": {tok}}); rec.Code != http.StatusSeeOther {
		t.Fatalf("status: got %d, want %d", rec.Code, http.StatusSeeOther)
	}
	if got := h.Limiter.Remaining("10.1.2.3"); got != 2 {
		t.Errorf("Remaining after sign-in: got %d, want 2", got)
	}
}
