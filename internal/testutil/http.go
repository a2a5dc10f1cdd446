package testutil

import (
	"net/http"
	"net/http/httptest"
	"strings"

	"github.com/dalemusser/topaz/internal/app/system/auth"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// TestUser is a signed-in user for handler tests.
type TestUser struct {
	ID        string
	Name      string
	SessionID string
}

// Clinician returns a TestUser with fresh ids.
func Clinician() TestUser {
	return TestUser{
		ID:        primitive.NewObjectID().Hex(),
		Name:      "Test Clinician",
		SessionID: primitive.NewObjectID().Hex(),
	}
}

// WithUser puts user in the request context, bypassing the session cookie.
func WithUser(r *http.Request, user TestUser) *http.Request {
	return auth.WithTestUser(r, &auth.SessionUser{
		ID:        user.ID,
		Name:      user.Name,
		SessionID: user.SessionID,
	})
}

// NewRequest creates an HTTP request for testing.
func NewRequest(method, target string) *http.Request {
	return httptest.NewRequest(method, target, nil)
}

// NewAuthenticatedRequest creates an HTTP request with user in context.
func NewAuthenticatedRequest(method, target string, user TestUser) *http.Request {
	return WithUser(httptest.NewRequest(method, target, nil), user)
}

// ResponseRecorder wraps httptest.ResponseRecorder with assertions.
type ResponseRecorder struct {
	*httptest.ResponseRecorder
}

// NewRecorder creates a new ResponseRecorder.
func NewRecorder() *ResponseRecorder {
	return &ResponseRecorder{httptest.NewRecorder()}
}

// AssertStatus checks the response status code.
func (r *ResponseRecorder) AssertStatus(t interface{ Errorf(string, ...any) }, expected int) {
	if r.Code != expected {
		t.Errorf("status code: got %d, want %d", r.Code, expected)
	}
}

// AssertRedirect checks for a 303 to the expected location.
func (r *ResponseRecorder) AssertRedirect(t interface{ Errorf(string, ...any) }, expectedLocation string) {
	if r.Code != http.StatusSeeOther {
		t.Errorf("expected 303 See Other, got %d", r.Code)
	}
	if loc := r.Header().Get("Location"); loc != expectedLocation {
		t.Errorf("redirect location: got %q, want %q", loc, expectedLocation)
	}
}

// AssertContains checks that the body contains expected.
func (r *ResponseRecorder) AssertContains(t interface{ Errorf(string, ...any) }, expected string) {
	if !strings.Contains(r.Body.String(), expected) {
		t.Errorf("response body does not contain %q", expected)
	}
}
