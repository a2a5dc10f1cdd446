package auth

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	"github.com/dalemusser/topaz/internal/app/system/navigation"
	"go.uber.org/zap"
)

// GuardID is the identifier route tables use for the sign-in guard.
const GuardID = "auth"

// Keys of navigation.Context.Meta filled by RequestMeta.
const (
	MetaAuthorization = "authorization"
	MetaUserID        = "user_id"
	MetaSessionID     = "session_id"
)

// RequestMeta collects what the guard needs from an HTTP request.
func RequestMeta(r *http.Request) map[string]string {
	meta := map[string]string{}
	if h := r.Header.Get("Authorization"); h != "" {
		meta[MetaAuthorization] = h
	}
	if u, ok := CurrentUser(r); ok {
		meta[MetaUserID] = u.ID
		meta[MetaSessionID] = u.SessionID
	}
	return meta
}

// SessionChecker reports whether a server-side session is still open.
type SessionChecker interface {
	IsActive(ctx context.Context, sessionID string) (bool, error)
}

// Guard approves navigation for callers presenting a valid bearer token or
// an open session. Everyone else is sent to the login path with the denied
// target in the return parameter.
type Guard struct {
	tokens    *TokenVerifier
	sessions  SessionChecker
	loginPath string
	log       *zap.Logger
}

// NewGuard returns the sign-in guard. tokens may be nil to accept sessions
// only.
func NewGuard(tokens *TokenVerifier, sessions SessionChecker, loginPath string, logger *zap.Logger) *Guard {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Guard{tokens: tokens, sessions: sessions, loginPath: loginPath, log: logger}
}

// CanActivate implements navigation.Guard. A session lookup error is
// returned as-is so the navigation fails instead of bouncing a signed-in
// user to the login page.
func (g *Guard) CanActivate(ctx context.Context, nc navigation.Context) (navigation.Decision, error) {
	if raw, ok := BearerToken(nc.Meta[MetaAuthorization]); ok && g.tokens != nil {
		if _, err := g.tokens.Verify(raw); err != nil {
			g.log.Info("bearer token rejected",
				zap.String("path", nc.Target),
				zap.Error(err))
			return navigation.Deny(g.LoginRedirect(nc)), nil
		}
		return navigation.Approve(), nil
	}

	sid := nc.Meta[MetaSessionID]
	if sid == "" || g.sessions == nil {
		return navigation.Deny(g.LoginRedirect(nc)), nil
	}

	active, err := g.sessions.IsActive(ctx, sid)
	if err != nil {
		return navigation.Decision{}, fmt.Errorf("check session %s: %w", sid, err)
	}
	if !active {
		g.log.Debug("session no longer active",
			zap.String("session_id", sid),
			zap.String("user_id", nc.Meta[MetaUserID]))
		return navigation.Deny(g.LoginRedirect(nc)), nil
	}
	return navigation.Approve(), nil
}

// LoginRedirect is the login path carrying the denied target (and, when the
// target is the requested path, its query) as the return parameter.
func (g *Guard) LoginRedirect(nc navigation.Context) string {
	ret := nc.Target
	if nc.Target == nc.Path && len(nc.Query) > 0 {
		ret += "?" + nc.Query.Encode()
	}
	return g.loginPath + "?return=" + url.QueryEscape(ret)
}
