// internal/app/features/login/handler.go
package login

import (
	"context"
	"net/http"
	"strings"

	"github.com/dalemusser/topaz/internal/app/resources"
	"github.com/dalemusser/topaz/internal/app/store/sessions"
	"github.com/dalemusser/topaz/internal/app/system/auth"
	"github.com/dalemusser/topaz/internal/app/system/ratelimit"
	"github.com/dalemusser/topaz/internal/app/system/timeouts"
	"github.com/dalemusser/waffle/pantry/query"
	"github.com/dalemusser/waffle/pantry/templates"
	"github.com/dalemusser/waffle/pantry/urlutil"
	"go.uber.org/zap"
)

// ViewID is the view the root route table binds to /login.
const ViewID = "auth.login"

// SessionStarter opens server-side sessions.
type SessionStarter interface {
	Create(ctx context.Context, subject, name, ip, userAgent, createdBy string) (sessions.Session, error)
}

type Handler struct {
	Tokens      *auth.TokenVerifier
	Sessions    SessionStarter
	SessionMgr  *auth.SessionManager
	Limiter     *ratelimit.Limiter // optional, keyed by client IP
	LandingPath string
	Log         *zap.Logger
}

func NewHandler(tokens *auth.TokenVerifier, sess SessionStarter, sessionMgr *auth.SessionManager, limiter *ratelimit.Limiter, landingPath string, logger *zap.Logger) *Handler {
	return &Handler{
		Tokens:      tokens,
		Sessions:    sess,
		SessionMgr:  sessionMgr,
		Limiter:     limiter,
		LandingPath: landingPath,
		Log:         logger,
	}
}

type formData struct {
	resources.Page
	Error     string
	ReturnURL string
}

// ServeLogin renders the sign-in form. It is reached through navigation,
// so it never sees guards.
func (h *Handler) ServeLogin(w http.ResponseWriter, r *http.Request) {
	templates.Render(w, r, "login", formData{
		Page:      resources.NewPage(r, "Sign in"),
		ReturnURL: query.Get(r, "return"),
	})
}

/*─────────────────────────────────────────────────────────────────────────────*
| POST /login                                                                 |
*─────────────────────────────────────────────────────────────────────────────*/

// HandleLoginPost exchanges a token issued by the auth service for a
// session. The token comes from the "token" form field or, failing that, an
// Authorization bearer header.
func (h *Handler) HandleLoginPost(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		h.renderError(w, r, http.StatusBadRequest, "Invalid form data.")
		return
	}

	ip := ratelimit.ClientIP(r)
	if h.Limiter != nil && !h.Limiter.Allow(ip) {
		h.Log.Warn("login rate limited", zap.String("ip", ip))
		h.renderError(w, r, http.StatusTooManyRequests, "Too many sign-in attempts. Please wait a minute before trying again.")
		return
	}

	raw := strings.TrimSpace(r.FormValue("token"))
	if raw == "" {
		raw, _ = auth.BearerToken(r.Header.Get("Authorization"))
	}
	if raw == "" {
		h.renderError(w, r, http.StatusBadRequest, "Please provide a sign-in token.")
		return
	}

	claims, err := h.Tokens.Verify(raw)
	if err != nil {
		h.Log.Info("login token rejected", zap.Error(err))
		h.renderError(w, r, http.StatusUnauthorized, "That sign-in token is not valid.")
		return
	}

	ctx, cancel := timeouts.WithTimeout(r.Context(), timeouts.Short(), h.Log, "session create")
	defer cancel()

	sess, err := h.Sessions.Create(ctx, claims.Subject, claims.Name, ip, r.UserAgent(), sessions.CreatedByToken)
	if err != nil {
		h.Log.Error("session create failed", zap.String("subject", claims.Subject), zap.Error(err))
		h.renderError(w, r, http.StatusServiceUnavailable, "We could not sign you in right now. Please try again.")
		return
	}

	if err := h.SessionMgr.SignIn(w, r, auth.SessionUser{
		ID:        claims.Subject,
		Name:      claims.Name,
		SessionID: sess.ID.Hex(),
	}); err != nil {
		h.Log.Error("session save failed", zap.String("subject", claims.Subject), zap.Error(err))
		h.renderError(w, r, http.StatusInternalServerError, "We could not sign you in right now. Please try again.")
		return
	}

	if h.Limiter != nil {
		h.Limiter.Reset(ip)
	}
	h.Log.Info("signed in",
		zap.String("subject", claims.Subject),
		zap.String("session_id", sess.ID.Hex()))

	dest := urlutil.SafeReturn(r.FormValue("return"), "", h.LandingPath)
	http.Redirect(w, r, dest, http.StatusSeeOther)
}

func (h *Handler) renderError(w http.ResponseWriter, r *http.Request, status int, msg string) {
	w.WriteHeader(status)
	templates.Render(w, r, "login", formData{
		Page:      resources.NewPage(r, "Sign in"),
		Error:     msg,
		ReturnURL: r.FormValue("return"),
	})
}
