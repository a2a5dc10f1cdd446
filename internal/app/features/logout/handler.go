// internal/app/features/logout/handler.go
package logout

import (
	"context"
	"errors"
	"net/http"

	"github.com/dalemusser/topaz/internal/app/store/sessions"
	"github.com/dalemusser/topaz/internal/app/system/auth"
	"github.com/dalemusser/topaz/internal/app/system/timeouts"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

// SessionCloser ends server-side sessions.
type SessionCloser interface {
	Close(ctx context.Context, sessionID primitive.ObjectID, reason string) error
}

type Handler struct {
	Log        *zap.Logger
	SessionMgr *auth.SessionManager
	Sessions   SessionCloser // optional
	LoginPath  string
}

func NewHandler(sessionMgr *auth.SessionManager, sess SessionCloser, loginPath string, logger *zap.Logger) *Handler {
	return &Handler{
		Log:        logger,
		SessionMgr: sessionMgr,
		Sessions:   sess,
		LoginPath:  loginPath,
	}
}

// HandleLogout handles POST /logout. The cookie is cleared even when the
// server-side session cannot be closed.
func (h *Handler) HandleLogout(w http.ResponseWriter, r *http.Request) {
	u, err := h.SessionMgr.SignOut(w, r)
	if err != nil {
		h.Log.Error("logout: clear session cookie", zap.Error(err))
	}

	h.closeSession(r, u)

	if r.Header.Get("HX-Request") != "" {
		w.Header().Set("HX-Redirect", h.LoginPath)
		w.WriteHeader(http.StatusOK)
		return
	}
	http.Redirect(w, r, h.LoginPath, http.StatusSeeOther)
}

func (h *Handler) closeSession(r *http.Request, u auth.SessionUser) {
	if h.Sessions == nil || u.SessionID == "" {
		return
	}
	sid, err := primitive.ObjectIDFromHex(u.SessionID)
	if err != nil {
		h.Log.Warn("logout: malformed session id", zap.String("session_id", u.SessionID))
		return
	}

	ctx, cancel := timeouts.WithTimeout(r.Context(), timeouts.Short(), h.Log, "session close")
	defer cancel()

	switch err := h.Sessions.Close(ctx, sid, sessions.EndLogout); {
	case err == nil:
		h.Log.Info("signed out", zap.String("subject", u.ID), zap.String("session_id", u.SessionID))
	case errors.Is(err, sessions.ErrNotActive):
	default:
		h.Log.Error("logout: close session", zap.String("session_id", u.SessionID), zap.Error(err))
	}
}
