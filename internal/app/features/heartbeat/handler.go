// internal/app/features/heartbeat/handler.go
package heartbeat

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/dalemusser/topaz/internal/app/store/sessions"
	"github.com/dalemusser/topaz/internal/app/system/auth"
	"github.com/dalemusser/topaz/internal/app/system/timeouts"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

// Toucher records session activity.
type Toucher interface {
	Touch(ctx context.Context, sessionID primitive.ObjectID, page string) (sessions.TouchResult, error)
}

// Handler keeps a signed-in session alive while its page stays open.
// Navigations already count as activity; the heartbeat covers the time a
// user spends on one page.
type Handler struct {
	Sessions Toucher
	Log      *zap.Logger
}

// NewHandler creates a new heartbeat handler.
func NewHandler(sess Toucher, logger *zap.Logger) *Handler {
	return &Handler{Sessions: sess, Log: logger}
}

type heartbeatRequest struct {
	Page string `json:"page"`
}

type heartbeatResponse struct {
	Active bool `json:"active"`
}

// ServeHeartbeat handles POST /api/heartbeat.
//
//	200 {"active":true}   session updated
//	200 {"active":false}  session closed; the page should send the user to sign in
//	401                   no signed-in session cookie
func (h *Handler) ServeHeartbeat(w http.ResponseWriter, r *http.Request) {
	u, ok := auth.CurrentUser(r)
	if !ok || u.SessionID == "" {
		w.WriteHeader(http.StatusUnauthorized)
		return
	}
	oid, err := primitive.ObjectIDFromHex(u.SessionID)
	if err != nil {
		w.WriteHeader(http.StatusUnauthorized)
		return
	}

	// page is optional
	var req heartbeatRequest
	if r.Body != nil {
		_ = json.NewDecoder(r.Body).Decode(&req)
	}

	ctx, cancel := timeouts.WithTimeout(r.Context(), timeouts.Short(), h.Log, "heartbeat")
	defer cancel()

	res, err := h.Sessions.Touch(ctx, oid, req.Page)
	if err != nil {
		h.Log.Warn("failed to update session last_active_at",
			zap.String("session_id", u.SessionID),
			zap.Error(err))
		w.WriteHeader(http.StatusServiceUnavailable)
		return
	}
	if res.Updated && req.Page != "" && res.PreviousPage != req.Page {
		h.Log.Debug("heartbeat page change",
			zap.String("session_id", u.SessionID),
			zap.String("from", res.PreviousPage),
			zap.String("to", req.Page))
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(heartbeatResponse{Active: res.Updated})
}
