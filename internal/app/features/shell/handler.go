package shell

import (
	"context"
	"errors"
	"net/http"

	"github.com/dalemusser/topaz/internal/app/store/sessions"
	"github.com/dalemusser/topaz/internal/app/system/auth"
	"github.com/dalemusser/topaz/internal/app/system/navigation"
	"github.com/dalemusser/topaz/internal/app/system/timeouts"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

// ErrorPages renders the pages the shell falls back to.
type ErrorPages interface {
	NotFound(w http.ResponseWriter, r *http.Request)
	Failure(w http.ResponseWriter, r *http.Request, status int, msg string)
}

// ActivityTracker records that a signed-in session rendered a page.
type ActivityTracker interface {
	Touch(ctx context.Context, sessionID primitive.ObjectID, page string) (sessions.TouchResult, error)
}

// Handler serves every page path by navigating the client's Navigator to
// it and rendering the view the navigation settles on.
type Handler struct {
	Navs       *navigation.Navigators
	Views      *Views
	SessionMgr *auth.SessionManager
	Errors     ErrorPages
	Activity   ActivityTracker // optional
	Log        *zap.Logger
}

// NewHandler constructs the shell handler.
func NewHandler(navs *navigation.Navigators, views *Views, sm *auth.SessionManager, pages ErrorPages, activity ActivityTracker, logger *zap.Logger) *Handler {
	return &Handler{
		Navs:       navs,
		Views:      views,
		SessionMgr: sm,
		Errors:     pages,
		Activity:   activity,
		Log:        logger,
	}
}

// ServeHTTP handles GET for any path not claimed by another route.
//
//	redirected  303 to the final path
//	view        200 from the view handler
//	not found   404
//	superseded  409, empty body
//	guard error 503
//	load error  502
//	config      500
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	clientID := h.SessionMgr.ClientID(w, r)
	req := navigation.Request{
		Path:     r.URL.Path,
		Query:    r.URL.Query(),
		ClientID: clientID,
		Meta:     auth.RequestMeta(r),
	}

	_, err := h.Navs.For(clientID).Navigate(r.Context(), req, func(res navigation.Result) error {
		return h.commit(w, r, res)
	})
	if err != nil {
		h.fail(w, r, err)
	}
}

// commit writes the response for a navigation that was not superseded.
// Returning an error leaves the response unwritten.
func (h *Handler) commit(w http.ResponseWriter, r *http.Request, res navigation.Result) error {
	if res.Redirected() {
		http.Redirect(w, r, res.Path, http.StatusSeeOther)
		return nil
	}
	if !res.Found() {
		h.Errors.NotFound(w, r)
		return nil
	}

	view, ok := h.Views.Lookup(res.View)
	if !ok {
		return &navigation.ConfigurationError{Path: res.Path, Reason: "no handler registered for view " + res.View}
	}

	h.touch(r, res.Path)
	view.ServeHTTP(w, WithResult(r, res))
	return nil
}

func (h *Handler) touch(r *http.Request, page string) {
	if h.Activity == nil {
		return
	}
	u, ok := auth.CurrentUser(r)
	if !ok || u.SessionID == "" {
		return
	}
	sid, err := primitive.ObjectIDFromHex(u.SessionID)
	if err != nil {
		return
	}

	ctx, cancel := timeouts.WithTimeout(r.Context(), timeouts.Short(), h.Log, "session touch")
	defer cancel()
	if _, err := h.Activity.Touch(ctx, sid, page); err != nil {
		h.Log.Warn("session activity update failed",
			zap.String("session_id", u.SessionID),
			zap.String("page", page),
			zap.Error(err))
	}
}

func (h *Handler) fail(w http.ResponseWriter, r *http.Request, err error) {
	path := r.URL.Path

	switch {
	case errors.Is(err, navigation.ErrSuperseded):
		w.WriteHeader(http.StatusConflict)

	case errors.Is(err, context.Canceled) && r.Context().Err() != nil:
		h.Log.Debug("client went away during navigation", zap.String("path", path))

	case errors.Is(err, navigation.ErrGuardFailure):
		h.Log.Error("navigation guard failed", zap.String("path", path), zap.Error(err))
		h.Errors.Failure(w, r, http.StatusServiceUnavailable, "We could not check your access right now. Please try again.")

	case errors.Is(err, navigation.ErrModuleLoad):
		h.Log.Error("navigation module load failed", zap.String("path", path), zap.Error(err))
		h.Errors.Failure(w, r, http.StatusBadGateway, "This section could not be loaded. Please try again.")

	case errors.Is(err, navigation.ErrConfiguration):
		h.Log.Error("navigation misconfigured", zap.String("path", path), zap.Error(err))
		h.Errors.Failure(w, r, http.StatusInternalServerError, "This page is misconfigured.")

	default:
		h.Log.Error("navigation failed", zap.String("path", path), zap.Error(err))
		h.Errors.Failure(w, r, http.StatusInternalServerError, "Something went wrong.")
	}
}
