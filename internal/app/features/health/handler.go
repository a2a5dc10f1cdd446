package health

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/dalemusser/topaz/internal/app/system/navigation"
	"github.com/dalemusser/topaz/internal/app/system/timeouts"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/readpref"
	"go.uber.org/zap"
)

// Pinger is the part of *mongo.Client the health check uses.
type Pinger interface {
	Ping(ctx context.Context, rp *readpref.ReadPref) error
}

var _ Pinger = (*mongo.Client)(nil)

// Handler holds dependencies needed for health checks.
type Handler struct {
	DB       Pinger
	Resolver *navigation.Resolver
	Navs     *navigation.Navigators
	Modules  []navigation.ModuleRef
	Log      *zap.Logger
}

// NewHandler constructs a health Handler. modules lists the deferred modules
// whose load state is reported.
func NewHandler(db Pinger, resolver *navigation.Resolver, navs *navigation.Navigators, modules []navigation.ModuleRef, logger *zap.Logger) *Handler {
	return &Handler{
		DB:       db,
		Resolver: resolver,
		Navs:     navs,
		Modules:  modules,
		Log:      logger,
	}
}

type healthResponse struct {
	Status     string          `json:"status"`
	Database   string          `json:"database"`
	Message    string          `json:"message,omitempty"`
	Error      string          `json:"error,omitempty"`
	Navigators int             `json:"navigators"`
	Modules    map[string]bool `json:"modules,omitempty"`
}

// Serve handles GET /health.
//
// On success: 200 and
//
//	{ "status":"ok", "database":"connected", "navigators":3, "modules":{"patients":true} }
//
// On DB failure: 503 with status "error" and the ping error.
func (h *Handler) Serve(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Ping())
	defer cancel()

	w.Header().Set("Content-Type", "application/json")

	resp := healthResponse{
		Status:   "ok",
		Database: "connected",
	}
	if h.Navs != nil {
		resp.Navigators = h.Navs.Len()
	}
	if h.Resolver != nil && len(h.Modules) > 0 {
		resp.Modules = make(map[string]bool, len(h.Modules))
		for _, ref := range h.Modules {
			resp.Modules[string(ref)] = h.Resolver.ModuleLoaded(ref)
		}
	}

	if err := h.DB.Ping(ctx, readpref.Primary()); err != nil {
		h.Log.Error("health-check: mongo ping failed", zap.Error(err))
		w.WriteHeader(http.StatusServiceUnavailable)
		resp.Status = "error"
		resp.Database = "disconnected"
		resp.Message = "Database unavailable"
		resp.Error = err.Error()
	}

	_ = json.NewEncoder(w).Encode(resp)
}
