package shell

import (
	"context"
	"net/http"
	"sort"
	"sync"

	"github.com/dalemusser/topaz/internal/app/system/navigation"
)

// Views maps view identifiers from route tables to the handlers that render
// them. Deferred modules add their views when they load.
type Views struct {
	mu   sync.RWMutex
	byID map[string]http.Handler
}

// NewViews returns an empty registry.
func NewViews() *Views {
	return &Views{byID: make(map[string]http.Handler)}
}

// Register binds id to h, replacing any earlier binding.
func (v *Views) Register(id string, h http.Handler) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.byID[id] = h
}

// RegisterFunc is Register for a handler function.
func (v *Views) RegisterFunc(id string, fn http.HandlerFunc) {
	v.Register(id, fn)
}

// Lookup returns the handler bound to id.
func (v *Views) Lookup(id string) (http.Handler, bool) {
	v.mu.RLock()
	defer v.mu.RUnlock()
	h, ok := v.byID[id]
	return h, ok
}

// IDs returns the registered identifiers in sorted order.
func (v *Views) IDs() []string {
	v.mu.RLock()
	defer v.mu.RUnlock()
	ids := make([]string, 0, len(v.byID))
	for id := range v.byID {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

type resultKey struct{}

// WithResult attaches the navigation result a view is rendering for.
func WithResult(r *http.Request, res navigation.Result) *http.Request {
	return r.WithContext(context.WithValue(r.Context(), resultKey{}, res))
}

// Result returns the navigation result attached by the shell.
func Result(r *http.Request) (navigation.Result, bool) {
	res, ok := r.Context().Value(resultKey{}).(navigation.Result)
	return res, ok
}

// Param returns a route parameter captured while resolving the request,
// such as "id" for a ":id" segment.
func Param(r *http.Request, name string) string {
	res, ok := Result(r)
	if !ok {
		return ""
	}
	return res.Params[name]
}
