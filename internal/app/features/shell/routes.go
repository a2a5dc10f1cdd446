package shell

import "github.com/go-chi/chi/v5"

// Routes returns a router sending every GET to the shell. Mount it at "/"
// after the specific routes.
func Routes(h *Handler) chi.Router {
	r := chi.NewRouter()
	r.Get("/", h.ServeHTTP)
	r.Get("/*", h.ServeHTTP)
	return r
}
