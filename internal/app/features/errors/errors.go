// internal/app/features/errors/errors.go
package errors

import (
	"net/http"

	"github.com/dalemusser/topaz/internal/app/resources"
	"github.com/dalemusser/waffle/pantry/templates"
)

// pageData is the view model for error pages.
type pageData struct {
	resources.Page
	Status  int
	Message string
	BackURL string
}

// Handler renders error pages. No DB needed.
type Handler struct {
	// BackURL is where error pages link back to.
	BackURL string
}

// NewHandler constructs an errors Handler linking back to backURL.
func NewHandler(backURL string) *Handler {
	if backURL == "" {
		backURL = "/"
	}
	return &Handler{BackURL: backURL}
}

// NotFound renders the 404 page.
func (h *Handler) NotFound(w http.ResponseWriter, r *http.Request) {
	h.render(w, r, http.StatusNotFound, "Page not found", "There is nothing at this address.")
}

// Failure renders an error page with the given status and message.
func (h *Handler) Failure(w http.ResponseWriter, r *http.Request, status int, msg string) {
	h.render(w, r, status, http.StatusText(status), msg)
}

func (h *Handler) render(w http.ResponseWriter, r *http.Request, status int, title, msg string) {
	data := pageData{
		Page:    resources.NewPage(r, title),
		Status:  status,
		Message: msg,
		BackURL: h.BackURL,
	}

	w.WriteHeader(status)
	templates.Render(w, r, "error_page", data)
}
