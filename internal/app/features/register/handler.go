// Package register serves the account registration page. Accounts live in
// the auth service; this page only points people there.
package register

import (
	"net/http"

	"github.com/dalemusser/topaz/internal/app/resources"
	"github.com/dalemusser/waffle/pantry/templates"
)

// ViewID is the view the root route table binds to /register.
const ViewID = "auth.register"

type Handler struct {
	LoginPath string
}

func NewHandler(loginPath string) *Handler {
	return &Handler{LoginPath: loginPath}
}

type pageData struct {
	resources.Page
	LoginPath string
}

// ServeRegister renders the registration page.
func (h *Handler) ServeRegister(w http.ResponseWriter, r *http.Request) {
	templates.Render(w, r, "register", pageData{
		Page:      resources.NewPage(r, "Register"),
		LoginPath: h.LoginPath,
	})
}
