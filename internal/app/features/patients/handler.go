package patients

import (
	"net/http"

	"github.com/dalemusser/topaz/internal/app/features/shell"
	"github.com/dalemusser/topaz/internal/app/resources"
	"github.com/dalemusser/waffle/pantry/templates"
	"go.uber.org/zap"
)

// Handler renders the patients views.
type Handler struct {
	Log *zap.Logger
}

func NewHandler(logger *zap.Logger) *Handler {
	return &Handler{Log: logger}
}

type pageData struct {
	resources.Page
	PatientID string
}

func (h *Handler) page(r *http.Request, title string) pageData {
	return pageData{
		Page:      resources.NewPage(r, title),
		PatientID: shell.Param(r, "id"),
	}
}

// ServeList renders /patients.
func (h *Handler) ServeList(w http.ResponseWriter, r *http.Request) {
	templates.Render(w, r, "patients_list", h.page(r, "Patients"))
}

// ServeNew renders /patients/new.
func (h *Handler) ServeNew(w http.ResponseWriter, r *http.Request) {
	templates.Render(w, r, "patients_new", h.page(r, "New patient"))
}

// ServeDetail renders /patients/{id}.
func (h *Handler) ServeDetail(w http.ResponseWriter, r *http.Request) {
	templates.Render(w, r, "patients_detail", h.page(r, "Patient"))
}

// ServeEdit renders /patients/{id}/edit.
func (h *Handler) ServeEdit(w http.ResponseWriter, r *http.Request) {
	templates.Render(w, r, "patients_edit", h.page(r, "Edit patient"))
}
