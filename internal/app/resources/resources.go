// Package resources holds the shared layout templates and the base view
// model every page renders with.
package resources

import (
	"embed"
	"net/http"
	"sync"

	"github.com/dalemusser/topaz/internal/app/system/auth"
	"github.com/dalemusser/waffle/pantry/templates"
)

//go:embed templates/*.gohtml
var FS embed.FS

var registerOnce sync.Once

// LoadSharedTemplates registers the layout set. Safe to call more than once.
func LoadSharedTemplates() {
	registerOnce.Do(func() {
		templates.Register(templates.Set{
			Name:     "shared",
			FS:       FS,
			Patterns: []string{"templates/*.gohtml"},
		})
	})
}

// Page is the base view model read by the shared layout.
type Page struct {
	Title       string
	CurrentPath string
	IsLoggedIn  bool
	UserName    string
}

// NewPage fills a Page for r.
func NewPage(r *http.Request, title string) Page {
	p := Page{Title: title, CurrentPath: r.URL.Path}
	if u, ok := auth.CurrentUser(r); ok {
		p.IsLoggedIn = true
		p.UserName = u.Name
	}
	return p
}
