package navigation

import (
	"net/url"
	"strings"
)

// OutcomeKind tags the result of one resolution step.
type OutcomeKind int

const (
	OutcomeNotFound OutcomeKind = iota
	OutcomeRender
	OutcomeRenderGuarded
	OutcomeRedirect
	OutcomeLoadModule
)

func (k OutcomeKind) String() string {
	switch k {
	case OutcomeRender:
		return "render"
	case OutcomeRenderGuarded:
		return "render_guarded"
	case OutcomeRedirect:
		return "redirect"
	case OutcomeLoadModule:
		return "load_module"
	default:
		return "not_found"
	}
}

// Outcome is what a single Step decides.
type Outcome struct {
	Kind OutcomeKind

	// View is set for render outcomes.
	View string

	// Redirect is the new path for redirect outcomes. It may carry a query.
	Redirect string
	// DeniedBy names the guard whose denial produced the redirect; empty for
	// configured redirects.
	DeniedBy string

	// Module and SubPath are set for load-module outcomes. SubPath is the
	// unconsumed remainder of the path with a leading slash.
	Module  ModuleTarget
	SubPath string

	// Params are the route params captured by the matching entry and its
	// parents.
	Params map[string]string

	// Guards lists the guards that approved this step, in order.
	Guards []string

	// base holds the segments consumed up to and including this step; lazy
	// sub-tables resolve relative redirects against it.
	base []string
	// index is the position of the matching entry in its table.
	index int
}

// Request describes one navigation.
type Request struct {
	Path     string
	Query    url.Values
	ClientID string
	Meta     map[string]string
}

// NewRequest builds a Request from a raw path that may include a query.
func NewRequest(raw string) Request {
	req := Request{Path: raw}
	if i := strings.IndexByte(raw, '?'); i >= 0 {
		req.Path = raw[:i]
		req.Query, _ = url.ParseQuery(raw[i+1:])
	}
	return req
}

// Result is the terminal state of a full resolution.
type Result struct {
	// Kind is OutcomeRender, OutcomeRenderGuarded or OutcomeNotFound.
	Kind OutcomeKind
	View string

	// Requested is the cleaned requested path. Path is where resolution
	// ended, including any query a redirect added.
	Requested string
	Path      string

	Params map[string]string

	// Redirects is the trail of redirect targets followed, in order.
	Redirects []string
	// Guards lists every guard that approved along the way.
	Guards []string
	// Modules lists the lazy bundles entered, outermost first.
	Modules []ModuleRef
}

// Redirected reports whether resolution moved away from the requested path.
func (r Result) Redirected() bool {
	return len(r.Redirects) > 0
}

// Found reports whether a view was selected.
func (r Result) Found() bool {
	return r.Kind == OutcomeRender || r.Kind == OutcomeRenderGuarded
}
