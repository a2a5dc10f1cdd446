package navigation

import (
	"context"
	"net/url"
)

// Context is what a guard sees about the navigation it is asked to gate.
type Context struct {
	// Path is the originally requested path (cleaned).
	Path string
	// Target is the path currently being resolved; it differs from Path
	// after redirects.
	Target string
	// Params are the route params captured so far.
	Params map[string]string
	// Query is the query of the original request.
	Query url.Values
	// ClientID identifies the navigating client (browser), if known.
	ClientID string
	// Meta carries request details a guard may need, such as the
	// Authorization header or the session cookie value.
	Meta map[string]string
}

// Decision is a guard's verdict.
type Decision struct {
	Allow bool
	// Redirect is where a denied navigation goes instead.
	Redirect string
}

// Approve lets the navigation proceed.
func Approve() Decision { return Decision{Allow: true} }

// Deny blocks the navigation and redirects it to path.
func Deny(path string) Decision { return Decision{Redirect: path} }

// Guard gates activation of a route entry. CanActivate may block (for
// example on a database lookup) and must honor ctx cancellation.
//
// A non-nil error means the check itself failed. The returned Decision's
// Redirect is still used as the fallback in that case when set.
type Guard interface {
	CanActivate(ctx context.Context, nc Context) (Decision, error)
}

// GuardFunc adapts a function to Guard.
type GuardFunc func(ctx context.Context, nc Context) (Decision, error)

// CanActivate calls f.
func (f GuardFunc) CanActivate(ctx context.Context, nc Context) (Decision, error) {
	return f(ctx, nc)
}
