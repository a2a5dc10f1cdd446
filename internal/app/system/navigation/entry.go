// Package navigation resolves requested application paths against a static,
// ordered route table.
//
// A table is a list of entries built with View, RedirectTo, Lazy and
// Wildcard. Resolution walks the entries in declaration order and the first
// structural match wins. Guarded entries consult the guards registered with
// the Resolver before activating; lazy entries load their module bundle once
// per process and resolve the remaining path against the bundle's sub-table.
//
// The Navigator layers cancellation-by-supersession on top of the Resolver:
// a navigation that completes after a newer one has started is discarded.
package navigation

import "strings"

// TargetKind tags what an entry activates.
type TargetKind int

const (
	// TargetView renders a view identifier.
	TargetView TargetKind = iota + 1
	// TargetRedirect rewrites the path.
	TargetRedirect
	// TargetModule defers to a lazily loaded module's sub-table.
	TargetModule
)

func (k TargetKind) String() string {
	switch k {
	case TargetView:
		return "view"
	case TargetRedirect:
		return "redirect"
	case TargetModule:
		return "module"
	default:
		return "unknown"
	}
}

// MatchMode controls how an entry path is compared with the requested path.
type MatchMode string

const (
	// MatchFull requires every requested segment to be consumed.
	MatchFull MatchMode = "full"
	// MatchPrefix matches when the entry's segments are a leading run of the
	// requested segments.
	MatchPrefix MatchMode = "prefix"
)

func (m MatchMode) normalize() MatchMode {
	switch m {
	case MatchPrefix:
		return MatchPrefix
	default:
		return MatchFull
	}
}

func (m MatchMode) String() string {
	return string(m.normalize())
}

// WildcardPath is the catch-all entry path.
const WildcardPath = "**"

// ModuleRef identifies a lazily loaded bundle of routes and views.
type ModuleRef string

// ModuleTarget names a bundle and the export inside it that serves as the
// sub-route table.
type ModuleTarget struct {
	Ref    ModuleRef
	Export string
}

// Entry is one static mapping from a path pattern to an outcome.
// Build entries with View, RedirectTo, Lazy or Wildcard.
type Entry struct {
	Path   string
	Kind   TargetKind
	View   string
	To     string
	Module ModuleTarget
	Guards []string
	Mode   MatchMode

	segments []string
}

// View maps path to a view identifier. Views match in full mode.
func View(path, view string) Entry {
	return Entry{Path: path, Kind: TargetView, View: view, Mode: MatchFull}
}

// RedirectTo rewrites path to the target path. Redirects match in full mode.
func RedirectTo(path, to string) Entry {
	return Entry{Path: path, Kind: TargetRedirect, To: to, Mode: MatchFull}
}

// Lazy defers everything under path to the named export of a module bundle.
// Lazy entries match in prefix mode.
func Lazy(path string, ref ModuleRef, export string) Entry {
	return Entry{
		Path:   path,
		Kind:   TargetModule,
		Module: ModuleTarget{Ref: ref, Export: export},
		Mode:   MatchPrefix,
	}
}

// Wildcard is the catch-all entry redirecting every otherwise unmatched path.
func Wildcard(to string) Entry {
	return RedirectTo(WildcardPath, to)
}

// Guarded returns a copy of e that requires every listed guard to approve.
func (e Entry) Guarded(ids ...string) Entry {
	e.Guards = append(append([]string(nil), e.Guards...), ids...)
	return e
}

// Match returns a copy of e with the given match mode.
func (e Entry) Match(mode MatchMode) Entry {
	e.Mode = mode.normalize()
	return e
}

// IsWildcard reports whether e is the catch-all entry.
func (e Entry) IsWildcard() bool {
	return strings.TrimSpace(e.Path) == WildcardPath
}

// IsDefault reports whether e has the empty path.
func (e Entry) IsDefault() bool {
	return len(splitPath(e.Path)) == 0 && !e.IsWildcard()
}

// match tests e against the requested segments. On success it returns the
// number of segments consumed and any captured params.
func (e Entry) match(segs []string) (int, map[string]string, bool) {
	if e.IsWildcard() {
		return len(segs), nil, true
	}
	if len(e.segments) > len(segs) {
		return 0, nil, false
	}
	if e.Mode.normalize() == MatchFull && len(e.segments) != len(segs) {
		return 0, nil, false
	}

	var params map[string]string
	for i, want := range e.segments {
		if name, ok := paramName(want); ok {
			if params == nil {
				params = make(map[string]string)
			}
			params[name] = segs[i]
			continue
		}
		if want != segs[i] {
			return 0, nil, false
		}
	}
	return len(e.segments), params, true
}

func paramName(seg string) (string, bool) {
	if len(seg) > 1 && seg[0] == ':' {
		return seg[1:], true
	}
	return "", false
}

// splitPath breaks a path into non-empty segments. Query strings and
// fragments are ignored.
func splitPath(p string) []string {
	if i := strings.IndexAny(p, "?#"); i >= 0 {
		p = p[:i]
	}
	parts := strings.Split(p, "/")
	segs := parts[:0]
	for _, s := range parts {
		if s != "" {
			segs = append(segs, s)
		}
	}
	return segs
}

// joinPath renders segments as an absolute path.
func joinPath(segs []string) string {
	return "/" + strings.Join(segs, "/")
}

// CleanPath normalizes a requested path to its absolute segment form:
// "" and "/" become "/", duplicate slashes collapse, query and fragment are
// dropped.
func CleanPath(p string) string {
	return joinPath(splitPath(p))
}
