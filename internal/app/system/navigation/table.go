package navigation

import "strings"

// Table is an immutable, validated list of route entries.
type Table struct {
	entries []Entry
}

// NewTable validates entries and returns the table. Any violation of the
// table invariants is reported as a *ConfigurationError.
func NewTable(entries ...Entry) (*Table, error) {
	t := &Table{entries: make([]Entry, 0, len(entries))}

	var (
		defaultTo  string
		hasDefault bool
	)
	for i, e := range entries {
		e.Path = strings.TrimSpace(e.Path)
		e.Mode = e.Mode.normalize()
		e.Guards = append([]string(nil), e.Guards...)

		if err := validateEntry(e); err != nil {
			return nil, err
		}

		if e.IsWildcard() {
			if i != len(entries)-1 {
				return nil, configErr(e.Path, "wildcard entry must be last")
			}
		} else {
			e.segments = splitPath(e.Path)
			for _, s := range e.segments {
				if s == WildcardPath {
					return nil, configErr(e.Path, "wildcard is only allowed as a whole entry path")
				}
			}
		}

		if e.IsDefault() {
			if hasDefault {
				return nil, configErr(e.Path, "more than one empty-path entry")
			}
			hasDefault = true
			if e.Kind == TargetRedirect {
				defaultTo = e.To
			}
		}

		t.entries = append(t.entries, e)
	}

	if w, ok := t.wildcard(); ok && defaultTo != "" && w.Kind == TargetRedirect {
		if CleanPath(w.To) != CleanPath(defaultTo) {
			return nil, configErr(w.Path, "wildcard redirects to %q but the default entry redirects to %q", w.To, defaultTo)
		}
	}

	if err := t.checkRedirectCycles(); err != nil {
		return nil, err
	}
	return t, nil
}

// MustTable is NewTable for static declarations; it panics on error.
func MustTable(entries ...Entry) *Table {
	t, err := NewTable(entries...)
	if err != nil {
		panic(err)
	}
	return t
}

func validateEntry(e Entry) error {
	switch e.Kind {
	case TargetView:
		if strings.TrimSpace(e.View) == "" {
			return configErr(e.Path, "view entry without a view identifier")
		}
	case TargetRedirect:
		if strings.TrimSpace(e.To) == "" {
			return configErr(e.Path, "redirect entry without a target")
		}
	case TargetModule:
		if e.Module.Ref == "" {
			return configErr(e.Path, "lazy entry without a module reference")
		}
		if e.IsWildcard() {
			return configErr(e.Path, "wildcard entry cannot load a module")
		}
	default:
		return configErr(e.Path, "entry has no target")
	}
	for _, g := range e.Guards {
		if strings.TrimSpace(g) == "" {
			return configErr(e.Path, "empty guard identifier")
		}
	}
	return nil
}

// Entries returns a copy of the table's entries in declaration order.
func (t *Table) Entries() []Entry {
	out := make([]Entry, len(t.entries))
	copy(out, t.entries)
	return out
}

// GuardIDs returns every guard identifier referenced by the table.
func (t *Table) GuardIDs() []string {
	seen := make(map[string]struct{})
	var ids []string
	for _, e := range t.entries {
		for _, g := range e.Guards {
			if _, ok := seen[g]; ok {
				continue
			}
			seen[g] = struct{}{}
			ids = append(ids, g)
		}
	}
	return ids
}

// DefaultTarget returns the redirect target of the empty-path entry, if any.
func (t *Table) DefaultTarget() (string, bool) {
	for _, e := range t.entries {
		if e.IsDefault() && e.Kind == TargetRedirect {
			return e.To, true
		}
	}
	return "", false
}

// match is a pure first-match scan over the table.
type match struct {
	entry    Entry
	index    int
	consumed int
	params   map[string]string
}

// match returns the first entry at or after from that matches segs.
func (t *Table) match(segs []string, from int) (match, bool) {
	for i := from; i < len(t.entries); i++ {
		if n, params, ok := t.entries[i].match(segs); ok {
			return match{entry: t.entries[i], index: i, consumed: n, params: params}, true
		}
	}
	return match{}, false
}

func (t *Table) wildcard() (Entry, bool) {
	if n := len(t.entries); n > 0 && t.entries[n-1].IsWildcard() {
		return t.entries[n-1], true
	}
	return Entry{}, false
}

// checkRedirectCycles follows every static redirect chain inside the table
// and rejects chains that revisit a path. Guards are not consulted; targets
// leaving the table (relative paths resolved by a parent) stop the walk.
func (t *Table) checkRedirectCycles() error {
	for _, e := range t.entries {
		if e.Kind != TargetRedirect {
			continue
		}
		seen := map[string]struct{}{}
		start := e.Path
		if e.IsWildcard() {
			start = "/" + WildcardPath
		}
		seen[CleanPath(start)] = struct{}{}

		to := e.To
		for {
			if !strings.HasPrefix(to, "/") {
				break
			}
			p := CleanPath(to)
			if _, dup := seen[p]; dup {
				return configErr(e.Path, "redirect cycle through %q", p)
			}
			seen[p] = struct{}{}

			m, ok := t.match(splitPath(p), 0)
			if !ok || m.entry.Kind != TargetRedirect {
				break
			}
			to = m.entry.To
		}
	}
	return nil
}
