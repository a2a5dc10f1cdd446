package navigation

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
)

// Default resolver limits.
const (
	DefaultMaxRedirects = 10
	DefaultGuardTimeout = 5 * time.Second
	DefaultLoadTimeout  = 10 * time.Second
)

// Options configures a Resolver.
type Options struct {
	// Guards maps guard identifiers used in tables to implementations.
	Guards map[string]Guard
	// Loader fetches lazy module bundles. Required when a table has lazy
	// entries.
	Loader ModuleLoader
	// DenyFallback is used when a guard denies without naming a redirect.
	DenyFallback string
	// MaxRedirects bounds redirect chains followed by Resolve.
	MaxRedirects int
	// GuardTimeout bounds each guard call.
	GuardTimeout time.Duration
	// LoadTimeout bounds each module fetch.
	LoadTimeout time.Duration
	// Metrics may be nil.
	Metrics *Metrics
}

// Resolver resolves paths against a root table.
type Resolver struct {
	root    *Table
	guards  map[string]Guard
	opts    Options
	modules *moduleCache
	metrics *Metrics
	log     *zap.Logger
}

// NewResolver checks root against opts and returns a Resolver. Unknown guard
// identifiers, unknown module references and lazy entries without a loader
// are reported as *ConfigurationError.
func NewResolver(root *Table, opts Options, logger *zap.Logger) (*Resolver, error) {
	if root == nil {
		return nil, configErr("", "nil route table")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.MaxRedirects <= 0 {
		opts.MaxRedirects = DefaultMaxRedirects
	}
	if opts.GuardTimeout <= 0 {
		opts.GuardTimeout = DefaultGuardTimeout
	}
	if opts.LoadTimeout <= 0 {
		opts.LoadTimeout = DefaultLoadTimeout
	}

	guards := make(map[string]Guard, len(opts.Guards))
	for id, g := range opts.Guards {
		if g == nil {
			return nil, configErr("", "guard %q is nil", id)
		}
		guards[id] = g
	}

	r := &Resolver{
		root:    root,
		guards:  guards,
		opts:    opts,
		metrics: opts.Metrics,
		log:     logger,
	}
	if err := r.checkTable(root); err != nil {
		return nil, err
	}
	if opts.Loader != nil {
		r.modules = newModuleCache(opts.Loader, opts.LoadTimeout, opts.Metrics, logger)
	}
	return r, nil
}

// checkTable verifies that everything t references is available.
func (r *Resolver) checkTable(t *Table) error {
	for _, id := range t.GuardIDs() {
		if _, ok := r.guards[id]; !ok {
			return configErr("", "guard %q is not registered", id)
		}
	}
	knower, canCheck := r.opts.Loader.(interface{ Knows(ModuleRef) bool })
	for _, e := range t.entries {
		if e.Kind != TargetModule {
			continue
		}
		if r.opts.Loader == nil {
			return configErr(e.Path, "lazy entry but no module loader configured")
		}
		if canCheck && !knower.Knows(e.Module.Ref) {
			return configErr(e.Path, "module %q has no loader", e.Module.Ref)
		}
	}
	return nil
}

// ModuleLoaded reports whether the bundle for ref has been fetched.
func (r *Resolver) ModuleLoaded(ref ModuleRef) bool {
	return r.modules != nil && r.modules.loaded(ref)
}

// Step performs one resolution step of req against the root table and
// returns its outcome without following redirects or loading modules.
func (r *Resolver) Step(ctx context.Context, req Request) (Outcome, error) {
	nc := r.navContext(req, req.Path)
	return r.step(ctx, r.root, nil, splitPath(req.Path), 0, nc)
}

// StepModule resolves subPath against the sub-table published by a module
// target, loading the bundle first if needed.
func (r *Resolver) StepModule(ctx context.Context, target ModuleTarget, req Request, subPath string) (Outcome, error) {
	sub, err := r.subTable(ctx, target)
	if err != nil {
		return Outcome{}, err
	}
	nc := r.navContext(req, req.Path)
	return r.step(ctx, sub, nil, splitPath(subPath), 0, nc)
}

// Resolve drives req to a terminal outcome: redirects are followed (bounded
// and cycle-checked), lazy modules are loaded and their sub-tables
// consulted. The returned Result is a view, or NotFound.
func (r *Resolver) Resolve(ctx context.Context, req Request) (Result, error) {
	res := Result{
		Requested: CleanPath(req.Path),
		Path:      CleanPath(req.Path),
	}

	target := req.Path
	visited := map[string]struct{}{CleanPath(target): {}}

	for {
		if err := ctx.Err(); err != nil {
			return res, err
		}

		out, err := r.resolveTarget(ctx, req, target, &res)
		if err != nil {
			return res, err
		}

		switch out.Kind {
		case OutcomeRedirect:
			if len(res.Redirects) >= r.opts.MaxRedirects {
				return res, configErr(res.Requested, "more than %d redirects", r.opts.MaxRedirects)
			}
			next := CleanPath(out.Redirect)
			if _, dup := visited[next]; dup {
				return res, configErr(res.Requested, "redirect cycle through %q", next)
			}
			visited[next] = struct{}{}

			r.log.Debug("navigation redirect",
				zap.String("from", target),
				zap.String("to", out.Redirect),
				zap.String("denied_by", out.DeniedBy))

			r.metrics.incOutcome(OutcomeRedirect)
			res.Redirects = append(res.Redirects, out.Redirect)
			res.Path = out.Redirect
			target = out.Redirect
			res.Params = nil

		case OutcomeRender, OutcomeRenderGuarded:
			res.Kind = out.Kind
			res.View = out.View
			res.Params = out.Params
			r.metrics.incOutcome(out.Kind)
			return res, nil

		default:
			res.Kind = OutcomeNotFound
			r.metrics.incOutcome(OutcomeNotFound)
			return res, nil
		}
	}
}

// frame is a table position to resume from when a lazy sub-table has no
// match for the rest of the path.
type frame struct {
	table     *Table
	base      []string
	segs      []string
	params    map[string]string
	next      int
	inherited bool
}

// resolveTarget resolves one path through the root table and any lazy
// modules it enters, stopping at a view, redirect or not-found. When a
// module's table matches nothing, matching resumes in the parent table after
// the lazy entry, so later entries such as the wildcard still apply.
func (r *Resolver) resolveTarget(ctx context.Context, req Request, target string, res *Result) (Outcome, error) {
	nc := r.navContext(req, target)

	cur := frame{table: r.root, segs: splitPath(target)}
	var parents []frame

	for {
		nc.Params = cur.params
		out, err := r.step(ctx, cur.table, cur.base, cur.segs, cur.next, nc)
		if err != nil {
			return Outcome{}, err
		}

		if out.Kind == OutcomeNotFound && len(parents) > 0 {
			cur = parents[len(parents)-1]
			parents = parents[:len(parents)-1]
			r.log.Debug("navigation: module had no match, resuming in parent table",
				zap.String("path", target))
			continue
		}

		res.Guards = append(res.Guards, out.Guards...)

		if out.Kind != OutcomeLoadModule {
			if out.Kind == OutcomeRender && cur.inherited {
				out.Kind = OutcomeRenderGuarded
			}
			return out, nil
		}

		sub, err := r.subTable(ctx, out.Module)
		if err != nil {
			return Outcome{}, err
		}
		res.Modules = append(res.Modules, out.Module.Ref)

		resume := cur
		resume.next = out.index + 1
		parents = append(parents, resume)

		cur = frame{
			table:     sub,
			base:      out.base,
			segs:      splitPath(out.SubPath),
			params:    out.Params,
			inherited: cur.inherited || len(out.Guards) > 0,
		}
	}
}

func (r *Resolver) subTable(ctx context.Context, target ModuleTarget) (*Table, error) {
	if r.modules == nil {
		return nil, configErr("", "module %q referenced but no loader configured", target.Ref)
	}
	b, err := r.modules.load(ctx, target.Ref)
	if err != nil {
		return nil, err
	}
	sub, ok := b.Routes(target.Export)
	if !ok {
		return nil, &ModuleLoadFailure{
			Ref:    target.Ref,
			Export: target.Export,
			Err:    fmt.Errorf("bundle has no export %q", target.Export),
		}
	}
	if err := r.checkTable(sub); err != nil {
		return nil, err
	}
	return sub, nil
}

// step matches segs against the entries of t starting at from. base holds
// the segments consumed by parent tables.
func (r *Resolver) step(ctx context.Context, t *Table, base, segs []string, from int, nc Context) (Outcome, error) {
	m, ok := t.match(segs, from)
	if !ok {
		r.log.Debug("navigation step: no match", zap.String("path", fullPath(base, segs)))
		return Outcome{Kind: OutcomeNotFound, Params: nc.Params}, nil
	}

	e := m.entry
	params := mergeParams(nc.Params, m.params)
	nc.Params = params

	consumed := append(append([]string(nil), base...), segs[:m.consumed]...)

	r.log.Debug("navigation step: matched",
		zap.String("path", fullPath(base, segs)),
		zap.String("entry", e.Path),
		zap.Stringer("target", e.Kind))

	var approved []string
	if len(e.Guards) > 0 {
		denied, err := r.runGuards(ctx, e.Guards, nc)
		if err != nil {
			return Outcome{}, err
		}
		if denied != nil {
			denied.Params = params
			return *denied, nil
		}
		approved = append(approved, e.Guards...)
	}

	out := Outcome{Params: params, Guards: approved, base: consumed, index: m.index}
	switch e.Kind {
	case TargetView:
		out.Kind = OutcomeRender
		if len(e.Guards) > 0 {
			out.Kind = OutcomeRenderGuarded
		}
		out.View = e.View
	case TargetRedirect:
		out.Kind = OutcomeRedirect
		out.Redirect = redirectTarget(base, e.To)
	case TargetModule:
		out.Kind = OutcomeLoadModule
		out.Module = e.Module
		out.SubPath = joinPath(segs[m.consumed:])
	}
	return out, nil
}

// runGuards evaluates ids in order and stops at the first denial. It returns
// a redirect outcome for a denial, nil when every guard approves, a
// *GuardFailure when a guard errors without a fallback, or a
// *ConfigurationError when a denial has nowhere to redirect.
func (r *Resolver) runGuards(ctx context.Context, ids []string, nc Context) (*Outcome, error) {
	for _, id := range ids {
		g := r.guards[id]

		gctx, cancel := context.WithTimeout(ctx, r.opts.GuardTimeout)
		dec, err := g.CanActivate(gctx, nc)
		cancel()

		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, ctxErr
			}
			r.metrics.incGuard(id, "error")
			if dec.Redirect != "" {
				r.log.Warn("guard failed; using its fallback",
					zap.String("guard", id),
					zap.String("path", nc.Target),
					zap.String("fallback", dec.Redirect),
					zap.Error(err))
				return &Outcome{Kind: OutcomeRedirect, Redirect: dec.Redirect, DeniedBy: id}, nil
			}
			r.log.Error("guard failed",
				zap.String("guard", id),
				zap.String("path", nc.Target),
				zap.Error(err))
			return nil, &GuardFailure{Guard: id, Path: nc.Target, Err: err}
		}

		if !dec.Allow {
			r.metrics.incGuard(id, "deny")
			to := dec.Redirect
			if to == "" {
				to = r.opts.DenyFallback
			}
			if to == "" {
				return nil, configErr(nc.Target, "guard %q denied without a redirect and no deny fallback is configured", id)
			}
			r.log.Info("guard denied navigation",
				zap.String("guard", id),
				zap.String("path", nc.Target),
				zap.String("redirect", to))
			return &Outcome{Kind: OutcomeRedirect, Redirect: to, DeniedBy: id}, nil
		}
		r.metrics.incGuard(id, "approve")
	}
	return nil, nil
}

func (r *Resolver) navContext(req Request, target string) Context {
	return Context{
		Path:     CleanPath(req.Path),
		Target:   CleanPath(target),
		Query:    req.Query,
		ClientID: req.ClientID,
		Meta:     req.Meta,
	}
}

// redirectTarget resolves to against the segments consumed by parent
// tables. Absolute targets are returned unchanged.
func redirectTarget(base []string, to string) string {
	if strings.HasPrefix(to, "/") {
		return to
	}
	query := ""
	if i := strings.IndexAny(to, "?#"); i >= 0 {
		to, query = to[:i], to[i:]
	}
	return joinPath(append(append([]string(nil), base...), splitPath(to)...)) + query
}

func fullPath(base, segs []string) string {
	all := make([]string, 0, len(base)+len(segs))
	all = append(all, base...)
	return joinPath(append(all, segs...))
}

func mergeParams(parent, own map[string]string) map[string]string {
	if len(parent) == 0 && len(own) == 0 {
		return nil
	}
	out := make(map[string]string, len(parent)+len(own))
	for k, v := range parent {
		out[k] = v
	}
	for k, v := range own {
		out[k] = v
	}
	return out
}
