// Package engine composes views into HTML. A render resolves the requested
// view, applies its layout chain, merges sections, inlines partials and
// records every view it consulted so cached results can be invalidated when
// any of them changes.
package engine

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"sync/atomic"
	"text/template"

	"github.com/conneroisu/tmplview/internal/cache"
	"github.com/conneroisu/tmplview/internal/codegen"
	"github.com/conneroisu/tmplview/internal/compiler"
	"github.com/conneroisu/tmplview/internal/errors"
	"github.com/conneroisu/tmplview/internal/helpers"
	"github.com/conneroisu/tmplview/internal/htmlfmt"
	"github.com/conneroisu/tmplview/internal/locator"
	"github.com/conneroisu/tmplview/internal/logging"
)

// DefaultMaxDepth bounds partial and section-file nesting.
const DefaultMaxDepth = 32

// Options configures an Engine.
type Options struct {
	// Cache keeps compiled views between renders.
	Cache bool
	// Production hides diagnostics from rendered output.
	Production bool
	// Extension is stripped from view names to form identities.
	Extension string
	// PersistDir, when set, stores generated code between restarts.
	PersistDir string
	Pretty     bool
	Minify     bool
	MaxDepth   int
	Locale     string
	Currency   string
	// Funcs are extra template funcs. They override helpers of the same name.
	Funcs  template.FuncMap
	Logger logging.Logger
}

// Stats reports engine activity.
type Stats struct {
	Renders      int64       `json:"renders"`
	Failures     int64       `json:"failures"`
	Compilations int64       `json:"compilations"`
	Cache        cache.Stats `json:"cache"`
}

// Result is a rendered view and the identities it was built from.
type Result struct {
	HTML         string
	Dependencies []string
}

// Engine renders views. It is safe for concurrent use.
type Engine struct {
	opts      Options
	resolver  *locator.Resolver
	cache     *cache.Cache[*plan]
	persister *compiler.Persister
	funcs     template.FuncMap
	logger    logging.Logger
	maxDepth  int

	renders      int64
	failures     int64
	compilations int64
}

// New creates an engine that finds views through locators, in priority order.
func New(opts Options, locators ...locator.ViewLocator) *Engine {
	logger := opts.Logger
	if logger == nil {
		logger = logging.NewNop()
	}
	logger = logger.WithComponent("engine")

	if opts.Extension == "" {
		opts.Extension = locator.DefaultExtension
	}
	maxDepth := opts.MaxDepth
	if maxDepth <= 0 {
		maxDepth = DefaultMaxDepth
	}

	funcs := helpers.New(helpers.Options{Locale: opts.Locale, Currency: opts.Currency}).Funcs()
	for k, v := range opts.Funcs {
		funcs[k] = v
	}

	e := &Engine{
		opts:     opts,
		resolver: locator.NewResolver(logger, locators...),
		cache:    cache.New[*plan](),
		funcs:    funcs,
		logger:   logger,
		maxDepth: maxDepth,
	}
	if opts.PersistDir != "" {
		e.persister = compiler.NewPersister(opts.PersistDir, funcs)
	}
	return e
}

// AddLocator registers a locator with the lowest priority.
func (e *Engine) AddLocator(l locator.ViewLocator) {
	e.resolver.Add(l)
}

// InsertLocator registers a locator at index; 0 is tried first.
func (e *Engine) InsertLocator(index int, l locator.ViewLocator) {
	e.resolver.Insert(index, l)
}

// Render renders the named view with model.
func (e *Engine) Render(ctx context.Context, name string, model any) (string, error) {
	res, err := e.RenderResult(ctx, name, model)
	if err != nil {
		return "", err
	}
	return res.HTML, nil
}

// RenderResult renders the named view and reports its dependency set.
func (e *Engine) RenderResult(ctx context.Context, name string, model any) (*Result, error) {
	atomic.AddInt64(&e.renders, 1)
	perf := logging.StartOperation(e.logger.With("view", name), "render")

	res, err := e.render(ctx, name, model)
	if err != nil {
		atomic.AddInt64(&e.failures, 1)
		perf.EndWithError(ctx, err)
		return nil, err
	}
	perf.End(ctx)
	return res, nil
}

func (e *Engine) render(ctx context.Context, name string, model any) (*Result, error) {
	id := e.identity(name)
	if id == "" {
		return nil, errors.NewViewNotFoundError(name)
	}

	gen := e.cache.Generation()
	p, err := e.plan(ctx, id, gen)
	if err != nil {
		return nil, err
	}

	r := e.newRun(ctx, p)
	out, err := r.render(id, model, 0)
	if err != nil {
		return nil, tagView(err, id)
	}

	if len(r.extra) > 0 {
		p = p.with(r.extra)
		if e.opts.Cache {
			e.cache.PutIfCurrent(id, p, p.deps, gen)
		}
	}

	return &Result{HTML: e.postProcess(out), Dependencies: p.deps}, nil
}

// plan returns the cached plan for id or builds one. gen is the cache
// generation captured before the lookup; a plan built across an
// invalidation is returned but not cached.
func (e *Engine) plan(ctx context.Context, id string, gen uint64) (*plan, error) {
	if e.opts.Cache {
		if p, ok := e.cache.Get(id); ok {
			return p, nil
		}
	}

	p, err := e.build(ctx, id)
	if err != nil {
		return nil, tagView(err, id)
	}
	if e.opts.Cache && !e.cache.PutIfCurrent(id, p, p.deps, gen) {
		e.logger.Debug(ctx, "plan built across an invalidation, not cached", "view", id)
	}
	return p, nil
}

// Compile compiles template text that is not stored behind a locator. The
// returned func renders it like a view, so it may use partials and layouts.
func (e *Engine) Compile(text string) (func(ctx context.Context, model any) (string, error), error) {
	id := "inline:" + shortHash(text)
	n := e.compileNode(id, text)
	if n.err != nil {
		return nil, n.err
	}

	p := &plan{entry: id, nodes: map[string]*node{id: n}, deps: []string{id}}
	return func(ctx context.Context, model any) (string, error) {
		out, err := e.newRun(ctx, p).render(id, model, 0)
		if err != nil {
			return "", err
		}
		return e.postProcess(out), nil
	}, nil
}

// GenerateCode returns the template code generated for text.
func (e *Engine) GenerateCode(text string) (string, error) {
	return codegen.Generate(text)
}

// Precompile resolves and compiles the named view and every view it
// statically references, persisting generated code when a persist
// directory is configured. It returns the identities it compiled.
func (e *Engine) Precompile(ctx context.Context, name string) ([]string, error) {
	id := e.identity(name)
	if id == "" {
		return nil, errors.NewViewNotFoundError(name)
	}
	p, err := e.plan(ctx, id, e.cache.Generation())
	if err != nil {
		return nil, tagView(err, id)
	}

	var compiled []string
	for _, dep := range p.deps {
		n := p.nodes[dep]
		if n == nil {
			continue
		}
		if n.err != nil {
			return compiled, n.err
		}
		compiled = append(compiled, dep)
	}
	return compiled, nil
}

// NotifyChanged drops every cached view that depends on the changed view,
// along with the changed view's persisted code, and returns the identities
// of the dropped cache entries. Renders already in flight finish with the
// sources they read but do not cache their result.
func (e *Engine) NotifyChanged(name string) []string {
	id := e.identity(name)
	removed := e.cache.Invalidate(id)
	if e.persister != nil {
		if err := e.persister.Remove(id); err != nil {
			e.logger.Warn(context.Background(), err, "failed to drop persisted code", "view", id)
		}
	}
	if len(removed) > 0 {
		e.logger.Debug(context.Background(), "cache invalidated", "changed", id, "views", removed)
	}
	return removed
}

// Dependencies returns the dependency set cached for the named view.
func (e *Engine) Dependencies(name string) ([]string, bool) {
	return e.cache.Dependencies(e.identity(name))
}

// Identity maps a view name to the identity used for lookups and caching.
func (e *Engine) Identity(name string) string {
	return e.identity(name)
}

// Production reports whether diagnostics are hidden.
func (e *Engine) Production() bool {
	return e.opts.Production
}

// Stats returns engine and cache counters.
func (e *Engine) Stats() Stats {
	return Stats{
		Renders:      atomic.LoadInt64(&e.renders),
		Failures:     atomic.LoadInt64(&e.failures),
		Compilations: atomic.LoadInt64(&e.compilations),
		Cache:        e.cache.Stats(),
	}
}

func (e *Engine) identity(name string) string {
	return locator.Normalize(name, e.opts.Extension)
}

// load resolves and compiles id. It returns nil when no locator has it.
func (e *Engine) load(ctx context.Context, id string) *node {
	text, ok := e.resolver.Locate(ctx, id)
	if !ok {
		return nil
	}
	return e.compileNode(id, text)
}

func (e *Engine) compileNode(id, text string) *node {
	atomic.AddInt64(&e.compilations, 1)
	tmpl, err := e.compile(id, text)
	if err != nil {
		e.logger.Warn(context.Background(), err, "view failed to compile", "view", id)
		return &node{id: id, err: tagView(err, id)}
	}
	return &node{id: id, tmpl: tmpl}
}

func (e *Engine) compile(id, text string) (*compiler.Template, error) {
	if e.persister != nil {
		t, ok, err := e.persister.Load(id, text)
		if err != nil {
			e.logger.Warn(context.Background(), err, "persisted view unusable", "view", id)
		}
		if ok {
			return t, nil
		}
	}

	code, err := codegen.Generate(text)
	if err != nil {
		return nil, err
	}
	if e.persister != nil {
		return e.persister.CompileAndPersist(id, text, code)
	}
	return compiler.Compile(id, code, e.funcs)
}

func (e *Engine) postProcess(out string) string {
	switch {
	case e.opts.Minify:
		return htmlfmt.Minify(out)
	case e.opts.Pretty:
		return htmlfmt.Beautify(out)
	}
	return out
}

// tagView records the view on errors that do not name one yet.
func tagView(err error, id string) error {
	var ve *errors.ViewError
	if errors.As(err, &ve) && ve.View == "" {
		ve.WithView(id)
	}
	return err
}

func shortHash(s string) string {
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:6])
}
