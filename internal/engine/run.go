package engine

import (
	"context"
	"fmt"
	"strings"
	"text/template"

	"github.com/conneroisu/tmplview/internal/compiler"
	"github.com/conneroisu/tmplview/internal/errors"
)

// producer renders the content of one section on demand.
type producer func() (string, error)

// sectionTable maps section names to producers.
type sectionTable map[string]producer

// run is the state of a single render. It is never shared between
// goroutines.
type run struct {
	ctx    context.Context
	engine *Engine
	plan   *plan
	// views resolved while executing, for partial names computed at runtime
	extra  map[string]*node
	active map[string]bool
}

// frame is one executing view. body is set when the view is applied as a
// layout; sections is its own content overlaid by its children's.
type frame struct {
	node      *node
	model     any
	body      *string
	bodyCalls int
	sections  sectionTable
	depth     int
}

func (e *Engine) newRun(ctx context.Context, p *plan) *run {
	return &run{
		ctx:    ctx,
		engine: e,
		plan:   p,
		extra:  map[string]*node{},
		active: map[string]bool{},
	}
}

// node returns the compiled view for id, resolving it when the plan did not
// anticipate it. ok is false when no locator has the view.
func (r *run) node(id string) (*node, bool) {
	if n, seen := r.plan.nodes[id]; seen {
		return n, n != nil
	}
	if n, seen := r.extra[id]; seen {
		return n, n != nil
	}
	n := r.engine.load(r.ctx, id)
	r.extra[id] = n
	return n, n != nil
}

// render executes id and walks its layout chain outwards, handing each
// result to the next layout as its body.
func (r *run) render(id string, model any, depth int) (string, error) {
	n, ok := r.node(id)
	if !ok {
		return "", errors.NewViewNotFoundError(id)
	}

	chain := []string{id}
	visited := map[string]bool{id: true}
	var body *string
	var incoming sectionTable

	for {
		if n.err != nil {
			return "", n.err
		}

		f := r.newFrame(n, model, body, incoming, depth)
		out, err := r.execute(f)
		if err != nil {
			return "", err
		}
		if body != nil && f.bodyCalls == 0 {
			return "", errors.NewRenderBodyContractError(n.id, 0)
		}

		layout := n.tmpl.Directives().Layout
		if layout == "" {
			return out, nil
		}
		lid := r.engine.identity(layout)
		if visited[lid] {
			return "", errors.NewLayoutCycleError(id, append(chain, lid))
		}
		visited[lid] = true
		chain = append(chain, lid)

		next, ok := r.node(lid)
		if !ok {
			r.engine.logger.Debug(r.ctx, "layout not found, omitted", "view", n.id, "layout", lid)
			return out, nil
		}

		body = &out
		incoming = f.sections
		n = next
	}
}

// newFrame builds the section table for n: its own inline and file backed
// sections act as defaults, and anything the child chain provides wins.
func (r *run) newFrame(n *node, model any, body *string, incoming sectionTable, depth int) *frame {
	f := &frame{
		node:     n,
		model:    model,
		body:     body,
		sections: sectionTable{},
		depth:    depth,
	}

	dirs := n.tmpl.Directives()
	for name, file := range dirs.SectionFiles {
		f.sections[name] = r.fileSection(f, name, file)
	}
	for _, name := range dirs.Sections {
		f.sections[name] = r.inlineSection(f, name)
	}
	for name, p := range incoming {
		f.sections[name] = p
	}
	return f
}

func (r *run) execute(f *frame) (string, error) {
	var b strings.Builder
	if err := f.node.tmpl.Execute(&b, f.model, r.funcs(f)); err != nil {
		return "", err
	}
	return b.String(), nil
}

// funcs binds the composition funcs to a frame.
func (r *run) funcs(f *frame) template.FuncMap {
	return template.FuncMap{
		compiler.FuncRenderBody: func() (string, error) {
			if f.body == nil {
				return "", errors.NewRenderBodyContractError(f.node.id, -1)
			}
			f.bodyCalls++
			if f.bodyCalls > 1 {
				return "", errors.NewRenderBodyContractError(f.node.id, f.bodyCalls)
			}
			return *f.body, nil
		},
		compiler.FuncRenderSection: func(name string, def ...string) (string, error) {
			if p, ok := f.sections[name]; ok {
				return p()
			}
			if len(def) > 0 {
				return def[0], nil
			}
			return "", nil
		},
		compiler.FuncRenderPartial: func(name any, data ...any) (string, error) {
			model := f.model
			if len(data) > 0 {
				model = data[0]
			}
			return r.partial(f, fmt.Sprint(name), model)
		},
	}
}

// partial renders a view inline. Failures become diagnostic fragments so
// the enclosing view still renders.
func (r *run) partial(f *frame, name string, model any) (string, error) {
	if err := r.ctx.Err(); err != nil {
		return "", err
	}
	id := r.engine.identity(name)

	if f.depth+1 > r.engine.maxDepth {
		return r.contain(id, fmt.Errorf("partial nesting exceeds %d levels", r.engine.maxDepth))
	}

	out, err := r.render(id, model, f.depth+1)
	if err != nil {
		return r.contain(id, err)
	}
	return out, nil
}

// inlineSection produces content the frame's own template declares. It
// executes with the owner's funcs, so a renderBody breach here is the
// owner's own layout contract and fails the render. Breaches inside a
// partial or section file belong to that nested view and are contained.
func (r *run) inlineSection(owner *frame, name string) producer {
	return func() (string, error) {
		key := owner.node.id + "\x00" + name
		if r.active[key] {
			return r.contain(owner.node.id, fmt.Errorf("section %q renders itself", name))
		}
		r.active[key] = true
		defer delete(r.active, key)

		var b strings.Builder
		err := owner.node.tmpl.ExecuteSection(&b, name, owner.model, r.funcs(owner))
		if err != nil {
			if errors.Is(err, errors.ErrRenderBodyContract) {
				return "", err
			}
			return r.contain(owner.node.id, err)
		}
		return b.String(), nil
	}
}

// fileSection produces section content from another view. A missing file
// renders as empty.
func (r *run) fileSection(owner *frame, name, file string) producer {
	return func() (string, error) {
		id := r.engine.identity(file)
		if _, ok := r.node(id); !ok {
			return "", nil
		}
		if owner.depth+1 > r.engine.maxDepth {
			return r.contain(id, fmt.Errorf("section %q nesting exceeds %d levels", name, r.engine.maxDepth))
		}

		key := owner.node.id + "\x00" + name
		if r.active[key] {
			return r.contain(id, fmt.Errorf("section %q renders itself", name))
		}
		r.active[key] = true
		defer delete(r.active, key)

		out, err := r.render(id, owner.model, owner.depth+1)
		if err != nil {
			return r.contain(id, err)
		}
		return out, nil
	}
}

// contain substitutes a failed nested render with a diagnostic fragment.
// Unrecoverable failures, such as a cancelled render, propagate.
func (r *run) contain(id string, cause error) (string, error) {
	err := errors.NewPartialRenderError(id, cause)
	if !errors.IsRecoverable(err) || r.ctx.Err() != nil {
		return "", cause
	}
	r.engine.logger.Warn(r.ctx, cause, "partial render failed", "view", id)
	return errors.Fragment(err, r.engine.opts.Production), nil
}
