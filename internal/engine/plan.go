package engine

import (
	"context"
	"sort"

	"github.com/conneroisu/tmplview/internal/compiler"
	"github.com/conneroisu/tmplview/internal/errors"
)

// node is a resolved and compiled view. err holds a compile failure, which
// is fatal on the entry chain and recoverable everywhere else.
type node struct {
	id   string
	tmpl *compiler.Template
	err  error
}

// plan is the cached unit: every view reachable from an entry view through
// static references, plus the identities consulted while building it.
// A nil node records a lookup that found nothing. Plans are immutable once
// built; dynamic discoveries produce a new plan.
type plan struct {
	entry string
	nodes map[string]*node
	deps  []string
}

func (p *plan) with(extra map[string]*node) *plan {
	nodes := make(map[string]*node, len(p.nodes)+len(extra))
	for k, v := range p.nodes {
		nodes[k] = v
	}
	for k, v := range extra {
		nodes[k] = v
	}
	return &plan{entry: p.entry, nodes: nodes, deps: sortedKeys(nodes)}
}

// builder resolves the static reference graph of one entry view.
type builder struct {
	ctx    context.Context
	engine *Engine
	nodes  map[string]*node
}

func (e *Engine) build(ctx context.Context, entry string) (*plan, error) {
	b := &builder{ctx: ctx, engine: e, nodes: map[string]*node{}}

	n := b.load(entry)
	if n == nil {
		return nil, errors.NewViewNotFoundError(entry)
	}
	if n.err != nil {
		return nil, n.err
	}

	// the entry layout chain must compile and must not loop
	chain := []string{entry}
	visited := map[string]bool{entry: true}
	for cur := n; cur.tmpl != nil; {
		layout := cur.tmpl.Directives().Layout
		if layout == "" {
			break
		}
		id := e.identity(layout)
		if visited[id] {
			return nil, errors.NewLayoutCycleError(entry, append(chain, id))
		}
		visited[id] = true
		chain = append(chain, id)

		next := b.load(id)
		if next == nil {
			break
		}
		if next.err != nil {
			return nil, next.err
		}
		cur = next
	}

	if err := b.expand(); err != nil {
		return nil, err
	}

	return &plan{entry: entry, nodes: b.nodes, deps: sortedKeys(b.nodes)}, nil
}

// expand loads every view referenced by a loaded view until the graph is
// closed. Memoisation bounds the walk on cyclic references.
func (b *builder) expand() error {
	queue := make([]*node, 0, len(b.nodes))
	for _, n := range b.nodes {
		queue = append(queue, n)
	}

	for len(queue) > 0 {
		if err := b.ctx.Err(); err != nil {
			return err
		}
		n := queue[0]
		queue = queue[1:]
		if n == nil || n.tmpl == nil {
			continue
		}

		for _, ref := range references(n.tmpl.Directives()) {
			id := b.engine.identity(ref)
			if _, seen := b.nodes[id]; seen {
				continue
			}
			queue = append(queue, b.load(id))
		}
	}
	return nil
}

// load resolves and compiles id once per build.
func (b *builder) load(id string) *node {
	if n, ok := b.nodes[id]; ok {
		return n
	}
	n := b.engine.load(b.ctx, id)
	b.nodes[id] = n
	return n
}

func references(d compiler.Directives) []string {
	refs := make([]string, 0, 1+len(d.Partials)+len(d.SectionFiles))
	if d.Layout != "" {
		refs = append(refs, d.Layout)
	}
	refs = append(refs, d.Partials...)
	for _, file := range d.SectionFiles {
		refs = append(refs, file)
	}
	return refs
}

func sortedKeys(nodes map[string]*node) []string {
	keys := make([]string, 0, len(nodes))
	for k := range nodes {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
