// Package adapters connects the view engine to its collaborators: templ
// components for HTTP handlers and file watcher events for cache invalidation.
package adapters

import (
	"context"
	"io"

	"github.com/a-h/templ"

	"github.com/conneroisu/tmplview/internal/watcher"
)

// Renderer renders a named view against a model.
type Renderer interface {
	Render(ctx context.Context, name string, model any) (string, error)
}

// Invalidator drops cached renders that depend on a changed view.
type Invalidator interface {
	NotifyChanged(name string) []string
}

// IdentifyFunc maps a changed file path to a view identity.
type IdentifyFunc func(path string) (string, bool)

// ViewComponent exposes a view as a templ component. The view is rendered
// in full before anything is written to w.
func ViewComponent(r Renderer, name string, model any) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		out, err := r.Render(ctx, name, model)
		if err != nil {
			return err
		}
		_, err = io.WriteString(w, out)
		return err
	})
}

// InvalidationHandler returns a watcher handler that notifies inv about
// every changed file that identify recognises as a view. onChange, when not
// nil, receives the changed identities and the cache entries they dropped.
func InvalidationHandler(inv Invalidator, identify IdentifyFunc, onChange func(changed, removed []string)) watcher.ChangeHandler {
	return func(events []watcher.ChangeEvent) error {
		var changed, removed []string
		seen := make(map[string]bool, len(events))
		for _, event := range events {
			id, ok := identify(event.Path)
			if !ok || seen[id] {
				continue
			}
			seen[id] = true
			changed = append(changed, id)
			removed = append(removed, inv.NotifyChanged(id)...)
		}
		if len(changed) > 0 && onChange != nil {
			onChange(changed, removed)
		}
		return nil
	}
}
