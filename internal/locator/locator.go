// Package locator resolves logical view names to raw template text through
// an ordered list of pluggable locators.
package locator

import (
	"context"
	"path"
	"strings"
	"sync"

	"github.com/conneroisu/tmplview/internal/logging"
)

// ViewLocator turns a logical view name into template text. found is false
// when the locator does not know the name; err is reserved for failures.
type ViewLocator interface {
	FindView(ctx context.Context, name string) (text string, found bool, err error)
}

// Func adapts a function to ViewLocator.
type Func func(ctx context.Context, name string) (string, bool, error)

// FindView calls f.
func (f Func) FindView(ctx context.Context, name string) (string, bool, error) {
	return f(ctx, name)
}

// Resolver tries its locators in priority order.
type Resolver struct {
	mu       sync.RWMutex
	locators []ViewLocator
	logger   logging.Logger
}

// NewResolver creates a resolver over locators, highest priority first.
func NewResolver(logger logging.Logger, locators ...ViewLocator) *Resolver {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Resolver{
		locators: append([]ViewLocator(nil), locators...),
		logger:   logger.WithComponent("resolver"),
	}
}

// Add appends a locator with the lowest priority.
func (r *Resolver) Add(l ViewLocator) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.locators = append(r.locators, l)
}

// Insert places a locator at index; 0 is tried first. Out of range indexes
// clamp to the ends of the list.
func (r *Resolver) Insert(index int, l ViewLocator) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if index < 0 {
		index = 0
	}
	if index >= len(r.locators) {
		r.locators = append(r.locators, l)
		return
	}
	r.locators = append(r.locators[:index], append([]ViewLocator{l}, r.locators[index:]...)...)
}

// Len returns the number of registered locators.
func (r *Resolver) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.locators)
}

// Locate returns the text of the first locator that resolves name to
// non-empty text. Locator failures are logged and skipped.
func (r *Resolver) Locate(ctx context.Context, name string) (string, bool) {
	r.mu.RLock()
	locators := append([]ViewLocator(nil), r.locators...)
	r.mu.RUnlock()

	for i, l := range locators {
		if ctx.Err() != nil {
			return "", false
		}
		text, found, err := l.FindView(ctx, name)
		if err != nil {
			r.logger.Warn(ctx, err, "view locator failed", "view", name, "locator", i)
			continue
		}
		if found && text != "" {
			return text, true
		}
	}
	return "", false
}

// Normalize maps a view name to its identity: slash separated, cleaned,
// without leading "./" or "/" and without the ext suffix.
func Normalize(name, ext string) string {
	name = strings.TrimSpace(strings.ReplaceAll(name, "\\", "/"))
	if name == "" {
		return ""
	}
	name = strings.TrimLeft(path.Clean("/"+name), "/")
	if ext != "" {
		name = strings.TrimSuffix(name, ext)
	}
	return name
}
