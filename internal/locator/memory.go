package locator

import (
	"context"
	"sort"
	"sync"
)

// MapLocator serves views from memory.
type MapLocator struct {
	mu    sync.RWMutex
	views map[string]string
}

// NewMapLocator creates a locator seeded with views.
func NewMapLocator(views map[string]string) *MapLocator {
	m := &MapLocator{views: make(map[string]string, len(views))}
	for k, v := range views {
		m.views[k] = v
	}
	return m
}

// Set stores or replaces a view.
func (m *MapLocator) Set(name, text string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.views[name] = text
}

// Delete removes a view.
func (m *MapLocator) Delete(name string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.views, name)
}

// Names returns the stored view names in sorted order.
func (m *MapLocator) Names() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	names := make([]string, 0, len(m.views))
	for k := range m.views {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}

// FindView implements ViewLocator.
func (m *MapLocator) FindView(_ context.Context, name string) (string, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	text, ok := m.views[name]
	return text, ok, nil
}
