package filter

import (
	"fmt"
	"sort"
	"strings"
	"sync"
)

// Registry maps filter names to definitions so chains can be described by
// name in configuration.
type Registry struct {
	mu      sync.RWMutex
	filters map[string]Filter
}

// NewRegistry creates a registry holding the given filters.
func NewRegistry(filters ...Filter) *Registry {
	r := &Registry{filters: make(map[string]Filter)}
	r.Add(filters...)
	return r
}

// Add registers filters, replacing any with the same name.
func (r *Registry) Add(filters ...Filter) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, f := range filters {
		r.filters[f.Name()] = f
	}
}

// Get returns the filter registered under name.
func (r *Registry) Get(name string) (Filter, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	f, ok := r.filters[name]
	return f, ok
}

// Names returns the registered names, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.filters))
	for name := range r.filters {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Lookup resolves names in order. Every unknown name is reported in the
// returned error.
func (r *Registry) Lookup(names ...string) ([]Filter, error) {
	filters := make([]Filter, 0, len(names))
	var unknown []string
	for _, name := range names {
		f, ok := r.Get(name)
		if !ok {
			unknown = append(unknown, name)
			continue
		}
		filters = append(filters, f)
	}
	if len(unknown) > 0 {
		return nil, fmt.Errorf("unknown filter(s): %s", strings.Join(unknown, ", "))
	}
	return filters, nil
}
