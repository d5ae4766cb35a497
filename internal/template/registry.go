package template

import (
	"fmt"
	"sort"
	"sync"

	"autograder/internal/api"
)

// Registry holds the templates known to the service. Built-in test
// libraries register here during startup; custom templates supplied through
// the pipeline build options bypass the registry entirely.
type Registry struct {
	mu        sync.RWMutex
	templates map[string]*Template
}

// NewRegistry creates an empty template registry.
func NewRegistry() *Registry {
	return &Registry{
		templates: make(map[string]*Template),
	}
}

// Register adds a template to the registry.
func (r *Registry) Register(t *Template) error {
	if t == nil {
		return fmt.Errorf("cannot register nil template")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.templates[t.Name()]; exists {
		return fmt.Errorf("template %s already registered", t.Name())
	}

	r.templates[t.Name()] = t
	return nil
}

// Get returns a template by name, or a NotFoundError.
func (r *Registry) Get(name string) (*Template, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	t, exists := r.templates[name]
	if !exists {
		return nil, api.NewTemplateNotFoundError(name)
	}
	return t, nil
}

// Names returns the registered template names in sorted order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.templates))
	for name := range r.templates {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
