package template

import (
	"fmt"
	"sort"

	"autograder/internal/api"
)

// Template is a named, read-only registry of test functions. A rubric is
// always graded against exactly one template; the tree builder resolves
// every rubric test name here once, at build time.
type Template struct {
	name            string
	requiresSandbox bool
	funcs           map[string]api.TestFunc
}

// New creates a template from the given test functions. Duplicate test
// names within one template are a programming error in the test library and
// are rejected.
func New(name string, requiresSandbox bool, funcs ...api.TestFunc) (*Template, error) {
	if name == "" {
		return nil, fmt.Errorf("template has empty name")
	}

	byName := make(map[string]api.TestFunc, len(funcs))
	for _, fn := range funcs {
		if fn == nil {
			return nil, fmt.Errorf("template %s: cannot register nil test function", name)
		}
		if _, exists := byName[fn.Name()]; exists {
			return nil, fmt.Errorf("template %s: test %q registered twice", name, fn.Name())
		}
		byName[fn.Name()] = fn
	}

	return &Template{
		name:            name,
		requiresSandbox: requiresSandbox,
		funcs:           byName,
	}, nil
}

// Name returns the template's unique name.
func (t *Template) Name() string {
	return t.name
}

// RequiresSandbox reports whether grading against this template needs an
// execution sandbox. The pipeline only acquires one during preflight when
// this is set.
func (t *Template) RequiresSandbox() bool {
	return t.requiresSandbox
}

// Get resolves a test function by name.
func (t *Template) Get(name string) (api.TestFunc, bool) {
	fn, ok := t.funcs[name]
	return fn, ok
}

// TestNames returns the registered test names in sorted order.
func (t *Template) TestNames() []string {
	names := make([]string, 0, len(t.funcs))
	for name := range t.funcs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
