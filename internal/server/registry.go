package server

import (
	"fmt"
	"sort"
	"sync"

	"autograder/internal/api"
	"autograder/internal/pipeline"
)

// PipelineRegistry holds the grading pipelines the service currently
// serves, keyed by name. The watcher replaces and retires entries while
// grade requests read concurrently.
type PipelineRegistry struct {
	mu        sync.RWMutex
	pipelines map[string]*pipeline.Pipeline
}

func NewPipelineRegistry() *PipelineRegistry {
	return &PipelineRegistry{
		pipelines: make(map[string]*pipeline.Pipeline),
	}
}

// Register adds or replaces a pipeline. Replacement is how rubric updates
// roll out; in-flight executions keep the pipeline they started with.
func (r *PipelineRegistry) Register(p *pipeline.Pipeline) error {
	if p == nil {
		return fmt.Errorf("cannot register nil pipeline")
	}
	if p.Name() == "" {
		return fmt.Errorf("pipeline has empty name")
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.pipelines[p.Name()] = p
	return nil
}

// Unregister retires a pipeline.
func (r *PipelineRegistry) Unregister(name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.pipelines[name]; !exists {
		return api.NewPipelineNotFoundError(name)
	}
	delete(r.pipelines, name)
	return nil
}

// Get returns a pipeline by name.
func (r *PipelineRegistry) Get(name string) (*pipeline.Pipeline, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	p, exists := r.pipelines[name]
	if !exists {
		return nil, api.NewPipelineNotFoundError(name)
	}
	return p, nil
}

// Names returns the registered pipeline names, sorted.
func (r *PipelineRegistry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.pipelines))
	for name := range r.pipelines {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
