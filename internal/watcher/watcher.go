// Package watcher keeps the pipeline registry in sync with the rubric
// directory: new or updated documents rebuild their pipeline, removed
// documents retire it.
package watcher

import (
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"autograder/internal/config"
	"autograder/internal/pipeline"
	"autograder/internal/server"
	"autograder/pkg/logging"

	"github.com/fsnotify/fsnotify"
)

const watcherSubsystem = "RubricWatcher"

// debounceDelay coalesces the event bursts editors produce per save.
const debounceDelay = 500 * time.Millisecond

// BuildFunc turns a rubric document into a pipeline. Supplied by the
// serve command so the watcher stays free of template and pool wiring.
type BuildFunc func(def config.PipelineDefinition) (*pipeline.Pipeline, error)

// Watcher monitors the rubric directory and applies document changes to
// the registry.
type Watcher struct {
	dir      string
	registry *server.PipelineRegistry
	build    BuildFunc

	watcher  *fsnotify.Watcher
	stopChan chan struct{}
	stopOnce sync.Once

	mu       sync.Mutex
	debounce map[string]*time.Timer
	names    map[string]string // document path -> registered pipeline name
}

func New(dir string, registry *server.PipelineRegistry, build BuildFunc) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create rubric watcher: %w", err)
	}
	if err := fsw.Add(dir); err != nil {
		fsw.Close()
		return nil, fmt.Errorf("failed to watch rubric directory %s: %w", dir, err)
	}

	return &Watcher{
		dir:      dir,
		registry: registry,
		build:    build,
		watcher:  fsw,
		stopChan: make(chan struct{}),
		debounce: make(map[string]*time.Timer),
		names:    make(map[string]string),
	}, nil
}

// Start launches the watch loop.
func (w *Watcher) Start() {
	go w.watchLoop()
	logging.Info(watcherSubsystem, "Watching rubric directory %s", w.dir)
}

// Stop ends the watch loop. Safe to call more than once.
func (w *Watcher) Stop() {
	w.stopOnce.Do(func() {
		close(w.stopChan)
		w.watcher.Close()
		logging.Info(watcherSubsystem, "Stopped watching %s", w.dir)
	})
}

func (w *Watcher) watchLoop() {
	for {
		select {
		case <-w.stopChan:
			return

		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if !strings.HasSuffix(event.Name, ".json") {
				continue
			}

			switch {
			case event.Op.Has(fsnotify.Remove) || event.Op.Has(fsnotify.Rename):
				w.retire(event.Name)
			case event.Op.Has(fsnotify.Create) || event.Op.Has(fsnotify.Write):
				w.scheduleReload(event.Name)
			}

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			logging.Warn(watcherSubsystem, "Watcher error: %v", err)
		}
	}
}

// scheduleReload debounces per path: only the last event of a save burst
// triggers a rebuild.
func (w *Watcher) scheduleReload(path string) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if timer, exists := w.debounce[path]; exists {
		timer.Stop()
	}
	w.debounce[path] = time.AfterFunc(debounceDelay, func() {
		w.mu.Lock()
		delete(w.debounce, path)
		w.mu.Unlock()
		w.reload(path)
	})
}

// reload rebuilds one document's pipeline. A malformed document logs and
// leaves the previous pipeline serving.
func (w *Watcher) reload(path string) {
	def, err := config.LoadPipelineDefinition(path)
	if err != nil {
		logging.Warn(watcherSubsystem, "Ignoring rubric document %s: %v", filepath.Base(path), err)
		return
	}

	p, err := w.build(def)
	if err != nil {
		logging.Warn(watcherSubsystem, "Failed to build pipeline from %s: %v", filepath.Base(path), err)
		return
	}

	if err := w.registry.Register(p); err != nil {
		logging.Warn(watcherSubsystem, "Failed to register pipeline %s: %v", def.Name, err)
		return
	}

	w.mu.Lock()
	w.names[path] = p.Name()
	w.mu.Unlock()

	logging.Info(watcherSubsystem, "Pipeline %s reloaded from %s", p.Name(), filepath.Base(path))
}

// retire removes the pipeline belonging to a deleted document. Documents
// loaded before the watcher started are retired by filename.
func (w *Watcher) retire(path string) {
	w.mu.Lock()
	name, tracked := w.names[path]
	delete(w.names, path)
	w.mu.Unlock()

	if !tracked {
		name = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	}

	if err := w.registry.Unregister(name); err != nil {
		logging.Debug(watcherSubsystem, "No pipeline to retire for %s", name)
		return
	}
	logging.Info(watcherSubsystem, "Pipeline %s retired", name)
}
