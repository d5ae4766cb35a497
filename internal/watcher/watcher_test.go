package watcher

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"autograder/internal/api"
	"autograder/internal/config"
	"autograder/internal/pipeline"
	"autograder/internal/rubric"
	"autograder/internal/server"
	"autograder/internal/template"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const validDocument = `{
  "template": "plain",
  "criteria": {"base": {"tests": [{"name": "always_pass"}]}}
}`

func testBuildFunc(t *testing.T) BuildFunc {
	t.Helper()

	pass := template.NewFunc("always_pass", api.FileKindNone, nil,
		func(ctx context.Context, files []api.SubmissionFile, sb api.SandboxHandle, params map[string]interface{}) (api.TestOutcome, error) {
			return api.TestOutcome{Score: 100}, nil
		})
	tmpl, err := template.New("plain", false, pass)
	require.NoError(t, err)

	registry := template.NewRegistry()
	require.NoError(t, registry.Register(tmpl))

	return func(def config.PipelineDefinition) (*pipeline.Pipeline, error) {
		return pipeline.BuildPipeline(pipeline.Options{
			Name:         def.Name,
			TemplateName: def.Template,
			Templates:    registry,
			Criteria:     def.Criteria,
		})
	}
}

func waitFor(t *testing.T, timeout time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(20 * time.Millisecond)
	}
	t.Fatal("condition not met in time")
}

func TestWatcherRegistersNewDocument(t *testing.T) {
	dir := t.TempDir()
	registry := server.NewPipelineRegistry()

	w, err := New(dir, registry, testBuildFunc(t))
	require.NoError(t, err)
	w.Start()
	defer w.Stop()

	path := filepath.Join(dir, "exercise-1.json")
	require.NoError(t, os.WriteFile(path, []byte(validDocument), 0644))

	waitFor(t, 3*time.Second, func() bool {
		_, err := registry.Get("exercise-1")
		return err == nil
	})
}

func TestWatcherRetiresRemovedDocument(t *testing.T) {
	dir := t.TempDir()
	registry := server.NewPipelineRegistry()

	w, err := New(dir, registry, testBuildFunc(t))
	require.NoError(t, err)
	w.Start()
	defer w.Stop()

	path := filepath.Join(dir, "exercise-1.json")
	require.NoError(t, os.WriteFile(path, []byte(validDocument), 0644))
	waitFor(t, 3*time.Second, func() bool {
		_, err := registry.Get("exercise-1")
		return err == nil
	})

	require.NoError(t, os.Remove(path))
	waitFor(t, 3*time.Second, func() bool {
		_, err := registry.Get("exercise-1")
		return api.IsNotFound(err)
	})
}

func TestWatcherIgnoresMalformedDocument(t *testing.T) {
	dir := t.TempDir()
	registry := server.NewPipelineRegistry()

	// An existing pipeline keeps serving when its document breaks.
	build := testBuildFunc(t)
	def := config.PipelineDefinition{Name: "exercise-1", Template: "plain",
		Criteria: rubric.Config{Base: &rubric.NodeConfig{Tests: []rubric.TestConfig{{Name: "always_pass"}}}}}
	p, err := build(def)
	require.NoError(t, err)
	require.NoError(t, registry.Register(p))

	w, err := New(dir, registry, build)
	require.NoError(t, err)
	w.Start()
	defer w.Stop()

	path := filepath.Join(dir, "exercise-1.json")
	require.NoError(t, os.WriteFile(path, []byte("{{{"), 0644))

	// Give the debounce time to fire, then confirm nothing was retired.
	time.Sleep(debounceDelay + 300*time.Millisecond)
	got, err := registry.Get("exercise-1")
	require.NoError(t, err)
	assert.Same(t, p, got)
}

func TestWatcherIgnoresNonJSONFiles(t *testing.T) {
	dir := t.TempDir()
	registry := server.NewPipelineRegistry()

	w, err := New(dir, registry, testBuildFunc(t))
	require.NoError(t, err)
	w.Start()
	defer w.Stop()

	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("x"), 0644))
	time.Sleep(debounceDelay + 200*time.Millisecond)
	assert.Empty(t, registry.Names())
}

func TestWatcherStopIsIdempotent(t *testing.T) {
	dir := t.TempDir()
	w, err := New(dir, server.NewPipelineRegistry(), testBuildFunc(t))
	require.NoError(t, err)
	w.Start()
	w.Stop()
	w.Stop()
}

func TestWatcherRequiresExistingDirectory(t *testing.T) {
	_, err := New(filepath.Join(t.TempDir(), "missing"), server.NewPipelineRegistry(), testBuildFunc(t))
	assert.Error(t, err)
}
