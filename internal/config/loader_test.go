package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"autograder/internal/api"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestLoadServiceConfigMissingFileUsesDefaults(t *testing.T) {
	cfg, err := LoadServiceConfig(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)

	assert.Equal(t, "localhost", cfg.Server.Host)
	assert.Equal(t, DefaultServerPort, cfg.Server.Port)
	assert.Equal(t, DefaultRubricDir, cfg.Rubrics.Dir)
	assert.True(t, cfg.Rubrics.Watch)
	assert.Empty(t, cfg.Pools)
}

func TestLoadServiceConfig(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "autograder.yaml", `
server:
  host: 0.0.0.0
  port: 9090
rubrics:
  dir: /etc/autograder/rubrics
sandbox:
  runtime: runsc
  memory: 512m
pools:
  - language: python
    image: autograder/python:latest
    min_idle: 2
    max_total: 6
  - language: java
    image: autograder/java:latest
    memory: 1g
    running_ttl: 5m
`)

	cfg, err := LoadServiceConfig(path)
	require.NoError(t, err)

	assert.Equal(t, "0.0.0.0", cfg.Server.Host)
	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, "/etc/autograder/rubrics", cfg.Rubrics.Dir)

	require.Len(t, cfg.Pools, 2)

	python := cfg.Pools[0]
	assert.Equal(t, api.LanguagePython, python.Language)
	assert.Equal(t, 2, python.MinIdle)
	assert.Equal(t, 6, python.MaxTotal)
	assert.Equal(t, "runsc", python.Runtime, "fleet-wide runtime applies to pools")
	assert.Equal(t, "512m", python.Memory)
	assert.Equal(t, DefaultRunningTTL, python.RunningTTL.Std())
	assert.Equal(t, DefaultAcquireWait, python.AcquireWait.Std())

	java := cfg.Pools[1]
	assert.Equal(t, DefaultPoolMaxTotal, java.MaxTotal)
	assert.Equal(t, "1g", java.Memory, "per-pool memory overrides the fleet default")
	assert.Equal(t, 5*time.Minute, java.RunningTTL.Std())
}

func TestLoadServiceConfigMalformed(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "autograder.yaml", "server: [not a mapping")

	_, err := LoadServiceConfig(path)
	assert.Error(t, err)
}

func TestLoadPipelineDefinition(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "html-basics.json", `{
  "template": "web",
  "criteria": {
    "base": {
      "tests": [
        {"name": "has_tag", "file": "all", "params": {"tag": "h1"}},
        {"name": "has_link", "weight": 2}
      ]
    }
  },
  "setup": {
    "required_files": ["index.html"]
  },
  "feedback": {"enabled": true, "show_score": true}
}`)

	def, err := LoadPipelineDefinition(path)
	require.NoError(t, err)

	assert.Equal(t, "html-basics", def.Name, "name defaults to the filename")
	assert.Equal(t, "web", def.Template)
	require.NotNil(t, def.Criteria.Base)
	assert.Len(t, def.Criteria.Base.Tests, 2)
	require.NotNil(t, def.Setup)
	require.NotNil(t, def.Setup.Flat)
	assert.Equal(t, []string{"index.html"}, def.Setup.Flat.RequiredFiles)
	require.NotNil(t, def.Feedback)
	assert.True(t, def.Feedback.Enabled)
	assert.True(t, def.Feedback.ShowScore)
}

func TestLoadPipelineDefinitionRequiresTemplate(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "broken.json", `{"criteria": {"base": {"tests": []}}}`)

	_, err := LoadPipelineDefinition(path)
	assert.ErrorContains(t, err, "template")
}

func TestLoadPipelineDefinitionsSkipsMalformed(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "b.json", `{"template": "web", "criteria": {"base": {"tests": []}}}`)
	writeFile(t, dir, "a.json", `{"template": "program", "criteria": {"base": {"tests": []}}}`)
	writeFile(t, dir, "broken.json", `{{{`)
	writeFile(t, dir, "notes.txt", "not a rubric")

	defs, err := LoadPipelineDefinitions(dir)
	require.NoError(t, err)

	require.Len(t, defs, 2)
	assert.Equal(t, "a", defs[0].Name, "documents load in filename order")
	assert.Equal(t, "b", defs[1].Name)
}
