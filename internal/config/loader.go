package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"autograder/pkg/logging"

	"gopkg.in/yaml.v3"
)

const loaderSubsystem = "ConfigLoader"

// LoadServiceConfig reads autograder.yaml from the given path. A missing
// file yields the defaults; a malformed file is an error.
func LoadServiceConfig(path string) (ServiceConfig, error) {
	config := DefaultServiceConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			logging.Info(loaderSubsystem, "No config file at %s, using defaults", path)
			return config, nil
		}
		return ServiceConfig{}, fmt.Errorf("error reading config from %s: %w", path, err)
	}

	if err := yaml.Unmarshal(data, &config); err != nil {
		return ServiceConfig{}, fmt.Errorf("error loading config from %s: %w", path, err)
	}

	applyPoolDefaults(&config)

	logging.Info(loaderSubsystem, "Loaded configuration from %s", path)
	return config, nil
}

// applyPoolDefaults fills per-pool gaps from the fleet-wide sandbox block
// and the built-in defaults.
func applyPoolDefaults(config *ServiceConfig) {
	for i := range config.Pools {
		p := &config.Pools[i]
		if p.MaxTotal == 0 {
			p.MaxTotal = DefaultPoolMaxTotal
		}
		if p.IdleTTL == 0 {
			p.IdleTTL = Duration(DefaultIdleTTL)
		}
		if p.RunningTTL == 0 {
			p.RunningTTL = Duration(DefaultRunningTTL)
		}
		if p.AcquireWait == 0 {
			p.AcquireWait = Duration(DefaultAcquireWait)
		}
		if p.Runtime == "" {
			p.Runtime = config.Sandbox.Runtime
		}
		if p.Memory == "" {
			p.Memory = config.Sandbox.Memory
		}
		if p.CPUs == "" {
			p.CPUs = config.Sandbox.CPUs
		}
		if p.PidsLimit == 0 {
			p.PidsLimit = config.Sandbox.PidsLimit
		}
	}
}

// LoadPipelineDefinition reads one rubric document.
func LoadPipelineDefinition(path string) (PipelineDefinition, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return PipelineDefinition{}, fmt.Errorf("error reading rubric document %s: %w", path, err)
	}

	var def PipelineDefinition
	if err := json.Unmarshal(data, &def); err != nil {
		return PipelineDefinition{}, fmt.Errorf("error parsing rubric document %s: %w", path, err)
	}

	if def.Name == "" {
		def.Name = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	}
	if def.Template == "" {
		return PipelineDefinition{}, fmt.Errorf("rubric document %s does not name a template", path)
	}

	return def, nil
}

// LoadPipelineDefinitions reads every *.json rubric document in a
// directory, sorted by filename for deterministic registration order.
// Individual malformed documents are logged and skipped so one bad file
// does not take the service down.
func LoadPipelineDefinitions(dir string) ([]PipelineDefinition, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("error reading rubric directory %s: %w", dir, err)
	}

	var names []string
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}
		names = append(names, entry.Name())
	}
	sort.Strings(names)

	var defs []PipelineDefinition
	for _, name := range names {
		def, err := LoadPipelineDefinition(filepath.Join(dir, name))
		if err != nil {
			logging.Warn(loaderSubsystem, "Skipping rubric document %s: %v", name, err)
			continue
		}
		defs = append(defs, def)
	}

	logging.Info(loaderSubsystem, "Loaded %d rubric documents from %s", len(defs), dir)
	return defs, nil
}
