package cmd

import (
	"fmt"
	"os"

	"autograder/internal/config"
	"autograder/internal/export"
	"autograder/internal/pipeline"
	"autograder/internal/sandbox"
	"autograder/internal/template"
	"autograder/internal/templates/program"
	"autograder/internal/templates/web"
	"autograder/pkg/logging"

	"github.com/spf13/cobra"
)

// configPath is the service configuration file, shared by all commands.
var configPath string

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "autograder.yaml", "Service configuration file")
	rootCmd.PersistentFlags().String("log-level", "", "Override the configured log level (debug, info, warn, error)")
}

// loadConfigAndLogging reads the service config and initialises logging
// from it, honoring the --log-level override.
func loadConfigAndLogging(cmd *cobra.Command) (config.ServiceConfig, error) {
	cfg, err := config.LoadServiceConfig(configPath)
	if err != nil {
		return config.ServiceConfig{}, err
	}

	level := cfg.Logging.Level
	if override, _ := cmd.Flags().GetString("log-level"); override != "" {
		level = override
	}
	logging.Init(logging.ParseLevel(level), os.Stderr)

	return cfg, nil
}

// builtinTemplates registers the built-in test libraries.
func builtinTemplates() (*template.Registry, error) {
	registry := template.NewRegistry()

	webTmpl, err := web.New()
	if err != nil {
		return nil, fmt.Errorf("failed to build web template: %w", err)
	}
	if err := registry.Register(webTmpl); err != nil {
		return nil, err
	}

	programTmpl, err := program.New()
	if err != nil {
		return nil, fmt.Errorf("failed to build program template: %w", err)
	}
	if err := registry.Register(programTmpl); err != nil {
		return nil, err
	}

	return registry, nil
}

// buildSandboxManager wires the Docker runtime and the per-language pools
// from the service config. Returns nil without error when no pools are
// configured; commands that need a sandbox check for that.
func buildSandboxManager(cfg config.ServiceConfig) (*sandbox.Manager, error) {
	if len(cfg.Pools) == 0 {
		return nil, nil
	}

	runtime, err := sandbox.NewDockerRuntime()
	if err != nil {
		return nil, err
	}

	pools := make([]sandbox.PoolConfig, 0, len(cfg.Pools))
	for _, p := range cfg.Pools {
		pools = append(pools, sandbox.PoolConfig{
			Language:    p.Language,
			Image:       p.Image,
			MinIdle:     p.MinIdle,
			MaxTotal:    p.MaxTotal,
			IdleTTL:     p.IdleTTL.Std(),
			RunningTTL:  p.RunningTTL.Std(),
			AcquireWait: p.AcquireWait.Std(),
			Runtime:     p.Runtime,
			Memory:      p.Memory,
			CPUs:        p.CPUs,
			PidsLimit:   p.PidsLimit,
		})
	}

	return sandbox.NewManager(runtime, pools)
}

// buildExporter returns the configured export sink, nil when disabled.
func buildExporter(cfg config.ServiceConfig) (export.Exporter, error) {
	if !cfg.Export.Enabled {
		return nil, nil
	}
	return export.NewFileExporter(cfg.Export.Dir)
}

// buildPipelineFromDef assembles one pipeline from a rubric document.
func buildPipelineFromDef(def config.PipelineDefinition, templates *template.Registry,
	pools *sandbox.Manager, exporter export.Exporter) (*pipeline.Pipeline, error) {

	opts := pipeline.Options{
		Name:         def.Name,
		TemplateName: def.Template,
		Templates:    templates,
		Criteria:     def.Criteria,
		Setup:        def.Setup,
		Sandboxes:    pools,
	}
	if def.Feedback != nil {
		opts.Feedback = *def.Feedback
	}
	if def.ExportEnabled {
		opts.Exporter = exporter
	}

	return pipeline.BuildPipeline(opts)
}
