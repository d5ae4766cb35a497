package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"autograder/internal/config"
	"autograder/internal/pipeline"
	"autograder/internal/server"
	"autograder/internal/watcher"
	"autograder/pkg/logging"

	"github.com/coreos/go-systemd/v22/daemon"
	"github.com/spf13/cobra"
)

// shutdownTimeout bounds the drain of in-flight grade requests.
const shutdownTimeout = 30 * time.Second

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the grading service",
	Long: `Starts the long-lived grading service: warms the sandbox pools, loads
every rubric document from the configured directory into a pipeline and
serves the JSON HTTP API until SIGINT or SIGTERM.

Rubric documents are JSON files, one per assignment. When watching is
enabled (the default), edits to the rubric directory take effect without
a restart: new and changed documents rebuild their pipeline, deleted
documents retire it.`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfigAndLogging(cmd)
	if err != nil {
		return err
	}

	templates, err := builtinTemplates()
	if err != nil {
		return err
	}

	pools, err := buildSandboxManager(cfg)
	if err != nil {
		return fmt.Errorf("failed to set up sandbox pools: %w", err)
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	if pools != nil {
		if err := pools.Initialize(ctx); err != nil {
			return err
		}
		defer pools.Shutdown(context.Background())
	}

	exporter, err := buildExporter(cfg)
	if err != nil {
		return err
	}

	// Load every rubric document into a pipeline. Individual bad documents
	// are skipped so one broken rubric does not take the service down.
	registry := server.NewPipelineRegistry()
	defs, err := config.LoadPipelineDefinitions(cfg.Rubrics.Dir)
	if err != nil {
		return err
	}
	for _, def := range defs {
		p, err := buildPipelineFromDef(def, templates, pools, exporter)
		if err != nil {
			logging.Warn("Serve", "Skipping pipeline %s: %v", def.Name, err)
			continue
		}
		if err := registry.Register(p); err != nil {
			logging.Warn("Serve", "Skipping pipeline %s: %v", def.Name, err)
		}
	}
	logging.Info("Serve", "Serving %d pipelines", len(registry.Names()))

	if cfg.Rubrics.Watch {
		build := func(def config.PipelineDefinition) (*pipeline.Pipeline, error) {
			return buildPipelineFromDef(def, templates, pools, exporter)
		}
		w, err := watcher.New(cfg.Rubrics.Dir, registry, build)
		if err != nil {
			return err
		}
		w.Start()
		defer w.Stop()
	}

	srv := server.New(cfg.Server.Host, cfg.Server.Port, registry, pools)
	errChan := make(chan error, 1)
	go func() {
		errChan <- srv.Start()
	}()

	// Signal readiness when running under systemd; a no-op elsewhere.
	if _, err := daemon.SdNotify(false, daemon.SdNotifyReady); err != nil {
		logging.Debug("Serve", "sd_notify not available: %v", err)
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigChan:
		logging.Info("Serve", "Received %s, shutting down", sig)
	case err := <-errChan:
		return err
	}

	daemon.SdNotify(false, daemon.SdNotifyStopping)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logging.Warn("Serve", "HTTP shutdown did not complete cleanly: %v", err)
	}

	return nil
}
