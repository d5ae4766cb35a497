package cmd

import (
	"context"
	"fmt"
	"os"

	"autograder/internal/config"
	"autograder/internal/rubric"
	"autograder/internal/sandbox"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/spf13/cobra"
)

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Verify the service environment",
	Long: `Checks the pieces the grading service depends on: the Docker daemon,
the configured sandbox images, the rubric directory and every rubric
document in it. Run this after editing the configuration or before
deploying.`,
	Args: cobra.NoArgs,
	RunE: runCheck,
}

var checkPullImages bool

func init() {
	checkCmd.Flags().BoolVar(&checkPullImages, "pull", false, "Pull missing sandbox images instead of only reporting them")
	rootCmd.AddCommand(checkCmd)
}

type checkResult struct {
	component string
	ok        bool
	detail    string
}

func runCheck(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfigAndLogging(cmd)
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	var results []checkResult
	results = append(results, checkDocker(ctx, cfg)...)
	results = append(results, checkRubrics(cfg)...)

	t := table.NewWriter()
	t.SetOutputMirror(os.Stdout)
	t.SetStyle(table.StyleRounded)
	t.AppendHeader(table.Row{
		text.FgHiCyan.Sprint("COMPONENT"),
		text.FgHiCyan.Sprint("STATUS"),
		text.FgHiCyan.Sprint("DETAILS"),
	})

	failures := 0
	for _, r := range results {
		status := text.FgHiGreen.Sprint("ok")
		if !r.ok {
			status = text.FgHiRed.Sprint("fail")
			failures++
		}
		t.AppendRow(table.Row{r.component, status, r.detail})
	}
	t.Render()

	if failures > 0 {
		return fmt.Errorf("%d check(s) failed", failures)
	}
	return nil
}

func checkDocker(ctx context.Context, cfg config.ServiceConfig) []checkResult {
	if len(cfg.Pools) == 0 {
		return []checkResult{{component: "docker", ok: true, detail: "no sandbox pools configured, skipped"}}
	}

	runtime, err := sandbox.NewDockerRuntime()
	if err != nil {
		return []checkResult{{component: "docker", ok: false, detail: err.Error()}}
	}
	results := []checkResult{{component: "docker", ok: true, detail: "daemon reachable"}}

	for _, pool := range cfg.Pools {
		component := fmt.Sprintf("image %s", pool.Language)
		if checkPullImages {
			if err := runtime.EnsureImage(ctx, pool.Image); err != nil {
				results = append(results, checkResult{component: component, ok: false, detail: err.Error()})
				continue
			}
			results = append(results, checkResult{component: component, ok: true, detail: pool.Image})
			continue
		}

		if err := runtime.InspectImage(ctx, pool.Image); err != nil {
			results = append(results, checkResult{component: component, ok: false,
				detail: fmt.Sprintf("%s not present, rerun with --pull", pool.Image)})
			continue
		}
		results = append(results, checkResult{component: component, ok: true, detail: pool.Image})
	}

	// Leftover fleet containers from an unclean shutdown are cleaned at the
	// next service start; report them so operators are not surprised.
	if orphans, err := runtime.ListContainers(ctx, sandbox.FleetLabel); err == nil && len(orphans) > 0 {
		results = append(results, checkResult{component: "fleet", ok: true,
			detail: fmt.Sprintf("%d leftover container(s), cleaned on next start", len(orphans))})
	}

	return results
}

func checkRubrics(cfg config.ServiceConfig) []checkResult {
	info, err := os.Stat(cfg.Rubrics.Dir)
	if err != nil || !info.IsDir() {
		return []checkResult{{component: "rubrics", ok: false,
			detail: fmt.Sprintf("directory %s not found", cfg.Rubrics.Dir)}}
	}

	templates, err := builtinTemplates()
	if err != nil {
		return []checkResult{{component: "rubrics", ok: false, detail: err.Error()}}
	}

	defs, err := config.LoadPipelineDefinitions(cfg.Rubrics.Dir)
	if err != nil {
		return []checkResult{{component: "rubrics", ok: false, detail: err.Error()}}
	}

	results := []checkResult{{component: "rubrics", ok: true,
		detail: fmt.Sprintf("%d document(s) in %s", len(defs), cfg.Rubrics.Dir)}}

	for _, def := range defs {
		component := fmt.Sprintf("rubric %s", def.Name)
		// Resolve the template and build the tree directly: this validates
		// the document without requiring a running Docker daemon.
		tmpl, err := templates.Get(def.Template)
		if err != nil {
			results = append(results, checkResult{component: component, ok: false, detail: err.Error()})
			continue
		}
		if _, err := rubric.Build(&def.Criteria, tmpl); err != nil {
			results = append(results, checkResult{component: component, ok: false, detail: err.Error()})
			continue
		}
		results = append(results, checkResult{component: component, ok: true, detail: def.Template})
	}

	return results
}
