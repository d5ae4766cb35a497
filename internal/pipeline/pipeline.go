package pipeline

import (
	"context"
	"fmt"
	"time"

	"autograder/internal/api"
	"autograder/internal/config"
	"autograder/internal/export"
	"autograder/internal/feedback"
	"autograder/internal/grader"
	"autograder/internal/rubric"
	"autograder/internal/sandbox"
	"autograder/internal/template"
	"autograder/pkg/logging"
)

const pipelineSubsystem = "Pipeline"

// Options configures one pipeline. A pipeline is built once per rubric
// document and reused for every submission against it.
type Options struct {
	// Name identifies the pipeline in logs and exports. Defaults to the
	// template name.
	Name string

	// TemplateName resolves against Templates; CustomTemplate bypasses the
	// registry when set.
	TemplateName   string
	CustomTemplate *template.Template
	Templates      *template.Registry

	Criteria rubric.Config

	// Setup enables the preflight stage when non-nil.
	Setup *config.SetupConfig

	Feedback config.FeedbackOptions

	// Reporter overrides the built-in reporter selection. External
	// feedback generators are supplied here.
	Reporter feedback.Reporter

	// Exporter enables the export stage when non-nil.
	Exporter export.Exporter

	// Sandboxes is required when the template declares requires_sandbox.
	Sandboxes *sandbox.Manager
}

// Pipeline is an immutable grading pipeline: template resolved, rubric
// tree built, reporter chosen. Safe for concurrent Run calls.
type Pipeline struct {
	name     string
	template *template.Template
	tree     *rubric.Tree
	setup    *config.SetupConfig
	options  config.FeedbackOptions
	reporter feedback.Reporter
	exporter export.Exporter
	pool     *sandbox.Manager
	planned  []Stage
}

// BuildPipeline resolves the template and builds the rubric tree eagerly,
// so configuration errors surface here and never inside a submission run.
func BuildPipeline(opts Options) (*Pipeline, error) {
	tmpl := opts.CustomTemplate
	if tmpl == nil {
		if opts.TemplateName == "" {
			return nil, fmt.Errorf("pipeline requires a template name or a custom template")
		}
		if opts.Templates == nil {
			return nil, fmt.Errorf("pipeline requires a template registry to resolve %s", opts.TemplateName)
		}
		registered, err := opts.Templates.Get(opts.TemplateName)
		if err != nil {
			return nil, err
		}
		tmpl = registered
	}

	tree, err := rubric.Build(&opts.Criteria, tmpl)
	if err != nil {
		return nil, err
	}

	if tmpl.RequiresSandbox() && opts.Sandboxes == nil {
		return nil, fmt.Errorf("template %s requires a sandbox pool manager", tmpl.Name())
	}

	reporter := opts.Reporter
	if reporter == nil && opts.Feedback.Enabled {
		reporter, err = feedback.NewReporter(opts.Feedback)
		if err != nil {
			return nil, err
		}
	}

	name := opts.Name
	if name == "" {
		name = tmpl.Name()
	}

	p := &Pipeline{
		name:     name,
		template: tmpl,
		tree:     tree,
		setup:    opts.Setup,
		options:  opts.Feedback,
		reporter: reporter,
		exporter: opts.Exporter,
		pool:     opts.Sandboxes,
	}
	p.planned = p.planStages()

	logging.Info(pipelineSubsystem, "Built pipeline %s: template=%s tests=%d stages=%d",
		p.name, tmpl.Name(), countTests(tree), len(p.planned))
	return p, nil
}

func countTests(tree *rubric.Tree) int {
	total := 0
	for _, cat := range tree.Categories() {
		total += cat.Node.CountTests()
	}
	return total
}

// planStages lists the stages this pipeline will attempt for every
// submission. Conditional stages depend only on build-time configuration.
func (p *Pipeline) planStages() []Stage {
	stages := []Stage{StageLoadTemplate, StageBuildTree}
	if p.setup != nil {
		stages = append(stages, StagePreflight)
	}
	stages = append(stages, StageGrade)
	if p.options.Enabled {
		stages = append(stages, StageFocus, StageFeedback)
	}
	if p.exporter != nil {
		stages = append(stages, StageExport)
	}
	return stages
}

// Name returns the pipeline identifier.
func (p *Pipeline) Name() string {
	return p.name
}

// Template returns the resolved template.
func (p *Pipeline) Template() *template.Template {
	return p.template
}

// Run grades one submission. It never returns an error and never panics:
// graceful stage failures land in the trace, panics are recovered into an
// interrupted execution, and any acquired sandbox is returned to the pool
// (or destroyed after a panic) on every exit path.
func (p *Pipeline) Run(ctx context.Context, sub *api.Submission) (exec *Execution) {
	exec = newExecution(sub, p.planned)
	exec.start()

	var sb *sandbox.Sandbox
	current := StageLoadTemplate

	defer func() {
		if r := recover(); r != nil {
			message := fmt.Sprintf("panic in stage %s: %v", current, r)
			logging.Error(pipelineSubsystem, fmt.Errorf("%v", r), "Execution of %s interrupted in stage %s", p.name, current)
			exec.abort(current, message)
			if sb != nil {
				p.pool.Discard(ctx, sb)
				sb = nil
			}
		}
		if sb != nil {
			p.pool.Release(ctx, sb)
		}
		exec.finalize()
	}()

	// Template and tree were resolved at build time and are shared by all
	// executions; the trace records them as instantaneous successes.
	exec.success(StageLoadTemplate, 0, fmt.Sprintf("template %s", p.template.Name()))
	exec.success(StageBuildTree, 0, fmt.Sprintf("%d tests", countTests(p.tree)))

	if p.setup != nil {
		current = StagePreflight
		started := time.Now()
		acquired, details, err := p.preflight(ctx, sub)
		sb = acquired
		if err != nil {
			exec.fail(StagePreflight, time.Since(started), err.Error(), details)
			return exec
		}
		exec.success(StagePreflight, time.Since(started), "")
	}

	current = StageGrade
	started := time.Now()

	// Templates that run code need a sandbox even when no setup block
	// acquired one (no setup config, or none for this language).
	if p.template.RequiresSandbox() && sb == nil {
		acquired, details, err := p.acquireSandbox(ctx, sub)
		sb = acquired
		if err != nil {
			exec.fail(StageGrade, time.Since(started), err.Error(), details)
			return exec
		}
	}

	var handle api.SandboxHandle
	if sb != nil {
		handle = sb
	}
	result := grader.Grade(ctx, p.tree, sub, handle)
	exec.gradeResult = result
	exec.success(StageGrade, time.Since(started), fmt.Sprintf("final score %.1f", result.FinalScore))

	if p.options.Enabled {
		current = StageFocus
		started = time.Now()
		exec.focus = grader.ComputeFocus(result)
		exec.success(StageFocus, time.Since(started), "")

		current = StageFeedback
		started = time.Now()
		report, err := p.reporter.Render(ctx, feedback.Input{
			Submission: sub,
			Result:     result,
			Focus:      exec.focus,
		})
		if err != nil {
			exec.fail(StageFeedback, time.Since(started), err.Error(), api.ErrorDetails{
				"error_type": api.ErrorTypeInternal,
			})
			return exec
		}
		exec.feedback = report
		exec.hasFeedback = true
		exec.success(StageFeedback, time.Since(started), "")
	}

	if p.exporter != nil {
		current = StageExport
		started = time.Now()
		record := export.Record{
			Pipeline:     p.name,
			AssignmentID: sub.AssignmentID,
			UserID:       sub.UserID,
			Username:     sub.Username,
			GradedAt:     time.Now(),
			FinalScore:   result.FinalScore,
			Feedback:     exec.feedback,
			ResultTree:   result.Tree,
		}
		if err := p.exporter.Export(ctx, record); err != nil {
			exec.fail(StageExport, time.Since(started), err.Error(), api.ErrorDetails{
				"error_type": api.ErrorTypeInternal,
			})
			return exec
		}
		exec.success(StageExport, time.Since(started), "")
	}

	return exec
}
