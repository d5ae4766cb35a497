package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"autograder/internal/api"
	"autograder/internal/config"
	"autograder/internal/pipeline"
	pkgstrings "autograder/pkg/strings"

	"github.com/briandowns/spinner"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/spf13/cobra"
)

var gradeCmd = &cobra.Command{
	Use:   "grade <file> [file...]",
	Short: "Grade a submission locally",
	Long: `Runs one rubric document against a set of submission files and prints
the scored result tree. Useful for authoring rubrics and for grading
outside the service.

The exit code reflects the outcome: 0 when the execution succeeded,
3 when it failed or was interrupted, 2 for configuration problems.`,
	Example: `  autograder grade --rubric rubrics/exercise-1.json index.html style.css
  autograder grade --rubric rubrics/fizzbuzz.json --language python main.py`,
	Args: cobra.MinimumNArgs(1),
	RunE: runGrade,
}

var gradeFlags struct {
	rubric     string
	language   string
	assignment string
	user       string
	username   string
	jsonOutput bool
}

func init() {
	gradeCmd.Flags().StringVar(&gradeFlags.rubric, "rubric", "", "Rubric document to grade against (required)")
	gradeCmd.Flags().StringVar(&gradeFlags.language, "language", "", "Submission language (python, java, node, go, c, cpp)")
	gradeCmd.Flags().StringVar(&gradeFlags.assignment, "assignment", "local", "Assignment identifier")
	gradeCmd.Flags().StringVar(&gradeFlags.user, "user", "local", "User identifier")
	gradeCmd.Flags().StringVar(&gradeFlags.username, "username", "", "Display name used in feedback")
	gradeCmd.Flags().BoolVar(&gradeFlags.jsonOutput, "json", false, "Print the raw execution response as JSON")
	gradeCmd.MarkFlagRequired("rubric")
	rootCmd.AddCommand(gradeCmd)
}

func runGrade(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfigAndLogging(cmd)
	if err != nil {
		return err
	}

	templates, err := builtinTemplates()
	if err != nil {
		return err
	}

	def, err := config.LoadPipelineDefinition(gradeFlags.rubric)
	if err != nil {
		return err
	}

	pools, err := buildSandboxManager(cfg)
	if err != nil {
		return fmt.Errorf("failed to set up sandbox pools: %w", err)
	}

	exporter, err := buildExporter(cfg)
	if err != nil {
		return err
	}

	p, err := buildPipelineFromDef(def, templates, pools, exporter)
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	// Pools are only warmed when the template actually runs code.
	if pools != nil && p.Template().RequiresSandbox() {
		if err := pools.Initialize(ctx); err != nil {
			return err
		}
		defer pools.Shutdown(context.Background())
	}

	sub, err := readSubmission(args)
	if err != nil {
		return err
	}

	s := spinner.New(spinner.CharSets[14], 100*time.Millisecond)
	s.Suffix = fmt.Sprintf(" Grading against %s...", p.Name())
	s.Start()
	exec := p.Run(ctx, sub)
	s.Stop()

	if gradeFlags.jsonOutput {
		encoder := json.NewEncoder(os.Stdout)
		encoder.SetIndent("", "  ")
		if err := encoder.Encode(exec.Response()); err != nil {
			return err
		}
	} else {
		printExecution(exec)
	}

	if exec.Status() != api.ExecutionSuccess {
		return &submissionFailedError{
			message: fmt.Sprintf("execution %s", exec.Status()),
			code:    ExitCodeSubmissionFailed,
		}
	}
	return nil
}

// readSubmission assembles the submission from the file arguments. Files
// keep their base name; the sandbox recreates them flat in the work dir.
func readSubmission(paths []string) (*api.Submission, error) {
	files := make(map[string][]byte, len(paths))
	for _, path := range paths {
		content, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read submission file: %w", err)
		}
		files[filepath.Base(path)] = content
	}

	return &api.Submission{
		AssignmentID: gradeFlags.assignment,
		UserID:       gradeFlags.user,
		Username:     gradeFlags.username,
		Files:        files,
		Language:     api.Language(gradeFlags.language),
	}, nil
}

func printExecution(exec *pipeline.Execution) {
	result := exec.Result()

	if result != nil && result.ResultTree != nil {
		printResultTable(result.ResultTree)
		fmt.Printf("\nFinal score: %s\n", text.FgHiGreen.Sprintf("%.1f/100", result.FinalScore))
	}

	if result != nil && result.Feedback != "" {
		fmt.Println()
		fmt.Println(result.Feedback)
	}

	if exec.Status() != api.ExecutionSuccess {
		fmt.Printf("\nExecution %s\n", text.FgHiRed.Sprint(string(exec.Status())))
		printTrace(exec)
	}
}

// printResultTable renders the category nodes and their leaf tests.
func printResultTable(tree *api.ResultNode) {
	t := table.NewWriter()
	t.SetOutputMirror(os.Stdout)
	t.SetStyle(table.StyleRounded)
	t.AppendHeader(table.Row{
		text.FgHiCyan.Sprint("CATEGORY"),
		text.FgHiCyan.Sprint("TEST"),
		text.FgHiCyan.Sprint("SCORE"),
		text.FgHiCyan.Sprint("WEIGHT"),
		text.FgHiCyan.Sprint("REPORT"),
	})

	for _, category := range tree.Subjects {
		t.AppendRow(table.Row{category.Name, "", fmt.Sprintf("%.1f", category.Score), fmt.Sprintf("%.0f", category.Weight), ""})
		appendTestRows(t, category)
		t.AppendSeparator()
	}

	t.Render()
}

func appendTestRows(t table.Writer, node *api.ResultNode) {
	for _, test := range node.Tests {
		score := fmt.Sprintf("%.1f", test.Score)
		if test.Score == 0 {
			score = text.FgHiRed.Sprint(score)
		}
		report := pkgstrings.TruncateReport(test.Report, pkgstrings.DefaultReportMaxLen)
		t.AppendRow(table.Row{"", test.Name, score, fmt.Sprintf("%.0f", test.Weight), report})
	}
	for _, subject := range node.Subjects {
		appendTestRows(t, subject)
	}
}

// printTrace lists the stage records of a failed execution.
func printTrace(exec *pipeline.Execution) {
	for _, record := range exec.Records() {
		marker := text.FgHiGreen.Sprint("ok")
		if record.Status == api.StageFail {
			marker = text.FgHiRed.Sprint("fail")
		}
		line := fmt.Sprintf("  %-14s %s", record.Stage, marker)
		if record.Message != "" {
			line += "  " + record.Message
		}
		fmt.Println(line)
	}
}
