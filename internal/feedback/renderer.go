package feedback

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"autograder/internal/api"
	"autograder/internal/config"
	"autograder/internal/grader"
	"autograder/internal/rubric"
)

// DefaultReportTitle heads structured reports with no configured title.
const DefaultReportTitle = "Grading report"

var categoryHeaders = map[rubric.Category]string{
	rubric.CategoryBase:    "Base",
	rubric.CategoryBonus:   "Bonus",
	rubric.CategoryPenalty: "Penalty",
}

// StructuredReporter is the default renderer: a plain-text report with a
// title, an optional score line, per-category failed-test bullets ordered
// by impact and an optional pass-count summary.
type StructuredReporter struct {
	opts config.FeedbackOptions
}

func NewStructuredReporter(opts config.FeedbackOptions) *StructuredReporter {
	return &StructuredReporter{opts: opts}
}

func (r *StructuredReporter) Render(ctx context.Context, in Input) (string, error) {
	if in.Result == nil {
		return "", fmt.Errorf("cannot render feedback without a grading result")
	}

	var b strings.Builder

	title := r.opts.ReportTitle
	if title == "" {
		title = DefaultReportTitle
	}
	fmt.Fprintf(&b, "%s\n", title)

	if r.opts.ShowScore {
		fmt.Fprintf(&b, "Final score: %.1f/100\n", in.Result.FinalScore)
	}

	totalTests := 0
	passedTests := 0

	for _, category := range []rubric.Category{rubric.CategoryBase, rubric.CategoryBonus, rubric.CategoryPenalty} {
		node, ok := in.Result.Categories[category]
		if !ok {
			continue
		}

		var lines []string
		for _, test := range failedTests(node, category, in.Focus) {
			lines = append(lines, renderFailedTest(test))
		}
		for _, test := range grader.AllTests(node) {
			totalTests++
			if test.Score >= 100 {
				passedTests++
				if r.opts.ShowPassedTests {
					lines = append(lines, fmt.Sprintf("- [PASS] %s", test.Name))
				}
			}
		}
		if len(lines) == 0 {
			continue
		}

		b.WriteString("\n")
		if r.opts.CategoryHeaders {
			fmt.Fprintf(&b, "%s:\n", categoryHeaders[category])
		}
		for _, line := range lines {
			b.WriteString(line)
			b.WriteString("\n")
		}
	}

	if r.opts.AddReportSummary {
		fmt.Fprintf(&b, "\n%d of %d tests passed.\n", passedTests, totalTests)
	}

	return b.String(), nil
}

// failedTests returns a category's failed tests ordered by impact when a
// focus ranking is available; without one (direct Render calls) they keep
// traversal order.
func failedTests(node *api.ResultNode, category rubric.Category, focus *grader.Focus) []*api.ResultNode {
	if focus != nil {
		entries := focus.Entries[category]
		tests := make([]*api.ResultNode, 0, len(entries))
		for _, entry := range entries {
			tests = append(tests, entry.Test)
		}
		return tests
	}

	var failed []*api.ResultNode
	for _, test := range grader.AllTests(node) {
		if test.Score < 100 {
			failed = append(failed, test)
		}
	}
	return failed
}

// renderFailedTest writes one failed-test bullet: name, score, the test's
// report and a snapshot of its parameters when it has any.
func renderFailedTest(test *api.ResultNode) string {
	line := fmt.Sprintf("- [FAIL] %s (%.0f/100)", test.Name, test.Score)
	if test.Report != "" {
		line += ": " + test.Report
	}
	if len(test.Params) > 0 {
		line += fmt.Sprintf(" (%s)", formatParams(test.Params))
	}
	return line
}

// formatParams renders a parameter map as "k=v, k=v" with sorted keys.
func formatParams(params map[string]interface{}) string {
	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s=%v", k, params[k]))
	}
	return strings.Join(parts, ", ")
}
