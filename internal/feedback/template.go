package feedback

import (
	"bytes"
	"context"
	"fmt"
	"text/template"

	"autograder/internal/api"
	"autograder/internal/config"
	"autograder/internal/grader"
	"autograder/internal/rubric"

	"github.com/Masterminds/sprig/v3"
)

// TemplateReporter renders feedback through an instructor-authored
// text/template carried in the rubric document. The sprig function map is
// available to templates.
type TemplateReporter struct {
	tmpl *template.Template
}

// TemplateData is the root object a feedback template executes against.
type TemplateData struct {
	Username      string
	AssignmentID  string
	FinalScore    float64
	BaseScore     float64
	BonusPoints   float64
	PenaltyPoints float64

	// Categories maps "base"/"bonus"/"penalty" to their result subtrees.
	Categories map[string]*api.ResultNode

	// FailedTests lists every failed test across categories, ordered by
	// impact descending within each category.
	FailedTests []*api.ResultNode
}

func NewTemplateReporter(opts config.FeedbackOptions) (*TemplateReporter, error) {
	if opts.Template == "" {
		return nil, fmt.Errorf("template feedback mode requires a template")
	}

	tmpl, err := template.New("feedback").Funcs(sprig.TxtFuncMap()).Parse(opts.Template)
	if err != nil {
		return nil, fmt.Errorf("failed to parse feedback template: %w", err)
	}

	return &TemplateReporter{tmpl: tmpl}, nil
}

func (r *TemplateReporter) Render(ctx context.Context, in Input) (string, error) {
	if in.Result == nil {
		return "", fmt.Errorf("cannot render feedback without a grading result")
	}

	data := TemplateData{
		FinalScore:    in.Result.FinalScore,
		BaseScore:     in.Result.BaseScore,
		BonusPoints:   in.Result.BonusPoints,
		PenaltyPoints: in.Result.PenaltyPoints,
		Categories:    make(map[string]*api.ResultNode),
	}
	if in.Submission != nil {
		data.Username = in.Submission.Username
		data.AssignmentID = in.Submission.AssignmentID
	}
	for category, node := range in.Result.Categories {
		data.Categories[string(category)] = node
	}
	if in.Focus != nil {
		for _, category := range []rubric.Category{rubric.CategoryBase, rubric.CategoryBonus, rubric.CategoryPenalty} {
			for _, entry := range in.Focus.Entries[category] {
				data.FailedTests = append(data.FailedTests, entry.Test)
			}
		}
	} else {
		for _, category := range []rubric.Category{rubric.CategoryBase, rubric.CategoryBonus, rubric.CategoryPenalty} {
			node, ok := in.Result.Categories[category]
			if !ok {
				continue
			}
			for _, test := range grader.AllTests(node) {
				if test.Score < 100 {
					data.FailedTests = append(data.FailedTests, test)
				}
			}
		}
	}

	var buf bytes.Buffer
	if err := r.tmpl.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("failed to render feedback template: %w", err)
	}
	return buf.String(), nil
}
