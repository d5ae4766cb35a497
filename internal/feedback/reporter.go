package feedback

import (
	"context"
	"fmt"

	"autograder/internal/api"
	"autograder/internal/config"
	"autograder/internal/grader"
)

// Input carries everything a reporter may draw on.
type Input struct {
	Submission *api.Submission
	Result     *grader.Result
	Focus      *grader.Focus
}

// Reporter renders a feedback report for a graded submission. The default
// implementations live in this package; AI-backed reporters are external
// collaborators plugged in through the same interface.
type Reporter interface {
	Render(ctx context.Context, in Input) (string, error)
}

// Reporter modes selectable from a rubric document.
const (
	ModeStructured = "structured"
	ModeTemplate   = "template"
)

// NewReporter selects the built-in reporter for the given options. An
// empty mode means structured.
func NewReporter(opts config.FeedbackOptions) (Reporter, error) {
	switch opts.Mode {
	case "", ModeStructured:
		return NewStructuredReporter(opts), nil
	case ModeTemplate:
		return NewTemplateReporter(opts)
	default:
		return nil, fmt.Errorf("unknown feedback mode %q", opts.Mode)
	}
}
