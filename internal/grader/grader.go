package grader

import (
	"context"
	"fmt"
	"sort"

	"autograder/internal/api"
	"autograder/internal/rubric"
	"autograder/pkg/logging"
)

const graderSubsystem = "Grader"

// Result is the outcome of grading one submission against one rubric tree.
type Result struct {
	// FinalScore is clamp(base + bonusPoints - penaltyPoints, 0, 100).
	FinalScore float64

	// BaseScore is the base category score in [0, 100].
	BaseScore float64

	// BonusPoints and PenaltyPoints are the additive/subtractive offsets
	// derived from the category scores and their point budgets.
	BonusPoints   float64
	PenaltyPoints float64

	// Tree is the serialisable result tree, isomorphic to the rubric tree.
	// Its root holds the three category nodes under Subjects.
	Tree *api.ResultNode

	// Categories indexes the category result nodes by tag.
	Categories map[rubric.Category]*api.ResultNode
}

// Grade executes every test of the rubric tree against the submission and
// aggregates the result tree bottom-up.
//
// Tests run in depth-first declaration order; this ordering is contractual
// because tests against the same sandbox may depend on each other's side
// effects. sandbox is non-nil only when the template requires one and
// preflight acquired it.
func Grade(ctx context.Context, tree *rubric.Tree, sub *api.Submission, sandbox api.SandboxHandle) *Result {
	result := &Result{
		Categories: make(map[rubric.Category]*api.ResultNode),
	}

	root := &api.ResultNode{Name: "rubric"}
	for _, cat := range tree.Categories() {
		node := gradeNode(ctx, cat.Node, sub, sandbox)
		result.Categories[cat.Category] = node
		root.Subjects = append(root.Subjects, node)
	}

	base := result.Categories[rubric.CategoryBase]
	result.BaseScore = base.Score

	if bonus, ok := result.Categories[rubric.CategoryBonus]; ok {
		result.BonusPoints = bonus.Score * bonus.Weight / 100
	}
	if penalty, ok := result.Categories[rubric.CategoryPenalty]; ok {
		result.PenaltyPoints = penalty.Score * penalty.Weight / 100
	}

	result.FinalScore = clampScore(result.BaseScore + result.BonusPoints - result.PenaltyPoints)
	root.Score = result.FinalScore
	result.Tree = root

	logging.Debug(graderSubsystem, "Graded submission %s/%s: base=%.2f bonus=%.2f penalty=%.2f final=%.2f",
		sub.AssignmentID, sub.UserID, result.BaseScore, result.BonusPoints, result.PenaltyPoints, result.FinalScore)

	return result
}

// gradeNode recursively grades one rubric level and materialises its mirror
// result node.
func gradeNode(ctx context.Context, node *rubric.Node, sub *api.Submission, sandbox api.SandboxHandle) *api.ResultNode {
	out := &api.ResultNode{
		Name:           node.Name,
		Weight:         node.Weight,
		SubjectsWeight: node.SubjectsWeight,
	}

	var subjectsScore float64
	for _, child := range node.Subjects {
		childResult := gradeNode(ctx, child, sub, sandbox)
		out.Subjects = append(out.Subjects, childResult)
		subjectsScore += childResult.Score * childResult.Weight / 100
	}

	var testsScore float64
	for _, test := range node.Tests {
		testResult := runTest(ctx, test, sub, sandbox)
		out.Tests = append(out.Tests, testResult)
		testsScore += testResult.Score * testResult.Weight / 100
	}

	out.Score = clampScore(subjectsScore*node.SubjectsFactor + testsScore*node.TestsFactor)
	return out
}

// runTest invokes one test function with containment: a returned error or a
// panic becomes a zero score with an explanatory report, and grading
// continues.
func runTest(ctx context.Context, test *rubric.TestNode, sub *api.Submission, sandbox api.SandboxHandle) *api.ResultNode {
	params := materializeParams(test.Params, sub.Language)
	files := selectFiles(test.File, sub)

	outcome := executeContained(ctx, test, files, sandbox, params)

	return &api.ResultNode{
		Name:     test.Name,
		Weight:   test.Weight,
		Score:    clampScore(outcome.Score),
		Report:   outcome.Report,
		Params:   params,
		Metadata: outcome.Metadata,
	}
}

// executeContained is the recovery boundary around external test code.
func executeContained(ctx context.Context, test *rubric.TestNode, files []api.SubmissionFile, sandbox api.SandboxHandle, params map[string]interface{}) (outcome api.TestOutcome) {
	defer func() {
		if r := recover(); r != nil {
			logging.Error(graderSubsystem, fmt.Errorf("%v", r), "Test %s panicked", test.Name)
			outcome = api.TestOutcome{
				Score:  0,
				Report: fmt.Sprintf("internal test error: %v", r),
			}
		}
	}()

	result, err := test.Fn.Execute(ctx, files, sandbox, params)
	if err != nil {
		logging.Debug(graderSubsystem, "Test %s returned error: %v", test.Name, err)
		return api.TestOutcome{
			Score:  0,
			Report: fmt.Sprintf("internal test error: %v", err),
		}
	}
	return result
}

// selectFiles resolves the rubric file selector against the submission.
// Missing files yield an empty selection; the test function decides whether
// that is a failure.
func selectFiles(sel *rubric.FileSelector, sub *api.Submission) []api.SubmissionFile {
	if sel == nil {
		return nil
	}

	if sel.All {
		names := make([]string, 0, len(sub.Files))
		for name := range sub.Files {
			names = append(names, name)
		}
		sort.Strings(names)

		files := make([]api.SubmissionFile, 0, len(names))
		for _, name := range names {
			files = append(files, api.SubmissionFile{Name: name, Content: sub.Files[name]})
		}
		return files
	}

	files := make([]api.SubmissionFile, 0, len(sel.Names))
	for _, name := range sel.Names {
		if content, ok := sub.Files[name]; ok {
			files = append(files, api.SubmissionFile{Name: name, Content: content})
		}
	}
	return files
}

func clampScore(score float64) float64 {
	if score < 0 {
		return 0
	}
	if score > 100 {
		return 100
	}
	return score
}
