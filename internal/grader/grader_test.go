package grader

import (
	"context"
	"testing"

	"autograder/internal/api"
	"autograder/internal/rubric"
	"autograder/internal/template"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fw(v float64) *float64 { return &v }

// scriptedTemplate builds a template whose tests return fixed scores.
func scriptedTemplate(t *testing.T, scores map[string]float64) *template.Template {
	t.Helper()
	funcs := make([]api.TestFunc, 0, len(scores))
	for name, score := range scores {
		s := score
		funcs = append(funcs, template.NewFunc(name, api.FileKindNone, nil,
			func(ctx context.Context, files []api.SubmissionFile, sandbox api.SandboxHandle, params map[string]interface{}) (api.TestOutcome, error) {
				report := "passed"
				if s < 100 {
					report = "failed"
				}
				return api.TestOutcome{Score: s, Report: report}, nil
			}))
	}
	tmpl, err := template.New("scripted", false, funcs...)
	require.NoError(t, err)
	return tmpl
}

func buildTree(t *testing.T, cfg *rubric.Config, tmpl *template.Template) *rubric.Tree {
	t.Helper()
	tree, err := rubric.Build(cfg, tmpl)
	require.NoError(t, err)
	return tree
}

func submission() *api.Submission {
	return &api.Submission{
		AssignmentID: "a1",
		UserID:       "u1",
		Files:        map[string][]byte{"index.html": []byte("<nav></nav>")},
	}
}

func TestGradeHappyPath(t *testing.T) {
	tmpl := scriptedTemplate(t, map[string]float64{"html_ok": 100, "css_ok": 100})
	tree := buildTree(t, &rubric.Config{Base: &rubric.NodeConfig{
		Weight: fw(100),
		Subjects: []*rubric.NodeConfig{
			{Name: "HTML", Weight: fw(50), Tests: []rubric.TestConfig{{Name: "html_ok"}}},
			{Name: "CSS", Weight: fw(50), Tests: []rubric.TestConfig{{Name: "css_ok"}}},
		},
	}}, tmpl)

	result := Grade(context.Background(), tree, submission(), nil)

	assert.Equal(t, 100.0, result.FinalScore)
	assert.Equal(t, 100.0, result.BaseScore)
	assert.Zero(t, result.BonusPoints)
	assert.Zero(t, result.PenaltyPoints)

	// Result tree mirrors the rubric structure.
	base := result.Categories[rubric.CategoryBase]
	require.Len(t, base.Subjects, 2)
	assert.Equal(t, "HTML", base.Subjects[0].Name)
	require.Len(t, base.Subjects[0].Tests, 1)
	assert.True(t, base.Subjects[0].Tests[0].IsLeaf())
}

func TestGradeWeightedAggregation(t *testing.T) {
	tmpl := scriptedTemplate(t, map[string]float64{"pass": 100, "fail": 0})
	tree := buildTree(t, &rubric.Config{Base: &rubric.NodeConfig{
		Subjects: []*rubric.NodeConfig{
			{Name: "a", Weight: fw(75), Tests: []rubric.TestConfig{{Name: "pass"}}},
			{Name: "b", Weight: fw(25), Tests: []rubric.TestConfig{{Name: "fail"}}},
		},
	}}, tmpl)

	result := Grade(context.Background(), tree, submission(), nil)
	assert.InDelta(t, 75, result.FinalScore, 1e-9)
}

func TestGradeHeterogeneousLevel(t *testing.T) {
	tmpl := scriptedTemplate(t, map[string]float64{"pass": 100, "fail": 0})

	// Subjects carry 60% of the level and all pass; direct tests carry 40%
	// and all fail.
	tree := buildTree(t, &rubric.Config{Base: &rubric.NodeConfig{
		Tests:          []rubric.TestConfig{{Name: "fail"}},
		Subjects:       []*rubric.NodeConfig{{Name: "s", Tests: []rubric.TestConfig{{Name: "pass"}}}},
		SubjectsWeight: fw(60),
	}}, tmpl)

	result := Grade(context.Background(), tree, submission(), nil)
	assert.InDelta(t, 60, result.FinalScore, 1e-9)
}

func TestGradeBonusIsAdditivePointBudget(t *testing.T) {
	tmpl := scriptedTemplate(t, map[string]float64{"pass": 100})
	tree := buildTree(t, &rubric.Config{
		Base:  &rubric.NodeConfig{Tests: []rubric.TestConfig{{Name: "pass"}}},
		Bonus: &rubric.NodeConfig{Weight: fw(20), Tests: []rubric.TestConfig{{Name: "pass"}}},
	}, tmpl)

	result := Grade(context.Background(), tree, submission(), nil)

	assert.Equal(t, 100.0, result.BaseScore)
	assert.Equal(t, 20.0, result.BonusPoints)
	// Clamped at 100.
	assert.Equal(t, 100.0, result.FinalScore)
}

func TestGradePenaltyDeduction(t *testing.T) {
	// The penalty test scoring 100 means the forbidden construct was found.
	tmpl := scriptedTemplate(t, map[string]float64{"pass": 100, "found_forbidden": 100})
	tree := buildTree(t, &rubric.Config{
		Base:    &rubric.NodeConfig{Tests: []rubric.TestConfig{{Name: "pass"}}},
		Penalty: &rubric.NodeConfig{Weight: fw(10), Tests: []rubric.TestConfig{{Name: "found_forbidden"}}},
	}, tmpl)

	result := Grade(context.Background(), tree, submission(), nil)

	assert.Equal(t, 10.0, result.PenaltyPoints)
	assert.Equal(t, 90.0, result.FinalScore)
}

func TestGradeNoBonusNoPenaltyEqualsBase(t *testing.T) {
	tmpl := scriptedTemplate(t, map[string]float64{"half": 50})
	tree := buildTree(t, &rubric.Config{
		Base: &rubric.NodeConfig{Tests: []rubric.TestConfig{{Name: "half"}}},
	}, tmpl)

	result := Grade(context.Background(), tree, submission(), nil)
	assert.Equal(t, result.BaseScore, result.FinalScore)
	assert.InDelta(t, 50, result.FinalScore, 1e-9)
}

func TestGradeZeroWeightGroupContributesZero(t *testing.T) {
	tmpl := scriptedTemplate(t, map[string]float64{"pass": 100})
	tree := buildTree(t, &rubric.Config{Base: &rubric.NodeConfig{
		Subjects: []*rubric.NodeConfig{
			{Name: "zeroed", Weight: fw(0), Tests: []rubric.TestConfig{{Name: "pass"}}},
		},
	}}, tmpl)

	result := Grade(context.Background(), tree, submission(), nil)
	assert.Zero(t, result.FinalScore)
}

func TestGradeContainsPanics(t *testing.T) {
	panicking := template.NewFunc("explode", api.FileKindNone, nil,
		func(ctx context.Context, files []api.SubmissionFile, sandbox api.SandboxHandle, params map[string]interface{}) (api.TestOutcome, error) {
			panic("boom")
		})
	passing := template.NewFunc("pass", api.FileKindNone, nil,
		func(ctx context.Context, files []api.SubmissionFile, sandbox api.SandboxHandle, params map[string]interface{}) (api.TestOutcome, error) {
			return api.TestOutcome{Score: 100}, nil
		})
	tmpl, err := template.New("volatile", false, panicking, passing)
	require.NoError(t, err)

	tree := buildTree(t, &rubric.Config{Base: &rubric.NodeConfig{
		Tests: []rubric.TestConfig{{Name: "explode"}, {Name: "pass"}},
	}}, tmpl)

	result := Grade(context.Background(), tree, submission(), nil)

	base := result.Categories[rubric.CategoryBase]
	require.Len(t, base.Tests, 2)
	assert.Zero(t, base.Tests[0].Score)
	assert.Contains(t, base.Tests[0].Report, "internal test error")
	assert.Equal(t, 100.0, base.Tests[1].Score, "grading continues after a panic")
	assert.InDelta(t, 50, result.FinalScore, 1e-9)
}

func TestGradeContainsTestErrors(t *testing.T) {
	failing := template.NewFunc("broken", api.FileKindNone, nil,
		func(ctx context.Context, files []api.SubmissionFile, sandbox api.SandboxHandle, params map[string]interface{}) (api.TestOutcome, error) {
			return api.TestOutcome{}, assert.AnError
		})
	tmpl, err := template.New("broken-lib", false, failing)
	require.NoError(t, err)

	tree := buildTree(t, &rubric.Config{Base: &rubric.NodeConfig{
		Tests: []rubric.TestConfig{{Name: "broken"}},
	}}, tmpl)

	result := Grade(context.Background(), tree, submission(), nil)
	base := result.Categories[rubric.CategoryBase]
	assert.Zero(t, base.Tests[0].Score)
	assert.Contains(t, base.Tests[0].Report, "internal test error")
}

func TestGradeClampsOutOfRangeScores(t *testing.T) {
	overachiever := template.NewFunc("over", api.FileKindNone, nil,
		func(ctx context.Context, files []api.SubmissionFile, sandbox api.SandboxHandle, params map[string]interface{}) (api.TestOutcome, error) {
			return api.TestOutcome{Score: 150}, nil
		})
	tmpl, err := template.New("clamp", false, overachiever)
	require.NoError(t, err)

	tree := buildTree(t, &rubric.Config{Base: &rubric.NodeConfig{
		Tests: []rubric.TestConfig{{Name: "over"}},
	}}, tmpl)

	result := Grade(context.Background(), tree, submission(), nil)
	assert.Equal(t, 100.0, result.Categories[rubric.CategoryBase].Tests[0].Score)
}

func TestGradeDeterministicForIdenticalSubmissions(t *testing.T) {
	tmpl := scriptedTemplate(t, map[string]float64{"a": 80, "b": 40})
	tree := buildTree(t, &rubric.Config{Base: &rubric.NodeConfig{
		Subjects: []*rubric.NodeConfig{
			{Name: "x", Weight: fw(30), Tests: []rubric.TestConfig{{Name: "a"}}},
			{Name: "y", Weight: fw(70), Tests: []rubric.TestConfig{{Name: "b"}}},
		},
	}}, tmpl)

	first := Grade(context.Background(), tree, submission(), nil)
	second := Grade(context.Background(), tree, submission(), nil)
	assert.Equal(t, first.FinalScore, second.FinalScore)
	assert.Equal(t, first.BaseScore, second.BaseScore)
}

func TestSelectFiles(t *testing.T) {
	sub := &api.Submission{Files: map[string][]byte{
		"b.css":      []byte("b"),
		"a.html":     []byte("a"),
		"notes.txt":  []byte("n"),
	}}

	t.Run("nil selector passes no files", func(t *testing.T) {
		assert.Nil(t, selectFiles(nil, sub))
	})

	t.Run("all selects every file sorted", func(t *testing.T) {
		files := selectFiles(&rubric.FileSelector{All: true}, sub)
		require.Len(t, files, 3)
		assert.Equal(t, "a.html", files[0].Name)
		assert.Equal(t, "b.css", files[1].Name)
		assert.Equal(t, "notes.txt", files[2].Name)
	})

	t.Run("missing file yields empty selection", func(t *testing.T) {
		files := selectFiles(&rubric.FileSelector{Names: []string{"absent.js"}}, sub)
		assert.Empty(t, files)
	})

	t.Run("list keeps declared order", func(t *testing.T) {
		files := selectFiles(&rubric.FileSelector{Names: []string{"b.css", "a.html"}}, sub)
		require.Len(t, files, 2)
		assert.Equal(t, "b.css", files[0].Name)
	})
}
