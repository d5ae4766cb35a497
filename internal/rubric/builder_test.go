package rubric

import (
	"context"
	"testing"

	"autograder/internal/api"
	"autograder/internal/template"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fw(v float64) *float64 { return &v }

func stubTemplate(t *testing.T, names ...string) *template.Template {
	t.Helper()
	funcs := make([]api.TestFunc, 0, len(names))
	for _, name := range names {
		funcs = append(funcs, template.NewFunc(name, api.FileKindNone, nil,
			func(ctx context.Context, files []api.SubmissionFile, sandbox api.SandboxHandle, params map[string]interface{}) (api.TestOutcome, error) {
				return api.TestOutcome{Score: 100}, nil
			}))
	}
	tmpl, err := template.New("stub", false, funcs...)
	require.NoError(t, err)
	return tmpl
}

func TestBuildRequiresBase(t *testing.T) {
	tmpl := stubTemplate(t, "a")

	_, err := Build(&Config{}, tmpl)
	require.Error(t, err)
	var invalid *api.InvalidRubricError
	require.ErrorAs(t, err, &invalid)
	assert.Contains(t, invalid.Reason, "base category is required")
}

func TestBuildRejectsEmptyLevel(t *testing.T) {
	tmpl := stubTemplate(t, "a")

	cfg := &Config{Base: &NodeConfig{Weight: fw(100)}}
	_, err := Build(cfg, tmpl)

	var invalid *api.InvalidRubricError
	require.ErrorAs(t, err, &invalid)
	assert.Equal(t, "base", invalid.Path)
}

func TestBuildUnknownTest(t *testing.T) {
	tmpl := stubTemplate(t, "known")

	cfg := &Config{Base: &NodeConfig{Tests: []TestConfig{{Name: "unknown"}}}}
	_, err := Build(cfg, tmpl)

	var notInTemplate *api.TestNotInTemplateError
	require.ErrorAs(t, err, &notInTemplate)
	assert.Equal(t, "unknown", notInTemplate.TestName)
	assert.True(t, api.IsConfigurationError(err))
}

func TestBuildMissingSubjectsWeight(t *testing.T) {
	tmpl := stubTemplate(t, "a")

	cfg := &Config{Base: &NodeConfig{
		Tests:    []TestConfig{{Name: "a"}},
		Subjects: []*NodeConfig{{Name: "sub", Tests: []TestConfig{{Name: "a"}}}},
	}}
	_, err := Build(cfg, tmpl)

	var missing *api.MissingSubjectsWeightError
	require.ErrorAs(t, err, &missing)
	assert.Equal(t, "base", missing.Path)
}

func TestBuildSubjectsWeightRange(t *testing.T) {
	tmpl := stubTemplate(t, "a")

	cfg := &Config{Base: &NodeConfig{
		Tests:          []TestConfig{{Name: "a"}},
		Subjects:       []*NodeConfig{{Tests: []TestConfig{{Name: "a"}}}},
		SubjectsWeight: fw(140),
	}}
	_, err := Build(cfg, tmpl)

	var invalid *api.InvalidRubricError
	require.ErrorAs(t, err, &invalid)
	assert.Contains(t, invalid.Reason, "subjects_weight")
}

func TestBuildNormalisesSiblingWeights(t *testing.T) {
	tmpl := stubTemplate(t, "a", "b", "c")

	cfg := &Config{Base: &NodeConfig{
		Weight: fw(100),
		Subjects: []*NodeConfig{
			{Name: "html", Weight: fw(1), Tests: []TestConfig{{Name: "a"}}},
			{Name: "css", Weight: fw(1), Tests: []TestConfig{{Name: "b"}}},
			{Name: "js", Weight: fw(2), Tests: []TestConfig{{Name: "c"}}},
		},
	}}

	tree, err := Build(cfg, tmpl)
	require.NoError(t, err)

	subjects := tree.Base.Subjects
	require.Len(t, subjects, 3)
	assert.InDelta(t, 25, subjects[0].Weight, 1e-9)
	assert.InDelta(t, 25, subjects[1].Weight, 1e-9)
	assert.InDelta(t, 50, subjects[2].Weight, 1e-9)

	var sum float64
	for _, s := range subjects {
		sum += s.Weight
	}
	assert.InDelta(t, 100, sum, 1e-9)
}

func TestBuildDefaultsAbsentWeights(t *testing.T) {
	tmpl := stubTemplate(t, "a", "b")

	cfg := &Config{Base: &NodeConfig{Tests: []TestConfig{{Name: "a"}, {Name: "b"}}}}
	tree, err := Build(cfg, tmpl)
	require.NoError(t, err)

	require.Len(t, tree.Base.Tests, 2)
	assert.InDelta(t, 50, tree.Base.Tests[0].Weight, 1e-9)
	assert.InDelta(t, 50, tree.Base.Tests[1].Weight, 1e-9)
}

func TestBuildZeroSumGroupStaysZero(t *testing.T) {
	tmpl := stubTemplate(t, "a", "b")

	cfg := &Config{Base: &NodeConfig{
		Tests: []TestConfig{
			{Name: "a", Weight: fw(0)},
			{Name: "b", Weight: fw(0)},
		},
	}}

	tree, err := Build(cfg, tmpl)
	require.NoError(t, err)
	assert.Zero(t, tree.Base.Tests[0].Weight)
	assert.Zero(t, tree.Base.Tests[1].Weight)
}

func TestBuildHeterogeneousFactors(t *testing.T) {
	tmpl := stubTemplate(t, "a", "b")

	cfg := &Config{Base: &NodeConfig{
		Tests:          []TestConfig{{Name: "a"}},
		Subjects:       []*NodeConfig{{Name: "sub", Tests: []TestConfig{{Name: "b"}}}},
		SubjectsWeight: fw(70),
	}}

	tree, err := Build(cfg, tmpl)
	require.NoError(t, err)

	assert.True(t, tree.Base.IsHeterogeneous())
	assert.InDelta(t, 0.7, tree.Base.SubjectsFactor, 1e-9)
	assert.InDelta(t, 0.3, tree.Base.TestsFactor, 1e-9)
}

func TestBuildEmbedsTestFunctions(t *testing.T) {
	tmpl := stubTemplate(t, "a")

	cfg := &Config{
		Base:    &NodeConfig{Tests: []TestConfig{{Name: "a", Params: map[string]interface{}{"tag": "nav"}}}},
		Bonus:   &NodeConfig{Weight: fw(20), Tests: []TestConfig{{Name: "a"}}},
		Penalty: &NodeConfig{Weight: fw(10), Tests: []TestConfig{{Name: "a"}}},
	}

	tree, err := Build(cfg, tmpl)
	require.NoError(t, err)

	require.NotNil(t, tree.Base.Tests[0].Fn)
	assert.Equal(t, "a", tree.Base.Tests[0].Fn.Name())
	assert.Equal(t, "nav", tree.Base.Tests[0].Params["tag"])

	require.NotNil(t, tree.Bonus)
	assert.Equal(t, 20.0, tree.Bonus.Weight)
	require.NotNil(t, tree.Penalty)
	assert.Equal(t, 10.0, tree.Penalty.Weight)
	assert.Equal(t, 3, len(tree.Categories()))
}

func TestBuildIsDeterministic(t *testing.T) {
	tmpl := stubTemplate(t, "a", "b")

	cfg := &Config{Base: &NodeConfig{
		Subjects: []*NodeConfig{
			{Name: "x", Weight: fw(30), Tests: []TestConfig{{Name: "a"}}},
			{Name: "y", Weight: fw(70), Tests: []TestConfig{{Name: "b"}}},
		},
	}}

	first, err := Build(cfg, tmpl)
	require.NoError(t, err)
	second, err := Build(cfg, tmpl)
	require.NoError(t, err)

	require.Len(t, second.Base.Subjects, 2)
	for i := range first.Base.Subjects {
		assert.Equal(t, first.Base.Subjects[i].Weight, second.Base.Subjects[i].Weight)
		assert.Equal(t, first.Base.Subjects[i].Name, second.Base.Subjects[i].Name)
	}
}

func TestCountTests(t *testing.T) {
	tmpl := stubTemplate(t, "a", "b", "c")

	cfg := &Config{Base: &NodeConfig{
		Tests:          []TestConfig{{Name: "a"}},
		SubjectsWeight: fw(50),
		Subjects: []*NodeConfig{
			{Name: "inner", Tests: []TestConfig{{Name: "b"}, {Name: "c"}}},
		},
	}}

	tree, err := Build(cfg, tmpl)
	require.NoError(t, err)
	assert.Equal(t, 3, tree.Base.CountTests())
}
